package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"liveflow/internal/core/ports"
	"liveflow/pkg/circuitbreaker"

	"go.uber.org/zap"
)

// Classifier decides whether relayed chat text may be delivered. A local
// word list is checked first; when a classifier endpoint is configured the
// text is also sent there for a verdict. The remote call is wrapped in a
// circuit breaker and any failure is treated as safe, so a broken or slow
// classifier never blocks chat delivery.
type Classifier struct {
	forbidden     []string
	classifierURL string
	httpClient    *http.Client
	breaker       *circuitbreaker.CircuitBreaker
	logger        *zap.SugaredLogger
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Safe bool `json:"safe"`
}

// NewClassifier creates a moderation classifier. classifierURL may be empty,
// in which case only the local word list is consulted.
func NewClassifier(forbiddenWords []string, classifierURL string, timeout time.Duration, logger *zap.SugaredLogger) *Classifier {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	lowered := make([]string, 0, len(forbiddenWords))
	for _, word := range forbiddenWords {
		word = strings.TrimSpace(strings.ToLower(word))
		if word != "" {
			lowered = append(lowered, word)
		}
	}

	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())
	if logger != nil {
		breaker.OnStateChange(func(from, to circuitbreaker.State) {
			logger.Warnw("moderation classifier circuit state changed",
				"from", from.String(),
				"to", to.String(),
			)
		})
	}

	return &Classifier{
		forbidden:     lowered,
		classifierURL: classifierURL,
		httpClient:    &http.Client{Timeout: timeout},
		breaker:       breaker,
		logger:        logger,
	}
}

var _ ports.Moderator = (*Classifier)(nil)

// Check reports whether text is acceptable. Only a definite local word-list
// hit or a definite remote "unsafe" verdict rejects the text.
func (c *Classifier) Check(ctx context.Context, text string) (bool, error) {
	if !c.checkLocal(text) {
		return false, nil
	}

	if c.classifierURL == "" {
		return true, nil
	}

	safe, err := c.checkRemote(ctx, text)
	if err != nil {
		if c.logger != nil {
			c.logger.Warnw("moderation classifier unavailable, allowing message",
				"error", err,
			)
		}
		return true, err
	}
	return safe, nil
}

func (c *Classifier) checkLocal(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range c.forbidden {
		if strings.Contains(lower, word) {
			return false
		}
	}
	return true
}

func (c *Classifier) checkRemote(ctx context.Context, text string) (bool, error) {
	result, err := c.breaker.ExecuteWithResult(ctx, func() (interface{}, error) {
		body, err := json.Marshal(classifyRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal classify request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.classifierURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build classify request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("classify request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
		}

		var verdict classifyResponse
		if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
			return nil, fmt.Errorf("failed to decode classify response: %w", err)
		}
		return verdict.Safe, nil
	})
	if err != nil {
		return true, err
	}

	safe, ok := result.(bool)
	if !ok {
		return true, fmt.Errorf("unexpected classifier result type %T", result)
	}
	return safe, nil
}
