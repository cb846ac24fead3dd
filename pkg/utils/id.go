package utils

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewConnectionID returns the opaque identifier assigned to a transport
// session at connect time.
func NewConnectionID() string {
	return uuid.NewString()
}

// MessageID returns a short unique identifier for a relayed chat message.
func MessageID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "msg_" + hex.EncodeToString(b)
}

// AnonymousName returns a throwaway display name for an unauthenticated
// connection, e.g. "Anônimo 422".
func AnonymousName() string {
	b := make([]byte, 2)
	rand.Read(b)
	n := binary.BigEndian.Uint16(b) % 1000
	return fmt.Sprintf("Anônimo %03d", n)
}
