package types

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex evt_01J9ZK6S3V5T8Q2M1N0B4C7D6E
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

// GenerateRequestID returns a random v4 uuid used to correlate logs of one request
func GenerateRequestID() string {
	return uuid.NewString()
}

const (
	UUID_PREFIX_OUTBOX_EVENT = "evt"
	UUID_PREFIX_TX           = "tx"
)
