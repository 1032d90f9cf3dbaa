package utils

import (
	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
)

var shortID func() string

func init() {
	gen, err := nanoid.CustomASCII("0123456789ABCDEFGHJKLMNPQRSTUVWXYZ", 12)
	if err != nil {
		panic(err)
	}
	shortID = gen
}

// GenerateID returns a short human-readable id such as "po-7KQ2M9XZ4HTA".
func GenerateID(prefix string) string {
	return prefix + "-" + shortID()
}

// NewUUID is used for ledger rows and events.
func NewUUID() string {
	return uuid.New().String()
}
