package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID returns a unique identifier with a type prefix, e.g.
// "auction_5f3a...". The prefix makes log lines and DB rows self-describing.
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
