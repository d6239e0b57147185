package account

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateNumber produces a human-readable account number combining a
// timestamp with a slice of a fresh UUID, e.g. "ACC-2501170934125F3A9B2C".
// Uniqueness is ultimately enforced by the accounts table constraint.
func GenerateNumber() string {
	ts := time.Now().UTC().Format("060102150405")
	u := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "ACC-" + ts + u[:8]
}
