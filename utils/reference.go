package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateReference builds a gateway account reference such as KC12A1B2C3D4.
// The task id stays readable for support staff and the suffix keeps retries unique.
func GenerateReference(prefix string, taskID uint) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("%s%d%s", prefix, taskID, suffix)
}

// NewRequestID returns a random request id.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
