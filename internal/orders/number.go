package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewOrderNumber builds the human-readable, store/date-scoped order number,
// e.g. "ACME-20260829-4F21A0". Uniqueness is backed by the uuid-derived
// suffix plus the attribute_not_exists(order_id) guard on creation.
func NewOrderNumber(storePrefix string, now time.Time) string {
	prefix := strings.ToUpper(strings.TrimSpace(storePrefix))
	if prefix == "" {
		prefix = "ORD"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), suffix)
}
