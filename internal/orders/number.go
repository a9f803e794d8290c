package orders

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const numberPrefix = "CMD"

// NewNumber returns CMD-<year>-<6 uppercase hex>. Uniqueness is enforced by the
// store; the builder regenerates on collision.
func NewNumber(now time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("%s-%d-%s", numberPrefix, now.Year(), strings.ToUpper(hex.EncodeToString(id[:3])))
}

var (
	numberRe = regexp.MustCompile(`^CMD-\d{4}-[0-9A-F]{6}$`)
	legacyRe = regexp.MustCompile(`^CMD-(\d{1,18})$`)
)

// Reference identifies an order from a provider-supplied reference string.
// Exactly one of Number or ID is set.
type Reference struct {
	Number string
	ID     int64
}

// ParseReference accepts the canonical order number and the legacy CMD-<id> form.
func ParseReference(ref string) (Reference, bool) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if numberRe.MatchString(ref) {
		return Reference{Number: ref}, true
	}
	if m := legacyRe.FindStringSubmatch(ref); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil && id > 0 {
			return Reference{ID: id}, true
		}
	}
	return Reference{}, false
}
