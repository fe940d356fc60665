package crawler

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var tenThousand = decimal.NewFromInt(10000)

// ParseCompactCount parses a follower count as rendered on profile pages:
// a plain integer, or the ten-thousands shorthand "3.5万" / "3.5w". Decimal
// arithmetic keeps "3.5万" exactly 35000 with no float drift.
func ParseCompactCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty count")
	}
	s = strings.ReplaceAll(s, ",", "")

	scale := decimal.NewFromInt(1)
	switch {
	case strings.HasSuffix(s, "万"):
		s = strings.TrimSuffix(s, "万")
		scale = tenThousand
	case strings.HasSuffix(s, "w"), strings.HasSuffix(s, "W"):
		s = s[:len(s)-1]
		scale = tenThousand
	}
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("malformed count %q: %w", s, err)
	}
	return d.Mul(scale).IntPart(), nil
}
