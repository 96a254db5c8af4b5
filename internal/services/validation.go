package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     = validator.New()
	phonePattern = regexp.MustCompile(`^\d{3}-\d{3}-\d{4}$`)
)

const dateLayout = "2006-01-02"

func validEmail(s string) bool {
	return s != "" && validate.Var(s, "email") == nil
}

// parseDate accepts a calendar date or a full RFC3339 timestamp. dateOnly
// reports which one it was.
func parseDate(s string) (t time.Time, dateOnly bool, ok bool) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d, true, true
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d.UTC(), false, true
	}
	return time.Time{}, false, false
}

// fieldErrors collects per-field messages in order.
type fieldErrors []string

func (f *fieldErrors) add(msg string) { *f = append(*f, msg) }

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	return &s
}
