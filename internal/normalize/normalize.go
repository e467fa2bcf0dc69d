// Package normalize provides pure conversion helpers for raw registry text:
// source dates to canonical form, jurisdiction tags from case titles, and
// closed-state classification from event descriptions.
//
// All functions are total: malformed or missing input yields the zero result,
// never an error or panic.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const canonicalLayout = "2006-01-02"

var (
	canonicalRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	slashRe     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
)

// Date converts a source date string to canonical YYYY-MM-DD form. It accepts
// an already-canonical string or a day/month/year slash-separated one; any
// other shape reports ok=false. Day and month are zero-padded.
func Date(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if canonicalRe.MatchString(raw) {
		return raw, true
	}
	m := slashRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// DateValue is Date followed by parsing into a time.Time, for handing the
// value to the persistence layer. Returns nil when the input does not
// normalize or names an impossible calendar date.
func DateValue(raw string) *time.Time {
	canonical, ok := Date(raw)
	if !ok {
		return nil
	}
	t, err := time.Parse(canonicalLayout, canonical)
	if err != nil {
		return nil
	}
	return &t
}

// jurisdictionSeparator is the case-style separator between the applicant and
// the respondent state in a case title.
const jurisdictionSeparator = "v. "

// Jurisdiction extracts the respondent-state tag trailing the last "v. " in a
// case title. Reports ok=false when the pattern is absent.
func Jurisdiction(title string) (string, bool) {
	idx := strings.LastIndex(title, jurisdictionSeparator)
	if idx < 0 {
		return "", false
	}
	tag := strings.TrimSpace(title[idx+len(jurisdictionSeparator):])
	if tag == "" {
		return "", false
	}
	return tag, true
}

// closedMarkers are the substrings in a latest-event description that mean
// the case will see no further procedural activity.
var closedMarkers = []string{"finished", "inadmissible"}

// IsClosed classifies a case as closed from its latest event text. An empty
// text is never closed.
func IsClosed(lastEventText string) bool {
	lower := strings.ToLower(lastEventText)
	for _, marker := range closedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
