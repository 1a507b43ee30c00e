package manifest

import (
	"regexp"
	"strings"
)

var (
	// "## Acceptance Criteria", "**Acceptance criteria:**", "Acceptance Criteria:"
	criteriaHeadingRe = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*)?(?:\*\*|__)?\s*acceptance\s+criteria\s*:?\s*(?:\*\*|__)?\s*:?\s*$`)
	headingRe         = regexp.MustCompile(`^\s*(?:#{1,6}\s+\S|(?:\*\*|__)[^*_]+(?:\*\*|__)\s*:?\s*$)`)
	itemRe            = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(?:\[[ xX]\]\s+)?(.+?)\s*$`)
)

// ExtractAcceptanceCriteria returns the list items under the first
// "Acceptance Criteria" heading of a description, in order. Bullets,
// numbered items and task-list checkboxes are recognized; the section ends at
// the next heading. A description without such a section yields nil.
func ExtractAcceptanceCriteria(description string) []string {
	lines := strings.Split(strings.ReplaceAll(description, "\r\n", "\n"), "\n")

	var out []string
	in := false
	for _, line := range lines {
		if !in {
			in = criteriaHeadingRe.MatchString(line)
			continue
		}
		if headingRe.MatchString(line) {
			break
		}
		m := itemRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if item := strings.TrimSpace(m[1]); item != "" {
			out = append(out, item)
		}
	}
	return out
}
