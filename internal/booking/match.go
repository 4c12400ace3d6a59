package booking

import (
	"fmt"
	"strings"

	"classbot/internal/config"
	"classbot/internal/site"
)

var (
	errNoMatch   = fmt.Errorf("no class matches")
	errAmbiguous = fmt.Errorf("multiple classes match")
)

// matchCandidate resolves target against the scraped schedule. A
// candidate matches when its title contains the configured name
// (case-insensitive) and its displayed start time parses to the target's
// start time. Zero matches and multiple matches are both permanent: the
// schedule won't change within a retry window, and guessing between two
// classes books the wrong one.
func matchCandidate(target config.ClassTarget, candidates []site.Candidate) (site.Candidate, error) {
	want := strings.ToLower(strings.TrimSpace(target.Name))

	var matches []site.Candidate
	for _, c := range candidates {
		if !strings.Contains(strings.ToLower(c.Title), want) {
			continue
		}
		start, err := config.ParseClockTime(c.Start)
		if err != nil {
			continue
		}
		if start != target.Start {
			continue
		}
		matches = append(matches, c)
	}

	switch len(matches) {
	case 0:
		return site.Candidate{}, site.Permanent(fmt.Errorf("%w: %q at %s among %d classes",
			errNoMatch, target.Name, target.Start, len(candidates)))
	case 1:
		return matches[0], nil
	default:
		titles := make([]string, 0, len(matches))
		for _, m := range matches {
			titles = append(titles, m.Title)
		}
		return site.Candidate{}, site.Permanent(fmt.Errorf("%w: %q at %s: %s",
			errAmbiguous, target.Name, target.Start, strings.Join(titles, ", ")))
	}
}
