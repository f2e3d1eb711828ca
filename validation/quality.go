package validation

import (
	"regexp"
	"strings"
)

// Quality summarises the surface checks run on a final reply.
type Quality struct {
	HasSources    bool     `json:"has_sources"`
	NoSpeculation bool     `json:"no_speculation"`
	NoInvention   bool     `json:"no_invention"`
	Issues        []string `json:"issues"`
}

// Valid reports whether every check passed.
func (q Quality) Valid() bool {
	return q.HasSources && q.NoSpeculation && q.NoInvention
}

var speculationWords = []string{
	"probably", "likely", "presumably", "maybe",
	"i think", "i believe", "i assume", "in my opinion",
}

var (
	allegePattern   = regexp.MustCompile(`(?i)\ballege`)
	estimatePattern = regexp.MustCompile(`(?i)\bestimate\b`)
	roughlyPattern  = regexp.MustCompile(`(?i)roughly\s+\d+`)
)

// HasSources reports whether the reply carries a source tag or footer.
func HasSources(response string) bool {
	return strings.Contains(response, SourceTag) || strings.Contains(response, "Sources:")
}

// NoSpeculation reports whether the reply avoids hedge words.
func NoSpeculation(response string) bool {
	lower := strings.ToLower(response)
	for _, w := range speculationWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return true
}

// NoInvention reports whether the reply avoids unsourced estimates.
func NoInvention(response string) bool {
	for _, loc := range allegePattern.FindAllStringIndex(response, -1) {
		if rest := response[loc[1]:]; rest == "" || (rest[0] != 'd' && rest[0] != 'D') {
			return false
		}
	}
	for _, loc := range estimatePattern.FindAllStringIndex(response, -1) {
		rest := response[loc[1]:]
		if !(startsWithSpace(rest) && bracketBeforePeriod(rest)) {
			return false
		}
	}
	return !roughlyPattern.MatchString(response)
}

// CheckQuality runs the surface checks on a final reply.
func CheckQuality(response string) Quality {
	q := Quality{
		HasSources:    HasSources(response),
		NoSpeculation: NoSpeculation(response),
		NoInvention:   NoInvention(response),
		Issues:        []string{},
	}
	if !q.HasSources {
		q.Issues = append(q.Issues, "Missing source attribution")
	}
	if !q.NoSpeculation {
		q.Issues = append(q.Issues, "Contains speculation language")
	}
	if !q.NoInvention {
		q.Issues = append(q.Issues, "Contains potentially invented facts")
	}
	return q
}
