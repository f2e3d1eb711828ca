// Package validation scans generated replies for unsupported claims and
// rewrites them.
//
// Two detectors run on every checked reply. The pattern detector flags
// hedging and invented-number language with no source tag nearby. The claim
// detector looks each number and proper noun up in the knowledge base and
// flags the ones nothing supports. Flagged text is replaced in a single
// pass, longest claim first, and a sources footer is appended.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/pkg/metrics"
	"github.com/sweetpotato0/wanderai/pkg/telemetry"
	"github.com/sweetpotato0/wanderai/rag/retrieval"
)

// DefaultClaimTopK is the number of documents requested per claim lookup.
const DefaultClaimTopK = 3

// Detector names the strategy that flagged a claim.
type Detector string

const (
	DetectorPattern   Detector = "pattern"
	DetectorRetrieval Detector = "retrieval"
)

// Claim is a flagged substring of a reply.
type Claim struct {
	Text     string   `json:"text"`
	Detector Detector `json:"detector"`
}

// Report is the outcome of checking one reply.
type Report struct {
	// UnsupportedClaims holds every flagged substring, deduplicated.
	UnsupportedClaims []string `json:"unsupported_claims"`
	// Claims records which detector flagged each claim.
	Claims   []Claim `json:"claims,omitempty"`
	Verified bool    `json:"verified"`
	// Body is the reply with flagged claims rewritten, without footer.
	Body string `json:"body"`
	// Footer is the source attribution appended to Body.
	Footer string `json:"footer"`
	// RedactedText is Body followed by Footer.
	RedactedText string `json:"redacted_text"`
}

// Validator checks replies against the knowledge base.
type Validator struct {
	retriever retrieval.Retriever
	topK      int
	logger    *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithClaimTopK overrides the per-claim lookup depth.
func WithClaimTopK(k int) Option {
	return func(v *Validator) {
		if k > 0 {
			v.topK = k
		}
	}
}

// WithLogger sets the validator logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// New creates a Validator backed by r. A nil retriever leaves every
// extracted claim unsupported.
func New(r retrieval.Retriever, opts ...Option) *Validator {
	v := &Validator{
		retriever: r,
		topK:      DefaultClaimTopK,
		logger:    logging.WithComponent("validation"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check runs both detectors over response and rewrites the flagged claims
// using grounding's facts. The footer lists grounding's sources. When
// nothing is flagged Body equals response.
func (v *Validator) Check(ctx context.Context, response string, grounding retrieval.Result) (report Report, err error) {
	ctx, span := telemetry.Start(ctx, "validation", "validation.Check",
		attribute.Int("response.len", len(response)))
	defer func() { telemetry.End(span, err) }()

	var claims []Claim
	for _, text := range DetectPatterns(response) {
		claims = append(claims, Claim{Text: text, Detector: DetectorPattern})
	}
	unsupported, err := v.VerifyClaims(ctx, response)
	if err != nil {
		return Report{}, fmt.Errorf("verify claims: %w", err)
	}
	for _, text := range unsupported {
		claims = append(claims, Claim{Text: text, Detector: DetectorRetrieval})
	}
	claims = dedupe(claims)

	report = Report{
		UnsupportedClaims: make([]string, 0, len(claims)),
		Claims:            claims,
		Verified:          len(claims) == 0,
		Body:              Redact(response, claims, grounding.Facts),
		Footer:            Footer(grounding.Sources),
	}
	for _, c := range claims {
		report.UnsupportedClaims = append(report.UnsupportedClaims, c.Text)
		metrics.UnsupportedClaims.WithLabelValues(string(c.Detector)).Inc()
	}
	report.RedactedText = report.Body + report.Footer

	outcome := "verified"
	if !report.Verified {
		outcome = "redacted"
		v.logger.Warn("unsupported claims detected", "count", len(claims), "claims", report.UnsupportedClaims)
	}
	metrics.ValidationOutcomes.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.Int("claims.unsupported", len(claims)))
	return report, nil
}

func dedupe(claims []Claim) []Claim {
	seen := make(map[string]struct{}, len(claims))
	out := make([]Claim, 0, len(claims))
	for _, c := range claims {
		if _, ok := seen[c.Text]; ok {
			continue
		}
		seen[c.Text] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Redact replaces every occurrence of each claim in text, in one pass.
// Longer claims win over claims they contain. Claims found by the knowledge
// base lookup only match whole words. A claim sharing words with one of
// facts becomes a knowledge-base disclaimer, any other claim an
// "[Unverified: ...]" marker.
func Redact(text string, claims []Claim, facts []retrieval.Fact) string {
	if len(claims) == 0 {
		return text
	}
	ordered := append([]Claim(nil), claims...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Text) > len(ordered[j].Text)
	})

	alternatives := make([]string, 0, len(ordered))
	replacements := make(map[string]string, len(ordered))
	for _, c := range ordered {
		if c.Text == "" {
			continue
		}
		if _, ok := replacements[c.Text]; ok {
			continue
		}
		alt := regexp.QuoteMeta(c.Text)
		if c.Detector == DetectorRetrieval {
			alt = `\b` + alt + `\b`
		}
		alternatives = append(alternatives, alt)
		replacements[c.Text] = marker(c.Text, facts)
	}
	if len(alternatives) == 0 {
		return text
	}

	re := regexp.MustCompile(strings.Join(alternatives, "|"))
	return re.ReplaceAllStringFunc(text, func(m string) string {
		if r, ok := replacements[m]; ok {
			return r
		}
		return m
	})
}

func marker(claim string, facts []retrieval.Fact) string {
	if fact, ok := relatedFact(claim, facts); ok {
		return fmt.Sprintf("[According to my knowledge base: %s]", fact.Text)
	}
	return fmt.Sprintf("[Unverified: %s]", claim)
}

// Footer renders the source attribution appended to a checked reply.
func Footer(sources []string) string {
	unique := make([]string, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		unique = append(unique, s)
	}
	if len(unique) == 0 {
		return "\n\nSources: (none found)"
	}
	footer := "\n\nSources: " + strings.Join(unique, ", ")
	if len(unique) > 1 {
		footer += " (multiple sources confirm this)"
	}
	return footer
}
