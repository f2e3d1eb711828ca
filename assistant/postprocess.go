package assistant

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sweetpotato0/wanderai/rag/retrieval"
	"github.com/sweetpotato0/wanderai/reply"
	"github.com/sweetpotato0/wanderai/router"
	"github.com/sweetpotato0/wanderai/session"
	"github.com/sweetpotato0/wanderai/task"
)

const (
	closingOffer = "\n\nIf you'd like more details, I can expand any section."

	redactionNotice = "I'm sorry, I couldn't verify some details in my response. " +
		"I've removed or marked unverified items below. " +
		"If you'd like, I can try to look up more details or clarify.\n\n"
)

// postProcess finishes a reply. Task module replies are already grounded
// and only get formatting; generated chat answers are checked against the
// knowledge base and rewritten when a claim is unsupported.
func (a *Assistant) postProcess(ctx context.Context, sess *session.ChatSession, input string, r *reply.Reply, grounding retrieval.Result, log *slog.Logger) *reply.Reply {
	switch {
	case r.Path == router.PathTaskModules:
		if it, ok := r.Data.(task.Itinerary); ok && r.Type == reply.TypeItinerary {
			r.Response = task.BeautifyItinerary(it)
		}
		if r.Type != reply.TypeSuggestion {
			r.Response = withClosingOffer(r.Response)
		}
	case r.Type == reply.TypeGeneralChat:
		a.verify(ctx, sess, r, grounding, log)
		sess.PreviousResponses[input] = r.Response
	}
	return r
}

// verify runs the validator over a grounded chat answer and appends the
// sources footer. A validator error or panic leaves the answer as generated.
func (a *Assistant) verify(ctx context.Context, sess *session.ChatSession, r *reply.Reply, grounding retrieval.Result, log *slog.Logger) {
	sess.Stats.ValidatedResponses++
	defer func() {
		if p := recover(); p != nil {
			log.Warn("response validation panicked, passing the answer through", "panic", p)
		}
	}()

	report, err := a.validator.Check(ctx, r.Response, grounding)
	if err != nil {
		log.Warn("response validation failed, passing the answer through", "error", err)
		return
	}
	if report.Verified {
		r.Response = withClosingOffer(report.RedactedText)
		return
	}

	sess.Stats.HallucinationsPrevented++
	log.Warn("unsupported claims redacted", "claims", report.UnsupportedClaims)
	r.Response = redactionNotice + report.RedactedText + verifiedSources(r.Sources)
	r.ValidationStatus = reply.StatusPartial
	r.HasAnswer = false
}

func withClosingOffer(text string) string {
	if text == "" || strings.HasPrefix(strings.ToLower(text), "sorry") {
		return text
	}
	return text + closingOffer
}

func verifiedSources(sources []string) string {
	if len(sources) == 0 {
		return "\n\n**Verified sources:** (none found)"
	}
	return "\n\n**Verified sources:** " + strings.Join(sources, ", ")
}
