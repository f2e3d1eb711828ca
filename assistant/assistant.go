// Package assistant answers travel questions. It routes every message to
// the task modules or to grounded chat, checks generated answers against
// the knowledge base and keeps the per-session conversation state.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sweetpotato0/wanderai/grounding"
	"github.com/sweetpotato0/wanderai/llm"
	"github.com/sweetpotato0/wanderai/message"
	"github.com/sweetpotato0/wanderai/middleware"
	"github.com/sweetpotato0/wanderai/middleware/enricher"
	"github.com/sweetpotato0/wanderai/middleware/errorhandler"
	"github.com/sweetpotato0/wanderai/middleware/limiter"
	"github.com/sweetpotato0/wanderai/middleware/logger"
	"github.com/sweetpotato0/wanderai/middleware/validator"
	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/pkg/metrics"
	"github.com/sweetpotato0/wanderai/pkg/telemetry"
	"github.com/sweetpotato0/wanderai/rag/retrieval"
	"github.com/sweetpotato0/wanderai/reply"
	"github.com/sweetpotato0/wanderai/router"
	"github.com/sweetpotato0/wanderai/session"
	"github.com/sweetpotato0/wanderai/task"
	"github.com/sweetpotato0/wanderai/validation"
)

const (
	// ChatTopK is the number of documents retrieved for grounded chat.
	ChatTopK = 5
	// ChatHistoryWindow is the number of earlier messages sent with a
	// grounded chat prompt.
	ChatHistoryWindow = 4
	// ChatMaxTokens bounds a grounded chat answer.
	ChatMaxTokens = 500
	// DefaultChatTemperature is the sampling temperature for grounded chat.
	DefaultChatTemperature = 0.3
	// RoutingHistoryWindow is the number of earlier messages shown to the
	// refiner and the router.
	RoutingHistoryWindow = 5
	// TopicLimit is the number of topics listed when nothing was found.
	TopicLimit = 5
	// DefaultRequestsPerMinute is the per-client message rate limit.
	DefaultRequestsPerMinute = 30
)

// KnowledgeBase is the retrieval service the assistant reads from.
// *retrieval.Service implements it.
type KnowledgeBase interface {
	retrieval.Retriever
	ConditionalRefresh(ctx context.Context) (bool, error)
	Timestamp() time.Time
	Topics(limit int) []string
}

// Checker validates a generated answer against the documents it was
// grounded in. *validation.Validator implements it.
type Checker interface {
	Check(ctx context.Context, response string, grounding retrieval.Result) (validation.Report, error)
}

// Assistant is the travel chatbot. It is safe for concurrent use; messages
// for the same session are handled one at a time.
type Assistant struct {
	gen       llm.Generator
	kb        KnowledgeBase
	router    *router.Router
	refiner   *task.Refiner
	extractor *task.Extractor
	suggester *task.Suggester
	builder   *task.ItineraryBuilder
	describer *task.Describer
	formatter *grounding.Formatter
	validator Checker
	sessions  *session.Manager
	chain     *middleware.MiddlewareChain

	taskOptions     []task.Option
	chatTemperature float64
	rateLimit       int
	maxInputLength  int
	logger          *slog.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithSessions sets the session manager.
func WithSessions(m *session.Manager) Option {
	return func(a *Assistant) {
		a.sessions = m
	}
}

// WithRouter sets the intent router.
func WithRouter(r *router.Router) Option {
	return func(a *Assistant) {
		a.router = r
	}
}

// WithFormatter sets the grounding context formatter.
func WithFormatter(f *grounding.Formatter) Option {
	return func(a *Assistant) {
		a.formatter = f
	}
}

// WithValidator sets the response validator.
func WithValidator(v Checker) Option {
	return func(a *Assistant) {
		a.validator = v
	}
}

// WithTaskOptions configures the task modules built by New.
func WithTaskOptions(opts ...task.Option) Option {
	return func(a *Assistant) {
		a.taskOptions = append(a.taskOptions, opts...)
	}
}

// WithChatTemperature sets the grounded chat temperature.
func WithChatTemperature(t float64) Option {
	return func(a *Assistant) {
		a.chatTemperature = t
	}
}

// WithRateLimit sets the number of messages a client may send per minute.
// Zero or less disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(a *Assistant) {
		a.rateLimit = perMinute
	}
}

// WithMaxInputLength bounds the length of a user message.
func WithMaxInputLength(n int) Option {
	return func(a *Assistant) {
		a.maxInputLength = n
	}
}

// WithMiddlewares replaces the default middleware chain.
func WithMiddlewares(middlewares ...middleware.Middleware) Option {
	return func(a *Assistant) {
		a.chain = middleware.NewChain(middlewares...)
	}
}

// WithLogger sets the assistant logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Assistant answering from kb with gen.
func New(gen llm.Generator, kb KnowledgeBase, opts ...Option) *Assistant {
	a := &Assistant{
		gen:             gen,
		kb:              kb,
		chatTemperature: DefaultChatTemperature,
		rateLimit:       DefaultRequestsPerMinute,
		logger:          logging.WithComponent("assistant"),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.router == nil {
		a.router = router.New(gen)
	}
	if a.formatter == nil {
		a.formatter = grounding.New()
	}
	if a.validator == nil {
		a.validator = validation.New(kb)
	}
	if a.sessions == nil {
		a.sessions = session.NewManager()
	}
	a.refiner = task.NewRefiner(gen, a.taskOptions...)
	a.extractor = task.NewExtractor(gen, a.taskOptions...)
	a.suggester = task.NewSuggester(gen, kb, a.taskOptions...)
	a.builder = task.NewItineraryBuilder(gen, kb, a.taskOptions...)
	a.describer = task.NewDescriber(gen, kb, a.taskOptions...)

	if a.chain == nil {
		a.chain = a.defaultChain()
	}
	return a
}

// defaultChain recovers first so that every failure below it, including
// rejected input and rate limiting, still produces a reply.
func (a *Assistant) defaultChain() *middleware.MiddlewareChain {
	return middleware.NewChain(
		errorhandler.NewErrorHandler(nil, a.logger),
		logger.NewRequestLogger(a.logger),
		validator.NewInputValidator(validator.MessageRules(a.maxInputLength, nil)),
		limiter.NewRateLimiter(a.rateLimit),
		enricher.NewContextEnricher(enricher.RequestMetadata),
		validator.NewResponseFilter(validator.TidyReply),
	)
}

// Sessions returns the session manager.
func (a *Assistant) Sessions() *session.Manager {
	return a.sessions
}

// Middlewares returns the names of the middlewares in the chain.
func (a *Assistant) Middlewares() []string {
	return a.chain.Names()
}

// ProcessMessage answers input within the session identified by
// sessionID, creating the session when the id is empty or unknown. It
// never fails: every error is turned into a reply.
func (a *Assistant) ProcessMessage(ctx context.Context, input, sessionID string) *reply.Reply {
	mctx := middleware.NewContext(ctx, input, sessionID)
	if err := a.chain.Execute(mctx, a.handle); err != nil {
		a.logger.Error("message handling failed", "session_id", mctx.SessionID, "error", err)
		mctx.Reply = errorhandler.DefaultReply(err)
	}
	r := mctx.Reply
	if r == nil {
		r = reply.Error(reply.GenericErrorText)
	}
	if r.SessionID == "" {
		r.SessionID = mctx.SessionID
	}
	return r
}

func (a *Assistant) handle(mctx *middleware.Context) error {
	ctx := mctx.Context()
	sess, err := a.sessions.Acquire(ctx, mctx.SessionID)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sess.Unlock()
	mctx.SessionID = sess.ID()

	r := a.process(ctx, sess, mctx.Input)
	r.SessionID = sess.ID()
	sess.AddMessage(message.RoleAssistant, r.Response)
	if err := a.sessions.Save(ctx, sess); err != nil {
		a.logger.Warn("session snapshot failed", "session_id", sess.ID(), "error", err)
	}

	metrics.MessagesProcessed.WithLabelValues(string(r.Path), string(r.Type)).Inc()
	mctx.Reply = r
	return nil
}

// process runs one message through the pipeline. The caller holds the
// session lock.
func (a *Assistant) process(ctx context.Context, sess *session.ChatSession, input string) *reply.Reply {
	ctx, span := telemetry.Start(ctx, "assistant", "assistant.ProcessMessage",
		attribute.String("session_id", sess.ID()))
	defer telemetry.End(span, nil)
	log := a.logger.With("session_id", sess.ID())

	history := sess.Messages()
	sess.AddMessage(message.RoleUser, input)
	sess.Stats.TotalMessages++

	a.refreshKnowledgeBase(ctx, sess, log)

	if r := a.converse(sess, input); r != nil {
		span.SetAttributes(attribute.String("path", string(r.Path)))
		return r
	}

	refined := input
	refinement, err := a.refiner.RefineStructured(ctx, input, message.Last(history, RoutingHistoryWindow))
	switch {
	case err != nil:
		log.Debug("structured refinement failed, routing the raw message", "error", err)
	case refinement.Flags.CriticalBudget:
		log.Info("critical budget detected, short-circuiting")
		span.SetAttributes(attribute.String("path", string(router.PathShortCircuit)))
		return criticalBudget()
	default:
		refined = refinement.Refined
	}

	decision := a.router.Classify(ctx, input, message.Last(history, RoutingHistoryWindow))
	log.Info("message routed",
		"intent", decision.Intent,
		"path", decision.Path,
		"confidence", decision.Confidence,
	)
	span.SetAttributes(
		attribute.String("intent", string(decision.Intent)),
		attribute.String("path", string(decision.Path)),
	)

	var (
		r   *reply.Reply
		res retrieval.Result
	)
	switch {
	case decision.Intent == router.IntentOutOfScope:
		r = outOfScope()
	case decision.Intent.UsesModules() && decision.Path == router.PathTaskModules:
		r = a.modules(ctx, sess, refined, decision)
	case decision.Intent.UsesModules():
		r = a.fallback(sess, decision)
	default:
		r, res = a.chat(ctx, sess, input, history, decision)
	}
	return a.postProcess(ctx, sess, input, r, res, log)
}

// refreshKnowledgeBase runs the per-message freshness check.
func (a *Assistant) refreshKnowledgeBase(ctx context.Context, sess *session.ChatSession, log *slog.Logger) {
	refreshed, err := a.kb.ConditionalRefresh(ctx)
	if err != nil {
		log.Warn("knowledge base refresh failed", "error", err)
		return
	}
	if !refreshed {
		return
	}
	sess.KnowledgeBaseTimestamp = a.kb.Timestamp()
	sess.Stats.KBRefreshes++
	log.Info("knowledge base refreshed", "timestamp", sess.KnowledgeBaseTimestamp)
}

// Describe writes a short grounded description of place.
func (a *Assistant) Describe(ctx context.Context, place string) (string, error) {
	return a.describer.Describe(ctx, place)
}

// Search returns the formatted knowledge base context for query.
func (a *Assistant) Search(ctx context.Context, query string, topK int) (string, error) {
	return a.kb.Search(ctx, query, topK)
}

// Transcript is the readable state of a session.
type Transcript struct {
	SessionID string             `json:"session_id"`
	Messages  []*message.Message `json:"messages"`
	Stats     session.Stats      `json:"stats"`
	Topics    []string           `json:"topics_discussed"`
	Suggested []string           `json:"suggested_places"`
	CreatedAt time.Time          `json:"created_at"`
}

// Session returns the transcript of the session with id.
func (a *Assistant) Session(ctx context.Context, id string) (Transcript, error) {
	sess, err := a.sessions.Get(ctx, id)
	if err != nil {
		return Transcript{}, err
	}
	sess.Lock()
	defer sess.Unlock()
	return Transcript{
		SessionID: sess.ID(),
		Messages:  sess.Messages(),
		Stats:     sess.Stats,
		Topics:    sess.Topics(),
		Suggested: append([]string{}, sess.SuggestedPlaces...),
		CreatedAt: sess.CreatedAt,
	}, nil
}

// Stats returns the validation counters of the session with id.
func (a *Assistant) Stats(ctx context.Context, id string) (session.Stats, error) {
	t, err := a.Session(ctx, id)
	if err != nil {
		return session.Stats{}, err
	}
	return t.Stats, nil
}

// Reset forgets the session with id.
func (a *Assistant) Reset(ctx context.Context, id string) error {
	return a.sessions.Delete(ctx, id)
}
