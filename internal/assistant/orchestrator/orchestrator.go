// internal/assistant/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"banking-assistant/internal/assistant/clarification"
	"banking-assistant/internal/assistant/datafetch"
	"banking-assistant/internal/assistant/memory"
	"banking-assistant/internal/assistant/normalize"
	"banking-assistant/internal/assistant/timerange"
	"banking-assistant/internal/audit"
	apperrors "banking-assistant/internal/common/errors"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/common/metrics"
	"banking-assistant/internal/common/observability"
	"banking-assistant/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	genericErrorText = "Sorry, something went wrong on our side. Please try again."
	apologyText      = "Sorry, I couldn't prepare your answer right now. Please try again in a moment. Reference: %s"
	refusalText      = "Sorry, I can't help with that request."

	auditTimeout = 3 * time.Second
)

// Config holds the pipeline switches.
type Config struct {
	WorkingLanguage    string
	ScreeningEnabled   bool
	ScreeningFailOpen  bool
	TranslationEnabled bool
}

// Deps are the collaborators of the pipeline. Language, Screener, Recorder and
// Observability are optional.
type Deps struct {
	Sessions      SessionStore
	Intents       IntentResolver
	Drafter       Drafter
	Language      LanguageService
	Screener      Screener
	TimeRanges    *timerange.Resolver
	Clarification *clarification.Coordinator
	Fetcher       *datafetch.Coordinator
	Normalizer    *normalize.Engine
	Memory        *memory.Memory
	Recorder      audit.Recorder
	Observability *observability.Observability
}

// Orchestrator runs the per-message pipeline.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

type Option func(*Orchestrator)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(deps Deps, cfg Config, log logger.Logger, opts ...Option) *Orchestrator {
	if cfg.WorkingLanguage == "" {
		cfg.WorkingLanguage = "en"
	}
	if deps.Memory == nil {
		deps.Memory = memory.New(memory.DefaultCap, memory.DefaultWindow)
	}
	if deps.Normalizer == nil {
		deps.Normalizer = normalize.NewEngine(log)
	}
	o := &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: logger.ForComponent(log, "orchestrator"),
		tracer: deps.Observability.Tracer(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type stageFunc func(ctx context.Context, st *State) error

// ProcessMessage answers one customer message. Only input errors are returned; every
// other failure, panics included, becomes a generic reply whose Explanation keeps the
// internal error text.
func (o *Orchestrator) ProcessMessage(ctx context.Context, customerID, correlationID, text string) (resp *models.AssistantResponse, err error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, apperrors.NewMissingCustomerIDError()
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewInvalidInputError("message is empty")
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	st := newState(customerID, correlationID, text, o.now(), o.logger)
	ctx, span := o.tracer.Start(ctx, "assistant.process_message",
		trace.WithAttributes(attribute.String("correlation_id", correlationID)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			resp = o.fail(st, fmt.Errorf("panic: %v", r))
			err = nil
		}
		span.SetAttributes(attribute.String("exit", st.Exit))
		o.finish(ctx, st)
	}()

	var runErr error
	resp, runErr = o.run(ctx, st)
	if runErr != nil {
		resp = o.fail(st, runErr)
	}
	return resp, nil
}

func (o *Orchestrator) run(ctx context.Context, st *State) (*models.AssistantResponse, error) {
	pipeline := []struct {
		name Stage
		fn   stageFunc
	}{
		{StageLoadContext, o.loadContext},
		{StageApplyClarification, o.applyClarification},
		{StageDetectLanguage, o.detectLanguage},
		{StageScreen, o.screen},
		{StageTranslate, o.translate},
		{StageResolveIntent, o.resolveIntent},
		{StageConverse, o.converse},
		{StageResolveTimeRange, o.resolveTimeRange},
		{StageClarify, o.clarify},
		{StageFetch, o.fetch},
		{StageNormalize, o.normalize},
		{StageAppendSummary, o.appendSummary},
		{StageDraft, o.draft},
	}

	for _, s := range pipeline {
		if err := o.stage(ctx, st, s.name, s.fn); err != nil {
			return nil, err
		}
		if st.Exit != "" {
			break
		}
	}

	// The reply already exists at this point, so a failed save is logged only.
	if err := o.stage(ctx, st, StageSaveContext, o.saveContext); err != nil {
		st.log.Error("failed to save session context", map[string]interface{}{"error": err})
	}
	return o.respond(st), nil
}

func (o *Orchestrator) stage(ctx context.Context, st *State, name Stage, fn stageFunc) error {
	ctx, span := o.tracer.Start(ctx, "assistant."+string(name))
	defer span.End()

	st.Stage = name
	start := time.Now()
	err := fn(ctx, st)
	metrics.StageDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	}
	return err
}

func (o *Orchestrator) respond(st *State) *models.AssistantResponse {
	return &models.AssistantResponse{
		Answer:        st.Answer,
		Explanation:   st.Explanation,
		Tables:        st.Tables,
		CorrelationID: st.CorrelationID,
		LanguageCode:  st.LanguageCode,
		Exit:          st.Exit,
	}
}

func (o *Orchestrator) fail(st *State, err error) *models.AssistantResponse {
	stdErr := apperrors.AsStandardError(err)
	st.Exit = models.ExitError
	st.ErrorCode = stdErr.Code
	st.Answer = genericErrorText
	st.Explanation = fmt.Sprintf("%s at %s: %v", stdErr.Code, st.Stage, err)
	st.Tables = nil

	st.log.Error("turn failed", map[string]interface{}{
		"stage":         st.Stage,
		"errorCode":     stdErr.Code,
		"errorCategory": apperrors.GetErrorCategory(stdErr.Code),
		"error":         err,
	})
	return o.respond(st)
}

func (o *Orchestrator) finish(ctx context.Context, st *State) {
	elapsed := o.now().Sub(st.StartedAt)
	metrics.TurnsProcessed.WithLabelValues(st.Exit).Inc()
	o.deps.Observability.RecordTurn(ctx, st.Exit, elapsed)

	st.log.Info("turn finished", map[string]interface{}{
		"exit":       st.Exit,
		"durationMs": elapsed.Milliseconds(),
		"intents":    len(st.Intents()),
		"timeRange":  st.TimeRange.String(),
	})

	if o.deps.Recorder == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := o.deps.Recorder.Record(actx, turnRecord(st, elapsed)); err != nil {
		st.log.Warn("audit record failed", map[string]interface{}{"error": err})
	}
}

func turnRecord(st *State, elapsed time.Duration) audit.TurnRecord {
	rec := audit.TurnRecord{
		CorrelationID: st.CorrelationID,
		CustomerID:    st.CustomerID,
		Exit:          st.Exit,
		LanguageCode:  st.LanguageCode,
		Domains:       domainsOf(st.Intents()),
		IntentCount:   len(st.Intents()),
		FromDate:      st.TimeRange.FromDate,
		ToDate:        st.TimeRange.ToDate,
		ErrorCode:     string(st.ErrorCode),
		DurationMs:    elapsed.Milliseconds(),
		CreatedAt:     st.StartedAt,
	}
	if st.Session != nil {
		rec.SessionID = st.Session.SessionID
	}
	return rec
}

func domainsOf(intents []models.Intent) []string {
	seen := map[models.Domain]bool{}
	var out []string
	for _, in := range intents {
		if in.Domain == models.DomainUnknown || seen[in.Domain] {
			continue
		}
		seen[in.Domain] = true
		out = append(out, string(in.Domain))
	}
	return out
}
