// internal/assistant/timerange/resolver.go
package timerange

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/common/metrics"
	"banking-assistant/internal/models"
)

// Outcome records how a hint was turned into a range.
type Outcome string

const (
	OutcomeDefault      Outcome = "default"
	OutcomeExplicit     Outcome = "explicit"
	OutcomeVocabulary   Outcome = "vocabulary"
	OutcomeRelative     Outcome = "relative"
	OutcomeInvalidRange Outcome = "invalid_range"
	OutcomeEscalate     Outcome = "escalate"
	OutcomeEscalated    Outcome = "escalated"
	OutcomeFallback     Outcome = "fallback"
)

// Result is the resolved range plus how it was obtained.
type Result struct {
	Range   models.TimeRange
	Outcome Outcome
}

// Escalator resolves hints the deterministic rules do not understand.
type Escalator interface {
	ResolveTimeRange(ctx context.Context, hint, timezone, today string) (models.TimeRange, error)
}

// Resolver turns free-text hints into absolute date ranges.
type Resolver struct {
	escalator  Escalator
	logger     logger.Logger
	defaultLoc *time.Location
	timeout    time.Duration
	now        func() time.Time
}

type Option func(*Resolver)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithDefaultTimezone sets the location used when a caller's timezone is empty or invalid.
func WithDefaultTimezone(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.defaultLoc = loc
		}
	}
}

// WithEscalationTimeout bounds each escalation call.
func WithEscalationTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

func NewResolver(escalator Escalator, log logger.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		escalator:  escalator,
		logger:     logger.ForComponent(log, "timerange"),
		defaultLoc: time.Local,
		timeout:    5 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Location resolves tz, falling back to the resolver default.
func (r *Resolver) Location(tz string) *time.Location {
	if strings.TrimSpace(tz) == "" {
		return r.defaultLoc
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.logger.Warn("unknown timezone, using default", map[string]interface{}{"timezone": tz})
		return r.defaultLoc
	}
	return loc
}

// Today returns the current calendar date in tz.
func (r *Resolver) Today(tz string) time.Time {
	return r.now().In(r.Location(tz))
}

// Resolve never fails: unresolvable hints degrade to the month-to-date default.
func (r *Resolver) Resolve(ctx context.Context, hint, tz string) Result {
	loc := r.Location(tz)
	now := r.now().In(loc)

	tr, outcome := ResolveDeterministic(hint, now)
	if outcome != OutcomeEscalate {
		metrics.TimeRangeResolutions.WithLabelValues(string(outcome)).Inc()
		return Result{Range: tr, Outcome: outcome}
	}

	res := r.escalate(ctx, hint, loc, now)
	metrics.TimeRangeResolutions.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

func (r *Resolver) escalate(ctx context.Context, hint string, loc *time.Location, now time.Time) Result {
	fallback := Result{Range: DefaultRange(now), Outcome: OutcomeFallback}
	if r.escalator == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tr, err := r.escalator.ResolveTimeRange(ctx, hint, loc.String(), now.Format(models.DateLayout))
	if err != nil {
		r.logger.Warn("time range escalation failed, using default range", map[string]interface{}{
			"hint":  hint,
			"error": err,
		})
		return fallback
	}
	if err := tr.Validate(); err != nil {
		r.logger.Warn("time range escalation returned an invalid range", map[string]interface{}{
			"hint":  hint,
			"range": tr.String(),
			"error": err,
		})
		return fallback
	}
	return Result{Range: tr, Outcome: OutcomeEscalated}
}

// ==========================
// Deterministic rules
// ==========================

var (
	explicitRangePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s*(?:to|-|until|through)\s*(\d{4}-\d{2}-\d{2})$`)
	singleDatePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	relativePattern      = regexp.MustCompile(`^(?:(?:in|over|for)\s+)?(?:the\s+)?(?:last|past)\s+(\d{1,4})\s+(day|days|week|weeks|month|months)$`)
	spacePattern         = regexp.MustCompile(`\s+`)
)

// DefaultRange is the first day of now's month through now.
func DefaultRange(now time.Time) models.TimeRange {
	today := dateOf(now)
	return models.NewTimeRange(firstOfMonth(today), today)
}

// ResolveDeterministic applies the fixed rules. It returns OutcomeEscalate with a zero
// range when the hint needs the external resolver.
func ResolveDeterministic(hint string, now time.Time) (models.TimeRange, Outcome) {
	today := dateOf(now)
	h := normalizeHint(hint)

	if h == "" {
		return DefaultRange(today), OutcomeDefault
	}

	if m := explicitRangePattern.FindStringSubmatch(h); m != nil {
		tr := models.TimeRange{FromDate: m[1], ToDate: m[2]}
		if err := tr.Validate(); err != nil {
			return DefaultRange(today), OutcomeInvalidRange
		}
		return tr, OutcomeExplicit
	}
	if singleDatePattern.MatchString(h) {
		tr := models.TimeRange{FromDate: h, ToDate: h}
		if err := tr.Validate(); err != nil {
			return DefaultRange(today), OutcomeInvalidRange
		}
		return tr, OutcomeExplicit
	}

	switch h {
	case "today":
		return models.NewTimeRange(today, today), OutcomeVocabulary
	case "yesterday":
		y := today.AddDate(0, 0, -1)
		return models.NewTimeRange(y, y), OutcomeVocabulary
	case "this week":
		return models.NewTimeRange(weekStart(today), today), OutcomeVocabulary
	case "last week":
		start := weekStart(today).AddDate(0, 0, -7)
		return models.NewTimeRange(start, start.AddDate(0, 0, 6)), OutcomeVocabulary
	case "this month":
		return models.NewTimeRange(firstOfMonth(today), today), OutcomeVocabulary
	case "last month":
		first := firstOfMonth(today)
		return models.NewTimeRange(first.AddDate(0, -1, 0), first.AddDate(0, 0, -1)), OutcomeVocabulary
	case "this year":
		return models.NewTimeRange(time.Date(today.Year(), 1, 1, 0, 0, 0, 0, today.Location()), today), OutcomeVocabulary
	case "last year":
		start := time.Date(today.Year()-1, 1, 1, 0, 0, 0, 0, today.Location())
		return models.NewTimeRange(start, time.Date(today.Year()-1, 12, 31, 0, 0, 0, 0, today.Location())), OutcomeVocabulary
	}

	if m := relativePattern.FindStringSubmatch(h); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return models.NewTimeRange(relativeStart(today, n, m[2]), today), OutcomeRelative
		}
	}

	return models.TimeRange{}, OutcomeEscalate
}

// relativeStart is today minus n units plus one day, so the window includes today.
func relativeStart(today time.Time, n int, unit string) time.Time {
	switch strings.TrimSuffix(unit, "s") {
	case "week":
		return today.AddDate(0, 0, -7*n+1)
	case "month":
		return subtractMonths(today, n).AddDate(0, 0, 1)
	default:
		return today.AddDate(0, 0, -n+1)
	}
}

// subtractMonths clamps to the last day of the target month instead of overflowing.
func subtractMonths(t time.Time, n int) time.Time {
	target := time.Date(t.Year(), t.Month()-time.Month(n), 1, 0, 0, 0, 0, t.Location())
	lastDay := target.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, t.Location())
}

func normalizeHint(hint string) string {
	h := strings.ToLower(strings.TrimSpace(hint))
	h = strings.TrimRight(h, ".?!")
	return spacePattern.ReplaceAllString(h, " ")
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// weekStart returns the Sunday on or before t.
func weekStart(t time.Time) time.Time {
	return t.AddDate(0, 0, -int(t.Weekday()))
}
