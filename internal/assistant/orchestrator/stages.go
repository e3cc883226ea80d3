// internal/assistant/orchestrator/stages.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"banking-assistant/internal/assistant/clarification"
	"banking-assistant/internal/assistant/datafetch"
	"banking-assistant/internal/assistant/timerange"
	apperrors "banking-assistant/internal/common/errors"
	"banking-assistant/internal/common/metrics"
	"banking-assistant/internal/integrations/genai"
	"banking-assistant/internal/models"
)

// outcomeCarried marks a follow-up that reused the previous turn's range.
const outcomeCarried timerange.Outcome = "carried"

// ==========================
// Context and language
// ==========================

func (o *Orchestrator) loadContext(ctx context.Context, st *State) error {
	s, err := o.deps.Sessions.Load(ctx, st.CustomerID)
	if err != nil {
		return err
	}
	st.Session = s
	return nil
}

func (o *Orchestrator) applyClarification(ctx context.Context, st *State) error {
	if !st.Session.AwaitingClarification && st.Session.ClarificationState == nil {
		return nil
	}
	grounding, err := o.deps.Clarification.ApplyClarification(ctx, st.Session, st.Message)
	if err != nil {
		st.log.Warn("clarification cleared in memory only", map[string]interface{}{"error": err})
	}
	st.Grounding = grounding
	return nil
}

// detectLanguage makes the detected language authoritative for this turn. The
// session keeps the first language it ever saw.
func (o *Orchestrator) detectLanguage(ctx context.Context, st *State) error {
	st.LanguageCode = st.Session.LanguageCode
	if st.LanguageCode == "" {
		st.LanguageCode = o.cfg.WorkingLanguage
	}
	if o.deps.Language == nil {
		return nil
	}

	det, err := o.deps.Language.DetectLanguage(ctx, st.Message)
	if err != nil || det == nil || det.LanguageCode == "" {
		st.log.Warn("language detection failed, keeping session language", map[string]interface{}{
			"languageCode": st.LanguageCode,
			"error":        apperrors.NewLanguageServiceFailedError("detect", errOrEmpty(err)),
		})
		return nil
	}
	st.LanguageCode = det.LanguageCode
	st.LanguageConfidence = det.Confidence
	return nil
}

func (o *Orchestrator) screen(ctx context.Context, st *State) error {
	if !o.cfg.ScreeningEnabled || o.deps.Screener == nil {
		return nil
	}

	verdict, err := o.deps.Screener.Screen(ctx, st.Message)
	if err != nil {
		if o.cfg.ScreeningFailOpen {
			st.log.Warn("screening unavailable, continuing", map[string]interface{}{"error": err})
			return nil
		}
		st.ErrorCode = apperrors.ErrCodeScreeningFailed
		st.log.Error("screening unavailable, refusing", map[string]interface{}{"error": err})
		o.refuse(ctx, st)
		return nil
	}
	if verdict != nil && verdict.Malicious {
		st.log.Warn("message refused by screening", map[string]interface{}{"category": verdict.Category})
		o.refuse(ctx, st)
	}
	return nil
}

func (o *Orchestrator) translate(ctx context.Context, st *State) error {
	if !o.needsTranslation(st) {
		return nil
	}
	out, err := o.deps.Language.Translate(ctx, st.Message, st.LanguageCode, o.cfg.WorkingLanguage)
	if err != nil || strings.TrimSpace(out) == "" {
		st.log.Warn("translation failed, using original message", map[string]interface{}{
			"error": apperrors.NewLanguageServiceFailedError("translate", errOrEmpty(err)),
		})
		return nil
	}
	st.WorkingMessage = out
	return nil
}

// ==========================
// Intent and time range
// ==========================

func (o *Orchestrator) resolveIntent(ctx context.Context, st *State) error {
	tz := st.Session.Timezone
	st.History = o.deps.Memory.Recent(st.Session)

	res, err := o.deps.Intents.ResolveIntent(ctx, genai.IntentRequest{
		Message:      st.WorkingMessage,
		LanguageCode: st.LanguageCode,
		Timezone:     o.deps.TimeRanges.Location(tz).String(),
		Today:        o.deps.TimeRanges.Today(tz).Format(models.DateLayout),
		Grounding:    st.Grounding,
		History:      st.History,
		LastIntents:  st.Session.LastResolvedIntents,
	})
	if err != nil {
		st.ErrorCode = apperrors.ErrCodeIntentResolutionFailed
		if errors.Is(err, genai.ErrIntentAPITimeout) {
			st.ErrorCode = apperrors.ErrCodeIntentAPITimeout
		}
		st.log.Warn("intent resolution failed", map[string]interface{}{
			"errorCode": st.ErrorCode,
			"grounded":  st.Grounded(),
			"error":     err,
		})
		if st.Grounded() {
			ambiguous := &models.IntentResolution{NeedsClarification: true}
			st.Resolution = o.deps.Clarification.ApplyFallbacks(ambiguous, st.Grounding, o.now(), o.deps.TimeRanges.Location(tz))
			return nil
		}
		return o.ask(ctx, st, clarification.ReasonIntentExtractionFailed)
	}

	st.Resolution = carryFollowUp(res, st.Session)
	return nil
}

// converse ends small-talk turns. A resolution that still needs clarification is
// left to the clarify stage even when no banking domain was recognised.
func (o *Orchestrator) converse(ctx context.Context, st *State) error {
	if !models.AllUnknown(st.Intents()) || st.Resolution.NeedsClarification {
		return nil
	}
	text, err := o.deps.Drafter.Converse(ctx, genai.ConverseRequest{
		Message:      st.WorkingMessage,
		LanguageCode: st.LanguageCode,
		History:      st.History,
	})
	if err != nil {
		st.ErrorCode = draftErrorCode(err)
		st.log.Warn("conversational reply failed", map[string]interface{}{"error": err})
		o.apologize(ctx, st)
		return nil
	}
	st.Exit = models.ExitConversational
	st.Answer = text
	return nil
}

func (o *Orchestrator) resolveTimeRange(ctx context.Context, st *State) error {
	hint := models.FirstTimeRangeHint(st.Intents())
	if last := st.Session.LastResolvedTimeRange; hint == "" && st.Resolution.IsFollowUp && last != nil && last.Validate() == nil {
		st.TimeRange = *last
		st.TimeRangeOutcome = outcomeCarried
		metrics.TimeRangeResolutions.WithLabelValues(string(outcomeCarried)).Inc()
		return nil
	}

	r := o.deps.TimeRanges.Resolve(ctx, hint, st.Session.Timezone)
	st.TimeRange = r.Range
	st.TimeRangeOutcome = r.Outcome
	return nil
}

// clarify asks one question for an ambiguous resolution. A turn that already
// answers a question gets defaults instead.
func (o *Orchestrator) clarify(ctx context.Context, st *State) error {
	res := st.Resolution
	if !res.NeedsClarification {
		return nil
	}
	if clarification.ShouldAsk(res, st.Grounded()) {
		return o.ask(ctx, st, clarification.ParseReason(res.ClarificationNeeded))
	}

	tz := st.Session.Timezone
	before := models.FirstTimeRangeHint(res.Intents)
	st.Resolution = o.deps.Clarification.ApplyFallbacks(res, st.Grounding, o.now(), o.deps.TimeRanges.Location(tz))

	if after := models.FirstTimeRangeHint(st.Resolution.Intents); after != before {
		r := o.deps.TimeRanges.Resolve(ctx, after, tz)
		st.TimeRange = r.Range
		st.TimeRangeOutcome = r.Outcome
	}
	st.log.Info("clarification defaults applied", map[string]interface{}{
		"intents":   len(st.Resolution.Intents),
		"timeRange": st.TimeRange.String(),
	})
	return nil
}

func (o *Orchestrator) ask(ctx context.Context, st *State, reason clarification.Reason) error {
	q, err := o.deps.Clarification.AskClarifier(ctx, st.CustomerID, reason, clarificationContext(st))
	if err != nil {
		return err
	}
	st.Exit = models.ExitClarification
	st.Answer = o.localize(ctx, st, q.Text)
	return nil
}

// ==========================
// Data and drafting
// ==========================

func (o *Orchestrator) fetch(ctx context.Context, st *State) error {
	st.Fetched = o.deps.Fetcher.Fetch(ctx, st.CustomerID, st.Intents(), st.TimeRange)
	return nil
}

func (o *Orchestrator) normalize(_ context.Context, st *State) error {
	for _, r := range st.Fetched {
		if nd := o.deps.Normalizer.Normalize(r.Document); nd != nil {
			st.Normalized = append(st.Normalized, *nd)
		}
	}
	return nil
}

func (o *Orchestrator) appendSummary(_ context.Context, st *State) error {
	st.Summary = summarize(st)
	o.deps.Memory.Append(st.Session, st.Message, st.Summary, o.now())
	return nil
}

func (o *Orchestrator) draft(ctx context.Context, st *State) error {
	d, err := o.deps.Drafter.Draft(ctx, genai.DraftRequest{
		Message:      st.WorkingMessage,
		LanguageCode: st.LanguageCode,
		Intents:      st.Intents(),
		TimeRange:    st.TimeRange,
		Data:         st.Normalized,
		History:      st.History,
	})
	if err != nil {
		st.ErrorCode = draftErrorCode(err)
		st.log.Warn("drafting failed, sending apology", map[string]interface{}{
			"errorCode": st.ErrorCode,
			"error":     err,
		})
		o.apologize(ctx, st)
		return nil
	}

	st.Draft = d
	st.Exit = models.ExitCompleted
	st.Answer = d.Text
	st.Explanation = d.Explanation
	st.Tables = d.Tables
	return nil
}

// saveContext persists what this turn learned on a fresh copy of the session.
// Turns that reached the data stages also carry their intents, range and summary.
func (o *Orchestrator) saveContext(ctx context.Context, st *State) error {
	now := o.now()
	reachedData := st.Exit == models.ExitCompleted || st.Exit == models.ExitDraftFallback

	saved, err := o.deps.Sessions.Update(ctx, st.CustomerID, func(s *models.SessionContext) error {
		s.SetLanguageOnce(st.LanguageCode, st.LanguageConfidence)
		if !reachedData {
			return nil
		}
		s.LastResolvedIntents = carriedIntents(st.Intents())
		if !st.TimeRange.IsZero() {
			tr := st.TimeRange
			s.LastResolvedTimeRange = &tr
		}
		s.LastSelectedEntities = selectedEntities(st.Intents())
		o.deps.Memory.Append(s, st.Message, st.Summary, now)
		return nil
	})
	if err != nil {
		return err
	}
	st.Session = saved
	return nil
}

// ==========================
// Helpers
// ==========================

func (o *Orchestrator) refuse(ctx context.Context, st *State) {
	st.Exit = models.ExitRefused
	st.Answer = o.localize(ctx, st, refusalText)
}

func (o *Orchestrator) apologize(ctx context.Context, st *State) {
	st.Exit = models.ExitDraftFallback
	st.Answer = o.localize(ctx, st, fmt.Sprintf(apologyText, st.CorrelationID))
}

func (o *Orchestrator) needsTranslation(st *State) bool {
	return o.cfg.TranslationEnabled && o.deps.Language != nil &&
		st.LanguageCode != "" && !strings.EqualFold(st.LanguageCode, o.cfg.WorkingLanguage)
}

// localize translates fixed replies back to the customer's language when possible.
func (o *Orchestrator) localize(ctx context.Context, st *State, text string) string {
	if !o.needsTranslation(st) {
		return text
	}
	out, err := o.deps.Language.Translate(ctx, text, o.cfg.WorkingLanguage, st.LanguageCode)
	if err != nil || strings.TrimSpace(out) == "" {
		return text
	}
	return out
}

func draftErrorCode(err error) apperrors.ErrorCode {
	if errors.Is(err, genai.ErrDraftingTimeout) {
		return apperrors.ErrCodeDraftingTimeout
	}
	return apperrors.ErrCodeDraftingFailed
}

func errOrEmpty(err error) error {
	if err == nil {
		return errors.New("empty response")
	}
	return err
}

// carryFollowUp reuses the previous intents for a follow-up that named no banking
// domain of its own, e.g. "what about last week?". Entity hints never carry over.
func carryFollowUp(res *models.IntentResolution, s *models.SessionContext) *models.IntentResolution {
	if res == nil {
		return &models.IntentResolution{}
	}
	if !res.IsFollowUp || res.NeedsClarification || !models.AllUnknown(res.Intents) || len(s.LastResolvedIntents) == 0 {
		return res
	}

	hint := models.FirstTimeRangeHint(res.Intents)
	out := *res
	out.Intents = carriedIntents(s.LastResolvedIntents)
	for i := range out.Intents {
		out.Intents[i].TimeRangeHint = hint
	}
	return &out
}

func carriedIntents(intents []models.Intent) []models.Intent {
	if len(intents) == 0 {
		return nil
	}
	out := make([]models.Intent, 0, len(intents))
	for _, in := range intents {
		if in.Domain == models.DomainUnknown {
			continue
		}
		in.EntityHints = nil
		out = append(out, in)
	}
	return out
}

func selectedEntities(intents []models.Intent) *models.EntityHints {
	var accounts, cards []string
	for _, in := range intents {
		if in.EntityHints == nil {
			continue
		}
		accounts = append(accounts, in.EntityHints.AccountIDs...)
		cards = append(cards, in.EntityHints.CardIDs...)
	}
	hints := &models.EntityHints{
		AccountIDs: datafetch.FilterMasked(accounts),
		CardIDs:    datafetch.FilterMasked(cards),
	}
	if hints.IsEmpty() {
		return nil
	}
	return hints
}

func clarificationContext(st *State) map[string]interface{} {
	out := map[string]interface{}{"message": st.WorkingMessage}
	if domains := domainsOf(st.Intents()); len(domains) > 0 {
		out["domains"] = domains
	}
	if !st.TimeRange.IsZero() {
		out["timeRange"] = st.TimeRange.String()
	}
	return out
}

// summarize is the deterministic digest stored in conversation memory.
func summarize(st *State) string {
	var asked []string
	for _, in := range st.Intents() {
		if in.Domain != models.DomainUnknown {
			asked = append(asked, fmt.Sprintf("%s %s", in.Domain, in.Metric))
		}
	}
	entities, transactions := 0, 0
	for _, nd := range st.Normalized {
		entities += nd.Metadata.EntityCount
		transactions += nd.Metadata.TransactionCount
	}
	return fmt.Sprintf("%s for %s: %d entities, %d transactions",
		strings.Join(asked, ", "), st.TimeRange, entities, transactions)
}
