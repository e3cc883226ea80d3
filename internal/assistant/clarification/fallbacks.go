// internal/assistant/clarification/fallbacks.go
package clarification

import (
	"time"

	"banking-assistant/internal/models"
)

// ParamAccountAlias carries the conventional account alias chosen by a fallback.
const ParamAccountAlias = "accountAlias"

// ApplyFallbacks substitutes context-specific defaults for a resolution that is still
// ambiguous after a clarification answer, so the turn proceeds instead of asking
// again. The input is not modified.
//
//	time range -> first of the month through today
//	account    -> the main account alias
//	metric     -> the domain default metric
//	domain     -> the fallback domain
func (c *Coordinator) ApplyFallbacks(res *models.IntentResolution, grounding *models.ClarificationGrounding, now time.Time, tz *time.Location) *models.IntentResolution {
	out := cloneResolution(res)
	out.NeedsClarification = false

	reason := ParseReason(out.ClarificationNeeded)
	if out.ClarificationNeeded == "" && grounding != nil {
		reason = reasonForAnswerType(grounding.ExpectedAnswerType)
	}
	out.ClarificationNeeded = ""

	if tz == nil {
		tz = time.UTC
	}
	local := now.In(tz)

	if models.AllUnknown(out.Intents) {
		out.Intents = []models.Intent{{Domain: c.fallbackDomain, Metric: c.fallbackDomain.DefaultMetric()}}
	}

	for i := range out.Intents {
		in := &out.Intents[i]
		if in.Domain == models.DomainUnknown {
			continue
		}
		if !in.Metric.IsKnown() || reason == ReasonMetric {
			in.Metric = in.Domain.DefaultMetric()
		}
		switch reason {
		case ReasonTimeRange:
			first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, tz)
			in.TimeRangeHint = models.NewTimeRange(first, local).String()
		case ReasonAccountSelection:
			if in.Parameters == nil {
				in.Parameters = map[string]interface{}{}
			}
			in.Parameters[ParamAccountAlias] = c.mainAccountAlias
		}
	}
	return out
}

func reasonForAnswerType(t string) Reason {
	switch t {
	case AnswerDomain:
		return ReasonDomain
	case AnswerMetric:
		return ReasonMetric
	case AnswerDateRange:
		return ReasonTimeRange
	case AnswerAccount:
		return ReasonAccountSelection
	}
	return ReasonOther
}

func cloneResolution(res *models.IntentResolution) *models.IntentResolution {
	if res == nil {
		return &models.IntentResolution{}
	}
	out := *res
	out.Intents = make([]models.Intent, len(res.Intents))
	for i, in := range res.Intents {
		cp := in
		if in.Parameters != nil {
			cp.Parameters = make(map[string]interface{}, len(in.Parameters))
			for k, v := range in.Parameters {
				cp.Parameters[k] = v
			}
		}
		out.Intents[i] = cp
	}
	return &out
}
