// internal/assistant/datafetch/coordinator.go
package datafetch

import (
	"context"
	"strings"
	"time"

	"banking-assistant/internal/assistant/clarification"
	apperrors "banking-assistant/internal/common/errors"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/common/metrics"
	"banking-assistant/internal/models"
)

// Provider reads one domain's document for a customer.
type Provider interface {
	Fetch(ctx context.Context, req models.FetchRequest) (models.RawDocument, error)
}

// Result is one successful per-intent fetch.
type Result struct {
	Intent   models.Intent
	Request  models.FetchRequest
	Document models.RawDocument
}

// maskMarkers identify display values such as "**** 1234" that cannot be used as
// provider filter keys.
var maskMarkers = []string{"*", "•", "●", "XXXX", "xxxx"}

// Coordinator maps resolved intents onto provider reads.
type Coordinator struct {
	providers map[models.Domain]Provider
	logger    logger.Logger
}

func NewCoordinator(providers map[models.Domain]Provider, log logger.Logger) *Coordinator {
	return &Coordinator{
		providers: providers,
		logger:    logger.ForComponent(log, "datafetch"),
	}
}

// Fetch issues one provider read per non-UNKNOWN intent. A failing intent is logged
// and skipped; the remaining intents still run.
func (c *Coordinator) Fetch(ctx context.Context, customerID string, intents []models.Intent, tr models.TimeRange) []Result {
	if models.AllUnknown(intents) {
		return nil
	}

	results := make([]Result, 0, len(intents))
	for _, intent := range intents {
		if intent.Domain == models.DomainUnknown {
			continue
		}
		if err := ctx.Err(); err != nil {
			c.logger.Warn("fetch cancelled, skipping remaining intents", map[string]interface{}{
				"customerId": customerID,
				"error":      err,
			})
			break
		}

		req := BuildRequest(customerID, intent, tr)
		log := c.logger.With(map[string]interface{}{
			"customerId": customerID,
			"domain":     intent.Domain,
			"metric":     intent.Metric,
		})

		provider, ok := c.providers[intent.Domain]
		if !ok || provider == nil {
			metrics.ProviderFetchFailures.WithLabelValues(string(intent.Domain)).Inc()
			log.Warn("skipping intent", map[string]interface{}{
				"error": apperrors.NewProviderNotConfiguredError(string(intent.Domain)),
			})
			continue
		}

		start := time.Now()
		doc, err := provider.Fetch(ctx, req)
		if err != nil {
			metrics.ProviderFetchFailures.WithLabelValues(string(intent.Domain)).Inc()
			log.Warn("provider fetch failed, skipping intent", map[string]interface{}{
				"error":    apperrors.NewProviderFetchFailedError(string(intent.Domain), err),
				"duration": time.Since(start).String(),
			})
			continue
		}
		if doc == nil {
			log.Warn("provider returned no document, skipping intent", nil)
			continue
		}

		log.Debug("provider fetch completed", map[string]interface{}{
			"filtered": len(req.EntityIDs) > 0,
			"duration": time.Since(start).String(),
		})
		results = append(results, Result{Intent: intent, Request: req, Document: doc})
	}
	return results
}

// BuildRequest translates one intent into a provider request.
func BuildRequest(customerID string, intent models.Intent, tr models.TimeRange) models.FetchRequest {
	req := models.FetchRequest{
		CustomerID:          customerID,
		Domain:              intent.Domain,
		TimeRange:           tr,
		IncludeTransactions: intent.Metric.NeedsTransactions(),
		IncludePositions:    intent.Domain == models.DomainSecurities && intent.Metric != models.MetricBalance,
	}

	if h := intent.EntityHints; h != nil {
		ids := h.AccountIDs
		if intent.Domain == models.DomainCreditCards {
			ids = append(append([]string(nil), h.CardIDs...), h.AccountIDs...)
		}
		req.EntityIDs = FilterMasked(ids)
	}
	if alias, ok := intent.Parameters[clarification.ParamAccountAlias].(string); ok && len(req.EntityIDs) == 0 {
		req.AccountAlias = alias
	}
	return req
}

// FilterMasked drops masked display identifiers. It returns nil when nothing usable
// remains so the provider returns every entity.
func FilterMasked(ids []string) []string {
	var out []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || IsMasked(id) || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// IsMasked reports whether id contains a masking marker.
func IsMasked(id string) bool {
	for _, m := range maskMarkers {
		if strings.Contains(id, m) {
			return true
		}
	}
	return false
}
