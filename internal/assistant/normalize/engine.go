// internal/assistant/normalize/engine.go
package normalize

import (
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/common/metrics"
	"banking-assistant/internal/models"
)

// defaultPrecision applies when metadata carries no precision for a currency.
const defaultPrecision = 2

// Engine maps decoded provider documents onto the canonical entity model.
type Engine struct {
	logger logger.Logger
}

func NewEngine(log logger.Logger) *Engine {
	return &Engine{logger: logger.ForComponent(log, "normalize")}
}

// Normalize returns nil for a nil or unsupported document. The output for a given
// document is always byte-identical once marshalled.
func (e *Engine) Normalize(doc models.RawDocument) *models.NormalizedData {
	if doc == nil {
		return nil
	}

	meta := doc.Meta()
	p := precisionTable(meta.CurrencyPrecision)

	var entities []models.NormalizedEntity
	switch d := doc.(type) {
	case *models.CurrentAccountsDocument:
		entities = mapAccounts(d.Accounts, p, false)
	case *models.ForeignCurrentAccountsDocument:
		entities = mapAccounts(d.Accounts, p, true)
	case *models.CreditCardsDocument:
		entities = mapCards(d.Cards, p)
	case *models.LoansDocument:
		entities = mapLoans(d.Loans, p)
	case *models.MortgagesDocument:
		entities = mapMortgages(d.Mortgages, p)
	case *models.DepositsDocument:
		entities = mapDeposits(d.Deposits, p)
	case *models.SecuritiesDocument:
		entities = mapSecurities(d.Accounts, p)
	default:
		e.logger.Error("unsupported document variant", map[string]interface{}{"domain": doc.Domain()})
		metrics.NormalizationFailures.WithLabelValues(string(doc.Domain())).Inc()
		return nil
	}

	out := &models.NormalizedData{
		Domain:   doc.Domain(),
		Entities: entities,
		Metadata: models.DataMetadata{
			SchemaVersion:     meta.SchemaVersion,
			CurrencyPrecision: meta.CurrencyPrecision,
			Disclaimers:       meta.Disclaimers,
			EntityCount:       len(entities),
		},
	}
	for _, ent := range entities {
		out.Metadata.TransactionCount += len(ent.Transactions)
	}
	return out
}

// NormalizeBytes decodes a raw provider body and normalizes it. Malformed input is
// logged and yields nil.
func (e *Engine) NormalizeBytes(domain models.Domain, body []byte) *models.NormalizedData {
	doc, err := models.DecodeRawDocument(domain, body)
	if err != nil {
		e.logger.Warn("skipping malformed provider document", map[string]interface{}{
			"domain": domain,
			"error":  err,
		})
		metrics.NormalizationFailures.WithLabelValues(string(domain)).Inc()
		return nil
	}
	return e.Normalize(doc)
}

// NormalizeAll normalizes every document, skipping the ones that yield nil.
func (e *Engine) NormalizeAll(docs []models.RawDocument) []models.NormalizedData {
	out := make([]models.NormalizedData, 0, len(docs))
	for _, doc := range docs {
		if nd := e.Normalize(doc); nd != nil {
			out = append(out, *nd)
		}
	}
	return out
}

type precisionTable map[string]int

func (p precisionTable) of(currency string) int {
	if v, ok := p[currency]; ok && v >= 0 {
		return v
	}
	return defaultPrecision
}
