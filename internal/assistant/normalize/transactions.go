// internal/assistant/normalize/transactions.go
package normalize

import (
	"math"
	"strings"

	"banking-assistant/internal/models"
)

// Card transaction types that move money towards the customer.
var cardCreditTypes = map[string]bool{
	"PAYMENT":  true,
	"REFUND":   true,
	"CASHBACK": true,
	"REVERSAL": true,
	"CREDIT":   true,
}

// mapAccountTransactions handles every non-card domain. fxRate is only kept for
// foreign currency accounts.
func mapAccountTransactions(txs []models.RawAccountTransaction, withFX bool) []models.NormalizedTransaction {
	out := make([]models.NormalizedTransaction, 0, len(txs))
	for _, t := range txs {
		direction := directionFromIndicator(t.CreditDebitIndicator, t.Amount)
		nt := models.NormalizedTransaction{
			TransactionID:  t.TransactionID,
			Date:           t.BookingDate,
			ValueDate:      t.ValueDate,
			Amount:         signedAmount(t.Amount, direction),
			Currency:       t.Currency,
			Direction:      direction,
			Status:         t.Status,
			Description:    t.Description,
			Merchant:       mapMerchant(t.Merchant),
			Category:       mapCategory(t.Category),
			Counterparty:   mapCounterparty(t.Counterparty),
			References:     mapReferences(t.References),
			Enrichment:     mapEnrichment(t.Enrichment),
			DomainSpecific: t.Extras,
		}
		if withFX {
			nt.FXRate = mapFXRate(t.FXRate)
		}
		out = append(out, nt)
	}
	return out
}

// mapCardTransactions resolves transactionDate/postingDate into date/valueDate.
func mapCardTransactions(txs []models.RawCardTransaction) []models.NormalizedTransaction {
	out := make([]models.NormalizedTransaction, 0, len(txs))
	for _, t := range txs {
		direction := directionFromCardType(t.TransactionType, t.Amount)
		out = append(out, models.NormalizedTransaction{
			TransactionID:  t.TransactionID,
			Date:           t.TransactionDate,
			ValueDate:      t.PostingDate,
			Amount:         signedAmount(t.Amount, direction),
			Currency:       t.Currency,
			Direction:      direction,
			Status:         t.Status,
			Description:    t.Description,
			Merchant:       mapMerchant(t.Merchant),
			Category:       mapCategory(t.Category),
			Counterparty:   mapCounterparty(t.Counterparty),
			References:     mapReferences(t.References),
			Enrichment:     mapEnrichment(t.Enrichment),
			Installments:   mapInstallments(t.Installments),
			DomainSpecific: t.Extras,
		})
	}
	return out
}

func directionFromIndicator(indicator string, amount *float64) string {
	switch strings.ToUpper(strings.TrimSpace(indicator)) {
	case "CREDIT", "CRDT", "CR":
		return models.DirectionCredit
	case "DEBIT", "DBIT", "DR":
		return models.DirectionDebit
	}
	return directionFromSign(amount)
}

func directionFromCardType(txType string, amount *float64) string {
	t := strings.ToUpper(strings.TrimSpace(txType))
	if t == "" {
		return directionFromSign(amount)
	}
	if cardCreditTypes[t] {
		return models.DirectionCredit
	}
	return models.DirectionDebit
}

func directionFromSign(amount *float64) string {
	if amount == nil {
		return ""
	}
	if *amount < 0 {
		return models.DirectionDebit
	}
	return models.DirectionCredit
}

// signedAmount makes credits positive and debits negative. Nil stays nil.
func signedAmount(amount *float64, direction string) *float64 {
	if amount == nil {
		return nil
	}
	v := math.Abs(*amount)
	if direction == models.DirectionDebit && v != 0 {
		v = -v
	}
	return &v
}

// ==========================
// Sub-records
// ==========================

func mapMerchant(m *models.RawMerchant) *models.Merchant {
	if m == nil || (m.Name == "" && m.MCC == "" && m.City == "" && m.Country == "") {
		return nil
	}
	return &models.Merchant{Name: m.Name, CategoryCode: m.MCC, City: m.City, Country: m.Country}
}

func mapCategory(c *models.RawCategory) *models.Category {
	if c == nil || (c.Primary == "" && c.Detailed == "") {
		return nil
	}
	return &models.Category{Primary: c.Primary, Secondary: c.Detailed}
}

func mapCounterparty(c *models.RawCounterparty) *models.Counterparty {
	if c == nil {
		return nil
	}
	ref := c.IBAN
	if ref == "" {
		ref = c.AccountNumber
	}
	if c.Name == "" && ref == "" {
		return nil
	}
	return &models.Counterparty{Name: c.Name, AccountRef: ref}
}

func mapReferences(r *models.RawReferences) *models.References {
	if r == nil || (r.EndToEndID == "" && r.MandateID == "" && r.CheckNumber == "") {
		return nil
	}
	return &models.References{EndToEndID: r.EndToEndID, MandateID: r.MandateID, CheckNumber: r.CheckNumber}
}

func mapEnrichment(e *models.RawEnrichment) *models.Enrichment {
	if e == nil || (e.LogoURL == "" && e.Recurring == nil && len(e.Tags) == 0) {
		return nil
	}
	out := &models.Enrichment{LogoURL: e.LogoURL}
	if e.Recurring != nil {
		r := *e.Recurring
		out.IsRecurring = &r
	}
	if len(e.Tags) > 0 {
		out.Tags = append([]string(nil), e.Tags...)
	}
	return out
}

func mapInstallments(i *models.RawInstallments) *models.Installments {
	if i == nil || (i.TotalInstallments == 0 && i.InstallmentNumber == 0 && i.InstallmentAmount == nil) {
		return nil
	}
	return &models.Installments{
		Current:              i.InstallmentNumber,
		Total:                i.TotalInstallments,
		AmountPerInstallment: copyFloat(i.InstallmentAmount),
	}
}

func mapFXRate(f *models.RawFXRate) *models.FXRate {
	if f == nil || (f.ExchangeRate == nil && f.SourceCurrency == "" && f.TargetCurrency == "" && f.InstructedAmount == nil) {
		return nil
	}
	return &models.FXRate{
		Rate:           copyFloat(f.ExchangeRate),
		SourceCurrency: f.SourceCurrency,
		TargetCurrency: f.TargetCurrency,
		OriginalAmount: copyFloat(f.InstructedAmount),
	}
}
