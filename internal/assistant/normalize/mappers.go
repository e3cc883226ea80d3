// internal/assistant/normalize/mappers.go
package normalize

import (
	"encoding/json"

	"banking-assistant/internal/models"
)

// One mapping function per domain. Each fills only the balance fields that apply to
// its entity type; everything else stays nil.

func mapAccounts(accounts []models.RawAccount, p precisionTable, foreign bool) []models.NormalizedEntity {
	out := make([]models.NormalizedEntity, 0, len(accounts))
	for _, a := range accounts {
		ent := models.NormalizedEntity{
			EntityID:       a.AccountID,
			EntityType:     models.EntityTypeAccount,
			Nickname:       a.Nickname,
			Currency:       a.Currency,
			Status:         a.Status,
			DomainSpecific: a.Extras,
		}
		if b := a.Balances; b != nil {
			ent.Balance.Current = copyFloat(b.Current)
			ent.Balance.Available = copyFloat(b.Available)
			ent.Balance.Holds = copyFloat(b.Holds)
			ent.DomainSpecific = withNested(ent.DomainSpecific, "balances", b.Extras)
		}
		ent.Transactions = mapAccountTransactions(a.Transactions, foreign)
		ent.TransactionsSummary = summarize(ent.Transactions, p.of(a.Currency))
		out = append(out, ent)
	}
	return out
}

func mapCards(cards []models.RawCard, p precisionTable) []models.NormalizedEntity {
	out := make([]models.NormalizedEntity, 0, len(cards))
	for _, c := range cards {
		ent := models.NormalizedEntity{
			EntityID:       c.CardID,
			EntityType:     models.EntityTypeCard,
			Nickname:       c.Nickname,
			Currency:       c.Currency,
			Status:         c.Status,
			DomainSpecific: c.Extras,
		}
		if b := c.CurrentBalance; b != nil {
			ent.Balance.Current = copyFloat(b.PostedBalance)
			ent.Balance.Pending = copyFloat(b.PendingAmount)
			ent.DomainSpecific = withNested(ent.DomainSpecific, "currentBalance", b.Extras)
		}
		if l := c.Limits; l != nil {
			ent.Balance.CreditLimit = copyFloat(l.CreditLimit)
			ent.Balance.AvailableCredit = copyFloat(l.AvailableCredit)
			ent.DomainSpecific = withNested(ent.DomainSpecific, "limits", l.Extras)
		}
		ent.Transactions = mapCardTransactions(c.Transactions)
		ent.TransactionsSummary = summarize(ent.Transactions, p.of(c.Currency))
		out = append(out, ent)
	}
	return out
}

func mapLoans(loans []models.RawLoan, p precisionTable) []models.NormalizedEntity {
	out := make([]models.NormalizedEntity, 0, len(loans))
	for _, l := range loans {
		out = append(out, mapFacility(l.LoanID, models.EntityTypeLoan, l.RawFacility, p))
	}
	return out
}

func mapMortgages(mortgages []models.RawMortgage, p precisionTable) []models.NormalizedEntity {
	out := make([]models.NormalizedEntity, 0, len(mortgages))
	for _, m := range mortgages {
		out = append(out, mapFacility(m.MortgageID, models.EntityTypeMortgage, m.RawFacility, p))
	}
	return out
}

func mapDeposits(deposits []models.RawDeposit, p precisionTable) []models.NormalizedEntity {
	out := make([]models.NormalizedEntity, 0, len(deposits))
	for _, d := range deposits {
		out = append(out, mapFacility(d.DepositID, models.EntityTypeDeposit, d.RawFacility, p))
	}
	return out
}

func mapFacility(id string, entityType models.EntityType, f models.RawFacility, p precisionTable) models.NormalizedEntity {
	ent := models.NormalizedEntity{
		EntityID:       id,
		EntityType:     entityType,
		Nickname:       f.Nickname,
		Currency:       f.Currency,
		Status:         f.Status,
		DomainSpecific: f.Extras,
	}
	if b := f.Balances; b != nil {
		ent.Balance.PrincipalOutstanding = copyFloat(b.PrincipalOutstanding)
		ent.Balance.AccruedInterest = copyFloat(b.AccruedInterest)
		ent.Balance.TotalOutstanding = copyFloat(b.TotalOutstanding)
		ent.DomainSpecific = withNested(ent.DomainSpecific, "balances", b.Extras)
	}
	ent.Transactions = mapAccountTransactions(f.Transactions, false)
	ent.TransactionsSummary = summarize(ent.Transactions, p.of(f.Currency))
	return ent
}

func mapSecurities(accounts []models.RawSecuritiesAccount, p precisionTable) []models.NormalizedEntity {
	out := make([]models.NormalizedEntity, 0, len(accounts))
	for _, s := range accounts {
		ent := models.NormalizedEntity{
			EntityID:       s.SecuritiesAccountID,
			EntityType:     models.EntityTypeSecuritiesAccount,
			Nickname:       s.Nickname,
			Currency:       s.BaseCurrency,
			Status:         s.Status,
			DomainSpecific: s.Extras,
		}
		if v := s.Valuation; v != nil {
			ent.Balance.MarketValue = copyFloat(v.MarketValueBase)
			ent.Balance.CashBalance = copyFloat(v.CashBalanceBase)
			ent.Balance.TotalValue = copyFloat(v.TotalValueBase)
			ent.DomainSpecific = withNested(ent.DomainSpecific, "valuation", v.Extras)
		}
		ent.Transactions = mapAccountTransactions(s.Transactions, false)
		ent.TransactionsSummary = summarize(ent.Transactions, p.of(s.BaseCurrency))
		out = append(out, ent)
	}
	return out
}

// withNested returns domainSpecific plus the leftover keys of a nested balance object,
// stored as one JSON object under the provider's key for it. The input map is not
// modified because it still belongs to the raw document.
func withNested(domainSpecific map[string]json.RawMessage, key string, leftover map[string]json.RawMessage) map[string]json.RawMessage {
	if len(leftover) == 0 {
		return domainSpecific
	}
	encoded, err := json.Marshal(leftover)
	if err != nil {
		return domainSpecific
	}
	out := make(map[string]json.RawMessage, len(domainSpecific)+1)
	for k, v := range domainSpecific {
		out[k] = v
	}
	out[key] = encoded
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
