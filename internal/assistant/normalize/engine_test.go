package normalize

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixtures = map[models.Domain]string{
	models.DomainCurrentAccounts:        "current_accounts.json",
	models.DomainForeignCurrentAccounts: "foreign_current_accounts.json",
	models.DomainCreditCards:            "credit_cards.json",
	models.DomainLoans:                  "loans.json",
	models.DomainMortgages:              "mortgages.json",
	models.DomainDeposits:               "deposits.json",
	models.DomainSecurities:             "securities.json",
}

func loadFixture(t *testing.T, domain models.Domain) []byte {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", fixtures[domain]))
	require.NoError(t, err)
	return body
}

func normalizeFixture(t *testing.T, domain models.Domain) *models.NormalizedData {
	t.Helper()
	nd := NewEngine(logger.NewTestLogger(t)).NormalizeBytes(domain, loadFixture(t, domain))
	require.NotNil(t, nd)
	return nd
}

func f(v float64) *float64 { return &v }

// ==========================
// Determinism
// ==========================

func TestNormalize_DeterministicForAllDomains(t *testing.T) {
	engine := NewEngine(logger.NewNoOpLogger())

	for _, domain := range models.BankingDomains {
		t.Run(string(domain), func(t *testing.T) {
			body := loadFixture(t, domain)

			first := engine.NormalizeBytes(domain, body)
			second := engine.NormalizeBytes(domain, body)
			require.NotNil(t, first)
			require.NotNil(t, second)

			a, err := json.Marshal(first)
			require.NoError(t, err)
			b, err := json.Marshal(second)
			require.NoError(t, err)

			assert.Equal(t, string(a), string(b))
			assert.Equal(t, domain, first.Domain)
			assert.Equal(t, len(first.Entities), first.Metadata.EntityCount)
		})
	}
}

// ==========================
// Per-domain mapping
// ==========================

func TestNormalize_CurrentAccounts(t *testing.T) {
	nd := normalizeFixture(t, models.DomainCurrentAccounts)
	require.Len(t, nd.Entities, 2)
	assert.Equal(t, "1.4", nd.Metadata.SchemaVersion)
	assert.Equal(t, 3, nd.Metadata.TransactionCount)

	acc := nd.Entities[0]
	assert.Equal(t, "acc-001", acc.EntityID)
	assert.Equal(t, models.EntityTypeAccount, acc.EntityType)
	assert.Equal(t, f(1520.35), acc.Balance.Current)
	assert.Equal(t, f(1400), acc.Balance.Available)
	assert.Equal(t, f(120.35), acc.Balance.Holds)
	assert.Nil(t, acc.Balance.CreditLimit)
	assert.Nil(t, acc.Balance.MarketValue)
	assert.Nil(t, acc.Balance.PrincipalOutstanding)

	require.Len(t, acc.Transactions, 3)
	grocery := acc.Transactions[0]
	assert.Equal(t, "2025-12-02", grocery.Date)
	assert.Equal(t, f(-42.5), grocery.Amount)
	assert.Equal(t, models.DirectionDebit, grocery.Direction)
	require.NotNil(t, grocery.Merchant)
	assert.Equal(t, "5411", grocery.Merchant.CategoryCode)
	assert.Equal(t, "SUPERMARKET", grocery.Category.Secondary)
	require.NotNil(t, grocery.Enrichment.IsRecurring)
	assert.False(t, *grocery.Enrichment.IsRecurring)
	assert.Nil(t, grocery.Installments)
	assert.Nil(t, grocery.FXRate)

	salary := acc.Transactions[1]
	assert.Equal(t, f(2500), salary.Amount)
	assert.Equal(t, "2025-12-04", salary.ValueDate)
	assert.Equal(t, "DE02120300000000202051", salary.Counterparty.AccountRef)
	assert.Equal(t, "E2E-778", salary.References.EndToEndID)

	zero := acc.Transactions[2]
	require.NotNil(t, zero.Amount)
	assert.Equal(t, 0.0, *zero.Amount)

	sum := acc.TransactionsSummary
	require.NotNil(t, sum)
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, 2500.0, sum.TotalCredits)
	assert.Equal(t, 42.5, sum.TotalDebits)
	assert.Equal(t, 2457.5, sum.Net)
	assert.Equal(t, f(-42.5), sum.Min)
	assert.Equal(t, f(2500), sum.Max)
	assert.Equal(t, f(819.17), sum.Average)
	assert.Equal(t, "2025-12-02", sum.FirstDate)
	assert.Equal(t, "2025-12-09", sum.LastDate)

	assert.JSONEq(t, `"CHECKING"`, string(acc.DomainSpecific["accountType"]))
	assert.Contains(t, acc.DomainSpecific, "maskedIban")
	assert.NotContains(t, acc.DomainSpecific, "balances")
}

func TestNormalize_NullAndZeroStayDistinct(t *testing.T) {
	nd := normalizeFixture(t, models.DomainCurrentAccounts)
	savings := nd.Entities[1]

	require.NotNil(t, savings.Balance.Current)
	assert.Equal(t, 0.0, *savings.Balance.Current)
	assert.Nil(t, savings.Balance.Available)
	assert.Nil(t, savings.Balance.Holds)
	assert.NotNil(t, savings.Transactions)
	assert.Empty(t, savings.Transactions)
	assert.Nil(t, savings.TransactionsSummary)

	raw, err := json.Marshal(savings.Balance)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"current":0`)
	assert.Contains(t, string(raw), `"available":null`)
}

func TestNormalize_ForeignAccountsKeepFXRate(t *testing.T) {
	nd := normalizeFixture(t, models.DomainForeignCurrentAccounts)
	acc := nd.Entities[0]

	assert.Equal(t, "USD", acc.Currency)
	tx := acc.Transactions[0]
	require.NotNil(t, tx.FXRate)
	assert.Equal(t, f(1.0842), tx.FXRate.Rate)
	assert.Equal(t, "EUR", tx.FXRate.SourceCurrency)
	assert.Equal(t, f(92.23), tx.FXRate.OriginalAmount)
	assert.Equal(t, "2025-12-05", tx.ValueDate)
	assert.Contains(t, acc.DomainSpecific, "homeCurrency")
}

func TestNormalize_DomesticAccountsDropFXRate(t *testing.T) {
	body := []byte(`{"data":{"accounts":[{"accountId":"a","currency":"EUR","transactions":[
		{"transactionId":"t","bookingDate":"2025-12-01","amount":5,"creditDebitIndicator":"CREDIT",
		 "fxRate":{"exchangeRate":1.1}}]}]}}`)

	nd := NewEngine(logger.NewNoOpLogger()).NormalizeBytes(models.DomainCurrentAccounts, body)
	require.NotNil(t, nd)
	assert.Nil(t, nd.Entities[0].Transactions[0].FXRate)
}

func TestNormalize_CreditCards(t *testing.T) {
	nd := normalizeFixture(t, models.DomainCreditCards)
	card := nd.Entities[0]

	assert.Equal(t, models.EntityTypeCard, card.EntityType)
	assert.Equal(t, f(640), card.Balance.Current)
	assert.Equal(t, f(35.9), card.Balance.Pending)
	assert.Equal(t, f(5000), card.Balance.CreditLimit)
	assert.Equal(t, f(4324.1), card.Balance.AvailableCredit)
	assert.Nil(t, card.Balance.Available)
	assert.Nil(t, card.Balance.TotalOutstanding)

	purchase := card.Transactions[0]
	assert.Equal(t, "2025-12-01", purchase.Date)
	assert.Equal(t, "2025-12-02", purchase.ValueDate)
	assert.Equal(t, f(-320), purchase.Amount)
	require.NotNil(t, purchase.Installments)
	assert.Equal(t, 1, purchase.Installments.Current)
	assert.Equal(t, 3, purchase.Installments.Total)
	assert.Equal(t, f(106.67), purchase.Installments.AmountPerInstallment)

	refund := card.Transactions[1]
	assert.Equal(t, models.DirectionCredit, refund.Direction)
	assert.Equal(t, f(50), refund.Amount)

	assert.Equal(t, -270.0, card.TransactionsSummary.Net)
	assert.Equal(t, f(-135), card.TransactionsSummary.Average)
	for _, key := range []string{"maskedPan", "productName", "statement"} {
		assert.Contains(t, card.DomainSpecific, key)
	}
}

func TestNormalize_CreditFacilities(t *testing.T) {
	tests := []struct {
		domain     models.Domain
		entityType models.EntityType
		id         string
		principal  *float64
		accrued    *float64
		total      *float64
		extras     []string
	}{
		{models.DomainLoans, models.EntityTypeLoan, "loan-9", f(12000), f(48.2), f(12048.2), []string{"loanType", "interestRate", "maturityDate"}},
		{models.DomainMortgages, models.EntityTypeMortgage, "mtg-1", f(250000), nil, f(250000), []string{"propertyAddress", "fixedRateUntil"}},
		{models.DomainDeposits, models.EntityTypeDeposit, "dep-3", f(10000), f(183.33), f(10183.33), []string{"termMonths", "interestRate", "maturityDate"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.domain), func(t *testing.T) {
			ent := normalizeFixture(t, tt.domain).Entities[0]

			assert.Equal(t, tt.id, ent.EntityID)
			assert.Equal(t, tt.entityType, ent.EntityType)
			assert.Equal(t, tt.principal, ent.Balance.PrincipalOutstanding)
			assert.Equal(t, tt.accrued, ent.Balance.AccruedInterest)
			assert.Equal(t, tt.total, ent.Balance.TotalOutstanding)
			assert.Nil(t, ent.Balance.Current)
			assert.Nil(t, ent.Balance.CreditLimit)
			for _, key := range tt.extras {
				assert.Contains(t, ent.DomainSpecific, key)
			}
		})
	}
}

func TestNormalize_Securities(t *testing.T) {
	ent := normalizeFixture(t, models.DomainSecurities).Entities[0]

	assert.Equal(t, models.EntityTypeSecuritiesAccount, ent.EntityType)
	assert.Equal(t, "EUR", ent.Currency)
	assert.Equal(t, f(18250.4), ent.Balance.MarketValue)
	assert.Equal(t, f(1200), ent.Balance.CashBalance)
	assert.Equal(t, f(19450.4), ent.Balance.TotalValue)
	assert.Nil(t, ent.Balance.Current)
	assert.Equal(t, f(-1100), ent.Transactions[0].Amount)

	var positions []map[string]interface{}
	require.NoError(t, json.Unmarshal(ent.DomainSpecific["positions"], &positions))
	assert.Len(t, positions, 2)
	assert.Equal(t, "IE00B4L5Y983", positions[0]["isin"])
}

func TestNormalize_OnlySummariesRound(t *testing.T) {
	body := []byte(`{"data":{"accounts":[{"accountId":"a1","currency":"EUR","balances":{"current":1.23456},"transactions":[
		{"transactionId":"t1","bookingDate":"2025-12-01","amount":10.125,"creditDebitIndicator":"DEBIT"}]}]},
		"metadata":{"currencyPrecision":{"EUR":2}}}`)

	nd := NewEngine(logger.NewNoOpLogger()).NormalizeBytes(models.DomainCurrentAccounts, body)
	require.NotNil(t, nd)
	ent := nd.Entities[0]

	assert.Equal(t, f(1.23456), ent.Balance.Current)
	assert.Equal(t, f(-10.125), ent.Transactions[0].Amount)
	require.NotNil(t, ent.TransactionsSummary)
	assert.Equal(t, 10.13, ent.TransactionsSummary.TotalDebits)
	assert.Equal(t, f(-10.13), ent.TransactionsSummary.Min)
}

// ==========================
// Unmapped field passthrough
// ==========================

const (
	accountTxWithExtras = `{"transactionId":"t1","bookingDate":"2025-12-01","amount":5,"creditDebitIndicator":"DEBIT",` +
		`"runningBalance":1995.5,"channel":"POS"}`
	cardTxWithExtras = `{"transactionId":"t1","transactionDate":"2025-12-01","amount":5,"transactionType":"PURCHASE",` +
		`"runningBalance":1995.5,"channel":"POS","counterparty":{"name":"Shop","iban":"DE44500105175407324931"},` +
		`"references":{"endToEndId":"E2E-1"}}`
)

func TestNormalize_NestedAndTransactionFieldsPassThrough(t *testing.T) {
	tests := []struct {
		domain models.Domain
		entity string
		nested map[string]string
	}{
		{
			domain: models.DomainCurrentAccounts,
			entity: `{"accountId":"a1","currency":"EUR","balances":{"current":2000.5,"overdraftLimit":500,"asOf":"2025-12-01T08:00:00Z"},"transactions":[` + accountTxWithExtras + `]}`,
			nested: map[string]string{"balances": `{"overdraftLimit":500,"asOf":"2025-12-01T08:00:00Z"}`},
		},
		{
			domain: models.DomainForeignCurrentAccounts,
			entity: `{"accountId":"a1","currency":"USD","balances":{"current":2000.5,"asOf":"2025-12-01"},"transactions":[` + accountTxWithExtras + `]}`,
			nested: map[string]string{"balances": `{"asOf":"2025-12-01"}`},
		},
		{
			domain: models.DomainCreditCards,
			entity: `{"cardId":"c1","currency":"EUR","currentBalance":{"postedBalance":640,"statementBalance":600},` +
				`"limits":{"creditLimit":5000,"cashLimit":1000},"transactions":[` + cardTxWithExtras + `]}`,
			nested: map[string]string{
				"currentBalance": `{"statementBalance":600}`,
				"limits":         `{"cashLimit":1000}`,
			},
		},
		{
			domain: models.DomainLoans,
			entity: `{"loanId":"l1","currency":"EUR","balances":{"principalOutstanding":12000,"nextInstallmentDue":"2026-01-01"},"transactions":[` + accountTxWithExtras + `]}`,
			nested: map[string]string{"balances": `{"nextInstallmentDue":"2026-01-01"}`},
		},
		{
			domain: models.DomainMortgages,
			entity: `{"mortgageId":"m1","currency":"EUR","balances":{"totalOutstanding":250000,"escrow":1200},"transactions":[` + accountTxWithExtras + `]}`,
			nested: map[string]string{"balances": `{"escrow":1200}`},
		},
		{
			domain: models.DomainDeposits,
			entity: `{"depositId":"d1","currency":"EUR","balances":{"principalOutstanding":10000,"penaltyIfBrokenToday":50},"transactions":[` + accountTxWithExtras + `]}`,
			nested: map[string]string{"balances": `{"penaltyIfBrokenToday":50}`},
		},
		{
			domain: models.DomainSecurities,
			entity: `{"securitiesAccountId":"s1","baseCurrency":"EUR","valuation":{"marketValueBase":18250.4,"unrealizedGainBase":812.1},"transactions":[` + accountTxWithExtras + `]}`,
			nested: map[string]string{"valuation": `{"unrealizedGainBase":812.1}`},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.domain), func(t *testing.T) {
			body := []byte(fmt.Sprintf(`{"data":{%q:[%s]}}`, models.DataKey(tt.domain), tt.entity))

			nd := NewEngine(logger.NewTestLogger(t)).NormalizeBytes(tt.domain, body)
			require.NotNil(t, nd)
			require.Len(t, nd.Entities, 1)
			ent := nd.Entities[0]

			for key, want := range tt.nested {
				require.Contains(t, ent.DomainSpecific, key)
				assert.JSONEq(t, want, string(ent.DomainSpecific[key]))
			}

			require.Len(t, ent.Transactions, 1)
			tx := ent.Transactions[0]
			assert.JSONEq(t, `1995.5`, string(tx.DomainSpecific["runningBalance"]))
			assert.JSONEq(t, `"POS"`, string(tx.DomainSpecific["channel"]))
			assert.NotContains(t, tx.DomainSpecific, "amount")
			assert.Equal(t, f(-5), tx.Amount)

			out, err := json.Marshal(nd)
			require.NoError(t, err)
			for _, field := range []string{"runningBalance", "channel"} {
				assert.Contains(t, string(out), fmt.Sprintf("%q", field))
			}
		})
	}
}

func TestNormalize_CardTransactionsKeepCounterpartyAndReferences(t *testing.T) {
	body := []byte(`{"data":{"cards":[{"cardId":"c1","currency":"EUR","transactions":[` + cardTxWithExtras + `]}]}}`)

	nd := NewEngine(logger.NewNoOpLogger()).NormalizeBytes(models.DomainCreditCards, body)
	require.NotNil(t, nd)
	tx := nd.Entities[0].Transactions[0]

	require.NotNil(t, tx.Counterparty)
	assert.Equal(t, "Shop", tx.Counterparty.Name)
	assert.Equal(t, "DE44500105175407324931", tx.Counterparty.AccountRef)
	require.NotNil(t, tx.References)
	assert.Equal(t, "E2E-1", tx.References.EndToEndID)
	assert.NotContains(t, tx.DomainSpecific, "counterparty")
}

func TestNormalize_NestedExtrasLeaveRawDocumentUntouched(t *testing.T) {
	body := []byte(`{"data":{"accounts":[{"accountId":"a1","accountType":"CHECKING","balances":{"current":1,"asOf":"2025-12-01"}}]}}`)
	doc, err := models.DecodeRawDocument(models.DomainCurrentAccounts, body)
	require.NoError(t, err)

	nd := NewEngine(logger.NewNoOpLogger()).Normalize(doc)
	require.NotNil(t, nd)
	assert.Contains(t, nd.Entities[0].DomainSpecific, "balances")
	assert.Contains(t, nd.Entities[0].DomainSpecific, "accountType")

	raw := doc.(*models.CurrentAccountsDocument).Accounts[0]
	assert.NotContains(t, raw.Extras, "balances")
	assert.NotContains(t, raw.Balances.Extras, "current")
}

// ==========================
// Malformed input
// ==========================

func TestNormalize_MalformedInputYieldsNil(t *testing.T) {
	engine := NewEngine(logger.NewTestLogger(t))

	assert.Nil(t, engine.Normalize(nil))
	assert.Nil(t, engine.NormalizeBytes(models.DomainLoans, []byte(`{"data":{"cards":[]}}`)))
	assert.Nil(t, engine.NormalizeBytes(models.DomainLoans, []byte(`not json`)))
}

func TestNormalizeAll_SkipsNil(t *testing.T) {
	engine := NewEngine(logger.NewNoOpLogger())
	doc, err := models.DecodeRawDocument(models.DomainLoans, loadFixture(t, models.DomainLoans))
	require.NoError(t, err)

	out := engine.NormalizeAll([]models.RawDocument{doc, nil})
	require.Len(t, out, 1)
	assert.Equal(t, models.DomainLoans, out[0].Domain)
}
