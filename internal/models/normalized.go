// internal/models/normalized.go
package models

import "encoding/json"

// NormalizedData is the canonical view of one provider document.
type NormalizedData struct {
	Domain   Domain             `json:"domain"`
	Entities []NormalizedEntity `json:"entities"`
	Metadata DataMetadata       `json:"metadata"`
}

// DataMetadata carries the provider envelope plus normalization counters.
type DataMetadata struct {
	SchemaVersion     string         `json:"schemaVersion,omitempty"`
	CurrencyPrecision map[string]int `json:"currencyPrecision,omitempty"`
	Disclaimers       []string       `json:"disclaimers,omitempty"`
	EntityCount       int            `json:"entityCount"`
	TransactionCount  int            `json:"transactionCount"`
}

// NormalizedEntity is an account, card, loan, mortgage, deposit or securities account.
type NormalizedEntity struct {
	EntityID            string                     `json:"entityId"`
	EntityType          EntityType                 `json:"entityType"`
	Nickname            string                     `json:"nickname,omitempty"`
	Currency            string                     `json:"currency,omitempty"`
	Status              string                     `json:"status,omitempty"`
	Balance             NormalizedBalance          `json:"balance"`
	Transactions        []NormalizedTransaction    `json:"transactions"`
	TransactionsSummary *TransactionsSummary       `json:"transactionsSummary,omitempty"`
	DomainSpecific      map[string]json.RawMessage `json:"domainSpecific,omitempty"`
}

// NormalizedBalance is a superset of every domain's balance figures. A nil field is
// not applicable or not supplied, which is different from zero.
//
// Values are the provider's decimal amounts decoded as float64 and passed through
// unrounded. Only TransactionsSummary rounds, to the currency precision from the
// document metadata.
type NormalizedBalance struct {
	Current   *float64 `json:"current"`
	Available *float64 `json:"available"`
	Holds     *float64 `json:"holds"`
	Pending   *float64 `json:"pending"`

	CreditLimit     *float64 `json:"creditLimit"`
	AvailableCredit *float64 `json:"availableCredit"`

	PrincipalOutstanding *float64 `json:"principalOutstanding"`
	AccruedInterest      *float64 `json:"accruedInterest"`
	TotalOutstanding     *float64 `json:"totalOutstanding"`

	MarketValue *float64 `json:"marketValue"`
	CashBalance *float64 `json:"cashBalance"`
	TotalValue  *float64 `json:"totalValue"`
}

// Credit/debit direction of a normalized transaction.
const (
	DirectionCredit = "CREDIT"
	DirectionDebit  = "DEBIT"
)

// NormalizedTransaction is the canonical transaction. Amount is signed: credits
// positive, debits negative. Like balances it is the provider decimal as float64,
// never rounded. DomainSpecific holds the transaction keys the canonical shape
// does not cover.
type NormalizedTransaction struct {
	TransactionID string   `json:"transactionId,omitempty"`
	Date          string   `json:"date,omitempty"`
	ValueDate     string   `json:"valueDate,omitempty"`
	Amount        *float64 `json:"amount"`
	Currency      string   `json:"currency,omitempty"`
	Direction     string   `json:"direction,omitempty"`
	Status        string   `json:"status,omitempty"`
	Description   string   `json:"description,omitempty"`

	Merchant     *Merchant     `json:"merchant,omitempty"`
	Category     *Category     `json:"category,omitempty"`
	Counterparty *Counterparty `json:"counterparty,omitempty"`
	References   *References   `json:"references,omitempty"`
	Enrichment   *Enrichment   `json:"enrichment,omitempty"`
	Installments *Installments `json:"installments,omitempty"`
	FXRate       *FXRate       `json:"fxRate,omitempty"`

	DomainSpecific map[string]json.RawMessage `json:"domainSpecific,omitempty"`
}

type Merchant struct {
	Name         string `json:"name,omitempty"`
	CategoryCode string `json:"categoryCode,omitempty"`
	City         string `json:"city,omitempty"`
	Country      string `json:"country,omitempty"`
}

type Category struct {
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
}

type Counterparty struct {
	Name       string `json:"name,omitempty"`
	AccountRef string `json:"accountRef,omitempty"`
}

type References struct {
	EndToEndID  string `json:"endToEndId,omitempty"`
	MandateID   string `json:"mandateId,omitempty"`
	CheckNumber string `json:"checkNumber,omitempty"`
}

type Enrichment struct {
	LogoURL     string   `json:"logoUrl,omitempty"`
	IsRecurring *bool    `json:"isRecurring,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Installments is only supplied for card transactions.
type Installments struct {
	Current              int      `json:"current"`
	Total                int      `json:"total"`
	AmountPerInstallment *float64 `json:"amountPerInstallment"`
}

// FXRate is only supplied for foreign currency account transactions.
type FXRate struct {
	Rate           *float64 `json:"rate"`
	SourceCurrency string   `json:"sourceCurrency,omitempty"`
	TargetCurrency string   `json:"targetCurrency,omitempty"`
	OriginalAmount *float64 `json:"originalAmount"`
}

// TransactionsSummary aggregates the transactions of one entity that carry an amount.
type TransactionsSummary struct {
	Count        int      `json:"count"`
	TotalCredits float64  `json:"totalCredits"`
	TotalDebits  float64  `json:"totalDebits"`
	Net          float64  `json:"net"`
	Min          *float64 `json:"min"`
	Max          *float64 `json:"max"`
	Average      *float64 `json:"average"`
	FirstDate    string   `json:"firstDate,omitempty"`
	LastDate     string   `json:"lastDate,omitempty"`
}
