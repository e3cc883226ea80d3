// internal/models/raw_documents.go
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var ErrMalformedDocument = errors.New("MALFORMED_PROVIDER_DOCUMENT")

// RawDocument is one decoded provider response. Exactly one variant exists per
// banking domain; consumers type-switch on it.
type RawDocument interface {
	Domain() Domain
	Meta() RawMetadata
	rawDocument()
}

// RawMetadata is the provider metadata envelope.
type RawMetadata struct {
	SchemaVersion     string         `json:"schemaVersion,omitempty"`
	CurrencyPrecision map[string]int `json:"currencyPrecision,omitempty"`
	Disclaimers       []string       `json:"disclaimers,omitempty"`
}

type DocumentMeta struct {
	Metadata RawMetadata
}

func (m DocumentMeta) Meta() RawMetadata { return m.Metadata }
func (DocumentMeta) rawDocument()        {}

// ==========================
// Document variants
// ==========================

type CurrentAccountsDocument struct {
	DocumentMeta
	Accounts []RawAccount
}

type ForeignCurrentAccountsDocument struct {
	DocumentMeta
	Accounts []RawAccount
}

type CreditCardsDocument struct {
	DocumentMeta
	Cards []RawCard
}

type LoansDocument struct {
	DocumentMeta
	Loans []RawLoan
}

type MortgagesDocument struct {
	DocumentMeta
	Mortgages []RawMortgage
}

type DepositsDocument struct {
	DocumentMeta
	Deposits []RawDeposit
}

type SecuritiesDocument struct {
	DocumentMeta
	Accounts []RawSecuritiesAccount
}

func (CurrentAccountsDocument) Domain() Domain        { return DomainCurrentAccounts }
func (ForeignCurrentAccountsDocument) Domain() Domain { return DomainForeignCurrentAccounts }
func (CreditCardsDocument) Domain() Domain            { return DomainCreditCards }
func (LoansDocument) Domain() Domain                  { return DomainLoans }
func (MortgagesDocument) Domain() Domain              { return DomainMortgages }
func (DepositsDocument) Domain() Domain               { return DomainDeposits }
func (SecuritiesDocument) Domain() Domain             { return DomainSecurities }

// ==========================
// Raw entities
// ==========================

type RawAccount struct {
	AccountID    string                  `json:"accountId"`
	Nickname     string                  `json:"nickname"`
	Currency     string                  `json:"currency"`
	Status       string                  `json:"status"`
	Balances     *RawAccountBalances     `json:"balances"`
	Transactions []RawAccountTransaction `json:"transactions"`

	Extras map[string]json.RawMessage `json:"-"`
}

type RawAccountBalances struct {
	Current   *float64 `json:"current"`
	Available *float64 `json:"available"`
	Holds     *float64 `json:"holds"`

	Extras map[string]json.RawMessage `json:"-"`
}

type RawCard struct {
	CardID         string               `json:"cardId"`
	Nickname       string               `json:"nickname"`
	Currency       string               `json:"currency"`
	Status         string               `json:"status"`
	CurrentBalance *RawCardBalance      `json:"currentBalance"`
	Limits         *RawCardLimits       `json:"limits"`
	Transactions   []RawCardTransaction `json:"transactions"`

	Extras map[string]json.RawMessage `json:"-"`
}

type RawCardBalance struct {
	PostedBalance *float64 `json:"postedBalance"`
	PendingAmount *float64 `json:"pendingAmount"`

	Extras map[string]json.RawMessage `json:"-"`
}

type RawCardLimits struct {
	CreditLimit     *float64 `json:"creditLimit"`
	AvailableCredit *float64 `json:"availableCredit"`

	Extras map[string]json.RawMessage `json:"-"`
}

// RawFacility is shared by loans, mortgages and deposits.
type RawFacility struct {
	Nickname     string                  `json:"nickname"`
	Currency     string                  `json:"currency"`
	Status       string                  `json:"status"`
	Balances     *RawFacilityBalances    `json:"balances"`
	Transactions []RawAccountTransaction `json:"transactions"`

	Extras map[string]json.RawMessage `json:"-"`
}

type RawFacilityBalances struct {
	PrincipalOutstanding *float64 `json:"principalOutstanding"`
	AccruedInterest      *float64 `json:"accruedInterest"`
	TotalOutstanding     *float64 `json:"totalOutstanding"`

	Extras map[string]json.RawMessage `json:"-"`
}

type RawLoan struct {
	LoanID string `json:"loanId"`
	RawFacility
}

type RawMortgage struct {
	MortgageID string `json:"mortgageId"`
	RawFacility
}

type RawDeposit struct {
	DepositID string `json:"depositId"`
	RawFacility
}

type RawSecuritiesAccount struct {
	SecuritiesAccountID string                  `json:"securitiesAccountId"`
	Nickname            string                  `json:"nickname"`
	BaseCurrency        string                  `json:"baseCurrency"`
	Status              string                  `json:"status"`
	Valuation           *RawValuation           `json:"valuation"`
	Transactions        []RawAccountTransaction `json:"transactions"`

	Extras map[string]json.RawMessage `json:"-"`
}

type RawValuation struct {
	MarketValueBase *float64 `json:"marketValueBase"`
	CashBalanceBase *float64 `json:"cashBalanceBase"`
	TotalValueBase  *float64 `json:"totalValueBase"`

	Extras map[string]json.RawMessage `json:"-"`
}

// ==========================
// Raw transactions
// ==========================

// RawAccountTransaction is used by every domain except cards. Amount is unsigned;
// direction comes from CreditDebitIndicator.
type RawAccountTransaction struct {
	TransactionID        string           `json:"transactionId"`
	BookingDate          string           `json:"bookingDate"`
	ValueDate            string           `json:"valueDate"`
	Amount               *float64         `json:"amount"`
	Currency             string           `json:"currency"`
	CreditDebitIndicator string           `json:"creditDebitIndicator"`
	Status               string           `json:"status"`
	Description          string           `json:"description"`
	Merchant             *RawMerchant     `json:"merchant"`
	Category             *RawCategory     `json:"category"`
	Counterparty         *RawCounterparty `json:"counterparty"`
	References           *RawReferences   `json:"references"`
	Enrichment           *RawEnrichment   `json:"enrichment"`
	FXRate               *RawFXRate       `json:"fxRate"`

	Extras map[string]json.RawMessage `json:"-"`
}

// RawCardTransaction carries card dates and a transaction type instead of an indicator.
type RawCardTransaction struct {
	TransactionID   string           `json:"transactionId"`
	TransactionDate string           `json:"transactionDate"`
	PostingDate     string           `json:"postingDate"`
	Amount          *float64         `json:"amount"`
	Currency        string           `json:"currency"`
	TransactionType string           `json:"transactionType"`
	Status          string           `json:"status"`
	Description     string           `json:"description"`
	Merchant        *RawMerchant     `json:"merchant"`
	Category        *RawCategory     `json:"category"`
	Counterparty    *RawCounterparty `json:"counterparty"`
	References      *RawReferences   `json:"references"`
	Enrichment      *RawEnrichment   `json:"enrichment"`
	Installments    *RawInstallments `json:"installments"`

	Extras map[string]json.RawMessage `json:"-"`
}

type RawMerchant struct {
	Name    string `json:"name"`
	MCC     string `json:"mcc"`
	City    string `json:"city"`
	Country string `json:"country"`
}

type RawCategory struct {
	Primary  string `json:"primary"`
	Detailed string `json:"detailed"`
}

type RawCounterparty struct {
	Name          string `json:"name"`
	IBAN          string `json:"iban"`
	AccountNumber string `json:"accountNumber"`
}

type RawReferences struct {
	EndToEndID  string `json:"endToEndId"`
	MandateID   string `json:"mandateId"`
	CheckNumber string `json:"checkNumber"`
}

type RawEnrichment struct {
	LogoURL   string   `json:"logoUrl"`
	Recurring *bool    `json:"recurring"`
	Tags      []string `json:"tags"`
}

type RawInstallments struct {
	InstallmentNumber int      `json:"installmentNumber"`
	TotalInstallments int      `json:"totalInstallments"`
	InstallmentAmount *float64 `json:"installmentAmount"`
}

type RawFXRate struct {
	ExchangeRate     *float64 `json:"exchangeRate"`
	SourceCurrency   string   `json:"sourceCurrency"`
	TargetCurrency   string   `json:"targetCurrency"`
	InstructedAmount *float64 `json:"instructedAmount"`
}

func (a *RawAccount) setExtras(m map[string]json.RawMessage)           { a.Extras = m }
func (c *RawCard) setExtras(m map[string]json.RawMessage)              { c.Extras = m }
func (f *RawFacility) setExtras(m map[string]json.RawMessage)          { f.Extras = m }
func (s *RawSecuritiesAccount) setExtras(m map[string]json.RawMessage) { s.Extras = m }

// Balance objects and transactions keep their undeclared keys too. Entities do not
// implement json.Unmarshaler because RawFacility is embedded and would shadow the
// identifier field of loans, mortgages and deposits.

func (b *RawAccountBalances) UnmarshalJSON(data []byte) error {
	type plain RawAccountBalances
	return unmarshalWithExtras(data, (*plain)(b), &b.Extras)
}

func (b *RawCardBalance) UnmarshalJSON(data []byte) error {
	type plain RawCardBalance
	return unmarshalWithExtras(data, (*plain)(b), &b.Extras)
}

func (l *RawCardLimits) UnmarshalJSON(data []byte) error {
	type plain RawCardLimits
	return unmarshalWithExtras(data, (*plain)(l), &l.Extras)
}

func (b *RawFacilityBalances) UnmarshalJSON(data []byte) error {
	type plain RawFacilityBalances
	return unmarshalWithExtras(data, (*plain)(b), &b.Extras)
}

func (v *RawValuation) UnmarshalJSON(data []byte) error {
	type plain RawValuation
	return unmarshalWithExtras(data, (*plain)(v), &v.Extras)
}

func (t *RawAccountTransaction) UnmarshalJSON(data []byte) error {
	type plain RawAccountTransaction
	return unmarshalWithExtras(data, (*plain)(t), &t.Extras)
}

func (t *RawCardTransaction) UnmarshalJSON(data []byte) error {
	type plain RawCardTransaction
	return unmarshalWithExtras(data, (*plain)(t), &t.Extras)
}

// ==========================
// Decoding
// ==========================

// DataKey returns the array key under "data" holding the domain's entities.
func DataKey(domain Domain) string {
	switch domain {
	case DomainCurrentAccounts, DomainForeignCurrentAccounts:
		return "accounts"
	case DomainCreditCards:
		return "cards"
	case DomainLoans:
		return "loans"
	case DomainMortgages:
		return "mortgages"
	case DomainDeposits:
		return "deposits"
	case DomainSecurities:
		return "securitiesAccounts"
	}
	return ""
}

type rawEnvelope struct {
	Data     json.RawMessage `json:"data"`
	Metadata RawMetadata     `json:"metadata"`
}

// DecodeRawDocument decodes a provider response body into the variant for domain.
// Every error wraps ErrMalformedDocument.
func DecodeRawDocument(domain Domain, body []byte) (RawDocument, error) {
	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%w: data envelope is missing", ErrMalformedDocument)
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: data is not an object: %v", ErrMalformedDocument, err)
	}

	meta := DocumentMeta{Metadata: env.Metadata}
	key := DataKey(domain)

	switch domain {
	case DomainCurrentAccounts:
		accounts, err := decodeEntities[RawAccount](data, key, func(a *RawAccount) string { return a.AccountID })
		if err != nil {
			return nil, err
		}
		return &CurrentAccountsDocument{DocumentMeta: meta, Accounts: accounts}, nil

	case DomainForeignCurrentAccounts:
		accounts, err := decodeEntities[RawAccount](data, key, func(a *RawAccount) string { return a.AccountID })
		if err != nil {
			return nil, err
		}
		return &ForeignCurrentAccountsDocument{DocumentMeta: meta, Accounts: accounts}, nil

	case DomainCreditCards:
		cards, err := decodeEntities[RawCard](data, key, func(c *RawCard) string { return c.CardID })
		if err != nil {
			return nil, err
		}
		return &CreditCardsDocument{DocumentMeta: meta, Cards: cards}, nil

	case DomainLoans:
		loans, err := decodeEntities[RawLoan](data, key, func(l *RawLoan) string { return l.LoanID })
		if err != nil {
			return nil, err
		}
		return &LoansDocument{DocumentMeta: meta, Loans: loans}, nil

	case DomainMortgages:
		mortgages, err := decodeEntities[RawMortgage](data, key, func(m *RawMortgage) string { return m.MortgageID })
		if err != nil {
			return nil, err
		}
		return &MortgagesDocument{DocumentMeta: meta, Mortgages: mortgages}, nil

	case DomainDeposits:
		deposits, err := decodeEntities[RawDeposit](data, key, func(d *RawDeposit) string { return d.DepositID })
		if err != nil {
			return nil, err
		}
		return &DepositsDocument{DocumentMeta: meta, Deposits: deposits}, nil

	case DomainSecurities:
		accounts, err := decodeEntities[RawSecuritiesAccount](data, key, func(s *RawSecuritiesAccount) string { return s.SecuritiesAccountID })
		if err != nil {
			return nil, err
		}
		return &SecuritiesDocument{DocumentMeta: meta, Accounts: accounts}, nil
	}

	return nil, fmt.Errorf("%w: unsupported domain %q", ErrMalformedDocument, domain)
}

type extrasSetter interface {
	setExtras(map[string]json.RawMessage)
}

// decodeEntities decodes data[key] as a list of T and keeps every field T does not
// declare in its Extras map.
func decodeEntities[T any, PT interface {
	*T
	extrasSetter
}](data map[string]json.RawMessage, key string, idOf func(*T) string) ([]T, error) {
	raw, ok := data[key]
	if !ok {
		return nil, fmt.Errorf("%w: data.%s is missing", ErrMalformedDocument, key)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: data.%s is not an array: %v", ErrMalformedDocument, key, err)
	}

	known := declaredKeys(reflect.TypeOf((*T)(nil)).Elem())
	out := make([]T, 0, len(items))

	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, fmt.Errorf("%w: data.%s[%d]: %v", ErrMalformedDocument, key, i, err)
		}
		if idOf(&v) == "" {
			return nil, fmt.Errorf("%w: data.%s[%d] has no identifier", ErrMalformedDocument, key, i)
		}

		extras, err := leftoverKeys(item, known)
		if err != nil {
			return nil, fmt.Errorf("%w: data.%s[%d]: %v", ErrMalformedDocument, key, i, err)
		}
		PT(&v).setExtras(extras)
		out = append(out, v)
	}
	return out, nil
}

// unmarshalWithExtras decodes data into v and stores the keys v does not declare in
// extras. v must be a pointer to a struct without its own UnmarshalJSON.
func unmarshalWithExtras(data []byte, v any, extras *map[string]json.RawMessage) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	left, err := leftoverKeys(data, declaredKeys(reflect.TypeOf(v).Elem()))
	if err != nil {
		return err
	}
	*extras = left
	return nil
}

// leftoverKeys returns the members of the JSON object in data that are not in known,
// or nil when there are none.
func leftoverKeys(data []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var extras map[string]json.RawMessage
	for k, val := range all {
		if known[k] {
			continue
		}
		if extras == nil {
			extras = make(map[string]json.RawMessage)
		}
		extras[k] = val
	}
	return extras, nil
}

var declaredKeysCache sync.Map

// declaredKeys returns the JSON names of t's fields, including promoted ones.
func declaredKeys(t reflect.Type) map[string]bool {
	if cached, ok := declaredKeysCache.Load(t); ok {
		return cached.(map[string]bool)
	}
	keys := make(map[string]bool)
	collectKeys(t, keys)
	declaredKeysCache.Store(t, keys)
	return keys
}

func collectKeys(t reflect.Type, keys map[string]bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if f.Anonymous && tag == "" && f.Type.Kind() == reflect.Struct {
			collectKeys(f.Type, keys)
			continue
		}
		if !f.IsExported() {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		keys[name] = true
	}
}
