// internal/models/domain.go
package models

import "strings"

// Domain is a banking product category served by one data provider.
type Domain string

const (
	DomainCurrentAccounts        Domain = "CURRENT_ACCOUNTS"
	DomainForeignCurrentAccounts Domain = "FOREIGN_CURRENT_ACCOUNTS"
	DomainCreditCards            Domain = "CREDIT_CARDS"
	DomainLoans                  Domain = "LOANS"
	DomainMortgages              Domain = "MORTGAGES"
	DomainDeposits               Domain = "DEPOSITS"
	DomainSecurities             Domain = "SECURITIES"
	DomainUnknown                Domain = "UNKNOWN"
)

// BankingDomains lists the seven provider-backed domains in a stable order.
var BankingDomains = []Domain{
	DomainCurrentAccounts,
	DomainForeignCurrentAccounts,
	DomainCreditCards,
	DomainLoans,
	DomainMortgages,
	DomainDeposits,
	DomainSecurities,
}

// ParseDomain maps free text from the intent resolver onto a Domain. Anything
// unrecognised becomes UNKNOWN.
func ParseDomain(s string) Domain {
	d := Domain(strings.ToUpper(strings.TrimSpace(s)))
	if d.IsBanking() {
		return d
	}
	return DomainUnknown
}

// IsBanking reports whether d is one of the seven provider-backed domains.
func (d Domain) IsBanking() bool {
	for _, b := range BankingDomains {
		if d == b {
			return true
		}
	}
	return false
}

// EntityType returns the canonical entity type produced for the domain.
func (d Domain) EntityType() EntityType {
	switch d {
	case DomainCurrentAccounts, DomainForeignCurrentAccounts:
		return EntityTypeAccount
	case DomainCreditCards:
		return EntityTypeCard
	case DomainLoans:
		return EntityTypeLoan
	case DomainMortgages:
		return EntityTypeMortgage
	case DomainDeposits:
		return EntityTypeDeposit
	case DomainSecurities:
		return EntityTypeSecuritiesAccount
	}
	return ""
}

// DefaultMetric is the metric assumed when a clarification answer does not name one.
func (d Domain) DefaultMetric() Metric {
	if d == DomainCreditCards {
		return MetricList
	}
	return MetricBalance
}

// Metric is the kind of answer requested.
type Metric string

const (
	MetricBalance Metric = "balance"
	MetricCount   Metric = "count"
	MetricSum     Metric = "sum"
	MetricMax     Metric = "max"
	MetricMin     Metric = "min"
	MetricAverage Metric = "average"
	MetricList    Metric = "list"
)

// ParseMetric normalises a metric name. Unknown values are returned as-is so callers
// can decide on a default.
func ParseMetric(s string) Metric {
	return Metric(strings.ToLower(strings.TrimSpace(s)))
}

// IsKnown reports whether m is one of the supported metrics.
func (m Metric) IsKnown() bool {
	switch m {
	case MetricBalance, MetricCount, MetricSum, MetricMax, MetricMin, MetricAverage, MetricList:
		return true
	}
	return false
}

// NeedsTransactions reports whether answering m requires transaction data.
// Only balance can be answered from balances alone; unknown metrics fetch transactions.
func (m Metric) NeedsTransactions() bool {
	return m != MetricBalance
}

// EntityType is the canonical kind of a normalized entity.
type EntityType string

const (
	EntityTypeAccount           EntityType = "ACCOUNT"
	EntityTypeCard              EntityType = "CARD"
	EntityTypeLoan              EntityType = "LOAN"
	EntityTypeMortgage          EntityType = "MORTGAGE"
	EntityTypeDeposit           EntityType = "DEPOSIT"
	EntityTypeSecuritiesAccount EntityType = "SECURITIES_ACCOUNT"
)
