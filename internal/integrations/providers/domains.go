// internal/integrations/providers/domains.go
package providers

import (
	"strings"

	"banking-assistant/internal/models"
)

// DefaultPaths are the provider endpoints relative to the provider base URL.
var DefaultPaths = map[models.Domain]string{
	models.DomainCurrentAccounts:        "current-accounts",
	models.DomainForeignCurrentAccounts: "foreign-current-accounts",
	models.DomainCreditCards:            "credit-cards",
	models.DomainLoans:                  "loans",
	models.DomainMortgages:              "mortgages",
	models.DomainDeposits:               "deposits",
	models.DomainSecurities:             "securities",
}

// entityIDField names the identifier of one entity in a raw document.
func entityIDField(d models.Domain) string {
	switch d {
	case models.DomainCreditCards:
		return "cardId"
	case models.DomainLoans:
		return "loanId"
	case models.DomainMortgages:
		return "mortgageId"
	case models.DomainDeposits:
		return "depositId"
	case models.DomainSecurities:
		return "securitiesAccountId"
	default:
		return "accountId"
	}
}

// transactionDateField names the date used for range filtering.
func transactionDateField(d models.Domain) string {
	if d == models.DomainCreditCards {
		return "transactionDate"
	}
	return "bookingDate"
}

// pathFor resolves a domain path, honouring overrides keyed by the lower-case
// domain name (e.g. "credit_cards").
func pathFor(d models.Domain, overrides map[string]string) string {
	if p, ok := overrides[strings.ToLower(string(d))]; ok && p != "" {
		return strings.Trim(p, "/")
	}
	return DefaultPaths[d]
}
