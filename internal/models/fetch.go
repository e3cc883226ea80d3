// internal/models/fetch.go
package models

// FetchRequest is one read call against a banking data provider. CustomerID always
// comes from the authenticated caller.
type FetchRequest struct {
	CustomerID          string    `json:"customerId"`
	Domain              Domain    `json:"domain"`
	TimeRange           TimeRange `json:"timeRange"`
	EntityIDs           []string  `json:"entityIds,omitempty"`
	AccountAlias        string    `json:"accountAlias,omitempty"`
	IncludeTransactions bool      `json:"includeTransactions"`
	IncludePositions    bool      `json:"includePositions"`
}
