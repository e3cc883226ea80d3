// internal/integrations/providers/filter.go
package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"banking-assistant/internal/models"
)

type rawObject = map[string]json.RawMessage

// applyRequest narrows a stored provider document the way the REST providers do:
// entity filter (or account alias), date range on transactions, and the include
// flags.
func applyRequest(domain models.Domain, req models.FetchRequest, source []byte) ([]byte, error) {
	var env rawObject
	if err := json.Unmarshal(source, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedDocument, err)
	}
	var data rawObject
	if err := json.Unmarshal(env["data"], &data); err != nil {
		return nil, fmt.Errorf("%w: data: %v", models.ErrMalformedDocument, err)
	}

	key := models.DataKey(domain)
	var entities []rawObject
	if err := json.Unmarshal(data[key], &entities); err != nil {
		return nil, fmt.Errorf("%w: data.%s: %v", models.ErrMalformedDocument, key, err)
	}

	entities = selectEntities(domain, req, entities)
	for _, ent := range entities {
		if !req.IncludeTransactions {
			delete(ent, "transactions")
		} else if !req.TimeRange.IsZero() {
			if err := filterTransactions(domain, req.TimeRange, ent); err != nil {
				return nil, err
			}
		}
		if domain == models.DomainSecurities && !req.IncludePositions {
			delete(ent, "positions")
		}
	}

	var err error
	if data[key], err = json.Marshal(entities); err != nil {
		return nil, err
	}
	if env["data"], err = json.Marshal(data); err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func selectEntities(domain models.Domain, req models.FetchRequest, entities []rawObject) []rawObject {
	out := make([]rawObject, 0, len(entities))
	switch {
	case len(req.EntityIDs) > 0:
		wanted := make(map[string]bool, len(req.EntityIDs))
		for _, id := range req.EntityIDs {
			wanted[id] = true
		}
		idField := entityIDField(domain)
		for _, ent := range entities {
			if wanted[stringField(ent, idField)] {
				out = append(out, ent)
			}
		}
		return out

	case req.AccountAlias != "":
		for _, ent := range entities {
			if strings.EqualFold(stringField(ent, "nickname"), req.AccountAlias) || boolField(ent, "primary") {
				out = append(out, ent)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return entities
}

func filterTransactions(domain models.Domain, tr models.TimeRange, ent rawObject) error {
	raw, ok := ent["transactions"]
	if !ok {
		return nil
	}
	var txs []rawObject
	if err := json.Unmarshal(raw, &txs); err != nil {
		return fmt.Errorf("%w: transactions: %v", models.ErrMalformedDocument, err)
	}

	field := transactionDateField(domain)
	kept := make([]rawObject, 0, len(txs))
	for _, tx := range txs {
		date := stringField(tx, field)
		if len(date) >= len(models.DateLayout) {
			date = date[:len(models.DateLayout)]
		}
		if date >= tr.FromDate && date <= tr.ToDate {
			kept = append(kept, tx)
		}
	}

	b, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	ent["transactions"] = b
	return nil
}

func stringField(obj rawObject, key string) string {
	var s string
	if raw, ok := obj[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

func boolField(obj rawObject, key string) bool {
	var b bool
	if raw, ok := obj[key]; ok {
		_ = json.Unmarshal(raw, &b)
	}
	return b
}
