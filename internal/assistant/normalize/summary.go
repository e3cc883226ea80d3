// internal/assistant/normalize/summary.go
package normalize

import (
	"math"

	"banking-assistant/internal/models"
)

// summarize aggregates transactions that carry an amount, rounded to the currency
// precision. Entities without transactions get no summary.
func summarize(txs []models.NormalizedTransaction, precision int) *models.TransactionsSummary {
	if len(txs) == 0 {
		return nil
	}

	s := &models.TransactionsSummary{}
	var minV, maxV float64
	for _, t := range txs {
		if t.Date != "" {
			if s.FirstDate == "" || t.Date < s.FirstDate {
				s.FirstDate = t.Date
			}
			if t.Date > s.LastDate {
				s.LastDate = t.Date
			}
		}
		if t.Amount == nil {
			continue
		}
		v := *t.Amount
		if s.Count == 0 || v < minV {
			minV = v
		}
		if s.Count == 0 || v > maxV {
			maxV = v
		}
		if v >= 0 {
			s.TotalCredits += v
		} else {
			s.TotalDebits += -v
		}
		s.Count++
	}

	s.TotalCredits = round(s.TotalCredits, precision)
	s.TotalDebits = round(s.TotalDebits, precision)
	s.Net = round(s.TotalCredits-s.TotalDebits, precision)
	if s.Count > 0 {
		minR, maxR := round(minV, precision), round(maxV, precision)
		avg := round(s.Net/float64(s.Count), precision)
		s.Min, s.Max, s.Average = &minR, &maxR, &avg
	}
	return s
}

func round(v float64, precision int) float64 {
	f := math.Pow(10, float64(precision))
	r := math.Round(v*f) / f
	if r == 0 {
		return 0
	}
	return r
}
