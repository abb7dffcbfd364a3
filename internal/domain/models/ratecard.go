package models

import "time"

// RateItem is a pay rate per unit of qty×fat, effective from a date onwards.
type RateItem struct {
	EffectiveDate time.Time `json:"effectiveDate"`
	PayRate       float64   `json:"payRate"`
}

// RateCard is the history of pay rates.
type RateCard struct {
	Items []RateItem `json:"items"`
}

// Applicable returns the item with the latest effective date on or before day.
func (c RateCard) Applicable(day time.Time) (RateItem, bool) {
	var (
		best  RateItem
		found bool
	)
	for _, item := range c.Items {
		if item.EffectiveDate.After(day) {
			continue
		}
		if !found || item.EffectiveDate.After(best.EffectiveDate) {
			best, found = item, true
		}
	}
	return best, found
}
