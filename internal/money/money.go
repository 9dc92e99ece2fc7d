// Package money derives hours and dollar totals from raw entry fields.
// Every function is pure and never returns a negative amount.
package money

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingBlock is the unit labor is billed in.
const BillingBlock = 30 * time.Minute

var (
	blocksPerHour = decimal.NewFromInt(int64(time.Hour / BillingBlock))
	minutesInHour = decimal.NewFromInt(60)
)

// LineItem is one material or purchased item.
type LineItem struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// Total is quantity times unit cost, floored at zero.
func (li LineItem) Total() decimal.Decimal {
	return nonNegative(li.Quantity.Mul(li.UnitCost))
}

// ParseClock parses a 24-hour "HH:MM" value into minutes after midnight.
func ParseClock(v string) (int, bool) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// Hours returns the worked duration between start and end in hours.
// Unparseable times or an end at or before the start yield zero.
func Hours(start, end string) decimal.Decimal {
	s, ok := ParseClock(start)
	if !ok {
		return decimal.Zero
	}
	e, ok := ParseClock(end)
	if !ok || e <= s {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(e - s)).Div(minutesInHour)
}

// BilledHours rounds hours up to the next 30-minute block.
func BilledHours(hours decimal.Decimal) decimal.Decimal {
	if !hours.IsPositive() {
		return decimal.Zero
	}
	return hours.Mul(blocksPerHour).Ceil().Div(blocksPerHour)
}

// LaborCost bills hours in 30-minute blocks at the given hourly rate.
func LaborCost(hours, rate decimal.Decimal) decimal.Decimal {
	return Cents(nonNegative(BilledHours(hours).Mul(nonNegative(rate))))
}

// MaterialsTotal sums line items.
func MaterialsTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Total())
	}
	return Cents(total)
}

// MileageTotal is miles times the per-mile rate.
func MileageTotal(miles, rate decimal.Decimal) decimal.Decimal {
	return Cents(nonNegative(miles).Mul(nonNegative(rate)))
}

// WorkTotal is labor plus materials.
func WorkTotal(start, end string, rate decimal.Decimal, materials []LineItem) decimal.Decimal {
	return LaborCost(Hours(start, end), rate).Add(MaterialsTotal(materials))
}

// PurchaseTotal is items plus mileage plus tax.
func PurchaseTotal(items []LineItem, miles, mileageRate, tax decimal.Decimal) decimal.Decimal {
	return MaterialsTotal(items).
		Add(MileageTotal(miles, mileageRate)).
		Add(Cents(nonNegative(tax)))
}

// Cents rounds half away from zero to two decimal places.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
