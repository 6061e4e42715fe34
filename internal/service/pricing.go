package service

import (
	"simbot/internal/domain"
)

// UnitPrice resolves the per-unit price of a canonical country for qty.
// Unknown and unavailable countries quote as unavailable; an open-ended tier
// without a price quotes as negotiable.
func (c *Catalog) UnitPrice(country string, qty int) (domain.Quote, error) {
	if qty <= 0 {
		return domain.Quote{}, ErrInvalidQuantity
	}

	entry, ok := c.Country(country)
	if !ok {
		return domain.Quote{Kind: domain.QuoteUnavailable}, nil
	}
	if !entry.Available() {
		return domain.Quote{Kind: domain.QuoteUnavailable, Reason: entry.Availability.Reason}, nil
	}

	// tiers are sorted descending and the last one starts at 1
	tier := entry.Tiers[len(entry.Tiers)-1]
	for _, t := range entry.Tiers {
		if t.MinQuantity <= qty {
			tier = t
			break
		}
	}

	if tier.UnitPrice == nil {
		return domain.Quote{Kind: domain.QuoteNegotiable}, nil
	}
	return domain.Quote{Kind: domain.QuotePriced, UnitPrice: *tier.UnitPrice}, nil
}

// LineTotal is unit price times quantity for priced items.
func (c *Catalog) LineTotal(item domain.OrderItem) (int, domain.Quote, error) {
	q, err := c.UnitPrice(item.Country, item.Quantity)
	if err != nil {
		return 0, q, err
	}
	if !q.Priced() {
		return 0, q, nil
	}
	return q.UnitPrice * item.Quantity, q, nil
}

// OrderTotal sums concretely priced items. Negotiable items are reported
// separately; unavailable items are expected to be stripped beforehand and
// contribute nothing.
func (c *Catalog) OrderTotal(items []domain.OrderItem) domain.Total {
	var total domain.Total
	for _, item := range items {
		line, q, err := c.LineTotal(item)
		if err != nil {
			continue
		}
		switch q.Kind {
		case domain.QuotePriced:
			total.Sum += line
			total.PricedCount++
		case domain.QuoteNegotiable:
			total.Negotiable = append(total.Negotiable, item)
		}
	}
	return total
}

// SplitAvailable separates items the shop can sell from those it cannot.
// The second result maps country key to the reason shown to the customer.
func (c *Catalog) SplitAvailable(items []domain.OrderItem) ([]domain.OrderItem, map[string]string) {
	var available []domain.OrderItem
	unavailable := map[string]string{}
	for _, item := range items {
		entry, ok := c.Country(item.Country)
		switch {
		case !ok:
			unavailable[item.Country] = ""
		case !entry.Available():
			unavailable[item.Country] = entry.Availability.Reason
		default:
			available = append(available, item)
		}
	}
	return available, unavailable
}
