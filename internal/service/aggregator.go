package service

import (
	"strings"

	"simbot/internal/domain"
)

// Merge folds newly detected order fields into a draft. Name, phone and each
// delivery subfield are only filled while empty, so a stray phone-like number
// later in the chat cannot replace a good one. Items merge by country and a
// later quantity replaces the earlier one.
func Merge(draft, patch domain.OrderDraft) domain.OrderDraft {
	out := draft.Clone()

	fill(&out.FullName, patch.FullName)
	fill(&out.Phone, patch.Phone)
	fill(&out.Delivery.City, patch.Delivery.City)
	fill(&out.Delivery.Branch, patch.Delivery.Branch)
	fill(&out.Delivery.Address, patch.Delivery.Address)

	for _, item := range patch.Items {
		out.Items = upsertItem(out.Items, item)
	}

	return out
}

func fill(dst *string, v string) {
	if strings.TrimSpace(*dst) != "" {
		return
	}
	*dst = strings.TrimSpace(v)
}

func upsertItem(items []domain.OrderItem, item domain.OrderItem) []domain.OrderItem {
	if item.Country == "" || item.Quantity <= 0 {
		return items
	}
	for i := range items {
		if items[i].Country == item.Country {
			items[i].Quantity = item.Quantity
			if item.Operator != "" {
				items[i].Operator = item.Operator
			}
			return items
		}
	}
	return append(items, item)
}

// MissingFields reports the required fields the draft still lacks, in the
// order the customer prompt lists them.
func MissingFields(draft domain.OrderDraft) []domain.Field {
	var missing []domain.Field
	if strings.TrimSpace(draft.FullName) == "" {
		missing = append(missing, domain.FieldName)
	}
	if strings.TrimSpace(draft.Phone) == "" {
		missing = append(missing, domain.FieldPhone)
	}
	if !draft.Delivery.Complete() {
		missing = append(missing, domain.FieldDelivery)
	}
	if len(draft.Items) == 0 {
		missing = append(missing, domain.FieldItems)
	}
	return missing
}

func Complete(draft domain.OrderDraft) bool {
	return len(MissingFields(draft)) == 0
}

// CanonicalItems normalizes country names and operators and collapses
// repeated countries, last quantity wins. Operators are kept only for the UK.
func CanonicalItems(n Normalizer, items []domain.OrderItem) []domain.OrderItem {
	var out []domain.OrderItem
	for _, item := range items {
		key := n.Country(item.Country)
		op := ""
		if key == "GB" {
			op = n.Operator(item.Operator)
		}
		out = upsertItem(out, domain.OrderItem{Country: key, Quantity: item.Quantity, Operator: op})
	}
	return out
}
