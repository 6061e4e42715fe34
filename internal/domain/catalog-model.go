package domain

// PriceTier is a single price break. A nil UnitPrice means the price is
// negotiable and staff has to be contacted.
type PriceTier struct {
	MinQuantity int  `json:"min_quantity"`
	UnitPrice   *int `json:"unit_price,omitempty"`
}

// Price is a helper for building tier tables.
func Price(v int) *int {
	return &v
}

type AvailabilityStatus string

const (
	StatusAvailable   AvailabilityStatus = "available"
	StatusUnavailable AvailabilityStatus = "unavailable"
)

type Availability struct {
	Status AvailabilityStatus `json:"status"`
	Reason string             `json:"reason,omitempty"`
}

// LookupCode is the USSD combination that shows the SIM's own number.
// An empty Operator means the code works for every operator of the country.
type LookupCode struct {
	Operator string `json:"operator,omitempty"`
	Code     string `json:"code"`
}

// Country is one entry of the static price catalog.
type Country struct {
	Key          string       `json:"key"`
	Display      string       `json:"display"`
	Flag         string       `json:"flag"`
	DialCode     string       `json:"dial_code"`
	Tiers        []PriceTier  `json:"tiers"`
	Availability Availability `json:"availability"`
	Aliases      []string     `json:"aliases"`
	Keywords     []string     `json:"keywords"`
	LookupCodes  []LookupCode `json:"lookup_codes,omitempty"`
	// PostOrderCode is sent to the customer after an accepted order.
	PostOrderCode string `json:"post_order_code,omitempty"`
	Note          string `json:"note,omitempty"`
}

func (c Country) Available() bool {
	return c.Availability.Status == StatusAvailable
}

type QuoteKind int

const (
	QuoteUnavailable QuoteKind = iota
	QuoteNegotiable
	QuotePriced
)

func (k QuoteKind) String() string {
	switch k {
	case QuotePriced:
		return "priced"
	case QuoteNegotiable:
		return "negotiable"
	default:
		return "unavailable"
	}
}

// Quote is the result of a unit price lookup.
type Quote struct {
	Kind      QuoteKind
	UnitPrice int
	Reason    string
}

func (q Quote) Priced() bool {
	return q.Kind == QuotePriced
}

// Total is the sum over concretely priced items of an order.
type Total struct {
	Sum         int
	PricedCount int
	Negotiable  []OrderItem
}
