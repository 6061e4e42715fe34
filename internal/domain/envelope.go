package domain

// Envelope is the classified oracle response. The set of implementations is
// closed: OrderEnvelope, PriceQueryEnvelope, LookupQueryEnvelope,
// ActivationEnvelope, CryptoPaymentEnvelope and PlainText.
type Envelope interface {
	envelope()
}

// OrderEnvelope carries the order fields the oracle extracted. Fields may be
// empty; completeness is decided after merging with the draft.
type OrderEnvelope struct {
	Draft OrderDraft
}

type PriceQueryEnvelope struct {
	Countries []string
}

type LookupTarget struct {
	Country  string `json:"country"`
	Operator string `json:"operator,omitempty"`
}

type LookupQueryEnvelope struct {
	Targets []LookupTarget
}

type ActivationEnvelope struct{}

type CryptoPaymentEnvelope struct{}

type PlainText struct {
	Text string
}

func (OrderEnvelope) envelope()         {}
func (PriceQueryEnvelope) envelope()    {}
func (LookupQueryEnvelope) envelope()   {}
func (ActivationEnvelope) envelope()    {}
func (CryptoPaymentEnvelope) envelope() {}
func (PlainText) envelope()             {}
