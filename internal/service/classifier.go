package service

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"simbot/internal/domain"
)

// ExtractJSONBlock returns the first balanced {...} block of text, skipping
// braces inside string literals.
func ExtractJSONBlock(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString, escape := false, false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escape {
			escape = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// flexString accepts both JSON strings and numbers ("np": 30).
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts 2 and "2".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(s)))
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type orderPayload struct {
	FullName flexString `json:"full_name"`
	Phone    flexString `json:"phone"`
	City     flexString `json:"city"`
	NP       flexString `json:"np"`
	Address  flexString `json:"address"`
	Items    []struct {
		Country  flexString `json:"country"`
		Qty      flexInt    `json:"qty"`
		Operator flexString `json:"operator"`
	} `json:"items"`
}

type pricePayload struct {
	AskPrices bool         `json:"ask_prices"`
	Countries []flexString `json:"countries"`
}

type lookupPayload struct {
	AskUSSD bool                  `json:"ask_ussd"`
	Targets []domain.LookupTarget `json:"targets"`
}

type flagPayload struct {
	AskUSAActivation bool `json:"ask_usa_activation"`
	CryptoPayment    bool `json:"crypto_payment"`
}

var orderKeys = []string{"full_name", "phone", "city", "np", "address", "items"}

// Classify turns a raw oracle response into exactly one envelope. Stages run
// in a fixed order (order, price query, number lookup, activation, crypto
// payment) and any decode failure falls through to the next stage; text that
// matches none is returned as PlainText.
func Classify(text string) domain.Envelope {
	block := ExtractJSONBlock(text)
	if block == "" {
		return domain.PlainText{Text: NormalizeReply(text)}
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(block), &keys); err != nil {
		return domain.PlainText{Text: NormalizeReply(text)}
	}

	if env, ok := classifyOrder(block, keys); ok {
		return env
	}
	if env, ok := classifyPrices(block); ok {
		return env
	}
	if env, ok := classifyLookup(block); ok {
		return env
	}

	var flags flagPayload
	if err := json.Unmarshal([]byte(block), &flags); err == nil {
		if flags.AskUSAActivation {
			return domain.ActivationEnvelope{}
		}
		if flags.CryptoPayment {
			return domain.CryptoPaymentEnvelope{}
		}
	}

	return domain.PlainText{Text: NormalizeReply(text)}
}

func classifyOrder(block string, keys map[string]json.RawMessage) (domain.Envelope, bool) {
	for _, flag := range []string{"ask_prices", "ask_ussd", "ask_usa_activation", "crypto_payment"} {
		if _, ok := keys[flag]; ok {
			return nil, false
		}
	}
	found := false
	for _, k := range orderKeys {
		if _, ok := keys[k]; ok {
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}

	var p orderPayload
	if err := json.Unmarshal([]byte(block), &p); err != nil {
		return nil, false
	}

	draft := domain.OrderDraft{
		FullName: strings.TrimSpace(string(p.FullName)),
		Phone:    strings.TrimSpace(string(p.Phone)),
		Delivery: domain.Delivery{
			City:    strings.TrimSpace(string(p.City)),
			Branch:  strings.TrimSpace(string(p.NP)),
			Address: strings.TrimSpace(string(p.Address)),
		},
	}
	for _, it := range p.Items {
		country := strings.TrimSpace(string(it.Country))
		if country == "" || it.Qty <= 0 {
			continue
		}
		draft.Items = append(draft.Items, domain.OrderItem{
			Country:  country,
			Quantity: int(it.Qty),
			Operator: strings.TrimSpace(string(it.Operator)),
		})
	}

	return domain.OrderEnvelope{Draft: draft}, true
}

func classifyPrices(block string) (domain.Envelope, bool) {
	var p pricePayload
	if err := json.Unmarshal([]byte(block), &p); err != nil || !p.AskPrices || p.Countries == nil {
		return nil, false
	}
	countries := make([]string, 0, len(p.Countries))
	for _, c := range p.Countries {
		if s := strings.TrimSpace(string(c)); s != "" {
			countries = append(countries, s)
		}
	}
	return domain.PriceQueryEnvelope{Countries: countries}, true
}

func classifyLookup(block string) (domain.Envelope, bool) {
	var p lookupPayload
	if err := json.Unmarshal([]byte(block), &p); err != nil || !p.AskUSSD || p.Targets == nil {
		return nil, false
	}
	var targets []domain.LookupTarget
	for _, t := range p.Targets {
		if strings.TrimSpace(t.Country) != "" {
			targets = append(targets, t)
		}
	}
	return domain.LookupQueryEnvelope{Targets: targets}, true
}

// NormalizeReply fixes the missing-fields heading the oracle sometimes sends
// without its emoji.
func NormalizeReply(text string) string {
	text = strings.TrimSpace(text)
	const plain = "Залишилось вказати:"
	if strings.Contains(text, plain) && !strings.Contains(text, MissingHeading) {
		text = strings.Replace(text, plain, MissingHeading, 1)
	}
	return text
}
