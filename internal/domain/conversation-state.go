package domain

import "time"

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationState is everything the bot remembers about one chat.
type ConversationState struct {
	ChatID int64      `json:"chat_id"`
	Draft  OrderDraft `json:"draft"`
	// Local holds contact data read from customer text without the oracle.
	// It only fills fields the oracle left empty.
	Local  OrderDraft `json:"local"`

	// LastPriceCountries are the countries of the last price answer, used to
	// resolve quantity-only follow-ups.
	LastPriceCountries []string `json:"last_price_countries,omitempty"`
	Hint               string   `json:"hint,omitempty"`
	AwaitingMissing    []Field  `json:"awaiting_missing,omitempty"`

	LastOrderSignature string    `json:"last_order_signature,omitempty"`
	LastOrderAt        time.Time `json:"last_order_at,omitempty"`
	LastOrderTotal     int       `json:"last_order_total,omitempty"`

	History   []Turn    `json:"history,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewConversationState(chatID int64) *ConversationState {
	return &ConversationState{ChatID: chatID}
}

// AppendTurns adds turns and keeps at most maxTurns user/assistant pairs.
func (s *ConversationState) AppendTurns(maxTurns int, turns ...Turn) {
	s.History = append(s.History, turns...)
	if limit := maxTurns * 2; limit > 0 && len(s.History) > limit {
		s.History = append([]Turn(nil), s.History[len(s.History)-limit:]...)
	}
}

// ResetOrder clears the draft and everything tied to collecting it.
func (s *ConversationState) ResetOrder() {
	s.Draft = OrderDraft{}
	s.Local = OrderDraft{}
	s.Hint = ""
	s.AwaitingMissing = nil
}
