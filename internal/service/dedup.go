package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"simbot/internal/domain"
)

const DefaultDupWindow = 20 * time.Minute

// Signature is an order fingerprint that ignores item order and formatting
// differences in name and phone.
func Signature(order domain.OrderDraft) string {
	items := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, fmt.Sprintf("%s:%d:%s", it.Country, it.Quantity, it.Operator))
	}
	sort.Strings(items)

	return strings.Join([]string{
		FormatFullName(order.FullName),
		FormatPhone(order.Phone),
		FormatCity(order.Delivery.City),
		FormatBranch(order.Delivery.Branch),
		strings.TrimSpace(order.Delivery.Address),
		strings.Join(items, ";"),
	}, "|")
}

// Digest shortens a signature for storage in conversation state.
func Digest(signature string) string {
	return strconv.FormatUint(xxhash.Sum64String(signature), 16)
}

// DedupGuard suppresses an order that repeats the last accepted one of the
// same conversation within Window.
type DedupGuard struct {
	Window time.Duration
	Now    func() time.Time
}

func NewDedupGuard(window time.Duration) *DedupGuard {
	if window <= 0 {
		window = DefaultDupWindow
	}
	return &DedupGuard{Window: window, Now: time.Now}
}

// IsDuplicate reports whether signature was accepted within the window. When
// it was not, the signature becomes the conversation's last accepted order.
func (g *DedupGuard) IsDuplicate(state *domain.ConversationState, signature string) bool {
	now := g.Now()
	digest := Digest(signature)

	if state.LastOrderSignature == digest && !state.LastOrderAt.IsZero() && now.Sub(state.LastOrderAt) <= g.Window {
		return true
	}

	state.LastOrderSignature = digest
	state.LastOrderAt = now
	return false
}
