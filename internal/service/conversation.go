package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"simbot/config"
	"simbot/internal/domain"
)

const (
	quotedMarker   = "[ЦЕ ПРОЦИТОВАНЕ ПОВІДОМЛЕННЯ КЛІЄНТА:]"
	noOrderForPay  = "Спершу оформіть, будь ласка, замовлення, щоб ми могли розрахувати суму до оплати."
	cryptoDisabled = "Наразі оплата криптовалютою недоступна. Менеджер підкаже інші способи оплати."
)

var greetingLineRe = regexp.MustCompile(`(?i)^(?:привіт|вітаю|добрий день|доброго дня)[^\n]*\n+`)

// StateStore persists conversation state between messages.
type StateStore interface {
	Load(ctx context.Context, chatID int64) (*domain.ConversationState, error)
	Save(ctx context.Context, state *domain.ConversationState) error
}

// OrderArchive keeps accepted orders.
type OrderArchive interface {
	Create(ctx context.Context, order *domain.OrderRecord) error
}

// Inbound is one customer message.
type Inbound struct {
	ChatID   int64
	UserID   int64
	UserName string
	Text     string
	Quoted   string
}

// Outbound is what the transport should send for one inbound message:
// replies to the customer in order and, optionally, a staff notification.
// OrderID names the archived order behind Forward.
type Outbound struct {
	Replies []string
	Forward string
	OrderID string
}

// Conversation runs the message flow of every customer chat. Messages of one
// chat are handled one at a time; different chats run concurrently.
type Conversation struct {
	cfg        *config.Config
	logger     *zap.Logger
	catalog    *Catalog
	normalizer Normalizer
	renderer   *Renderer
	prompts    *Prompts
	dedup      *DedupGuard
	oracle     Oracle
	store      StateStore
	archive    OrderArchive

	mu    sync.Mutex
	locks map[int64]*chatLock
}

// chatLock is dropped from Conversation.locks once refs reaches zero.
type chatLock struct {
	mu   sync.Mutex
	refs int
}

func NewConversation(cfg *config.Config, logger *zap.Logger, catalog *Catalog, oracle Oracle, store StateStore, archive OrderArchive) *Conversation {
	normalizer := NewKeywordNormalizer(catalog)
	renderer := NewRenderer(catalog, normalizer)
	return &Conversation{
		cfg:        cfg,
		logger:     logger,
		catalog:    catalog,
		normalizer: normalizer,
		renderer:   renderer,
		prompts:    NewPrompts(catalog, renderer),
		dedup:      NewDedupGuard(cfg.DupWindow),
		oracle:     oracle,
		store:      store,
		archive:    archive,
		locks:      map[int64]*chatLock{},
	}
}

func (c *Conversation) Renderer() *Renderer { return c.renderer }

func (c *Conversation) Dedup() *DedupGuard { return c.dedup }

func (c *Conversation) lock(chatID int64) func() {
	c.mu.Lock()
	l, ok := c.locks[chatID]
	if !ok {
		l = &chatLock{}
		c.locks[chatID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, chatID)
		}
		c.mu.Unlock()
	}
}

// Handle processes one customer message. Staff members never get a reply.
func (c *Conversation) Handle(ctx context.Context, in Inbound) (Outbound, error) {
	if c.cfg.IsManager(in.UserID) {
		return Outbound{}, nil
	}
	if strings.TrimSpace(in.Text) == "" {
		return Outbound{}, nil
	}

	unlock := c.lock(in.ChatID)
	defer unlock()

	state, err := c.store.Load(ctx, in.ChatID)
	if err != nil {
		return Outbound{}, fmt.Errorf("load state %d: %w", in.ChatID, err)
	}
	if state == nil {
		state = domain.NewConversationState(in.ChatID)
	}

	out := c.handle(ctx, state, in)

	state.UpdatedAt = c.dedup.Now()
	if err := c.store.Save(ctx, state); err != nil {
		return out, fmt.Errorf("save state %d: %w", in.ChatID, err)
	}
	return out, nil
}

func (c *Conversation) handle(ctx context.Context, state *domain.ConversationState, in Inbound) Outbound {
	text := strings.TrimSpace(in.Text)
	payload := text
	if in.Quoted != "" {
		payload += "\n\n" + quotedMarker + "\n" + in.Quoted
	}

	c.collectHints(state, text)
	payload += c.annotation(state)

	reply, err := c.oracle.Complete(ctx, OracleRequest{
		System:  c.prompts.Customer(),
		History: state.History,
		Message: payload,
	})
	if err != nil {
		c.logger.Error("oracle failed", zap.Int64("chat_id", in.ChatID), zap.Error(err))
		return Outbound{Replies: []string{ApologyMessage}}
	}

	env := Classify(reply)
	c.logger.Debug("oracle envelope", zap.Int64("chat_id", in.ChatID), zap.String("type", fmt.Sprintf("%T", env)))

	switch e := env.(type) {
	case domain.OrderEnvelope:
		return c.onOrder(ctx, state, in, e)
	case domain.PriceQueryEnvelope:
		return c.onPrices(state, text, e)
	case domain.LookupQueryEnvelope:
		return c.reply(state, text, c.lookupText(e))
	case domain.ActivationEnvelope:
		return c.reply(state, text, c.renderer.Activation())
	case domain.CryptoPaymentEnvelope:
		return c.reply(state, text, c.cryptoText(state))
	case domain.PlainText:
		answer := greetingLineRe.ReplaceAllString(e.Text, "")
		if answer == "" {
			return Outbound{}
		}
		state.AwaitingMissing = MissingFromReply(answer)
		return c.reply(state, text, answer)
	}
	return Outbound{}
}

// collectHints keeps locally detected contact data aside, merges detected
// items into the draft and remembers the item hint passed to the oracle.
func (c *Conversation) collectHints(state *domain.ConversationState, text string) {
	patch := ParseContact(text)
	items := CanonicalItems(c.normalizer, DetectItems(c.normalizer, text))

	if len(items) == 0 && len(state.LastPriceCountries) > 0 {
		if qty := DetectQtyOnly(text); qty > 0 {
			for _, key := range state.LastPriceCountries {
				items = append(items, domain.OrderItem{Country: key, Quantity: qty})
			}
		}
	}

	if len(items) > 0 {
		parts := make([]string, 0, len(items))
		for _, it := range items {
			parts = append(parts, fmt.Sprintf("%s %d шт", c.catalog.Display(it.Country), it.Quantity))
		}
		state.Hint = strings.Join(parts, ", ")
	}

	// newer local values win over older local guesses
	state.Local = Merge(patch, state.Local)
	state.Draft = Merge(state.Draft, domain.OrderDraft{Items: items})
}

func (c *Conversation) annotation(state *domain.ConversationState) string {
	var b strings.Builder
	if state.Hint != "" {
		fmt.Fprintf(&b, "\n\n[НАГАДУВАННЯ: пункт 4 відомий: %s]", state.Hint)
	}

	d := Merge(state.Draft, state.Local)
	var known []string
	if d.FullName != "" {
		known = append(known, "1. "+d.FullName)
	}
	if d.Phone != "" {
		known = append(known, "2. "+d.Phone)
	}
	if d.Delivery.Complete() {
		known = append(known, "3. "+c.renderer.DeliveryLine(d.Delivery))
	}
	if len(known) > 0 {
		fmt.Fprintf(&b, "\n\n[ВІДОМІ ДАНІ: %s]", strings.Join(known, "; "))
	}
	return b.String()
}

func (c *Conversation) reply(state *domain.ConversationState, userText, answer string) Outbound {
	if answer == "" {
		return Outbound{}
	}
	state.AppendTurns(c.cfg.MaxTurns,
		domain.Turn{Role: "user", Content: userText},
		domain.Turn{Role: "assistant", Content: answer})
	return Outbound{Replies: []string{answer}}
}

func (c *Conversation) onOrder(ctx context.Context, state *domain.ConversationState, in Inbound, env domain.OrderEnvelope) Outbound {
	text := strings.TrimSpace(in.Text)

	// contact fields the oracle already confirmed stay; an item list from the
	// oracle replaces the locally detected one; local guesses only fill gaps
	patch := env.Draft.Clone()
	patch.Items = CanonicalItems(c.normalizer, patch.Items)
	base := state.Draft.Clone()
	if len(patch.Items) > 0 {
		base.Items = nil
	}
	state.Draft = Merge(base, patch)
	order := Merge(state.Draft, state.Local)

	if missing := MissingFields(order); len(missing) > 0 {
		state.AwaitingMissing = missing
		return c.reply(state, text, c.renderer.MissingPrompt(missing))
	}

	if err := ValidateOrder(order); err != nil {
		invalid := InvalidFields(err)
		c.logger.Info("order rejected by validation", zap.Int64("chat_id", in.ChatID), zap.Error(err))
		state.Draft = ClearFields(state.Draft, invalid)
		state.Local = ClearFields(state.Local, invalid)
		state.AwaitingMissing = invalid
		return c.reply(state, text, c.renderer.MissingPrompt(invalid))
	}

	available, unavailable := c.catalog.SplitAvailable(order.Items)
	var replies []string
	if len(unavailable) > 0 {
		replies = append(replies, c.renderer.OutOfStock(unavailable))
	}
	if len(available) == 0 {
		replies = append(replies, ChooseAlternative)
		state.Draft.Items = nil
		state.AwaitingMissing = []domain.Field{domain.FieldItems}
		state.AppendTurns(c.cfg.MaxTurns,
			domain.Turn{Role: "user", Content: text},
			domain.Turn{Role: "assistant", Content: strings.Join(replies, "\n\n")})
		return Outbound{Replies: replies}
	}
	order.Items = available

	signature := Signature(order)
	if c.dedup.IsDuplicate(state, signature) {
		c.logger.Info("duplicate order suppressed", zap.Int64("chat_id", in.ChatID))
		state.ResetOrder()
		if IsAck(text) {
			return Outbound{}
		}
		return Outbound{Replies: append(replies, AlreadyReceivedMessage)}
	}

	summary := c.renderer.Customer(order)
	total := c.catalog.OrderTotal(order.Items)
	replies = append(replies, summary, ThanksMessage)
	if info := c.renderer.PostOrderInfo(order); info != "" {
		replies = append(replies, info)
	}

	forward := c.renderer.Staff(order, false)
	if in.UserName != "" {
		forward = "@" + strings.TrimPrefix(in.UserName, "@") + "\n" + forward
	}

	record := &domain.OrderRecord{
		ID:        uuid.NewString(),
		ChatID:    in.ChatID,
		UserName:  in.UserName,
		FullName:  FormatFullName(order.FullName),
		Phone:     FormatPhone(order.Phone),
		Delivery:  order.Delivery,
		Items:     order.Items,
		Total:     total.Sum,
		Signature: Digest(signature),
		CreatedAt: c.dedup.Now(),
	}
	if c.archive != nil {
		if err := c.archive.Create(ctx, record); err != nil {
			c.logger.Error("archive order", zap.String("order_id", record.ID), zap.Error(err))
		}
	}

	c.logger.Info("order accepted",
		zap.Int64("chat_id", in.ChatID),
		zap.String("order_id", record.ID),
		zap.Int("items", len(order.Items)),
		zap.Int("total", total.Sum))

	state.LastOrderTotal = total.Sum
	state.LastPriceCountries = nil
	state.ResetOrder()
	state.AppendTurns(c.cfg.MaxTurns,
		domain.Turn{Role: "user", Content: text},
		domain.Turn{Role: "assistant", Content: summary})

	return Outbound{Replies: replies, Forward: forward, OrderID: record.ID}
}

func (c *Conversation) onPrices(state *domain.ConversationState, userText string, env domain.PriceQueryEnvelope) Outbound {
	wantAll := false
	for _, raw := range env.Countries {
		if strings.EqualFold(strings.TrimSpace(raw), "ALL") {
			wantAll = true
			break
		}
	}

	var keys, unknown []string
	seen := map[string]bool{}
	if wantAll {
		keys = c.catalog.Keys()
	} else {
		for _, raw := range env.Countries {
			key := c.normalizer.Country(raw)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			if c.catalog.Has(key) {
				keys = append(keys, key)
			} else {
				unknown = append(unknown, strings.TrimSpace(raw))
			}
		}
	}

	var inStock []string
	outOfStock := map[string]string{}
	for _, key := range keys {
		country, _ := c.catalog.Country(key)
		if country.Available() {
			inStock = append(inStock, key)
		} else {
			outOfStock[key] = country.Availability.Reason
		}
	}

	var parts []string
	if len(inStock) > 0 {
		parts = append(parts, c.renderer.Prices(inStock))
		state.LastPriceCountries = inStock
	}
	if len(outOfStock) > 0 {
		parts = append(parts, c.renderer.OutOfStock(outOfStock))
	}
	if len(unknown) > 0 {
		parts = append(parts, c.renderer.Unavailable(unknown))
	}
	if wantAll && len(inStock) == 0 {
		parts = append(parts, AllSoldOutMessage)
	}
	if len(parts) == 0 {
		parts = append(parts, ChooseAlternative)
	}

	state.AppendTurns(c.cfg.MaxTurns,
		domain.Turn{Role: "user", Content: userText},
		domain.Turn{Role: "assistant", Content: strings.Join(parts, "\n\n")})
	return Outbound{Replies: parts}
}

func (c *Conversation) lookupText(env domain.LookupQueryEnvelope) string {
	if len(env.Targets) == 0 {
		return AskLookupCountry
	}
	if text := c.renderer.LookupTargets(env.Targets); text != "" {
		return text
	}
	return PlasticFallback
}

func (c *Conversation) cryptoText(state *domain.ConversationState) string {
	if c.cfg.CryptoWallet == "" || c.cfg.CryptoUAHRate <= 0 {
		return cryptoDisabled
	}
	total := state.LastOrderTotal
	if total == 0 && len(state.Draft.Items) > 0 {
		total = c.catalog.OrderTotal(state.Draft.Items).Sum
	}
	if total == 0 {
		return noOrderForPay
	}
	return c.renderer.CryptoPayment(total, c.cfg.CryptoWallet, c.cfg.CryptoUAHRate, c.cfg.CryptoFeeUSD)
}

// StaffOrder parses a free-text order typed by a manager in the staff chat
// and renders it as a staff notification. ok is false when the text holds no
// order items.
func (c *Conversation) StaffOrder(ctx context.Context, text string) (string, bool, error) {
	orderText, note := SplitNote(text)
	reply, err := c.oracle.Complete(ctx, OracleRequest{System: c.prompts.Manager(), Message: orderText})
	if err != nil {
		return "", false, fmt.Errorf("parse staff order: %w", err)
	}

	env, ok := Classify(reply).(domain.OrderEnvelope)
	if !ok {
		return "", false, nil
	}
	order := env.Draft
	order.Items = CanonicalItems(c.normalizer, order.Items)
	if len(order.Items) == 0 {
		return "", false, nil
	}

	rendered := c.renderer.Staff(order, PaidHintRe.MatchString(text))
	if note != "" {
		rendered = AppendNote(rendered, note)
	}
	return rendered, true, nil
}
