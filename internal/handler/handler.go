package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"simbot/config"
	"simbot/internal/repository"
	"simbot/internal/service"
)

const greetingText = `Вітаю! 👋 Я допоможу підібрати та замовити SIM-карту потрібної країни.

Напишіть, яка країна вас цікавить, або надішліть «прайс», щоб побачити ціни.`

// Sender is the part of the Telegram API the handler needs.
// Send returns the ID of the posted message.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) (int, error)
	Delete(ctx context.Context, chatID int64, messageID int) error
}

type botSender struct {
	b *bot.Bot
}

func (s botSender) Send(ctx context.Context, chatID int64, text string) (int, error) {
	msg, err := s.b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (s botSender) Delete(ctx context.Context, chatID int64, messageID int) error {
	_, err := s.b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID})
	return err
}

type Handler struct {
	cfg     *config.Config
	logger  *zap.Logger
	ctx     context.Context
	bot     *bot.Bot
	sender  Sender
	conv    *service.Conversation
	orders  *repository.OrderRepository
	limiter *ChatLimiter
}

func NewHandler(cfg *config.Config, zapLogger *zap.Logger, ctx context.Context, conv *service.Conversation, orders *repository.OrderRepository) *Handler {
	return &Handler{
		cfg:     cfg,
		logger:  zapLogger,
		ctx:     ctx,
		conv:    conv,
		orders:  orders,
		limiter: NewChatLimiter(cfg.MessagesPerMinute, cfg.MessageBurst),
	}
}

// Limiter exposes the per-chat limiter for periodic cleanup. May be nil.
func (h *Handler) Limiter() *ChatLimiter {
	return h.limiter
}

func (h *Handler) DefaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	if h.sender == nil {
		h.SetBot(b)
	}
	h.HandleMessage(ctx, update.Message)
}

// SetBot sets the bot instance for the handler
func (h *Handler) SetBot(b *bot.Bot) {
	h.bot = b
	if b != nil {
		h.sender = botSender{b: b}
	}
}

func (h *Handler) SetSender(s Sender) {
	h.sender = s
}

// HandleMessage routes one incoming message: /start, staff chat commands or
// the customer conversation.
func (h *Handler) HandleMessage(ctx context.Context, msg *models.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	if text == "" {
		return
	}

	var userID int64
	var userName string
	if msg.From != nil {
		userID = msg.From.ID
		userName = msg.From.Username
	}

	if msg.Chat.ID == h.cfg.OrderForwardChatID {
		if h.cfg.IsOwner(userName) {
			h.handleStaff(ctx, msg, text)
		}
		return
	}

	if !h.limiter.Allow(msg.Chat.ID) {
		h.logger.Warn("Chat rate limited, message dropped", zap.Int64("chat_id", msg.Chat.ID))
		return
	}

	if strings.HasPrefix(text, "/start") {
		h.send(ctx, msg.Chat.ID, greetingText)
		return
	}

	in := service.Inbound{
		ChatID:   msg.Chat.ID,
		UserID:   userID,
		UserName: userName,
		Text:     text,
	}
	if msg.ReplyToMessage != nil {
		in.Quoted = service.ExtractQuoted(msg.ReplyToMessage.Text, msg.ReplyToMessage.Caption)
	}

	start := time.Now()
	out, err := h.conv.Handle(ctx, in)
	if err != nil {
		h.logger.Error("Failed to handle message", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
	h.logger.Debug("Message handled",
		zap.Int64("chat_id", msg.Chat.ID),
		zap.Int("replies", len(out.Replies)),
		zap.Duration("took", time.Since(start)))

	for _, reply := range out.Replies {
		h.send(ctx, msg.Chat.ID, reply)
	}
	if out.Forward != "" {
		if h.cfg.OrderForwardChatID == 0 {
			h.logger.Warn("Order accepted but no staff chat configured", zap.Int64("chat_id", msg.Chat.ID))
			return
		}
		posted := h.send(ctx, h.cfg.OrderForwardChatID, out.Forward)
		if posted != 0 && out.OrderID != "" && h.orders != nil {
			if err := h.orders.LinkStaffMessage(ctx, out.OrderID, posted); err != nil {
				h.logger.Warn("Failed to link staff message", zap.String("order_id", out.OrderID), zap.Error(err))
			}
		}
	}
}

// handleStaff applies the owner's reply commands to posted orders and turns
// free-text orders into staff notifications.
func (h *Handler) handleStaff(ctx context.Context, msg *models.Message, text string) {
	chatID := msg.Chat.ID

	if msg.ReplyToMessage != nil {
		edit := service.EditStaffOrder(msg.ReplyToMessage.Text, text)
		if edit.Changed {
			h.delete(ctx, chatID, msg.ReplyToMessage.ID)
			h.delete(ctx, chatID, msg.ID)
			reposted := h.send(ctx, chatID, edit.Text)
			h.syncArchive(ctx, msg.ReplyToMessage.ID, reposted, edit.Paid)
			return
		}
	}

	rendered, ok, err := h.conv.StaffOrder(ctx, text)
	if err != nil {
		h.logger.Error("Failed to parse staff order", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	h.delete(ctx, chatID, msg.ID)
	h.send(ctx, chatID, rendered)
}

// syncArchive carries a staff chat edit over to the archived order: the paid
// flag and the link to the reposted message. Free-text staff orders are not
// archived and are skipped.
func (h *Handler) syncArchive(ctx context.Context, oldID, newID int, paid bool) {
	if h.orders == nil {
		return
	}
	if paid {
		id, err := h.orders.MarkPaidByStaffMessage(ctx, oldID)
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			h.logger.Debug("Paid staff message has no archived order", zap.Int("message_id", oldID))
			return
		case err != nil:
			h.logger.Error("Failed to mark order paid", zap.Int("message_id", oldID), zap.Error(err))
		default:
			h.logger.Info("Order marked as paid from staff chat", zap.String("order_id", id))
		}
	}
	if newID == 0 {
		return
	}
	if err := h.orders.RelinkStaffMessage(ctx, oldID, newID); err != nil && !errors.Is(err, repository.ErrOrderNotFound) {
		h.logger.Warn("Failed to relink staff message", zap.Int("message_id", oldID), zap.Error(err))
	}
}

// send returns the ID of the posted message, or 0 when nothing was sent.
func (h *Handler) send(ctx context.Context, chatID int64, text string) int {
	if h.sender == nil {
		h.logger.Warn("No sender configured, dropping message", zap.Int64("chat_id", chatID))
		return 0
	}
	id, err := h.sender.Send(ctx, chatID, text)
	if err != nil {
		h.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return 0
	}
	return id
}

func (h *Handler) delete(ctx context.Context, chatID int64, messageID int) {
	if h.sender == nil {
		return
	}
	if err := h.sender.Delete(ctx, chatID, messageID); err != nil {
		h.logger.Warn("Failed to delete message", zap.Int64("chat_id", chatID), zap.Int("message_id", messageID), zap.Error(err))
	}
}

// Routes builds the HTTP API. The Telegram webhook is mounted only when the
// bot runs in webhook mode.
func (h *Handler) Routes(b *bot.Bot) http.Handler {
	mux := http.NewServeMux()

	if b != nil && h.cfg.WebhookURL != "" {
		mux.Handle("/webhook", b.WebhookHandler())
	}

	mux.HandleFunc("/api/orders", h.requireAPIToken(h.handleGetOrders))
	mux.HandleFunc("/api/orders/stats", h.requireAPIToken(h.handleOrderStats))
	mux.HandleFunc("/api/orders/daily", h.requireAPIToken(h.handleDailyStats))
	mux.HandleFunc("/api/orders/", h.requireAPIToken(h.handleOrder))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h.setCORSHeaders(w)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "simbot",
		})
	})

	return mux
}

func (h *Handler) StartWebServer(ctx context.Context, b *bot.Bot) {
	srv := &http.Server{
		Addr:              h.cfg.Port,
		Handler:           h.Routes(b),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("Failed to shut down web server", zap.Error(err))
		}
	}()

	h.logger.Info("Starting web server", zap.String("port", h.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.logger.Fatal("Failed to start web server", zap.Error(err))
	}
}

// Get orders, optionally filtered by ?chat_id= or ?paid=
func (h *Handler) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	var (
		orders interface{}
		err    error
	)
	switch {
	case q.Get("chat_id") != "":
		chatID, perr := strconv.ParseInt(q.Get("chat_id"), 10, 64)
		if perr != nil {
			http.Error(w, "Invalid chat_id", http.StatusBadRequest)
			return
		}
		orders, err = h.orders.GetByChatID(r.Context(), chatID)
	case q.Get("paid") != "":
		paid, perr := strconv.ParseBool(q.Get("paid"))
		if perr != nil {
			http.Error(w, "Invalid paid", http.StatusBadRequest)
			return
		}
		orders, err = h.orders.GetByPaidStatus(r.Context(), paid)
	default:
		orders, err = h.orders.GetAll(r.Context())
	}
	if err != nil {
		h.logger.Error("Error getting orders", zap.Error(err))
		http.Error(w, "Error getting orders", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleOrderStats(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.orders.Stats(r.Context())
	if err != nil {
		h.logger.Error("Error getting order stats", zap.Error(err))
		http.Error(w, "Error getting order stats", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid days", http.StatusBadRequest)
			return
		}
		days = n
	}

	daily, err := h.orders.Daily(r.Context(), days)
	if err != nil {
		h.logger.Error("Error getting daily stats", zap.Error(err))
		http.Error(w, "Error getting daily stats", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, daily)
}

// handleOrder serves GET /api/orders/{id} and POST /api/orders/{id}/paid
func (h *Handler) handleOrder(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/orders/"), "/")
	if path == "" {
		http.Error(w, "Order ID required", http.StatusBadRequest)
		return
	}

	if id, ok := strings.CutSuffix(path, "/paid"); ok {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := h.orders.MarkPaid(r.Context(), id); err != nil {
			h.orderError(w, err)
			return
		}
		h.logger.Info("Order marked as paid", zap.String("order_id", id))
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "paid": true})
		return
	}

	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	order, err := h.orders.GetByID(r.Context(), path)
	if err != nil {
		h.orderError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) orderError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrOrderNotFound) {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}
	h.logger.Error("Error accessing order", zap.Error(err))
	http.Error(w, "Error accessing order", http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Api-Key, X-Requested-With")
}
