package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-telegram/bot/models"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"simbot/config"
	"simbot/internal/domain"
	"simbot/internal/repository"
	"simbot/internal/service"
	"simbot/traits/database"
)

const (
	customerChat = int64(1001)
	staffChat    = int64(-500)
	apiToken     = "0123456789abcdef"
)

type sent struct {
	id     int
	chatID int64
	text   string
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sent
	deleted []int
}

func (s *fakeSender) Send(_ context.Context, chatID int64, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := 100 + len(s.sent)
	s.sent = append(s.sent, sent{id: id, chatID: chatID, text: text})
	return id, nil
}

func (s *fakeSender) last(chatID int64) sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].chatID == chatID {
			return s.sent[i]
		}
	}
	return sent{}
}

func (s *fakeSender) Delete(_ context.Context, _ int64, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, messageID)
	return nil
}

func (s *fakeSender) to(chatID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.sent {
		if m.chatID == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

type scriptedOracle struct {
	mu      sync.Mutex
	replies []string
}

func (o *scriptedOracle) Complete(_ context.Context, _ service.OracleRequest) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.replies) == 0 {
		return "Чим можу допомогти?", nil
	}
	reply := o.replies[0]
	o.replies = o.replies[1:]
	return reply, nil
}

type env struct {
	h      *Handler
	sender *fakeSender
	orders *repository.OrderRepository
}

func newEnv(t *testing.T, replies ...string) *env {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.CreateTables(db, zap.NewNop()))
	require.NoError(t, database.CreateViews(db, zap.NewNop()))

	cfg := config.Default()
	cfg.APIToken = apiToken
	cfg.OrderForwardChatID = staffChat
	cfg.OwnerUsername = "boss"
	cfg.ManagerIDs = []int64{77}

	orders := repository.NewOrderRepository(db)
	conv := service.NewConversation(cfg, zap.NewNop(), service.DefaultCatalog(),
		&scriptedOracle{replies: replies}, repository.NewMemoryStateRepository(), orders)

	h := NewHandler(cfg, zap.NewNop(), context.Background(), conv, orders)
	sender := &fakeSender{}
	h.SetSender(sender)
	return &env{h: h, sender: sender, orders: orders}
}

func customerMessage(text string) *models.Message {
	return &models.Message{
		ID:   10,
		Chat: models.Chat{ID: customerChat},
		From: &models.User{ID: 5, Username: "jane"},
		Text: text,
	}
}

func staffMessage(username, text string, reply *models.Message) *models.Message {
	return &models.Message{
		ID:             20,
		Chat:           models.Chat{ID: staffChat},
		From:           &models.User{ID: 6, Username: username},
		Text:           text,
		ReplyToMessage: reply,
	}
}

const orderReply = `{"full_name": "Jane Doe", "phone": "0991234567", "city": "Kyiv", "np": "30", "items": [{"country": "Англія", "qty": 2}]}`

func TestHandleMessageStart(t *testing.T) {
	e := newEnv(t)

	e.h.HandleMessage(context.Background(), customerMessage("/start"))

	assert.Equal(t, []string{greetingText}, e.sender.to(customerChat))
}

func TestHandleMessageForwardsAcceptedOrder(t *testing.T) {
	e := newEnv(t, orderReply)

	e.h.HandleMessage(context.Background(), customerMessage("так, все вірно"))

	replies := e.sender.to(customerChat)
	require.Len(t, replies, 3)
	assert.Equal(t, service.ThanksMessage, replies[1])

	forwarded := e.sender.to(staffChat)
	require.Len(t, forwarded, 1)
	assert.Equal(t, "@jane\n"+replies[0], forwarded[0])

	stored, err := e.orders.GetByChatID(context.Background(), customerChat)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 650, stored[0].Total)
}

func TestHandleMessageUsesCaption(t *testing.T) {
	e := newEnv(t, "Так, Польща є в наявності.")

	msg := customerMessage("")
	msg.Caption = "є Польща?"
	e.h.HandleMessage(context.Background(), msg)

	assert.Equal(t, []string{"Так, Польща є в наявності."}, e.sender.to(customerChat))
}

func TestHandleMessageIgnoresManagers(t *testing.T) {
	e := newEnv(t)

	msg := customerMessage("привіт")
	msg.From.ID = 77
	e.h.HandleMessage(context.Background(), msg)

	assert.Empty(t, e.sender.sent)
}

func TestStaffChatOwnerEditsPostedOrder(t *testing.T) {
	e := newEnv(t)
	posted := &models.Message{
		ID:   19,
		Chat: models.Chat{ID: staffChat},
		Text: "@jane\nJane Doe\n099 123 4567\nKyiv № 30\n\n🇬🇧 ВЕЛИКОБРИТАНІЯ, 2 шт — 650 грн",
	}

	e.h.HandleMessage(context.Background(), staffMessage("Boss", "оплачено", posted))

	assert.ElementsMatch(t, []int{19, 20}, e.sender.deleted)
	assert.Equal(t, []string{"@jane\nJane Doe\n099 123 4567\nKyiv № 30\n\n🇬🇧 ВЕЛИКОБРИТАНІЯ, 2 шт — (замовлення оплачене)"}, e.sender.to(staffChat))
}

func TestStaffChatPaidReplyUpdatesArchive(t *testing.T) {
	e := newEnv(t, orderReply)
	ctx := context.Background()

	e.h.HandleMessage(ctx, customerMessage("так, все вірно"))
	posted := e.sender.last(staffChat)
	require.NotZero(t, posted.id)

	stored, err := e.orders.GetByChatID(ctx, customerChat)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].Paid)

	e.h.HandleMessage(ctx, staffMessage("boss", "Примітка: після 18:00",
		&models.Message{ID: posted.id, Chat: models.Chat{ID: staffChat}, Text: posted.text}))
	noted := e.sender.last(staffChat)
	require.NotEqual(t, posted.id, noted.id)

	e.h.HandleMessage(ctx, staffMessage("boss", "оплачено",
		&models.Message{ID: noted.id, Chat: models.Chat{ID: staffChat}, Text: noted.text}))

	order, err := e.orders.GetByID(ctx, stored[0].ID)
	require.NoError(t, err)
	assert.True(t, order.Paid)
	assert.Contains(t, e.sender.last(staffChat).text, "(замовлення оплачене)")

	paid, err := e.orders.GetByPaidStatus(ctx, true)
	require.NoError(t, err)
	assert.Len(t, paid, 1)
}

func TestStaffChatIgnoresOthers(t *testing.T) {
	e := newEnv(t, orderReply)

	e.h.HandleMessage(context.Background(), staffMessage("stranger", "Jane Doe 0991234567 Kyiv 30 Англія 2", nil))

	assert.Empty(t, e.sender.sent)
	assert.Empty(t, e.sender.deleted)
}

func TestStaffChatOwnerPostsFreeTextOrder(t *testing.T) {
	e := newEnv(t, orderReply)

	e.h.HandleMessage(context.Background(), staffMessage("boss", "Jane Doe 0991234567 Kyiv 30 Англія 2", nil))

	assert.Equal(t, []int{20}, e.sender.deleted)
	assert.Equal(t, []string{"Jane Doe\n099 123 4567\nKyiv № 30\n\n🇬🇧 ВЕЛИКОБРИТАНІЯ, 2 шт — 650 грн"}, e.sender.to(staffChat))
}

func TestStaffChatOwnerChatterIsIgnored(t *testing.T) {
	e := newEnv(t, "Це не замовлення.")

	e.h.HandleMessage(context.Background(), staffMessage("boss", "всім гарного дня", nil))

	assert.Empty(t, e.sender.sent)
	assert.Empty(t, e.sender.deleted)
}

func seedOrder(t *testing.T, e *env, id string, chatID int64) {
	t.Helper()
	require.NoError(t, e.orders.Create(context.Background(), &domain.OrderRecord{
		ID:       id,
		ChatID:   chatID,
		FullName: "Jane Doe",
		Phone:    "099 123 4567",
		Delivery: domain.Delivery{City: "Kyiv", Branch: "30"},
		Items:    []domain.OrderItem{{Country: "GB", Quantity: 2}},
		Total:    650,
	}))
}

func TestOrdersAPI(t *testing.T) {
	e := newEnv(t)
	seedOrder(t, e, "o-1", 1)
	seedOrder(t, e, "o-2", 2)

	srv := httptest.NewServer(e.h.Routes(nil))
	t.Cleanup(srv.Close)

	var all []domain.OrderRecord
	getJSON(t, srv.URL+"/api/orders", http.StatusOK, &all)
	assert.Len(t, all, 2)

	var byChat []domain.OrderRecord
	getJSON(t, srv.URL+"/api/orders?chat_id=2", http.StatusOK, &byChat)
	require.Len(t, byChat, 1)
	assert.Equal(t, "o-2", byChat[0].ID)

	resp := do(t, http.MethodPost, srv.URL+"/api/orders/o-1/paid", map[string]string{"X-Api-Key": apiToken})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var one domain.OrderRecord
	getJSON(t, srv.URL+"/api/orders/o-1", http.StatusOK, &one)
	assert.True(t, one.Paid)
	assert.Equal(t, []domain.OrderItem{{Country: "GB", Quantity: 2}}, one.Items)

	var paid []domain.OrderRecord
	getJSON(t, srv.URL+"/api/orders?paid=true", http.StatusOK, &paid)
	require.Len(t, paid, 1)
	assert.Equal(t, "o-1", paid[0].ID)

	var stats domain.OrderStats
	getJSON(t, srv.URL+"/api/orders/stats", http.StatusOK, &stats)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.Equal(t, 1, stats.PaidOrders)
	assert.Equal(t, 4, stats.TotalSims)

	var daily []repository.DailyStat
	getJSON(t, srv.URL+"/api/orders/daily?days=7", http.StatusOK, &daily)
	require.Len(t, daily, 1)
	assert.Equal(t, 2, daily[0].TotalOrders)
}

func TestOrdersAPIErrors(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.h.Routes(nil))
	t.Cleanup(srv.Close)

	getJSON(t, srv.URL+"/api/orders/missing", http.StatusNotFound, nil)
	getJSON(t, srv.URL+"/api/orders?chat_id=abc", http.StatusBadRequest, nil)
	getJSON(t, srv.URL+"/api/orders/daily?days=0", http.StatusBadRequest, nil)
	getJSON(t, srv.URL+"/api/orders/x/paid", http.StatusMethodNotAllowed, nil)

	resp := do(t, http.MethodPost, srv.URL+"/api/orders/missing/paid", map[string]string{"Authorization": "Bearer " + apiToken})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var health map[string]interface{}
	getJSON(t, srv.URL+"/health", http.StatusOK, &health)
	assert.Equal(t, "healthy", health["status"])
}

func TestOrdersAPIRequiresToken(t *testing.T) {
	e := newEnv(t)
	seedOrder(t, e, "o-1", 1)
	srv := httptest.NewServer(e.h.Routes(nil))
	t.Cleanup(srv.Close)

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
	}{
		{"no token", http.MethodGet, "/api/orders", nil},
		{"wrong bearer", http.MethodGet, "/api/orders/o-1", map[string]string{"Authorization": "Bearer nope"}},
		{"wrong scheme", http.MethodGet, "/api/orders/stats", map[string]string{"Authorization": "Basic " + apiToken}},
		{"wrong api key", http.MethodGet, "/api/orders/daily", map[string]string{"X-Api-Key": "nope"}},
		{"mark paid", http.MethodPost, "/api/orders/o-1/paid", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.headers)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}

	order, err := e.orders.GetByID(context.Background(), "o-1")
	require.NoError(t, err)
	assert.False(t, order.Paid)

	resp := do(t, http.MethodGet, srv.URL+"/health", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOrdersAPIWithoutConfiguredToken(t *testing.T) {
	e := newEnv(t)
	e.h.cfg.APIToken = ""
	srv := httptest.NewServer(e.h.Routes(nil))
	t.Cleanup(srv.Close)

	resp := do(t, http.MethodGet, srv.URL+"/api/orders", map[string]string{"Authorization": "Bearer "})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func do(t *testing.T, method, url string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, url string, wantStatus int, v interface{}) {
	t.Helper()
	resp := do(t, http.MethodGet, url, map[string]string{"Authorization": "Bearer " + apiToken})
	defer resp.Body.Close()

	require.Equal(t, wantStatus, resp.StatusCode)
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
}
