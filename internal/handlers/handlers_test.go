package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/orderdesk/orderdesk/internal/api"
	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/chat"
	"github.com/orderdesk/orderdesk/internal/config"
	"github.com/orderdesk/orderdesk/internal/files"
	"github.com/orderdesk/orderdesk/internal/models"
)

// memStore is an in-memory DataStore for handler tests.
type memStore struct {
	mu         sync.Mutex
	nextUser   int64
	nextMsg    int64
	nextFb     int64
	users      map[int64]*models.User
	orders     map[int64]*models.Order
	messages   []*models.Message
	feedbacks  []*models.Feedback
	promocodes map[string]*models.Promocode
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[int64]*models.User),
		orders:     make(map[int64]*models.Order),
		promocodes: make(map[string]*models.Promocode),
	}
}

func (m *memStore) Close()                         {}
func (m *memStore) Ping(ctx context.Context) error { return nil }

func (m *memStore) CreateUser(ctx context.Context, username, email, passwordHash, role string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextUser++
	u := &models.User{
		ID: m.nextUser, Username: username, Email: email,
		PasswordHash: passwordHash, Role: role, CreatedAt: time.Now().UTC(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email && email != "" {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.TelegramID == telegramID && telegramID != 0 {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateTelegramUser(ctx context.Context, username string, telegramID int64, passwordHash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return nil, fmt.Errorf("username %q taken", username)
		}
	}
	m.nextUser++
	u := &models.User{
		ID: m.nextUser, Username: username, PasswordHash: passwordHash,
		Role: models.RoleClient, TelegramID: telegramID, CreatedAt: time.Now().UTC(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) UpdateUserProfile(ctx context.Context, id int64, username, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		if username != "" {
			u.Username = username
		}
		if email != "" {
			u.Email = email
		}
	}
	return nil
}

func (m *memStore) CreateOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[o.ID]; exists {
		return nil, fmt.Errorf("duplicate order id")
	}
	cp := *o
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	if cp.Files == nil {
		cp.Files = []models.OrderFile{}
	}
	m.orders[cp.ID] = &cp
	return &cp, nil
}

func (m *memStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListOrders(ctx context.Context, userID int64, limit int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if userID == 0 || o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memStore) UpdateOrder(ctx context.Context, id int64, status, notes *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		if status != nil {
			o.Status = *status
		}
		if notes != nil {
			o.Notes = *notes
		}
	}
	return nil
}

func (m *memStore) AppendOrderFile(ctx context.Context, orderID int64, f models.OrderFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderID]; ok {
		o.Files = append(o.Files, f)
	}
	return nil
}

func (m *memStore) AddStatusChange(ctx context.Context, c *models.OrderStatusChange) error {
	return nil
}

func (m *memStore) OrderStats(ctx context.Context, userID int64) (*models.OrderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.OrderStats{}
	for _, o := range m.orders {
		if o.UserID != userID {
			continue
		}
		stats.TotalOrders++
		switch o.Status {
		case models.OrderStatusPending:
			stats.Pending++
		case models.OrderStatusInProgress:
			stats.InProgress++
		case models.OrderStatusCompleted:
			stats.Completed++
		}
	}
	return stats, nil
}

func (m *memStore) AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMsg++
	cp := *msg
	cp.ID = m.nextMsg
	cp.CreatedAt = time.Now().UTC()
	m.messages = append(m.messages, &cp)
	return &cp, nil
}

func (m *memStore) OrderMessages(ctx context.Context, orderID int64, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Message, 0)
	for _, msg := range m.messages {
		if msg.OrderID != nil && *msg.OrderID == orderID {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *memStore) SupportMessages(ctx context.Context, userID int64, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Message, 0)
	for _, msg := range m.messages {
		if msg.OrderID == nil && (userID == 0 || msg.UserID == userID) {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *memStore) AddFeedback(ctx context.Context, f *models.Feedback) (*models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextFb++
	cp := *f
	cp.ID = m.nextFb
	cp.CreatedAt = time.Now().UTC()
	m.feedbacks = append(m.feedbacks, &cp)
	return &cp, nil
}

func (m *memStore) ListFeedbacks(ctx context.Context, limit int) ([]models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Feedback, 0)
	for _, f := range m.feedbacks {
		out = append(out, *f)
	}
	return out, nil
}

func (m *memStore) GetPromocode(ctx context.Context, code string) (*models.Promocode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.promocodes[code], nil
}

type testEnv struct {
	srv   *httptest.Server
	store *memStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newMemStore()
	cfg := &config.Config{Env: "test", CORSOrigins: []string{"*"}}
	tokens := auth.NewManager("test-secret", time.Hour)
	hub := chat.NewHub(tokens, db, zerolog.Nop())
	fileStore, err := files.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	router := api.NewRouter(cfg, zerolog.Nop(), db, nil, fileStore, hub, tokens)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: db}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) registerClient(t *testing.T, username string) string {
	t.Helper()
	resp := e.request(t, "POST", "/api/client/register", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register failed with %d", resp.StatusCode)
	}
	var tr struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, resp, &tr)
	if tr.AccessToken == "" {
		t.Fatal("expected access token")
	}
	return tr.AccessToken
}

func (e *testEnv) createAdmin(t *testing.T, username string) string {
	t.Helper()
	hash, err := auth.HashPassword("adminpass123")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.store.CreateUser(context.Background(), username, "", hash, models.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	resp := e.request(t, "POST", "/login", "", map[string]string{
		"username": username,
		"password": "adminpass123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin login failed with %d", resp.StatusCode)
	}
	var tr struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, resp, &tr)
	return tr.AccessToken
}

func TestClientRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	env.registerClient(t, "alice")

	// Duplicate username is rejected
	resp := env.request(t, "POST", "/api/client/register", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Wrong password is rejected
	resp = env.request(t, "POST", "/api/client/login", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Correct password works
	resp = env.request(t, "POST", "/api/client/login", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestShortPasswordRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "POST", "/api/client/register", "", map[string]string{
		"username": "bob",
		"password": "short",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestStaffLoginRejectsClients(t *testing.T) {
	env := newTestEnv(t)
	env.registerClient(t, "alice")

	resp := env.request(t, "POST", "/login", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for client on staff login, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerClient(t, "alice")

	resp := env.request(t, "POST", "/api/client/orders", token, map[string]string{
		"topic":      "essay on distributed systems",
		"order_type": "essay",
		"deadline":   "2026-09-15",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var order models.Order
	decode(t, resp, &order)
	if order.ID < 100_000_000 || order.ID > 999_999_999 {
		t.Fatalf("expected 9-digit order id, got %d", order.ID)
	}
	if order.Status != models.OrderStatusPending {
		t.Fatalf("expected pending status, got %q", order.Status)
	}

	// Owner can fetch it
	resp = env.request(t, "GET", fmt.Sprintf("/api/client/orders/%d", order.ID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Another client cannot
	other := env.registerClient(t, "mallory")
	resp = env.request(t, "GET", fmt.Sprintf("/api/client/orders/%d", order.ID), other, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign order, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestMissingTopicRejected(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerClient(t, "alice")

	resp := env.request(t, "POST", "/api/client/orders", token, map[string]string{
		"order_type": "essay",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSupportMessagesOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerClient(t, "alice")

	resp := env.request(t, "POST", "/api/client/support/messages", token, map[string]string{
		"text": "where is my order?",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var msg models.Message
	decode(t, resp, &msg)
	if msg.Direction != models.DirectionIn || msg.ID == 0 {
		t.Fatalf("unexpected message: %+v", msg)
	}

	resp = env.request(t, "GET", "/api/client/support/messages", token, nil)
	var history struct {
		Messages []models.Message `json:"messages"`
	}
	decode(t, resp, &history)
	if len(history.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(history.Messages))
	}
}

func TestStaffReplyRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	clientToken := env.registerClient(t, "alice")

	resp := env.request(t, "POST", "/api/send_message_to_user", clientToken, map[string]interface{}{
		"user_id": 1,
		"text":    "fake staff reply",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for client, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestStaffReplyStoredWithDirectionOut(t *testing.T) {
	env := newTestEnv(t)
	env.registerClient(t, "alice")
	adminToken := env.createAdmin(t, "support")

	resp := env.request(t, "POST", "/api/send_message_to_user", adminToken, map[string]interface{}{
		"user_id": 1,
		"text":    "Hello, how can we help?",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var msg models.Message
	decode(t, resp, &msg)
	if msg.Direction != models.DirectionOut {
		t.Fatalf("expected direction out, got %q", msg.Direction)
	}
	if msg.UserID != 1 {
		t.Fatalf("message must be attributed to the target user, got %d", msg.UserID)
	}
}

func TestPromocodeValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerClient(t, "alice")

	env.store.mu.Lock()
	env.store.promocodes["SAVE10"] = &models.Promocode{
		Code: "SAVE10", DiscountType: models.DiscountPercent, DiscountValue: 10,
	}
	env.store.mu.Unlock()

	resp := env.request(t, "POST", "/api/client/promocode/validate", token, map[string]interface{}{
		"code":   "save10",
		"amount": 1000,
	})
	var result struct {
		Valid    bool  `json:"valid"`
		Discount int64 `json:"discount"`
	}
	decode(t, resp, &result)
	if !result.Valid || result.Discount != 100 {
		t.Fatalf("unexpected result: %+v", result)
	}

	resp = env.request(t, "POST", "/api/client/promocode/validate", token, map[string]interface{}{
		"code":   "NOPE",
		"amount": 1000,
	})
	decode(t, resp, &result)
	if result.Valid {
		t.Fatal("unknown code must be invalid")
	}
}

func TestFeedbackStarsValidated(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerClient(t, "alice")

	resp := env.request(t, "POST", "/api/client/feedback", token, map[string]interface{}{
		"text":  "meh",
		"stars": 6,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for stars out of range, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.request(t, "POST", "/api/client/feedback", token, map[string]interface{}{
		"text":  "great",
		"stars": 5,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "GET", "/api/client/orders", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPublicEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/api/prices", "/api/faq", "/api/feedbacks/public"} {
		resp := env.request(t, "GET", path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestTelegramAuth(t *testing.T) {
	env := newTestEnv(t)

	// First contact creates the account and signs it in.
	resp := env.request(t, "POST", "/api/client/auth-telegram", "", map[string]interface{}{
		"telegram_id": 555001,
		"username":    "tguser",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var first struct {
		AccessToken string       `json:"access_token"`
		User        *models.User `json:"user"`
	}
	decode(t, resp, &first)
	if first.AccessToken == "" || first.User == nil {
		t.Fatal("expected token and user")
	}
	if first.User.Role != models.RoleClient || first.User.TelegramID != 555001 {
		t.Fatalf("unexpected account: %+v", first.User)
	}

	// The token works on protected routes.
	resp = env.request(t, "GET", "/api/client/profile", first.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on profile, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Second contact resolves to the same account.
	resp = env.request(t, "POST", "/api/client/auth-telegram", "", map[string]interface{}{
		"telegram_id": 555001,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var second struct {
		User *models.User `json:"user"`
	}
	decode(t, resp, &second)
	if second.User == nil || second.User.ID != first.User.ID {
		t.Fatalf("expected same account on repeat auth, got %+v", second.User)
	}

	// A taken username falls back to a generated one.
	resp = env.request(t, "POST", "/api/client/auth-telegram", "", map[string]interface{}{
		"telegram_id": 555002,
		"username":    "tguser",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var third struct {
		User *models.User `json:"user"`
	}
	decode(t, resp, &third)
	if third.User == nil || third.User.Username != "user_555002" {
		t.Fatalf("expected generated username, got %+v", third.User)
	}

	// Missing telegram_id is rejected.
	resp = env.request(t, "POST", "/api/client/auth-telegram", "", map[string]string{
		"username": "nobody",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
