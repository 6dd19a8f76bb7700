package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/orderdesk/orderdesk/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func createTestUser(t *testing.T, s *SQLiteStore, username string) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), username, username+"@example.com", "hash", models.RoleClient)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, s, "alice")
	if u.ID == 0 {
		t.Fatal("expected assigned id")
	}

	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Username != "alice" || got.Role != models.RoleClient {
		t.Fatalf("unexpected user: %+v", got)
	}

	byName, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if byName == nil || byName.ID != u.ID {
		t.Fatal("lookup by username failed")
	}

	missing, err := s.GetUserByID(ctx, 99999)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatal("expected nil for missing user")
	}
}

func TestAppendMessageAssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, s, "alice")

	stored, err := s.AppendMessage(ctx, &models.Message{
		UserID:      u.ID,
		Username:    u.Username,
		Direction:   models.DirectionIn,
		Text:        "hello",
		MessageType: models.MessageTypeText,
	})
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID == 0 {
		t.Fatal("expected assigned message id")
	}
	if stored.CreatedAt.IsZero() {
		t.Fatal("expected assigned timestamp")
	}
	if stored.OrderID != nil {
		t.Fatal("support message must have nil order id")
	}
}

func TestSupportAndOrderMessagesSeparated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, s, "alice")
	orderID := int64(123456789)

	if _, err := s.CreateOrder(ctx, &models.Order{
		ID:     orderID,
		UserID: u.ID,
		Topic:  "essay",
		Status: models.OrderStatusPending,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.AppendMessage(ctx, &models.Message{
		UserID: u.ID, Direction: models.DirectionIn, Text: "support question",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendMessage(ctx, &models.Message{
		UserID: u.ID, Direction: models.DirectionIn, Text: "order question", OrderID: &orderID,
	}); err != nil {
		t.Fatal(err)
	}

	support, err := s.SupportMessages(ctx, u.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(support) != 1 || support[0].Text != "support question" {
		t.Fatalf("unexpected support messages: %+v", support)
	}

	order, err := s.OrderMessages(ctx, orderID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 1 || order[0].Text != "order question" {
		t.Fatalf("unexpected order messages: %+v", order)
	}
	if order[0].OrderID == nil || *order[0].OrderID != orderID {
		t.Fatal("order message lost its order id")
	}
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, s, "alice")

	created, err := s.CreateOrder(ctx, &models.Order{
		ID:       555000111,
		UserID:   u.ID,
		Username: u.Username,
		Topic:    "thesis",
		Status:   models.OrderStatusPending,
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("expected created_at set")
	}

	status := models.OrderStatusInProgress
	if err := s.UpdateOrder(ctx, created.ID, &status, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.AddStatusChange(ctx, &models.OrderStatusChange{
		OrderID: created.ID, Status: status, ChangedBy: u.ID,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.OrderStatusInProgress {
		t.Fatalf("expected in_progress, got %q", got.Status)
	}

	if err := s.AppendOrderFile(ctx, created.ID, models.OrderFile{FileID: "F1", FileName: "draft.docx"}); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Files) != 1 || got.Files[0].FileName != "draft.docx" {
		t.Fatalf("unexpected files: %+v", got.Files)
	}

	mine, err := s.ListOrders(ctx, u.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 {
		t.Fatalf("expected 1 order, got %d", len(mine))
	}

	stats, err := s.OrderStats(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalOrders != 1 || stats.InProgress != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestGetOrderMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetOrder(context.Background(), 404)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected nil for missing order")
	}
}

func TestFeedbackRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, s, "alice")
	stored, err := s.AddFeedback(ctx, &models.Feedback{
		UserID: &u.ID, Username: u.Username, Text: "great service", Stars: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID == 0 {
		t.Fatal("expected assigned feedback id")
	}

	list, err := s.ListFeedbacks(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Stars != 5 {
		t.Fatalf("unexpected feedbacks: %+v", list)
	}
}

func TestGetPromocodeMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetPromocode(context.Background(), "NOPE")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected nil for unknown promocode")
	}
}

func TestTelegramUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateTelegramUser(ctx, "tg_alice", 555001, "hash")
	if err != nil {
		t.Fatal(err)
	}
	if u.ID == 0 || u.Role != models.RoleClient || u.TelegramID != 555001 {
		t.Fatalf("unexpected telegram user: %+v", u)
	}

	found, err := s.GetUserByTelegramID(ctx, 555001)
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.ID != u.ID {
		t.Fatalf("expected the created user, got %+v", found)
	}

	missing, err := s.GetUserByTelegramID(ctx, 999999)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown telegram id, got %+v", missing)
	}
}
