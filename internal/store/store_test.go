package store

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	f, err := os.CreateTemp("", "exchange-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	dbPath := f.Name()
	f.Close()

	store, err := New(dbPath)
	if err != nil {
		os.Remove(dbPath)
		t.Fatalf("failed to create store: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.Remove(dbPath)
	}

	return store, cleanup
}

// ==================== USER TESTS ====================

func TestCreateUser(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	user, err := store.CreateUser("alice", "password123")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if user.ID == "" {
		t.Error("expected user ID to be set")
	}
	if user.Username != "alice" {
		t.Errorf("expected username 'alice', got '%s'", user.Username)
	}
	if user.PasswordHash == "" {
		t.Error("expected password hash to be set")
	}
	if user.PasswordHash == "password123" {
		t.Error("password should be hashed, not stored in plain text")
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.CreateUser("alice", "password123")
	if err != nil {
		t.Fatalf("first CreateUser failed: %v", err)
	}

	_, err = store.CreateUser("alice", "different")
	if err != ErrUserExists {
		t.Errorf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateUser(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.CreateUser("alice", "password123")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	// Successful auth
	user, err := store.AuthenticateUser("alice", "password123")
	if err != nil {
		t.Fatalf("AuthenticateUser failed: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("expected username 'alice', got '%s'", user.Username)
	}

	// Wrong password
	_, err = store.AuthenticateUser("alice", "wrongpassword")
	if err != ErrInvalidPassword {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}

	// User not found
	_, err = store.AuthenticateUser("bob", "password123")
	if err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetUserByID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	created, err := store.CreateUser("alice", "password123")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	user, err := store.GetUserByID(created.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("expected username 'alice', got '%s'", user.Username)
	}

	_, err = store.GetUserByID("nonexistent")
	if err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

// ==================== SESSION TESTS ====================

func TestSessionLifecycle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	user, _ := store.CreateUser("alice", "pass")

	err := store.CreateSession("tok-1", user.ID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	sess, err := store.GetSession("tok-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess == nil || sess.UserID != user.ID {
		t.Fatalf("expected session for %s, got %+v", user.ID, sess)
	}

	if err := store.DeleteSession("tok-1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	sess, err = store.GetSession("tok-1")
	if err != nil {
		t.Fatalf("GetSession after delete failed: %v", err)
	}
	if sess != nil {
		t.Error("expected nil after delete")
	}
}

func TestExpiredSessionIsDropped(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	user, _ := store.CreateUser("alice", "pass")
	store.CreateSession("tok-old", user.ID, time.Now().Add(-time.Minute))

	sess, err := store.GetSession("tok-old")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess != nil {
		t.Error("expired session should read as nil")
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	user, _ := store.CreateUser("alice", "pass")
	store.CreateSession("tok-live", user.ID, time.Now().Add(time.Hour))
	store.CreateSession("tok-dead", user.ID, time.Now().Add(-time.Hour))

	if err := store.CleanupExpiredSessions(); err != nil {
		t.Fatalf("CleanupExpiredSessions failed: %v", err)
	}

	if sess, _ := store.GetSession("tok-live"); sess == nil {
		t.Error("live session should survive cleanup")
	}
	var count int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 session left, got %d", count)
	}
}

// ==================== JOURNAL TESTS ====================

func TestTradeJournal(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	store.InsertTrade("GOOG", "BUY", "15.00", 100, 1700000000000)
	store.InsertTrade("GOOG", "SELL", "14.50", 50, 1700000001000)
	store.InsertTrade("MSFT", "BUY", "300.25", 10, 1700000002000)

	trades, err := store.RecentTrades("GOOG", 10)
	if err != nil {
		t.Fatalf("RecentTrades failed: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 GOOG trades, got %d", len(trades))
	}
	// Most recent first.
	if trades[0].Price != "14.50" || trades[0].Quantity != 50 {
		t.Errorf("first trade: %+v", trades[0])
	}
	if trades[1].Side != "BUY" || trades[1].TradedAt != 1700000000000 {
		t.Errorf("second trade: %+v", trades[1])
	}

	n, err := store.TradeCount("GOOG")
	if err != nil {
		t.Fatalf("TradeCount failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected count 2, got %d", n)
	}
}

func TestRecorderJournalsTradesOnly(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	rec := NewRecorder(store)
	price := decimal.RequireFromString("15.0000")

	if err := rec.NotifyTrade("GOOG", 1700000000000, "SELL", price, 60); err != nil {
		t.Fatalf("NotifyTrade failed: %v", err)
	}
	if err := rec.NotifyQuote("GOOG", 1700000000000, price, price); err != nil {
		t.Fatalf("NotifyQuote failed: %v", err)
	}
	if err := rec.NotifyOrder(10000, price, 60, "FILLED"); err != nil {
		t.Fatalf("NotifyOrder failed: %v", err)
	}

	trades, err := store.RecentTrades("GOOG", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 journaled trade, got %d", len(trades))
	}
	if trades[0].Side != "SELL" || trades[0].Price != "15.0000" || trades[0].Quantity != 60 {
		t.Errorf("journaled trade: %+v", trades[0])
	}
}

// ==================== MIGRATION TESTS ====================

func TestMigrationStatus(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	applied, pending, err := store.MigrationStatus()
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}

	if len(pending) != 0 {
		t.Errorf("expected no pending migrations, got %d", len(pending))
	}
	if len(applied) != len(migrations) {
		t.Errorf("expected %d applied migrations, got %d", len(migrations), len(applied))
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.Migrate()
	if err != nil {
		t.Fatalf("second Migrate() failed: %v", err)
	}

	_, pending, err := store.MigrationStatus()
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending migrations after re-run, got %d", len(pending))
	}

	_, err = store.CreateUser("test", "pass")
	if err != nil {
		t.Fatalf("CreateUser failed after migration re-run: %v", err)
	}
}

func TestMigrationVersionsAreSequential(t *testing.T) {
	for i, m := range migrations {
		expectedVersion := i + 1
		if m.Version != expectedVersion {
			t.Errorf("migration %d has version %d, expected %d", i, m.Version, expectedVersion)
		}
	}
}
