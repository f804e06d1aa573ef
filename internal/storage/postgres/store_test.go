package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmicapp/karmic/internal/domain/request"
	"github.com/karmicapp/karmic/internal/domain/user"
	"github.com/karmicapp/karmic/internal/platform/migrations"
	"github.com/karmicapp/karmic/internal/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func requestColumns() []string {
	return []string{"id", "title", "description", "difficulty", "reward", "xp_value", "requester_id", "helper_id", "status", "created_at"}
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.CreateUser(context.Background(), user.User{Username: "alice"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, username").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequestDebitsAndInserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT coins FROM users").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"coins"}).AddRow(int64(100)))
	mock.ExpectExec("UPDATE users SET coins = coins -").
		WithArgs("u1", int64(25)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req, err := store.CreateRequest(context.Background(), request.Request{
		Title:       "walk my dog",
		Description: "around the block",
		Difficulty:  "Medium",
		Reward:      25,
		XPValue:     25,
		RequesterID: "u1",
		Status:      request.StatusLive,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequestInsufficientCoinsRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT coins FROM users").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"coins"}).AddRow(int64(20)))
	mock.ExpectRollback()

	_, err := store.CreateRequest(context.Background(), request.Request{
		Title:       "too expensive",
		Reward:      50,
		XPValue:     50,
		RequesterID: "u1",
		Status:      request.StatusLive,
	})
	assert.ErrorIs(t, err, storage.ErrInsufficientCoins)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleRequestCreditsHelper(t *testing.T) {
	store, mock := newMockStore(t)

	created := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, title").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(requestColumns()).
			AddRow("r1", "walk my dog", "around the block", "Medium", int64(25), int64(25), "u1", "u2", "Confirmed_By_Helper", created))
	mock.ExpectExec("UPDATE users SET coins = coins").
		WithArgs("u2", int64(25), int64(25)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE requests SET status").
		WithArgs("r1", string(request.StatusCompleted)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	settled, err := store.SettleRequest(context.Background(), request.Request{ID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, request.StatusCompleted, settled.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleRequestWrongStatusRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	created := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, title").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(requestColumns()).
			AddRow("r1", "walk my dog", "around the block", "Medium", int64(25), int64(25), "u1", "u2", "Live", created))
	mock.ExpectRollback()

	_, err := store.SettleRequest(context.Background(), request.Request{ID: "r1"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db.DB); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := New(db)

	requester, err := store.CreateUser(ctx, user.User{Username: "it-requester", PasswordHash: "x", Coins: 100})
	if err != nil {
		t.Fatalf("create requester: %v", err)
	}
	helper, err := store.CreateUser(ctx, user.User{Username: "it-helper", PasswordHash: "x", Coins: 100})
	if err != nil {
		t.Fatalf("create helper: %v", err)
	}

	req, err := store.CreateRequest(ctx, request.Request{
		Title:       "integration favor",
		Description: "end to end",
		Difficulty:  "Medium",
		Reward:      25,
		XPValue:     25,
		RequesterID: requester.ID,
		Status:      request.StatusLive,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	req.HelperID = helper.ID
	req.Status = request.StatusConfirmedByHelper
	if _, err := store.UpdateRequest(ctx, req); err != nil {
		t.Fatalf("update request: %v", err)
	}
	if _, err := store.SettleRequest(ctx, req); err != nil {
		t.Fatalf("settle request: %v", err)
	}

	got, err := store.GetUser(ctx, helper.ID)
	if err != nil {
		t.Fatalf("get helper: %v", err)
	}
	if got.Coins != 125 || got.XP != 25 {
		t.Fatalf("helper coins/xp = %d/%d, want 125/25", got.Coins, got.XP)
	}
	if _, err := store.SettleRequest(ctx, req); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second settle error = %v, want ErrNotFound", err)
	}
}
