package sessions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aximilate/ctrl/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestRotate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	mock.ExpectExec(`(?s)UPDATE\s+sessions\s+SET\s+refresh_hash\s*=\s*\$3`).
		WithArgs("sess-1", "old-hash", "new-hash", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rotated, err := repo.Rotate(context.Background(), "sess-1", "old-hash", "new-hash", exp)
	if err != nil {
		t.Fatalf("Rotate error: %v", err)
	}
	if !rotated {
		t.Fatal("want rotated=true")
	}
}

func TestRotate_LostRace(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	mock.ExpectExec(`(?s)UPDATE\s+sessions\s+SET\s+refresh_hash\s*=\s*\$3`).
		WithArgs("sess-1", "stale-hash", "new-hash", exp).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rotated, err := repo.Rotate(context.Background(), "sess-1", "stale-hash", "new-hash", exp)
	if err != nil {
		t.Fatalf("Rotate error: %v", err)
	}
	if rotated {
		t.Fatal("want rotated=false for a stale hash")
	}
}

func TestFindActiveByRefreshHash_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+.*FROM\s+sessions\s+WHERE\s+refresh_hash\s*=\s*\$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveByRefreshHash(context.Background(), "nope")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFindActiveByRefreshHash_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	cols := []string{"id", "user_id", "refresh_hash", "user_agent", "ip", "fingerprint",
		"created_at", "expires_at", "revoked_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("sess-1", int64(7), "hash", nil, nil, nil, now, now.Add(time.Hour), nil)
	mock.ExpectQuery(`(?s)SELECT\s+.*FROM\s+sessions\s+WHERE\s+refresh_hash\s*=\s*\$1`).
		WithArgs("hash").
		WillReturnRows(rows)

	s, err := repo.FindActiveByRefreshHash(context.Background(), "hash")
	if err != nil {
		t.Fatalf("FindActiveByRefreshHash error: %v", err)
	}
	if s.ID != "sess-1" || s.UserID != 7 {
		t.Fatalf("unexpected session: %+v", s)
	}
}

func TestRevoke(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+sessions\s+SET\s+revoked_at\s*=\s*now\(\)`).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Revoke(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
}
