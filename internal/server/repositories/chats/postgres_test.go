package chats

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aximilate/ctrl/internal/common"
	"github.com/aximilate/ctrl/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreateDirect_Inserted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+chats.*ON\s+CONFLICT\s+\(direct_key\)\s+DO\s+NOTHING`).
		WithArgs("c-1", "1:2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := repo.CreateDirect(context.Background(), "c-1", "1:2")
	if err != nil {
		t.Fatalf("CreateDirect error: %v", err)
	}
	if !created {
		t.Fatal("want created=true")
	}
}

func TestCreateDirect_LostRace(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+chats.*ON\s+CONFLICT\s+\(direct_key\)\s+DO\s+NOTHING`).
		WithArgs("c-2", "1:2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.CreateDirect(context.Background(), "c-2", "1:2")
	if err != nil {
		t.Fatalf("CreateDirect error: %v", err)
	}
	if created {
		t.Fatal("want created=false when a row for the key already exists")
	}
}

func TestGetByDirectKey_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	key := "1:2"
	rows := sqlmock.NewRows([]string{"id", "type", "title", "direct_key", "created_at", "updated_at"}).
		AddRow("c-1", "direct", nil, key, now, now)
	mock.ExpectQuery(`(?s)SELECT\s+.*FROM\s+chats\s+WHERE\s+direct_key\s*=\s*\$1`).
		WithArgs(key).
		WillReturnRows(rows)

	c, err := repo.GetByDirectKey(context.Background(), key)
	if err != nil {
		t.Fatalf("GetByDirectKey error: %v", err)
	}
	if c.ID != "c-1" || c.Type != models.ChatTypeDirect {
		t.Fatalf("unexpected chat: %+v", c)
	}
}

func TestUpdatePreferences_NotAMember(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE\s+chat_members`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tr := true
	err := repo.UpdatePreferences(context.Background(), "c-1", 99, &models.ChatPreferences{Muted: &tr})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestIsMember(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+EXISTS`).
		WithArgs("c-1", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsMember(context.Background(), "c-1", 7)
	if err != nil {
		t.Fatalf("IsMember error: %v", err)
	}
	if !ok {
		t.Fatal("want member=true")
	}
}
