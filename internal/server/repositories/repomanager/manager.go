package repomanager

import (
	"context"
	"database/sql"

	"github.com/aximilate/ctrl/internal/dbx"
	"github.com/aximilate/ctrl/internal/server/repositories/bans"
	"github.com/aximilate/ctrl/internal/server/repositories/calls"
	"github.com/aximilate/ctrl/internal/server/repositories/chats"
	"github.com/aximilate/ctrl/internal/server/repositories/codes"
	"github.com/aximilate/ctrl/internal/server/repositories/flows"
	"github.com/aximilate/ctrl/internal/server/repositories/keys"
	"github.com/aximilate/ctrl/internal/server/repositories/messages"
	"github.com/aximilate/ctrl/internal/server/repositories/sessions"
	"github.com/aximilate/ctrl/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Codes(db dbx.DBTX) codes.Repository
	Flows(db dbx.DBTX) flows.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Bans(db dbx.DBTX) bans.Repository
	Calls(db dbx.DBTX) calls.Repository
	Chats(db dbx.DBTX) chats.Repository
	Messages(db dbx.DBTX) messages.Repository
	Keys(db dbx.DBTX) keys.Repository
}
