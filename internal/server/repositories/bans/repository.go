// Package bans provides read access to moderation ban rows. The server never
// writes bans; it only checks whether a given identity matches an active one.
package bans

import (
	"context"

	"github.com/aximilate/ctrl/internal/server/models"
)

// Scope identifies which identity a ban lookup matches against.
type Scope string

const (
	ScopeUser        Scope = "user"
	ScopeIP          Scope = "ip"
	ScopeFingerprint Scope = "fingerprint"
)

type Repository interface {
	// FindActive returns the most recently created active ban whose value
	// matches in the given scope, or common.ErrorNotFound.
	FindActive(ctx context.Context, scope Scope, value string) (*models.Ban, error)
}
