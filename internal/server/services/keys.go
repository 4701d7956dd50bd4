package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aximilate/ctrl/internal/common"
	"github.com/aximilate/ctrl/internal/dbx"
	"github.com/aximilate/ctrl/internal/server/models"
	"github.com/aximilate/ctrl/internal/server/repositories/repomanager"
)

// KeyService stores published key bundles and serves prekey bundles to
// session initiators, draining the one-time pool under a row lock.
type KeyService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewKeyService(db *sql.DB, m repomanager.RepositoryManager) *KeyService {
	return &KeyService{db: db, repomanager: m}
}

// Publish replaces the caller's bundle, one-time prekey pool included.
func (s *KeyService) Publish(ctx context.Context, userID int64, bundle *models.KeyBundle) error {
	if bundle.IdentityPublicKey == "" || bundle.SignedPrekeyPublic == "" || bundle.SignedPrekeySignature == "" {
		return fmt.Errorf("incomplete key bundle: %w", common.ErrorValidation)
	}
	bundle.UserID = userID
	return s.repomanager.Keys(s.db).Upsert(ctx, bundle)
}

// FetchBundle returns the target's prekey bundle, consuming the oldest
// one-time prekey. The read-modify-write runs under FOR UPDATE so two
// concurrent initiators never receive the same prekey. A drained pool yields
// a bundle with a nil one-time prekey.
func (s *KeyService) FetchBundle(ctx context.Context, targetID int64) (*models.PrekeyBundle, error) {
	var out *models.PrekeyBundle
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		keysRepo := s.repomanager.Keys(tx)
		bundle, err := keysRepo.GetForUpdate(ctx, targetID)
		if err != nil {
			return err
		}

		out = &models.PrekeyBundle{
			UserID:                bundle.UserID,
			IdentityPublicKey:     bundle.IdentityPublicKey,
			SignedPrekeyPublic:    bundle.SignedPrekeyPublic,
			SignedPrekeySignature: bundle.SignedPrekeySignature,
		}
		if len(bundle.OneTimePrekeys) == 0 {
			return nil
		}

		prekey := bundle.OneTimePrekeys[0]
		out.OneTimePrekey = &prekey
		return keysRepo.SetPrekeys(ctx, targetID, bundle.OneTimePrekeys[1:])
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PrekeyCount reports the remaining pool size so clients know when to top up.
func (s *KeyService) PrekeyCount(ctx context.Context, userID int64) (int, error) {
	bundle, err := s.repomanager.Keys(s.db).Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(bundle.OneTimePrekeys), nil
}
