package realtime

import (
	"context"
	"strconv"
	"time"

	"github.com/aximilate/ctrl/internal/logging"
	"github.com/redis/go-redis/v9"
)

const onlineSetKey = "presence:online"

// LastSeenToucher stamps account activity when a connection closes.
type LastSeenToucher interface {
	TouchLastSeen(ctx context.Context, userID int64) error
}

// Presence tracks which users currently hold at least one websocket
// connection, backed by a Redis set. Connection counts are kept per user so
// a second tab closing does not mark the user offline.
type Presence struct {
	rdb    *redis.Client
	users  LastSeenToucher
	logger logging.Logger
}

func NewPresence(rdb *redis.Client, users LastSeenToucher, logger logging.Logger) *Presence {
	return &Presence{rdb: rdb, users: users, logger: logger}
}

func connCountKey(userID int64) string {
	return "presence:conns:" + strconv.FormatInt(userID, 10)
}

// Connect registers one more connection for the user.
func (p *Presence) Connect(ctx context.Context, userID int64) {
	if p.rdb == nil {
		return
	}
	pipe := p.rdb.Pipeline()
	pipe.Incr(ctx, connCountKey(userID))
	pipe.SAdd(ctx, onlineSetKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Warn(ctx, "presence connect failed", "user_id", userID, "error", err)
	}
}

// Disconnect unregisters a connection; the user goes offline when the last
// one closes, and their last-seen timestamp is stamped.
func (p *Presence) Disconnect(ctx context.Context, userID int64) {
	if p.rdb != nil {
		remaining, err := p.rdb.Decr(ctx, connCountKey(userID)).Result()
		if err != nil {
			p.logger.Warn(ctx, "presence disconnect failed", "user_id", userID, "error", err)
		} else if remaining <= 0 {
			pipe := p.rdb.Pipeline()
			pipe.Del(ctx, connCountKey(userID))
			pipe.SRem(ctx, onlineSetKey, userID)
			if _, err := pipe.Exec(ctx); err != nil {
				p.logger.Warn(ctx, "presence cleanup failed", "user_id", userID, "error", err)
			}
		}
	}

	touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.users.TouchLastSeen(touchCtx, userID); err != nil {
		p.logger.Warn(touchCtx, "last seen update failed", "user_id", userID, "error", err)
	}
}

// IsOnline reports whether the user has a live connection.
func (p *Presence) IsOnline(ctx context.Context, userID int64) (bool, error) {
	if p.rdb == nil {
		return false, nil
	}
	return p.rdb.SIsMember(ctx, onlineSetKey, userID).Result()
}

// OnlineUsers returns the ids of all currently connected users.
func (p *Presence) OnlineUsers(ctx context.Context) ([]int64, error) {
	if p.rdb == nil {
		return nil, nil
	}
	raw, err := p.rdb.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
