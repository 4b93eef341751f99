package dao

import (
	"context"
	"database/sql"
	"time"
)

// SyncNotifDAO persists the backoff bookkeeping rows consumed by the
// payment sync engine. No in-memory duplication: every read goes to the
// table (SPEC_FULL.md §5).
type SyncNotifDAO struct {
	db *sql.DB
}

// Touch creates a notif for peerID if one does not already exist
// (first dirty artifact for that peer), or leaves an existing one
// untouched — it does not reset Retries/LastPing.
func (s *SyncNotifDAO) Touch(ctx context.Context, peerID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_notifs (peer_id, last_ping, retries) VALUES (?, ?, 0)
         ON CONFLICT(peer_id) DO NOTHING`, peerID, now)
	return err
}

// List returns all pending sync notifs.
func (s *SyncNotifDAO) List(ctx context.Context) ([]SyncNotif, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT peer_id, last_ping, retries FROM sync_notifs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SyncNotif
	for rows.Next() {
		var n SyncNotif
		if err := rows.Scan(&n.PeerID, &n.LastPing, &n.Retries); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Drop removes the notif for peerID — called once the peer
// acknowledges a full sync.
func (s *SyncNotifDAO) Drop(ctx context.Context, peerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_notifs WHERE peer_id = ?`, peerID)
	return err
}

// IncrementRetry bumps the retry counter and records the attempt time.
// Retries never decreases once incremented until the notif is dropped.
func (s *SyncNotifDAO) IncrementRetry(ctx context.Context, peerID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_notifs SET retries = retries + 1, last_ping = ? WHERE peer_id = ?`, now, peerID)
	return err
}
