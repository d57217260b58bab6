package storage

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/odvcencio/flux/pkg/logging"
	"github.com/odvcencio/flux/pkg/permission"
)

// PermissionEvent is one persisted status transition.
type PermissionEvent struct {
	ID         int64             `json:"id"`
	SessionID  string            `json:"sessionId,omitempty"`
	Scope      string            `json:"scope,omitempty"`
	Permission string            `json:"permission"`
	From       permission.Status `json:"from"`
	To         permission.Status `json:"to"`
	ObservedAt time.Time         `json:"observedAt"`
}

// PermissionEventFilter narrows ListPermissionEvents. Zero values match everything.
type PermissionEventFilter struct {
	Permission string
	Scope      string
	Limit      int
}

// RecordPermissionChange appends a transition to the history.
func (s *Store) RecordPermissionChange(sessionID string, change permission.Change) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	at := change.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO permission_events (session_id, scope, permission, from_status, to_status, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, strings.TrimSpace(sessionID), change.Scope, change.Permission.Key(), string(change.From), string(change.To), at.UTC())
	return err
}

// ListPermissionEvents returns the newest transitions first.
func (s *Store) ListPermissionEvents(filter PermissionEventFilter) ([]PermissionEvent, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT id, session_id, scope, permission, from_status, to_status, observed_at FROM permission_events`
	var where []string
	var args []any
	if p := strings.TrimSpace(filter.Permission); p != "" {
		where = append(where, "permission = ?")
		args = append(args, p)
	}
	if scope := strings.TrimSpace(filter.Scope); scope != "" {
		where = append(where, "scope = ?")
		args = append(args, scope)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY observed_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []PermissionEvent
	for rows.Next() {
		var ev PermissionEvent
		var from, to string
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Scope, &ev.Permission, &from, &to, &ev.ObservedAt); err != nil {
			return nil, err
		}
		ev.From = permission.Status(from)
		ev.To = permission.Status(to)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// LastPermissionStatus returns the most recently recorded status for a
// permission key, and false when nothing has been recorded yet.
func (s *Store) LastPermissionStatus(key string) (permission.Status, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrStoreClosed
	}
	var to string
	err := s.db.QueryRow(`
		SELECT to_status FROM permission_events
		WHERE permission = ?
		ORDER BY observed_at DESC, id DESC
		LIMIT 1
	`, key).Scan(&to)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return permission.Status(to), true, nil
}

// PermissionObserver returns a permission.Observer that persists transitions
// under sessionID. A fresh tracker reports every permission as leaving
// unknown; those are rebased on the last recorded status so only real changes
// reach the history. Write failures are logged, never returned.
func (s *Store) PermissionObserver(sessionID string) permission.Observer {
	return permission.ObserverFunc(func(change permission.Change) {
		key := change.Permission.Key()
		if change.From == permission.StatusUnknown {
			last, ok, err := s.LastPermissionStatus(key)
			if err != nil {
				_ = s.logger.Warn(logging.CategoryStorage, "permission_event_lookup_failed", err.Error(), map[string]any{
					"permission": key,
				})
			}
			if ok {
				if last == change.To {
					return
				}
				change.From = last
			}
		}
		if err := s.RecordPermissionChange(sessionID, change); err != nil {
			_ = s.logger.Error(logging.CategoryStorage, "permission_event_write_failed", err.Error(), map[string]any{
				"permission": key,
			})
		}
	})
}
