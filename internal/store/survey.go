package store

import (
	"database/sql"
	"strings"
	"time"
)

// UpsertSurvey inserts or updates a survey record. The offline flag is
// owned by activation/removal and is never touched by snapshot ingestion.
func (db *DB) UpsertSurvey(s *Survey) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO surveys (id, title, description, acl_role, available_offline, synced_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			acl_role = excluded.acl_role,
			synced_at = excluded.synced_at,
			updated_at = excluded.updated_at`,
		s.ID, s.Title, s.Description, s.ACLRole, now, now)
	return err
}

// ListSurveys returns all known surveys, offline copies first, then by
// ascending title.
func (db *DB) ListSurveys() ([]Survey, error) {
	rows, err := db.Query(`
		SELECT id, title, description, acl_role, available_offline, synced_at, updated_at
		FROM surveys
		ORDER BY available_offline DESC, title ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var surveys []Survey
	for rows.Next() {
		var s Survey
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.ACLRole, &s.AvailableOffline, &s.SyncedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		surveys = append(surveys, s)
	}
	return surveys, rows.Err()
}

// GetSurvey returns a single survey by id, or nil if unknown.
func (db *DB) GetSurvey(id string) (*Survey, error) {
	var s Survey
	err := db.QueryRow(`
		SELECT id, title, description, acl_role, available_offline, synced_at, updated_at
		FROM surveys WHERE id = ?`, id).
		Scan(&s.ID, &s.Title, &s.Description, &s.ACLRole, &s.AvailableOffline, &s.SyncedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SetOffline flips the offline availability flag for a survey.
func (db *DB) SetOffline(id string, offline bool) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE surveys SET available_offline = ?, updated_at = ? WHERE id = ?`, offline, now, id)
	return err
}

// SurveyCount returns the number of known surveys.
func (db *DB) SurveyCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM surveys`).Scan(&n)
	return n, err
}

// OfflineCount returns the number of surveys with a local offline copy.
func (db *DB) OfflineCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM surveys WHERE available_offline = 1`).Scan(&n)
	return n, err
}

// PruneVanished deletes surveys absent from the latest remote snapshot,
// except those held offline: a field worker keeps a downloaded survey
// until they remove it themselves.
func (db *DB) PruneVanished(keepIDs []string) error {
	if len(keepIDs) == 0 {
		_, err := db.Exec(`DELETE FROM surveys WHERE available_offline = 0`)
		return err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keepIDs)), ",")
	args := make([]any, len(keepIDs))
	for i, id := range keepIDs {
		args[i] = id
	}
	_, err := db.Exec(
		`DELETE FROM surveys WHERE available_offline = 0 AND id NOT IN (`+placeholders+`)`,
		args...)
	return err
}
