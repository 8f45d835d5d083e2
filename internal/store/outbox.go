package store

import "time"

// QueueOutbox adds a submission to the upload outbox.
func (db *DB) QueueOutbox(clientID, submissionID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO submission_outbox (client_id, submission_id, status, created_at, updated_at)
		VALUES (?, ?, 'queued', ?, ?)`,
		clientID, submissionID, now, now)
	return err
}

// MarkOutboxSending updates an outbox entry to 'sending' and bumps attempts.
func (db *DB) MarkOutboxSending(clientID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE submission_outbox SET status = 'sending', attempts = attempts + 1, updated_at = ?
		WHERE client_id = ?`, now, clientID)
	return err
}

// MarkOutboxSent updates an outbox entry to 'sent'.
func (db *DB) MarkOutboxSent(clientID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE submission_outbox SET status = 'sent', updated_at = ? WHERE client_id = ?`, now, clientID)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(clientID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE submission_outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_id = ?`, errMsg, now, clientID)
	return err
}

// RequeueOutbox moves a failed entry back to 'queued' for another attempt.
func (db *DB) RequeueOutbox(clientID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE submission_outbox SET status = 'queued', error_message = '', updated_at = ? WHERE client_id = ?`, now, clientID)
	return err
}

// PendingOutbox returns outbox entries that are still queued.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, client_id, submission_id, status, attempts, error_message
		FROM submission_outbox WHERE status = 'queued' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientID, &e.SubmissionID, &e.Status, &e.Attempts, &e.ErrorMessage); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
