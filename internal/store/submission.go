package store

import (
	"database/sql"
	"time"
)

// InsertSubmission stores a newly collected submission.
func (db *DB) InsertSubmission(s *Submission) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO submissions (id, survey_id, loi_id, job_id, answers, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.SurveyID, s.LOIID, s.JobID, s.Answers, s.State, now, now)
	return err
}

// GetSubmission returns a submission by id, or nil if unknown.
func (db *DB) GetSubmission(id string) (*Submission, error) {
	var s Submission
	err := db.QueryRow(`
		SELECT id, survey_id, loi_id, job_id, answers, state, created_at, updated_at
		FROM submissions WHERE id = ?`, id).
		Scan(&s.ID, &s.SurveyID, &s.LOIID, &s.JobID, &s.Answers, &s.State, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSubmissions returns a survey's submissions, newest first.
func (db *DB) ListSubmissions(surveyID string) ([]Submission, error) {
	rows, err := db.Query(`
		SELECT id, survey_id, loi_id, job_id, answers, state, created_at, updated_at
		FROM submissions WHERE survey_id = ? ORDER BY created_at DESC`, surveyID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subs []Submission
	for rows.Next() {
		var s Submission
		if err := rows.Scan(&s.ID, &s.SurveyID, &s.LOIID, &s.JobID, &s.Answers, &s.State, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// SetSubmissionState updates a submission's lifecycle state.
func (db *DB) SetSubmissionState(id, state string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE submissions SET state = ?, updated_at = ? WHERE id = ?`, state, now, id)
	return err
}
