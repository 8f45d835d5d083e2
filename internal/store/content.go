package store

import (
	"fmt"
)

// ReplaceContent atomically replaces a survey's offline content (jobs and
// LOIs) with the given set. Used by activation after a remote fetch.
func (db *DB) ReplaceContent(surveyID string, jobs []Job, lois []LOI) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM jobs WHERE survey_id = ?`, surveyID); err != nil {
		return fmt.Errorf("clear jobs: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM lois WHERE survey_id = ?`, surveyID); err != nil {
		return fmt.Errorf("clear lois: %w", err)
	}

	for _, j := range jobs {
		if _, err := tx.Exec(`
			INSERT INTO jobs (id, survey_id, name, tasks) VALUES (?, ?, ?, ?)`,
			j.ID, surveyID, j.Name, j.Tasks); err != nil {
			return fmt.Errorf("insert job %s: %w", j.ID, err)
		}
	}
	for _, l := range lois {
		if _, err := tx.Exec(`
			INSERT INTO lois (id, survey_id, job_id, caption, geometry) VALUES (?, ?, ?, ?, ?)`,
			l.ID, surveyID, l.JobID, l.Caption, l.Geometry); err != nil {
			return fmt.Errorf("insert loi %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit content: %w", err)
	}
	return nil
}

// Jobs returns a survey's jobs ordered by name.
func (db *DB) Jobs(surveyID string) ([]Job, error) {
	rows, err := db.Query(`
		SELECT id, survey_id, name, tasks FROM jobs
		WHERE survey_id = ? ORDER BY name ASC, id ASC`, surveyID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.SurveyID, &j.Name, &j.Tasks); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// LOIs returns a survey's locations of interest.
func (db *DB) LOIs(surveyID string) ([]LOI, error) {
	rows, err := db.Query(`
		SELECT id, survey_id, job_id, caption, geometry FROM lois
		WHERE survey_id = ? ORDER BY caption ASC, id ASC`, surveyID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lois []LOI
	for rows.Next() {
		var l LOI
		if err := rows.Scan(&l.ID, &l.SurveyID, &l.JobID, &l.Caption, &l.Geometry); err != nil {
			return nil, err
		}
		lois = append(lois, l)
	}
	return lois, rows.Err()
}

// LOICount returns the number of LOIs held locally for a survey.
func (db *DB) LOICount(surveyID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM lois WHERE survey_id = ?`, surveyID).Scan(&n)
	return n, err
}

// DeleteOfflineContent removes a survey's local jobs, LOIs, and synced
// submissions, and clears the offline flag. Draft and queued submissions
// survive so uploads already collected are never lost.
func (db *DB) DeleteOfflineContent(surveyID string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM jobs WHERE survey_id = ?`, surveyID); err != nil {
		return fmt.Errorf("delete jobs: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM lois WHERE survey_id = ?`, surveyID); err != nil {
		return fmt.Errorf("delete lois: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM submissions WHERE survey_id = ? AND state = 'synced'`, surveyID); err != nil {
		return fmt.Errorf("delete synced submissions: %w", err)
	}
	if _, err := tx.Exec(`UPDATE surveys SET available_offline = 0 WHERE id = ?`, surveyID); err != nil {
		return fmt.Errorf("clear offline flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit removal: %w", err)
	}
	return nil
}
