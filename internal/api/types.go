package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
)

// StatusResponse reports the daemon session state.
type StatusResponse struct {
	State        string `json:"state"`
	Email        string `json:"email,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	ActiveSurvey string `json:"active_survey,omitempty"`
	SurveyCount  int    `json:"survey_count"`
	OfflineCount int    `json:"offline_count"`
}

func (s *StatusResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// SurveyItem is one entry of the ordered survey list.
type SurveyItem struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	AvailableOffline bool   `json:"available_offline"`
}

// SurveyListResponse carries the ordered list plus its load status.
type SurveyListResponse struct {
	Status string       `json:"status"`
	Error  string       `json:"error,omitempty"`
	Items  []SurveyItem `json:"items"`
}

func (s *SurveyListResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// JobSummary describes one job of an offline survey.
type JobSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Tasks string `json:"tasks"`
}

// SurveyDetailResponse is the offline detail view of one survey.
type SurveyDetailResponse struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description,omitempty"`
	AvailableOffline bool         `json:"available_offline"`
	Jobs             []JobSummary `json:"jobs"`
	LOICount         int          `json:"loi_count"`
	SubmissionCount  int          `json:"submission_count"`
}

func (s *SurveyDetailResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// ActivateResponse confirms a survey activation.
type ActivateResponse struct {
	Activated string `json:"activated"`
}

func (a *ActivateResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// SubmissionRequest queues one collected submission for upload.
type SubmissionRequest struct {
	ID       string `json:"id,omitempty"`
	SurveyID string `json:"survey_id"`
	LOIID    string `json:"loi_id"`
	JobID    string `json:"job_id"`
	Answers  string `json:"answers"`
}

// Bind implements render.Binder.
func (s *SubmissionRequest) Bind(r *http.Request) error {
	if s.SurveyID == "" {
		return errors.New("survey_id is required")
	}
	if s.JobID == "" {
		return errors.New("job_id is required")
	}
	if s.Answers == "" {
		return errors.New("answers is required")
	}
	return nil
}

// SubmissionResponse confirms a queued submission.
type SubmissionResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

func (s *SubmissionResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// TermsResponse carries the terms-of-service text.
type TermsResponse struct {
	Text string `json:"text"`
}

func (t *TermsResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// EventPayload is one bus event surfaced to long-poll clients.
type EventPayload struct {
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
	Detail    any    `json:"detail,omitempty"`
}

// EventsResponse is the result of one long-poll cycle; Events may be
// empty when the poll timed out quietly.
type EventsResponse struct {
	Events []EventPayload `json:"events"`
}

func (e *EventsResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// ErrResponse is the uniform error envelope.
type ErrResponse struct {
	HTTPStatusCode int    `json:"-"`
	Message        string `json:"message"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// ErrInvalidRequest wraps a 400.
func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{HTTPStatusCode: http.StatusBadRequest, Message: err.Error()}
}

// ErrNotFound wraps a 404.
func ErrNotFound(msg string) render.Renderer {
	return &ErrResponse{HTTPStatusCode: http.StatusNotFound, Message: msg}
}

// ErrConflict wraps a 409.
func ErrConflict(err error) render.Renderer {
	return &ErrResponse{HTTPStatusCode: http.StatusConflict, Message: err.Error()}
}

// ErrInternal wraps a 500.
func ErrInternal(err error) render.Renderer {
	return &ErrResponse{HTTPStatusCode: http.StatusInternalServerError, Message: err.Error()}
}

// ErrUnauthorized wraps a 401.
func ErrUnauthorized(msg string) render.Renderer {
	return &ErrResponse{HTTPStatusCode: http.StatusUnauthorized, Message: msg}
}
