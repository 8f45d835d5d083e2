package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groundctl/gnd/internal/bus"
	"github.com/groundctl/gnd/internal/remote"
	"github.com/groundctl/gnd/internal/selector"
	"github.com/groundctl/gnd/internal/status"
	"github.com/groundctl/gnd/internal/store"
)

// maxPollWait caps the long-poll duration for /v1/events.
const maxPollWait = 30 * time.Second

// TermsFetcher retrieves the terms-of-service text.
type TermsFetcher interface {
	FetchTerms(ctx context.Context) (remote.Terms, error)
}

// Handler serves the daemon API consumed by gndctl and gndtui.
type Handler struct {
	controller *selector.Controller
	db         *store.DB
	machine    *status.Machine
	session    selector.Session
	terms      TermsFetcher
	bus        *bus.Bus
	logger     *zap.Logger
	verifier   TokenVerifier
}

// NewHandler creates the API handler. verifier may be nil; bearer auth is
// then disabled.
func NewHandler(controller *selector.Controller, db *store.DB, machine *status.Machine, session selector.Session, terms TermsFetcher, b *bus.Bus, logger *zap.Logger, verifier TokenVerifier) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		controller: controller,
		db:         db,
		machine:    machine,
		session:    session,
		terms:      terms,
		bus:        b,
		logger:     logger,
		verifier:   verifier,
	}
}

// Router builds the chi router with all v1 routes mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	if h.verifier != nil {
		r.Use(BearerAuth(h.verifier))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", h.getStatus)
		r.Get("/surveys", h.listSurveys)
		r.Get("/surveys/{surveyID}", h.getSurvey)
		r.Post("/surveys/{surveyID}/activate", h.activateSurvey)
		r.Delete("/surveys/{surveyID}/offline", h.removeOffline)
		r.Post("/submissions", h.queueSubmission)
		r.Get("/terms", h.getTerms)
		r.Post("/session/signout", h.signOut)
		r.Get("/events", h.pollEvents)
	})
	return r
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	resp := &StatusResponse{State: string(h.machine.Current())}

	if user, err := h.session.CurrentUser(); err == nil {
		resp.Email = user.Email
		resp.DisplayName = user.DisplayName
	}
	if active, err := h.db.GetCheckpoint(store.ActiveSurveyKey); err == nil {
		resp.ActiveSurvey = active
	}
	if n, err := h.db.SurveyCount(); err == nil {
		resp.SurveyCount = n
	}
	if n, err := h.db.OfflineCount(); err == nil {
		resp.OfflineCount = n
	}
	_ = render.Render(w, r, resp)
}

func (h *Handler) listSurveys(w http.ResponseWriter, r *http.Request) {
	resp := &SurveyListResponse{
		Status: string(h.controller.Status()),
		Items:  []SurveyItem{},
	}
	if err := h.controller.Failure(); err != nil {
		resp.Error = err.Error()
	}
	for _, item := range h.controller.Items() {
		resp.Items = append(resp.Items, SurveyItem{
			ID:               item.ID,
			Title:            item.Title,
			AvailableOffline: item.AvailableOffline,
		})
	}
	_ = render.Render(w, r, resp)
}

func (h *Handler) getSurvey(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyID")
	survey, err := h.db.GetSurvey(surveyID)
	if err != nil {
		_ = render.Render(w, r, ErrInternal(err))
		return
	}
	if survey == nil {
		_ = render.Render(w, r, ErrNotFound("unknown survey"))
		return
	}

	resp := &SurveyDetailResponse{
		ID:               survey.ID,
		Title:            survey.Title,
		Description:      survey.Description,
		AvailableOffline: survey.AvailableOffline,
		Jobs:             []JobSummary{},
	}
	jobs, err := h.db.Jobs(surveyID)
	if err != nil {
		_ = render.Render(w, r, ErrInternal(err))
		return
	}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, JobSummary{ID: j.ID, Name: j.Name, Tasks: j.Tasks})
	}
	if n, err := h.db.LOICount(surveyID); err == nil {
		resp.LOICount = n
	}
	if subs, err := h.db.ListSubmissions(surveyID); err == nil {
		resp.SubmissionCount = len(subs)
	}
	_ = render.Render(w, r, resp)
}

func (h *Handler) activateSurvey(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyID")
	if err := h.controller.Activate(r.Context(), surveyID); err != nil {
		if errors.Is(err, selector.ErrActivationInFlight) {
			_ = render.Render(w, r, ErrConflict(err))
			return
		}
		_ = render.Render(w, r, ErrInternal(err))
		return
	}
	_ = render.Render(w, r, &ActivateResponse{Activated: surveyID})
}

func (h *Handler) removeOffline(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyID")
	h.controller.RemoveOffline(surveyID)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"removing": surveyID})
}

func (h *Handler) queueSubmission(w http.ResponseWriter, r *http.Request) {
	req := &SubmissionRequest{}
	if err := render.Bind(r, req); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	sub := &store.Submission{
		ID:       id,
		SurveyID: req.SurveyID,
		LOIID:    req.LOIID,
		JobID:    req.JobID,
		Answers:  req.Answers,
		State:    store.SubmissionQueued,
	}
	if err := h.db.InsertSubmission(sub); err != nil {
		_ = render.Render(w, r, ErrInternal(err))
		return
	}
	if err := h.db.QueueOutbox(uuid.NewString(), id); err != nil {
		_ = render.Render(w, r, ErrInternal(err))
		return
	}

	h.logger.Info("submission queued", zap.String("submission_id", id), zap.String("survey_id", req.SurveyID))
	if h.bus != nil {
		h.bus.Publish(bus.Now(bus.KindQueued, id))
	}
	render.Status(r, http.StatusCreated)
	_ = render.Render(w, r, &SubmissionResponse{ID: id, State: store.SubmissionQueued})
}

func (h *Handler) getTerms(w http.ResponseWriter, r *http.Request) {
	terms, err := h.terms.FetchTerms(r.Context())
	if err != nil {
		_ = render.Render(w, r, ErrInternal(err))
		return
	}
	_ = render.Render(w, r, &TermsResponse{Text: terms.Text})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.SignOut(); err != nil {
		_ = render.Render(w, r, ErrInternal(err))
		return
	}
	render.NoContent(w, r)
}

// pollEvents blocks until at least one bus event arrives or the wait
// expires, then returns everything immediately available.
func (h *Handler) pollEvents(w http.ResponseWriter, r *http.Request) {
	wait := 25 * time.Second
	if raw := r.URL.Query().Get("wait"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
			wait = time.Duration(secs) * time.Second
		}
	}
	if wait > maxPollWait {
		wait = maxPollWait
	}

	events, unsub := h.bus.Subscribe("", 32)
	defer unsub()

	resp := &EventsResponse{Events: []EventPayload{}}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-r.Context().Done():
		return
	case <-timer.C:
	case evt := <-events:
		resp.Events = append(resp.Events, toEventPayload(evt))
		// Batch whatever else is already queued.
		for {
			select {
			case evt := <-events:
				resp.Events = append(resp.Events, toEventPayload(evt))
				continue
			default:
			}
			break
		}
	}
	_ = render.Render(w, r, resp)
}

func toEventPayload(evt bus.Event) EventPayload {
	detail := evt.Payload
	if err, ok := detail.(error); ok {
		detail = err.Error()
	}
	return EventPayload{
		Kind:      evt.Kind,
		Timestamp: evt.Timestamp.UnixMilli(),
		Detail:    detail,
	}
}
