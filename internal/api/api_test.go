package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"

	"github.com/groundctl/gnd/internal/bus"
	"github.com/groundctl/gnd/internal/remote"
	"github.com/groundctl/gnd/internal/selector"
	"github.com/groundctl/gnd/internal/status"
	"github.com/groundctl/gnd/internal/store"
	"github.com/groundctl/gnd/internal/tasks"
)

type fakeSource struct {
	snaps chan selector.Snapshot
}

func (s *fakeSource) WatchSurveys(ctx context.Context, _ string) (<-chan selector.Snapshot, error) {
	return s.snaps, nil
}

type fakeActivator struct {
	err   error
	block chan struct{}
}

func (a *fakeActivator) Activate(ctx context.Context, surveyID string) error {
	if a.block != nil {
		<-a.block
	}
	return a.err
}

type fakeRemover struct {
	removed chan string
}

func (r *fakeRemover) RemoveOffline(ctx context.Context, surveyID string) error {
	r.removed <- surveyID
	return nil
}

type fakeSession struct {
	user      selector.User
	signedOut bool
}

func (s *fakeSession) CurrentUser() (selector.User, error) { return s.user, nil }
func (s *fakeSession) SignOut() error {
	s.signedOut = true
	return nil
}

type fakeTerms struct {
	terms remote.Terms
	err   error
}

func (t *fakeTerms) FetchTerms(ctx context.Context) (remote.Terms, error) {
	return t.terms, t.err
}

type testHarness struct {
	handler   *Handler
	server    *httptest.Server
	db        *store.DB
	bus       *bus.Bus
	source    *fakeSource
	activator *fakeActivator
	remover   *fakeRemover
	session   *fakeSession
	terms     *fakeTerms
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "gnd.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	b := bus.New()
	machine := status.NewMachine(b)
	runner := tasks.NewRunner(context.Background())
	t.Cleanup(func() { _ = runner.Close(context.Background()) })

	h := &testHarness{
		db:        db,
		bus:       b,
		source:    &fakeSource{snaps: make(chan selector.Snapshot, 4)},
		activator: &fakeActivator{},
		remover:   &fakeRemover{removed: make(chan string, 4)},
		session:   &fakeSession{user: selector.User{Email: "worker@example.com", DisplayName: "Field Worker"}},
		terms:     &fakeTerms{terms: remote.Terms{Text: "Be careful out there."}},
	}
	controller := selector.New(h.source, h.activator, h.remover, h.session, runner, b, nil)
	h.handler = NewHandler(controller, db, machine, h.session, h.terms, b, nil, nil)
	h.server = httptest.NewServer(h.handler.Router())
	t.Cleanup(h.server.Close)
	return h
}

func (h *testHarness) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(h.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (h *testHarness) post(t *testing.T, path string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	resp, err := http.Post(h.server.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestGetStatus(t *testing.T) {
	h := newHarness(t)
	if err := h.db.UpsertSurvey(&store.Survey{ID: "s1", Title: "Tree Count"}); err != nil {
		t.Fatalf("UpsertSurvey failed: %v", err)
	}

	var resp StatusResponse
	if code := h.get(t, "/v1/status", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.State != string(status.Booting) {
		t.Errorf("expected BOOTING, got %q", resp.State)
	}
	if resp.Email != "worker@example.com" {
		t.Errorf("expected worker email, got %q", resp.Email)
	}
	if resp.SurveyCount != 1 {
		t.Errorf("expected survey count 1, got %d", resp.SurveyCount)
	}
}

func TestListSurveysReflectsController(t *testing.T) {
	h := newHarness(t)

	stop, err := h.handler.controller.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer stop()

	h.source.snaps <- selector.Snapshot{Items: []selector.Item{
		{ID: "s2", Title: "Well Mapping"},
		{ID: "s1", Title: "Tree Count", AvailableOffline: true},
	}}

	deadline := time.After(2 * time.Second)
	var resp SurveyListResponse
	for {
		if code := h.get(t, "/v1/surveys", &resp); code != http.StatusOK {
			t.Fatalf("expected 200, got %d", code)
		}
		if len(resp.Items) == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("list never populated, last response %+v", resp)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if resp.Status != string(selector.StatusLoaded) {
		t.Errorf("expected LOADED, got %q", resp.Status)
	}
	if resp.Items[0].ID != "s1" {
		t.Errorf("expected offline survey first, got %+v", resp.Items)
	}
}

func TestActivateSurvey(t *testing.T) {
	h := newHarness(t)

	var resp ActivateResponse
	if code := h.post(t, "/v1/surveys/s1/activate", nil, &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Activated != "s1" {
		t.Errorf("expected s1, got %q", resp.Activated)
	}
}

func TestActivateSurveyConflict(t *testing.T) {
	h := newHarness(t)
	h.activator.block = make(chan struct{})
	defer close(h.activator.block)

	started := make(chan struct{})
	go func() {
		close(started)
		resp, err := http.Post(h.server.URL+"/v1/surveys/s1/activate", "application/json", nil)
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-started
	time.Sleep(50 * time.Millisecond)

	if code := h.post(t, "/v1/surveys/s2/activate", nil, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 while activation in flight, got %d", code)
	}
}

func TestActivateSurveyFailure(t *testing.T) {
	h := newHarness(t)
	h.activator.err = errors.New("backend unavailable")

	if code := h.post(t, "/v1/surveys/s1/activate", nil, nil); code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
}

func TestRemoveOffline(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodDelete, h.server.URL+"/v1/surveys/s1/offline", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	select {
	case id := <-h.remover.removed:
		if id != "s1" {
			t.Errorf("expected s1, got %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for removal")
	}
}

func TestQueueSubmission(t *testing.T) {
	h := newHarness(t)

	events, unsub := h.bus.Subscribe("submission", 4)
	defer unsub()

	req := SubmissionRequest{SurveyID: "s1", LOIID: "l1", JobID: "j1", Answers: `{"q1":"yes"}`}
	var resp SubmissionResponse
	if code := h.post(t, "/v1/submissions", req, &resp); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if resp.ID == "" || resp.State != store.SubmissionQueued {
		t.Fatalf("unexpected response %+v", resp)
	}

	pending, err := h.db.PendingOutbox()
	if err != nil {
		t.Fatalf("PendingOutbox failed: %v", err)
	}
	if len(pending) != 1 || pending[0].SubmissionID != resp.ID {
		t.Fatalf("expected outbox entry for %s, got %+v", resp.ID, pending)
	}

	select {
	case evt := <-events:
		if evt.Kind != bus.KindQueued {
			t.Errorf("expected %s, got %s", bus.KindQueued, evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for queued event")
	}
}

func TestQueueSubmissionValidation(t *testing.T) {
	h := newHarness(t)
	req := SubmissionRequest{LOIID: "l1"}
	if code := h.post(t, "/v1/submissions", req, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestGetSurveyDetail(t *testing.T) {
	h := newHarness(t)
	if err := h.db.UpsertSurvey(&store.Survey{ID: "s1", Title: "Tree Count"}); err != nil {
		t.Fatalf("UpsertSurvey failed: %v", err)
	}
	jobs := []store.Job{{ID: "j1", SurveyID: "s1", Name: "Count trees", Tasks: `[]`}}
	lois := []store.LOI{{ID: "l1", SurveyID: "s1", JobID: "j1", Caption: "North field"}}
	if err := h.db.ReplaceContent("s1", jobs, lois); err != nil {
		t.Fatalf("ReplaceContent failed: %v", err)
	}

	var resp SurveyDetailResponse
	if code := h.get(t, "/v1/surveys/s1", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(resp.Jobs) != 1 || resp.LOICount != 1 {
		t.Errorf("unexpected detail %+v", resp)
	}

	if code := h.get(t, "/v1/surveys/unknown", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestGetTerms(t *testing.T) {
	h := newHarness(t)
	var resp TermsResponse
	if code := h.get(t, "/v1/terms", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Text != "Be careful out there." {
		t.Errorf("unexpected terms %q", resp.Text)
	}
}

func TestSignOut(t *testing.T) {
	h := newHarness(t)
	if code := h.post(t, "/v1/session/signout", nil, nil); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if !h.session.signedOut {
		t.Error("expected session sign-out to be delegated")
	}
}

func TestPollEventsReturnsPublished(t *testing.T) {
	h := newHarness(t)

	go func() {
		time.Sleep(50 * time.Millisecond)
		h.bus.Publish(bus.Now(bus.KindFlash, "saved"))
	}()

	var resp EventsResponse
	if code := h.get(t, "/v1/events?wait=5", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(resp.Events) != 1 || resp.Events[0].Kind != bus.KindFlash {
		t.Fatalf("unexpected events %+v", resp.Events)
	}
}

func TestPollEventsTimesOutEmpty(t *testing.T) {
	h := newHarness(t)
	var resp EventsResponse
	if code := h.get(t, "/v1/events?wait=0", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(resp.Events) != 0 {
		t.Fatalf("expected no events, got %+v", resp.Events)
	}
}

type verifierFunc func(ctx context.Context, token string) (*auth.Token, error)

func (f verifierFunc) VerifyIDToken(ctx context.Context, token string) (*auth.Token, error) {
	return f(ctx, token)
}

func TestBearerAuth(t *testing.T) {
	okVerifier := verifierFunc(func(ctx context.Context, token string) (*auth.Token, error) {
		if token != "good" {
			return nil, errors.New("bad token")
		}
		return &auth.Token{UID: "u1"}, nil
	})

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	mw := BearerAuth(okVerifier)(next)

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if called {
		t.Fatal("expected next handler to be skipped")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Authorization", "Bearer good")
	mw.ServeHTTP(rec, req)
	if !called {
		t.Fatal("expected next handler to run with valid token")
	}
}
