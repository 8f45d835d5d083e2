package daemon

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/groundctl/gnd/internal/api"
	"github.com/groundctl/gnd/internal/bus"
	"github.com/groundctl/gnd/internal/lock"
	"github.com/groundctl/gnd/internal/remote"
	"github.com/groundctl/gnd/internal/selector"
	"github.com/groundctl/gnd/internal/session"
	"github.com/groundctl/gnd/internal/status"
	"github.com/groundctl/gnd/internal/store"
	intsync "github.com/groundctl/gnd/internal/sync"
	"github.com/groundctl/gnd/internal/tasks"
)

type fakeFetcher struct{}

func (fakeFetcher) FetchSurvey(ctx context.Context, surveyID string) (*remote.SurveyContent, error) {
	return &remote.SurveyContent{Survey: store.Survey{ID: surveyID, Title: "Fetched"}}, nil
}

type fakeTerms struct{}

func (fakeTerms) FetchTerms(ctx context.Context) (remote.Terms, error) {
	return remote.Terms{Text: "terms"}, nil
}

func socketClient(socketPath string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
		Timeout: 5 * time.Second,
	}
}

func TestDaemonLifecycle(t *testing.T) {
	// Use a short path to avoid macOS 104-char Unix socket limit.
	tmpDir, err := os.MkdirTemp("/tmp", "gnd-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	sessionDir := filepath.Join(tmpDir, "test")
	socketPath := filepath.Join(sessionDir, "d.sock")
	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		t.Fatal(err)
	}

	lk, err := lock.Acquire(sessionDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	db, err := store.Open(filepath.Join(sessionDir, "gnd.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	b := bus.New()
	machine := status.NewMachine(b)
	runner := tasks.NewRunner(context.Background())
	defer func() { _ = runner.Close(context.Background()) }()

	identityPath := filepath.Join(sessionDir, "identity.toml")
	if err := session.SaveIdentity(identityPath, &session.Identity{Email: "worker@example.com"}); err != nil {
		t.Fatal(err)
	}
	mgr := session.NewManager(identityPath, machine, b)

	listSource := intsync.NewListSource(db, b, nil)
	activator := intsync.NewActivator(fakeFetcher{}, db, b, nil, nil)
	remover := intsync.NewRemover(db, b, nil)
	controller := selector.New(listSource, activator, remover, mgr, runner, b, nil)
	handler := api.NewHandler(controller, db, machine, mgr, fakeTerms{}, b, nil, nil)

	srv, err := NewServer(Params{SessionName: "test", SocketPath: socketPath}, zap.NewNop(), handler)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	time.Sleep(50 * time.Millisecond)

	// Socket must be private to the owner.
	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("socket not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket permissions = %o, want 0600", perm)
	}

	client := socketClient(socketPath)

	resp, err := client.Get("http://gnd/v1/status")
	if err != nil {
		t.Fatalf("GET /v1/status failed: %v", err)
	}
	var statusResp api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&statusResp); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if statusResp.State != string(status.Booting) {
		t.Errorf("state = %q, want BOOTING", statusResp.State)
	}
	if statusResp.Email != "worker@example.com" {
		t.Errorf("email = %q, want worker@example.com", statusResp.Email)
	}

	// Activate a survey through the API and confirm it landed in the store.
	resp, err = client.Post("http://gnd/v1/surveys/s1/activate", "application/json", nil)
	if err != nil {
		t.Fatalf("POST activate failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate status = %d, want 200", resp.StatusCode)
	}
	survey, err := db.GetSurvey("s1")
	if err != nil || survey == nil {
		t.Fatalf("expected activated survey in store, got %v (err %v)", survey, err)
	}
	if !survey.AvailableOffline {
		t.Error("expected activated survey available offline")
	}
}

// TestStatusTransitionsToAuthRequired verifies the daemon does not stay
// in BOOTING forever when no identity file exists: the status endpoint
// must report AUTH_REQUIRED after startup.
func TestStatusTransitionsToAuthRequired(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "gnd-auth-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	socketPath := filepath.Join(tmpDir, "d.sock")

	db, err := store.Open(filepath.Join(tmpDir, "gnd.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	b := bus.New()
	machine := status.NewMachine(b)
	runner := tasks.NewRunner(context.Background())
	defer func() { _ = runner.Close(context.Background()) }()

	mgr := session.NewManager(filepath.Join(tmpDir, "identity.toml"), machine, b)
	listSource := intsync.NewListSource(db, b, nil)
	controller := selector.New(listSource, intsync.NewActivator(fakeFetcher{}, db, nil, nil, nil), intsync.NewRemover(db, nil, nil), mgr, runner, b, nil)
	handler := api.NewHandler(controller, db, machine, mgr, fakeTerms{}, b, nil, nil)

	srv, err := NewServer(Params{SessionName: "test", SocketPath: socketPath}, zap.NewNop(), handler)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())
	time.Sleep(50 * time.Millisecond)

	// Simulate what registerLifecycle does when no identity is stored.
	if _, err := mgr.CurrentUser(); err != nil {
		_ = machine.Transition(status.AuthRequired)
	}

	client := socketClient(socketPath)
	resp, err := client.Get("http://gnd/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	var statusResp api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&statusResp); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if statusResp.State != string(status.AuthRequired) {
		t.Errorf("state = %q, want AUTH_REQUIRED; daemon must not stay in BOOTING when unauthenticated", statusResp.State)
	}
}

// TestServerReplacesStaleSocket verifies a leftover socket file from a
// crashed daemon does not block startup.
func TestServerReplacesStaleSocket(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "gnd-sock-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	socketPath := filepath.Join(tmpDir, "d.sock")

	stale, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	_ = stale.Close()
	// Close removes the socket; recreate the file to simulate a crash.
	if err := os.WriteFile(socketPath, nil, 0600); err != nil {
		t.Fatal(err)
	}

	db, err := store.Open(filepath.Join(tmpDir, "gnd.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	b := bus.New()
	machine := status.NewMachine(b)
	runner := tasks.NewRunner(context.Background())
	defer func() { _ = runner.Close(context.Background()) }()
	mgr := session.NewManager(filepath.Join(tmpDir, "identity.toml"), machine, b)
	controller := selector.New(intsync.NewListSource(db, b, nil), intsync.NewActivator(fakeFetcher{}, db, nil, nil, nil), intsync.NewRemover(db, nil, nil), mgr, runner, b, nil)
	handler := api.NewHandler(controller, db, machine, mgr, fakeTerms{}, b, nil, nil)

	srv, err := NewServer(Params{SessionName: "test", SocketPath: socketPath}, zap.NewNop(), handler)
	if err != nil {
		t.Fatalf("NewServer should replace a stale socket, got %v", err)
	}
	srv.Stop(context.Background())

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("expected socket removed after Stop, got %v", err)
	}
}
