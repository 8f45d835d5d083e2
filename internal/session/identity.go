package session

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/groundctl/gnd/internal/bus"
	"github.com/groundctl/gnd/internal/selector"
	"github.com/groundctl/gnd/internal/status"
)

// ErrNotSignedIn is returned when no identity file exists for a session.
var ErrNotSignedIn = errors.New("not signed in")

// Identity is the signed-in field worker, persisted per session.
type Identity struct {
	Email       string `toml:"email"`
	DisplayName string `toml:"display_name"`
}

// LoadIdentity reads the identity file. Returns ErrNotSignedIn when the
// file does not exist.
func LoadIdentity(path string) (*Identity, error) {
	var id Identity
	_, err := toml.DecodeFile(path, &id)
	if os.IsNotExist(err) {
		return nil, ErrNotSignedIn
	}
	if err != nil {
		return nil, fmt.Errorf("read identity: %w", err)
	}
	if id.Email == "" {
		return nil, ErrNotSignedIn
	}
	return &id, nil
}

// SaveIdentity writes the identity file with restrictive permissions.
func SaveIdentity(path string, id *Identity) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(id)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Manager exposes the signed-in user to the selection controller and
// implements sign-out: delete the identity file, flag the session as
// requiring auth, and announce it on the bus.
type Manager struct {
	path    string
	machine *status.Machine
	bus     *bus.Bus
}

// NewManager creates an identity manager for the given identity file.
func NewManager(path string, machine *status.Machine, b *bus.Bus) *Manager {
	return &Manager{path: path, machine: machine, bus: b}
}

// CurrentUser returns the signed-in user or ErrNotSignedIn.
func (m *Manager) CurrentUser() (selector.User, error) {
	id, err := LoadIdentity(m.path)
	if err != nil {
		return selector.User{}, err
	}
	return selector.User{Email: id.Email, DisplayName: id.DisplayName}, nil
}

// SignOut removes the stored identity. The daemon keeps running; it just
// needs a new sign-in before survey data flows again.
func (m *Manager) SignOut() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove identity: %w", err)
	}
	if m.machine != nil {
		_ = m.machine.Transition(status.AuthRequired)
	}
	if m.bus != nil {
		m.bus.Publish(bus.Now(bus.KindSignedOut, nil))
	}
	return nil
}
