package config

import (
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	want := &Config{
		DefaultSession: "west-region",
		Firebase: Firebase{
			ProjectID:       "gnd-field",
			CredentialsFile: "/etc/gnd/sa.json",
		},
	}
	if err := Save(path, want); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.DefaultSession != want.DefaultSession {
		t.Errorf("default_session = %q, want %q", got.DefaultSession, want.DefaultSession)
	}
	if got.Firebase.ProjectID != want.Firebase.ProjectID {
		t.Errorf("project_id = %q, want %q", got.Firebase.ProjectID, want.Firebase.ProjectID)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestCollectionDefaults(t *testing.T) {
	surveys, cfg := Remote{}.Collections()
	if surveys != "surveys" || cfg != "config" {
		t.Errorf("defaults = %q, %q; want surveys, config", surveys, cfg)
	}

	surveys, cfg = Remote{SurveysCollection: "s2", ConfigCollection: "c2"}.Collections()
	if surveys != "s2" || cfg != "c2" {
		t.Errorf("overrides = %q, %q; want s2, c2", surveys, cfg)
	}
}
