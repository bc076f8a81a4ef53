package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"THRESH_DB_PATH", "THRESH_EXPORT_DIR", "PORT"} {
		t.Setenv(key, "")
	}

	s := Load()
	if s.DBPath != "thresh.db" {
		t.Errorf("DBPath = %q, want thresh.db", s.DBPath)
	}
	if s.ExportDir != "exports" {
		t.Errorf("ExportDir = %q, want exports", s.ExportDir)
	}
	if s.Port != "8080" {
		t.Errorf("Port = %q, want 8080", s.Port)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("THRESH_DB_PATH", "/data/research.db")
	t.Setenv("PORT", "9000")
	t.Setenv("REDDIT_CLIENT_ID", "abc")

	s := Load()
	if s.DBPath != "/data/research.db" || s.Port != "9000" || s.RedditClientID != "abc" {
		t.Errorf("loaded settings = %+v", s)
	}
}

func TestHasCredentials(t *testing.T) {
	s := Settings{RedditClientID: "id", RedditClientSecret: "secret", RedditUserAgent: "agent"}
	if !s.HasCredentials() {
		t.Error("complete credentials reported missing")
	}

	// Username and password are optional; the three core fields are not.
	for _, broken := range []Settings{
		{RedditClientSecret: "secret", RedditUserAgent: "agent"},
		{RedditClientID: "id", RedditUserAgent: "agent"},
		{RedditClientID: "id", RedditClientSecret: "secret"},
		{RedditClientID: "  ", RedditClientSecret: "secret", RedditUserAgent: "agent"},
	} {
		if broken.HasCredentials() {
			t.Errorf("incomplete credentials %+v reported present", broken)
		}
	}
}
