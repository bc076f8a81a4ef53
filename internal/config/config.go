// Package config loads Thresh settings from the environment. The .env file
// itself is loaded by the entrypoint via godotenv before Load is called.
package config

import (
	"os"
	"strings"
)

// Version is stamped into export provenance documents.
const Version = "0.1.0"

// Settings holds application configuration.
type Settings struct {
	// Reddit API credentials. All three of ClientID, ClientSecret, and
	// UserAgent must be set for the authenticated backend to be eligible.
	RedditClientID     string
	RedditClientSecret string
	RedditUsername     string
	RedditPassword     string
	RedditUserAgent    string

	DBPath    string
	ExportDir string
	Port      string
	LogLevel  string
}

// Load reads settings from the environment, applying defaults.
func Load() Settings {
	s := Settings{
		RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		RedditUsername:     os.Getenv("REDDIT_USERNAME"),
		RedditPassword:     os.Getenv("REDDIT_PASSWORD"),
		RedditUserAgent:    os.Getenv("REDDIT_USER_AGENT"),
		DBPath:             os.Getenv("THRESH_DB_PATH"),
		ExportDir:          os.Getenv("THRESH_EXPORT_DIR"),
		Port:               os.Getenv("PORT"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
	}
	if s.DBPath == "" {
		s.DBPath = "thresh.db"
	}
	if s.ExportDir == "" {
		s.ExportDir = "exports"
	}
	if s.Port == "" {
		s.Port = "8080"
	}
	return s
}

// HasCredentials reports whether all required Reddit credential fields are
// present and non-blank.
func (s Settings) HasCredentials() bool {
	return strings.TrimSpace(s.RedditClientID) != "" &&
		strings.TrimSpace(s.RedditClientSecret) != "" &&
		strings.TrimSpace(s.RedditUserAgent) != ""
}
