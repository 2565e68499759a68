package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variables read by loxml.
const (
	EnvAPIKey   = "LOXML_API_KEY"
	EnvProvider = "LOXML_PROVIDER"
	EnvModel    = "LOXML_MODEL"
	EnvBaseURL  = "LOXML_BASE_URL"
	EnvRegion   = "LOXML_REGION"
)

// LoadEnv loads rootDir/.env into the process environment. Variables that
// are already set are not overridden, and a missing file is not an error.
func LoadEnv(rootDir string) error {
	path := filepath.Join(rootDir, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides provider fields with LOXML_* environment variables.
func (f *File) ApplyEnv() {
	if v := os.Getenv(EnvProvider); v != "" {
		f.Provider.ID = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		f.Provider.Model = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		f.Provider.BaseURL = v
	}
	if v := os.Getenv(EnvRegion); v != "" {
		f.Provider.Region = v
	}
}
