package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// APIKeyEnv is the variable holding the admin API key.
const APIKeyEnv = "NICEPG_API_KEY"

// APIKeyManager manages API key generation and storage
type APIKeyManager struct {
	envFilePath string
	showFullKey bool // Show full key in logs (development mode only)
	logger      *slog.Logger
}

// NewAPIKeyManager creates a new API key manager. In release mode a newly
// generated key is only logged truncated.
func NewAPIKeyManager(envFilePath string, release bool, logger *slog.Logger) *APIKeyManager {
	return &APIKeyManager{
		envFilePath: envFilePath,
		showFullKey: !release,
		logger:      logger,
	}
}

// EnsureAPIKey returns current when it is set, else the key stored in the
// .env file, else a newly generated key which it writes to the .env file.
// The second result reports whether the key was generated.
func (m *APIKeyManager) EnsureAPIKey(current string) (string, bool, error) {
	if current != "" {
		m.logger.Info("Using configured API key")
		return current, false, nil
	}

	env, err := godotenv.Read(m.envFilePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", false, fmt.Errorf("read %s: %w", m.envFilePath, err)
	}
	if key := env[APIKeyEnv]; key != "" {
		m.logger.Info("Using existing API key from .env file", "path", m.envFilePath)
		return key, false, nil
	}

	key, err := generateSecureKey()
	if err != nil {
		return "", false, fmt.Errorf("failed to generate API key: %w", err)
	}

	if env == nil {
		env = map[string]string{}
	}
	env[APIKeyEnv] = key
	if err := m.save(env); err != nil {
		m.logger.Warn("Failed to save API key to .env file, add it manually",
			"path", m.envFilePath, "variable", APIKeyEnv, "error", err)
	} else {
		m.logger.Info("New API key generated", "path", m.envFilePath, "api_key", m.display(key))
	}
	return key, true, nil
}

func (m *APIKeyManager) save(env map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(m.envFilePath), 0o755); err != nil {
		return err
	}
	return godotenv.Write(env, m.envFilePath)
}

// generateSecureKey returns 32 random bytes as 64 hex characters.
func generateSecureKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (m *APIKeyManager) display(key string) string {
	if m.showFullKey {
		return key
	}
	return truncateKey(key)
}

// truncateKey returns a truncated version of the API key for secure display
func truncateKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return fmt.Sprintf("%s...%s", key[:8], key[len(key)-4:])
}
