// Package auth stores the CAPTCHA solver API key in the OS keyring, with a
// plain-file fallback for environments without a keyring service (CI,
// containers).
package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "hascrape"
	// keyringUser is the account name under which the solver key is stored
	keyringUser = "captcha-api-key"
	// FallbackDir is the directory for file-based storage (when keyring fails)
	FallbackDir = ".hascrape"
)

// useFileBasedStorage checks if we should use file-based storage.
// This is a fallback for environments where keyring isn't available.
var fileBasedStorageCache *bool

func useFileBasedStorage() bool {
	if fileBasedStorageCache != nil {
		return *fileBasedStorageCache
	}

	if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
		result := true
		fileBasedStorageCache = &result
		return true
	}

	// Probe the keyring; fall back to files if unusable
	testKey := "_test_keyring_access_"
	err := keyring.Set(KeyringService, testKey, "test")
	result := (err != nil)
	fileBasedStorageCache = &result

	if !result {
		_ = keyring.Delete(KeyringService, testKey)
	}

	return result
}

func fallbackPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, FallbackDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "captcha_key"), nil
}

// SaveCaptchaKey persists the solver API key for later runs.
func SaveCaptchaKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("empty key")
	}

	if useFileBasedStorage() {
		path, err := fallbackPath()
		if err != nil {
			return err
		}
		return os.WriteFile(path, []byte(key), 0600)
	}
	return keyring.Set(KeyringService, keyringUser, key)
}

// LoadCaptchaKey returns the stored solver API key, or "" when none is stored.
func LoadCaptchaKey() string {
	if useFileBasedStorage() {
		path, err := fallbackPath()
		if err != nil {
			return ""
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	}

	key, err := keyring.Get(KeyringService, keyringUser)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(key)
}
