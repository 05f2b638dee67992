package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const (
	keychainService = "attune"
	tokenAccount    = "api_token"
)

// GetAPIToken returns the local API bearer token, generating and storing a
// new one on first use. The token lives in the macOS keychain on darwin and
// in the secrets file on other platforms; ATTUNE_API_TOKEN overrides both.
func GetAPIToken() (string, error) {
	if tok := envToken(); tok != "" {
		return tok, nil
	}

	if data, err := keychainGet(keychainService, tokenAccount); err == nil {
		tok := strings.TrimSpace(string(data))
		if tok != "" {
			return tok, nil
		}
	}

	tok, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating api token: %w", err)
	}
	if err := keychainSet(keychainService, tokenAccount, tok); err != nil {
		return "", fmt.Errorf("storing api token: %w", err)
	}
	return tok, nil
}

func envToken() string {
	return strings.TrimSpace(os.Getenv("ATTUNE_API_TOKEN"))
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
