package labapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// TokenSource supplies the bearer token attached to every backend request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token, typically taken from the environment.
type StaticToken string

// Token returns the token itself.
func (t StaticToken) Token(ctx context.Context) (string, error) {
	return strings.TrimSpace(string(t)), nil
}

// FileTokenSource reads the persisted client credentials on every call, so a
// token refreshed by another process is picked up without a restart.
type FileTokenSource struct {
	Path string
}

type persistedCredentials struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
}

// Token returns the token stored at Path. The file may hold raw token text or
// a JSON object with a token or accessToken field.
func (f FileTokenSource) Token(ctx context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read credentials: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") {
		var creds persistedCredentials
		if err := json.Unmarshal([]byte(text), &creds); err != nil {
			return "", fmt.Errorf("failed to parse credentials: %w", err)
		}
		return strings.TrimSpace(firstNonEmpty(creds.Token, creds.AccessToken)), nil
	}
	return text, nil
}
