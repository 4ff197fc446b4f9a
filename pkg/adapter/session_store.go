package adapter

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Credentials are the tokens issued by the Lens authenticate mutation
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	IDToken      string `json:"idToken"`
}

// SessionStore keeps Lens credentials between runs
type SessionStore interface {
	Load() (*Credentials, error)
	Save(creds *Credentials) error
	Clear() error
}

type fileSessionStore struct {
	path string
}

// NewFileSessionStore stores credentials as JSON at path with 0600 permission
func NewFileSessionStore(path string) SessionStore {
	return &fileSessionStore{path: path}
}

// DefaultSessionPath returns <user config dir>/drivelens/session.json
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve user config dir")
	}
	return filepath.Join(dir, "drivelens", "session.json"), nil
}

// Load returns nil credentials, not an error, when no session was saved
func (s *fileSessionStore) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read session file", goerr.V("path", s.path))
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, goerr.Wrap(err, "failed to parse session file", goerr.V("path", s.path))
	}
	if creds.AccessToken == "" {
		return nil, nil
	}
	return &creds, nil
}

func (s *fileSessionStore) Save(creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return goerr.Wrap(err, "failed to create session dir", goerr.V("path", s.path))
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal credentials")
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return goerr.Wrap(err, "failed to write session file", goerr.V("path", s.path))
	}
	return nil
}

func (s *fileSessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return goerr.Wrap(err, "failed to remove session file", goerr.V("path", s.path))
	}
	return nil
}

// tokenClaims is the part of the Lens id token that identifies the caller.
// "act.sub" is the account acted on; "sub" is the signing wallet.
type tokenClaims struct {
	Sub string `json:"sub"`
	Act *struct {
		Sub string `json:"sub"`
	} `json:"act,omitempty"`
}

// decodeClaims reads the payload of a JWT without verifying it. The token was
// issued to us by the API, which verifies it on every request.
func decodeClaims(token string) (*tokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, goerr.New("malformed token", goerr.V("segments", len(parts)))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode token payload")
	}

	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, goerr.Wrap(err, "failed to parse token claims")
	}
	return &claims, nil
}
