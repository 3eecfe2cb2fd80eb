package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/veloroute/veloroute_core/internal/domain"
)

// Verifier resolves bearer tokens against a Firebase-style identity
// endpoint (accounts:lookup).
type Verifier struct {
	root   string
	apiKey string
	client *http.Client
}

// NewVerifier builds a verifier against the given identity-toolkit root.
func NewVerifier(root, apiKey string) *Verifier {
	return &Verifier{
		root:   strings.TrimRight(root, "/"),
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewVerifierFromEnv reads AUTH_ROOT and AUTH_API_KEY.
func NewVerifierFromEnv() *Verifier {
	root := os.Getenv("AUTH_ROOT")
	if root == "" {
		root = "https://identitytoolkit.googleapis.com"
	}
	return NewVerifier(root, os.Getenv("AUTH_API_KEY"))
}

type lookupResponse struct {
	Users []struct {
		LocalID string `json:"localId"`
	} `json:"users"`
}

// Verify resolves an id token to a user id. Invalid or expired tokens
// fail with an authentication error.
func (v *Verifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.NewAuthenticationError("token must not be empty")
	}

	payload, err := json.Marshal(map[string]string{"idToken": token})
	if err != nil {
		return "", domain.WrapError(domain.KindExternal, "failed to encode token lookup", err)
	}

	url := v.root + "/v1/accounts:lookup?key=" + v.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", domain.WrapError(domain.KindExternal, "failed to build token lookup", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", domain.WrapError(domain.KindExternal, "auth backend unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.WrapError(domain.KindExternal, "failed to read auth response", err)
	}
	// The identity endpoint answers 400 for invalid or expired tokens.
	if resp.StatusCode == http.StatusBadRequest {
		return "", domain.NewAuthenticationError("invalid token")
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.Errorf(domain.KindExternal, "auth backend returned status %d", resp.StatusCode)
	}

	var lookup lookupResponse
	if err := json.Unmarshal(body, &lookup); err != nil {
		return "", domain.WrapError(domain.KindExternal, "failed to decode auth response", err)
	}
	if len(lookup.Users) == 0 || lookup.Users[0].LocalID == "" {
		return "", domain.NewAuthenticationError("token does not resolve to a user")
	}
	return lookup.Users[0].LocalID, nil
}
