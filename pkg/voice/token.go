package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gtahvac/dispatch-voice/internal/httpc"
)

// TokenIssuer mints a short-lived connection credential from the
// token-issuing collaborator.
type TokenIssuer interface {
	// Issue returns an opaque bearer token for the given room and
	// caller identity.
	Issue(ctx context.Context, room, identity string) (string, error)
}

// HTTPTokenIssuer fetches tokens from an HTTP endpoint. The endpoint
// receives {"room": ..., "identity": ...} and answers {"token": ...}.
type HTTPTokenIssuer struct {
	// URL is the token endpoint.
	URL string

	// Client overrides the shared HTTP client when set.
	Client *http.Client
}

type tokenRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Issue requests a token from the endpoint.
func (t *HTTPTokenIssuer) Issue(ctx context.Context, room, identity string) (string, error) {
	body, err := json.Marshal(tokenRequest{Room: room, Identity: identity})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := t.Client
	if client == nil {
		client = httpc.Client
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{StatusCode: resp.StatusCode}
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ProtocolError{Reason: "malformed token response", Cause: err}
	}
	if out.Token == "" {
		return "", &AuthError{Cause: fmt.Errorf("token endpoint returned empty token")}
	}

	return out.Token, nil
}
