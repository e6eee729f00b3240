// internal/common/auth/google.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	commonhttp "schema-host/internal/common/http"
)

var (
	ErrInvalidToken  = errors.New("INVALID_GOOGLE_TOKEN")
	ErrMissingUserID = errors.New("GOOGLE_USER_ID_MISSING")
)

// Identity is what the Google userinfo endpoint tells us about a token holder.
type Identity struct {
	GoogleUserID string `json:"id"`
	Email        string `json:"email"`
}

// GoogleVerifier resolves an OAuth access token to the Google account behind it.
type GoogleVerifier struct {
	userInfoURL string
	httpClient  *commonhttp.Client
	timeout     time.Duration
}

func NewGoogleVerifier(userInfoURL string, hc *commonhttp.Client, timeout time.Duration) *GoogleVerifier {
	return &GoogleVerifier{
		userInfoURL: strings.TrimSpace(userInfoURL),
		httpClient:  hc,
		timeout:     timeout,
	}
}

// Verify returns ErrInvalidToken when Google rejects the token. Network and
// 5xx failures are returned wrapped as they are.
func (g *GoogleVerifier) Verify(ctx context.Context, accessToken string) (*Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrInvalidToken
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var identity Identity
	err := g.httpClient.DoJSON(ctx, http.MethodGet, g.userInfoURL,
		map[string]string{"Authorization": "Bearer " + accessToken}, nil, &identity)
	if err != nil {
		var statusErr *commonhttp.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: status %d", ErrInvalidToken, statusErr.StatusCode)
		}
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	if identity.GoogleUserID == "" {
		return nil, ErrMissingUserID
	}
	identity.Email = strings.TrimSpace(identity.Email)
	return &identity, nil
}
