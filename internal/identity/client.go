package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mirrormatch/cloudsync/internal/platform/apierr"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
)

// Session is the identity service's issued session: tokens plus the account
// id they belong to.
type Session struct {
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CreateAccountRequest carries credentials plus the demographic fields the
// identity service records at signup.
type CreateAccountRequest struct {
	Username         string     `json:"username"`
	Password         string     `json:"password"`
	FirstName        string     `json:"first_name,omitempty"`
	LastInitial      string     `json:"last_initial,omitempty"`
	Grade            string     `json:"grade,omitempty"`
	Age              int        `json:"age,omitempty"`
	School           string     `json:"school,omitempty"`
	PriorExperience  string     `json:"prior_experience,omitempty"`
	ConsentVersion   string     `json:"consent_version,omitempty"`
	ConsentGrantedAt *time.Time `json:"consent_granted_at,omitempty"`
}

// Client is the request/response contract with the external identity
// service. It issues sessions; it does not touch the remote store.
type Client interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*Session, error)
	SignIn(ctx context.Context, username, password string) (*Session, error)
	EstablishSession(ctx context.Context, accessToken, refreshToken string) (*Session, error)
}

type httpClient struct {
	baseURL string
	hc      *http.Client
	log     *logger.Logger
}

func NewHTTPClient(baseURL string, baseLog *logger.Logger) Client {
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 15 * time.Second},
		log:     baseLog.With("client", "IdentityClient"),
	}
}

func (c *httpClient) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Session, error) {
	return c.post(ctx, "/v1/accounts", req)
}

func (c *httpClient) SignIn(ctx context.Context, username, password string) (*Session, error) {
	return c.post(ctx, "/v1/sessions", map[string]string{
		"username": username,
		"password": password,
	})
}

func (c *httpClient) EstablishSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	return c.post(ctx, "/v1/sessions/establish", map[string]string{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

func (c *httpClient) post(ctx context.Context, path string, payload interface{}) (*Session, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", path, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = resp.Status
		}
		return nil, apierr.New(resp.StatusCode, "", fmt.Errorf("identity %s: %s", path, msg))
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	if sess.UserID == uuid.Nil {
		id, err := subjectFromToken(sess.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("identity %s: no user id in response: %w", path, err)
		}
		sess.UserID = id
	}
	return &sess, nil
}

// subjectFromToken recovers the account id from the JWT subject claim when
// the response body omits it. The token is not verified here; verification
// belongs to the identity service and the remote store's own auth layer.
func subjectFromToken(token string) (uuid.UUID, error) {
	if strings.TrimSpace(token) == "" {
		return uuid.Nil, fmt.Errorf("empty access token")
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(claims.Subject)
}
