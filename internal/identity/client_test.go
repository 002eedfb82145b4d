package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mirrormatch/cloudsync/internal/platform/apierr"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
)

func testClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return NewHTTPClient(srv.URL, log)
}

func signedToken(t *testing.T, subject string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestCreateAccountDecodesSession(t *testing.T) {
	userID := uuid.New()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req CreateAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Username != "kiddo" {
			t.Errorf("username=%q", req.Username)
		}
		_ = json.NewEncoder(w).Encode(Session{
			UserID:       userID,
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
		})
	}))

	sess, err := c.CreateAccount(context.Background(), CreateAccountRequest{Username: "kiddo", Password: "pw"})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if sess.UserID != userID {
		t.Fatalf("user_id=%s, want %s", sess.UserID, userID)
	}
}

func TestSignInRecoversSubjectFromToken(t *testing.T) {
	userID := uuid.New()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No user_id in the body; the client falls back to the JWT subject.
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  signedToken(t, userID.String()),
			"refresh_token": "refresh",
		})
	}))

	sess, err := c.SignIn(context.Background(), "kiddo", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if sess.UserID != userID {
		t.Fatalf("user_id=%s, want subject %s", sess.UserID, userID)
	}
}

func TestSignInRejectsUnusableResponse(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "not-a-jwt"})
	}))

	if _, err := c.SignIn(context.Background(), "kiddo", "pw"); err == nil {
		t.Fatalf("expected error when neither user_id nor a parseable subject is present")
	}
}

func TestErrorStatusCarriedThrough(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "username taken", http.StatusConflict)
	}))

	_, err := c.CreateAccount(context.Background(), CreateAccountRequest{Username: "kiddo", Password: "pw"})
	ae := apierr.From(err)
	if ae == nil {
		t.Fatalf("error not normalized: %v", err)
	}
	if ae.Status != http.StatusConflict {
		t.Fatalf("status=%d, want 409", ae.Status)
	}
}

func TestEstablishSessionPostsBothTokens(t *testing.T) {
	userID := uuid.New()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions/establish" {
			t.Errorf("path=%s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["access_token"] != "a" || body["refresh_token"] != "r" {
			t.Errorf("tokens not forwarded: %v", body)
		}
		_ = json.NewEncoder(w).Encode(Session{UserID: userID, AccessToken: "a2", RefreshToken: "r2"})
	}))

	sess, err := c.EstablishSession(context.Background(), "a", "r")
	if err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}
	if sess.AccessToken != "a2" {
		t.Fatalf("rotated access token not returned")
	}
}
