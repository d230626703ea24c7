package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/tally/internal/model"
)

// mockAuthenticator はauth.Authenticatorのモック実装。
type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, token string) (*model.User, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*model.User, error) {
	return m.authenticateFn(ctx, token)
}

func TestAuthMiddleware_Success(t *testing.T) {
	authenticator := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, token string) (*model.User, error) {
			if token != "valid-token" {
				t.Errorf("token = %q, want valid-token", token)
			}
			return &model.User{ID: "user-1", IsActive: true}, nil
		},
	}

	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := NewAuthMiddleware(authenticator)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/disbursements", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUserID != "user-1" {
		t.Errorf("userID in context = %q, want user-1", gotUserID)
	}
}

func TestAuthMiddleware_MissingOrMalformedHeader(t *testing.T) {
	authenticator := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, token string) (*model.User, error) {
			t.Error("Authenticate must not be called")
			return nil, nil
		},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler must not be called")
	})
	handler := NewAuthMiddleware(authenticator)(next)

	tests := []struct {
		name   string
		header string
	}{
		{"ヘッダーなし", ""},
		{"スキームなし", "valid-token"},
		{"Basicスキーム", "Basic dXNlcjpwYXNz"},
		{"トークンが空", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/disbursements", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_AuthenticationFailure(t *testing.T) {
	authenticator := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, token string) (*model.User, error) {
			return nil, model.NewInactiveUserError()
		},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler must not be called")
	})
	handler := NewAuthMiddleware(authenticator)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/disbursements", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["code"] != model.ErrCodeInactiveUser {
		t.Errorf("code = %q, want %s", body["code"], model.ErrCodeInactiveUser)
	}
}

func TestUserIDFromContext(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-1")

	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("UserIDFromContext returned error: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("userID = %q, want user-1", userID)
	}

	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("UserIDFromContext succeeded for empty context, want error")
	}
}
