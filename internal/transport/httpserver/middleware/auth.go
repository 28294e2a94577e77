package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"todo-sync-go/internal/config"
	"todo-sync-go/pkg/logger"
)

// SupabaseAuth resolves the bearer token of a request to a user by asking the
// identity provider. Tokens are never verified locally.
type SupabaseAuth struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	skipAuth bool
	mockUser User
	log      logger.Logger
}

type contextKey int

const (
	userIDKey contextKey = iota
	userKey
)

var (
	errMissingToken  = errors.New("missing bearer token")
	errTokenRejected = errors.New("token rejected by identity provider")
	errNoUserID      = errors.New("identity provider returned no user id")
)

type userResponse struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Sub          string                 `json:"sub"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	User         struct {
		ID  string `json:"id"`
		Sub string `json:"sub"`
	} `json:"user"`
}

type User struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

func NewSupabaseAuth(cfg config.SupabaseConfig, log logger.Logger) *SupabaseAuth {
	baseURL := strings.TrimRight(cfg.URL, "/")
	timeout := cfg.AuthTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &SupabaseAuth{
		baseURL: baseURL,
		apiKey:  cfg.PublishableKey,
		client: &http.Client{
			Timeout: timeout,
		},
		skipAuth: cfg.SkipAuth,
		mockUser: User{
			ID:        strings.TrimSpace(cfg.MockUserID),
			Email:     strings.TrimSpace(cfg.MockUserEmail),
			Name:      strings.TrimSpace(cfg.MockUserName),
			AvatarURL: strings.TrimSpace(cfg.MockUserAvatar),
		},
		log: log,
	}
}

func (a *SupabaseAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipAuth {
			if a.mockUser.ID == "" {
				writeError(w, http.StatusInternalServerError, "auth_not_configured", "auth mock user id not configured")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), a.mockUser)))
			return
		}

		if a.baseURL == "" || a.apiKey == "" {
			writeError(w, http.StatusInternalServerError, "auth_not_configured", "auth not configured")
			return
		}

		token, ok := requestToken(r)
		if !ok {
			a.log.BusinessError("auth: rejected request", errMissingToken, "path", r.URL.Path)
			unauthorized(w)
			return
		}

		user, err := a.lookupUser(r.Context(), token)
		if err != nil {
			if errors.Is(err, errTokenRejected) || errors.Is(err, errNoUserID) {
				a.log.BusinessError("auth: rejected token", err, "path", r.URL.Path)
			} else {
				a.log.InternalError("auth: identity provider lookup failed", err, "path", r.URL.Path)
			}
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (a *SupabaseAuth) lookupUser(ctx context.Context, token string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return User{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("call identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("%w: status %d", errTokenRejected, resp.StatusCode)
	}

	var payload userResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}

	userID := firstNonEmpty(payload.ID, payload.Sub, payload.User.ID, payload.User.Sub)
	if userID == "" {
		return User{}, errNoUserID
	}

	return User{
		ID:        userID,
		Email:     payload.Email,
		Name:      firstNonEmpty(stringFromMap(payload.UserMetadata, "name"), stringFromMap(payload.UserMetadata, "full_name")),
		AvatarURL: stringFromMap(payload.UserMetadata, "avatar_url"),
	}, nil
}

// requestToken reads the bearer token. Websocket upgrades may carry it in the
// access_token query parameter since browsers cannot set headers on them.
func requestToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" {
			return token, true
		}
	}
	return "", false
}

func bearerToken(value string) (string, bool) {
	parts := strings.Fields(value)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
}

func WithUser(ctx context.Context, user User) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, userIDKey, user.ID)
}

func UserFromContext(ctx context.Context) (User, bool) {
	value := ctx.Value(userKey)
	user, ok := value.(User)
	if !ok || user.ID == "" {
		return User{}, false
	}
	return user, true
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(userIDKey)
	userID, ok := value.(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func stringFromMap(values map[string]interface{}, key string) string {
	if values == nil {
		return ""
	}
	value, ok := values[key]
	if !ok {
		return ""
	}
	parsed, ok := value.(string)
	if !ok {
		return ""
	}
	return parsed
}
