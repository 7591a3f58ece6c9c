package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dlms-org/apiserver/internal/services"
	"github.com/dlms-org/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

// Authenticator verifies bearer tokens minted by the identity provider (or
// the token command) and loads the calling user.
type Authenticator struct {
	users  *services.UserService
	secret []byte
}

func NewAuthenticator(users *services.UserService, jwtSecret string) *Authenticator {
	return &Authenticator{users: users, secret: []byte(jwtSecret)}
}

// RequireAuth rejects requests without a valid token and stores the subject
// and the user record in the request context.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		subject, err := parseTokenSubject(tokenString, a.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
		userID, err := userIDFromContext(ctx)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := a.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeServiceError(w, r, err)
			return
		}

		ctx = context.WithValue(ctx, contextUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows users holding role. Admins pass every role check.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := currentUser(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !user.HasRole(role) {
				writeError(w, http.StatusForbidden, role+" access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Me returns the current authenticated user.
func (a *Authenticator) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: user})
}

type UserResponse struct {
	Success bool       `json:"success"`
	User    types.User `json:"user"`
}

func currentUser(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

// canAccessUser reports whether the caller may read records owned by userID.
// Besides the owner, staff roles listed in extra may read them.
func canAccessUser(ctx context.Context, userID int, extra ...string) bool {
	user, ok := currentUser(ctx)
	if !ok {
		return false
	}
	if user.ID == userID || user.Role == types.RoleAdmin {
		return true
	}
	for _, role := range extra {
		if user.Role == role {
			return true
		}
	}
	return false
}

// actorID returns the caller's id, checking that an id given in the request
// body, if any, names the same person.
func actorID(ctx context.Context, claimed int) (int, error) {
	user, ok := currentUser(ctx)
	if !ok {
		return 0, errors.New("unauthorized")
	}
	if claimed != 0 && claimed != user.ID {
		return 0, errors.New("adminId does not match the authenticated user")
	}
	return user.ID, nil
}

// IssueToken signs an HS256 token whose subject is userID.
func IssueToken(userID int, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
