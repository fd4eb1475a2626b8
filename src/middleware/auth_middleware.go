package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"spendwise-server/src/db"
	"spendwise-server/src/logging"
	"spendwise-server/src/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	roleKey   contextKey = "role"
)

// Claims are issued by the external auth service.
type Claims struct {
	UserID int64       `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserLookup loads the caller so locked or deleted accounts can be refused
// while their tokens are still valid.
type UserLookup func(ctx context.Context, id int64) (*models.User, error)

// CachedUserLookup reads users through the cache.
func CachedUserLookup(store db.UserStore, cache *db.Cache) UserLookup {
	return func(ctx context.Context, id int64) (*models.User, error) {
		key := db.UserKey(id)
		if v, ok := cache.Get(key); ok {
			if u, ok := v.(*models.User); ok {
				return u, nil
			}
		}
		gen := cache.Generation(id)
		u, err := store.GetUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		cache.SetIfCurrent(id, gen, key, u, db.CacheUsers, db.UserTag(id))
		return u, nil
	}
}

// ParseToken validates an HMAC-signed token and returns its claims.
func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("invalid token claims")
	}
	if !claims.Role.Valid() {
		claims.Role = models.RoleUser
	}
	return claims, nil
}

// ParseTokenFromRequest reads the bearer token from the Authorization header.
func ParseTokenFromRequest(r *http.Request, secret []byte) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("missing token")
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("invalid authorization header")
	}
	return ParseToken(strings.TrimSpace(tokenString), secret)
}

func JWTAuthMiddleware(secret []byte, lookup UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := ParseTokenFromRequest(r, secret)
			if err != nil {
				deny(w, http.StatusUnauthorized, err.Error())
				return
			}

			role := claims.Role
			if lookup != nil {
				user, err := lookup(r.Context(), claims.UserID)
				switch {
				case errors.Is(err, models.ErrNotFound):
					deny(w, http.StatusUnauthorized, "unknown user")
					return
				case err != nil:
					logging.L().Error("failed to load user for auth", zap.Int64("user_id", claims.UserID), zap.Error(err))
					deny(w, http.StatusInternalServerError, "internal server error")
					return
				case user.Locked:
					deny(w, http.StatusForbidden, "account locked")
					return
				}
				// A token never grants more than the stored role.
				if user.Role != models.RoleAdmin {
					role = models.RoleUser
				}
			}

			ctx := WithUser(r.Context(), claims.UserID, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Role(r.Context()) != models.RoleAdmin {
			deny(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, userID int64, role models.Role) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// UserID returns the authenticated caller, or 0 outside JWTAuthMiddleware.
func UserID(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}

func Role(ctx context.Context) models.Role {
	role, _ := ctx.Value(roleKey).(models.Role)
	return role
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
