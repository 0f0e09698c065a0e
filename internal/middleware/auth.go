package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"plant-market/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
	TokenKey    contextKey = "access_token"
)

// RevocationChecker reports whether an access token has been logged out
type RevocationChecker interface {
	Contains(ctx context.Context, token string) (bool, error)
}

// AuthMiddleware validates bearer tokens and puts the caller's id and role
// on the request context. Revoked tokens are rejected.
func AuthMiddleware(jwtSecret string, revoked RevocationChecker, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			tokenString := parts[1]

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})

			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, jwt.ErrTokenExpired) {
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				} else {
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			if !token.Valid {
				logger.Debug("Invalid token")
				RespondWithError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				logger.Error("Failed to extract claims from token")
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			userID, ok := claims["id"].(string)
			if !ok {
				logger.Debug("Missing id in token claims")
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}
			if _, err := uuid.Parse(userID); err != nil {
				logger.Debug("Malformed id in token claims", zap.String("id", userID))
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			role, ok := claims["role"].(string)
			if !ok {
				logger.Debug("Missing role in token claims")
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			if revoked != nil {
				isRevoked, err := revoked.Contains(r.Context(), tokenString)
				if err != nil {
					logger.Error("Failed to check token blacklist", zap.Error(err))
					RespondWithError(w, http.StatusServiceUnavailable, "authentication unavailable")
					return
				}
				if isRevoked {
					logger.Debug("Revoked token presented", zap.String("user_id", userID))
					RespondWithError(w, http.StatusUnauthorized, "token has been revoked")
					return
				}
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, UserRoleKey, role)
			ctx = context.WithValue(ctx, TokenKey, tokenString)

			logger.Debug("User authenticated",
				zap.String("user_id", userID),
				zap.String("role", role),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(UserRoleKey).(string)
	return role, ok
}

// GetToken extracts the raw bearer token from request context
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// GetActor returns the authenticated identity behind the request
func GetActor(ctx context.Context) (domain.Actor, bool) {
	rawID, ok := GetUserID(ctx)
	if !ok {
		return domain.Actor{}, false
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return domain.Actor{}, false
	}
	role, _ := GetUserRole(ctx)
	return domain.Actor{ID: id, Role: role}, true
}
