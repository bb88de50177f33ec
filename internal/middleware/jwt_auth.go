package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// Context keys set by the auth middlewares.
const (
	AccountIDKey   = "accountID"
	AccountNameKey = "accountName"
	ClaimsKey      = "user"
)

// TokenTTL is the lifetime of tokens minted by IssueToken.
const TokenTTL = 72 * time.Hour

// JWTAuthMiddleware checks for a valid JWT signed with secret and exposes the
// caller's account on the echo context.
func JWTAuthMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims := &models.JwtCustomClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil {
				if errors.Is(err, jwt.ErrSignatureInvalid) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token signature")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}
			if !token.Valid || claims.AccountID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.Set(ClaimsKey, claims)
			c.Set(AccountIDKey, claims.AccountID)
			c.Set(AccountNameKey, claims.Name)
			return next(c)
		}
	}
}

// IssueToken signs a token for profile that JWTAuthMiddleware accepts.
func IssueToken(secret string, profile *models.ParticipantProfile, now time.Time) (string, error) {
	claims := &models.JwtCustomClaims{
		AccountID: profile.ID,
		Email:     profile.Email,
		Name:      profile.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// bearerToken extracts "<token>" from an "Authorization: Bearer <token>"
// header. Browsers cannot set headers on WebSocket upgrades, so those
// requests may pass the token as ?access_token= instead.
func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if t := c.QueryParam("access_token"); t != "" && c.IsWebSocket() {
			return t, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], nil
}

// AccountID returns the authenticated caller set by one of the auth
// middlewares.
func AccountID(c echo.Context) (string, error) {
	id, _ := c.Get(AccountIDKey).(string)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated")
	}
	return id, nil
}

// AccountName returns the caller's display name, if the token carried one.
func AccountName(c echo.Context) string {
	name, _ := c.Get(AccountNameKey).(string)
	return name
}
