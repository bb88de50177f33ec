package handlers

import (
	"net/http"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/middleware"
	"github.com/anonto42/edu-connect/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// AuthHandler exchanges Firebase ID tokens for local JWTs
type AuthHandler struct {
	verifier  middleware.IDTokenVerifier
	directory services.ParticipantDirectory
	jwtSecret string
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(verifier middleware.IDTokenVerifier, dir services.ParticipantDirectory, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		verifier:  verifier,
		directory: dir,
		jwtSecret: jwtSecret,
	}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/firebase-login", h.FirebaseLogin)
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// FirebaseLogin verifies a Firebase ID token and returns a local JWT for the
// account, provided it is registered in one of the identity pools.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req FirebaseLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	token, err := h.verifier.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}

	profile, err := h.directory.Resolve(ctx, token.UID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return httpError(apperrors.Forbidden("account is not registered"))
		}
		return httpError(err)
	}

	localJWT, err := middleware.IssueToken(h.jwtSecret, profile, time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate local JWT")
	}
	return c.JSON(http.StatusOK, echo.Map{"token": localJWT, "profile": profile})
}
