package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	tokenHeader = "Authorization"
	tokenPrefix = "Bearer "

	// UserIDKey holds the authenticated user's uuid in the echo context.
	UserIDKey = "user_id"
	// UsernameKey holds the authenticated user's name in the echo context.
	UsernameKey = "username"
)

// Middleware returns an echo middleware that validates the bearer token
// and injects the caller's identity into the request context.
func Middleware(signer *Signer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(tokenHeader)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			if !strings.HasPrefix(header, tokenPrefix) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
			}

			claims, err := signer.Validate(strings.TrimPrefix(header, tokenPrefix))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}
			userID, err := claims.UserID()
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}

			c.Set(UserIDKey, userID)
			c.Set(UsernameKey, claims.Username)
			return next(c)
		}
	}
}
