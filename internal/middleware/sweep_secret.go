package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// SweepSecret guards the internal sweep trigger endpoints. The external
// scheduler presents the shared secret in the X-Sweep-Secret header; a
// missing or wrong value is rejected before any sweep work starts. The
// comparison is constant time so the secret cannot be probed
// byte by byte.
func SweepSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get("X-Sweep-Secret")
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid sweep secret"})
			}
			return next(c)
		}
	}
}
