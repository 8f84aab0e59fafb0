package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/model"
	"github.com/carelink/portal-auth/internal/utils"
)

// Context keys under which JWTAuth stores the verified identity.  This
// attachment is the sole channel by which handlers learn who is calling.
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
	CtxRole   = "role"
)

// AccessCookieName returns the HTTP-only cookie a role's access token is
// delivered in.  Admin sessions use their own cookie, so an admin and a
// patient session can coexist in one browser.
func AccessCookieName(role model.Role) string {
	if role == model.RoleAdmin {
		return "adminAccessToken"
	}
	return "accessToken"
}

// RefreshCookieName returns the HTTP-only cookie the refresh token is
// delivered in.
func RefreshCookieName(role model.Role) string {
	if role == model.RoleAdmin {
		return "adminRefreshToken"
	}
	return "refreshToken"
}

// JWTAuth returns an Echo middleware that authenticates requests for one
// role.  The token is taken from the Authorization header ("Bearer ..."),
// falling back to the role's HTTP-only cookie.  It is verified against
// the role-appropriate access secret — a doctor token can never pass on a
// patient route because the secrets differ.  On success the subject,
// email and role claims are injected into the request context; any
// failure short-circuits with 401 and the downstream handler never runs.
func JWTAuth(secrets utils.SecretSet, role model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := ""
			if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				raw = strings.TrimPrefix(auth, "Bearer ")
			} else if ck, err := c.Cookie(AccessCookieName(role)); err == nil {
				raw = ck.Value
			}
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing access token"})
			}

			claims, err := utils.VerifyToken(secrets.Secret(role, utils.KindAccess), raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			// The role claim must survive signature verification before it
			// is trusted; a token signed for another role fails above.
			if claims.Role != role {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxEmail, claims.Email)
			c.Set(CtxRole, string(claims.Role))
			return next(c)
		}
	}
}
