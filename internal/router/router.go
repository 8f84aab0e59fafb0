package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/handler"
	"github.com/carelink/portal-auth/internal/middleware"
	"github.com/carelink/portal-auth/internal/model"
	"github.com/carelink/portal-auth/internal/repository"
	"github.com/carelink/portal-auth/internal/utils"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RoleDeps carries everything one role's route group needs: the handler,
// the signing secrets for the auth middleware, the account store and
// token repo backing the blocked-account gate, and the limiter applied
// to credential endpoints.
type RoleDeps struct {
	Handler  *handler.AuthHandler
	Secrets  utils.SecretSet
	Accounts repository.AccountStore
	Tokens   *repository.TokenRepo
	Limiter  echo.MiddlewareFunc
}

// RegisterRole wires the full auth surface for a patient or doctor group
// under the given prefix (e.g. /v1/patient).  Public endpoints carry the
// rate limiter; protected ones run JWTAuth, the role gate and the
// blocked-account gate in that order, so every protected route uniformly
// rejects blocked accounts.
func RegisterRole(e *echo.Echo, prefix string, role model.Role, d RoleDeps) {
	g := e.Group(prefix)

	limited := []echo.MiddlewareFunc{}
	if d.Limiter != nil {
		limited = append(limited, d.Limiter)
	}

	// Signup: OTP-gated flow plus the direct endpoint.  verify-otp is
	// throttled too: a 6-digit code inside a short TTL is exactly the
	// surface where unthrottled guessing pays off.
	g.POST("/send-otp", d.Handler.SendOTP, limited...)
	g.POST("/resend-otp", d.Handler.ResendOTP, limited...)
	g.POST("/verify-otp", d.Handler.VerifyOTP, limited...)
	g.POST("/signup", d.Handler.Register, limited...)

	// Session lifecycle.
	g.POST("/login", d.Handler.Login, limited...)
	g.POST("/refresh-token", d.Handler.RefreshToken)

	// Password reset.
	g.POST("/forgot-password", d.Handler.ForgotPassword, limited...)
	g.GET("/verify-reset-token", d.Handler.VerifyResetToken)
	g.POST("/reset-password", d.Handler.ResetPassword, limited...)

	// Protected endpoints: verify, gate on role, then gate on blocked.
	auth := e.Group(prefix)
	auth.Use(middleware.JWTAuth(d.Secrets, role))
	auth.Use(middleware.RequireRole(string(role)))
	auth.Use(middleware.BlockGuard(d.Accounts, d.Tokens))
	auth.GET("/me", d.Handler.Me)
	auth.PUT("/me", d.Handler.UpdateMe)
	auth.POST("/logout", d.Handler.Logout)
}

// RegisterAdmin wires the admin surface: session endpoints from the
// shared auth handler plus the account-administration endpoints.  There
// is no admin signup or password-reset route; admin accounts are
// provisioned out of band.
func RegisterAdmin(e *echo.Echo, d RoleDeps, admin *handler.AdminHandler) {
	g := e.Group("/v1/admin")
	if d.Limiter != nil {
		g.POST("/login", d.Handler.Login, d.Limiter)
	} else {
		g.POST("/login", d.Handler.Login)
	}
	g.POST("/refresh-token", d.Handler.RefreshToken)

	auth := e.Group("/v1/admin")
	auth.Use(middleware.JWTAuth(d.Secrets, model.RoleAdmin))
	auth.Use(middleware.RequireRole(string(model.RoleAdmin)))
	auth.Use(middleware.BlockGuard(d.Accounts, d.Tokens))
	auth.POST("/logout", d.Handler.Logout)
	auth.GET("/me", d.Handler.Me)
	auth.GET("/patients", admin.ListPatients)
	auth.GET("/doctors", admin.ListDoctors)
	auth.PUT("/patients/:id/block", admin.BlockPatient)
	auth.PUT("/patients/:id/unblock", admin.UnblockPatient)
	auth.PUT("/doctors/:id/block", admin.BlockDoctor)
	auth.PUT("/doctors/:id/unblock", admin.UnblockDoctor)
}
