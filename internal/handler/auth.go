package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/middleware"
	"github.com/carelink/portal-auth/internal/model"
	"github.com/carelink/portal-auth/internal/repository"
	"github.com/carelink/portal-auth/internal/service"
)

// AuthHandler bundles the auth endpoints for one role.  The patient and
// doctor groups each get their own instance wired to role-specific
// services; the request/response shapes are identical.
type AuthHandler struct {
	Auth   *service.AuthService
	Signup *service.SignupService
	Reset  *service.PasswordResetService
	// ResetURLBase is the frontend page the reset-link email points at.
	ResetURLBase string
	// Secure controls the cookie Secure attribute; true outside dev.
	Secure bool
}

func NewAuthHandler(auth *service.AuthService, signup *service.SignupService,
	reset *service.PasswordResetService, resetURLBase string, secure bool) *AuthHandler {
	return &AuthHandler{Auth: auth, Signup: signup, Reset: reset, ResetURLBase: resetURLBase, Secure: secure}
}

// ----- DTOs -----

type signupReq struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"license_number"`
	PhoneNumber    string `json:"phone_number"`
	DateOfBirth    string `json:"date_of_birth"`
	Gender         string `json:"gender"`
	Address        string `json:"address"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailReq struct {
	Email string `json:"email"`
}

type verifyOtpReq struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetPasswordReq struct {
	Token       string `json:"token"`
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

type userPart struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	Blocked        bool   `json:"blocked"`
	Specialization string `json:"specialization,omitempty"`
	LicenseNumber  string `json:"license_number,omitempty"`
}

func toUserPart(a model.Account) userPart {
	return userPart{
		ID:             a.ID,
		Username:       a.Username,
		Email:          a.Email,
		Role:           string(a.Role),
		Blocked:        a.Blocked,
		Specialization: a.Specialization,
		LicenseNumber:  a.LicenseNumber,
	}
}

func (r signupReq) toSignupData() model.SignupData {
	return model.SignupData{
		Username:       strings.TrimSpace(r.Username),
		Email:          strings.ToLower(strings.TrimSpace(r.Email)),
		Password:       r.Password,
		Specialization: strings.TrimSpace(r.Specialization),
		LicenseNumber:  strings.TrimSpace(r.LicenseNumber),
		PhoneNumber:    strings.TrimSpace(r.PhoneNumber),
		DateOfBirth:    strings.TrimSpace(r.DateOfBirth),
		Gender:         strings.TrimSpace(r.Gender),
		Address:        strings.TrimSpace(r.Address),
	}
}

// setAuthCookies writes the HTTP-only auth cookies.  The access token
// additionally goes back in the JSON body; the refresh token travels
// only in its cookie.
func (h *AuthHandler) setAuthCookies(c echo.Context, pair service.TokenPair) {
	role := h.Auth.Role()
	c.SetCookie(&http.Cookie{
		Name:     middleware.AccessCookieName(role),
		Value:    pair.Access.Token,
		Expires:  pair.Access.Exp,
		HttpOnly: true,
		Secure:   h.Secure,
		Path:     "/",
	})
	c.SetCookie(&http.Cookie{
		Name:     middleware.RefreshCookieName(role),
		Value:    pair.Refresh.Token,
		Expires:  pair.Refresh.Exp,
		HttpOnly: true,
		Secure:   h.Secure,
		Path:     "/",
	})
}

func (h *AuthHandler) clearAuthCookies(c echo.Context) {
	role := h.Auth.Role()
	for _, name := range []string{middleware.AccessCookieName(role), middleware.RefreshCookieName(role)} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.Secure,
			Path:     "/",
		})
	}
}

// conflictMessage maps account-conflict sentinels to client messages.
func conflictStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return http.StatusBadRequest, "email already registered", true
	case errors.Is(err, repository.ErrUsernameExists):
		return http.StatusBadRequest, "username already taken", true
	case errors.Is(err, repository.ErrLicenseExists):
		return http.StatusBadRequest, "license number already registered", true
	}
	return 0, "", false
}

// SendOTP stages a signup and emails a verification code.
func (h *AuthHandler) SendOTP(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	data := req.toSignupData()
	if data.Username == "" || data.Email == "" || data.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username, email and password are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.Signup.SendOTP(ctx, data); err != nil {
		if status, msg, ok := conflictStatus(err); ok {
			return c.JSON(status, echo.Map{"error": msg})
		}
		log.Printf("send-otp failed for %s: %v", data.Email, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send otp"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "email": data.Email})
}

// ResendOTP replaces the live code; the staged payload must still exist.
func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.Signup.ResendOTP(ctx, email); err != nil {
		if errors.Is(err, service.ErrNoPendingSignup) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no pending signup found for this email"})
		}
		if status, msg, ok := conflictStatus(err); ok {
			return c.JSON(status, echo.Map{"error": msg})
		}
		log.Printf("resend-otp failed for %s: %v", email, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resend otp"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "email": email})
}

// VerifyOTP checks the code and, on success, creates the account and
// logs the new user in.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req verifyOtpReq
	if err := c.Bind(&req); err != nil || req.Email == "" || req.OTP == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and otp required"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	a, pair, err := h.Signup.VerifyOTP(ctx, email, strings.TrimSpace(req.OTP))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOTPExpired):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "otp expired or invalid"})
		case errors.Is(err, service.ErrOTPMismatch):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "incorrect otp"})
		case errors.Is(err, service.ErrSignupDataExpired):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "signup data expired, please sign up again"})
		}
		if status, msg, ok := conflictStatus(err); ok {
			return c.JSON(status, echo.Map{"error": msg})
		}
		log.Printf("verify-otp failed for %s: %v", email, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}
	h.setAuthCookies(c, pair)
	return c.JSON(http.StatusCreated, echo.Map{
		"success":     true,
		"user":        toUserPart(a),
		"accessToken": pair.Access.Token,
	})
}

// Register creates an account directly, without the OTP gate.
func (h *AuthHandler) Register(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	data := req.toSignupData()
	if data.Username == "" || data.Email == "" || data.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username, email and password are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, pair, err := h.Auth.Register(ctx, data)
	if err != nil {
		if status, msg, ok := conflictStatus(err); ok {
			return c.JSON(status, echo.Map{"error": msg})
		}
		log.Printf("signup failed for %s: %v", data.Email, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}
	h.setAuthCookies(c, pair)
	return c.JSON(http.StatusCreated, echo.Map{
		"success":     true,
		"user":        toUserPart(a),
		"accessToken": pair.Access.Token,
	})
}

// Login verifies credentials and opens a session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, pair, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
		case errors.Is(err, service.ErrAccountBlocked):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "account is blocked"})
		}
		log.Printf("login failed for %s: %v", req.Email, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	h.setAuthCookies(c, pair)
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"user":        toUserPart(a),
		"accessToken": pair.Access.Token,
	})
}

// Logout revokes the caller's refresh token and clears both cookies.
// Protected: the identity comes from the verified access token.
func (h *AuthHandler) Logout(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(string)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.Logout(ctx, userID); err != nil {
		log.Printf("logout failed for %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	h.clearAuthCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// RefreshToken exchanges the refresh-token cookie for a fresh pair.  The
// old refresh token is dead afterwards (full rotation).
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	raw := ""
	if ck, err := c.Cookie(middleware.RefreshCookieName(h.Auth.Role())); err == nil {
		raw = ck.Value
	}
	if raw == "" {
		// Fallback for clients that keep the token themselves.
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = c.Bind(&body)
		raw = strings.TrimSpace(body.RefreshToken)
	}
	if raw == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token not found"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, pair, err := h.Auth.Refresh(ctx, raw)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRefreshToken):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		case errors.Is(err, service.ErrAccountBlocked):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "account is blocked"})
		}
		log.Printf("refresh failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token refresh failed"})
	}
	h.setAuthCookies(c, pair)
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"user":        toUserPart(a),
		"accessToken": pair.Access.Token,
	})
}

// Me returns the caller's current account record.  Protected; the
// BlockGuard has already rejected blocked accounts by the time this runs.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(string)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Auth.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load account"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": toUserPart(a)})
}

// UpdateMe applies a partial profile update for the caller.  Absent
// fields are left untouched; password and role are not updatable here.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(string)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Username       *string `json:"username"`
		PhoneNumber    *string `json:"phone_number"`
		DateOfBirth    *string `json:"date_of_birth"`
		Gender         *string `json:"gender"`
		Address        *string `json:"address"`
		Specialization *string `json:"specialization"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Auth.UpdateProfile(ctx, userID, repository.ProfilePatch{
		Username:       req.Username,
		PhoneNumber:    req.PhoneNumber,
		DateOfBirth:    req.DateOfBirth,
		Gender:         req.Gender,
		Address:        req.Address,
		Specialization: req.Specialization,
	})
	if err != nil {
		if status, msg, ok := conflictStatus(err); ok {
			return c.JSON(status, echo.Map{"error": msg})
		}
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		log.Printf("update profile failed for %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update profile"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": toUserPart(a)})
}

// ForgotPassword starts the reset flow.  The response is identical
// whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.Reset.Request(ctx, email, h.ResetURLBase); err != nil {
		log.Printf("forgot-password failed for %s: %v", email, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to process request"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// VerifyResetToken reports whether a reset link is still usable.  An
// expired or unknown token answers 410 so the frontend can route the
// user back to the request form.
func (h *AuthHandler) VerifyResetToken(c echo.Context) error {
	token := c.QueryParam("token")
	email := strings.ToLower(strings.TrimSpace(c.QueryParam("email")))
	if token == "" || email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token and email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	valid, _, err := h.Reset.VerifyToken(ctx, token, email)
	if err != nil {
		log.Printf("verify-reset-token failed for %s: %v", email, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}
	if !valid {
		return c.JSON(http.StatusGone, echo.Map{"valid": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true})
}

// ResetPassword consumes the reset token and sets the new password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil || req.Token == "" || req.Email == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token, email and new_password required"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Reset.Reset(ctx, req.Token, email, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrResetTokenInvalid) {
			return c.JSON(http.StatusGone, echo.Map{"error": "invalid or expired reset token"})
		}
		log.Printf("reset-password failed for %s: %v", email, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reset password"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
