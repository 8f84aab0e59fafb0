package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/model"
	"github.com/carelink/portal-auth/internal/repository"
	"github.com/carelink/portal-auth/internal/service"
)

// AdminHandler exposes the back-office endpoints: listing patient and
// doctor accounts and blocking or unblocking them.  Session management
// (login/logout/me) is served by the shared AuthHandler wired to the
// admin services; only account administration lives here.
type AdminHandler struct {
	Admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{Admin: admin}
}

// ListPatients returns all patient accounts, sanitized.
func (h *AdminHandler) ListPatients(c echo.Context) error {
	return h.list(c, model.RolePatient)
}

// ListDoctors returns all doctor accounts, sanitized.
func (h *AdminHandler) ListDoctors(c echo.Context) error {
	return h.list(c, model.RoleDoctor)
}

func (h *AdminHandler) list(c echo.Context, role model.Role) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	accounts, err := h.Admin.ListAccounts(ctx, role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list accounts"})
	}
	out := make([]userPart, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toUserPart(a))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": out})
}

// BlockPatient sets blocked=true for a patient.
func (h *AdminHandler) BlockPatient(c echo.Context) error {
	return h.setBlocked(c, model.RolePatient, true)
}

// UnblockPatient sets blocked=false for a patient.
func (h *AdminHandler) UnblockPatient(c echo.Context) error {
	return h.setBlocked(c, model.RolePatient, false)
}

// BlockDoctor sets blocked=true for a doctor.
func (h *AdminHandler) BlockDoctor(c echo.Context) error {
	return h.setBlocked(c, model.RoleDoctor, true)
}

// UnblockDoctor sets blocked=false for a doctor.
func (h *AdminHandler) UnblockDoctor(c echo.Context) error {
	return h.setBlocked(c, model.RoleDoctor, false)
}

func (h *AdminHandler) setBlocked(c echo.Context, role model.Role, blocked bool) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Admin.SetBlocked(ctx, role, id, blocked); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update account"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "blocked": blocked})
}
