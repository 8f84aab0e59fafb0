package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/repository"
)

// blockedCacheTTL bounds how stale the cached blocked flag may be.  An
// admin block also invalidates the cache directly, so the TTL only
// matters when that invalidation is lost.
const blockedCacheTTL = 30 * time.Second

// BlockGuard rejects requests from accounts whose blocked flag is set.
// An authorization decision must reflect current account state, not just
// token validity at issuance time, so this runs on every protected
// request immediately after JWTAuth instead of being re-implemented in
// individual handlers.  The durable lookup is fronted by a short-TTL
// entry in the ephemeral store to keep the per-request cost at one Redis
// read.
func BlockGuard(accounts repository.AccountStore, cache *repository.TokenRepo) echo.MiddlewareFunc {
	role := accounts.Role()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := c.Get(CtxUserID).(string)
			if !ok || id == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing access token"})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			blocked, found, err := cache.GetCachedBlocked(ctx, role, id)
			if err != nil {
				log.Printf("block-guard: cache read failed: %v", err)
				found = false // fall through to the durable store
			}
			if !found {
				blocked, err = accounts.IsBlocked(ctx, id)
				if err != nil {
					if errors.Is(err, repository.ErrNotFound) {
						// Account deleted since the token was issued.
						return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
					}
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
				}
				if cerr := cache.CacheBlocked(ctx, role, id, blocked, blockedCacheTTL); cerr != nil {
					log.Printf("block-guard: cache write failed: %v", cerr)
				}
			}
			if blocked {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "account is blocked"})
			}
			return next(c)
		}
	}
}
