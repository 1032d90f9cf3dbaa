package handlers

import (
	"errors"
	"net/http"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"

	actorKey = "actor"
)

// RequireActor resolves the caller through the identity directory. A role
// header, when sent, has to agree with the directory.
func RequireActor(identity domain.IdentityDirectory, log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderActorID)
			if id == "" {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: HeaderActorID + " header required", Code: "unauthenticated"})
			}

			actor, err := identity.GetActor(c.Request().Context(), id)
			if err != nil {
				if errors.Is(err, domain.ErrActorNotFound) {
					return respondError(c, err)
				}
				log.Error("Identity lookup failed", "actor_id", id, "error", err)
				return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "identity service unavailable", Code: "unavailable"})
			}

			if role := c.Request().Header.Get(HeaderActorRole); role != "" && domain.Role(role) != actor.Role {
				return c.JSON(http.StatusForbidden, ErrorResponse{Error: "role does not match actor", Code: "not_authorized"})
			}

			c.Set(actorKey, *actor)
			return next(c)
		}
	}
}

func actorFrom(c echo.Context) domain.Actor {
	actor, _ := c.Get(actorKey).(domain.Actor)
	return actor
}
