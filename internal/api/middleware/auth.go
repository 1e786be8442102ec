package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/config"
)

// BearerAuth resolves the caller role from a static bearer token and
// stores it on the request context. Requests without a token act as
// unprivileged users; role checks happen in the services, not here.
func BearerAuth(cfg config.Auth) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller := auth.Caller{Subject: "anonymous", Role: auth.RoleUser}

			token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			switch {
			case token != "" && cfg.AdminToken != "" && token == cfg.AdminToken:
				caller = auth.Caller{Subject: "admin", Role: auth.RoleAdmin}
			case token != "" && cfg.KeeperToken != "" && token == cfg.KeeperToken:
				caller = auth.Caller{Subject: "keeper", Role: auth.RoleKeeper}
			}

			ctx := auth.WithCaller(c.Request().Context(), caller)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}

	return strings.TrimSpace(header[len(prefix):])
}
