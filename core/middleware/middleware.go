package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"tutorbase/core/config"
	"tutorbase/core/constants"
	"tutorbase/core/controller"
	"tutorbase/core/errors"
	"tutorbase/core/logger"
	"tutorbase/core/utils"
)

type Middleware struct {
	cfg *config.Config
}

func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{cfg: cfg}
}

// AuthMiddleware verifies the bearer token and stores the parsed claims on
// the request context under constants.ContextTokenData.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return controller.NewErrorResponse(401, errors.ErrMissingAuthorizationHeader, "Missing Authorization header")
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return controller.NewErrorResponse(401, errors.ErrInvalidTokenFormat, "Authorization header must be a Bearer token")
			}

			claims, err := utils.ValidateAndParseToken(parts[1], m.cfg.Auth.JWTSecret)
			if err != nil {
				code := errors.ErrUnauthorized
				if err == utils.ErrTokenExpired {
					code = errors.ErrTokenExpired
				}
				logger.Warn("Middleware:Auth:InvalidToken", "error", err)
				return controller.NewErrorResponse(401, code, "Invalid or expired token")
			}

			c.Set(constants.ContextTokenData, claims)
			return next(c)
		}
	}
}
