package org

import (
	"github.com/labstack/echo/v4"

	"tutorbase/core/database"
	"tutorbase/core/middleware"
	"tutorbase/modules/org/controller"
	"tutorbase/modules/org/repository"
	"tutorbase/modules/org/router"
	"tutorbase/modules/org/service"
)

// Init initializes the org module and registers routes.
func Init(e *echo.Echo, db database.IDatabase, mw *middleware.Middleware) service.OrgServiceInterface {
	repo := repository.NewOrgRepository(db)
	svc := service.NewOrgService(repo)
	ctrl := controller.NewOrgController(svc)
	rtr := router.NewOrgRouter(ctrl)

	rtr.Setup(e, mw)
	return svc
}
