package router

import (
	"github.com/labstack/echo/v4"

	"tutorbase/core/middleware"
	"tutorbase/modules/org/controller"
)

type OrgRouter struct {
	OrgController *controller.OrgController
}

func NewOrgRouter(orgController *controller.OrgController) *OrgRouter {
	return &OrgRouter{OrgController: orgController}
}

func (r *OrgRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")
	privateRoutes := v1.Group("/private")

	locationRoutes := privateRoutes.Group("/locations", mw.AuthMiddleware())
	locationRoutes.POST("", r.OrgController.CreateLocation)
	locationRoutes.GET("", r.OrgController.ListLocations)
}
