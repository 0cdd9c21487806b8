package router

import (
	"github.com/labstack/echo/v4"

	"tutorbase/core/middleware"
	"tutorbase/modules/schedule/controller"
)

type ScheduleRouter struct {
	ScheduleController *controller.ScheduleController
}

func NewScheduleRouter(scheduleController *controller.ScheduleController) *ScheduleRouter {
	return &ScheduleRouter{ScheduleController: scheduleController}
}

func (r *ScheduleRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")
	privateRoutes := v1.Group("/private")

	entryRoutes := privateRoutes.Group("/schedule-entries", mw.AuthMiddleware())
	entryRoutes.POST("", r.ScheduleController.Create)
	entryRoutes.GET("", r.ScheduleController.List)
	entryRoutes.GET("/:id", r.ScheduleController.GetByID)
	entryRoutes.PATCH("/:id", r.ScheduleController.Update)
	entryRoutes.PATCH("/:id/attendees", r.ScheduleController.UpdateAttendees)
	entryRoutes.PATCH("/:id/skip", r.ScheduleController.SkipOccurrence)
	entryRoutes.PATCH("/:id/restore-exception", r.ScheduleController.RestoreException)
	entryRoutes.PATCH("/:id/archive", r.ScheduleController.Archive)
	entryRoutes.PATCH("/:id/unarchive", r.ScheduleController.Unarchive)

	conflictRoutes := privateRoutes.Group("/schedule-conflicts", mw.AuthMiddleware())
	conflictRoutes.GET("", r.ScheduleController.ListConflicts)
	conflictRoutes.PATCH("/:id", r.ScheduleController.ToggleConflictResolved)
}
