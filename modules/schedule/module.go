package schedule

import (
	"github.com/labstack/echo/v4"

	"tutorbase/core/database"
	"tutorbase/core/middleware"
	"tutorbase/modules/schedule/controller"
	"tutorbase/modules/schedule/repository"
	"tutorbase/modules/schedule/router"
	"tutorbase/modules/schedule/service"
)

// Init initializes the schedule module and registers routes. The org
// directory, reminder scheduler and conflict cache are passed in so the
// module stays decoupled from their wiring; reminders and cache may be nil.
func Init(
	e *echo.Echo,
	db database.IDatabase,
	mw *middleware.Middleware,
	orgs service.OrgDirectory,
	reminders service.ReminderScheduler,
	cache service.ConflictCache,
) service.ScheduleServiceInterface {
	scheduleRepo := repository.NewScheduleRepository(db)
	conflictRepo := repository.NewConflictRepository(db)

	scheduleSvc := service.NewScheduleService(db, scheduleRepo, conflictRepo, orgs, reminders, cache)
	conflictSvc := service.NewConflictService(conflictRepo, cache)

	ctrl := controller.NewScheduleController(scheduleSvc, conflictSvc)
	rtr := router.NewScheduleRouter(ctrl)

	rtr.Setup(e, mw)
	return scheduleSvc
}
