package controller

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"tutorbase/core/constants"
	"tutorbase/core/controller"
	"tutorbase/core/errors"
	"tutorbase/core/utils"
	"tutorbase/modules/schedule/dto"
	"tutorbase/modules/schedule/repository"
	"tutorbase/modules/schedule/service"
)

type ScheduleController struct {
	controller.BaseController
	ScheduleService service.ScheduleServiceInterface
	ConflictService service.ConflictServiceInterface
}

func NewScheduleController(scheduleSvc service.ScheduleServiceInterface, conflictSvc service.ConflictServiceInterface) *ScheduleController {
	return &ScheduleController{
		BaseController:  controller.NewBaseController(),
		ScheduleService: scheduleSvc,
		ConflictService: conflictSvc,
	}
}

func (c *ScheduleController) claims(ctx echo.Context) (*utils.TokenClaims, error) {
	tokenData := ctx.Get(constants.ContextTokenData)
	if tokenData == nil {
		return nil, errors.NewAppError(errors.ErrUnauthorized, "User not authenticated", nil)
	}
	claims, ok := tokenData.(*utils.TokenClaims)
	if !ok {
		return nil, errors.NewAppError(errors.ErrUnauthorized, "Invalid token data", nil)
	}
	return claims, nil
}

func (c *ScheduleController) pathID(ctx echo.Context) (uuid.UUID, *echo.HTTPError) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, c.BadRequest(errors.ErrInvalidInput, "Invalid id")
	}
	return id, nil
}

func (c *ScheduleController) scope(ctx echo.Context) (service.MutationScope, *echo.HTTPError) {
	scope, err := service.ParseScope(ctx.QueryParam("scope"))
	if err != nil {
		return scope, c.BadRequest(errors.ErrInvalidInput, "scope must be this or following")
	}
	return scope, nil
}

// Create handles POST /schedule-entries
// @Summary Create a schedule entry or recurring series
// @Tags Schedule
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CreateScheduleEntryRequest true "Schedule definition"
// @Success 200 {object} dto.CreateScheduleResponse
// @Router /private/schedule-entries [post]
func (c *ScheduleController) Create(ctx echo.Context) error {
	claims, err := c.claims(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}

	var req dto.CreateScheduleEntryRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	result, appErr := c.ScheduleService.Create(ctx.Request().Context(), claims.OrganizationID, &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Schedule created successfully")
}

// GetByID handles GET /schedule-entries/:id
// @Summary Get a schedule entry with its unresolved conflicts
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Param id path string true "Entry id"
// @Success 200 {object} dto.ScheduleEntryResponse
// @Router /private/schedule-entries/{id} [get]
func (c *ScheduleController) GetByID(ctx echo.Context) error {
	claims, err := c.claims(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, httpErr := c.pathID(ctx)
	if httpErr != nil {
		return httpErr
	}

	result, appErr := c.ScheduleService.GetByID(ctx.Request().Context(), claims.OrganizationID, id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Success")
}

// List handles GET /schedule-entries
// @Summary List schedule entries at a location
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Param location_id query string true "Location id"
// @Param series_id query string false "Filter by series"
// @Param archived query string false "active (default), archived or all"
// @Success 200 {array} dto.ScheduleEntryResponse
// @Router /private/schedule-entries [get]
func (c *ScheduleController) List(ctx echo.Context) error {
	claims, err := c.claims(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	locationID, err := uuid.Parse(ctx.QueryParam("location_id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "location_id is required and must be a uuid")
	}

	var seriesID *uuid.UUID
	if raw := ctx.QueryParam("series_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.BadRequest(errors.ErrInvalidInput, "Invalid series_id")
		}
		seriesID = &id
	}
	archived := repository.ArchivedFilter(ctx.QueryParam("archived"))

	result, appErr := c.ScheduleService.ListByLocation(ctx.Request().Context(), claims.OrganizationID, locationID, seriesID, archived)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Success")
}

// Update handles PATCH /schedule-entries/:id
// @Summary Update a schedule entry, optionally for all following occurrences
// @Tags Schedule
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Entry id"
// @Param scope query string false "this (default) or following"
// @Param request body dto.UpdateScheduleEntryRequest true "Field overrides"
// @Success 200 {object} dto.ScopedMutationResponse
// @Router /private/schedule-entries/{id} [patch]
func (c *ScheduleController) Update(ctx echo.Context) error {
	claims, err := c.claims(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, httpErr := c.pathID(ctx)
	if httpErr != nil {
		return httpErr
	}
	scope, httpErr := c.scope(ctx)
	if httpErr != nil {
		return httpErr
	}

	var req dto.UpdateScheduleEntryRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	result, appErr := c.ScheduleService.Update(ctx.Request().Context(), claims.OrganizationID, id, &req, scope)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Schedule updated successfully")
}

// UpdateAttendees handles PATCH /schedule-entries/:id/attendees
// @Summary Add or remove attendees on an occurrence
// @Tags Schedule
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Entry id"
// @Param scope query string false "this (default) or following"
// @Param request body dto.AttendeeChangeRequest true "Attendee delta"
// @Success 200 {object} dto.ScopedMutationResponse
// @Router /private/schedule-entries/{id}/attendees [patch]
func (c *ScheduleController) UpdateAttendees(ctx echo.Context) error {
	claims, err := c.claims(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, httpErr := c.pathID(ctx)
	if httpErr != nil {
		return httpErr
	}
	scope, httpErr := c.scope(ctx)
	if httpErr != nil {
		return httpErr
	}

	var req dto.AttendeeChangeRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	result, appErr := c.ScheduleService.UpdateAttendees(ctx.Request().Context(), claims.OrganizationID, id, &req, scope)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Attendees updated successfully")
}

// SkipOccurrence handles PATCH /schedule-entries/:id/skip
// @Summary Skip a single occurrence
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Param id path string true "Entry id"
// @Success 200 {object} dto.ScheduleEntryResponse
// @Router /private/schedule-entries/{id}/skip [patch]
func (c *ScheduleController) SkipOccurrence(ctx echo.Context) error {
	claims, err := c.claims(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, httpErr := c.pathID(ctx)
	if httpErr != nil {
		return httpErr
	}

	result, appErr := c.ScheduleService.SkipOccurrence(ctx.Request().Context(), claims.OrganizationID, id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Occurrence skipped")
}

// RestoreException handles PATCH /schedule-entries/:id/restore-exception
// @Summary Restore an occurrence to its series template
// @Tags Schedule
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Entry id"
// @Param scope query string false "this (default) or following"
// @Param request body dto.RestoreExceptionRequest false "Replacement fields"
// @Success 200 {object} dto.ScopedMutationResponse
// @Router /private/schedule-entries/{id}/restore-exception [patch]
func (c *ScheduleController) RestoreException(ctx echo.Context) error {
	claims, err := c.claims(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, httpErr := c.pathID(ctx)
	if httpErr != nil {
		return httpErr
	}
	scope, httpErr := c.scope(ctx)
	if httpErr != nil {
		return httpErr
	}

	var req dto.RestoreExceptionRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	result, appErr := c.ScheduleService.RestoreException(ctx.Request().Context(), claims.OrganizationID, id, &req, scope)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Occurrence restored")
}

// Archive handles PATCH /schedule-entries/:id/archive
// @Summary Archive an occurrence or its following occurrences
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Param id path string true "Entry id"
// @Param scope query string false "this (default) or following"
// @Success 200 {object} dto.ScopedMutationResponse
// @Router /private/schedule-entries/{id}/archive [patch]
func (c *ScheduleController) Archive(ctx echo.Context) error {
	claims, err := c.claims(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, httpErr := c.pathID(ctx)
	if httpErr != nil {
		return httpErr
	}
	scope, httpErr := c.scope(ctx)
	if httpErr != nil {
		return httpErr
	}

	result, appErr := c.ScheduleService.Archive(ctx.Request().Context(), claims.OrganizationID, id, scope)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Entries archived")
}

// Unarchive handles PATCH /schedule-entries/:id/unarchive
// @Summary Restore archived occurrences
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Param id path string true "Entry id"
// @Param scope query string false "this (default) or following"
// @Success 200 {object} dto.ScopedMutationResponse
// @Router /private/schedule-entries/{id}/unarchive [patch]
func (c *ScheduleController) Unarchive(ctx echo.Context) error {
	claims, err := c.claims(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, httpErr := c.pathID(ctx)
	if httpErr != nil {
		return httpErr
	}
	scope, httpErr := c.scope(ctx)
	if httpErr != nil {
		return httpErr
	}

	result, appErr := c.ScheduleService.Unarchive(ctx.Request().Context(), claims.OrganizationID, id, scope)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Entries restored")
}

// ListConflicts handles GET /schedule-conflicts
// @Summary List the organization's conflict log
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Param resolved query string false "false (default), true or all"
// @Success 200 {array} dto.ConflictResponse
// @Router /private/schedule-conflicts [get]
func (c *ScheduleController) ListConflicts(ctx echo.Context) error {
	claims, err := c.claims(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}

	resolved := repository.ResolvedFilter(ctx.QueryParam("resolved"))
	result, appErr := c.ConflictService.List(ctx.Request().Context(), claims.OrganizationID, resolved)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Success")
}

// ToggleConflictResolved handles PATCH /schedule-conflicts/:id
// @Summary Mark a conflict resolved, or reopen it
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Param id path string true "Conflict id"
// @Success 200 {object} dto.ConflictResponse
// @Router /private/schedule-conflicts/{id} [patch]
func (c *ScheduleController) ToggleConflictResolved(ctx echo.Context) error {
	claims, err := c.claims(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, httpErr := c.pathID(ctx)
	if httpErr != nil {
		return httpErr
	}

	result, appErr := c.ConflictService.ToggleResolved(ctx.Request().Context(), claims.OrganizationID, id, claims.UserID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Success")
}
