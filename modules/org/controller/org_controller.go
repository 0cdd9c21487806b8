package controller

import (
	"github.com/labstack/echo/v4"

	"tutorbase/core/constants"
	"tutorbase/core/controller"
	"tutorbase/core/errors"
	"tutorbase/core/utils"
	"tutorbase/modules/org/dto"
	"tutorbase/modules/org/service"
)

type OrgController struct {
	controller.BaseController
	OrgService service.OrgServiceInterface
}

func NewOrgController(svc service.OrgServiceInterface) *OrgController {
	return &OrgController{
		BaseController: controller.NewBaseController(),
		OrgService:     svc,
	}
}

func (c *OrgController) claims(ctx echo.Context) (*utils.TokenClaims, error) {
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

// CreateLocation handles POST /locations
// @Summary Create location
// @Tags Org
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CreateLocationRequest true "Location"
// @Success 200 {object} dto.LocationResponse
// @Router /private/locations [post]
func (c *OrgController) CreateLocation(ctx echo.Context) error {
	claims, err := c.claims(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}

	var req dto.CreateLocationRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	result, appErr := c.OrgService.CreateLocation(ctx.Request().Context(), claims.OrganizationID, &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Location created successfully")
}

// ListLocations handles GET /locations
// @Summary List the organization's locations
// @Tags Org
// @Security BearerAuth
// @Produce json
// @Success 200 {array} dto.LocationResponse
// @Router /private/locations [get]
func (c *OrgController) ListLocations(ctx echo.Context) error {
	claims, err := c.claims(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}

	result, appErr := c.OrgService.ListLocations(ctx.Request().Context(), claims.OrganizationID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Success")
}
