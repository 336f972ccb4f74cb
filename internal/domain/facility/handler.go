package facility

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edflow/edflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/facilities", h.ListFacilities)
	api.GET("/facilities/:id", h.GetFacility)
	api.GET("/facilities/:id/context", h.GetContext)
	api.PUT("/facilities/:id", h.UpsertFacility)
	api.DELETE("/facilities/:id", h.DeleteFacility)
}

func (h *Handler) GetFacility(c echo.Context) error {
	f, err := h.svc.GetFacility(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "facility not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, f)
}

// GetContext shows what the burden model will see for a facility, defaults
// included.
func (h *Handler) GetContext(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Lookup(c.Request().Context(), c.Param("id")))
}

func (h *Handler) ListFacilities(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListFacilities(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpsertFacility(c echo.Context) error {
	var f Facility
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f.ID = c.Param("id")
	err := h.svc.UpsertFacility(c.Request().Context(), &f)
	var verr *ValidationError
	if errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) DeleteFacility(c echo.Context) error {
	err := h.svc.DeleteFacility(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "facility not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
