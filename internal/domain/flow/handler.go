package flow

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edflow/edflow/internal/burden"
	"github.com/edflow/edflow/pkg/pagination"
)

type Handler struct {
	svc     *Service
	monitor *Monitor
}

func NewHandler(svc *Service, monitor *Monitor) *Handler {
	return &Handler{svc: svc, monitor: monitor}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/burden", h.ComputeBurden)
	api.POST("/wait-estimate", h.EstimateWait)
	api.POST("/vulnerability", h.ResolveVulnerability)

	api.POST("/watches", h.CreateWatch)
	api.GET("/watches", h.ListWatches)
	api.GET("/watches/:id", h.GetWatch)
	api.DELETE("/watches/:id", h.DeleteWatch)
	api.POST("/watches/:id/check-ins", h.AddCheckIn)
}

func (h *Handler) ComputeBurden(c echo.Context) error {
	var req ComputeBurdenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.ComputeBurden(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) EstimateWait(c echo.Context) error {
	var req EstimateWaitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.EstimateWait(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ResolveVulnerability(c echo.Context) error {
	var req VulnerabilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.ResolveVulnerability(req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateWatch(c echo.Context) error {
	var req CreateWatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w, err := h.monitor.Add(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) ListWatches(c echo.Context) error {
	pg := pagination.FromContext(c)
	all := h.monitor.List()
	start, end := pg.Window(len(all))
	return c.JSON(http.StatusOK, pagination.NewResponse(all[start:end], len(all), pg.Limit, pg.Offset))
}

func (h *Handler) GetWatch(c echo.Context) error {
	w, err := h.monitor.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) DeleteWatch(c echo.Context) error {
	if err := h.monitor.Remove(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddCheckIn(c echo.Context) error {
	var r burden.CheckInResponse
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w, err := h.monitor.AddCheckIn(c.Request().Context(), c.Param("id"), r)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, w)
}

func httpError(err error) error {
	var verr *burden.ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	case errors.Is(err, ErrWatchNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "watch not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
