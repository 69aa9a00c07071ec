package httpapi

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/city-forecast/internal/directory"
	"github.com/i474232898/city-forecast/internal/forecast"
	"github.com/i474232898/city-forecast/internal/store"
)

var validate = validator.New()

// Forecaster produces the forecast view for a selected city.
type Forecaster interface {
	Forecast(ctx context.Context, sel forecast.Selection) (forecast.CityForecast, error)
}

// Deps are the collaborators the routes need.
type Deps struct {
	Sessions      *store.MemoryStore
	NewController func() *directory.Controller
	Forecasts     Forecaster
	Logger        *zap.Logger
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	h := &handlers{deps: deps}

	v1 := app.Group("/api/v1")

	dirs := v1.Group("/directories")
	dirs.Post("/", h.createDirectory)
	dirs.Get("/:id", h.getDirectory)
	dirs.Post("/:id/more", h.loadMore)
	dirs.Put("/:id/search", h.search)
	dirs.Delete("/:id", h.deleteDirectory)

	v1.Get("/forecast", h.getForecast)
}

type handlers struct {
	deps Deps
}

func (h *handlers) createDirectory(c *fiber.Ctx) error {
	ctrl := h.deps.NewController()
	id, err := h.deps.Sessions.Create(ctrl)
	if err != nil {
		if errors.Is(err, store.ErrCapacity) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "too many open directory sessions")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create directory session")
	}

	// A failed initial load is reported through the snapshot, not as a request failure.
	if err := ctrl.Init(c.UserContext()); err != nil {
		h.deps.Logger.Warn("initial directory load failed", zap.Stringer("session", id), zap.Error(err))
	}

	return c.Status(fiber.StatusCreated).JSON(newSnapshotResponse(id, ctrl.Snapshot()))
}

func (h *handlers) getDirectory(c *fiber.Ctx) error {
	id, ctrl, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(newSnapshotResponse(id, ctrl.Snapshot()))
}

func (h *handlers) loadMore(c *fiber.Ctx) error {
	id, ctrl, err := h.session(c)
	if err != nil {
		return err
	}
	if err := ctrl.LoadMore(c.UserContext()); err != nil {
		h.deps.Logger.Warn("load more failed", zap.Stringer("session", id), zap.Error(err))
	}
	return c.JSON(newSnapshotResponse(id, ctrl.Snapshot()))
}

// searchRequest is the body of the search endpoint. An empty term clears the search.
type searchRequest struct {
	Term string `json:"term" validate:"max=200"`
}

func (h *handlers) search(c *fiber.Ctx) error {
	id, ctrl, err := h.session(c)
	if err != nil {
		return err
	}

	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid search body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := ctrl.Search(c.UserContext(), req.Term); err != nil {
		h.deps.Logger.Warn("search failed", zap.Stringer("session", id), zap.String("term", req.Term), zap.Error(err))
	}
	return c.JSON(newSnapshotResponse(id, ctrl.Snapshot()))
}

func (h *handlers) deleteDirectory(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	if err := h.deps.Sessions.Delete(id); err != nil {
		return fiber.NewError(fiber.StatusNotFound, "directory session not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) getForecast(c *fiber.Ctx) error {
	sel, err := parseSelection(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	fc, err := h.deps.Forecasts.Forecast(c.UserContext(), sel)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "failed to fetch forecast")
	}
	return c.JSON(fc)
}

func (h *handlers) session(c *fiber.Ctx) (uuid.UUID, *directory.Controller, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, nil, fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	ctrl, err := h.deps.Sessions.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, nil, fiber.NewError(fiber.StatusNotFound, "directory session not found")
		}
		return uuid.Nil, nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load directory session")
	}
	return id, ctrl, nil
}

func parseSelection(c *fiber.Ctx) (forecast.Selection, error) {
	var sel forecast.Selection

	sel.City = c.Query("city")
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		return sel, errors.New("lat and lon query parameters are required")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return sel, errors.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return sel, errors.New("lon must be a number")
	}
	sel.Lat, sel.Lon = lat, lon

	if err := validate.Struct(sel); err != nil {
		return sel, err
	}
	return sel, nil
}

// cityView is a directory record plus the links a presentation layer follows.
type cityView struct {
	directory.City
	Route       string `json:"route"`
	ForecastURL string `json:"forecastUrl"`
}

type snapshotResponse struct {
	ID          uuid.UUID      `json:"id"`
	Mode        directory.Mode `json:"mode"`
	Term        string         `json:"term"`
	PageSize    int            `json:"pageSize"`
	Loading     bool           `json:"loading"`
	Exhausted   bool           `json:"exhausted"`
	Accumulated int            `json:"accumulated"`
	Count       int            `json:"count"`
	LastError   string         `json:"lastError,omitempty"`
	Cities      []cityView     `json:"cities"`
}

func newSnapshotResponse(id uuid.UUID, snap directory.Snapshot) snapshotResponse {
	resp := snapshotResponse{
		ID:          id,
		Mode:        snap.Mode,
		Term:        snap.Term,
		PageSize:    snap.PageSize,
		Loading:     snap.Loading,
		Exhausted:   snap.Exhausted,
		Accumulated: snap.Accumulated,
		Count:       len(snap.Cities),
		Cities:      make([]cityView, 0, len(snap.Cities)),
	}
	if snap.Err != nil {
		resp.LastError = snap.Err.Error()
	}

	for _, city := range snap.Cities {
		q := url.Values{}
		q.Set("city", city.Name)
		q.Set("lat", strconv.FormatFloat(city.Coordinates.Lat, 'f', -1, 64))
		q.Set("lon", strconv.FormatFloat(city.Coordinates.Lon, 'f', -1, 64))

		resp.Cities = append(resp.Cities, cityView{
			City:        city,
			Route:       city.ForecastPath(),
			ForecastURL: "/api/v1/forecast?" + q.Encode(),
		})
	}
	return resp
}
