package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

const (
	maxLimit    = 100
	stageHeader = "X-News-Stage"
)

type handler struct {
	svc    Service
	logger *slog.Logger
}

type newsResponse struct {
	Category string          `json:"category"`
	Stage    string          `json:"stage,omitempty"`
	Articles []model.Article `json:"articles"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// news serves GET /v1/news/:category?limit=n. Unknown categories are served as general.
func (h *handler) news(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be an integer between 1 and " + strconv.Itoa(maxLimit)})
		}
		limit = n
	}

	category := model.NormalizeCategory(c.Param("category"))
	res := h.svc.Retrieve(c.Request().Context(), category, limit)

	c.Response().Header().Set(stageHeader, string(res.Stage))
	return c.JSON(http.StatusOK, newsResponse{
		Category: category,
		Stage:    string(res.Stage),
		Articles: res.Articles,
	})
}

func (h *handler) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Stats(c.Request().Context()))
}

func (h *handler) clearCache(c echo.Context) error {
	if err := h.svc.ClearCache(c.Request().Context()); err != nil {
		h.logger.ErrorContext(c.Request().Context(), "clear cache", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to clear cache"})
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) refresh(c echo.Context) error {
	raw := c.Param("category")
	if !model.IsCategory(raw) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "unknown category " + strconv.Quote(raw)})
	}

	articles := h.svc.RefreshCategory(c.Request().Context(), raw)
	return c.JSON(http.StatusOK, newsResponse{Category: raw, Articles: articles})
}
