package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/enchanted/marketplace/internal/search"
	"github.com/enchanted/marketplace/internal/util"
)

type SearchHandler struct {
	Indexer *search.Indexer
}

func (h *SearchHandler) Search(c echo.Context) error {
	if h.Indexer == nil || h.Indexer.ES == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "search is not available"})
	}

	q := c.QueryParam("q")
	if q == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "query parameter q is required"})
	}

	from, _, size := util.Clamp(
		parseIntDefault(c.QueryParam("page"), 1),
		parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize),
	)

	total, products, err := h.Indexer.Search(c.Request().Context(), q, from, size)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "products": products})
}
