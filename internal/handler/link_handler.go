package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/minify-io/url-minifier/internal/middleware"
	"github.com/minify-io/url-minifier/internal/models"
	"github.com/minify-io/url-minifier/internal/repository"
	"github.com/minify-io/url-minifier/internal/service"
	"go.uber.org/zap"
)

type LinkHandler struct {
	links    service.LinkService
	clicks   service.ClickService
	resolver service.RedirectResolver
	baseURL  string
	logger   *zap.Logger
}

func NewLinkHandler(
	links service.LinkService,
	clicks service.ClickService,
	resolver service.RedirectResolver,
	baseURL string,
	logger *zap.Logger,
) *LinkHandler {
	return &LinkHandler{
		links:    links,
		clicks:   clicks,
		resolver: resolver,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

// LinkResponse представление ссылки в ответах API
type LinkResponse struct {
	*models.Link
	ShortURL string `json:"short_url,omitempty"`
}

// CreateLinkResultResponse результат одной записи batch-а
type CreateLinkResultResponse struct {
	*LinkResponse
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *LinkHandler) linkResponse(link *models.Link) *LinkResponse {
	return &LinkResponse{
		Link:     link,
		ShortURL: h.baseURL + "/" + link.ShortLink,
	}
}

// CreateLinks godoc
// @Summary Create short links
// @Description Creates minified links for each of the provided URLs (lenient batch)
// @Tags links
// @Accept json
// @Produce json
// @Param request body []models.CreateLinkInput true "Batch of links to minify"
// @Success 201 {array} CreateLinkResultResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/links [post]
func (h *LinkHandler) CreateLinks(c *gin.Context) {
	var inputs []models.CreateLinkInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		h.logger.Warn("Невалидное тело запроса", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	owner := middleware.APIKeyName(c)
	results := h.links.CreateLinks(c.Request.Context(), inputs, owner)

	response := make([]CreateLinkResultResponse, 0, len(results))
	for _, result := range results {
		item := CreateLinkResultResponse{
			Skipped: result.Skipped,
			Error:   result.Error,
		}
		if result.Link != nil {
			item.LinkResponse = h.linkResponse(result.Link)
		}
		response = append(response, item)
	}

	c.JSON(http.StatusCreated, response)
}

// GetLink godoc
// @Summary Get a link
// @Description Returns a link object given a store id or a short link
// @Tags links
// @Produce json
// @Param id path string true "Link id or short link"
// @Success 200 {object} LinkResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{id} [get]
func (h *LinkHandler) GetLink(c *gin.Context) {
	link, err := h.links.FindLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondNotFound(c, err)
		return
	}

	c.JSON(http.StatusOK, h.linkResponse(link))
}

// UpdateLink godoc
// @Summary Update a link
// @Description Applies a partial update restricted to redirect_url, expiration, web_hook and tags
// @Tags links
// @Accept json
// @Produce json
// @Param id path string true "Link id"
// @Param request body models.LinkPatch true "Fields to update"
// @Success 200 {object} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{id} [put]
func (h *LinkHandler) UpdateLink(c *gin.Context) {
	var patch models.LinkPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	link, err := h.links.UpdateLink(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		if errors.Is(err, service.ErrInvalidExpiration) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_expiration",
				Message: err.Error(),
			})
			return
		}
		h.respondNotFound(c, err)
		return
	}

	c.JSON(http.StatusOK, h.linkResponse(link))
}

// DeleteLink godoc
// @Summary Delete a link
// @Description Deletes a shortened link. Its click history stays queryable.
// @Tags links
// @Produce json
// @Param id path string true "Link id"
// @Success 204 {object} nil
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{id} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	if err := h.links.DeleteLink(c.Request.Context(), c.Param("id")); err != nil {
		h.respondNotFound(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SearchLinks godoc
// @Summary Search links
// @Description Returns a window of links matching the criteria. No total count.
// @Tags links
// @Produce json
// @Param url query string false "All or part of a URL"
// @Param tag query []string false "All or part of a tag"
// @Param page query int false "Zero based page index"
// @Param max query int false "Page size, defaults to 20"
// @Success 200 {array} LinkResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/links [get]
func (h *LinkHandler) SearchLinks(c *gin.Context) {
	criteria := models.SearchCriteria{
		URL:      c.Query("url"),
		Tags:     c.QueryArray("tag"),
		Page:     intQuery(c, "page", 0),
		PageSize: intQuery(c, "max", models.DefaultPageSize),
	}

	links, err := h.links.SearchLinks(c.Request.Context(), criteria)
	if err != nil {
		h.logger.Error("Поиск ссылок не удался", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to search links",
		})
		return
	}

	response := make([]*LinkResponse, 0, len(links))
	for i := range links {
		response = append(response, h.linkResponse(&links[i]))
	}

	c.JSON(http.StatusOK, response)
}

// ListClicks godoc
// @Summary List link clicks
// @Description Returns a link's clicks, newest first
// @Tags links
// @Produce json
// @Param id path string true "Link id or short link"
// @Param arg query []string false "All or part of a positional argument value"
// @Param page query int false "Zero based page index"
// @Param max query int false "Page size, defaults to 20"
// @Success 200 {array} models.Click
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{id}/clicks [get]
func (h *LinkHandler) ListClicks(c *gin.Context) {
	link, err := h.links.FindLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondNotFound(c, err)
		return
	}

	criteria := models.ClickCriteria{
		Args:     c.QueryArray("arg"),
		Page:     intQuery(c, "page", 0),
		PageSize: intQuery(c, "max", models.DefaultPageSize),
	}

	clicks, err := h.clicks.ListClicks(c.Request.Context(), link.ID, criteria)
	if err != nil {
		h.logger.Error("Выборка переходов не удалась", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list clicks",
		})
		return
	}

	if clicks == nil {
		clicks = []models.Click{}
	}
	c.JSON(http.StatusOK, clicks)
}

// Redirect godoc
// @Summary Redirect to the target URL
// @Description Resolves a short link, records the click and redirects
// @Tags redirect
// @Param code path string true "Short link"
// @Success 302 {object} nil
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /{code} [get]
func (h *LinkHandler) Redirect(c *gin.Context) {
	code := c.Param("code")
	suffix := c.Param("args")

	meta := models.ClickMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	}

	target, err := h.resolver.Resolve(c.Request.Context(), code, requestURL(c), suffix, meta)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLinkNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Invalid link",
			})
		case errors.Is(err, service.ErrLinkExpired):
			c.JSON(http.StatusGone, ErrorResponse{
				Error:   "link_expired",
				Message: "Link expired",
			})
		default:
			h.logger.Error("Резолв не удался",
				zap.String("short_link", code),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "resolve_error",
				Message: "Failed to resolve link",
			})
		}
		return
	}

	c.Redirect(http.StatusFound, target)
}

func (h *LinkHandler) respondNotFound(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrLinkNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
		return
	}

	h.logger.Error("Операция над ссылкой не удалась", zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Link operation failed",
	})
}

// requestURL восстанавливает полный URL запроса для записи перехода
func requestURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + c.Request.RequestURI
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
