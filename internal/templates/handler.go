package templates

import (
	"net/http"

	"leadfunnel_backend/platform/httpkit"
	"leadfunnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes template management over HTTP.
type Handler struct {
	store Store
	val   *validator.Validator
}

func NewHandler(store Store, val *validator.Validator) *Handler {
	return &Handler{store: store, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

type templateRequest struct {
	Context string `json:"context" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Body    string `json:"body" validate:"required"`
	Subject string `json:"subject"`
	Weight  int    `json:"weight" validate:"min=0"`
	Active  bool   `json:"active"`
}

func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, list)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	tpl, err := h.store.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, tpl)
}

func (h *Handler) Create(c *gin.Context) {
	var req templateRequest
	if !h.bind(c, &req) {
		return
	}

	tpl := &Template{
		ID:      uuid.New(),
		Context: req.Context,
		Name:    req.Name,
		Body:    req.Body,
		Subject: req.Subject,
		Weight:  req.Weight,
		Active:  req.Active,
	}
	if err := h.store.Create(c.Request.Context(), tpl); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, tpl)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	var req templateRequest
	if !h.bind(c, &req) {
		return
	}

	tpl := &Template{
		ID:      id,
		Context: req.Context,
		Name:    req.Name,
		Body:    req.Body,
		Subject: req.Subject,
		Weight:  req.Weight,
		Active:  req.Active,
	}
	if err := h.store.Update(c.Request.Context(), tpl); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, tpl)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusNoContent, nil)
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return false
	}
	return true
}
