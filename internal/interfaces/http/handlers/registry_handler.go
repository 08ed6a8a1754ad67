// Package handlers implements the gin handlers of the query API.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkrx/formident/internal/application/resolution"
	"github.com/linkrx/formident/internal/domain/equivalence"
	"github.com/linkrx/formident/internal/domain/formulation"
	"github.com/linkrx/formident/internal/domain/matching"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	"github.com/linkrx/formident/pkg/errors"
	"github.com/linkrx/formident/pkg/types/common"
)

// RegistryHandler serves read-only queries over a frozen registry.
type RegistryHandler struct {
	svc *resolution.Service
	log logging.Logger
}

// NewRegistryHandler returns a handler backed by svc.
func NewRegistryHandler(svc *resolution.Service, log logging.Logger) *RegistryHandler {
	return &RegistryHandler{svc: svc, log: log.Named("http")}
}

// ClassView is the wire form of one equivalence class.
type ClassView struct {
	ID              equivalence.ClassID `json:"id"`
	FormulationKeys [][]string          `json:"formulation_keys"`
	ApplicationKeys [][]string          `json:"application_keys"`
}

func classView(c *equivalence.Class) ClassView {
	view := ClassView{ID: c.ID()}
	for _, k := range c.FormulationKeys() {
		view.FormulationKeys = append(view.FormulationKeys,
			[]string{k.Ingredient, k.FormRoute, k.Strength})
	}
	for _, a := range c.ApplicationKeys() {
		view.ApplicationKeys = append(view.ApplicationKeys,
			[]string{a.ApplNo, a.ProductNo})
	}
	return view
}

func respond[T any](c *gin.Context, status int, data T) {
	c.JSON(status, common.APIResponse[T]{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func respondPage[T any](c *gin.Context, data T, page common.Pagination) {
	c.JSON(http.StatusOK, common.APIResponse[T]{
		Success:    true,
		Data:       data,
		Pagination: &page,
		Timestamp:  time.Now().UTC(),
	})
}

func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	c.JSON(errors.HTTPStatus(code), common.APIResponse[struct{}]{
		Success: false,
		Error: &common.ErrorDetail{
			Code:    code.String(),
			Message: err.Error(),
		},
		Timestamp: time.Now().UTC(),
	})
}

// ListClasses returns a page of class ids with their member counts.
//
//	GET /api/v1/classes?page=1&page_size=50
func (h *RegistryHandler) ListClasses(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 500 {
		size = 50
	}

	ids := h.svc.AllClasses()
	start := (page - 1) * size
	if start > len(ids) {
		start = len(ids)
	}
	end := start + size
	if end > len(ids) {
		end = len(ids)
	}

	views := make([]ClassView, 0, end-start)
	for _, id := range ids[start:end] {
		cls, err := h.svc.MembersOf(id)
		if err != nil {
			respondError(c, err)
			return
		}
		views = append(views, classView(cls))
	}
	respondPage(c, views, common.Pagination{
		Page:     page,
		PageSize: size,
		Total:    int64(len(ids)),
	})
}

// GetClass returns one class with its full membership.
//
//	GET /api/v1/classes/:id
func (h *RegistryHandler) GetClass(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, errors.InvalidParam("class id must be an integer"))
		return
	}
	cls, err := h.svc.MembersOf(equivalence.ClassID(id))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, classView(cls))
}

// Resolve looks up the class owning an application key.
//
//	GET /api/v1/resolve?appl_no=004636&product_no=001
func (h *RegistryHandler) Resolve(c *gin.Context) {
	applNo, productNo := c.Query("appl_no"), c.Query("product_no")
	if applNo == "" || productNo == "" {
		respondError(c, errors.InvalidParam("appl_no and product_no are required"))
		return
	}
	id, ok := h.svc.ClassOfApplication(formulation.ApplicationKey{ApplNo: applNo, ProductNo: productNo})
	if !ok {
		respondError(c, errors.NotFound("no class owns the given application key"))
		return
	}
	cls, err := h.svc.MembersOf(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, classView(cls))
}

// MatchRequest is the body of a match query: a product-code shaped record
// plus either a class id or an explicit formulation key to test against.
type MatchRequest struct {
	ClassID *int `json:"class_id,omitempty"`

	Ingredient string `json:"ingredient,omitempty"`
	FormRoute  string `json:"form_route,omitempty"`
	Strength   string `json:"strength,omitempty"`

	Record matching.Record `json:"record"`
}

// MatchResponse reports the equivalence decision.
type MatchResponse struct {
	Equivalent bool                 `json:"equivalent"`
	ClassID    *equivalence.ClassID `json:"class_id,omitempty"`
}

// Match evaluates the equivalence predicate.
//
//	POST /api/v1/match
func (h *RegistryHandler) Match(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeMatchInvalidRecord, "invalid match request"))
		return
	}
	if req.Record.Ingredient == "" || req.Record.FormRoute == "" {
		respondError(c, errors.New(errors.ErrCodeMatchInvalidRecord,
			"record.ingredient and record.form_route are required"))
		return
	}

	switch {
	case req.ClassID != nil:
		id := equivalence.ClassID(*req.ClassID)
		ok, err := h.svc.Equivalent(c.Request.Context(), id, req.Record)
		if err != nil {
			respondError(c, err)
			return
		}
		resp := MatchResponse{Equivalent: ok}
		if ok {
			resp.ClassID = &id
		}
		respond(c, http.StatusOK, resp)

	case req.Ingredient != "":
		key, err := formulation.NewKey(req.Ingredient, req.FormRoute, req.Strength)
		if err != nil {
			respondError(c, err)
			return
		}
		ok := h.svc.EquivalentKey(key, req.Record)
		resp := MatchResponse{Equivalent: ok}
		if ok {
			if id, found := h.svc.ClassOf(key); found {
				resp.ClassID = &id
			}
		}
		respond(c, http.StatusOK, resp)

	default:
		respondError(c, errors.New(errors.ErrCodeMatchInvalidRecord,
			"either class_id or a formulation key is required"))
	}
}

// Health reports liveness.
//
//	GET /healthz
func (h *RegistryHandler) Health(c *gin.Context) {
	respond(c, http.StatusOK, map[string]any{
		"status":  common.HealthOK,
		"classes": len(h.svc.AllClasses()),
	})
}
