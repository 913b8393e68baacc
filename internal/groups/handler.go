package groups

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-mdm/meridian-mdm/internal/authz"
	"github.com/meridian-mdm/meridian-mdm/internal/observability"
	"github.com/meridian-mdm/meridian-mdm/internal/platform/httpx"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

// Handler manages permission group endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	authz    authz.Middleware
	metrics  *observability.Metrics
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authz authz.Middleware, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), authz: authz, metrics: metrics}
}

// MountRoutes registers permission group routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAction("permission_groups", authz.ActionRead))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAction("permission_groups", authz.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAction("permission_groups", authz.ActionUpdate))
		r.Put("/{id}", h.update)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req := ListGroupsRequest{
		Limit: queryInt(r, "limit", 20),
		Page:  queryInt(r, "page", 1),
	}
	resp, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list permission groups", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	group, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	group, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("create permission group", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

type updateResponse struct {
	PermissionGroup PermissionGroup `json:"permission_group"`
	Changes         []string        `json:"changes,omitempty"`
	Notice          string          `json:"notice,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	group, changes, err := h.service.Update(r.Context(), id, req)
	if errors.Is(err, shared.ErrNoChanges) {
		h.metrics.RecordNoopSave("permission_group")
		httpx.JSON(w, http.StatusOK, updateResponse{PermissionGroup: group, Notice: "no changes to save"})
		return
	}
	if err != nil {
		h.logger.Error("update permission group", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.metrics.RecordMutation("permission_group")
	lines := make([]string, len(changes))
	for i, change := range changes {
		lines[i] = change.Summary
	}
	httpx.JSON(w, http.StatusOK, updateResponse{PermissionGroup: group, Changes: lines})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, httpx.ErrNotFound
	}
	return id, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
