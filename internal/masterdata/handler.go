package masterdata

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/siteproc/siteproc/internal/auth"
	"github.com/siteproc/siteproc/internal/platform/cache"
	"github.com/siteproc/siteproc/internal/platform/httpx"
)

// Cache keys for the active vendor/site read models. Lists with disabled
// rows included bypass the cache.
const (
	cacheKeyVendors = "siteproc:md:vendors"
	cacheKeySites   = "siteproc:md:sites"
)

// Handler exposes master data endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	cache    *cache.JSONCache
	validate *validator.Validate
}

// NewHandler builds Handler instance. The cache may be nil.
func NewHandler(logger *slog.Logger, service *Service, jsonCache *cache.JSONCache) *Handler {
	return &Handler{logger: logger, service: service, cache: jsonCache, validate: validator.New()}
}

// MountRoutes registers master data routes. Reads are open to all roles;
// mutations are manager-only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleSiteEngineer, auth.RoleManager, auth.RolePurchaseOfficer))
		r.Get("/vendors", h.handleListVendors)
		r.Get("/vendors/{id}", h.handleGetVendor)
		r.Get("/sites", h.handleListSites)
		r.Get("/sites/{id}", h.handleGetSite)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleManager))
		r.Post("/vendors", h.handleCreateVendor)
		r.Put("/vendors/{id}", h.handleUpdateVendor)
		r.Post("/vendors/{id}/disable", h.handleDisableVendor)
		r.Post("/vendors/{id}/enable", h.handleEnableVendor)
		r.Post("/sites", h.handleCreateSite)
		r.Put("/sites/{id}", h.handleUpdateSite)
		r.Post("/sites/{id}/disable", h.handleDisableSite)
		r.Post("/sites/{id}/enable", h.handleEnableSite)
	})
}

type vendorDTO struct {
	Name         string `json:"name" validate:"required"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	GSTIN        string `json:"gstin"`
	Address      string `json:"address"`
}

type siteDTO struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		h.logger.Error("masterdata request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func (h *Handler) decodeValid(r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		return errors.Join(ErrValidation, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return errors.Join(ErrValidation, err)
	}
	return nil
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func (h *Handler) dropCached(r *http.Request, key string) {
	if err := h.cache.Invalidate(r.Context(), key); err != nil {
		h.logger.Warn("cache invalidate", slog.String("key", key), slog.Any("error", err))
	}
}

func (h *Handler) handleListVendors(w http.ResponseWriter, r *http.Request) {
	includeDisabled := r.URL.Query().Get("include_disabled") == "true"
	if !includeDisabled {
		var cached []Vendor
		if hit, err := h.cache.Get(r.Context(), cacheKeyVendors, &cached); err != nil {
			h.logger.Warn("vendor cache read", slog.Any("error", err))
		} else if hit {
			httpx.JSON(w, http.StatusOK, map[string]any{"vendors": cached})
			return
		}
	}
	vendors, err := h.service.ListVendors(r.Context(), includeDisabled)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !includeDisabled {
		if err := h.cache.Set(r.Context(), cacheKeyVendors, vendors); err != nil {
			h.logger.Warn("vendor cache write", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vendors": vendors})
}

func (h *Handler) handleGetVendor(w http.ResponseWriter, r *http.Request) {
	vendor, err := h.service.GetVendor(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vendor)
}

func (h *Handler) handleCreateVendor(w http.ResponseWriter, r *http.Request) {
	var dto vendorDTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	vendor, err := h.service.CreateVendor(r.Context(), Vendor{
		Name:         dto.Name,
		ContactName:  dto.ContactName,
		ContactPhone: dto.ContactPhone,
		GSTIN:        dto.GSTIN,
		Address:      dto.Address,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.dropCached(r, cacheKeyVendors)
	httpx.JSON(w, http.StatusCreated, vendor)
}

func (h *Handler) handleUpdateVendor(w http.ResponseWriter, r *http.Request) {
	var dto vendorDTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	err := h.service.UpdateVendor(r.Context(), pathID(r), Vendor{
		Name:         dto.Name,
		ContactName:  dto.ContactName,
		ContactPhone: dto.ContactPhone,
		GSTIN:        dto.GSTIN,
		Address:      dto.Address,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.dropCached(r, cacheKeyVendors)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDisableVendor(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DisableVendor(r.Context(), pathID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.dropCached(r, cacheKeyVendors)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEnableVendor(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EnableVendor(r.Context(), pathID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.dropCached(r, cacheKeyVendors)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListSites(w http.ResponseWriter, r *http.Request) {
	includeDisabled := r.URL.Query().Get("include_disabled") == "true"
	if !includeDisabled {
		var cached []Site
		if hit, err := h.cache.Get(r.Context(), cacheKeySites, &cached); err != nil {
			h.logger.Warn("site cache read", slog.Any("error", err))
		} else if hit {
			httpx.JSON(w, http.StatusOK, map[string]any{"sites": cached})
			return
		}
	}
	sites, err := h.service.ListSites(r.Context(), includeDisabled)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !includeDisabled {
		if err := h.cache.Set(r.Context(), cacheKeySites, sites); err != nil {
			h.logger.Warn("site cache write", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sites": sites})
}

func (h *Handler) handleGetSite(w http.ResponseWriter, r *http.Request) {
	site, err := h.service.GetSite(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, site)
}

func (h *Handler) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	var dto siteDTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	site, err := h.service.CreateSite(r.Context(), Site{Name: dto.Name, Address: dto.Address})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.dropCached(r, cacheKeySites)
	httpx.JSON(w, http.StatusCreated, site)
}

func (h *Handler) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	var dto siteDTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.service.UpdateSite(r.Context(), pathID(r), Site{Name: dto.Name, Address: dto.Address}); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.dropCached(r, cacheKeySites)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDisableSite(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DisableSite(r.Context(), pathID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.dropCached(r, cacheKeySites)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEnableSite(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EnableSite(r.Context(), pathID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.dropCached(r, cacheKeySites)
	w.WriteHeader(http.StatusNoContent)
}
