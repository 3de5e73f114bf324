package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jsensharma/carhub/internal/cache"
	"github.com/jsensharma/carhub/internal/config"
	"github.com/jsensharma/carhub/internal/domain/car"
	"github.com/jsensharma/carhub/internal/repo/postgres"
)

type CarsStore interface {
	Create(ctx context.Context, req car.CreateCarRequest) (car.Car, error)
	GetByID(ctx context.Context, id string) (car.Car, error)
	List(ctx context.Context, filter postgres.ListCarsFilter) ([]car.Car, int, error)
	Update(ctx context.Context, id string, req car.UpdateCarRequest) (car.Car, error)
	Delete(ctx context.Context, id string) error
}

type CarsHandler struct {
	repo  CarsStore
	cache *cache.Client // nil disables caching
	log   *slog.Logger
}

func NewCarsHandler(repo CarsStore, cacheClient *cache.Client, log *slog.Logger) *CarsHandler {
	return &CarsHandler{repo: repo, cache: cacheClient, log: log}
}

const (
	carsCacheKey         = "catalog:cars"
	featuredCarsCacheKey = "catalog:featured"

	defaultListLimit = 50
	maxListLimit     = 200
)

type carListResponse struct {
	Items []car.Car `json:"items"`
	Count int       `json:"count"`
}

func listParams(ctx *gin.Context) (limit, offset int) {
	limit = defaultListLimit

	if raw := ctx.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxListLimit)
		}
	}

	if raw := ctx.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

// ListCars serves the public catalog. The unfiltered first page is the
// hot path, so only that shape is cached.
func (h *CarsHandler) ListCars(ctx *gin.Context) {
	h.list(ctx, false, carsCacheKey)
}

func (h *CarsHandler) ListFeaturedCars(ctx *gin.Context) {
	h.list(ctx, true, featuredCarsCacheKey)
}

func (h *CarsHandler) list(ctx *gin.Context, featuredOnly bool, cacheKey string) {
	limit, offset := listParams(ctx)

	filter := postgres.ListCarsFilter{
		FeaturedOnly: featuredOnly,
		Limit:        limit,
		Offset:       offset,
	}

	if mk := ctx.Query("make"); mk != "" {
		filter.Make = &mk
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	cacheable := h.cache != nil && filter.Make == nil && offset == 0 && limit == defaultListLimit

	if cacheable {
		var cached carListResponse

		if err := h.cache.GetJSON(cctx, cacheKey, &cached); err == nil {
			ctx.JSON(http.StatusOK, cached)
			return
		}
	}

	cars, total, err := h.repo.List(cctx, filter)

	if err != nil {
		RespondInternal(ctx, "Could not list cars")
		return
	}

	resp := carListResponse{Items: cars, Count: total}

	if cacheable {
		if err := h.cache.SetJSON(cctx, cacheKey, resp); err != nil {
			h.log.Debug("catalog cache store failed", "err", err)
		}
	}

	ctx.JSON(http.StatusOK, resp)
}

func (h *CarsHandler) GetCarByID(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	c, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, car.ErrNotFound) {
			RespondNotFound(ctx, "Car not found")
			return
		}
		RespondInternal(ctx, "Could not fetch car")
		return
	}

	ctx.JSON(http.StatusOK, c)
}

func (h *CarsHandler) CreateCar(ctx *gin.Context) {
	var req car.CreateCarRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	c, err := h.repo.Create(cctx, req)

	if err != nil {
		RespondInternal(ctx, "Could not create car")
		return
	}

	h.invalidateCatalog(cctx)

	ctx.JSON(http.StatusCreated, c)
}

func (h *CarsHandler) UpdateCar(ctx *gin.Context) {
	id := ctx.Param("id")

	var req car.UpdateCarRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	c, err := h.repo.Update(cctx, id, req)

	if err != nil {
		if errors.Is(err, car.ErrNotFound) {
			RespondNotFound(ctx, "Car not found")
			return
		}
		RespondInternal(ctx, "Could not update car")
		return
	}

	h.invalidateCatalog(cctx)

	ctx.JSON(http.StatusOK, c)
}

func (h *CarsHandler) DeleteCar(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.repo.Delete(cctx, id)

	if err != nil {
		if errors.Is(err, car.ErrNotFound) {
			RespondNotFound(ctx, "Car not found")
			return
		}
		RespondInternal(ctx, "Could not delete car")
		return
	}

	h.invalidateCatalog(cctx)

	ctx.JSON(http.StatusOK, gin.H{"message": "Car deleted successfully"})
}

func (h *CarsHandler) invalidateCatalog(ctx context.Context) {
	if h.cache == nil {
		return
	}

	if err := h.cache.Invalidate(ctx, carsCacheKey, featuredCarsCacheKey); err != nil {
		h.log.Debug("catalog cache invalidation failed", "err", err)
	}
}
