package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jsensharma/carhub/internal/config"
	"github.com/jsensharma/carhub/internal/domain/review"
	"github.com/jsensharma/carhub/internal/http/middlewares"
)

type ReviewsStore interface {
	Create(ctx context.Context, userID, authorName string, req review.CreateReviewRequest) (review.Review, error)
	List(ctx context.Context, limit, offset int) ([]review.Review, int, error)
}

type ReviewsHandler struct {
	repo ReviewsStore
}

func NewReviewsHandler(repo ReviewsStore) *ReviewsHandler {
	return &ReviewsHandler{repo: repo}
}

func (h *ReviewsHandler) ListReviews(ctx *gin.Context) {
	limit, offset := listParams(ctx)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	reviews, total, err := h.repo.List(cctx, limit, offset)

	if err != nil {
		RespondInternal(ctx, "Could not list reviews")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": reviews,
		"count": total,
	})
}

// CreateReview requires a verified identity; the author name comes from
// the account, not the request body.
func (h *ReviewsHandler) CreateReview(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	name, _ := middlewares.NameFromContext(ctx)

	var req review.CreateReviewRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	rv, err := h.repo.Create(cctx, userID, name, req)

	if err != nil {
		RespondInternal(ctx, "Could not create review")
		return
	}

	ctx.JSON(http.StatusCreated, rv)
}
