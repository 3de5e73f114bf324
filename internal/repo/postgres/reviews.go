package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jsensharma/carhub/internal/domain/review"
)

type ReviewsRepo struct {
	pool *pgxpool.Pool
}

func NewReviewsRepo(pool *pgxpool.Pool) *ReviewsRepo {
	return &ReviewsRepo{pool: pool}
}

func (r *ReviewsRepo) Create(ctx context.Context, userID, authorName string, req review.CreateReviewRequest) (review.Review, error) {
	rv := review.Review{
		ID:         uuid.NewString(),
		UserID:     userID,
		AuthorName: authorName,
		Rating:     req.Rating,
		Comment:    req.Comment,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO reviews(id, user_id, author_name, rating, comment, created_at)
		 VALUES($1,$2,$3,$4,$5,$6)`,
		rv.ID, rv.UserID, rv.AuthorName, rv.Rating, rv.Comment, rv.CreatedAt)

	if err != nil {
		return review.Review{}, err
	}

	return rv, nil
}

func (r *ReviewsRepo) List(ctx context.Context, limit, offset int) ([]review.Review, int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, author_name, rating, comment, created_at,
		        COUNT(*) OVER() AS total
		 FROM reviews
		 ORDER BY created_at DESC, id ASC
		 LIMIT $1 OFFSET $2`,
		limit, offset)

	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	output := make([]review.Review, 0, limit)
	total := 0

	for rows.Next() {
		var rv review.Review
		var t int

		err = rows.Scan(&rv.ID, &rv.UserID, &rv.AuthorName, &rv.Rating, &rv.Comment, &rv.CreatedAt, &t)

		if err != nil {
			return nil, 0, err
		}

		total = t
		output = append(output, rv)
	}

	err = rows.Err()

	if err != nil {
		return nil, 0, err
	}

	return output, total, nil
}
