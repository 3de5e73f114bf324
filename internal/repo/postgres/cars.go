package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jsensharma/carhub/internal/domain/car"
)

type CarsRepo struct {
	pool *pgxpool.Pool
}

// constructor function

func NewCarsRepo(pool *pgxpool.Pool) *CarsRepo {
	return &CarsRepo{
		pool: pool,
	}
}

type ListCarsFilter struct {
	Make         *string
	FeaturedOnly bool
	Limit        int
	Offset       int
}

func (r *CarsRepo) Create(ctx context.Context, req car.CreateCarRequest) (car.Car, error) {
	now := time.Now().UTC()

	c := car.Car{
		ID:           uuid.NewString(),
		Make:         req.Make,
		Model:        req.Model,
		Year:         req.Year,
		Price:        req.Price,
		Mileage:      req.Mileage,
		FuelType:     req.FuelType,
		Transmission: req.Transmission,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		Featured:     req.Featured,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO cars(id, make, model, year, price, mileage, fuel_type, transmission, description, image_url, featured, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ID, c.Make, c.Model, c.Year, c.Price, c.Mileage, c.FuelType, c.Transmission, c.Description, c.ImageURL, c.Featured, c.CreatedAt, c.UpdatedAt)

	if err != nil {
		return car.Car{}, err
	}

	return c, nil
}

func (r *CarsRepo) List(ctx context.Context, filter ListCarsFilter) ([]car.Car, int, error) {
	baseQuery := `SELECT id,
		make,
		model,
		year,
		price,
		mileage,
		fuel_type,
		transmission,
		description,
		image_url,
		featured,
		created_at,
		updated_at,
		COUNT(*) OVER() AS total
	FROM cars
	`

	var conds []string
	var args []interface{}

	argsPosition := 1

	if filter.Make != nil {
		conds = append(conds, fmt.Sprintf("make = $%d", argsPosition))
		args = append(args, *filter.Make)
		argsPosition++
	}

	if filter.FeaturedOnly {
		conds = append(conds, "featured = TRUE")
	}

	query := baseQuery

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// stable ordering for pagination
	query += fmt.Sprintf(" ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)

	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	output := make([]car.Car, 0, filter.Limit)
	total := 0

	for rows.Next() {
		var c car.Car
		var t int

		err = rows.Scan(&c.ID, &c.Make, &c.Model, &c.Year, &c.Price, &c.Mileage, &c.FuelType, &c.Transmission, &c.Description, &c.ImageURL, &c.Featured, &c.CreatedAt, &c.UpdatedAt, &t)

		if err != nil {
			return nil, 0, err
		}

		total = t
		output = append(output, c)
	}

	err = rows.Err()

	if err != nil {
		return nil, 0, err
	}

	return output, total, nil
}

func (r *CarsRepo) GetByID(ctx context.Context, id string) (car.Car, error) {
	var c car.Car

	err := r.pool.QueryRow(ctx,
		`SELECT id, make, model, year, price, mileage, fuel_type, transmission, description, image_url, featured, created_at, updated_at
		 FROM cars WHERE id = $1`, id,
	).Scan(&c.ID, &c.Make, &c.Model, &c.Year, &c.Price, &c.Mileage, &c.FuelType, &c.Transmission, &c.Description, &c.ImageURL, &c.Featured, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return car.Car{}, car.ErrNotFound
		}
		return car.Car{}, err
	}

	return c, nil
}

func (r *CarsRepo) Update(ctx context.Context, id string, req car.UpdateCarRequest) (car.Car, error) {
	var c car.Car

	err := r.pool.QueryRow(
		ctx,
		`UPDATE cars
			SET make = $2,
					model = $3,
					year = $4,
					price = $5,
					mileage = $6,
					fuel_type = $7,
					transmission = $8,
					description = $9,
					image_url = $10,
					featured = $11,
					updated_at = NOW()
		WHERE id = $1
		RETURNING id, make, model, year, price, mileage, fuel_type, transmission, description, image_url, featured, created_at, updated_at`,
		id,
		req.Make,
		req.Model,
		req.Year,
		req.Price,
		req.Mileage,
		req.FuelType,
		req.Transmission,
		req.Description,
		req.ImageURL,
		req.Featured,
	).Scan(
		&c.ID,
		&c.Make,
		&c.Model,
		&c.Year,
		&c.Price,
		&c.Mileage,
		&c.FuelType,
		&c.Transmission,
		&c.Description,
		&c.ImageURL,
		&c.Featured,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if err != nil {
		// if there are no rows matching the id
		if errors.Is(err, pgx.ErrNoRows) {
			return car.Car{}, car.ErrNotFound
		}
		// if it is any other type of error
		return car.Car{}, err
	}

	return c, nil
}

func (r *CarsRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cars WHERE id = $1`, id)

	if err != nil {
		return err
	}

	// if no rows were deleted as a result return a not found error
	if tag.RowsAffected() == 0 {
		return car.ErrNotFound
	}

	return nil
}
