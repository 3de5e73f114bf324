package car

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("car not found")

type Car struct {
	ID           string    `json:"id"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Year         int       `json:"year"`
	Price        int64     `json:"price"` // whole currency units
	Mileage      int       `json:"mileage"`
	FuelType     string    `json:"fuelType,omitempty"`
	Transmission string    `json:"transmission,omitempty"`
	Description  string    `json:"description,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	Featured     bool      `json:"featured"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateCarRequest struct {
	Make         string `json:"make" binding:"required,min=2,max=60"`
	Model        string `json:"model" binding:"required,min=1,max=80"`
	Year         int    `json:"year" binding:"required,min=1950,max=2100"`
	Price        int64  `json:"price" binding:"required,min=1"`
	Mileage      int    `json:"mileage" binding:"min=0"`
	FuelType     string `json:"fuelType" binding:"omitempty,oneof=petrol diesel hybrid electric"`
	Transmission string `json:"transmission" binding:"omitempty,oneof=manual automatic"`
	Description  string `json:"description" binding:"omitempty,max=2000"`
	ImageURL     string `json:"imageUrl" binding:"omitempty,url,max=500"`
	Featured     bool   `json:"featured"`
}

// Full replace on update, same shape as create.
type UpdateCarRequest struct {
	Make         string `json:"make" binding:"required,min=2,max=60"`
	Model        string `json:"model" binding:"required,min=1,max=80"`
	Year         int    `json:"year" binding:"required,min=1950,max=2100"`
	Price        int64  `json:"price" binding:"required,min=1"`
	Mileage      int    `json:"mileage" binding:"min=0"`
	FuelType     string `json:"fuelType" binding:"omitempty,oneof=petrol diesel hybrid electric"`
	Transmission string `json:"transmission" binding:"omitempty,oneof=manual automatic"`
	Description  string `json:"description" binding:"omitempty,max=2000"`
	ImageURL     string `json:"imageUrl" binding:"omitempty,url,max=500"`
	Featured     bool   `json:"featured"`
}
