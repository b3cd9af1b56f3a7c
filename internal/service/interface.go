package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flenzi/company-service/internal/domain"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailExists       = errors.New("email already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// ProductService defines the interface for product business logic.
type ProductService interface {
	CreateProduct(ctx context.Context, req *domain.CreateProductRequest) (*domain.ProductResponse, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.ProductResponse, error)
	ListProducts(ctx context.Context) ([]domain.ProductResponse, error)
	ListAvailableProducts(ctx context.Context) ([]domain.ProductResponse, error)
	ListInStockProducts(ctx context.Context) ([]domain.ProductResponse, error)
	ListProductsByMaxPrice(ctx context.Context, maxPrice decimal.Decimal) ([]domain.ProductResponse, error)
	SearchProducts(ctx context.Context, name string) ([]domain.ProductResponse, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req *domain.UpdateProductRequest) (*domain.ProductResponse, error)
	// UpdateStock applies a signed delta. The stock never goes below zero.
	UpdateStock(ctx context.Context, id uuid.UUID, quantity int) (*domain.ProductResponse, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

// UserService defines the interface for user business logic.
type UserService interface {
	CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.UserResponse, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.UserResponse, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.UserResponse, error)
	ListUsers(ctx context.Context) ([]domain.UserResponse, error)
	ListActiveUsers(ctx context.Context) ([]domain.UserResponse, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req *domain.UpdateUserRequest) (*domain.UserResponse, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}
