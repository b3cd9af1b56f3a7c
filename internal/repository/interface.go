package repository

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
)

// ProductRepository defines the interface for product persistence.
// Lists are ordered by id, which is creation order for UUIDv7 ids.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context) ([]*domain.Product, error)
	ListAvailable(ctx context.Context) ([]*domain.Product, error)
	ListInStock(ctx context.Context) ([]*domain.Product, error)
	ListByMaxPrice(ctx context.Context, maxPrice decimal.Decimal) ([]*domain.Product, error)
	SearchByName(ctx context.Context, name string) ([]*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
	// AdjustStock adds delta to the stock atomically and recomputes
	// availability. A result below zero returns ErrInsufficientStock and
	// leaves the row untouched.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserRepository defines the interface for user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]*domain.User, error)
	ListActive(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}
