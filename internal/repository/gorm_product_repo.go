package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flenzi/company-service/internal/domain"
	"github.com/flenzi/company-service/pkg/uuidv7"
)

// GormProductRepository implements ProductRepository using GORM.
type GormProductRepository struct {
	db  *gorm.DB
	ids *uuidv7.Generator
}

// NewGormProductRepository creates a new GORM-based product repository.
// New rows get their id from ids, or the default generator when nil.
func NewGormProductRepository(db *gorm.DB, ids *uuidv7.Generator) *GormProductRepository {
	if ids == nil {
		ids = uuidv7.NewGenerator()
	}
	return &GormProductRepository{db: db, ids: ids}
}

// Create inserts a product, assigning a UUIDv7 id when it has none.
func (r *GormProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if product.ID == uuid.Nil {
		product.ID = r.ids.New()
	}

	model := domain.ProductToModel(product)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	product.CreatedAt = model.CreatedAt
	product.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByID retrieves a product by ID.
func (r *GormProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var model domain.ProductModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

func (r *GormProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	return r.find(r.db.WithContext(ctx))
}

func (r *GormProductRepository) ListAvailable(ctx context.Context) ([]*domain.Product, error) {
	return r.find(r.db.WithContext(ctx).Where("available = ?", true))
}

func (r *GormProductRepository) ListInStock(ctx context.Context) ([]*domain.Product, error) {
	return r.find(r.db.WithContext(ctx).Where("stock > ?", 0))
}

func (r *GormProductRepository) ListByMaxPrice(ctx context.Context, maxPrice decimal.Decimal) ([]*domain.Product, error) {
	return r.find(r.db.WithContext(ctx).Where("price <= ?", maxPrice))
}

// SearchByName matches name as a case-insensitive substring.
func (r *GormProductRepository) SearchByName(ctx context.Context, name string) ([]*domain.Product, error) {
	pattern := "%" + escapeLike(strings.ToLower(name)) + "%"
	return r.find(r.db.WithContext(ctx).Where("LOWER(name) LIKE ? ESCAPE '!'", pattern))
}

func (r *GormProductRepository) find(q *gorm.DB) ([]*domain.Product, error) {
	var models []domain.ProductModel
	if err := q.Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	products := make([]*domain.Product, len(models))
	for i := range models {
		products[i] = models[i].ToDomain()
	}
	return products, nil
}

// Update saves every mutable column of product.
func (r *GormProductRepository) Update(ctx context.Context, product *domain.Product) error {
	result := r.db.WithContext(ctx).Model(&domain.ProductModel{}).
		Where("id = ?", product.ID).
		Updates(map[string]interface{}{
			"name":        product.Name,
			"description": product.Description,
			"price":       product.Price,
			"stock":       product.Stock,
			"available":   product.Available,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}

	var updated domain.ProductModel
	if err := r.db.WithContext(ctx).First(&updated, "id = ?", product.ID).Error; err != nil {
		return err
	}
	product.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *GormProductRepository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error) {
	var product *domain.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model domain.ProductModel
		// Row lock on postgres/mysql; sqlite ignores the clause.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}

		newStock := model.Stock + delta
		if newStock < 0 {
			return ErrInsufficientStock
		}

		if err := tx.Model(&model).Updates(map[string]interface{}{
			"stock":     newStock,
			"available": newStock > 0,
		}).Error; err != nil {
			return err
		}

		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		product = model.ToDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Delete removes a product.
func (r *GormProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&domain.ProductModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
