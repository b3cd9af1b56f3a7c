package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/flenzi/company-service/internal/audit"
	"github.com/flenzi/company-service/internal/cache"
	"github.com/flenzi/company-service/internal/domain"
	"github.com/flenzi/company-service/internal/repository"
	"github.com/flenzi/company-service/pkg/log"
	"github.com/flenzi/company-service/pkg/pubsub"
)

// productServiceImpl implements ProductService interface.
type productServiceImpl struct {
	repo     repository.ProductRepository
	cache    cache.Cache[domain.Product]
	cacheTTL time.Duration
	events   eventPublisher
	sf       singleflight.Group
	writes   atomic.Uint64
}

// NewProductService creates a new product service. productCache and
// publisher may be nil.
func NewProductService(
	repo repository.ProductRepository,
	productCache cache.Cache[domain.Product],
	cacheTTL time.Duration,
	publisher pubsub.Publisher,
) ProductService {
	return &productServiceImpl{
		repo:     repo,
		cache:    productCache,
		cacheTTL: cacheTTL,
		events:   eventPublisher{pub: publisher},
	}
}

// CreateProduct creates a product. It is available iff it has stock.
func (s *productServiceImpl) CreateProduct(ctx context.Context, req *domain.CreateProductRequest) (*domain.ProductResponse, error) {
	l := log.Ctx(ctx)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if req.Price == nil {
		return nil, fmt.Errorf("%w: price is required", ErrInvalidArgument)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidArgument)
	}
	stock := 0
	if req.Stock != nil {
		stock = *req.Stock
	}
	if stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", ErrInvalidArgument)
	}

	product := &domain.Product{
		Name:        name,
		Description: req.Description,
		Price:       req.Price.Round(2),
		Stock:       stock,
		Available:   stock > 0,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		l.Error().Err(err).Msg("failed to create product")
		return nil, err
	}

	resp := product.ToResponse()
	audit.Log(ctx, audit.ActionCreateProduct, resp.ID, "product created")
	s.events.publish(ctx, pubsub.ChannelProduct, pubsub.EventProductCreated, resp.ID, resp)

	return &resp, nil
}

// GetProduct reads through the cache. Concurrent misses for one id share a
// single repository call.
func (s *productServiceImpl) GetProduct(ctx context.Context, id uuid.UUID) (*domain.ProductResponse, error) {
	key := id.String()
	if s.cache != nil {
		key = s.cache.BuildKeyByID(key)
	}

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		// Shared by every waiter on key, so one caller going away must not
		// fail the others.
		return s.fetchWithCache(context.WithoutCancel(ctx), id, key)
	})
	if err != nil {
		return nil, err
	}

	product, ok := result.(*domain.Product)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}

	resp := product.ToResponse()
	return &resp, nil
}

func (s *productServiceImpl) fetchWithCache(ctx context.Context, id uuid.UUID, key string) (*domain.Product, error) {
	l := log.Ctx(ctx)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			l.Warn().Err(err).Msg("cache get error")
		}
	}

	seen := s.writes.Load()
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		l.Error().Err(err).Str(log.FieldProductID, id.String()).Msg("failed to get product")
		return nil, err
	}

	if s.cache != nil && s.writes.Load() == seen {
		if err := s.cache.Set(ctx, key, product, s.cacheTTL); err != nil {
			l.Warn().Err(err).Msg("cache set error")
		}
		// A write that landed between the check and Set may have deleted
		// the key before Set ran.
		if s.writes.Load() != seen {
			_ = s.cache.Delete(ctx, key)
		}
	}

	return product, nil
}

func (s *productServiceImpl) ListProducts(ctx context.Context) ([]domain.ProductResponse, error) {
	return s.list(ctx, "all", s.repo.List)
}

func (s *productServiceImpl) ListAvailableProducts(ctx context.Context) ([]domain.ProductResponse, error) {
	return s.list(ctx, "available", s.repo.ListAvailable)
}

func (s *productServiceImpl) ListInStockProducts(ctx context.Context) ([]domain.ProductResponse, error) {
	return s.list(ctx, "in_stock", s.repo.ListInStock)
}

func (s *productServiceImpl) ListProductsByMaxPrice(ctx context.Context, maxPrice decimal.Decimal) ([]domain.ProductResponse, error) {
	if maxPrice.IsNegative() {
		return nil, fmt.Errorf("%w: max_price must not be negative", ErrInvalidArgument)
	}
	return s.list(ctx, "max_price", func(ctx context.Context) ([]*domain.Product, error) {
		return s.repo.ListByMaxPrice(ctx, maxPrice)
	})
}

// SearchProducts matches name case-insensitively anywhere in the product name.
func (s *productServiceImpl) SearchProducts(ctx context.Context, name string) ([]domain.ProductResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	return s.list(ctx, "search", func(ctx context.Context) ([]*domain.Product, error) {
		return s.repo.SearchByName(ctx, name)
	})
}

func (s *productServiceImpl) list(ctx context.Context, what string, fetch func(context.Context) ([]*domain.Product, error)) ([]domain.ProductResponse, error) {
	products, err := fetch(ctx)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str("query", what).Msg("failed to list products")
		return nil, err
	}
	return domain.ProductsToResponse(products), nil
}

// UpdateProduct applies the non-nil fields of req. When stock changes and
// availability is not given, availability follows the new stock.
func (s *productServiceImpl) UpdateProduct(ctx context.Context, id uuid.UUID, req *domain.UpdateProductRequest) (*domain.ProductResponse, error) {
	l := log.Ctx(ctx)

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be blank", ErrInvalidArgument)
		}
		product.Name = name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidArgument)
		}
		product.Price = req.Price.Round(2)
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, fmt.Errorf("%w: stock must not be negative", ErrInvalidArgument)
		}
		product.Stock = *req.Stock
		product.Available = product.Stock > 0
	}
	if req.Available != nil {
		product.Available = *req.Available
	}

	if err := s.repo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		l.Error().Err(err).Str(log.FieldProductID, id.String()).Msg("failed to update product")
		return nil, err
	}

	s.invalidate(ctx, id)

	resp := product.ToResponse()
	audit.Log(ctx, audit.ActionUpdateProduct, resp.ID, "product updated")
	s.events.publish(ctx, pubsub.ChannelProduct, pubsub.EventProductUpdated, resp.ID, resp)

	return &resp, nil
}

func (s *productServiceImpl) UpdateStock(ctx context.Context, id uuid.UUID, quantity int) (*domain.ProductResponse, error) {
	l := log.Ctx(ctx)

	product, err := s.repo.AdjustStock(ctx, id, quantity)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			return nil, ErrProductNotFound
		case errors.Is(err, repository.ErrInsufficientStock):
			return nil, fmt.Errorf("%w for product %s", ErrInsufficientStock, id)
		}
		l.Error().Err(err).Str(log.FieldProductID, id.String()).Msg("failed to update stock")
		return nil, err
	}

	s.invalidate(ctx, id)

	resp := product.ToResponse()
	audit.LogWithDetail(ctx, audit.ActionUpdateStock, resp.ID, fmt.Sprintf("delta=%d stock=%d", quantity, product.Stock), "stock updated")
	s.events.publish(ctx, pubsub.ChannelProduct, pubsub.EventProductStockChanged, resp.ID, pubsub.StockChangedPayload{
		ProductID: resp.ID,
		Delta:     quantity,
		Stock:     product.Stock,
		Available: product.Available,
	})

	return &resp, nil
}

func (s *productServiceImpl) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	l := log.Ctx(ctx)

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		l.Error().Err(err).Str(log.FieldProductID, id.String()).Msg("failed to delete product")
		return err
	}

	s.invalidate(ctx, id)

	audit.Log(ctx, audit.ActionDeleteProduct, id.String(), "product deleted")
	s.events.publish(ctx, pubsub.ChannelProduct, pubsub.EventProductDeleted, id.String(), pubsub.DeletedPayload{ID: id.String()})

	return nil
}

// invalidate runs after every committed write. Bumping writes first keeps
// reads that started before the write from caching what they read.
func (s *productServiceImpl) invalidate(ctx context.Context, id uuid.UUID) {
	s.writes.Add(1)
	if s.cache == nil {
		return
	}
	key := s.cache.BuildKeyByID(id.String())
	s.sf.Forget(key)
	if err := s.cache.Delete(ctx, key); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldProductID, id.String()).Msg("cache invalidate error")
	}
}
