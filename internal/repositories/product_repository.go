package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/exora/cart-session/internal/models"
)

type ProductRepository interface {
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	UpsertProduct(ctx context.Context, product *models.Product) error
}

type productRepository struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

func NewProductRepo(seed ...models.Product) ProductRepository {
	repo := &productRepository{products: make(map[string]models.Product, len(seed))}
	for _, p := range seed {
		repo.products[p.ID] = p
	}

	return repo
}

func (r *productRepository) GetProductByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	return &product, nil
}

func (r *productRepository) UpsertProduct(_ context.Context, product *models.Product) error {
	if product == nil || product.ID == "" {
		return fmt.Errorf("product id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[product.ID] = *product

	return nil
}

// DefaultCatalog is what the stub serves when nothing else is configured.
func DefaultCatalog() []models.Product {
	return []models.Product{
		{ID: "p1", Name: "Linen Shirt", Image: "products/p1.jpg", Price: 1000, Stock: 10},
		{ID: "p2", Name: "Denim Jacket", Image: "products/p2.jpg", Price: 3500, Stock: 5},
		{ID: "p3", Name: "Cotton Tee", Image: "products/p3.jpg", Price: 450, Stock: 50},
		{ID: "p4", Name: "Wool Scarf", Image: "products/p4.jpg", Price: 800, Stock: 0},
	}
}
