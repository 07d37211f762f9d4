package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/exora/cart-session/internal/models"
)

var ErrNotFound = errors.New("not found")

type CartRepository interface {
	GetItems(ctx context.Context, userID string) ([]models.CartItem, error)
	SaveItems(ctx context.Context, userID string, items []models.CartItem) error
	DeleteCart(ctx context.Context, userID string) error
}

type cartRepository struct {
	mu    sync.RWMutex
	carts map[string][]models.CartItem
}

func NewCartRepo() CartRepository {
	return &cartRepository{carts: make(map[string][]models.CartItem)}
}

// GetItems returns a copy of the user's lines; an unknown user has none.
func (r *cartRepository) GetItems(_ context.Context, userID string) ([]models.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.carts[userID]
	out := make([]models.CartItem, len(items))
	copy(out, items)

	return out, nil
}

func (r *cartRepository) SaveItems(_ context.Context, userID string, items []models.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := make([]models.CartItem, len(items))
	copy(stored, items)
	r.carts[userID] = stored

	return nil
}

func (r *cartRepository) DeleteCart(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, userID)

	return nil
}
