package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	appErrors "github.com/exora/cart-session/internal/errors"
	"github.com/exora/cart-session/internal/models"
	repository "github.com/exora/cart-session/internal/repositories"
)

// CartService is the server side of the cart API the stub exposes. It owns
// the (productId, size) uniqueness rule and computes totals.
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	mu       sync.Mutex
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*models.Cart, error) {

	items, err := s.carts.GetItems(ctx, userID)
	if err != nil {
		return nil, appErrors.ServerError("Failed to retrieve cart", 0).WithError(err)
	}

	return &models.Cart{
		Items:       items,
		TotalAmount: calculateTotal(items),
	}, nil
}

// AddItem accumulates onto an existing line for the same product and size.
func (s *CartService) AddItem(ctx context.Context, userID string, req *models.AddItemRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.product(ctx, req.ProductID)
	if err != nil {
		return err
	}

	items, err := s.carts.GetItems(ctx, userID)
	if err != nil {
		return appErrors.ServerError("Failed to retrieve cart", 0).WithError(err)
	}

	idx := indexOf(items, req.ProductID, req.Size)

	quantity := req.Quantity
	if idx >= 0 {
		quantity += items[idx].Quantity
	}

	if quantity > product.Stock {
		return appErrors.ValidationError(fmt.Sprintf("Insufficient stock for %s: only %d available", product.Name, product.Stock))
	}

	if idx >= 0 {
		items[idx].Quantity = quantity
		items[idx].Price = product.Price
	} else {
		items = append(items, models.CartItem{
			ProductID: product.ID,
			Size:      req.Size,
			Quantity:  quantity,
			Price:     product.Price,
			Name:      product.Name,
			Image:     product.Image,
		})
	}

	if err := s.carts.SaveItems(ctx, userID, items); err != nil {
		return appErrors.ServerError("Failed to update cart", 0).WithError(err)
	}

	return nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID string, req *models.UpdateItemRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.product(ctx, req.ProductID)
	if err != nil {
		return err
	}

	items, err := s.carts.GetItems(ctx, userID)
	if err != nil {
		return appErrors.ServerError("Failed to retrieve cart", 0).WithError(err)
	}

	idx := indexOf(items, req.ProductID, req.Size)
	if idx < 0 {
		return appErrors.NotFoundError("Item not found in the cart")
	}

	if req.Quantity > product.Stock {
		return appErrors.ValidationError(fmt.Sprintf("Insufficient stock for %s: only %d available", product.Name, product.Stock))
	}

	items[idx].Quantity = req.Quantity

	if err := s.carts.SaveItems(ctx, userID, items); err != nil {
		return appErrors.ServerError("Failed to update cart", 0).WithError(err)
	}

	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID, size string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.carts.GetItems(ctx, userID)
	if err != nil {
		return appErrors.ServerError("Failed to retrieve cart", 0).WithError(err)
	}

	idx := indexOf(items, productID, size)
	if idx < 0 {
		return appErrors.NotFoundError("Item not found in the cart")
	}

	items = append(items[:idx], items[idx+1:]...)

	if err := s.carts.SaveItems(ctx, userID, items); err != nil {
		return appErrors.ServerError("Failed to update cart", 0).WithError(err)
	}

	return nil
}

// ClearCart succeeds on an already empty cart.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.carts.DeleteCart(ctx, userID); err != nil {
		return appErrors.ServerError("Failed to clear cart", 0).WithError(err)
	}

	return nil
}

func (s *CartService) product(ctx context.Context, productID string) (*models.Product, error) {

	product, err := s.products.GetProductByID(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, appErrors.NotFoundError("Product not found").WithError(err)
	}

	if err != nil {
		return nil, appErrors.ServerError("Failed to retrieve product", 0).WithError(err)
	}

	return product, nil
}

func indexOf(items []models.CartItem, productID, size string) int {
	for i, item := range items {
		if item.ProductID == productID && item.Size == size {
			return i
		}
	}

	return -1
}

func calculateTotal(items []models.CartItem) float64 {

	var totalPrice float64

	for _, item := range items {
		totalPrice += item.Price * float64(item.Quantity)
	}

	return totalPrice
}
