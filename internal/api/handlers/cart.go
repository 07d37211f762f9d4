package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/exora/cart-session/internal/api/middleware"
	appErrors "github.com/exora/cart-session/internal/errors"
	"github.com/exora/cart-session/internal/models"
	service "github.com/exora/cart-session/internal/services"
	"github.com/exora/cart-session/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

type CartHandler struct {
	cartService *service.CartService
	validator   *validator.Validate
}

func NewCartHandler(service *service.CartService) *CartHandler {
	return &CartHandler{
		cartService: service,
		validator:   validator.New(),
	}
}

func (h *CartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}

		cart, err := h.cartService.GetCart(r.Context(), claims.UserID)
		if err != nil {
			middleware.LoggerFromContext(r.Context()).Error("Failed to get cart", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.WriteJson(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) AddItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}

		var req models.AddItemRequest
		if !h.decodeAndValidate(w, r, &req) {
			return
		}

		if err := h.cartService.AddItem(r.Context(), claims.UserID, &req); err != nil {
			middleware.LoggerFromContext(r.Context()).Warn("Failed to add item", slog.String("productId", req.ProductID), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Ack(w, "Item added to cart")
	}
}

func (h *CartHandler) UpdateItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}

		var req models.UpdateItemRequest
		if !h.decodeAndValidate(w, r, &req) {
			return
		}

		if err := h.cartService.UpdateQuantity(r.Context(), claims.UserID, &req); err != nil {
			middleware.LoggerFromContext(r.Context()).Warn("Failed to update item", slog.String("productId", req.ProductID), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Ack(w, "Cart updated")
	}
}

func (h *CartHandler) RemoveItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}

		productID := r.PathValue("productId")
		size := r.PathValue("size")

		if productID == "" || size == "" {
			response.Error(w, appErrors.ValidationError("Product ID and size are required"))
			return
		}

		if err := h.cartService.RemoveItem(r.Context(), claims.UserID, productID, size); err != nil {
			middleware.LoggerFromContext(r.Context()).Warn("Failed to remove item", slog.String("productId", productID), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Ack(w, "Item removed from cart")
	}
}

func (h *CartHandler) ClearCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}

		if err := h.cartService.ClearCart(r.Context(), claims.UserID); err != nil {
			middleware.LoggerFromContext(r.Context()).Error("Failed to clear cart", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Ack(w, "Cart cleared")
	}
}

func claimsOrUnauthorized(w http.ResponseWriter, r *http.Request) (*models.Claims, bool) {

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, appErrors.UnauthorizedError("Authentication required"))
		return nil, false
	}

	return claims, true
}

func (h *CartHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dest any) bool {
	defer r.Body.Close()

	logger := middleware.LoggerFromContext(r.Context())

	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dest)

	if errors.Is(err, io.EOF) {
		logger.Warn("Empty request body")
		response.Error(w, appErrors.ValidationError("Request body cannot be empty"))
		return false
	}

	if err != nil {
		logger.Warn("Failed to decode request body", slog.String("error", err.Error()))
		response.Error(w, appErrors.ValidationError("Invalid JSON format"))
		return false
	}

	if err := h.validator.Struct(dest); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			logger.Warn("Request validation failed", slog.String("error", validationErrs.Error()))
			response.ValidationError(w, validationErrs)
			return false
		}

		logger.Error("Unexpected validation error", slog.String("error", err.Error()))
		response.Error(w, err)
		return false
	}

	return true
}
