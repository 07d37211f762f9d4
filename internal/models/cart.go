package models

// Sizes accepted by the storefront.
const (
	SizeXS  = "XS"
	SizeS   = "S"
	SizeM   = "M"
	SizeL   = "L"
	SizeXL  = "XL"
	SizeXXL = "XXL"
)

const (
	DefaultSize     = SizeM
	DefaultQuantity = 1
)

type CartItem struct {
	ProductID string  `json:"productId" validate:"required"`
	Size      string  `json:"size"      validate:"required,oneof=XS S M L XL XXL"`
	Quantity  int     `json:"quantity"  validate:"gte=1"`
	Price     float64 `json:"price"     validate:"gte=0"`
	Name      string  `json:"name,omitempty"`
	Image     string  `json:"image,omitempty"`
}

// Cart mirrors the server cart. TotalAmount is whatever the server sent.
type Cart struct {
	Items       []CartItem `json:"items"`
	TotalAmount float64    `json:"totalAmount"`
}

// Clone returns a deep copy so callers never share the items slice.
func (c Cart) Clone() Cart {
	clone := Cart{TotalAmount: c.TotalAmount}
	if c.Items != nil {
		clone.Items = make([]CartItem, len(c.Items))
		copy(clone.Items, c.Items)
	}

	return clone
}

// Find returns the line for a (productId, size) pair.
func (c Cart) Find(productID, size string) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID && item.Size == size {
			return item, true
		}
	}

	return CartItem{}, false
}

// ItemCount is the number of units in the cart, for badges.
func (c Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}

	return count
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"  validate:"required,min=1"`
	Size      string `json:"size"      validate:"required,oneof=XS S M L XL XXL"`
}

type UpdateItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size"      validate:"required,oneof=XS S M L XL XXL"`
	Quantity  int    `json:"quantity"  validate:"required,min=1"`
}
