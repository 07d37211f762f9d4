package models

// Product is a catalog entry of the stub cart API.
type Product struct {
	ID    string  `json:"id"    yaml:"id"`
	Name  string  `json:"name"  yaml:"name"`
	Image string  `json:"image" yaml:"image"`
	Price float64 `json:"price" yaml:"price"`
	Stock int     `json:"stock" yaml:"stock"`
}
