// Package cartstub assembles an in-memory cart API that speaks the same
// protocol as the storefront backend. It backs local development and tests.
package cartstub

import (
	"net/http"
	"time"

	"github.com/exora/cart-session/internal/api/handlers"
	"github.com/exora/cart-session/internal/api/middleware"
	"github.com/exora/cart-session/internal/metrics"
	"github.com/exora/cart-session/internal/models"
	repository "github.com/exora/cart-session/internal/repositories"
	service "github.com/exora/cart-session/internal/services"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	auth     *middleware.AuthMiddleware
	products repository.ProductRepository
	handler  http.Handler
}

type Options struct {
	JWTKey   []byte
	TokenTTL time.Duration
	Catalog  []models.Product
	// Extra routes mounted next to the cart API (health, metrics, ...).
	Extra map[string]http.Handler
}

func New(opts Options) *Server {

	if len(opts.JWTKey) == 0 {
		opts.JWTKey = []byte("exora-dev-secret")
	}

	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}

	if opts.Catalog == nil {
		opts.Catalog = repository.DefaultCatalog()
	}

	products := repository.NewProductRepo(opts.Catalog...)
	cartService := service.NewCartService(repository.NewCartRepo(), products)
	cartHandler := handlers.NewCartHandler(cartService)
	auth := middleware.NewAuthMiddleware(opts.JWTKey, opts.TokenTTL)

	routerMux := http.NewServeMux()
	routerMux.HandleFunc("GET /api/cart", auth.Authenticate(cartHandler.GetCart()))
	routerMux.HandleFunc("POST /api/cart/add", auth.Authenticate(cartHandler.AddItem()))
	routerMux.HandleFunc("PUT /api/cart/update", auth.Authenticate(cartHandler.UpdateItem()))
	routerMux.HandleFunc("DELETE /api/cart/remove/{productId}/{size}", auth.Authenticate(cartHandler.RemoveItem()))
	routerMux.HandleFunc("DELETE /api/cart/clear", auth.Authenticate(cartHandler.ClearCart()))

	for pattern, h := range opts.Extra {
		routerMux.Handle(pattern, h)
	}

	// Middleware chaining
	var handler http.Handler = routerMux
	handler = metrics.Middleware(handler)
	handler = middleware.Logging(handler)
	handler = otelhttp.NewHandler(handler, "cart-stub")

	return &Server{
		auth:     auth,
		products: products,
		handler:  handler,
	}
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// IssueToken mints a bearer token the stub accepts.
func (s *Server) IssueToken(userID, role string) (string, error) {
	return s.auth.IssueToken(userID, role)
}

func (s *Server) Products() repository.ProductRepository {
	return s.products
}
