// Package cart holds the storefront's cart state container: a local mirror of
// the server cart that every UI mutation goes through.
package cart

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/exora/cart-session/internal/config"
	appErrors "github.com/exora/cart-session/internal/errors"
	"github.com/exora/cart-session/internal/metrics"
	"github.com/exora/cart-session/internal/models"
	"github.com/exora/cart-session/internal/notify"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const tracerName = "github.com/exora/cart-session/internal/cart"

// User-facing messages.
const (
	MsgLoginRequired  = "Please login to continue"
	MsgSessionExpired = "Your session has expired, please login again"
	MsgBusy           = "Please wait for the current cart update to finish"

	MsgAdded   = "Item added to cart"
	MsgRemoved = "Item removed from cart"
	MsgCleared = "Cart cleared"

	MsgAddFailed    = "Failed to add item to cart"
	MsgUpdateFailed = "Failed to update cart"
	MsgRemoveFailed = "Failed to remove item from cart"
	MsgClearFailed  = "Failed to clear cart"
)

type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

type RemoteCart interface {
	FetchCart(ctx context.Context, token string) (*models.Cart, error)
	AddItem(ctx context.Context, token string, req models.AddItemRequest) error
	UpdateItem(ctx context.Context, token string, req models.UpdateItemRequest) error
	RemoveItem(ctx context.Context, token, productID, size string) error
	ClearCart(ctx context.Context, token string) error
}

type Notifier interface {
	Notify(kind notify.Kind, message string)
}

type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

type Deps struct {
	Session   TokenSource
	Client    RemoteCart
	Notifier  Notifier
	Navigator Navigator
	Logger    *slog.Logger
}

type Options struct {
	// Concurrency is config.ConcurrencyReject or config.ConcurrencyQueue.
	Concurrency  string
	LoginPath    string
	CheckoutPath string
}

func OptionsFromConfig(cfg config.Cart) Options {
	return Options{
		Concurrency:  cfg.Concurrency,
		LoginPath:    cfg.LoginPath,
		CheckoutPath: cfg.CheckoutPath,
	}
}

// Manager owns the cart snapshot. Operations run one at a time; depending on
// Options.Concurrency an overlapping call is rejected or waits its turn.
type Manager struct {
	session   TokenSource
	client    RemoteCart
	notifier  Notifier
	navigator Navigator
	logger    *slog.Logger
	tracer    trace.Tracer
	opts      Options

	flight *semaphore.Weighted
	busy   atomic.Bool

	mu       sync.RWMutex
	snapshot models.Cart
	stale    bool
}

// New builds the container and syncs it with the server when a session
// token is already stored.
func New(ctx context.Context, deps Deps, opts Options) *Manager {

	if opts.Concurrency == "" {
		opts.Concurrency = config.ConcurrencyReject
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	if opts.CheckoutPath == "" {
		opts.CheckoutPath = "/checkout"
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		session:   deps.Session,
		client:    deps.Client,
		notifier:  deps.Notifier,
		navigator: deps.Navigator,
		logger:    logger.With(slog.String("component", "cart")),
		tracer:    otel.Tracer(tracerName),
		opts:      opts,
		flight:    semaphore.NewWeighted(1),
		snapshot:  models.Cart{Items: []models.CartItem{}},
	}

	m.initialize(ctx)

	return m
}

func (m *Manager) initialize(ctx context.Context) {
	if _, ok := m.session.Token(ctx); !ok {
		m.logger.Debug("No session token, starting with an empty cart")
		return
	}

	m.Refresh(ctx)
}

// Snapshot returns a copy of the last cart the server sent.
func (m *Manager) Snapshot() models.Cart {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshot.Clone()
}

func (m *Manager) Busy() bool {
	return m.busy.Load()
}

// Stale reports whether the last background refresh failed, meaning the
// snapshot may lag behind the server.
func (m *Manager) Stale() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.stale
}

// Reset drops the snapshot after logout. It waits for any in-flight
// operation regardless of the concurrency policy, so that operation's
// refresh cannot repopulate the cart afterwards.
func (m *Manager) Reset(ctx context.Context) error {

	if err := m.flight.Acquire(ctx, 1); err != nil {
		return appErrors.BusyError("Timed out waiting for the cart").WithError(err)
	}
	defer m.flight.Release(1)

	m.mu.Lock()
	m.snapshot = models.Cart{Items: []models.CartItem{}}
	m.stale = false
	m.mu.Unlock()

	m.logger.Debug("Cart snapshot reset")
	return nil
}

// Refresh re-fetches the cart. Failures are logged and mark the snapshot
// stale; they never reach the user.
func (m *Manager) Refresh(ctx context.Context) {

	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "cart.refresh")
	defer span.End()

	release, err := m.acquire(ctx)
	if err != nil {
		m.logger.Debug("Refresh skipped, another cart operation is in flight")
		metrics.ObserveOperation("refresh", metrics.OutcomeRejected, time.Since(start))
		return
	}
	defer release()

	if err := m.refresh(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveOperation("refresh", metrics.OutcomeFailure, time.Since(start))
		return
	}

	metrics.ObserveOperation("refresh", metrics.OutcomeSuccess, time.Since(start))
}

// refresh assumes the caller holds the flight.
func (m *Manager) refresh(ctx context.Context) error {

	token, ok := m.session.Token(ctx)
	if !ok {
		m.logger.Debug("No session token, refresh skipped")
		return nil
	}

	cart, err := m.client.FetchCart(ctx, token)
	if err != nil {
		m.logger.Warn("Cart refresh failed, keeping previous snapshot",
			slog.String("kind", appErrors.KindOf(err)),
			slog.String("error", err.Error()),
		)

		m.mu.Lock()
		m.stale = true
		m.mu.Unlock()

		return err
	}

	m.mu.Lock()
	m.snapshot = cart.Clone()
	if m.snapshot.Items == nil {
		m.snapshot.Items = []models.CartItem{}
	}
	m.stale = false
	m.mu.Unlock()

	return nil
}

// AddToCart adds quantity units of a product in size. A zero quantity means
// 1 and an empty size means M.
func (m *Manager) AddToCart(ctx context.Context, productID string, quantity int, size string) {

	req := addRequest(productID, quantity, size)

	m.mutate(ctx, mutation{
		name:     "addToCart",
		attrs:    itemAttrs(req.ProductID, req.Size),
		fallback: MsgAddFailed,
		call: func(ctx context.Context, token string) error {
			return m.client.AddItem(ctx, token, req)
		},
		onSuccess: func() {
			m.notifier.Notify(notify.KindSuccess, MsgAdded)
		},
	})
}

// BuyNow adds the item like AddToCart, then sends the user to checkout
// instead of confirming with a notification.
func (m *Manager) BuyNow(ctx context.Context, productID string, quantity int, size string) {

	req := addRequest(productID, quantity, size)

	m.mutate(ctx, mutation{
		name:     "buyNow",
		attrs:    itemAttrs(req.ProductID, req.Size),
		fallback: MsgAddFailed,
		call: func(ctx context.Context, token string) error {
			return m.client.AddItem(ctx, token, req)
		},
		onSuccess: func() {
			m.navigator.Navigate(m.opts.CheckoutPath)
		},
	})
}

// UpdateQuantity is silent on success so rapid +/- clicks do not flood the
// user with confirmations.
func (m *Manager) UpdateQuantity(ctx context.Context, productID, size string, quantity int) {

	req := models.UpdateItemRequest{ProductID: productID, Size: size, Quantity: quantity}

	m.mutate(ctx, mutation{
		name:     "updateQuantity",
		attrs:    append(itemAttrs(productID, size), attribute.Int("cart.quantity", quantity)),
		fallback: MsgUpdateFailed,
		call: func(ctx context.Context, token string) error {
			return m.client.UpdateItem(ctx, token, req)
		},
	})
}

func (m *Manager) RemoveFromCart(ctx context.Context, productID, size string) {

	m.mutate(ctx, mutation{
		name:     "removeFromCart",
		attrs:    itemAttrs(productID, size),
		fallback: MsgRemoveFailed,
		call: func(ctx context.Context, token string) error {
			return m.client.RemoveItem(ctx, token, productID, size)
		},
		onSuccess: func() {
			m.notifier.Notify(notify.KindSuccess, MsgRemoved)
		},
	})
}

// ClearCart always asks the server, even when the snapshot is already empty.
func (m *Manager) ClearCart(ctx context.Context) {

	m.mutate(ctx, mutation{
		name:     "clearCart",
		fallback: MsgClearFailed,
		call: func(ctx context.Context, token string) error {
			return m.client.ClearCart(ctx, token)
		},
		onSuccess: func() {
			m.notifier.Notify(notify.KindSuccess, MsgCleared)
		},
	})
}

type mutation struct {
	name      string
	attrs     []attribute.KeyValue
	fallback  string
	call      func(ctx context.Context, token string) error
	onSuccess func()
}

func (m *Manager) mutate(ctx context.Context, op mutation) {

	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "cart."+op.name, trace.WithAttributes(op.attrs...))
	defer span.End()

	logger := m.logger.With(slog.String("operation", op.name))

	token, ok := m.session.Token(ctx)
	if !ok {
		logger.Info("No session token, redirecting to login")
		m.requireLogin(MsgLoginRequired)
		metrics.ObserveOperation(op.name, metrics.OutcomeUnauthorized, time.Since(start))
		return
	}

	release, err := m.acquire(ctx)
	if err != nil {
		logger.Info("Cart operation rejected, another one is in flight", slog.String("error", err.Error()))
		m.notifier.Notify(notify.KindInfo, MsgBusy)
		metrics.ObserveOperation(op.name, metrics.OutcomeRejected, time.Since(start))
		return
	}
	defer release()

	if err := op.call(ctx, token); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if appErrors.Is(err, appErrors.ErrCodeUnauthorized) {
			logger.Warn("Session rejected by the server", slog.String("error", err.Error()))
			m.requireLogin(MsgSessionExpired)
			metrics.ObserveOperation(op.name, metrics.OutcomeUnauthorized, time.Since(start))
			return
		}

		if appErrors.Is(err, appErrors.ErrCodeServer) {
			logger.Error("Cart operation failed", slog.String("kind", appErrors.KindOf(err)), slog.String("error", err.Error()))
		} else {
			logger.Warn("Cart operation failed", slog.String("kind", appErrors.KindOf(err)), slog.String("error", err.Error()))
		}

		m.notifier.Notify(notify.KindError, userMessage(err, op.fallback))
		metrics.ObserveOperation(op.name, metrics.OutcomeFailure, time.Since(start))
		return
	}

	// the mutation itself succeeded; a failed re-sync only marks the snapshot stale
	_ = m.refresh(ctx)

	if op.onSuccess != nil {
		op.onSuccess()
	}

	logger.Debug("Cart operation completed", slog.Duration("duration", time.Since(start)))
	metrics.ObserveOperation(op.name, metrics.OutcomeSuccess, time.Since(start))
}

func (m *Manager) acquire(ctx context.Context) (func(), error) {

	if m.opts.Concurrency == config.ConcurrencyQueue {
		if err := m.flight.Acquire(ctx, 1); err != nil {
			return nil, appErrors.BusyError("Timed out waiting for the cart").WithError(err)
		}
	} else if !m.flight.TryAcquire(1) {
		return nil, appErrors.BusyError("Cart operation already in flight")
	}

	m.busy.Store(true)
	metrics.SetBusy(true)

	return func() {
		m.busy.Store(false)
		metrics.SetBusy(false)
		m.flight.Release(1)
	}, nil
}

func (m *Manager) requireLogin(message string) {
	m.notifier.Notify(notify.KindInfo, message)
	m.navigator.Navigate(m.opts.LoginPath)
}

// userMessage surfaces validation messages verbatim and hides everything
// else behind the operation's generic message.
func userMessage(err error, fallback string) string {
	if appErr, ok := appErrors.IsAppError(err); ok && appErr.Code == appErrors.ErrCodeValidation && appErr.Message != "" {
		return appErr.Message
	}

	return fallback
}

func addRequest(productID string, quantity int, size string) models.AddItemRequest {
	if quantity == 0 {
		quantity = models.DefaultQuantity
	}
	if size == "" {
		size = models.DefaultSize
	}

	return models.AddItemRequest{ProductID: productID, Quantity: quantity, Size: size}
}

func itemAttrs(productID, size string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("cart.product_id", productID),
		attribute.String("cart.size", size),
	}
}
