package cart_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/exora/cart-session/internal/cart"
	"github.com/exora/cart-session/internal/cartclient"
	"github.com/exora/cart-session/internal/cartstub"
	"github.com/exora/cart-session/internal/config"
	"github.com/exora/cart-session/internal/models"
	"github.com/exora/cart-session/internal/notify"
	"github.com/exora/cart-session/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// recorder wraps a handler and keeps every request it sees.
type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
	next     http.Handler
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	rec.mu.Lock()
	rec.requests = append(rec.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	rec.mu.Unlock()

	rec.next.ServeHTTP(w, r)
}

func (rec *recorder) Requests() []recordedRequest {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	return append([]recordedRequest(nil), rec.requests...)
}

func (rec *recorder) Reset() {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.requests = nil
}

type harness struct {
	rec     *recorder
	notes   *testutils.Notifications
	navs    *testutils.Navigations
	client  *cartclient.Client
	server  *httptest.Server
	session testutils.StaticToken
}

func newHarness(t *testing.T, handler http.Handler, token string) *harness {
	t.Helper()

	rec := &recorder{next: handler}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	client := cartclient.New(config.API{
		BaseURL:        srv.URL,
		RequestTimeout: 2 * time.Second,
		Breaker:        config.Breaker{MaxFailures: 100, OpenTimeout: time.Second},
	}, cartclient.WithHTTPClient(srv.Client()), cartclient.WithLogger(testutils.DiscardLogger()))

	return &harness{
		rec:     rec,
		notes:   &testutils.Notifications{},
		navs:    &testutils.Navigations{},
		client:  client,
		server:  srv,
		session: testutils.StaticToken(token),
	}
}

func (h *harness) manager(t *testing.T, opts cart.Options) *cart.Manager {
	t.Helper()

	m := cart.New(context.Background(), cart.Deps{
		Session:   h.session,
		Client:    h.client,
		Notifier:  h.notes,
		Navigator: h.navs,
		Logger:    testutils.DiscardLogger(),
	}, opts)

	h.rec.Reset()
	h.notes.Reset()

	return m
}

func stubWithUser(t *testing.T) (*cartstub.Server, string) {
	t.Helper()

	stub := cartstub.New(cartstub.Options{JWTKey: []byte("test-key")})
	token, err := stub.IssueToken("user-1", "customer")
	require.NoError(t, err)

	return stub, token
}

func TestAuthGate(t *testing.T) {
	stub, _ := stubWithUser(t)
	h := newHarness(t, stub.Handler(), "")
	m := h.manager(t, cart.Options{})
	ctx := context.Background()

	ops := map[string]func(){
		"addToCart":      func() { m.AddToCart(ctx, "p1", 1, "M") },
		"buyNow":         func() { m.BuyNow(ctx, "p1", 1, "M") },
		"updateQuantity": func() { m.UpdateQuantity(ctx, "p1", "M", 3) },
		"removeFromCart": func() { m.RemoveFromCart(ctx, "p1", "M") },
		"clearCart":      func() { m.ClearCart(ctx) },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			h.notes.Reset()
			before := len(h.navs.Paths())

			op()

			assert.Empty(t, h.rec.Requests())
			assert.Equal(t, []string{"/login"}, h.navs.Paths()[before:])
			assert.Equal(t, []string{cart.MsgLoginRequired}, h.notes.Messages(notify.KindInfo))
			assert.Len(t, h.notes.All(), 1)
		})
	}
}

func TestInitialize(t *testing.T) {
	t.Run("Token present loads the cart", func(t *testing.T) {
		stub, token := stubWithUser(t)
		h := newHarness(t, stub.Handler(), token)

		// seed the server cart before the container starts
		seed := newHarness(t, stub.Handler(), token).manager(t, cart.Options{})
		seed.AddToCart(context.Background(), "p3", 2, "S")

		h.rec.Reset()
		m := cart.New(context.Background(), cart.Deps{
			Session:   h.session,
			Client:    h.client,
			Notifier:  h.notes,
			Navigator: h.navs,
		}, cart.Options{})

		requests := h.rec.Requests()
		require.Len(t, requests, 1)
		assert.Equal(t, http.MethodGet, requests[0].Method)
		assert.Equal(t, "/api/cart", requests[0].Path)

		snap := m.Snapshot()
		require.Len(t, snap.Items, 1)
		assert.Equal(t, 900.0, snap.TotalAmount)
	})

	t.Run("No token issues no request", func(t *testing.T) {
		stub, _ := stubWithUser(t)
		h := newHarness(t, stub.Handler(), "")

		m := cart.New(context.Background(), cart.Deps{
			Session:   h.session,
			Client:    h.client,
			Notifier:  h.notes,
			Navigator: h.navs,
		}, cart.Options{})

		assert.Empty(t, h.rec.Requests())
		assert.True(t, m.Snapshot().IsEmpty())
		assert.False(t, m.Busy())
	})
}

func TestAddToCartAgainstFixedServer(t *testing.T) {
	fixed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, `{"items":[{"productId":"p1","size":"M","quantity":2,"price":1000,"name":"Linen Shirt","image":"/img/p1.png"}],"totalAmount":2000}`)
			return
		}

		_, _ = io.WriteString(w, `{"success":true,"message":"Item added"}`)
	})

	h := newHarness(t, fixed, "tok123")
	m := h.manager(t, cart.Options{})

	m.AddToCart(context.Background(), "p1", 1, "M")

	requests := h.rec.Requests()
	require.Len(t, requests, 2)

	assert.Equal(t, http.MethodPost, requests[0].Method)
	assert.Equal(t, "/api/cart/add", requests[0].Path)
	assert.JSONEq(t, `{"productId":"p1","quantity":1,"size":"M"}`, requests[0].Body)

	assert.Equal(t, http.MethodGet, requests[1].Method)
	assert.Equal(t, "/api/cart", requests[1].Path)

	assert.Equal(t, 2000.0, m.Snapshot().TotalAmount)
	assert.Equal(t, []string{cart.MsgAdded}, h.notes.Messages(notify.KindSuccess))
	assert.Len(t, h.notes.All(), 1)
}

func TestAddToCartDefaults(t *testing.T) {
	stub, token := stubWithUser(t)
	h := newHarness(t, stub.Handler(), token)
	m := h.manager(t, cart.Options{})

	m.AddToCart(context.Background(), "p1", 0, "")

	requests := h.rec.Requests()
	require.NotEmpty(t, requests)
	assert.JSONEq(t, `{"productId":"p1","quantity":1,"size":"M"}`, requests[0].Body)
}

func TestSnapshotReplacedNotMerged(t *testing.T) {
	stub, token := stubWithUser(t)
	h := newHarness(t, stub.Handler(), token)
	m := h.manager(t, cart.Options{})
	ctx := context.Background()

	m.AddToCart(ctx, "p1", 1, "M")
	m.AddToCart(ctx, "p3", 1, "S")
	require.Len(t, m.Snapshot().Items, 2)

	// remove a line behind the container's back, then mutate through it
	other := newHarness(t, stub.Handler(), token).manager(t, cart.Options{})
	other.RemoveFromCart(ctx, "p3", "S")

	m.UpdateQuantity(ctx, "p1", "M", 3)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	stub.Handler().ServeHTTP(rr, req)

	var server models.Cart
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &server))

	assert.Equal(t, server, m.Snapshot())
	assert.Len(t, m.Snapshot().Items, 1)
}

func TestClearCartTwice(t *testing.T) {
	stub, token := stubWithUser(t)
	h := newHarness(t, stub.Handler(), token)
	m := h.manager(t, cart.Options{})
	ctx := context.Background()

	m.AddToCart(ctx, "p1", 1, "M")
	h.rec.Reset()
	h.notes.Reset()

	for range 2 {
		m.ClearCart(ctx)
		assert.True(t, m.Snapshot().IsEmpty())
	}

	var clears int
	for _, r := range h.rec.Requests() {
		if r.Method == http.MethodDelete && r.Path == "/api/cart/clear" {
			clears++
		}
	}

	assert.Equal(t, 2, clears)
	assert.Equal(t, []string{cart.MsgCleared, cart.MsgCleared}, h.notes.Messages(notify.KindSuccess))
}

func TestAddFailureLeavesSnapshot(t *testing.T) {
	stub, token := stubWithUser(t)
	h := newHarness(t, stub.Handler(), token)
	m := h.manager(t, cart.Options{})
	ctx := context.Background()

	m.AddToCart(ctx, "p1", 2, "M")
	before := m.Snapshot()
	h.notes.Reset()

	t.Run("Insufficient stock", func(t *testing.T) {
		m.AddToCart(ctx, "p2", 6, "M")

		assert.Equal(t, before, m.Snapshot())
		errs := h.notes.Messages(notify.KindError)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "Insufficient stock")
	})

	t.Run("Out of stock product", func(t *testing.T) {
		h.notes.Reset()
		m.AddToCart(ctx, "p4", 1, "M")

		assert.Equal(t, before, m.Snapshot())
		assert.Len(t, h.notes.Messages(notify.KindError), 1)
	})

	t.Run("Unknown product", func(t *testing.T) {
		h.notes.Reset()
		m.AddToCart(ctx, "nope", 1, "M")

		assert.Equal(t, before, m.Snapshot())
		assert.Equal(t, []string{cart.MsgAddFailed}, h.notes.Messages(notify.KindError))
	})
}

func TestAddSamePairAccumulates(t *testing.T) {
	stub, token := stubWithUser(t)
	h := newHarness(t, stub.Handler(), token)
	m := h.manager(t, cart.Options{})
	ctx := context.Background()

	m.AddToCart(ctx, "p1", 1, "M")
	m.AddToCart(ctx, "p1", 1, "M")

	snap := m.Snapshot()
	require.Len(t, snap.Items, 1)

	item, ok := snap.Find("p1", "M")
	require.True(t, ok)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 2000.0, snap.TotalAmount)
}

func TestRemoveServerError(t *testing.T) {
	seeded := `{"items":[{"productId":"p1","size":"M","quantity":1,"price":1000}],"totalAmount":1000}`

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, seeded)
			return
		}

		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})

	h := newHarness(t, handler, "tok123")
	m := h.manager(t, cart.Options{})

	// initial load happened in New, before the recorder was reset
	before := m.Snapshot()
	require.Len(t, before.Items, 1)

	m.RemoveFromCart(context.Background(), "p1", "M")

	assert.Equal(t, before, m.Snapshot())
	assert.Equal(t, []string{cart.MsgRemoveFailed}, h.notes.Messages(notify.KindError))
	assert.Len(t, h.notes.All(), 1)

	requests := h.rec.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodDelete, requests[0].Method)
	assert.Equal(t, "/api/cart/remove/p1/M", requests[0].Path)
}

// UpdateQuantity stays silent on success; only failures are reported.
func TestUpdateQuantityIsSilent(t *testing.T) {
	stub, token := stubWithUser(t)
	h := newHarness(t, stub.Handler(), token)
	m := h.manager(t, cart.Options{})
	ctx := context.Background()

	m.AddToCart(ctx, "p1", 1, "M")
	h.rec.Reset()
	h.notes.Reset()

	m.UpdateQuantity(ctx, "p1", "M", 3)

	requests := h.rec.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, http.MethodPut, requests[0].Method)
	assert.Equal(t, http.MethodGet, requests[1].Method)

	assert.Empty(t, h.notes.Messages(notify.KindSuccess))

	item, ok := m.Snapshot().Find("p1", "M")
	require.True(t, ok)
	assert.Equal(t, 3, item.Quantity)

	m.UpdateQuantity(ctx, "p1", "M", 0)
	assert.Equal(t, []string{"Quantity must be at least 1"}, h.notes.Messages(notify.KindError))
}

func TestBuyNow(t *testing.T) {
	stub, token := stubWithUser(t)
	h := newHarness(t, stub.Handler(), token)
	m := h.manager(t, cart.Options{CheckoutPath: "/checkout"})

	m.BuyNow(context.Background(), "p2", 1, "L")

	assert.Equal(t, []string{"/checkout"}, h.navs.Paths())
	assert.Empty(t, h.notes.Messages(notify.KindSuccess))

	_, ok := m.Snapshot().Find("p2", "L")
	assert.True(t, ok)
}

func TestExpiredSession(t *testing.T) {
	stub, _ := stubWithUser(t)
	h := newHarness(t, stub.Handler(), "not-a-valid-token")
	m := h.manager(t, cart.Options{})

	m.AddToCart(context.Background(), "p1", 1, "M")

	assert.Equal(t, []string{"/login"}, h.navs.Paths())
	assert.Equal(t, []string{cart.MsgSessionExpired}, h.notes.Messages(notify.KindInfo))
	assert.Empty(t, h.notes.Messages(notify.KindError))
}

func TestRefreshFailureMarksStale(t *testing.T) {
	var broken bool
	var mu sync.Mutex

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		if broken {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[{"productId":"p1","size":"M","quantity":1,"price":1000}],"totalAmount":1000}`)
	})

	h := newHarness(t, handler, "tok123")
	m := h.manager(t, cart.Options{})
	before := m.Snapshot()
	require.False(t, m.Stale())

	mu.Lock()
	broken = true
	mu.Unlock()

	m.Refresh(context.Background())

	assert.True(t, m.Stale())
	assert.Equal(t, before, m.Snapshot())
	assert.Empty(t, h.notes.All())

	mu.Lock()
	broken = false
	mu.Unlock()

	m.Refresh(context.Background())
	assert.False(t, m.Stale())
}

func TestReset(t *testing.T) {
	stub, token := stubWithUser(t)
	h := newHarness(t, stub.Handler(), token)
	m := h.manager(t, cart.Options{})

	m.AddToCart(context.Background(), "p1", 1, "M")
	require.False(t, m.Snapshot().IsEmpty())

	require.NoError(t, m.Reset(context.Background()))
	assert.True(t, m.Snapshot().IsEmpty())
}

func TestSnapshotIsACopy(t *testing.T) {
	stub, token := stubWithUser(t)
	h := newHarness(t, stub.Handler(), token)
	m := h.manager(t, cart.Options{})

	m.AddToCart(context.Background(), "p1", 1, "M")

	snap := m.Snapshot()
	snap.Items[0].Quantity = 99

	assert.Equal(t, 1, m.Snapshot().Items[0].Quantity)
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"items":[],"totalAmount":0}`)
			return
		}

		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	rec := &recorder{next: handler}
	srv := httptest.NewServer(rec)
	defer srv.Close()
	defer close(release)

	notes := &testutils.Notifications{}
	client := cartclient.New(config.API{BaseURL: srv.URL, RequestTimeout: 50 * time.Millisecond},
		cartclient.WithHTTPClient(srv.Client()), cartclient.WithLogger(testutils.DiscardLogger()))

	m := cart.New(context.Background(), cart.Deps{
		Session:   testutils.StaticToken("tok123"),
		Client:    client,
		Notifier:  notes,
		Navigator: &testutils.Navigations{},
		Logger:    testutils.DiscardLogger(),
	}, cart.Options{})

	m.AddToCart(context.Background(), "p1", 1, "M")

	assert.False(t, m.Busy())
	assert.Equal(t, []string{cart.MsgAddFailed}, notes.Messages(notify.KindError))
}
