package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/exora/cart-session/internal/cart"
	"github.com/exora/cart-session/internal/cartclient"
	"github.com/exora/cart-session/internal/config"
	"github.com/exora/cart-session/internal/models"
	"github.com/exora/cart-session/internal/notify"
	"github.com/exora/cart-session/internal/session"
	"github.com/exora/cart-session/internal/telemetry"
)

// app is everything one CLI invocation needs, built once per run.
type app struct {
	cfg      *config.Config
	out      io.Writer
	store    session.Store
	session  *session.Accessor
	client   *cartclient.Client
	relay    *notify.Relay
	shutdown telemetry.ShutdownFunc

	// the container is built lazily so session commands never hit the API
	manager *cart.Manager
	// last path the container navigated to
	navigated string
	failed    bool
	closed    bool
}

func newApp(ctx context.Context, path, token string, out io.Writer) (*app, error) {

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.InitTracer(ctx, cfg.OTel)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	accessor := session.NewAccessor(store, logger)

	// a --token run lives only in this process
	if token != "" {
		if cfg.Session.Driver == config.SessionDriverRedis {
			store.Close()
			store = session.NewMemoryStore()
			accessor = session.NewAccessor(store, logger)
		}

		if err := accessor.Save(ctx, models.Session{Token: token, User: models.UserProfile{Type: "customer"}}); err != nil {
			return nil, err
		}
	}

	a := &app{
		cfg:      cfg,
		out:      out,
		store:    store,
		session:  accessor,
		client:   cartclient.New(cfg.API, cartclient.WithLogger(logger)),
		shutdown: shutdown,
	}

	a.relay = notify.NewRelay(notify.WriterSink(out), notify.LogSink(logger), func(n notify.Notification) {
		if n.Kind == notify.KindError {
			a.failed = true
		}
	})

	return a, nil
}

func openStore(cfg *config.Config) (session.Store, error) {

	if cfg.Session.Driver != config.SessionDriverRedis {
		return session.NewMemoryStore(), nil
	}

	client, err := session.NewRedisClient(&cfg.RedisConnect)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	return session.NewRedisStore(client, cfg.Session.KeyPrefix), nil
}

func (a *app) Cart(ctx context.Context) *cart.Manager {

	if a.manager != nil {
		return a.manager
	}

	a.manager = cart.New(ctx, cart.Deps{
		Session:  a.session,
		Client:   a.client,
		Notifier: a.relay,
		Navigator: cart.NavigatorFunc(func(path string) {
			a.navigated = path
			fmt.Fprintf(a.out, "→ %s\n", path)
		}),
		Logger: slog.Default(),
	}, cart.OptionsFromConfig(a.cfg.Cart))

	return a.manager
}

var errNotDone = errors.New("cart operation did not complete")

// result turns the container's notifications into an exit status.
func (a *app) result() error {
	if a.failed || a.navigated == a.cfg.Cart.LoginPath {
		return errNotDone
	}

	return nil
}

// logout forgets the session and drops whatever the container still holds.
func (a *app) logout(ctx context.Context) error {

	a.session.Clear(ctx)

	if a.manager == nil {
		return nil
	}

	return a.manager.Reset(ctx)
}

func (a *app) Close(ctx context.Context) error {

	if a.closed {
		return nil
	}
	a.closed = true

	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close session store", slog.String("error", err.Error()))
	}

	if err := a.shutdown(ctx); err != nil {
		return fmt.Errorf("failed to flush traces: %w", err)
	}

	return nil
}
