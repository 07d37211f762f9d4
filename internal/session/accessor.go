package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/exora/cart-session/internal/models"
)

// Accessor reads and writes the bearer token and cached profile. Reads never
// fail: a storage error is logged and reported as an absent value.
type Accessor struct {
	store  Store
	logger *slog.Logger
}

func NewAccessor(store Store, logger *slog.Logger) *Accessor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Accessor{store: store, logger: logger.With(slog.String("component", "session"))}
}

func (a *Accessor) Token(ctx context.Context) (string, bool) {

	token, ok, err := a.store.Get(ctx, TokenKey)
	if err != nil {
		a.logger.Warn("Failed to read session token", slog.String("error", err.Error()))
		return "", false
	}

	if !ok || token == "" {
		return "", false
	}

	return token, true
}

func (a *Accessor) Profile(ctx context.Context) (*models.UserProfile, bool) {

	raw, ok, err := a.store.Get(ctx, UserKey)
	if err != nil {
		a.logger.Warn("Failed to read user profile", slog.String("error", err.Error()))
		return nil, false
	}

	if !ok || raw == "" {
		return nil, false
	}

	var profile models.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		a.logger.Warn("Stored user profile is not valid JSON", slog.String("error", err.Error()))
		return nil, false
	}

	return &profile, true
}

// Role prefers the role key and falls back to the profile type.
func (a *Accessor) Role(ctx context.Context) string {

	role, ok, err := a.store.Get(ctx, RoleKey)
	if err == nil && ok && role != "" {
		return role
	}

	if profile, ok := a.Profile(ctx); ok {
		return profile.Type
	}

	return ""
}

// Save persists a session. Only the login flow calls it.
func (a *Accessor) Save(ctx context.Context, s models.Session) error {

	if s.Token == "" {
		return fmt.Errorf("session token cannot be empty")
	}

	profile, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("failed to marshal user profile: %w", err)
	}

	if err := a.store.Set(ctx, TokenKey, s.Token); err != nil {
		return err
	}

	if err := a.store.Set(ctx, UserKey, string(profile)); err != nil {
		return err
	}

	if err := a.store.Set(ctx, RoleKey, s.User.Type); err != nil {
		return err
	}

	a.logger.Info("Session saved", slog.String("role", s.User.Type))
	return nil
}

func (a *Accessor) Clear(ctx context.Context) {

	if err := a.store.Delete(ctx, TokenKey, UserKey, RoleKey); err != nil {
		a.logger.Warn("Failed to clear session", slog.String("error", err.Error()))
		return
	}

	a.logger.Info("Session cleared")
}
