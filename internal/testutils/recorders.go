package testutils

import (
	"context"
	"sync"

	"github.com/exora/cart-session/internal/notify"
)

// Notifications records every notification raised through Notify.
type Notifications struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (n *Notifications) Notify(kind notify.Kind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.items = append(n.items, notify.Notification{Kind: kind, Message: message})
}

func (n *Notifications) All() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]notify.Notification(nil), n.items...)
}

func (n *Notifications) Messages(kind notify.Kind) []string {
	var out []string
	for _, item := range n.All() {
		if item.Kind == kind {
			out = append(out, item.Message)
		}
	}

	return out
}

func (n *Notifications) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.items = nil
}

// Navigations records the paths passed to Navigate.
type Navigations struct {
	mu    sync.Mutex
	paths []string
}

func (n *Navigations) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.paths = append(n.paths, path)
}

func (n *Navigations) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.paths...)
}

// StaticToken is a token source with a fixed value; empty means logged out.
type StaticToken string

func (s StaticToken) Token(_ context.Context) (string, bool) {
	return string(s), s != ""
}
