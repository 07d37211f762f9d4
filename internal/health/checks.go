package health

import (
	"context"
	"fmt"
	"time"

	"github.com/exora/cart-session/internal/config"
	"github.com/hellofresh/health-go/v5"
	healthRedis "github.com/hellofresh/health-go/v5/checks/redis"
)

const Version = "1.0.0"

type Pinger interface {
	Ping(ctx context.Context) error
}

type Endpoints struct {
	CartAPI Pinger
}

// NewHealthHandler checks the cart API when a pinger is given and redis when
// sessions live there.
func NewHealthHandler(cfg *config.Config, endpoints *Endpoints) (*health.Health, error) {

	var checks []health.Config

	if endpoints != nil && endpoints.CartAPI != nil {
		checks = append(checks, health.Config{
			Name:      "cart-api",
			Timeout:   cfg.API.RequestTimeout,
			SkipOnErr: false,
			Check: func(ctx context.Context) error {
				if err := endpoints.CartAPI.Ping(ctx); err != nil {
					return fmt.Errorf("failed to reach cart api: %w", err)
				}
				return nil
			},
		})
	}

	if cfg.Session.Driver == config.SessionDriverRedis {
		checks = append(checks, health.Config{
			Name:      "redis",
			Timeout:   2 * time.Second,
			SkipOnErr: false,
			Check: healthRedis.New(healthRedis.Config{
				DSN: cfg.RedisConnect.GetDSN(),
			}),
		})
	}

	h, err := health.New(
		health.WithComponent(health.Component{
			Name:    cfg.OTel.ServiceName,
			Version: Version,
		}),
		health.WithChecks(checks...),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create health instance: %w", err)
	}

	return h, nil
}
