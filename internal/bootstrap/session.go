package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/leadforge/sessionkit/config"
	"github.com/leadforge/sessionkit/internal/adapters/fragment"
	"github.com/leadforge/sessionkit/internal/adapters/identity"
	"github.com/leadforge/sessionkit/internal/service"
)

// Version is the SDK version reported in the X-Client-Info header.
const Version = "0.1.0"

// App bundles the wired session manager with the resources it owns.
type App struct {
	Manager  *service.Manager
	Backends *Backends
	Logger   *slog.Logger
}

// Close releases storage resources.
func (a *App) Close() error {
	return a.Backends.Close()
}

// NewApp wires configuration into a ready session manager. Each instance
// gets a unique client id so provider-side logs can tell installs apart.
func NewApp(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*App, error) {
	instanceID := uuid.NewString()
	logger = logger.With("client_id", instanceID)

	backends, err := NewBackends(ctx, &cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	identityClient, err := identity.NewClient(identity.Config{
		BaseURL:    cfg.Identity.BaseURL,
		APIKey:     cfg.Identity.APIKey,
		ClientInfo: fmt.Sprintf("sessionkit-go/%s (%s)", Version, instanceID),
		Timeout:    cfg.Identity.Timeout,
	})
	if err != nil {
		backends.Close()
		return nil, fmt.Errorf("init identity client: %w", err)
	}

	store := service.NewStore(service.StoreOptions{
		Durable:   backends.Durable,
		Ephemeral: backends.Ephemeral,
		Logger:    logger,
	})

	manager := service.NewManager(service.ManagerOptions{
		Identity: identityClient,
		Store:    store,
		Fragment: fragment.NewCapture(nil),
		Logger:   logger,
	})

	return &App{Manager: manager, Backends: backends, Logger: logger}, nil
}
