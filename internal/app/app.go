// Package app wires the portal's components together.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/existflow/learnportal/internal/api"
	"github.com/existflow/learnportal/internal/auth"
	"github.com/existflow/learnportal/internal/config"
	"github.com/existflow/learnportal/internal/db"
	"github.com/existflow/learnportal/internal/logger"
	"github.com/existflow/learnportal/internal/oauth"
	"github.com/existflow/learnportal/internal/progress"
	"github.com/existflow/learnportal/internal/store"
)

// App is the application state shared by the CLI and the TUI
type App struct {
	Config   *config.Config
	Store    store.Store
	API      *api.Client
	Auth     *auth.Manager
	Progress *progress.Tracker

	closeStore func() error
}

// New opens the SQLite store from cfg and restores the previous session.
// A nil nav prints the sign-in URL and opens the system browser.
func New(ctx context.Context, cfg *config.Config, nav auth.Navigator) (*App, error) {
	database, err := db.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if nav == nil {
		nav = oauth.BrowserNavigator{Out: os.Stdout, OpenBrowser: true}
	}
	a, err := NewWithStore(ctx, cfg, database, nav)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	a.closeStore = database.Close
	return a, nil
}

// NewWithStore builds an App on an existing store and navigator
func NewWithStore(ctx context.Context, cfg *config.Config, st store.Store, nav auth.Navigator) (*App, error) {
	a := &App{
		Config: cfg,
		Store:  st,
	}

	a.API = api.New(cfg.ServerURL,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithTokenSource(func() string { return a.Auth.Token() }),
	)
	a.Auth = auth.New(a.API, st, cfg.Origin, nav)

	total := cfg.TotalTopics
	if total <= 0 {
		total = progress.DefaultTotalTopics
	}
	a.Progress = progress.New(st, total)

	// the tracker must be subscribed before hydration to see the restored identity
	a.Auth.OnIdentityChange(a.Progress.Observe)

	if err := a.Auth.Hydrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	return a, nil
}

// CallbackServer creates a listener on the configured origin that completes
// Google sign-in through this app's session manager
func (a *App) CallbackServer() (*oauth.CallbackServer, error) {
	return oauth.NewCallbackServer(a.Config.Origin, a.Auth, a.Auth)
}

// Close releases the store
func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	err := a.closeStore()
	logger.Info("Store closed")
	return err
}
