package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/internal/config"
	"github.com/woodshed-orlando/kinkos/pkg/clients/gmailclient"
	"github.com/woodshed-orlando/kinkos/pkg/clients/sheetsclient"
	"github.com/woodshed-orlando/kinkos/pkg/clients/slackclient"
	"github.com/woodshed-orlando/kinkos/pkg/core/services"
	"github.com/woodshed-orlando/kinkos/pkg/db"
	"github.com/woodshed-orlando/kinkos/pkg/memstore"
	"github.com/woodshed-orlando/kinkos/pkg/postgres"
)

var errNoDatabaseURL = errors.New("databaseURL is not configured (set it in the config file or KINKOS_DATABASE_URL, or use --in-memory)")

// AppContext holds the application dependencies shared across all commands.
// Database and Google clients are opened on first use so commands that do not
// need them never trigger a connection or an OAuth flow.
type AppContext struct {
	Env      string
	InMemory bool
	Cfg      *config.Config
	Logger   *zap.Logger
	Ctx      context.Context

	database     db.Database
	pg           *postgres.DB
	sheetsClient *sheetsclient.Client
	gmailClient  *gmailclient.Client
}

// Database returns the configured store, connecting on first call
func (a *AppContext) Database() (db.Database, error) {
	if a.database != nil {
		return a.database, nil
	}

	if a.InMemory {
		a.Logger.Warn("Using in-memory store, data will be lost on exit")
		a.database = memstore.New()
		return a.database, nil
	}

	pg, err := a.Postgres()
	if err != nil {
		return nil, err
	}
	a.database = pg
	return a.database, nil
}

// Postgres returns the PostgreSQL store, connecting on first call
func (a *AppContext) Postgres() (*postgres.DB, error) {
	if a.pg != nil {
		return a.pg, nil
	}
	if a.Cfg.DatabaseURL == "" {
		return nil, errNoDatabaseURL
	}

	a.Logger.Info("Connecting to database")
	pg, err := postgres.NewDB(a.Ctx, a.Cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.Logger.Debug("Database connected")

	a.pg = pg
	return a.pg, nil
}

// SheetsClient authorizes against Google on first call
func (a *AppContext) SheetsClient() (*sheetsclient.Client, error) {
	if a.sheetsClient != nil {
		return a.sheetsClient, nil
	}

	a.Logger.Info("Loading OAuth client configuration")
	oauthCfg, err := config.LoadOAuthClientWithEnv(a.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	a.Logger.Info("Initializing sheets client")
	client, err := sheetsclient.NewClient(a.Ctx, oauthCfg, a.Env, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	a.Logger.Debug("Sheets client initialized successfully")

	a.sheetsClient = client
	return a.sheetsClient, nil
}

// GmailClient reuses the sheets client's OAuth token
func (a *AppContext) GmailClient() (*gmailclient.Client, error) {
	if a.gmailClient != nil {
		return a.gmailClient, nil
	}

	sheets, err := a.SheetsClient()
	if err != nil {
		return nil, err
	}
	oauthCfg, err := config.LoadOAuthClientWithEnv(a.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	a.Logger.Info("Initializing gmail client")
	client, err := gmailclient.NewClient(a.Ctx, oauthCfg, sheets.Token(), a.Cfg.GmailSender)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	a.Logger.Debug("Gmail client initialized successfully")

	a.gmailClient = client
	return a.gmailClient, nil
}

// Notifier returns the Slack staff notifier, or nil when Slack is not configured
func (a *AppContext) Notifier() services.StaffNotifier {
	if a.Cfg.SlackToken == "" {
		return nil
	}
	return slackclient.NewClient(a.Cfg.SlackToken, a.Cfg.SlackChannel)
}

// Close releases the database connection if one was opened
func (a *AppContext) Close() {
	if a.pg != nil {
		a.pg.Close()
	}
}
