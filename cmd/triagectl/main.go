// Command triagectl is the client side of the triage pipeline: it captures a
// photo from a file or camera, submits it online or queues it offline,
// replays the queue when the server is reachable, and shows stored results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-triage-backend/internal/client"
	"github.com/tbourn/go-triage-backend/internal/config"
	"github.com/tbourn/go-triage-backend/internal/observability"
	"github.com/tbourn/go-triage-backend/internal/offline"
	"github.com/tbourn/go-triage-backend/internal/repo"
	"github.com/tbourn/go-triage-backend/internal/sysutil"
)

var version = "dev"

// app holds what the subcommands share. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	server   string
	token    string
	dbPath   string
	logLevel string

	log     zerolog.Logger
	db      *gorm.DB
	api     *client.Client
	queue   *offline.Queue
	results *offline.Results

	shutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "triagectl",
		Short:         "Capture, submit, and replay skin analyses against the triage API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["standalone"] == "true" {
				return nil
			}
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.server, "server", envOr("TRIAGE_SERVER", "http://localhost:8080"), "API server base URL")
	pf.StringVar(&a.token, "token", os.Getenv("TRIAGE_TOKEN"), "bearer token for the API")
	pf.StringVar(&a.dbPath, "db", envOr("TRIAGE_DB", "triagectl.db"), "local state database")
	pf.StringVar(&a.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "debug|info|warn|error")

	root.AddCommand(
		newAnalyzeCmd(a),
		newReplayCmd(a),
		newWatchCmd(a),
		newQueueCmd(a),
		newResultsCmd(a),
		newChatCmd(a),
		newTokenCmd(),
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	sysutil.SetLogLevel(a.logLevel)
	a.log = sysutil.NewLogger(os.Stderr, true)

	a.shutdown = func(context.Context) error { return nil }
	if cfg, err := config.Load(); err == nil && cfg.OTEL.Enabled {
		shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version, observability.RoleClient)
		if err != nil {
			a.log.Warn().Err(err).Msg("tracing disabled")
		} else {
			a.shutdown = shutdown
		}
	}

	db, err := repo.OpenSQLite(a.dbPath, repo.WithCreateDir(), repo.WithMaxConns(1), repo.WithQuietLogger())
	if err != nil {
		return fmt.Errorf("open local state: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate local state: %w", err)
	}
	a.db = db

	a.api = client.New(a.server, client.WithToken(a.token))
	a.queue = offline.NewQueue(offline.NewSQLiteCollection[offline.QueuedRequest](db, offline.KeyPendingQueue))
	a.results = offline.NewResults(offline.NewSQLiteCollection[offline.StoredResult](db, offline.KeyResults))
	return nil
}

func (a *app) close() error {
	if err := repo.Close(a.db); err != nil {
		a.log.Warn().Err(err).Msg("close local state")
	}
	if a.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.shutdown(ctx)
}

// connectivity probes the server once and returns the tracker seeded with
// the outcome.
func (a *app) connectivity(ctx context.Context) *offline.Connectivity {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := a.api.Health(pctx)
	if err != nil {
		a.log.Info().Err(err).Msg("server unreachable")
	}
	return offline.NewConnectivity(err == nil)
}

func envOr(k, def string) string {
	return sysutil.FirstNonEmpty(os.Getenv(k), def)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
