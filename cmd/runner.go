// submodule cmd contains command definitions
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rythmize/rythmize/internal/repositories"
	"github.com/rythmize/rythmize/internal/server"
	"github.com/rythmize/rythmize/internal/services"
	"github.com/rythmize/rythmize/internal/shared"
	"github.com/rythmize/rythmize/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner wires configuration into commands.
type Runner struct {
	logger *log.Logger
}

// NewRunner creates a Runner with the given logger.
func NewRunner(logger *log.Logger) *Runner {
	return &Runner{logger: logger}
}

// register returns the CLI command tree.
func (r *Runner) register() []*cli.Command {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}

	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Start the HTTP API server",
			Flags:  []cli.Flag{configFlag},
			Action: r.Serve,
		},
		{
			Name:  "setup",
			Usage: "Create a starter config.toml",
			Flags: []cli.Flag{configFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				path := cmd.String("config")
				if err := shared.CreateConfigFile(path); err != nil {
					return err
				}
				r.logger.Info("config created", "path", path)
				return nil
			},
		},
		{
			Name:  "migrate",
			Usage: "Apply database migrations",
			Flags: []cli.Flag{
				configFlag,
				&cli.BoolFlag{
					Name:  "rollback",
					Usage: "Roll back the most recent migration",
				},
			},
			Action: r.Migrate,
		},
	}
}

// loadConfig reads and validates the configuration file.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	config, err := shared.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Serve starts the HTTP API server and blocks until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		return err
	}

	cipher, err := shared.NewCipher(config.App.SecretKey)
	if err != nil {
		return err
	}

	store := repositories.NewCredentialRepository(db, cipher)
	authenticator, err := services.NewAuthenticator(config.Credentials.Spotify, store)
	if err != nil {
		return err
	}

	client := services.NewSpotifyClient()
	engine := tasks.NewTransferEngine(client)

	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	server.NewAPI(r.logger, authenticator, client, engine).Register(router)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-stop:
		r.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Migrate applies (or rolls back) database migrations.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	config, err := shared.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		r.logger.Info("rolled back most recent migration")
		return nil
	}

	if err := shared.RunMigrations(db); err != nil {
		return err
	}
	r.logger.Info("migrations applied")
	return nil
}
