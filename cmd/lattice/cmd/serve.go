package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/config"
	"github.com/lattice-lang/lattice/internal/health"
	"github.com/lattice-lang/lattice/internal/parser"
	"github.com/lattice-lang/lattice/internal/rest"
	"github.com/lattice-lang/lattice/pkg/logging"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var addr string
	var workers bool

	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Serve an application over HTTP",
		Long: `Serve an application document: rest-exposed functions become
endpoints, routes render their components, and declared jobs run on the
background worker.

The server drains on SIGINT/SIGTERM.`,
		Args: cobra.ExactArgs(1),
		Example: `  lattice serve shop.ltc
  lattice serve shop.ltc --addr :9090 --workers=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args[0], addr, workers)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&workers, "workers", true, "run the background job worker")
	return cmd
}

func runServe(cmd *cobra.Command, filename, addr string, workers bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	logger.SetDefault()

	node, err := parser.ParseFile(filename)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	app, ok := node.(*ast.Application)
	if !ok {
		return fmt.Errorf("serve: %s is not an application document", filename)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStack(ctx, cfg, app, workers)
	if err != nil {
		return err
	}
	defer st.Close()

	if workers {
		for _, sched := range app.Schedules {
			if err := st.sched.ScheduleCron(ctx, sched); err != nil {
				return err
			}
		}
	}

	checks := health.NewRegistry(Version)
	checks.Register(health.NewPingChecker("datasources", st.sources, true))

	if addr == "" {
		addr = cfg.Server.Addr
	}
	server := rest.New(rest.Config{
		Addr:           addr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		Auth: rest.AuthConfig{
			Secret: cfg.Server.JWTSecret,
			Issuer: cfg.Server.JWTIssuer,
		},
	}, st.runtime, rest.WithHealth(checks))
	if err := server.MountApplication(app); err != nil {
		return err
	}

	workerDone := make(chan error, 1)
	if workers {
		go func() { workerDone <- st.sched.Run(ctx) }()
	} else {
		close(workerDone)
	}

	serveErr := server.Start(ctx)
	stop()
	if workerErr := <-workerDone; workerErr != nil && serveErr == nil {
		serveErr = workerErr
	}
	return serveErr
}
