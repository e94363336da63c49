package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/telekom/deploy-auditlog/pkg/audit"
	"github.com/telekom/deploy-auditlog/pkg/cli"
	"github.com/telekom/deploy-auditlog/pkg/config"
	"github.com/telekom/deploy-auditlog/pkg/metrics"
	"github.com/telekom/deploy-auditlog/pkg/orchestrator"
	"github.com/telekom/deploy-auditlog/pkg/system"
	"github.com/telekom/deploy-auditlog/pkg/telemetry"
	"github.com/telekom/deploy-auditlog/pkg/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCommand()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	var flags *cli.Config

	root := &cobra.Command{
		Use:          "deploy-auditlog",
		Short:        "Publish deployment audit records to Kafka",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, flags)
		},
	}
	flags = cli.BindFlags(root.Flags())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show deploy-auditlog version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()
			writer := cmd.OutOrStdout()

			switch outputFormat {
			case "json":
				encoder := json.NewEncoder(writer)
				encoder.SetIndent("", "  ")
				return encoder.Encode(info)
			case "yaml":
				data, err := yaml.Marshal(info)
				if err != nil {
					return fmt.Errorf("failed to marshal to YAML: %w", err)
				}
				_, _ = fmt.Fprint(writer, string(data))
				return nil
			case "":
				_, _ = fmt.Fprintln(writer, info.String())
				return nil
			default:
				return fmt.Errorf("unknown output format %q", outputFormat)
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: json, yaml")

	return cmd
}

func serve(ctx context.Context, flags *cli.Config) error {
	zl, err := system.NewLogger(flags.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	// Retry diagnostics log through the global logger.
	defer zap.ReplaceGlobals(zl)()

	log := zl.Sugar()
	log.With("version", version.Version).Info("Starting deploy-auditlog")
	flags.Print(log)

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Errorw("Error loading config", "error", err)
		return err
	}
	if flags.MetricsAddr != "" {
		cfg.Metrics.ListenAddress = flags.MetricsAddr
	}

	_, shutdownTracing, err := telemetry.Init(ctx, cfg.TelemetryOptions(version.Version, log))
	if err != nil {
		log.Errorw("Error initializing tracing", "error", err)
		return err
	}
	defer func() {
		if terr := shutdownTracing(context.Background()); terr != nil {
			log.Warnw("Error shutting down tracing", "error", terr)
		}
	}()

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return err
	}
	client, err := orchestrator.NewClient(clientCfg, zl)
	if err != nil {
		log.Errorw("Error creating orchestrator client", "error", err)
		return err
	}

	auditCfg, err := cfg.AuditConfig()
	if err != nil {
		log.Errorw("Error building audit configuration", "error", err)
		return err
	}

	dispatcher := orchestrator.NewDispatcher(zl)
	handle := audit.Start(auditCfg, audit.Dependencies{
		Stores: audit.Stores{
			Deployments:    client,
			Topologies:     client,
			MetaProperties: client,
			Types:          client,
		},
		Events: dispatcher,
	}, zl)

	var source *orchestrator.NATSSource
	if cfg.Events.NATSURL != "" {
		source, err = orchestrator.NewNATSSource(cfg.NATSSourceConfig(), dispatcher, zl)
		if err == nil {
			err = source.Start(ctx)
		}
		if err != nil {
			audit.Stop(handle)
			log.Errorw("Error starting event source", "error", err)
			return err
		}
	} else {
		log.Warn("events.natsURL is not configured, no lifecycle events will be received")
	}

	server := &http.Server{
		Addr:              cfg.Metrics.ListenAddress,
		Handler:           newMux(handle),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Serving metrics and health endpoints", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err = <-serverErr:
		log.Errorw("Metrics server failed", "error", err)
	}

	if source != nil {
		if cerr := source.Close(); cerr != nil {
			log.Warnw("Error closing event source", "error", cerr)
		}
	}
	audit.Stop(handle)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Warnw("Error shutting down metrics server", "error", serr)
	}
	return err
}

type healthChecker interface {
	HealthCheck() error
}

func newMux(health healthChecker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if err := health.HealthCheck(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
