// Command starlane runs one Starlane star: it synchronizes and installs the
// configured Foundation, opens the SQL-backed global registry, and serves
// the control-port HTTP surface (health probes, metrics, and the Global
// Command Executor's command endpoint).
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	slerrors "github.com/R3E-Network/starlane/infrastructure/errors"
	"github.com/R3E-Network/starlane/infrastructure/logging"
	slmetrics "github.com/R3E-Network/starlane/infrastructure/metrics"
	slmiddleware "github.com/R3E-Network/starlane/infrastructure/middleware"
	"github.com/R3E-Network/starlane/infrastructure/service"
	"github.com/R3E-Network/starlane/internal/base/dependency"
	"github.com/R3E-Network/starlane/internal/base/foundation"
	"github.com/R3E-Network/starlane/internal/base/platform"
	"github.com/R3E-Network/starlane/internal/base/provider"
	"github.com/R3E-Network/starlane/internal/config"
	"github.com/R3E-Network/starlane/internal/executor"
	"github.com/R3E-Network/starlane/internal/kind"
	"github.com/R3E-Network/starlane/internal/platform/migrations"
	"github.com/R3E-Network/starlane/internal/point"
	"github.com/R3E-Network/starlane/internal/registry"
	"github.com/R3E-Network/starlane/pkg/pgnotify"
	"github.com/R3E-Network/starlane/pkg/version"
)

// statusBusChannel is the postgres NOTIFY channel every star in a multi-star
// deployment shares for Foundation status broadcast.
const statusBusChannel = "starlane_foundation_status"

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 success, 1 unrecoverable platform
// failure, 2 invalid configuration, 3 foundation install failed with an
// ActionRequired.
func run() int {
	configPath := flag.String("config", "starlane.yaml", "path to the Starlane configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.FullVersion())
		return 0
	}

	logger := logging.NewFromEnv("starlane")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 2
	}

	fcfg, err := buildFoundationConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 2
	}

	db, err := sql.Open("postgres", registryDSN(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open registry database: %v\n", err)
		return 1
	}
	defer db.Close()

	globalRegistry := registry.NewSQLRegistry(db)

	statusBus, err := pgnotify.NewWithDB(db, registryDSN(cfg))
	if err != nil {
		logger.WithError(err).Error("connect status bus")
		return 1
	}
	defer statusBus.Close()

	var found foundation.Foundation
	switch fcfg.Kind {
	case foundation.KindDockerDaemon:
		found = foundation.NewSafety(
			foundation.NewDockerDaemon(fcfg, globalRegistry).
				WithLogger(logger).
				WithStatusBus(statusBus, statusBusChannel),
		)
	default:
		fmt.Fprintf(os.Stderr, "invalid configuration: unsupported foundation kind %q\n", fcfg.Kind)
		return 2
	}

	progress := func(msg string) { logger.Info(ctx, msg, nil) }

	if err := found.Synchronize(ctx, progress); err != nil {
		logger.WithError(err).Error("synchronize foundation")
		return 1
	}
	if err := found.Install(ctx, progress); err != nil {
		if slerrors.Is(err, slerrors.CodePending) {
			fmt.Fprintf(os.Stderr, "foundation install requires operator action: %v\n", err)
			return 3
		}
		logger.WithError(err).Error("install foundation")
		return 1
	}

	if err := migrations.Apply(ctx, db); err != nil {
		logger.WithError(err).Error("apply registry migrations")
		return 1
	}

	plat := platform.New(cfg, found, globalRegistry, nil, nil)

	star := point.MustNew(fmt.Sprintf("Mesh<%s>", cfg.Context))
	prov := &executor.StarAssigningProvisioner{Registry: globalRegistry, Star: star}
	exec := executor.New(globalRegistry, plat, prov)

	probes := service.NewProbeManager(10 * time.Second)
	probes.SetLive(true)

	router := chi.NewRouter()
	router.Use(slmiddleware.LoggingMiddleware(logger))
	router.Use(slmiddleware.NewRecoveryMiddleware(logger).Handler)
	router.Use(slmiddleware.NewTimeoutMiddleware(30 * time.Second).Handler)
	router.Use(slmiddleware.NewBodyLimitMiddleware(1 << 20).Handler)

	router.Get("/healthz/live", probes.LivenessHandler())
	router.Get("/healthz/ready", probes.ReadinessHandler())
	router.Get("/healthz/startup", probes.StartupHandler())
	router.Post("/command", exec.HTTPHandler())

	if slmetrics.Enabled() {
		m := slmetrics.Init("starlane")
		router.Use(slmiddleware.MetricsMiddleware("starlane", m))
		router.Handle("/metrics", promhttp.Handler())
	}

	probes.SetReady(true)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ControlPort),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdown := slmiddleware.NewGracefulShutdown(srv, 30*time.Second)
	shutdown.OnShutdown(func() { probes.SetReady(false) })
	shutdown.ListenForSignals()

	logger.Info(ctx, fmt.Sprintf("starlane control port listening on :%d", cfg.ControlPort), nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("control port server error")
		return 1
	}
	shutdown.Wait()
	return 0
}

// registryDSN resolves the postgres connection string for the global
// registry, whether it is Foundation-managed (Embedded) or
// externally-managed.
func registryDSN(cfg *config.Config) string {
	if cfg.Registry.External != nil {
		return cfg.Registry.External.DSN()
	}
	e := cfg.Registry.Embedded
	return fmt.Sprintf("host=localhost port=%d user=%s password=%s dbname=starlane sslmode=disable",
		e.Port, e.Username, e.Password)
}

// buildFoundationConfig translates the YAML-sourced config.FoundationConfig
// into foundation.Config, retyping string-keyed maps into the Kind types
// the base/foundation package expects.
func buildFoundationConfig(cfg *config.Config) (foundation.Config, error) {
	fk, err := parseFoundationKind(cfg.Foundation.Kind)
	if err != nil {
		return foundation.Config{}, err
	}

	deps := make(map[dependency.Kind]dependency.Config, len(cfg.Foundation.Dependencies))
	for name, dc := range cfg.Foundation.Dependencies {
		requires := make([]kind.Kind, 0, len(dc.Requires))
		for _, r := range dc.Requires {
			requires = append(requires, kind.Kind{Base: kind.Base(r)})
		}
		providers := make(map[provider.Kind]provider.Config, len(dc.Providers))
		for pname, pc := range dc.Providers {
			providers[provider.Kind(pname)] = provider.Config{
				Mode:   providerMode(pc.Mode),
				Values: providerValues(pc),
			}
		}
		deps[dependency.Kind(name)] = dependency.Config{
			Kind:      dependency.Kind(dc.Kind),
			Requires:  requires,
			Providers: providers,
		}
	}

	required := make([]kind.Kind, 0, len(cfg.Foundation.Required))
	for _, r := range cfg.Foundation.Required {
		required = append(required, kind.Kind{Base: kind.Base(r)})
	}

	return foundation.Config{Kind: fk, Required: required, Dependencies: deps}, nil
}

func parseFoundationKind(k config.FoundationKind) (foundation.Kind, error) {
	switch k {
	case config.FoundationDockerDaemon:
		return foundation.KindDockerDaemon, nil
	default:
		return "", fmt.Errorf("unsupported foundation kind %q", k)
	}
}

func providerMode(mode string) provider.ConfigMode {
	if mode == "create" {
		return provider.ModeCreate
	}
	return provider.ModeUtilize
}

func providerValues(pc config.ProviderConfig) map[string]string {
	values := make(map[string]string, len(pc.Properties)+5)
	if pc.Image != "" {
		values["image"] = pc.Image
	}
	if pc.Port != 0 {
		values["port"] = strconv.Itoa(pc.Port)
	}
	if pc.Username != "" {
		values["username"] = pc.Username
	}
	if pc.Password != "" {
		values["password"] = pc.Password
	}
	if pc.DataDir != "" {
		values["data_dir"] = pc.DataDir
	}
	for k, v := range pc.Properties {
		values[k] = v
	}
	return values
}
