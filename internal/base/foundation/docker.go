package foundation

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/R3E-Network/starlane/internal/base/dependency"
	"github.com/R3E-Network/starlane/internal/base/provider"
	slerrors "github.com/R3E-Network/starlane/infrastructure/errors"
	"github.com/R3E-Network/starlane/infrastructure/logging"
	"github.com/R3E-Network/starlane/infrastructure/resilience"
	"github.com/R3E-Network/starlane/infrastructure/security"
	"github.com/R3E-Network/starlane/internal/kind"
	"github.com/R3E-Network/starlane/internal/registry"
	"github.com/R3E-Network/starlane/internal/status"
	"github.com/R3E-Network/starlane/pkg/pgnotify"
)

// DockerDaemon is the built-in Foundation that pulls images and creates
// named containers, per provider, with stable credentials and persistent
// mounts. No repo in the pack imports a Docker SDK, so this foundation
// drives the `docker` CLI via os/exec rather than fabricate an unlisted
// dependency (see DESIGN.md).
type DockerDaemon struct {
	base
	binary string
	logger *logging.Logger
	cb     *resilience.CircuitBreaker
}

// WithLogger attaches a structured logger; provider operations and phase
// transitions are logged through it when set. Returns the receiver for
// fluent construction.
func (d *DockerDaemon) WithLogger(l *logging.Logger) *DockerDaemon {
	d.logger = l
	return d
}

// WithStatusBus wires this foundation's status Watcher to broadcast over
// postgres LISTEN/NOTIFY; see base.UseStatusBus. Returns the receiver for
// fluent construction; a bus error is logged (if a logger is attached) and
// otherwise swallowed, since cross-process status broadcast is an
// availability enhancement, not a correctness requirement for a single
// star.
func (d *DockerDaemon) WithStatusBus(bus *pgnotify.Bus, channel string) *DockerDaemon {
	if err := d.UseStatusBus(bus, channel); err != nil && d.logger != nil {
		d.logger.WithError(err).Error("wire status bus")
	}
	return d
}

// defaultRequired is DockerDaemon's required Kind set: the daemon itself
// plus the Registry's backing Postgres provider.
func defaultRequired() []kind.Kind {
	return []kind.Kind{
		{Base: kind.BaseNative},
		{Base: kind.BaseDatabase},
	}
}

// NewDockerDaemon builds a DockerDaemon foundation. reg is the registry
// whose backing store this foundation is responsible for bootstrapping.
// Every dependency named in cfg.Dependencies is registered with docker-CLI
// backed Providers, so Install actually drives them instead of finding an
// always-empty dependency set.
func NewDockerDaemon(cfg Config, reg registry.RegistryApi) *DockerDaemon {
	if len(cfg.Required) == 0 {
		cfg.Required = defaultRequired()
	}
	d := &DockerDaemon{
		base:   newBase(KindDockerDaemon, cfg, reg),
		binary: "docker",
		cb: resilience.New(resilience.Config{
			MaxFailures: 3,
			Timeout:     15 * time.Second,
		}),
	}

	for dk, dcfg := range cfg.Dependencies {
		factories := make(map[provider.Kind]dependency.ProviderFactory, len(dcfg.Providers))
		for pk := range dcfg.Providers {
			pk := pk
			factories[pk] = func(pcfg provider.Config) *provider.Provider {
				return d.postgresDockerProvider(pk, pcfg)
			}
		}
		dep := dependency.New(dk, dcfg.Requires, factories, dcfg.Providers)
		d.RegisterDependency(dk, dep)
	}
	return d
}

// postgresDockerProvider builds a Provider whose lifecycle is driven
// entirely through the docker CLI: a named container per ProviderKind,
// probed via `docker inspect` and brought up via `docker run` (or `docker
// start` if the container already exists but is stopped).
func (d *DockerDaemon) postgresDockerProvider(pk provider.Kind, cfg provider.Config) *provider.Provider {
	container := fmt.Sprintf("starlane-%s", strings.ToLower(string(pk)))

	prober := func(ctx context.Context) status.StatusDetail {
		cmd := exec.CommandContext(ctx, d.binary, "inspect", "-f", "{{.State.Running}}", container)
		out, err := cmd.Output()
		if err != nil {
			return status.Unknown(fmt.Sprintf("container %s not found", container))
		}
		if strings.TrimSpace(string(out)) == "true" {
			return status.Ready()
		}
		return status.Unknown(fmt.Sprintf("container %s not running", container))
	}

	starter := func(ctx context.Context) (provider.Handle, error) {
		image := cfg.Values["image"]
		if image == "" {
			image = "postgres:16"
		}
		args := []string{"run", "-d", "--name", container}
		if port := cfg.Values["port"]; port != "" {
			args = append(args, "-p", fmt.Sprintf("%s:5432", port))
		}
		if user := cfg.Values["username"]; user != "" {
			args = append(args, "-e", "POSTGRES_USER="+user)
		}
		if pw := cfg.Values["password"]; pw != "" {
			args = append(args, "-e", "POSTGRES_PASSWORD="+pw)
		}
		if dir := cfg.Values["data_dir"]; dir != "" {
			args = append(args, "-v", dir+":/var/lib/postgresql/data")
		}
		args = append(args, image)

		if d.logger != nil {
			fields := make(map[string]interface{}, len(cfg.Values))
			for k, v := range cfg.Values {
				fields[k] = v
			}
			d.logger.WithFields(security.SanitizeMap(fields)).Debug("starting provider container")
		}

		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, d.binary, args...)
		cmd.Stderr = &stderr
		runErr := cmd.Run()
		if runErr != nil {
			restart := exec.CommandContext(ctx, d.binary, "start", container)
			restartErr := restart.Run()
			if d.logger != nil {
				d.logger.LogProviderOp(ctx, container, "run", runErr)
			}
			if restartErr != nil {
				return nil, fmt.Errorf("docker run %s: %v: %s", container, runErr, stderr.String())
			}
			if d.logger != nil {
				d.logger.LogProviderOp(ctx, container, "start", nil)
			}
			return dockerContainerHandle{daemon: d, container: container}, nil
		}
		if d.logger != nil {
			d.logger.LogProviderOp(ctx, container, "run", nil)
		}
		return dockerContainerHandle{daemon: d, container: container}, nil
	}

	return provider.New(pk, cfg, provider.ManagerFoundation, prober, starter)
}

// dockerContainerHandle is the Handle for a docker-CLI-managed container;
// Close stops (but does not remove) the container.
type dockerContainerHandle struct {
	daemon    *DockerDaemon
	container string
}

func (h dockerContainerHandle) Close(ctx context.Context) error {
	return exec.CommandContext(ctx, h.daemon.binary, "stop", h.container).Run()
}

func dockerPendingAction() *slerrors.ActionRequest {
	return &slerrors.ActionRequest{
		Title:       "Install Docker",
		Description: "Docker daemon is required to host registry-backing providers",
		Items: []slerrors.ActionRequestItem{
			{Text: "Install Docker Desktop", Website: "https://docs.docker.com/get-docker/"},
			{Text: "Start the docker daemon and retry"},
		},
	}
}

// probeDaemon checks daemon reachability through a circuit breaker: once
// MaxFailures consecutive probes fail, further probes short-circuit instead
// of re-shelling out to a daemon that is known to be down.
func (d *DockerDaemon) probeDaemon(ctx context.Context) status.StatusDetail {
	var stderr bytes.Buffer
	err := d.cb.Execute(ctx, func() error {
		stderr.Reset()
		cmd := exec.CommandContext(ctx, d.binary, "info", "--format", "{{.ServerVersion}}")
		cmd.Stderr = &stderr
		return cmd.Run()
	})
	if err != nil {
		return status.Unknown(fmt.Sprintf("docker daemon unreachable: %v: %s", err, stderr.String()))
	}
	return status.Ready()
}

// Synchronize reconciles in-memory status with whether the docker daemon is
// actually reachable. Must be called before Install.
func (d *DockerDaemon) Synchronize(ctx context.Context, progress Progress) error {
	detail := d.probeDaemon(ctx)
	if detail.Unreachable != "" {
		d.publish(ctx, status.Pending(status.PhaseNone, dockerPendingAction()))
		return nil
	}
	d.publish(ctx, detail)
	return nil
}

// Install installs and starts the dependencies needed for the foundation
// itself, minimally the Registry's backing Postgres cluster. Completes only
// once every Provider in required() reports Phase::Ready.
func (d *DockerDaemon) Install(ctx context.Context, progress Progress) error {
	if d.Status().Phase != status.PhaseReady {
		return slerrors.Pending(dockerPendingAction())
	}
	d.mu.Lock()
	deps := make([]*dependency.Dependency, 0, len(d.dependencies))
	for _, dep := range d.dependencies {
		deps = append(deps, dep)
	}
	d.mu.Unlock()

	for _, dep := range deps {
		depKind := dep.Kind()
		if err := dep.Install(ctx, func(status.Phase) {
			if progress != nil {
				progress(fmt.Sprintf("installing %s", depKind))
			}
		}); err != nil {
			if d.logger != nil {
				d.logger.LogFoundationPhase(ctx, string(d.Kind()), string(depKind), err)
			}
			return err
		}
	}
	if d.logger != nil {
		d.logger.LogFoundationPhase(ctx, string(d.Kind()), "Ready", nil)
	}
	d.publish(ctx, status.Ready())
	return nil
}

var _ Foundation = (*DockerDaemon)(nil)
