package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/vietddude/absenta/internal/core/config"
	"github.com/vietddude/absenta/internal/core/worker"
	"github.com/vietddude/absenta/internal/health"
	"github.com/vietddude/absenta/internal/infra/api"
	redisclient "github.com/vietddude/absenta/internal/infra/redis"
	"github.com/vietddude/absenta/internal/infra/storage"
	"github.com/vietddude/absenta/internal/infra/storage/bolt"
	"github.com/vietddude/absenta/internal/infra/storage/memory"
	"github.com/vietddude/absenta/internal/infra/storage/postgres"
	"github.com/vietddude/absenta/internal/network"
	"github.com/vietddude/absenta/internal/resilience"
)

// Agent is the main application struct that wires the resilience helper to
// its storage, connectivity probe, API client and health server.
type Agent struct {
	cfg          Config
	helper       *resilience.Helper
	store        storage.DurableStore
	db           *postgres.DB
	probe        *network.Probe
	manual       *network.Manual
	grpcConn     *grpc.ClientConn
	apiClient    *api.Client
	healthServer *health.Server
	pruner       *worker.Pruner
	unsubscribe  []func()
	log          *slog.Logger

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Config holds the agent configuration.
type Config struct {
	App *config.AppConfig

	// Offline forces the agent offline and disables the probe.
	Offline bool

	// DisableHealthServer skips the HTTP server, for one-shot commands.
	DisableHealthServer bool
}

// NewAgent creates an agent with all dependencies initialized.
func NewAgent(ctx context.Context, cfg Config) (*Agent, error) {
	if cfg.App == nil {
		cfg.App = config.Default()
	}
	app := cfg.App
	a := &Agent{cfg: cfg, log: slog.Default().With("component", "agent")}

	// 1. Durable storage
	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	// 2. Connectivity
	var notifier network.Notifier
	var quality network.QualitySource
	switch {
	case cfg.Offline:
		a.manual = network.NewManual(false)
		notifier, quality = a.manual, a.manual
		a.log.Warn("Running in forced offline mode")
	default:
		probe, err := a.buildProbe()
		if err != nil {
			a.closeStore()
			return nil, err
		}
		if probe != nil {
			a.probe = probe
			notifier, quality = probe, probe
		} else {
			a.manual = network.NewManual(true)
			notifier, quality = a.manual, a.manual
			a.log.Info("No probe target configured, assuming online")
		}
	}

	// 3. Resilience helper
	r := app.Resilience
	helper, err := resilience.New(resilience.Config{
		Timeout: r.Timeout,
		Retry: &resilience.RetryOptions{
			MaxRetries:      *r.MaxRetries,
			RetryDelay:      r.RetryDelay,
			RetryMultiplier: r.RetryMultiplier,
			MaxRetryDelay:   r.MaxRetryDelay,
			RetryCondition:  api.RetryableError,
		},
		Notifier:   notifier,
		Quality:    quality,
		Store:      a.store,
		MemorySize: app.Cache.MemorySize,
	})
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("failed to init resilience helper: %w", err)
	}
	a.helper = helper
	a.unsubscribe = logEvents(helper, a.log)

	a.pruner = worker.NewPruner(app.Cache.Retention, nil, helper)

	// 4. API client
	if app.API.BaseURL != "" {
		client, err := api.NewClient(api.Config{
			BaseURL: app.API.BaseURL,
			Token:   app.API.Token,
			Timeout: app.API.Timeout,
		})
		if err != nil {
			a.closeAll()
			return nil, err
		}
		a.apiClient = client
	}

	// 5. Health
	if !cfg.DisableHealthServer {
		var checker storage.HealthChecker
		if hc, ok := a.store.(storage.HealthChecker); ok {
			checker = hc
		}
		mon := health.NewMonitor(helper, checker, health.DefaultThresholds())
		a.healthServer = health.NewServer(mon, app.Server.Port)
	}

	return a, nil
}

func (a *Agent) openStore(ctx context.Context) error {
	app := a.cfg.App
	switch app.Cache.Backend {
	case "memory":
		a.store = memory.NewMemoryStorage()
		a.log.Info("Using memory durable tier")

	case "redis":
		client, err := redisclient.NewClient(app.Redis)
		if err != nil {
			return fmt.Errorf("failed to init redis: %w", err)
		}
		a.store = client
		a.log.Info("Using Redis durable tier")

	case "postgres":
		db, err := postgres.NewDB(ctx, app.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to migrate db: %w", err)
		}
		a.db = db
		a.store = postgres.NewStore(db)
		a.log.Info("Using PostgreSQL durable tier")

	default:
		s, err := bolt.Open(app.Cache.Path, time.Second)
		if err != nil {
			return err
		}
		a.store = s
		a.log.Info("Using bolt durable tier", "path", app.Cache.Path)
	}
	return nil
}

// buildProbe returns nil when there is nothing to probe.
func (a *Agent) buildProbe() (*network.Probe, error) {
	n := a.cfg.App.Network
	pcfg := network.DefaultProbeConfig()
	pcfg.Interval = n.ProbeInterval
	pcfg.Timeout = n.ProbeTimeout
	pcfg.FailureThreshold = n.FailureThreshold
	pcfg.SaveData = n.SaveData

	var check network.Checker
	switch {
	case n.ProbeGRPCTarget != "":
		conn, err := network.DialGRPC(n.ProbeGRPCTarget)
		if err != nil {
			return nil, fmt.Errorf("failed to dial probe target: %w", err)
		}
		a.grpcConn = conn
		check = network.GRPCCheck(conn, n.ProbeGRPCService)
		a.log.Info("Probing connectivity over gRPC", "target", n.ProbeGRPCTarget)

	case n.ProbeURL != "" || a.cfg.App.API.BaseURL != "":
		url := n.ProbeURL
		if url == "" {
			url = strings.TrimRight(a.cfg.App.API.BaseURL, "/") + "/health"
		}
		check = network.HTTPCheck(&http.Client{}, url)
		a.log.Info("Probing connectivity over HTTP", "url", url)

	default:
		return nil, nil
	}

	// start optimistic; the first failed checks flip it
	return network.NewProbe(pcfg, check, true), nil
}

// Helper returns the agent's resilience helper.
func (a *Agent) Helper() *resilience.Helper {
	return a.helper
}

// API returns the REST client, or an error if no base URL is configured.
func (a *Agent) API() (*api.Client, error) {
	if a.apiClient == nil {
		return nil, errors.New("api.base_url is not configured")
	}
	return a.apiClient, nil
}

// SetOnline overrides connectivity when the agent runs without a probe.
func (a *Agent) SetOnline(online bool) {
	if a.manual != nil {
		a.manual.Set(online)
	}
}

// CheckConnectivity runs one probe check, if a probe is configured.
func (a *Agent) CheckConnectivity(ctx context.Context) error {
	if a.probe == nil {
		return nil
	}
	return a.probe.CheckOnce(ctx)
}

// Start starts the background components. It returns immediately; the
// components run until ctx is cancelled or Stop is called.
func (a *Agent) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if a.healthServer != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("Health server failed", "error", err)
			}
		}()
	}

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.pruner.Start(ctx)
	}()

	if a.probe != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.probe.Run(ctx)
		}()
	}

	return nil
}

// Stop shuts the agent down and waits for background components until ctx
// expires.
func (a *Agent) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		a.log.Info("Stopping agent...")

		if a.cancel != nil {
			a.cancel()
		}

		if a.healthServer != nil {
			if serr := a.healthServer.Stop(ctx); serr != nil {
				err = fmt.Errorf("stop health server: %w", serr)
			}
		}

		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}

		a.closeAll()
	})
	return err
}

func (a *Agent) closeAll() {
	for _, u := range a.unsubscribe {
		u()
	}
	if a.helper != nil {
		a.helper.Close()
	}
	if a.grpcConn != nil {
		if err := a.grpcConn.Close(); err != nil {
			a.log.Warn("Failed to close probe connection", "error", err)
		}
	}
	a.closeStore()
}

func (a *Agent) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close durable store", "error", err)
	}
	a.store = nil
}
