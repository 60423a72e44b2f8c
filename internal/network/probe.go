package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/metrics"
)

// maxProbeBody bounds how much of an HTTP probe response is read.
const maxProbeBody = 64 << 10

// Checker performs one reachability check and returns the number of payload
// bytes transferred (0 if unknown).
type Checker func(ctx context.Context) (int64, error)

// ProbeConfig configures a Probe.
type ProbeConfig struct {
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold int  // consecutive failures before going offline
	Window           int  // RTT samples kept for quality estimation
	SaveData         bool // reported as-is in Quality
}

// DefaultProbeConfig returns sensible defaults.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Interval:         10 * time.Second,
		Timeout:          3 * time.Second,
		FailureThreshold: 2,
		Window:           20,
	}
}

// Probe polls a Checker and turns its results into connectivity edges and
// a rolling link-quality estimate. It implements Notifier and QualitySource.
type Probe struct {
	cfg   ProbeConfig
	check Checker
	log   *slog.Logger

	mu        sync.RWMutex
	online    bool
	failures  int
	latencies []time.Duration
	downlinks []float64

	subs subscribers
}

// NewProbe creates a probe starting in the given state.
func NewProbe(cfg ProbeConfig, check Checker, online bool) *Probe {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = 20
	}
	return &Probe{
		cfg:    cfg,
		check:  check,
		online: online,
		log:    slog.Default().With("component", "probe"),
	}
}

func (p *Probe) Online() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

func (p *Probe) Subscribe(fn func(online bool)) func() {
	return p.subs.add(fn)
}

// Run checks connectivity every Interval until ctx is cancelled.
func (p *Probe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	_ = p.CheckOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.CheckOnce(ctx)
		}
	}
}

// CheckOnce runs a single check and applies its result.
func (p *Probe) CheckOnce(ctx context.Context) error {
	checkCtx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	n, err := p.check(checkCtx)
	rtt := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			// shutting down, not a connectivity signal
			return err
		}
		p.recordFailure(err)
		return err
	}

	metrics.ProbeRTT.Observe(rtt.Seconds())
	p.recordSuccess(rtt, n)
	return nil
}

func (p *Probe) recordSuccess(rtt time.Duration, bytes int64) {
	p.mu.Lock()
	p.latencies = appendWindow(p.latencies, rtt, p.cfg.Window)
	if bytes > 0 && rtt > 0 {
		mbps := float64(bytes*8) / rtt.Seconds() / 1e6
		p.downlinks = appendWindow(p.downlinks, mbps, p.cfg.Window)
	}
	p.failures = 0
	changed := !p.online
	p.online = true
	p.mu.Unlock()

	if changed {
		p.log.Info("Connectivity restored", "rtt", rtt)
		p.subs.notify(true)
	}
}

func (p *Probe) recordFailure(err error) {
	p.mu.Lock()
	p.failures++
	changed := p.online && p.failures >= p.cfg.FailureThreshold
	if changed {
		p.online = false
	}
	failures := p.failures
	p.mu.Unlock()

	p.log.Debug("Probe failed", "error", err, "consecutive", failures)
	if changed {
		p.log.Warn("Connectivity lost", "error", err, "consecutive", failures)
		p.subs.notify(false)
	}
}

// Quality returns the rolling average RTT and downlink classified into an
// effective type. ok is false until the first successful check.
func (p *Probe) Quality() (domain.NetworkQuality, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.latencies) == 0 {
		return domain.NetworkQuality{}, false
	}

	var total time.Duration
	for _, l := range p.latencies {
		total += l
	}
	rtt := total / time.Duration(len(p.latencies))

	var downlink float64
	if len(p.downlinks) > 0 {
		for _, d := range p.downlinks {
			downlink += d
		}
		downlink /= float64(len(p.downlinks))
	}

	return domain.NetworkQuality{
		EffectiveType: Classify(rtt, downlink),
		DownlinkMbps:  downlink,
		RTT:           rtt,
		SaveData:      p.cfg.SaveData,
	}, true
}

func appendWindow[T any](s []T, v T, size int) []T {
	s = append(s, v)
	if len(s) > size {
		s = s[len(s)-size:]
	}
	return s
}

// HTTPCheck probes url with a GET and treats any non-5xx response as reachable.
func HTTPCheck(client *http.Client, url string) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) (int64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to create probe request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		n, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBody))
		if resp.StatusCode >= 500 {
			return n, fmt.Errorf("probe returned HTTP %d", resp.StatusCode)
		}
		return n, nil
	}
}

// DialGRPC opens a lazy client connection for gRPC health probing.
func DialGRPC(endpoint string) (*grpc.ClientConn, error) {
	target := endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	return conn, nil
}

// GRPCCheck probes the standard gRPC health service.
func GRPCCheck(conn grpc.ClientConnInterface, service string) Checker {
	client := healthpb.NewHealthClient(conn)
	return func(ctx context.Context) (int64, error) {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return 0, err
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return 0, fmt.Errorf("grpc health status %s", resp.GetStatus())
		}
		return 0, nil
	}
}
