// Package runtime wires a loaded Config into a running system: samplers,
// queue, generator tasks, driver pool, metrics, and reporting, all gated by
// one atomic RUNNING flag that every long-running goroutine polls at its
// next suspension point.
package runtime

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jihwankim/cachebench/internal/config"
	"github.com/jihwankim/cachebench/internal/driver"
	"github.com/jihwankim/cachebench/internal/driver/http1"
	"github.com/jihwankim/cachebench/internal/driver/http2"
	"github.com/jihwankim/cachebench/internal/driver/managedcache"
	"github.com/jihwankim/cachebench/internal/driver/ping"
	"github.com/jihwankim/cachebench/internal/driver/redis"
	"github.com/jihwankim/cachebench/internal/generator"
	"github.com/jihwankim/cachebench/internal/metrics"
	"github.com/jihwankim/cachebench/internal/queue"
	"github.com/jihwankim/cachebench/internal/ratelimit"
	"github.com/jihwankim/cachebench/internal/reporting"
	"github.com/jihwankim/cachebench/internal/transport"
)

// Runtime holds every long-lived component a run needs, built once from a
// validated Config and torn down together at shutdown.
type Runtime struct {
	cfg *config.Config

	Logger    *reporting.Logger
	Counters  *metrics.Counters
	Heatmap   *metrics.Heatmap
	Waterfall *metrics.Heatmap

	Queue     *queue.Queue
	generator *generator.Group
	reconnect *generator.ReconnectInjector
	tasks     []*driver.Task

	running atomic.Bool
}

// New builds every component for cfg without starting anything.
func New(cfg *config.Config) (*Runtime, error) {
	logLevel := reporting.LogLevel(cfg.Debug.LogLevel)
	if logLevel == "" {
		logLevel = reporting.LogLevelInfo
	}
	backups, _ := strconv.Atoi(cfg.Debug.LogBackup)
	logger, err := reporting.NewLogger(reporting.LoggerConfig{
		Level:      logLevel,
		LogFile:    cfg.Debug.LogFile,
		LogMaxSize: cfg.Debug.LogMaxSize,
		LogBackup:  backups,
	})
	if err != nil {
		return nil, fmt.Errorf("runtime: build logger: %w", err)
	}

	counters := metrics.NewCounters()
	heatmap := metrics.NewHeatmap(1)

	windows := cfg.General.Windows
	if windows < 1 {
		windows = 1
	}
	waterfall := metrics.NewHeatmap(windows)

	connectLimiter := domainLimiter(cfg.Connection.RateLimit, cfg.Connection.RateLimitModel)
	reconnectLimiter := domainLimiter(cfg.Connection.Reconnect, cfg.Connection.RateLimitModel)
	requestLimiter := domainLimiter(cfg.Request.RateLimit, cfg.Request.RateLimitModel)

	dialer, err := transport.NewDialer(cfg.Connection, cfg.TLS, connectLimiter)
	if err != nil {
		return nil, fmt.Errorf("runtime: build dialer: %w", err)
	}

	q := queue.New(queue.DefaultCapacity(cfg.Connection.PoolSize * len(cfg.Target.Endpoints)))

	rt := &Runtime{
		cfg:       cfg,
		Logger:    logger,
		Counters:  counters,
		Heatmap:   heatmap,
		Waterfall: waterfall,
		Queue:     q,
	}
	rt.running.Store(true)

	var waterfallForTasks *metrics.Heatmap
	if cfg.Waterfall != nil && cfg.Waterfall.File != "" {
		waterfallForTasks = waterfall
	}

	rt.tasks, err = buildDriverTasks(cfg, dialer, q, counters, heatmap, waterfallForTasks, &rt.running, connectLimiter, reconnectLimiter, requestLimiter)
	if err != nil {
		return nil, err
	}

	rt.generator = generator.NewGroup(cfg.Keyspaces, q, &rt.running, time.Now().UnixNano())

	if reconnectLimiter != nil {
		rt.reconnect = &generator.ReconnectInjector{Queue: q, Limiter: reconnectLimiter, Running: &rt.running}
	}

	return rt, nil
}

// domainLimiter builds a ratelimit.Limiter for one config domain, or nil
// when that domain's rate is unconfigured (0), matching §4.3's "optional
// connect/reconnect/request rate" fields.
func domainLimiter(rate int, model config.RateLimitModel) *ratelimit.Limiter {
	if rate <= 0 {
		return nil
	}
	strategy := ratelimit.Smooth
	if model == config.RateLimitBurst {
		strategy = ratelimit.Burst
	}
	return ratelimit.New(float64(rate), strategy)
}

// buildDriverTasks launches connection.poolsize driver tasks per endpoint,
// round-robining endpoints across the pool.
func buildDriverTasks(
	cfg *config.Config,
	dialer *transport.Dialer,
	q *queue.Queue,
	counters *metrics.Counters,
	heatmap *metrics.Heatmap,
	waterfall *metrics.Heatmap, // nil unless waterfall.file is configured
	running *atomic.Bool,
	connectLim, reconnectLim, requestLim *ratelimit.Limiter,
) ([]*driver.Task, error) {
	if len(cfg.Target.Endpoints) == 0 {
		return nil, fmt.Errorf("runtime: no target endpoints configured")
	}

	var tasks []*driver.Task
	for i := 0; i < cfg.Connection.PoolSize; i++ {
		for _, endpoint := range cfg.Target.Endpoints {
			connector, err := buildConnector(cfg, dialer, endpoint)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, &driver.Task{
				Connector:        connector,
				Queue:            q,
				Counters:         counters,
				ResponseHeatmap:  heatmap,
				WaterfallHeatmap: waterfall,
				ConnectTimeout:   cfg.Connection.Timeout,
				RequestTimeout:   cfg.Request.Timeout,
				Running:          running,
				ConnectLimiter:   connectLim,
				ReconnectLimiter: reconnectLim,
				RequestLimiter:   requestLim,
			})
		}
	}
	return tasks, nil
}

func buildConnector(cfg *config.Config, dialer *transport.Dialer, endpoint string) (driver.Connector, error) {
	switch cfg.General.Protocol {
	case config.ProtocolPing:
		return &ping.Connector{Dialer: dialer, Addr: endpoint}, nil
	case config.ProtocolRedis:
		return &redis.Connector{Dialer: dialer, Addr: endpoint}, nil
	case config.ProtocolHTTP1:
		return &http1.Connector{Dialer: dialer, Addr: endpoint, Scheme: "http"}, nil
	case config.ProtocolHTTP2:
		return &http2.Connector{Dialer: dialer, Addr: endpoint, Scheme: "http"}, nil
	case config.ProtocolMomento, config.ProtocolPubSubMomento:
		return &managedcache.Connector{Addr: endpoint, Authorization: os.Getenv("MOMENTO_AUTHENTICATION")}, nil
	default:
		return nil, fmt.Errorf("runtime: unrecognized protocol %q", cfg.General.Protocol)
	}
}

// Run starts every driver task, the generator group, and the snapshotter,
// and blocks until ctx is cancelled or Stop is called. Shutdown drains
// tasks cooperatively: RUNNING clears, every task observes it at its next
// suspension point, and Run returns once they have all exited.
func (rt *Runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer rt.Logger.Close()

	// Stop only clears RUNNING; turn that into a cancellation of ctx so
	// the shutdown below runs on whichever comes first.
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for rt.running.Load() {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
		cancel()
	}()

	var wg sync.WaitGroup
	for _, task := range rt.tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			task.Run(ctx)
		}()
	}

	snapshotter := &reporting.Snapshotter{
		Out:      os.Stderr,
		Counters: rt.Counters,
		Heatmap:  rt.Heatmap,
		Interval: rt.cfg.General.Interval,
	}
	if rt.cfg.Waterfall != nil && rt.cfg.Waterfall.File != "" {
		snapshotter.Waterfall = rt.Waterfall
		if rt.cfg.Waterfall.Resolution > 0 {
			snapshotter.WaterfallInterval = time.Duration(rt.cfg.Waterfall.Resolution) * time.Millisecond
		}
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		snapshotter.Run(ctx)
	}()

	wg.Add(1)
	genErr := make(chan error, 1)
	go func() {
		defer wg.Done()
		genErr <- rt.generator.Run(ctx, rt.reconnect)
	}()

	<-ctx.Done()
	rt.running.Store(false)
	rt.Queue.Close()
	wg.Wait()

	rt.dumpWaterfallIfConfigured()
	return <-genErr
}

// Stop clears RUNNING, the sole shutdown signal every task polls.
func (rt *Runtime) Stop() { rt.running.Store(false) }

func (rt *Runtime) dumpWaterfallIfConfigured() {
	if rt.cfg.Waterfall == nil || rt.cfg.Waterfall.File == "" {
		return
	}
	if err := rt.Waterfall.DumpWaterfall(rt.cfg.Waterfall.File); err != nil {
		rt.Logger.Error("failed to write waterfall dump", "error", err.Error())
	}
}

// WatchSignals clears RUNNING and cancels cancel on SIGINT/SIGTERM,
// flipping the one atomic flag every task in this repository polls.
func WatchSignals(cancel context.CancelFunc, rt *Runtime) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		rt.Stop()
		cancel()
		signal.Stop(sigCh)
	}()
}
