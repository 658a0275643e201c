package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/internal/workload"
	obs "github.com/Swind/go-task-manager/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

const envPrefix = "TASKMANAGER_"

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run a demo workload on a task manager and report stats",

		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				EnvVars: []string{envPrefix + "WORKERS"},
				Usage:   "Number of worker goroutines (0 = one per CPU)",
			},
			&cli.IntFlag{
				Name:    "tasks",
				Aliases: []string{"n"},
				Value:   100,
				EnvVars: []string{envPrefix + "TASKS"},
				Usage:   "Number of independent always-ready tasks",
			},
			&cli.IntFlag{
				Name:    "chain",
				Value:   10,
				EnvVars: []string{envPrefix + "CHAIN"},
				Usage:   "Length of a dependency chain submitted in reverse order",
			},
			&cli.DurationFlag{
				Name:    "work",
				Value:   time.Millisecond,
				EnvVars: []string{envPrefix + "WORK"},
				Usage:   "Simulated work per task",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   time.Minute,
				EnvVars: []string{envPrefix + "TIMEOUT"},
				Usage:   "Give up if the workload has not finished by then",
			},
			&cli.DurationFlag{
				Name:    "recheck-interval",
				Value:   core.DefaultRecheckInterval,
				EnvVars: []string{envPrefix + "RECHECK_INTERVAL"},
				Usage:   "Idle re-scan period for silent readiness changes",
			},
			&cli.DurationFlag{
				Name:    "max-pending-age",
				EnvVars: []string{envPrefix + "MAX_PENDING_AGE"},
				Usage:   "Evict tasks pending longer than this (0 = never)",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				EnvVars: []string{envPrefix + "METRICS_ADDR"},
				Usage:   "Serve Prometheus metrics on this address while running (e.g. :2112)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{envPrefix + "LOG_LEVEL"},
				Usage:   "debug, info, warn or error",
			},
		},

		Action: RunAction,
	}
}

func RunAction(c *cli.Context) error {
	// 1. Get flags
	opts := runOptions{
		Workers:         c.Int("workers"),
		Tasks:           c.Int("tasks"),
		Chain:           c.Int("chain"),
		Work:            c.Duration("work"),
		Timeout:         c.Duration("timeout"),
		RecheckInterval: c.Duration("recheck-interval"),
		MaxPendingAge:   c.Duration("max-pending-age"),
		MetricsAddr:     c.String("metrics-addr"),
		LogLevel:        c.String("log-level"),
	}

	// 2. Validate (format only)
	if err := opts.validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// 3. Call service
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := runWorkload(ctx, opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	// 4. Format output
	fmt.Fprintf(c.App.Writer, "✓ Executed %d/%d tasks on %d workers in %v\n",
		res.Executed, res.Submitted, res.Stats.Workers, res.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(c.App.Writer, "  state=%s pending=%d panicked=%d rejected=%d evicted=%d\n",
		res.Stats.State, res.Stats.Pending, res.Stats.Panicked, res.Stats.Rejected, res.Stats.Evicted)

	return nil
}

type runOptions struct {
	Workers         int
	Tasks           int
	Chain           int
	Work            time.Duration
	Timeout         time.Duration
	RecheckInterval time.Duration
	MaxPendingAge   time.Duration
	MetricsAddr     string
	LogLevel        string
}

func (o runOptions) validate() error {
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if o.Tasks < 0 || o.Chain < 0 {
		return fmt.Errorf("tasks and chain must not be negative")
	}
	if o.Tasks+o.Chain == 0 {
		return fmt.Errorf("nothing to run: tasks and chain are both 0")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if _, err := core.ParseLogLevel(o.LogLevel); err != nil {
		return err
	}
	return nil
}

// managerConfig maps CLI options onto a TaskManagerConfig.
func (o runOptions) managerConfig(metrics core.Metrics) *core.TaskManagerConfig {
	level, _ := core.ParseLogLevel(o.LogLevel)
	logger := &core.DefaultLogger{MinLevel: level}

	cfg := core.DefaultTaskManagerConfig()
	cfg.Name = "cli"
	if o.Workers > 0 {
		cfg.Workers = o.Workers
	}
	cfg.RecheckInterval = o.RecheckInterval
	cfg.MaxPendingAge = o.MaxPendingAge
	cfg.Logger = logger
	cfg.PanicHandler = &core.DefaultPanicHandler{Logger: logger}
	cfg.RejectedTaskHandler = &core.DefaultRejectedTaskHandler{Logger: logger}
	if metrics != nil {
		cfg.Metrics = metrics
	}
	return cfg
}

func runWorkload(ctx context.Context, opts runOptions) (workload.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	reg := prom.NewRegistry()
	exporter, err := obs.NewMetricsExporter("taskmanager", reg, obs.ExporterOptions{})
	if err != nil {
		return workload.Result{}, err
	}

	cfg := opts.managerConfig(exporter)
	m := core.NewTaskManagerWithConfig(cfg)

	if opts.MetricsAddr != "" {
		poller, err := obs.NewSnapshotPoller(reg, 100*time.Millisecond)
		if err != nil {
			return workload.Result{}, err
		}
		poller.AddManager(cfg.Name, m)
		poller.Start(ctx)
		defer poller.Stop()

		shutdown := serveMetrics(opts.MetricsAddr, reg, cfg.Logger)
		defer shutdown()
	}

	return workload.Run(ctx, m, workload.Spec{
		Tasks: opts.Tasks,
		Chain: opts.Chain,
		Work:  opts.Work,
	})
}

func serveMetrics(addr string, reg *prom.Registry, logger core.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", core.F("addr", addr), core.F("error", err))
		}
	}()
	logger.Info("serving metrics", core.F("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
