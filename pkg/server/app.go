package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	domrepo "HackCap/internal/domain/repository"
	"HackCap/internal/usecase"
	"HackCap/pkg/config"
	pkgkafka "HackCap/pkg/kafka"
	applogger "HackCap/pkg/logger"
	"HackCap/pkg/queue"
)

const shutdownTimeout = 15 * time.Second

// App encapsulates the streaming service lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	svc        *usecase.DecisionService
	bars       *usecase.BarsHandler
	consumer   *pkgkafka.Consumer
	jobs       *queue.RedisQueue
	metricsSrv *http.Server
}

// New creates a new App. consumer and jobs may be nil when Kafka or the
// job queue is disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	svc *usecase.DecisionService,
	bars *usecase.BarsHandler,
	consumer *pkgkafka.Consumer,
	jobs *queue.RedisQueue,
) *App {
	return &App{cfg: cfg, log: l, svc: svc, bars: bars, consumer: consumer, jobs: jobs}
}

// Run starts the application and blocks until interrupted or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Metrics.Enabled {
		a.startMetrics()
	}

	if err := a.warm(ctx); err != nil {
		a.log.Error("similarity warmup failed", applogger.Error(err))
		return a.shutdown(err)
	}

	if path := a.cfg.Ensemble.WeightsFile; path != "" {
		go func() {
			if err := a.svc.Weights().Watch(ctx, path); err != nil {
				a.log.Error("weights watcher error", applogger.Error(err))
			}
		}()
	}

	if a.jobs != nil {
		if err := a.jobs.Start(ctx); err != nil {
			a.log.Error("job queue error", applogger.Error(err))
			return a.shutdown(err)
		}
	}

	if a.consumer != nil {
		a.consumer.RegisterHandler(a.bars)
		if err := a.consumer.Start(ctx); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
			return a.shutdown(err)
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.bars.Topic()))
	} else {
		a.log.Warn("kafka disabled, decisions are served on demand only")
	}

	a.log.Info("decision engine running",
		applogger.String("source", a.cfg.Source.Type),
		applogger.String("cache", a.cfg.Cache.Mode),
		applogger.Int("window", a.svc.WindowSize()))
	<-ctx.Done()

	a.log.Info("shutdown signal received")
	return a.shutdown(nil)
}

func (a *App) warm(ctx context.Context) error {
	tickers := a.cfg.Similarity.WarmTickers
	if len(tickers) == 0 {
		return nil
	}
	tf := domrepo.NormalizeTimeframe(a.cfg.Source.Timeframe)
	to := time.Now().UTC()
	from := to.Add(-a.cfg.Similarity.WarmWindow)
	_, err := a.svc.Warm(ctx, tickers, from, to, tf)
	return err
}

func (a *App) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	a.metricsSrv = &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server error", applogger.Error(err))
		}
	}()
	a.log.Info("metrics server started", applogger.String("addr", a.cfg.Metrics.Addr))
}

// shutdown stops the consumer, job workers and metrics server. Clients are
// closed by the injector cleanup.
func (a *App) shutdown(cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.jobs != nil {
		if err := a.jobs.Stop(ctx); err != nil {
			a.log.Warn("job queue stop error", applogger.Error(err))
		}
	}
	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.log.Warn("metrics shutdown error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
	return cause
}
