package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/historical-text-analysis/internal/config"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
	"github.com/kirillkom/historical-text-analysis/internal/core/usecase"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/export"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/extractor"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/filecontent"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/nlp/nlphttp"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/queue/nats"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/resilience"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/workerpool"
	"github.com/kirillkom/historical-text-analysis/internal/observability/metrics"
)

// Options tune process-specific wiring.
type Options struct {
	// Service labels worker metrics.
	Service string
	// Registry receives worker and dependency metrics; nil disables them.
	Registry *prometheus.Registry
}

type App struct {
	Config config.Config

	DB            *sql.DB
	Tasks         ports.AnalysisRepository
	Storage       ports.ObjectStorage
	NLP           ports.NLPClient
	Access        ports.AccessChecker
	Pool          *workerpool.Pool
	Queue         *nats.Queue
	Dispatch      ports.TaskDispatcher
	AnalysisUC    *usecase.AnalysisUseCase
	ExecuteUC     *usecase.ExecuteAnalysisUseCase
	ResultsUC     *usecase.ResultQueryUseCase
	MaintenanceUC *usecase.MaintenanceUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	tasks := postgres.NewAnalysisRepository(db)
	results := postgres.NewResultRepository(db)
	directory := postgres.NewDirectoryRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var (
		workerMetrics *metrics.WorkerMetrics
		depMetrics    *metrics.DependencyMetrics
	)
	if opts.Registry != nil {
		workerMetrics = metrics.NewWorkerMetrics(opts.Service, opts.Registry)
		depMetrics = metrics.NewDependencyMetrics(opts.Registry)
	}

	nlpExecutor := resilience.NewExecutor(cfg.NLPResilience.WithinBudget(cfg.AnalysisTimeout()))
	if depMetrics != nil {
		nlpExecutor = nlpExecutor.WithObserver(depMetrics)
	}
	nlpClient := nlphttp.New(cfg.NLPURL, nlphttp.Options{
		Timeout:            cfg.NLPTimeout(),
		ResilienceExecutor: nlpExecutor,
	})

	textExtractor := extractor.NewRouter(plaintext.NewExtractor(storage), pdftext.NewExtractor(storage))
	files := filecontent.NewService(directory, directory, textExtractor)
	guard := usecase.NewAccessGuard(directory, tasks)

	executeUC := usecase.NewExecuteAnalysisUseCase(tasks, files, nlpClient, usecase.NewResultMapper(), cfg.AnalysisTimeout())
	pool := workerpool.New(cfg.WorkerConcurrency, cfg.QueueSize, executeUC.Execute)
	if workerMetrics != nil {
		pool = pool.WithObserver(workerMetrics)
	}

	var (
		queue      *nats.Queue
		dispatcher ports.TaskDispatcher = pool
	)
	if cfg.DispatchMode == config.DispatchNATS {
		natsExecutor := resilience.NewExecutor(resilience.PublishConfig())
		if depMetrics != nil {
			natsExecutor = natsExecutor.WithObserver(depMetrics)
		}
		queue, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: natsExecutor})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		dispatcher = queue
	}
	slog.Info("dispatch_configured", "mode", cfg.DispatchMode, "workers", cfg.WorkerConcurrency, "queue_size", cfg.QueueSize)

	analysisUC := usecase.NewAnalysisUseCase(tasks, guard, files, dispatcher)
	resultsUC := usecase.NewResultQueryUseCase(tasks, results, guard, storage,
		export.JSONEncoder{},
		export.CSVEncoder{},
		export.ExcelEncoder{},
	)
	maintenanceUC := usecase.NewMaintenanceUseCase(tasks, dispatcher, cfg.AnalysisTimeout())

	return &App{
		Config: cfg,

		DB:       db,
		Tasks:    tasks,
		Storage:  storage,
		NLP:      nlpClient,
		Access:   guard,
		Pool:     pool,
		Queue:    queue,
		Dispatch: dispatcher,

		AnalysisUC:    analysisUC,
		ExecuteUC:     executeUC,
		ResultsUC:     resultsUC,
		MaintenanceUC: maintenanceUC,

		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
			_ = db.Close()
		},
	}, nil
}

// InProcess reports whether tasks run on this process's pool.
func (a *App) InProcess() bool {
	return a.Config.DispatchMode != config.DispatchNATS
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
