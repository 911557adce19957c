package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andreyxaxa/Resale-Delister/config"
	kafkactrl "github.com/andreyxaxa/Resale-Delister/internal/controller/kafka"
	"github.com/andreyxaxa/Resale-Delister/internal/controller/restapi"
	"github.com/andreyxaxa/Resale-Delister/internal/controller/worker/supervisor"
	"github.com/andreyxaxa/Resale-Delister/internal/infrastructure"
	infrakafka "github.com/andreyxaxa/Resale-Delister/internal/infrastructure/kafka"
	"github.com/andreyxaxa/Resale-Delister/internal/infrastructure/lock"
	"github.com/andreyxaxa/Resale-Delister/internal/infrastructure/marketplace"
	"github.com/andreyxaxa/Resale-Delister/internal/metrics"
	"github.com/andreyxaxa/Resale-Delister/internal/repo"
	"github.com/andreyxaxa/Resale-Delister/internal/repo/persistent"
	"github.com/andreyxaxa/Resale-Delister/internal/usecase/audit"
	"github.com/andreyxaxa/Resale-Delister/internal/usecase/ingest"
	"github.com/andreyxaxa/Resale-Delister/internal/usecase/jobs"
	"github.com/andreyxaxa/Resale-Delister/internal/usecase/processor"
	"github.com/andreyxaxa/Resale-Delister/internal/usecase/queue"
	"github.com/andreyxaxa/Resale-Delister/internal/usecase/verifier"
	"github.com/andreyxaxa/Resale-Delister/pkg/httpserver"
	"github.com/andreyxaxa/Resale-Delister/pkg/kafka/consumer"
	"github.com/andreyxaxa/Resale-Delister/pkg/kafka/producer"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/andreyxaxa/Resale-Delister/pkg/postgres"
	"github.com/andreyxaxa/Resale-Delister/pkg/redisclient"
	"github.com/andreyxaxa/Resale-Delister/pkg/s3client"
)

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Metrics
	m, err := metrics.New()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - metrics.New: %w", err))
		m = metrics.NewNop()
	}

	// Repository

	// postgres
	pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pg.Close()

	saleEventRepo := persistent.NewSaleEventRepo(pg)
	jobRepo := persistent.NewDelistingJobRepo(pg)
	auditLogRepo := persistent.NewAuditLogRepo(pg)

	// s3 архив, только если включен
	var archive repo.ArchiveRepo
	if cfg.Archive.Enabled {
		s3Ctx, s3Cancel := context.WithTimeout(ctx, cfg.Archive.CfgLoadTimeout)
		s3c, err := s3client.New(s3Ctx, cfg.Archive.Endpoint, cfg.Archive.AccessKey, cfg.Archive.SecretKey,
			s3client.Region(cfg.Archive.Region))
		if err == nil {
			err = s3c.EnsureBucket(s3Ctx, cfg.Archive.Bucket)
		}
		s3Cancel()
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - s3client: %w", err))
		}

		archive = persistent.NewArchiveRepo(s3c, cfg.Archive.Bucket)
	}

	// Infrastructure

	marketplaceClient := marketplace.New(cfg.Marketplace.BaseURL, l,
		marketplace.Timeout(cfg.Marketplace.Timeout),
		marketplace.RateLimit(cfg.Marketplace.RateLimitRPS, cfg.Marketplace.RateBurst),
	)

	var notifier infrastructure.JobNotifier
	if cfg.Kafka.Enabled {
		kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
		}

		jobPublisher := infrakafka.NewJobPublisher(kafkaProducer, cfg.Kafka.JobsTopic, cfg.Kafka.PublishTimeout)
		defer jobPublisher.Close()

		notifier = jobPublisher
	}

	// Use-Case

	auditUseCase := audit.New(auditLogRepo, l)

	processorUseCase := processor.New(
		saleEventRepo,
		jobRepo,
		persistent.NewPreferencesRepo(pg),
		verifier.New(marketplaceClient),
		auditUseCase,
		notifier,
		m,
		l,
		cfg.Queue.JobMaxRetries,
	)

	queueUseCase := queue.New(
		saleEventRepo,
		pg,
		archive,
		processorUseCase,
		auditUseCase,
		m,
		l,
		queue.Settings{
			BatchSize:         cfg.Queue.BatchSize,
			MaxConcurrentJobs: cfg.Queue.MaxConcurrentJobs,
			MaxRetries:        cfg.Queue.MaxRetries,
			RetentionDays:     cfg.Queue.RetentionDays,
		},
	)

	jobsUseCase := jobs.New(jobRepo, auditLogRepo, auditUseCase, notifier, l)

	// Queue Supervisor
	var supervisorOpts []supervisor.Option
	if cfg.Redis.Enabled {
		rc, err := redisclient.New(ctx, cfg.Redis.Addr,
			redisclient.Password(cfg.Redis.Password),
			redisclient.DB(cfg.Redis.DB),
		)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - redisclient.New: %w", err))
		}
		defer rc.Close()

		supervisorOpts = append(supervisorOpts, supervisor.Locker(func(loop string) infrastructure.Locker {
			return lock.NewRedisLock(rc.Client, cfg.Redis.LockKey+":"+loop, cfg.Redis.LockTTL)
		}))
	}

	queueSupervisor := supervisor.New(queueUseCase, l, supervisor.Settings{
		ProcessingInterval:  cfg.Queue.ProcessingInterval,
		EscalateInterval:    cfg.Queue.EscalateInterval,
		CleanupInterval:     cfg.Queue.CleanupInterval,
		CleanupInitialDelay: cfg.Queue.CleanupInitialDelay,
		RetentionDays:       cfg.Queue.RetentionDays,
	}, supervisorOpts...)

	// Kafka as Controller
	var kafkaController *kafkactrl.KafkaController
	if cfg.Kafka.Enabled {
		kafkaConsumer, err := consumer.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.SaleEventsTopic)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - consumer.New: %w", err))
		}

		kafkaController = kafkactrl.New(
			ingest.New(saleEventRepo, l),
			infrakafka.NewSaleEventReader(kafkaConsumer),
			l,
			cfg.Kafka.CommitTimeout,
			cfg.Kafka.ProcessTimeout,
			cfg.Kafka.Workers,
		)
	}

	// HTTP Server
	httpServer := httpserver.New(l, httpserver.Port(cfg.HTTP.Port), httpserver.Prefork(cfg.HTTP.UsePreforkMode))
	restapi.NewRouter(httpServer.App, cfg, queueUseCase, processorUseCase, jobsUseCase, l)

	// Start Components
	err = queueSupervisor.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - queueSupervisor.Start: %w", err))
	}
	if kafkaController != nil {
		err = kafkaController.Start(ctx)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - kafkaController.Start: %w", err))
		}
	}
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	if kafkaController != nil {
		kcShutdownCtx, kcShutdownCancel := context.WithTimeout(ctx, cfg.Kafka.ShutdownTimeout)
		defer kcShutdownCancel()
		err = kafkaController.Shutdown(kcShutdownCtx)
		if err != nil {
			l.Error(fmt.Errorf("app - Run - kafkaController.Shutdown: %w", err))
		}
	}

	svShutdownCtx, svShutdownCancel := context.WithTimeout(ctx, cfg.Queue.ShutdownTimeout)
	defer svShutdownCancel()
	err = queueSupervisor.Shutdown(svShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - queueSupervisor.Shutdown: %w", err))
	}
}
