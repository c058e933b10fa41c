package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/config"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/messaging"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/projections"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracing"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker to project events, consume delivery reports from Azure Service Bus and scan the audit log`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	log.Info().Msg("Starting worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildCore()
	if err != nil {
		return err
	}
	if c.cache != nil {
		defer c.cache.Close()
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer, _ = tracing.NewTracer(config.TracingConfig{})
	}
	defer tracer.Close()

	g, ctx := errgroup.WithContext(ctx)

	var projectors []projections.Projector
	if cfg.Elastic.URL != "" {
		esClient, err := projections.NewElasticsearchClient(cfg.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search projection")
		} else {
			if err := projections.EnsureIndices(esClient, cfg.Elastic); err != nil {
				return err
			}
			projectors = append(projectors, projections.NewInvoiceProjector(c.repo, esClient, cfg.Elastic))
		}
	}

	if c.azure != nil {
		defer c.azure.Close(context.Background())

		if cfg.Azure.NotificationsQueue != "" {
			sender, err := c.azure.NewSender(cfg.Azure.NotificationsQueue, "fourvoice-worker")
			if err != nil {
				return err
			}
			defer sender.Close(context.Background())
			projectors = append(projectors, messaging.NewEventPublisher(sender))
		}

		if cfg.Azure.DeliveryReportsQueue != "" {
			processor := messaging.NewProcessor(c.delivery)
			g.Go(func() error {
				log.Info().Str("queue", cfg.Azure.DeliveryReportsQueue).Msg("Starting delivery report consumer")
				return c.azure.StartConsumer(ctx, cfg.Azure.DeliveryReportsQueue, processor)
			})
		}
	}

	if len(projectors) > 0 {
		processor := projections.NewEventProcessor(c.repo.Events(), c.metrics, cfg.Worker.BatchSize, cfg.Worker.ProjectionInterval, projectors...)
		g.Go(func() error {
			return processor.Run(ctx)
		})
	} else {
		log.Warn().Msg("No projectors configured, events stay in the outbox")
	}

	g.Go(func() error {
		return runAnomalyScan(ctx, c, tracer)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

// runAnomalyScan periodically rescans every tenant's audit log
func runAnomalyScan(ctx context.Context, c *core, tracer tracing.Tracer) error {
	interval := cfg.Worker.AnomalyScanInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			txn := tracer.StartTransaction("audit-anomaly-scan")
			defer tracer.EndTransaction(txn)

			flagged, err := c.audit.ScanAll(tracing.NewContext(ctx, txn))
			if err != nil {
				tracer.RecordError(txn, err)
				log.Error().Err(err).Msg("Failed to scan audit log")
				return
			}
			tracer.AddAttribute(txn, "flagged", flagged)
			log.Info().Int("flagged", flagged).Msg("Audit log scan finished")
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	log.Info().Dur("interval", interval).Msg("Starting audit log scan job")
	scheduler.Start()

	<-ctx.Done()

	return scheduler.Shutdown()
}
