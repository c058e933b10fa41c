package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/advisor"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/api"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/auth"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/projections"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracing"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	log.Info().Msg("Starting server")

	c, err := buildCore()
	if err != nil {
		return err
	}
	if c.azure != nil {
		defer c.azure.Close(context.Background())
	}
	if c.cache != nil {
		defer c.cache.Close()
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth)
	if err != nil {
		return err
	}

	deps := api.Dependencies{
		Invoices: c.invoices,
		Delivery: c.delivery,
		Audit:    c.audit,
		Clients:  c.clients,
		Advisor:  advisor.New(cfg.Advisor),
		Tokens:   tokens,
		Metrics:  c.metrics,
	}
	if tracer != nil {
		deps.NewRelic = tracer.Application()
		defer tracer.Close()
	}

	if cfg.Elastic.URL != "" {
		esClient, err := projections.NewElasticsearchClient(cfg.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search")
		} else {
			deps.Search = projections.NewInvoiceSearcher(esClient, cfg.Elastic)
		}
	}

	server := api.NewServer(cfg, deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-quit:
	}

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
	return nil
}
