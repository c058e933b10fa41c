package cmd

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/cache"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/database"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/handlers"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/mailer"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/messaging"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/metrics"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/repository"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracking"
)

// core holds the collaborators shared by the server and the worker
type core struct {
	db       *gorm.DB
	repo     repository.Repository
	signer   *tracking.Signer
	cache    *cache.RedisCache
	metrics  *metrics.Metrics
	azure    *messaging.AzureClient
	invoices *handlers.InvoiceHandler
	delivery *handlers.DeliveryHandler
	audit    *handlers.AuditHandler
	clients  *handlers.ClientHandler
}

func openDatabase() (*gorm.DB, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// buildCore opens the database and wires the command handlers
func buildCore() (*core, error) {
	db, err := openDatabase()
	if err != nil {
		return nil, err
	}

	if cfg.Tracking.Secret == "" {
		return nil, errors.New("tracking.secret is required")
	}

	c := &core{
		db:      db,
		repo:    repository.NewRepository(db),
		signer:  tracking.NewSigner(cfg.Tracking.Secret, cfg.Tracking.PublicBaseURL),
		metrics: metrics.New(),
	}

	c.cache, err = cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		c.cache = nil
	}

	if cfg.Azure.QueueConnStr != "" {
		c.azure, err = messaging.NewAzureClient(cfg.Azure)
		if err != nil {
			return nil, err
		}
	}

	var mailQueue mailer.Publisher
	if strings.EqualFold(cfg.Mail.Transport, mailer.TransportServiceBus) {
		if c.azure == nil {
			return nil, errors.New("mail.transport servicebus requires azure.queue_conn_str")
		}
		sender, err := c.azure.NewSender(cfg.Azure.MailQueue, "fourvoice-mailer")
		if err != nil {
			return nil, err
		}
		mailQueue = sender
	}

	m, err := mailer.New(cfg.Mail, mailQueue)
	if err != nil {
		return nil, err
	}

	c.invoices = handlers.NewInvoiceHandler(c.repo, c.signer, c.metrics)
	c.delivery = handlers.NewDeliveryHandler(c.repo, m, c.signer, cfg.Mail.From, c.metrics)
	c.audit = handlers.NewAuditHandler(c.repo, c.metrics)
	c.clients = handlers.NewClientHandler(c.repo)

	if c.cache != nil {
		c.invoices.WithCache(c.cache)
		c.delivery.WithCache(c.cache)
	}

	return c, nil
}
