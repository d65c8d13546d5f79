package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"fleetdocs/internal/document/category"
	docmetrics "fleetdocs/internal/document/metrics"
	"fleetdocs/internal/document/models"
	"fleetdocs/internal/document/ports"
	"fleetdocs/internal/document/query"
	"fleetdocs/internal/document/reminder"
	"fleetdocs/internal/document/renewal"
	"fleetdocs/internal/document/service"
	categorystore "fleetdocs/internal/document/store/category"
	documentstore "fleetdocs/internal/document/store/document"
	reminderstore "fleetdocs/internal/document/store/reminder"
	renewalstore "fleetdocs/internal/document/store/renewal"
	"fleetdocs/internal/document/sweep"
	"fleetdocs/internal/entity"
	"fleetdocs/internal/filestore"
	"fleetdocs/internal/notify"
	"fleetdocs/internal/ops"
	"fleetdocs/internal/platform/config"
	"fleetdocs/internal/platform/database"
	"fleetdocs/internal/platform/lease"
	platformredis "fleetdocs/internal/platform/redis"
	audit "fleetdocs/pkg/platform/audit"
	auditpublisher "fleetdocs/pkg/platform/audit/publisher"
	auditmemory "fleetdocs/pkg/platform/audit/store/memory"
	auditpostgres "fleetdocs/pkg/platform/audit/store/postgres"
	"fleetdocs/pkg/platform/circuit"
	"fleetdocs/pkg/platform/tx"
)

type stores struct {
	documents  ports.DocumentStore
	categories ports.CategoryStore
	renewals   ports.RenewalStore
	reminders  ports.ReminderStore
	events     auditStore
	tx         ports.TxRunner
}

type auditStore interface {
	audit.Store
	audit.Outbox
}

// engine holds every document service. A REST layer embeds it; this process
// runs the periodic tasks and the ops surface.
type engine struct {
	Categories *category.Service
	Documents  *service.Service
	Renewals   *renewal.Service
	Query      *query.Service
	Sweeper    *sweep.Sweeper
	Reminders  *reminder.Dispatcher

	outbox audit.Outbox
	locker ports.Locker
	checks []ops.Option
}

// openStores returns postgres stores when a database URL is configured and
// in-memory stores otherwise.
func openStores(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*stores, *sqlx.DB, error) {
	if cfg.URL == "" {
		logger.WarnContext(ctx, "no database configured, using in-memory stores")
		return &stores{
			documents:  documentstore.NewInMemory(),
			categories: categorystore.NewInMemory(),
			renewals:   renewalstore.NewInMemory(),
			reminders:  reminderstore.NewInMemory(),
			events:     auditmemory.NewInMemoryStore(),
			tx:         tx.NewSerial(),
		}, nil, nil
	}

	db, err := database.Open(ctx, database.Config{
		URL:             cfg.URL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Migrate {
		if err := database.Migrate(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	return &stores{
		documents:  documentstore.NewPostgres(db),
		categories: categorystore.NewPostgres(db),
		renewals:   renewalstore.NewPostgres(db),
		reminders:  reminderstore.NewPostgres(db),
		events:     auditpostgres.New(db),
		tx:         tx.NewPostgres(db, 0),
	}, db, nil
}

func openFiles(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (ports.FileStore, error) {
	if cfg.Bucket == "" {
		logger.WarnContext(ctx, "no S3 bucket configured, keeping files in memory")
		return filestore.NewMemory(), nil
	}
	s3, err := filestore.NewS3(ctx, filestore.S3Config{
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Endpoint:  cfg.Endpoint,
		Prefix:    cfg.Prefix,
	}, logger)
	if err != nil {
		return nil, err
	}
	return s3, nil
}

func openNotifier(cfg config.Config, logger *slog.Logger) (ports.Notifier, *notify.StaticRecipients, error) {
	recipients, err := notify.NewStaticRecipients(cfg.Email.Recipients, map[models.EntityType][]string{
		models.EntityVehicle: cfg.Email.VehicleRecipients,
		models.EntityDriver:  cfg.Email.DriverRecipients,
		models.EntityCompany: cfg.Email.CompanyRecipients,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("email recipients: %w", err)
	}

	email := notify.NewEmail(notify.EmailConfig{
		APIKey:  cfg.Email.ResendAPIKey,
		From:    cfg.Email.From,
		AppName: cfg.AppName,
		AppURL:  cfg.AppURL,
		DevMode: cfg.IsDevelopment(),
	}, logger)
	breaker := circuit.New("notify.email",
		circuit.WithFailureThreshold(cfg.Breaker.FailureThreshold),
		circuit.WithCooldown(cfg.Breaker.Cooldown),
	)
	return notify.NewGuarded(email, breaker, logger), recipients, nil
}

// openLocker prefers Redis so leases hold across replicas.
func openLocker(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (ports.Locker, *platformredis.Client, error) {
	client, err := platformredis.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		logger.WarnContext(ctx, "no redis configured, leases are process-local")
		return lease.NewMemory(), nil, nil
	}
	return lease.NewRedis(client.Client), client, nil
}

func buildEngine(ctx context.Context, cfg config.Config, reg prometheus.Registerer, logger *slog.Logger) (*engine, func(), error) {
	loc := cfg.Location()
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*engine, func(), error) {
		cleanup()
		return nil, nil, err
	}

	st, db, err := openStores(ctx, cfg.Database, logger)
	if err != nil {
		return fail(err)
	}
	eng := &engine{outbox: st.events}
	if db != nil {
		closers = append(closers, func() { _ = db.Close() })
		eng.checks = append(eng.checks, ops.WithCheck("postgres", db.PingContext))
	}

	locker, rc, err := openLocker(ctx, cfg.Redis, logger)
	if err != nil {
		return fail(err)
	}
	eng.locker = locker
	if rc != nil {
		closers = append(closers, func() { _ = rc.Close() })
		eng.checks = append(eng.checks, ops.WithCheck("redis", rc.Health))
	}

	files, err := openFiles(ctx, cfg.S3, logger)
	if err != nil {
		return fail(err)
	}
	notifier, recipients, err := openNotifier(cfg, logger)
	if err != nil {
		return fail(err)
	}
	entities, err := entity.ParseEntries(cfg.Entities.Directory)
	if err != nil {
		return fail(err)
	}

	publisher := auditpublisher.New(st.events,
		auditpublisher.WithLogger(logger),
		auditpublisher.WithMetrics(auditpublisher.NewMetrics(reg)),
	)
	m := docmetrics.New(reg)

	if eng.Categories, err = category.New(st.categories, st.documents, st.tx,
		category.WithLogger(logger),
		category.WithAuditPublisher(publisher),
	); err != nil {
		return fail(err)
	}
	seeded, err := eng.Categories.SeedDefaults(ctx)
	if err != nil {
		return fail(fmt.Errorf("seed categories: %w", err))
	}
	if seeded > 0 {
		logger.InfoContext(ctx, "default categories seeded", "count", seeded)
	}

	if eng.Documents, err = service.New(service.Deps{
		Documents:  st.documents,
		Categories: eng.Categories,
		Files:      files,
		Tx:         st.tx,
		Entities:   entities,
	},
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher),
		service.WithLocation(loc),
	); err != nil {
		return fail(err)
	}

	if eng.Renewals, err = renewal.New(renewal.Deps{
		Documents: st.documents,
		Records:   st.renewals,
		Policies:  eng.Categories,
		Files:     files,
		Locker:    locker,
		Tx:        st.tx,
	},
		renewal.WithLogger(logger),
		renewal.WithAuditPublisher(publisher),
		renewal.WithMetrics(m),
		renewal.WithLocation(loc),
	); err != nil {
		return fail(err)
	}

	if eng.Query, err = query.New(st.documents, st.tx,
		query.WithLogger(logger),
		query.WithAuditPublisher(publisher),
		query.WithMetrics(m),
		query.WithLocation(loc),
	); err != nil {
		return fail(err)
	}

	if eng.Sweeper, err = sweep.New(st.documents, st.tx,
		sweep.WithLogger(logger),
		sweep.WithAuditPublisher(publisher),
		sweep.WithMetrics(m),
		sweep.WithLocation(loc),
		sweep.WithBatchSize(cfg.Schedule.BatchSize),
		sweep.WithStaleRenewalAfter(cfg.Schedule.StaleRenewalAfter),
	); err != nil {
		return fail(err)
	}

	if eng.Reminders, err = reminder.New(st.documents, st.reminders, notifier, recipients, st.tx,
		reminder.WithLogger(logger),
		reminder.WithAuditPublisher(publisher),
		reminder.WithMetrics(m),
		reminder.WithLocation(loc),
		reminder.WithBatchSize(cfg.Schedule.BatchSize),
		reminder.WithConcurrency(cfg.Reminders.Concurrency),
		reminder.WithRemindOnExpired(cfg.Reminders.OnExpired),
	); err != nil {
		return fail(err)
	}

	return eng, cleanup, nil
}

// runTask adapts a report-returning run to a scheduler task.
func runTask[R any](logger *slog.Logger, name string, run func(context.Context) (R, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		start := time.Now()
		report, err := run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.InfoContext(ctx, "task finished", "task", name, "report", report, "elapsed", time.Since(start))
		return err
	}
}
