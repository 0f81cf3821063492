// Package app assembles the engine and its adapters from configuration.
package app

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/court-reservations/internal/adapters/crdb"
	"github.com/robertarktes/court-reservations/internal/adapters/memory"
	mongoadapter "github.com/robertarktes/court-reservations/internal/adapters/mongo"
	"github.com/robertarktes/court-reservations/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/court-reservations/internal/adapters/redis"
	"github.com/robertarktes/court-reservations/internal/availability"
	"github.com/robertarktes/court-reservations/internal/config"
	"github.com/robertarktes/court-reservations/internal/ledger"
	"github.com/robertarktes/court-reservations/internal/lock"
	"github.com/robertarktes/court-reservations/internal/notify"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/robertarktes/court-reservations/internal/outbox"
	"github.com/robertarktes/court-reservations/internal/reservation"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

// App holds the assembled engine plus the connections it owns.
type App struct {
	Engine   *reservation.Engine
	Resolver *availability.Resolver
	Catalog  availability.Catalog

	// Outbox is set when notifications go through the outbox table.
	Outbox outbox.Store
	// Broker is set when RABBIT_URL is configured.
	Broker *rabbit.Publisher
	// Redis is set when REDIS_ADDR is configured.
	Redis *redisclient.Client

	Memory *memory.Store
	CRDB   *crdb.Repository

	pings   []func(ctx context.Context) error
	closers []func()
}

type connections struct {
	pool   *pgxpool.Pool
	mongo  *mongo.Client
	redis  *redisclient.Client
	rabbit *amqp.Connection
}

// connect dials every configured backend in parallel.
func connect(ctx context.Context, cfg *config.Config) (*connections, error) {
	var c connections
	g, gctx := errgroup.WithContext(ctx)

	if cfg.StoreBackend == config.BackendCRDB {
		g.Go(func() error {
			pool, err := pgxpool.New(gctx, cfg.CRDBDSN)
			if err != nil {
				return errors.Wrap(err, "connect to crdb")
			}
			c.pool = pool
			return errors.Wrap(pool.Ping(gctx), "ping crdb")
		})
	}
	if cfg.MongoURI != "" {
		g.Go(func() error {
			client, err := mongo.Connect(gctx, options.Client().ApplyURI(cfg.MongoURI))
			if err != nil {
				return errors.Wrap(err, "connect to mongo")
			}
			c.mongo = client
			return errors.Wrap(client.Ping(gctx, nil), "ping mongo")
		})
	}
	if cfg.RedisAddr != "" {
		g.Go(func() error {
			c.redis = redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
			return errors.Wrap(c.redis.Ping(gctx).Err(), "ping redis")
		})
	}
	if cfg.RabbitURL != "" {
		g.Go(func() error {
			conn, err := amqp.Dial(cfg.RabbitURL)
			if err != nil {
				return errors.Wrap(err, "connect to rabbitmq")
			}
			c.rabbit = conn
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		c.close()
		return nil, err
	}
	return &c, nil
}

func (c *connections) close() {
	if c.pool != nil {
		c.pool.Close()
	}
	if c.mongo != nil {
		_ = c.mongo.Disconnect(context.Background())
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
	if c.rabbit != nil {
		_ = c.rabbit.Close()
	}
}

// Build connects to the configured backends and wires the engine over them.
func Build(ctx context.Context, cfg *config.Config, logger observability.Logger) (*App, error) {
	conns, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Redis: conns.redis, closers: []func(){conns.close}}

	var (
		bookings    reservation.BookingStore
		ledgerStore ledger.Store
		lockStore   lock.Store
		audit       reservation.AuditTrail
	)

	switch cfg.StoreBackend {
	case config.BackendCRDB:
		repo := crdb.NewRepository(conns.pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.CRDB = repo
		a.Outbox = repo
		a.pings = append(a.pings, repo.Ping)
		bookings, ledgerStore, lockStore = repo, repo, repo.Locks()
	default:
		a.Memory = memory.NewStore()
		a.Outbox = a.Memory
		bookings, ledgerStore, lockStore, audit = a.Memory, a.Memory, a.Memory, a.Memory
	}

	if conns.mongo != nil {
		db := conns.mongo.Database(cfg.MongoDB)
		a.Catalog = mongoadapter.NewCatalogRepository(db, logger)
		auditLogger := mongoadapter.NewAuditLogger(db, logger)
		if err := auditLogger.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("audit indexes not created")
		}
		audit = auditLogger
		a.pings = append(a.pings, func(ctx context.Context) error { return conns.mongo.Ping(ctx, nil) })
	} else {
		if a.Memory == nil {
			a.Close()
			return nil, errors.New("MONGO_URI is required when STORE_BACKEND=crdb")
		}
		a.Catalog = a.Memory
		SeedCatalog(a.Memory)
		logger.Warn("no MONGO_URI, serving the built-in demo catalog")
	}

	if cfg.SlotLockBackend == config.BackendRedis {
		lockStore = redisadapter.NewCache(conns.redis)
	}
	if conns.redis != nil {
		a.pings = append(a.pings, func(ctx context.Context) error { return conns.redis.Ping(ctx).Err() })
	}

	var notifier notify.Dispatcher = notify.NewLogDispatcher(logger)
	if conns.rabbit != nil {
		broker, err := rabbit.NewPublisher(conns.rabbit, cfg.RabbitExchange)
		if err != nil {
			a.Close()
			return nil, errors.Wrap(err, "declare exchange")
		}
		a.Broker = broker
		notifier = notify.NewOutboxDispatcher(a.Outbox)
	}

	ledg := ledger.New(ledgerStore, logger)
	a.Resolver = availability.NewResolver(a.Catalog, bookings, cfg.Location)
	a.Engine = reservation.NewEngine(reservation.Deps{
		Bookings: bookings,
		Catalog:  a.Catalog,
		Ledger:   ledg,
		Gate:     ledger.NewGate(ledgerStore, logger),
		Locks:    lock.NewManager(lockStore, cfg.SlotLockTTL, logger),
		Notifier: notifier,
		Audit:    audit,
		Logger:   logger,
	}, reservation.Policy{
		LateCancelWindow:     cfg.LateCancelWindow,
		NoShowWindow:         cfg.NoShowWindow,
		DefaultPaymentMethod: cfg.DefaultPaymentMethod,
		Location:             cfg.Location,
	})
	return a, nil
}

// Ready pings every backend the app depends on.
func (a *App) Ready(ctx context.Context) error {
	for _, ping := range a.pings {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
