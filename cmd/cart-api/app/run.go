package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/aq2208/gcart-api/configs"
	"github.com/aq2208/gcart-api/internal/adapter/cache"
	"github.com/aq2208/gcart-api/internal/adapter/catalog"
	"github.com/aq2208/gcart-api/internal/adapter/http"
	"github.com/aq2208/gcart-api/internal/adapter/http/middleware"
	"github.com/aq2208/gcart-api/internal/adapter/kafka"
	"github.com/aq2208/gcart-api/internal/adapter/queue"
	"github.com/aq2208/gcart-api/internal/adapter/repo"
	"github.com/aq2208/gcart-api/internal/adapter/store"
	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/security"
	"github.com/aq2208/gcart-api/internal/usecase"
)

type App struct {
	Router *gin.Engine
	Store  *store.CartStore
	Log    *slog.Logger
}

// InitWithConfig wires every adapter selected by cfg. The returned cleanup
// closes connections in reverse order of opening; it is nil when err != nil.
func InitWithConfig(ctx context.Context, cfg configs.Config) (_ *App, _ func(), err error) {
	logger := logging.Init(cfg.App.Name, cfg.App.LogFile, cfg.App.LogLevel)
	logger.Info("cart-api: starting up", "store", cfg.Store.Driver, "events", cfg.Events.Driver)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			cleanup()
		}
	}()

	// read-only data
	products, err := catalog.LoadJSONCatalog(cfg.Catalog.ProductsFile)
	if err != nil {
		return nil, nil, err
	}
	users, err := catalog.LoadJSONUsers(cfg.Catalog.UsersFile)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("catalog loaded", "products", products.Len(), "users", users.Len())

	// init redis
	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = rdb.Close() })
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return nil, nil, errors.Wrap(err, "redis ping")
		}
	}

	// init database, shared by the mysql store and the outbox
	var db *sql.DB
	if cfg.NeedsMySQL() {
		if db, err = openMySQL(ctx, cfg); err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = db.Close() })
	}

	// durable snapshot backend
	var snap usecase.SnapshotStore
	switch cfg.Store.Driver {
	case "redis":
		snap = cache.NewRedisSnapshotStore(rdb, cfg.Store.RedisKey)
	case "mysql":
		r := repo.NewMySQLSnapshotRepo(db, cfg.Store.Name)
		if err := r.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		snap = r
	default:
		snap = store.NewFileSnapshot(cfg.Store.FilePath)
	}

	carts := store.NewCartStore(snap, store.WithLogger(logging.New("cart-store")))
	if err := carts.Load(ctx); err != nil {
		// a corrupt snapshot must not be overwritten by an empty one
		return nil, nil, errors.Wrap(err, "load carts")
	}
	logger.Info("carts loaded", "carts", carts.Len())

	opts := []usecase.Option{usecase.WithLogger(logging.New("cart-service"))}
	if cfg.Idempotency.Enabled {
		opts = append(opts, usecase.WithIdempotency(cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)))
	}

	// cart events
	switch cfg.Events.Driver {
	case "rabbitmq":
		conn, err := amqp091.Dial(cfg.Rabbit.URL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "rabbitmq dial")
		}
		closers = append(closers, func() { _ = conn.Close() })
		ch, err := conn.Channel()
		if err != nil {
			return nil, nil, errors.Wrap(err, "rabbitmq channel")
		}
		closers = append(closers, func() { _ = ch.Close() })
		pub, err := queue.NewRabbitPublisher(ch, queue.Topology{
			Exchange:   cfg.Rabbit.Exchange,
			RoutingKey: cfg.Rabbit.RoutingKey,
			Queue:      cfg.Rabbit.Queue,
		})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, usecase.WithEvents(pub))
	case "kafka":
		producer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
		if err != nil {
			return nil, nil, errors.Wrap(err, "kafka producer")
		}
		pub := kafka.NewPublisher(producer, cfg.Kafka.TopicEvents)
		closers = append(closers, func() { _ = pub.Close() })
		opts = append(opts, usecase.WithEvents(pub))
	case "outbox":
		outbox := repo.NewMySQLOutboxRepo(db)
		if err := outbox.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		opts = append(opts, usecase.WithEvents(outbox))
	}

	// init handlers + routers + middleware
	tokens := security.NewTokens(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.Audience, cfg.Security.TTL)
	cartSvc := usecase.NewCartService(carts, products, opts...)
	router := http.NewRouter(http.Handlers{
		Cart:    http.NewCartHandler(cartSvc, cfg.HTTP.RequestTimeout),
		Product: http.NewProductHandler(products),
		Auth:    http.NewAuthHandler(usecase.NewLogin(users), tokens),
		Health:  http.NewHealthHandler(carts),
	}, middleware.NewAuthz(tokens), http.RouterOptions{
		CORSOrigins: cfg.CORS.AllowOrigins,
		Logger:      logging.New("http"),
	})

	return &App{Router: router, Store: carts, Log: logger}, cleanup, nil
}

func openMySQL(ctx context.Context, cfg configs.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "mysql ping")
	}
	return db, nil
}
