package app

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/you-humble/jobclient/internal/domain"
	"github.com/you-humble/jobclient/internal/engine"
	"github.com/you-humble/jobclient/internal/gateway"
	"github.com/you-humble/jobclient/internal/infra/config"
	"github.com/you-humble/jobclient/internal/infra/mio"
	"github.com/you-humble/jobclient/internal/infra/natsq"
	"github.com/you-humble/jobclient/internal/infra/rediscli"
	filestore "github.com/you-humble/jobclient/internal/infra/store/file"
	"github.com/you-humble/jobclient/internal/infra/store/file/replicator"
	"github.com/you-humble/jobclient/internal/projector"
	"github.com/you-humble/jobclient/internal/upload"
	"github.com/you-humble/jobclient/internal/usecase"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

var mirrorOptions = replicator.Options{
	QueueSize: 16,
	Workers:   2,
	Attempts:  4,
	Backoff:   500 * time.Millisecond,
}

type Usecase interface {
	SendEmails(ctx context.Context, in usecase.SendInput) (usecase.Artifact, error)
	Split(ctx context.Context, in usecase.SplitInput) (usecase.Artifact, error)
	Sheets(ctx context.Context, file domain.File) ([]string, error)
	Status(ctx context.Context, id domain.JobID) (domain.JobStatus, error)
}

type dependencyInjector struct {
	cfgPath string
	cfg     *config.Config
	logger  *slog.Logger

	gateway *gateway.Gateway
	store   filestore.Store

	redis    *redis.Client
	natsConn *nats.Conn
	js       nats.JetStreamContext

	projector   *projector.Multi
	coordinator *upload.Coordinator
	engine      *engine.Engine

	usecase Usecase
}

func newDI(cfgPath string) *dependencyInjector {
	return &dependencyInjector{cfgPath: cfgPath}
}

func (di *dependencyInjector) Config() *config.Config {
	if di.cfg == nil {
		di.cfg = config.MustLoad(di.cfgPath)
	}

	return di.cfg
}

// Logger writes to stderr so progress lines on stdout stay readable.
func (di *dependencyInjector) Logger() *slog.Logger {
	if di.logger == nil {
		var level slog.Level
		if err := level.UnmarshalText([]byte(di.Config().LogLevel)); err != nil {
			level = slog.LevelInfo
		}

		di.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(di.logger)
	}

	return di.logger
}

func (di *dependencyInjector) Gateway() *gateway.Gateway {
	if di.gateway == nil {
		cfg := di.Config()
		gw, err := gateway.New(gateway.Config{
			BaseURL:   cfg.ServerURL,
			Timeout:   cfg.RequestTimeout,
			RateLimit: cfg.RateLimit,
		})
		if err != nil {
			log.Fatalf("Gateway: %+v", err)
		}
		di.gateway = gw
	}

	return di.gateway
}

func (di *dependencyInjector) ArtifactStore(ctx context.Context) filestore.Store {
	if di.store == nil {
		cfg := di.Config()

		local, err := filestore.NewLocalStore(cfg.Artifacts.BaseDir)
		if err != nil {
			log.Fatalf("ArtifactStore local: %+v", err)
		}
		di.Logger().Debug("initialized local artifact store", slog.String("base_dir", cfg.Artifacts.BaseDir))

		if !cfg.MinIO.Enabled() {
			di.store = local
			return di.store
		}

		remote, err := filestore.NewMinIOStore(ctx, mio.Config{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKeyID:     cfg.MinIO.AccessKeyID,
			SecretAccessKey: cfg.MinIO.SecretAccessKey,
			UseSSL:          cfg.MinIO.UseSSL,
			Bucket:          cfg.MinIO.Bucket,
			BasePath:        "artifacts",
		})
		if err != nil {
			log.Fatalf("ArtifactStore minio: %+v", err)
		}

		di.store = filestore.NewMirroredStore(ctx, local, remote, mirrorOptions)
		di.Logger().Info(
			"mirroring artifacts to MinIO",
			slog.String("endpoint", cfg.MinIO.Endpoint),
			slog.String("bucket", cfg.MinIO.Bucket),
		)
	}

	return di.store
}

func (di *dependencyInjector) RedisClient(ctx context.Context) *redis.Client {
	if di.redis == nil {
		cfg := di.Config().Redis
		client, err := rediscli.NewClient(ctx, rediscli.Config{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			log.Fatalf("Redis: %+v", err)
		}

		di.redis = client
		di.Logger().Info("connected to redis", slog.String("addr", cfg.Addr))
	}
	return di.redis
}

func (di *dependencyInjector) NATSConn() *nats.Conn {
	if di.natsConn == nil {
		cfg := di.Config().NATS
		nc, err := natsq.NewConnect(cfg.URL, natsq.Config{
			Name:          cfg.Name,
			MaxReconnects: cfg.MaxReconnects,
		})
		if err != nil {
			log.Fatalf("NATS connect: %+v", err)
		}
		di.natsConn = nc
	}
	return di.natsConn
}

func (di *dependencyInjector) JetStream() nats.JetStreamContext {
	if di.js == nil {
		cfg := di.Config().NATS
		js, err := natsq.NewJetStream(di.NATSConn(), natsq.StreamConfig(cfg.Stream, cfg.Subject))
		if err != nil {
			log.Fatalf("JetStream: %+v", err)
		}
		di.js = js
	}
	return di.js
}

// Projector fans events out to the console and to whichever of Redis and
// NATS are configured.
func (di *dependencyInjector) Projector(ctx context.Context) *projector.Multi {
	if di.projector == nil {
		cfg := di.Config()
		di.projector = projector.NewMulti(projector.NewConsole(os.Stdout, cfg.ServerURL))

		if cfg.Redis.Enabled() {
			di.projector.Add(projector.NewRedis(di.RedisClient(ctx), cfg.SessionTTL))
		}
		if cfg.NATS.Enabled() {
			di.projector.Add(projector.NewNATS(di.JetStream(), cfg.NATS.Subject))
		}
	}
	return di.projector
}

func (di *dependencyInjector) Coordinator(ctx context.Context) *upload.Coordinator {
	if di.coordinator == nil {
		di.coordinator = upload.New(di.Config().MaxUploadBytes(), di.Gateway(), di.Projector(ctx))
	}
	return di.coordinator
}

func (di *dependencyInjector) Engine(ctx context.Context) *engine.Engine {
	if di.engine == nil {
		di.engine = engine.New(di.Gateway(), di.Projector(ctx), engine.Options{
			PollInterval:  di.Config().PollInterval,
			RequireHandle: true,
		})
	}
	return di.engine
}

func (di *dependencyInjector) Usecase(ctx context.Context) Usecase {
	if di.usecase == nil {
		di.usecase = usecase.New(
			di.Gateway(),
			di.Coordinator(ctx),
			di.Engine(ctx),
			di.ArtifactStore(ctx),
		)
	}
	return di.usecase
}

// Close releases whatever was opened. Pending artifact replication gets
// until ctx is done.
func (di *dependencyInjector) Close(ctx context.Context) error {
	var errs []error

	if di.engine != nil {
		di.engine.Cancel()
	}
	if di.store != nil {
		if err := di.store.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if di.js != nil {
		select {
		case <-di.js.PublishAsyncComplete():
		case <-ctx.Done():
			slog.Warn("dropping unacknowledged events")
		}
	}
	if di.natsConn != nil {
		if err := di.natsConn.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	if di.redis != nil {
		if err := di.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
