package svc

import (
	"context"
	"fmt"
	"time"

	"failboard/config"
	"failboard/internal/bookmark"
	"failboard/internal/digest"
	"failboard/internal/gamify"
	"failboard/internal/graph"
	"failboard/internal/infra/ai"
	"failboard/internal/infra/cache"
	"failboard/internal/infra/db"
	"failboard/internal/infra/docstore"
	"failboard/internal/infra/mail"
	"failboard/internal/infra/mq"
	"failboard/internal/infra/storage"
	"failboard/internal/infra/vector"
	"failboard/internal/message"
	"failboard/internal/middleware"
	"failboard/internal/models"
	"failboard/internal/moderation"
	"failboard/internal/notify"
	"failboard/internal/pubsub"
	"failboard/internal/story"
	"failboard/internal/user"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const hubBuffer = 1

type ServiceContext struct {
	Config *config.Config
	DB     *gorm.DB
	Cache  *cache.RedisCache
	Rabbit *mq.RabbitMQ
	Mongo  *docstore.Client
	AI     *ai.AIService
	Qdrant *vector.QdrantService
	Minio  *storage.FileStorage
	Mail   mail.Sender
	Kafka  *kafka.Writer

	Stories    *story.Repository
	Bookmarks  *bookmark.Store
	Notifier   *notify.Engine
	Graph      *graph.Service
	Moderation *moderation.Queue
	Points     *gamify.Service
	Messages   *message.Service
	Assistant  *story.Assistant
	Dispatcher *digest.Dispatcher
	Digest     *digest.Runner
	Consumer   *mq.Consumer

	tracerProvider *trace.TracerProvider
}

// NewServiceContext connects the backing services and builds the domain
// services on top of them. Only MySQL is required; every other backend is
// skipped with a warning and the features it serves degrade.
func NewServiceContext(cfg *config.Config) (*ServiceContext, error) {
	dbConn, err := db.InitMySQL(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(dbConn); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	s := &ServiceContext{Config: cfg, DB: dbConn}
	s.connect()

	var kv cache.KV = cache.NewMemory()
	if s.Cache != nil {
		kv = s.Cache
	} else {
		zap.L().Warn("stories and bookmarks are kept in memory only")
	}

	s.Stories = story.NewRepository(kv, cfg.StoryMaxLength)
	if err := s.Stories.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("load stories: %w", err)
	}
	s.Bookmarks = bookmark.NewStore(kv)
	s.Points = gamify.NewService(dbConn)
	s.Graph = graph.NewService(graph.NewGormStore(dbConn))
	s.Moderation = moderation.NewQueue(dbConn, s.Stories)

	deliverer := digest.NewDeliverer(dbConn, s.Mail)
	s.Dispatcher = digest.NewDispatcher(s.Tasks(), deliverer)
	s.Digest = digest.NewRunner(dbConn, s.Stories, s.Mail)

	s.Notifier = notify.NewEngine(
		notify.NewGormStore(dbConn),
		pubsub.NewHub[models.NotificationSnapshot](hubBuffer),
		s.Dispatcher,
	)

	if s.Mongo != nil {
		s.Messages = message.NewService(
			message.NewMongoStore(s.Mongo.Collection("conversations"), s.Mongo.Collection("messages")),
			pubsub.NewHub[models.Message](hubBuffer),
		)
	}

	var index story.VectorIndex
	if s.Qdrant != nil {
		index = s.Qdrant
	}
	s.Assistant = story.NewAssistant(s.Stories, s.AI, index)

	if s.Rabbit != nil {
		s.Consumer = mq.NewConsumer(s.Rabbit)
		s.Consumer.Register(mq.EmailQueue, deliverer.HandleQueued)
		s.Consumer.Register(mq.AIQueue, s.Assistant.HandleTask)
	}

	return s, nil
}

func (s *ServiceContext) connect() {
	cfg := s.Config

	if rdb, err := cache.New(cfg); err != nil {
		zap.L().Warn("Redis connection failed, continuing without Redis", zap.Error(err))
	} else {
		zap.L().Info("Redis connected successfully")
		s.Cache = rdb
	}

	if rabbit, err := mq.New(cfg); err != nil {
		zap.L().Warn("RabbitMQ connection failed, queued work runs inline", zap.Error(err))
	} else {
		s.Rabbit = rabbit
	}

	if client, err := docstore.Connect(cfg); err != nil {
		zap.L().Warn("MongoDB connection failed, conversations disabled", zap.Error(err))
	} else {
		s.Mongo = client
	}

	if q, err := vector.NewQdrantService(cfg); err != nil {
		zap.L().Warn("Qdrant unavailable, similar stories disabled", zap.Error(err))
	} else {
		s.Qdrant = q
	}

	if cfg.MinioAccessKey != "" {
		if fs, err := storage.NewFileStorage(cfg); err != nil {
			zap.L().Warn("MinIO unavailable, avatar upload disabled", zap.Error(err))
		} else {
			s.Minio = fs
		}
	}

	s.Mail = mail.NewLogSender(zap.L())
	if cfg.SMTPHost != "" {
		if sender, err := mail.NewSMTPSender(cfg); err != nil {
			zap.L().Warn("SMTP client setup failed, e-mails are logged only", zap.Error(err))
		} else {
			s.Mail = sender
		}
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		s.Kafka = &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    cfg.KafkaLogTopic,
			Balancer: &kafka.LeastBytes{},
			Async:    true,
		}
	}

	s.AI = ai.NewAIService(cfg)

	tp, err := middleware.InitTracer("failboard", cfg.JaegerEndpoint, cfg.AppEnv)
	if err != nil {
		zap.L().Warn("failed to init tracer", zap.Error(err))
	} else {
		s.tracerProvider = tp
	}
}

// The accessors below return untyped nil when a backend is missing, so
// callers can compare the interface against nil.

func (s *ServiceContext) Limiter() middleware.Limiter {
	if s.Cache == nil {
		return nil
	}
	return s.Cache
}

func (s *ServiceContext) Blacklist() middleware.Blacklist {
	if s.Cache == nil {
		return nil
	}
	return s.Cache
}

func (s *ServiceContext) Tokens() user.TokenRevoker {
	if s.Cache == nil {
		return nil
	}
	return s.Cache
}

func (s *ServiceContext) Leaderboard() user.LeaderboardCache {
	if s.Cache == nil {
		return nil
	}
	return s.Cache
}

func (s *ServiceContext) Tasks() story.Publisher {
	if s.Rabbit == nil {
		return nil
	}
	return s.Rabbit
}

func (s *ServiceContext) Avatars() user.AvatarStore {
	if s.Minio == nil {
		return nil
	}
	return s.Minio
}

func (s *ServiceContext) LogWriter() middleware.LogWriter {
	if s.Kafka == nil {
		return nil
	}
	return s.Kafka
}

func (s *ServiceContext) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.tracerProvider != nil {
		if err := s.tracerProvider.Shutdown(ctx); err != nil {
			zap.L().Error("Tracer shutdown error", zap.Error(err))
		}
	}
	if s.Rabbit != nil {
		s.Rabbit.Close()
		zap.L().Info("RabbitMQ closed")
	}
	if s.Kafka != nil {
		if err := s.Kafka.Close(); err != nil {
			zap.L().Error("Kafka writer close error", zap.Error(err))
		}
	}
	if s.Mongo != nil {
		if err := s.Mongo.Close(ctx); err != nil {
			zap.L().Error("MongoDB disconnect error", zap.Error(err))
		}
	}
	if s.Qdrant != nil {
		if err := s.Qdrant.Close(); err != nil {
			zap.L().Error("Qdrant close error", zap.Error(err))
		}
	}
	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			zap.L().Error("Redis close error", zap.Error(err))
		}
	}
}
