package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rentchat/internal/domain/chat"
	"rentchat/internal/infra/broker/kafka"
	"rentchat/internal/infra/config"
	"rentchat/internal/infra/db/mongo"
	"rentchat/internal/infra/db/scylla"
	ginserver "rentchat/internal/infra/http/gin"
	"rentchat/internal/infra/obs"
	"rentchat/internal/infra/storage/memory"
	"rentchat/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
		cfg.Env = env
		cfg.HTTPAddr = getenv("HTTP_ADDR", ":8080")
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	app, cleanup, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Checks: app.checks,
	}, app.handlers)

	if cfg.FixturesPath != "" {
		if err := loadChatFixtures(ctx, cfg.FixturesPath, app.store, logger); err != nil {
			logger.Warn("chat fixtures load failed", "error", err, "path", cfg.FixturesPath)
		}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

// fixtureStore is what seeding needs beyond the HTTP contract. Both the
// memory store and the mongo repository satisfy it.
type fixtureStore interface {
	ginserver.ChatStore
	SetPropertyContext(ctx context.Context, conversationID, address, title string) error
}

type application struct {
	handlers ginserver.Handlers
	store    fixtureStore
	checks   map[string]func() error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var store fixtureStore
	checks := make(map[string]func() error)
	switch {
	case len(cfg.ScyllaHosts) > 0:
		session, err := scylla.NewSession(scylla.Config{
			Hosts:       cfg.ScyllaHosts,
			Keyspace:    cfg.ScyllaKeyspace,
			Username:    cfg.ScyllaUsername,
			Password:    cfg.ScyllaPassword,
			Consistency: cfg.ScyllaConsistency,
			Timeout:     cfg.ScyllaTimeout,
		}, logger)
		if err != nil {
			return application{}, cleanup, fmt.Errorf("scylla connect: %w", err)
		}
		cleanups = append(cleanups, session.Close)
		scyllaStore := scylla.NewChatStore(session, logger)
		store = scyllaStore
		checks["scylla"] = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return scyllaStore.Ping(pingCtx)
		}
		logger.Info("chat store: scylla", "keyspace", cfg.ScyllaKeyspace)
	case cfg.MongoURI != "":
		client, err := mongo.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return application{}, cleanup, fmt.Errorf("mongo connect: %w", err)
		}
		cleanups = append(cleanups, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Close(closeCtx); err != nil {
				logger.Error("mongo close failed", "error", err)
			}
		})
		if err := client.Ping(ctx); err != nil {
			return application{}, cleanup, fmt.Errorf("mongo ping: %w", err)
		}
		store = mongo.NewChatRepository(client.DB)
		checks["mongo"] = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
		logger.Info("chat store: mongodb", "database", cfg.MongoDB)
	default:
		store = memory.NewChatStore()
		logger.Info("chat store: in-memory")
	}

	var notifier ginserver.ChatNotifier
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return application{}, cleanup, fmt.Errorf("kafka connect: %w", err)
		}
		cleanups = append(cleanups, func() {
			if err := producer.Close(); err != nil {
				logger.Error("kafka close failed", "error", err)
			}
		})
		notifier = kafka.NewNotifier(producer, cfg.KafkaTopic, logger)
		logger.Info("conversation events: kafka", "topic", cfg.KafkaTopic, "brokers", strings.Join(cfg.KafkaBrokers, ","))
	} else {
		logger.Info("conversation events: disabled")
	}

	var uploads s3.Uploader
	if cfg.S3Endpoint != "" {
		client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicEndpoint, logger)
		if err != nil {
			return application{}, cleanup, fmt.Errorf("s3 connect: %w", err)
		}
		uploads = client
		logger.Info("attachments: s3", "bucket", cfg.S3Bucket)
	} else {
		logger.Info("attachments: disabled")
	}

	return application{
		handlers: ginserver.Handlers{
			Chat: &ginserver.ChatHandler{
				Store:    store,
				Uploads:  uploads,
				Notifier: notifier,
				Logger:   logger,
			},
		},
		store:    store,
		checks:   checks,
	}, cleanup, nil
}

type chatFixtures struct {
	Profiles []profileFixture `json:"profiles"`
	Threads  []threadFixture  `json:"threads"`
}

type profileFixture struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar"`
}

type threadFixture struct {
	PropertyAddress string           `json:"propertyAddress"`
	PropertyTitle   string           `json:"propertyTitle"`
	ReadBy          []string         `json:"readBy"`
	Messages        []messageFixture `json:"messages"`
}

type messageFixture struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	SentAt     string `json:"sentAt"`
}

// loadChatFixtures seeds demo profiles and conversations so the view has
// something to show on a fresh store.
func loadChatFixtures(ctx context.Context, path string, store fixtureStore, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("chat fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}

	var fixtures chatFixtures
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	for _, p := range fixtures.Profiles {
		if err := store.UpsertProfile(ctx, chat.Profile{ID: p.ID, Name: p.Name, Role: p.Role, Avatar: p.Avatar}); err != nil {
			logger.Error("fixture profile rejected", "profile_id", p.ID, "error", err)
		}
	}

	now := time.Now()
	for i, thread := range fixtures.Threads {
		var conversationID string
		for _, m := range thread.Messages {
			msgType := chat.MessageType(m.Type)
			if msgType == "" {
				msgType = chat.MessageText
			}
			_, convID, err := store.SendMessage(ctx, m.SenderID, m.ReceiverID, m.Content, msgType, parseFixtureTime(m.SentAt, now))
			if err != nil {
				logger.Error("fixture message rejected", "thread", i, "error", err)
				continue
			}
			conversationID = convID
		}
		if conversationID == "" {
			continue
		}
		if thread.PropertyAddress != "" || thread.PropertyTitle != "" {
			if err := store.SetPropertyContext(ctx, conversationID, thread.PropertyAddress, thread.PropertyTitle); err != nil {
				logger.Error("fixture property context rejected", "thread", i, "error", err)
			}
		}
		for _, userID := range thread.ReadBy {
			if err := store.MarkRead(ctx, conversationID, userID); err != nil {
				logger.Error("fixture mark read rejected", "thread", i, "user_id", userID, "error", err)
			}
		}
		logger.Info("chat thread fixture imported", "conversation_id", conversationID, "messages", len(thread.Messages))
	}
	return nil
}

func parseFixtureTime(value string, fallback time.Time) time.Time {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return fallback
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
