package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eshelf/loan-portal/config"
	"github.com/eshelf/loan-portal/internal/handler"
	"github.com/eshelf/loan-portal/internal/repository"
	"github.com/eshelf/loan-portal/internal/server"
	"github.com/eshelf/loan-portal/internal/service"
	"github.com/eshelf/loan-portal/migrations"
	"github.com/eshelf/loan-portal/pkg/auth"
	"github.com/eshelf/loan-portal/pkg/kafka"
	"github.com/eshelf/loan-portal/pkg/logger"
	"github.com/eshelf/loan-portal/pkg/mailer"
	"github.com/eshelf/loan-portal/pkg/postgres"
	"github.com/eshelf/loan-portal/pkg/storage"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "portal")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		log.Fatal("repo", zap.Error(err))
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("storage init", zap.Error(err))
	}
	mail := mailer.New(cfg.SMTP)
	tokens := auth.NewManager(cfg.Auth.JWTSecret)

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		log.Fatal("kafka.NewProducer", zap.Error(err))
	}
	consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.PortalConsumerGroup)
	if err != nil {
		log.Fatal("kafka.NewConsumer", zap.Error(err))
	}

	books := service.NewBookService(repo, store, log)
	loans := service.NewLoanService(repo, tokens, service.NewEnqueuer(producer), log)
	authSvc := service.NewAuthService(cfg.Auth, tokens, log)

	h := handler.New(books, loans, authSvc, tokens, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return kafka.Consume(gCtx, consumer, handler.NewConsumer(mail.SendAccessCode, log), kafka.NotificationsTopic)
	})

	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second*5)
	defer closeCancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.DPanic("srv.Stop", zap.Error(err))
	}
	cancel()
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error("consumer stop", zap.Error(err))
	}
	if err := consumer.Close(); err != nil {
		log.Error("consumer close", zap.Error(err))
	}
	if err := producer.Close(); err != nil {
		log.Error("producer close", zap.Error(err))
	}
	db.Close()
	log.Info("Graceful shutdown finished")
}
