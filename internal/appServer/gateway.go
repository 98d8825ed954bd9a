package appServer

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ds124wfegd/notification-hub/config"
	"github.com/ds124wfegd/notification-hub/internal/clients"
	"github.com/ds124wfegd/notification-hub/internal/database"
	"github.com/ds124wfegd/notification-hub/internal/entity"
	"github.com/ds124wfegd/notification-hub/internal/rabbitMQ"
	"github.com/ds124wfegd/notification-hub/internal/service"
	"github.com/ds124wfegd/notification-hub/internal/transport"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RunGateway starts the ingestion API together with the status listener that
// keeps the status store current.
func RunGateway(cfg *config.Config) {

	logrus.SetFormatter(new(logrus.JSONFormatter))
	gin.SetMode(cfg.Server.Mode)

	redisClient := newRedisClient(cfg)
	defer redisClient.Close()

	rabbit, err := rabbitMQ.NewRabbitMQ(rabbitMQ.RabbitMQConfig{
		URL:      rabbitURL(cfg),
		Exchange: cfg.Rabbit.Exchange,
		Prefetch: cfg.Rabbit.Prefetch,
	})
	if err != nil {
		logrus.Fatalf("Failed to connect to RabbitMQ: %s", err.Error())
	}
	defer rabbit.Close()

	// The gateway owns the full topology so workers can start in any order.
	for _, channel := range []entity.Channel{entity.ChannelEmail, entity.ChannelPush} {
		if err := rabbit.DeclareDeliveryQueue(rabbitMQ.DeliveryQueue(string(channel))); err != nil {
			logrus.Fatalf("Failed to declare delivery queue: %s", err.Error())
		}
	}
	if err := rabbit.DeclareBoundQueue(cfg.Rabbit.StatusQueue, rabbitMQ.StatusRoutingKey); err != nil {
		logrus.Fatalf("Failed to declare status queue: %s", err.Error())
	}

	idempotencyRepo := database.NewIdempotencyRepository(redisClient)
	statusRepo := database.NewStatusRepository(redisClient)

	userClient := clients.NewUserClient(cfg.Services.UserServiceURL, cfg.Services.RequestTimeout)

	ingestion := service.NewIngestionService(idempotencyRepo, statusRepo, rabbit, userClient)
	listener := service.NewStatusListener(statusRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := rabbit.Consume(ctx, cfg.Rabbit.StatusQueue, 1, listener.Handle); err != nil {
			logrus.Errorf("status listener stopped: %s", err.Error())
		}
	}()

	health := transport.NewHealthHandler(redisClient, rabbit)

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg.Server.Port, cfg, transport.InitRoutes(ingestion, health)); err != nil {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("Gateway Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("Gateway Shutting Down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
