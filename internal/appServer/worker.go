package appServer

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/notification-hub/config"
	"github.com/ds124wfegd/notification-hub/internal/clients"
	"github.com/ds124wfegd/notification-hub/internal/database"
	"github.com/ds124wfegd/notification-hub/internal/entity"
	"github.com/ds124wfegd/notification-hub/internal/provider"
	"github.com/ds124wfegd/notification-hub/internal/rabbitMQ"
	"github.com/ds124wfegd/notification-hub/internal/service"
	"github.com/ds124wfegd/notification-hub/internal/transport"
	"github.com/ds124wfegd/notification-hub/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RunWorker starts a per-channel delivery worker: competing consumers on the
// channel queue, the template-invalidation listener and a health/metrics
// endpoint.
func RunWorker(cfg *config.Config) {

	logrus.SetFormatter(new(logrus.JSONFormatter))
	gin.SetMode(cfg.Server.Mode)

	channel := entity.Channel(cfg.Worker.Channel)
	if channel != entity.ChannelEmail && channel != entity.ChannelPush {
		logrus.Fatalf("%v: %s", entity.ErrUnknownChannel, cfg.Worker.Channel)
	}

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

	queue := rabbitMQ.DeliveryQueue(string(channel))
	if err := rabbit.DeclareDeliveryQueue(queue); err != nil {
		logrus.Fatalf("Failed to declare delivery queue: %s", err.Error())
	}

	templateUpdateQueue := fmt.Sprintf("%s_worker.template.updates", channel)
	if err := rabbit.DeclareBoundQueue(templateUpdateQueue, rabbitMQ.TemplateUpdatedRoutingKey); err != nil {
		logrus.Fatalf("Failed to declare template update queue: %s", err.Error())
	}

	retryRepo := database.NewRetryRepository(redisClient)
	templateCache := database.NewTemplateCacheRepository(redisClient)

	userClient := clients.NewUserClient(cfg.Services.UserServiceURL, cfg.Services.RequestTimeout)
	templateRenderer := clients.NewCachedTemplateRenderer(
		clients.NewTemplateClient(cfg.Services.TemplateServiceURL, cfg.Services.RequestTimeout),
		templateCache,
	)

	dispatcher := buildProvider(channel, cfg)
	statusPublisher := service.NewStatusPublisher(rabbit, channel)
	workerMetrics := metrics.New()

	delivery := service.NewDeliveryService(
		channel,
		userClient,
		templateRenderer,
		dispatcher,
		retryRepo,
		templateCache,
		statusPublisher,
		rabbit,
		workerMetrics,
		cfg.Worker.MaxRetries,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := rabbit.Consume(ctx, queue, cfg.Worker.Consumers, delivery.HandleDelivery); err != nil {
			logrus.Errorf("delivery consumer stopped: %s", err.Error())
		}
	}()

	go func() {
		if err := rabbit.Consume(ctx, templateUpdateQueue, 1, delivery.HandleTemplateUpdate); err != nil {
			logrus.Errorf("template update listener stopped: %s", err.Error())
		}
	}()

	health := transport.NewHealthHandler(redisClient, rabbit).
		WithBreakerStates(func() map[string]string {
			return map[string]string{"provider-dispatch": delivery.DispatchBreakerState()}
		})

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg.Worker.HealthPort, cfg, transport.InitWorkerRoutes(health, workerMetrics)); err != nil {
			logrus.Errorf("health server stopped: %s", err.Error())
		}
	}()

	logrus.Printf("%s worker started, consuming from %s", channel, queue)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("Worker Shutting Down")
	cancel()

	// Give in-flight deliveries a moment to settle before closing connections.
	time.Sleep(time.Second)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}

func buildProvider(channel entity.Channel, cfg *config.Config) provider.Provider {
	if channel == entity.ChannelPush {
		return provider.NewPushProvider(cfg.Push.Endpoint, cfg.Push.ServerKey, cfg.Push.Timeout)
	}
	return provider.NewEmailProvider(cfg.Email.PostmarkServerToken, cfg.Email.PostmarkAccountToken, cfg.Email.From)
}
