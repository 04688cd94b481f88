package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kroma-labs/relay/example/httpclient/internal/config"
	"github.com/kroma-labs/relay/example/httpclient/internal/telemetry"
	"github.com/kroma-labs/relay/example/httpclient/internal/users"
	"github.com/kroma-labs/relay/httpclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"go.opentelemetry.io/otel"
)

func main() {
	ctx := context.Background()

	// 1. Setup OpenTelemetry (Tracing + Metrics)
	shutdownTracing, shutdownMetrics, err := telemetry.Setup(ctx)
	if err != nil {
		log.Fatalf("Failed to setup OTel: %v", err)
	}
	defer func() {
		shutdownTracing(ctx)
		shutdownMetrics(ctx)
	}()

	// 2. Start Prometheus Metrics Server
	http.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: config.MetricsPort}
	go func() {
		log.Printf("Starting Prometheus metrics server on %s", config.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Metrics server failed: %v", err)
		}
	}()

	// 3. Build the users client
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{config.RedisAddr}})
	defer rdb.Close()

	promMetrics := httpclient.NewPrometheusCapability(prometheus.DefaultRegisterer)
	breakerCfg := httpclient.DistributedBreakerConfig(httpclient.NewRedisStore(rdb))
	breakerCfg.OnStateChange = promMetrics.ObserveBreakerState

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	builder := httpclient.NewBuilder().
		Encoder(httpclient.JSONEncoder{}).
		Decoder(httpclient.NewOptionalDecoder(httpclient.JSONDecoder{})).
		ErrorDecoder(httpclient.RetryableStatusErrorDecoder{Delegate: httpclient.DefaultErrorDecoder{}}).
		Retryer(httpclient.NewRetryer(httpclient.DefaultRetryConfig())).
		Logger(httpclient.NewZerologLogger(logger)).
		LogLevel(httpclient.LevelBasic).
		Dismiss404().
		RequestInterceptor(httpclient.CorrelationIDInterceptor("")).
		AddCapability(httpclient.NewRateLimitCapability(httpclient.DefaultRateLimitConfig())).
		AddCapability(httpclient.NewCoalescingCapability()).
		AddCapability(httpclient.NewHedgingCapability(httpclient.DefaultAdaptiveHedgeConfig())).
		AddCapability(httpclient.NewBreakerCapability(config.UsersTarget, breakerCfg)).
		AddCapability(promMetrics).
		AddCapability(httpclient.NewObservabilityCapability(httpclient.WithServiceName(config.ServiceName)))

	client, err := users.New(builder, httpclient.NewTarget(config.UsersTarget, config.UsersURL))
	if err != nil {
		log.Fatalf("Failed to build users client: %v", err)
	}

	// 4. Call the API in a loop
	tracer := otel.Tracer("example-app")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(config.CallInterval) * time.Second)
	defer ticker.Stop()

	fmt.Println("✅ HTTP client example app started!")
	fmt.Println("📊 Prometheus metrics: http://localhost:2112/metrics")
	fmt.Println("Press Ctrl+C to stop...")

	for {
		select {
		case <-ticker.C:
			ctx, span := tracer.Start(ctx, "users-calls")

			if u, ok, err := client.GetUser(ctx, 1); err != nil {
				log.Printf("Failed to get user: %v", err)
			} else if ok {
				log.Printf("User 1: %s <%s>", u.Name, u.Email)
			}

			if _, ok, err := client.GetUser(ctx, 9999); err == nil && !ok {
				log.Printf("User 9999 does not exist")
			}

			posts, err := client.ListPosts(ctx, users.PostFilter{UserID: 1})
			if err != nil {
				log.Printf("Failed to list posts: %v", err)
			} else {
				log.Printf("User 1 has %d posts", len(posts))
			}

			created, err := client.CreatePost(ctx, users.Post{UserID: 1, Title: "hello", Body: "from relay"})
			if err != nil {
				log.Printf("Failed to create post: %v", err)
			} else {
				log.Printf("Created post %d", created.ID)
			}

			span.End()

		case <-sigChan:
			fmt.Println("\nShutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Metrics server shutdown error: %v", err)
			}
			return
		}
	}
}
