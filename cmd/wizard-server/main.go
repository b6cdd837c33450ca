// Command wizard-server starts the Wizard edge gateway: command dispatch,
// the completion gateway, rate limiting, device pairing, and external sync,
// all behind one HTTP server.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ocx/backend/internal/api"
	"github.com/ocx/backend/internal/classifier"
	"github.com/ocx/backend/internal/config"
	"github.com/ocx/backend/internal/device"
	"github.com/ocx/backend/internal/dispatch"
	"github.com/ocx/backend/internal/events"
	"github.com/ocx/backend/internal/gateway"
	"github.com/ocx/backend/internal/policy"
	"github.com/ocx/backend/internal/ratelimit"
	"github.com/ocx/backend/internal/router"
	"github.com/ocx/backend/internal/sync"
	"github.com/ocx/backend/internal/sync/providers"
)

func main() {
	configPath := flag.String("config", "wizard.yaml", "path to the wizard config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, continuing with process environment")
	}

	cfgStore, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := cfgStore.Snapshot()

	os.MkdirAll(cfg.Device.StatePath, 0o755)

	dispatchSvc := dispatch.New(dispatch.DefaultConfig())

	cls := classifier.New()
	rtr := router.New(router.Config{
		LocalEnabled: cfg.Gateway.LocalEnabled,
		CloudEnabled: cfg.Gateway.CloudEnabled,
	})
	pol := policy.New(policy.Config{
		CloudEnabled:         cfg.Gateway.CloudEnabled,
		DailyBudgetUSD:       cfg.Gateway.DailyBudgetUSD,
		MonthlyBudgetUSD:     cfg.Gateway.MonthlyBudgetUSD,
		DetectSecrets:        true,
		RedactSecretsEnabled: true,
		LogViolations:        true,
	})

	quota := gateway.NewQuotaTracker(nil)
	local := gateway.NewOllamaBackend(cfg.Gateway.LocalEndpoint)
	cloud := gateway.NewMistralCloudBackend(cfg.Gateway.CloudEndpoint, os.Getenv("MISTRAL_API_KEY"))

	gw := gateway.New(gateway.Config{
		DailyBudgetUSD:      cfg.Gateway.DailyBudgetUSD,
		MonthlyBudgetUSD:    cfg.Gateway.MonthlyBudgetUSD,
		MaxRequestsPerDay:   cfg.Gateway.MaxRequestsPerDay,
		MaxTokensPerRequest: cfg.Gateway.MaxTokensPerRequest,
		MaxSafeCloudTokens:  cfg.Gateway.MaxSafeCloudTokens,
		SanityCheckEnabled:  cfg.Gateway.SanityCheckEnabled,
	}, cls, rtr, pol, quota, local, cloud)

	rlCfg := ratelimit.Config{}
	if cfg.RateLimit.RedisBacked {
		rlCfg.RedisAddr = cfg.RateLimit.RedisAddr
	}
	limiter := ratelimit.NewWithConfig(rlCfg)

	deviceStore := device.NewStore(filepath.Join(cfg.Device.StatePath, "devices.json"))
	deviceAuth := device.NewService(deviceStore)
	pairing := device.NewPairingService(deviceStore, cfg.Device.WizardAddress)

	factory := sync.NewFactory()
	factory.RegisterChat(sync.ProviderSlack, func() sync.ChatProvider {
		return providers.NewSlackChatProvider()
	})

	taskStore := sync.NewTaskStore(filepath.Join(cfg.Device.StatePath, "tasks.json"))
	credCache := newEnvCredentialCache()

	queueCfg := sync.QueueConfig{
		DebounceSeconds: cfg.Sync.DebounceSeconds,
		BatchSize:       cfg.Sync.BatchSize,
		MaxRetries:      cfg.Sync.MaxRetries,
	}
	orchestrator := sync.NewOrchestrator(factory, credCache, taskStore, queueCfg, cfg.Sync.Workers)
	defer orchestrator.Shutdown()

	if cfg.PubSub.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		source, err := providers.NewPubSubSource(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicID, "wizard-sync-worker", orchestrator.Queue())
		cancel()
		if err != nil {
			log.Printf("pubsub sync source disabled: %v", err)
		} else {
			runCtx, runCancel := context.WithCancel(context.Background())
			defer runCancel()
			go func() {
				if err := source.Run(runCtx); err != nil {
					log.Printf("pubsub sync source stopped: %v", err)
				}
			}()
		}
	}

	var emitter events.EventEmitter
	if cfg.PubSub.Enabled {
		pubsubBus, err := events.NewPubSubEventBus(cfg.PubSub.ProjectID, cfg.PubSub.TopicID)
		if err != nil {
			log.Printf("pubsub event bus disabled, falling back to in-memory: %v", err)
			emitter = events.NewEventBus()
		} else {
			emitter = pubsubBus
		}
	} else {
		emitter = events.NewEventBus()
	}

	server := api.NewServer(dispatchSvc, gw, pol, limiter, deviceStore, pairing, deviceAuth, orchestrator, emitter)

	httpServer := &http.Server{
		Addr:         cfg.Server.Interface + ":" + cfg.GetPort(),
		Handler:      server.Router(cfg.Server.CORSAllowOrigins),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	go func() {
		log.Printf("wizard-server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down wizard-server...")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

// envCredentialCache resolves provider credentials from environment
// variables, e.g. WIZARD_CRED_SLACK for the slack provider. It is the
// simplest CredentialCache that satisfies the sync package's contract
// until a real secrets store is wired in.
type envCredentialCache struct{}

func newEnvCredentialCache() *envCredentialCache { return &envCredentialCache{} }

func (c *envCredentialCache) Get(provider string) (sync.Credentials, bool) {
	key := "WIZARD_CRED_" + upperSnake(provider)
	token := os.Getenv(key)
	if token == "" {
		return sync.Credentials{}, false
	}
	return sync.Credentials{AccessToken: token}, true
}

func upperSnake(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
