package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"scorch/internal/blob"
	"scorch/internal/config"
	"scorch/internal/crawl"
	"scorch/internal/crawler"
	"scorch/internal/engine"
	server "scorch/internal/http"
	"scorch/internal/jobs"
	"scorch/internal/llm"
	"scorch/internal/robots"
	"scorch/internal/services"
	"scorch/internal/store"
	"scorch/internal/transform"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	role := flag.String("role", "all", "process role: api|worker|all")
	flag.Parse()

	cfg := config.Load(*configPath)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	db, err := store.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db failed: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	st := store.New(db)

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("invalid redis url: %v", err)
		}
		rdb = redis.NewClient(opt)
	}

	var llmClient llm.Client
	if provider := cfg.LLM.DefaultProvider; provider != "" {
		llmClient, err = llm.NewClient(provider, llmProviderConfig(cfg))
		if err != nil {
			log.Fatalf("llm client failed: %v", err)
		}
	}

	var blobStorage blob.Storage
	if cfg.Blob.Dir != "" {
		blobStorage, err = blob.NewFileStorage(cfg.Blob.Dir, cfg.Blob.BaseURL)
		if err != nil {
			log.Fatalf("blob storage failed: %v", err)
		}
	}

	scrapeTimeout := time.Duration(cfg.Scraper.TimeoutMs) * time.Millisecond
	engineOpts := engine.Options{
		Timeout:      scrapeTimeout,
		StealthProxy: cfg.Scraper.StealthProxyURL,
		Redis:        rdb,
		IndexMaxAge:  time.Duration(cfg.Scraper.IndexMaxAgeMs) * time.Millisecond,
		IndexTTL:     time.Duration(cfg.Scraper.IndexTTLHours) * time.Hour,
	}
	if cfg.Rod.Enabled {
		engineOpts.RodControlURL = cfg.Rod.ControlURL
	}
	registry, index := engine.NewDefaultRegistry(engineOpts)

	pipeline := transform.NewPipeline(llmClient, blobStorage)
	scraper := services.NewScrapeService(registry, pipeline, index, logger,
		cfg.Scraper.TimeoutMs, cfg.Scraper.TokenCostLimit)

	robotsCache := robots.NewCache(
		time.Duration(cfg.Robots.TimeoutMs)*time.Millisecond,
		time.Duration(cfg.Robots.CacheTTLMinute)*time.Minute,
		logger,
	)

	mapper := crawler.NewMapper(robotsCache, logger)
	coordinator := crawl.NewCoordinator(scraper.Scrape, robotsCache, logger,
		cfg.Scraper.UserAgent, cfg.Crawler.WorkersPerCrawl)

	cancels := jobs.NewCancelRegistry()
	webhooks := jobs.NewWebhookEmitter(logger)
	crawlExec := jobs.NewCrawlExecutor(st, coordinator, webhooks, logger, cfg.Scraper.TokenCostLimit)
	runner := jobs.NewRunner(st,
		map[string]jobs.Executor{store.KindCrawl: crawlExec},
		cancels, logger,
		jobs.RunnerOptions{
			PollInterval:    time.Duration(cfg.Worker.PollIntervalMs) * time.Millisecond,
			MaxJobs:         cfg.Worker.MaxConcurrentJobs,
			CleanupInterval: time.Duration(cfg.Worker.CleanupIntervalMinutes) * time.Minute,
		})

	rootCtx := context.Background()

	startAPI := func() {
		s := server.NewServer(server.Deps{
			Config:  cfg,
			Store:   st,
			Scraper: scraper,
			Mapper:  mapper,
			Cancels: cancels,
			Redis:   rdb,
			Logger:  logger,
		})
		if err := s.Listen(); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	}

	switch *role {
	case "api":
		startAPI()
	case "worker":
		runner.Start(rootCtx)
	case "all":
		go runner.Start(rootCtx)
		startAPI()
	default:
		log.Fatalf("invalid role: %s (expected api|worker|all)", *role)
	}
}

func llmProviderConfig(cfg *config.Config) llm.ProviderConfig {
	pc := llm.ProviderConfig{MaxInputTokens: cfg.LLM.MaxInputTokens}
	switch llm.Provider(cfg.LLM.DefaultProvider) {
	case llm.ProviderAnthropic:
		pc.APIKey = cfg.LLM.Anthropic.APIKey
		pc.Model = cfg.LLM.Anthropic.Model
	case llm.ProviderGoogle:
		pc.APIKey = cfg.LLM.Google.APIKey
		pc.Model = cfg.LLM.Google.Model
	default:
		pc.APIKey = cfg.LLM.OpenAI.APIKey
		pc.BaseURL = cfg.LLM.OpenAI.BaseURL
		pc.Model = cfg.LLM.OpenAI.Model
	}
	return pc
}
