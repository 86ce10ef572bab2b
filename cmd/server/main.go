package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"pibot/internal/config"
	"pibot/internal/handlers"
	"pibot/internal/logging"
	"pibot/internal/services"
	"pibot/internal/vision"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️  No .env file found, using environment variables")
	}

	logging.Init()
	cfg := config.Load()

	if cfg.LineChannelAccessToken == "" {
		log.Println("⚠️  LINE_CHANNEL_ACCESS_TOKEN not set, replies will be rejected by LINE")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("⚠️  OPENAI_API_KEY not set, AI capabilities will fail")
	}

	// Session memory (always in-process; history is deliberately ephemeral)
	sessionStore := services.NewMemorySessionStore(cfg.SessionTTL, cfg.SessionMaxTurns)

	// Plan state: Redis when configured, otherwise process memory
	var planStore services.PlanStore
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		rs, err := services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Fatalf("❌ Redis configured but unreachable: %v", err)
		}
		redisService = rs
		planStore = services.NewRedisPlanStore(rs.Client())
		log.Println("✅ Plan records backed by Redis")
	} else {
		planStore = services.NewMemoryPlanStore()
		log.Println("ℹ️  Plan records kept in memory (set REDIS_URL to persist)")
	}

	usageGate := services.NewUsageGate(planStore, cfg.FreeDailyLimit)

	// Generated image hosting
	fileCache, err := services.NewFileCacheService(cfg.ImageDir, cfg.ImageRetention)
	if err != nil {
		log.Fatalf("❌ Failed to initialize image storage: %v", err)
	}

	// External capabilities
	openAIService := services.NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel, cfg.PersonaPrompt)
	imageService := services.NewImageService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ImageModel, cfg.ImageSize, cfg.PublicBaseURL, fileCache)
	visionService := vision.NewService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.VisionModel)
	scraperService := services.NewScraperService()
	searchService := services.NewSearchService(cfg.SearXNGURL, scraperService)
	lineService := services.NewLineService(cfg.LineChannelAccessToken, cfg.LineAPIBaseURL, cfg.LineDataBaseURL)

	// Intent classification, with optional YAML rule overrides
	rules := services.DefaultIntentRules()
	if cfg.IntentsFile != "" {
		loaded, err := services.LoadIntentRules(cfg.IntentsFile)
		if err != nil {
			log.Printf("⚠️  Failed to load intents file, using defaults: %v", err)
		} else {
			rules = loaded
		}
	}
	classifier := services.NewClassifierService(rules, openAIService)

	dispatcher := services.NewDispatcher(
		sessionStore,
		usageGate,
		openAIService,
		imageService,
		visionService,
		searchService,
		lineService,
		cfg.FreeDailyLimit,
	)

	services.InitMetrics(sessionStore.Len)

	// Daily sweep for image files the in-memory cache no longer tracks
	cronScheduler := cron.New()
	if _, err := cronScheduler.AddFunc("0 3 * * *", fileCache.CleanupOrphanedFiles); err != nil {
		log.Printf("⚠️  Failed to schedule image cleanup: %v", err)
	}
	cronScheduler.Start()

	if cfg.IntentsFile != "" {
		go startIntentsFileWatcher(cfg.IntentsFile, classifier)
	}

	// HTTP layer
	webhookHandler := handlers.NewWebhookHandler(cfg.LineChannelSecret, classifier, dispatcher, lineService)
	healthHandler := handlers.NewHealthHandler(sessionStore, fileCache, redisService)
	imageHandler := handlers.NewImageHandler(fileCache)

	app := fiber.New(fiber.Config{
		AppName:     "Pibot v1.0",
		BodyLimit:   2 * 1024 * 1024, // webhook batches are small JSON
		ReadTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("pibot")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	app.Post("/webhook", webhookHandler.HandleWebhook)
	app.Get("/health", healthHandler.HandleHealth)
	app.Get("/images/:filename", imageHandler.HandleImage)

	log.Printf("🚀 Pibot listening on port %s", cfg.Port)
	log.Printf("📡 Webhook endpoint: http://localhost:%s/webhook", cfg.Port)
	log.Printf("🖼️  Image hosting: %s/images/", cfg.PublicBaseURL)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		cronScheduler.Stop()

		if redisService != nil {
			if err := redisService.Close(); err != nil {
				log.Printf("⚠️ Error closing Redis: %v", err)
			}
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}

	log.Println("✅ Server stopped")
}

// startIntentsFileWatcher watches the intents YAML for changes and hot-reloads
// the classifier rules
func startIntentsFileWatcher(filePath string, classifier *services.ClassifierService) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create file watcher: %v", err)
		return
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", filePath, err)
		watcher.Close()
		return
	}

	// Watch the directory containing the file (more reliable than watching the
	// file directly; editors replace files on save)
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch directory %s: %v", dir, err)
		watcher.Close()
		return
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", filePath)

	// Debounce so rapid successive writes trigger a single reload
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				debounceTimer = time.AfterFunc(debounceDuration, func() {
					rules, err := services.LoadIntentRules(filePath)
					if err != nil {
						log.Printf("❌ Failed to reload intents after file change: %v", err)
						return
					}
					classifier.ReloadRules(rules)
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
