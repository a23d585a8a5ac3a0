package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"mekelleuniv/exam-share-bot/internal/bot"
	"mekelleuniv/exam-share-bot/internal/config"
	"mekelleuniv/exam-share-bot/internal/handlers"
	"mekelleuniv/exam-share-bot/internal/repositories"
	"mekelleuniv/exam-share-bot/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Println("✅ Config loaded successfully")

	slogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Initialize repositories
	resourceRepo := repositories.NewResourceRepository(db)
	log.Println("✅ Repositories initialized successfully")

	// Initialize services
	storageService := services.NewStorageService(cfg.Storage.UploadPath)
	if err := storageService.EnsureUploadDir(); err != nil {
		log.Fatalf("❌ Failed to create upload directory: %v", err)
	}

	pdfParser := services.NewPDFParserService()
	log.Println("✅ Services initialized successfully")

	// Initialize Gemini AI
	geminiService, err := services.NewGeminiService(cfg.Gemini.APIKey, slogger)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini AI: %v", err)
	}
	log.Println("✅ Gemini AI initialized successfully")

	// Initialize Telegram client and dispatcher
	telegramClient, err := bot.NewClient(cfg.Telegram.BotToken, slogger)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Telegram bot: %v", err)
	}

	dispatcher := bot.NewDispatcher(
		telegramClient,
		resourceRepo,
		storageService,
		geminiService,
		pdfParser,
		cfg.Telegram.AdminIDs,
		cfg.Storage.MaxFileSize,
		slogger,
	)
	log.Println("✅ Telegram dispatcher initialized")

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(
		dispatcher,
		telegramClient,
		cfg.Telegram.PublicBaseURL,
		slogger,
	)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "MU Exam Share Bot",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	// Routes
	app.Get("/", webhookHandler.HandleRegister)
	app.Post("/webhook", webhookHandler.HandleWebhook)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
