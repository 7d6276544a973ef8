package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ieltsgo/agent/internal/auth"
	"github.com/ieltsgo/agent/internal/client"
	"github.com/ieltsgo/agent/internal/config"
	"github.com/ieltsgo/agent/internal/handler"
	"github.com/ieltsgo/agent/internal/model"
	"github.com/ieltsgo/agent/internal/recorder"
	"github.com/ieltsgo/agent/internal/service"
	"github.com/ieltsgo/agent/internal/worker"
	ws "github.com/ieltsgo/agent/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Backend.Token != "" {
		if info, err := auth.Inspect(cfg.Backend.Token); err == nil {
			log.Printf("Platform token for subject %s, expires %s", info.Subject, info.ExpiresAt.Format(time.RFC3339))
		}
	} else {
		log.Println("Warning: no platform token configured, backend calls will be anonymous")
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Backend clients
	aiClient := client.NewAIClient(&cfg.Backend)
	storageClient := client.NewStorageClient(&cfg.Backend)
	exerciseClient := client.NewExerciseClient(&cfg.Backend)

	// Capture engine. The tick observer broadcasts elapsed time and
	// enforces the configured duration cap.
	device := &recorder.ExecDevice{
		Command: cfg.Capture.Command,
		Args:    cfg.Capture.Args,
	}
	var rec *recorder.Recorder
	rec = recorder.New(device, recorder.Options{
		MIMEType: cfg.Capture.MIMEType,
		OnTick: func(elapsed int) {
			hub.BroadcastTick(elapsed, string(rec.Status()))
			if cfg.Capture.MaxSeconds > 0 && elapsed >= cfg.Capture.MaxSeconds {
				if _, err := rec.Stop(); err == nil {
					log.Printf("[Recorder] duration cap of %ds reached, recording stopped", cfg.Capture.MaxSeconds)
				}
			}
		},
	})

	// Evaluation workflow
	poller := worker.NewPoller(time.Duration(cfg.Polling.IntervalSeconds) * time.Second)
	evalService := service.NewEvaluationService(aiClient, exerciseClient, validate, poller, worker.Hooks{
		OnProgress: hub.BroadcastProgress,
		OnFinished: func(job model.SubmissionJob, outcome worker.Outcome) {
			hub.BroadcastComplete(job)
		},
	})

	// Handlers
	recorderHandler := handler.NewRecorderHandler(rec, storageClient, hub, cfg.Capture)
	evaluationHandler := handler.NewEvaluationHandler(evalService, rec, validate, cfg.Backend.Token)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // 50MB
	})

	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"recorder": rec.Status(),
			"token":    cfg.Backend.Token != "",
		})
	})

	api := app.Group("/api")

	// Recorder routes
	rc := api.Group("/recorder")
	rc.Post("/start", recorderHandler.Start)
	rc.Post("/pause", recorderHandler.Pause)
	rc.Post("/resume", recorderHandler.Resume)
	rc.Post("/stop", recorderHandler.Stop)
	rc.Post("/reset", recorderHandler.Reset)
	rc.Post("/upload", recorderHandler.Upload)
	rc.Get("/status", recorderHandler.Status)

	// Evaluation routes
	ev := api.Group("/evaluations")
	ev.Post("/writing", evaluationHandler.SubmitWriting)
	ev.Post("/speaking", evaluationHandler.SubmitSpeaking)
	ev.Get("/:jobId", evaluationHandler.Status)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/recorder", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, ws.ChannelRecorder)
	}))
	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	// Graceful shutdown: stop polling loops and release the microphone.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down agent...")
		evalService.Shutdown()
		rec.Close()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Printf("Practice agent listening on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
