package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/ESD-II/tracker-website/bridge"
	"github.com/ESD-II/tracker-website/config"
	"github.com/ESD-II/tracker-website/db"
	"github.com/ESD-II/tracker-website/handlers"
	"github.com/ESD-II/tracker-website/live"
	"github.com/ESD-II/tracker-website/metrics"
	"github.com/ESD-II/tracker-website/repositories"
	api "github.com/ESD-II/tracker-website/routes"
	"github.com/ESD-II/tracker-website/services"
)

const shutdownGracePeriod = 15 * time.Second

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Метрики Prometheus
	trackerMetrics := metrics.New()

	// Инициализация WebSocket Hub
	wsHub := live.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация репозитория и сервисов
	pointRepo := repositories.NewPostgresPointRepository(dbConn)
	pointService := services.NewPointService(pointRepo)
	logger.Info("Repositories and services initialized")

	// Конвейер моста: session -> tracker -> publisher
	session := bridge.NewSessionState(logger)
	tracker := bridge.NewPointTracker(pointRepo, logger, trackerMetrics, bridge.TrackerConfig{
		QueueSize:        cfg.WriteQueueSize,
		WriteTimeout:     cfg.StoreWriteTimeout,
		MaxWriteAttempts: cfg.StoreMaxWriteAttempts,
	})
	go tracker.Run()

	publisher := bridge.NewPublisher(wsHub, live.RoomTennisUpdates, trackerMetrics)

	busBridge := bridge.NewBridge(bridge.DriverConfig{
		BrokerHost:           cfg.MQTTBroker,
		BrokerPort:           cfg.MQTTPort,
		StartupAttempts:      cfg.BusStartupAttempts,
		MaxReconnectInterval: cfg.BusMaxReconnectWait,
	}, session, tracker, publisher, logger, trackerMetrics)

	if err := busBridge.Start(context.Background()); err != nil {
		logger.Error("failed to start message bus bridge", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("message bus bridge started")

	// Инициализация обработчиков HTTP
	pointHandler := handlers.NewPointHandler(pointService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, pointHandler, webSocketHandler, trackerMetrics.Handler())
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancelShutdown()

		// Сначала мост: остановить приём, финализировать открытый поинт.
		busBridge.Close(shutdownCtx)
		logger.Info("bridge shutdown complete")

		logger.Info("shutting down server", slog.Duration("timeout", shutdownGracePeriod))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
