package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"discord-widget/internal/adapters/transport"
	"discord-widget/internal/core/services"
	applog "discord-widget/internal/log"
	"discord-widget/internal/pkg/config"
	"discord-widget/internal/registry"
	"discord-widget/internal/server"
	"discord-widget/internal/widget"

	"github.com/go-resty/resty/v2"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	configPath := flag.String("c", config.DefaultPath, "path to config file")
	flag.Parse()

	// 1. Загрузка и валидация конфигурации
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Инициализация логгера
	logger := applog.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.MaskInvites)
	slog.SetDefault(logger)

	// 3. Общая сессия для всех запросов к Discord
	session := resty.New().
		SetTimeout(cfg.Discord.RequestTimeout).
		SetHeader("Accept", "application/json")
	defer session.GetClient().CloseIdleConnections()

	httpTransport := transport.New(
		transport.WithSession(session),
		transport.WithUserAgent(cfg.Discord.UserAgent),
		transport.WithLogger(logger),
	)

	// 4. Инициализация зависимостей
	reg := registry.New(logger,
		widget.WithAPIBaseURL(cfg.Discord.APIBaseURL),
		widget.WithWidgetPageURL(cfg.Discord.WidgetPageURL),
		widget.WithTransport(httpTransport),
		widget.WithLogger(logger),
	)

	// 5. Создание HTTP-сервера
	srv, err := server.New(cfg, server.Deps{
		Registry:  reg,
		Refreshes: server.NewRefreshStore(),
		Voice:     services.NewVoiceService(),
		Session:   session,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// 6. Запуск сервера и graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		defer close(serverErr)
		slog.Info("Starting server", "addr", cfg.Address(), "discord_api", cfg.Discord.APIBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("Signal received, shutting down...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	<-serverErr
	slog.Info("Application exited gracefully")
	return nil
}
