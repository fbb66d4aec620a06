// Package main: точка входа сервиса сделок.
// Команды: serve (HTTP + планировщик), migrate, sweep deals|posts.
// serve поддерживает graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serotonyl.ru/deal-desk/internal/app"
	"serotonyl.ru/deal-desk/internal/config"
	"serotonyl.ru/deal-desk/internal/db/postgres"
)

var Version = "dev"

func main() {
	// Настраиваем логирование
	setupLogging()

	rootCmd := &cobra.Command{
		Use:           "deal-desk",
		Short:         "Сервис сделок: статусы, кредиты, автозакрытие",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("Команда завершилась с ошибкой")
	}
}

// loadConfig загружает конфигурацию и применяет уровень логирования из неё.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.AppEnv == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	var shutdownTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API и планировщик",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info("=== Сервис запускается ===")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Контекст отменяется по Ctrl+C или docker stop
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}

			if err := application.Scheduler.Start(ctx); err != nil {
				application.Close(context.Background())
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- application.Serve() }()

			log.Info("=== Сервис готов к работе ===")

			select {
			case <-ctx.Done():
				log.Info("Получен сигнал остановки, останавливаемся...")
			case err = <-errCh:
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			application.Scheduler.Stop()
			application.Close(shutdownCtx)

			log.Info("=== Сервис остановлен ===")
			return err
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "сколько ждать завершения запросов")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции базы данных",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := postgres.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := app.Migrate(ctx, pool); err != nil {
				return err
			}
			log.Info("Миграции применены")
			return nil
		},
	}
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
