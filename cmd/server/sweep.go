package main

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serotonyl.ru/deal-desk/internal/app"
)

// sweepCmd запускает обходы вручную, вне расписания cron.
func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Однократно выполнить фоновый обход",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "deals",
		Short: "Напоминания и автозакрытие сделок",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rep, err := a.Deals.RunLifecycleSweep(ctx)
				if err != nil {
					return err
				}
				log.WithFields(log.Fields{
					"processed": rep.Processed,
					"reminded":  rep.Reminded,
					"closed":    rep.Closed,
					"errors":    rep.Errors,
				}).Info("Обход сделок выполнен")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "posts",
		Short: "Напоминания об истечении и снятие истёкших постов",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rep, err := a.Posts.RunValiditySweep(ctx)
				if err != nil {
					return err
				}
				log.WithFields(log.Fields{
					"reminded": rep.Reminded,
					"expired":  rep.Expired,
					"errors":   rep.Errors,
				}).Info("Обход постов выполнен")
				return nil
			})
		},
	})

	return cmd
}

func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	return fn(ctx, a)
}
