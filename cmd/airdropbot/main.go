package main

import (
	"context"
	"log"

	"github.com/m3rciful/airdropbot/bot/app"
	"github.com/m3rciful/airdropbot/bot/config"
	corecmd "github.com/m3rciful/airdropbot/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(ctx, cfg.(*config.Config))
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
