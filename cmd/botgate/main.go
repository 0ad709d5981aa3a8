package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/m3rciful/botgate/app"
	corecmd "github.com/m3rciful/botgate/core/cmd"
)

func main() {
	// .env is optional; real deployments pass configuration via the environment.
	_ = godotenv.Load()

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: app.Bootstrap,
	})
	if err != nil {
		log.Fatalf("botgate: %v", err)
	}
}
