package main

import (
	"flag"
	"os"

	"github.com/plantpal/plantpal/internal/config"
	"github.com/plantpal/plantpal/internal/logger"
	"github.com/plantpal/plantpal/plantservice"
)

func main() {
	// Optional build-target flag override (local | cloud | test)
	buildTarget := flag.String("build-target", "", "Override BUILD_TARGET (local, cloud, test)")
	flag.Parse()

	log := logger.New("plantpal-service")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *buildTarget != "" {
		cfg.BuildTarget = *buildTarget
		cfg.DBDriver = "auto"
		cfg.SQLitePath = ""
		if err := cfg.ResolveDefaults(); err != nil {
			log.Fatal().Err(err).Msg("Invalid build-target override")
		}
	}

	if err := plantservice.RunWithConfig(cfg, log.Level(cfg.Level())); err != nil {
		log.Error().Err(err).Msg("plantpal-service exited with error")
		os.Exit(1)
	}
}
