package main

import (
	"context"
	"os/signal"
	"syscall"

	"vtex/migrator/internal/config"
	"vtex/migrator/internal/container"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	stage := pflag.String("stage", "all", "run up to this stage: discover, extract, report, all")
	pflag.Int("sample-size", 0, "migrate only the first N discovered products")
	pflag.Int("page-limit", 0, "stop discovery after N product URLs")
	pflag.Bool("dry-run", false, "report what would be migrated without touching the catalog")
	noApproval := pflag.Bool("no-approval", false, "skip the interactive approval gate")
	pflag.Parse()

	viper.BindPFlag("pipeline.sample_size", pflag.Lookup("sample-size"))
	viper.BindPFlag("pipeline.page_limit", pflag.Lookup("page-limit"))
	viper.BindPFlag("pipeline.dry_run", pflag.Lookup("dry-run"))

	log.Info("Starting catalog migrator...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *noApproval {
		cfg.Pipeline.RequireApproval = false
	}
	log.Info("Configuration loaded successfully")

	app, err := container.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer app.Close()

	// Interrupts cancel the context; the pipeline checkpoints as it goes,
	// so the next run resumes where this one stopped.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, *stage); err != nil {
		log.Fatalf("Migration exited with error: %v", err)
	}

	log.Info("Migration finished successfully")
}
