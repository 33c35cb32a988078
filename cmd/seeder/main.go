// cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/unclebandit/crm-dispatch/internal/config"
	"github.com/unclebandit/crm-dispatch/internal/db"
	"github.com/unclebandit/crm-dispatch/internal/logging"
)

func main() {
	schemaOnly := flag.Bool("schema-only", false, "apply migrations without inserting seed rows")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("database unavailable")
	}
	defer conn.Close()

	files := []string{"migrations/001_init.sql"}
	if !*schemaOnly {
		files = append(files, "seed/clients.sql", "seed/campaigns.sql")
	}

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			logging.Fatal().Err(err).Str("file", file).Msg("failed to read")
		}
		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			logging.Fatal().Err(err).Str("file", file).Msg("failed to execute")
		}
		logging.Info().Str("file", file).Msg("applied")
	}

	logging.Info().Msg("database seeding completed")
}
