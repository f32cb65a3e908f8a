package main

import (
	"context"
	"time"

	"labbroker/internal/agent"
	"labbroker/internal/catalog"
	"labbroker/internal/lock"
	mongoMigration "labbroker/internal/migrations/mongo"
	"labbroker/internal/repository"
	"labbroker/internal/validator"
	"labbroker/pkg/config"
)

const JobName = "labbroker-migrate"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()
	cfg := config.Load(JobName)
	cfg.SetMongo()
	cfg.Log.Info("Starting Mongo migration job")
	defer cfg.GracefulShutdown()

	migrateMongo(ctx, cfg)
	seedCatalog(ctx, cfg)
	cfg.Log.Info("Migration completed successfully")
}

func migrateMongo(ctx context.Context, cfg *config.Config) {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	if err := mongoMigration.RunMigration(ctx, db, cfg.Log); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}
}

func seedCatalog(ctx context.Context, cfg *config.Config) {
	if cfg.CatalogFile == "" {
		return
	}
	resources, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		cfg.Log.Fatal("Failed to load catalog", "error", err)
	}
	store := repository.NewMongoStore(cfg)
	registry := agent.NewRegistry(store, lock.NewKeyedMutex(), validator.New(cfg.Log), cfg)
	report, err := catalog.Seed(ctx, registry, resources, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Catalog seeding failed", "error", err)
	}
	cfg.Log.Info("Catalog applied", "created", report.Created, "skipped", report.Skipped)
}
