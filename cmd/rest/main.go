package main

import (
	"context"
	"log"

	"invoice-collector-be/internal/bootstrap"
	"invoice-collector-be/internal/config"
	"invoice-collector-be/internal/server"
	"invoice-collector-be/internal/tracer"
	"invoice-collector-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Logger.Sync()

	// 4. Start Background Services
	// Note: In a larger app, we might use an errgroup or supervisor here
	go func() {
		log.Println("Background: Starting Dead Letter Processor...")
		if err := container.DeadLetterService.Run(context.Background()); err != nil {
			log.Printf("Background Dead Letter Processor Error: %v", err)
		}
	}()
	go func() {
		log.Println("Background: Starting Session Expiry Sweeper...")
		if err := container.ConversationService.RunExpirySweep(context.Background()); err != nil {
			log.Printf("Background Expiry Sweeper Error: %v", err)
		}
	}()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
