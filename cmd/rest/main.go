package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-imagechat-be/internal/bootstrap"
	"ai-imagechat-be/internal/config"
	"ai-imagechat-be/internal/server"
	"ai-imagechat-be/internal/tracer"
)

func main() {
	// 0. Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer("ai-imagechat-backend")
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Store
	rdb := bootstrap.NewRedis(cfg)

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(rdb, cfg)

	// 4. Start Background Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := container.NotifierService.Start(ctx); err != nil {
		log.Panicf("Unable to start notifier: %v", err)
	}
	if err := container.SweepWorker.Start(ctx); err != nil {
		log.Panicf("Unable to start sweep worker: %v", err)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server, shutting down cleanly on SIGINT/SIGTERM
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop

		cancel()
		container.Shutdown()
		if err := srv.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
