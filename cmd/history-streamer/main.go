package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/eventloom/publish-governance/internal/config"
	"github.com/eventloom/publish-governance/internal/history"
	"github.com/eventloom/publish-governance/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadStreamer()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.MaxConcurrency + 2)

	if err := db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		log.Printf("[history-streamer] shutdown signal received")
		cancel()
	}()

	producer, err := history.NewKafkaProducer(history.KafkaProducerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	})
	if err != nil {
		log.Fatalf("kafka producer: %v", err)
	}
	defer producer.Close()

	archiver, err := history.NewS3Archiver(ctx, cfg.S3Bucket, cfg.S3Prefix)
	if err != nil {
		log.Fatalf("s3 archiver: %v", err)
	}

	streamer := history.NewStreamer(store.NewPGStore(db), producer, archiver, history.StreamerConfig{
		BatchSize:      cfg.BatchSize,
		PollInterval:   cfg.PollInterval,
		MaxConcurrency: cfg.MaxConcurrency,
	})

	log.Printf("[history-streamer] starting (topic=%s bucket=%s)", cfg.KafkaTopic, cfg.S3Bucket)
	if err := streamer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("streamer: %v", err)
	}
	log.Printf("[history-streamer] stopped")
}
