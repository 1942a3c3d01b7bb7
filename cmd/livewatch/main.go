// Command livewatch follows one bot's meeting transcript. It merges
// push events with a polling fallback and prints the live view to
// stdout, optionally republishing merged events to Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coachflow/livesync/internal/api"
	"github.com/coachflow/livesync/internal/app"
	"github.com/coachflow/livesync/internal/botsync"
	"github.com/coachflow/livesync/internal/config"
	"github.com/coachflow/livesync/internal/events"
	"github.com/coachflow/livesync/internal/models"
	"github.com/coachflow/livesync/internal/observability"
	"github.com/coachflow/livesync/internal/observability/logging"
	"github.com/coachflow/livesync/internal/push"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	botID := flag.String("bot", "", "Bot ID to follow")
	flag.Parse()

	if *botID == "" {
		log.Fatal("missing required -bot flag")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatalf("starting application: %v", err)
	}
	defer application.Shutdown()
	logger := logging.WithBot(*botID)

	obsServer := observability.NewServer(cfg.Observability.Addr)
	obsServer.Start()

	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		TopicStatus:  cfg.Kafka.TopicStatus,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()

	apiClient := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout.Std(),
	}, logger)

	socket := push.NewSocket(push.Config{
		URL:                  cfg.Push.URL,
		Token:                cfg.Push.Token,
		BotID:                *botID,
		MaxReconnectAttempts: cfg.Push.MaxReconnectAttempts,
		ReconnectBaseDelay:   cfg.Push.ReconnectBaseDelay.Std(),
		ReconnectMaxDelay:    cfg.Push.ReconnectMaxDelay.Std(),
	}, logger)
	defer socket.Close()

	engine := botsync.NewEngine(botsync.Config{
		BotID:        *botID,
		ClientID:     cfg.Service.ClientID,
		ClientName:   cfg.Service.ClientName,
		PollInterval: cfg.Sync.PollInterval.Std(),
	}, apiClient, socket, publisher, botsync.Observers{
		OnEntry: func(entry models.TranscriptEntry) {
			marker := " "
			if entry.IsFinal {
				marker = "*"
			}
			fmt.Printf("%s [%s] %s\n", marker, entry.Speaker, entry.Text)
		},
		OnStatus: func(status string) {
			fmt.Printf("--- bot status: %s\n", status)
		},
		OnSessionCompleted: func(event models.SessionCompleted) {
			fmt.Printf("--- session %s completed\n", event.SessionID)
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("Sync error")
		},
	}, logger)
	defer engine.Close()

	ctx := context.Background()
	if err := engine.Start(ctx); err != nil {
		log.Fatalf("starting sync engine: %v", err)
	}
	socket.Connect()

	bot := engine.Bot()
	fmt.Printf("following bot %s (%s) at %s\n", bot.ID, bot.Platform, bot.MeetingURL)
	for _, entry := range engine.Transcript() {
		fmt.Printf("  [%s] %s\n", entry.Speaker, entry.Text)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Observability server shutdown failed")
	}
}
