// Command voicechat opens a realtime voice conversation with the
// coaching assistant. Speech is captured from the default microphone,
// assistant audio plays through the default output, and typed lines
// are sent as text turns.
//
// Commands: /record toggles the microphone, /voice <name> switches the
// assistant voice, /stop cuts off playback, /clear resets the
// conversation, /quit exits.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/coachflow/livesync/internal/app"
	"github.com/coachflow/livesync/internal/audio"
	"github.com/coachflow/livesync/internal/config"
	"github.com/coachflow/livesync/internal/observability/logging"
	"github.com/coachflow/livesync/internal/realtime"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	clientID := flag.String("client", "", "Client ID for the voice session")
	voice := flag.String("voice", "", "Assistant voice (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *clientID == "" {
		*clientID = cfg.Service.ClientID
	}
	if *clientID == "" {
		log.Fatal("missing client id: set -client or CLIENT_ID")
	}
	if *voice == "" {
		*voice = cfg.Realtime.Voice
	}

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatalf("starting application: %v", err)
	}
	defer application.Shutdown()
	logger := logging.WithVoiceLink(*clientID, *voice)

	speaker, err := audio.NewOtoDevice()
	if err != nil {
		log.Fatalf("opening audio output: %v", err)
	}
	mic := audio.NewMalgoDevice()

	client := realtime.NewClient(realtime.Config{
		URL:                  cfg.Realtime.URL,
		ClientID:             *clientID,
		Token:                cfg.Realtime.Token,
		Voice:                *voice,
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		ReconnectBaseDelay:   cfg.Realtime.ReconnectBaseDelay.Std(),
		ReconnectMaxDelay:    cfg.Realtime.ReconnectMaxDelay.Std(),
	}, mic, speaker, realtime.Callbacks{
		OnTranscript: func(text string, isFinal bool) {
			if isFinal {
				fmt.Printf("\nassistant: %s\n> ", text)
			} else {
				fmt.Print(text)
			}
		},
		OnSources: func(sources []realtime.Source) {
			for _, s := range sources {
				fmt.Printf("  source: %s (%s)\n", s.Content, s.Date)
			}
		},
		OnError: func(err error) {
			fmt.Printf("\nerror: %v\n> ", err)
		},
		OnConnectionChange: func(connected bool) {
			if connected {
				fmt.Print("\nconnected\n> ")
			} else {
				fmt.Print("\ndisconnected\n> ")
			}
		},
	}, logger)
	defer client.Close()

	client.Connect()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":

		case line == "/quit":
			return

		case line == "/record":
			if client.IsRecording() {
				client.StopRecording()
				fmt.Println("recording stopped")
			} else if err := client.StartRecording(); err != nil {
				fmt.Printf("recording failed: %v\n", err)
			} else {
				fmt.Println("recording... /record again to stop")
			}

		case strings.HasPrefix(line, "/voice "):
			client.UpdateVoice(strings.TrimSpace(strings.TrimPrefix(line, "/voice ")))
			fmt.Printf("voice set to %s\n", client.CurrentVoice())

		case line == "/stop":
			client.StopSpeaking()

		case line == "/clear":
			client.ClearConversation()
			fmt.Println("conversation cleared")

		default:
			if err := client.SendText(line); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		}
		fmt.Print("> ")
	}
	if err := scanner.Err(); err != nil {
		logger.Error().Err(err).Msg("Reading stdin failed")
	}
}
