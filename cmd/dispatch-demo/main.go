// dispatch-demo: real-time voice dispatch demo for GTA Heating & Air.
// Serves the demo page, bridges browser audio to the Gemini Live
// session, and records captured leads through the dispatch webhook.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gtahvac/dispatch-voice/internal/config"
	"github.com/gtahvac/dispatch-voice/internal/log"
	"github.com/gtahvac/dispatch-voice/pkg/agent"
	"github.com/gtahvac/dispatch-voice/pkg/audioio"
	"github.com/gtahvac/dispatch-voice/pkg/dispatch"
	"github.com/gtahvac/dispatch-voice/pkg/voice"
	_ "github.com/gtahvac/dispatch-voice/pkg/voice/bundled"
	"github.com/gtahvac/dispatch-voice/pkg/web"
)

var version = "1.0.0"

var (
	port    = flag.Int("port", 0, "HTTP server port (default $PORT or 8080)")
	debug   = flag.Bool("debug", false, "Enable debug logging")
	backend = flag.String("audio", "pipe", "Audio backend: pipe (browser bridge) or mock")
	voiceN  = flag.String("voice", "", "Synthesized voice name (default $DISPATCH_VOICE or Kore)")
	webhook = flag.String("webhook", "", "Dispatch webhook URL override")
	booking = flag.String("booking", "", "Booking link override")
	model   = flag.String("model", "", "Voice model override")
)

func main() {
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	listenPort := *port
	if listenPort == 0 {
		listenPort = config.Port()
	}

	voiceName := *voiceN
	if voiceName == "" {
		voiceName = config.Voice()
	}

	voiceCfg := voice.DefaultConfig().
		WithAPIKey(config.GoogleAPIKey()).
		WithTokenURL(config.TokenURL()).
		WithVoice(voiceName).
		WithSystemPrompt(agent.SystemInstruction).
		WithGreeting(agent.Greeting).
		WithTools(agent.DispatchTool()).
		WithDebug(*debug)
	if *model != "" {
		voiceCfg.Model = *model
	}
	if err := voiceCfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		fmt.Fprintln(os.Stderr, "set GOOGLE_API_KEY or DISPATCH_TOKEN_URL")
		os.Exit(1)
	}

	// Audio path: capture at 16kHz for the backend, play back its
	// 24kHz output.
	captureCfg := audioio.DefaultCaptureConfig()
	captureCfg.Backend = audioio.Backend(*backend)
	playbackCfg := audioio.DefaultPlaybackConfig()
	playbackCfg.Backend = audioio.Backend(*backend)

	source, err := audioio.NewSource(captureCfg, log.L())
	if err != nil {
		log.Error("audio source", "error", err)
		os.Exit(1)
	}
	sink, err := audioio.NewSink(playbackCfg, log.L())
	if err != nil {
		log.Error("audio sink", "error", err)
		os.Exit(1)
	}

	player := audioio.NewPlayer(sink, log.L())
	meter := audioio.NewMeter()
	player.OnChunk(func(chunk audioio.AudioChunk) { meter.Observe(chunk) })

	webhookURL := *webhook
	if webhookURL == "" {
		webhookURL = config.WebhookURL(agent.DefaultWebhookURL)
	}
	bookingURL := *booking
	if bookingURL == "" {
		bookingURL = config.BookingURL(agent.DefaultBookingURL)
	}
	dispatcher := dispatch.New(webhookURL, bookingURL)

	ctrl := agent.NewController(agent.Config{
		Voice:        voiceCfg,
		Source:       source,
		Player:       player,
		Meter:        meter,
		Dispatcher:   dispatcher,
		PlaybackRate: playbackCfg.SampleRate,
		HistorySize:  config.HistorySize(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := player.Start(ctx); err != nil {
		log.Error("player start", "error", err)
		os.Exit(1)
	}

	// The pipe backend bridges the browser: mic frames arrive on
	// /ws/audio and agent audio is fanned back out on the same socket.
	pipeSource, _ := source.(*audioio.PipeSource)
	server := web.NewServer(fmt.Sprintf("%d", listenPort), ctrl, pipeSource)
	if pipeSink, ok := sink.(*audioio.PipeSink); ok {
		pipeSink.OnChunk(func(chunk audioio.AudioChunk) {
			server.SendAgentAudio(chunk.Bytes())
		})
	}

	log.Info("dispatch-demo starting",
		"version", version,
		"port", listenPort,
		"audio", *backend,
		"voice", voiceName,
	)
	server.StartAsync()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctrl.Stop()
	cancel()
	dispatcher.Wait()

	if err := server.Shutdown(); err != nil {
		log.Warn("web shutdown", "error", err)
	}
	player.Stop()

	log.Info("goodbye")
}
