package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var (
	serverURL   = flag.String("server", "ws://localhost:46000/ws/voice", "Voice WebSocket URL")
	clientID    = flag.String("id", "lane-1", "Client (lane) id")
	branchID    = flag.Int64("branch", 0, "Branch id for keyword grounding")
	sampleRate  = flag.Int("rate", 16000, "PCM sample rate")
	frameMS     = flag.Int("frame-ms", 30, "Frame duration in ms; 0 sends the whole file as one frame")
	audioFile   = flag.String("audio", "", "WAV or raw PCM file to stream, then exit")
	language    = flag.String("lang", "ar", "Language for tts requests")
	say         = flag.String("say", "", "Text to request as speech after streaming")
	interactive = flag.Bool("interactive", false, "Enable interactive mode")
	wait        = flag.Duration("wait", 5*time.Second, "How long to wait for replies before exiting")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	// Setup logger
	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	config := &SimulatorConfig{
		ServerURL:     *serverURL,
		ClientID:      *clientID,
		BranchID:      *branchID,
		SampleRate:    *sampleRate,
		FrameDuration: time.Duration(*frameMS) * time.Millisecond,
		Language:      *language,
	}

	simulator := NewSimulator(config, os.Stdout, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down simulator...")
		simulator.Stop()
		os.Exit(0)
	}()

	if err := simulator.Connect(); err != nil {
		logger.Fatal("Failed to connect to server", zap.Error(err))
	}
	defer simulator.Stop()

	if *interactive {
		runInteractiveMode(simulator)
		return
	}

	if *audioFile != "" {
		data, err := os.ReadFile(*audioFile)
		if err != nil {
			logger.Fatal("Failed to read audio file", zap.Error(err))
		}
		pcm, err := simulator.LoadAudio(data)
		if err != nil {
			logger.Fatal("Unsupported audio file", zap.Error(err))
		}
		if err := simulator.StreamAudio(pcm); err != nil {
			logger.Fatal("Streaming failed", zap.Error(err))
		}
	}
	if *say != "" {
		if err := simulator.Say(*say, ""); err != nil {
			logger.Fatal("TTS request failed", zap.Error(err))
		}
	}

	time.Sleep(*wait)
}

func runInteractiveMode(sim *Simulator) {
	fmt.Println("\nDrive-Thru Lane Simulator - Interactive Mode")
	fmt.Println("============================================")
	fmt.Println("Commands:")
	fmt.Println("  play <file>        - Stream a WAV or raw PCM file")
	fmt.Println("  silence <ms>       - Stream silence")
	fmt.Println("  say <text>         - Request speech in the default language")
	fmt.Println("  say-ar <text>      - Request Arabic speech")
	fmt.Println("  say-en <text>      - Request English speech")
	fmt.Println("  stop               - Send stop")
	fmt.Println("  quit               - Exit simulator")
	fmt.Println("")

	sim.RunInteractive(os.Stdin, os.ReadFile)
}
