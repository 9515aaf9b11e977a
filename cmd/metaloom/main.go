package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/avint/metaloom/internal/agents"
	"github.com/avint/metaloom/internal/config"
	"github.com/avint/metaloom/internal/derive"
	"github.com/avint/metaloom/internal/ids"
	"github.com/avint/metaloom/internal/journal"
	"github.com/avint/metaloom/internal/meta"
	"github.com/avint/metaloom/internal/needs"
	"github.com/avint/metaloom/internal/senses"
	"github.com/avint/metaloom/internal/store"
)

func main() {
	log.Println("metaloom - meta-invariant derivation daemon")
	log.Println("===========================================")

	// Load .env file (optional - won't error if missing)
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using environment variables")
	} else {
		log.Println("[config] Loaded .env file")
	}

	// Config from environment
	discordToken := os.Getenv("DISCORD_TOKEN")
	discordChannel := os.Getenv("DISCORD_DREAM_CHANNEL_ID")
	discordOwner := os.Getenv("DISCORD_OWNER_ID")
	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}
	configPath := os.Getenv("METALOOM_CONFIG")
	if configPath == "" {
		configPath = "metaloom.yaml"
	}

	// Ensure state directory exists
	os.MkdirAll(statePath, 0755)

	// Load tuning config
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Open the knowledge store
	db, err := store.Open(statePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	// JSON-backed collaborators
	needQueue := needs.NewQueue(statePath)
	if err := needQueue.Load(); err != nil {
		log.Printf("Warning: failed to load needs: %v", err)
	}
	clock := agents.NewClock(statePath)
	if err := clock.Load(); err != nil {
		log.Printf("Warning: failed to load agent clock: %v", err)
	}
	events := journal.New(statePath)

	deriver := derive.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Model)

	engine, err := meta.NewEngine(cfg.Engine, meta.Collaborators{
		Records: db,
		Edges:   db,
		IDs:     ids.New(),
		State:   db,
		Needs:   needQueue,
		Events:  events,
		Clock:   clock,
		Deriver: deriver,
	}, statePath)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	// Discord dream sense is optional: without a token the daemon still runs
	// cycles, it just cannot capture dreams.
	var dreamSense *senses.DiscordSense
	if discordToken != "" {
		dreamSense, err = senses.NewDiscordSense(senses.DiscordConfig{
			Token:     discordToken,
			ChannelID: discordChannel,
			OwnerID:   discordOwner,
		}, func(text string, capturedAt time.Time) error {
			_, err := engine.IngestDream(text, capturedAt)
			return err
		})
		if err != nil {
			log.Fatalf("Failed to create Discord sense: %v", err)
		}
		if err := dreamSense.Start(); err != nil {
			log.Fatalf("Failed to start Discord sense: %v", err)
		}
	} else {
		log.Println("[main] DISCORD_TOKEN not set, dream capture disabled")
	}

	// Scheduler: re-check the cycle guards on a short tick; the guards gate
	// the actual work on caps and intervals.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Duration(cfg.TickIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ok, reason := engine.ShouldRunMetaCycle(); ok {
					result, err := engine.RunMetaCycle(ctx)
					if err != nil {
						log.Printf("[main] Meta cycle failed: %v", err)
					} else {
						log.Printf("[main] Meta cycle: %d sessions, %d committed, %d rejected, %d skipped",
							result.Sessions, result.Committed, result.Rejected, len(result.Skipped))
					}
				} else {
					log.Printf("[main] Meta cycle skipped: %s", reason)
				}

				if engine.ShouldRunConvergenceCheck() {
					convs, err := engine.RunConvergenceCheck()
					if err != nil {
						log.Printf("[main] Convergence check failed: %v", err)
					} else if len(convs) > 0 {
						log.Printf("[main] Convergence check: %d new convergences", len(convs))
					}
				}
			}
		}
	}()

	log.Println("[main] All subsystems started. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[main] Shutting down...")

	cancel()
	<-done
	if dreamSense != nil {
		dreamSense.Stop()
	}

	log.Println("[main] Goodbye!")
}
