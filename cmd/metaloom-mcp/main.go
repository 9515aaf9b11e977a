// metaloom-mcp exposes the derivation engine over MCP stdio: dream ingestion,
// on-demand cycle and convergence runs, and store introspection.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/avint/metaloom/internal/agents"
	"github.com/avint/metaloom/internal/config"
	"github.com/avint/metaloom/internal/derive"
	"github.com/avint/metaloom/internal/ids"
	"github.com/avint/metaloom/internal/journal"
	"github.com/avint/metaloom/internal/meta"
	"github.com/avint/metaloom/internal/needs"
	"github.com/avint/metaloom/internal/store"
)

func main() {
	// Log to stderr so stdout is clean for JSON-RPC
	log.SetOutput(os.Stderr)
	log.SetPrefix("[metaloom-mcp] ")

	// Load .env file if present (don't error if missing)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}
	configPath := os.Getenv("METALOOM_CONFIG")
	if configPath == "" {
		configPath = "metaloom.yaml"
	}
	os.MkdirAll(statePath, 0755)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := store.Open(statePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	needQueue := needs.NewQueue(statePath)
	if err := needQueue.Load(); err != nil {
		log.Printf("Warning: failed to load needs: %v", err)
	}
	clock := agents.NewClock(statePath)
	if err := clock.Load(); err != nil {
		log.Printf("Warning: failed to load agent clock: %v", err)
	}

	engine, err := meta.NewEngine(cfg.Engine, meta.Collaborators{
		Records: db,
		Edges:   db,
		IDs:     ids.New(),
		State:   db,
		Needs:   needQueue,
		Events:  journal.New(statePath),
		Clock:   clock,
		Deriver: derive.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Model),
	}, statePath)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	s := server.NewMCPServer(
		"metaloom-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(ingestDreamTool(), makeIngestDreamHandler(engine))
	s.AddTool(runCycleTool(), makeRunCycleHandler(engine))
	s.AddTool(runConvergenceTool(), makeRunConvergenceHandler(engine))
	s.AddTool(statsTool(), makeStatsHandler(engine, db))
	s.AddTool(pendingPredictionsTool(), makePendingPredictionsHandler(db))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func ingestDreamTool() mcp.Tool {
	return mcp.NewTool("ingest_dream",
		mcp.WithDescription("Record a human dream report as a top-tier knowledge record for later convergence checking. Text must be at least 10 characters."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The dream text as reported"),
		),
		mcp.WithString("captured_at",
			mcp.Description("RFC3339 capture time. Defaults to now."),
		),
	)
}

func makeIngestDreamHandler(engine *meta.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		text, _ := args["text"].(string)

		capturedAt := time.Now()
		if s, ok := args["captured_at"].(string); ok && s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid captured_at: %v", err)), nil
			}
			capturedAt = t
		}

		dream, err := engine.IngestDream(text, capturedAt)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to ingest dream: %v", err)), nil
		}

		log.Printf("Dream ingested: %s", dream.RecordID)
		return mcp.NewToolResultText(fmt.Sprintf("Dream recorded as %s", dream.RecordID)), nil
	}
}

func runCycleTool() mcp.Tool {
	return mcp.NewTool("run_meta_cycle",
		mcp.WithDescription("Run one meta-derivation cycle now: sample distant domain sets, derive candidate meta-invariants, validate, and commit survivors. Guards (daily cap, minimum record count, cycle interval) still apply unless force is set."),
		mcp.WithBoolean("force",
			mcp.Description("Skip the schedule guards and run regardless. Default: false"),
		),
	)
}

func makeRunCycleHandler(engine *meta.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		force, _ := args["force"].(bool)

		if !force {
			if ok, reason := engine.ShouldRunMetaCycle(); !ok {
				return mcp.NewToolResultText(fmt.Sprintf("Cycle not run: %s", reason)), nil
			}
		}

		result, err := engine.RunMetaCycle(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("cycle failed: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(
			"Cycle complete: %d sessions, %d committed, %d rejected, %d skipped",
			result.Sessions, result.Committed, result.Rejected, len(result.Skipped))), nil
	}
}

func runConvergenceTool() mcp.Tool {
	return mcp.NewTool("run_convergence_check",
		mcp.WithDescription("Check all dream/meta-invariant pairs for independent convergence and commit any new convergence records."),
	)
}

func makeRunConvergenceHandler(engine *meta.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		convs, err := engine.RunConvergenceCheck()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("convergence check failed: %v", err)), nil
		}
		if len(convs) == 0 {
			return mcp.NewToolResultText("No new convergences."), nil
		}

		data, _ := json.MarshalIndent(convs, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	}
}

func statsTool() mcp.Tool {
	return mcp.NewTool("stats",
		mcp.WithDescription("Summarize the knowledge store: record counts per tier, edges, meta-invariants, dreams, convergences, and gate counters."),
	)
}

func makeStatsHandler(engine *meta.Engine, db *store.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := db.Stats()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read stats: %v", err)), nil
		}

		validated, rejected := engine.GateCounters()
		out := map[string]any{
			"store":     stats,
			"validated": validated,
			"rejected":  rejected,
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	}
}

func pendingPredictionsTool() mcp.Tool {
	return mcp.NewTool("pending_predictions",
		mcp.WithDescription("List predictions awaiting verification, with their meta-invariant and target domain."),
	)
}

func makePendingPredictionsHandler(db *store.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pending, err := db.PendingPredictions()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list predictions: %v", err)), nil
		}
		if len(pending) == 0 {
			return mcp.NewToolResultText("No pending predictions."), nil
		}

		data, _ := json.MarshalIndent(pending, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	}
}
