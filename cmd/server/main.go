package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mindflow/mindflow-ai/internal/ai"
	"github.com/mindflow/mindflow-ai/internal/api"
	"github.com/mindflow/mindflow-ai/internal/graph"
	"github.com/mindflow/mindflow-ai/internal/kv"
	"github.com/mindflow/mindflow-ai/internal/ratelimit"
	"github.com/mindflow/mindflow-ai/internal/storage"
	"github.com/mindflow/mindflow-ai/internal/vault"
)

// initLogger configures the global slog default with JSON output.
func initLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	h := slog.NewJSONHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(h))
}

// envOrDefault resolves a configuration value with the priority:
//
//	flag (if explicitly set, i.e. differs from defaultVal) > env var > default.
func envOrDefault(envKey, flagVal, defaultVal string) string {
	if flagVal != defaultVal {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultVal
}

func main() {
	// ---- Flags -----------------------------------------------------------
	dbPathFlag := flag.String("db-path", "./mindflow.db", "Path to SQLite database file")
	portFlag := flag.Int("port", 8080, "HTTP server port")
	logLevel := flag.String("log-level", "info", "Log level (debug|info|warn|error)")
	aiProviderFlag := flag.String("ai-provider", "", "AI provider: bedrock or ollama (empty = disabled)")
	aiRegionFlag := flag.String("ai-region", "us-east-1", "AWS region for Bedrock provider")
	aiModelFlag := flag.String("ai-model", "", "LLM model ID (provider-specific)")
	ollamaURLFlag := flag.String("ollama-url", "http://localhost:11434", "Ollama API URL")
	rateLimitFlag := flag.Int("ai-rate-limit", ratelimit.DefaultLimit, "AI calls allowed per window per operation")
	rateWindowFlag := flag.Duration("ai-rate-window", ratelimit.DefaultWindow, "AI rate-limit window")
	flag.Parse()

	// Resolve config: flag > env var > default.
	dbPath := envOrDefault("MINDFLOW_DB_PATH", *dbPathFlag, "./mindflow.db")
	portStr := envOrDefault("MINDFLOW_PORT", strconv.Itoa(*portFlag), "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("invalid port value %q: %v", portStr, err)
	}
	aiProvider := envOrDefault("MINDFLOW_AI_PROVIDER", *aiProviderFlag, "")
	aiRegion := envOrDefault("MINDFLOW_AI_REGION", *aiRegionFlag, "us-east-1")
	aiModel := envOrDefault("MINDFLOW_AI_MODEL", *aiModelFlag, "")
	ollamaURL := envOrDefault("MINDFLOW_OLLAMA_URL", *ollamaURLFlag, "http://localhost:11434")

	initLogger(*logLevel)

	// ---- Storage ---------------------------------------------------------
	db, err := storage.New(dbPath)
	if err != nil {
		log.Fatalf("failed to initialise storage: %v", err)
	}
	var settings kv.Store = db.Settings()

	// ---- Core state ------------------------------------------------------
	ctx := context.Background()
	store := graph.NewMapStore()
	secretVault := vault.New(settings, slog.Default())
	limiter := ratelimit.New(*rateLimitFlag, *rateWindowFlag, settings, slog.Default())

	// ---- SSE Broadcaster -------------------------------------------------
	sse := api.NewSSEBroadcaster()

	// ---- AI Provider (optional) ------------------------------------------
	var provider ai.Provider
	var gateway *ai.Gateway

	if aiProvider != "" {
		cfg := ai.ProviderConfig{
			Kind:       ai.ProviderKind(aiProvider),
			Region:     aiRegion,
			Model:      aiModel,
			OllamaURL:  ollamaURL,
			Credential: secretVault.Load,
		}
		provider, err = ai.NewProvider(ctx, cfg)
		if err != nil {
			slog.Warn("AI provider init failed — AI features disabled", "error", err)
		} else {
			slog.Info("AI provider ready", "provider", provider.Name())
			gateway = ai.NewGateway(provider, limiter, secretVault, store, slog.Default())
		}
	}

	// ---- HTTP Server -----------------------------------------------------
	srv := api.NewServer(store, db, secretVault, sse, gateway)
	srv.RegisterRoutes()

	// ---- Startup banner --------------------------------------------------
	aiStatus := "disabled"
	if provider != nil {
		aiStatus = provider.Name()
	}
	credStatus := "absent"
	if secretVault.HasCredential() {
		credStatus = "configured"
	}
	banner := fmt.Sprintf(`
═══════════════════════════════
 MINDFLOW AI — Mind Map Studio
 DB:   %s
 Port: %d
 AI:   %s
 Key:  %s
═══════════════════════════════`, dbPath, port, aiStatus, credStatus)
	fmt.Println(banner)

	slog.Info("mindflow starting",
		"db_path", dbPath,
		"port", port,
		"ai_provider", aiStatus,
		"credential", credStatus,
	)

	addr := fmt.Sprintf(":%d", port)

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// ---- Graceful shutdown -----------------------------------------------
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if provider != nil {
		provider.Close()
	}

	if err := db.Close(); err != nil {
		slog.Error("storage close error", "error", err)
	}

	slog.Info("mindflow shutdown complete")
}
