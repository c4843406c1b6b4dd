package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/api/option"

	"github.com/andi-frame/TeamName-KulkasKu/internal/api"
	"github.com/andi-frame/TeamName-KulkasKu/internal/provider"
	"github.com/andi-frame/TeamName-KulkasKu/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A local .env is optional; real deployments set the environment directly
	envLoaded := godotenv.Load() == nil

	fs := ff.NewFlagSet("kulkasku-ai")
	var (
		port              = fs.IntLong("port", 8000, "HTTP server port")
		visionKey         = fs.StringLong("vision-key", "", "Google Cloud Vision API key (optional)")
		visionCredentials = fs.StringLong("vision-credentials", "", "Service account JSON file for Cloud Vision (optional)")
		visionEndpoint    = fs.StringLong("vision-endpoint", "", "Override the Cloud Vision endpoint")
		disableVision     = fs.BoolLong("disable-vision", "Run without the Cloud Vision backend")
		generatorType     = fs.StringLong("generator", "gemini", "Generative backend: 'gemini' or 'ollama'")
		geminiKey         = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel       = fs.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
		ollamaURL         = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel       = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl, llama3.2-vision)")
		backendTimeout    = fs.DurationLong("backend-timeout", 60*time.Second, "Time limit for the backend calls of one request (0 disables)")
		maxUploadMB       = fs.IntLong("max-upload-mb", api.DefaultMaxUploadBytes>>20, "Maximum upload size in megabytes")
		authUser          = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass          = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel          = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat         = fs.StringLong("log-format", "text", "Log format: 'text' or 'json'")
		showVersion       = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("KULKASKU_AI"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := setupLogger(*logLevel, *logFormat); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if envLoaded {
		slog.Info("Loaded environment from .env")
	}

	if err := checkGenerator(*generatorType); err != nil {
		slog.Error("Invalid generator type", "type", *generatorType, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Backends that fail to initialise are left nil so the health check
	// reports them as unavailable. Both variables stay interface typed.
	var primary scanning.Recognizer
	if *disableVision {
		slog.Info("Cloud Vision disabled")
	} else {
		var opts []option.ClientOption
		switch {
		case *visionKey != "":
			opts = append(opts, option.WithAPIKey(*visionKey))
		case *visionCredentials != "":
			opts = append(opts, option.WithCredentialsFile(*visionCredentials))
		}
		if *visionEndpoint != "" {
			opts = append(opts, option.WithEndpoint(*visionEndpoint))
		}

		slog.Info("Initializing Cloud Vision...")
		v, err := scanning.NewVision(ctx, opts...)
		if err != nil {
			slog.Warn("Cloud Vision unavailable", "error", err)
		} else {
			primary = v
		}
	}
	if primary != nil {
		defer primary.Close()
	}

	var secondary scanning.Generator
	switch *generatorType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Warn("Gemini unavailable: set --gemini-key flag or GEMINI_API_KEY environment variable")
			break
		}
		slog.Info("Initializing Gemini...", "model", *geminiModel)
		g, err := scanning.NewGemini(ctx, apiKey, *geminiModel)
		if err != nil {
			slog.Warn("Gemini unavailable", "error", err)
			break
		}
		secondary = g
	case "ollama":
		slog.Info("Initializing Ollama...", "url", *ollamaURL, "model", *ollamaModel)
		o, err := scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Warn("Ollama unavailable", "error", err)
			break
		}
		secondary = o
	}
	if secondary != nil {
		defer secondary.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	orchestrator := provider.NewOrchestrator(primary, secondary, provider.NewMetrics(reg))
	availability := orchestrator.Availability()
	slog.Info("Backends configured",
		"vision", availability.Primary,
		"generator", availability.Secondary,
	)
	if !availability.Any() {
		slog.Warn("No AI backend is configured; analysis requests will fail")
	}

	server := api.NewServer(orchestrator, api.Options{
		BasicAuth: api.BasicAuth{
			Username: *authUser,
			Password: *authPass,
		},
		BackendTimeout: *backendTimeout,
		MaxUploadBytes: int64(*maxUploadMB) << 20,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	if err := server.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}

// checkGenerator rejects unknown --generator values before any backend is built
func checkGenerator(name string) error {
	switch name {
	case "gemini", "ollama":
		return nil
	default:
		return fmt.Errorf("unknown generator %q: want 'gemini' or 'ollama'", name)
	}
}

func setupLogger(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q: want 'text' or 'json'", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
