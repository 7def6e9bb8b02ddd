package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/parithi/bankassist/internal/api"
	"github.com/parithi/bankassist/internal/config"
	"github.com/parithi/bankassist/internal/gemini"
	"github.com/parithi/bankassist/internal/intent"
	"github.com/parithi/bankassist/internal/modality"
	"github.com/parithi/bankassist/internal/ocr"
	"github.com/parithi/bankassist/internal/pipeline"
	"github.com/parithi/bankassist/internal/session"
	"github.com/parithi/bankassist/internal/speech"
	"github.com/parithi/bankassist/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bankassist server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bankassist system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "bankassist version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		return fmt.Errorf("creating uploads dir: %w", err)
	}

	// Build the query-resolution pipeline.
	sessions := session.NewStore()
	recognizer := ocr.NewTesseract(cfg.OCR.Binary, cfg.OCR.Languages)
	transcriber := speech.NewClient(cfg.Speech.Endpoint, cfg.Speech.APIKey)
	normalizer := modality.New(recognizer, transcriber, cfg.Uploads.Dir)
	classifier := intent.NewKeywordClassifier()

	model := gemini.NewClientWithBaseURL(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL)
	model.SetTimeout(cfg.Gemini.Timeout)
	model.SetMaxAttempts(cfg.Gemini.MaxAttempts)

	resolver := pipeline.NewResolver(store, sessions, normalizer, classifier, model)

	// Build HTTP handler and server.
	handler := api.NewHandler(api.Deps{Resolver: resolver})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Addr, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Resolver: resolver,
		Sessions: sessions,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "bankassist listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://%s:%d", cfg.Server.Addr, cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Model", "%s", cfg.Gemini.Model)
	printStatus("OCR", "%s (%s)", cfg.OCR.Binary, cfg.OCR.Languages)
	printStatus("Speech", "%s", cfg.Speech.Endpoint)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Uploads dir", "%s", cfg.Uploads.Dir)
	return nil
}
