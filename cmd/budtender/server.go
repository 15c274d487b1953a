package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/leafwise/budtender/internal/api"
	"github.com/leafwise/budtender/internal/cache"
	"github.com/leafwise/budtender/internal/config"
	"github.com/leafwise/budtender/internal/conn"
	"github.com/leafwise/budtender/internal/guidance"
	"github.com/leafwise/budtender/internal/inventory"
	"github.com/leafwise/budtender/internal/ollama"
	"github.com/leafwise/budtender/internal/products"
	"github.com/leafwise/budtender/internal/retry"
	"github.com/leafwise/budtender/internal/session"
	"github.com/leafwise/budtender/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the budtender server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running budtender server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show budtender system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "budtender.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "budtender version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := serverBaseURL(cfg.Server.Addr) + "/healthz"
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("budtender is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("budtender is already running on %s", cfg.Server.Addr)
		return fmt.Errorf("server already running on %s", cfg.Server.Addr)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Endpoint discovery. A dead backend at startup is not fatal: the
	// orchestrator re-probes per request and degrades until one answers.
	manager := conn.NewManager(conn.Config{
		Candidates:   cfg.Backend.CandidateList(),
		ProbeTimeout: config.Duration(cfg.Backend.ProbeTimeout, 3*time.Second),
		RecheckAfter: config.Duration(cfg.Backend.RecheckAfter, 60*time.Second),
	})

	retryClient := retry.New(retry.Schedule{
		Timeouts: cfg.Retry.TimeoutList(),
		Backoff:  retry.LinearBackoff(config.Duration(cfg.Retry.BackoffBase, time.Second)),
	})
	ollamaClient := ollama.New(manager.Host, retryClient)

	if _, err := manager.EnsureLive(ctx); err != nil {
		slog.Warn("no live backend endpoint at startup, continuing degraded", "error", err)
	} else if err := ollama.EnsureReady(ctx, ollamaClient, cfg.Generate.Model, os.Stderr); err != nil {
		slog.Warn("backend model not ready, continuing degraded", "error", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	source, err := buildInventorySource(ctx, cfg, store)
	if err != nil {
		return err
	}

	var refiner *products.Refiner
	if cfg.Search.RefineEnabled {
		refiner = products.NewRefiner(ollamaClient, cfg.Generate.Model,
			config.Duration(cfg.Search.RefineTimeout, 3*time.Second))
	}
	pipeline := products.NewPipeline(source, refiner, products.LegalFilter{
		HempDerivedOnly:    cfg.Legal.HempDerivedOnly,
		MaxCompoundPercent: cfg.Legal.MaxCompoundPercent,
	}, cfg.Search.MaxResults)

	orchestrator := guidance.NewOrchestrator(manager, ollamaClient, pipeline, guidance.Config{
		Model:          cfg.Generate.Model,
		Temperature:    cfg.Generate.Temperature,
		SubTaskTimeout: config.Duration(cfg.Guidance.SubTaskTimeout, 30*time.Second),
	})

	freshness := config.Duration(cfg.Cache.Freshness, 30*time.Minute)
	var cacheStore cache.Store
	if cfg.Cache.RedisURL != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.Cache.RedisURL, 0)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rs.Close()
		cacheStore = rs
	} else {
		cacheStore = cache.NewMemoryStore()
	}
	responses := cache.New(cacheStore, manager.Host, freshness,
		cache.DefaultFingerprintPolicy(cfg.Cache.MinGenuineLength))

	sessions := session.NewService(orchestrator, responses)
	defer sessions.Close()

	handler := api.NewHandler(api.Deps{
		Sessions:       sessions,
		Search:         pipeline,
		Endpoint:       manager,
		Catalog:        store,
		Model:          cfg.Generate.Model,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handler,
	}

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Sessions: sessions,
			Search:   pipeline,
			Catalog:  store,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "budtender listening on %s\n", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildInventorySource picks the catalog source: a remote HTTP catalog when
// configured, a watched local file next, the embedded store otherwise.
func buildInventorySource(ctx context.Context, cfg config.Config, store *storage.Store) (products.Source, error) {
	switch {
	case cfg.Inventory.SourceURL != "":
		slog.Info("catalog source: http", "url", cfg.Inventory.SourceURL)
		return inventory.NewHTTPSource(cfg.Inventory.SourceURL,
			config.Duration(cfg.Inventory.FetchTimeout, 10*time.Second)), nil
	case cfg.Inventory.FilePath != "":
		slog.Info("catalog source: file", "path", cfg.Inventory.FilePath)
		fs := inventory.NewFileSource(cfg.Inventory.FilePath)
		if err := fs.Watch(ctx); err != nil {
			return nil, fmt.Errorf("watching catalog file: %w", err)
		}
		return fs, nil
	default:
		slog.Info("catalog source: embedded store")
		return inventory.NewStoreSource(store), nil
	}
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("budtender is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop budtender (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to budtender (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	baseURL := serverBaseURL(cfg.Server.Addr)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(baseURL + "/healthz")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on %s", cfg.Server.Addr)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if resp != nil && resp.StatusCode == 200 {
		statusResp, err := client.Get(baseURL + "/api/status")
		if err == nil {
			var status struct {
				Model    string `json:"model"`
				Endpoint struct {
					URL  string `json:"url"`
					Live bool   `json:"live"`
				} `json:"endpoint"`
				CatalogItems *int `json:"catalog_items"`
			}
			if decodeJSON(statusResp, &status) == nil {
				printStatus("Model", "%s", status.Model)
				if status.Endpoint.Live {
					printStatus("Backend", "live at %s", status.Endpoint.URL)
				} else {
					printStatus("Backend", "unreachable")
				}
				if status.CatalogItems != nil {
					printStatus("Catalog items", "%d", *status.CatalogItems)
				}
			}
		}
	} else {
		// Probe candidates directly when the server is down.
		for _, candidate := range cfg.Backend.CandidateList() {
			tagsResp, err := client.Get(candidate + "/api/tags")
			if err != nil {
				printStatus("Backend", "%s: not running", candidate)
				continue
			}
			tagsResp.Body.Close()
			printStatus("Backend", "%s: running", candidate)
			break
		}
		printStatus("Model", "%s", cfg.Generate.Model)
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
