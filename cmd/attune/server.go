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
	"golang.org/x/sync/errgroup"

	"github.com/kzalewski/attune/internal/api"
	"github.com/kzalewski/attune/internal/config"
	"github.com/kzalewski/attune/internal/learning"
	"github.com/kzalewski/attune/internal/personalize"
	"github.com/kzalewski/attune/internal/profile"
	"github.com/kzalewski/attune/internal/storage"
	"github.com/kzalewski/attune/internal/trigger"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the attune server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running attune server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show attune system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "attune.pid")
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

func runServer() error {
	fmt.Fprintf(os.Stderr, "attune version %s\n", version)

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

	// Ensure API token exists in platform secret store.
	apiToken, err := config.GetAPIToken()
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("attune is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("attune is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

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

	// Build the personalization engine.
	profileMgr := profile.NewManager(store)

	prefs := personalize.NewPreferenceStore()
	persisted, err := store.AllPreferences()
	if err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}
	learning.Hydrate(prefs, persisted)
	slog.Info("preferences hydrated", "count", len(persisted))

	adapter := personalize.NewAdapter(profileMgr, prefs, personalize.Thresholds{
		Engagement: cfg.Engine.EngagementThreshold,
		Dismissal:  cfg.Engine.DismissalThreshold,
	})

	catalog := trigger.DefaultCatalog()
	cooldown := trigger.NewCooldownTracker()
	firings, err := store.LatestTriggerFirings()
	if err != nil {
		return fmt.Errorf("loading trigger history: %w", err)
	}
	for name, at := range firings {
		cooldown.MarkUsedAt(name, at)
	}
	evaluator := trigger.NewEvaluator(catalog, cooldown, trigger.Config{
		LateCheckoutHour: cfg.Engine.LateCheckoutHour,
		HighStressMin:    cfg.Engine.HighStressMin,
	})

	// Build HTTP handler and server.
	appHandler := api.NewAppHandler(api.AppDeps{
		Store:     store,
		Profile:   profileMgr,
		Adapter:   adapter,
		Evaluator: evaluator,
		Cooldown:  cooldown,
		Token:     apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:     store,
		Profile:   profileMgr,
		Adapter:   adapter,
		Evaluator: evaluator,
		Cooldown:  cooldown,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Run the HTTP server and the learning worker under one group; shutdown
	// of either tears down both.
	worker := learning.NewWorker(store, prefs, 500*time.Millisecond)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "attune listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
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
		printError("attune is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop attune (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to attune (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Show counts if server is running.
	if running {
		if c, err := newAPIClient(); err == nil {
			ctx := context.Background()
			if resp, err := c.get(ctx, "/checkins?limit=100"); err == nil {
				var checkIns []struct{}
				if decodeJSON(resp, &checkIns) == nil {
					printStatus("Check-ins", "%s", countLabel(len(checkIns), 100))
				}
			}
			if resp, err := c.get(ctx, "/insights?limit=100"); err == nil {
				var insights []struct{}
				if decodeJSON(resp, &insights) == nil {
					printStatus("Insights", "%s", countLabel(len(insights), 100))
				}
			}
			if resp, err := c.get(ctx, "/triggers?limit=100"); err == nil {
				var events []struct{}
				if decodeJSON(resp, &events) == nil {
					printStatus("Triggers fired", "%s", countLabel(len(events), 100))
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
