// Command boxcast starts the real-time box-world broadcast server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing viewer WebSockets,
//     the operator REST API, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP
//     server if none is available
//
// Flags control host/port, the config directory and profile, debug logging,
// and optional ngrok tunneling for external viewers during development.
// Every flag can also be set from the environment or a .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/boxcast/api"
	"github.com/wricardo/boxcast/game/config"
	"github.com/wricardo/boxcast/game/service"
	"github.com/wricardo/boxcast/transport/mcp"
	"github.com/wricardo/boxcast/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Boxcast Server"
)

// shutdownTimeout bounds the graceful shutdown of each stage
const shutdownTimeout = 10 * time.Second

// settings is the process configuration resolved from flags and environment
type settings struct {
	Host        string
	Port        int
	ConfigDir   string
	Profile     string
	Debug       bool
	Ngrok       bool
	NgrokAuth   string
	NgrokDomain string
}

// Addr returns the listen address
func (s settings) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

// LocalURL returns a base URL that reaches the server from this host
func (s settings) LocalURL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, fmt.Sprint(s.Port))
}

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("Error loading .env file", "err", err)
	}

	cmd := newCommand(runHTTPServer, runStdioMCP)
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal("Server exited", "err", err)
	}
}

type runFunc func(ctx context.Context, st settings, logger *log.Logger) error

// newCommand builds the CLI. The run functions are injected so the flag
// wiring can be tested without starting servers.
func newCommand(serve, stdio runFunc) *cli.Command {
	action := func(mode string, run runFunc) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			st := loadSettings(cmd)
			logger := newLogger(os.Stderr, st.Debug)
			logger.Info(fmt.Sprintf("Starting %s v%s", AppName, Version), "mode", mode)
			return run(ctx, st, logger)
		}
	}

	return &cli.Command{
		Name:    "boxcast",
		Usage:   "real-time box-world broadcast server",
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "host",
				Value:   "0.0.0.0",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "Directory containing simulation profiles",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
			&cli.StringFlag{
				Name:    "profile",
				Value:   config.DefaultProfile,
				Usage:   "Simulation profile to run",
				Sources: cli.EnvVars("PROFILE"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "Enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "Ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "Custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with WebSocket, REST API and MCP endpoint (default)",
				Action:  action("server", serve),
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server, starting an internal HTTP server if needed",
				Action:  action("stdio-mcp", stdio),
			},
		},
		Action: action("server", serve),
	}
}

func loadSettings(cmd *cli.Command) settings {
	return settings{
		Host:        cmd.String("host"),
		Port:        int(cmd.Int("port")),
		ConfigDir:   cmd.String("config-dir"),
		Profile:     cmd.String("profile"),
		Debug:       cmd.Bool("debug"),
		Ngrok:       cmd.Bool("ngrok"),
		NgrokAuth:   cmd.String("ngrok-auth"),
		NgrokDomain: cmd.String("ngrok-domain"),
	}
}

func newLogger(w io.Writer, debug bool) *log.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    debug,
		Prefix:          "boxcast",
		Level:           level,
	})
}

// app is the wired server: core, viewer hub and HTTP surface
type app struct {
	svc     service.BoxService
	hub     *websocket.Hub
	handler http.Handler
	logger  *log.Logger
}

// newApp loads the profile and wires the core to the HTTP surface.
// baseURL is where the /mcp endpoint reaches the REST API.
func newApp(st settings, baseURL string, logger *log.Logger) (*app, error) {
	configs := config.NewManager(st.ConfigDir)
	cfg, err := configs.LoadProfile(st.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %q: %w", st.Profile, err)
	}

	svc, err := service.NewBoxService(service.Options{
		Config: cfg,
		Logger: logger.With("component", "service"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	hub := websocket.NewHub(svc, logger.With("component", "websocket"))
	apiServer := api.NewServer(svc, hub, configs, logger.With("component", "api"))
	mcpClient := mcp.NewClient(baseURL)

	// Main router combines API and MCP
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient.GetMCPServer()))

	logger.Info("Profile loaded", "profile", cfg.Name, "variant", cfg.Variant, "config_dir", configs.Dir())
	return &app{svc: svc, hub: hub, handler: mainRouter, logger: logger}, nil
}

// shutdown closes viewers with 1001 Going Away, then stops the core
func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.hub.Shutdown(ctx); err != nil {
		a.logger.Warn("Viewer shutdown incomplete", "err", err)
	}
	if err := a.svc.Close(ctx); err != nil {
		a.logger.Warn("Service shutdown error", "err", err)
	}
}

// mcpHandler serves JSON-RPC MCP messages over plain HTTP POST
func mcpHandler(mcpServer *server.MCPServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpServer.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// runHTTPServer serves viewers and operators until SIGINT or SIGTERM.
// If ngrok is enabled it also serves through a public tunnel.
func runHTTPServer(ctx context.Context, st settings, logger *log.Logger) error {
	a, err := newApp(st, st.LocalURL(), logger)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", st.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", st.Addr(), err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The core outlives the signal context so viewers can be closed first
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	a.svc.Start(runCtx)

	httpServer := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		addr := listener.Addr().String()
		logger.Info("HTTP server listening", "addr", addr)
		logger.Info("Endpoints",
			"websocket", "ws://"+addr+"/ws",
			"health", "http://"+addr+"/health",
			"api", "http://"+addr+"/api",
			"mcp", "http://"+addr+"/mcp")

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if st.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, st, a.handler, logger.With("component", "ngrok"))
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down", "cause", context.Cause(ctx))
	case err = <-serveErr:
		logger.Error("HTTP server failed", "err", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", "err", err)
	}
	a.shutdown()

	wg.Wait()
	logger.Info("Server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx ends
func runNgrok(ctx context.Context, st settings, handler http.Handler, logger *log.Logger) {
	if st.NgrokAuth == "" {
		logger.Warn("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	logger.Info("Starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if st.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(st.NgrokDomain))
		logger.Info("Using custom ngrok domain", "domain", st.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(st.NgrokAuth))
	if err != nil {
		logger.Error("Failed to start ngrok tunnel", "err", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("Failed to close ngrok tunnel", "err", err)
		}
	}()

	logger.Info("Ngrok tunnel established", "url", tun.URL(), "websocket", tun.URL()+"/ws")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error("Ngrok server error", "err", err)
	}
	logger.Info("Ngrok tunnel closed")
}

// externalServerUp reports whether a broadcast server already answers at baseURL
func externalServerUp(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCP runs an MCP stdio server. It reuses a server already listening
// on the configured port; otherwise it starts an internal one on a random
// loopback port and targets that.
func runStdioMCP(ctx context.Context, st settings, logger *log.Logger) error {
	baseURL := st.LocalURL()
	logger.Info("Checking for external server", "url", baseURL)

	if externalServerUp(baseURL) {
		logger.Info("External server found, using it for MCP", "url", baseURL)
	} else {
		logger.Info("No external server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		a, err := newApp(st, baseURL, logger)
		if err != nil {
			listener.Close()
			return err
		}
		runCtx, stopRun := context.WithCancel(context.Background())
		defer stopRun()
		a.svc.Start(runCtx)

		httpServer := &http.Server{Handler: a.handler}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Internal HTTP server error", "err", err)
			}
		}()
		defer func() {
			httpServer.Close()
			a.shutdown()
		}()

		logger.Info("Internal HTTP server started", "url", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
