package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/golang-jwt/jwt/v5"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/config"
	"github.com/edgecomet/skeleton/internal/common/logger"
	"github.com/edgecomet/skeleton/internal/common/strutil"
	"github.com/edgecomet/skeleton/internal/server"
)

const (
	tokenLifetime = 24 * time.Hour
	redisDemoKey  = "skeleton:demo"
	redisDemoTTL  = time.Minute
)

func main() {
	configPath := flag.String("c", "configs/skeleton.yaml", "path to configuration file")
	testMode := flag.Bool("t", false, "test configuration and exit")
	flag.Parse()

	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if *testMode {
		os.Exit(runConfigTest(*configPath, initialLogger.Logger))
	}

	initialLogger.Info("Starting skeleton server", zap.String("config_path", *configPath))

	cfg, err := config.Load(*configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()

	app := server.New(cfg, dynamicLogger.Logger,
		server.OnReady(func() {
			// Switch to configured log level after startup is complete
			dynamicLogger.SwitchToConfiguredLevel()
			notifySystemd(dynamicLogger.Logger, daemon.SdNotifyReady)
		}),
		server.OnStopping(func() {
			dynamicLogger.EnsureInfoLevelForShutdown()
			dynamicLogger.Info("Shutting down skeleton server...")
			notifySystemd(dynamicLogger.Logger, daemon.SdNotifyStopping)
		}),
	)
	registerRoutes(app)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		dynamicLogger.Error("Server stopped with errors", zap.Error(err))
		dynamicLogger.Sync()
		os.Exit(1)
	}
}

func registerRoutes(app *server.App) {
	app.Route(fasthttp.MethodGet, "/", handleHello)
	app.Route(fasthttp.MethodPost, "/login", handleLogin)
	app.Route(fasthttp.MethodGet, "/secured", handleSecured, server.RequireJWT)
	app.Route(fasthttp.MethodGet, "/redis", handleRedis)
}

func handleHello(rc *server.RequestContext) {
	rc.AddLogEvent(map[string]any{"action": "hello", "languages": rc.Languages()}, true)
	rc.WriteResult(0, "Hello, world", nil)
}

func handleLogin(rc *server.RequestContext) {
	user := rc.Arg("user", "")
	if user == "" {
		rc.Fail(fasthttp.StatusBadRequest, "user is required")
		return
	}

	now := time.Now()
	token, err := rc.EncodeJWT(jwt.MapClaims{
		"sub": user,
		"iat": now.Unix(),
		"exp": now.Add(tokenLifetime).Unix(),
	})
	if err != nil {
		rc.Logger().Error("Failed to issue token", zap.Error(err))
		rc.Fail(fasthttp.StatusServiceUnavailable, "token signing is not available")
		return
	}

	rc.AddLogEvent(map[string]any{"action": "login", "user": user}, true)
	rc.WriteResult(0, "ok", map[string]any{"token": token})
}

func handleSecured(rc *server.RequestContext) {
	rc.WriteResult(0, "ok", map[string]any{"claims": rc.Claims()})
}

func handleRedis(rc *server.RequestContext) {
	client, err := rc.Redis()
	if err != nil {
		rc.Fail(fasthttp.StatusServiceUnavailable, "redis is not available")
		return
	}

	visitor, err := strutil.HashString(rc.UserIP(), strutil.AlgXXH64)
	if err != nil {
		rc.Fail(fasthttp.StatusInternalServerError, "%v", err)
		return
	}
	key := redisDemoKey + ":" + visitor

	if err := client.SetExpire(rc, key, rc.RequestID(), redisDemoTTL); err != nil {
		rc.Logger().Error("Redis write failed", zap.Error(err))
		rc.Fail(fasthttp.StatusInternalServerError, "redis write failed")
		return
	}
	value, err := client.Get(rc, key)
	if err != nil {
		rc.Logger().Error("Redis read failed", zap.Error(err))
		rc.Fail(fasthttp.StatusInternalServerError, "redis read failed")
		return
	}

	rc.WriteResult(0, "ok", map[string]any{"value": value})
}

// notifySystemd reports state to the service manager. Outside systemd
// NOTIFY_SOCKET is unset and this is a no-op.
func notifySystemd(log *zap.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("systemd notify failed", zap.String("state", state), zap.Error(err))
		return
	}
	if sent {
		log.Debug("systemd notified", zap.String("state", state))
	}
}

// runConfigTest loads and validates the configuration file.
func runConfigTest(configPath string, initLogger *zap.Logger) int {
	if _, err := config.Load(configPath, initLogger); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation FAILED:\n%v\n", err)
		return 1
	}
	fmt.Printf("configuration file %s syntax is ok\n", configPath)
	fmt.Println("configuration test is successful")
	return 0
}
