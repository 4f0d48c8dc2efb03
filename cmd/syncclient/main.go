package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scenegraph/syncengine/internal/config"
	"github.com/scenegraph/syncengine/internal/ecs/components"
	"github.com/scenegraph/syncengine/internal/ecs/registry"
	"github.com/scenegraph/syncengine/internal/exec"
	"github.com/scenegraph/syncengine/internal/metrics"
	"github.com/scenegraph/syncengine/internal/netcode/transport"
	"github.com/scenegraph/syncengine/internal/scene"
	"github.com/scenegraph/syncengine/internal/scripting"
	"github.com/scenegraph/syncengine/internal/sync/receiver"
	"github.com/scenegraph/syncengine/internal/sync/sender"
	"github.com/scenegraph/syncengine/internal/sync/state"
	"github.com/scenegraph/syncengine/internal/sync/tracker"
	"github.com/scenegraph/syncengine/internal/sync/translation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers (mirrors cmd/syncserver's) ─────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        syncclient  ·  scene sync           \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mclient:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main client logic ──────────────────────────────────────────────

func run() error {
	cfgPath := "config/client.toml"
	if p := os.Getenv("SYNCENGINE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Server.IsServer = false

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	printSection("scene graph")
	typeRegistry := registry.NewTypeRegistry(log)
	components.RegisterDefaults(typeRegistry)

	mgr := scene.NewManager()
	applyState := state.New()
	syncTracker := tracker.New()
	executor := exec.New()
	translationBuffer := translation.New()
	printOK("scene graph initialized")
	fmt.Println()

	var collectors *metrics.Collectors
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		printSection("metrics")
		reg := prometheus.NewRegistry()
		collectors = metrics.NewCollectors(reg)
		metricsServer = metrics.NewServer(cfg.Metrics.BindAddress, reg, log)
		go func() {
			if err := metricsServer.Serve(); err != nil {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
		printOK(fmt.Sprintf("serving /metrics on %s", cfg.Metrics.BindAddress))
		fmt.Println()
	}

	scriptEngine, err := scripting.NewEngine("scripts", log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer scriptEngine.Close()

	dispatcher := transport.NewDispatcher(log)

	printSection("connecting")
	client, err := transport.Dial(cfg.Network.DialAddress, transport.ClientConfig{
		Dispatcher: dispatcher,
		Log:        log,
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.Network.DialAddress, err)
	}
	defer client.Close()
	printOK(fmt.Sprintf("connected to %s, assigned peer %d", cfg.Network.DialAddress, client.SelfPeer()))
	fmt.Println()

	syncSender := sender.New(sender.Config{
		IsServer:           false,
		SelfPeer:           client.SelfPeer(),
		OutgoingPacketType: uint16(transport.C2SSnapshot),
		Tracker:            syncTracker,
		Network:            client,
		Executor:           executor,
		Metrics:            collectors,
		Log:                log,
	}, applyState)
	mgr.SetDirtyMarker(syncSender)

	syncReceiver := receiver.New(receiver.Config{
		IsServer:    false,
		SelfPeer:    client.SelfPeer(),
		Registry:    typeRegistry,
		Manager:     mgr,
		Tracker:     syncTracker,
		Sender:      syncSender,
		Translation: translationBuffer,
		Scripting:   scriptEngine,
		Metrics:     collectors,
		Log:         log,
	}, applyState)

	dispatcher.Register(transport.S2CSnapshot, func(peer uint32, payload []byte) {
		executor.Enqueue(nil, func() {
			if err := syncReceiver.HandleSnapshot(peer, payload); err != nil {
				log.Warn("handle snapshot failed", zap.Uint32("peer", peer), zap.Error(err))
			}
		})
	})

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("tick rate %s", cfg.Network.TickRate))
	fmt.Println()

	lastTick := time.Now()
	for {
		select {
		case now := <-ticker.C:
			dt := now.Sub(lastTick)
			lastTick = now
			executor.Execute()
			translationBuffer.Update(dt)
			syncSender.FlushDirty()
		case sig := <-shutdownCh:
			log.Info("received shutdown signal", zap.String("signal", sig.String()))
			if metricsServer != nil {
				shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				metricsServer.Shutdown(shutCtx)
				shutCancel()
			}
			log.Info("client stopped")
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
