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
	"github.com/scenegraph/syncengine/internal/ecs"
	"github.com/scenegraph/syncengine/internal/ecs/components"
	"github.com/scenegraph/syncengine/internal/ecs/registry"
	"github.com/scenegraph/syncengine/internal/exec"
	"github.com/scenegraph/syncengine/internal/metrics"
	"github.com/scenegraph/syncengine/internal/netcode/handshake"
	"github.com/scenegraph/syncengine/internal/netcode/proto"
	"github.com/scenegraph/syncengine/internal/netcode/transport"
	"github.com/scenegraph/syncengine/internal/netcode/wire"
	"github.com/scenegraph/syncengine/internal/persist"
	"github.com/scenegraph/syncengine/internal/scene"
	"github.com/scenegraph/syncengine/internal/scripting"
	"github.com/scenegraph/syncengine/internal/sync/receiver"
	"github.com/scenegraph/syncengine/internal/sync/sender"
	"github.com/scenegraph/syncengine/internal/sync/state"
	"github.com/scenegraph/syncengine/internal/sync/tracker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        syncserver  ·  scene sync           \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
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

// ── Main server logic ──────────────────────────────────────────────

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("SYNCENGINE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	// 1. Persistence: accounts + scene checkpoints.
	printSection("persistence")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Persist, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("connected to postgres")

	if err := persist.RunMigrations(ctx, db.Pool, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")

	accountRepo := persist.NewAccountRepo(db)
	checkpointRepo := persist.NewCheckpointRepo(db)
	fmt.Println()

	// 2. Scene graph, type registry, sync engine.
	printSection("scene graph")
	typeRegistry := registry.NewTypeRegistry(log)
	components.RegisterDefaults(typeRegistry)

	mgr := scene.NewManager()
	applyState := state.New()
	syncTracker := tracker.New()
	executor := exec.New()

	restored, err := restoreCheckpoint(mgr, typeRegistry, checkpointRepo, log)
	if err != nil {
		return fmt.Errorf("restore checkpoint: %w", err)
	}
	printOK(fmt.Sprintf("scene graph restored (%d root objects)", restored))
	fmt.Println()

	// 3. Metrics.
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

	// 4. Optional Lua scripting for component merge hooks/validators.
	scriptEngine, err := scripting.NewEngine("scripts", log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer scriptEngine.Close()

	// 5. Transport: dispatcher, snapshot sender/receiver, server.
	dispatcher := transport.NewDispatcher(log)

	syncSender := sender.New(sender.Config{
		IsServer:           true,
		OutgoingPacketType: uint16(transport.S2CSnapshot),
		Tracker:            syncTracker,
		Executor:           executor,
		Metrics:            collectors,
		Log:                log,
	}, applyState)
	mgr.SetDirtyMarker(syncSender)

	syncReceiver := receiver.New(receiver.Config{
		IsServer:  true,
		Registry:  typeRegistry,
		Manager:   mgr,
		Tracker:   syncTracker,
		Sender:    syncSender,
		Scripting: scriptEngine,
		Metrics:   collectors,
		Log:       log,
	}, applyState)

	dispatcher.Register(transport.C2SSnapshot, func(peer uint32, payload []byte) {
		executor.Enqueue(nil, func() {
			if err := syncReceiver.HandleSnapshot(peer, payload); err != nil {
				log.Warn("handle snapshot failed", zap.Uint32("peer", peer), zap.Error(err))
			}
		})
	})

	var verifier handshake.Verifier
	if cfg.Network.RequireAuth {
		verifier = accountRepo
	}

	netServer, err := transport.NewServer(transport.ServerConfig{
		BindAddr:   cfg.Network.BindAddress,
		Dispatcher: dispatcher,
		Verifier:   verifier,
		OnConnect: func(peer uint32) {
			log.Info("peer joined, sending full scene", zap.Uint32("peer", peer))
			executor.Enqueue(nil, func() {
				syncSender.SynchronizeFullTree(peer, mgr.AllRoots())
			})
			if collectors != nil {
				collectors.ConnectedPeers.Inc()
			}
		},
		OnDisconnect: func(peer uint32) {
			syncTracker.Forget(peer)
			log.Info("peer forgotten", zap.Uint32("peer", peer))
			if collectors != nil {
				collectors.ConnectedPeers.Dec()
			}
		},
		Log: log,
	})
	if err != nil {
		return fmt.Errorf("transport server: %w", err)
	}
	go netServer.AcceptLoop()

	// 6. Game loop: drive the executor and force an end-of-tick flush.
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("tick rate %s", cfg.Network.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			executor.Execute()
			syncSender.FlushDirty()
		case sig := <-shutdownCh:
			log.Info("received shutdown signal", zap.String("signal", sig.String()))
			saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := saveCheckpoint(saveCtx, mgr, checkpointRepo)
			saveCancel()
			if err != nil {
				log.Error("checkpoint save failed", zap.Error(err))
			} else {
				log.Info("scene checkpoint saved")
			}
			netServer.Shutdown()
			if metricsServer != nil {
				shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				metricsServer.Shutdown(shutCtx)
				shutCancel()
			}
			log.Info("server stopped")
			return nil
		}
	}
}

// saveCheckpoint serializes every root (and its subtree) into one
// checkpoint entry per object, parent path included so LoadCheckpoint's
// parent-first ordering can replay Register calls top-down.
func saveCheckpoint(ctx context.Context, mgr *scene.Manager, repo *persist.CheckpointRepo) error {
	var entries []persist.CheckpointEntry
	mgr.Walk(func(obj *scene.GameObject) {
		b := proto.NewBuilder()
		path := obj.AbsolutePath()
		owner, hasOwner := obj.OwningClient()
		if hasOwner {
			ownerCopy := owner
			b.Create(path, obj.Kind, &ownerCopy)
		} else {
			b.Create(path, obj.Kind, nil)
		}
		for _, c := range obj.Components() {
			b.AddComponent(path, c.TypeID(), serializeComponent(c))
		}
		entries = append(entries, persist.CheckpointEntry{
			Path:       path,
			ParentPath: scene.ParentPath(path),
			Payload:    b.Bytes(),
		})
	})
	return repo.WriteCheckpoint(ctx, 0, entries)
}

// restoreCheckpoint replays a previously saved checkpoint straight into mgr,
// bypassing the Sender/Receiver entirely — this happens before any peer is
// connected, so there is nothing to relay or ack yet.
func restoreCheckpoint(mgr *scene.Manager, reg *registry.TypeRegistry, repo *persist.CheckpointRepo, log *zap.Logger) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, _, ok, err := repo.LoadCheckpoint(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	roots := 0
	for _, e := range entries {
		it := proto.NewOperationIterator(e.Payload, 1<<31-1)
		for {
			code, payload, more, iterErr := it.Next()
			if !more {
				break
			}
			if iterErr != nil {
				log.Warn("checkpoint entry truncated", zap.String("path", e.Path), zap.Error(iterErr))
				break
			}
			switch code {
			case proto.OpCreate:
				d, err := proto.DecodeCreate(payload)
				if err != nil {
					return roots, err
				}
				placeholder := components.NewTransform3d()
				obj := scene.NewGameObject(scene.NameOf(d.Path), d.TypeName, placeholder, false, d.Owner)
				if err := mgr.Register(obj, e.ParentPath, false); err != nil {
					return roots, fmt.Errorf("restore %q: %w", d.Path, err)
				}
				if e.ParentPath == "." {
					roots++
				}
			case proto.OpAddComponent:
				d, err := proto.DecodeAddComponent(payload)
				if err != nil {
					return roots, err
				}
				obj, ok := mgr.Get(d.Path)
				if !ok {
					return roots, fmt.Errorf("restore addComponent: %w: %q", scene.ErrNotFound, d.Path)
				}
				c := reg.Instantiate(d.ComponentTypeID)
				if c == nil {
					return roots, fmt.Errorf("restore addComponent: unknown type %d", d.ComponentTypeID)
				}
				if err := c.Deserialize(wire.NewReader(d.Blob)); err != nil {
					return roots, fmt.Errorf("restore addComponent: %w", err)
				}
				if existing, has := obj.GetComponent(d.ComponentTypeID); has {
					registry.Merge(existing, c)
				} else if err := obj.AddComponent(c); err != nil {
					return roots, fmt.Errorf("restore addComponent: %w", err)
				}
			}
		}
	}
	return roots, nil
}

func serializeComponent(c ecs.Component) []byte {
	w := wire.NewWriter()
	c.Serialize(w)
	return w.Bytes()
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
