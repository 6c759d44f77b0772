// Package main provides the AmbonMUD server binary: one process hosting
// the engine, the outbound router, and both transports.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ambonmud/server/internal/config"
	"github.com/ambonmud/server/internal/frontend/telnet"
	"github.com/ambonmud/server/internal/frontend/web"
	"github.com/ambonmud/server/internal/game/ability"
	"github.com/ambonmud/server/internal/game/effect"
	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/game/world"
	"github.com/ambonmud/server/internal/gameserver"
	"github.com/ambonmud/server/internal/observability"
	"github.com/ambonmud/server/internal/scripting"
	"github.com/ambonmud/server/internal/server"
	"github.com/ambonmud/server/internal/storage/memory"
	"github.com/ambonmud/server/internal/storage/postgres"
)

// luaInstructionLimit bounds each zone script VM.
const luaInstructionLimit = 1_000_000

func main() {
	os.Exit(run())
}

func run() int {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	zonesDir := flag.String("zones", "content/zones", "path to zone YAML files directory")
	effectsPath := flag.String("effects", "content/effects.yaml", "path to status-effect definitions")
	abilitiesPath := flag.String("abilities", "content/abilities.yaml", "path to ability definitions")
	scriptsDir := flag.String("scripts", "content/scripts", "root directory of per-zone Lua scripts; empty = scripting disabled")
	memStore := flag.Bool("memstore", false, "use the in-memory player store instead of PostgreSQL")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("loading config: %v", err)
		return 1
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Printf("initializing logger: %v", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	var metrics observability.Recorder = observability.NopRecorder{}
	if cfg.Metrics.Enabled {
		metrics = observability.NewExpvarRecorder(cfg.Metrics.Tags)
	}

	// Load world content.
	worldStart := time.Now()
	w, err := world.LoadWorldFromDir(*zonesDir, world.Options{})
	if err != nil {
		logger.Error("loading world", zap.Error(err))
		return 1
	}
	logger.Info("world loaded",
		zap.Int("zones", len(w.Zones)),
		zap.Int("rooms", len(w.Rooms)),
		zap.Int("mob_spawns", len(w.MobSpawns)),
		zap.Duration("elapsed", time.Since(worldStart)),
	)

	effectDefs, err := effect.LoadDefinitionsFile(*effectsPath)
	if err != nil {
		logger.Error("loading status effects", zap.Error(err))
		return 1
	}
	abilityDefs, err := ability.LoadDefinitionsFile(*abilitiesPath)
	if err != nil {
		logger.Error("loading abilities", zap.Error(err))
		return 1
	}
	logger.Info("content loaded",
		zap.Int("effects", len(effectDefs)),
		zap.Int("abilities", len(abilityDefs)),
	)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// Zone scripts are optional; zones without a script directory run the
	// built-in behavior templates only.
	var scripts *scripting.Manager
	if *scriptsDir != "" {
		scripts = scripting.NewManager(rng, logger)
		defer scripts.Close()
		for _, zone := range w.Zones {
			dir := filepath.Join(*scriptsDir, zone)
			if _, statErr := os.Stat(dir); statErr != nil {
				continue
			}
			if err := scripts.LoadZone(zone, dir, luaInstructionLimit); err != nil {
				logger.Error("loading zone scripts", zap.String("zone", zone), zap.Error(err))
				return 1
			}
			logger.Info("zone scripts loaded", zap.String("zone", zone))
		}
	}

	// Player persistence.
	var repo player.Repository
	if *memStore {
		logger.Warn("using in-memory player store, characters are lost on restart")
		repo = memory.NewRepository()
	} else {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Error("connecting to database", zap.Error(err))
			return 1
		}
		defer pool.Close()
		if err := pool.Health(ctx, 5*time.Second); err != nil {
			logger.Error("database health check failed", zap.Error(err))
			return 1
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		repo = postgres.NewPlayerRepository(pool)
	}

	inbound := event.NewInboundBus(cfg.Engine.InboundChannelCapacity)
	outbound := event.NewOutboundBus(cfg.Engine.OutboundChannelCapacity)

	eng, err := gameserver.NewEngine(gameserver.Deps{
		Config:      cfg.Engine,
		World:       w,
		Repo:        repo,
		EffectDefs:  effectDefs,
		AbilityDefs: abilityDefs,
		Scripts:     scripts,
		Inbound:     inbound,
		Outbound:    outbound,
		Metrics:     metrics,
		Logger:      logger.Named("engine"),
		RNG:         rng,
	})
	if err != nil {
		logger.Error("building engine", zap.Error(err))
		return 1
	}

	router := gameserver.NewRouter(outbound, eng.Players(), cfg.Engine.PromptText,
		cfg.Engine.SessionOutboundTimeout, metrics, logger.Named("router"))

	ids := sessionIDSource(cfg.Engine)

	telnetAcceptor := telnet.NewAcceptor(cfg.Telnet, cfg.Engine, ids, inbound, router,
		metrics, logger.Named("telnet"))
	webServer := web.NewServer(cfg.Web, cfg.Engine, ids, inbound, router, eng.Players(),
		web.Options{World: w, Repo: repo, MetricsEnabled: cfg.Metrics.Enabled},
		metrics, logger.Named("web"))

	lc := server.NewLifecycle(logger)

	engineCtx, stopEngine := context.WithCancel(ctx)
	defer stopEngine()
	lc.Add("engine", &server.FuncService{
		StartFn: func() error { return ignoreCanceled(eng.Run(engineCtx)) },
		StopFn:  stopEngine,
	})

	routerCtx, stopRouter := context.WithCancel(ctx)
	defer stopRouter()
	lc.Add("router", &server.FuncService{
		StartFn: func() error { return ignoreCanceled(router.Run(routerCtx)) },
		StopFn:  stopRouter,
	})

	lc.Add("telnet", &server.FuncService{
		StartFn: telnetAcceptor.ListenAndServe,
		StopFn:  telnetAcceptor.Stop,
	})
	lc.Add("web", &server.FuncService{
		StartFn: webServer.ListenAndServe,
		StopFn:  webServer.Stop,
	})

	logger.Info("server ready",
		zap.String("telnet_addr", cfg.Telnet.Addr()),
		zap.String("web_addr", cfg.Web.Addr()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lc.Run(ctx); err != nil {
		return 1
	}
	return 0
}

// sessionIDSource picks the allocator: snowflakes when a gateway id is
// configured, a process-local counter otherwise.
func sessionIDSource(cfg config.EngineConfig) telnet.SessionIDSource {
	if cfg.GatewayID > 0 {
		return id.NewSnowflakeAllocator(uint16(cfg.GatewayID))
	}
	return id.NewCounterAllocator()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
