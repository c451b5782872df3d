// Package game implements the game bounded context: block ingestion, the
// arena and the flash vs standard confirmation race.
package game

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	chainDI "github.com/fd1az/flashblocks-catcher/business/chain/di"
	"github.com/fd1az/flashblocks-catcher/business/game/app"
	gameDI "github.com/fd1az/flashblocks-catcher/business/game/di"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/infra"
	"github.com/fd1az/flashblocks-catcher/internal/config"
	"github.com/fd1az/flashblocks-catcher/internal/di"
	"github.com/fd1az/flashblocks-catcher/internal/logger"
	"github.com/fd1az/flashblocks-catcher/internal/monolith"
)

// Module implements the game bounded context.
type Module struct{}

// RegisterServices registers all game services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, gameDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.TUIMode {
			return infra.NewTUIReporter()
		}
		return infra.NewConsoleReporter()
	})

	di.RegisterToken(c, gameDI.Coordinator, func(sr di.ServiceRegistry) *app.Coordinator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		coord, err := app.NewCoordinator(
			chainDI.GetChainService(sr),
			app.CoordinatorConfig{
				Channels:   app.DefaultChannels(cfg.Race),
				AcceptLate: cfg.Race.LateSignalPolicy == config.LateSignalAccept,
			},
			log,
		)
		if err != nil {
			panic("failed to create race coordinator: " + err.Error())
		}
		return coord
	})

	di.RegisterToken(c, gameDI.Session, func(sr di.ServiceRegistry) *app.Session {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		value, err := cfg.Wallet.Value()
		if err != nil {
			panic("invalid wallet value: " + err.Error())
		}

		sessionCfg := app.DefaultSessionConfig()
		sessionCfg.Recipient = common.HexToAddress(cfg.Wallet.Recipient)
		sessionCfg.Value = value
		sessionCfg.Arena = domain.DefaultArenaConfig(cfg.Game.Width, cfg.Game.Height, cfg.Game.PaddleWidth)
		sessionCfg.WindowSize = cfg.Game.WindowSize
		sessionCfg.FrameInterval = cfg.Game.FrameInterval
		sessionCfg.StatsWindow = cfg.Game.StatsWindow
		sessionCfg.StatsRefresh = cfg.Game.StatsRefresh

		session, err := app.NewSession(
			chainDI.GetChainService(sr),
			gameDI.GetCoordinator(sr),
			gameDI.GetReporter(sr),
			sessionCfg,
			log,
		)
		if err != nil {
			panic("failed to create game session: " + err.Error())
		}
		return session
	})

	return nil
}

// Startup starts the session and exposes its state.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	session := gameDI.GetSession(mono.Services())

	if err := session.Start(ctx); err != nil {
		return err
	}

	if hs := mono.Health(); hs != nil {
		hs.HandleJSON("/v1/state", func(ctx context.Context) (any, error) {
			return infra.NewStateView(session.Snapshot()), nil
		})
	}

	log.Info(ctx, "game module started")
	return nil
}

// Shutdown stops the session, its race channels and the reporter.
func (m *Module) Shutdown(ctx context.Context, mono monolith.Monolith) error {
	return gameDI.GetSession(mono.Services()).Stop()
}
