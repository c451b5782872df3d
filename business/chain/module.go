// Package chain implements the chain data gateway bounded context: blocks of
// both cadences, receipts and transaction submission.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/fd1az/flashblocks-catcher/business/chain/app"
	chainDI "github.com/fd1az/flashblocks-catcher/business/chain/di"
	"github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/chain/infra/ethereum"
	"github.com/fd1az/flashblocks-catcher/business/chain/infra/flashblocks"
	"github.com/fd1az/flashblocks-catcher/internal/config"
	"github.com/fd1az/flashblocks-catcher/internal/di"
	"github.com/fd1az/flashblocks-catcher/internal/httpclient"
	"github.com/fd1az/flashblocks-catcher/internal/logger"
	"github.com/fd1az/flashblocks-catcher/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers all chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, chainDI.RPCClient, func(sr di.ServiceRegistry) *ethereum.Client {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		hc, err := httpclient.New(
			httpclient.WithProviderName("chain-rpc"),
			httpclient.WithHeaders(map[string]string{"User-Agent": cfg.App.Name}),
		)
		if err != nil {
			panic("failed to create rpc http client: " + err.Error())
		}

		clientCfg := ethereum.DefaultClientConfig(cfg.Chain.StandardRPCURL, cfg.Chain.FlashRPCURL, cfg.Chain.ChainID)
		clientCfg.RequestsPerSecond = cfg.Chain.RequestsPerSecond
		clientCfg.RequestTimeout = cfg.Chain.RequestTimeout
		clientCfg.PrivateKey = cfg.Wallet.PrivateKey
		clientCfg.GasLimit = cfg.Wallet.GasLimit
		clientCfg.HTTPClient = hc

		client, err := ethereum.NewClient(context.Background(), clientCfg, log)
		if err != nil {
			panic("failed to create rpc client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, chainDI.StandardSource, func(sr di.ServiceRegistry) app.BlockSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		pollCfg := ethereum.DefaultPollerConfig()
		pollCfg.Interval = cfg.Race.Standard.BlockInterval

		poller, err := ethereum.NewPoller(pollCfg, chainDI.GetRPCClient(sr), log)
		if err != nil {
			panic("failed to create standard block poller: " + err.Error())
		}
		return poller
	})

	di.RegisterToken(c, chainDI.FlashSource, func(sr di.ServiceRegistry) app.BlockSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		// The websocket dialer rejects clients with a Timeout, so this one has none.
		hc, err := httpclient.New(
			httpclient.WithProviderName("flashblocks-ws"),
			httpclient.WithHeaders(map[string]string{"User-Agent": cfg.App.Name}),
		)
		if err != nil {
			panic("failed to create websocket http client: " + err.Error())
		}

		streamCfg := flashblocks.DefaultStreamConfig(cfg.Chain.FlashWSURL)
		streamCfg.WS.InitialBackoff = cfg.Chain.InitialBackoff
		streamCfg.WS.MaxBackoff = cfg.Chain.MaxBackoff
		streamCfg.WS.MaxReconnects = cfg.Chain.MaxReconnects
		streamCfg.WS.HTTPClient = hc
		streamCfg.PollInterval = cfg.Race.Flash.BlockInterval

		stream, err := flashblocks.NewStream(streamCfg, chainDI.GetRPCClient(sr), log)
		if err != nil {
			panic("failed to create flashblock stream: " + err.Error())
		}
		return stream
	})

	di.RegisterToken(c, chainDI.ChainService, func(sr di.ServiceRegistry) *app.ChainService {
		client := chainDI.GetRPCClient(sr)
		return app.NewChainService(
			client,
			client,
			client,
			chainDI.GetStandardSource(sr),
			chainDI.GetFlashSource(sr),
		)
	})

	return nil
}

// Startup verifies the endpoints and registers readiness checks.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	client := chainDI.GetRPCClient(mono.Services())
	svc := chainDI.GetChainService(mono.Services())

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		// Not fatal: the sources keep retrying and the game shows the outage.
		log.Error(ctx, "failed to verify rpc endpoints", "error", err)
	}

	if hs := mono.Health(); hs != nil {
		hs.RegisterCheck("chain.standard", func(ctx context.Context) (bool, string) {
			return statusCheck(svc.Status(domain.Standard))
		})
		hs.RegisterCheck("chain.flash", func(ctx context.Context) (bool, string) {
			return statusCheck(svc.Status(domain.Flash))
		})
	}

	log.Info(ctx, "chain module started")
	return nil
}

// Shutdown closes the gateway.
func (m *Module) Shutdown(ctx context.Context, mono monolith.Monolith) error {
	return chainDI.GetChainService(mono.Services()).Close()
}

func statusCheck(st domain.ConnectionStatus) (bool, string) {
	msg := fmt.Sprintf("%s: %s, last block %d", st.Cadence, st.State, st.LastBlock)
	if st.UsingFallback {
		msg += " (fallback)"
	}
	return st.State.Healthy(), msg
}
