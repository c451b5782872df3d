// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/flashblocks-catcher/business/chain/app"
	"github.com/fd1az/flashblocks-catcher/business/chain/infra/ethereum"
	"github.com/fd1az/flashblocks-catcher/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ChainService = di.NewToken[*app.ChainService]("chain.ChainService")
)

// Private dependency tokens - internal to chain module
var (
	RPCClient      = di.NewToken[*ethereum.Client]("chain:rpcClient")
	StandardSource = di.NewToken[app.BlockSource]("chain:standardSource")
	FlashSource    = di.NewToken[app.BlockSource]("chain:flashSource")
)

func GetChainService(c di.ServiceRegistry) *app.ChainService {
	return di.GetToken(c, ChainService)
}

func GetRPCClient(c di.ServiceRegistry) *ethereum.Client {
	return di.GetToken(c, RPCClient)
}

func GetStandardSource(c di.ServiceRegistry) app.BlockSource {
	return di.GetToken(c, StandardSource)
}

func GetFlashSource(c di.ServiceRegistry) app.BlockSource {
	return di.GetToken(c, FlashSource)
}
