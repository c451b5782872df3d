// Package di contains dependency injection tokens for the game context.
package di

import (
	"github.com/fd1az/flashblocks-catcher/business/game/app"
	"github.com/fd1az/flashblocks-catcher/internal/di"
)

// Public service tokens - exposed to main
var (
	Session = di.NewToken[*app.Session]("game.Session")
)

// Private dependency tokens - internal to game module
var (
	Coordinator = di.NewToken[*app.Coordinator]("game:coordinator")
	Reporter    = di.NewToken[app.Reporter]("game:reporter")
)

func GetSession(c di.ServiceRegistry) *app.Session {
	return di.GetToken(c, Session)
}

func GetCoordinator(c di.ServiceRegistry) *app.Coordinator {
	return di.GetToken(c, Coordinator)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
