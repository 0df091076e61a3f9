// Package di contains dependency injection tokens for the bundle context.
package di

import (
	"github.com/fd1az/mev-bundler/business/bundle/app"
	"github.com/fd1az/mev-bundler/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Queue    = di.NewToken[*app.Queue]("bundle.Queue")
	Composer = di.NewToken[*app.Composer]("bundle.Composer")
)

func GetQueue(c di.ServiceRegistry) *app.Queue {
	return di.GetToken(c, Queue)
}

func GetComposer(c di.ServiceRegistry) *app.Composer {
	return di.GetToken(c, Composer)
}
