// Package di contains dependency injection tokens for the pipeline context.
package di

import (
	"github.com/fd1az/mev-bundler/business/pipeline/app"
	"github.com/fd1az/mev-bundler/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Engine = di.NewToken[*app.Engine]("pipeline.Engine")
)

// Private service tokens - internal to pipeline module
var (
	Sink = di.NewToken[app.Sink]("pipeline:sink")
)

func GetEngine(c di.ServiceRegistry) *app.Engine {
	return di.GetToken(c, Engine)
}
