// Package di contains dependency injection tokens for the ordering context.
package di

import (
	"github.com/fd1az/mev-bundler/business/ordering/app"
	"github.com/fd1az/mev-bundler/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Optimizer = di.NewToken[*app.Optimizer]("ordering.Optimizer")
)

func GetOptimizer(c di.ServiceRegistry) *app.Optimizer {
	return di.GetToken(c, Optimizer)
}
