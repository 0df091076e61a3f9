// Package di contains dependency injection tokens for the opportunity context.
package di

import (
	"github.com/fd1az/mev-bundler/business/opportunity/app"
	"github.com/fd1az/mev-bundler/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Detector  = di.NewToken[*app.Detector]("opportunity.Detector")
	Evaluator = di.NewToken[*app.Evaluator]("opportunity.Evaluator")
)

func GetDetector(c di.ServiceRegistry) *app.Detector {
	return di.GetToken(c, Detector)
}

func GetEvaluator(c di.ServiceRegistry) *app.Evaluator {
	return di.GetToken(c, Evaluator)
}
