// Package di contains dependency injection tokens for the attribution context.
package di

import (
	"github.com/fd1az/mev-bundler/business/attribution/app"
	"github.com/fd1az/mev-bundler/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Attributor = di.NewToken[*app.Attributor]("attribution.Attributor")
	Recorder   = di.NewToken[*app.Recorder]("attribution.Recorder")
)

// Private dependency tokens
var (
	OutcomeStore = di.NewToken[app.OutcomeStore]("attribution:outcomeStore")
	Journal      = di.NewToken[app.Journal]("attribution:journal")
)

func GetAttributor(c di.ServiceRegistry) *app.Attributor {
	return di.GetToken(c, Attributor)
}

func GetRecorder(c di.ServiceRegistry) *app.Recorder {
	return di.GetToken(c, Recorder)
}
