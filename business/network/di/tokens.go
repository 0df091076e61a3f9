// Package di contains dependency injection tokens for the network context.
package di

import (
	"github.com/fd1az/mev-bundler/business/network/app"
	"github.com/fd1az/mev-bundler/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Tracker    = di.NewToken[*app.Tracker]("network.Tracker")
	Conditions = di.NewToken[*app.ConditionsTracker]("network.Conditions")
)

// Private dependency tokens
var (
	CongestionSource = di.NewToken[app.CongestionSource]("network:congestionSource")
)

func GetTracker(c di.ServiceRegistry) *app.Tracker {
	return di.GetToken(c, Tracker)
}

func GetConditions(c di.ServiceRegistry) *app.ConditionsTracker {
	return di.GetToken(c, Conditions)
}
