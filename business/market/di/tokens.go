// Package di contains dependency injection tokens for the market context.
package di

import (
	"github.com/fd1az/mev-bundler/business/market/app"
	"github.com/fd1az/mev-bundler/internal/di"
)

// Ingestor fans all configured snapshot sources into one stream.
var Ingestor = di.NewToken[*app.Ingestor]("market.Ingestor")
