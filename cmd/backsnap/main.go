package main

import (
	"time"

	"go.uber.org/fx"

	"github.com/backsnap/backsnap/internal/configfx"
	"github.com/backsnap/backsnap/internal/domainfx"
	"github.com/backsnap/backsnap/internal/loggerfx"
	"github.com/backsnap/backsnap/internal/sqlfx"
	"github.com/backsnap/backsnap/internal/statusfx"
)

func main() {
	logger := loggerfx.Logger()

	app := fx.New(
		fx.StartTimeout(15*time.Second),
		fx.StopTimeout(15*time.Second),

		fx.Logger(logger),

		loggerfx.Module,
		configfx.Module,
		sqlfx.Module,
		statusfx.Module,
		domainfx.Module,
	)

	app.Run()
}
