package main

import (
	"github.com/Aanu1995/Virtual-Tourist/app"
	"github.com/Aanu1995/Virtual-Tourist/config"
	"github.com/Aanu1995/Virtual-Tourist/logging"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var serveCommand = cli.Command{
	Name:   "serve",
	Usage:  "Starts the HTTP API",
	Action: serveAction,
}

func serveAction(c *cli.Context) error {
	o := config.FromContext(c)
	if err := o.Validate(); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if o.LogFile != "" {
		closer, err := logging.AddFile(o.LogFile)
		if err != nil {
			return err
		}
		defer closer.Close()
	}
	logger, ctx := logging.SubFrom(ctx, "main")

	a, err := app.NewApp(ctx, o)
	if err != nil {
		logger.Error("Failed to initialize", zap.Error(err))
		return err
	}
	return a.Run(ctx)
}
