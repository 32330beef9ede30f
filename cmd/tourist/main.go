package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Aanu1995/Virtual-Tourist/config"
	"github.com/Aanu1995/Virtual-Tourist/consts"
	"github.com/Aanu1995/Virtual-Tourist/logging"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

func main() {
	logger := logging.From(context.Background())
	if err := config.LoadEnv(); err != nil {
		logger.Fatal("Cannot load environment", zap.Error(err))
	}

	app := cli.NewApp()
	app.Name = "tourist"
	app.HelpName = filepath.Base(os.Args[0])
	app.Usage = "Pins on a map and the photo albums taken around them"
	app.Version = fmt.Sprintf("%s (%s)", consts.Version, consts.GitCommit)
	app.Flags = config.Flags
	app.Commands = []cli.Command{
		serveCommand,
		pinsCommand,
		regionCommand,
		bucketsCommand,
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatal("Command failed", zap.Error(err))
	}
}

// signalContext is cancelled on the first interrupt
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
