// Command ingest pushes a file of frames (or stdin) through the ingestion
// pipeline and prints the batch summary.
//
//	ingest [-config igx.yaml] [-dry-run] [frames.txt]
//	ingest -emit 'IGX,1.0,356307042441013,...'
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"igx_tracker/internal/config"
	"igx_tracker/internal/ingest"
	"igx_tracker/internal/logger"
	"igx_tracker/internal/protocol"
	"igx_tracker/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (defaults to $CONFIG_FILE)")
		dryRun     = flag.Bool("dry-run", false, "use an in-memory store instead of the database")
		emit       = flag.String("emit", "", "print the checksummed frame for a payload and exit")
	)
	flag.Parse()

	if *emit != "" {
		fmt.Println(protocol.BuildFrame(*emit))
		return
	}

	if err := run(*configPath, *dryRun, flag.Arg(0)); err != nil {
		logrus.WithError(err).Error("ingest failed")
		os.Exit(1)
	}
}

func run(configPath string, dryRun bool, input string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	closer, err := logger.Setup(logger.Options{File: cfg.Log.File, Level: cfg.Log.Level, Stdout: false})
	if err != nil {
		return err
	}
	defer closer.Close()

	var st interface {
		store.DeviceRegistry
		store.FrameStore
	}
	if dryRun {
		st = store.NewMemStore()
	} else {
		db, err := config.InitDB(cfg.DB)
		if err != nil {
			return err
		}
		st = store.NewGormStore(db)
	}

	var r io.Reader = os.Stdin
	if input != "" && input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := ingest.New(st, st).IngestReader(ctx, r)
	fmt.Printf("%s (batch %s)\n", sum.Message(), sum.BatchID)
	return err
}
