package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tinyml-pipeline/config"
	"tinyml-pipeline/internal/container"
	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/pkg/log"
)

const usage = `usage: pipeline <command> [flags]

commands:
  crops     cut positive and negative crops from the annotated splits
  dataset   augment crops and write X.npy / y.npy
  convert   quantize the trained model and export .tflite + C header
  all       crops, then dataset

flags:
  -in-memory   (all) hand crops to the dataset stage without writing PNG files
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	inMemory := fs.Bool("in-memory", false, "hand crops to the dataset stage in memory")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.NewLogger(log.Options{
		Level:  cfg.LogLevel,
		Dir:    cfg.LogDir,
		AppEnv: cfg.AppEnv,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(cfg, logger, container.Options{InMemory: *inMemory && command == "all"})
	if err != nil {
		traceID := log.ErrorWithTraceID(logger, log.Fields{"error": err}, "failed to build pipeline")
		fmt.Fprintf(os.Stderr, "error: %v (trace %s)\n", err, traceID)
		os.Exit(1)
	}

	switch command {
	case "crops":
		_, err = c.Pipeline.RunStage(ctx, entity.StageCrops)
	case "dataset":
		_, err = c.Pipeline.RunStage(ctx, entity.StageDataset)
	case "convert":
		_, err = c.Pipeline.RunStage(ctx, entity.StageConvert)
	case "all":
		_, err = c.Pipeline.RunAll(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil {
		traceID := log.ErrorWithTraceID(logger, log.Fields{
			"command": command,
			"run_id":  c.RunID,
			"error":   err,
		}, "stage failed")
		fmt.Fprintln(os.Stderr, diagnostic(err, traceID))
		os.Exit(1)
	}
}

// diagnostic формирует сообщение для пользователя; для отсутствующего файла
// называет этап, который его создаёт.
func diagnostic(err error, traceID string) string {
	var missing *entity.MissingInputError
	if errors.As(err, &missing) {
		return fmt.Sprintf("error: %s not found; run the %s stage first (trace %s)", missing.Path, missing.Stage, traceID)
	}
	return fmt.Sprintf("error: %v (trace %s)", err, traceID)
}
