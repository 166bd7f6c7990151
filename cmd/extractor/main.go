package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"dapp-trace-extractor/internal/abi"
	"dapp-trace-extractor/internal/assemble"
	"dapp-trace-extractor/internal/config"
	"dapp-trace-extractor/internal/decode"
	"dapp-trace-extractor/internal/explorer"
	"dapp-trace-extractor/internal/node"
	"dapp-trace-extractor/internal/pipeline"
	"dapp-trace-extractor/internal/sink"
	"dapp-trace-extractor/internal/trace"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	app := &cli.App{
		Name:  "extractor",
		Usage: "extracts and decodes a DApp's trace logs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, Usage: "path to the YAML config document"},
			&cli.BoolFlag{Name: "extract", Usage: "run the discovery/extraction phase (all phases run when no phase flag is given)"},
			&cli.BoolFlag{Name: "decode", Usage: "run the decode phase on the rows extracted in this invocation (combine with --extract)"},
			&cli.BoolFlag{Name: "transform", Usage: "run the transform phase on the rows decoded in this invocation (combine with --decode)"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Warn("received shutdown signal, cancelling")
		cancel()
	}()

	nodeClient, err := node.Dial(ctx, cfg.NodeURL(), cfg.Retry.Attempts, time.Duration(cfg.Retry.DelayMS)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("dial node: %w", err)
	}

	explorerClient := explorer.New(cfg.Extraction.EtherscanAPIKey, cfg.Retry.Attempts, time.Duration(cfg.Retry.DelayMS)*time.Millisecond)

	registry, err := abi.New(explorerClient, 4096)
	if err != nil {
		return fmt.Errorf("build abi registry: %w", err)
	}

	fallback, err := abi.FallbackChain(readCustomABI(cfg.Misc.CustomABIPath))
	if err != nil {
		return fmt.Errorf("build fallback abi chain: %w", err)
	}

	eventDec := decode.NewEventDecoder(fallback)
	callDec := decode.NewCallDecoder(fallback)
	assembler := assemble.New(cfg.Output.DApp, cfg.Output.NonDApp)

	out := sink.NewMemorySink()
	pctx := pipeline.New(cfg, nodeClient, explorerClient, registry, eventDec, callDec, assembler, out)

	runAll := !c.Bool("extract") && !c.Bool("decode") && !c.Bool("transform")
	if runAll {
		return pctx.Run(ctx)
	}

	var rows []trace.Row
	if c.Bool("extract") {
		if rows, err = pctx.Extract(ctx); err != nil {
			return err
		}
	}
	var decoded []assemble.DecodedRow
	if c.Bool("decode") {
		if decoded, err = pctx.Decode(ctx, rows); err != nil {
			return err
		}
	}
	if c.Bool("transform") {
		return pctx.Transform(ctx, decoded)
	}
	return nil
}

func readCustomABI(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Warnf("custom abi path %s unreadable, skipping: %v", path, err)
		return ""
	}
	return string(data)
}
