package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ArnoChenFx/ollamacheck"
	"github.com/ArnoChenFx/ollamacheck/conformance"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("ollamacheck", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", "", "path to config file (json or yaml)")
	initConfig := fs.Bool("init-config", false, "write the default config.json and exit")
	outputPath := fs.String("output", "", "export the results to this json file")
	ask := fs.String("ask", "", "query overriding the configured one")
	quiet := fs.Bool("q", false, "suppress diagnostic output, keep results and summary")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: ollamacheck [flags] [test ...]\n\n")
		fmt.Fprintf(fs.Output(), "With no test names every test runs. Available tests: %s\n\n", strings.Join(conformance.Names(), ", "))
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *initConfig {
		created, err := ollamacheck.WriteDefaultConfig(ollamacheck.DefaultConfigPath)
		if err != nil {
			return err
		}
		if !created {
			fmt.Printf("%s already exists, leaving it untouched\n", ollamacheck.DefaultConfigPath)
			return nil
		}
		fmt.Printf("Default configuration written to %s\n", ollamacheck.DefaultConfigPath)
		return nil
	}

	cfg, err := ollamacheck.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*ask) != "" {
		cfg.Cases.Basic.Query = *ask
		cfg.Cases.Basic.StreamQuery = *ask
	}

	client := ollamacheck.New(cfg)
	runner := conformance.NewRunner(client, conformance.NewRecorder())
	runner.Verbose = !*quiet

	fmt.Printf("target=%s model=%s\n", styleTarget(cfg.BaseURL()), cfg.Server.Model)

	ctx := context.Background()
	var runErr error
	names := fs.Args()
	if len(names) == 1 && names[0] == "all" {
		names = nil
	}
	if len(names) > 0 {
		runErr = runner.RunNamed(ctx, names)
	} else {
		runner.RunAll(ctx)
	}

	// A failing test is reported through the summary, not the exit code.
	// Only selection mistakes (an unknown test name) abort before the
	// summary is worth printing.
	if runErr != nil && len(runner.Recorder.Results()) == 0 {
		return runErr
	}
	if runErr != nil {
		fmt.Printf("\n%s %v\n", styleFailure("test failed:"), runErr)
	}

	runner.Recorder.PrintSummary(os.Stdout)

	if strings.TrimSpace(*outputPath) != "" {
		if err := runner.Recorder.Export(*outputPath); err != nil {
			return err
		}
		abs := *outputPath
		if v, err := filepath.Abs(abs); err == nil {
			abs = v
		}
		fmt.Printf("\nResults written: %s\n", abs)
	}

	return nil
}
