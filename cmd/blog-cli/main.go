// main package for the interactive blog-cli
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/book-expert/blog-workflow/internal/app"
	"github.com/book-expert/blog-workflow/internal/config"
	"github.com/book-expert/blog-workflow/internal/workflow"
	"github.com/book-expert/logger"
)

// Flag names and descriptions.
const (
	flagConfig      = "config"
	flagVerbose     = "verbose"
	flagConfigDesc  = "Path to project.toml (defaults to the environment only)"
	flagVerboseDesc = "Enable verbose logging"
)

// Error and log messages.
const (
	errFailedToLoadConfig = "failed to load configuration: %w"
	errFailedToInitLogger = "failed to initialize logger: %w"
	errFailedToBuild      = "failed to build workflow: %w"
	logClientInitialized  = "Blog CLI initialized (model %s, results in %s)"
	logCheckFailed        = "Service check failed: %v"
	msgCheckFailed        = "警告：服务连接检查失败（%v），生成可能会失败\n"
)

const (
	logFileNameDefault = "blog-cli.log"
	logFileNameVerbose = "blog-cli-verbose.log"
	checkTimeout       = 10 * time.Second
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	config  string
	verbose bool
}

func main() {
	err := run()
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags(flag.CommandLine, os.Args[1:])

	cfg, err := loadConfig(flags.config)
	if err != nil {
		return err
	}

	logFileName := logFileNameDefault
	if flags.verbose {
		logFileName = logFileNameVerbose
	}

	appLog, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return fmt.Errorf(errFailedToInitLogger, err)
	}
	defer func() { _ = appLog.Close() }()

	components, err := app.Build(cfg, appLog, workflow.WithProgress(os.Stdout))
	if err != nil {
		appLog.Error("Failed to build workflow: %v", err)

		return fmt.Errorf(errFailedToBuild, err)
	}

	appLog.Info(logClientInitialized, components.LLM.Model(), components.Store.Dir())

	ctx := context.Background()
	checkConnection(ctx, components, appLog)

	return newMenu(components.Engine, os.Stdin, os.Stdout).Loop(ctx)
}

// parseFlags parses args into an appFlags using set.
func parseFlags(set *flag.FlagSet, args []string) appFlags {
	var flags appFlags

	set.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	set.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)
	_ = set.Parse(args)

	return flags
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv(), nil
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf(errFailedToLoadConfig, err)
	}

	return cfg, nil
}

// checkConnection warns when the LLM or speech service cannot be reached. The
// menu still starts so that a service brought up later can be used.
func checkConnection(ctx context.Context, components *app.Components, log *logger.Logger) {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	err := components.CheckServices(checkCtx)
	if err != nil {
		log.Warn(logCheckFailed, err)
		fmt.Printf(msgCheckFailed, err)
	}
}
