package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/matt-steen/taskcard/pkg/config"
	"github.com/matt-steen/taskcard/pkg/controller"
	"github.com/matt-steen/taskcard/pkg/db"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

const defaultExportPath = "taskcard-export.json"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx := context.Background()

	flags := flag.NewFlagSet("taskcard", flag.ContinueOnError)

	var overrides config.Config

	configPath := flags.StringP("config", "c", "", "config file (default ./"+config.FileName+" if present)")
	flags.StringVar(&overrides.DBPath, "db", "", "sqlite database file")
	flags.StringVar(&overrides.LogPath, "log", "", "log file")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.RefreshInterval, "refresh", "", "how often the open card is reloaded, e.g. 5s; 0 disables")
	exportOnly := flags.Bool("export", false, "export all tasks as JSON and exit")

	if err := flags.Parse(args); err != nil {
		return err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("error getting working directory: %w", err)
	}

	cfg, cfgFile, err := config.Load(workDir, *configPath, overrides)
	if err != nil {
		return err
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}

	refresh, err := cfg.Refresh()
	if err != nil {
		return err
	}

	filePerms := 0o666

	logFile, err := os.OpenFile(cfg.LogPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, fs.FileMode(filePerms))
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}

	defer logFile.Close()

	zerolog.SetGlobalLevel(level)

	log.Logger = log.With().Caller().Logger().Output(zerolog.ConsoleWriter{
		Out: logFile, TimeFormat: "2006-01-02_15:04:05",
	})

	log.Info().Str("config", cfgFile).Str("db", cfg.DBPath).Msg("starting application...")

	database, err := db.NewDatabase(ctx, cfg.DBPath)
	if err != nil {
		return err
	}

	defer database.Close()

	exportPath := cfg.ExportPath
	if exportPath == "" {
		exportPath = defaultExportPath
	}

	if *exportOnly {
		if err := database.Export(exportPath); err != nil {
			return err
		}

		fmt.Println("exported tasks to", exportPath)

		return nil
	}

	ctrl, err := controller.NewController(ctx, database, refresh, exportPath)
	if err != nil {
		return err
	}

	return ctrl.Go()
}
