package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"go.uber.org/multierr"

	"github.com/angelmondragon/trailpack-backend/pkg/config"
	"github.com/angelmondragon/trailpack-backend/pkg/db"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
	"github.com/angelmondragon/trailpack-backend/pkg/migrate"
)

const usage = `usage: migrate [-dir DIR] <command> [arg]

commands:
  up              apply every pending migration
  down            roll back the latest migration
  to VERSION      move up or down to VERSION (YYYYMMDDHHMMSS)
  status          list migrations and when they were applied
  version         print the current schema version
  create NAME     write an empty migration into -dir
  validate        check migration names and goose annotations in -dir
`

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	flags := flag.NewFlagSet("migrate", flag.ExitOnError)
	dir := flags.String("dir", "", "migrations directory (default: embedded set; create and validate use "+migrate.DefaultDir+")")
	flags.Usage = func() { fmt.Fprint(flags.Output(), usage) }
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}
	command, args := flags.Arg(0), flags.Args()[1:]

	if err := run(context.Background(), logg, command, args, *dir, os.Stdout); err != nil {
		logg.Error(logg.WithField(context.Background(), "cmd", command), "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, command string, args []string, dir string, out io.Writer) (err error) {
	fileDir := dir
	if fileDir == "" {
		fileDir = migrate.DefaultDir
	}

	switch command {
	case "create":
		if len(args) != 1 {
			return errors.New("create takes exactly one NAME")
		}
		path, err := migrate.NewMigrationFile(fileDir, args[0], time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "created", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(fileDir); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations in", fileDir, "are valid")
		return nil
	case "up", "down", "to", "status", "version":
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	var target int64
	if command == "to" {
		if len(args) != 1 {
			return errors.New("to takes exactly one VERSION")
		}
		if target, err = migrate.ParseVersion(args[0]); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DB.IsSQLite() {
		return errors.New("goose migrations target postgres; sqlite applies its embedded schema on start")
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": command})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	migrator, err := migrate.NewMigrator(sqlDB, dir)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		results, err := migrator.Up(ctx)
		printResults(out, results)
		return err
	case "down":
		result, err := migrator.Down(ctx)
		if result != nil {
			printResults(out, []*goose.MigrationResult{result})
		}
		return err
	case "to":
		results, err := migrator.To(ctx, target)
		printResults(out, results)
		return err
	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(out, statuses)
		return nil
	default:
		version, err := migrator.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, version)
		return nil
	}
}

func printResults(out io.Writer, results []*goose.MigrationResult) {
	if len(results) == 0 {
		fmt.Fprintln(out, "schema already at target version")
		return
	}
	for _, r := range results {
		fmt.Fprintln(out, r.String())
	}
}

func printStatus(out io.Writer, statuses []*goose.MigrationStatus) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
	}
	tw.Flush()
}
