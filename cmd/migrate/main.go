package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"nicepg/internal/config"
	"nicepg/internal/database"
	"nicepg/internal/logging"
	"nicepg/internal/migration"
)

const usage = `nicepg migrate

Usage:
  %[1]s [options] <migrations_dir> [up|down|status]

Commands:
  up      Run all pending migrations (default)
  down    Roll back the last migration
  status  Show migration status

Examples:
  %[1]s db/migrations
  %[1]s -driver duckdb -db ./dev.duckdb db/migrations down

Options:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code. Usage problems
// print the usage text and still succeed; runner failures print the error
// message to stdout and return 1.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
	flags.SetOutput(stdout)
	var (
		configPath = flags.String("config", "", "Path to YAML config file")
		driver     = flags.String("driver", "", "Database driver: postgres or duckdb (overrides config)")
		dbURL      = flags.String("db", "", "Database URL or duckdb file path (overrides config)")
	)
	flags.Usage = func() {
		fmt.Fprintf(stdout, usage, "migrate")
		flags.PrintDefaults()
	}

	// Parse has already printed the problem and the usage text.
	if err := flags.Parse(args); err != nil {
		return 0
	}

	if flags.NArg() == 0 || flags.NArg() > 2 {
		flags.Usage()
		return 0
	}
	dir := flags.Arg(0)
	command := "up"
	if flags.NArg() == 2 {
		command = flags.Arg(1)
	}
	if command != "up" && command != "down" && command != "status" {
		flags.Usage()
		return 0
	}

	// .env file is optional
	_ = godotenv.Load()

	if err := execute(ctx, *configPath, *driver, *dbURL, dir, command, stdout, stderr); err != nil {
		fmt.Fprintln(stdout, err.Error())
		return 1
	}
	return 0
}

func execute(ctx context.Context, configPath, driver, dbURL, dir, command string, stdout, stderr io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if driver != "" {
		cfg.Database.Driver = driver
	}
	if dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if info, err := os.Stat(absDir); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", absDir)
	}

	db, err := database.Open(ctx, cfg.Database, database.WithLogger(logger))
	if err != nil {
		return err
	}
	defer db.Close()

	engine := migration.NewEngine(db, os.DirFS(absDir), migration.WithLogger(logger))

	switch command {
	case "down":
		m, err := engine.Down(ctx)
		if err != nil {
			return err
		}
		if m == nil {
			fmt.Fprintln(stdout, "Nothing to roll back")
			return nil
		}
		fmt.Fprintf(stdout, "Rolled back %s\n", m.FileName)
		return nil

	case "status":
		status, err := engine.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(stdout, status)
		return nil

	default:
		applied, err := engine.Up(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(stdout, "No pending migrations")
			return nil
		}
		for _, m := range applied {
			fmt.Fprintf(stdout, "Applied %s\n", m.FileName)
		}
		return nil
	}
}

func printStatus(out io.Writer, status *migration.Status) {
	fmt.Fprintf(out, "Current Version: %d\n\n", status.CurrentVersion)

	if len(status.Applied) > 0 {
		fmt.Fprintln(out, "Applied Migrations:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tAPPLIED AT")
		fmt.Fprintln(w, "-------\t----------")
		for _, v := range status.Applied {
			fmt.Fprintf(w, "%d\t%s\n", v.Version, v.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		w.Flush()
		fmt.Fprintln(out)
	}

	if len(status.Pending) > 0 {
		fmt.Fprintln(out, "Pending Migrations:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tFILE")
		fmt.Fprintln(w, "-------\t----")
		for _, m := range status.Pending {
			fmt.Fprintf(w, "%d\t%s\n", m.Version, m.FileName)
		}
		w.Flush()
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "Total: %d available, %d applied, %d pending\n",
		status.TotalAvailable, len(status.Applied), len(status.Pending))
	if status.CanRollback {
		fmt.Fprintln(out, "The current version can be rolled back")
	}
}
