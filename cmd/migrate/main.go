package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/easyrecs-backend/pkg/config"
	"github.com/angelmondragon/easyrecs-backend/pkg/db"
	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
	"github.com/angelmondragon/easyrecs-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// dbCommands need a live connection; the rest only touch files.
var dbCommands = map[string]func(ctx context.Context, r *migrate.Runner, opts options) error{
	"up": func(ctx context.Context, r *migrate.Runner, _ options) error {
		return r.Up(ctx)
	},
	"down": func(ctx context.Context, r *migrate.Runner, _ options) error {
		return r.Down(ctx)
	},
	"status": printStatus,
	"version": func(ctx context.Context, r *migrate.Runner, opts options) error {
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return r.To(ctx, opts.version)
	},
}

var fileCommands = map[string]func(opts options) error{
	"create": func(opts options) error {
		if opts.name == "" {
			return fmt.Errorf("missing -name for create")
		}
		dir := opts.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	},
	"validate": func(opts options) error {
		var err error
		if opts.dir == "" {
			err = migrate.ValidateFS(migrate.Embedded())
		} else {
			err = migrate.ValidateDir(opts.dir)
		}
		if err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	},
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	var opts options
	flag.StringVar(&opts.dir, "dir", "", "migrations directory (defaults to the embedded set)")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if run, ok := fileCommands[*cmd]; ok {
		exitOn(context.Background(), logg, *cmd, run(opts))
		return
	}
	run, ok := dbCommands[*cmd]
	if !ok {
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(2)
	}

	cfg, err := config.Load()
	exitOn(context.Background(), logg, "config", err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dialect := migrate.DialectFor(cfg.DB.Driver)
	source := opts.dir
	if source == "" {
		source = "embedded"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"cmd":     *cmd,
		"source":  source,
		"dialect": string(dialect),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(ctx, logg, "database", err)
	sqlDB, err := dbClient.SQL()
	exitOn(ctx, logg, "sql database", err)
	runner, err := migrate.NewRunner(sqlDB, dialect, migrate.Source(opts.dir), logg)
	exitOn(ctx, logg, "runner", err)

	runErr := run(ctx, runner, opts)
	if closeErr := dbClient.Close(); closeErr != nil {
		logg.Error(ctx, "error closing database", closeErr)
	}
	exitOn(ctx, logg, *cmd, runErr)
	logg.Info(ctx, "migrate.done")
}

func printStatus(ctx context.Context, r *migrate.Runner, _ options) error {
	statuses, err := r.Status(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		state, appliedAt := "pending", "-"
		if st.Applied {
			state, appliedAt = "applied", st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.Version, state, appliedAt, st.Path)
	}
	return tw.Flush()
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "step", step), "migrate.failed", err)
	os.Exit(1)
}
