package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"

	"github.com/erp/inventory-ledger/internal/infrastructure/config"
	"github.com/erp/inventory-ledger/internal/infrastructure/logger"
	"github.com/erp/inventory-ledger/internal/infrastructure/migration"
	"github.com/erp/inventory-ledger/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

// exitBehind is the exit code of "status" when migrations are pending
const exitBehind = 2

var errUsage = errors.New("usage")

// command is one CLI verb. Commands that need the database get a migrator;
// file-only commands run without loading configuration.
type command struct {
	usage string
	help  string
	files func(env *cliEnv, args []string) error
	db    func(env *cliEnv, m *migration.Migrator, args []string) error
}

// cliEnv carries what every command needs
type cliEnv struct {
	log *zap.Logger
	dir string
	src migration.Source
}

func (e *cliEnv) fsys() fs.FS {
	if e.dir != "" {
		return os.DirFS(e.dir)
	}
	return e.src.FS
}

var commands = map[string]command{
	"up": {help: "Apply all pending migrations", db: func(_ *cliEnv, m *migration.Migrator, _ []string) error {
		return m.Up()
	}},
	"down": {help: "Roll back all migrations", db: func(_ *cliEnv, m *migration.Migrator, _ []string) error {
		return m.Down()
	}},
	"step": {usage: "<n>", help: "Apply n migrations (negative rolls back)", db: func(_ *cliEnv, m *migration.Migrator, args []string) error {
		n, err := intArg(args, "step count")
		if err != nil {
			return err
		}
		return m.Steps(n)
	}},
	"goto": {usage: "<version>", help: "Migrate up or down to a version", db: func(_ *cliEnv, m *migration.Migrator, args []string) error {
		v, err := versionArg(args)
		if err != nil {
			return err
		}
		return m.GoTo(v)
	}},
	"version": {help: "Show the applied version", db: func(env *cliEnv, m *migration.Migrator, _ []string) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if v == 0 {
			env.log.Info("No migrations applied")
			return nil
		}
		env.log.Info("Schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	}},
	"status": {help: "Show version and pending migrations, exit 2 when behind", db: func(env *cliEnv, m *migration.Migrator, _ []string) error {
		st, err := m.Status()
		if err != nil {
			return err
		}
		env.log.Info("Schema status",
			zap.Uint("version", st.Version),
			zap.Bool("dirty", st.Dirty),
			zap.Uints("pending", st.Pending),
			zap.Bool("up_to_date", st.UpToDate()),
		)
		if !st.UpToDate() {
			_ = env.log.Sync()
			os.Exit(exitBehind)
		}
		return nil
	}},
	"force": {usage: "<version>", help: "Set the version without running migrations", db: func(env *cliEnv, m *migration.Migrator, args []string) error {
		v, err := intArg(args, "version")
		if err != nil {
			return err
		}
		env.log.Warn("Forcing schema version", zap.Int("version", v))
		return m.Force(v)
	}},
	"drop": {usage: "-confirm", help: "Drop every object in the database", db: func(_ *cliEnv, m *migration.Migrator, args []string) error {
		if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
			return fmt.Errorf("%w: drop needs -confirm", errUsage)
		}
		return m.Drop()
	}},
	"create": {usage: "<name> [description]", help: "Write a new up/down migration pair", files: func(env *cliEnv, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("%w: migration name required", errUsage)
		}
		description := ""
		if len(args) > 1 {
			description = args[1]
		}
		dir := env.dir
		if dir == "" {
			dir = defaultMigrationsDir
		}
		mf, err := migration.CreateMigration(dir, args[0], description)
		if err != nil {
			return err
		}
		env.log.Info("Migration created",
			zap.Uint("version", mf.Version),
			zap.String("up", mf.UpPath),
			zap.String("down", mf.DownPath),
		)
		return nil
	}},
	"list": {help: "List known migrations and check they are paired", files: func(env *cliEnv, _ []string) error {
		files, err := migration.ListMigrations(env.fsys())
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(" ", f.BaseName())
		}
		env.log.Info("Migrations listed", zap.Int("count", len(files)))
		return migration.Validate(env.fsys())
	}},
}

func main() {
	dir := flag.String("path", "", "Read migrations from this directory instead of the embedded set")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	name, rest := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{Level: *logLevel, Format: "console", Output: "stdout", Service: "ledger-migrate"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	env := &cliEnv{log: log, dir: *dir, src: migration.Source{Dir: *dir, FS: migrations.FS}}
	log.Debug("Running migration command", zap.String("command", name), zap.String("source", sourceName(*dir)))

	if err := run(env, cmd, rest); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\nusage: migrate %s %s\n", err, name, cmd.usage)
			os.Exit(1)
		}
		log.Fatal("Migration command failed", zap.String("command", name), zap.Error(err))
	}
}

func run(env *cliEnv, cmd command, args []string) error {
	if cmd.files != nil {
		return cmd.files(env, args)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, env.src, env.log)
	if err != nil {
		return err
	}
	defer m.Close()
	return cmd.db(env, m, args)
}

func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: %s required", errUsage, what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errUsage, what, args[0])
	}
	return n, nil
}

func versionArg(args []string) (uint, error) {
	n, err := intArg(args, "version")
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: version must not be negative", errUsage)
	}
	return uint(n), nil
}

func sourceName(dir string) string {
	if dir == "" {
		return "embedded"
	}
	return dir
}

func printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)

	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Inventory ledger schema migrations")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: migrate [flags] <command> [arguments]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(out, "  %-22s %s\n", name+" "+c.usage, c.help)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Flags:")
	flag.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Database settings come from config.toml or LEDGER_DATABASE_* variables.")
}
