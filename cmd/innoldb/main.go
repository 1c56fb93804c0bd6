package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nickyhof/innoldb"
	"github.com/nickyhof/innoldb/config"
	"github.com/nickyhof/innoldb/db"
	"github.com/nickyhof/innoldb/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookup func(string) (string, bool)) int {
	a := &app{stdout: stdout, stderr: stderr, lookup: lookup}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a.instance != nil {
		if cerr := a.instance.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "innoldb: %v\n", err)
		return 1
	}
	return 0
}

// app carries the global flags and the lazily opened ledger.
type app struct {
	stdout io.Writer
	stderr io.Writer
	lookup func(string) (string, bool)

	configFile string
	ledger     string
	backend    string
	dataDir    string
	index      string
	logLevel   string
	format     string
	jq         string
	ignoreCase bool

	cfg      config.Config
	logger   *slog.Logger
	instance *innoldb.Instance
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "innoldb",
		Short:         "Query and update documents in an Amazon QLDB ledger",
		Version:       innoldb.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd.Flags())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&a.ledger, "ledger", "l", "", "ledger name (env LEDGER)")
	flags.StringVar(&a.backend, "backend", "", "qldb, local or memory (env BACKEND)")
	flags.StringVar(&a.dataDir, "data-dir", "", "directory of local ledgers (env DATA_DIR)")
	flags.StringVar(&a.index, "index", "", "field documents are identified by (env DEFAULT_INDEX)")
	flags.StringVar(&a.logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR (env LOG_LEVEL)")
	flags.StringVarP(&a.format, "output", "o", "json", "output format: json, jsonl or table")
	flags.StringVar(&a.jq, "jq", "", "jq expression applied to each result")
	flags.BoolVarP(&a.ignoreCase, "ignore-case", "i", false, "case insensitive LIKE matching (env LIKE_IGNORE_CASE)")

	cmd.AddCommand(
		newInsertCmd(a),
		newFindCmd(a),
		newLikeCmd(a),
		newInCmd(a),
		newFilterCmd(a),
		newUpdateCmd(a),
		newAllCmd(a),
		newMockCmd(a),
		newHistoryCmd(a),
		newCommittedCmd(a),
		newQueryCmd(a),
		newTablesCmd(a),
		newDropCmd(a),
		newExportCmd(a),
		newLoadCmd(a),
		newLedgerCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

// configure resolves the configuration; flags win over the environment.
func (a *app) configure(flags *pflag.FlagSet) error {
	cfg, err := config.Load(config.LoadOptions{File: a.configFile, Lookup: a.lookup})
	if err != nil {
		return err
	}

	if flags.Changed("ledger") {
		cfg.Ledger = a.ledger
	}
	if flags.Changed("backend") {
		cfg.Backend = config.Backend(a.backend)
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = a.dataDir
	}
	if flags.Changed("index") {
		cfg.DefaultIndex = a.index
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("ignore-case") {
		cfg.LikeIgnoreCase = a.ignoreCase
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	a.logger = newLogger(a.stderr, level)
	if err != nil {
		a.logger.Warn("unknown log level, using WARN", "level", cfg.LogLevel)
	}
	a.cfg = cfg
	return nil
}

// newLogger colours output when w is a terminal; other writers get plain text.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	if f, ok := w.(*os.File); ok {
		return logging.NewFile(f, level)
	}
	return logging.NewWriter(w, level)
}

func (a *app) open(ctx context.Context) (*innoldb.Instance, error) {
	if a.instance != nil {
		return a.instance, nil
	}
	instance, err := innoldb.Open(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.instance = instance
	return instance, nil
}

func (a *app) query(ctx context.Context, table string) (*db.Query, error) {
	instance, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	return instance.Query(ctx, table)
}

func (a *app) printer() (*db.Printer, error) {
	format, err := db.ParseFormat(a.format)
	if err != nil {
		return nil, err
	}
	return db.NewPrinter(a.stdout, format, a.jq)
}
