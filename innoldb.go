package innoldb

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/nickyhof/innoldb/config"
	"github.com/nickyhof/innoldb/db"
	"github.com/nickyhof/innoldb/op"
	"github.com/nickyhof/innoldb/ps"
)

// Version is stamped at build time with -ldflags "-X github.com/nickyhof/innoldb.Version=...".
var Version = "dev"

// Instance holds the ledger session for the lifetime of a process.
type Instance struct {
	Config config.Config
	Ledger ps.Ledger
	Ops    *op.LedgerOp

	logger *slog.Logger
}

// Open connects to the ledger cfg names on the configured backend.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Instance, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ledger, err := OpenLedger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Instance{
		Config: cfg,
		Ledger: ledger,
		Ops:    op.NewLedgerOp(ledger, cfg.DefaultIndex, logger),
		logger: logger,
	}, nil
}

// OpenLedger returns the ledger session for cfg.Backend.
func OpenLedger(ctx context.Context, cfg config.Config, logger *slog.Logger) (ps.Ledger, error) {
	switch cfg.Backend {
	case config.BackendQLDB:
		return ps.NewQLDBLedger(ctx, cfg.Ledger, ps.QLDBOptions{
			AWS:                       AWSOptions(cfg),
			MaxConcurrentTransactions: cfg.AWS.MaxConcurrentTransactions,
			Logger:                    logger,
		})
	case config.BackendLocal:
		dir := filepath.Join(cfg.DataDir, cfg.Ledger)
		logger.Debug("opening local ledger", "ledger", cfg.Ledger, "dir", dir)
		return ps.NewFileLedger(cfg.Ledger, dir, ps.WithLogger(logger))
	case config.BackendMemory:
		return ps.NewMemoryLedger(cfg.Ledger, ps.WithLogger(logger))
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

// AWSOptions maps the AWS settings of cfg onto the ledger session options.
func AWSOptions(cfg config.Config) ps.AWSOptions {
	return ps.AWSOptions{
		Region:          cfg.AWS.Region,
		Profile:         cfg.AWS.Profile,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		SessionToken:    cfg.AWS.SessionToken,
		Endpoint:        cfg.AWS.QLDBEndpoint,
	}
}

// Query returns the queries for table, creating the table and its index
// first when they do not exist.
func (i *Instance) Query(ctx context.Context, table string) (*db.Query, error) {
	if _, err := i.Ops.EnsureTable(ctx, table); err != nil {
		return nil, err
	}
	return db.NewQuery(i.Ops, table, db.WithIgnoreCase(i.Config.LikeIgnoreCase))
}

func (i *Instance) Tables(ctx context.Context) ([]string, error) {
	return i.Ops.Tables(ctx)
}

// Admin returns a control plane client for creating and describing ledgers.
func (i *Instance) Admin(ctx context.Context) (*ps.Admin, error) {
	return NewAdmin(ctx, i.Config, i.logger)
}

// NewAdmin builds a control plane client without opening a ledger session,
// so that ledgers can be created before they are used.
func NewAdmin(ctx context.Context, cfg config.Config, logger *slog.Logger) (*ps.Admin, error) {
	awsCfg, err := ps.LoadAWSConfig(ctx, AWSOptions(cfg))
	if err != nil {
		return nil, err
	}
	return ps.NewAdminFromConfig(awsCfg, cfg.AWS.QLDBEndpoint, logger), nil
}

// RemoteOptions returns the settings export and load use for S3.
func (i *Instance) RemoteOptions() db.RemoteOptions {
	return db.RemoteOptions{
		AWS:        AWSOptions(i.Config),
		S3Endpoint: i.Config.AWS.S3Endpoint,
	}
}

func (i *Instance) Close(ctx context.Context) error {
	return i.Ledger.Close(ctx)
}
