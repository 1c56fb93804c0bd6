package ps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/qldb"
	"github.com/aws/aws-sdk-go-v2/service/qldb/types"
)

var (
	ErrLedgerNotFound = errors.New("ledger not found")
	ErrLedgerExists   = errors.New("ledger already exists")
	ErrLedgerDeleting = errors.New("ledger is being deleted")
)

// AdminAPI is the part of the QLDB control plane Admin uses.
type AdminAPI interface {
	CreateLedger(ctx context.Context, params *qldb.CreateLedgerInput, optFns ...func(*qldb.Options)) (*qldb.CreateLedgerOutput, error)
	DescribeLedger(ctx context.Context, params *qldb.DescribeLedgerInput, optFns ...func(*qldb.Options)) (*qldb.DescribeLedgerOutput, error)
}

// LedgerInfo describes a ledger as reported by the control plane.
type LedgerInfo struct {
	Name               string    `json:"name"`
	ARN                string    `json:"arn,omitempty"`
	State              string    `json:"state"`
	PermissionsMode    string    `json:"permissionsMode,omitempty"`
	DeletionProtection bool      `json:"deletionProtection"`
	CreatedAt          time.Time `json:"createdAt,omitempty"`
}

// Admin creates and inspects ledgers.
type Admin struct {
	api          AdminAPI
	logger       *slog.Logger
	PollInterval time.Duration
}

func NewAdmin(api AdminAPI, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Admin{api: api, logger: logger, PollInterval: 5 * time.Second}
}

// NewAdminFromConfig builds an Admin over the QLDB control plane client.
func NewAdminFromConfig(cfg aws.Config, endpoint string, logger *slog.Logger) *Admin {
	client := qldb.NewFromConfig(cfg, func(o *qldb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewAdmin(client, logger)
}

// CreateLedger creates a STANDARD-permissions ledger without deletion
// protection. The ledger is usable once WaitActive returns.
func (a *Admin) CreateLedger(ctx context.Context, name string) (LedgerInfo, error) {
	out, err := a.api.CreateLedger(ctx, &qldb.CreateLedgerInput{
		Name:               aws.String(name),
		PermissionsMode:    types.PermissionsModeStandard,
		DeletionProtection: aws.Bool(false),
	})
	if err != nil {
		return LedgerInfo{}, ledgerError(name, err)
	}

	a.logger.Info("ledger created", "ledger", name, "state", out.State)

	return LedgerInfo{
		Name:               aws.ToString(out.Name),
		ARN:                aws.ToString(out.Arn),
		State:              string(out.State),
		PermissionsMode:    string(out.PermissionsMode),
		DeletionProtection: aws.ToBool(out.DeletionProtection),
		CreatedAt:          aws.ToTime(out.CreationDateTime),
	}, nil
}

func (a *Admin) DescribeLedger(ctx context.Context, name string) (LedgerInfo, error) {
	out, err := a.api.DescribeLedger(ctx, &qldb.DescribeLedgerInput{Name: aws.String(name)})
	if err != nil {
		return LedgerInfo{}, ledgerError(name, err)
	}

	return LedgerInfo{
		Name:               aws.ToString(out.Name),
		ARN:                aws.ToString(out.Arn),
		State:              string(out.State),
		PermissionsMode:    string(out.PermissionsMode),
		DeletionProtection: aws.ToBool(out.DeletionProtection),
		CreatedAt:          aws.ToTime(out.CreationDateTime),
	}, nil
}

// WaitActive polls until the ledger reaches the ACTIVE state.
func (a *Admin) WaitActive(ctx context.Context, name string) (LedgerInfo, error) {
	ticker := time.NewTicker(a.PollInterval)
	defer ticker.Stop()

	for {
		info, err := a.DescribeLedger(ctx, name)
		if err != nil {
			return LedgerInfo{}, err
		}

		switch types.LedgerState(info.State) {
		case types.LedgerStateActive:
			return info, nil
		case types.LedgerStateDeleting, types.LedgerStateDeleted:
			return info, fmt.Errorf("%w: %s", ErrLedgerDeleting, name)
		}

		a.logger.Debug("waiting for ledger", "ledger", name, "state", info.State)

		select {
		case <-ctx.Done():
			return info, ctx.Err()
		case <-ticker.C:
		}
	}
}

func ledgerError(name string, err error) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrLedgerNotFound, name)
	}
	var exists *types.ResourceAlreadyExistsException
	if errors.As(err, &exists) {
		return fmt.Errorf("%w: %s", ErrLedgerExists, name)
	}
	return fmt.Errorf("ledger %s: %w", name, err)
}
