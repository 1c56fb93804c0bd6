package ps

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/amzn/ion-go/ion"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/qldbsession"
	"github.com/awslabs/amazon-qldb-driver-go/v3/qldbdriver"
)

// QLDBOptions configures a QLDBLedger.
type QLDBOptions struct {
	AWS AWSOptions
	// MaxConcurrentTransactions caps the driver's session pool. Zero keeps
	// the driver default.
	MaxConcurrentTransactions int
	Logger                    *slog.Logger
}

// QLDBLedger runs transactions against Amazon QLDB through the QLDB driver.
type QLDBLedger struct {
	name   string
	driver *qldbdriver.QLDBDriver
	logger *slog.Logger
}

func NewQLDBLedger(ctx context.Context, name string, opts QLDBOptions) (*QLDBLedger, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cfg, err := LoadAWSConfig(ctx, opts.AWS)
	if err != nil {
		return nil, err
	}

	session := qldbsession.NewFromConfig(cfg, func(o *qldbsession.Options) {
		if opts.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.AWS.Endpoint)
		}
	})

	driver, err := qldbdriver.New(name, session, func(o *qldbdriver.DriverOptions) {
		o.LoggerVerbosity = driverVerbosity(ctx, logger)
		o.Logger = driverLogger{logger: logger.With("ledger", name)}
		if opts.MaxConcurrentTransactions > 0 {
			o.MaxConcurrentTransactions = opts.MaxConcurrentTransactions
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create QLDB driver for ledger %s: %w", name, err)
	}

	logger.Debug("connected to QLDB", "ledger", name, "region", cfg.Region)

	return &QLDBLedger{name: name, driver: driver, logger: logger}, nil
}

func (l *QLDBLedger) Name() string {
	return l.name
}

func (l *QLDBLedger) Execute(ctx context.Context, fn func(txn Txn) (any, error)) (any, error) {
	return l.driver.Execute(ctx, func(txn qldbdriver.Transaction) (interface{}, error) {
		return fn(qldbTxn{txn: txn})
	})
}

func (l *QLDBLedger) TableNames(ctx context.Context) ([]string, error) {
	names, err := l.driver.GetTableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables in %s: %w", l.name, err)
	}
	return names, nil
}

func (l *QLDBLedger) Close(ctx context.Context) error {
	l.driver.Shutdown(ctx)
	return nil
}

type qldbTxn struct {
	txn qldbdriver.Transaction
}

func (t qldbTxn) Execute(statement string, params ...any) ([]Row, error) {
	result, err := t.txn.Execute(statement, params...)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for result.Next(t.txn) {
		row, err := decodeRow(result.GetCurrentData())
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// decodeRow turns one Ion result value into a Row. Non-struct values, as
// produced by SELECT VALUE, are wrapped under "_1".
func decodeRow(data []byte) (Row, error) {
	var value any
	if err := ion.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to decode ion value: %w", err)
	}
	if row, ok := normalize(value).(map[string]any); ok {
		return row, nil
	}
	return Row{"_1": normalize(value)}, nil
}

// normalize converts Ion-specific values into plain Go values.
func normalize(value any) any {
	switch v := value.(type) {
	case nil, string, bool, float64, int64, []byte, time.Time:
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	case *big.Int:
		if v.IsInt64() {
			return v.Int64()
		}
		return v.String()
	case *string:
		if v == nil {
			return nil
		}
		return *v
	case *float64:
		if v == nil {
			return nil
		}
		return *v
	case *ion.Decimal:
		if v == nil {
			return nil
		}
		return decimalValue(v)
	case interface{ GetDateTime() time.Time }:
		return v.GetDateTime()
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}

// decimalValue returns an integral decimal as int64 and any other as
// float64. Ion writes the exponent with 'd'.
func decimalValue(d *ion.Decimal) any {
	text := strings.NewReplacer("d", "e", "D", "e").Replace(d.String())
	text = strings.TrimSuffix(text, ".")
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	return d.String()
}

type driverLogger struct {
	logger *slog.Logger
}

func (l driverLogger) Log(message string, verbosity qldbdriver.LogLevel) {
	if verbosity == qldbdriver.LogDebug {
		l.logger.Debug(message)
		return
	}
	l.logger.Info(message)
}

func driverVerbosity(ctx context.Context, logger *slog.Logger) qldbdriver.LogLevel {
	switch {
	case logger.Enabled(ctx, slog.LevelDebug):
		return qldbdriver.LogDebug
	case logger.Enabled(ctx, slog.LevelInfo):
		return qldbdriver.LogInfo
	default:
		return qldbdriver.LogOff
	}
}
