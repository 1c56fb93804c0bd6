package ps

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
	"github.com/nickyhof/innoldb/core"
)

var ErrNotInitialized = errors.New("local ledger not initialized")

const (
	tablesDir = "tables"
	dataDir   = "data"
	jsonExt   = ".json"
)

// DefaultIdentity signs local ledger commits when no identity is configured.
var DefaultIdentity = core.Identity{Name: "innoldb", Email: "innoldb@localhost"}

// LocalLedger is a ledger journaled in a git repository. Each committed
// transaction is one commit; the HEAD tree holds the current revision of
// every document and the commit log holds every earlier one.
type LocalLedger struct {
	name     string
	repo     *git.Repository
	identity core.Identity
	logger   *slog.Logger
	now      func() time.Time
	strandID string

	mu       sync.Mutex
	sequence int64
	closed   bool
}

type LocalOption func(*LocalLedger)

func WithIdentity(identity core.Identity) LocalOption {
	return func(l *LocalLedger) { l.identity = identity }
}

func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *LocalLedger) { l.logger = logger }
}

// WithClock replaces the transaction clock, mostly for tests.
func WithClock(now func() time.Time) LocalOption {
	return func(l *LocalLedger) { l.now = now }
}

func NewMemoryLedger(name string, opts ...LocalOption) (*LocalLedger, error) {
	wt := memfs.New()
	storer := memory.NewStorage()

	repo, err := git.Init(storer, git.WithWorkTree(wt))
	if err != nil {
		return nil, err
	}

	return newLocalLedger(name, repo, opts)
}

// NewFileLedger opens the ledger journal under baseDir, creating it if needed.
func NewFileLedger(name, baseDir string, opts ...LocalOption) (*LocalLedger, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	wt := osfs.New(baseDir)
	fs, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}

	storer := filesystem.NewStorageWithOptions(
		fs,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	var repo *git.Repository
	if _, statErr := os.Stat(fs.Root()); statErr != nil {
		repo, err = git.Init(storer, git.WithWorkTree(wt))
	} else {
		repo, err = git.Open(storer, wt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger journal in %s: %w", baseDir, err)
	}

	return newLocalLedger(name, repo, opts)
}

func newLocalLedger(name string, repo *git.Repository, opts []LocalOption) (*LocalLedger, error) {
	sum := sha256.Sum256([]byte(name))
	l := &LocalLedger{
		name:     name,
		repo:     repo,
		identity: DefaultIdentity,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		strandID: hex.EncodeToString(sum[:])[:22],
	}
	for _, opt := range opts {
		opt(l)
	}

	sequence, err := l.countCommits()
	if err != nil {
		return nil, err
	}
	l.sequence = sequence

	return l, nil
}

// IsInitialized reports whether the ledger has a repository behind it.
func (l *LocalLedger) IsInitialized() bool {
	return l != nil && l.repo != nil
}

func (l *LocalLedger) Name() string {
	return l.name
}

// Execute runs fn in a transaction. Writes become visible to later
// statements in the same transaction and are committed as a single commit
// when fn succeeds; they are discarded when it fails.
func (l *LocalLedger) Execute(ctx context.Context, fn func(txn Txn) (any, error)) (any, error) {
	if !l.IsInitialized() {
		return nil, ErrNotInitialized
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txn, err := l.begin()
	if err != nil {
		return nil, err
	}

	result, err := fn(txn)
	if err != nil {
		l.logger.Debug("transaction aborted", "ledger", l.name, "txId", txn.id, "error", err)
		txn.rollback()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		txn.rollback()
		return nil, err
	}

	if err := txn.commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// TableNames lists the active tables, sorted.
func (l *LocalLedger) TableNames(ctx context.Context) ([]string, error) {
	if !l.IsInitialized() {
		return nil, ErrNotInitialized
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	root, err := l.currentTree()
	if err != nil {
		return nil, err
	}
	entries, err := l.lookupTree(root, tablesDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, strings.TrimSuffix(name, jsonExt))
	}
	sort.Strings(names)
	return names, nil
}

func (l *LocalLedger) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Commits returns the number of committed transactions.
func (l *LocalLedger) Commits() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sequence
}

func (l *LocalLedger) countCommits() (int64, error) {
	head, err := l.headCommit()
	if err != nil || head == nil {
		return 0, err
	}

	iter, err := l.repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger journal: %w", err)
	}

	var count int64
	err = iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	return count, err
}
