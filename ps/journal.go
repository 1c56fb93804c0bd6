package ps

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/storer"
	"github.com/nickyhof/innoldb/core"
)

// history returns every committed revision of the documents in table,
// oldest first. Each revision blob is reported once, however many later
// commits still carry it. Only commits made since table was created are
// read, so a dropped table of the same name does not show through.
func (l *LocalLedger) history(table core.Table) ([]core.Revision, error) {
	head, err := l.headCommit()
	if err != nil || head == nil {
		return nil, err
	}

	iter, err := l.repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger journal: %w", err)
	}

	dir := path.Join(dataDir, table.Name)
	seen := make(map[plumbing.Hash]bool)
	var revisions []core.Revision
	var definition plumbing.Hash

	err = iter.ForEach(func(commit *object.Commit) error {
		current, hash, err := l.isTableAt(commit, table, definition)
		if err != nil {
			return err
		}
		if !current {
			return storer.ErrStop
		}
		definition = hash

		entries, err := l.lookupTree(commit.TreeHash, dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.Mode == filemode.Dir || seen[entry.Hash] {
				continue
			}
			seen[entry.Hash] = true

			data, err := l.readBlob(entry.Hash)
			if err != nil {
				return err
			}
			rev, err := decodeRevision(data)
			if err != nil {
				return fmt.Errorf("revision %s in %s: %w", entry.Name, commit.Hash, err)
			}
			revisions = append(revisions, rev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(revisions, func(i, j int) bool {
		a, b := revisions[i], revisions[j]
		if sa, sb := sequenceOf(a), sequenceOf(b); sa != sb {
			return sa < sb
		}
		if a.Metadata.ID != b.Metadata.ID {
			return a.Metadata.ID < b.Metadata.ID
		}
		return a.Metadata.Version < b.Metadata.Version
	})
	return revisions, nil
}

// isTableAt reports whether commit carries the definition of table. known is
// a definition blob already checked to belong to it.
func (l *LocalLedger) isTableAt(commit *object.Commit, table core.Table, known plumbing.Hash) (bool, plumbing.Hash, error) {
	entries, err := l.lookupTree(commit.TreeHash, tablesDir)
	if err != nil {
		return false, plumbing.ZeroHash, err
	}
	entry, ok := entries[table.Name+jsonExt]
	if !ok {
		return false, plumbing.ZeroHash, nil
	}
	if entry.Hash == known {
		return true, entry.Hash, nil
	}

	data, err := l.readBlob(entry.Hash)
	if err != nil {
		return false, plumbing.ZeroHash, err
	}
	var def core.Table
	if err := json.Unmarshal(data, &def); err != nil {
		return false, plumbing.ZeroHash, fmt.Errorf("failed to decode table %s: %w", table.Name, err)
	}
	return def.ID == table.ID, entry.Hash, nil
}

func sequenceOf(rev core.Revision) int64 {
	if rev.BlockAddress == nil {
		return 0
	}
	return rev.BlockAddress.SequenceNo
}
