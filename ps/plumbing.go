package ps

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/nickyhof/innoldb/core"
)

// TreeChange is a single blob write or delete applied to a tree.
type TreeChange struct {
	Path     string        // slash separated, e.g. "data/employees/<id>"
	BlobHash plumbing.Hash // ignored for deletes
	IsDelete bool
}

// createBlob stores data directly in the object store.
func (l *LocalLedger) createBlob(data []byte) (plumbing.Hash, error) {
	obj := l.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to create blob writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob data: %w", err)
	}
	writer.Close()

	hash, err := l.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}

	return hash, nil
}

// readBlob returns the contents of a blob object.
func (l *LocalLedger) readBlob(hash plumbing.Hash) ([]byte, error) {
	blob, err := object.GetBlob(l.repo.Storer, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %s: %w", hash, err)
	}
	reader, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", hash, err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// headCommit returns the HEAD commit, or nil when nothing was committed yet.
func (l *LocalLedger) headCommit() (*object.Commit, error) {
	headRef, err := l.repo.Head()
	if err != nil {
		return nil, nil
	}
	commit, err := l.repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get head commit: %w", err)
	}
	return commit, nil
}

// currentTree returns the HEAD tree hash, or ZeroHash for an empty ledger.
func (l *LocalLedger) currentTree() (plumbing.Hash, error) {
	commit, err := l.headCommit()
	if err != nil || commit == nil {
		return plumbing.ZeroHash, err
	}
	return commit.TreeHash, nil
}

// getTreeEntries reads the entries of a tree keyed by name.
func (l *LocalLedger) getTreeEntries(treeHash plumbing.Hash) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)

	if treeHash == plumbing.ZeroHash {
		return entries, nil
	}

	tree, err := object.GetTree(l.repo.Storer, treeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	for _, entry := range tree.Entries {
		entries[entry.Name] = entry
	}

	return entries, nil
}

// lookupTree resolves dir inside the tree rooted at treeHash. A missing
// directory yields an empty map.
func (l *LocalLedger) lookupTree(treeHash plumbing.Hash, dir string) (map[string]object.TreeEntry, error) {
	current := treeHash
	for _, name := range strings.Split(dir, "/") {
		entries, err := l.getTreeEntries(current)
		if err != nil {
			return nil, err
		}
		entry, ok := entries[name]
		if !ok || entry.Mode != filemode.Dir {
			return map[string]object.TreeEntry{}, nil
		}
		current = entry.Hash
	}
	return l.getTreeEntries(current)
}

func (l *LocalLedger) buildTreeFromEntries(entries []object.TreeEntry) (plumbing.Hash, error) {
	// Git orders directories as if their name had a trailing slash.
	sort.Slice(entries, func(i, j int) bool {
		nameI := entries[i].Name
		nameJ := entries[j].Name
		if entries[i].Mode == filemode.Dir {
			nameI += "/"
		}
		if entries[j].Mode == filemode.Dir {
			nameJ += "/"
		}
		return nameI < nameJ
	})

	tree := &object.Tree{Entries: entries}

	obj := l.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}

	hash, err := l.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}

	return hash, nil
}

// batchUpdateTree applies changes to the tree at rootTreeHash, rebuilding
// each touched directory once. Directories left empty are removed.
func (l *LocalLedger) batchUpdateTree(rootTreeHash plumbing.Hash, changes []TreeChange) (plumbing.Hash, error) {
	if len(changes) == 0 {
		return rootTreeHash, nil
	}

	grouped := make(map[string][]TreeChange)
	leafChanges := make([]TreeChange, 0)

	for _, change := range changes {
		dir, rest, nested := strings.Cut(change.Path, "/")
		if !nested {
			leafChanges = append(leafChanges, change)
			continue
		}
		grouped[dir] = append(grouped[dir], TreeChange{
			Path:     rest,
			BlobHash: change.BlobHash,
			IsDelete: change.IsDelete,
		})
	}

	entries, err := l.getTreeEntries(rootTreeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	for _, change := range leafChanges {
		if change.IsDelete {
			delete(entries, change.Path)
			continue
		}
		entries[change.Path] = object.TreeEntry{
			Name: change.Path,
			Mode: filemode.Regular,
			Hash: change.BlobHash,
		}
	}

	for dir, subChanges := range grouped {
		subTreeHash := plumbing.ZeroHash
		if existing, ok := entries[dir]; ok && existing.Mode == filemode.Dir {
			subTreeHash = existing.Hash
		}

		newSubTreeHash, err := l.batchUpdateTree(subTreeHash, subChanges)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		if newSubTreeHash == plumbing.ZeroHash {
			delete(entries, dir)
		} else {
			entries[dir] = object.TreeEntry{
				Name: dir,
				Mode: filemode.Dir,
				Hash: newSubTreeHash,
			}
		}
	}

	if len(entries) == 0 {
		return plumbing.ZeroHash, nil
	}

	entrySlice := make([]object.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		entrySlice = append(entrySlice, entry)
	}

	return l.buildTreeFromEntries(entrySlice)
}

// createCommit writes a commit on top of HEAD and advances the branch HEAD
// points to.
func (l *LocalLedger) createCommit(treeHash plumbing.Hash, identity core.Identity, when time.Time, message string) (plumbing.Hash, error) {
	actualTreeHash := treeHash
	if treeHash == plumbing.ZeroHash {
		var err error
		actualTreeHash, err = l.buildTreeFromEntries([]object.TreeEntry{})
		if err != nil {
			return plumbing.ZeroHash, err
		}
	}

	var parentHashes []plumbing.Hash
	if headRef, err := l.repo.Head(); err == nil {
		parentHashes = []plumbing.Hash{headRef.Hash()}
	}

	sig := object.Signature{
		Name:  identity.Name,
		Email: identity.Email,
		When:  when,
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     actualTreeHash,
		ParentHashes: parentHashes,
	}

	obj := l.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode commit: %w", err)
	}

	commitHash, err := l.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store commit: %w", err)
	}

	ref := plumbing.NewHashReference(l.headBranch(), commitHash)
	if err := l.repo.Storer.SetReference(ref); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to update HEAD: %w", err)
	}

	return commitHash, nil
}

// headBranch returns the branch HEAD points to, whatever the repository's
// default branch name is.
func (l *LocalLedger) headBranch() plumbing.ReferenceName {
	ref, err := l.repo.Storer.Reference(plumbing.HEAD)
	if err == nil && ref.Type() == plumbing.SymbolicReference {
		return ref.Target()
	}
	return plumbing.Master
}
