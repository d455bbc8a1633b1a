package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
	"github.com/nickyhof/orpheus/core"
)

// DocumentPath is the path of the metadata document inside the repository.
const DocumentPath = "meta_info.json"

var ErrNotInitialized = errors.New("metadata store not initialized")

// Store persists the metadata document in a git repository. Every change to
// the document is a commit, so the derivation history can be inspected.
type Store struct {
	repo         *git.Repository
	mu           sync.RWMutex
	isMemoryMode bool
}

// IsInitialized returns true if the store has a valid repository
func (s *Store) IsInitialized() bool {
	return s != nil && s.repo != nil
}

func (s *Store) ensureInitialized() error {
	if !s.IsInitialized() {
		return ErrNotInitialized
	}
	return nil
}

func NewMemoryStore() (*Store, error) {
	wt := memfs.New()
	storer := memory.NewStorage()

	repo, err := git.Init(storer, git.WithWorkTree(wt))
	if err != nil {
		return nil, err
	}

	return &Store{
		repo:         repo,
		isMemoryMode: true,
	}, nil
}

// NewFileStore opens the repository under baseDir, creating it when absent.
// A non-nil gitUrl clones an existing metadata repository instead.
func NewFileStore(baseDir string, gitUrl *string) (*Store, error) {
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

	if gitUrl != nil {
		repo, err = git.Clone(storer, wt, &git.CloneOptions{
			URL: *gitUrl,
		})
		if err != nil {
			return nil, err
		}
	} else {
		_, statErr := os.Stat(fs.Root())
		if statErr != nil {
			repo, err = git.Init(storer, git.WithWorkTree(wt))
		} else {
			repo, err = git.Open(storer, wt)
		}
		if err != nil {
			return nil, err
		}
	}

	return &Store{
		repo: repo,
	}, nil
}

// Load reads the current document. A repository without commits yields an
// empty document.
func (s *Store) Load() (*Document, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.load()
}

func (s *Store) load() (*Document, error) {
	data, err := s.readFile(DocumentPath)
	if errors.Is(err, errNoCommits) || errors.Is(err, errFileNotFound) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, err
	}

	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata document: %w", err)
	}
	doc.ensureMaps()
	return doc, nil
}

// Commit persists doc as a new revision authored by identity.
func (s *Store) Commit(doc *Document, identity core.Identity, message string) (Transaction, error) {
	if err := s.ensureInitialized(); err != nil {
		return Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(doc, identity, message)
}

func (s *Store) commit(doc *Document, identity core.Identity, message string) (Transaction, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to marshal metadata document: %w", err)
	}
	return s.writeFile(DocumentPath, data, identity, message)
}

// Modify loads the document, applies fn and commits the result while holding
// the store lock, so concurrent checkouts never lose each other's entries.
// Nothing is written if fn fails.
func (s *Store) Modify(identity core.Identity, message string, fn func(doc *Document) error) (Transaction, error) {
	if err := s.ensureInitialized(); err != nil {
		return Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return Transaction{}, err
	}
	if err := fn(doc); err != nil {
		return Transaction{}, err
	}
	return s.commit(doc, identity, message)
}

// LoadParentInfo returns the derivation of a materialized table.
func (s *Store) LoadParentInfo(table string) (core.Derivation, error) {
	doc, err := s.Load()
	if err != nil {
		return core.Derivation{}, err
	}
	entry, ok := doc.TableMap[table]
	if !ok {
		return core.Derivation{}, fmt.Errorf("table %s: %w", table, core.ErrNoDerivation)
	}
	return entry.Derivation(table), nil
}

// LoadFileParentInfo returns the derivation of a checked out file.
func (s *Store) LoadFileParentInfo(path string) (core.Derivation, error) {
	doc, err := s.Load()
	if err != nil {
		return core.Derivation{}, err
	}
	entry, ok := doc.FileMap[path]
	if !ok {
		return core.Derivation{}, fmt.Errorf("file %s: %w", path, core.ErrNoDerivation)
	}
	return entry.Derivation(path), nil
}

// Clean resets the document to its empty shape.
func (s *Store) Clean(identity core.Identity) (Transaction, error) {
	return s.Commit(NewDocument(), identity, "Cleaning metadata")
}
