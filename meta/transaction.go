package meta

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// Transaction is one revision of the metadata document.
type Transaction struct {
	Id      string
	When    time.Time
	Author  string // "Name <email>" format
	Message string
}

func (transaction Transaction) String() string {
	return fmt.Sprintf("Transaction{Id: %s, When: %s, Author: %s}", transaction.Id, transaction.When, transaction.Author)
}

// LatestTransaction returns the revision at HEAD, or the zero value when the
// document was never written.
func (s *Store) LatestTransaction() Transaction {
	if !s.IsInitialized() {
		return Transaction{}
	}

	headRef, err := s.repo.Head()
	if err != nil || headRef == nil {
		return Transaction{}
	}

	commit, err := s.repo.CommitObject(headRef.Hash())
	if err != nil {
		return Transaction{}
	}

	return toTransaction(commit)
}

// History lists revisions newest first. A zero since lists all of them.
func (s *Store) History(since time.Time) ([]Transaction, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.repo.Head(); err != nil {
		return nil, nil
	}

	opts := &git.LogOptions{}
	if !since.IsZero() {
		opts.Since = &since
	}

	cIter, err := s.repo.Log(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata history: %w", err)
	}
	defer cIter.Close()

	var transactions []Transaction
	err = cIter.ForEach(func(c *object.Commit) error {
		transactions = append(transactions, toTransaction(c))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata history: %w", err)
	}

	return transactions, nil
}

func toTransaction(c *object.Commit) Transaction {
	author := ""
	if c.Author.Name != "" || c.Author.Email != "" {
		author = fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email)
	}
	return Transaction{
		Id:      c.Hash.String(),
		When:    c.Committer.When,
		Author:  author,
		Message: c.Message,
	}
}
