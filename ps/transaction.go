package ps

import (
	"context"
	"fmt"

	"github.com/nickyhof/orpheus/core"
)

// RunInTx runs fn inside one store transaction and commits when fn returns
// nil. On a store opened without Transactional, fn runs directly on the pool
// and earlier statements are not undone by a later failure.
//
// fn must use the Conn it is given for every statement.
func (s *Store) RunInTx(ctx context.Context, fn func(conn *Conn) error) (err error) {
	if err := s.ensureInitialized(); err != nil {
		return err
	}

	if !s.transactional {
		return fn(s.Conn())
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapStatementError("BEGIN", err)
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && err == nil {
				err = fmt.Errorf("rollback failed: %w", rbErr)
			}
		}
	}()

	if err = fn(&Conn{ex: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		if IsConnectionError(err) {
			return &core.ConnectionError{Err: err}
		}
		return &core.StatementError{Statement: "COMMIT", Err: err}
	}
	committed = true
	return nil
}
