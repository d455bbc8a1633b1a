// Package access grants principals access to the tables checkout produces.
package access

import (
	"context"
	"fmt"
	"time"

	"github.com/nickyhof/orpheus/ps"
)

// Manager grants a principal access to a resource.
type Manager interface {
	GrantAccess(ctx context.Context, conn *ps.Conn, resource, principal string) error
}

// SQLManager issues GRANT on engines with per-table privileges and records
// the grant in the catalog on the others.
type SQLManager struct{}

func (SQLManager) GrantAccess(ctx context.Context, conn *ps.Conn, resource, principal string) error {
	if principal == "" {
		return nil
	}

	if conn.Dialect().SupportsGrant() {
		query := fmt.Sprintf("GRANT ALL PRIVILEGES ON TABLE %s TO %s", conn.Quote(resource), conn.Quote(principal))
		_, err := conn.Exec(ctx, query)
		return err
	}

	grants := conn.Quote(ps.GrantsTable)
	if _, err := conn.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE resource = ? AND principal = ?", grants), resource, principal); err != nil {
		return err
	}
	_, err := conn.Exec(ctx, fmt.Sprintf("INSERT INTO %s (resource, principal, granted_at) VALUES (?, ?, ?)", grants),
		resource, principal, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Grants lists the principals recorded for resource in the catalog.
func Grants(ctx context.Context, conn *ps.Conn, resource string) ([]string, error) {
	var principals []string
	query := fmt.Sprintf("SELECT principal FROM %s WHERE resource = ? ORDER BY principal", conn.Quote(ps.GrantsTable))
	if err := conn.Select(ctx, &principals, query, resource); err != nil {
		return nil, err
	}
	return principals, nil
}

// Noop grants nothing. It suits embedded use where the caller owns every
// table.
type Noop struct{}

func (Noop) GrantAccess(context.Context, *ps.Conn, string, string) error { return nil }
