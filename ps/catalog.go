package ps

import (
	"context"
	"fmt"
)

// Catalog tables shared by every dataset. They outlive dataset drops.
const (
	VersionSeqTable = "orpheus_version_seq"
	GrantsTable     = "orpheus_grants"
)

func (s *Store) ensureCatalog(ctx context.Context) error {
	conn := s.Conn()
	statements := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (dataset TEXT PRIMARY KEY, last_vid BIGINT NOT NULL)",
			conn.Quote(VersionSeqTable)),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (resource TEXT NOT NULL, principal TEXT NOT NULL, granted_at TEXT NOT NULL, PRIMARY KEY (resource, principal))",
			conn.Quote(GrantsTable)),
	}
	for _, stmt := range statements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create catalog: %w", err)
		}
	}
	return nil
}

// IsCatalogTable reports whether name is one of the store's own tables.
func IsCatalogTable(name string) bool {
	return name == VersionSeqTable || name == GrantsTable
}
