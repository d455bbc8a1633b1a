package vc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/ps"
	"go.uber.org/multierr"
)

// RootMessage is the message of every dataset's first version.
const RootMessage = "init"

// Graph is the version graph of one dataset, stored in <dataset>_version.
type Graph struct {
	dataset string
	table   string
}

func NewGraph(dataset string) *Graph {
	return &Graph{dataset: dataset, table: core.GraphTable(dataset)}
}

// AppendRequest describes a version to add below existing ones.
type AppendRequest struct {
	Parents   []int64
	RowCount  int64
	CreatedAt time.Time
	Message   string
	// ExpectLatest, when set, is the last version id the caller observed.
	// The append fails if another writer issued an id since.
	ExpectLatest *int64
}

type versionRow struct {
	Vid        int64  `db:"vid"`
	NumRecords int64  `db:"num_records"`
	Parent     string `db:"parent"`
	CreateTime string `db:"create_time"`
	CommitTime string `db:"commit_time"`
	CommitMsg  string `db:"commit_msg"`
}

func (r versionRow) toVersion() (core.Version, error) {
	v := core.Version{
		ID:       r.Vid,
		RowCount: r.NumRecords,
		Message:  r.CommitMsg,
	}
	if err := json.Unmarshal([]byte(r.Parent), &v.Parents); err != nil {
		return core.Version{}, fmt.Errorf("version %d has corrupt parent list: %w", r.Vid, err)
	}
	var err error
	if v.CreatedAt, err = parseTime(r.CreateTime); err != nil {
		return core.Version{}, fmt.Errorf("version %d: %w", r.Vid, err)
	}
	if v.CommittedAt, err = parseTime(r.CommitTime); err != nil {
		return core.Version{}, fmt.Errorf("version %d: %w", r.Vid, err)
	}
	return v, nil
}

const selectVersion = "SELECT vid, num_records, parent, create_time, commit_time, commit_msg FROM "

// Create creates the graph table.
func (g *Graph) Create(ctx context.Context, conn *ps.Conn) error {
	query := fmt.Sprintf(`CREATE TABLE %s (
		vid BIGINT PRIMARY KEY,
		num_records BIGINT NOT NULL,
		parent TEXT NOT NULL,
		create_time TEXT NOT NULL,
		commit_time TEXT NOT NULL,
		commit_msg TEXT NOT NULL
	)`, conn.Quote(g.table))
	_, err := conn.Exec(ctx, query)
	return err
}

// CreateRoot adds the parentless first version.
func (g *Graph) CreateRoot(ctx context.Context, conn *ps.Conn, rowCount int64, ts time.Time) (core.Version, error) {
	var n int64
	if err := conn.Get(ctx, &n, "SELECT COUNT(*) FROM "+conn.Quote(g.table)); err != nil {
		return core.Version{}, err
	}
	if n > 0 {
		return core.Version{}, fmt.Errorf("%s: %w", g.dataset, core.ErrRootExists)
	}

	last, err := g.LastIssued(ctx, conn)
	if err != nil {
		return core.Version{}, err
	}

	v := core.Version{
		ID:          last + 1,
		Parents:     []int64{},
		RowCount:    rowCount,
		CreatedAt:   ts.UTC(),
		CommittedAt: ts.UTC(),
		Message:     RootMessage,
	}
	if err := g.issue(ctx, conn, last, v.ID); err != nil {
		return core.Version{}, err
	}
	if err := g.insert(ctx, conn, v); err != nil {
		return core.Version{}, err
	}
	return v, nil
}

// Append adds a version whose parents must all exist. The new id is one past
// the last id ever issued for the dataset name.
func (g *Graph) Append(ctx context.Context, conn *ps.Conn, req AppendRequest) (core.Version, error) {
	if len(req.Parents) == 0 {
		return core.Version{}, &core.BadParametersError{Reason: "a version needs at least one parent"}
	}

	parents := slices.Clone(req.Parents)
	if err := g.checkParents(ctx, conn, parents); err != nil {
		return core.Version{}, err
	}

	last, err := g.LastIssued(ctx, conn)
	if err != nil {
		return core.Version{}, err
	}
	if req.ExpectLatest != nil && *req.ExpectLatest != last {
		return core.Version{}, &core.ConcurrentModificationError{Dataset: g.dataset, Expected: *req.ExpectLatest, Actual: last}
	}

	now := time.Now().UTC()
	created := req.CreatedAt
	if created.IsZero() {
		created = now
	}

	v := core.Version{
		ID:          last + 1,
		Parents:     parents,
		RowCount:    req.RowCount,
		CreatedAt:   created.UTC(),
		CommittedAt: now,
		Message:     req.Message,
	}
	if err := g.issue(ctx, conn, last, v.ID); err != nil {
		return core.Version{}, err
	}
	if err := g.insert(ctx, conn, v); err != nil {
		return core.Version{}, err
	}
	return v, nil
}

func (g *Graph) checkParents(ctx context.Context, conn *ps.Conn, parents []int64) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(parents)), ", ")
	args := make([]any, len(parents))
	for i, p := range parents {
		args[i] = p
	}

	var found []int64
	query := fmt.Sprintf("SELECT vid FROM %s WHERE vid IN (%s)", conn.Quote(g.table), placeholders)
	if err := conn.Select(ctx, &found, query, args...); err != nil {
		return err
	}
	for _, p := range parents {
		if !slices.Contains(found, p) {
			return &core.UnknownParentError{Dataset: g.dataset, Parent: p}
		}
	}
	return nil
}

// LastIssued returns the last version id ever issued for the dataset name,
// or 0 if none was.
func (g *Graph) LastIssued(ctx context.Context, conn *ps.Conn) (int64, error) {
	var last int64
	query := fmt.Sprintf("SELECT last_vid FROM %s WHERE dataset = ?", conn.Quote(ps.VersionSeqTable))
	err := conn.Get(ctx, &last, query, g.dataset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return last, err
}

// issue advances the sequence from last to next, failing if another writer
// moved it first.
func (g *Graph) issue(ctx context.Context, conn *ps.Conn, last, next int64) error {
	seq := conn.Quote(ps.VersionSeqTable)
	if last == 0 {
		_, err := conn.Exec(ctx, fmt.Sprintf("INSERT INTO %s (dataset, last_vid) VALUES (?, ?)", seq), g.dataset, next)
		if ps.IsUniqueViolation(err) {
			return &core.ConcurrentModificationError{Dataset: g.dataset, Expected: last}
		}
		return err
	}

	n, err := conn.Exec(ctx, fmt.Sprintf("UPDATE %s SET last_vid = ? WHERE dataset = ? AND last_vid = ?", seq), next, g.dataset, last)
	if err != nil {
		return err
	}
	if n == 0 {
		actual, err := g.LastIssued(ctx, conn)
		return multierr.Append(&core.ConcurrentModificationError{Dataset: g.dataset, Expected: last, Actual: actual}, err)
	}
	return nil
}

func (g *Graph) insert(ctx context.Context, conn *ps.Conn, v core.Version) error {
	parents, err := json.Marshal(v.Parents)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("INSERT INTO %s (vid, num_records, parent, create_time, commit_time, commit_msg) VALUES (?, ?, ?, ?, ?, ?)",
		conn.Quote(g.table))
	_, err = conn.Exec(ctx, query, v.ID, v.RowCount, string(parents), formatTime(v.CreatedAt), formatTime(v.CommittedAt), v.Message)
	if ps.IsUniqueViolation(err) {
		return &core.ConcurrentModificationError{Dataset: g.dataset, Expected: v.ID - 1, Actual: v.ID}
	}
	return err
}

// Get returns one version.
func (g *Graph) Get(ctx context.Context, conn *ps.Conn, vid int64) (core.Version, error) {
	var row versionRow
	err := conn.Get(ctx, &row, selectVersion+conn.Quote(g.table)+" WHERE vid = ?", vid)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Version{}, &core.UnknownVersionError{Dataset: g.dataset, Version: vid}
	}
	if err != nil {
		return core.Version{}, err
	}
	return row.toVersion()
}

// List returns every version ordered by id.
func (g *Graph) List(ctx context.Context, conn *ps.Conn) ([]core.Version, error) {
	var rows []versionRow
	if err := conn.Select(ctx, &rows, selectVersion+conn.Quote(g.table)+" ORDER BY vid"); err != nil {
		return nil, err
	}
	versions := make([]core.Version, 0, len(rows))
	for _, row := range rows {
		v, err := row.toVersion()
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// Latest returns the version with the highest id.
func (g *Graph) Latest(ctx context.Context, conn *ps.Conn) (core.Version, error) {
	var row versionRow
	err := conn.Get(ctx, &row, selectVersion+conn.Quote(g.table)+" ORDER BY vid DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return core.Version{}, fmt.Errorf("%s has no versions: %w", g.dataset, core.ErrDatasetNotFound)
	}
	if err != nil {
		return core.Version{}, err
	}
	return row.toVersion()
}

// Ancestors returns every version reachable from vid through parent links,
// excluding vid itself, in ascending order.
func (g *Graph) Ancestors(ctx context.Context, conn *ps.Conn, vid int64) ([]int64, error) {
	versions, err := g.List(ctx, conn)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]core.Version, len(versions))
	for _, v := range versions {
		byID[v.ID] = v
	}
	start, ok := byID[vid]
	if !ok {
		return nil, &core.UnknownVersionError{Dataset: g.dataset, Version: vid}
	}

	seen := map[int64]bool{vid: true}
	queue := slices.Clone(start.Parents)
	var ancestors []int64
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		ancestors = append(ancestors, id)
		queue = append(queue, byID[id].Parents...)
	}
	slices.Sort(ancestors)
	return ancestors, nil
}

// Drop removes the graph table. The sequence row stays so ids are not
// reused by a dataset created later under the same name.
func (g *Graph) Drop(ctx context.Context, conn *ps.Conn) error {
	return conn.DropTable(ctx, g.table)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
