package db

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/meta"
)

type ResultType int

const (
	QueryResultType ResultType = iota
	CommitResultType
)

type Result interface {
	Type() ResultType
	Display()
}

// QueryResult is tabular output: dataset lists, versions, history.
type QueryResult struct {
	Columns          []string
	Data             [][]string
	ExecutionTimeSec float64
}

// CommitResult reports an operation that changed a dataset, a destination
// or the metadata document.
type CommitResult struct {
	Dataset string
	// Version is the version created, nil when none was.
	Version *core.Version
	// NoOp is set when a commit found nothing new to record.
	NoOp             bool
	Destination      string
	RowsAdded        int
	RowsMatched      int
	RecordsWritten   int
	TablesCreated    int
	TablesDeleted    int
	Transaction      meta.Transaction
	ExecutionTimeSec float64
}

func (result QueryResult) Type() ResultType {
	return QueryResultType
}

func (result CommitResult) Type() ResultType {
	return CommitResultType
}

// elapsed renders seconds rounded to a unit that keeps two or three digits.
func elapsed(secs float64) string {
	d := time.Duration(secs * float64(time.Second))
	switch {
	case d < time.Millisecond:
		return "<1ms"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

func (result QueryResult) ExecutionTime() string {
	return elapsed(result.ExecutionTimeSec)
}

func (result CommitResult) ExecutionTime() string {
	return elapsed(result.ExecutionTimeSec)
}

func (result QueryResult) Display() {
	result.Print(os.Stdout)
}

func (result QueryResult) Print(w io.Writer) {
	if len(result.Data) > 0 {
		data := NewTable(w)
		data.Header(result.Columns)
		data.Bulk(result.Data)
		data.Render()
	}

	fmt.Fprintf(w, "%s rows (%s)\n", humanize.Comma(int64(len(result.Data))), result.ExecutionTime())
}

func (result CommitResult) Display() {
	result.Print(os.Stdout)
}

func (result CommitResult) Print(w io.Writer) {
	fmt.Fprintf(w, "%s (%s)\n", result.Summary(), result.ExecutionTime())
}

// Summary is the one-line description of the result.
func (result CommitResult) Summary() string {
	if result.NoOp {
		return "Nothing to commit"
	}

	var parts []string
	if result.Version != nil {
		parts = append(parts, fmt.Sprintf("version %d of %s created", result.Version.ID, result.Dataset))
	}
	if result.TablesCreated > 0 {
		parts = append(parts, fmt.Sprintf("%d table(s) created", result.TablesCreated))
	}
	if result.TablesDeleted > 0 {
		parts = append(parts, fmt.Sprintf("%d table(s) deleted", result.TablesDeleted))
	}
	if result.RowsAdded > 0 {
		parts = append(parts, fmt.Sprintf("%s new row(s)", humanize.Comma(int64(result.RowsAdded))))
	}
	if result.RowsMatched > 0 {
		parts = append(parts, fmt.Sprintf("%s existing row(s)", humanize.Comma(int64(result.RowsMatched))))
	}
	if result.RecordsWritten > 0 {
		parts = append(parts, fmt.Sprintf("%s record(s) written to %s", humanize.Comma(int64(result.RecordsWritten)), result.Destination))
	}

	if len(parts) == 0 {
		return "OK"
	}
	return strings.Join(parts, ", ")
}

// VersionsResult renders versions as a table.
func VersionsResult(versions []core.Version) QueryResult {
	result := QueryResult{Columns: []string{"Version", "Parents", "Rows", "Created", "Committed", "Message"}}
	for _, v := range versions {
		parents := core.FormatVersions(v.Parents)
		if v.IsRoot() {
			parents = "-"
		}
		result.Data = append(result.Data, []string{
			fmt.Sprint(v.ID),
			parents,
			humanize.Comma(v.RowCount),
			humanizeTime(v.CreatedAt),
			humanizeTime(v.CommittedAt),
			v.Message,
		})
	}
	return result
}

// DatasetsResult renders dataset names as a table.
func DatasetsResult(names []string) QueryResult {
	result := QueryResult{Columns: []string{"Dataset"}}
	for _, name := range names {
		result.Data = append(result.Data, []string{name})
	}
	return result
}

// Result renders the dataset's versions as a table.
func (info DatasetInfo) Result() QueryResult {
	result := VersionsResult(info.Versions)
	result.Columns = append([]string{"Dataset"}, result.Columns...)
	for i := range result.Data {
		result.Data[i] = append([]string{info.Name}, result.Data[i]...)
	}
	return result
}

// Describe is a one-line summary of the dataset.
func (info DatasetInfo) Describe() string {
	return fmt.Sprintf("%s %s: %s rows, %d version(s)", info.Name, info.Schema, humanize.Comma(info.Size), len(info.Versions))
}

// HistoryResult renders metadata transactions as a table.
func HistoryResult(transactions []meta.Transaction) QueryResult {
	result := QueryResult{Columns: []string{"Id", "When", "Author", "Message"}}
	for _, txn := range transactions {
		id := txn.Id
		if len(id) > 8 {
			id = id[:8]
		}
		result.Data = append(result.Data, []string{id, humanizeTime(txn.When), txn.Author, txn.Message})
	}
	return result
}

func humanizeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}
