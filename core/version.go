package core

import (
	"strconv"
	"strings"
	"time"
)

// Version is an immutable snapshot node of a dataset's version graph.
type Version struct {
	ID          int64     `json:"vid"`
	Parents     []int64   `json:"parents"`
	RowCount    int64     `json:"num_records"`
	CreatedAt   time.Time `json:"create_time"`
	CommittedAt time.Time `json:"commit_time"`
	Message     string    `json:"commit_msg"`
}

// IsRoot reports whether v is the dataset's initial version.
func (v Version) IsRoot() bool {
	return len(v.Parents) == 0
}

// Derivation binds a materialized table or file to the dataset versions it
// was checked out from.
type Derivation struct {
	Destination string  `json:"destination"`
	Dataset     string  `json:"dataset"`
	Versions    []int64 `json:"versions"`
}

// IsMerge reports whether the destination was built from several versions.
func (d Derivation) IsMerge() bool {
	return len(d.Versions) > 1
}

// FormatVersions renders a version list as "1,2,3".
func FormatVersions(vids []int64) string {
	parts := make([]string, len(vids))
	for i, vid := range vids {
		parts[i] = strconv.FormatInt(vid, 10)
	}
	return strings.Join(parts, ",")
}

// ParseVersions parses "1,2,3" (whitespace tolerated) into a version list.
func ParseVersions(s string) ([]int64, error) {
	var vids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		vid, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, &BadParametersError{Reason: "invalid version id " + strconv.Quote(part)}
		}
		vids = append(vids, vid)
	}
	return vids, nil
}

// Dataset table naming. The three structures of a dataset are always
// derived from its name.
const (
	DataTableSuffix  = "_datatable"
	GraphTableSuffix = "_version"
	IndexTableSuffix = "_indexTbl"
)

func DataTable(dataset string) string  { return dataset + DataTableSuffix }
func GraphTable(dataset string) string { return dataset + GraphTableSuffix }
func IndexTable(dataset string) string { return dataset + IndexTableSuffix }
