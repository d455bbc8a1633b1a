package meta

import (
	"slices"
	"time"

	"github.com/nickyhof/orpheus/core"
)

// Entry is the provenance of one destination.
type Entry struct {
	Dataset  string  `json:"dataset"`
	Versions []int64 `json:"versions"`
}

func (e Entry) Derivation(destination string) core.Derivation {
	return core.Derivation{
		Destination: destination,
		Dataset:     e.Dataset,
		Versions:    slices.Clone(e.Versions),
	}
}

// Document is the persisted metadata record set.
type Document struct {
	FileMap          map[string]Entry     `json:"file_map"`
	TableMap         map[string]Entry     `json:"table_map"`
	TableCreatedTime map[string]time.Time `json:"table_created_time"`
	MergedTables     []string             `json:"merged_tables"`
}

func NewDocument() *Document {
	doc := &Document{}
	doc.ensureMaps()
	return doc
}

func (doc *Document) ensureMaps() {
	if doc.FileMap == nil {
		doc.FileMap = make(map[string]Entry)
	}
	if doc.TableMap == nil {
		doc.TableMap = make(map[string]Entry)
	}
	if doc.TableCreatedTime == nil {
		doc.TableCreatedTime = make(map[string]time.Time)
	}
	if doc.MergedTables == nil {
		doc.MergedTables = []string{}
	}
}

// Update registers a checkout. Either table or file (or both) may be set;
// an empty name is skipped. A table's creation time is recorded as now.
func (doc *Document) Update(table, file, dataset string, vids []int64, now time.Time) {
	doc.ensureMaps()
	entry := Entry{Dataset: dataset, Versions: slices.Clone(vids)}

	if table != "" {
		doc.TableMap[table] = entry
		doc.TableCreatedTime[table] = now.UTC()
		if len(vids) > 1 && !slices.Contains(doc.MergedTables, table) {
			doc.MergedTables = append(doc.MergedTables, table)
		}
	}
	if file != "" {
		doc.FileMap[file] = entry
	}
}

// TableCreateTime returns when table was checked out, if known.
func (doc *Document) TableCreateTime(table string) (time.Time, bool) {
	t, ok := doc.TableCreatedTime[table]
	return t, ok
}

// IsMerged reports whether table was checked out from several versions.
func (doc *Document) IsMerged(table string) bool {
	return slices.Contains(doc.MergedTables, table)
}
