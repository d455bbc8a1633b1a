package vc

import (
	"bytes"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/nickyhof/orpheus/core"
	"github.com/zeebo/xxh3"
)

// Relation is a set of rows aligned with Schema. Rids, when present, is
// aligned with Rows.
type Relation struct {
	Schema core.Schema
	Rows   []core.Row
	Rids   []int64
}

// tupleSet buckets encoded tuples by hash; a hash hit is confirmed by
// comparing the full encoding.
type tupleSet map[uint64][][]byte

func (s tupleSet) add(enc []byte) bool {
	h := xxh3.Hash(enc)
	for _, other := range s[h] {
		if bytes.Equal(other, enc) {
			return false
		}
	}
	s[h] = append(s[h], enc)
	return true
}

func (s tupleSet) contains(enc []byte) bool {
	for _, other := range s[xxh3.Hash(enc)] {
		if bytes.Equal(other, enc) {
			return true
		}
	}
	return false
}

// projection resolves attrs against both relations and checks that each
// attribute exists on both sides with compatible kinds.
func projection(candidate, canonical Relation, attrs []string) (cand, canon []int, err error) {
	var missing, mismatched []string
	cand = make([]int, len(attrs))
	canon = make([]int, len(attrs))
	for i, attr := range attrs {
		ci, okC := candidate.Schema.Lookup(attr)
		ki, okK := canonical.Schema.Lookup(attr)
		if !okC || !okK {
			missing = append(missing, attr)
			continue
		}
		if !compatible(candidate.Schema.Columns[ci].Type, canonical.Schema.Columns[ki].Type) {
			mismatched = append(mismatched, attr)
		}
		cand[i], canon[i] = ci, ki
	}
	if len(missing) > 0 || len(mismatched) > 0 {
		return nil, nil, &core.SchemaMismatchError{Missing: missing, Mismatched: mismatched}
	}
	return cand, canon, nil
}

func compatible(a, b core.ColumnType) bool {
	if a == b || a == core.OtherType || b == core.OtherType {
		return true
	}
	// blobs are compared by their bytes as text
	textual := func(t core.ColumnType) bool { return t == core.TextType || t == core.BlobType }
	return textual(a) && textual(b)
}

func project(row core.Row, positions []int) core.Row {
	out := make(core.Row, len(positions))
	for i, p := range positions {
		out[i] = row[p]
	}
	return out
}

func encode(row core.Row, positions []int) []byte {
	return core.AppendTuple(nil, project(row, positions))
}

// Complement returns the distinct candidate tuples, projected onto attrs,
// that do not appear in canonical. Values compare exactly after
// normalization.
func Complement(candidate, canonical Relation, attrs []string) ([]core.Row, error) {
	cand, canon, err := projection(candidate, canonical, attrs)
	if err != nil {
		return nil, err
	}

	existing := make(tupleSet, len(canonical.Rows))
	for _, row := range canonical.Rows {
		existing.add(encode(row, canon))
	}

	seen := make(tupleSet)
	var out []core.Row
	for _, row := range candidate.Rows {
		enc := encode(row, cand)
		if existing.contains(enc) || !seen.add(enc) {
			continue
		}
		out = append(out, project(row, cand))
	}
	return out, nil
}

// Intersection returns the rids of every canonical row whose tuple also
// appears in candidate. When the canonical side holds the same tuple under
// several rids, all of them are returned.
func Intersection(candidate, canonical Relation, attrs []string) (*roaring64.Bitmap, error) {
	cand, canon, err := projection(candidate, canonical, attrs)
	if err != nil {
		return nil, err
	}

	wanted := make(tupleSet, len(candidate.Rows))
	for _, row := range candidate.Rows {
		wanted.add(encode(row, cand))
	}

	rids := roaring64.New()
	for i, row := range canonical.Rows {
		if wanted.contains(encode(row, canon)) {
			rids.Add(uint64(canonical.Rids[i]))
		}
	}
	return rids, nil
}

// Distinct returns rows with every repeated tuple after its first
// occurrence removed, keeping order.
func Distinct(rows []core.Row) []core.Row {
	seen := make(tupleSet, len(rows))
	out := rows[:0:0]
	for _, row := range rows {
		if seen.add(core.AppendTuple(nil, row)) {
			out = append(out, row)
		}
	}
	return out
}
