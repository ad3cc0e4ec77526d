package knowledge

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// invertedIndex maps tags and sources to roaring posting lists over dense
// row ids. Entry ids are interned to rows on first sight; rows are stable
// for the lifetime of the id. Callers must hold the owning set's lock.
type invertedIndex struct {
	rowOf   map[string]uint32
	byRow   []string
	tags    map[string]*roaring.Bitmap
	sources map[string]*roaring.Bitmap
}

func newInvertedIndex() *invertedIndex {
	return &invertedIndex{
		rowOf:   make(map[string]uint32),
		tags:    make(map[string]*roaring.Bitmap),
		sources: make(map[string]*roaring.Bitmap),
	}
}

// intern returns the dense row for id, assigning one on first sight.
func (x *invertedIndex) intern(id string) uint32 {
	if row, ok := x.rowOf[id]; ok {
		return row
	}

	row := uint32(len(x.byRow))
	x.rowOf[id] = row
	x.byRow = append(x.byRow, id)

	return row
}

// add registers the entry's tags and source in the posting lists.
func (x *invertedIndex) add(id string, tags []string, source string) {
	row := x.intern(id)

	for _, tag := range tags {
		bm, ok := x.tags[tag]
		if !ok {
			bm = roaring.New()
			x.tags[tag] = bm
		}
		bm.Add(row)
	}

	if source != "" {
		bm, ok := x.sources[source]
		if !ok {
			bm = roaring.New()
			x.sources[source] = bm
		}
		bm.Add(row)
	}
}

// remove drops the entry from the posting lists. The row interning stays
// so the id keeps its row if it comes back.
func (x *invertedIndex) remove(id string, tags []string, source string) {
	row, ok := x.rowOf[id]
	if !ok {
		return
	}

	for _, tag := range tags {
		if bm, ok := x.tags[tag]; ok {
			bm.Remove(row)
			if bm.IsEmpty() {
				delete(x.tags, tag)
			}
		}
	}

	if source != "" {
		if bm, ok := x.sources[source]; ok {
			bm.Remove(row)
			if bm.IsEmpty() {
				delete(x.sources, source)
			}
		}
	}
}

// candidates intersects the posting lists for the given tags and source.
// All tags must match. A nil return with ok=false means no postings filter
// applies and the caller should scan everything.
func (x *invertedIndex) candidates(tags []string, source string) (*roaring.Bitmap, bool) {
	if len(tags) == 0 && source == "" {
		return nil, false
	}

	lists := make([]*roaring.Bitmap, 0, len(tags)+1)

	for _, tag := range tags {
		bm, ok := x.tags[tag]
		if !ok {
			return roaring.New(), true
		}
		lists = append(lists, bm)
	}

	if source != "" {
		bm, ok := x.sources[source]
		if !ok {
			return roaring.New(), true
		}
		lists = append(lists, bm)
	}

	return roaring.FastAnd(lists...), true
}

// id returns the entry id for a row.
func (x *invertedIndex) id(row uint32) string {
	return x.byRow[row]
}
