package aggregate

import (
	"fmt"

	"m3u-live-events/logger"
	"m3u-live-events/model"

	"github.com/hashicorp/go-memdb"
)

type row struct {
	Key   string
	Entry model.Entry
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		"entries": {
			Name: "entries",
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Key"},
				},
			},
		},
	},
}

// Merge unions the maps. Keys are disjoint when every source tags its own
// keys; on a collision the later map wins and the clash is logged.
func Merge(log logger.Logger, maps ...model.ResultMap) model.ResultMap {
	if log == nil {
		log = logger.Default
	}
	out := model.ResultMap{}
	for _, m := range maps {
		for k, v := range m {
			if _, dup := out[k]; dup {
				log.Warnf("Duplicate key %q, keeping the later source's entry", k)
			}
			out[k] = v
		}
	}
	return out
}

// Ordered returns the acquired entries in ascending key order. Entries
// without a URL are dropped.
func Ordered(entries model.ResultMap) ([]Keyed, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	txn := db.Txn(true)
	for k, v := range entries {
		if !v.Acquired() {
			continue
		}
		if err := txn.Insert("entries", &row{Key: k, Entry: v}); err != nil {
			txn.Abort()
			return nil, fmt.Errorf("index %q: %w", k, err)
		}
	}
	txn.Commit()

	read := db.Txn(false)
	defer read.Abort()

	it, err := read.Get("entries", "id")
	if err != nil {
		return nil, fmt.Errorf("iterate index: %w", err)
	}

	var out []Keyed
	for obj := it.Next(); obj != nil; obj = it.Next() {
		r := obj.(*row)
		out = append(out, Keyed{Key: r.Key, Entry: r.Entry})
	}
	return out, nil
}

type Keyed struct {
	Key   string
	Entry model.Entry
}
