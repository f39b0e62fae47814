// Package catalog defines the shape of the Catalog the executor framework
// consumes, per spec §4's architecture note: "the core consumes a Catalog
// (mapping names to tables/indexes/schemas)". Building, persisting, and
// populating a catalog from DDL is explicitly out of scope (spec §1 names
// "catalog" and "schema/type system" as external collaborators); this
// package only carries the data shapes and lookup contract executors are
// written against, grounded on the field names of
// metadata.Table / metadata.Column (server/innodb/metadata/schema.go,
// column_def.go) with the schema portion replaced by Encode/Decode
// closures rather than a reified column-type system (see DESIGN.md).
package catalog

import (
	"github.com/Afeather2017/reldb/heap"
	"github.com/Afeather2017/reldb/index/hash"
	"github.com/Afeather2017/reldb/storage/page"
)

// Row is a decoded tuple: one value per projected column. The value
// representation itself (int64, string, ...) is left to the caller that
// built the Decode/Encode pair below — this core has no type system of
// its own to enforce.
type Row []any

// TableInfo is what the executor framework looks up per table, per spec
// §4's "TableInfo carries schema, oid, name, heap handle". Decode/Encode
// stand in for "schema": the codec a plan was compiled against, supplied
// by whatever built the plan (out of scope here).
type TableInfo struct {
	OID    uint32
	Name   string
	Heap   *heap.TableHeap
	Decode func(heap.Tuple) Row
	Encode func(Row) heap.Tuple
}

// IndexInfo is what the executor framework looks up per index, per spec
// §4's "IndexInfo carries key schema, oid, and an index handle supporting
// insert_entry, delete_entry, scan_key". KeyOf projects a decoded row onto
// the index's routing key.
type IndexInfo struct {
	OID       uint32
	Name      string
	TableName string
	Column    int // row index KeyOf projects; used by the optimizer's index-pushdown rule
	Index     *hash.Table
	KeyOf     func(Row) hash.Key
}

// InsertEntry indexes row at rid.
func (idx *IndexInfo) InsertEntry(row Row, rid page.RID) error {
	return idx.Index.Insert(idx.KeyOf(row), rid)
}

// DeleteEntry removes row's entry from the index.
func (idx *IndexInfo) DeleteEntry(row Row) error {
	return idx.Index.Remove(idx.KeyOf(row))
}

// ScanKey looks up the single RID for row's projected key, per spec §4.7's
// IndexScan contract (a unique-key hash index).
func (idx *IndexInfo) ScanKey(row Row) (page.RID, bool, error) {
	return idx.Index.Get(idx.KeyOf(row))
}

// Catalog maps table and index names/oids to their TableInfo/IndexInfo,
// per spec §4's consumed-interface shape. Implementations own however
// they actually populate these (DDL execution, a config file, tests) —
// this package defines only the lookup contract executors depend on.
type Catalog interface {
	GetTableByName(name string) (*TableInfo, bool)
	GetTableByOID(oid uint32) (*TableInfo, bool)
	GetTableIndexes(tableName string) []*IndexInfo
}

// Static is the simplest Catalog: a fixed, caller-populated registry, the
// shape a test or a single-process embedding builds directly without any
// DDL machinery.
type Static struct {
	byName  map[string]*TableInfo
	byOID   map[uint32]*TableInfo
	indexes map[string][]*IndexInfo
}

// NewStatic returns an empty registry.
func NewStatic() *Static {
	return &Static{
		byName:  make(map[string]*TableInfo),
		byOID:   make(map[uint32]*TableInfo),
		indexes: make(map[string][]*IndexInfo),
	}
}

// AddTable registers t, indexable by both name and oid.
func (c *Static) AddTable(t *TableInfo) {
	c.byName[t.Name] = t
	c.byOID[t.OID] = t
}

// AddIndex registers idx under its owning table's name.
func (c *Static) AddIndex(idx *IndexInfo) {
	c.indexes[idx.TableName] = append(c.indexes[idx.TableName], idx)
}

func (c *Static) GetTableByName(name string) (*TableInfo, bool) {
	t, ok := c.byName[name]
	return t, ok
}

func (c *Static) GetTableByOID(oid uint32) (*TableInfo, bool) {
	t, ok := c.byOID[oid]
	return t, ok
}

func (c *Static) GetTableIndexes(tableName string) []*IndexInfo {
	return c.indexes[tableName]
}
