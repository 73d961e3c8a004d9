package oraclesql

// Stage is the closed union of pipeline stage AST nodes.
type Stage interface {
	stageName() string
}

// Match emits `WHERE <filter>`. An empty filter is rejected by the parser
// before a Match node is ever constructed; Translate reports the rejection
// as InvalidPipelineStructure.
type Match struct {
	Filter Expr
}

func (*Match) stageName() string { return "$match" }

// GroupKey is the group's _id specification: Null (aggregate all), a
// single field/expression, or a compound insertion-ordered label->expr map.
type GroupKey struct {
	Null     bool
	Single   Expr
	Compound []GroupKeyField
}

// GroupKeyField is one label->expression entry of a compound group key.
type GroupKeyField struct {
	Label string
	Expr  Expr
}

// GroupOutput is one `name: accumulator` entry of a $group, in the
// document's insertion order.
type GroupOutput struct {
	Name string
	Acc  *Accumulator
}

// Group emits `SELECT <key-as-_id>, <acc> AS name, ... GROUP BY <key-exprs>`
// (omitting GROUP BY when Key.Null is true).
type Group struct {
	Key     GroupKey
	Outputs []GroupOutput
}

func (*Group) stageName() string { return "$group" }

// ProjectionKind enumerates a Projection's handling.
type ProjectionKind int

const (
	ProjInclude ProjectionKind = iota
	ProjExclude
	ProjRename
	ProjComputed
)

// ProjectionField is one output column of a Project or AddFields stage.
type ProjectionField struct {
	Name   string
	Kind   ProjectionKind
	Source string // field path, for ProjInclude/ProjRename
	Expr   Expr   // computed expression, for ProjComputed
}

// Project emits one SELECT item per field: Include is the same-named
// source field, Rename aliases a different source field, Computed
// evaluates an expression, Exclude is omitted entirely.
type Project struct {
	Fields []ProjectionField
}

func (*Project) stageName() string { return "$project" }

// AddFields emits the whole input document (alias.data) followed by the
// stage's explicit fields as extra columns; alongside a $project only the
// explicit fields are added. $addFields and $set are the same node.
type AddFields struct {
	Fields []ProjectionField
}

func (*AddFields) stageName() string { return "$addFields" }

// Sort emits `ORDER BY f1 ASC|DESC, f2 ...`.
type Sort struct {
	Keys []SortField
}

func (*Sort) stageName() string { return "$sort" }

// Limit emits `FETCH FIRST n ROWS ONLY`. N must be > 0 (the parser rejects
// anything else; Translate reports that as InvalidPipelineStructure).
type Limit struct {
	N int64
}

func (*Limit) stageName() string { return "$limit" }

// Skip emits `OFFSET n ROWS`. N must be >= 0 (the parser rejects anything
// else; Translate reports that as InvalidPipelineStructure).
type Skip struct {
	N int64
}

func (*Skip) stageName() string { return "$skip" }

// Unwind emits a JSON_TABLE array-expansion join. PreserveNullAndEmpty
// switches the join to LEFT OUTER JOIN ... ON 1=1.
type Unwind struct {
	Path                 string // original field reference, e.g. "$items"
	Alias                string // fresh alias, e.g. "unwind_1"
	PreserveNullAndEmpty bool
	IncludeArrayIndex    string // output field name, or "" if not requested
}

func (*Unwind) stageName() string { return "$unwind" }

// Lookup emits a LEFT OUTER JOIN against another collection table.
type Lookup struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
	Alias        string // fresh join alias
}

func (*Lookup) stageName() string { return "$lookup" }

// UnionWith emits the current query UNION ALL a recursively translated
// sub-pipeline over another collection.
type UnionWith struct {
	Collection string
	Pipeline   []Stage // may be empty
}

func (*UnionWith) stageName() string { return "$unionWith" }

// BucketBoundary is one `val >= lo AND val < hi THEN lo` branch of Bucket's
// CASE expression.
type BucketBoundary struct {
	Lo, Hi Expr
}

// Bucket emits a GROUP BY over a boundary CASE expression, replicated in
// SELECT as _id, plus the given accumulator outputs.
type Bucket struct {
	GroupBy     Expr
	Boundaries  []float64
	Default     Expr // nil if no default bucket
	HasDefault  bool
	Outputs     []GroupOutput
}

func (*Bucket) stageName() string { return "$bucket" }

// BucketAuto wraps the base query in NTILE(n) OVER (ORDER BY groupby) and
// groups the outer query on the resulting bucket id.
type BucketAuto struct {
	GroupBy Expr
	Buckets int
	Outputs []GroupOutput
}

func (*BucketAuto) stageName() string { return "$bucketAuto" }

// Facet emits one JSON_OBJECT combining each named sub-pipeline's
// JSON_ARRAYAGG result, in insertion order.
type Facet struct {
	Names     []string
	Pipelines map[string][]Stage
}

func (*Facet) stageName() string { return "$facet" }

// WindowSpec is one output-field -> (window function, frame) entry of a
// SetWindowFields stage.
type WindowSpec struct {
	Name     string
	Func     string // "rank", "denseRank", "rowNumber", "sum", "avg", "min", "max", "count"
	Arg      Expr   // nil for rank/denseRank/rowNumber
	Frame    string // e.g. "ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW", "" if unbounded
}

// SetWindowFields wraps the preceding pipeline's output in a subquery and
// adds one OVER (...) column per WindowSpec.
type SetWindowFields struct {
	Partition Expr // nil if no partitionBy
	SortBy    []SortField
	Outputs   []WindowSpec
}

func (*SetWindowFields) stageName() string { return "$setWindowFields" }

// Redact translates $redact's $$PRUNE/$$KEEP/$$DESCEND decision into a
// row-level WHERE filter: rows whose CASE evaluates to PRUNE are excluded.
// DESCEND and KEEP are equivalent at row granularity (no true subdocument
// pruning is attempted).
type Redact struct {
	Decision Expr // a Cond/Switch evaluating to a sentinel string
}

func (*Redact) stageName() string { return "$redact" }

// Sample emits `ORDER BY DBMS_RANDOM.VALUE FETCH FIRST n ROWS ONLY`.
type Sample struct {
	N int64
}

func (*Sample) stageName() string { return "$sample" }

// Count emits `SELECT JSON_OBJECT('<name>' VALUE COUNT(*)) AS data`.
type Count struct {
	OutputField string
}

func (*Count) stageName() string { return "$count" }

// ReplaceRoot/ReplaceWith replace the document with the given expression's
// value (expected to itself be document-shaped).
type ReplaceRoot struct {
	NewRoot Expr
}

func (*ReplaceRoot) stageName() string { return "$replaceRoot" }

// GraphLookup emits a recursive CTE join.
type GraphLookup struct {
	From                string
	StartWith           Expr
	ConnectFromField    string
	ConnectToField      string
	As                  string
	Alias               string
	MaxDepth            *int64
	RestrictSearchMatch Expr // nil if not given
}

func (*GraphLookup) stageName() string { return "$graphLookup" }

// Merge emits a MERGE INTO ... USING ... statement.
type Merge struct {
	Into        string
	OnFields    []string
	WhenMatched string // "merge", "replace", "keepExisting", "fail"
}

func (*Merge) stageName() string { return "$merge" }

// Out emits an INSERT INTO ... SELECT statement.
type Out struct {
	Collection string
}

func (*Out) stageName() string { return "$out" }

// $sortByCount parses to an unexported sentinel node, which
// ExpandSortByCount replaces with Group(by expr, count:{$sum:1}) +
// Sort(count DESC) before optimization and rendering.
