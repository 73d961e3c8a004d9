package oraclesql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// translate runs a JSON-array pipeline literal through the full
// parse -> collapse -> expand -> optimize -> render pipeline, mirroring
// what the facade does, and returns the generated SQL and bind list.
func translate(t *testing.T, collection, pipelineJSON string, inline bool) (string, []any) {
	t.Helper()
	var arr bson.A
	require.NoError(t, bson.UnmarshalExtJSON([]byte(pipelineJSON), false, &arr))

	ctx := NewContext(Oracle26ai, "data", inline)
	sp := NewStageParser(ctx, false)
	stages, err := sp.ParsePipeline(arr)
	require.NoError(t, err)

	stages = CollapseLookupUnwind(stages)
	stages = ExpandSortByCount(stages)
	stages = Optimize(stages)

	Render(ctx, collection, stages, false)
	sql, binds := ctx.Finalize()
	return sql, binds
}

func TestScenario1_SimpleMatch(t *testing.T) {
	sql, binds := translate(t, "sales", `[{"$match":{"status":"active"}}]`, false)
	require.Equal(t, `SELECT base.data FROM sales base WHERE base.data.status = :1`, sql)
	require.Equal(t, []any{"active"}, binds)
}

func TestScenario2_GroupSortLimit(t *testing.T) {
	sql, binds := translate(t, "sales", `[
		{"$match":{"amount":{"$gt":100}}},
		{"$group":{"_id":"$category","total":{"$sum":"$amount"}}},
		{"$sort":{"total":-1}},
		{"$limit":5}
	]`, false)
	want := `SELECT base.data.category AS "_id", SUM(JSON_VALUE(base.data,'$.amount' RETURNING NUMBER)) AS total FROM sales base WHERE JSON_VALUE(base.data,'$.amount' RETURNING NUMBER) > :1 GROUP BY base.data.category ORDER BY total DESC FETCH FIRST 5 ROWS ONLY`
	require.Equal(t, want, sql)
	require.Equal(t, []any{int32(100)}, binds)
}

func TestScenario3_UnwindGroup(t *testing.T) {
	sql, _ := translate(t, "sales", `[
		{"$unwind":"$items"},
		{"$group":{"_id":"$items.product","qty":{"$sum":"$items.qty"}}}
	]`, false)
	require.Contains(t, sql, `JSON_TABLE(base.data,'$.items[*]' COLUMNS(value JSON PATH '$')) unwind_1`)
	require.Contains(t, sql, `GROUP BY unwind_1.value.product`)
	require.Contains(t, sql, `unwind_1.value.product AS "_id"`)
}

func TestScenario4_LookupUnwindCollapse(t *testing.T) {
	sql, _ := translate(t, "sales", `[
		{"$lookup":{"from":"customers","localField":"customerId","foreignField":"_id","as":"customer"}},
		{"$unwind":"$customer"},
		{"$group":{"_id":"$customer.tier","n":{"$sum":1}}}
	]`, false)

	require.Contains(t, sql, `LEFT OUTER JOIN customers customers_1 ON JSON_VALUE(base.data,'$.customerId')=JSON_VALUE(customers_1.data,'$._id')`)
	require.Contains(t, sql, `GROUP BY customers_1.data.tier`)
	// the collapsed unwind must not also emit a JSON_TABLE array-expansion join
	require.NotContains(t, sql, "JSON_TABLE")
	require.Equal(t, 1, strings.Count(sql, "JOIN"))
}

func TestScenario5_SetWindowFieldsRankFilter(t *testing.T) {
	sql, _ := translate(t, "sales", `[
		{"$setWindowFields":{"partitionBy":"$department","sortBy":{"salary":-1},"output":{"r":{"$rank":{}}}}},
		{"$match":{"r":1}}
	]`, false)

	require.Contains(t, sql, `RANK() OVER (PARTITION BY base.data.department ORDER BY base.data.salary DESC) AS r`)
	require.Contains(t, sql, "WHERE r = ")
}

func TestScenario6_InlineMode(t *testing.T) {
	sql, binds := translate(t, "sales", `[{"$match":{"status":"active"}}]`, true)
	require.Equal(t, `SELECT base.data FROM sales base WHERE base.data.status = 'active'`, sql)
	require.Empty(t, binds)
}

func TestGroupKeyNull_NoGroupBy(t *testing.T) {
	sql, _ := translate(t, "sales", `[{"$group":{"_id":null,"n":{"$sum":1}}}]`, false)
	require.NotContains(t, sql, "GROUP BY")
}

func TestLookupWithoutFollowingUnwind_NotCollapsed(t *testing.T) {
	sql, _ := translate(t, "sales", `[
		{"$lookup":{"from":"customers","localField":"customerId","foreignField":"_id","as":"customer"}}
	]`, false)
	require.Contains(t, sql, `LEFT OUTER JOIN customers customers_1`)
}

func TestLookupUnwindWithArrayIndex_NotCollapsed(t *testing.T) {
	sql, _ := translate(t, "sales", `[
		{"$lookup":{"from":"customers","localField":"customerId","foreignField":"_id","as":"customer"}},
		{"$unwind":{"path":"$customer","includeArrayIndex":"idx"}}
	]`, false)
	require.Contains(t, sql, `LEFT OUTER JOIN customers customers_1`)
	require.Contains(t, sql, "JSON_TABLE")
}

func TestPostGroupMatchRoutesToHaving(t *testing.T) {
	sql, _ := translate(t, "sales", `[
		{"$group":{"_id":"$category","total":{"$sum":"$amount"}}},
		{"$match":{"total":{"$gt":1000}}}
	]`, false)
	require.Contains(t, sql, " HAVING ")
	require.NotContains(t, sql, " WHERE ")
}

func TestLimitBoundary(t *testing.T) {
	var arr bson.A
	require.NoError(t, bson.UnmarshalExtJSON([]byte(`[{"$limit":0}]`), false, &arr))
	ctx := NewContext(Oracle26ai, "data", false)
	sp := NewStageParser(ctx, false)
	_, err := sp.ParsePipeline(arr)
	require.Error(t, err)
}

func TestEmptyMatchBoundary(t *testing.T) {
	var arr bson.A
	require.NoError(t, bson.UnmarshalExtJSON([]byte(`[{"$match":{}}]`), false, &arr))
	ctx := NewContext(Oracle26ai, "data", false)
	sp := NewStageParser(ctx, false)
	_, err := sp.ParsePipeline(arr)
	require.Error(t, err)
}

func TestArrayIndexPathProducesBracketForm(t *testing.T) {
	p := ParsePath("$items.0.price")
	require.Equal(t, "$.items[0].price", p.JSONPath())
}

func TestPathCanonicalizationIdempotent(t *testing.T) {
	p1 := ParsePath("$items.0.price")
	p2 := ParsePath(p1.JSONPath())
	require.Equal(t, p1.JSONPath(), p2.JSONPath())
}
