package oraclesql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBucketStage(t *testing.T) {
	sql, _ := translate(t, "sales", `[
		{"$bucket":{"groupBy":"$price","boundaries":[0,100,200],"default":"Other","output":{"count":{"$sum":1}}}}
	]`, false)
	require.Contains(t, sql, "CASE WHEN")
	require.Contains(t, sql, `AS "_id"`)
	require.Contains(t, sql, "GROUP BY CASE WHEN")
}

func TestBucketAutoStage(t *testing.T) {
	sql, _ := translate(t, "sales", `[
		{"$bucketAuto":{"groupBy":"$price","buckets":4,"output":{"count":{"$sum":1}}}}
	]`, false)
	require.Contains(t, sql, "NTILE(4) OVER (ORDER BY")
	require.Contains(t, sql, "GROUP BY bucket_id")
}

func TestFacetStage(t *testing.T) {
	sql, _ := translate(t, "sales", `[
		{"$facet":{"byStatus":[{"$match":{"status":"active"}}],"total":[{"$count":"n"}]}}
	]`, false)
	require.Contains(t, sql, "JSON_OBJECT(")
	require.Contains(t, sql, "KEY 'byStatus' VALUE")
	require.Contains(t, sql, "KEY 'total' VALUE")
	require.Contains(t, sql, "JSON_ARRAYAGG")
	require.Contains(t, sql, "FROM DUAL")
}

func TestGraphLookupStage(t *testing.T) {
	sql, _ := translate(t, "employees", `[
		{"$graphLookup":{"from":"employees","startWith":"$managerId","connectFromField":"managerId","connectToField":"_id","as":"reports","maxDepth":3}}
	]`, false)
	require.Contains(t, sql, "WITH graph_cte_")
	require.Contains(t, sql, "UNION ALL SELECT child.")
	require.Contains(t, sql, "WHERE parent.depth < 3")
}

func TestReplaceRootStage(t *testing.T) {
	sql, _ := translate(t, "sales", `[{"$replaceRoot":{"newRoot":"$details"}}]`, false)
	require.Contains(t, sql, "base.data.details AS data")
}

func TestReplaceWithStage(t *testing.T) {
	sql, _ := translate(t, "sales", `[{"$replaceWith":"$details"}]`, false)
	require.Contains(t, sql, "base.data.details AS data")
}

func TestRedactStage(t *testing.T) {
	sql, _ := translate(t, "sales", `[
		{"$redact":{"$cond":{"if":{"$eq":["$level","public"]},"then":"$$KEEP","else":"$$PRUNE"}}}
	]`, false)
	require.Contains(t, sql, "CASE WHEN")
	require.Contains(t, sql, " WHERE ")
}

func TestSampleStage(t *testing.T) {
	sql, _ := translate(t, "sales", `[{"$sample":{"size":10}}]`, false)
	require.Contains(t, sql, "ORDER BY DBMS_RANDOM.VALUE")
	require.Contains(t, sql, "FETCH FIRST 10 ROWS ONLY")
}

func TestCountStage(t *testing.T) {
	sql, _ := translate(t, "sales", `[{"$match":{"status":"active"}},{"$count":"total"}]`, false)
	require.Contains(t, sql, `JSON_OBJECT('total' VALUE COUNT(*)) AS data`)
}

func TestSortByCountDesugars(t *testing.T) {
	sql, _ := translate(t, "sales", `[{"$sortByCount":"$category"}]`, false)
	require.Contains(t, sql, "GROUP BY base.data.category")
	require.Contains(t, sql, "ORDER BY count DESC")
}

func TestMergeStageString(t *testing.T) {
	sql, _ := translate(t, "sales", `[{"$match":{"status":"active"}},{"$merge":"archive"}]`, false)
	require.Contains(t, sql, "MERGE INTO archive tgt USING (")
	require.Contains(t, sql, "WHEN MATCHED THEN UPDATE SET tgt.data = src.data")
	require.Contains(t, sql, "WHEN NOT MATCHED THEN INSERT (data) VALUES (src.data)")
}

func TestMergeStageDocumentOnField(t *testing.T) {
	sql, _ := translate(t, "sales", `[{"$merge":{"into":"archive","on":"_id"}}]`, false)
	require.Contains(t, sql, `JSON_VALUE(tgt.data,'$._id')=JSON_VALUE(src.data,'$._id')`)
	require.Contains(t, sql, "WHEN MATCHED THEN UPDATE SET tgt.data = src.data")
}

func TestMergeStageKeepExisting(t *testing.T) {
	sql, _ := translate(t, "sales", `[{"$merge":{"into":"archive","on":"sku","whenMatched":"keepExisting"}}]`, false)
	require.NotContains(t, sql, "WHEN MATCHED")
	require.Contains(t, sql, `JSON_VALUE(tgt.data,'$.sku')=JSON_VALUE(src.data,'$.sku')`)
}

func TestOutStage(t *testing.T) {
	sql, _ := translate(t, "sales", `[{"$match":{"status":"active"}},{"$out":"archive"}]`, false)
	require.Contains(t, sql, "INSERT INTO archive (data) SELECT base.data FROM sales base WHERE")
}

func TestUnionWithStage(t *testing.T) {
	sql, _ := translate(t, "sales", `[
		{"$match":{"status":"active"}},
		{"$unionWith":{"coll":"archive","pipeline":[{"$match":{"status":"active"}}]}}
	]`, false)
	require.Contains(t, sql, " UNION ALL ")
	require.Contains(t, sql, "FROM archive base")
}

func TestProjectIncludeRenameComputedExclude(t *testing.T) {
	sql, _ := translate(t, "sales", `[
		{"$project":{"name":1,"displayName":"$name","total":{"$multiply":["$price","$qty"]},"_id":0}}
	]`, false)
	require.Contains(t, sql, `base.data.name AS name`)
	require.Contains(t, sql, `AS displayName`)
	require.Contains(t, sql, `AS total`)
	require.NotContains(t, sql, `"_id"`)
}

func TestAddFieldsComputedField(t *testing.T) {
	sql, _ := translate(t, "sales", `[
		{"$addFields":{"total":{"$add":["$price","$tax"]}}}
	]`, false)
	require.Contains(t, sql, `AS total`)
}
