package oraclesql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func projectExpr(t *testing.T, exprJSON string) string {
	t.Helper()
	sql, _ := translate(t, "sales", `[{"$project":{"out":`+exprJSON+`}}]`, true)
	return sql
}

func TestArithmeticInfix(t *testing.T) {
	sql := projectExpr(t, `{"$multiply":["$price","$qty"]}`)
	require.Contains(t, sql, "(JSON_VALUE(base.data,'$.price' RETURNING NUMBER) * JSON_VALUE(base.data,'$.qty' RETURNING NUMBER))")
}

func TestArithmeticFunction(t *testing.T) {
	sql := projectExpr(t, `{"$round":["$price",2]}`)
	require.Contains(t, sql, "ROUND(JSON_VALUE(base.data,'$.price' RETURNING NUMBER), 2)")
}

func TestStringConcat(t *testing.T) {
	sql := projectExpr(t, `{"$concat":["$first","$last"]}`)
	require.Contains(t, sql, "base.data.first || base.data.last")
}

func TestStringToUpper(t *testing.T) {
	sql := projectExpr(t, `{"$toUpper":"$name"}`)
	require.Contains(t, sql, "UPPER(base.data.name)")
}

func TestStringSubstr(t *testing.T) {
	sql := projectExpr(t, `{"$substr":["$name",0,3]}`)
	require.Contains(t, sql, "SUBSTR(base.data.name, (0) + 1, 3)")
}

func TestDateYearExtraction(t *testing.T) {
	sql := projectExpr(t, `{"$year":"$createdAt"}`)
	require.Contains(t, sql, "EXTRACT(YEAR FROM TO_TIMESTAMP(")
	require.Contains(t, sql, "JSON_VALUE(base.data,'$.createdAt' RETURNING VARCHAR2(4000))")
}

func TestArrayElemAt(t *testing.T) {
	sql := projectExpr(t, `{"$arrayElemAt":["$items",0]}`)
	require.Contains(t, sql, "JSON_VALUE(base.data,'$.items[' || (")
}

func TestArraySize(t *testing.T) {
	sql := projectExpr(t, `{"$size":"$items"}`)
	require.Contains(t, sql, "JSON_VALUE(base.data,")
}

func TestCondExpression(t *testing.T) {
	sql := projectExpr(t, `{"$cond":{"if":{"$gt":["$age",18]},"then":"adult","else":"minor"}}`)
	require.Contains(t, sql, "CASE WHEN")
	require.Contains(t, sql, "THEN")
	require.Contains(t, sql, "ELSE")
}

func TestSwitchExpression(t *testing.T) {
	sql := projectExpr(t, `{"$switch":{"branches":[{"case":{"$eq":["$tier","gold"]},"then":1}],"default":0}}`)
	require.Contains(t, sql, "CASE WHEN")
}

func TestIfNullExpression(t *testing.T) {
	sql := projectExpr(t, `{"$ifNull":["$nickname","$name"]}`)
	require.Contains(t, sql, "COALESCE(")
}

func TestTypeConversionToInt(t *testing.T) {
	sql := projectExpr(t, `{"$toInt":"$code"}`)
	require.Contains(t, sql, "TRUNC(TO_NUMBER(JSON_VALUE(base.data,'$.code' RETURNING VARCHAR2(4000))))")
}

func TestMergeObjectsExpression(t *testing.T) {
	sql := projectExpr(t, `{"$mergeObjects":["$a","$b"]}`)
	require.Contains(t, sql, "base.data.a")
	require.Contains(t, sql, "base.data.b")
}

func TestFilterOperatorUnsupportedFallsBackToWarningNull(t *testing.T) {
	sql := projectExpr(t, `{"$bitAnd":["$a","$b"]}`)
	require.Contains(t, sql, "NULL")
}

func TestInOperatorFilter(t *testing.T) {
	sql, binds := translate(t, "sales", `[{"$match":{"status":{"$in":["active","pending"]}}}]`, false)
	require.Contains(t, sql, "base.data.status IN (:1, :2)")
	require.Equal(t, []any{"active", "pending"}, binds)
}

func TestNinOperatorFilter(t *testing.T) {
	sql, _ := translate(t, "sales", `[{"$match":{"status":{"$nin":["closed"]}}}]`, false)
	require.Contains(t, sql, "NOT IN")
}

func TestExistsOperatorFilter(t *testing.T) {
	sql, _ := translate(t, "sales", `[{"$match":{"optionalField":{"$exists":true}}}]`, false)
	require.Contains(t, sql, "JSON_EXISTS(")
}

func TestAndOrFilters(t *testing.T) {
	sql, _ := translate(t, "sales", `[{"$match":{"$or":[{"status":"active"},{"status":"pending"}]}}]`, false)
	require.Contains(t, sql, " OR ")
}
