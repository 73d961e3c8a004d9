package oraclesql

// oracleNumericType is the RETURNING type used whenever a field path must
// be forced scalar for arithmetic, numeric comparison, or an accumulator
// argument. All three target dialects (21c/23ai/26ai) agree on this.
const oracleNumericType = "NUMBER"

// oracleStringType is the RETURNING type used for VARCHAR2 equality.
const oracleStringType = "VARCHAR2(4000)"

// returningTypeFor infers the RETURNING SQL type a field path comparison
// needs from the literal it is compared against, per the parser's
// "return-type inference" rule: numeric RHS -> NUMBER, boolean RHS ->
// VARCHAR2 with 'true'/'false' string semantics, string RHS -> "" (dot
// notation compares fine against JSON string values without a cast).
func returningTypeFor(value any) string {
	switch value.(type) {
	case int, int32, int64, float32, float64:
		return oracleNumericType
	case bool:
		return oracleStringType
	default:
		return ""
	}
}

// boolLiteralString renders a Go bool the way a VARCHAR2-returning field
// comparison expects to see it on the bind side: the literal strings
// MongoDB's boolean JSON values serialize to.
func boolLiteralString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
