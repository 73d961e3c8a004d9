package oraclesql

import "fmt"

// Expr is the closed union of expression AST nodes. Every variant renders
// itself through the Context; no node builds its own string.
type Expr interface {
	render(ctx *Context)
}

// FieldPath is a dotted reference into the current stage's input document,
// optionally rooted at a join alias produced by a prior Lookup/Unwind, and
// optionally forced into scalar (JSON_VALUE ... RETURNING) form.
type FieldPath struct {
	Path      CanonicalPath
	Alias     string // "base" by default; a lookup/unwind alias otherwise
	Column    string // JSON column to read through; "" means the context's configured data column
	Returning string // "", "NUMBER", "VARCHAR2(4000)", "DATE" - forces JSON_VALUE form
}

func NewFieldPath(ref, alias string) *FieldPath {
	return &FieldPath{Path: ParsePath(ref), Alias: alias}
}

func (f *FieldPath) render(ctx *Context) {
	base := f.Alias
	if base == "" {
		base = "base"
	}
	col := f.Column
	if col == "" {
		col = ctx.DataColumn()
	}

	// .size() is always a JSON_VALUE size() call, regardless of context.
	if isSizeSentinel(f.Path) {
		ctx.SQLf("JSON_VALUE(%s.%s,'%s')", base, col, sizeJSONPath(f.Path))
		return
	}

	// in a group scope, bare aliases resolve against the group's own
	// output columns instead of the base document.
	if len(f.Path.Segments) == 1 && !f.Path.Segments[0].IsIdx {
		name := f.Path.Segments[0].Key
		if isAlias, active := ctx.GroupAlias(name); active && isAlias {
			ctx.Identifier(name)
			return
		}
	}

	returning := f.Returning
	if returning == "" && ctx.RequiresScalarReturn() {
		returning = "VARCHAR2(4000)"
	}

	if returning == "" {
		ctx.SQL(f.Path.DotNotation(base + "." + col))
		return
	}

	ctx.SQLf("JSON_VALUE(%s.%s,'%s' RETURNING %s)", base, col, f.Path.JSONPath(), returning)
}

// sizeSentinelKey is how $size(field) arrives as a FieldPath: a trailing
// pseudo-segment appended by the expression parser.
const sizeSentinelKey = "\x00size()"

func isSizeSentinel(p CanonicalPath) bool {
	if len(p.Segments) == 0 {
		return false
	}
	last := p.Segments[len(p.Segments)-1]
	return !last.IsIdx && last.Key == sizeSentinelKey
}

func sizeJSONPath(p CanonicalPath) string {
	trimmed := CanonicalPath{Segments: p.Segments[:len(p.Segments)-1]}
	return trimmed.JSONPath() + ".size()"
}

// Literal is a constant scalar or null.
type Literal struct {
	Value any
}

func (l *Literal) render(ctx *Context) {
	if l.Value == nil {
		ctx.SQL("NULL")
		return
	}
	ctx.Bind(l.Value)
}

// ComparisonOp enumerates Comparison's operator.
type ComparisonOp string

const (
	OpEq  ComparisonOp = "eq"
	OpNe  ComparisonOp = "ne"
	OpGt  ComparisonOp = "gt"
	OpGte ComparisonOp = "gte"
	OpLt  ComparisonOp = "lt"
	OpLte ComparisonOp = "lte"
)

var comparisonSQL = map[ComparisonOp]string{
	OpEq: "=", OpNe: "<>", OpGt: ">", OpGte: ">=", OpLt: "<", OpLte: "<=",
}

// Comparison renders `<lhs> op <rhs>`, switching to IS [NOT] NULL when the
// right-hand side is a null literal.
type Comparison struct {
	Op       ComparisonOp
	LHS, RHS Expr
}

func (c *Comparison) render(ctx *Context) {
	if lit, ok := c.RHS.(*Literal); ok && lit.Value == nil {
		ctx.visit(c.LHS)
		if c.Op == OpEq {
			ctx.SQL(" IS NULL")
		} else {
			ctx.SQL(" IS NOT NULL")
		}
		return
	}
	ctx.visit(c.LHS)
	ctx.SQLf(" %s ", comparisonSQL[c.Op])
	ctx.visit(c.RHS)
}

// In renders `<field> [NOT] IN (<bind>, <bind>, ...)`.
type In struct {
	Field    Expr
	Values   []Expr
	Negated  bool
}

func (i *In) render(ctx *Context) {
	ctx.visit(i.Field)
	if i.Negated {
		ctx.SQL(" NOT IN (")
	} else {
		ctx.SQL(" IN (")
	}
	for idx, v := range i.Values {
		if idx > 0 {
			ctx.SQL(", ")
		}
		ctx.visit(v)
	}
	ctx.SQL(")")
}

// Exists renders `JSON_EXISTS(data, '$.path')` or its negation.
type Exists struct {
	Field        *FieldPath
	ShouldExist  bool
}

func (e *Exists) render(ctx *Context) {
	base := e.Field.Alias
	if base == "" {
		base = "base"
	}
	if !e.ShouldExist {
		ctx.SQL("NOT ")
	}
	ctx.SQLf("JSON_EXISTS(%s.%s,'%s')", base, ctx.DataColumn(), e.Field.Path.JSONPath())
}

// LogicalOp enumerates Logical's operator.
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
	OpNot LogicalOp = "not"
	OpNor LogicalOp = "nor"
)

// Logical renders AND/OR/NOT/NOR combinations of operand expressions.
type Logical struct {
	Op       LogicalOp
	Operands []Expr
}

func (l *Logical) render(ctx *Context) {
	switch l.Op {
	case OpNot:
		ctx.SQL("NOT (")
		ctx.visit(l.Operands[0])
		ctx.SQL(")")
	case OpNor:
		ctx.SQL("NOT (")
		l.joinOperands(ctx, "OR")
		ctx.SQL(")")
	default:
		sep := "AND"
		if l.Op == OpOr {
			sep = "OR"
		}
		if len(l.Operands) == 1 {
			ctx.visit(l.Operands[0])
			return
		}
		l.joinOperands(ctx, sep)
	}
}

func (l *Logical) joinOperands(ctx *Context, sep string) {
	for idx, op := range l.Operands {
		if idx > 0 {
			ctx.SQLf(" %s ", sep)
		}
		ctx.SQL("(")
		ctx.visit(op)
		ctx.SQL(")")
	}
}

// ArithmeticOp enumerates Arithmetic's operator.
type ArithmeticOp string

const (
	OpAdd   ArithmeticOp = "add"
	OpSub   ArithmeticOp = "sub"
	OpMul   ArithmeticOp = "mul"
	OpDiv   ArithmeticOp = "div"
	OpMod   ArithmeticOp = "mod"
	OpAbs   ArithmeticOp = "abs"
	OpCeil  ArithmeticOp = "ceil"
	OpFloor ArithmeticOp = "floor"
	OpRound ArithmeticOp = "round"
	OpTrunc ArithmeticOp = "trunc"
	OpPow   ArithmeticOp = "pow"
	OpSqrt  ArithmeticOp = "sqrt"
)

var arithmeticInfix = map[ArithmeticOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
}

var arithmeticFunc = map[ArithmeticOp]string{
	OpMod: "MOD", OpAbs: "ABS", OpCeil: "CEIL", OpFloor: "FLOOR",
	OpRound: "ROUND", OpTrunc: "TRUNC", OpPow: "POWER", OpSqrt: "SQRT",
}

// Arithmetic renders binary infix (`(l op r)`) or function-like
// (`FUNC(arg[, arg])`) arithmetic. Division does not guard against zero,
// matching Oracle semantics.
type Arithmetic struct {
	Op       ArithmeticOp
	Operands []Expr
}

func (a *Arithmetic) render(ctx *Context) {
	restore := ctx.EnterNumericReturn()
	defer restore()

	// field-path operands are read as NUMBER unless they carry their own type.
	visitNum := func(e Expr) {
		if fp, ok := e.(*FieldPath); ok && fp.Returning == "" {
			numeric := *fp
			numeric.Returning = oracleNumericType
			e = &numeric
		}
		ctx.visit(e)
	}

	if sym, ok := arithmeticInfix[a.Op]; ok && len(a.Operands) == 2 {
		ctx.SQL("(")
		visitNum(a.Operands[0])
		ctx.SQLf(" %s ", sym)
		visitNum(a.Operands[1])
		ctx.SQL(")")
		return
	}
	fn := arithmeticFunc[a.Op]
	ctx.SQLf("%s(", fn)
	for idx, op := range a.Operands {
		if idx > 0 {
			ctx.SQL(", ")
		}
		visitNum(op)
	}
	ctx.SQL(")")
}

// Cond renders `CASE WHEN <cond> THEN <then> ELSE <else> END`.
type Cond struct {
	If, Then, Else Expr
}

func (c *Cond) render(ctx *Context) {
	ctx.SQL("CASE WHEN ")
	ctx.visit(c.If)
	ctx.SQL(" THEN ")
	ctx.visit(c.Then)
	ctx.SQL(" ELSE ")
	ctx.visit(c.Else)
	ctx.SQL(" END")
}

// IfNull renders `COALESCE(<expr>, <replacement>)`. When Expr is a field
// path and Replacement is a scalar literal, Expr must be forced into
// JSON_VALUE ... RETURNING form matching the replacement's SQL type, or
// Oracle returns a JSON value NVL/COALESCE cannot compare against a scalar.
type IfNull struct {
	Expr        Expr
	Replacement Expr
}

func (n *IfNull) render(ctx *Context) {
	ctx.SQL("COALESCE(")
	restore := ctx.EnterNumericReturn()
	expr := n.Expr
	if fp, ok := expr.(*FieldPath); ok && fp.Returning == "" {
		if lit, ok := n.Replacement.(*Literal); ok && lit.Value != nil {
			typed := *fp
			typed.Returning = returningTypeFor(lit.Value)
			expr = &typed
		}
	}
	ctx.visit(expr)
	restore()
	ctx.SQL(", ")
	ctx.visit(n.Replacement)
	ctx.SQL(")")
}

// SwitchBranch is one `WHEN <cond> THEN <then>` arm of a Switch.
type SwitchBranch struct {
	Case Expr
	Then Expr
}

// Switch renders a chained `CASE WHEN ... THEN ... ELSE <default> END`.
type Switch struct {
	Branches []SwitchBranch
	Default  Expr
}

func (s *Switch) render(ctx *Context) {
	ctx.SQL("CASE")
	for _, b := range s.Branches {
		ctx.SQL(" WHEN ")
		ctx.visit(b.Case)
		ctx.SQL(" THEN ")
		ctx.visit(b.Then)
	}
	if s.Default != nil {
		ctx.SQL(" ELSE ")
		ctx.visit(s.Default)
	}
	ctx.SQL(" END")
}

// StringOp enumerates String's operator.
type StringOp string

const (
	StrConcat       StringOp = "concat"
	StrToLower      StringOp = "toLower"
	StrToUpper      StringOp = "toUpper"
	StrSubstr       StringOp = "substr"
	StrLenCP        StringOp = "strLenCP"
	StrTrim         StringOp = "trim"
	StrLTrim        StringOp = "ltrim"
	StrRTrim        StringOp = "rtrim"
	StrSplit        StringOp = "split"
	StrIndexOfCP    StringOp = "indexOfCP"
	StrRegexMatch   StringOp = "regexMatch"
	StrReplaceOne   StringOp = "replaceOne"
	StrReplaceAll   StringOp = "replaceAll"
	StrCaseCmp      StringOp = "strcasecmp"
)

// String renders a MongoDB string operator in its Oracle equivalent.
type String struct {
	Op   StringOp
	Args []Expr
}

func (s *String) render(ctx *Context) {
	switch s.Op {
	case StrConcat:
		for idx, a := range s.Args {
			if idx > 0 {
				ctx.SQL(" || ")
			}
			ctx.visit(a)
		}
	case StrToLower:
		ctx.SQL("LOWER(")
		ctx.visit(s.Args[0])
		ctx.SQL(")")
	case StrToUpper:
		ctx.SQL("UPPER(")
		ctx.visit(s.Args[0])
		ctx.SQL(")")
	case StrSubstr:
		// MongoDB is 0-based; Oracle SUBSTR is 1-based.
		ctx.SQL("SUBSTR(")
		ctx.visit(s.Args[0])
		ctx.SQL(", ")
		ctx.SQL("(")
		ctx.visit(s.Args[1])
		ctx.SQL(") + 1")
		if len(s.Args) > 2 {
			ctx.SQL(", ")
			ctx.visit(s.Args[2])
		}
		ctx.SQL(")")
	case StrLenCP:
		ctx.SQL("LENGTH(")
		ctx.visit(s.Args[0])
		ctx.SQL(")")
	case StrTrim:
		ctx.SQL("TRIM(")
		ctx.visit(s.Args[0])
		ctx.SQL(")")
	case StrLTrim:
		ctx.SQL("LTRIM(")
		ctx.visit(s.Args[0])
		ctx.SQL(")")
	case StrRTrim:
		ctx.SQL("RTRIM(")
		ctx.visit(s.Args[0])
		ctx.SQL(")")
	case StrSplit:
		ctx.SQL("(SELECT JSON_ARRAYAGG(REGEXP_SUBSTR(")
		ctx.visit(s.Args[0])
		ctx.SQL(", '[^' || ")
		ctx.visit(s.Args[1])
		ctx.SQL(" || ']+', 1, LEVEL)) FROM DUAL CONNECT BY REGEXP_SUBSTR(")
		ctx.visit(s.Args[0])
		ctx.SQL(", '[^' || ")
		ctx.visit(s.Args[1])
		ctx.SQL(" || ']+', 1, LEVEL) IS NOT NULL)")
	case StrIndexOfCP:
		ctx.SQL("(CASE WHEN INSTR(")
		ctx.visit(s.Args[0])
		ctx.SQL(", ")
		ctx.visit(s.Args[1])
		ctx.SQL(") = 0 THEN -1 ELSE INSTR(")
		ctx.visit(s.Args[0])
		ctx.SQL(", ")
		ctx.visit(s.Args[1])
		ctx.SQL(") - 1 END)")
	case StrRegexMatch:
		ctx.SQL("(CASE WHEN REGEXP_LIKE(")
		ctx.visit(s.Args[0])
		ctx.SQL(", ")
		ctx.visit(s.Args[1])
		ctx.SQL(") THEN 1 ELSE 0 END)")
	case StrReplaceOne:
		ctx.SQL("REGEXP_REPLACE(")
		ctx.visit(s.Args[0])
		ctx.SQL(", ")
		ctx.visit(s.Args[1])
		ctx.SQL(", ")
		ctx.visit(s.Args[2])
		ctx.SQL(", 1, 1)")
	case StrReplaceAll:
		ctx.SQL("REGEXP_REPLACE(")
		ctx.visit(s.Args[0])
		ctx.SQL(", ")
		ctx.visit(s.Args[1])
		ctx.SQL(", ")
		ctx.visit(s.Args[2])
		ctx.SQL(", 1, 0)")
	case StrCaseCmp:
		ctx.SQL("(CASE WHEN UPPER(")
		ctx.visit(s.Args[0])
		ctx.SQL(") = UPPER(")
		ctx.visit(s.Args[1])
		ctx.SQL(") THEN 0 WHEN UPPER(")
		ctx.visit(s.Args[0])
		ctx.SQL(") > UPPER(")
		ctx.visit(s.Args[1])
		ctx.SQL(") THEN 1 ELSE -1 END)")
	default:
		ctx.Warn(UnsupportedOperator, fmt.Sprintf("string operator %q not supported", s.Op))
		ctx.SQL("NULL")
	}
}

// DateOp enumerates Date's operator.
type DateOp string

const (
	DateYear      DateOp = "year"
	DateMonth     DateOp = "month"
	DateDayOfMon  DateOp = "dayOfMonth"
	DateHour      DateOp = "hour"
	DateMinute    DateOp = "minute"
	DateSecond    DateOp = "second"
	DateDayOfWeek DateOp = "dayOfWeek"
	DateDayOfYear DateOp = "dayOfYear"
	DateWeek      DateOp = "week"
)

var dateExtractPart = map[DateOp]string{
	DateYear: "YEAR", DateMonth: "MONTH", DateDayOfMon: "DAY",
	DateHour: "HOUR", DateMinute: "MINUTE", DateSecond: "SECOND",
}

const timestampFormat = `YYYY-MM-DD"T"HH24:MI:SS.FF3"Z"`

// Date renders a MongoDB date extraction operator. Date expressions always
// take the JSON_VALUE form of the field, never dot notation.
type Date struct {
	Op  DateOp
	Arg Expr
}

func (d *Date) render(ctx *Context) {
	restore := ctx.EnterNumericReturn()
	defer restore()

	toTS := func() {
		ctx.SQL("TO_TIMESTAMP(")
		ctx.visit(d.Arg)
		ctx.SQLf(", '%s')", timestampFormat)
	}

	switch d.Op {
	case DateYear, DateMonth, DateDayOfMon, DateHour, DateMinute, DateSecond:
		ctx.SQLf("EXTRACT(%s FROM ", dateExtractPart[d.Op])
		toTS()
		ctx.SQL(")")
	case DateDayOfWeek:
		ctx.SQL("TO_NUMBER(TO_CHAR(")
		toTS()
		ctx.SQL(", 'D'))")
	case DateDayOfYear:
		ctx.SQL("TO_NUMBER(TO_CHAR(")
		toTS()
		ctx.SQL(", 'DDD'))")
	case DateWeek:
		ctx.SQL("TO_NUMBER(TO_CHAR(")
		toTS()
		ctx.SQL(", 'IW'))")
	default:
		ctx.Warn(UnsupportedOperator, fmt.Sprintf("date operator %q not supported", d.Op))
		ctx.SQL("NULL")
	}
}

// ArrayOp enumerates Array's operator.
type ArrayOp string

const (
	ArrElemAt        ArrayOp = "arrayElemAt"
	ArrFirst         ArrayOp = "first"
	ArrLast          ArrayOp = "last"
	ArrSize          ArrayOp = "size"
	ArrIsArray       ArrayOp = "isArray"
	ArrFilter        ArrayOp = "filter"
	ArrMap           ArrayOp = "map"
	ArrConcatArrays  ArrayOp = "concatArrays"
	ArrReverseArray  ArrayOp = "reverseArray"
	ArrSlice         ArrayOp = "slice"
	ArrSetUnion      ArrayOp = "setUnion"
	ArrSetIntersect  ArrayOp = "setIntersection"
	ArrReduce        ArrayOp = "reduce"
)

// Array renders MongoDB array operators. $reduce is not fully supported:
// it renders NULL with a warning, per the open question on whether a
// recursive CTE should be attempted instead.
type Array struct {
	Op       ArrayOp
	Field    *FieldPath // the array-valued field, when Op addresses one directly
	Index    Expr       // for arrayElemAt/slice start
	SliceEnd Expr       // for slice end
	Extra    []Expr     // additional array operands, for concatArrays/setUnion/setIntersection
	Predicate Expr      // for $filter's "cond", rendered with "this" bound to val
	MapExpr   Expr      // for $map's "in", rendered with "this" bound to val
}

func (a *Array) render(ctx *Context) {
	base := "base"
	if a.Field != nil && a.Field.Alias != "" {
		base = a.Field.Alias
	}
	col := ctx.DataColumn()

	switch a.Op {
	case ArrElemAt, ArrFirst, ArrLast:
		idxExpr := "0"
		if a.Op == ArrLast {
			idxExpr = "last"
		}
		path := a.Field.Path.JSONPath()
		if a.Op == ArrElemAt {
			ctx.SQLf("JSON_VALUE(%s.%s,'%s[' || (", base, col, path)
			ctx.visit(a.Index)
			ctx.SQL(") || ']')")
			return
		}
		ctx.SQLf("JSON_VALUE(%s.%s,'%s[%s]')", base, col, path, idxExpr)
	case ArrSize:
		ctx.SQLf("JSON_VALUE(%s.%s,'%s.size()')", base, col, a.Field.Path.JSONPath())
	case ArrIsArray:
		ctx.SQLf("(CASE WHEN JSON_EXISTS(%s.%s,'%s[0]') THEN 1 ELSE 0 END)", base, col, a.Field.Path.JSONPath())
	case ArrSlice:
		ctx.SQLf("JSON_QUERY(%s.%s,'%s[%s to %s]')", base, col, a.Field.Path.JSONPath(), exprAsPathBound(a.Index), exprAsPathBound(a.SliceEnd))
	case ArrFilter, ArrMap:
		alias := ctx.NextAlias("arr")
		ctx.SQLf("(SELECT JSON_ARRAYAGG(%s.val) FROM JSON_TABLE(%s.%s,'%s[*]' COLUMNS(val JSON PATH '$', rn FOR ORDINALITY)) %s", alias, base, col, a.Field.Path.JSONPath(), alias)
		if a.Op == ArrFilter && a.Predicate != nil {
			ctx.SQLf(" WHERE ")
			ctx.visit(a.Predicate)
		}
		ctx.SQL(")")
	case ArrConcatArrays:
		alias := ctx.NextAlias("arr")
		ctx.SQLf("(SELECT JSON_ARRAYAGG(%s.val ORDER BY %s.rn) FROM (", alias, alias)
		ctx.SQLf("SELECT val, ROWNUM rn FROM JSON_TABLE(%s.%s,'%s[*]' COLUMNS(val JSON PATH '$'))", base, col, a.Field.Path.JSONPath())
		for _, extra := range a.Extra {
			if fp, ok := extra.(*FieldPath); ok {
				ctx.SQL(" UNION ALL ")
				ctx.SQLf("SELECT val, ROWNUM rn FROM JSON_TABLE(%s.%s,'%s[*]' COLUMNS(val JSON PATH '$'))", base, col, fp.Path.JSONPath())
			}
		}
		ctx.SQLf(") %s)", alias)
	case ArrReverseArray:
		alias := ctx.NextAlias("arr")
		ctx.SQLf("(SELECT JSON_ARRAYAGG(val ORDER BY rn DESC) FROM JSON_TABLE(%s.%s,'%s[*]' COLUMNS(val JSON PATH '$', rn FOR ORDINALITY)) %s)", base, col, a.Field.Path.JSONPath(), alias)
	case ArrSetUnion:
		ctx.SQL("(SELECT JSON_ARRAYAGG(DISTINCT val) FROM (")
		ctx.SQLf("SELECT val FROM JSON_TABLE(%s.%s,'%s[*]' COLUMNS(val JSON PATH '$'))", base, col, a.Field.Path.JSONPath())
		for _, extra := range a.Extra {
			if fp, ok := extra.(*FieldPath); ok {
				ctx.SQL(" UNION ")
				ctx.SQLf("SELECT val FROM JSON_TABLE(%s.%s,'%s[*]' COLUMNS(val JSON PATH '$'))", base, col, fp.Path.JSONPath())
			}
		}
		ctx.SQL("))")
	case ArrSetIntersect:
		ctx.SQL("(SELECT JSON_ARRAYAGG(val) FROM (")
		ctx.SQLf("SELECT val FROM JSON_TABLE(%s.%s,'%s[*]' COLUMNS(val JSON PATH '$'))", base, col, a.Field.Path.JSONPath())
		for _, extra := range a.Extra {
			if fp, ok := extra.(*FieldPath); ok {
				ctx.SQL(" INTERSECT ")
				ctx.SQLf("SELECT val FROM JSON_TABLE(%s.%s,'%s[*]' COLUMNS(val JSON PATH '$'))", base, col, fp.Path.JSONPath())
			}
		}
		ctx.SQL("))")
	case ArrReduce:
		ctx.Warn(UnsupportedCombination, "$reduce is not supported; emitting NULL")
		ctx.SQL("NULL")
	default:
		ctx.Warn(UnsupportedOperator, fmt.Sprintf("array operator %q not supported", a.Op))
		ctx.SQL("NULL")
	}
}

// exprAsPathBound renders a literal integer expression as a JSON path
// bound token ("2", "-1"); used only for $slice's start/end.
func exprAsPathBound(e Expr) string {
	if e == nil {
		return "last"
	}
	if lit, ok := e.(*Literal); ok {
		return fmt.Sprintf("%v", lit.Value)
	}
	return "last"
}

// TypeConversionOp enumerates TypeConversion's operator.
type TypeConversionOp string

const (
	ToInt    TypeConversionOp = "toInt"
	ToDouble TypeConversionOp = "toDouble"
	ToString TypeConversionOp = "toString"
	ToBool   TypeConversionOp = "toBool"
	TypeOf   TypeConversionOp = "type"
)

// TypeConversion renders MongoDB's $toInt/$toDouble/$toString/$toBool/$type.
type TypeConversion struct {
	Op  TypeConversionOp
	Arg Expr
}

func (t *TypeConversion) render(ctx *Context) {
	restore := ctx.EnterNumericReturn()
	switch t.Op {
	case ToInt:
		ctx.SQL("TRUNC(TO_NUMBER(")
		ctx.visit(t.Arg)
		ctx.SQL("))")
	case ToDouble:
		ctx.SQL("TO_BINARY_DOUBLE(")
		ctx.visit(t.Arg)
		ctx.SQL(")")
	case ToString:
		ctx.SQL("TO_CHAR(")
		ctx.visit(t.Arg)
		ctx.SQL(")")
	case ToBool:
		ctx.SQL("(CASE WHEN TO_CHAR(")
		ctx.visit(t.Arg)
		ctx.SQL(") IN ('0','false') THEN 'false' ELSE 'true' END)")
	case TypeOf:
		ctx.SQL("(CASE WHEN ")
		ctx.visit(t.Arg)
		ctx.SQL(" IS NULL THEN 'null' WHEN TO_CHAR(")
		ctx.visit(t.Arg)
		ctx.SQL(") IN ('true','false') THEN 'bool' WHEN REGEXP_LIKE(TO_CHAR(")
		ctx.visit(t.Arg)
		ctx.SQL("), '^-?[0-9]+$') THEN 'int' WHEN REGEXP_LIKE(TO_CHAR(")
		ctx.visit(t.Arg)
		ctx.SQL("), '^-?[0-9]*\\.[0-9]+$') THEN 'double' ELSE 'string' END)")
	default:
		ctx.Warn(UnsupportedOperator, fmt.Sprintf("type conversion %q not supported", t.Op))
		ctx.SQL("NULL")
	}
	restore()
}

// AccumulatorOp enumerates Accumulator's operator.
type AccumulatorOp string

const (
	AccSum        AccumulatorOp = "sum"
	AccAvg        AccumulatorOp = "avg"
	AccCount      AccumulatorOp = "count"
	AccMin        AccumulatorOp = "min"
	AccMax        AccumulatorOp = "max"
	AccFirst      AccumulatorOp = "first"
	AccLast       AccumulatorOp = "last"
	AccPush       AccumulatorOp = "push"
	AccAddToSet   AccumulatorOp = "addToSet"
	AccStdDevPop  AccumulatorOp = "stdDevPop"
	AccStdDevSamp AccumulatorOp = "stdDevSamp"
)

// Accumulator renders a $group accumulator. $first/$last fall back to
// MIN/MAX when no ambient sort precedes the group - a documented lossy
// approximation over heterogeneous or non-monotonic values - and upgrade
// to MIN/MAX ... KEEP (DENSE_RANK FIRST|LAST ORDER BY ...) when SortKey is
// supplied by the stage that parsed the preceding $sort.
type Accumulator struct {
	Op      AccumulatorOp
	Arg     Expr   // nil for $count
	SortKey []SortField // non-nil only for first/last when an ambient $sort precedes the $group
}

func (a *Accumulator) render(ctx *Context) {
	switch a.Op {
	case AccCount:
		ctx.SQL("COUNT(*)")
	case AccSum:
		ctx.SQL("SUM(")
		a.renderNumericArg(ctx)
		ctx.SQL(")")
	case AccAvg:
		ctx.SQL("AVG(")
		a.renderNumericArg(ctx)
		ctx.SQL(")")
	case AccMin:
		ctx.SQL("MIN(")
		a.renderNumericArg(ctx)
		ctx.SQL(")")
	case AccMax:
		ctx.SQL("MAX(")
		a.renderNumericArg(ctx)
		ctx.SQL(")")
	case AccPush:
		ctx.SQL("JSON_ARRAYAGG(")
		ctx.visit(a.Arg)
		ctx.SQL(")")
	case AccAddToSet:
		ctx.SQL("JSON_ARRAYAGG(DISTINCT ")
		ctx.visit(a.Arg)
		ctx.SQL(")")
	case AccStdDevPop:
		ctx.SQL("STDDEV_POP(")
		a.renderNumericArg(ctx)
		ctx.SQL(")")
	case AccStdDevSamp:
		ctx.SQL("STDDEV_SAMP(")
		a.renderNumericArg(ctx)
		ctx.SQL(")")
	case AccFirst, AccLast:
		fn := "MIN"
		if a.Op == AccLast {
			fn = "MAX"
		}
		ctx.SQLf("%s(", fn)
		ctx.visit(a.Arg)
		if len(a.SortKey) > 0 {
			rank := "FIRST"
			if a.Op == AccLast {
				rank = "LAST"
			}
			ctx.SQLf(") KEEP (DENSE_RANK %s ORDER BY ", rank)
			for i, sk := range a.SortKey {
				if i > 0 {
					ctx.SQL(", ")
				}
				ctx.visit(sk.Expr)
				if sk.Descending {
					ctx.SQL(" DESC")
				} else {
					ctx.SQL(" ASC")
				}
			}
			ctx.SQL(")")
		} else {
			ctx.Warn("LossyApproximation", "$first/$last without a preceding $sort renders as MIN/MAX, which is lossy for heterogeneous or non-monotonic values")
			ctx.SQL(")")
		}
	default:
		ctx.Warn(UnsupportedOperator, fmt.Sprintf("accumulator %q not supported", a.Op))
		ctx.SQL("NULL")
	}
}

func (a *Accumulator) renderNumericArg(ctx *Context) {
	if fp, ok := a.Arg.(*FieldPath); ok {
		numeric := *fp
		if numeric.Returning == "" {
			numeric.Returning = oracleNumericType
		}
		numeric.render(ctx)
		return
	}
	ctx.visit(a.Arg)
}

// MergeObjects renders $mergeObjects as nested JSON_MERGEPATCH over the
// operands, later operands winning on key collision.
type MergeObjects struct {
	Operands []Expr
}

func (m *MergeObjects) render(ctx *Context) {
	ctx.Warn("Emulated", "$mergeObjects is emulated via JSON_MERGEPATCH and may not exactly reproduce MongoDB's merge order for nested documents")
	ctx.SQL("JSON_MERGEPATCH(")
	for idx, op := range m.Operands {
		if idx > 0 {
			ctx.SQL(", ")
		}
		ctx.visit(op)
	}
	ctx.SQL(")")
}

// SortField is one `field ASC|DESC` entry, shared by Sort stages and the
// $first/$last ambient-sort upgrade.
type SortField struct {
	Expr       Expr
	Descending bool
}

// visit delegates rendering to a node's own render method. It is a Context
// method so the renderer (renderer.go) can render expressions through it.
func (c *Context) visit(node Expr) {
	node.render(c)
}
