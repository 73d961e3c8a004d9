package oraclesql

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ExprParser lifts loosely typed filter/expression documents into Expr AST
// nodes. It never emits SQL; Context is only touched at render time.
type ExprParser struct {
	// Alias is the document alias field references resolve against
	// ("base" by default, a Lookup/Unwind alias inside a sub-scope).
	Alias string
	// Strict, when true, makes an unknown operator a parse error. When
	// false, the operator is replaced by a NULL literal; no warning is
	// recorded for it.
	Strict bool
}

func NewExprParser(alias string, strict bool) *ExprParser {
	if alias == "" {
		alias = "base"
	}
	return &ExprParser{Alias: alias, Strict: strict}
}

// ParseFilter parses a $match-style filter document into a boolean Expr.
// Keys starting with $ are logical operators ($and/$or/$not/$nor); every
// other key is a field condition, a scalar value being sugar for $eq.
// Multiple top-level keys are implicitly ANDed. An empty document is
// rejected with an error, which Translate reports as
// InvalidPipelineStructure.
func (p *ExprParser) ParseFilter(doc bson.D) (Expr, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("empty filter document")
	}
	conditions := make([]Expr, 0, len(doc))
	for _, elem := range doc {
		cond, err := p.parseFilterElement(elem.Key, elem.Value)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}
	if len(conditions) == 1 {
		return conditions[0], nil
	}
	return &Logical{Op: OpAnd, Operands: conditions}, nil
}

func (p *ExprParser) parseFilterElement(key string, value any) (Expr, error) {
	switch key {
	case "$and":
		return p.parseLogicalArray(OpAnd, value)
	case "$or":
		return p.parseLogicalArray(OpOr, value)
	case "$nor":
		return p.parseLogicalArray(OpNor, value)
	case "$not":
		sub, err := p.parseFilterValue(value)
		if err != nil {
			return nil, err
		}
		return &Logical{Op: OpNot, Operands: []Expr{sub}}, nil
	}

	// A sub-document whose keys all start with $ is a conjunction of
	// per-operator conditions on the same field.
	if sub, ok := value.(bson.D); ok && len(sub) > 0 && allOperatorKeys(sub) {
		conds := make([]Expr, 0, len(sub))
		for _, op := range sub {
			cond, err := p.parseOperatorCondition(key, op.Key, op.Value)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
		}
		if len(conds) == 1 {
			return conds[0], nil
		}
		return &Logical{Op: OpAnd, Operands: conds}, nil
	}

	// A scalar value is sugar for $eq.
	return p.parseOperatorCondition(key, "$eq", value)
}

func (p *ExprParser) parseFilterValue(value any) (Expr, error) {
	switch v := value.(type) {
	case bson.D:
		return p.ParseFilter(v)
	default:
		return nil, fmt.Errorf("expected a filter document, got %T", value)
	}
}

func (p *ExprParser) parseLogicalArray(op LogicalOp, value any) (Expr, error) {
	arr, ok := value.(bson.A)
	if !ok {
		return nil, fmt.Errorf("%s expects an array of filter documents", op)
	}
	operands := make([]Expr, 0, len(arr))
	for _, item := range arr {
		sub, ok := item.(bson.D)
		if !ok {
			return nil, fmt.Errorf("%s operand must be a filter document", op)
		}
		parsed, err := p.ParseFilter(sub)
		if err != nil {
			return nil, err
		}
		operands = append(operands, parsed)
	}
	return &Logical{Op: op, Operands: operands}, nil
}

func allOperatorKeys(d bson.D) bool {
	for _, e := range d {
		if len(e.Key) == 0 || e.Key[0] != '$' {
			return false
		}
	}
	return true
}

// parseOperatorCondition builds the Expr for one field/operator/value
// triple, inferring the field's RETURNING type from value's Go type per
// the documented rule: numeric -> NUMBER, boolean -> VARCHAR2.
func (p *ExprParser) parseOperatorCondition(field, op string, value any) (Expr, error) {
	fp := NewFieldPath(field, p.Alias)

	switch op {
	case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte":
		cmp := map[string]ComparisonOp{
			"$eq": OpEq, "$ne": OpNe, "$gt": OpGt, "$gte": OpGte, "$lt": OpLt, "$lte": OpLte,
		}[op]
		if value == nil {
			return &Comparison{Op: cmp, LHS: fp, RHS: &Literal{Value: nil}}, nil
		}
		fp.Returning = returningTypeFor(value)
		rhs := p.literalFor(value)
		return &Comparison{Op: cmp, LHS: fp, RHS: rhs}, nil
	case "$in", "$nin":
		arr, ok := value.(bson.A)
		if !ok {
			return nil, fmt.Errorf("%s expects an array", op)
		}
		if len(arr) > 0 {
			fp.Returning = returningTypeFor(arr[0])
		}
		values := make([]Expr, 0, len(arr))
		for _, v := range arr {
			values = append(values, p.literalFor(v))
		}
		return &In{Field: fp, Values: values, Negated: op == "$nin"}, nil
	case "$exists":
		should, _ := value.(bool)
		return &Exists{Field: fp, ShouldExist: should}, nil
	case "$type":
		fp2 := NewFieldPath(field, p.Alias)
		return &Comparison{Op: OpEq, LHS: &TypeConversion{Op: TypeOf, Arg: fp2}, RHS: p.literalFor(value)}, nil
	case "$regex":
		pattern := fmt.Sprintf("%v", value)
		return &String{Op: StrRegexMatch, Args: []Expr{fp, &Literal{Value: pattern}}}, nil
	case "$mod":
		arr, ok := value.(bson.A)
		if !ok || len(arr) != 2 {
			return nil, fmt.Errorf("$mod expects a 2-element array")
		}
		fp.Returning = oracleNumericType
		divisor := p.literalFor(arr[0])
		remainder := p.literalFor(arr[1])
		return &Comparison{Op: OpEq, LHS: &Arithmetic{Op: OpMod, Operands: []Expr{fp, divisor}}, RHS: remainder}, nil
	case "$size":
		sizeFP := &FieldPath{Path: appendSizeSentinel(ParsePath(field)), Alias: p.Alias}
		return &Comparison{Op: OpEq, LHS: sizeFP, RHS: p.literalFor(value)}, nil
	case "$all":
		arr, ok := value.(bson.A)
		if !ok {
			return nil, fmt.Errorf("$all expects an array")
		}
		conds := make([]Expr, 0, len(arr))
		for _, v := range arr {
			conds = append(conds, &Exists{Field: fp, ShouldExist: true}, &Comparison{Op: OpEq, LHS: fp, RHS: p.literalFor(v)})
		}
		return &Logical{Op: OpAnd, Operands: conds}, nil
	case "$elemMatch":
		sub, ok := value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("$elemMatch expects a document")
		}
		if _, err := p.ParseFilter(sub); err != nil {
			return nil, err
		}
		// Coarse approximation: existence only, not a per-element predicate
		// match. Exact semantics would need a correlated JSON_TABLE subquery.
		return &Exists{Field: fp, ShouldExist: true}, nil
	default:
		if p.Strict {
			return nil, fmt.Errorf("unsupported operator: %s", op)
		}
		return &Literal{Value: nil}, nil
	}
}

func appendSizeSentinel(p CanonicalPath) CanonicalPath {
	segs := make([]PathSegment, len(p.Segments), len(p.Segments)+1)
	copy(segs, p.Segments)
	segs = append(segs, PathSegment{Key: sizeSentinelKey})
	return CanonicalPath{Segments: segs}
}

// literalFor builds the Expr for a raw decoded value: a "$field" string
// becomes a FieldPath, everything else becomes a Literal (bson.A/bson.D
// operator documents are handled by ParseExpression, not here, since a
// filter's comparison RHS is always scalar in the spec's data model).
func (p *ExprParser) literalFor(value any) Expr {
	if s, ok := value.(string); ok && len(s) > 0 && s[0] == '$' {
		return NewFieldPath(s, p.Alias)
	}
	if b, ok := value.(bool); ok {
		return &Literal{Value: boolLiteralString(b)}
	}
	return &Literal{Value: value}
}

// ParseExpression parses a general (non-filter) MongoDB expression value -
// the kind found in $project/$addFields/$group accumulator arguments/$cond
// branches - into an Expr. A bare "$field" string is a FieldPath; a scalar
// is a Literal; a single-key bson.D whose key starts with $ is an operator
// expression; everything else is a literal (including bson.A/bson.D that
// are not operator-shaped, which round-trip as opaque JSON values).
func (p *ExprParser) ParseExpression(value any) (Expr, error) {
	switch v := value.(type) {
	case string:
		if len(v) > 0 && v[0] == '$' {
			return NewFieldPath(v, p.Alias), nil
		}
		return &Literal{Value: v}, nil
	case bson.D:
		if len(v) == 1 && len(v[0].Key) > 0 && v[0].Key[0] == '$' {
			return p.parseOperatorExpression(v[0].Key, v[0].Value)
		}
		return &Literal{Value: v}, nil
	case nil:
		return &Literal{Value: nil}, nil
	default:
		return &Literal{Value: v}, nil
	}
}

// parseArgs parses an operator's value as either a single expression or an
// array of expressions - MongoDB accepts both shapes for n-ary operators.
func (p *ExprParser) parseArgs(value any) ([]Expr, error) {
	arr, ok := value.(bson.A)
	if !ok {
		single, err := p.ParseExpression(value)
		if err != nil {
			return nil, err
		}
		return []Expr{single}, nil
	}
	out := make([]Expr, 0, len(arr))
	for _, item := range arr {
		e, err := p.ParseExpression(item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func getMapValue(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func (p *ExprParser) parseOperatorExpression(op string, value any) (Expr, error) {
	switch op {
	case "$add", "$subtract", "$multiply", "$divide", "$mod", "$pow":
		args, err := p.parseArgs(value)
		if err != nil {
			return nil, err
		}
		arOp := map[string]ArithmeticOp{
			"$add": OpAdd, "$subtract": OpSub, "$multiply": OpMul, "$divide": OpDiv, "$mod": OpMod, "$pow": OpPow,
		}[op]
		return &Arithmetic{Op: arOp, Operands: args}, nil
	case "$abs", "$ceil", "$floor", "$round", "$trunc", "$sqrt":
		args, err := p.parseArgs(value)
		if err != nil {
			return nil, err
		}
		arOp := map[string]ArithmeticOp{
			"$abs": OpAbs, "$ceil": OpCeil, "$floor": OpFloor, "$round": OpRound, "$trunc": OpTrunc, "$sqrt": OpSqrt,
		}[op]
		return &Arithmetic{Op: arOp, Operands: args}, nil
	case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte":
		arr, ok := value.(bson.A)
		if !ok || len(arr) != 2 {
			return nil, fmt.Errorf("%s expects a 2-element array", op)
		}
		lhs, err := p.ParseExpression(arr[0])
		if err != nil {
			return nil, err
		}
		rhs, err := p.ParseExpression(arr[1])
		if err != nil {
			return nil, err
		}
		cmp := map[string]ComparisonOp{
			"$eq": OpEq, "$ne": OpNe, "$gt": OpGt, "$gte": OpGte, "$lt": OpLt, "$lte": OpLte,
		}[op]
		return &Comparison{Op: cmp, LHS: lhs, RHS: rhs}, nil
	case "$and", "$or":
		args, err := p.parseArgs(value)
		if err != nil {
			return nil, err
		}
		lop := OpAnd
		if op == "$or" {
			lop = OpOr
		}
		return &Logical{Op: lop, Operands: args}, nil
	case "$not":
		args, err := p.parseArgs(value)
		if err != nil {
			return nil, err
		}
		return &Logical{Op: OpNot, Operands: args}, nil
	case "$cond":
		return p.parseCond(value)
	case "$ifNull":
		args, err := p.parseArgs(value)
		if err != nil || len(args) < 2 {
			return nil, fmt.Errorf("$ifNull expects [expr, replacement]")
		}
		return &IfNull{Expr: args[0], Replacement: args[1]}, nil
	case "$switch":
		return p.parseSwitch(value)
	case "$concat", "$split", "$strcasecmp":
		args, err := p.parseArgs(value)
		if err != nil {
			return nil, err
		}
		strOp := map[string]StringOp{"$concat": StrConcat, "$split": StrSplit, "$strcasecmp": StrCaseCmp}[op]
		return &String{Op: strOp, Args: args}, nil
	case "$toLower", "$toUpper", "$strLenCP", "$trim", "$ltrim", "$rtrim":
		arg, err := p.ParseExpression(value)
		if err != nil {
			return nil, err
		}
		strOp := map[string]StringOp{
			"$toLower": StrToLower, "$toUpper": StrToUpper, "$strLenCP": StrLenCP,
			"$trim": StrTrim, "$ltrim": StrLTrim, "$rtrim": StrRTrim,
		}[op]
		return &String{Op: strOp, Args: []Expr{arg}}, nil
	case "$substr", "$substrCP":
		args, err := p.parseArgs(value)
		if err != nil {
			return nil, err
		}
		return &String{Op: StrSubstr, Args: args}, nil
	case "$indexOfCP":
		args, err := p.parseArgs(value)
		if err != nil {
			return nil, err
		}
		return &String{Op: StrIndexOfCP, Args: args}, nil
	case "$regexMatch":
		d, ok := value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("$regexMatch expects a document")
		}
		inputVal, _ := getMapValue(d, "input")
		regexVal, _ := getMapValue(d, "regex")
		input, err := p.ParseExpression(inputVal)
		if err != nil {
			return nil, err
		}
		regex, err := p.ParseExpression(regexVal)
		if err != nil {
			return nil, err
		}
		return &String{Op: StrRegexMatch, Args: []Expr{input, regex}}, nil
	case "$replaceOne", "$replaceAll":
		d, ok := value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("%s expects a document", op)
		}
		inputVal, _ := getMapValue(d, "input")
		findVal, _ := getMapValue(d, "find")
		replVal, _ := getMapValue(d, "replacement")
		input, err := p.ParseExpression(inputVal)
		if err != nil {
			return nil, err
		}
		find, err := p.ParseExpression(findVal)
		if err != nil {
			return nil, err
		}
		repl, err := p.ParseExpression(replVal)
		if err != nil {
			return nil, err
		}
		strOp := StrReplaceOne
		if op == "$replaceAll" {
			strOp = StrReplaceAll
		}
		return &String{Op: strOp, Args: []Expr{input, find, repl}}, nil
	case "$year", "$month", "$dayOfMonth", "$hour", "$minute", "$second", "$dayOfWeek", "$dayOfYear", "$week":
		arg, err := p.ParseExpression(value)
		if err != nil {
			return nil, err
		}
		dateOp := map[string]DateOp{
			"$year": DateYear, "$month": DateMonth, "$dayOfMonth": DateDayOfMon,
			"$hour": DateHour, "$minute": DateMinute, "$second": DateSecond,
			"$dayOfWeek": DateDayOfWeek, "$dayOfYear": DateDayOfYear, "$week": DateWeek,
		}[op]
		return &Date{Op: dateOp, Arg: arg}, nil
	case "$arrayElemAt":
		arr, ok := value.(bson.A)
		if !ok || len(arr) != 2 {
			return nil, fmt.Errorf("$arrayElemAt expects a 2-element array")
		}
		fieldStr, _ := arr[0].(string)
		idx, err := p.ParseExpression(arr[1])
		if err != nil {
			return nil, err
		}
		return &Array{Op: ArrElemAt, Field: NewFieldPath(fieldStr, p.Alias), Index: idx}, nil
	case "$first", "$last":
		fieldStr := asFieldRef(value)
		arrOp := ArrFirst
		if op == "$last" {
			arrOp = ArrLast
		}
		return &Array{Op: arrOp, Field: NewFieldPath(fieldStr, p.Alias)}, nil
	case "$size":
		fieldStr := asFieldRef(value)
		return &Array{Op: ArrSize, Field: NewFieldPath(fieldStr, p.Alias)}, nil
	case "$isArray":
		fieldStr := asFieldRef(value)
		return &Array{Op: ArrIsArray, Field: NewFieldPath(fieldStr, p.Alias)}, nil
	case "$slice":
		arr, ok := value.(bson.A)
		if !ok || len(arr) < 2 {
			return nil, fmt.Errorf("$slice expects [array, n] or [array, pos, n]")
		}
		fieldStr, _ := arr[0].(string)
		start, err := p.ParseExpression(arr[1])
		if err != nil {
			return nil, err
		}
		var end Expr
		if len(arr) > 2 {
			end, err = p.ParseExpression(arr[2])
			if err != nil {
				return nil, err
			}
		}
		return &Array{Op: ArrSlice, Field: NewFieldPath(fieldStr, p.Alias), Index: start, SliceEnd: end}, nil
	case "$concatArrays", "$setUnion", "$setIntersection":
		arr, ok := value.(bson.A)
		if !ok || len(arr) == 0 {
			return nil, fmt.Errorf("%s expects a non-empty array", op)
		}
		firstStr := asFieldRef(arr[0])
		extra := make([]Expr, 0, len(arr)-1)
		for _, item := range arr[1:] {
			extra = append(extra, NewFieldPath(asFieldRef(item), p.Alias))
		}
		arrOp := map[string]ArrayOp{
			"$concatArrays": ArrConcatArrays, "$setUnion": ArrSetUnion, "$setIntersection": ArrSetIntersect,
		}[op]
		return &Array{Op: arrOp, Field: NewFieldPath(firstStr, p.Alias), Extra: extra}, nil
	case "$reverseArray":
		fieldStr := asFieldRef(value)
		return &Array{Op: ArrReverseArray, Field: NewFieldPath(fieldStr, p.Alias)}, nil
	case "$filter", "$map":
		d, ok := value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("%s expects a document", op)
		}
		inputVal, _ := getMapValue(d, "input")
		fieldStr := asFieldRef(inputVal)
		node := &Array{Field: NewFieldPath(fieldStr, p.Alias)}
		if op == "$filter" {
			node.Op = ArrFilter
			condVal, _ := getMapValue(d, "cond")
			condExpr, err := p.ParseExpression(condVal)
			if err != nil {
				return nil, err
			}
			node.Predicate = condExpr
		} else {
			node.Op = ArrMap
			inExpr, _ := getMapValue(d, "in")
			mapped, err := p.ParseExpression(inExpr)
			if err != nil {
				return nil, err
			}
			node.MapExpr = mapped
		}
		return node, nil
	case "$reduce":
		return &Array{Op: ArrReduce}, nil
	case "$toInt":
		arg, err := p.ParseExpression(value)
		if err != nil {
			return nil, err
		}
		return &TypeConversion{Op: ToInt, Arg: arg}, nil
	case "$toDouble":
		arg, err := p.ParseExpression(value)
		if err != nil {
			return nil, err
		}
		return &TypeConversion{Op: ToDouble, Arg: arg}, nil
	case "$toString":
		arg, err := p.ParseExpression(value)
		if err != nil {
			return nil, err
		}
		return &TypeConversion{Op: ToString, Arg: arg}, nil
	case "$toBool":
		arg, err := p.ParseExpression(value)
		if err != nil {
			return nil, err
		}
		return &TypeConversion{Op: ToBool, Arg: arg}, nil
	case "$type":
		arg, err := p.ParseExpression(value)
		if err != nil {
			return nil, err
		}
		return &TypeConversion{Op: TypeOf, Arg: arg}, nil
	case "$mergeObjects":
		args, err := p.parseArgs(value)
		if err != nil {
			return nil, err
		}
		return &MergeObjects{Operands: args}, nil
	default:
		if p.Strict {
			return nil, fmt.Errorf("unsupported operator: %s", op)
		}
		return &Literal{Value: nil}, nil
	}
}

func asFieldRef(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

func (p *ExprParser) parseCond(value any) (Expr, error) {
	switch v := value.(type) {
	case bson.A:
		if len(v) != 3 {
			return nil, fmt.Errorf("$cond array form expects 3 elements")
		}
		ifE, err := p.ParseExpression(v[0])
		if err != nil {
			return nil, err
		}
		thenE, err := p.ParseExpression(v[1])
		if err != nil {
			return nil, err
		}
		elseE, err := p.ParseExpression(v[2])
		if err != nil {
			return nil, err
		}
		return &Cond{If: ifFilterOrExpr(p, v[0], ifE), Then: thenE, Else: elseE}, nil
	case bson.D:
		ifVal, _ := getMapValue(v, "if")
		thenVal, _ := getMapValue(v, "then")
		elseVal, _ := getMapValue(v, "else")
		thenE, err := p.ParseExpression(thenVal)
		if err != nil {
			return nil, err
		}
		elseE, err := p.ParseExpression(elseVal)
		if err != nil {
			return nil, err
		}
		ifE, err := p.ParseExpression(ifVal)
		if err != nil {
			return nil, err
		}
		return &Cond{If: ifFilterOrExpr(p, ifVal, ifE), Then: thenE, Else: elseE}, nil
	default:
		return nil, fmt.Errorf("$cond expects an array or document")
	}
}

// ifFilterOrExpr upgrades a $cond "if" branch to a filter-style boolean
// parse when it is shaped like a filter document ({field: {$gt: ...}})
// rather than an operator expression ({$gt: [...]})  both are valid
// MongoDB shapes for a boolean test inside $cond.
func ifFilterOrExpr(p *ExprParser, raw any, fallback Expr) Expr {
	d, ok := raw.(bson.D)
	if !ok || len(d) == 0 {
		return fallback
	}
	if d[0].Key != "" && d[0].Key[0] == '$' {
		return fallback // already an operator expression, handled above
	}
	if parsed, err := p.ParseFilter(d); err == nil {
		return parsed
	}
	return fallback
}

func (p *ExprParser) parseSwitch(value any) (Expr, error) {
	d, ok := value.(bson.D)
	if !ok {
		return nil, fmt.Errorf("$switch expects a document")
	}
	branchesVal, _ := getMapValue(d, "branches")
	defaultVal, hasDefault := getMapValue(d, "default")
	branchesArr, ok := branchesVal.(bson.A)
	if !ok {
		return nil, fmt.Errorf("$switch.branches expects an array")
	}
	branches := make([]SwitchBranch, 0, len(branchesArr))
	for _, item := range branchesArr {
		bd, ok := item.(bson.D)
		if !ok {
			return nil, fmt.Errorf("$switch branch expects a document")
		}
		caseVal, _ := getMapValue(bd, "case")
		thenVal, _ := getMapValue(bd, "then")
		caseE, err := p.ParseExpression(caseVal)
		if err != nil {
			return nil, err
		}
		thenE, err := p.ParseExpression(thenVal)
		if err != nil {
			return nil, err
		}
		branches = append(branches, SwitchBranch{Case: ifFilterOrExpr(p, caseVal, caseE), Then: thenE})
	}
	var def Expr
	if hasDefault {
		var err error
		def, err = p.ParseExpression(defaultVal)
		if err != nil {
			return nil, err
		}
	}
	return &Switch{Branches: branches, Default: def}, nil
}

// ParseAccumulator parses one $group output field's accumulator document,
// e.g. {$sum: "$amount"} or {$count: {}}.
func (p *ExprParser) ParseAccumulator(value bson.D) (*Accumulator, error) {
	if len(value) != 1 {
		return nil, fmt.Errorf("accumulator expects exactly one operator")
	}
	op := value[0].Key
	accOp, ok := map[string]AccumulatorOp{
		"$sum": AccSum, "$avg": AccAvg, "$count": AccCount, "$min": AccMin, "$max": AccMax,
		"$first": AccFirst, "$last": AccLast, "$push": AccPush, "$addToSet": AccAddToSet,
		"$stdDevPop": AccStdDevPop, "$stdDevSamp": AccStdDevSamp,
	}[op]
	if !ok {
		if p.Strict {
			return nil, fmt.Errorf("unsupported accumulator: %s", op)
		}
		return &Accumulator{Op: AccCount}, nil
	}
	if accOp == AccCount {
		return &Accumulator{Op: AccCount}, nil
	}
	arg, err := p.ParseExpression(value[0].Value)
	if err != nil {
		return nil, err
	}
	return &Accumulator{Op: accOp, Arg: arg}, nil
}
