package oraclesql

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// StageParser dispatches each stage keyword to a builder that validates
// its document shape, recursively invokes the Expression Parser, assigns
// fresh aliases through the shared Context, and constructs the Stage node.
// A StageParser is created per translation; its alias allocation comes
// from the Context it is given, so nothing here is process-wide state.
type StageParser struct {
	ctx    *Context
	Strict bool

	// pendingSort carries the most recently parsed $sort, consumed by an
	// immediately following $group to upgrade $first/$last to
	// KEEP (DENSE_RANK ...) instead of the lossy MIN/MAX fallback.
	pendingSort []SortField
}

func NewStageParser(ctx *Context, strict bool) *StageParser {
	return &StageParser{ctx: ctx, Strict: strict}
}

// ParsePipeline parses an ordered array of stage documents into Stage AST
// nodes, in order.
func (sp *StageParser) ParsePipeline(arr bson.A) ([]Stage, error) {
	stages := make([]Stage, 0, len(arr))
	for _, item := range arr {
		doc, ok := item.(bson.D)
		if !ok || len(doc) != 1 {
			return nil, fmt.Errorf("stage document must have exactly one key, got %#v", item)
		}
		stage, err := sp.parseStage(doc[0].Key, doc[0].Value)
		if err != nil {
			return nil, err
		}
		if stage == nil {
			continue // lenient-mode sentinel: warning already recorded
		}
		if _, isSort := stage.(*Sort); !isSort {
			sp.pendingSort = nil
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

func (sp *StageParser) parseStage(key string, value any) (Stage, error) {
	switch key {
	case "$match":
		return sp.parseMatch(value)
	case "$group":
		return sp.parseGroup(value)
	case "$project":
		return sp.parseProject(value)
	case "$addFields", "$set":
		return sp.parseAddFields(value)
	case "$sort":
		return sp.parseSort(value)
	case "$limit":
		return sp.parseLimit(value)
	case "$skip":
		return sp.parseSkip(value)
	case "$unwind":
		return sp.parseUnwind(value)
	case "$lookup":
		return sp.parseLookup(value)
	case "$unionWith":
		return sp.parseUnionWith(value)
	case "$bucket":
		return sp.parseBucket(value)
	case "$bucketAuto":
		return sp.parseBucketAuto(value)
	case "$facet":
		return sp.parseFacet(value)
	case "$graphLookup":
		return sp.parseGraphLookup(value)
	case "$setWindowFields":
		return sp.parseSetWindowFields(value)
	case "$redact":
		return sp.parseRedact(value)
	case "$sample":
		return sp.parseSample(value)
	case "$count":
		name, _ := value.(string)
		if name == "" {
			return nil, fmt.Errorf("$count expects a non-empty output field name")
		}
		return &Count{OutputField: name}, nil
	case "$replaceRoot":
		return sp.parseReplaceRoot(value, "newRoot")
	case "$replaceWith":
		return sp.parseReplaceWithExpr(value)
	case "$merge":
		return sp.parseMerge(value)
	case "$out":
		return sp.parseOut(value)
	case "$sortByCount":
		return sp.parseSortByCount(value)
	case "$geoNear":
		sp.ctx.Warn("ClientSideOnly", "$geoNear has no direct Oracle spatial analogue (SDO_GEOMETRY uses a different geometry model); reported as client-side only")
		sp.ctx.Capability("$geoNear", "ClientSideOnly")
		return nil, nil
	case "$fill":
		sp.ctx.Warn("Unsupported", "$fill (gap filling) has no direct Oracle analogue without a calendar table")
		sp.ctx.Capability("$fill", "Unsupported")
		return nil, nil
	case "$densify":
		sp.ctx.Warn("Unsupported", "$densify (time-series densification) has no direct Oracle analogue without a calendar table")
		sp.ctx.Capability("$densify", "Unsupported")
		return nil, nil
	default:
		if sp.Strict {
			return nil, fmt.Errorf("unsupported stage: %s", key)
		}
		sp.ctx.Warn(UnsupportedOperator, fmt.Sprintf("stage %q not supported; omitted", key))
		sp.ctx.Capability(key, "Unsupported")
		return nil, nil
	}
}

func (sp *StageParser) parseMatch(value any) (Stage, error) {
	doc, ok := value.(bson.D)
	if !ok || len(doc) == 0 {
		return nil, fmt.Errorf("$match requires a non-empty filter document")
	}
	filter, err := NewExprParser("base", sp.Strict).ParseFilter(doc)
	if err != nil {
		return nil, err
	}
	sp.ctx.Capability("$match", "FullSupport")
	return &Match{Filter: filter}, nil
}

func (sp *StageParser) parseGroup(value any) (Stage, error) {
	doc, ok := value.(bson.D)
	if !ok {
		return nil, fmt.Errorf("$group requires a document")
	}
	idVal, hasID := getMapValue(doc, "_id")
	if !hasID {
		return nil, fmt.Errorf("$group requires an _id")
	}
	key, err := sp.parseGroupKey(idVal)
	if err != nil {
		return nil, err
	}

	exprParser := NewExprParser("base", sp.Strict)
	outputs := make([]GroupOutput, 0, len(doc)-1)
	for _, e := range doc {
		if e.Key == "_id" {
			continue
		}
		accDoc, ok := e.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("$group output %q must be an accumulator document", e.Key)
		}
		acc, err := exprParser.ParseAccumulator(accDoc)
		if err != nil {
			return nil, err
		}
		if (acc.Op == AccFirst || acc.Op == AccLast) && len(sp.pendingSort) > 0 {
			acc.SortKey = sp.pendingSort
		}
		outputs = append(outputs, GroupOutput{Name: e.Key, Acc: acc})
	}
	sp.ctx.Capability("$group", "FullSupport")
	return &Group{Key: key, Outputs: outputs}, nil
}

func (sp *StageParser) parseGroupKey(idVal any) (GroupKey, error) {
	if idVal == nil {
		return GroupKey{Null: true}, nil
	}
	if doc, ok := idVal.(bson.D); ok {
		fields := make([]GroupKeyField, 0, len(doc))
		exprParser := NewExprParser("base", sp.Strict)
		for _, e := range doc {
			expr, err := exprParser.ParseExpression(e.Value)
			if err != nil {
				return GroupKey{}, err
			}
			fields = append(fields, GroupKeyField{Label: e.Key, Expr: expr})
		}
		return GroupKey{Compound: fields}, nil
	}
	expr, err := NewExprParser("base", sp.Strict).ParseExpression(idVal)
	if err != nil {
		return GroupKey{}, err
	}
	return GroupKey{Single: expr}, nil
}

func (sp *StageParser) parseProjectionFields(doc bson.D) ([]ProjectionField, error) {
	exprParser := NewExprParser("base", sp.Strict)
	fields := make([]ProjectionField, 0, len(doc))
	for _, e := range doc {
		switch v := e.Value.(type) {
		case int32:
			fields = append(fields, sp.includeOrExclude(e.Key, v != 0))
		case int64:
			fields = append(fields, sp.includeOrExclude(e.Key, v != 0))
		case float64:
			fields = append(fields, sp.includeOrExclude(e.Key, v != 0))
		case bool:
			fields = append(fields, sp.includeOrExclude(e.Key, v))
		case string:
			if len(v) > 0 && v[0] == '$' {
				fields = append(fields, ProjectionField{Name: e.Key, Kind: ProjRename, Source: v})
				continue
			}
			expr, err := exprParser.ParseExpression(v)
			if err != nil {
				return nil, err
			}
			fields = append(fields, ProjectionField{Name: e.Key, Kind: ProjComputed, Expr: expr})
		default:
			expr, err := exprParser.ParseExpression(e.Value)
			if err != nil {
				return nil, err
			}
			fields = append(fields, ProjectionField{Name: e.Key, Kind: ProjComputed, Expr: expr})
		}
	}
	return fields, nil
}

func (sp *StageParser) includeOrExclude(name string, include bool) ProjectionField {
	if include {
		return ProjectionField{Name: name, Kind: ProjInclude, Source: name}
	}
	return ProjectionField{Name: name, Kind: ProjExclude}
}

func (sp *StageParser) parseProject(value any) (Stage, error) {
	doc, ok := value.(bson.D)
	if !ok {
		return nil, fmt.Errorf("$project requires a document")
	}
	fields, err := sp.parseProjectionFields(doc)
	if err != nil {
		return nil, err
	}
	sp.ctx.Capability("$project", "FullSupport")
	return &Project{Fields: fields}, nil
}

func (sp *StageParser) parseAddFields(value any) (Stage, error) {
	doc, ok := value.(bson.D)
	if !ok {
		return nil, fmt.Errorf("$addFields/$set requires a document")
	}
	fields, err := sp.parseProjectionFields(doc)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		if fields[i].Kind == ProjInclude {
			fields[i].Kind = ProjComputed
			fields[i].Expr = NewFieldPath(fields[i].Source, "base")
		}
	}
	sp.ctx.Capability("$addFields", "FullSupport")
	return &AddFields{Fields: fields}, nil
}

func (sp *StageParser) parseSort(value any) (Stage, error) {
	doc, ok := value.(bson.D)
	if !ok || len(doc) == 0 {
		return nil, fmt.Errorf("$sort requires a non-empty document")
	}
	keys := make([]SortField, 0, len(doc))
	for _, e := range doc {
		dir := toInt64(e.Value)
		keys = append(keys, SortField{Expr: NewFieldPath(e.Key, "base"), Descending: dir < 0})
	}
	sp.pendingSort = keys
	sp.ctx.Capability("$sort", "FullSupport")
	return &Sort{Keys: keys}, nil
}

func (sp *StageParser) parseLimit(value any) (Stage, error) {
	n := toInt64(value)
	if n <= 0 {
		return nil, fmt.Errorf("$limit must be a positive integer, got %v", value)
	}
	sp.ctx.Capability("$limit", "FullSupport")
	return &Limit{N: n}, nil
}

func (sp *StageParser) parseSkip(value any) (Stage, error) {
	n := toInt64(value)
	if n < 0 {
		return nil, fmt.Errorf("$skip must be a non-negative integer, got %v", value)
	}
	sp.ctx.Capability("$skip", "FullSupport")
	return &Skip{N: n}, nil
}

func (sp *StageParser) parseUnwind(value any) (Stage, error) {
	var path string
	preserve := false
	var includeIdx string
	switch v := value.(type) {
	case string:
		path = v
	case bson.D:
		pv, _ := getMapValue(v, "path")
		path, _ = pv.(string)
		if pn, ok := getMapValue(v, "preserveNullAndEmptyArrays"); ok {
			preserve, _ = pn.(bool)
		}
		if iv, ok := getMapValue(v, "includeArrayIndex"); ok {
			includeIdx, _ = iv.(string)
		}
	default:
		return nil, fmt.Errorf("$unwind requires a string or document")
	}
	if path == "" {
		return nil, fmt.Errorf("$unwind requires a field path")
	}
	alias := sp.ctx.NextAlias("unwind")
	sp.ctx.Capability("$unwind", "FullSupport")
	return &Unwind{Path: path, Alias: alias, PreserveNullAndEmpty: preserve, IncludeArrayIndex: includeIdx}, nil
}

func (sp *StageParser) parseLookup(value any) (Stage, error) {
	doc, ok := value.(bson.D)
	if !ok {
		return nil, fmt.Errorf("$lookup requires a document")
	}
	from, _ := getMapValue(doc, "from")
	localField, _ := getMapValue(doc, "localField")
	foreignField, _ := getMapValue(doc, "foreignField")
	as, _ := getMapValue(doc, "as")
	fromS, _ := from.(string)
	if fromS == "" {
		return nil, fmt.Errorf("$lookup requires 'from'")
	}
	alias := sp.ctx.NextAlias(fromS)
	sp.ctx.Capability("$lookup", "FullSupport")
	return &Lookup{
		From:         fromS,
		LocalField:   stringOf(localField),
		ForeignField: stringOf(foreignField),
		As:           stringOf(as),
		Alias:        alias,
	}, nil
}

func (sp *StageParser) parseUnionWith(value any) (Stage, error) {
	switch v := value.(type) {
	case string:
		sp.ctx.Capability("$unionWith", "FullSupport")
		return &UnionWith{Collection: v}, nil
	case bson.D:
		coll, _ := getMapValue(v, "coll")
		pipelineVal, _ := getMapValue(v, "pipeline")
		var stages []Stage
		if arr, ok := pipelineVal.(bson.A); ok {
			sub, err := sp.ParsePipeline(arr)
			if err != nil {
				return nil, err
			}
			stages = sub
		}
		sp.ctx.Capability("$unionWith", "FullSupport")
		return &UnionWith{Collection: stringOf(coll), Pipeline: stages}, nil
	default:
		return nil, fmt.Errorf("$unionWith requires a string or document")
	}
}

func (sp *StageParser) parseBucket(value any) (Stage, error) {
	doc, ok := value.(bson.D)
	if !ok {
		return nil, fmt.Errorf("$bucket requires a document")
	}
	groupByVal, _ := getMapValue(doc, "groupBy")
	exprParser := NewExprParser("base", sp.Strict)
	groupBy, err := exprParser.ParseExpression(groupByVal)
	if err != nil {
		return nil, err
	}
	boundariesVal, _ := getMapValue(doc, "boundaries")
	boundariesArr, ok := boundariesVal.(bson.A)
	if !ok {
		return nil, fmt.Errorf("$bucket requires 'boundaries'")
	}
	boundaries := make([]float64, 0, len(boundariesArr))
	for _, b := range boundariesArr {
		boundaries = append(boundaries, toFloat64(b))
	}
	var def Expr
	hasDefault := false
	if dv, ok := getMapValue(doc, "default"); ok {
		def, err = exprParser.ParseExpression(dv)
		if err != nil {
			return nil, err
		}
		hasDefault = true
	}
	outputsVal, _ := getMapValue(doc, "output")
	outputs, err := sp.parseGroupOutputs(outputsVal, exprParser)
	if err != nil {
		return nil, err
	}
	sp.ctx.Capability("$bucket", "FullSupport")
	return &Bucket{GroupBy: groupBy, Boundaries: boundaries, Default: def, HasDefault: hasDefault, Outputs: outputs}, nil
}

func (sp *StageParser) parseGroupOutputs(outputsVal any, exprParser *ExprParser) ([]GroupOutput, error) {
	outputs := []GroupOutput{{Name: "count", Acc: &Accumulator{Op: AccCount}}}
	doc, ok := outputsVal.(bson.D)
	if !ok {
		return outputs, nil
	}
	outputs = outputs[:0]
	for _, e := range doc {
		accDoc, ok := e.Value.(bson.D)
		if !ok {
			continue
		}
		acc, err := exprParser.ParseAccumulator(accDoc)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, GroupOutput{Name: e.Key, Acc: acc})
	}
	return outputs, nil
}

func (sp *StageParser) parseBucketAuto(value any) (Stage, error) {
	doc, ok := value.(bson.D)
	if !ok {
		return nil, fmt.Errorf("$bucketAuto requires a document")
	}
	groupByVal, _ := getMapValue(doc, "groupBy")
	exprParser := NewExprParser("base", sp.Strict)
	groupBy, err := exprParser.ParseExpression(groupByVal)
	if err != nil {
		return nil, err
	}
	bucketsVal, _ := getMapValue(doc, "buckets")
	buckets := int(toInt64(bucketsVal))
	outputsVal, _ := getMapValue(doc, "output")
	outputs, err := sp.parseGroupOutputs(outputsVal, exprParser)
	if err != nil {
		return nil, err
	}
	sp.ctx.Capability("$bucketAuto", "Emulated")
	sp.ctx.Warn("Emulated", "$bucketAuto is emulated with NTILE(n) OVER (ORDER BY groupBy), which assigns near-equal row counts rather than MongoDB's approximate equal-width value ranges")
	return &BucketAuto{GroupBy: groupBy, Buckets: buckets, Outputs: outputs}, nil
}

func (sp *StageParser) parseFacet(value any) (Stage, error) {
	doc, ok := value.(bson.D)
	if !ok {
		return nil, fmt.Errorf("$facet requires a document")
	}
	names := make([]string, 0, len(doc))
	pipelines := make(map[string][]Stage, len(doc))
	for _, e := range doc {
		arr, ok := e.Value.(bson.A)
		if !ok {
			return nil, fmt.Errorf("$facet.%s requires an array pipeline", e.Key)
		}
		sub, err := sp.ParsePipeline(arr)
		if err != nil {
			return nil, err
		}
		names = append(names, e.Key)
		pipelines[e.Key] = sub
	}
	sp.ctx.Capability("$facet", "FullSupport")
	return &Facet{Names: names, Pipelines: pipelines}, nil
}

func (sp *StageParser) parseGraphLookup(value any) (Stage, error) {
	doc, ok := value.(bson.D)
	if !ok {
		return nil, fmt.Errorf("$graphLookup requires a document")
	}
	from, _ := getMapValue(doc, "from")
	startWithVal, _ := getMapValue(doc, "startWith")
	connectFrom, _ := getMapValue(doc, "connectFromField")
	connectTo, _ := getMapValue(doc, "connectToField")
	as, _ := getMapValue(doc, "as")
	exprParser := NewExprParser("base", sp.Strict)
	startWith, err := exprParser.ParseExpression(startWithVal)
	if err != nil {
		return nil, err
	}
	var maxDepth *int64
	if md, ok := getMapValue(doc, "maxDepth"); ok {
		d := toInt64(md)
		maxDepth = &d
	}
	var restrict Expr
	if rv, ok := getMapValue(doc, "restrictSearchWithMatch"); ok {
		if rd, ok := rv.(bson.D); ok {
			restrict, err = exprParser.ParseFilter(rd)
			if err != nil {
				return nil, err
			}
		}
	}
	alias := sp.ctx.NextAlias("graph")
	sp.ctx.Capability("$graphLookup", "Emulated")
	return &GraphLookup{
		From: stringOf(from), StartWith: startWith,
		ConnectFromField: stringOf(connectFrom), ConnectToField: stringOf(connectTo),
		As: stringOf(as), Alias: alias, MaxDepth: maxDepth, RestrictSearchMatch: restrict,
	}, nil
}

func (sp *StageParser) parseSetWindowFields(value any) (Stage, error) {
	doc, ok := value.(bson.D)
	if !ok {
		return nil, fmt.Errorf("$setWindowFields requires a document")
	}
	exprParser := NewExprParser("base", sp.Strict)
	var partition Expr
	if pv, ok := getMapValue(doc, "partitionBy"); ok {
		var err error
		partition, err = exprParser.ParseExpression(pv)
		if err != nil {
			return nil, err
		}
	}
	var sortBy []SortField
	if sv, ok := getMapValue(doc, "sortBy"); ok {
		if sd, ok := sv.(bson.D); ok {
			for _, e := range sd {
				dir := toInt64(e.Value)
				sortBy = append(sortBy, SortField{Expr: NewFieldPath(e.Key, "base"), Descending: dir < 0})
			}
		}
	}
	outputVal, _ := getMapValue(doc, "output")
	outputDoc, ok := outputVal.(bson.D)
	if !ok {
		return nil, fmt.Errorf("$setWindowFields requires 'output'")
	}
	outputs := make([]WindowSpec, 0, len(outputDoc))
	for _, e := range outputDoc {
		spec, err := sp.parseWindowSpec(e.Key, e.Value, exprParser)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, spec)
	}
	sp.ctx.Capability("$setWindowFields", "FullSupport")
	return &SetWindowFields{Partition: partition, SortBy: sortBy, Outputs: outputs}, nil
}

func (sp *StageParser) parseWindowSpec(name string, value any, exprParser *ExprParser) (WindowSpec, error) {
	doc, ok := value.(bson.D)
	if !ok || len(doc) == 0 {
		return WindowSpec{}, fmt.Errorf("$setWindowFields.output.%s requires a window function document", name)
	}
	fnMap := map[string]string{
		"$rank": "rank", "$denseRank": "denseRank", "$documentNumber": "rowNumber",
		"$sum": "sum", "$avg": "avg", "$min": "min", "$max": "max", "$count": "count",
	}
	funcName := ""
	var arg Expr
	var windowDoc bson.D
	for _, e := range doc {
		if f, ok := fnMap[e.Key]; ok {
			funcName = f
			if e.Value != nil {
				a, err := exprParser.ParseExpression(e.Value)
				if err != nil {
					return WindowSpec{}, err
				}
				arg = a
			}
		}
		if e.Key == "window" {
			windowDoc, _ = e.Value.(bson.D)
		}
	}
	if funcName == "" {
		return WindowSpec{}, fmt.Errorf("$setWindowFields.output.%s: unsupported window function", name)
	}
	frame := ""
	if len(windowDoc) > 0 {
		frame = renderWindowFrame(windowDoc)
	}
	return WindowSpec{Name: name, Func: funcName, Arg: arg, Frame: frame}, nil
}

func renderWindowFrame(windowDoc bson.D) string {
	docsVal, ok := getMapValue(windowDoc, "documents")
	if !ok {
		return ""
	}
	arr, ok := docsVal.(bson.A)
	if !ok || len(arr) != 2 {
		return ""
	}
	lo := frameBound(arr[0], true)
	hi := frameBound(arr[1], false)
	return fmt.Sprintf("ROWS BETWEEN %s AND %s", lo, hi)
}

func frameBound(v any, isStart bool) string {
	if s, ok := v.(string); ok {
		switch s {
		case "unbounded":
			if isStart {
				return "UNBOUNDED PRECEDING"
			}
			return "UNBOUNDED FOLLOWING"
		case "current":
			return "CURRENT ROW"
		}
	}
	n := toInt64(v)
	if n < 0 {
		return fmt.Sprintf("%d PRECEDING", -n)
	}
	return fmt.Sprintf("%d FOLLOWING", n)
}

func (sp *StageParser) parseRedact(value any) (Stage, error) {
	exprParser := NewExprParser("base", sp.Strict)
	decision, err := exprParser.ParseExpression(value)
	if err != nil {
		return nil, err
	}
	sp.ctx.Capability("$redact", "Emulated")
	sp.ctx.Warn("Emulated", "$redact is emulated at row granularity; $$DESCEND and $$KEEP are treated identically since subdocument-level pruning is not attempted")
	return &Redact{Decision: decision}, nil
}

func (sp *StageParser) parseSample(value any) (Stage, error) {
	doc, ok := value.(bson.D)
	if !ok {
		return nil, fmt.Errorf("$sample requires a document")
	}
	sizeVal, _ := getMapValue(doc, "size")
	sp.ctx.Capability("$sample", "FullSupport")
	return &Sample{N: toInt64(sizeVal)}, nil
}

func (sp *StageParser) parseReplaceRoot(value any, field string) (Stage, error) {
	doc, ok := value.(bson.D)
	if !ok {
		return nil, fmt.Errorf("$replaceRoot requires a document")
	}
	rootVal, ok := getMapValue(doc, field)
	if !ok {
		return nil, fmt.Errorf("$replaceRoot requires '%s'", field)
	}
	expr, err := NewExprParser("base", sp.Strict).ParseExpression(rootVal)
	if err != nil {
		return nil, err
	}
	sp.ctx.Capability("$replaceRoot", "FullSupport")
	return &ReplaceRoot{NewRoot: expr}, nil
}

func (sp *StageParser) parseReplaceWithExpr(value any) (Stage, error) {
	expr, err := NewExprParser("base", sp.Strict).ParseExpression(value)
	if err != nil {
		return nil, err
	}
	sp.ctx.Capability("$replaceWith", "FullSupport")
	return &ReplaceRoot{NewRoot: expr}, nil
}

func (sp *StageParser) parseMerge(value any) (Stage, error) {
	switch v := value.(type) {
	case string:
		sp.ctx.Capability("$merge", "FullSupport")
		return &Merge{Into: v, WhenMatched: "merge"}, nil
	case bson.D:
		into, _ := getMapValue(v, "into")
		onVal, _ := getMapValue(v, "on")
		whenMatched, _ := getMapValue(v, "whenMatched")
		var onFields []string
		switch o := onVal.(type) {
		case string:
			onFields = []string{o}
		case bson.A:
			for _, f := range o {
				if s, ok := f.(string); ok {
					onFields = append(onFields, s)
				}
			}
		}
		if len(onFields) == 0 {
			onFields = []string{"_id"}
		}
		wm := stringOf(whenMatched)
		if wm == "" {
			wm = "merge"
		}
		sp.ctx.Capability("$merge", "FullSupport")
		return &Merge{Into: stringOf(into), OnFields: onFields, WhenMatched: wm}, nil
	default:
		return nil, fmt.Errorf("$merge requires a string or document")
	}
}

func (sp *StageParser) parseOut(value any) (Stage, error) {
	switch v := value.(type) {
	case string:
		sp.ctx.Capability("$out", "FullSupport")
		return &Out{Collection: v}, nil
	case bson.D:
		coll, _ := getMapValue(v, "coll")
		sp.ctx.Capability("$out", "FullSupport")
		return &Out{Collection: stringOf(coll)}, nil
	default:
		return nil, fmt.Errorf("$out requires a string or document")
	}
}

// parseSortByCount desugars $sortByCount(expr) into Group(_id: expr,
// count: $sum 1) + Sort(count DESC), matching MongoDB's own documented
// behavior. It returns a sortByCountSentinel holding the group expression;
// ExpandSortByCount later replaces the sentinel with the Group and the
// trailing Sort.
func (sp *StageParser) parseSortByCount(value any) (Stage, error) {
	exprParser := NewExprParser("base", sp.Strict)
	groupExpr, err := exprParser.ParseExpression(value)
	if err != nil {
		return nil, err
	}
	sp.ctx.Capability("$sortByCount", "FullSupport")
	return &sortByCountSentinel{GroupBy: groupExpr}, nil
}

// sortByCountSentinel is expanded into Group+Sort by ExpandSortByCount
// before the optimizer/renderer ever see it.
type sortByCountSentinel struct {
	GroupBy Expr
}

func (*sortByCountSentinel) stageName() string { return "$sortByCount" }

// ExpandSortByCount replaces every sortByCountSentinel with its
// Group+Sort desugaring. Run once, before the optimizer chain.
func ExpandSortByCount(stages []Stage) []Stage {
	out := make([]Stage, 0, len(stages)+1)
	for _, s := range stages {
		sc, ok := s.(*sortByCountSentinel)
		if !ok {
			out = append(out, s)
			continue
		}
		out = append(out,
			&Group{
				Key:     GroupKey{Single: sc.GroupBy},
				Outputs: []GroupOutput{{Name: "count", Acc: &Accumulator{Op: AccCount}}},
			},
			&Sort{Keys: []SortField{{Expr: &aliasRef{name: "count"}, Descending: true}}},
		)
	}
	return out
}

// aliasRef renders a bare output-column alias (used by the $sortByCount
// desugaring's synthetic ORDER BY, which must reference the Group's own
// "count" output rather than a document field).
type aliasRef struct{ name string }

func (a *aliasRef) render(ctx *Context) { ctx.Identifier(a.name) }

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
