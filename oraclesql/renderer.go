package oraclesql

import "fmt"

// Render assembles the final SQL statement for one already-optimized
// pipeline against the given collection name, following the Pipeline
// Renderer algorithm: choose a skeleton (plain / grouped-projected /
// subquery-wrapped / CTE-wrapped), append join fragments, collapse
// pre-aggregation Match stages into one WHERE, emit GROUP BY / ORDER BY /
// OFFSET / FETCH.
func Render(ctx *Context, collection string, stages []Stage, includeHints bool) {
	if hasWrapTrigger(stages) {
		renderWrapped(ctx, collection, stages, includeHints)
		return
	}
	renderPlain(ctx, collection, stages, includeHints, "base")
}

func hasWrapTrigger(stages []Stage) bool {
	for _, s := range stages {
		switch s.(type) {
		case *SetWindowFields, *Facet, *BucketAuto, *GraphLookup:
			return true
		}
	}
	return false
}

// renderWrapped handles the four stage kinds that require a subquery or
// CTE skeleton. Each owns the entire pipeline in this minimal engine: a
// wrap-triggering stage is expected to be the terminal shape-changing
// stage of its pipeline (optionally followed by further Match/Sort/
// Limit/Skip against its own output), matching the worked scenarios.
func renderWrapped(ctx *Context, collection string, stages []Stage, includeHints bool) {
	for i, s := range stages {
		switch st := s.(type) {
		case *Facet:
			renderFacet(ctx, collection, st)
			return
		case *GraphLookup:
			renderGraphLookup(ctx, collection, stages, i, st, includeHints)
			return
		case *SetWindowFields:
			renderSetWindowFields(ctx, collection, stages, i, st, includeHints)
			return
		case *BucketAuto:
			renderBucketAuto(ctx, collection, stages, i, st, includeHints)
			return
		}
	}
}

// renderPlain renders the non-wrapped skeleton: a plain SELECT or a
// Group/Project-driven SELECT, with joins, WHERE, GROUP BY, ORDER BY and
// pagination assembled from the stage list in order.
func renderPlain(ctx *Context, collection string, stages []Stage, includeHints bool, baseAlias string) {
	r := &planState{ctx: ctx, collection: collection, baseAlias: baseAlias}
	r.scan(stages)
	r.emit(includeHints)
}

// planState accumulates the pieces of one (non-wrapped) SELECT while
// walking the stage list in order, then emits them in the fixed clause
// order the renderer algorithm specifies.
type planState struct {
	ctx        *Context
	collection string
	baseAlias  string

	joins         []string // pre-rendered join fragments, in pipeline order
	whereFilters  []Expr   // pre-aggregation match filters, ANDed
	havingFilters []Expr   // match filters seen after $group/$bucket, ANDed into HAVING
	group        *Group
	projects     []*Project
	addFields    []*AddFields
	sort         []SortField
	limit        *int64
	skip         *int64
	count        *Count
	replaceRoot  *ReplaceRoot
	unionWith    *UnionWith
	merge        *Merge
	out          *Out
	sample       *Sample
	redact       *Redact
	topN         bool
}

func (r *planState) scan(stages []Stage) {
	groupSeen := false
	for i, s := range stages {
		switch st := s.(type) {
		case *Match:
			if groupSeen {
				r.havingFilters = append(r.havingFilters, st.Filter)
			} else {
				r.whereFilters = append(r.whereFilters, st.Filter)
			}
		case *Group:
			r.group = st
			groupSeen = true
		case *Project:
			r.projects = append(r.projects, st)
		case *AddFields:
			r.addFields = append(r.addFields, st)
		case *Sort:
			r.sort = st.Keys
		case *Limit:
			n := st.N
			r.limit = &n
			if TopNEligible(stages, i-1) {
				r.topN = true
			}
		case *Skip:
			n := st.N
			r.skip = &n
		case *Unwind:
			r.joins = append(r.joins, renderUnwindJoin(r.ctx, st))
		case *Lookup:
			r.joins = append(r.joins, renderLookupJoin(r.ctx, st))
		case *Count:
			r.count = st
		case *ReplaceRoot:
			r.replaceRoot = st
		case *UnionWith:
			r.unionWith = st
		case *Merge:
			r.merge = st
		case *Out:
			r.out = st
		case *Sample:
			r.sample = st
		case *Redact:
			r.redact = st
			r.whereFilters = append(r.whereFilters, st.Decision)
		case *Bucket:
			r.group = bucketAsGroup(st)
			groupSeen = true
		}
	}
}

// bucketAsGroup lowers a Bucket stage into an equivalent Group whose key
// is the boundary CASE expression, replicated identically in SELECT and
// GROUP BY as the algorithm requires.
func bucketAsGroup(b *Bucket) *Group {
	caseExpr := buildBucketCase(b)
	return &Group{Key: GroupKey{Single: caseExpr}, Outputs: b.Outputs}
}

func buildBucketCase(b *Bucket) Expr {
	branches := make([]SwitchBranch, 0, len(b.Boundaries)-1)
	for i := 0; i+1 < len(b.Boundaries); i++ {
		lo, hi := b.Boundaries[i], b.Boundaries[i+1]
		cond := &Logical{Op: OpAnd, Operands: []Expr{
			&Comparison{Op: OpGte, LHS: b.GroupBy, RHS: &Literal{Value: lo}},
			&Comparison{Op: OpLt, LHS: b.GroupBy, RHS: &Literal{Value: hi}},
		}}
		branches = append(branches, SwitchBranch{Case: cond, Then: &Literal{Value: lo}})
	}
	var def Expr
	if b.HasDefault {
		def = b.Default
	}
	return &Switch{Branches: branches, Default: def}
}

func (r *planState) emit(includeHints bool) {
	if r.merge != nil {
		renderMerge(r.ctx, r.collection, r.merge, r)
		return
	}
	if r.out != nil {
		renderOut(r.ctx, r.out, r)
		return
	}

	r.ctx.SQL("SELECT ")
	if includeHints {
		r.ctx.SQL("/*+ NO_XMLQUERY_REWRITE */ ")
	}

	var groupAliases []string
	switch {
	case r.count != nil:
		r.ctx.SQLf("JSON_OBJECT('%s' VALUE COUNT(*)) AS %s", r.count.OutputField, r.ctx.DataColumn())
	case r.group != nil:
		groupAliases = r.emitGroupSelect()
	case r.replaceRoot != nil:
		r.ctx.visit(r.replaceRoot.NewRoot)
		r.ctx.SQLf(" AS %s", r.ctx.DataColumn())
	case len(r.projects) > 0 || len(r.addFields) > 0:
		r.emitProjectSelect()
	default:
		r.ctx.SQLf("%s.%s", r.baseAlias, r.ctx.DataColumn())
	}

	r.ctx.SQLf(" FROM %s %s", QuoteIdentifier(r.collection), r.baseAlias)
	for _, j := range r.joins {
		r.ctx.SQL(j)
	}

	if len(r.whereFilters) > 0 {
		r.ctx.SQL(" WHERE ")
		r.renderFilterList(r.whereFilters)
	}

	if r.group != nil {
		r.emitGroupBy()
	}

	if len(r.havingFilters) > 0 {
		r.ctx.SQL(" HAVING ")
		restore := r.ctx.EnterGroupScope(groupAliases)
		r.renderFilterList(r.havingFilters)
		restore()
	}

	if r.sample != nil {
		r.ctx.SQL(" ORDER BY DBMS_RANDOM.VALUE")
		r.ctx.SQLf(" FETCH FIRST %d ROWS ONLY", r.sample.N)
	} else {
		if len(r.sort) > 0 {
			r.emitOrderBy(groupAliases)
		}
		r.emitPagination()
	}

	if r.unionWith != nil {
		r.ctx.SQL(" UNION ALL ")
		sub := r.unionWith.Pipeline
		sub = ExpandSortByCount(sub)
		sub = Optimize(sub)
		Render(r.ctx, r.unionWith.Collection, sub, includeHints)
	}
}

func (r *planState) renderFilterList(filters []Expr) {
	if len(filters) == 1 {
		r.ctx.visit(filters[0])
	} else {
		r.ctx.visit(&Logical{Op: OpAnd, Operands: filters})
	}
}

func (r *planState) emitGroupSelect() []string {
	g := r.group
	aliases := make([]string, 0, len(g.Outputs)+1)
	switch {
	case g.Key.Null:
		// no _id column when grouping everything into one row
	case len(g.Key.Compound) > 0:
		r.ctx.SQL("JSON_OBJECT(")
		for i, f := range g.Key.Compound {
			if i > 0 {
				r.ctx.SQL(", ")
			}
			r.ctx.SQLf("KEY '%s' VALUE ", f.Label)
			r.ctx.visit(f.Expr)
		}
		r.ctx.SQLf(`) AS "_id"`)
		aliases = append(aliases, "_id")
	default:
		// Group keys render in their normal dot-notation/expression form,
		// not forced into JSON_VALUE ... RETURNING: base.data.category is a
		// legal GROUP BY/SELECT expression in its own right, and any
		// sub-expression that genuinely needs a scalar (Arithmetic, Date,
		// ...) already forces that for itself.
		r.ctx.visit(g.Key.Single)
		r.ctx.SQLf(` AS "_id"`)
		aliases = append(aliases, "_id")
	}
	for _, out := range g.Outputs {
		if len(aliases) > 0 || !g.Key.Null {
			r.ctx.SQL(", ")
		}
		r.ctx.visit(out.Acc)
		r.ctx.SQLf(" AS %s", QuoteIdentifier(out.Name))
		aliases = append(aliases, out.Name)
	}
	return aliases
}

func (r *planState) emitGroupBy() {
	g := r.group
	if g.Key.Null {
		return
	}
	r.ctx.SQL(" GROUP BY ")
	if len(g.Key.Compound) > 0 {
		for i, f := range g.Key.Compound {
			if i > 0 {
				r.ctx.SQL(", ")
			}
			r.ctx.visit(f.Expr)
		}
		return
	}
	r.ctx.visit(g.Key.Single)
}

func (r *planState) emitProjectSelect() {
	seen := map[string]bool{}
	items := make([]ProjectionField, 0)
	for _, p := range r.projects {
		for _, f := range p.Fields {
			if f.Kind == ProjExclude {
				seen[f.Name] = true
				continue
			}
			items = append(items, f)
			seen[f.Name] = true
		}
	}
	for _, a := range r.addFields {
		for _, f := range a.Fields {
			items = append(items, f)
		}
	}
	if len(items) == 0 {
		r.ctx.SQLf("%s.%s", r.baseAlias, r.ctx.DataColumn())
		return
	}
	// $addFields/$set without a $project keeps the whole input document,
	// emitted ahead of the explicit fields.
	passthrough := len(r.projects) == 0
	if passthrough {
		r.ctx.SQLf("%s.%s", r.baseAlias, r.ctx.DataColumn())
	}
	for i, f := range items {
		if i > 0 || passthrough {
			r.ctx.SQL(", ")
		}
		switch f.Kind {
		case ProjInclude:
			r.ctx.visit(NewFieldPath(f.Source, r.baseAlias))
			r.ctx.SQLf(" AS %s", QuoteIdentifier(f.Name))
		case ProjRename:
			r.ctx.visit(NewFieldPath(f.Source, r.baseAlias))
			r.ctx.SQLf(" AS %s", QuoteIdentifier(f.Name))
		case ProjComputed:
			r.ctx.visit(f.Expr)
			r.ctx.SQLf(" AS %s", QuoteIdentifier(f.Name))
		}
	}
}

func (r *planState) emitOrderBy(groupAliases []string) {
	r.ctx.SQL(" ORDER BY ")
	var restore func()
	if r.group != nil {
		restore = r.ctx.EnterGroupScope(groupAliases)
	}
	for i, k := range r.sort {
		if i > 0 {
			r.ctx.SQL(", ")
		}
		r.ctx.visit(k.Expr)
		if k.Descending {
			r.ctx.SQL(" DESC")
		} else {
			r.ctx.SQL(" ASC")
		}
	}
	if restore != nil {
		restore()
	}
}

func (r *planState) emitPagination() {
	if r.skip != nil {
		r.ctx.SQLf(" OFFSET %d ROWS", *r.skip)
	}
	if r.limit != nil {
		r.ctx.SQLf(" FETCH FIRST %d ROWS ONLY", *r.limit)
	}
}

func renderUnwindJoin(ctx *Context, u *Unwind) string {
	path := ParsePath(u.Path)
	cols := "value JSON PATH '$'"
	if u.IncludeArrayIndex != "" {
		cols += ", idx FOR ORDINALITY"
	}
	joinType := "CROSS JOIN"
	cond := ""
	if u.PreserveNullAndEmpty {
		joinType = "LEFT OUTER JOIN"
		cond = " ON 1=1"
	}
	return fmt.Sprintf(", %s JSON_TABLE(base.%s,'%s[*]' COLUMNS(%s)) %s%s",
		joinType, ctx.DataColumn(), path.JSONPath(), cols, u.Alias, cond)
}

func renderLookupJoin(ctx *Context, l *Lookup) string {
	return fmt.Sprintf(" LEFT OUTER JOIN %s %s ON JSON_VALUE(base.%s,'%s')=JSON_VALUE(%s.%s,'%s')",
		QuoteIdentifier(l.From), l.Alias,
		ctx.DataColumn(), ParsePath(l.LocalField).JSONPath(),
		l.Alias, ctx.DataColumn(), ParsePath(l.ForeignField).JSONPath())
}

func renderFacet(ctx *Context, collection string, f *Facet) {
	ctx.SQLf("SELECT JSON_OBJECT(")
	for i, name := range f.Names {
		if i > 0 {
			ctx.SQL(", ")
		}
		ctx.SQLf("KEY '%s' VALUE (SELECT COALESCE(JSON_ARRAYAGG(%s.%s), JSON_ARRAY()) FROM (", name, "f", ctx.DataColumn())
		sub := ExpandSortByCount(f.Pipelines[name])
		sub = Optimize(sub)
		Render(ctx, collection, sub, false)
		ctx.SQL(") f)")
	}
	ctx.SQLf(`) AS %s FROM DUAL`, ctx.DataColumn())
}

func renderGraphLookup(ctx *Context, collection string, stages []Stage, idx int, g *GraphLookup, includeHints bool) {
	cteName := "graph_cte_" + g.Alias
	ctx.SQLf("WITH %s (doc, depth) AS (", cteName)
	ctx.SQLf("SELECT %s.%s, 0 FROM %s %s WHERE JSON_VALUE(%s.%s,'%s')=",
		g.Alias, ctx.DataColumn(), QuoteIdentifier(g.From), g.Alias, g.Alias, ctx.DataColumn(), ParsePath(g.ConnectToField).JSONPath())
	ctx.visit(g.StartWith)
	ctx.SQLf(" UNION ALL SELECT child.%s, parent.depth + 1 FROM %s child JOIN %s parent ON JSON_VALUE(child.%s,'%s')=JSON_VALUE(parent.doc,'%s')",
		ctx.DataColumn(), QuoteIdentifier(g.From), cteName, ctx.DataColumn(), ParsePath(g.ConnectToField).JSONPath(), ParsePath(g.ConnectFromField).JSONPath())
	if g.MaxDepth != nil {
		ctx.SQLf(" WHERE parent.depth < %d", *g.MaxDepth)
	}
	ctx.SQL(") ")

	rest := make([]Stage, 0, len(stages)-1)
	rest = append(rest, stages[:idx]...)
	rest = append(rest, stages[idx+1:]...)

	r := &planState{ctx: ctx, collection: collection, baseAlias: "base"}
	r.scan(rest)
	r.joins = append(r.joins, fmt.Sprintf(", (SELECT JSON_ARRAYAGG(doc) AS arr FROM %s) %s", cteName, g.Alias))
	r.emit(includeHints)
}

func renderSetWindowFields(ctx *Context, collection string, stages []Stage, idx int, w *SetWindowFields, includeHints bool) {
	inner := stages[:idx]
	outer := stages[idx+1:]

	ctx.SQL("SELECT outer_q.* FROM (SELECT inner_q.*, ")
	for i, out := range w.Outputs {
		if i > 0 {
			ctx.SQL(", ")
		}
		renderWindowFunc(ctx, out)
		ctx.SQLf(" OVER (")
		if w.Partition != nil {
			ctx.SQL("PARTITION BY ")
			ctx.visit(w.Partition)
		}
		if len(w.SortBy) > 0 {
			if w.Partition != nil {
				ctx.SQL(" ")
			}
			ctx.SQL("ORDER BY ")
			for j, sk := range w.SortBy {
				if j > 0 {
					ctx.SQL(", ")
				}
				ctx.visit(sk.Expr)
				if sk.Descending {
					ctx.SQL(" DESC")
				}
			}
		}
		if out.Frame != "" {
			ctx.SQLf(" %s", out.Frame)
		}
		ctx.SQLf(") AS %s", QuoteIdentifier(out.Name))
	}
	ctx.SQL(" FROM (")

	innerPlan := ExpandSortByCount(inner)
	innerPlan = Optimize(innerPlan)
	Render(ctx, collection, innerPlan, false)

	ctx.SQL(") inner_q) outer_q")

	outerFilters := make([]Expr, 0)
	var outerSort []SortField
	var outerLimit, outerSkip *int64
	for i, s := range outer {
		switch st := s.(type) {
		case *Match:
			outerFilters = append(outerFilters, st.Filter)
		case *Sort:
			outerSort = st.Keys
		case *Limit:
			n := st.N
			outerLimit = &n
			_ = i
		case *Skip:
			n := st.N
			outerSkip = &n
		}
	}
	if len(outerFilters) > 0 {
		ctx.SQL(" WHERE ")
		names := make([]string, 0, len(w.Outputs))
		for _, out := range w.Outputs {
			names = append(names, out.Name)
		}
		restore := ctx.EnterGroupScope(names)
		if len(outerFilters) == 1 {
			ctx.visit(outerFilters[0])
		} else {
			ctx.visit(&Logical{Op: OpAnd, Operands: outerFilters})
		}
		restore()
	}
	if len(outerSort) > 0 {
		ctx.SQL(" ORDER BY ")
		for i, k := range outerSort {
			if i > 0 {
				ctx.SQL(", ")
			}
			ctx.visit(k.Expr)
			if k.Descending {
				ctx.SQL(" DESC")
			}
		}
	}
	if outerSkip != nil {
		ctx.SQLf(" OFFSET %d ROWS", *outerSkip)
	}
	if outerLimit != nil {
		ctx.SQLf(" FETCH FIRST %d ROWS ONLY", *outerLimit)
	}
	_ = includeHints
}

func renderWindowFunc(ctx *Context, w WindowSpec) {
	switch w.Func {
	case "rank":
		ctx.SQL("RANK()")
	case "denseRank":
		ctx.SQL("DENSE_RANK()")
	case "rowNumber":
		ctx.SQL("ROW_NUMBER()")
	case "sum", "avg", "min", "max", "count":
		fn := map[string]string{"sum": "SUM", "avg": "AVG", "min": "MIN", "max": "MAX", "count": "COUNT"}[w.Func]
		ctx.SQLf("%s(", fn)
		if w.Arg != nil {
			ctx.visit(w.Arg)
		} else {
			ctx.SQL("*")
		}
		ctx.SQL(")")
	default:
		ctx.SQL("NULL")
	}
}

func renderBucketAuto(ctx *Context, collection string, stages []Stage, idx int, b *BucketAuto, includeHints bool) {
	inner := stages[:idx]
	ctx.SQL("SELECT ")
	first := true
	for _, out := range b.Outputs {
		if !first {
			ctx.SQL(", ")
		}
		first = false
		ctx.visit(out.Acc)
		ctx.SQLf(" AS %s", QuoteIdentifier(out.Name))
	}
	ctx.SQL(" FROM (SELECT inner_q.*, NTILE(")
	ctx.SQLf("%d", b.Buckets)
	ctx.SQL(") OVER (ORDER BY ")
	ctx.visit(b.GroupBy)
	ctx.SQL(") AS bucket_id FROM (")
	innerPlan := ExpandSortByCount(inner)
	innerPlan = Optimize(innerPlan)
	Render(ctx, collection, innerPlan, false)
	ctx.SQL(") inner_q) bucketed GROUP BY bucket_id ORDER BY bucket_id")
	_ = includeHints
}

func renderMerge(ctx *Context, collection string, m *Merge, r *planState) {
	ctx.SQLf("MERGE INTO %s tgt USING (", QuoteIdentifier(m.Into))
	sub := &planState{ctx: ctx, collection: collection, baseAlias: r.baseAlias}
	sub.whereFilters = r.whereFilters
	sub.havingFilters = r.havingFilters
	sub.group = r.group
	sub.projects = r.projects
	sub.addFields = r.addFields
	sub.joins = r.joins
	sub.emitSelectOnly()
	ctx.SQL(") src ON (")
	for i, f := range m.OnFields {
		if i > 0 {
			ctx.SQL(" AND ")
		}
		ctx.SQLf(`JSON_VALUE(tgt.%s,'%s')=JSON_VALUE(src.%s,'%s')`, ctx.DataColumn(), ParsePath(f).JSONPath(), ctx.DataColumn(), ParsePath(f).JSONPath())
	}
	ctx.SQL(")")
	switch m.WhenMatched {
	case "replace", "merge":
		ctx.SQLf(" WHEN MATCHED THEN UPDATE SET tgt.%s = src.%s", ctx.DataColumn(), ctx.DataColumn())
	case "fail", "keepExisting":
		// no matched clause: existing rows are left untouched
	}
	ctx.SQLf(" WHEN NOT MATCHED THEN INSERT (%s) VALUES (src.%s)", ctx.DataColumn(), ctx.DataColumn())
}

// emitSelectOnly renders SELECT ... FROM ... [WHERE] [GROUP BY] [HAVING]
// with no ORDER BY/pagination - the shape a $merge/$out source query needs.
func (r *planState) emitSelectOnly() {
	r.ctx.SQL("SELECT ")
	var groupAliases []string
	switch {
	case r.group != nil:
		groupAliases = r.emitGroupSelect()
	case len(r.projects) > 0 || len(r.addFields) > 0:
		r.emitProjectSelect()
	default:
		r.ctx.SQLf("%s.%s", r.baseAlias, r.ctx.DataColumn())
	}
	r.ctx.SQLf(" FROM %s %s", QuoteIdentifier(r.collection), r.baseAlias)
	for _, j := range r.joins {
		r.ctx.SQL(j)
	}
	if len(r.whereFilters) > 0 {
		r.ctx.SQL(" WHERE ")
		r.renderFilterList(r.whereFilters)
	}
	if r.group != nil {
		r.emitGroupBy()
	}
	if len(r.havingFilters) > 0 {
		r.ctx.SQL(" HAVING ")
		restore := r.ctx.EnterGroupScope(groupAliases)
		r.renderFilterList(r.havingFilters)
		restore()
	}
}

func renderOut(ctx *Context, o *Out, r *planState) {
	ctx.SQLf("INSERT INTO %s (%s) ", QuoteIdentifier(o.Collection), ctx.DataColumn())
	r.emitSelectOnly()
}
