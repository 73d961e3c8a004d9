package oraclesql

// fieldCutover records that references to a logical field name (a $lookup's
// "as", or a $unwind's unwound field) must resolve through a join/array
// alias instead of the base document from this point in the pipeline on.
type fieldCutover struct {
	alias  string
	column string // "" means the context's configured data column
}

// CollapseLookupUnwind rewrites field resolution for every $lookup and
// $unwind stage's output field and, where a $lookup is immediately followed
// by an $unwind of the field it just populated, merges them into a single
// join.
//
// A standalone $unwind still emits its own JSON_TABLE array-expansion join,
// but every later stage's references to the unwound field (e.g.
// "$items.product") must resolve through that join's "value" column
// (unwind_1.value.product), not through the base document - the stage
// parser has no visibility into prior stages, so it always parses field
// paths rooted at "base", and this pass corrects that.
//
// A $lookup immediately followed by an $unwind of the field it just
// populated is MongoDB's idiom for an inner/left join: the LEFT OUTER JOIN
// a $lookup already produces is one row per match, which is exactly what
// the following $unwind would have flattened an array into. Emitting a
// second, redundant JSON_TABLE fragment on top of that join would expand an
// already-joined row set as if it were still a document-embedded array, so
// that $unwind is dropped and later references to its field resolve
// directly through the join alias's data column instead.
func CollapseLookupUnwind(stages []Stage) []Stage {
	out := make([]Stage, 0, len(stages))
	cutover := map[string]fieldCutover{}
	for i := 0; i < len(stages); i++ {
		s := stages[i]

		if lookup, ok := s.(*Lookup); ok {
			if i+1 < len(stages) {
				if unwind, ok := stages[i+1].(*Unwind); ok && unwind.Path == "$"+lookup.As && unwind.IncludeArrayIndex == "" {
					out = append(out, lookup)
					cutover[lookup.As] = fieldCutover{alias: lookup.Alias}
					i++ // consume the Unwind; no standalone join fragment for it
					continue
				}
			}
			if len(cutover) > 0 {
				s = rebaseStage(s, cutover)
			}
			out = append(out, s)
			continue
		}

		if unwind, ok := s.(*Unwind); ok {
			if len(cutover) > 0 {
				s = rebaseStage(s, cutover)
				unwind = s.(*Unwind)
			}
			out = append(out, unwind)
			if field := unwoundFieldName(unwind.Path); field != "" {
				cutover[field] = fieldCutover{alias: unwind.Alias, column: "value"}
			}
			continue
		}

		if len(cutover) > 0 {
			s = rebaseStage(s, cutover)
		}
		out = append(out, s)
	}
	return out
}

func unwoundFieldName(path string) string {
	if len(path) > 0 && path[0] == '$' {
		return path[1:]
	}
	return path
}

func rebaseStage(s Stage, cutover map[string]fieldCutover) Stage {
	switch st := s.(type) {
	case *Match:
		return &Match{Filter: rebaseExpr(st.Filter, cutover)}
	case *Group:
		return &Group{Key: rebaseGroupKey(st.Key, cutover), Outputs: rebaseGroupOutputs(st.Outputs, cutover)}
	case *Project:
		return &Project{Fields: rebaseProjectionFields(st.Fields, cutover)}
	case *AddFields:
		return &AddFields{Fields: rebaseProjectionFields(st.Fields, cutover)}
	case *Sort:
		return &Sort{Keys: rebaseSortFields(st.Keys, cutover)}
	case *Bucket:
		return &Bucket{
			GroupBy:    rebaseExpr(st.GroupBy, cutover),
			Boundaries: st.Boundaries,
			Default:    rebaseExprOrNil(st.Default, cutover),
			HasDefault: st.HasDefault,
			Outputs:    rebaseGroupOutputs(st.Outputs, cutover),
		}
	case *BucketAuto:
		return &BucketAuto{GroupBy: rebaseExpr(st.GroupBy, cutover), Buckets: st.Buckets, Outputs: rebaseGroupOutputs(st.Outputs, cutover)}
	case *SetWindowFields:
		outputs := make([]WindowSpec, len(st.Outputs))
		for i, w := range st.Outputs {
			outputs[i] = WindowSpec{Name: w.Name, Func: w.Func, Arg: rebaseExprOrNil(w.Arg, cutover), Frame: w.Frame}
		}
		return &SetWindowFields{Partition: rebaseExprOrNil(st.Partition, cutover), SortBy: rebaseSortFields(st.SortBy, cutover), Outputs: outputs}
	case *ReplaceRoot:
		return &ReplaceRoot{NewRoot: rebaseExpr(st.NewRoot, cutover)}
	case *Redact:
		return &Redact{Decision: rebaseExpr(st.Decision, cutover)}
	case *GraphLookup:
		gl := *st
		gl.StartWith = rebaseExpr(st.StartWith, cutover)
		gl.RestrictSearchMatch = rebaseExprOrNil(st.RestrictSearchMatch, cutover)
		return &gl
	default:
		return s
	}
}

func rebaseExprOrNil(e Expr, cutover map[string]fieldCutover) Expr {
	if e == nil {
		return nil
	}
	return rebaseExpr(e, cutover)
}

func rebaseGroupKey(k GroupKey, cutover map[string]fieldCutover) GroupKey {
	if k.Null {
		return k
	}
	if len(k.Compound) > 0 {
		fields := make([]GroupKeyField, len(k.Compound))
		for i, f := range k.Compound {
			fields[i] = GroupKeyField{Label: f.Label, Expr: rebaseExpr(f.Expr, cutover)}
		}
		return GroupKey{Compound: fields}
	}
	return GroupKey{Single: rebaseExpr(k.Single, cutover)}
}

func rebaseGroupOutputs(outputs []GroupOutput, cutover map[string]fieldCutover) []GroupOutput {
	out := make([]GroupOutput, len(outputs))
	for i, o := range outputs {
		acc := *o.Acc
		acc.Arg = rebaseExprOrNil(o.Acc.Arg, cutover)
		out[i] = GroupOutput{Name: o.Name, Acc: &acc}
	}
	return out
}

func rebaseProjectionFields(fields []ProjectionField, cutover map[string]fieldCutover) []ProjectionField {
	out := make([]ProjectionField, len(fields))
	for i, f := range fields {
		if f.Kind == ProjComputed {
			f.Expr = rebaseExpr(f.Expr, cutover)
		}
		out[i] = f
	}
	return out
}

func rebaseSortFields(keys []SortField, cutover map[string]fieldCutover) []SortField {
	out := make([]SortField, len(keys))
	for i, k := range keys {
		out[i] = SortField{Expr: rebaseExpr(k.Expr, cutover), Descending: k.Descending}
	}
	return out
}

// rebaseExpr walks an expression tree, rewriting every base-document
// FieldPath whose leading segment is a cutover key to resolve through that
// key's join/array alias instead.
func rebaseExpr(e Expr, cutover map[string]fieldCutover) Expr {
	switch n := e.(type) {
	case *FieldPath:
		return rebaseFieldPath(n, cutover)
	case *Literal:
		return n
	case *Comparison:
		return &Comparison{Op: n.Op, LHS: rebaseExpr(n.LHS, cutover), RHS: rebaseExpr(n.RHS, cutover)}
	case *In:
		values := make([]Expr, len(n.Values))
		for i, v := range n.Values {
			values[i] = rebaseExpr(v, cutover)
		}
		return &In{Field: rebaseExpr(n.Field, cutover), Values: values, Negated: n.Negated}
	case *Exists:
		field, _ := rebaseExpr(n.Field, cutover).(*FieldPath)
		return &Exists{Field: field, ShouldExist: n.ShouldExist}
	case *Logical:
		operands := make([]Expr, len(n.Operands))
		for i, op := range n.Operands {
			operands[i] = rebaseExpr(op, cutover)
		}
		return &Logical{Op: n.Op, Operands: operands}
	case *Arithmetic:
		operands := make([]Expr, len(n.Operands))
		for i, op := range n.Operands {
			operands[i] = rebaseExpr(op, cutover)
		}
		return &Arithmetic{Op: n.Op, Operands: operands}
	case *Cond:
		return &Cond{If: rebaseExpr(n.If, cutover), Then: rebaseExpr(n.Then, cutover), Else: rebaseExpr(n.Else, cutover)}
	case *IfNull:
		return &IfNull{Expr: rebaseExpr(n.Expr, cutover), Replacement: rebaseExpr(n.Replacement, cutover)}
	case *Switch:
		branches := make([]SwitchBranch, len(n.Branches))
		for i, b := range n.Branches {
			branches[i] = SwitchBranch{Case: rebaseExpr(b.Case, cutover), Then: rebaseExpr(b.Then, cutover)}
		}
		return &Switch{Branches: branches, Default: rebaseExprOrNil(n.Default, cutover)}
	case *String:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = rebaseExpr(a, cutover)
		}
		return &String{Op: n.Op, Args: args}
	case *Date:
		return &Date{Op: n.Op, Arg: rebaseExpr(n.Arg, cutover)}
	case *Array:
		field, _ := rebaseExprOrNil(fieldPathAsExpr(n.Field), cutover).(*FieldPath)
		extra := make([]Expr, len(n.Extra))
		for i, x := range n.Extra {
			extra[i] = rebaseExpr(x, cutover)
		}
		return &Array{
			Op: n.Op, Field: field,
			Index: rebaseExprOrNil(n.Index, cutover), SliceEnd: rebaseExprOrNil(n.SliceEnd, cutover),
			Extra: extra, Predicate: rebaseExprOrNil(n.Predicate, cutover), MapExpr: rebaseExprOrNil(n.MapExpr, cutover),
		}
	case *TypeConversion:
		return &TypeConversion{Op: n.Op, Arg: rebaseExpr(n.Arg, cutover)}
	case *Accumulator:
		acc := *n
		acc.Arg = rebaseExprOrNil(n.Arg, cutover)
		return &acc
	case *MergeObjects:
		operands := make([]Expr, len(n.Operands))
		for i, op := range n.Operands {
			operands[i] = rebaseExpr(op, cutover)
		}
		return &MergeObjects{Operands: operands}
	default:
		return e
	}
}

func fieldPathAsExpr(f *FieldPath) Expr {
	if f == nil {
		return nil
	}
	return f
}

func rebaseFieldPath(f *FieldPath, cutover map[string]fieldCutover) *FieldPath {
	if f == nil || (f.Alias != "" && f.Alias != "base") {
		return f
	}
	if len(f.Path.Segments) == 0 || f.Path.Segments[0].IsIdx {
		return f
	}
	target, ok := cutover[f.Path.Segments[0].Key]
	if !ok {
		return f
	}
	return &FieldPath{
		Path:      CanonicalPath{Segments: f.Path.Segments[1:]},
		Alias:     target.alias,
		Column:    target.column,
		Returning: f.Returning,
	}
}
