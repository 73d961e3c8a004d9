package mongoracle

import "github.com/rhoulihan/mongoracle/oraclesql"

// TranslationOptions controls how Translate renders a pipeline. It is a
// plain struct, not a functional-options chain: every field has a
// documented default and callers build one with a struct literal.
type TranslationOptions struct {
	// InlineBindVariables formats literals directly into the SQL text
	// instead of binding them as :1, :2, ... placeholders. Default false.
	InlineBindVariables bool

	// PrettyPrint reindents the generated SQL for readability. Default
	// false: the renderer emits a single-line statement.
	PrettyPrint bool

	// IncludeHints adds /*+ NO_XMLQUERY_REWRITE */ immediately after the
	// outermost SELECT. Default true.
	IncludeHints bool

	// StrictMode makes an unknown stage or operator a fatal error. Default
	// false: an unknown stage is dropped with a warning, and an unknown
	// expression or filter operator renders as NULL without a warning.
	StrictMode bool

	// TargetDialect selects the Oracle JSON/SQL variant. Default
	// Oracle26ai.
	TargetDialect oraclesql.Dialect

	// AllowedOperators, when non-nil, is a whitelist of stage keywords
	// (e.g. "$match", "$group"); expression operators are not checked
	// against it. In StrictMode any other stage is a fatal
	// UnsupportedOperator error; otherwise it adds a warning and the stage
	// is still translated.
	AllowedOperators map[string]bool

	// DataColumnName is the JSON column name on the Oracle table holding
	// each document, e.g. base.<DataColumnName>. Default "data".
	DataColumnName string

	// CollectionOverride, when non-empty, replaces the facade's
	// `collection` argument for every pipeline in the request - useful
	// when a caller pre-validates the name against a catalog and wants
	// the canonical form reflected in the SQL regardless of what the
	// request document said.
	CollectionOverride string
}

// DefaultOptions returns the documented zero-value-safe defaults.
func DefaultOptions() TranslationOptions {
	return TranslationOptions{
		IncludeHints:   true,
		TargetDialect:  oraclesql.Oracle26ai,
		DataColumnName: "data",
	}
}

func (o TranslationOptions) dataColumn() string {
	if o.DataColumnName == "" {
		return "data"
	}
	return o.DataColumnName
}
