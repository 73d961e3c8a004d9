// Package oraclesql is the translation engine: it lifts loosely typed
// MongoDB aggregation stage/expression documents into a typed AST, runs a
// small chain of semantics-preserving optimization passes over it, and
// renders the result as Oracle SQL/JSON text plus an ordered bind list.
//
// The engine is the generalized, SQL-targeting descendant of a Go-source
// code generator: instead of printing builder-call source text for a given
// bson.D/bson.A shape, every node here prints Oracle dialect SQL through a
// Context that accumulates a bind list alongside the text.
package oraclesql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Dialect selects the target Oracle SQL/JSON variant. All three variants
// share the same rendering rules today; the enum exists because dialect
// differences (e.g. JSON_TABLE error clauses, newer JSON_OBJECT shorthand)
// are the kind of thing that arrives in a point release and a caller needs
// to be able to pin one down.
type Dialect int

const (
	Oracle21c Dialect = iota
	Oracle23ai
	Oracle26ai
)

func (d Dialect) String() string {
	switch d {
	case Oracle21c:
		return "Oracle21c"
	case Oracle23ai:
		return "Oracle23ai"
	case Oracle26ai:
		return "Oracle26ai"
	default:
		return "Oracle26ai"
	}
}

// plainIdentifier matches identifiers that Oracle accepts unquoted.
var plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Warning is a single non-fatal diagnostic collected during rendering.
type Warning struct {
	Code    string
	Message string
}

// Diagnostic codes used in Context.Warn calls across the AST and stage
// files. These mirror the error taxonomy labels (spec ErrorCode values)
// but are plain strings here since warnings, unlike fatal errors, are not
// typed - the renderer never aborts on one.
const (
	UnsupportedOperator    = "UnsupportedOperator"
	UnsupportedCombination = "UnsupportedCombination"
)

// groupScope tracks, while a Group (or window) stage is being rendered,
// which output aliases subsequent field references must resolve against
// instead of a raw document path. Entering group scope is a property of
// the Context, not of any one field-path node.
type groupScope struct {
	aliases map[string]bool
}

// Context is the single component that touches the output SQL buffer. All
// rendering goes through it: AST nodes never build their own strings. A
// Context is created fresh per translation call and never shared, so the
// alias counter and bind list are local - two concurrent translations can
// never collide.
type Context struct {
	buf strings.Builder

	binds  []any
	inline bool

	dialect    Dialect
	dataColumn string

	aliasCounter int

	numericReturn bool // true while rendering a field path that must be scalar (date, type conversion, arithmetic, COALESCE LHS)

	scope *groupScope

	warnings []Warning
	caps     map[string]string
}

// NewContext builds a fresh rendering Context for one translation call.
func NewContext(dialect Dialect, dataColumn string, inline bool) *Context {
	if dataColumn == "" {
		dataColumn = "data"
	}
	return &Context{
		dialect:    dialect,
		dataColumn: dataColumn,
		inline:     inline,
		caps:       make(map[string]string),
	}
}

// SQL appends a verbatim fragment to the output buffer. No escaping.
func (c *Context) SQL(fragment string) {
	c.buf.WriteString(fragment)
}

// SQLf appends a formatted fragment.
func (c *Context) SQLf(format string, args ...any) {
	fmt.Fprintf(&c.buf, format, args...)
}

// Bind records a bind value. In non-inline mode it pushes value onto the
// bind list and appends the placeholder `:<n>` where n is the new 1-based
// index. In inline mode it appends the formatted SQL literal directly.
// Bind indices are strictly increasing and 1-based, append-only, never
// reused - this is what keeps the :n -> bind-list mapping valid even when
// the renderer wraps a subquery around already-rendered fragments.
func (c *Context) Bind(value any) {
	if c.inline {
		c.buf.WriteString(FormatLiteral(value))
		return
	}
	c.binds = append(c.binds, value)
	c.buf.WriteString(":" + strconv.Itoa(len(c.binds)))
}

// Identifier appends name as-is if it is a plain SQL identifier, otherwise
// double-quoted with internal double quotes doubled. Quoting is idempotent:
// an already double-quoted identifier is detected and passed through.
func (c *Context) Identifier(name string) {
	c.buf.WriteString(QuoteIdentifier(name))
}

// QuoteIdentifier is the standalone form of Context.Identifier, usable by
// callers (the renderer, alias generation) that need the quoted text
// without writing it into a Context yet.
func QuoteIdentifier(name string) string {
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		return name // already quoted
	}
	if plainIdentifier.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// FormatLiteral renders value as an inline SQL literal: strings single
// quoted with doubled internal quotes, numbers/booleans as their SQL
// literal, nil as NULL.
func FormatLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", v)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", v), "'", "''") + "'"
	}
}

// NextAlias allocates the next alias in a per-translation sequence shared
// by all kinds (lookup_1, unwind_2, ...). Never a process-wide counter.
func (c *Context) NextAlias(kind string) string {
	c.aliasCounter++
	return fmt.Sprintf("%s_%d", kind, c.aliasCounter)
}

// Inline reports whether bind values should be formatted as literals.
func (c *Context) Inline() bool { return c.inline }

// DialectVersion reports the target Oracle SQL/JSON variant.
func (c *Context) DialectVersion() Dialect { return c.dialect }

// DataColumn reports the configured JSON data-column name (default "data").
func (c *Context) DataColumn() string { return c.dataColumn }

// EnterNumericReturn marks that any field path rendered while active must
// render in JSON_VALUE ... RETURNING form instead of dot notation - date
// extraction, type conversion, arithmetic, and COALESCE/NVL left-hand
// sides all require this. A field path with no RETURNING type of its own
// then renders RETURNING VARCHAR2(4000). It returns a restore function.
func (c *Context) EnterNumericReturn() func() {
	prev := c.numericReturn
	c.numericReturn = true
	return func() { c.numericReturn = prev }
}

// RequiresScalarReturn reports whether the current rendering position
// requires a field path to render as JSON_VALUE ... RETURNING rather than
// dot notation.
func (c *Context) RequiresScalarReturn() bool { return c.numericReturn }

// EnterGroupScope marks the given output aliases (the group key alias plus
// every accumulator output name) as the only valid field resolution targets
// until the returned restore function runs.
func (c *Context) EnterGroupScope(aliases []string) func() {
	prev := c.scope
	m := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		m[a] = true
	}
	c.scope = &groupScope{aliases: m}
	return func() { c.scope = prev }
}

// GroupAlias reports whether name is a valid alias in the current group
// scope, and whether a group scope is active at all.
func (c *Context) GroupAlias(name string) (isAlias bool, active bool) {
	if c.scope == nil {
		return false, false
	}
	return c.scope.aliases[name], true
}

// Warn records a non-fatal diagnostic.
func (c *Context) Warn(code, message string) {
	c.warnings = append(c.warnings, Warning{Code: code, Message: message})
}

// Warnings returns the diagnostics collected so far.
func (c *Context) Warnings() []Warning { return c.warnings }

// Capability records the support label assigned to an operator or stage
// name. Later calls for the same name overwrite earlier ones; the stage
// parser records a stage's label each time it parses that stage.
func (c *Context) Capability(name, label string) {
	c.caps[name] = label
}

// Capabilities returns the accumulated operator/stage -> label map.
func (c *Context) Capabilities() map[string]string { return c.caps }

// Finalize returns the accumulated SQL text and bind list. Called once, at
// the end of rendering.
func (c *Context) Finalize() (string, []any) {
	return c.buf.String(), c.binds
}
