package mongoracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rhoulihan/mongoracle/internal/cache"
	"github.com/rhoulihan/mongoracle/oraclesql"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// TranslationResult is one rendered translation: a single SQL statement,
// its ordered bind values, any non-fatal diagnostics, and a capability
// rollup describing how faithfully each operator it used translated.
type TranslationResult struct {
	Name          string        `json:"name,omitempty"`
	SQL           string        `json:"sql"`
	BindVariables []any         `json:"bind_variables"`
	Warnings      []Warning     `json:"warnings"`
	Capabilities  CapabilityReport `json:"capabilities"`
}

var translationCache = cache.New(10 * time.Minute)

// Translate is the package's single entry point. It accepts the three
// request shapes documented for the system: a bare stage array (requires
// collection), a single named-pipeline object, or a PipelineList carrying
// several. Each named pipeline in the request produces one
// TranslationResult in the returned slice, in request order; a
// multi-pipeline request's SQL is additionally prefixed with a
// `-- Pipeline: <name>` header comment.
func Translate(collection string, pipeline any, options TranslationOptions) ([]TranslationResult, error) {
	requests, err := normalizeRequest(collection, pipeline, options)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, ErrEmptyPipeline
	}

	multi := len(requests) > 1
	results := make([]TranslationResult, 0, len(requests))
	for _, req := range requests {
		res, err := translateCached(req, options)
		if err != nil {
			return nil, err
		}
		if multi {
			header := fmt.Sprintf("-- Pipeline: %s\n", nameOrDefault(req.Name))
			if req.Description != "" {
				header += fmt.Sprintf("-- %s\n", req.Description)
			}
			res.SQL = header + res.SQL
		}
		results = append(results, res)
	}
	return results, nil
}

func nameOrDefault(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}

// pipelineRequest is one fully-resolved (collection, stage-array, name)
// triple, already adjusted for CollectionOverride.
type pipelineRequest struct {
	Name        string
	Description string
	Collection  string
	Stages      bson.A
}

// normalizeRequest accepts the three documented input shapes and the
// []bson.D form wrapped in Pipeline (Pipeline.BsonD()), and resolves
// them into one or more pipelineRequest values.
func normalizeRequest(collection string, pipeline any, options TranslationOptions) ([]pipelineRequest, error) {
	doc, arr, err := coerceToBSON(pipeline)
	if err != nil {
		return nil, err
	}

	if arr != nil {
		coll := collection
		if options.CollectionOverride != "" {
			coll = options.CollectionOverride
		}
		if coll == "" {
			return nil, ErrNoCollection
		}
		if len(arr) == 0 {
			return nil, ErrEmptyPipeline
		}
		return []pipelineRequest{{Collection: coll, Stages: arr}}, nil
	}

	if pipelinesVal, ok := getMapValue(doc, "pipelines"); ok {
		pipelinesArr, ok := pipelinesVal.(bson.A)
		if !ok {
			return nil, newError(InvalidPipelineStructure, "", "", "", "'pipelines' must be an array")
		}
		requests := make([]pipelineRequest, 0, len(pipelinesArr))
		for i, item := range pipelinesArr {
			itemDoc, ok := item.(bson.D)
			if !ok {
				return nil, newError(InvalidPipelineStructure, "", "", "", "pipelines[%d] must be a document", i)
			}
			req, err := singlePipelineRequest(itemDoc, options)
			if err != nil {
				return nil, err
			}
			requests = append(requests, req)
		}
		return requests, nil
	}

	req, err := singlePipelineRequest(doc, options)
	if err != nil {
		return nil, err
	}
	return []pipelineRequest{req}, nil
}

func singlePipelineRequest(doc bson.D, options TranslationOptions) (pipelineRequest, error) {
	name, _ := getMapValue(doc, "name")
	description, _ := getMapValue(doc, "description")
	collVal, _ := getMapValue(doc, "collection")
	pipelineVal, hasPipeline := getMapValue(doc, "pipeline")
	if !hasPipeline {
		return pipelineRequest{}, newError(InvalidPipelineStructure, "", "", "", "request document requires a 'pipeline' array")
	}
	arr, ok := pipelineVal.(bson.A)
	if !ok {
		return pipelineRequest{}, newError(InvalidPipelineStructure, "", "", "", "'pipeline' must be an array of stage documents")
	}
	if len(arr) == 0 {
		return pipelineRequest{}, ErrEmptyPipeline
	}
	coll := stringOf(collVal)
	if options.CollectionOverride != "" {
		coll = options.CollectionOverride
	}
	if coll == "" {
		return pipelineRequest{}, ErrNoCollection
	}
	return pipelineRequest{
		Name:        stringOf(name),
		Description: stringOf(description),
		Collection:  coll,
		Stages:      arr,
	}, nil
}

// coerceToBSON normalizes the many shapes a caller might hand Translate
// into either a bson.D (object form) or a bson.A (bare stage array), never
// both. Accepted inputs: bson.D, bson.A, []bson.D (mongo.Pipeline), a
// wrapped Pipeline, raw JSON as []byte/string.
func coerceToBSON(pipeline any) (bson.D, bson.A, error) {
	switch v := pipeline.(type) {
	case bson.D:
		return v, nil, nil
	case bson.A:
		return nil, v, nil
	case Pipeline:
		return nil, stagesToBSONA(v.BsonD()), nil
	case []bson.D:
		return nil, stagesToBSONA(v), nil
	case string:
		return decodeJSONRequest([]byte(v))
	case []byte:
		return decodeJSONRequest(v)
	default:
		return nil, nil, newError(InvalidPipelineStructure, "", "", "", "unsupported pipeline input type %T", pipeline)
	}
}

func stagesToBSONA(stages []bson.D) bson.A {
	arr := make(bson.A, len(stages))
	for i, s := range stages {
		arr[i] = s
	}
	return arr
}

func decodeJSONRequest(raw []byte) (bson.D, bson.A, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var arr bson.A
		if err := bson.UnmarshalExtJSON(raw, false, &arr); err != nil {
			return nil, nil, newError(InvalidInput, "", "", "", "malformed JSON array: %s", err)
		}
		return nil, arr, nil
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil, nil, newError(InvalidInput, "", "", "", "malformed JSON document: %s", err)
	}
	return doc, nil, nil
}

func getMapValue(doc bson.D, key string) (any, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

// translateCached checks the memoization cache before running the full
// parse/optimize/render pipeline, keyed on a digest of everything that
// affects the output: collection, stage array, and options.
func translateCached(req pipelineRequest, options TranslationOptions) (TranslationResult, error) {
	key := cacheKey(req, options)
	if cached, ok := translationCache.Get(context.Background(), key); ok {
		var res TranslationResult
		if err := json.Unmarshal([]byte(cached), &res); err == nil {
			res.Name = req.Name // Name/Description never affect SQL, so aren't part of the cache key
			return res, nil
		}
	}

	res, err := translateOne(req, options)
	if err != nil {
		return TranslationResult{}, err
	}
	if payload, err := json.Marshal(res); err == nil {
		_ = translationCache.Set(context.Background(), key, string(payload))
	}
	return res, nil
}

func cacheKey(req pipelineRequest, options TranslationOptions) string {
	canonical, err := bson.MarshalExtJSON(bson.D{
		{Key: "collection", Value: req.Collection},
		{Key: "stages", Value: req.Stages},
	}, true, false)
	if err != nil {
		canonical = []byte(req.Collection)
	}
	h := sha256.New()
	h.Write(canonical)
	fmt.Fprintf(h, "|%v|%v|%v|%v|%v|%v|%v",
		options.InlineBindVariables, options.PrettyPrint, options.IncludeHints,
		options.StrictMode, options.TargetDialect, options.DataColumnName, options.AllowedOperators)
	return hex.EncodeToString(h.Sum(nil))
}

// translateOne runs one pipeline through parse -> $sortByCount expansion
// -> optimize -> render -> finalize, per the facade algorithm.
func translateOne(req pipelineRequest, options TranslationOptions) (TranslationResult, error) {
	ctx := oraclesql.NewContext(options.TargetDialect, options.dataColumn(), options.InlineBindVariables)
	sp := oraclesql.NewStageParser(ctx, options.StrictMode)

	stages, err := sp.ParsePipeline(req.Stages)
	if err != nil {
		return TranslationResult{}, newError(InvalidPipelineStructure, "", "", "", "%s", err)
	}

	if err := checkAllowedOperators(ctx, options); err != nil {
		return TranslationResult{}, err
	}

	stages = oraclesql.CollapseLookupUnwind(stages)
	stages = oraclesql.ExpandSortByCount(stages)
	stages = oraclesql.Optimize(stages)

	oraclesql.Render(ctx, req.Collection, stages, options.IncludeHints)

	sql, binds := ctx.Finalize()
	if options.PrettyPrint {
		sql = prettyPrintSQL(sql)
	}

	warnings := make([]Warning, 0, len(ctx.Warnings()))
	for _, w := range ctx.Warnings() {
		warnings = append(warnings, Warning{Code: w.Code, Message: w.Message})
	}

	return TranslationResult{
		Name:          req.Name,
		SQL:           sql,
		BindVariables: binds,
		Warnings:      warnings,
		Capabilities:  newCapabilityReport(ctx.Capabilities()),
	}, nil
}

// checkAllowedOperators enforces options.AllowedOperators, when set,
// against every stage capability the parser recorded. In strict mode a
// disallowed stage is fatal; otherwise a warning is added for it and
// translation continues.
func checkAllowedOperators(ctx *oraclesql.Context, options TranslationOptions) error {
	if options.AllowedOperators == nil {
		return nil
	}
	for name := range ctx.Capabilities() {
		if !options.AllowedOperators[name] {
			if options.StrictMode {
				return newError(UnsupportedOperator, "", name, "", "operator %q is not in the allowed list", name)
			}
			ctx.Warn(oraclesql.UnsupportedOperator, fmt.Sprintf("operator %q is not in the allowed list", name))
		}
	}
	return nil
}

// prettyPrintSQL reindents the generated single-line SQL by inserting a
// newline before each major clause keyword. It is a textual pass over
// already-valid SQL, not a reparse - simple and good enough for the
// debugging use case pretty_print exists for.
func prettyPrintSQL(sql string) string {
	clauses := []string{" FROM ", " WHERE ", " GROUP BY ", " HAVING ", " ORDER BY ", " OFFSET ", " FETCH FIRST ", " UNION ALL "}
	out := sql
	for _, clause := range clauses {
		out = strings.ReplaceAll(out, clause, "\n"+strings.TrimSpace(clause)+" ")
	}
	return out
}
