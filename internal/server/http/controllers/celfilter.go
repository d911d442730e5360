package controllers

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/cel-go/cel"

	"github.com/luismedel/quiu/internal/logstore"
)

// celFilter wraps a compiled CEL program used by range reads. When disabled,
// Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("offset", cel.IntType),
		cel.Variable("ts_ns", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		// Parsed JSON payload (map/list/values); null when not JSON.
		cel.Variable("json", cel.DynType),
		cel.Variable("now_ns", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return celFilter{}, errNotBool
	}
	prog, err := env.Program(ast)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

type filterError string

func (e filterError) Error() string { return string(e) }

const errNotBool = filterError("filter must evaluate to a bool")

// Eval evaluates the expression against a record. Evaluation errors count as
// a non-match.
func (f celFilter) Eval(rec logstore.Record, now time.Time) bool {
	if !f.enabled {
		return true
	}
	var jsonObj any
	_ = json.Unmarshal(rec.Payload, &jsonObj)
	out, _, err := f.prog.Eval(map[string]any{
		"offset": rec.Offset,
		"ts_ns":  rec.Timestamp,
		"size":   int64(len(rec.Payload)),
		"text":   string(rec.Payload),
		"json":   jsonObj,
		"now_ns": now.UnixNano(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
