package pipeline

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/query/ast"
	"jfrq/internal/query/expr"
)

// runSelect implements spec §4.5's select(): each SelectItem is either a bare
// field path (output column name defaults to the path's last segment) or an
// expression (output column name is its mandatory alias).
func runSelect(rows []*Row, op ast.SelectOp) ([]*Row, error) {
	out := make([]*Row, len(rows))
	for i, r := range rows {
		nr := NewRow()
		for _, item := range op.Items {
			name, v, err := evalSelectItem(r, item)
			if err != nil {
				return nil, err
			}
			nr.Set(name, v)
		}
		out[i] = nr
	}
	return out, nil
}

func evalSelectItem(r *Row, item ast.SelectItem) (string, chunk.Value, error) {
	if item.Expr != nil {
		if item.Alias == "" {
			return "", chunk.Value{}, fmt.Errorf("select: expression items require an alias")
		}
		v, err := expr.Eval(r.AsFieldMap(), item.Expr)
		if err != nil {
			return "", chunk.Value{}, err
		}
		return item.Alias, v, nil
	}

	name := item.Alias
	if name == "" {
		name = lastPathSegment(item.Path)
	}
	v := resolveFieldSelection(r, item.Path)
	return name, v, nil
}

// resolveFieldSelection navigates item.Path, transparently honoring a
// trailing `{$.jsonpath}` suffix (parseColumnJPath/evaluateColumnJPath's
// brace-delimited convention): the path up to the brace selects a field
// whose string value is treated as embedded JSON, and the JSONPath
// expression inside the braces is evaluated against it with ojg/jp.
func resolveFieldSelection(r *Row, rawPath string) chunk.Value {
	path, jpathExpr, hasJPath := parseFieldJPath(rawPath)
	v, ok := navigateOne(r, path)
	if !ok {
		return chunk.Value{Kind: chunk.KindNull}
	}
	v = v.Resolve()
	if !hasJPath {
		return v
	}
	s, ok := v.AsString()
	if !ok {
		return chunk.Value{Kind: chunk.KindNull}
	}
	return evaluateFieldJPath(s, jpathExpr)
}

// parseFieldJPath splits "requestParameters{$.durationSeconds}" into
// ("requestParameters", "$.durationSeconds", true), mirroring
// app/query/stages.go's parseColumnJPath.
func parseFieldJPath(path string) (string, string, bool) {
	open := strings.Index(path, "{")
	if open == -1 {
		return path, "", false
	}
	closeIdx := strings.LastIndex(path, "}")
	if closeIdx == -1 || closeIdx <= open {
		return path, "", false
	}
	fieldPath := strings.TrimSpace(path[:open])
	jpathExpr := strings.TrimSpace(path[open+1 : closeIdx])
	if fieldPath == "" || jpathExpr == "" {
		return path, "", false
	}
	return fieldPath, jpathExpr, true
}

// evaluateFieldJPath parses jsonValue and extracts the first JSONPath match,
// mirroring app/query/stages.go's evaluateColumnJPath but returning a typed
// chunk.Value instead of a pre-stringified column value.
func evaluateFieldJPath(jsonValue, jpathExpr string) chunk.Value {
	data, err := oj.ParseString(jsonValue)
	if err != nil {
		return chunk.Value{Kind: chunk.KindNull}
	}
	path, err := jp.ParseString(jpathExpr)
	if err != nil {
		return chunk.Value{Kind: chunk.KindNull}
	}
	results := path.Get(data)
	if len(results) == 0 {
		return chunk.Value{Kind: chunk.KindNull}
	}
	return jpathResultToValue(results[0])
}

func jpathResultToValue(result interface{}) chunk.Value {
	switch v := result.(type) {
	case nil:
		return chunk.Value{Kind: chunk.KindNull}
	case string:
		return chunk.Value{Kind: chunk.KindScalar, Scalar: v}
	case bool:
		return chunk.Value{Kind: chunk.KindScalar, Scalar: v}
	case int64:
		return chunk.Value{Kind: chunk.KindScalar, Scalar: v}
	case int:
		return chunk.Value{Kind: chunk.KindScalar, Scalar: int64(v)}
	case float64:
		if v == float64(int64(v)) {
			return chunk.Value{Kind: chunk.KindScalar, Scalar: int64(v)}
		}
		return chunk.Value{Kind: chunk.KindScalar, Scalar: v}
	case map[string]interface{}, []interface{}:
		b, err := oj.Marshal(v)
		if err != nil {
			return chunk.Value{Kind: chunk.KindScalar, Scalar: fmt.Sprintf("%v", v)}
		}
		return chunk.Value{Kind: chunk.KindScalar, Scalar: string(b)}
	default:
		return chunk.Value{Kind: chunk.KindScalar, Scalar: fmt.Sprintf("%v", v)}
	}
}
