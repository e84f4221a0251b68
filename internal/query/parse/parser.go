// Package parse implements QPath's hand-written recursive-descent parser,
// generalizing the teacher's filter_expr.go tokenize-then-parse shape
// (tokenizer → parseOr → parseAnd → parseNot → parsePrimary) to the full
// query grammar from spec §4.2: root, event types, path segments with
// index/slice/predicate brackets, and the `|`-chained pipeline.
package parse

import (
	"strings"

	"jfrq/internal/query/ast"
)

type parser struct {
	tokens []token
	pos    int
}

// Parse parses a single QPath string into a Query AST. It never panics;
// malformed input always produces a *SyntaxError (spec §4.2).
func Parse(input string) (q *ast.Query, err error) {
	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(*SyntaxError); ok {
				err = se
				return
			}
			panic(r)
		}
	}()

	toks, lexErr := lexAll(input)
	if lexErr != nil {
		return nil, lexErr
	}
	p := &parser{tokens: toks}
	return p.parseQuery()
}

func lexAll(input string) ([]token, error) {
	l := newLexer(input)
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}

func (p *parser) peek() token { return p.tokens[p.pos] }
func (p *parser) peekAt(offset int) token {
	i := p.pos + offset
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}
func (p *parser) atEOF() bool { return p.peek().kind == tokEOF }
func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) fail(msg string) {
	panic(&SyntaxError{Position: p.peek().pos, Message: msg})
}

func (p *parser) expect(k tokenKind, what string) token {
	if p.peek().kind != k {
		p.fail("expected " + what)
	}
	return p.advance()
}

func (p *parser) parseQuery() (*ast.Query, error) {
	q := &ast.Query{}

	rootTok := p.expect(tokIdent, "root (events|metadata|chunks|cp)")
	switch strings.ToLower(rootTok.text) {
	case "events":
		q.Root = ast.RootEvents
	case "metadata":
		q.Root = ast.RootMetadata
	case "chunks":
		q.Root = ast.RootChunks
	case "cp":
		q.Root = ast.RootConstantPool
	default:
		panic(&SyntaxError{Position: rootTok.pos, Message: "unknown root " + rootTok.text})
	}

	if q.Root == ast.RootEvents && p.peek().kind == tokSlash {
		p.advance()
		q.EventTypes = p.parseEventTypeList()
	}

	for p.peek().kind == tokSlash {
		p.advance()
		seg := p.parseSegment()
		q.Segments = append(q.Segments, seg)
	}

	// Predicates bracketed directly after the event-type segment (the
	// common case exercised throughout spec §8's scenarios) attach to the
	// query itself rather than to a path segment.
	for p.peek().kind == tokLBracket {
		q.Predicates = append(q.Predicates, p.parseBracketedPredicate())
	}

	for p.peek().kind == tokPipe {
		p.advance()
		q.Pipeline = append(q.Pipeline, p.parsePipelineOp())
	}

	if !p.atEOF() {
		p.fail("unexpected trailing input")
	}
	return q, nil
}

func (p *parser) parseEventTypeList() []string {
	var names []string
	names = append(names, p.expect(tokIdent, "event type name").text)
	for p.peek().kind == tokComma {
		p.advance()
		names = append(names, p.expect(tokIdent, "event type name").text)
	}
	return names
}

func (p *parser) parseSegment() ast.Segment {
	name := p.expect(tokIdent, "path segment").text
	seg := ast.Segment{Name: name}

	for p.peek().kind == tokLBracket {
		if idx, sl, ok := p.tryParseIndexOrSlice(); ok {
			if idx != nil {
				seg.Index = idx
			}
			if sl != nil {
				seg.Slice = sl
			}
			continue
		}
		seg.Predicates = append(seg.Predicates, p.parseBracketedPredicate())
	}
	return seg
}

// tryParseIndexOrSlice attempts the "[" index "]" or "[" start ":" end "]"
// productions. On failure it rewinds and returns ok=false so the caller
// falls back to parsing a bracketed predicate instead (spec §4.2's segment
// vs. predicate brackets share the same `[`...`]` delimiters).
func (p *parser) tryParseIndexOrSlice() (idx *int64, sl *ast.SliceRange, ok bool) {
	save := p.pos
	defer func() {
		if r := recover(); r != nil {
			p.pos = save
			ok = false
		}
	}()

	p.expect(tokLBracket, "[")
	if p.peek().kind != tokNumber {
		p.pos = save
		return nil, nil, false
	}
	first := p.advance()
	if p.peek().kind == tokColon {
		p.advance()
		second := p.expect(tokNumber, "slice end").num
		p.expect(tokRBracket, "]")
		return nil, &ast.SliceRange{From: int64(first.num), To: int64(second)}, true
	}
	if p.peek().kind != tokRBracket {
		p.pos = save
		return nil, nil, false
	}
	p.advance()
	v := int64(first.num)
	return &v, nil, true
}

// parseBracketedPredicate parses "[" (matchMode ":")? boolExpr "]".
func (p *parser) parseBracketedPredicate() ast.Predicate {
	p.expect(tokLBracket, "[")

	mode := ast.MatchAny
	if p.peek().kind == tokIdent {
		switch strings.ToLower(p.peek().text) {
		case "any", "all", "none":
			save := p.pos
			kw := p.advance()
			if p.peek().kind == tokColon {
				p.advance()
				switch strings.ToLower(kw.text) {
				case "any":
					mode = ast.MatchAny
				case "all":
					mode = ast.MatchAll
				case "none":
					mode = ast.MatchNone
				}
			} else {
				p.pos = save
			}
		}
	}

	expr := p.parseBoolOr()
	p.expect(tokRBracket, "]")

	pred := ast.Predicate{Mode: mode, Expr: expr}
	if cmp, isCmp := expr.(ast.Cmp); isCmp {
		pred.Field = &ast.FieldPredicate{Path: cmp.Path, Op: cmp.Op, Literal: cmp.Literal}
	}
	return pred
}

// --- boolean expression grammar: parseBoolOr -> parseBoolAnd -> parseBoolNot -> parseBoolPrimary ---

func (p *parser) parseBoolOr() ast.BoolExpr {
	left := p.parseBoolAnd()
	for p.isLogicalOr() {
		p.consumeLogical()
		right := p.parseBoolAnd()
		left = ast.Logical{Left: left, Op: ast.LogicalOr, Right: right}
	}
	return left
}

func (p *parser) parseBoolAnd() ast.BoolExpr {
	left := p.parseBoolNot()
	for p.isLogicalAnd() {
		p.consumeLogical()
		right := p.parseBoolNot()
		left = ast.Logical{Left: left, Op: ast.LogicalAnd, Right: right}
	}
	return left
}

func (p *parser) parseBoolNot() ast.BoolExpr {
	if p.peek().kind == tokNot || p.peek().kind == tokBang {
		p.advance()
		return ast.Not{Inner: p.parseBoolNot()}
	}
	return p.parseBoolPrimary()
}

func (p *parser) isLogicalOr() bool {
	return p.peek().kind == tokOr || p.peek().kind == tokPipePipe
}

func (p *parser) isLogicalAnd() bool {
	return p.peek().kind == tokAnd || p.peek().kind == tokAmpAmp
}

func (p *parser) consumeLogical() { p.advance() }

func (p *parser) parseBoolPrimary() ast.BoolExpr {
	if p.peek().kind == tokLParen {
		p.advance()
		inner := p.parseBoolOr()
		p.expect(tokRParen, ")")
		return inner
	}

	name := p.expect(tokIdent, "predicate path or function").text

	if p.peek().kind == tokLParen {
		args := p.parseArgList()
		return ast.FuncBool{Name: name, Args: args}
	}

	// A predicate path may span multiple "/"-separated segments (e.g.
	// "stackTrace/frames/bytecodeIndex"), the same grammar projection uses.
	path := name
	for p.peek().kind == tokSlash && p.peekAt(1).kind == tokIdent {
		p.advance() // consume "/"
		seg := p.advance()
		path += "/" + seg.text
	}

	op := p.parseCmpOp()
	lit := p.parseLiteralToken()
	return ast.Cmp{Path: path, Op: op, Literal: lit}
}

func (p *parser) parseCmpOp() ast.CmpOp {
	t := p.peek()
	switch t.kind {
	case tokRegexMatch:
		p.advance()
		return ast.CmpRegex
	case tokRegex:
		p.advance()
		return ast.CmpRegex
	case tokEq, tokAssign:
		p.advance()
		return ast.CmpEq
	case tokNotEq:
		p.advance()
		return ast.CmpNotEq
	case tokGtEq:
		p.advance()
		return ast.CmpGtEq
	case tokGt:
		p.advance()
		return ast.CmpGt
	case tokLtEq:
		p.advance()
		return ast.CmpLtEq
	case tokLt:
		p.advance()
		return ast.CmpLt
	default:
		p.fail("expected comparison operator")
		return ast.CmpEq
	}
}

func (p *parser) parseLiteralToken() ast.Literal {
	t := p.advance()
	switch t.kind {
	case tokString:
		return ast.Literal{Value: t.str}
	case tokNumber:
		if t.isInt {
			return ast.Literal{Value: int64(t.num)}
		}
		return ast.Literal{Value: t.num}
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return ast.Literal{Value: true}
		case "false":
			return ast.Literal{Value: false}
		default:
			return ast.Literal{Value: t.text}
		}
	default:
		p.fail("expected literal")
		return ast.Literal{}
	}
}

func (p *parser) parseArgList() []ast.Expr {
	p.expect(tokLParen, "(")
	var args []ast.Expr
	if p.peek().kind != tokRParen {
		args = append(args, p.parseExpr())
		for p.peek().kind == tokComma {
			p.advance()
			args = append(args, p.parseExpr())
		}
	}
	p.expect(tokRParen, ")")
	return args
}

// --- select-expression grammar: parseExpr (additive) -> parseTerm (multiplicative) -> parseUnary -> parseAtom ---

func (p *parser) parseExpr() ast.Expr {
	left := p.parseTerm()
	for p.peek().kind == tokPlus || p.peek().kind == tokMinus {
		op := ast.BinAdd
		if p.peek().kind == tokMinus {
			op = ast.BinSub
		}
		p.advance()
		right := p.parseTerm()
		left = ast.Binary{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseTerm() ast.Expr {
	left := p.parseUnary()
	for p.peek().kind == tokStar || p.peek().kind == tokSlash {
		op := ast.BinMul
		if p.peek().kind == tokSlash {
			op = ast.BinDiv
		}
		p.advance()
		right := p.parseUnary()
		left = ast.Binary{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseUnary() ast.Expr {
	if p.peek().kind == tokMinus {
		p.advance()
		inner := p.parseUnary()
		return ast.Binary{Op: ast.BinSub, Left: ast.LiteralExpr{Literal: ast.Literal{Value: int64(0)}}, Right: inner}
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() ast.Expr {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.advance()
		inner := p.parseExpr()
		p.expect(tokRParen, ")")
		return inner
	case tokNumber:
		p.advance()
		if t.isInt {
			return ast.LiteralExpr{Literal: ast.Literal{Value: int64(t.num)}}
		}
		return ast.LiteralExpr{Literal: ast.Literal{Value: t.num}}
	case tokString:
		p.advance()
		return p.parseStringOrTemplate(t.str)
	case tokIdent:
		p.advance()
		if p.peek().kind == tokLParen {
			args := p.parseArgList()
			return ast.Func{Name: t.text, Args: args}
		}
		switch strings.ToLower(t.text) {
		case "true":
			return ast.LiteralExpr{Literal: ast.Literal{Value: true}}
		case "false":
			return ast.LiteralExpr{Literal: ast.Literal{Value: false}}
		}
		path := t.text
		// A field reference may span multiple "/"-separated segments, the
		// same path grammar projection uses (spec §4.5.1, "same rules as
		// projection"). Only extend across a "/" when it's followed by
		// another identifier — "/" before a number is division
		// ("bytes/1024"), not a path continuation.
		for p.peek().kind == tokSlash && p.peekAt(1).kind == tokIdent {
			p.advance() // consume "/"
			seg := p.advance()
			path += "/" + seg.text
		}
		return ast.FieldRef{Path: path}
	default:
		p.fail("expected expression")
		return nil
	}
}

// parseStringOrTemplate splits a decoded double/single-quoted string on
// "${...}" markers into an ast.StringTemplate, or returns a plain literal
// when no marker is present (spec §4.5.1, §9: parsed once, at parse time).
func (p *parser) parseStringOrTemplate(decoded string) ast.Expr {
	if !strings.Contains(decoded, "${") {
		return ast.LiteralExpr{Literal: ast.Literal{Value: decoded}}
	}

	var parts []string
	var exprs []ast.Expr
	rest := decoded
	for {
		i := strings.Index(rest, "${")
		if i < 0 {
			parts = append(parts, rest)
			break
		}
		parts = append(parts, rest[:i])
		rest = rest[i+2:]
		j := strings.Index(rest, "}")
		if j < 0 {
			panic(&SyntaxError{Message: "unterminated ${...} in string template"})
		}
		inner := rest[:j]
		rest = rest[j+1:]

		sub := &parser{}
		toks, err := lexAll(inner)
		if err != nil {
			panic(err)
		}
		sub.tokens = toks
		exprs = append(exprs, sub.parseExpr())
	}
	return ast.StringTemplate{Parts: parts, Exprs: exprs}
}

// --- pipeline operators ---

func (p *parser) parsePipelineOp() ast.PipelineOp {
	name := p.expect(tokIdent, "pipeline operator name").text
	p.expect(tokLParen, "(")

	op := p.dispatchPipelineOp(strings.ToLower(name))

	p.expect(tokRParen, ")")
	return op
}

// pipelineArg is one parsed "name=value" or positional argument inside a
// pipeline operator's parenthesized argument list.
type pipelineArg struct {
	name  string // empty for positional args
	expr  ast.Expr
	path  string // set when the value looked like a bare path/ident
	isNum bool
	num   float64
}

func (p *parser) parsePipelineArgs() []pipelineArg {
	var args []pipelineArg
	for p.peek().kind != tokRParen {
		args = append(args, p.parsePipelineArg())
		if p.peek().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	return args
}

func (p *parser) parsePipelineArg() pipelineArg {
	// name=value form: ident "=" value. Detected by a following tokAssign
	// after a bare identifier, distinguishing it from a positional path arg.
	if p.peek().kind == tokIdent {
		save := p.pos
		id := p.advance()
		if p.peek().kind == tokAssign {
			p.advance()
			return p.parsePipelineValue(id.text)
		}
		p.pos = save
	}
	arg := p.parsePipelineValue("")

	// select()'s "expr as alias" form (spec §4.5.1, e.g. "bytes/1024 as kb").
	if p.peek().kind == tokAs {
		p.advance()
		alias := p.expect(tokIdent, "alias after 'as'").text
		arg.name = alias
	}
	return arg
}

func (p *parser) parsePipelineValue(name string) pipelineArg {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.advance()
		return pipelineArg{name: name, isNum: true, num: t.num}
	case tokString:
		p.advance()
		return pipelineArg{name: name, path: t.str}
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true", "false":
			p.advance()
			return pipelineArg{name: name, path: strings.ToLower(t.text)}
		}
		expr := p.parseExpr()
		if fr, ok := expr.(ast.FieldRef); ok {
			return pipelineArg{name: name, path: fr.Path, expr: expr}
		}
		return pipelineArg{name: name, expr: expr}
	default:
		expr := p.parseExpr()
		return pipelineArg{name: name, expr: expr}
	}
}

func findArg(args []pipelineArg, name string) (pipelineArg, bool) {
	for _, a := range args {
		if a.name == name {
			return a, true
		}
	}
	return pipelineArg{}, false
}

func positional(args []pipelineArg, idx int) (pipelineArg, bool) {
	n := -1
	for _, a := range args {
		if a.name != "" {
			continue
		}
		n++
		if n == idx {
			return a, true
		}
	}
	return pipelineArg{}, false
}

func (p *parser) dispatchPipelineOp(name string) ast.PipelineOp {
	args := p.parsePipelineArgs()

	switch name {
	case "count":
		return ast.CountOp{}
	case "sum":
		path, _ := optionalPath(args, 0)
		return ast.SumOp{Path: path}
	case "stats":
		path, _ := optionalPath(args, 0)
		return ast.StatsOp{Path: path}
	case "quantiles":
		var qs []float64
		var path string
		for i, a := range args {
			if a.name == "path" {
				path = a.path
				continue
			}
			if a.name != "" {
				continue
			}
			_ = i
			qs = append(qs, a.num)
		}
		return ast.QuantilesOp{Quantiles: qs, Path: path}
	case "sketch":
		path, _ := optionalPath(args, 0)
		return ast.SketchOp{Path: path}
	case "groupby":
		key, _ := positional(args, 0)
		agg := ast.AggCount
		if a, ok := findArg(args, "agg"); ok {
			agg = parseAggFunc(a.path)
		}
		valuePath := ""
		if a, ok := findArg(args, "value"); ok {
			valuePath = a.path
		}
		// sortBy defaults to unset (first-seen key order, spec §5 "groupBy
		// emits keys in first-seen order"); an explicit sortBy=key|value
		// opts into an ordered result.
		sortBy := ""
		if a, ok := findArg(args, "sortBy"); ok {
			sortBy = a.path
		}
		asc := true
		if a, ok := findArg(args, "asc"); ok {
			asc = a.path == "true"
		}
		return ast.GroupByOp{KeyPath: key.path, Agg: agg, ValuePath: valuePath, SortBy: sortBy, Asc: asc}
	case "top":
		n, _ := positional(args, 0)
		by := ""
		if a, ok := findArg(args, "by"); ok {
			by = a.path
		}
		asc := false
		if a, ok := findArg(args, "asc"); ok {
			asc = a.path == "true"
		}
		return ast.TopOp{N: int(n.num), By: by, Asc: asc}
	case "sortby":
		field, _ := positional(args, 0)
		asc := false
		if a, ok := findArg(args, "asc"); ok {
			asc = a.path == "true"
		}
		return ast.SortByOp{Field: field.path, Asc: asc}
	case "len":
		path, _ := optionalPath(args, 0)
		return ast.TransformOp{Kind: ast.TransformLen, Path: path}
	case "uppercase":
		path, _ := optionalPath(args, 0)
		return ast.TransformOp{Kind: ast.TransformUpper, Path: path}
	case "lowercase":
		path, _ := optionalPath(args, 0)
		return ast.TransformOp{Kind: ast.TransformLower, Path: path}
	case "trim":
		path, _ := optionalPath(args, 0)
		return ast.TransformOp{Kind: ast.TransformTrim, Path: path}
	case "abs":
		path, _ := optionalPath(args, 0)
		return ast.TransformOp{Kind: ast.TransformAbs, Path: path}
	case "round":
		path, _ := optionalPath(args, 0)
		return ast.TransformOp{Kind: ast.TransformRound, Path: path}
	case "floor":
		path, _ := optionalPath(args, 0)
		return ast.TransformOp{Kind: ast.TransformFloor, Path: path}
	case "ceil":
		path, _ := optionalPath(args, 0)
		return ast.TransformOp{Kind: ast.TransformCeil, Path: path}
	case "contains":
		path, _ := positional(args, 0)
		str, _ := positional(args, 1)
		return ast.TransformOp{Kind: ast.TransformContains, Path: path.path, Args: []string{str.path}}
	case "replace":
		path, _ := positional(args, 0)
		a0, _ := positional(args, 1)
		a1, _ := positional(args, 2)
		return ast.TransformOp{Kind: ast.TransformReplace, Path: path.path, Args: []string{a0.path, a1.path}}
	case "select":
		return ast.SelectOp{Items: parseSelectItems(args)}
	case "tomap":
		k, _ := positional(args, 0)
		v, _ := positional(args, 1)
		return ast.ToMapOp{KeyField: k.path, ValueField: v.path}
	case "timerange":
		ticks, _ := positional(args, 0)
		dur := ""
		if a, ok := findArg(args, "duration"); ok {
			dur = a.path
		}
		format := ""
		if a, ok := findArg(args, "format"); ok {
			format = a.path
		}
		return ast.TimeRangeOp{TicksPath: ticks.path, DurationPath: dur, Format: format}
	case "decoratebytime":
		decoratorType, _ := positional(args, 0)
		var fields []string
		if a, ok := findArg(args, "fields"); ok {
			fields = splitFieldList(a.path)
		}
		threadPath := "eventThread/javaThreadId"
		if a, ok := findArg(args, "threadPath"); ok {
			threadPath = a.path
		}
		decoratorThreadPath := "eventThread/javaThreadId"
		if a, ok := findArg(args, "decoratorThreadPath"); ok {
			decoratorThreadPath = a.path
		}
		return ast.DecorateByTimeOp{DecoratorType: decoratorType.path, Fields: fields, ThreadPath: threadPath, DecoratorThreadPath: decoratorThreadPath}
	case "decoratebykey":
		decoratorType, _ := positional(args, 0)
		key := ""
		if a, ok := findArg(args, "key"); ok {
			key = a.path
		}
		decoratorKey := ""
		if a, ok := findArg(args, "decoratorKey"); ok {
			decoratorKey = a.path
		}
		var fields []string
		if a, ok := findArg(args, "fields"); ok {
			fields = splitFieldList(a.path)
		}
		return ast.DecorateByKeyOp{DecoratorType: decoratorType.path, Key: key, DecoratorKey: decoratorKey, Fields: fields}
	default:
		p.fail("unknown pipeline operator " + name)
		return nil
	}
}

func optionalPath(args []pipelineArg, idx int) (string, bool) {
	a, ok := positional(args, idx)
	if !ok {
		return "", false
	}
	return a.path, true
}

func parseAggFunc(s string) ast.AggFunc {
	switch strings.ToLower(s) {
	case "sum":
		return ast.AggSum
	case "avg":
		return ast.AggAvg
	case "min":
		return ast.AggMin
	case "max":
		return ast.AggMax
	default:
		return ast.AggCount
	}
}

func splitFieldList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// parseSelectItems interprets select()'s argument list: FieldSelection
// items are bare paths (optionally "as alias"), ExpressionSelection items
// are arithmetic/function expressions always followed by "as alias" (spec
// §4.5.1). Arguments already parsed generically by parsePipelineArgs are
// reinterpreted here against select's specific grammar.
func parseSelectItems(args []pipelineArg) []ast.SelectItem {
	items := make([]ast.SelectItem, 0, len(args))
	for _, a := range args {
		if a.expr != nil {
			if _, isField := a.expr.(ast.FieldRef); !isField {
				items = append(items, ast.SelectItem{Expr: a.expr, Alias: a.name})
				continue
			}
		}
		items = append(items, ast.SelectItem{Path: a.path, Alias: a.name})
	}
	return items
}
