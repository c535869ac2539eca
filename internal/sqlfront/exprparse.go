package sqlfront

import (
	"fmt"
	"strconv"
	"strings"

	"incresql/internal/expr"
	"incresql/internal/types"
)

// exprParser turns one already-isolated SQL expression fragment (as
// rendered by format.Restore from a single ast.ExprNode) into a
// pre-resolution expr.Expr tree. The statement-level translator owns
// everything about *which* text is an expression and where its
// boundaries are (FieldList/Where/GroupBy/OrderBy/Limit all come
// straight from the parser's own ast.Node fields); this is a small,
// dedicated recursive-descent parser for the scalar grammar itself
// (spec.md 4.4/4.5/6: arithmetic, comparisons, AND/OR/NOT, BETWEEN,
// CAST, function/aggregate calls, column references and literals),
// grounded the same way the teacher hand-rolls its restore-string
// post-processing in internal/parser/mysql/parser.go.
type exprParser struct {
	toks []token
	pos  int
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokQuotedIdent
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind tokKind
	text string
}

// ParseExpr parses one scalar expression fragment.
func ParseExpr(text string) (expr.Expr, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &exprParser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("sqlfront: unexpected trailing input at %q", p.peek().text)
	}
	return e, nil
}

func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	n := len(s)
	for i < n {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '`':
			j := i + 1
			var sb strings.Builder
			for j < n {
				if s[j] == '`' {
					if j+1 < n && s[j+1] == '`' {
						sb.WriteByte('`')
						j += 2
						continue
					}
					break
				}
				sb.WriteByte(s[j])
				j++
			}
			if j >= n {
				return nil, fmt.Errorf("sqlfront: unterminated quoted identifier")
			}
			toks = append(toks, token{kind: tokQuotedIdent, text: sb.String()})
			i = j + 1
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < n {
				if s[j] == quote {
					if j+1 < n && s[j+1] == quote {
						sb.WriteByte(quote)
						j += 2
						continue
					}
					break
				}
				if s[j] == '\\' && j+1 < n {
					sb.WriteByte(s[j+1])
					j += 2
					continue
				}
				sb.WriteByte(s[j])
				j++
			}
			if j >= n {
				return nil, fmt.Errorf("sqlfront: unterminated string literal")
			}
			toks = append(toks, token{kind: tokString, text: sb.String()})
			i = j + 1
		case isIdentStart(c):
			j := i + 1
			for j < n && isIdentPart(s[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: s[i:j]})
			i = j
		case c >= '0' && c <= '9':
			j := i + 1
			for j < n && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j]})
			i = j
		default:
			two := ""
			if i+1 < n {
				two = s[i : i+2]
			}
			switch two {
			case "<=", ">=", "<>", "!=":
				toks = append(toks, token{kind: tokPunct, text: two})
				i += 2
				continue
			}
			toks = append(toks, token{kind: tokPunct, text: string(c)})
			i++
		}
	}
	toks = append(toks, token{kind: tokEOF})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *exprParser) peek() token { return p.toks[p.pos] }

func (p *exprParser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *exprParser) keywordIs(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

func (p *exprParser) punctIs(punct string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == punct
}

func (p *exprParser) parseOr() (expr.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keywordIs("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &expr.FunctionCall{Name: "or", Args: []expr.Expr{left, right}}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (expr.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keywordIs("AND") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &expr.FunctionCall{Name: "and", Args: []expr.Expr{left, right}}
	}
	return left, nil
}

func (p *exprParser) parseNot() (expr.Expr, error) {
	if p.keywordIs("NOT") {
		p.next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &expr.FunctionCall{Name: "not", Args: []expr.Expr{inner}}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]string{
	"=": "=", "<>": "<>", "!=": "<>", "<": "<", "<=": "<=", ">": ">", ">=": ">=",
}

func (p *exprParser) parseComparison() (expr.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.keywordIs("BETWEEN") {
		p.next()
		lo, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if !p.keywordIs("AND") {
			return nil, fmt.Errorf("sqlfront: expected AND in BETWEEN")
		}
		p.next()
		hi, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &expr.FunctionCall{Name: "between", Args: []expr.Expr{left, lo, hi}}, nil
	}
	t := p.peek()
	if t.kind == tokPunct {
		if name, ok := comparisonOps[t.text]; ok {
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &expr.FunctionCall{Name: name, Args: []expr.Expr{left, right}}, nil
		}
	}
	return left, nil
}

func (p *exprParser) parseAdditive() (expr.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.punctIs("+") || p.punctIs("-") {
		op := p.next().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &expr.FunctionCall{Name: op, Args: []expr.Expr{left, right}}
	}
	return left, nil
}

func (p *exprParser) parseMultiplicative() (expr.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.punctIs("*") || p.punctIs("/") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &expr.FunctionCall{Name: op, Args: []expr.Expr{left, right}}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (expr.Expr, error) {
	if p.punctIs("-") {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &expr.FunctionCall{Name: "-", Args: []expr.Expr{&expr.Constant{Value: types.NewInteger(0), Typ: types.TInteger}, inner}}, nil
	}
	if p.punctIs("+") {
		p.next()
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (expr.Expr, error) {
	t := p.peek()
	switch {
	case t.kind == tokNumber:
		p.next()
		return parseNumericLiteral(t.text), nil
	case t.kind == tokString:
		p.next()
		return &expr.Constant{Value: types.NewText(t.text), Typ: types.TText}, nil
	case t.kind == tokPunct && t.text == "(":
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.punctIs(")") {
			return nil, fmt.Errorf("sqlfront: expected )")
		}
		p.next()
		return inner, nil
	case t.kind == tokIdent && strings.EqualFold(t.text, "NULL"):
		p.next()
		return &expr.Constant{Value: types.NullDatum, Typ: types.TNull}, nil
	case t.kind == tokIdent && strings.EqualFold(t.text, "TRUE"):
		p.next()
		return &expr.Constant{Value: types.NewBoolean(true), Typ: types.TBoolean}, nil
	case t.kind == tokIdent && strings.EqualFold(t.text, "FALSE"):
		p.next()
		return &expr.Constant{Value: types.NewBoolean(false), Typ: types.TBoolean}, nil
	case t.kind == tokIdent && strings.EqualFold(t.text, "CAST"):
		return p.parseCast()
	case t.kind == tokIdent || t.kind == tokQuotedIdent:
		return p.parseIdentOrCall()
	case t.kind == tokPunct && t.text == "*":
		p.next()
		return &expr.ColumnReference{Star: true}, nil
	default:
		return nil, fmt.Errorf("sqlfront: unexpected token %q", t.text)
	}
}

func (p *exprParser) parseCast() (expr.Expr, error) {
	p.next() // CAST
	if !p.punctIs("(") {
		return nil, fmt.Errorf("sqlfront: expected ( after CAST")
	}
	p.next()
	source, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.keywordIs("AS") {
		return nil, fmt.Errorf("sqlfront: expected AS in CAST")
	}
	p.next()
	typ, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	if !p.punctIs(")") {
		return nil, fmt.Errorf("sqlfront: expected ) to close CAST")
	}
	p.next()
	return &expr.Cast{Source: source, Typ: typ}, nil
}

func (p *exprParser) parseTypeName() (types.DataType, error) {
	t := p.next()
	if t.kind != tokIdent {
		return types.DataType{}, fmt.Errorf("sqlfront: expected type name in CAST")
	}
	name := strings.ToUpper(t.text)
	if name == "DECIMAL" && p.punctIs("(") {
		p.next()
		prec, err := p.parseIntLiteral()
		if err != nil {
			return types.DataType{}, err
		}
		scale := int32(0)
		if p.punctIs(",") {
			p.next()
			scale, err = p.parseIntLiteral()
			if err != nil {
				return types.DataType{}, err
			}
		}
		if !p.punctIs(")") {
			return types.DataType{}, fmt.Errorf("sqlfront: expected ) closing DECIMAL(p,s)")
		}
		p.next()
		return types.TDecimal(prec, scale), nil
	}
	switch name {
	case "INT", "INTEGER":
		return types.TInteger, nil
	case "BIGINT":
		return types.TBigInt, nil
	case "BOOLEAN", "BOOL":
		return types.TBoolean, nil
	case "DATE":
		return types.TDate, nil
	case "TIMESTAMP", "DATETIME":
		return types.TTimestamp, nil
	case "TEXT", "CHAR", "VARCHAR":
		return types.TText, nil
	case "JSON":
		return types.TJson, nil
	case "BYTEA", "BLOB", "BINARY", "VARBINARY":
		return types.TByteA, nil
	default:
		return types.DataType{}, fmt.Errorf("sqlfront: unknown CAST target type %q", t.text)
	}
}

func (p *exprParser) parseIntLiteral() (int32, error) {
	t := p.next()
	if t.kind != tokNumber {
		return 0, fmt.Errorf("sqlfront: expected integer literal")
	}
	v, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, fmt.Errorf("sqlfront: bad integer literal %q: %w", t.text, err)
	}
	return int32(v), nil
}

// parseIdentOrCall handles bare/qualified column references (a, t.a,
// `weird name`) and function/aggregate calls (count(*), sum(a),
// to_integer(a)).
func (p *exprParser) parseIdentOrCall() (expr.Expr, error) {
	first := p.next().text
	if p.punctIs(".") {
		p.next()
		second := p.next().text
		if p.punctIs("(") {
			return nil, fmt.Errorf("sqlfront: qualified function calls are not supported")
		}
		return &expr.ColumnReference{Qualifier: first, Alias: second}, nil
	}
	if p.punctIs("(") {
		p.next()
		name := strings.ToLower(first)
		var args []expr.Expr
		if name == "count" && p.punctIs("*") {
			p.next()
		} else if !p.punctIs(")") {
			for {
				arg, err := p.parseOr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.punctIs(",") {
					p.next()
					continue
				}
				break
			}
		}
		if !p.punctIs(")") {
			return nil, fmt.Errorf("sqlfront: expected ) closing call to %s", first)
		}
		p.next()
		return &expr.FunctionCall{Name: name, Args: args}, nil
	}
	return &expr.ColumnReference{Alias: first}, nil
}

func parseNumericLiteral(text string) expr.Expr {
	if strings.Contains(text, ".") {
		dec, ok := parseDecimalText(text)
		if !ok {
			return &expr.Constant{Value: types.NullDatum, Typ: types.TNull}
		}
		return &expr.Constant{Value: types.NewDecimalDatum(dec), Typ: types.TDecimal(types.MaxPrecision, int32(dec.Scale))}
	}
	if v, err := strconv.ParseInt(text, 10, 32); err == nil {
		return &expr.Constant{Value: types.NewInteger(int32(v)), Typ: types.TInteger}
	}
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return &expr.Constant{Value: types.NewBigInt(v), Typ: types.TBigInt}
	}
	dec, _ := parseDecimalText(text)
	return &expr.Constant{Value: types.NewDecimalDatum(dec), Typ: types.TDecimal(types.MaxPrecision, 0)}
}

// parseDecimalText parses a plain decimal literal like "2.30" or "5"
// into a Decimal, preserving the number of digits written after the
// point as its scale (mirrors internal/functions' own literal parsing).
func parseDecimalText(s string) (types.Decimal, bool) {
	neg := false
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart, fracPart := s, ""
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			intPart, fracPart = s[:i], s[i+1:]
			break
		}
	}
	digits := intPart + fracPart
	if digits == "" {
		return types.Decimal{}, false
	}
	var unscaled int64
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return types.Decimal{}, false
		}
		unscaled = unscaled*10 + int64(c-'0')
	}
	if neg {
		unscaled = -unscaled
	}
	return types.NewDecimal(unscaled, int32(len(fracPart))), true
}
