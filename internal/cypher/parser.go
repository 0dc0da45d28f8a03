package cypher

import (
	"fmt"
	"strconv"
)

// Parser converts a token stream into a Query AST.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse tokenizes and parses a query string.
func Parse(input string) (*Query, error) {
	tokens, err := Lex(input)
	if err != nil {
		return nil, fmt.Errorf("cypher: lex: %w", err)
	}
	p := &Parser{tokens: tokens}
	return p.parseQuery()
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	t := p.peek()
	p.pos++
	return t
}

func (p *Parser) expect(typ TokenType) (Token, error) {
	t := p.advance()
	if t.Type != typ {
		return t, fmt.Errorf("cypher: unexpected token %q at pos %d", t.Value, t.Pos)
	}
	return t, nil
}

func (p *Parser) parseQuery() (*Query, error) {
	q := &Query{}

	if p.peek().Type != TokMatch {
		return nil, fmt.Errorf("cypher: expected MATCH at pos %d", p.peek().Pos)
	}
	m, err := p.parseMatch()
	if err != nil {
		return nil, err
	}
	q.Match = m

	if p.peek().Type == TokWhere {
		w, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		q.Where = w
	}

	if p.peek().Type == TokReturn {
		r, err := p.parseReturn()
		if err != nil {
			return nil, err
		}
		q.Return = r
	}

	return q, nil
}

func (p *Parser) parseMatch() (*MatchClause, error) {
	if _, err := p.expect(TokMatch); err != nil {
		return nil, err
	}
	pat, err := p.parsePattern()
	if err != nil {
		return nil, fmt.Errorf("cypher: match pattern: %w", err)
	}
	return &MatchClause{Pattern: pat}, nil
}

func (p *Parser) parsePattern() (*Pattern, error) {
	pat := &Pattern{}

	node, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	pat.Elements = append(pat.Elements, node)

	for p.isRelStart() {
		rel, nextNode, err := p.parseRelAndNode()
		if err != nil {
			return nil, err
		}
		pat.Elements = append(pat.Elements, rel, nextNode)
	}

	return pat, nil
}

func (p *Parser) isRelStart() bool {
	t := p.peek()
	return t.Type == TokDash || t.Type == TokLT
}

func (p *Parser) parseRelAndNode() (*RelPattern, *NodePattern, error) {
	rel := &RelPattern{MinHops: 1, MaxHops: 1}

	leadingArrow := false
	if p.peek().Type == TokLT {
		leadingArrow = true
		p.advance()
	}

	if _, err := p.expect(TokDash); err != nil {
		return nil, nil, fmt.Errorf("cypher: expected '-' in relationship: %w", err)
	}

	if p.peek().Type == TokLBracket {
		if err := p.parseRelBracket(rel); err != nil {
			return nil, nil, err
		}
	}

	if _, err := p.expect(TokDash); err != nil {
		return nil, nil, fmt.Errorf("cypher: expected '-' after relationship: %w", err)
	}

	trailingArrow := false
	if p.peek().Type == TokGT {
		trailingArrow = true
		p.advance()
	}

	switch {
	case !leadingArrow && trailingArrow:
		rel.Direction = "outbound"
	case leadingArrow && !trailingArrow:
		rel.Direction = "inbound"
	default:
		rel.Direction = "any"
	}

	node, err := p.parseNodePattern()
	if err != nil {
		return nil, nil, err
	}

	return rel, node, nil
}

func (p *Parser) parseRelBracket(rel *RelPattern) error {
	p.advance() // [

	if p.peek().Type == TokIdent {
		rel.Variable = p.advance().Value
	}

	if p.peek().Type == TokColon {
		p.advance()
		types, err := p.parseRelTypes()
		if err != nil {
			return err
		}
		rel.Types = types
	}

	if p.peek().Type == TokStar {
		p.advance()
		if err := p.parseHopRange(rel); err != nil {
			return err
		}
	}

	if _, err := p.expect(TokRBracket); err != nil {
		return fmt.Errorf("cypher: expected ']': %w", err)
	}
	return nil
}

func (p *Parser) parseRelTypes() ([]string, error) {
	var types []string
	t := p.advance()
	if t.Type != TokIdent {
		return nil, fmt.Errorf("cypher: expected relationship type, got %q at pos %d", t.Value, t.Pos)
	}
	types = append(types, t.Value)

	for p.peek().Type == TokPipe {
		p.advance()
		t = p.advance()
		if t.Type != TokIdent {
			return nil, fmt.Errorf("cypher: expected relationship type after '|' at pos %d", t.Pos)
		}
		types = append(types, t.Value)
	}
	return types, nil
}

func (p *Parser) parseHopRange(rel *RelPattern) error {
	if p.peek().Type == TokNumber {
		n, _ := strconv.Atoi(p.advance().Value)
		if p.peek().Type == TokDotDot {
			rel.MinHops = n
			p.advance()
			if p.peek().Type == TokNumber {
				m, _ := strconv.Atoi(p.advance().Value)
				rel.MaxHops = m
			} else {
				rel.MaxHops = 0
			}
		} else {
			rel.MinHops = 1
			rel.MaxHops = n
		}
	} else if p.peek().Type == TokDotDot {
		p.advance()
		rel.MinHops = 1
		if p.peek().Type == TokNumber {
			m, _ := strconv.Atoi(p.advance().Value)
			rel.MaxHops = m
		} else {
			rel.MaxHops = 0
		}
	} else {
		rel.MinHops = 1
		rel.MaxHops = 0
	}
	return nil
}

func (p *Parser) parseNodePattern() (*NodePattern, error) {
	if _, err := p.expect(TokLParen); err != nil {
		return nil, fmt.Errorf("cypher: expected '(' for node pattern: %w", err)
	}

	node := &NodePattern{}

	if p.peek().Type == TokIdent {
		node.Variable = p.advance().Value
	}

	if p.peek().Type == TokColon {
		p.advance()
		t := p.advance()
		if t.Type != TokIdent {
			return nil, fmt.Errorf("cypher: expected label after ':' at pos %d", t.Pos)
		}
		node.Label = t.Value
	}

	if p.peek().Type == TokLBrace {
		props, err := p.parseInlineProps()
		if err != nil {
			return nil, err
		}
		node.Props = props
	}

	if _, err := p.expect(TokRParen); err != nil {
		return nil, fmt.Errorf("cypher: expected ')' to close node pattern: %w", err)
	}

	return node, nil
}

func (p *Parser) parseInlineProps() (map[string]Value, error) {
	p.advance() // {
	props := make(map[string]Value)

	for p.peek().Type != TokRBrace {
		if len(props) > 0 {
			if _, err := p.expect(TokComma); err != nil {
				return nil, fmt.Errorf("cypher: expected ',' between properties: %w", err)
			}
		}
		keyTok := p.advance()
		if keyTok.Type != TokIdent {
			return nil, fmt.Errorf("cypher: expected property key at pos %d", keyTok.Pos)
		}
		if _, err := p.expect(TokColon); err != nil {
			return nil, fmt.Errorf("cypher: expected ':' after property key: %w", err)
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		props[keyTok.Value] = val
	}

	p.advance() // }
	return props, nil
}

// parseValue parses either a literal (string/number) or a $param reference.
func (p *Parser) parseValue() (Value, error) {
	if p.peek().Type == TokDollar {
		p.advance()
		t := p.advance()
		if t.Type != TokIdent {
			return Value{}, fmt.Errorf("cypher: expected parameter name after '$' at pos %d", t.Pos)
		}
		return Value{Param: t.Value}, nil
	}
	t := p.advance()
	switch t.Type {
	case TokString, TokNumber:
		return Value{Literal: t.Value}, nil
	default:
		return Value{}, fmt.Errorf("cypher: expected value, got %q at pos %d", t.Value, t.Pos)
	}
}

func (p *Parser) parseWhere() (*WhereClause, error) {
	p.advance() // WHERE
	w := &WhereClause{Operator: "AND"}

	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	w.Conditions = append(w.Conditions, cond)

	for p.peek().Type == TokAnd || p.peek().Type == TokOr {
		op := p.advance()
		if op.Type == TokOr {
			w.Operator = "OR"
		}
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		w.Conditions = append(w.Conditions, cond)
	}

	return w, nil
}

func (p *Parser) parseCondition() (Condition, error) {
	c := Condition{}

	varTok := p.advance()
	if varTok.Type != TokIdent {
		return c, fmt.Errorf("cypher: expected variable in condition at pos %d", varTok.Pos)
	}
	c.Variable = varTok.Value

	if _, err := p.expect(TokDot); err != nil {
		return c, fmt.Errorf("cypher: expected '.' after variable in condition: %w", err)
	}

	propTok := p.advance()
	if propTok.Type != TokIdent {
		return c, fmt.Errorf("cypher: expected property name in condition at pos %d", propTok.Pos)
	}
	c.Property = propTok.Value

	op := p.peek()
	switch op.Type {
	case TokEQ:
		c.Operator = "="
		p.advance()
	case TokRegex:
		c.Operator = "=~"
		p.advance()
	case TokGT:
		c.Operator = ">"
		p.advance()
	case TokLT:
		c.Operator = "<"
		p.advance()
	case TokGTE:
		c.Operator = ">="
		p.advance()
	case TokLTE:
		c.Operator = "<="
		p.advance()
	case TokContains:
		c.Operator = "CONTAINS"
		p.advance()
	case TokStarts:
		p.advance()
		if p.peek().Type != TokWith {
			return c, fmt.Errorf("cypher: expected WITH after STARTS at pos %d", p.peek().Pos)
		}
		p.advance()
		c.Operator = "STARTS WITH"
	default:
		return c, fmt.Errorf("cypher: expected comparison operator at pos %d", op.Pos)
	}

	val, err := p.parseValue()
	if err != nil {
		return c, err
	}
	c.Value = val

	return c, nil
}

func (p *Parser) parseReturn() (*ReturnClause, error) {
	p.advance() // RETURN
	r := &ReturnClause{OrderDir: "ASC"}

	if p.peek().Type == TokDistinct {
		r.Distinct = true
		p.advance()
	}

	item, err := p.parseReturnItem()
	if err != nil {
		return nil, err
	}
	r.Items = append(r.Items, item)

	for p.peek().Type == TokComma {
		p.advance()
		item, err := p.parseReturnItem()
		if err != nil {
			return nil, err
		}
		r.Items = append(r.Items, item)
	}

	if p.peek().Type == TokOrder {
		p.advance()
		if _, err := p.expect(TokBy); err != nil {
			return nil, fmt.Errorf("cypher: expected BY after ORDER: %w", err)
		}
		orderTok := p.advance()
		if orderTok.Type != TokIdent {
			return nil, fmt.Errorf("cypher: expected field for ORDER BY at pos %d", orderTok.Pos)
		}
		orderField := orderTok.Value
		if p.peek().Type == TokDot {
			p.advance()
			propTok := p.advance()
			orderField = orderField + "." + propTok.Value
		}
		r.OrderBy = orderField

		if p.peek().Type == TokAsc {
			r.OrderDir = "ASC"
			p.advance()
		} else if p.peek().Type == TokDesc {
			r.OrderDir = "DESC"
			p.advance()
		}
	}

	if p.peek().Type == TokLimit {
		p.advance()
		numTok := p.advance()
		if numTok.Type != TokNumber {
			return nil, fmt.Errorf("cypher: expected number after LIMIT at pos %d", numTok.Pos)
		}
		n, _ := strconv.Atoi(numTok.Value)
		r.Limit = n
	}

	return r, nil
}

func (p *Parser) parseReturnItem() (ReturnItem, error) {
	item := ReturnItem{}

	if p.peek().Type == TokCount {
		p.advance()
		item.Func = "COUNT"
		if _, err := p.expect(TokLParen); err != nil {
			return item, fmt.Errorf("cypher: expected '(' after COUNT: %w", err)
		}
		if p.peek().Type == TokStar {
			p.advance()
			item.Variable = "*"
		} else {
			varTok := p.advance()
			if varTok.Type != TokIdent {
				return item, fmt.Errorf("cypher: expected variable in COUNT() at pos %d", varTok.Pos)
			}
			item.Variable = varTok.Value
		}
		if _, err := p.expect(TokRParen); err != nil {
			return item, fmt.Errorf("cypher: expected ')' after COUNT argument: %w", err)
		}
	} else {
		varTok := p.advance()
		if varTok.Type != TokIdent {
			return item, fmt.Errorf("cypher: expected variable in RETURN item at pos %d", varTok.Pos)
		}
		item.Variable = varTok.Value

		if p.peek().Type == TokDot {
			p.advance()
			propTok := p.advance()
			if propTok.Type != TokIdent {
				return item, fmt.Errorf("cypher: expected property after '.' at pos %d", propTok.Pos)
			}
			item.Property = propTok.Value
		}
	}

	if p.peek().Type == TokAs {
		p.advance()
		aliasTok := p.advance()
		if aliasTok.Type != TokIdent {
			return item, fmt.Errorf("cypher: expected alias after AS at pos %d", aliasTok.Pos)
		}
		item.Alias = aliasTok.Value
	}

	return item, nil
}
