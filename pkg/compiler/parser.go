package compiler

// Parser consumes the flat token slice produced by the Lexer and builds an AST.
//
// Grammar:
//
//	program    = { topLevel } EOF
//	topLevel   = "org" NUMBER ";" | function | statement
//	function   = "def" IDENT "(" [ param { "," param } ] ")" ":" type { statement } "end"
//	type       = "u8" | "u16" | "void" | "*" type
//	statement  = COMMENT | storage | const | var | if | while | break | return
//	           | goto | inline_asm | lvalue "=" expr ";" | call ";"
//	expr       = additive { cmpOp additive }
//	additive   = mult { ("+" | "-") mult }
//	mult       = atom { ("*" | "/") atom }
//	atom       = NUMBER | STRING | IDENT | IDENT "[" expr "]" | call | "(" expr ")"
//
// Comparisons bind looser than addition. COMMENT tokens become statements
// where a statement may start and are skipped everywhere else.
type Parser struct {
	tokens []Token
	pos    int
	unit   int
}

func newParser(unit int, tokens []Token) *Parser {
	return &Parser{tokens: tokens, unit: unit}
}

func (p *Parser) tag(tok Token) SourceTag {
	return SourceTag{Unit: p.unit, Offset: tok.Offset}
}

// fmtError builds a diagnostic positioned at tok.
func (p *Parser) fmtError(kind ErrorKind, tok Token, format string, args ...any) *Diagnostic {
	return newDiagnostic(kind, p.tag(tok), format, args...)
}

// rawPeek returns the current token, comments included.
func (p *Parser) rawPeek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

// peek returns the current non-comment token without consuming it.
func (p *Parser) peek() Token {
	for p.pos < len(p.tokens) && p.tokens[p.pos].Type == COMMENT {
		p.pos++
	}
	return p.rawPeek()
}

// peekNext returns the non-comment token after the current one.
func (p *Parser) peekNext() Token {
	p.peek()
	for i := p.pos + 1; i < len(p.tokens); i++ {
		if p.tokens[i].Type != COMMENT {
			return p.tokens[i]
		}
	}
	return Token{Type: EOF}
}

// advance consumes and returns the current non-comment token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.fmtError(ParseError, tok, "expected %s, got %s (%q) on line %d", tt, tok.Type, tok.Lexeme, tok.Line)
	}
	return tok, nil
}

func (p *Parser) expectNumber() (uint16, error) {
	tok, err := p.expect(NUMBER)
	if err != nil {
		return 0, err
	}
	v, err := parseNumberLiteral(tok.Lexeme)
	if err != nil {
		return 0, p.fmtError(LexError, tok, "number %s does not fit in 16 bits", tok.Lexeme)
	}
	return v, nil
}

//  Expressions

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseComparison()
}

// parseComparison handles == != < > <= >=
func (p *Parser) parseComparison() (Expr, error) {
	expr, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.peek().Type.isComparison() {
		op := p.advance().Type
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		expr = &BinaryOp{Src: expr.Tag(), Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseAdditive handles + and -
func (p *Parser) parseAdditive() (Expr, error) {
	expr, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == PLUS || p.peek().Type == MINUS {
		op := p.advance().Type
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		expr = &BinaryOp{Src: expr.Tag(), Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseMultiplicative handles * and /
func (p *Parser) parseMultiplicative() (Expr, error) {
	expr, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == STAR || p.peek().Type == SLASH {
		op := p.advance().Type
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		expr = &BinaryOp{Src: expr.Tag(), Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

func (p *Parser) parseCallArgs() ([]Expr, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	var args []Expr
	if p.peek().Type != RPAREN {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseAtom() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case NUMBER:
		v, err := p.expectNumber()
		if err != nil {
			return nil, err
		}
		return &Number{Src: p.tag(tok), Value: v}, nil

	case STRING:
		p.advance()
		return &Text{Src: p.tag(tok), Value: tok.Lexeme}, nil

	case IDENTIFIER:
		p.advance()
		switch p.peek().Type {
		case LPAREN:
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			return &CallFunction{Src: p.tag(tok), Name: tok.Lexeme, Args: args}, nil
		case LBRACKET:
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			return &ArrayIndex{Src: p.tag(tok), Array: tok.Lexeme, Index: index}, nil
		}
		return &Name{Src: p.tag(tok), Name: tok.Lexeme}, nil

	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return nil, p.fmtError(ParseError, tok, "unexpected token %s (%q) in expression on line %d", tok.Type, tok.Lexeme, tok.Line)
}

//  Types and declarations

// parseType reads u8 | u16 | void | "*" type.
func (p *Parser) parseType() (Type, error) {
	tok := p.advance()
	switch tok.Type {
	case U8:
		return U8Type, nil
	case U16:
		return U16Type, nil
	case VOID:
		return VoidType, nil
	case STAR:
		elem, err := p.parseType()
		if err != nil {
			return Type{}, err
		}
		return PointerTo(elem), nil
	}
	return Type{}, p.fmtError(ParseError, tok, "expected a type, got %s (%q) on line %d", tok.Type, tok.Lexeme, tok.Line)
}

// parseNameType reads IDENT ":" type.
func (p *Parser) parseNameType() (NameType, error) {
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return NameType{}, err
	}
	if _, err := p.expect(COLON); err != nil {
		return NameType{}, err
	}
	t, err := p.parseType()
	if err != nil {
		return NameType{}, err
	}
	return NameType{Name: name.Lexeme, Type: t}, nil
}

// parseStorage handles `register|memory name: type @ addr;`.
func (p *Parser) parseStorage() (Stmt, error) {
	kw := p.advance()
	decl, err := p.parseNameType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(AT); err != nil {
		return nil, err
	}
	addr, err := p.expectNumber()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &DeclareStorage{Src: p.tag(kw), Decl: decl, Address: addr, Register: kw.Type == REGISTER}, nil
}

func (p *Parser) parseConst() (Stmt, error) {
	kw := p.advance()
	decl, err := p.parseNameType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(ASSIGN); err != nil {
		return nil, err
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &DeclareConst{Src: p.tag(kw), Decl: decl, Value: value}, nil
}

func (p *Parser) parseVar() (Stmt, error) {
	kw := p.advance()
	decl, err := p.parseNameType()
	if err != nil {
		return nil, err
	}
	var value Expr
	if p.peek().Type == ASSIGN {
		p.advance()
		if value, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &DeclareVariable{Src: p.tag(kw), Decl: decl, Value: value}, nil
}

//  Statements

// parseBlock reads statements until one of the terminators is next. The
// terminator itself is left for the caller.
func (p *Parser) parseBlock(terminators ...TokenType) ([]Stmt, error) {
	stmts := []Stmt{}
	for {
		tok := p.rawPeek()
		if tok.Type == COMMENT {
			p.pos++
			stmts = append(stmts, &Comment{Src: p.tag(tok), Text: tok.Lexeme})
			continue
		}
		for _, tt := range terminators {
			if tok.Type == tt {
				return stmts, nil
			}
		}
		if tok.Type == EOF {
			return nil, p.fmtError(ParseError, tok, "unexpected end of input, expected %s", terminators[0])
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

func (p *Parser) parseIf() (Stmt, error) {
	kw := p.advance()
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(THEN); err != nil {
		return nil, err
	}
	then, err := p.parseBlock(ELSE, END)
	if err != nil {
		return nil, err
	}
	var els []Stmt
	if p.peek().Type == ELSE {
		p.advance()
		if els, err = p.parseBlock(END); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(END); err != nil {
		return nil, err
	}
	return &Conditional{Src: p.tag(kw), Condition: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	kw := p.advance()
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(DO); err != nil {
		return nil, err
	}
	body, err := p.parseBlock(END)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(END); err != nil {
		return nil, err
	}
	return &WhileLoop{Src: p.tag(kw), Condition: cond, Body: body}, nil
}

func (p *Parser) parseReturn() (Stmt, error) {
	kw := p.advance()
	ret := &Return{Src: p.tag(kw)}
	if p.peek().Type != SEMICOLON {
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		ret.Value = value
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return ret, nil
}

// parseSimple handles assignments and call statements. The left side is
// parsed as a full expression so that `5 = x;` can be reported as an
// invalid assignment target rather than a syntax error.
func (p *Parser) parseSimple() (Stmt, error) {
	start := p.peek()
	left, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if p.peek().Type == ASSIGN {
		switch left.(type) {
		case *Name, *ArrayIndex:
		default:
			return nil, p.fmtError(InvalidLvalue, start, "cannot assign to %s", left)
		}
		p.advance()
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &Assignment{Src: p.tag(start), Target: left, Value: value}, nil
	}

	call, ok := left.(*CallFunction)
	if !ok {
		tok := p.peek()
		return nil, p.fmtError(ParseError, tok, "expected '=' or a call, got %s (%q) on line %d", tok.Type, tok.Lexeme, tok.Line)
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &CallStatement{Src: p.tag(start), Call: call}, nil
}

func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()
	switch tok.Type {
	case REGISTER, MEMORY:
		return p.parseStorage()
	case CONST:
		return p.parseConst()
	case VAR:
		return p.parseVar()
	case IF:
		return p.parseIf()
	case WHILE:
		return p.parseWhile()
	case RETURN:
		return p.parseReturn()
	case BREAK:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &Break{Src: p.tag(tok)}, nil
	case GOTO:
		p.advance()
		name, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &GoTo{Src: p.tag(tok), Label: name.Lexeme}, nil
	case INLINE_ASM:
		p.advance()
		text, err := p.expect(STRING)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &InlineAsm{Src: p.tag(tok), Text: text.Lexeme}, nil
	case IDENTIFIER, NUMBER, STRING, LPAREN:
		return p.parseSimple()
	case DEF:
		return nil, p.fmtError(ParseError, tok, "function definitions are only allowed at top level (line %d)", tok.Line)
	case ORG:
		return nil, p.fmtError(ParseError, tok, "org is only allowed at top level (line %d)", tok.Line)
	}
	return nil, p.fmtError(ParseError, tok, "unexpected token %s (%q) on line %d", tok.Type, tok.Lexeme, tok.Line)
}

// parseFunctionDecl handles `def name(params): type ... end`.
func (p *Parser) parseFunctionDecl() (Stmt, error) {
	kw := p.advance()
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	var params []NameType
	if p.peek().Type != RPAREN {
		for {
			param, err := p.parseNameType()
			if err != nil {
				return nil, err
			}
			params = append(params, param)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	ret, err := p.parseType()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock(END)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(END); err != nil {
		return nil, err
	}
	return &DeclareFunction{Src: p.tag(kw), Name: name.Lexeme, Params: params, ReturnType: ret, Body: body}, nil
}

func (p *Parser) parseTopLevel() (Stmt, error) {
	tok := p.rawPeek()
	switch tok.Type {
	case COMMENT:
		p.pos++
		return &Comment{Src: p.tag(tok), Text: tok.Lexeme}, nil
	case DEF:
		return p.parseFunctionDecl()
	case ORG:
		p.advance()
		addr, err := p.expectNumber()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &Org{Src: p.tag(tok), Address: addr}, nil
	}
	return p.parseStatement()
}

// Parse builds the top-level declarations of unit 0 from its tokens.
// The first grammar violation aborts parsing.
func Parse(tokens []Token) ([]Stmt, error) {
	return parseUnit(0, tokens)
}

func parseUnit(unit int, tokens []Token) ([]Stmt, error) {
	p := newParser(unit, tokens)
	var program []Stmt
	for p.rawPeek().Type != EOF {
		stmt, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		program = append(program, stmt)
	}
	return program, nil
}
