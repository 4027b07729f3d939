package compiler

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"def":        DEF,
	"end":        END,
	"if":         IF,
	"then":       THEN,
	"else":       ELSE,
	"while":      WHILE,
	"do":         DO,
	"break":      BREAK,
	"return":     RETURN,
	"goto":       GOTO,
	"const":      CONST,
	"var":        VAR,
	"register":   REGISTER,
	"memory":     MEMORY,
	"org":        ORG,
	"inline_asm": INLINE_ASM,
	"u8":         U8,
	"u16":        U16,
	"void":       VOID,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	unit int
	src  []rune
	pos  int // index of the next rune to consume
	off  int // byte offset of the next rune
	line int // current 1-based source line
}

func newLexer(unit int, src string) *Lexer {
	return &Lexer{unit: unit, src: []rune(src), pos: 0, line: 1}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	l.off += utf8.RuneLen(r)
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) errorf(offset int, format string, args ...any) *Diagnostic {
	return newDiagnostic(LexError, SourceTag{Unit: l.unit, Offset: offset}, format, args...)
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// scanComment collects everything after '#' up to end-of-line.
func (l *Lexer) scanComment() Token {
	line, offset := l.line, l.off
	l.advance() // #
	start := l.pos
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
	text := strings.TrimSpace(string(l.src[start:l.pos]))
	return Token{Type: COMMENT, Lexeme: text, Line: line, Offset: offset}
}

// scanIdent collects a full identifier or keyword token.
// The first character (letter or '_') must still be at l.peek().
func (l *Lexer) scanIdent() Token {
	line, offset := l.line, l.off
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Line: line, Offset: offset}
}

// scanNumber collects a decimal or 0x-prefixed hex literal.
// The first digit must still be at l.peek().
func (l *Lexer) scanNumber() (Token, error) {
	line, offset := l.line, l.off
	start := l.pos

	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X') {
		l.advance() // consume '0'
		l.advance() // consume 'x'
		digits := l.pos
		for l.pos < len(l.src) && isHexDigit(l.peek()) {
			l.advance()
		}
		if l.pos == digits {
			return Token{}, l.errorf(offset, "hex literal without digits on line %d", line)
		}
	} else {
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}

	lexeme := string(l.src[start:l.pos])
	if unicode.IsLetter(l.peek()) || l.peek() == '_' {
		return Token{}, l.errorf(offset, "malformed number %q on line %d", lexeme+string(l.peek()), line)
	}
	if _, err := parseNumberLiteral(lexeme); err != nil {
		return Token{}, l.errorf(offset, "number %s does not fit in 16 bits on line %d", lexeme, line)
	}
	return Token{Type: NUMBER, Lexeme: lexeme, Line: line, Offset: offset}, nil
}

// scanString collects a string literal "..." and decodes its escapes.
// Escapes: \n \r \t, \xHH, \NNN (octal), and any other escaped character
// stands for itself.
func (l *Lexer) scanString() (Token, error) {
	line, offset := l.line, l.off
	l.advance() // consume opening "
	var val []byte

	for l.pos < len(l.src) {
		r := l.peek()
		if r == '"' {
			break
		}
		if r == '\n' {
			return Token{}, l.errorf(offset, "unterminated string literal on line %d", line)
		}
		if r != '\\' {
			val = utf8.AppendRune(val, r)
			l.advance()
			continue
		}

		escOffset := l.off
		l.advance() // consume backslash
		next := l.peek()
		switch {
		case next == 'n':
			val = append(val, '\n')
			l.advance()
		case next == 'r':
			val = append(val, '\r')
			l.advance()
		case next == 't':
			val = append(val, '\t')
			l.advance()
		case next == 'x':
			l.advance()
			n, digits := 0, 0
			for digits < 2 && isHexDigit(l.peek()) {
				d, _ := strconv.ParseUint(string(l.advance()), 16, 8)
				n = n*16 + int(d)
				digits++
			}
			if digits == 0 {
				return Token{}, l.errorf(escOffset, "\\x escape without hex digits on line %d", line)
			}
			val = append(val, byte(n))
		case next >= '0' && next <= '7':
			n, digits := 0, 0
			for digits < 3 && l.peek() >= '0' && l.peek() <= '7' {
				n = n*8 + int(l.advance()-'0')
				digits++
			}
			if n > 0xFF {
				return Token{}, l.errorf(escOffset, "octal escape \\%o out of range on line %d", n, line)
			}
			val = append(val, byte(n))
		case next == 0 || next == '\n':
			return Token{}, l.errorf(offset, "unterminated string literal on line %d", line)
		default:
			val = utf8.AppendRune(val, next)
			l.advance()
		}
	}

	if l.pos >= len(l.src) {
		return Token{}, l.errorf(offset, "unterminated string literal on line %d", line)
	}
	l.advance() // consume closing "

	return Token{Type: STRING, Lexeme: string(val), Line: line, Offset: offset}, nil
}

// nextToken skips whitespace and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	l.skipWhitespace()
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Lexeme: "", Line: l.line, Offset: l.off}, nil
	}

	ch := l.peek()
	line, offset := l.line, l.off

	if ch == '#' {
		return l.scanComment(), nil
	}
	if unicode.IsLetter(ch) || ch == '_' {
		return l.scanIdent(), nil
	}
	if unicode.IsDigit(ch) {
		return l.scanNumber()
	}
	if ch == '"' {
		return l.scanString()
	}

	l.advance() // consume the character before the switch
	tok := func(tt TokenType, lexeme string) (Token, error) {
		return Token{Type: tt, Lexeme: lexeme, Line: line, Offset: offset}, nil
	}
	switch ch {
	case '(':
		return tok(LPAREN, "(")
	case ')':
		return tok(RPAREN, ")")
	case '[':
		return tok(LBRACKET, "[")
	case ']':
		return tok(RBRACKET, "]")
	case ';':
		return tok(SEMICOLON, ";")
	case ',':
		return tok(COMMA, ",")
	case ':':
		return tok(COLON, ":")
	case '@':
		return tok(AT, "@")
	case '+':
		return tok(PLUS, "+")
	case '-':
		return tok(MINUS, "-")
	case '*':
		return tok(STAR, "*")
	case '/':
		return tok(SLASH, "/")
	case '!':
		if l.peek() == '=' {
			l.advance()
			return tok(NOT_EQ, "!=")
		}
	case '<':
		if l.peek() == '=' {
			l.advance()
			return tok(LESS_EQ, "<=")
		}
		return tok(LESS, "<")
	case '>':
		if l.peek() == '=' {
			l.advance()
			return tok(GREATER_EQ, ">=")
		}
		return tok(GREATER, ">")
	case '=':
		if l.peek() == '=' { // lookahead: distinguish = vs ==
			l.advance()
			return tok(EQUALS, "==")
		}
		return tok(ASSIGN, "=")
	}
	return Token{}, l.errorf(offset, "unexpected character %q on line %d", ch, line)
}

// parseNumberLiteral converts a NUMBER lexeme. Leading zeros on decimal
// literals are not octal.
func parseNumberLiteral(lexeme string) (uint16, error) {
	base, digits := 10, lexeme
	if len(lexeme) > 2 && lexeme[0] == '0' && (lexeme[1] == 'x' || lexeme[1] == 'X') {
		base, digits = 16, lexeme[2:]
	}
	v, err := strconv.ParseUint(digits, base, 16)
	return uint16(v), err
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// Lex tokenises src as unit 0 and returns all tokens including the final EOF
// token. It stops at the first illegal character with a LexError diagnostic.
func Lex(src string) ([]Token, error) {
	return lexUnit(0, src)
}

func lexUnit(unit int, src string) ([]Token, error) {
	l := newLexer(unit, src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
