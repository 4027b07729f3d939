package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable / function name
	NUMBER     // decimal or 0x-prefixed integer literal
	STRING     // string literal "..."
	COMMENT    // # ... to end of line

	// Keywords
	DEF        // "def"
	END        // "end"
	IF         // "if"
	THEN       // "then"
	ELSE       // "else"
	WHILE      // "while"
	DO         // "do"
	BREAK      // "break"
	RETURN     // "return"
	GOTO       // "goto"
	CONST      // "const"
	VAR        // "var"
	REGISTER   // "register"
	MEMORY     // "memory"
	ORG        // "org"
	INLINE_ASM // "inline_asm"
	U8         // "u8"
	U16        // "u16"
	VOID       // "void"

	// Paired delimiters
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	SEMICOLON // ;
	COMMA     // ,
	COLON     // :
	AT        // @

	// Arithmetic operators
	PLUS  // +
	MINUS // -
	STAR  // * (multiplication, or pointer type prefix)
	SLASH // /

	// Assignment / comparison  (order matters: ASSIGN before EQUALS)
	ASSIGN     // =
	EQUALS     // ==
	NOT_EQ     // !=
	LESS       // <
	GREATER    // >
	LESS_EQ    // <=
	GREATER_EQ // >=
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:        "EOF",
	IDENTIFIER: "IDENTIFIER",
	NUMBER:     "NUMBER",
	STRING:     "STRING",
	COMMENT:    "COMMENT",
	DEF:        "DEF",
	END:        "END",
	IF:         "IF",
	THEN:       "THEN",
	ELSE:       "ELSE",
	WHILE:      "WHILE",
	DO:         "DO",
	BREAK:      "BREAK",
	RETURN:     "RETURN",
	GOTO:       "GOTO",
	CONST:      "CONST",
	VAR:        "VAR",
	REGISTER:   "REGISTER",
	MEMORY:     "MEMORY",
	ORG:        "ORG",
	INLINE_ASM: "INLINE_ASM",
	U8:         "U8",
	U16:        "U16",
	VOID:       "VOID",
	LPAREN:     "LPAREN",
	RPAREN:     "RPAREN",
	LBRACKET:   "LBRACKET",
	RBRACKET:   "RBRACKET",
	SEMICOLON:  "SEMICOLON",
	COMMA:      "COMMA",
	COLON:      "COLON",
	AT:         "AT",
	PLUS:       "PLUS",
	MINUS:      "MINUS",
	STAR:       "STAR",
	SLASH:      "SLASH",
	ASSIGN:     "ASSIGN",
	EQUALS:     "EQUALS",
	NOT_EQ:     "NOT_EQ",
	LESS:       "LESS",
	GREATER:    "GREATER",
	LESS_EQ:    "LESS_EQ",
	GREATER_EQ: "GREATER_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Symbol returns the operator spelling used in AST dumps and diagnostics.
func (tt TokenType) Symbol() string {
	switch tt {
	case PLUS:
		return "+"
	case MINUS:
		return "-"
	case STAR:
		return "*"
	case SLASH:
		return "/"
	case EQUALS:
		return "=="
	case NOT_EQ:
		return "!="
	case LESS:
		return "<"
	case GREATER:
		return ">"
	case LESS_EQ:
		return "<="
	case GREATER_EQ:
		return ">="
	}
	return tt.String()
}

// isComparison reports whether tt is one of the six comparison operators.
func (tt TokenType) isComparison() bool {
	switch tt {
	case EQUALS, NOT_EQ, LESS, GREATER, LESS_EQ, GREATER_EQ:
		return true
	}
	return false
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched (decoded for strings)
	Line   int    // 1-based source line
	Offset int    // byte offset of the first character within the unit
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}
