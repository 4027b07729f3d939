package compiler

import (
	"reflect"
	"testing"
)

func TestLex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
		wantErr  bool
	}{
		{
			name:  "Empty",
			input: "",
			expected: []Token{
				{Type: EOF, Lexeme: "", Line: 1},
			},
		},
		{
			name:  "Operators",
			input: "+ - * / = == != < > <= >= ; , : @ ( ) [ ]",
			expected: []Token{
				{Type: PLUS, Lexeme: "+", Line: 1, Offset: 0},
				{Type: MINUS, Lexeme: "-", Line: 1, Offset: 2},
				{Type: STAR, Lexeme: "*", Line: 1, Offset: 4},
				{Type: SLASH, Lexeme: "/", Line: 1, Offset: 6},
				{Type: ASSIGN, Lexeme: "=", Line: 1, Offset: 8},
				{Type: EQUALS, Lexeme: "==", Line: 1, Offset: 10},
				{Type: NOT_EQ, Lexeme: "!=", Line: 1, Offset: 13},
				{Type: LESS, Lexeme: "<", Line: 1, Offset: 16},
				{Type: GREATER, Lexeme: ">", Line: 1, Offset: 18},
				{Type: LESS_EQ, Lexeme: "<=", Line: 1, Offset: 20},
				{Type: GREATER_EQ, Lexeme: ">=", Line: 1, Offset: 23},
				{Type: SEMICOLON, Lexeme: ";", Line: 1, Offset: 26},
				{Type: COMMA, Lexeme: ",", Line: 1, Offset: 28},
				{Type: COLON, Lexeme: ":", Line: 1, Offset: 30},
				{Type: AT, Lexeme: "@", Line: 1, Offset: 32},
				{Type: LPAREN, Lexeme: "(", Line: 1, Offset: 34},
				{Type: RPAREN, Lexeme: ")", Line: 1, Offset: 36},
				{Type: LBRACKET, Lexeme: "[", Line: 1, Offset: 38},
				{Type: RBRACKET, Lexeme: "]", Line: 1, Offset: 40},
				{Type: EOF, Lexeme: "", Line: 1, Offset: 41},
			},
		},
		{
			name:  "Keywords and Identifiers",
			input: "def end register u8 counter _tmp1",
			expected: []Token{
				{Type: DEF, Lexeme: "def", Line: 1, Offset: 0},
				{Type: END, Lexeme: "end", Line: 1, Offset: 4},
				{Type: REGISTER, Lexeme: "register", Line: 1, Offset: 8},
				{Type: U8, Lexeme: "u8", Line: 1, Offset: 17},
				{Type: IDENTIFIER, Lexeme: "counter", Line: 1, Offset: 20},
				{Type: IDENTIFIER, Lexeme: "_tmp1", Line: 1, Offset: 28},
				{Type: EOF, Lexeme: "", Line: 1, Offset: 33},
			},
		},
		{
			name:  "Numbers",
			input: "42 0x00FF 0XaB",
			expected: []Token{
				{Type: NUMBER, Lexeme: "42", Line: 1, Offset: 0},
				{Type: NUMBER, Lexeme: "0x00FF", Line: 1, Offset: 3},
				{Type: NUMBER, Lexeme: "0XaB", Line: 1, Offset: 10},
				{Type: EOF, Lexeme: "", Line: 1, Offset: 14},
			},
		},
		{
			name:  "Comments and lines",
			input: "# setup\nx = 1; # trailing\n",
			expected: []Token{
				{Type: COMMENT, Lexeme: "setup", Line: 1, Offset: 0},
				{Type: IDENTIFIER, Lexeme: "x", Line: 2, Offset: 8},
				{Type: ASSIGN, Lexeme: "=", Line: 2, Offset: 10},
				{Type: NUMBER, Lexeme: "1", Line: 2, Offset: 12},
				{Type: SEMICOLON, Lexeme: ";", Line: 2, Offset: 13},
				{Type: COMMENT, Lexeme: "trailing", Line: 2, Offset: 15},
				{Type: EOF, Lexeme: "", Line: 3, Offset: 26},
			},
		},
		{
			name:  "String escapes",
			input: `"hi\n\x41\101\""`,
			expected: []Token{
				{Type: STRING, Lexeme: "hi\nAA\"", Line: 1, Offset: 0},
				{Type: EOF, Lexeme: "", Line: 1, Offset: 16},
			},
		},
		{name: "Illegal character", input: "x = $10;", wantErr: true},
		{name: "Number too large", input: "65536", wantErr: true},
		{name: "Malformed number", input: "12ab", wantErr: true},
		{name: "Unterminated string", input: "\"abc\n\"", wantErr: true},
		{name: "Empty hex", input: "0x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lex(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Lex() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !HasKind(err, LexError) {
					t.Errorf("Lex() error %v is not a LexError", err)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Lex() got\n%v\nwant\n%v", got, tt.expected)
			}
		})
	}
}

func TestLexErrorOffset(t *testing.T) {
	_, err := lexUnit(2, "x = 1;\ny ? 2;")
	ds := DiagnosticsOf(err)
	if len(ds) != 1 {
		t.Fatalf("expected one diagnostic, got %v", err)
	}
	if ds[0].Tag != (SourceTag{Unit: 2, Offset: 9}) {
		t.Errorf("tag = %v, want 2:9", ds[0].Tag)
	}
}
