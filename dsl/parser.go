package dsl

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	dslLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})`},
		{Name: "HashComment", Pattern: `#[^\n]*`},
		{Name: "Number", Pattern: `(?:\d+\.\d+|\d+)(?:pt|mm|cm|in|%|x)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Symbol", Pattern: `[][(),.=+\-*/%<>!?;:]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	tokenNames       = ruleNames()
	newlineTokenType = tokenType("Newline")
	lbraceTokenType  = tokenType("LBrace")
	rbraceTokenType  = tokenType("RBrace")
	symbolTokenType  = tokenType("Symbol")
	stringTokenType  = tokenType("String")
	identTokenType   = tokenType("Ident")

	documentParser = participle.MustBuild[Document](
		participle.Lexer(dslLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment", "HashComment"),
	)
)

// Document is the root AST node for a design file.
type Document struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Name     string         `parser:"Newline* 'design' @Ident"`
	Version  string         `parser:"@Ident"`
	Sections []*Section     `parser:"'{' Newline* ( @@ Newline* )* '}' Newline*"`
}

// Section represents a top-level section (meta/resources/template/page).
type Section struct {
	Meta      *MetaSection      `parser:"  @@"`
	Resources *ResourcesSection `parser:"| @@"`
	Template  *TemplateSection  `parser:"| @@"`
	Page      *PageSection      `parser:"| @@"`
}

// Kind returns the human-readable section type.
func (s *Section) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Meta != nil:
		return "meta"
	case s.Resources != nil:
		return "resources"
	case s.Template != nil:
		return "template"
	case s.Page != nil:
		return "page"
	default:
		return "unknown"
	}
}

// MetaSection captures metadata assignments.
type MetaSection struct {
	Block *Block `parser:"'meta' @@"`
}

// ResourcesSection groups resource declarations.
type ResourcesSection struct {
	Block *Block `parser:"'resources' @@"`
}

// TemplateSection defines a reusable block instantiated with `use <name>`
// or referenced as a list's when-empty placeholder.
type TemplateSection struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Name  string         `parser:"'template' @Ident"`
	Block *Block         `parser:"@@"`
}

// PageSection represents a page sequence: page geometry plus the content flowed into it.
type PageSection struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Spec  PageSpec       `parser:"'page' @@"`
	Block *Block         `parser:"@@"`
}

// PageSpec stores header tokens (eg: size, orientation).
type PageSpec struct {
	Size   string    `parser:"@Ident"`
	Params []*Lexeme `parser:"@@*"`
}

// Block is a delimited list of statements.
type Block struct {
	Statements []*Statement `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Statement inside a block (assignment/command/text literal).
type Statement struct {
	Assignment *Assignment  `parser:"  @@"`
	Command    *Command     `parser:"| @@"`
	Text       *TextLiteral `parser:"| @@"`
}

// Assignment uses colon syntax (key: value).
type Assignment struct {
	Key   string `parser:"@Ident"`
	Value *Value `parser:"':' Newline* @@"`
}

// Command describes layout/drawing instructions.
type Command struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Name  string         `parser:"@Ident"`
	Args  []*Lexeme      `parser:"@@*"`
	Block *Block         `parser:"( Newline* @@ )?"`
}

// TextLiteral encapsulates raw string statements within blocks.
type TextLiteral struct {
	Value StringLiteral `parser:"@String"`
}

// Value represents generic property values.
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	Array  *ArrayValue    `parser:"| @@"`
	Object *InlineObject  `parser:"| @@"`
	Expr   *Expression    `parser:"| @@"`
}

// ArrayValue captures `[ ... ]` expressions.
type ArrayValue struct {
	Values []*Value `parser:"'[' Newline* ( @@ ( (',' | ';' | Newline+) Newline* @@ )* )? Newline* ']'"`
}

// InlineObject captures `{ key: value }` inline maps.
type InlineObject struct {
	Entries []*Assignment `parser:"'{' Newline* ( @@ Newline* ( (';' | Newline+) Newline* @@ Newline* )* )? Newline* '}'"`
}

// Expression 保存赋值右侧的原始记号，由使用方决定如何求值。
// 表达式在行尾、块边界、括号外的 ; 或 , 以及下一个 "key:" 之前结束，
// 因此同一行可以写多个赋值：font: Body size: 11pt。
type Expression struct {
	Parts []*Lexeme
}

// Parse implements participle.Parseable for Expression.
func (e *Expression) Parse(lex *lexer.PeekingLexer) error {
	var (
		parts []*Lexeme
		depth nesting
	)
	for {
		tok := lex.Peek()
		if depth.closes(tok) || (len(parts) > 0 && depth.flat() && startsAssignment(lex)) {
			break
		}
		lexeme, err := consumeLexeme(lex)
		if err != nil {
			return err
		}
		depth.track(lexeme.Raw)
		parts = append(parts, lexeme)
	}
	if len(parts) == 0 {
		return participle.NextMatch
	}
	e.Parts = parts
	return nil
}

// nesting 记录表达式内未闭合的圆括号与方括号。
type nesting struct{ paren, bracket int }

func (n *nesting) track(raw string) {
	switch raw {
	case "(":
		n.paren++
	case ")":
		n.paren = max(n.paren-1, 0)
	case "[":
		n.bracket++
	case "]":
		n.bracket = max(n.bracket-1, 0)
	}
}

func (n nesting) flat() bool { return n.paren == 0 && n.bracket == 0 }

// closes 判断 tok 是否结束当前表达式。
func (n nesting) closes(tok *lexer.Token) bool {
	if tok == nil || tok.EOF() {
		return true
	}
	flat := n.flat()
	switch tok.Type {
	case newlineTokenType, lbraceTokenType, rbraceTokenType:
		return flat
	case symbolTokenType:
		switch tok.Value {
		case ";", ",":
			return flat
		case "]":
			return n.bracket == 0
		}
	}
	return false
}

// startsAssignment 向前看两个记号，判断接下来是否为新的 "key:"。
func startsAssignment(lex *lexer.PeekingLexer) bool {
	if lex.Peek().Type != identTokenType {
		return false
	}
	cp := lex.MakeCheckpoint()
	defer lex.LoadCheckpoint(cp)
	lex.Next()
	next := lex.Peek()
	return next.Type == symbolTokenType && next.Value == ":"
}

// Lexeme 是命令参数或表达式中的单个记号；字符串的 Value 已去掉引号。
type Lexeme struct {
	Type  string         `json:"type"`
	Value string         `json:"value"`
	Raw   string         `json:"raw"`
	Pos   lexer.Position `json:"-"`
}

// Parse implements participle.Parseable so Lexeme can act as a grammar atom.
func (l *Lexeme) Parse(lex *lexer.PeekingLexer) error {
	if endsArgs(lex.Peek()) {
		return participle.NextMatch
	}
	lexeme, err := consumeLexeme(lex)
	if err != nil {
		return err
	}
	*l = *lexeme
	return nil
}

// endsArgs 判断命令参数是否到此为止：行尾、块、分号。
func endsArgs(tok *lexer.Token) bool {
	if tok == nil || tok.EOF() {
		return true
	}
	switch tok.Type {
	case newlineTokenType, lbraceTokenType, rbraceTokenType:
		return true
	case symbolTokenType:
		return tok.Value == ";"
	}
	return false
}

// StringLiteral unquotes Go-style strings on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// SyntaxError 是带位置的语法错误。
type SyntaxError struct {
	Pos lexer.Position
	Msg string
}

func (e *SyntaxError) Error() string {
	if e.Pos.Filename != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Msg)
	}
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// Parse parses DSL content from an io.Reader.
func Parse(r io.Reader) (*Document, error) {
	return ParseFile("", r)
}

// ParseFile parses DSL content, recording filename in every position.
func ParseFile(filename string, r io.Reader) (*Document, error) {
	doc, err := documentParser.Parse(filename, r)
	return doc, syntaxError(err)
}

// ParseString parses DSL content from a string.
func ParseString(input string) (*Document, error) {
	doc, err := documentParser.ParseString("", input)
	return doc, syntaxError(err)
}

func syntaxError(err error) error {
	var perr participle.Error
	if errors.As(err, &perr) {
		return &SyntaxError{Pos: perr.Position(), Msg: perr.Message()}
	}
	return err
}

func consumeLexeme(lex *lexer.PeekingLexer) (*Lexeme, error) {
	tok := lex.Next()
	if tok.EOF() {
		return nil, participle.NextMatch
	}
	name, ok := tokenNames[tok.Type]
	if !ok {
		name = fmt.Sprintf("#%d", tok.Type)
	}
	value := tok.Value
	if tok.Type == stringTokenType {
		unquoted, err := strconv.Unquote(tok.Value)
		if err != nil {
			return nil, err
		}
		value = unquoted
	}
	return &Lexeme{Type: name, Value: value, Raw: tok.Value, Pos: tok.Pos}, nil
}

func tokenType(rule string) lexer.TokenType {
	tt, ok := dslLexer.Symbols()[rule]
	if !ok {
		panic("dsl: unknown token rule " + rule)
	}
	return tt
}

// ruleNames 是记号类型到规则名的反查表，供 Lexeme.Type 使用。
func ruleNames() map[lexer.TokenType]string {
	names := map[lexer.TokenType]string{}
	for rule, tt := range dslLexer.Symbols() {
		names[tt] = rule
	}
	return names
}
