package partiql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrSyntax               = errors.New("partiql syntax error")
	ErrUnsupportedStatement = errors.New("unsupported statement")
)

// CommittedPrefix prefixes the system view exposing committed revisions.
const CommittedPrefix = "_ql_committed_"

type StatementType int

const (
	SelectStatementType StatementType = iota
	InsertStatementType
	UpdateStatementType
	CreateTableStatementType
	DropTableStatementType
	CreateIndexStatementType
)

// Node is a parsed statement.
type Node interface {
	Type() StatementType
}

type SourceKind int

const (
	UserView SourceKind = iota
	CommittedView
	HistoryView
)

// Source is the FROM target of a select.
type Source struct {
	Table string
	Kind  SourceKind
	Alias string
}

// Operand is the left side of a condition: a path, optionally folded.
type Operand struct {
	Path string
	Func TokenType // Lower, Upper, or Identifier for none
}

// Arg is a right-hand value: either the n-th positional parameter or a literal.
type Arg struct {
	IsParam bool
	Param   int
	Literal any
}

type Condition struct {
	Left     Operand
	Operator Operator
	Args     []Arg
	Escape   string
}

type SelectStatement struct {
	Columns []string
	Source  Source
	Where   []Condition
}

type InsertStatement struct {
	Table  string
	Values []Arg
}

type SetClause struct {
	Path  string
	Value Arg
}

type UpdateStatement struct {
	Table string
	Alias string
	Sets  []SetClause
	Where []Condition
}

type CreateTableStatement struct {
	Table string
}

type DropTableStatement struct {
	Table string
}

type CreateIndexStatement struct {
	Table string
	Field string
}

func (s SelectStatement) Type() StatementType      { return SelectStatementType }
func (s InsertStatement) Type() StatementType      { return InsertStatementType }
func (s UpdateStatement) Type() StatementType      { return UpdateStatementType }
func (s CreateTableStatement) Type() StatementType { return CreateTableStatementType }
func (s DropTableStatement) Type() StatementType   { return DropTableStatementType }
func (s CreateIndexStatement) Type() StatementType { return CreateIndexStatementType }

type Parser struct {
	lexer  *Lexer
	params int
}

func NewParser(text string) *Parser {
	return &Parser{lexer: NewLexer(text)}
}

// Parse parses a single statement.
func Parse(text string) (Node, error) {
	return NewParser(text).Parse()
}

func (parser *Parser) Parse() (Node, error) {
	var (
		node Node
		err  error
	)

	token := parser.lexer.NextToken()
	switch token.Type {
	case Select:
		node, err = ParseSelect(parser)
	case Insert:
		node, err = ParseInsert(parser)
	case Update:
		node, err = ParseUpdate(parser)
	case Create:
		node, err = ParseCreate(parser)
	case Drop:
		node, err = ParseDrop(parser)
	case EOF:
		return nil, syntaxError("empty statement")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStatement, token.Value)
	}
	if err != nil {
		return nil, err
	}

	if token := parser.lexer.NextToken(); token.Type != EOF {
		return nil, syntaxError("unexpected %s at end of statement", token)
	}
	return node, nil
}

// Params reports how many positional parameters the parsed text used.
func (parser *Parser) Params() int {
	return parser.params
}

func ParseSelect(parser *Parser) (Node, error) {
	var statement SelectStatement

	token := parser.lexer.NextToken()
	if token.Type != Wildcard {
		for {
			if token.Type != Identifier {
				return nil, syntaxError("expected column or '*' after SELECT")
			}
			statement.Columns = append(statement.Columns, token.Value)
			if parser.lexer.PeekToken().Type != Comma {
				break
			}
			parser.lexer.NextToken()
			token = parser.lexer.NextToken()
		}
	}

	if token := parser.lexer.NextToken(); token.Type != From {
		return nil, syntaxError("expected FROM")
	}

	source, err := parseSource(parser)
	if err != nil {
		return nil, err
	}
	statement.Source = source

	if parser.lexer.PeekToken().Type == Where {
		parser.lexer.NextToken()
		where, err := ParseWhere(parser)
		if err != nil {
			return nil, err
		}
		statement.Where = where
	}

	return statement, nil
}

func parseSource(parser *Parser) (Source, error) {
	var source Source

	token := parser.lexer.NextToken()
	if token.Type != Identifier {
		return source, syntaxError("expected table name after FROM")
	}

	switch {
	case strings.EqualFold(token.Value, "history") && parser.lexer.PeekToken().Type == ParenOpen:
		parser.lexer.NextToken()
		token = parser.lexer.NextToken()
		if token.Type != Identifier {
			return source, syntaxError("expected table name in history()")
		}
		source.Table = token.Value
		source.Kind = HistoryView
		switch parser.lexer.NextToken().Type {
		case ParenClose:
		case Comma:
			return source, fmt.Errorf("%w: history time bounds", ErrUnsupportedStatement)
		default:
			return source, syntaxError("expected ')' after history table")
		}
	case strings.HasPrefix(token.Value, CommittedPrefix):
		source.Table = strings.TrimPrefix(token.Value, CommittedPrefix)
		source.Kind = CommittedView
	default:
		source.Table = token.Value
	}

	if strings.Contains(source.Table, ".") {
		return source, syntaxError("invalid table name %q", source.Table)
	}

	alias, err := parseAlias(parser)
	if err != nil {
		return source, err
	}
	source.Alias = alias
	return source, nil
}

func parseAlias(parser *Parser) (string, error) {
	switch parser.lexer.PeekToken().Type {
	case As:
		parser.lexer.NextToken()
		token := parser.lexer.NextToken()
		if token.Type != Identifier || strings.Contains(token.Value, ".") {
			return "", syntaxError("expected alias after AS")
		}
		return token.Value, nil
	case Identifier:
		return parser.lexer.NextToken().Value, nil
	case At, By:
		return "", fmt.Errorf("%w: AT/BY bindings", ErrUnsupportedStatement)
	}
	return "", nil
}

// ParseWhere parses a conjunction of conditions.
func ParseWhere(parser *Parser) ([]Condition, error) {
	var conditions []Condition

	for {
		condition, err := parseCondition(parser)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, condition)

		switch parser.lexer.PeekToken().Type {
		case And:
			parser.lexer.NextToken()
			continue
		case Or:
			return nil, fmt.Errorf("%w: OR conditions", ErrUnsupportedStatement)
		}
		return conditions, nil
	}
}

func parseCondition(parser *Parser) (Condition, error) {
	var condition Condition

	token := parser.lexer.NextToken()
	switch token.Type {
	case Lower, Upper:
		condition.Left.Func = token.Type
		function := toUpper(token.Value)
		if parser.lexer.NextToken().Type != ParenOpen {
			return condition, syntaxError("expected '(' after %s", function)
		}
		token = parser.lexer.NextToken()
		if token.Type != Identifier {
			return condition, syntaxError("expected path inside %s()", function)
		}
		condition.Left.Path = token.Value
		if parser.lexer.NextToken().Type != ParenClose {
			return condition, syntaxError("expected ')' after path")
		}
	case Identifier:
		condition.Left = Operand{Path: token.Value, Func: Identifier}
	default:
		return condition, syntaxError("expected path in WHERE clause, got %s", token)
	}

	token = parser.lexer.NextToken()
	switch token.Type {
	case Equals:
		condition.Operator = OpEquals
		arg, err := parseArg(parser)
		if err != nil {
			return condition, err
		}
		condition.Args = []Arg{arg}
	case Like:
		condition.Operator = OpLike
		arg, err := parseArg(parser)
		if err != nil {
			return condition, err
		}
		condition.Args = []Arg{arg}
		if parser.lexer.PeekToken().Type == Escape {
			parser.lexer.NextToken()
			token = parser.lexer.NextToken()
			if token.Type != String || len(token.Value) != 1 {
				return condition, syntaxError("ESCAPE expects a single character string")
			}
			condition.Escape = token.Value
		}
	case In:
		condition.Operator = OpIn
		if parser.lexer.NextToken().Type != ParenOpen {
			return condition, syntaxError("expected '(' after IN")
		}
		for {
			arg, err := parseArg(parser)
			if err != nil {
				return condition, err
			}
			condition.Args = append(condition.Args, arg)

			token = parser.lexer.NextToken()
			if token.Type == ParenClose {
				break
			}
			if token.Type != Comma {
				return condition, syntaxError("expected ',' or ')' in IN list")
			}
		}
	case NotEquals, LessThan, GreaterThan, Not:
		return condition, fmt.Errorf("%w: operator %s", ErrUnsupportedStatement, token.Value)
	default:
		return condition, syntaxError("expected operator after %s", condition.Left.Path)
	}

	return condition, nil
}

func parseArg(parser *Parser) (Arg, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case Param:
		arg := Arg{IsParam: true, Param: parser.params}
		parser.params++
		return arg, nil
	case String:
		return Arg{Literal: token.Value}, nil
	case Int:
		n, err := strconv.ParseInt(token.Value, 10, 64)
		if err != nil {
			return Arg{}, syntaxError("invalid integer %s", token.Value)
		}
		return Arg{Literal: n}, nil
	case Float:
		f, err := strconv.ParseFloat(token.Value, 64)
		if err != nil {
			return Arg{}, syntaxError("invalid number %s", token.Value)
		}
		return Arg{Literal: f}, nil
	case True:
		return Arg{Literal: true}, nil
	case False:
		return Arg{Literal: false}, nil
	case Null, Missing:
		return Arg{}, nil
	default:
		return Arg{}, syntaxError("expected value, got %s", token)
	}
}

func ParseInsert(parser *Parser) (Node, error) {
	var statement InsertStatement

	if parser.lexer.NextToken().Type != Into {
		return nil, syntaxError("expected INTO after INSERT")
	}

	token := parser.lexer.NextToken()
	if token.Type != Identifier || strings.Contains(token.Value, ".") {
		return nil, syntaxError("expected table name after INSERT INTO")
	}
	statement.Table = token.Value

	token = parser.lexer.NextToken()
	switch token.Type {
	case Param:
		statement.Values = []Arg{{IsParam: true, Param: parser.params}}
		parser.params++
	case BagOpen:
		for {
			arg, err := parseArg(parser)
			if err != nil {
				return nil, err
			}
			if !arg.IsParam {
				return nil, fmt.Errorf("%w: literal documents", ErrUnsupportedStatement)
			}
			statement.Values = append(statement.Values, arg)

			token = parser.lexer.NextToken()
			if token.Type == BagClose {
				break
			}
			if token.Type != Comma {
				return nil, syntaxError("expected ',' or '>>' in bag")
			}
		}
	case Value:
		return nil, fmt.Errorf("%w: INSERT ... VALUE", ErrUnsupportedStatement)
	default:
		return nil, syntaxError("expected '?' or '<<' after table name")
	}

	return statement, nil
}

func ParseUpdate(parser *Parser) (Node, error) {
	var statement UpdateStatement

	token := parser.lexer.NextToken()
	if token.Type != Identifier || strings.Contains(token.Value, ".") {
		return nil, syntaxError("expected table name after UPDATE")
	}
	statement.Table = token.Value

	alias, err := parseAlias(parser)
	if err != nil {
		return nil, err
	}
	statement.Alias = alias

	if parser.lexer.NextToken().Type != Set {
		return nil, syntaxError("expected SET")
	}

	for {
		token = parser.lexer.NextToken()
		if token.Type != Identifier {
			return nil, syntaxError("expected path after SET")
		}
		path := token.Value

		if parser.lexer.NextToken().Type != Equals {
			return nil, syntaxError("expected '=' after %s", path)
		}
		arg, err := parseArg(parser)
		if err != nil {
			return nil, err
		}
		statement.Sets = append(statement.Sets, SetClause{Path: path, Value: arg})

		if parser.lexer.PeekToken().Type != Comma {
			break
		}
		parser.lexer.NextToken()
	}

	if parser.lexer.PeekToken().Type == Where {
		parser.lexer.NextToken()
		where, err := ParseWhere(parser)
		if err != nil {
			return nil, err
		}
		statement.Where = where
	}

	return statement, nil
}

func ParseCreate(parser *Parser) (Node, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case Table:
		token = parser.lexer.NextToken()
		if token.Type != Identifier || strings.Contains(token.Value, ".") {
			return nil, syntaxError("expected table name after CREATE TABLE")
		}
		return CreateTableStatement{Table: token.Value}, nil
	case Index:
		return ParseCreateIndex(parser)
	default:
		return nil, fmt.Errorf("%w: CREATE %s", ErrUnsupportedStatement, token.Value)
	}
}

func ParseCreateIndex(parser *Parser) (Node, error) {
	var statement CreateIndexStatement

	if parser.lexer.NextToken().Type != On {
		return nil, syntaxError("expected ON after INDEX")
	}

	token := parser.lexer.NextToken()
	if token.Type != Identifier || strings.Contains(token.Value, ".") {
		return nil, syntaxError("expected table name after ON")
	}
	statement.Table = token.Value

	if parser.lexer.NextToken().Type != ParenOpen {
		return nil, syntaxError("expected '(' after table name")
	}
	token = parser.lexer.NextToken()
	if token.Type != Identifier {
		return nil, syntaxError("expected field inside parentheses")
	}
	statement.Field = token.Value
	if parser.lexer.NextToken().Type != ParenClose {
		return nil, syntaxError("expected ')' after field")
	}

	return statement, nil
}

func ParseDrop(parser *Parser) (Node, error) {
	token := parser.lexer.NextToken()
	if token.Type != Table {
		return nil, fmt.Errorf("%w: DROP %s", ErrUnsupportedStatement, token.Value)
	}
	token = parser.lexer.NextToken()
	if token.Type != Identifier || strings.Contains(token.Value, ".") {
		return nil, syntaxError("expected table name after DROP TABLE")
	}
	return DropTableStatement{Table: token.Value}, nil
}

func syntaxError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))
}
