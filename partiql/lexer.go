package partiql

type Token struct {
	Type  TokenType
	Value string
}

type TokenType int

const (
	Identifier TokenType = iota
	String
	Int
	Float
	Param
	Wildcard
	Comma
	ParenOpen
	ParenClose
	BagOpen
	BagClose
	Equals
	NotEquals
	LessThan
	GreaterThan
	Select
	From
	Where
	And
	Or
	Not
	In
	Like
	Escape
	Lower
	Upper
	As
	At
	By
	Insert
	Into
	Value
	Update
	Set
	Delete
	Remove
	Create
	Drop
	Table
	Index
	On
	Null
	Missing
	True
	False
	// Reserved covers the remaining PartiQL reserved words. The parser never
	// accepts them; they only matter for identifier validation.
	Reserved
	EOF
	Unknown
)

func (token Token) String() string {
	switch token.Type {
	case Identifier:
		return "Identifier(" + token.Value + ")"
	case String:
		return "String(" + token.Value + ")"
	case Int:
		return "Int(" + token.Value + ")"
	case Float:
		return "Float(" + token.Value + ")"
	case Param:
		return "Param"
	case Wildcard:
		return "Wildcard"
	case Comma:
		return "Comma"
	case ParenOpen:
		return "ParenOpen"
	case ParenClose:
		return "ParenClose"
	case BagOpen:
		return "BagOpen"
	case BagClose:
		return "BagClose"
	case Equals:
		return "Equals"
	case Reserved:
		return "Reserved(" + token.Value + ")"
	case EOF:
		return "EOF"
	case Unknown:
		return "Unknown(" + token.Value + ")"
	default:
		return "Keyword(" + token.Value + ")"
	}
}

type Lexer struct {
	text         string
	position     int
	readPosition int
	ch           byte
}

func NewLexer(text string) *Lexer {
	lexer := &Lexer{text: text}
	lexer.readChar()
	return lexer
}

func (lexer *Lexer) readChar() {
	if lexer.readPosition >= len(lexer.text) {
		lexer.ch = 0
	} else {
		lexer.ch = lexer.text[lexer.readPosition]
	}
	lexer.position = lexer.readPosition
	lexer.readPosition++
}

func (lexer *Lexer) peekChar() byte {
	if lexer.readPosition >= len(lexer.text) {
		return 0
	}
	return lexer.text[lexer.readPosition]
}

func (lexer *Lexer) NextToken() Token {
	var token Token

	lexer.skipWhitespace()

	switch lexer.ch {
	case ',':
		token = Token{Type: Comma, Value: ","}
	case '(':
		token = Token{Type: ParenOpen, Value: "("}
	case ')':
		token = Token{Type: ParenClose, Value: ")"}
	case '?':
		token = Token{Type: Param, Value: "?"}
	case '*':
		token = Token{Type: Wildcard, Value: "*"}
	case 0:
		return Token{Type: EOF}
	case '\'':
		value, ok := lexer.readQuoted('\'')
		if !ok {
			return Token{Type: Unknown, Value: "'" + value}
		}
		token = Token{Type: String, Value: value}
	case '"':
		value, ok := lexer.readQuoted('"')
		if !ok || value == "" {
			return Token{Type: Unknown, Value: `"` + value}
		}
		token = Token{Type: Identifier, Value: value}
	default:
		if isOperator(lexer.ch) {
			operator := lexer.readOperator()
			switch operator {
			case "=":
				return Token{Type: Equals, Value: operator}
			case "!=", "<>":
				return Token{Type: NotEquals, Value: operator}
			case "<":
				return Token{Type: LessThan, Value: operator}
			case ">":
				return Token{Type: GreaterThan, Value: operator}
			case "<<":
				return Token{Type: BagOpen, Value: operator}
			case ">>":
				return Token{Type: BagClose, Value: operator}
			default:
				return Token{Type: Unknown, Value: operator}
			}
		} else if isDigit(lexer.ch) {
			num := lexer.readNumber()
			if lexer.ch == '.' && isDigit(lexer.peekChar()) {
				lexer.readChar()
				return Token{Type: Float, Value: num + "." + lexer.readNumber()}
			}
			return Token{Type: Int, Value: num}
		} else if isIdentifierStart(lexer.ch) {
			literal := lexer.readIdentifier()
			return Token{Type: lookupIdentifier(literal), Value: literal}
		}
		token = Token{Type: Unknown, Value: string(lexer.ch)}
	}

	lexer.readChar()
	return token
}

func (lexer *Lexer) PeekToken() Token {
	savedPosition := lexer.position
	savedReadPosition := lexer.readPosition
	savedCh := lexer.ch

	token := lexer.NextToken()

	lexer.position = savedPosition
	lexer.readPosition = savedReadPosition
	lexer.ch = savedCh

	return token
}

func (lexer *Lexer) skipWhitespace() {
	for lexer.ch == ' ' || lexer.ch == '\t' || lexer.ch == '\n' || lexer.ch == '\r' {
		lexer.readChar()
	}
}

// readIdentifier reads a bare identifier. Dots are kept so that a path such
// as h.metadata.id comes back as one token.
func (lexer *Lexer) readIdentifier() string {
	position := lexer.position
	for isIdentifierPart(lexer.ch) {
		lexer.readChar()
	}
	return lexer.text[position:lexer.position]
}

// readQuoted reads up to the closing quote, collapsing doubled quotes. It
// leaves the lexer on the closing quote and reports false when there is none.
func (lexer *Lexer) readQuoted(quote byte) (string, bool) {
	var out []byte
	for {
		lexer.readChar()
		switch {
		case lexer.ch == 0:
			return string(out), false
		case lexer.ch == quote && lexer.peekChar() == quote:
			out = append(out, quote)
			lexer.readChar()
		case lexer.ch == quote:
			return string(out), true
		default:
			out = append(out, lexer.ch)
		}
	}
}

func (lexer *Lexer) readNumber() string {
	position := lexer.position
	for isDigit(lexer.ch) {
		lexer.readChar()
	}
	return lexer.text[position:lexer.position]
}

func (lexer *Lexer) readOperator() string {
	position := lexer.position
	for isOperator(lexer.ch) {
		lexer.readChar()
	}
	return lexer.text[position:lexer.position]
}

func isIdentifierStart(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
}

func isIdentifierPart(ch byte) bool {
	return isIdentifierStart(ch) || isDigit(ch) || ch == '.'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isOperator(ch byte) bool {
	return ch == '=' || ch == '!' || ch == '<' || ch == '>'
}

var keywords = map[string]TokenType{
	"SELECT":  Select,
	"FROM":    From,
	"WHERE":   Where,
	"AND":     And,
	"OR":      Or,
	"NOT":     Not,
	"IN":      In,
	"LIKE":    Like,
	"ESCAPE":  Escape,
	"LOWER":   Lower,
	"UPPER":   Upper,
	"AS":      As,
	"AT":      At,
	"BY":      By,
	"INSERT":  Insert,
	"INTO":    Into,
	"VALUE":   Value,
	"UPDATE":  Update,
	"SET":     Set,
	"DELETE":  Delete,
	"REMOVE":  Remove,
	"CREATE":  Create,
	"DROP":    Drop,
	"TABLE":   Table,
	"INDEX":   Index,
	"ON":      On,
	"NULL":    Null,
	"MISSING": Missing,
	"TRUE":    True,
	"FALSE":   False,

	"ALL":      Reserved,
	"ASC":      Reserved,
	"BETWEEN":  Reserved,
	"CASE":     Reserved,
	"CAST":     Reserved,
	"COUNT":    Reserved,
	"DESC":     Reserved,
	"DISTINCT": Reserved,
	"ELSE":     Reserved,
	"END":      Reserved,
	"EXISTS":   Reserved,
	"GROUP":    Reserved,
	"HAVING":   Reserved,
	"INNER":    Reserved,
	"IS":       Reserved,
	"JOIN":     Reserved,
	"LEFT":     Reserved,
	"LIMIT":    Reserved,
	"ORDER":    Reserved,
	"PIVOT":    Reserved,
	"RIGHT":    Reserved,
	"THEN":     Reserved,
	"UNION":    Reserved,
	"UNPIVOT":  Reserved,
	"USER":     Reserved,
	"VALUES":   Reserved,
	"WHEN":     Reserved,
	"WITH":     Reserved,
}

func lookupIdentifier(id string) TokenType {
	if tokenType, ok := keywords[toUpper(id)]; ok {
		return tokenType
	}
	return Identifier
}

// toUpper converts an ASCII string to uppercase, allocating only when needed.
func toUpper(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if b[j] >= 'a' && b[j] <= 'z' {
					b[j] -= 32
				}
			}
			return string(b)
		}
	}
	return s
}

func tokenize(text string) []Token {
	lexer := NewLexer(text)

	var tokens []Token
	for {
		token := lexer.NextToken()
		tokens = append(tokens, token)
		if token.Type == EOF {
			return tokens
		}
	}
}
