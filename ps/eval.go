package ps

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/nickyhof/innoldb/core"
	"github.com/nickyhof/innoldb/partiql"
)

// scope evaluates conditions for one statement. Paths may be prefixed with
// the FROM alias, or with the table name when there is none.
type scope struct {
	binding  string
	params   []any
	patterns map[string]*regexp.Regexp
}

func newScope(alias, table string, params []any) *scope {
	binding := alias
	if binding == "" {
		binding = table
	}
	return &scope{binding: binding, params: params, patterns: make(map[string]*regexp.Regexp)}
}

func (s *scope) strip(p string) string {
	if rest, ok := strings.CutPrefix(p, s.binding+"."); ok {
		return rest
	}
	return p
}

func (s *scope) resolve(row map[string]any, p string) (any, bool) {
	if p == s.binding {
		return row, true
	}
	return core.Lookup(row, s.strip(p))
}

func (s *scope) matches(row map[string]any, conditions []partiql.Condition) (bool, error) {
	for _, condition := range conditions {
		ok, err := s.evaluate(row, condition)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (s *scope) evaluate(row map[string]any, condition partiql.Condition) (bool, error) {
	left, ok := s.resolve(row, condition.Left.Path)
	if !ok {
		return false, nil
	}

	switch condition.Left.Func {
	case partiql.Lower, partiql.Upper:
		str, isString := left.(string)
		if !isString {
			return false, nil
		}
		if condition.Left.Func == partiql.Lower {
			left = strings.ToLower(str)
		} else {
			left = strings.ToUpper(str)
		}
	}

	switch condition.Operator {
	case partiql.OpEquals:
		return equalValues(left, argValue(condition.Args[0], s.params)), nil
	case partiql.OpIn:
		for _, arg := range condition.Args {
			if equalValues(left, argValue(arg, s.params)) {
				return true, nil
			}
		}
		return false, nil
	case partiql.OpLike:
		str, isString := left.(string)
		if !isString {
			return false, nil
		}
		pattern, isString := argValue(condition.Args[0], s.params).(string)
		if !isString {
			return false, fmt.Errorf("LIKE pattern for %s must be a string", condition.Left.Path)
		}
		re, err := s.likePattern(pattern, condition.Escape)
		if err != nil {
			return false, err
		}
		return re.MatchString(str), nil
	default:
		return false, fmt.Errorf("%w: operator %s", ErrUnsupportedStatement, condition.Operator)
	}
}

func (s *scope) likePattern(pattern, escape string) (*regexp.Regexp, error) {
	key := escape + "\x00" + pattern
	if re, ok := s.patterns[key]; ok {
		return re, nil
	}
	re, err := likeRegexp(pattern, escape)
	if err != nil {
		return nil, err
	}
	s.patterns[key] = re
	return re, nil
}

// project keeps the selected paths, each under its last path segment.
func (s *scope) project(row map[string]any, columns []string) Row {
	if len(columns) == 0 {
		return row
	}
	out := make(Row, len(columns))
	for _, column := range columns {
		value, ok := s.resolve(row, column)
		if !ok {
			continue
		}
		name := column
		if i := strings.LastIndexByte(column, '.'); i >= 0 {
			name = column[i+1:]
		}
		out[name] = value
	}
	return out
}

// likeRegexp translates a LIKE pattern: % matches any run, _ any single
// character, and escape makes the next character literal.
func likeRegexp(pattern, escape string) (*regexp.Regexp, error) {
	var esc rune = -1
	if escape != "" {
		esc = []rune(escape)[0]
	}

	var b strings.Builder
	b.WriteString("(?s)^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == esc:
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		return nil, fmt.Errorf("LIKE pattern %q ends with the escape character", pattern)
	}
	b.WriteString("$")

	return regexp.Compile(b.String())
}

func argValue(arg partiql.Arg, params []any) any {
	if !arg.IsParam {
		return arg.Literal
	}
	if arg.Param < len(params) {
		return params[arg.Param]
	}
	return nil
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// setPath assigns value at a dotted path, creating intermediate structs.
func setPath(row map[string]any, p string, value any) error {
	parts := strings.Split(p, ".")
	current := row
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok || next == nil {
			child := make(map[string]any)
			current[part] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot set %s: %s is not a struct", p, part)
		}
		current = child
	}
	current[parts[len(parts)-1]] = value
	return nil
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneRow(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneAny(item)
		}
		return out
	default:
		return v
	}
}
