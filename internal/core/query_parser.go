package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

/*
Group and search queries select documents by the entities found in them:

	query     := or
	or        := and ( "OR" and )*
	and       := term ( "AND" term )*
	term      := "NOT"? ( predicate | "(" or ")" )
	predicate := "COUNT" ( "(" label ")" | label ) cmp <int>
	           | label ( "CONTAINS" | "STARTS" | cmp ) <string>
	cmp       := "<" | "<=" | ">" | ">=" | "=" | "!="

Keywords are case insensitive. Labels are matched case insensitively against
PESEL, PHONE, DATE, TIME and the labels produced by the NER model; they may
contain Polish letters. String values compare as text, so TIME values order
chronologically.
*/

var (
	queryLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
		{Name: "Int", Pattern: `\d+`},
		{Name: "Cmp", Pattern: `<=|>=|!=|[<>=]`},
		{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},
		{Name: "Punct", Pattern: `[()]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	queryParser = participle.MustBuild[orQuery](
		participle.Lexer(queryLexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.CaseInsensitive("Ident"),
	)
)

func ParseQuery(query string) (Filter, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	q, err := queryParser.ParseString("", query)
	if err != nil {
		return nil, fmt.Errorf("error parsing query '%s': %w", query, err)
	}

	filter, err := q.filter()
	if err != nil {
		return nil, fmt.Errorf("invalid query '%s': %w", query, err)
	}
	return filter, nil
}

type filterNode interface {
	filter() (Filter, error)
}

// fold converts every node and combines them, leaving a single node unwrapped.
func fold[T filterNode](nodes []T, combine func([]Filter) Filter) (Filter, error) {
	filters := make([]Filter, 0, len(nodes))
	for _, n := range nodes {
		f, err := n.filter()
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	switch len(filters) {
	case 0:
		return nil, fmt.Errorf("empty expression")
	case 1:
		return filters[0], nil
	default:
		return combine(filters), nil
	}
}

type orQuery struct {
	Terms []*andQuery `@@ ( "OR" @@ )*`
}

func (q *orQuery) filter() (Filter, error) {
	return fold(q.Terms, func(fs []Filter) Filter { return &OrFilter{filters: fs} })
}

type andQuery struct {
	Terms []*term `@@ ( "AND" @@ )*`
}

func (q *andQuery) filter() (Filter, error) {
	return fold(q.Terms, func(fs []Filter) Filter { return &AndFilter{filters: fs} })
}

type term struct {
	Not       bool       `@"NOT"?`
	Count     *countPred `( @@`
	Value     *valuePred `| @@`
	Subclause *orQuery   `| "(" @@ ")" )`
}

func (t *term) filter() (Filter, error) {
	var node filterNode
	switch {
	case t.Count != nil:
		node = t.Count
	case t.Value != nil:
		node = t.Value
	case t.Subclause != nil:
		node = t.Subclause
	default:
		return nil, fmt.Errorf("empty condition")
	}

	f, err := node.filter()
	if err != nil {
		return nil, err
	}
	if t.Not {
		return &NotFilter{filter: f}, nil
	}
	return f, nil
}

type countPred struct {
	Label string `"COUNT" ( "(" @Ident ")" | @Ident )`
	Op    string `@Cmp`
	N     int    `@Int`
}

func (p *countPred) filter() (Filter, error) {
	label := normalizeLabel(p.Label)
	between := func(lo, hi int) Filter {
		return &CountFilter{label: label, min: lo, max: hi}
	}

	switch p.Op {
	case "<":
		return between(-1, p.N), nil
	case "<=":
		return between(-1, p.N+1), nil
	case ">":
		return between(p.N, math.MaxInt), nil
	case ">=":
		return between(p.N-1, math.MaxInt), nil
	case "=":
		return between(p.N-1, p.N+1), nil
	case "!=":
		return &NotFilter{filter: between(p.N-1, p.N+1)}, nil
	default:
		return nil, fmt.Errorf("invalid operator %s used with COUNT", p.Op)
	}
}

type valuePred struct {
	Label string `@Ident`
	Op    string `@( "CONTAINS" | "STARTS" | Cmp )`
	Value string `@String`
}

func (p *valuePred) filter() (Filter, error) {
	return &ValueFilter{label: normalizeLabel(p.Label), op: strings.ToUpper(p.Op), value: p.Value}, nil
}
