// Package sqlscan tokenizes SQLite SQL text far enough to classify, split and validate it.
// String literals, quoted identifiers and comments are single tokens, so keywords inside
// them are never matched.
package sqlscan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/satishbabariya/litesql/internal/core/query/domain"
)

// SQLLexer defines the token types of SQLite SQL text.
var SQLLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comments
	{Name: "Comment", Pattern: `--[^\n]*`},
	{Name: "BlockComment", Pattern: `/\*(?s:.*?)(?:\*/|$)`},

	// Literals
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "BlobLiteral", Pattern: `[xX]'[0-9a-fA-F]*'`},
	{Name: "QuotedIdent", Pattern: "\"(?:[^\"]|\"\")*\"|`(?:[^`]|``)*`|\\[[^\\]]*\\]"},
	{Name: "Number", Pattern: `(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?|0[xX][0-9a-fA-F]+`},

	// Parameters
	{Name: "Placeholder", Pattern: `\?[0-9]*|[:@$][A-Za-z_][A-Za-z0-9_]*`},

	// Identifiers and keywords
	{Name: "Ident", Pattern: `[A-Za-z_\p{L}][A-Za-z0-9_$\p{L}\p{N}]*`},

	// Punctuation
	{Name: "Semicolon", Pattern: `;`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Punct", Pattern: `.`},
})

var symbols = SQLLexer.Symbols()

// Token is one lexical token.
type Token struct {
	Type   string
	Text   string
	Offset int
}

// IsKeyword reports whether t is the bare word kw, compared case-insensitively.
func (t Token) IsKeyword(kw string) bool {
	return t.Type == "Ident" && strings.EqualFold(t.Text, kw)
}

// Tokenize returns every token of sql, including whitespace and comments.
func Tokenize(sql string) ([]Token, error) {
	lex, err := SQLLexer.LexString("", sql)
	if err != nil {
		return nil, err
	}
	raw, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, err
	}

	names := make(map[lexer.TokenType]string, len(symbols))
	for name, tt := range symbols {
		names[tt] = name
	}

	tokens := make([]Token, 0, len(raw))
	for _, tok := range raw {
		if tok.EOF() {
			break
		}
		tokens = append(tokens, Token{Type: names[tok.Type], Text: tok.Value, Offset: tok.Pos.Offset})
	}
	return tokens, nil
}

// Significant returns the tokens of sql without whitespace and comments.
func Significant(sql string) ([]Token, error) {
	all, err := Tokenize(sql)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		switch t.Type {
		case "Whitespace", "Comment", "BlockComment":
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Classify returns the command of the first statement in sql. A WITH prefix resolves to
// the statement following its common table expressions.
func Classify(sql string) domain.Command {
	tokens, err := Significant(sql)
	if err != nil || len(tokens) == 0 {
		return domain.CommandUnknown
	}
	head := tokens[0]
	if head.IsKeyword("WITH") {
		if main, ok := mainAfterWith(tokens); ok {
			head = main
		}
	}
	return commandFor(head)
}

func commandFor(t Token) domain.Command {
	if t.Type != "Ident" {
		return domain.CommandUnknown
	}
	switch strings.ToUpper(t.Text) {
	case "SELECT", "VALUES":
		return domain.CommandSelect
	case "INSERT", "REPLACE":
		return domain.CommandInsert
	case "UPDATE":
		return domain.CommandUpdate
	case "DELETE":
		return domain.CommandDelete
	case "BEGIN":
		return domain.CommandBegin
	case "COMMIT", "END":
		return domain.CommandCommit
	case "ROLLBACK":
		return domain.CommandRollback
	case "SAVEPOINT":
		return domain.CommandSavepoint
	case "RELEASE":
		return domain.CommandRelease
	case "CREATE":
		return domain.CommandCreate
	case "DROP":
		return domain.CommandDrop
	case "ALTER":
		return domain.CommandAlter
	}
	return domain.CommandUnknown
}

func mainAfterWith(tokens []Token) (Token, bool) {
	depth := 0
	for _, t := range tokens[1:] {
		switch t.Type {
		case "LParen":
			depth++
		case "RParen":
			depth--
		case "Ident":
			if depth != 0 {
				continue
			}
			switch strings.ToUpper(t.Text) {
			case "SELECT", "VALUES", "INSERT", "REPLACE", "UPDATE", "DELETE":
				return t, true
			}
		}
	}
	return Token{}, false
}

// ReturnsRows reports whether executing sql can produce a row set: queries, PRAGMA and
// EXPLAIN statements, and DML with a top-level RETURNING clause.
func ReturnsRows(sql string) bool {
	tokens, err := Significant(sql)
	if err != nil || len(tokens) == 0 {
		return false
	}
	switch Classify(sql) {
	case domain.CommandSelect:
		return true
	case domain.CommandInsert, domain.CommandUpdate, domain.CommandDelete:
		depth := 0
		for _, t := range tokens {
			switch t.Type {
			case "LParen":
				depth++
			case "RParen":
				depth--
			}
			if depth == 0 && t.IsKeyword("RETURNING") {
				return true
			}
		}
		return false
	}
	return tokens[0].IsKeyword("PRAGMA") || tokens[0].IsKeyword("EXPLAIN")
}

// CountPlaceholders returns the number of parameter placeholders in sql.
func CountPlaceholders(sql string) int {
	tokens, err := Significant(sql)
	if err != nil {
		return 0
	}
	n := 0
	for _, t := range tokens {
		if t.Type == "Placeholder" {
			n++
		}
	}
	return n
}

// Parameters returns the parameter slots of sql the way SQLite numbers them. Slot i holds
// the name of parameter i+1: "" for a bare ?, "?N" for a numbered one, ":name", "@name"
// or "$name" for a named one. A repeated name shares its slot and slots skipped by ?N
// are "".
func Parameters(sql string) ([]string, error) {
	tokens, err := Significant(sql)
	if err != nil {
		return nil, err
	}
	var names []string
	seen := map[string]bool{}
	for _, t := range tokens {
		if t.Type != "Placeholder" {
			continue
		}
		switch {
		case t.Text == "?":
			names = append(names, "")
		case t.Text[0] == '?':
			n, err := strconv.Atoi(t.Text[1:])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid parameter %s", t.Text)
			}
			for len(names) < n {
				names = append(names, "")
			}
			names[n-1] = t.Text
		default:
			if seen[t.Text] {
				continue
			}
			seen[t.Text] = true
			names = append(names, t.Text)
		}
	}
	return names, nil
}

// Split cuts a script into statements at top-level semicolons. Semicolons inside
// CREATE TRIGGER bodies do not end the statement. Empty and comment-only statements are
// dropped.
func Split(script string) ([]string, error) {
	tokens, err := Tokenize(script)
	if err != nil {
		return nil, err
	}

	var (
		out         []string
		start       = 0
		significant []Token
		inTrigger   bool
		caseDepth   int
	)
	flush := func(end int) {
		if len(significant) > 0 {
			out = append(out, strings.TrimSpace(script[start:end]))
		}
		significant = significant[:0]
		inTrigger = false
		caseDepth = 0
	}

	for _, t := range tokens {
		switch t.Type {
		case "Whitespace", "Comment", "BlockComment":
			continue
		case "Semicolon":
			if inTrigger {
				continue
			}
			flush(t.Offset)
			start = t.Offset + 1
			continue
		}
		if len(significant) == 0 {
			start = t.Offset
		}
		significant = append(significant, t)
		if isTriggerHead(significant) && t.IsKeyword("BEGIN") {
			inTrigger = true
		}
		switch {
		case !inTrigger:
		case t.IsKeyword("CASE"):
			caseDepth++
		case t.IsKeyword("END") && caseDepth > 0:
			caseDepth--
		case t.IsKeyword("END"):
			inTrigger = false
		}
	}
	flush(len(script))
	return out, nil
}

func isTriggerHead(tokens []Token) bool {
	if len(tokens) < 2 || !tokens[0].IsKeyword("CREATE") {
		return false
	}
	for _, t := range tokens[1:] {
		if t.IsKeyword("TEMP") || t.IsKeyword("TEMPORARY") {
			continue
		}
		return t.IsKeyword("TRIGGER")
	}
	return false
}

// ValidateFragment checks that expr is a single well-formed SQL expression fragment:
// balanced parentheses, terminated literals and no statement separator.
func ValidateFragment(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("empty expression")
	}
	tokens, err := Tokenize(expr)
	if err != nil {
		return err
	}
	depth := 0
	for _, t := range tokens {
		switch t.Type {
		case "Comment", "BlockComment":
			return fmt.Errorf("comment in expression at offset %d", t.Offset)
		case "Semicolon":
			return fmt.Errorf("statement separator at offset %d", t.Offset)
		case "LParen":
			depth++
		case "RParen":
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced ')' at offset %d", t.Offset)
			}
		case "Punct":
			switch t.Text {
			case "'", "\"", "`", "[":
				return fmt.Errorf("unterminated literal at offset %d", t.Offset)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced '(' in expression")
	}
	return nil
}
