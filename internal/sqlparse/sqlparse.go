// Package sqlparse is a lightweight, single-pass SQL tokenizer and parser:
// it recovers just enough metadata — target list, FROM-list tables and
// aliases, statement kind, updatability — to answer SQLDescribeCol/
// SQLColAttribute-style questions without a server round trip. It is not a
// SQL parser in the general sense (spec.md's explicit Non-goal): no
// expression trees, no optimisation, no cross-statement plan cache.
//
// Grounded on the teacher's (github.com/lib/pq) rune-scanner idiom from its
// connector.go parseOpts/scanner (character-class-driven tokenizing with
// explicit quote/escape state) and its wrapper.go CopyIn marker-scanning
// shape (scan-and-classify over one pass, no regexp), applied here to SQL
// text instead of DSN strings.
package sqlparse

import (
	"strings"
	"unicode"
)

// StatementKind classifies the parsed statement, spec.md §4.4.
type StatementKind int

const (
	KindUnknown StatementKind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
	KindCreate // SELECT ... INTO table FROM ... reclassified: not cursor-capable
	KindOther
)

// TableInfo is one item of the FROM list, spec.md §3.
type TableInfo struct {
	Schema string
	Name   string
	Alias  string
}

// RefName is what a field's dotted prefix should match against: alias if
// present, else name.
func (t *TableInfo) RefName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// FieldInfo is one item of the target list, spec.md §3.
type FieldInfo struct {
	Name  string // column name, or alias when the item had "AS alias"
	Alias string

	TableRef string // dotted prefix before resolution, e.g. "t" in "t.id"; "" if unqualified

	Expression bool // not a bare (optionally qualified) column reference
	Function   bool // a function call, f(...)
	Quoted     bool // double-quoted identifier
	Numeric    bool // numeric literal
	Asterisk   bool // "*" or "t.*"
}

// Result is the full parse outcome, spec.md §4.4.
type Result struct {
	Kind StatementKind

	Fields []*FieldInfo
	Tables []*TableInfo

	ForUpdate bool
	HasAggregate bool

	// Updatable is a first-pass estimate: single table, no aggregates, no
	// FOR UPDATE-disabling conditions. Final updatability additionally
	// requires every bound column to resolve to a real table column
	// (statement.go/catalog.go refine this after a pg_attribute lookup).
	Updatable bool

	// Ambiguous is set when a field's dotted prefix could not be resolved
	// against the table list; spec.md §4.4: "ambiguous resolutions mark the
	// statement not parsable."
	Ambiguous bool
}

var aggregateFuncs = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"variance": true, "stddev": true,
}

// Parse tokenizes sql and extracts the target list, FROM-list, and
// statement-kind metadata described in spec.md §4.4.
func Parse(sql string) *Result {
	toks := tokenize(sql)
	p := &parser{toks: toks}
	return p.parseStatement()
}

// --- tokenizer ---

type tokKind int

const (
	tokWord tokKind = iota
	tokQuotedIdent
	tokString
	tokNumber
	tokPunct // single-char punctuation: , ( ) . * =
	tokEOF
)

type token struct {
	kind tokKind
	text string
}

func tokenize(sql string) []token {
	r := []rune(sql)
	i := 0
	n := len(r)
	var toks []token

	peek := func(off int) rune {
		if i+off >= n {
			return 0
		}
		return r[i+off]
	}

	for i < n {
		c := r[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '-' && peek(1) == '-':
			for i < n && r[i] != '\n' {
				i++
			}
		case c == '/' && peek(1) == '*':
			i += 2
			for i < n && !(r[i] == '*' && peek(1) == '/') {
				i++
			}
			i += 2
		case c == '"':
			j := i + 1
			var b strings.Builder
			for j < n {
				if r[j] == '"' {
					if peek0(r, j+1) == '"' {
						b.WriteRune('"')
						j += 2
						continue
					}
					break
				}
				b.WriteRune(r[j])
				j++
			}
			toks = append(toks, token{tokQuotedIdent, b.String()})
			i = j + 1
		case c == '\'':
			j := i + 1
			var b strings.Builder
			for j < n {
				if r[j] == '\'' {
					if peek0(r, j+1) == '\'' {
						b.WriteRune('\'')
						j += 2
						continue
					}
					break
				}
				if r[j] == '\\' && j+1 < n {
					b.WriteRune(r[j+1])
					j += 2
					continue
				}
				b.WriteRune(r[j])
				j++
			}
			toks = append(toks, token{tokString, b.String()})
			i = j + 1
		case c == '$' && isDollarTagStart(r, i):
			tag, after := scanDollarTag(r, i)
			closer := "$" + tag + "$"
			end := indexFrom(string(r[after:]), closer)
			var body string
			if end < 0 {
				body = string(r[after:])
				i = n
			} else {
				body = string(r[after : after+end])
				i = after + end + len(closer)
			}
			toks = append(toks, token{tokString, body})
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < n && (unicode.IsLetter(r[j]) || unicode.IsDigit(r[j]) || r[j] == '_') {
				j++
			}
			toks = append(toks, token{tokWord, strings.ToLower(string(r[i:j]))})
			i = j
		case unicode.IsDigit(c):
			j := i
			for j < n && (unicode.IsDigit(r[j]) || r[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, string(r[i:j])})
			i = j
		case c == '?':
			toks = append(toks, token{tokPunct, "?"})
			i++
		default:
			toks = append(toks, token{tokPunct, string(c)})
			i++
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks
}

func peek0(r []rune, i int) rune {
	if i >= len(r) {
		return 0
	}
	return r[i]
}

func isDollarTagStart(r []rune, i int) bool {
	j := i + 1
	for j < len(r) && (unicode.IsLetter(r[j]) || unicode.IsDigit(r[j]) || r[j] == '_') {
		j++
	}
	return j < len(r) && r[j] == '$'
}

func scanDollarTag(r []rune, i int) (tag string, after int) {
	j := i + 1
	for j < len(r) && (unicode.IsLetter(r[j]) || unicode.IsDigit(r[j]) || r[j] == '_') {
		j++
	}
	return string(r[i+1 : j]), j + 1
}

func indexFrom(s, sub string) int {
	return strings.Index(s, sub)
}

// --- parser ---

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance()    { p.pos++ }
func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.kind == tokWord && t.text == kw
}

func (p *parser) parseStatement() *Result {
	res := &Result{Kind: KindOther}

	if !p.isKeyword("select") {
		// INSERT/UPDATE/DELETE get a bare kind classification; this module's
		// parser-driven metadata (target list, table resolution) only
		// matters for SELECT, matching spec.md §4.4's stated purpose.
		switch {
		case p.isKeyword("insert"):
			res.Kind = KindInsert
		case p.isKeyword("update"):
			res.Kind = KindUpdate
		case p.isKeyword("delete"):
			res.Kind = KindDelete
		}
		return res
	}
	res.Kind = KindSelect
	p.advance()

	if p.isKeyword("distinct") {
		p.advance()
		if p.isKeyword("on") {
			p.advance()
			p.skipParenGroup()
		}
	}

	res.Fields = p.parseTargetList()

	intoTable := ""
	if p.isKeyword("into") {
		p.advance()
		intoTable = p.parseDottedName()
	}

	if p.isKeyword("from") {
		p.advance()
		res.Tables = p.parseFromList()
	}

	res.ForUpdate = p.scanForUpdate()

	if intoTable != "" {
		res.Kind = KindCreate
	}

	res.HasAggregate = fieldsHaveAggregate(res.Fields)
	res.Updatable = res.Kind == KindSelect && len(res.Tables) == 1 &&
		!res.HasAggregate && !res.ForUpdate

	res.Ambiguous = p.resolveFieldTables(res)

	return res
}

func fieldsHaveAggregate(fields []*FieldInfo) bool {
	for _, f := range fields {
		if f.Function && aggregateFuncs[strings.ToLower(f.Name)] {
			return true
		}
	}
	return false
}

// resolveFieldTables walks each field's dotted prefix against aliases then
// table names, spec.md §4.4. Returns true if any field could not be
// resolved unambiguously.
func (p *parser) resolveFieldTables(res *Result) bool {
	if len(res.Tables) == 0 {
		return false
	}
	ambiguous := false
	for _, f := range res.Fields {
		if f.TableRef == "" {
			continue
		}
		matches := 0
		for _, t := range res.Tables {
			if strings.EqualFold(t.RefName(), f.TableRef) {
				matches++
			}
		}
		if matches != 1 {
			ambiguous = true
		}
	}
	return ambiguous
}

// parseTargetList splits the comma-separated items between SELECT and
// FROM/INTO at paren-nesting depth 0.
func (p *parser) parseTargetList() []*FieldInfo {
	var fields []*FieldInfo
	for {
		f := p.parseTargetItem()
		if f != nil {
			fields = append(fields, f)
		}
		if p.cur().kind == tokPunct && p.cur().text == "," {
			p.advance()
			continue
		}
		break
	}
	return fields
}

func (p *parser) parseTargetItem() *FieldInfo {
	f := &FieldInfo{}
	start := p.pos

	if p.cur().kind == tokPunct && p.cur().text == "*" {
		f.Asterisk = true
		f.Name = "*"
		p.advance()
	} else {
		name, qualifier, quoted := p.parseQualifiedRef()
		if name == "*" {
			f.Asterisk = true
			f.Name = "*"
			f.TableRef = qualifier
		} else if p.cur().kind == tokPunct && p.cur().text == "(" {
			f.Function = true
			f.Name = name
			p.skipParenGroup()
		} else {
			f.Name = name
			f.TableRef = qualifier
			f.Quoted = quoted
		}
	}

	// Detect AS alias / bare alias (next bare word that isn't a clause
	// keyword and isn't followed immediately by '(' or '.').
	if p.isKeyword("as") {
		p.advance()
		f.Alias = p.parseIdentOrQuoted()
	} else if bareAlias := p.cur().kind == tokWord && !isClauseKeyword(p.cur().text); bareAlias || p.cur().kind == tokQuotedIdent {
		f.Alias = p.parseIdentOrQuoted()
	}

	if p.pos == start {
		// Nothing consumed (malformed input); avoid an infinite loop.
		p.advance()
	}
	// Only a function call is flagged as an expression: operators and
	// literals inside a target item are not detected, and Numeric is never
	// set by this parser.
	f.Expression = f.Function
	return f
}

func isClauseKeyword(w string) bool {
	switch w {
	case "from", "where", "order", "group", "having", "union", "intersect",
		"except", "into", "for", "limit", "offset":
		return true
	}
	return false
}

// parseQualifiedRef parses `ident`, `"ident"`, `ident.ident`, or `ident.*`,
// returning (name, qualifier, quoted).
func (p *parser) parseQualifiedRef() (name, qualifier string, quoted bool) {
	first := p.parseIdentOrQuotedTracking(&quoted)
	if p.cur().kind == tokPunct && p.cur().text == "." {
		p.advance()
		if p.cur().kind == tokPunct && p.cur().text == "*" {
			p.advance()
			return "*", first, false
		}
		var q2 bool
		second := p.parseIdentOrQuotedTracking(&q2)
		return second, first, q2
	}
	return first, "", quoted
}

func (p *parser) parseIdentOrQuoted() string {
	var q bool
	return p.parseIdentOrQuotedTracking(&q)
}

func (p *parser) parseIdentOrQuotedTracking(quoted *bool) string {
	t := p.cur()
	if t.kind == tokQuotedIdent {
		*quoted = true
		p.advance()
		return t.text
	}
	if t.kind == tokWord || t.kind == tokNumber {
		p.advance()
		return t.text
	}
	return ""
}

func (p *parser) parseDottedName() string {
	name, qualifier, _ := p.parseQualifiedRef()
	if qualifier != "" {
		return qualifier + "." + name
	}
	return name
}

func (p *parser) skipParenGroup() {
	if !(p.cur().kind == tokPunct && p.cur().text == "(") {
		return
	}
	depth := 0
	for !p.atEOF() {
		t := p.cur()
		if t.kind == tokPunct && t.text == "(" {
			depth++
		} else if t.kind == tokPunct && t.text == ")" {
			depth--
			p.advance()
			if depth == 0 {
				return
			}
			continue
		}
		p.advance()
	}
}

var joinKeywords = map[string]bool{
	"inner": true, "outer": true, "left": true, "right": true,
	"full": true, "cross": true, "join": true,
}

// parseFromList splits comma-separated FROM items and walks JOIN ... ON
// clauses as part of the same item chain, spec.md §4.4.
func (p *parser) parseFromList() []*TableInfo {
	var tables []*TableInfo
	for {
		t := p.parseFromItem()
		if t != nil {
			tables = append(tables, t)
		}
		for joinKeywords[p.cur().text] && p.cur().kind == tokWord {
			for joinKeywords[p.cur().text] && p.cur().kind == tokWord {
				p.advance()
			}
			jt := p.parseFromItem()
			if jt != nil {
				tables = append(tables, jt)
			}
			if p.isKeyword("on") {
				p.advance()
				p.skipExprUntilClause()
			}
		}
		if p.cur().kind == tokPunct && p.cur().text == "," {
			p.advance()
			continue
		}
		break
	}
	return tables
}

func (p *parser) parseFromItem() *TableInfo {
	if p.cur().kind == tokPunct && p.cur().text == "(" {
		p.skipParenGroup()
	}
	name, qualifier, _ := p.parseQualifiedRef()
	if name == "" {
		return nil
	}
	t := &TableInfo{Name: name}
	if qualifier != "" {
		t.Schema = qualifier
	}
	if p.isKeyword("as") {
		p.advance()
		t.Alias = p.parseIdentOrQuoted()
	} else if (p.cur().kind == tokWord && !isClauseKeyword(p.cur().text) && !joinKeywords[p.cur().text] && p.cur().text != "on") ||
		p.cur().kind == tokQuotedIdent {
		t.Alias = p.parseIdentOrQuoted()
	}
	return t
}

// skipExprUntilClause consumes tokens (tracking paren depth) until a
// top-level clause keyword, comma, or JOIN keyword is reached.
func (p *parser) skipExprUntilClause() {
	depth := 0
	for !p.atEOF() {
		t := p.cur()
		if depth == 0 && t.kind == tokWord && (isClauseKeyword(t.text) || joinKeywords[t.text]) {
			return
		}
		if depth == 0 && t.kind == tokPunct && t.text == "," {
			return
		}
		if t.kind == tokPunct && t.text == "(" {
			depth++
		} else if t.kind == tokPunct && t.text == ")" {
			if depth == 0 {
				return
			}
			depth--
		}
		p.advance()
	}
}

// scanForUpdate detects a trailing FOR UPDATE clause, which disables
// fetch-cursor per spec.md §4.3 step 4. It scans forward past WHERE/ORDER/
// GROUP/HAVING without fully parsing them.
func (p *parser) scanForUpdate() bool {
	for !p.atEOF() {
		if p.isKeyword("for") {
			p.advance()
			if p.isKeyword("update") {
				return true
			}
			continue
		}
		p.advance()
	}
	return false
}
