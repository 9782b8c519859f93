package ddl

import (
	"strings"

	"github.com/neverchanje/chgcap-mysql/cdcerrors"
	"github.com/neverchanje/chgcap-mysql/ddl/ast"
)

// Parse tokenizes and parses a single DDL statement, returning its
// Statement. Only CREATE TABLE is parsed in full (spec §4.B); ALTER
// TABLE and DROP TABLE are recognised by their leading keywords and
// returned with just the target table name, since the pipeline only
// needs to know that a schema change occurred and to what table.
//
// Any other leading keyword (or a DML statement that slipped into a
// QueryEvent) returns an *cdcerrors.Error of kind DDLParse; the
// pipeline logs such an error and skips the statement.
func Parse(sql string) (ast.Statement, error) {
	toks := significantTokens(sql)
	p := &parser{toks: toks, sql: sql}
	return p.parseStatement()
}

// significantTokens drops Whitespace tokens and the trailing EOF
// marker is kept so the parser can detect end-of-input.
func significantTokens(sql string) []TokenWithLocation {
	all := Tokenize(sql)
	out := make([]TokenWithLocation, 0, len(all))
	for _, t := range all {
		if t.Token.Kind == Whitespace {
			continue
		}
		out = append(out, t)
	}
	return out
}

type parser struct {
	toks []TokenWithLocation
	pos  int
	sql  string
}

func (p *parser) peek() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: EOF}
	}
	return p.toks[p.pos].Token
}

func (p *parser) advance() Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) errf(format string, args ...interface{}) error {
	return cdcerrors.New(cdcerrors.DDLParse, format, args...)
}

func (p *parser) wordIs(t Token, word string) bool {
	return t.Kind == Word && strings.EqualFold(t.Value, word)
}

func (p *parser) expectWord(word string) error {
	t := p.advance()
	if !p.wordIs(t, word) {
		return p.errf("expected %q, got %q", word, t.Value)
	}
	return nil
}

func (p *parser) tryWord(word string) bool {
	if p.wordIs(p.peek(), word) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) parseStatement() (ast.Statement, error) {
	t := p.peek()
	switch {
	case p.wordIs(t, "CREATE"):
		return p.parseCreateTable()
	case p.wordIs(t, "ALTER"):
		return p.parseAlterTable()
	case p.wordIs(t, "DROP"):
		return p.parseDropTable()
	default:
		return nil, p.errf("unsupported statement, starts with %q", t.Value)
	}
}

func (p *parser) parseAlterTable() (ast.Statement, error) {
	p.advance() // ALTER
	if err := p.expectWord("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.parseObjectName()
	if err != nil {
		return nil, err
	}
	return ast.AlterTable{Name: name}, nil
}

func (p *parser) parseDropTable() (ast.Statement, error) {
	p.advance() // DROP
	if err := p.expectWord("TABLE"); err != nil {
		return nil, err
	}
	// IF EXISTS: consume the EXISTS half if IF was present.
	if p.tryWord("IF") {
		if err := p.expectWord("EXISTS"); err != nil {
			return nil, err
		}
	}
	name, err := p.parseObjectName()
	if err != nil {
		return nil, err
	}
	return ast.DropTable{Name: name}, nil
}

// parseCreateTable implements spec §4.B: CREATE TABLE [IF NOT EXISTS]
// name (column-def | table-constraint, ...) [trailing options,
// ignored]. `LIKE other_table` and `AS SELECT ...` forms are
// recognised and rejected as unsupported, since they carry no
// column-def list for this parser to materialise.
func (p *parser) parseCreateTable() (ast.Statement, error) {
	p.advance() // CREATE
	if err := p.expectWord("TABLE"); err != nil {
		return nil, err
	}

	ifNotExists := false
	if p.wordIs(p.peek(), "IF") {
		p.advance()
		if err := p.expectWord("NOT"); err != nil {
			return nil, err
		}
		if err := p.expectWord("EXISTS"); err != nil {
			return nil, err
		}
		ifNotExists = true
	}

	name, err := p.parseObjectName()
	if err != nil {
		return nil, err
	}

	if p.wordIs(p.peek(), "LIKE") {
		return nil, p.errf("CREATE TABLE ... LIKE is not supported")
	}
	if p.wordIs(p.peek(), "AS") {
		return nil, p.errf("CREATE TABLE ... AS is not supported")
	}

	if p.peek().Kind != LParen {
		return nil, p.errf("expected '(' after table name, got %q", p.peek().Value)
	}
	p.advance()

	var columns []ast.ColumnDef
	var constraints []ast.TableConstraint
	for {
		if isTableConstraintStart(p.peek()) {
			c, err := p.parseTableConstraint()
			if err != nil {
				return nil, err
			}
			if c != nil { // nil: a constraint kind that is discarded
				constraints = append(constraints, c)
			}
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			columns = append(columns, col)
		}
		if p.peek().Kind == Comma {
			p.advance()
			continue
		}
		break
	}
	if p.peek().Kind != RParen {
		return nil, p.errf("expected ')', got %q", p.peek().Value)
	}
	p.advance()

	// Trailing table options (ENGINE=, CHARSET=, COMMENT=, ...) are
	// intentionally left unparsed: consume tokens to the statement end
	// or a semicolon, whichever the caller's sql already ends at.
	for p.peek().Kind != EOF && p.peek().Kind != SemiColon {
		p.advance()
	}

	return ast.CreateTable{
		IfNotExists: ifNotExists,
		Name:        name,
		Columns:     columns,
		Constraints: constraints,
	}, nil
}

func isTableConstraintStart(t Token) bool {
	if t.Kind != Word {
		return false
	}
	switch strings.ToUpper(t.Value) {
	case "PRIMARY", "UNIQUE", "KEY", "INDEX", "FOREIGN", "CONSTRAINT", "CHECK":
		return true
	default:
		return false
	}
}

// parseTableConstraint materialises PRIMARY KEY (cols...); every other
// constraint kind is parsed just enough to skip past it (matched
// parens, or up to the next comma/')' for bare forms) and yields a nil
// constraint.
func (p *parser) parseTableConstraint() (ast.TableConstraint, error) {
	if p.wordIs(p.peek(), "CONSTRAINT") {
		p.advance()
		if p.peek().Kind == Word && !isTableConstraintStart(p.peek()) {
			p.advance() // constraint name
		}
	}

	if p.wordIs(p.peek(), "PRIMARY") {
		p.advance()
		if err := p.expectWord("KEY"); err != nil {
			return nil, err
		}
		cols, err := p.parseColumnList()
		if err != nil {
			return nil, err
		}
		p.skipIndexOptions()
		return ast.PrimaryKeys{Columns: cols}, nil
	}

	// UNIQUE [KEY|INDEX] [name] (cols) | KEY|INDEX [name] (cols) |
	// FOREIGN KEY ... | CHECK (...): skip, keeping balanced parens.
	depth := 0
	for {
		t := p.peek()
		if t.Kind == EOF {
			return nil, p.errf("unterminated table constraint")
		}
		if t.Kind == LParen {
			depth++
			p.advance()
			continue
		}
		if t.Kind == RParen {
			if depth == 0 {
				break
			}
			depth--
			p.advance()
			continue
		}
		if t.Kind == Comma && depth == 0 {
			break
		}
		p.advance()
	}
	return nil, nil
}

// unsupportedConstraint is a discarded placeholder for constraint
// kinds this parser recognises syntactically but does not materialise.
type unsupportedConstraint struct{}

func (unsupportedConstraint) isTableConstraint() {}
func (unsupportedConstraint) String() string     { return "" }

func (p *parser) skipIndexOptions() {
	for {
		t := p.peek()
		if t.Kind == Comma || t.Kind == RParen || t.Kind == EOF {
			return
		}
		p.advance()
	}
}

func (p *parser) parseColumnList() ([]ast.Ident, error) {
	if p.peek().Kind != LParen {
		return nil, p.errf("expected '(', got %q", p.peek().Value)
	}
	p.advance()
	var cols []ast.Ident
	for {
		id, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, id)
		// column may carry an index-prefix length, e.g. `name(10)`.
		if p.peek().Kind == LParen {
			p.advance()
			for p.peek().Kind != RParen && p.peek().Kind != EOF {
				p.advance()
			}
			if p.peek().Kind == RParen {
				p.advance()
			}
		}
		if p.wordIs(p.peek(), "ASC") || p.wordIs(p.peek(), "DESC") {
			p.advance()
		}
		if p.peek().Kind == Comma {
			p.advance()
			continue
		}
		break
	}
	if p.peek().Kind != RParen {
		return nil, p.errf("expected ')', got %q", p.peek().Value)
	}
	p.advance()
	return cols, nil
}

func (p *parser) parseIdent() (ast.Ident, error) {
	t := p.advance()
	switch t.Kind {
	case Word:
		return ast.NewIdent(t.Value), nil
	case BacktickQuotedString:
		return ast.WithQuote('`', t.Value), nil
	case DoubleQuotedString:
		return ast.WithQuote('"', t.Value), nil
	default:
		return ast.Ident{}, p.errf("expected identifier, got %q", t.Value)
	}
}

func (p *parser) parseObjectName() (ast.ObjectName, error) {
	var parts ast.ObjectName
	for {
		id, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		parts = append(parts, id)
		if p.peek().Kind == Period {
			p.advance()
			continue
		}
		break
	}
	return parts, nil
}

// parseColumnDef implements the uniform qualifier patterns of spec
// §4.B's data-type table: name, type, then zero or more options.
func (p *parser) parseColumnDef() (ast.ColumnDef, error) {
	name, err := p.parseIdent()
	if err != nil {
		return ast.ColumnDef{}, err
	}

	dt, err := p.parseDataType()
	if err != nil {
		return ast.ColumnDef{}, err
	}

	var opts []ast.ColumnOption
	for {
		opt, ok, err := p.tryParseColumnOption()
		if err != nil {
			return ast.ColumnDef{}, err
		}
		if !ok {
			break
		}
		if opt != nil {
			opts = append(opts, opt)
		}
	}

	return ast.ColumnDef{Name: name, DataType: dt, Options: opts}, nil
}

// tryParseColumnOption consumes one column-option clause, returning
// ok=false once the column-def has run out of options (i.e. the next
// token is a comma, ')', or anything else that isn't a recognised
// option keyword). Materialised options (NULL/NOT NULL/[PRIMARY] KEY/
// COMMENT) are returned non-nil; recognised-but-discarded options
// (DEFAULT, AUTO_INCREMENT, COLLATE, GENERATED ALWAYS AS (...),
// VISIBLE/INVISIBLE, CHARACTER SET, column_format, storage) return
// ok=true, opt=nil after being consumed.
func (p *parser) tryParseColumnOption() (ast.ColumnOption, bool, error) {
	t := p.peek()
	if t.Kind != Word {
		return nil, false, nil
	}
	switch strings.ToUpper(t.Value) {
	case "NOT":
		p.advance()
		if err := p.expectWord("NULL"); err != nil {
			return nil, false, err
		}
		return ast.NotNullOption{}, true, nil
	case "NULL":
		p.advance()
		return ast.NullOption{}, true, nil
	case "PRIMARY":
		p.advance()
		if err := p.expectWord("KEY"); err != nil {
			return nil, false, err
		}
		return ast.PrimaryKeyOption{}, true, nil
	case "KEY":
		p.advance()
		return ast.PrimaryKeyOption{}, true, nil
	case "UNIQUE":
		p.advance()
		p.tryWord("KEY")
		return nil, true, nil
	case "COMMENT":
		p.advance()
		s := p.advance()
		return ast.CommentOption{Text: s.Value}, true, nil
	case "DEFAULT":
		p.advance()
		p.skipOneValue()
		return nil, true, nil
	case "AUTO_INCREMENT", "VISIBLE", "INVISIBLE":
		p.advance()
		return nil, true, nil
	case "COLLATE":
		p.advance()
		p.advance()
		return nil, true, nil
	case "CHARACTER":
		p.advance()
		p.tryWord("SET")
		p.advance()
		return nil, true, nil
	case "GENERATED":
		p.advance()
		p.tryWord("ALWAYS")
		if err := p.expectWord("AS"); err != nil {
			return nil, false, err
		}
		p.skipParenGroup()
		p.tryWord("VIRTUAL")
		p.tryWord("STORED")
		return nil, true, nil
	case "COLUMN_FORMAT":
		p.advance()
		p.advance()
		return nil, true, nil
	case "STORAGE":
		p.advance()
		p.advance()
		return nil, true, nil
	default:
		return nil, false, nil
	}
}

func (p *parser) skipOneValue() {
	if p.peek().Kind == LParen {
		p.skipParenGroup()
		return
	}
	p.advance()
}

func (p *parser) skipParenGroup() {
	if p.peek().Kind != LParen {
		return
	}
	depth := 0
	for {
		t := p.advance()
		if t.Kind == LParen {
			depth++
		} else if t.Kind == RParen {
			depth--
			if depth == 0 {
				return
			}
		} else if t.Kind == EOF {
			return
		}
	}
}

// parseDataType recognises the data-type families named in spec §3,
// each following the pattern NAME [qualifiers]; anything unrecognised
// falls back to ast.Custom so the column-def still parses.
func (p *parser) parseDataType() (ast.DataType, error) {
	t := p.peek()
	if t.Kind != Word {
		return ast.Unspecified{}, nil
	}
	name := strings.ToUpper(t.Value)

	switch name {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT":
		p.advance()
		return p.parseIntegerFamily(name)
	case "DECIMAL", "NUMERIC", "DEC", "BIGDECIMAL":
		p.advance()
		info, err := p.parseExactNumberInfo()
		if err != nil {
			return nil, err
		}
		return ast.FixedPoint{Name: name, Info: info}, nil
	case "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8", "FLOAT64":
		p.advance()
		var precision *uint64
		if name == "DOUBLE" {
			p.tryWord("PRECISION")
		}
		if p.peek().Kind == LParen {
			p.advance()
			n := p.advance()
			w, err := ast.ParseDisplayWidth(n.Value)
			if err != nil {
				return nil, p.errf("bad float precision %q", n.Value)
			}
			precision = w
			if p.peek().Kind == Comma {
				p.advance()
				p.advance() // scale, discarded
			}
			if p.peek().Kind != RParen {
				return nil, p.errf("expected ')', got %q", p.peek().Value)
			}
			p.advance()
		}
		return ast.FloatingPoint{Name: name, Precision: precision}, nil
	case "CHAR", "VARCHAR", "CHARACTER", "TEXT", "NCHAR", "CLOB":
		p.advance()
		if name == "CHARACTER" {
			p.tryWord("VARYING")
			name = "CHARACTER"
		}
		length, err := p.parseOptionalCharacterLength()
		if err != nil {
			return nil, err
		}
		p.skipCharsetCollate()
		return ast.StringFamily{Name: name, Length: length}, nil
	case "BINARY", "VARBINARY", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BYTES", "BYTEA":
		p.advance()
		var length *uint64
		if p.peek().Kind == LParen {
			p.advance()
			n := p.advance()
			w, err := ast.ParseDisplayWidth(n.Value)
			if err != nil {
				return nil, p.errf("bad length %q", n.Value)
			}
			length = w
			if p.peek().Kind != RParen {
				return nil, p.errf("expected ')', got %q", p.peek().Value)
			}
			p.advance()
		}
		return ast.BinaryFamily{Name: name, Length: length}, nil
	case "DATE":
		p.advance()
		return ast.Temporal{Name: name}, nil
	case "TIME", "DATETIME", "TIMESTAMP":
		p.advance()
		var precision *uint64
		if p.peek().Kind == LParen {
			p.advance()
			n := p.advance()
			w, err := ast.ParseDisplayWidth(n.Value)
			if err != nil {
				return nil, p.errf("bad temporal precision %q", n.Value)
			}
			precision = w
			if p.peek().Kind != RParen {
				return nil, p.errf("expected ')', got %q", p.peek().Value)
			}
			p.advance()
		}
		tz := ast.TzNone
		if p.wordIs(p.peek(), "WITH") {
			p.advance()
			p.tryWord("TIME")
			p.tryWord("ZONE")
			tz = ast.TzWithTimeZone
		} else if p.wordIs(p.peek(), "WITHOUT") {
			p.advance()
			p.tryWord("TIME")
			p.tryWord("ZONE")
			tz = ast.TzWithoutTimeZone
		}
		return ast.Temporal{Name: name, Precision: precision, Tz: tz}, nil
	case "TIMESTAMPTZ", "TIMETZ":
		p.advance()
		var precision *uint64
		if p.peek().Kind == LParen {
			p.advance()
			n := p.advance()
			w, err := ast.ParseDisplayWidth(n.Value)
			if err != nil {
				return nil, p.errf("bad temporal precision %q", n.Value)
			}
			precision = w
			if p.peek().Kind != RParen {
				return nil, p.errf("expected ')', got %q", p.peek().Value)
			}
			p.advance()
		}
		return ast.Temporal{Name: name, Precision: precision, Tz: ast.TzShorthand}, nil
	case "JSON", "JSONB":
		p.advance()
		return ast.JSONType{Binary: name == "JSONB"}, nil
	case "UUID":
		p.advance()
		return ast.UUIDType{}, nil
	case "INTERVAL":
		p.advance()
		return ast.IntervalType{}, nil
	case "ENUM", "SET":
		p.advance()
		values, err := p.parseStringList()
		if err != nil {
			return nil, err
		}
		if name == "ENUM" {
			return ast.EnumType{Values: values}, nil
		}
		return ast.SetType{Values: values}, nil
	default:
		p.advance()
		var mods []string
		if p.peek().Kind == LParen {
			p.advance()
			for p.peek().Kind != RParen && p.peek().Kind != EOF {
				mods = append(mods, p.advance().Value)
				if p.peek().Kind == Comma {
					p.advance()
				}
			}
			if p.peek().Kind == RParen {
				p.advance()
			}
		}
		return ast.Custom{Name: ast.ObjectName{ast.NewIdent(t.Value)}, Modifiers: mods}, nil
	}
}

func (p *parser) parseIntegerFamily(name string) (ast.DataType, error) {
	var width *uint64
	if p.peek().Kind == LParen {
		p.advance()
		n := p.advance()
		w, err := ast.ParseDisplayWidth(n.Value)
		if err != nil {
			return nil, p.errf("bad display width %q", n.Value)
		}
		width = w
		if p.peek().Kind != RParen {
			return nil, p.errf("expected ')', got %q", p.peek().Value)
		}
		p.advance()
	}
	unsigned := false
	if p.tryWord("UNSIGNED") {
		unsigned = true
	}
	p.tryWord("ZEROFILL")
	return ast.IntegerFamily{Name: name, DisplayWidth: width, Unsigned: unsigned}, nil
}

func (p *parser) parseExactNumberInfo() (ast.ExactNumberInfo, error) {
	if p.peek().Kind != LParen {
		return ast.ExactNumberInfo{}, nil
	}
	p.advance()
	n := p.advance()
	precision, err := ast.ParseDisplayWidth(n.Value)
	if err != nil {
		return ast.ExactNumberInfo{}, p.errf("bad precision %q", n.Value)
	}
	info := ast.ExactNumberInfo{HasPrecision: true, Precision: *precision}
	if p.peek().Kind == Comma {
		p.advance()
		s := p.advance()
		scale, err := ast.ParseDisplayWidth(s.Value)
		if err != nil {
			return ast.ExactNumberInfo{}, p.errf("bad scale %q", s.Value)
		}
		info.HasScale = true
		info.Scale = *scale
	}
	if p.peek().Kind != RParen {
		return ast.ExactNumberInfo{}, p.errf("expected ')', got %q", p.peek().Value)
	}
	p.advance()
	return info, nil
}

func (p *parser) parseOptionalCharacterLength() (*ast.CharacterLength, error) {
	if p.peek().Kind != LParen {
		return nil, nil
	}
	p.advance()
	if p.wordIs(p.peek(), "MAX") {
		p.advance()
		if p.peek().Kind != RParen {
			return nil, p.errf("expected ')', got %q", p.peek().Value)
		}
		p.advance()
		return &ast.CharacterLength{Max: true}, nil
	}
	n := p.advance()
	length, err := ast.ParseDisplayWidth(n.Value)
	if err != nil {
		return nil, p.errf("bad length %q", n.Value)
	}
	unit := ast.UnitUnspecified
	if p.wordIs(p.peek(), "CHARACTERS") {
		p.advance()
		unit = ast.UnitCharacters
	} else if p.wordIs(p.peek(), "OCTETS") {
		p.advance()
		unit = ast.UnitOctets
	}
	if p.peek().Kind != RParen {
		return nil, p.errf("expected ')', got %q", p.peek().Value)
	}
	p.advance()
	return &ast.CharacterLength{Length: *length, Unit: unit}, nil
}

func (p *parser) skipCharsetCollate() {
	for {
		if p.wordIs(p.peek(), "CHARACTER") {
			p.advance()
			p.tryWord("SET")
			p.advance()
			continue
		}
		if p.wordIs(p.peek(), "COLLATE") {
			p.advance()
			p.advance()
			continue
		}
		return
	}
}

func (p *parser) parseStringList() ([]string, error) {
	if p.peek().Kind != LParen {
		return nil, p.errf("expected '(', got %q", p.peek().Value)
	}
	p.advance()
	var vals []string
	for {
		t := p.advance()
		switch t.Kind {
		case SingleQuotedString, DoubleQuotedString:
			vals = append(vals, t.Value)
		default:
			return nil, p.errf("expected string literal, got %q", t.Value)
		}
		if p.peek().Kind == Comma {
			p.advance()
			continue
		}
		break
	}
	if p.peek().Kind != RParen {
		return nil, p.errf("expected ')', got %q", p.peek().Value)
	}
	p.advance()
	return vals, nil
}
