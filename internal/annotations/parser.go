package annotations

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/internal/utils"
	"github.com/toyz/proxyman/pkg/proxyman"
)

// annotationAST is the participle grammar for a single annotation line:
//
//	//proxy::<kind> (-Key(=Value)?)*
type annotationAST struct {
	Kind   string      `parser:"Comment Marker @Ident"`
	Params []*paramAST `parser:"@@*"`
}

type paramAST struct {
	Pos   lexer.Position
	Key   string    `parser:"Dash @Ident"`
	Value *valueAST `parser:"( Equals @@ )?"`
}

type valueAST struct {
	String *string  `parser:"  @String"`
	Float  *float64 `parser:"| @Float"`
	Int    *int64   `parser:"| @Int"`
	Ident  *string  `parser:"| @Ident"`
}

// value converts the parsed literal into a scalar parameter value. A bare
// flag has no value and means true.
func (v *valueAST) value() any {
	switch {
	case v == nil:
		return true
	case v.String != nil:
		return *v.String
	case v.Float != nil:
		return *v.Float
	case v.Int != nil:
		return *v.Int
	case v.Ident != nil:
		switch *v.Ident {
		case "true":
			return true
		case "false":
			return false
		}
		return *v.Ident
	}
	return nil
}

var annotationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//`},
	{Name: "Marker", Pattern: `proxy::`},
	{Name: "String", Pattern: `"(\\"|[^"])*"`},
	{Name: "Float", Pattern: `[-+]?\d+\.\d+`},
	{Name: "Int", Pattern: `[-+]?\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z_]\w*(\.[a-zA-Z_]\w*)*`},
	{Name: "Dash", Pattern: `-`},
	{Name: "Equals", Pattern: `=`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// Parser turns //proxy:: comments into ParsedAnnotation values
type Parser struct {
	grammar *participle.Parser[annotationAST]
	reader  *utils.FileReader
	cache   *utils.Cache[string, []*TypeAnnotation]
}

// NewParser creates a parser. Parsed files are cached until they change on disk.
func NewParser() *Parser {
	return &Parser{
		grammar: participle.MustBuild[annotationAST](
			participle.Lexer(annotationLexer),
			participle.Elide("Whitespace"),
			participle.Unquote("String"),
		),
		reader: utils.NewFileReader(),
		cache:  utils.NewCache[string, []*TypeAnnotation](),
	}
}

// IsAnnotation reports whether a comment line is a proxy annotation
func IsAnnotation(comment string) bool {
	text := strings.TrimSpace(comment)
	if !strings.HasPrefix(text, "//") {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(text[2:]), Prefix)
}

// ParseAnnotation parses a single annotation comment
func (p *Parser) ParseAnnotation(comment string, location SourceLocation) (*ParsedAnnotation, error) {
	raw := strings.TrimSpace(comment)

	tree, err := p.grammar.ParseString(location.File, raw)
	if err != nil {
		return nil, p.syntaxError(err, raw, location)
	}

	kind, err := proxyman.ParseKind(tree.Kind)
	if err != nil {
		return nil, errors.SyntaxError(fmt.Sprintf("unknown proxy kind '%s'", tree.Kind), location, err).
			WithSuggestions(kindSuggestions()...)
	}

	parsed := &ParsedAnnotation{
		Kind:       kind,
		Parameters: make(proxyman.Parameters),
		Options:    make(map[string]string),
		Location:   location,
		Raw:        raw,
	}

	seen := make(map[string]bool, len(tree.Params))
	for _, param := range tree.Params {
		if seen[param.Key] {
			return nil, errors.SyntaxError(fmt.Sprintf("duplicate parameter '%s'", param.Key), offset(location, param.Pos), nil)
		}
		seen[param.Key] = true

		value := param.Value.value()
		if _, reserved := ReservedParameters[param.Key]; reserved {
			str, ok := value.(string)
			if !ok {
				return nil, errors.SyntaxError(fmt.Sprintf("parameter '%s' requires a string value", param.Key), offset(location, param.Pos), nil).
					WithSuggestion(ReservedParameters[param.Key].Description)
			}
			parsed.Options[param.Key] = str
			continue
		}
		parsed.Parameters[param.Key] = value
	}

	if err := ValidateAnnotation(parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

// ParseComments parses every annotation in a comment group. Non-annotation
// lines are ignored; every malformed annotation is reported.
func (p *Parser) ParseComments(fset *token.FileSet, group *ast.CommentGroup) ([]*ParsedAnnotation, error) {
	if group == nil {
		return nil, nil
	}

	var result []*ParsedAnnotation
	errs := errors.NewMultipleErrors()
	for _, c := range group.List {
		if !IsAnnotation(c.Text) {
			continue
		}
		pos := fset.Position(c.Slash)
		loc := SourceLocation{File: pos.Filename, Line: pos.Line, Column: pos.Column}

		parsed, err := p.ParseAnnotation(c.Text, loc)
		if err != nil {
			errs.Add(asProxyError(err))
			continue
		}
		result = append(result, parsed)
	}
	return result, errs.ErrOrNil()
}

// ParseAST collects the annotations attached to type declarations in file
func (p *Parser) ParseAST(fset *token.FileSet, file *ast.File) ([]*TypeAnnotation, error) {
	var result []*TypeAnnotation
	errs := errors.NewMultipleErrors()

	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			doc := ts.Doc
			if doc == nil && len(gen.Specs) == 1 {
				doc = gen.Doc
			}

			parsed, err := p.ParseComments(fset, doc)
			if multi, ok := err.(*errors.MultipleErrors); ok {
				for _, e := range multi.Errors {
					errs.Add(e)
				}
			}
			for _, a := range parsed {
				result = append(result, &TypeAnnotation{TypeName: ts.Name.Name, Annotation: a})
			}
		}
	}
	return result, errs.ErrOrNil()
}

// ParseFile parses the annotations of a Go source file
func (p *Parser) ParseFile(filePath string) ([]*TypeAnnotation, error) {
	if cached, ok := p.cache.GetWithFileValidation(filePath, filePath); ok {
		return cached, nil
	}

	file, err := p.reader.ParseGoFile(filePath)
	if err != nil {
		return nil, errors.WrapFileSystemError("parse", filePath, err)
	}

	result, err := p.ParseAST(p.reader.GetFileSet(), file)
	if err != nil {
		return nil, err
	}
	_ = p.cache.SetWithFileInfo(filePath, result, filePath)
	return result, nil
}

func (p *Parser) syntaxError(err error, raw string, location SourceLocation) error {
	loc := location
	var perr participle.Error
	if errors.As(err, &perr) {
		loc = offset(location, perr.Position())
		err = fmt.Errorf("%w: %s", proxyman.ErrInvalidConfiguration, perr.Message())
	} else {
		err = fmt.Errorf("%w: %w", proxyman.ErrInvalidConfiguration, err)
	}
	return errors.SyntaxError(fmt.Sprintf("malformed annotation '%s'", raw), loc, err).
		WithSuggestion("Annotations look like //proxy::<kind> -Key=Value -Flag").
		WithSuggestions(kindSuggestions()...)
}

// offset shifts a comment location by a position inside the comment text
func offset(location SourceLocation, pos lexer.Position) SourceLocation {
	if pos.Column > 0 && location.Column > 0 {
		location.Column += pos.Column - 1
	}
	return location
}

func kindSuggestions() []string {
	suggestions := make([]string, 0, len(Examples))
	for _, kind := range proxyman.Kinds() {
		suggestions = append(suggestions, fmt.Sprintf("%s: %s", kind, Examples[kind]))
	}
	return suggestions
}

func asProxyError(err error) errors.ProxyError {
	if pe, ok := err.(errors.ProxyError); ok {
		return pe
	}
	return errors.Wrap(errors.SyntaxErrorCode, "annotation error", err)
}
