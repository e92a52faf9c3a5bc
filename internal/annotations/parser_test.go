package annotations

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/pkg/proxyman"
)

func TestIsAnnotation(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"//proxy::lazy", true},
		{"// proxy::remote -Service=users", true},
		{"  //  proxy::interceptor", true},
		{"// just a comment", false},
		{"/* proxy::lazy */", false},
		{"//proxy:lazy", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAnnotation(tt.input))
		})
	}
}

func TestParseAnnotation_Kinds(t *testing.T) {
	p := NewParser()
	loc := SourceLocation{File: "svc.go", Line: 4, Column: 1}

	tests := []struct {
		input string
		kind  proxyman.Kind
	}{
		{"//proxy::lazy", proxyman.KindLazy},
		{"// proxy::interceptor", proxyman.KindInterceptor},
		{"//proxy::remote", proxyman.KindRemote},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			parsed, err := p.ParseAnnotation(tt.input, loc)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, parsed.Kind)
			assert.Empty(t, parsed.Parameters)
			assert.Equal(t, loc, parsed.Location)
		})
	}
}

func TestParseAnnotation_Parameters(t *testing.T) {
	p := NewParser()

	parsed, err := p.ParseAnnotation(`//proxy::lazy -Region=eu.west -Retries=3 -Ratio=0.5 -Offset=-2 -Label="two words" -Strict -Cached=false`, SourceLocation{})
	require.NoError(t, err)

	assert.Equal(t, proxyman.Parameters{
		"Region":  "eu.west",
		"Retries": int64(3),
		"Ratio":   0.5,
		"Offset":  int64(-2),
		"Label":   "two words",
		"Strict":  true,
		"Cached":  false,
	}, parsed.Parameters)

	assert.Equal(t, "eu.west", parsed.GetString("Region"))
	assert.Equal(t, 3, parsed.GetInt("Retries"))
	assert.True(t, parsed.GetBool("Strict"))
	assert.False(t, parsed.GetBool("Cached", true))
	assert.Equal(t, "fallback", parsed.GetString("Missing", "fallback"))
	assert.False(t, parsed.HasParameter("Missing"))
}

func TestParseAnnotation_ReservedOptions(t *testing.T) {
	p := NewParser()

	parsed, err := p.ParseAnnotation(`//proxy::remote -Service=billing.Invoices -Adapter=direct -Name=InvoiceClient -Timeout=30`, SourceLocation{})
	require.NoError(t, err)

	assert.Equal(t, "billing.Invoices", parsed.Option(KeyService))
	assert.Equal(t, "direct", parsed.Option(KeyAdapter))
	assert.Equal(t, "InvoiceClient", parsed.Option(KeyName))
	assert.Equal(t, "jsonrpc", parsed.Option("Other", "jsonrpc"))

	// reserved keys never contribute to the digest parameters
	assert.Equal(t, proxyman.Parameters{"Timeout": int64(30)}, parsed.Parameters)
}

func TestParseAnnotation_Errors(t *testing.T) {
	p := NewParser()
	loc := SourceLocation{File: "svc.go", Line: 7, Column: 1}

	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{"unknown kind", "//proxy::eager", "unknown proxy kind 'eager'"},
		{"missing kind", "//proxy::", "malformed annotation"},
		{"duplicate key", "//proxy::lazy -A=1 -A=2", "duplicate parameter 'A'"},
		{"dangling equals", "//proxy::lazy -A=", "malformed annotation"},
		{"stray token", "//proxy::lazy extra", "malformed annotation"},
		{"service on lazy", "//proxy::lazy -Service=users", "not supported"},
		{"bad adapter", "//proxy::remote -Adapter=grpc", "invalid value for 'Adapter'"},
		{"bad name", `//proxy::interceptor -Name="not valid"`, "invalid value for 'Name'"},
		{"non-string option", "//proxy::remote -Adapter=3", "requires a string value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseAnnotation(tt.input, loc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.ErrorIs(t, err, proxyman.ErrInvalidConfiguration)

			var pe errors.ProxyError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, 7, pe.Location().Line)
		})
	}
}

func TestParseAnnotation_ErrorColumn(t *testing.T) {
	p := NewParser()

	_, err := p.ParseAnnotation("//proxy::lazy -A=1 -A=2", SourceLocation{File: "svc.go", Line: 3, Column: 5})
	require.Error(t, err)

	var pe errors.ProxyError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, errors.SyntaxErrorCode, pe.ErrorCode())
	// the duplicate starts at offset 19 of the comment
	assert.Equal(t, 5+19, pe.Location().Column)
}

const annotatedSource = `package sample

// Store keeps things.
//
//proxy::lazy
//proxy::interceptor -Name=AuditedStore
type Store struct{}

type (
	// Remote calls a service.
	//proxy::remote -Service=stores
	Remote interface{ Get() string }

	Plain struct{}
)

//proxy::lazy
func NotAType() {}
`

func TestParseAST(t *testing.T) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "sample.go", annotatedSource, parser.ParseComments)
	require.NoError(t, err)

	found, err := NewParser().ParseAST(fset, file)
	require.NoError(t, err)
	require.Len(t, found, 3)

	assert.Equal(t, "Store", found[0].TypeName)
	assert.Equal(t, proxyman.KindLazy, found[0].Annotation.Kind)
	assert.Equal(t, 5, found[0].Annotation.Location.Line)

	assert.Equal(t, "Store", found[1].TypeName)
	assert.Equal(t, proxyman.KindInterceptor, found[1].Annotation.Kind)
	assert.Equal(t, "AuditedStore", found[1].Annotation.Option(KeyName))

	assert.Equal(t, "Remote", found[2].TypeName)
	assert.Equal(t, "stores", found[2].Annotation.Option(KeyService))
}

func TestParseAST_CollectsAllErrors(t *testing.T) {
	src := `package sample

//proxy::eager
type A struct{}

//proxy::lazy -X=1 -X=2
type B struct{}

//proxy::lazy
type C struct{}
`
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "bad.go", src, parser.ParseComments)
	require.NoError(t, err)

	found, err := NewParser().ParseAST(fset, file)
	require.Error(t, err)

	var multi *errors.MultipleErrors
	require.True(t, errors.As(err, &multi))
	require.Len(t, multi.Errors, 2)
	assert.Equal(t, "bad.go", multi.Errors[0].Location().File)

	require.Len(t, found, 1)
	assert.Equal(t, "C", found[0].TypeName)
}

func TestParseFile_Cached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.go")
	require.NoError(t, os.WriteFile(path, []byte(annotatedSource), 0644))

	p := NewParser()
	first, err := p.ParseFile(path)
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := p.ParseFile(path)
	require.NoError(t, err)
	assert.Same(t, first[0], second[0])

	_, err = p.ParseFile(filepath.Join(dir, "missing.go"))
	require.Error(t, err)
	assert.Equal(t, errors.FileSystemErrorCode, errors.CodeOf(err))
}
