package proxyman

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInflector(t *testing.T) *Inflector {
	t.Helper()
	inflector, err := NewInflector("ProxyNS")
	require.NoError(t, err)
	return inflector
}

func TestNewInflector(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		want      string
		wantErr   bool
	}{
		{name: "simple", namespace: "ProxyNS", want: "ProxyNS"},
		{name: "nested", namespace: "app.proxies", want: "app.proxies"},
		{name: "leading separator", namespace: ".app", want: "app"},
		{name: "empty", namespace: "", wantErr: true},
		{name: "only separators", namespace: "..", wantErr: true},
		{name: "bad segment", namespace: "app.1x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inflector, err := NewInflector(tt.namespace)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, inflector.Namespace())
		})
	}
}

func TestInflector_ProxyNameLayout(t *testing.T) {
	inflector := newTestInflector(t)

	name, err := inflector.ProxyName("Foo.Bar", nil)
	require.NoError(t, err)

	segments := strings.Split(name, Separator)
	require.Len(t, segments, 5)
	assert.Equal(t, "ProxyNS", segments[0])
	assert.Equal(t, ProxyMarker, segments[1])
	assert.Equal(t, "Foo", segments[2])
	assert.True(t, strings.HasPrefix(segments[3], DigestPrefix))
	assert.Len(t, segments[3], len(DigestPrefix)+32)
	assert.Equal(t, "Bar", segments[4])

	for _, s := range segments {
		assert.True(t, isIdentifier(s), "segment %q is not an identifier", s)
	}
}

func TestInflector_RoundTrip(t *testing.T) {
	inflector := newTestInflector(t)

	for _, typeName := range []string{"Foo", "Foo.Bar", "a.b.c.Service", "ProxyNS.Thing"} {
		t.Run(typeName, func(t *testing.T) {
			name, err := inflector.ProxyName(typeName, Parameters{"tab": "baz"})
			require.NoError(t, err)
			assert.True(t, inflector.IsProxyName(name))
			assert.Equal(t, typeName, inflector.OriginalName(name))
		})
	}
}

func TestInflector_Idempotent(t *testing.T) {
	inflector := newTestInflector(t)
	params := Parameters{"tab": "baz"}

	first, err := inflector.ProxyName("Foo.Bar", params)
	require.NoError(t, err)
	second, err := inflector.ProxyName(first, params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestInflector_ParametersDisambiguate(t *testing.T) {
	inflector := newTestInflector(t)

	a, err := inflector.ProxyName("Foo.Bar", Parameters{"tab": "baz"})
	require.NoError(t, err)
	b, err := inflector.ProxyName("Foo.Bar", Parameters{"baz": "tab"})
	require.NoError(t, err)
	empty, err := inflector.ProxyName("Foo.Bar", nil)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, empty)
	assert.NotEqual(t, b, empty)
}

func TestInflector_LeadingSeparatorIgnored(t *testing.T) {
	inflector := newTestInflector(t)

	plain, err := inflector.ProxyName("Foo.Bar", nil)
	require.NoError(t, err)
	leading, err := inflector.ProxyName(".Foo.Bar", nil)
	require.NoError(t, err)

	assert.Equal(t, plain, leading)
	assert.Equal(t, "Foo.Bar", inflector.OriginalName(".Foo.Bar"))
}

func TestInflector_ControlBytesInParameters(t *testing.T) {
	inflector := newTestInflector(t)

	nullValue, err := inflector.ProxyName("Foo", Parameters{"key": nil})
	require.NoError(t, err)
	zeroByte, err := inflector.ProxyName("Foo", Parameters{"key": "\x00"})
	require.NoError(t, err)

	assert.NotEqual(t, nullValue, zeroByte)
	assert.Equal(t, "Foo", inflector.OriginalName(zeroByte))
}

func TestInflector_NotAProxyName(t *testing.T) {
	inflector := newTestInflector(t)

	assert.False(t, inflector.IsProxyName("Foo.Bar"))
	assert.False(t, inflector.IsProxyName("ProxyNS.__PM__.Bar"))
	assert.False(t, inflector.IsProxyName("ProxyNS.__PM__.Generatedxyz.Bar"))
	assert.Equal(t, "Foo.Bar", inflector.OriginalName("Foo.Bar"))
}

func TestInflector_InvalidTypeName(t *testing.T) {
	inflector := newTestInflector(t)

	for _, typeName := range []string{"", "Foo..Bar", "Foo.9Bar", "Foo-Bar"} {
		_, err := inflector.ProxyName(typeName, nil)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "type name %q", typeName)
	}
}

func TestTypeNameFor(t *testing.T) {
	tests := []struct {
		pkgPath  string
		typeName string
		want     string
	}{
		{pkgPath: "github.com/acme/users", typeName: "Service", want: "github.com.acme.users.Service"},
		{pkgPath: "example.com/my-app/v2", typeName: "Repo", want: "example.com.my_app.v2.Repo"},
		{pkgPath: "main", typeName: "Thing", want: "main.Thing"},
		{pkgPath: "", typeName: "Thing", want: "Thing"},
		{pkgPath: "gopkg.in/yaml.v3", typeName: "Node", want: "gopkg.in.yaml.v3.Node"},
		{pkgPath: "example.com/3d", typeName: "Mesh", want: "example.com._3d.Mesh"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := TypeNameFor(tt.pkgPath, tt.typeName)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, ValidateTypeName(got))
		})
	}
}
