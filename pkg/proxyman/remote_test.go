package proxyman

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAdapter struct {
	service string
	method  string
	args    Arguments
	result  any
	err     error
}

func (a *recordingAdapter) Call(ctx context.Context, service, method string, args Arguments) (any, error) {
	a.service, a.method, a.args = service, method, args
	return a.result, a.err
}

func TestNewRemoteObject(t *testing.T) {
	_, err := NewRemoteObject("svc", nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewRemoteObject("", &recordingAdapter{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	adapter := &recordingAdapter{}
	remote, err := NewRemoteObject("svc", adapter)
	require.NoError(t, err)
	assert.Equal(t, "svc", remote.Service())
	assert.Same(t, adapter, remote.Adapter())
}

func TestRemoteObject_CallForwards(t *testing.T) {
	adapter := &recordingAdapter{result: "baz"}
	remote, err := NewRemoteObject("foo", adapter)
	require.NoError(t, err)

	result, err := remote.Call(context.Background(), "bar", Arguments{{Name: "tab", Value: "taz"}})
	require.NoError(t, err)
	assert.Equal(t, "baz", result)
	assert.Equal(t, "foo", adapter.service)
	assert.Equal(t, "bar", adapter.method)
	assert.Equal(t, map[string]any{"tab": "taz"}, adapter.args.Map())
}

func TestRemoteObject_ErrorsPassThrough(t *testing.T) {
	boom := errors.New("connection refused")
	remote, err := NewRemoteObject("foo", &recordingAdapter{err: boom})
	require.NoError(t, err)

	_, err = remote.Call(context.Background(), "bar", nil)
	assert.Same(t, boom, err)
}

func TestRemoteObject_Properties(t *testing.T) {
	adapter := &recordingAdapter{result: json.RawMessage(`true`)}
	remote, err := NewRemoteObject("foo", adapter)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := remote.HasProperty(ctx, "Name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, MethodIsset, adapter.method)

	require.NoError(t, remote.SetProperty(ctx, "Name", "x"))
	assert.Equal(t, MethodSet, adapter.method)
	v, _ := adapter.args.Get("value")
	assert.Equal(t, "x", v)

	require.NoError(t, remote.UnsetProperty(ctx, "Name"))
	assert.Equal(t, MethodUnset, adapter.method)

	_, err = remote.GetProperty(ctx, "Name")
	require.NoError(t, err)
	assert.Equal(t, MethodGet, adapter.method)
}

func TestDecode(t *testing.T) {
	n, err := Decode[int](json.RawMessage(`42`))
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	s, err := Decode[string]("already typed")
	require.NoError(t, err)
	assert.Equal(t, "already typed", s)

	acc, err := Decode[account](map[string]any{"Owner": "gail", "Balance": 3})
	require.NoError(t, err)
	assert.Equal(t, account{Owner: "gail", Balance: 3}, acc)

	zero, err := Decode[int](nil)
	require.NoError(t, err)
	assert.Equal(t, 0, zero)

	_, err = Decode[int](json.RawMessage(`"nope"`))
	assert.Error(t, err)
}

func TestDecodeAt(t *testing.T) {
	raw := json.RawMessage(`["x", 7]`)

	s, err := DecodeAt[string](raw, 0)
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	n, err := DecodeAt[int](raw, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = DecodeAt[int](raw, 2)
	assert.Error(t, err)

	n, err = DecodeAt[int]([]any{"a", 9}, 1)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
}
