package proxyman

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	Owner   string
	Balance int
}

func (a *account) Deposit(n int) int {
	a.Balance += n
	return a.Balance
}

func TestLazyHolder_InitializesOnFirstAccess(t *testing.T) {
	var calls atomic.Int32
	holder := NewLazyHolder(func(ctx context.Context) (*account, error) {
		calls.Add(1)
		return &account{Owner: "alice"}, nil
	})

	assert.Equal(t, Uninitialized, holder.State())
	assert.False(t, holder.IsInitialized())
	assert.Equal(t, int32(0), calls.Load())

	acc, err := holder.Instance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Owner)
	assert.True(t, holder.IsInitialized())

	again, err := holder.Instance(context.Background())
	require.NoError(t, err)
	assert.Same(t, acc, again)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLazyHolder_ConcurrentFirstAccess(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	holder := NewLazyHolder(func(ctx context.Context) (*account, error) {
		calls.Add(1)
		<-release
		return &account{}, nil
	})

	const workers = 32
	results := make([]*account, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc, err := holder.Instance(context.Background())
			assert.NoError(t, err)
			results[i] = acc
		}(i)
	}

	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, acc := range results {
		assert.Same(t, results[0], acc)
	}
}

func TestLazyHolder_FailedInitializationRetries(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	holder := NewLazyHolder(func(ctx context.Context) (*account, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return &account{Owner: "bob"}, nil
	})

	_, err := holder.Instance(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Uninitialized, holder.State())

	acc, err := holder.Instance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bob", acc.Owner)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLazyHolder_ReentrantInitialization(t *testing.T) {
	var holder *LazyHolder[*account]
	holder = NewLazyHolder(func(ctx context.Context) (*account, error) {
		_, err := holder.Instance(ctx)
		return nil, err
	})

	_, err := holder.Instance(context.Background())
	assert.ErrorIs(t, err, ErrReentrantInitialization)
	assert.Equal(t, Uninitialized, holder.State())
}

func TestLazyHolder_CrossHolderReentrantInitialization(t *testing.T) {
	var first, second *LazyHolder[*account]
	first = NewLazyHolder(func(ctx context.Context) (*account, error) {
		if _, err := second.Instance(ctx); err != nil {
			return nil, err
		}
		return &account{}, nil
	})
	second = NewLazyHolder(func(ctx context.Context) (*account, error) {
		if _, err := first.Instance(ctx); err != nil {
			return nil, err
		}
		return &account{}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := first.Instance(ctx)
	assert.ErrorIs(t, err, ErrReentrantInitialization)
	assert.NoError(t, ctx.Err())
	assert.Equal(t, Uninitialized, first.State())
	assert.Equal(t, Uninitialized, second.State())
}

func TestLazyHolder_WaiterHonorsContext(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	holder := NewLazyHolder(func(ctx context.Context) (*account, error) {
		close(started)
		<-release
		return &account{}, nil
	})

	go func() {
		_, _ = holder.Instance(context.Background())
	}()
	<-started
	assert.Equal(t, Initializing, holder.State())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := holder.Instance(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.Eventually(t, holder.IsInitialized, time.Second, time.Millisecond)
}

func TestLazyHolder_NoInitializer(t *testing.T) {
	holder := NewLazyHolder[*account](nil)
	_, err := holder.Instance(context.Background())
	assert.ErrorIs(t, err, ErrNoInitializer)
}

func TestLazyHolder_SetInitializerResets(t *testing.T) {
	holder := NewLazyHolder(func(ctx context.Context) (*account, error) {
		return &account{Owner: "first"}, nil
	})
	require.NoError(t, holder.Initialize(context.Background()))

	err := holder.SetInitializer(context.Background(), func(ctx context.Context) (*account, error) {
		return &account{Owner: "second"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, Uninitialized, holder.State())

	acc, err := holder.Instance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", acc.Owner)
}

func TestLazyHolder_SetInitializerClearsPropertyState(t *testing.T) {
	ctx := context.Background()
	holder := NewLazyHolder(func(ctx context.Context) (*account, error) {
		return &account{Owner: "stale"}, nil
	}, WithProperties("Owner", "Balance"))

	require.NoError(t, holder.UnsetProperty(ctx, "Owner"))
	require.NoError(t, holder.SetProperty(ctx, "Nickname", "old"))

	require.NoError(t, holder.SetInitializer(ctx, func(ctx context.Context) (*account, error) {
		return &account{Owner: "fresh"}, nil
	}))

	ok, err := holder.HasProperty(ctx, "Owner")
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := holder.GetProperty(ctx, "Owner")
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)

	ok, err = holder.HasProperty(ctx, "Nickname")
	require.NoError(t, err)
	assert.False(t, ok)
}

type label string

type gauge struct {
	Name  string
	Label label
	Count int
	Small int8
	Hits  uint
	Ratio float32
	Exact float64
	On    bool
	Fixed [3]int
	Tags  []string
}

func TestLazyHolder_SetPropertyConversions(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   any
		want    any
		wantErr bool
	}{
		{name: "same type", field: "Count", value: 7, want: 7},
		{name: "wider int", field: "Count", value: int64(9), want: 9},
		{name: "integral float to int", field: "Count", value: 4.0, want: 4},
		{name: "string to named string", field: "Label", value: "hot", want: label("hot")},
		{name: "uint from int", field: "Hits", value: 3, want: uint(3)},
		{name: "int to float", field: "Exact", value: 12, want: float64(12)},
		{name: "float64 to float32", field: "Ratio", value: 0.5, want: float32(0.5)},
		{name: "slice", field: "Tags", value: []string{"a"}, want: []string{"a"}},
		{name: "array", field: "Fixed", value: [3]int{1, 2, 3}, want: [3]int{1, 2, 3}},
		{name: "nil zeroes", field: "Tags", value: nil, want: []string(nil)},
		{name: "int to string", field: "Name", value: 65, wantErr: true},
		{name: "fractional float to int", field: "Count", value: 1.9, wantErr: true},
		{name: "int8 overflow", field: "Small", value: 300, wantErr: true},
		{name: "negative to uint", field: "Hits", value: -1, wantErr: true},
		{name: "float32 overflow", field: "Ratio", value: 1e300, wantErr: true},
		{name: "inexact float32", field: "Ratio", value: 16777217, wantErr: true},
		{name: "huge float to int", field: "Count", value: 1e30, wantErr: true},
		{name: "short slice to array", field: "Fixed", value: []int{1}, wantErr: true},
		{name: "matching slice to array", field: "Fixed", value: []int{1, 2, 3}, wantErr: true},
		{name: "string to bool", field: "On", value: "true", wantErr: true},
		{name: "bool to int", field: "Count", value: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			holder := NewLazyHolder(func(ctx context.Context) (*gauge, error) {
				return &gauge{Name: "g", Count: 1}, nil
			}, WithProperties("Name", "Label", "Count", "Small", "Hits", "Ratio", "Exact", "On", "Fixed", "Tags"))

			var err error
			require.NotPanics(t, func() { err = holder.SetProperty(ctx, tt.field, tt.value) })
			if tt.wantErr {
				require.Error(t, err)
				g, _ := holder.Instance(ctx)
				assert.Equal(t, "g", g.Name)
				assert.Equal(t, 1, g.Count)
				return
			}
			require.NoError(t, err)
			got, err := holder.GetProperty(ctx, tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLazyHolder_Properties(t *testing.T) {
	ctx := context.Background()
	holder := NewLazyHolder(func(ctx context.Context) (*account, error) {
		return &account{Owner: "carol", Balance: 10}, nil
	}, WithProperties("Owner", "Balance"))

	ok, err := holder.HasProperty(ctx, "Owner")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, holder.IsInitialized())

	v, err := holder.GetProperty(ctx, "Balance")
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	require.NoError(t, holder.SetProperty(ctx, "Balance", int64(25)))
	acc, _ := holder.Instance(ctx)
	assert.Equal(t, 25, acc.Balance)

	require.NoError(t, holder.SetProperty(ctx, "Nickname", "caz"))
	v, err = holder.GetProperty(ctx, "Nickname")
	require.NoError(t, err)
	assert.Equal(t, "caz", v)

	err = holder.SetProperty(ctx, "Owner", 3.5)
	assert.Error(t, err)

	_, err = holder.GetProperty(ctx, "Missing")
	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestLazyHolder_UnsetDeclaredProperty(t *testing.T) {
	ctx := context.Background()
	holder := NewLazyHolder(func(ctx context.Context) (*account, error) {
		return &account{Owner: "dave", Balance: 5}, nil
	}, WithProperties("Owner", "Balance"))

	require.NoError(t, holder.UnsetProperty(ctx, "Balance"))

	ok, err := holder.HasProperty(ctx, "Balance")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = holder.GetProperty(ctx, "Balance")
	assert.ErrorIs(t, err, ErrPropertyUnset)

	acc, _ := holder.Instance(ctx)
	assert.Equal(t, 0, acc.Balance)

	require.NoError(t, holder.SetProperty(ctx, "Balance", 7))
	ok, err = holder.HasProperty(ctx, "Balance")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLazyHolder_UnsetDynamicProperty(t *testing.T) {
	ctx := context.Background()
	holder := NewLazyHolder(func(ctx context.Context) (*account, error) {
		return &account{}, nil
	}, WithProperties("Owner"))

	require.NoError(t, holder.SetProperty(ctx, "tag", "vip"))
	require.NoError(t, holder.UnsetProperty(ctx, "tag"))

	ok, err := holder.HasProperty(ctx, "tag")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = holder.GetProperty(ctx, "tag")
	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestLazyHolder_PropertyAccessPropagatesInitError(t *testing.T) {
	boom := errors.New("boom")
	holder := NewLazyHolder(func(ctx context.Context) (*account, error) {
		return nil, boom
	}, WithProperties("Owner"))

	_, err := holder.GetProperty(context.Background(), "Owner")
	assert.ErrorIs(t, err, boom)
	_, err = holder.HasProperty(context.Background(), "Owner")
	assert.ErrorIs(t, err, boom)
}

func TestLazyState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "initializing", Initializing.String())
	assert.Equal(t, "initialized", Initialized.String())
	assert.Equal(t, "unknown", LazyState(9).String())
}
