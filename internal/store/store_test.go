package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagokokada/tmplstore/internal/git/backend"
)

func notFound(ref string) error {
	return fmt.Errorf("resolve %s: %w", ref, backend.ErrNotFound)
}

func TestInit_ConcurrentCallersInitializeOnce(t *testing.T) {
	t.Parallel()

	var created atomic.Bool
	var initCalls atomic.Int32
	release := make(chan struct{})
	fb := &fakeBackend{
		existsFunc: func() (bool, error) { return created.Load(), nil },
		initFunc: func(defaultBranch string) error {
			initCalls.Add(1)
			<-release
			created.Store(true)
			return nil
		},
	}
	s := New(fb, WithDefaultBranch("trunk"))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Init(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, initCalls.Load())

	require.NoError(t, s.Init(context.Background()))
	assert.EqualValues(t, 1, initCalls.Load())
}

func TestInit_PassesDefaultBranch(t *testing.T) {
	t.Parallel()

	var got string
	fb := &fakeBackend{
		existsFunc: func() (bool, error) { return false, nil },
		initFunc: func(defaultBranch string) error {
			got = defaultBranch
			return nil
		},
	}
	require.NoError(t, New(fb, WithDefaultBranch("trunk")).Init(context.Background()))
	assert.Equal(t, "trunk", got)
}

func TestInit_FailureIsRetried(t *testing.T) {
	t.Parallel()

	var calls int
	fb := &fakeBackend{
		existsFunc: func() (bool, error) { return false, nil },
		initFunc: func(string) error {
			calls++
			if calls == 1 {
				return errors.New("read-only file system")
			}
			return nil
		},
	}
	s := New(fb)
	require.Error(t, s.Init(context.Background()))
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestInit_SkipsExistingRepository(t *testing.T) {
	t.Parallel()

	s := New(newReadyFake())
	require.NoError(t, s.Init(context.Background()))
}

func TestIsEmpty(t *testing.T) {
	t.Parallel()

	fb := newReadyFake()
	fb.resolveRefFunc = func(ref string) (string, error) { return "", notFound(ref) }
	empty, err := New(fb).IsEmpty(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, empty)

	fb = newReadyFake()
	fb.resolveRefFunc = func(ref string) (string, error) { return "c1", nil }
	empty, err = New(fb).IsEmpty(context.Background(), "main")
	require.NoError(t, err)
	assert.False(t, empty)

	boom := errors.New("corrupt object")
	fb = newReadyFake()
	fb.resolveRefFunc = func(string) (string, error) { return "", boom }
	_, err = New(fb).IsEmpty(context.Background(), "main")
	require.ErrorIs(t, err, boom)
}

func TestBranches(t *testing.T) {
	t.Parallel()

	fb := newReadyFake()
	fb.listBranchesFunc = func() ([]string, error) { return nil, nil }
	got, err := New(fb, WithDefaultBranch("trunk")).Branches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"trunk"}, got)

	fb.listBranchesFunc = func() ([]string, error) { return []string{"feature", "main"}, nil }
	got, err = New(fb).Branches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"feature", "main"}, got)
}

func TestFiles_DefaultsToDefaultBranchAndCaches(t *testing.T) {
	t.Parallel()

	var resolved []string
	var listCalls int
	fb := newReadyFake()
	fb.resolveRefFunc = func(ref string) (string, error) {
		resolved = append(resolved, ref)
		return "c1", nil
	}
	fb.listBlobPathsFunc = func(string) ([]string, error) {
		listCalls++
		return []string{"a/b.json"}, nil
	}
	s := New(fb, WithDefaultBranch("trunk"))

	first, err := s.Files(context.Background(), "")
	require.NoError(t, err)
	first[0].Name = "mutated"
	second, err := s.Files(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 1, listCalls)
	assert.Equal(t, "a", second[0].Name)
	assert.Equal(t, "trunk", resolved[0])
}

func TestFiles_ParentSegmentsAreNotShared(t *testing.T) {
	t.Parallel()

	fb := newReadyFake()
	fb.resolveRefFunc = func(string) (string, error) { return "c1", nil }
	fb.listBlobPathsFunc = func(string) ([]string, error) {
		return []string{"a/b.json"}, nil
	}
	s := New(fb)

	filled, err := s.Files(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, filled, 2)
	filled[1].Parent[0] = "filled"

	hit, err := s.Files(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, hit[1].Parent)
	hit[1].Parent[0] = "hit"

	again, err := s.Files(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "a/b.json", again[1].Path())
}

func TestFiles_CacheDisabled(t *testing.T) {
	t.Parallel()

	var listCalls int
	fb := newReadyFake()
	fb.resolveRefFunc = func(string) (string, error) { return "c1", nil }
	fb.listBlobPathsFunc = func(string) ([]string, error) {
		listCalls++
		return []string{"x"}, nil
	}
	s := New(fb, WithCacheSize(0))
	for range 3 {
		_, err := s.Files(context.Background(), "main")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, listCalls)
}

func TestFiles_EmptyRepository(t *testing.T) {
	t.Parallel()

	fb := newReadyFake()
	fb.resolveRefFunc = func(ref string) (string, error) { return "", notFound(ref) }
	got, err := New(fb).Files(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []Entry{}, got)
}

func TestGetFile(t *testing.T) {
	t.Parallel()

	var reads int
	fb := newReadyFake()
	fb.resolveRefFunc = func(ref string) (string, error) {
		if ref == "gone" {
			return "", notFound(ref)
		}
		return "c1", nil
	}
	fb.readBlobFunc = func(commitID string, path string) ([]byte, error) {
		reads++
		if path == "f.json" {
			return []byte("{}"), nil
		}
		return nil, fmt.Errorf("%s: %w", path, backend.ErrNotFound)
	}
	s := New(fb)
	ctx := context.Background()

	data, err := s.GetFile(ctx, "", "f.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
	data[0] = 'X'

	data, err = s.GetFile(ctx, "main", "./f.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
	assert.Equal(t, 1, reads)

	_, err = s.GetFile(ctx, "", "missing.json")
	require.ErrorIs(t, err, ErrNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	_, err = s.GetFile(ctx, "gone", "f.json")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetFile(ctx, "", "../f.json")
	require.ErrorIs(t, err, ErrPathEscape)
}

func TestLog(t *testing.T) {
	t.Parallel()

	fb := newReadyFake()
	fb.resolveRefFunc = func(string) (string, error) { return "c2", nil }
	fb.commitLogFunc = func(ref string, opts backend.LogOptions) ([]backend.Commit, error) {
		assert.Equal(t, "c2", ref)
		return []backend.Commit{{ID: "c2"}, {ID: "c1"}}, nil
	}
	s := New(fb)

	commits, err := s.Log(context.Background(), LogOptions{Path: "b/x.json"})
	require.NoError(t, err)
	assert.Len(t, commits, 2)
	require.NotNil(t, fb.lastLogOptions)
	assert.Equal(t, backend.LogOptions{Path: "b/x.json", FollowRenames: true}, *fb.lastLogOptions)

	_, err = s.Log(context.Background(), LogOptions{})
	require.NoError(t, err)
	assert.Equal(t, backend.LogOptions{}, *fb.lastLogOptions)

	_, err = s.Log(context.Background(), LogOptions{Path: "../../etc/passwd"})
	require.ErrorIs(t, err, ErrPathEscape)
}

func TestLog_EmptyRepository(t *testing.T) {
	t.Parallel()

	fb := newReadyFake()
	fb.resolveRefFunc = func(ref string) (string, error) { return "", notFound(ref) }
	commits, err := New(fb).Log(context.Background(), LogOptions{Path: "x"})
	require.NoError(t, err)
	assert.Equal(t, []backend.Commit{}, commits)
}

func TestMatchFile(t *testing.T) {
	t.Parallel()

	paths := []string{"prompts/greeting.json", "greeting.md", "other/farewell.json", "deep/a/greeting.json"}
	tests := []struct {
		query  string
		want   string
		wantOK bool
	}{
		{query: "greeting.md", want: "greeting.md", wantOK: true},
		{query: "deep/a/greeting.json", want: "deep/a/greeting.json", wantOK: true},
		{query: "greeting.json", want: "prompts/greeting.json", wantOK: true},
		{query: "farewell", want: "other/farewell.json", wantOK: true},
		{query: "farewell.txt", want: "other/farewell.json", wantOK: true},
		{query: "missing", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			got, ok := matchFile(paths, tt.query)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindFile(t *testing.T) {
	t.Parallel()

	fb := newReadyFake()
	fb.resolveRefFunc = func(string) (string, error) { return "c1", nil }
	fb.listBlobPathsFunc = func(string) ([]string, error) {
		return []string{"a/.gitkeep", "a/greeting.json"}, nil
	}
	s := New(fb)
	ctx := context.Background()

	got, err := s.FindFile(ctx, "greeting", FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a/greeting.json", got)

	got, err = s.FindFile(ctx, ".gitkeep", FindOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.FindFile(ctx, "nope", FindOptions{RejectIfNotFound: true})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBranchProtection(t *testing.T) {
	t.Parallel()

	var renamed, deleted []string
	fb := newReadyFake()
	fb.renameBranchFunc = func(from string, to string) error {
		renamed = append(renamed, from+"->"+to)
		return nil
	}
	fb.deleteBranchFunc = func(name string) error {
		deleted = append(deleted, name)
		return nil
	}
	ctx := context.Background()

	protected := New(fb, WithDefaultBranchProtection(true))
	require.ErrorIs(t, protected.RenameBranch(ctx, "main", "other"), ErrProtectedBranch)
	require.ErrorIs(t, protected.DeleteBranch(ctx, "main"), ErrProtectedBranch)
	require.NoError(t, protected.RenameBranch(ctx, "feature", "feature-2"))
	require.NoError(t, protected.DeleteBranch(ctx, "feature-2"))

	open := New(fb)
	require.NoError(t, open.RenameBranch(ctx, "main", "trunk"))
	require.NoError(t, open.DeleteBranch(ctx, "trunk"))

	assert.Equal(t, []string{"feature->feature-2", "main->trunk"}, renamed)
	assert.Equal(t, []string{"feature-2", "trunk"}, deleted)
}

func TestBranchErrors(t *testing.T) {
	t.Parallel()

	fb := newReadyFake()
	fb.createBranchFunc = func(name string, from string) error {
		return fmt.Errorf("resolve %s: %w", from, backend.ErrNotFound)
	}
	fb.deleteBranchFunc = func(string) error { return backend.ErrAlreadyExists }
	s := New(fb)
	ctx := context.Background()

	err := s.CreateBranch(ctx, BranchOptions{Name: "x", From: "nope"})
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.CreateBranch(ctx, BranchOptions{Name: " "}), ErrInvalidArgument)
	require.ErrorIs(t, s.RenameBranch(ctx, "a", ""), ErrInvalidArgument)
	require.ErrorIs(t, s.DeleteBranch(ctx, "x"), backend.ErrAlreadyExists)
}

func TestRun_NeverOverlaps(t *testing.T) {
	t.Parallel()

	s := New(newReadyFake())
	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Run(context.Background(), func(*Tx) error {
				n := active.Add(1)
				for {
					m := maxActive.Load()
					if n <= m || maxActive.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				active.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, maxActive.Load())
}

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()

	var q queue
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		q.push(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestRun_ReturnsUnitOfWorkError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := New(newReadyFake())
	require.ErrorIs(t, s.Run(context.Background(), func(*Tx) error { return boom }), boom)
	require.ErrorIs(t, s.Run(context.Background(), nil), ErrInvalidArgument)
}

func TestRun_RecoversPanic(t *testing.T) {
	t.Parallel()

	s := New(newReadyFake())
	err := s.Run(context.Background(), func(*Tx) error { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	ran := false
	require.NoError(t, s.Run(context.Background(), func(*Tx) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestRun_ContextEndsWhileQueued(t *testing.T) {
	t.Parallel()

	s := New(newReadyFake())
	release := make(chan struct{})
	started := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Run(context.Background(), func(*Tx) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	secondRan := make(chan struct{})
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- s.Run(ctx, func(*Tx) error {
			close(secondRan)
			return nil
		})
	}()
	require.Eventually(t, func() bool {
		s.queue.mu.Lock()
		defer s.queue.mu.Unlock()
		return len(s.queue.jobs) == 1
	}, 5*time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-secondDone, context.Canceled)

	close(release)
	require.NoError(t, <-firstDone)
	select {
	case <-secondRan:
	case <-time.After(5 * time.Second):
		t.Fatal("queued unit of work did not run")
	}
}

func TestRun_CancelledBeforeSubmit(t *testing.T) {
	t.Parallel()

	s := New(newReadyFake())
	require.NoError(t, s.Init(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := s.Run(ctx, func(*Tx) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestTx_ClosedAfterRun(t *testing.T) {
	t.Parallel()

	s := New(newReadyFake())
	var leaked *Tx
	require.NoError(t, s.Run(context.Background(), func(tx *Tx) error {
		leaked = tx
		assert.NotEmpty(t, tx.ID())
		return nil
	}))
	require.ErrorIs(t, leaked.Write("x", nil), ErrTxClosed)
	_, err := leaked.Commit("late", backend.Signature{})
	require.ErrorIs(t, err, ErrTxClosed)
}
