package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorkers struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (f *fakeWorkers) Start(context.Context) {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
}

func (f *fakeWorkers) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

type fakeScheduler struct {
	ran chan struct{}
}

func (f *fakeScheduler) Run(ctx context.Context) error {
	close(f.ran)
	<-ctx.Done()
	return nil
}

type fakeHTTP struct {
	listenCalled chan struct{}
	listenErr    error
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(string) error {
	close(f.listenCalled)
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

func TestRunWithComponents_StartsAndStopsEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers := &fakeWorkers{}
	scheduler := &fakeScheduler{ran: make(chan struct{})}
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, "127.0.0.1:0", workers, scheduler, httpSrv)
	}()

	for _, ch := range []chan struct{}{httpSrv.listenCalled, scheduler.ran} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("component did not start")
		}
	}

	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}

	workers.mu.Lock()
	defer workers.mu.Unlock()
	assert.True(t, workers.started)
	assert.True(t, workers.stopped)
}

func TestRunWithComponents_HTTPFailureStopsScheduler(t *testing.T) {
	scheduler := &fakeScheduler{ran: make(chan struct{})}
	httpSrv := newFakeHTTP()
	httpSrv.listenErr = errors.New("address in use")

	err := runWithComponents(context.Background(), ":1", &fakeWorkers{}, scheduler, httpSrv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}

func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("OPENSUBTITLES_API_KEY", "")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(dataDir, "missing.env"), "--data-dir", dataDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_ProcessImportStatsSweep(t *testing.T) {
	dataDir := t.TempDir()
	subsDir := t.TempDir()

	srt := "1\n00:00:01,000 --> 00:00:03,000\nThe detective examined the letter.\n\n" +
		"2\n00:00:45,000 --> 00:00:47,000\nSomebody was watching.\n"
	single := filepath.Join(subsDir, "night.srt")
	require.NoError(t, os.WriteFile(single, []byte(srt), 0o644))

	out, err := runCLI(t, dataDir, "process", single, "--movie", "tt1", "--language", "en")
	require.NoError(t, err)
	assert.Contains(t, out, "Processed night.srt")
	assert.Contains(t, out, "0:00:47")

	importDir := filepath.Join(subsDir, "library")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "Heat.en.srt"), []byte(srt), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "Broken.en.srt"), []byte("1\nnot a timing\nx\n"), 0o644))

	out, err = runCLI(t, dataDir, "import", importDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Heat.en.srt")
	assert.Contains(t, out, "failed: Parse")
	assert.Contains(t, out, "Imported 1 of 2 files")

	out, err = runCLI(t, dataDir, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "opensubtitles usage today")

	out, err = runCLI(t, dataDir, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 cache entries and 0 jobs")
}

func TestCLI_ProcessRequiresMovie(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "process", "whatever.srt")
	require.Error(t, err)
}
