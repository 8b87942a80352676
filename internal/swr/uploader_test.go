package swr

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuopoj/sd-helper/pkg/progress"
)

// fakeEngine scripts load results and failures and records every call.
type fakeEngine struct {
	loadRefs map[string][]string
	loadErr  map[string]error
	tagErr   map[string]error
	pushErr  map[string]error
	rmErr    error

	loads  []string
	tags   [][2]string
	pushes []string
	rms    []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		loadRefs: map[string][]string{},
		loadErr:  map[string]error{},
		tagErr:   map[string]error{},
		pushErr:  map[string]error{},
	}
}

func (f *fakeEngine) Load(tarball string) ([]string, error) {
	base := filepath.Base(tarball)
	f.loads = append(f.loads, base)
	if err := f.loadErr[base]; err != nil {
		return nil, err
	}
	return f.loadRefs[base], nil
}

func (f *fakeEngine) Tag(source, target string) error {
	f.tags = append(f.tags, [2]string{source, target})
	return f.tagErr[source]
}

func (f *fakeEngine) Push(ref string) error {
	f.pushes = append(f.pushes, ref)
	return f.pushErr[ref]
}

func (f *fakeEngine) Remove(ref string) error {
	f.rms = append(f.rms, ref)
	return f.rmErr
}

func newUploader(t *testing.T, engine *fakeEngine, files ...string) (*Uploader, string) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	progressPath := filepath.Join(dir, "progress.json")
	store, err := progress.Load(progressPath)
	require.NoError(t, err)
	return &Uploader{
		Engine:   engine,
		Store:    store,
		Dir:      dir,
		Endpoint: "swr.example.com",
		Org:      "myorg",
	}, progressPath
}

func TestTargetRef(t *testing.T) {
	cases := []struct {
		loaded string
		want   string
	}{
		// Host plus namespace both stripped.
		{"registry.example.com/ns/app:1.0", "swr.example.com/myorg/app:1.0"},
		// Bare name:tag.
		{"app:latest", "swr.example.com/myorg/app:latest"},
		// Host with port, no namespace.
		{"localhost:5000/app:2.0", "swr.example.com/myorg/app:2.0"},
		// Plain namespace (no dot, no colon) is not a host; last segment wins.
		{"library/nginx:1.25", "swr.example.com/myorg/nginx:1.25"},
		// Deep path keeps everything after the namespace.
		{"registry.example.com/ns/team/app:1.0", "swr.example.com/myorg/team/app:1.0"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TargetRef("swr.example.com", "myorg", tc.loaded), "loaded %q", tc.loaded)
	}
}

func TestRun_HappyPath(t *testing.T) {
	engine := newFakeEngine()
	engine.loadRefs["nginx-image.tar"] = []string{"nginx:1.25"}
	u, _ := newUploader(t, engine, "nginx-image.tar")

	summary := u.Run([]string{"nginx-image.tar"})

	assert.Equal(t, Summary{Done: 1}, summary)
	assert.Equal(t, [][2]string{{"nginx:1.25", "swr.example.com/myorg/nginx:1.25"}}, engine.tags)
	assert.Equal(t, []string{"swr.example.com/myorg/nginx:1.25"}, engine.pushes)
	assert.True(t, u.Store.IsDone("nginx:1.25"))
}

func TestRun_MissingFile(t *testing.T) {
	engine := newFakeEngine()
	u, _ := newUploader(t, engine)

	summary := u.Run([]string{"ghost-xxxx.tar"})

	assert.Equal(t, Summary{Missing: 1}, summary)
	assert.Equal(t, "missing", u.Store.Get("ghost-xxxx.tar"))
	assert.Empty(t, engine.loads)
}

func TestRun_LoadFailureIsIsolated(t *testing.T) {
	engine := newFakeEngine()
	engine.loadErr["bad.tar"] = fmt.Errorf("archive corrupted")
	engine.loadRefs["good.tar"] = []string{"good:1"}
	u, _ := newUploader(t, engine, "bad.tar", "good.tar")

	summary := u.Run([]string{"bad.tar", "good.tar"})

	// The failure of one pattern never stops the batch.
	assert.Equal(t, Summary{Done: 1, Failed: 1}, summary)
	assert.Equal(t, "failed: archive corrupted", u.Store.Get("bad.tar"))
	assert.True(t, u.Store.IsDone("good:1"))
}

func TestRun_TagFailureKeyedByPattern(t *testing.T) {
	engine := newFakeEngine()
	engine.loadRefs["app.tar"] = []string{"app:1"}
	engine.tagErr["app:1"] = fmt.Errorf("no such image")
	u, _ := newUploader(t, engine, "app.tar")

	summary := u.Run([]string{"app.tar"})

	assert.Equal(t, Summary{Failed: 1}, summary)
	assert.Equal(t, "failed: no such image", u.Store.Get("app.tar"))
	assert.Empty(t, engine.pushes)
}

func TestRun_PushFailureKeyedByPattern(t *testing.T) {
	engine := newFakeEngine()
	engine.loadRefs["app.tar"] = []string{"app:1"}
	engine.pushErr["swr.example.com/myorg/app:1"] = fmt.Errorf("denied")
	u, _ := newUploader(t, engine, "app.tar")

	u.Run([]string{"app.tar"})

	assert.Equal(t, "failed: denied", u.Store.Get("app.tar"))
	assert.False(t, u.Store.IsDone("app:1"))
}

func TestRun_SecondRunSkipsDoneRefsButStillLoads(t *testing.T) {
	engine := newFakeEngine()
	engine.loadRefs["app.tar"] = []string{"app:1"}
	u, _ := newUploader(t, engine, "app.tar")

	u.Run([]string{"app.tar"})
	u.Run([]string{"app.tar"})

	// The tarball is loaded on every run; tag and push happen once.
	assert.Len(t, engine.loads, 2)
	assert.Len(t, engine.tags, 1)
	assert.Len(t, engine.pushes, 1)
}

func TestRun_MultiImageTarballPartialResume(t *testing.T) {
	engine := newFakeEngine()
	engine.loadRefs["bundle.tar"] = []string{"front:1", "back:1"}
	engine.pushErr["swr.example.com/myorg/back:1"] = fmt.Errorf("denied")
	u, _ := newUploader(t, engine, "bundle.tar")

	u.Run([]string{"bundle.tar"})
	assert.True(t, u.Store.IsDone("front:1"))
	assert.Equal(t, "failed: denied", u.Store.Get("bundle.tar"))

	// Clear the scripted failure and resume: only back:1 is retried.
	engine.pushErr = map[string]error{}
	engine.tags = nil
	engine.pushes = nil
	u.Run([]string{"bundle.tar"})

	assert.Equal(t, [][2]string{{"back:1", "swr.example.com/myorg/back:1"}}, engine.tags)
	assert.True(t, u.Store.IsDone("back:1"))
}

func TestRun_CleanupRemovesBothRefs(t *testing.T) {
	engine := newFakeEngine()
	engine.loadRefs["app.tar"] = []string{"app:1"}
	u, _ := newUploader(t, engine, "app.tar")
	u.Cleanup = true

	u.Run([]string{"app.tar"})

	assert.Equal(t, []string{"app:1", "swr.example.com/myorg/app:1"}, engine.rms)
}

func TestRun_CleanupFailureIsNotFatal(t *testing.T) {
	engine := newFakeEngine()
	engine.loadRefs["app.tar"] = []string{"app:1"}
	engine.rmErr = fmt.Errorf("image in use")
	u, _ := newUploader(t, engine, "app.tar")
	u.Cleanup = true

	summary := u.Run([]string{"app.tar"})

	assert.Equal(t, Summary{Done: 1}, summary)
	assert.True(t, u.Store.IsDone("app:1"))
}

func TestRun_ProgressPersistedAfterEachPattern(t *testing.T) {
	engine := newFakeEngine()
	engine.loadRefs["a.tar"] = []string{"a:1"}
	u, progressPath := newUploader(t, engine, "a.tar")

	u.Run([]string{"a.tar", "b-ghost.tar"})

	// A fresh store sees both outcomes.
	reloaded, err := progress.Load(progressPath)
	require.NoError(t, err)
	assert.True(t, reloaded.IsDone("a:1"))
	assert.Equal(t, "missing", reloaded.Get("b-ghost.tar"))
}
