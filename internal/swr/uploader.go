// Package swr implements the manifest-driven batch upload of image
// tarballs into an SWR registry, with durable per-item progress so an
// interrupted batch resumes where it stopped.
package swr

import (
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/distribution/reference"

	"github.com/xuopoj/sd-helper/pkg/docker"
	"github.com/xuopoj/sd-helper/pkg/manifest"
	"github.com/xuopoj/sd-helper/pkg/progress"
)

// Uploader processes manifest patterns one at a time: match the tarball on
// disk, load it, then tag and push every reference the load produced.
// Failures are isolated per pattern; the batch always runs to the end.
type Uploader struct {
	Engine   docker.Engine
	Store    *progress.Store
	Dir      string
	Endpoint string
	Org      string
	Cleanup  bool
}

// Summary aggregates the progress store after a run.
type Summary struct {
	Done    int
	Failed  int
	Missing int
}

// Run processes every pattern and returns the final tally.
func (u *Uploader) Run(patterns []string) Summary {
	for _, pattern := range patterns {
		u.ProcessPattern(pattern)
	}
	done, failed, missing := u.Store.Counts()
	return Summary{Done: done, Failed: failed, Missing: missing}
}

// ProcessPattern runs the per-pattern state machine. Terminal outcomes are
// persisted immediately: "missing" and "failed" keyed by the pattern,
// "done" keyed by each loaded reference so multi-image tarballs are
// tracked per reference.
func (u *Uploader) ProcessPattern(pattern string) {
	tarball, err := manifest.FindMatch(u.Dir, pattern)
	if err != nil {
		if errors.Is(err, manifest.ErrNoMatch) {
			log.Error("[MISSING] No file found", "pattern", pattern)
			u.persist(u.Store.MarkMissing(pattern))
			return
		}
		log.Error("[FAILED] Match error", "pattern", pattern, "err", err)
		u.persist(u.Store.MarkFailed(pattern, err.Error()))
		return
	}

	// The load itself is never skipped: a multi-image tarball may hold
	// references that are done next to ones that are still pending.
	loaded, err := u.Engine.Load(tarball)
	if err != nil {
		log.Error("[FAILED]", "pattern", pattern, "err", err)
		u.persist(u.Store.MarkFailed(pattern, err.Error()))
		return
	}
	log.Info("Loaded", "refs", strings.Join(loaded, ", "))

	for _, ref := range loaded {
		if u.Store.IsDone(ref) {
			log.Info("[SKIP] already done", "ref", ref)
			continue
		}

		target := TargetRef(u.Endpoint, u.Org, ref)
		if _, err := reference.ParseNormalizedNamed(target); err != nil {
			log.Warn("Constructed target is not a well-formed reference", "target", target, "err", err)
		}

		if err := u.Engine.Tag(ref, target); err != nil {
			log.Error("[FAILED]", "pattern", pattern, "err", err)
			u.persist(u.Store.MarkFailed(pattern, err.Error()))
			return
		}
		if err := u.Engine.Push(target); err != nil {
			log.Error("[FAILED]", "pattern", pattern, "err", err)
			u.persist(u.Store.MarkFailed(pattern, err.Error()))
			return
		}
		log.Info("[PUSHED]", "target", target)

		if u.Cleanup {
			for _, img := range []string{ref, target} {
				if err := u.Engine.Remove(img); err != nil {
					log.Warn("Failed to remove image", "ref", img, "err", err)
				}
			}
		}

		u.persist(u.Store.MarkDone(ref))
		log.Info("[DONE]", "ref", ref)
	}
}

// persist surfaces progress-write failures without aborting the batch;
// losing a progress write only costs a redundant retry on the next run.
func (u *Uploader) persist(err error) {
	if err != nil {
		log.Error("Failed to persist progress", "err", err)
	}
}

// TargetRef rewrites a loaded reference for the destination registry.
// Any existing host (a first segment containing '.' or ':') is stripped
// together with its namespace segment, then the destination endpoint and
// organization are prefixed.
func TargetRef(endpoint, org, loadedRef string) string {
	parts := strings.Split(loadedRef, "/")

	var nameTag string
	switch {
	case len(parts) >= 2 && (strings.Contains(parts[0], ".") || strings.Contains(parts[0], ":")):
		if len(parts) > 2 {
			nameTag = strings.Join(parts[2:], "/")
		} else {
			nameTag = parts[1]
		}
	default:
		nameTag = parts[len(parts)-1]
	}

	return endpoint + "/" + org + "/" + nameTag
}
