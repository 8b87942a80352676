// Package docker drives a docker-compatible container engine through its
// command line. The engine is deliberately modeled as a narrow interface so
// the upload pipeline never depends on how commands are actually invoked.
package docker

// Engine is the boundary to the container engine. Implementations block
// until the underlying operation finishes; the batch pipeline runs one
// operation at a time and places no timeout on them.
type Engine interface {
	// Load imports an image tarball and returns the references it produced.
	// An empty result is an error, never a success.
	Load(tarball string) ([]string, error)

	// Tag applies target as an additional reference for source.
	Tag(source, target string) error

	// Push uploads ref to its registry.
	Push(ref string) error

	// Remove deletes a local image reference. Callers treat failures as
	// best-effort cleanup noise, not batch failures.
	Remove(ref string) error
}
