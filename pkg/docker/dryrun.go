package docker

import (
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// DryRunEngine logs the commands a real engine would run and reports
// synthetic success. Load fabricates a single reference from the tarball's
// base name; progress entries produced under dry-run are synthetic and must
// not be taken for real completions.
type DryRunEngine struct{}

func (DryRunEngine) Load(tarball string) ([]string, error) {
	logDryRun("load", "-i", tarball)
	base := filepath.Base(tarball)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return []string{"dry-run/" + stem + ":latest"}, nil
}

func (DryRunEngine) Tag(source, target string) error {
	logDryRun("tag", source, target)
	return nil
}

func (DryRunEngine) Push(ref string) error {
	logDryRun("push", ref)
	return nil
}

func (DryRunEngine) Remove(ref string) error {
	logDryRun("rmi", ref)
	return nil
}

func logDryRun(args ...string) {
	log.Info("[dry-run] $ docker " + strings.Join(args, " "))
}
