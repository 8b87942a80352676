package docker

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
)

// loadedImageRe recognizes the engine's load output, e.g.
// "Loaded image: nginx:1.25" or "Loaded image ID: sha256:abc...".
var loadedImageRe = regexp.MustCompile(`(?i)^loaded image(?:\s+id)?:\s*(.+)$`)

// CLIEngine shells out to a docker-compatible binary.
type CLIEngine struct {
	// Binary is the engine executable, "docker" by default. Podman's CLI
	// is output-compatible for the subcommands used here.
	Binary string
}

// NewCLIEngine returns an engine driving the given binary, or "docker"
// when empty.
func NewCLIEngine(binary string) *CLIEngine {
	if binary == "" {
		binary = "docker"
	}
	return &CLIEngine{Binary: binary}
}

// Load runs `docker load -i tarball` and parses the produced references
// from its output.
func (e *CLIEngine) Load(tarball string) ([]string, error) {
	out, err := e.capture("load", "-i", tarball)
	if err != nil {
		return nil, err
	}
	refs := ParseLoadOutput(out)
	if len(refs) == 0 {
		return nil, fmt.Errorf("could not parse loaded image from output:\n%s", out)
	}
	return refs, nil
}

// Tag runs `docker tag source target`.
func (e *CLIEngine) Tag(source, target string) error {
	return e.run("tag", source, target)
}

// Push runs `docker push ref`.
func (e *CLIEngine) Push(ref string) error {
	return e.run("push", ref)
}

// Remove runs `docker rmi ref`.
func (e *CLIEngine) Remove(ref string) error {
	return e.run("rmi", ref)
}

// capture runs the engine with stdout captured, for commands whose output
// must be parsed. Stderr is captured separately so failures carry the
// engine's own diagnostic.
func (e *CLIEngine) capture(args ...string) (string, error) {
	logCommand(e.Binary, args)
	cmd := exec.Command(e.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", commandError(e.Binary, args, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// run executes the engine with output passed through to the terminal, so
// long pushes show the engine's own progress reporting.
func (e *CLIEngine) run(args ...string) error {
	logCommand(e.Binary, args)
	cmd := exec.Command(e.Binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return commandError(e.Binary, args, err, "(see above)")
	}
	return nil
}

// ParseLoadOutput extracts image references from `docker load` output.
func ParseLoadOutput(out string) []string {
	var refs []string
	for _, line := range strings.Split(out, "\n") {
		if m := loadedImageRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			refs = append(refs, strings.TrimSpace(m[1]))
		}
	}
	return refs
}

func logCommand(binary string, args []string) {
	log.Info("$ " + binary + " " + strings.Join(args, " "))
}

func commandError(binary string, args []string, err error, detail string) error {
	exitCode := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}
	return fmt.Errorf("command failed (exit %d): %s %s\n%s", exitCode, binary, strings.Join(args, " "), detail)
}
