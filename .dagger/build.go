package main

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"dagger/bounder/internal/dagger"
)

// target is one GOOS/GOARCH pair of the build matrix.
type target struct {
	goos   string
	goarch string
}

// buildTargets covers the hosts bounder runs on: linux servers and camera
// boards (arm, arm64) plus macOS workstations.
var buildTargets = []target{
	{"linux", "amd64"},
	{"linux", "arm64"},
	{"linux", "arm"},
	{"darwin", "amd64"},
	{"darwin", "arm64"},
}

// Build and return directory of bounder binaries laid out as <goos>/<goarch>/bounder
func (b *Bounder) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	golang := b.goContainer().WithEnvVariable("GOFLAGS", "-trimpath")

	outputs := dag.Directory()
	for _, t := range buildTargets {
		out := path.Join(t.goos, t.goarch, "bounder")
		binary := golang.
			WithEnvVariable("GOOS", t.goos).
			WithEnvVariable("GOARCH", t.goarch).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", out, "./cli/bounder"}).
			File(out)

		outputs = outputs.WithFile(out, binary)
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (b *Bounder) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	const pkg = "github.com/papercomputeco/bounder/pkg/utils"

	ldflags := []string{
		"-s", "-w",
		fmt.Sprintf("-X '%s.Version=%s'", pkg, version),
		fmt.Sprintf("-X '%s.Sha=%s'", pkg, commit),
		fmt.Sprintf("-X '%s.Buildtime=%s'", pkg, time.Now().UTC().Format(time.RFC3339)),
	}

	return b.Build(ctx, strings.Join(ldflags, " "))
}
