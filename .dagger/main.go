// Bounder CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/bounder/internal/dagger"
)

// Bounder is the main module for the Bounder CI/CD pipeline
type Bounder struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Bounder CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Bounder {
	return &Bounder{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with the project
// source mounted. The relay is pure Go, so CGO stays disabled.
//
// It is the shared foundation for tests, builds, and linting.
func (b *Bounder) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", b.Source)
}

// Test runs the bounder unit tests via "go test" with the race detector.
// The race detector needs cgo, so this container installs gcc.
func (b *Bounder) Test(ctx context.Context) (string, error) {
	return b.goContainer().
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}

// Vet runs "go vet" over every package.
func (b *Bounder) Vet(ctx context.Context) (string, error) {
	return b.goContainer().
		WithExec([]string{"go", "vet", "./..."}).
		Stdout(ctx)
}
