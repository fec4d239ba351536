// Package main is reel's dagger module: tests, linux builds of cli/reel,
// release publishing and the go.mod tidy check, runnable the same way
// locally and in CI.
package main

import (
	"context"

	"dagger/reel/internal/dagger"
)

// Reel holds the source tree every function works on.
type Reel struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New loads the repository, minus local state and reference material.
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", ".reel", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Reel {
	return &Reel{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc,
// libsqlite3-dev, CGO enabled, and the project source mounted.
func (r *Reel) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", r.Source)
}

// Test runs the reel unit tests via "go test". The sqlite driver needs CGO,
// so tests run in the Debian container.
func (r *Reel) Test(ctx context.Context) (string, error) {
	return r.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}
