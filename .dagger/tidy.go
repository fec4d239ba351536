package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/reel/internal/dagger"
)

// CheckGoModTidy fails when "go mod tidy" would change go.mod or go.sum. A
// missing go.sum counts as untidy once tidy creates one.
//
// +check
func (r *Reel) CheckGoModTidy(ctx context.Context) (string, error) {
	script := `set -e
cp go.mod /tmp/go.mod.before
touch /tmp/go.sum.before
[ -f go.sum ] && cp go.sum /tmp/go.sum.before
go mod tidy
diff -u /tmp/go.mod.before go.mod
diff -u /tmp/go.sum.before go.sum`

	out, err := r.goContainer().
		WithExec([]string{"sh", "-c", script}).
		Stdout(ctx)

	var execErr *dagger.ExecError
	switch {
	case errors.As(err, &execErr):
		return "", fmt.Errorf("go.mod/go.sum need tidying, run 'go mod tidy':\n\n%s", execErr.Stdout)
	case err != nil:
		return "", fmt.Errorf("running go mod tidy: %w", err)
	}
	return "go.mod and go.sum are tidy" + out, nil
}
