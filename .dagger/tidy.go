package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/bounder/internal/dagger"
)

// CheckGoModTidy fails when go.mod or go.sum are not tidy. "go mod tidy -diff"
// prints the missing changes without touching the files.
//
// +check
func (b *Bounder) CheckGoModTidy(ctx context.Context) (string, error) {
	_, err := b.goContainer().
		WithExec([]string{"go", "mod", "tidy", "-diff"}).
		Stdout(ctx)

	var e *dagger.ExecError
	switch {
	case errors.As(err, &e):
		return "", fmt.Errorf("go.mod or go.sum are not tidy, run 'go mod tidy':\n\n%s", e.Stdout)
	case err != nil:
		return "", fmt.Errorf("running go mod tidy: %w", err)
	}

	return "go.mod and go.sum are tidy", nil
}
