package main

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"dagger/reel/internal/dagger"
)

// bucket is the S3-compatible store release artifacts land in. Layout:
//
//	<prefix>/linux/<arch>/reel
//	<prefix>/SHA256SUMS
type bucket struct {
	endpoint        *dagger.Secret
	name            *dagger.Secret
	accessKeyID     *dagger.Secret
	secretAccessKey *dagger.Secret
}

// sync mirrors dir to prefix in the bucket with the AWS CLI.
func (b *bucket) sync(ctx context.Context, dir *dagger.Directory, prefix string) error {
	name, err := b.name.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("reading bucket name: %w", err)
	}
	endpoint, err := b.endpoint.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("reading bucket endpoint: %w", err)
	}

	_, err = dag.Container().
		From("amazon/aws-cli:latest").
		WithSecretVariable("AWS_ACCESS_KEY_ID", b.accessKeyID).
		WithSecretVariable("AWS_SECRET_ACCESS_KEY", b.secretAccessKey).
		WithEnvVariable("AWS_DEFAULT_REGION", "auto").
		WithDirectory("/artifacts", dir).
		WithWorkdir("/artifacts").
		WithExec([]string{
			"aws", "s3", "sync", ".",
			"s3://" + path.Join(name, prefix),
			"--endpoint-url", endpoint,
			"--delete",
		}).
		Sync(ctx)
	if err != nil {
		return fmt.Errorf("syncing %s: %w", prefix, err)
	}
	return nil
}

// withChecksums adds a SHA256SUMS file covering every reel binary in dir.
func withChecksums(dir *dagger.Directory) *dagger.Directory {
	sums := dag.Container().
		From("alpine:3").
		WithDirectory("/artifacts", dir).
		WithWorkdir("/artifacts").
		WithExec([]string{"sh", "-c", "find . -name reel -type f | sort | xargs sha256sum > SHA256SUMS"}).
		File("SHA256SUMS")

	return dir.WithFile("SHA256SUMS", sums)
}

// Release builds reel for a tagged version and publishes it under the
// version and under "latest". The version must look like "v1.2.3".
func (r *Reel) Release(
	ctx context.Context,

	// Tag being released, e.g. "v0.4.0"
	version string,

	// Git commit SHA of the tag
	commit string,

	endpoint *dagger.Secret,
	bucketName *dagger.Secret,
	accessKeyId *dagger.Secret,
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	prefixes, err := releasePrefixes(version)
	if err != nil {
		return nil, err
	}

	b := &bucket{endpoint: endpoint, name: bucketName, accessKeyID: accessKeyId, secretAccessKey: secretAccessKey}
	artifacts := withChecksums(r.BuildRelease(ctx, version, commit))

	for _, prefix := range prefixes {
		if err := b.sync(ctx, artifacts, prefix); err != nil {
			return artifacts, err
		}
	}
	return artifacts, nil
}

// Nightly builds the current source as "nightly-<date>" and publishes it
// under nightly/<date> and nightly/latest.
func (r *Reel) Nightly(
	ctx context.Context,

	// Git commit SHA being built
	commit string,

	endpoint *dagger.Secret,
	bucketName *dagger.Secret,
	accessKeyId *dagger.Secret,
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	version, prefixes := nightlyPrefixes(time.Now())

	b := &bucket{endpoint: endpoint, name: bucketName, accessKeyID: accessKeyId, secretAccessKey: secretAccessKey}
	artifacts := withChecksums(r.BuildRelease(ctx, version, commit))

	for _, prefix := range prefixes {
		if err := b.sync(ctx, artifacts, prefix); err != nil {
			return artifacts, err
		}
	}
	return artifacts, nil
}

// releasePrefixes checks that version is a vMAJOR.MINOR.PATCH tag and
// returns the bucket prefixes it is published under.
func releasePrefixes(version string) ([]string, error) {
	parts := strings.Split(strings.TrimPrefix(version, "v"), ".")
	if !strings.HasPrefix(version, "v") || len(parts) != 3 {
		return nil, fmt.Errorf("release version %q is not of the form vMAJOR.MINOR.PATCH", version)
	}
	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return nil, fmt.Errorf("release version %q is not of the form vMAJOR.MINOR.PATCH", version)
		}
	}
	return []string{version, "latest"}, nil
}

// nightlyPrefixes returns the version stamped into a nightly built at t and
// the bucket prefixes it is published under.
func nightlyPrefixes(t time.Time) (string, []string) {
	date := t.UTC().Format("2006-01-02")
	return "nightly-" + date, []string{path.Join("nightly", date), path.Join("nightly", "latest")}
}
