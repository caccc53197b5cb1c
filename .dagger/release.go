package main

import (
	"context"
	"fmt"
	"path"

	"dagger/bounder/internal/dagger"
)

// imageArches are the linux architectures published as container images.
var imageArches = []string{"amd64", "arm64"}

// bucket holds the S3-compatible bucket release binaries are synced to.
type bucket struct {
	endpoint        *dagger.Secret
	name            *dagger.Secret
	accessKeyID     *dagger.Secret
	secretAccessKey *dagger.Secret
}

// sync copies artifacts into the bucket under each prefix.
func (bk bucket) sync(ctx context.Context, artifacts *dagger.Directory, prefixes ...string) error {
	name, err := bk.name.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("reading bucket name: %w", err)
	}
	endpoint, err := bk.endpoint.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("reading bucket endpoint: %w", err)
	}

	aws := dag.Container().
		From("amazon/aws-cli:latest").
		WithSecretVariable("AWS_ACCESS_KEY_ID", bk.accessKeyID).
		WithSecretVariable("AWS_SECRET_ACCESS_KEY", bk.secretAccessKey).
		WithEnvVariable("AWS_DEFAULT_REGION", "auto").
		WithDirectory("/artifacts", artifacts).
		WithWorkdir("/artifacts")

	for _, prefix := range prefixes {
		dest := "s3://" + path.Join(name, prefix)
		_, err := aws.
			WithExec([]string{"aws", "s3", "sync", ".", dest, "--endpoint-url", endpoint}).
			Sync(ctx)
		if err != nil {
			return fmt.Errorf("syncing artifacts to %s: %w", prefix, err)
		}
	}
	return nil
}

// Image returns the bounder container image for one linux architecture, built
// from release binaries.
func (b *Bounder) Image(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,

	// Target architecture (amd64 or arm64)
	// +default="amd64"
	arch string,
) *dagger.Container {
	return b.image(b.BuildRelease(ctx, version, commit), arch)
}

func (b *Bounder) image(binaries *dagger.Directory, arch string) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: dagger.Platform("linux/" + arch)}).
		From("gcr.io/distroless/static-debian12:nonroot").
		WithFile("/usr/local/bin/bounder", binaries.File(path.Join("linux", arch, "bounder"))).
		WithExposedPort(8080).
		WithEntrypoint([]string{"/usr/local/bin/bounder"}).
		WithDefaultArgs([]string{"serve"})
}

// PublishImage builds the multi-arch image and pushes it as <ref>:<version>.
func (b *Bounder) PublishImage(
	ctx context.Context,

	// Version string, used as the image tag
	version string,

	// Git commit SHA
	commit string,

	// Image reference without tag (e.g., "ghcr.io/papercomputeco/bounder")
	ref string,

	// Registry username
	// +optional
	username string,

	// Registry password or token
	// +optional
	password *dagger.Secret,
) (string, error) {
	binaries := b.BuildRelease(ctx, version, commit)

	variants := make([]*dagger.Container, 0, len(imageArches))
	for _, arch := range imageArches {
		variants = append(variants, b.image(binaries, arch))
	}

	publisher := dag.Container()
	if password != nil {
		publisher = publisher.WithRegistryAuth(ref, username, password)
	}

	return publisher.Publish(ctx, fmt.Sprintf("%s:%s", ref, version), dagger.ContainerPublishOpts{
		PlatformVariants: variants,
	})
}

// ReleaseLatest builds release binaries and uploads them under the version
// prefix and under "latest"
func (b *Bounder) ReleaseLatest(
	ctx context.Context,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucketName *dagger.Secret,

	// Bucket access key ID
	accessKeyId *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	artifacts := b.BuildRelease(ctx, version, commit)
	bk := bucket{endpoint: endpoint, name: bucketName, accessKeyID: accessKeyId, secretAccessKey: secretAccessKey}

	return artifacts, bk.sync(ctx, artifacts, version, "latest")
}

// Nightly builds and uploads nightly artifacts
func (b *Bounder) Nightly(
	ctx context.Context,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucketName *dagger.Secret,

	// Bucket access key ID
	accessKeyId *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	artifacts := b.BuildRelease(ctx, "nightly", commit)
	bk := bucket{endpoint: endpoint, name: bucketName, accessKeyID: accessKeyId, secretAccessKey: secretAccessKey}

	return artifacts, bk.sync(ctx, artifacts, "nightly")
}
