// Package artifact uploads the runner's result logs as a workflow artifact.
package artifact

import (
	"context"
	"fmt"

	"github.com/ethereum-optimism/infra/op-vstest/actions"
	"github.com/ethereum-optimism/infra/op-vstest/metrics"
	"github.com/ethereum-optimism/infra/op-vstest/search"
)

// LargeArtifactFileCount is the file count above which uploads are slow enough
// to suggest archiving first.
const LargeArtifactFileCount = 10000

// UploadOptions are the per-artifact settings passed to the service.
type UploadOptions struct {
	// RetentionDays is omitted from the request when 0.
	RetentionDays int
}

// UploadResponse identifies the created artifact.
type UploadResponse struct {
	ID   int64
	Size int64
}

// Client uploads a set of files, addressed relative to rootDirectory.
type Client interface {
	UploadArtifact(ctx context.Context, name string, files []string, rootDirectory string, opts UploadOptions) (*UploadResponse, error)
}

// SearchFunc finds the files matching a search pattern.
type SearchFunc func(ctx context.Context, searchPath string, opts *search.Options) (*search.SearchResult, error)

// Uploader runs the result-log search and hands the files to a Client.
type Uploader struct {
	reporter actions.Reporter
	client   Client
	search   SearchFunc
	opts     *search.Options
	raw      RawInputs
}

// NewUploader creates an Uploader. A nil searchFn uses search.FindFilesToUpload;
// opts is passed to the result-log search.
func NewUploader(reporter actions.Reporter, client Client, searchFn SearchFunc, opts *search.Options, raw RawInputs) *Uploader {
	if searchFn == nil {
		searchFn = search.FindFilesToUpload
	}
	return &Uploader{
		reporter: reporter,
		client:   client,
		search:   searchFn,
		opts:     opts,
		raw:      raw,
	}
}

// Upload searches for the result logs and uploads them. It never returns an
// error: problems are reported, and an empty search is handled according to
// the ifNoFilesFound policy.
func (u *Uploader) Upload(ctx context.Context) {
	if err := u.upload(ctx); err != nil {
		metrics.RecordErrorDetails("artifact_upload", err)
		metrics.RecordArtifactUpload(metrics.UploadFailure, 0, 0)
		u.reporter.Error(err.Error())
	}
}

func (u *Uploader) upload(ctx context.Context) error {
	inputs, err := ReadInputs(u.raw, u.reporter)
	if err != nil {
		return err
	}

	result, err := u.search(ctx, inputs.SearchPath, u.opts)
	if err != nil {
		return fmt.Errorf("failed to search for artifact files: %w", err)
	}

	if result == nil || len(result.FilesToUpload) == 0 {
		u.reportNoFiles(inputs)
		metrics.RecordArtifactUpload(metrics.UploadNoFiles, 0, 0)
		return nil
	}

	count := len(result.FilesToUpload)
	s := "s"
	if count == 1 {
		s = ""
	}
	u.reporter.Info(fmt.Sprintf("With the provided path, there will be %d file%s uploaded", count, s))
	u.reporter.Debug(fmt.Sprintf("Root artifact directory is %s", result.RootDirectory))

	if count > LargeArtifactFileCount {
		u.reporter.Warning("There are over 10,000 files in this artifact, consider creating an archive before upload to improve the upload performance.")
	}

	if u.client == nil {
		return fmt.Errorf("no artifact client configured")
	}
	opts := UploadOptions{RetentionDays: inputs.RetentionDays}
	resp, err := u.client.UploadArtifact(ctx, inputs.ArtifactName, result.FilesToUpload, result.RootDirectory, opts)
	if err != nil {
		return fmt.Errorf("failed to upload artifact %s: %w", inputs.ArtifactName, err)
	}

	metrics.RecordArtifactUpload(metrics.UploadSuccess, count, resp.Size)
	u.reporter.Info(fmt.Sprintf("Created artifact with id: %d (bytes: %d)", resp.ID, resp.Size))
	return nil
}

func (u *Uploader) reportNoFiles(inputs *Inputs) {
	msg := fmt.Sprintf("No files were found with the provided path: %s. No artifacts will be uploaded.", inputs.SearchPath)
	switch inputs.IfNoFilesFound {
	case Warn:
		u.reporter.Warning(msg)
	case Error:
		u.reporter.SetFailed(msg)
	case Ignore:
		u.reporter.Info(msg)
	}
}
