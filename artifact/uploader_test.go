package artifact

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-vstest/actions"
	"github.com/ethereum-optimism/infra/op-vstest/search"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) UploadArtifact(ctx context.Context, name string, files []string, rootDirectory string, opts UploadOptions) (*UploadResponse, error) {
	args := m.Called(ctx, name, files, rootDirectory, opts)
	if resp := args.Get(0); resp != nil {
		return resp.(*UploadResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func fixedSearch(files []string, root string, err error) SearchFunc {
	return func(_ context.Context, _ string, _ *search.Options) (*search.SearchResult, error) {
		if err != nil {
			return nil, err
		}
		return &search.SearchResult{FilesToUpload: files, RootDirectory: root}, nil
	}
}

func TestUploadNoFiles(t *testing.T) {
	const expected = "No files were found with the provided path: TestResults. No artifacts will be uploaded."
	tests := []struct {
		option string
		level  string
	}{
		{option: "", level: "warning"},
		{option: "warn", level: "warning"},
		{option: "error", level: "failed"},
		{option: "ignore", level: "info"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("option=%q", tt.option), func(t *testing.T) {
			rec := &actions.Recorder{}
			client := &mockClient{}
			u := NewUploader(rec, client, fixedSearch([]string{}, "/work/TestResults", nil), nil, RawInputs{
				IfNoFilesFound: tt.option,
				SearchPath:     "TestResults",
			})

			u.Upload(context.Background())

			require.Len(t, rec.Entries, 1)
			assert.Equal(t, actions.Entry{Level: tt.level, Msg: expected}, rec.Entries[0])
			client.AssertNotCalled(t, "UploadArtifact", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUploadFiles(t *testing.T) {
	files := []string{"/work/TestResults/a.trx", "/work/TestResults/b.trx"}
	rec := &actions.Recorder{}
	client := &mockClient{}
	client.On("UploadArtifact", mock.Anything, "results", files, "/work/TestResults", UploadOptions{RetentionDays: 3}).
		Return(&UploadResponse{ID: 42, Size: 1024}, nil).Once()

	u := NewUploader(rec, client, fixedSearch(files, "/work/TestResults", nil), nil, RawInputs{
		ArtifactName:  "results",
		RetentionDays: "3",
		SearchPath:    "TestResults",
	})
	u.Upload(context.Background())

	client.AssertExpectations(t)
	assert.Equal(t, []string{
		"With the provided path, there will be 2 files uploaded",
		"Created artifact with id: 42 (bytes: 1024)",
	}, rec.Messages("info"))
	assert.Equal(t, []string{"Root artifact directory is /work/TestResults"}, rec.Messages("debug"))
	assert.Empty(t, rec.Messages("error"))
	assert.False(t, rec.Failed())
}

func TestUploadSingleFileMessage(t *testing.T) {
	rec := &actions.Recorder{}
	client := &mockClient{}
	client.On("UploadArtifact", mock.Anything, DefaultArtifactName, mock.Anything, mock.Anything, UploadOptions{}).
		Return(&UploadResponse{ID: 1, Size: 10}, nil)

	u := NewUploader(rec, client, fixedSearch([]string{"/r/a.trx"}, "/r", nil), nil, RawInputs{SearchPath: "/r/a.trx"})
	u.Upload(context.Background())

	assert.Contains(t, rec.Messages("info"), "With the provided path, there will be 1 file uploaded")
}

func TestUploadManyFilesWarns(t *testing.T) {
	files := make([]string, LargeArtifactFileCount+1)
	for i := range files {
		files[i] = fmt.Sprintf("/r/%d.trx", i)
	}
	rec := &actions.Recorder{}
	client := &mockClient{}
	client.On("UploadArtifact", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&UploadResponse{ID: 1, Size: 10}, nil)

	u := NewUploader(rec, client, fixedSearch(files, "/r", nil), nil, RawInputs{SearchPath: "/r"})
	u.Upload(context.Background())

	warnings := rec.Messages("warning")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "over 10,000 files")
}

func TestUploadErrorsAreReported(t *testing.T) {
	tests := []struct {
		name    string
		raw     RawInputs
		search  SearchFunc
		client  func() *mockClient
		wantMsg string
	}{
		{
			name:    "invalid inputs",
			raw:     RawInputs{IfNoFilesFound: "nope"},
			search:  fixedSearch(nil, "", nil),
			client:  func() *mockClient { return &mockClient{} },
			wantMsg: "unrecognized ifNoFilesFound input",
		},
		{
			name:    "search failure",
			raw:     RawInputs{SearchPath: "["},
			search:  fixedSearch(nil, "", errors.New("bad pattern")),
			client:  func() *mockClient { return &mockClient{} },
			wantMsg: "bad pattern",
		},
		{
			name:   "client failure",
			raw:    RawInputs{SearchPath: "/r"},
			search: fixedSearch([]string{"/r/a.trx"}, "/r", nil),
			client: func() *mockClient {
				c := &mockClient{}
				c.On("UploadArtifact", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(nil, errors.New("service unavailable"))
				return c
			},
			wantMsg: "service unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &actions.Recorder{}
			u := NewUploader(rec, tt.client(), tt.search, nil, tt.raw)

			assert.NotPanics(t, func() { u.Upload(context.Background()) })

			errs := rec.Messages("error")
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantMsg)
			assert.False(t, rec.Failed())
		})
	}
}

func TestUploadNilSearchResult(t *testing.T) {
	rec := &actions.Recorder{}
	client := &mockClient{}
	empty := func(_ context.Context, _ string, _ *search.Options) (*search.SearchResult, error) {
		return nil, nil
	}

	u := NewUploader(rec, client, empty, nil, RawInputs{SearchPath: "TestResults"})
	assert.NotPanics(t, func() { u.Upload(context.Background()) })

	assert.Equal(t, []string{
		"No files were found with the provided path: TestResults. No artifacts will be uploaded.",
	}, rec.Messages("warning"))
	assert.Empty(t, rec.Messages("error"))
	client.AssertNotCalled(t, "UploadArtifact", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadPassesSearchOptions(t *testing.T) {
	rec := &actions.Recorder{}
	opts := &search.Options{ImplicitDescendants: true, BaseDir: "/work"}
	var got *search.Options
	capture := func(_ context.Context, _ string, o *search.Options) (*search.SearchResult, error) {
		got = o
		return &search.SearchResult{FilesToUpload: []string{}}, nil
	}

	u := NewUploader(rec, &mockClient{}, capture, opts, RawInputs{SearchPath: "TestResults", IfNoFilesFound: "ignore"})
	u.Upload(context.Background())

	assert.Same(t, opts, got)
}
