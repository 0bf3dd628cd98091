package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/golang-jwt/jwt/v4"
)

const (
	artifactServicePath = "/twirp/github.actions.results.api.v1.ArtifactService/"
	artifactVersion     = 4
	scopePrefix         = "Actions.Results"
	defaultHTTPTimeout  = 5 * time.Minute
)

var (
	// ErrMissingRuntimeToken is returned when the runtime token is not available.
	ErrMissingRuntimeToken = errors.New("unable to get the ACTIONS_RUNTIME_TOKEN env variable")
	// ErrMissingResultsURL is returned when the results service URL is not available.
	ErrMissingResultsURL = errors.New("unable to get the ACTIONS_RESULTS_URL env variable")
	// ErrInvalidName is returned for artifact names the service would reject.
	ErrInvalidName = errors.New("invalid artifact name")

	invalidNameChars = []string{`"`, ":", "<", ">", "|", "*", "?", "\r", "\n", `\`, "/"}
)

// GitHubClientConfig holds the host settings the artifact service needs.
type GitHubClientConfig struct {
	RuntimeToken string
	ResultsURL   string
}

// GitHubClient talks to the GitHub Actions artifact service.
type GitHubClient struct {
	log        log.Logger
	cfg        GitHubClientConfig
	httpClient *http.Client
}

// NewGitHubClient creates a client. A nil httpClient uses a client with a
// generous timeout.
func NewGitHubClient(logger log.Logger, cfg GitHubClientConfig, httpClient *http.Client) *GitHubClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &GitHubClient{
		log:        logger,
		cfg:        cfg,
		httpClient: httpClient,
	}
}

// ValidateName checks an artifact name against the characters the service rejects.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: artifact name cannot be empty", ErrInvalidName)
	}
	for _, c := range invalidNameChars {
		if strings.Contains(name, c) {
			return fmt.Errorf("%w: name %q contains %q", ErrInvalidName, name, c)
		}
	}
	return nil
}

// backendIDs identify the workflow run and job the artifact belongs to.
type backendIDs struct {
	WorkflowRunBackendID    string
	WorkflowJobRunBackendID string
}

// parseBackendIDs extracts the run and job ids from the runtime token's scope
// claim. The token is issued to the job, so its signature is not checked.
func parseBackendIDs(token string) (backendIDs, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return backendIDs{}, fmt.Errorf("failed to parse runtime token: %w", err)
	}
	scp, ok := claims["scp"].(string)
	if !ok || scp == "" {
		return backendIDs{}, errors.New("runtime token has no scp claim")
	}
	for _, scope := range strings.Fields(scp) {
		parts := strings.Split(scope, ":")
		if len(parts) != 3 || parts[0] != scopePrefix {
			continue
		}
		return backendIDs{WorkflowRunBackendID: parts[1], WorkflowJobRunBackendID: parts[2]}, nil
	}
	return backendIDs{}, errors.New("failed to get backend ids from runtime token")
}

type createArtifactRequest struct {
	WorkflowRunBackendID    string `json:"workflow_run_backend_id"`
	WorkflowJobRunBackendID string `json:"workflow_job_run_backend_id"`
	Name                    string `json:"name"`
	Version                 int    `json:"version"`
	ExpiresAt               string `json:"expires_at,omitempty"`
}

type createArtifactResponse struct {
	OK              bool   `json:"ok"`
	SignedUploadURL string `json:"signed_upload_url"`
}

type finalizeArtifactRequest struct {
	WorkflowRunBackendID    string `json:"workflow_run_backend_id"`
	WorkflowJobRunBackendID string `json:"workflow_job_run_backend_id"`
	Name                    string `json:"name"`
	Size                    string `json:"size"`
	Hash                    string `json:"hash,omitempty"`
}

type finalizeArtifactResponse struct {
	OK         bool       `json:"ok"`
	ArtifactID flexibleID `json:"artifact_id"`
}

// flexibleID accepts an int64 encoded either as a JSON number or as a string.
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid artifact id %s: %w", string(data), err)
	}
	*f = flexibleID(v)
	return nil
}

type twirpError struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// UploadArtifact zips files relative to rootDirectory and uploads the archive
// as a single artifact.
func (c *GitHubClient) UploadArtifact(ctx context.Context, name string, files []string, rootDirectory string, opts UploadOptions) (*UploadResponse, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if c.cfg.RuntimeToken == "" {
		return nil, ErrMissingRuntimeToken
	}
	if c.cfg.ResultsURL == "" {
		return nil, ErrMissingResultsURL
	}
	ids, err := parseBackendIDs(c.cfg.RuntimeToken)
	if err != nil {
		return nil, err
	}

	entries, err := zipEntries(files, rootDirectory)
	if err != nil {
		return nil, err
	}

	createReq := createArtifactRequest{
		WorkflowRunBackendID:    ids.WorkflowRunBackendID,
		WorkflowJobRunBackendID: ids.WorkflowJobRunBackendID,
		Name:                    name,
		Version:                 artifactVersion,
	}
	if opts.RetentionDays > 0 {
		createReq.ExpiresAt = time.Now().UTC().AddDate(0, 0, opts.RetentionDays).Format(time.RFC3339)
	}
	var createResp createArtifactResponse
	if err := c.twirp(ctx, "CreateArtifact", createReq, &createResp); err != nil {
		return nil, err
	}
	if !createResp.OK || createResp.SignedUploadURL == "" {
		return nil, fmt.Errorf("CreateArtifact: response from backend was not ok")
	}

	archive, err := writeZip(ctx, entries)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(archive)
	size := int64(len(archive))
	c.log.Info("Uploading artifact archive", "name", name, "files", len(entries), "bytes", size)

	if err := c.uploadBlob(ctx, createResp.SignedUploadURL, archive); err != nil {
		return nil, err
	}

	finalizeReq := finalizeArtifactRequest{
		WorkflowRunBackendID:    ids.WorkflowRunBackendID,
		WorkflowJobRunBackendID: ids.WorkflowJobRunBackendID,
		Name:                    name,
		Size:                    strconv.FormatInt(size, 10),
		Hash:                    "sha256:" + hex.EncodeToString(sum[:]),
	}
	var finalizeResp finalizeArtifactResponse
	if err := c.twirp(ctx, "FinalizeArtifact", finalizeReq, &finalizeResp); err != nil {
		return nil, err
	}
	if !finalizeResp.OK {
		return nil, fmt.Errorf("FinalizeArtifact: response from backend was not ok")
	}

	c.log.Debug("Artifact finalized", "name", name, "id", int64(finalizeResp.ArtifactID))
	return &UploadResponse{ID: int64(finalizeResp.ArtifactID), Size: size}, nil
}

func (c *GitHubClient) twirp(ctx context.Context, method string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: failed to encode request: %w", method, err)
	}
	url := strings.TrimSuffix(c.cfg.ResultsURL, "/") + artifactServicePath + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.RuntimeToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		var te twirpError
		if json.Unmarshal(data, &te) == nil && te.Msg != "" {
			return fmt.Errorf("%s: %s (%s, status %d)", method, te.Msg, te.Code, resp.StatusCode)
		}
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", method, err)
	}
	return nil
}

func (c *GitHubClient) uploadBlob(ctx context.Context, signedURL string, archive []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, bytes.NewReader(archive))
	if err != nil {
		return fmt.Errorf("failed to create blob upload request: %w", err)
	}
	req.ContentLength = int64(len(archive))
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	req.Header.Set("Content-Type", "application/zip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("blob upload failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("blob upload failed with status %d", resp.StatusCode)
	}
	return nil
}
