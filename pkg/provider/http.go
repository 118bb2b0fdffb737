package provider

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/httputil"
)

// HTTPConfig configures an [HTTPProvider].
type HTTPConfig struct {
	// BaseURL is the remote endpoint, e.g. "https://sync.example.com".
	BaseURL string
	// Token is sent as a bearer token when non-empty.
	Token string
	// Timeout bounds each HTTP request. Zero means 30s.
	Timeout time.Duration
	// Logger receives online/offline transitions. Nil means log.Default().
	Logger *log.Logger
}

// HTTPProvider talks the canopy remote protocol (the contract served by
// internal/server). Transport failures and 5xx responses are retried with
// backoff and tracked as offline; 4xx responses fail fast.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger

	mu     sync.RWMutex
	token  string
	online bool
}

// NewHTTPProvider creates a provider for the given endpoint. The provider
// starts optimistic (online) and adjusts from observed transport results.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
		token:   cfg.Token,
		online:  true,
	}
}

// SetToken replaces the bearer token for subsequent requests.
func (p *HTTPProvider) SetToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
}

// Online implements [Provider].
func (p *HTTPProvider) Online() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

func (p *HTTPProvider) setOnline(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online != online {
		if online {
			p.logger.Info("remote is reachable again", "endpoint", p.baseURL)
		} else {
			p.logger.Warn("remote is unreachable", "endpoint", p.baseURL)
		}
	}
	p.online = online
}

func (p *HTTPProvider) applyAuth(req *http.Request) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
}

// ListFiles implements [Provider].
func (p *HTTPProvider) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	var resp ListFilesResponse
	err := p.doJSON(ctx, http.MethodGet, "/v1/folders/"+url.PathEscape(folderID)+"/files", nil, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// CreateFile implements [Provider].
func (p *HTTPProvider) CreateFile(ctx context.Context, folderID, name string, content []byte) (File, error) {
	var resp FilePayload
	req := CreateFileRequest{Name: name, Content: content}
	err := p.doJSON(ctx, http.MethodPost, "/v1/folders/"+url.PathEscape(folderID)+"/files", req, &resp)
	if err != nil {
		return File{}, err
	}
	return resp.File, nil
}

// UpdateFile implements [Provider].
func (p *HTTPProvider) UpdateFile(ctx context.Context, fileID string, content []byte) (File, error) {
	var resp FilePayload
	err := p.doJSON(ctx, http.MethodPut, "/v1/files/"+url.PathEscape(fileID), UpdateFileRequest{Content: content}, &resp)
	if err != nil {
		return File{}, err
	}
	return resp.File, nil
}

// GetFile implements [Provider].
func (p *HTTPProvider) GetFile(ctx context.Context, fileID string) (File, []byte, error) {
	var resp FilePayload
	err := p.doJSON(ctx, http.MethodGet, "/v1/files/"+url.PathEscape(fileID), nil, &resp)
	if err != nil {
		return File{}, nil, err
	}
	return resp.File, resp.Content, nil
}

// TrashFile implements [Provider].
func (p *HTTPProvider) TrashFile(ctx context.Context, fileID string) error {
	return p.doJSON(ctx, http.MethodDelete, "/v1/files/"+url.PathEscape(fileID), nil, nil)
}

// FindOrCreateFolder implements [Provider].
func (p *HTTPProvider) FindOrCreateFolder(ctx context.Context, name string) (string, error) {
	var resp FolderResponse
	err := p.doJSON(ctx, http.MethodPost, "/v1/folders", FolderRequest{Name: name}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// AcquireLock implements [Provider].
func (p *HTTPProvider) AcquireLock(ctx context.Context, vaultID, owner string) error {
	lock := Lock{Owner: owner, AcquiredAt: time.Now().UTC()}
	return p.doJSON(ctx, http.MethodPut, "/v1/vaults/"+url.PathEscape(vaultID)+"/lock", lock, nil)
}

// ReleaseLock implements [Provider].
func (p *HTTPProvider) ReleaseLock(ctx context.Context, vaultID, owner string) error {
	path := "/v1/vaults/" + url.PathEscape(vaultID) + "/lock?owner=" + url.QueryEscape(owner)
	return p.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// GetManifest implements [Provider]. A 404 means the vault has never
// been synced, not a failure.
func (p *HTTPProvider) GetManifest(ctx context.Context, vaultID string) ([]byte, bool, error) {
	var data []byte
	found := true
	err := p.doRaw(ctx, http.MethodGet, "/v1/vaults/"+url.PathEscape(vaultID)+"/manifest", nil, true, func(resp *http.Response) error {
		if resp.StatusCode == http.StatusNotFound {
			found = false
			return nil
		}
		var readErr error
		data, readErr = io.ReadAll(resp.Body)
		return readErr
	})
	if err != nil {
		return nil, false, err
	}
	return data, found, nil
}

// PutManifest implements [Provider].
func (p *HTTPProvider) PutManifest(ctx context.Context, vaultID string, data []byte) error {
	return p.doRaw(ctx, http.MethodPut, "/v1/vaults/"+url.PathEscape(vaultID)+"/manifest", data, false, nil)
}

// doJSON performs a request with a JSON body and decodes a JSON response
// into out (skipped when out is nil).
func (p *HTTPProvider) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "encode request")
		}
	}
	return p.doRaw(ctx, method, path, payload, false, func(resp *http.Response) error {
		if out == nil {
			_, err := io.Copy(io.Discard, resp.Body)
			return err
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

// doRaw performs a request with retry, auth, offline tracking, and status
// classification. handle runs on 2xx responses; a nil handle drains the
// body. With allow404 the handle also sees 404 responses (a missing
// manifest is an answer, not an outage).
func (p *HTTPProvider) doRaw(ctx context.Context, method, path string, body []byte, allow404 bool, handle func(*http.Response) error) error {
	err := httputil.RetryWithBackoff(ctx, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		p.applyAuth(req)

		resp, err := p.client.Do(req)
		if err != nil {
			p.setOnline(false)
			return httputil.Retryable(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			if resp.StatusCode == http.StatusNotFound && allow404 {
				return handle(resp)
			}
			if httputil.RetryableStatus(resp.StatusCode) {
				p.setOnline(false)
				return httputil.Retryable(fmt.Errorf("server error: %d", resp.StatusCode))
			}
			return statusError(resp)
		}

		p.setOnline(true)
		if handle == nil {
			_, err := io.Copy(io.Discard, resp.Body)
			return err
		}
		return handle(resp)
	})
	return p.classify(err, method, path)
}

// statusError maps a non-retryable HTTP status to a coded error, picking
// up the server's message when one is present.
func statusError(resp *http.Response) error {
	msg := resp.Status
	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		msg = body.Error
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.New(errors.ErrCodeUnauthorized, "%s", msg)
	case http.StatusNotFound:
		return errors.New(errors.ErrCodeFileNotFound, "%s", msg)
	case http.StatusConflict, http.StatusLocked:
		return errors.New(errors.ErrCodeLock, "%s", msg)
	default:
		return errors.New(errors.ErrCodeNetwork, "%s", msg)
	}
}

// classify turns exhausted retries and context expiry into coded errors;
// already-coded errors pass through untouched.
func (p *HTTPProvider) classify(err error, method, path string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrCodeTimeout, err, "%s %s", method, path)
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	if httputil.IsRetryable(err) {
		return errors.Wrap(errors.ErrCodeNetwork, err, "%s %s after retries", method, path)
	}
	if errors.GetCode(err) != "" {
		return err
	}
	return errors.Wrap(errors.ErrCodeNetwork, err, "%s %s", method, path)
}

var _ Provider = (*HTTPProvider)(nil)
