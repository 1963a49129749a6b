package donorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the donation analytics backend. Every call returns the
// response body as raw JSON; callers decide how much structure to impose.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// AnalyzeCRM runs AI analysis over the historical CRM dataset.
func (c *Client) AnalyzeCRM(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, "/ai/analyze_crm_only")
}

// AnalyzeExcel2025 runs AI analysis over the current-year dataset.
func (c *Client) AnalyzeExcel2025(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, "/ai/analyze_excel_2025_only")
}

// ComparePeriods runs the cross-period comparison analysis.
func (c *Client) ComparePeriods(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, "/ai/compare_periods")
}

// DonorProfile fetches the profile for one donor key.
func (c *Client) DonorProfile(ctx context.Context, key string) (json.RawMessage, error) {
	return c.getJSON(ctx, "/crm/donator_profile?key="+url.QueryEscape(key))
}

// UploadFile is one file in a multipart upload.
type UploadFile struct {
	Name   string
	Reader io.Reader
}

// UploadResult is the backend's summary of an accepted upload. Unknown
// fields are preserved in Raw.
type UploadResult struct {
	Message string          `json:"message"`
	Added   int64           `json:"added"`
	Raw     json.RawMessage `json:"-"`
}

// UploadExcel sends one or more Excel files to the backend. The optional
// source label tags every uploaded record.
func (c *Client) UploadExcel(ctx context.Context, files []UploadFile, source string) (UploadResult, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.Name)
		if err != nil {
			return UploadResult{}, fmt.Errorf("create form file %s: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return UploadResult{}, fmt.Errorf("copy form file %s: %w", f.Name, err)
		}
	}
	if source != "" {
		if err := w.WriteField("source", source); err != nil {
			return UploadResult{}, fmt.Errorf("write source field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("close multipart writer: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/upload_excel", &body, w.FormDataContentType())
	if err != nil {
		return UploadResult{}, err
	}

	result := UploadResult{Raw: raw}
	if err := json.Unmarshal(raw, &result); err != nil {
		return UploadResult{}, &DecodeError{URL: c.baseURL + "/upload_excel", Err: err}
	}
	return result, nil
}

// ListUploadedSources returns the names the backend currently has data for.
func (c *Client) ListUploadedSources(ctx context.Context) ([]string, error) {
	raw, err := c.getJSON(ctx, "/list_uploaded_sources")
	if err != nil {
		return nil, err
	}

	// The endpoint answers either a bare array or {"sources": [...]}
	// depending on backend version.
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return names, nil
	}
	var wrapped struct {
		Sources []string `json:"sources"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, &DecodeError{URL: c.baseURL + "/list_uploaded_sources", Err: err}
	}
	return wrapped.Sources, nil
}

// DeleteBySource removes every current-year record loaded from a file.
func (c *Client) DeleteBySource(ctx context.Context, filename string) (json.RawMessage, error) {
	return c.postFilename(ctx, "/delete_by_source", filename)
}

// DeleteByIstochnik removes every CRM record tagged with a source label.
func (c *Client) DeleteByIstochnik(ctx context.Context, filename string) (json.RawMessage, error) {
	return c.postFilename(ctx, "/delete_by_istochnik", filename)
}

// ResetAllCRM drops the whole CRM dataset on the backend.
func (c *Client) ResetAllCRM(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/reset_all_crm", nil, "")
}

// ResetAllExcel2025 drops the whole current-year dataset on the backend.
func (c *Client) ResetAllExcel2025(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/reset_all_excel_2025", nil, "")
}

func (c *Client) postFilename(ctx context.Context, path, filename string) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]string{"filename": filename})
	if err != nil {
		return nil, fmt.Errorf("marshal filename: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json")
}

func (c *Client) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil, "")
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (json.RawMessage, error) {
	reqURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", reqURL, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The body is deliberately not inspected: callers collapse every
		// failing status to one user-facing message.
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: reqURL, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}
	if !json.Valid(raw) {
		return nil, &DecodeError{URL: reqURL, Err: fmt.Errorf("invalid JSON body")}
	}
	return json.RawMessage(raw), nil
}
