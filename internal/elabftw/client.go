// Package elabftw is a thin client for the parts of the eLabFTW v2 REST
// API the importer consumes: creating entries, uploading attachments
// and patching entry bodies.
package elabftw

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mrlokans/eln-import/internal/record"
)

const defaultTimeout = 60 * time.Second

// API is what the import pipeline needs from the target system. The
// client is passed in as an explicit dependency so tests can substitute
// a fake.
type API interface {
	// CreateEntity creates an experiment or template and returns the id
	// assigned by the server, parsed from the Location header.
	CreateEntity(ctx context.Context, kind record.Kind, title string, tags []string) (int, error)
	// UploadFile attaches a file to an existing entity and returns the
	// server-assigned long-form storage name.
	UploadFile(ctx context.Context, kind record.Kind, entityID int, path, comment string) (string, error)
	// UpdateBody replaces the entity's body.
	UpdateBody(ctx context.Context, kind record.Kind, entityID int, body string) error
}

type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
}

var _ API = (*Client)(nil)

// NewClient builds a client for the API at baseURL, authenticating with
// the given key. Certificate verification is commonly disabled for
// self-hosted instances, mirroring the source setup.
func NewClient(baseURL, key string, verifyTLS bool) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !verifyTLS}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: transport,
		},
	}
}

func (c *Client) CreateEntity(ctx context.Context, kind record.Kind, title string, tags []string) (int, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"title": title,
		"tags":  tags,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode create payload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.entityURL(kind), bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("create request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return 0, &StatusError{Op: "create entity", StatusCode: resp.StatusCode}
	}

	return locationID(resp)
}

func (c *Client) UploadFile(ctx context.Context, kind record.Kind, entityID int, path, comment string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open upload file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read upload file: %w", err)
	}
	if comment != "" {
		if err := writer.WriteField("comment", comment); err != nil {
			return "", fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	uploadsURL := fmt.Sprintf("%s/%d/uploads", c.entityURL(kind), entityID)
	req, err := c.newRequest(ctx, http.MethodPost, uploadsURL, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", &StatusError{Op: "create upload", StatusCode: resp.StatusCode}
	}

	uploadID, err := locationID(resp)
	if err != nil {
		return "", err
	}

	// The storage name is only available by reading the upload back.
	return c.readUploadLongName(ctx, uploadsURL, uploadID)
}

func (c *Client) UpdateBody(ctx context.Context, kind record.Kind, entityID int, body string) error {
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("failed to encode patch payload: %w", err)
	}

	url := fmt.Sprintf("%s/%d", c.entityURL(kind), entityID)
	req, err := c.newRequest(ctx, http.MethodPatch, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("patch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Op: "patch entity", StatusCode: resp.StatusCode}
	}

	return nil
}

func (c *Client) readUploadLongName(ctx context.Context, uploadsURL string, uploadID int) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("%s/%d", uploadsURL, uploadID), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("read upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Op: "read upload", StatusCode: resp.StatusCode}
	}

	var upload struct {
		LongName string `json:"long_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&upload); err != nil {
		return "", fmt.Errorf("failed to decode upload: %w", err)
	}

	return upload.LongName, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.key)
	return req, nil
}

func (c *Client) entityURL(kind record.Kind) string {
	return c.baseURL + "/" + string(kind)
}

// locationID parses the numeric id from the last path segment of the
// Location header.
func locationID(resp *http.Response) (int, error) {
	location := resp.Header.Get("Location")
	if location == "" {
		return 0, ErrMissingLocation
	}

	segment := location[strings.LastIndex(location, "/")+1:]
	id, err := strconv.Atoi(segment)
	if err != nil {
		return 0, fmt.Errorf("failed to parse id from Location %q: %w", location, err)
	}

	return id, nil
}
