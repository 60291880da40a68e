package dts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Transport delivers exported entries to a collector. Different
// implementations can use HTTP, an in-process collector, or a shared
// folder. Transports carry the serialized entry text verbatim —
// re-encoding would break verification.
type Transport interface {
	// SendBatch uploads entries for one device in chain order and
	// returns how many the collector accepted.
	SendBatch(deviceID string, entries []string) (int, error)
}

// Content types understood by the collector's ingest endpoint.
const (
	contentTypeJSONL = "application/x-ndjson"
	contentTypeProto = "application/x-protobuf"
)

// HTTPTransport uploads batches over HTTP/HTTPS.
type HTTPTransport struct {
	BaseURL string       // collector base URL (e.g. "https://collector.example.com")
	Client  *http.Client // customizable timeouts, TLS, etc.

	// UseProto switches the request body from JSONL to the protobuf
	// wire batch. The collector accepts both.
	UseProto bool
}

// NewHTTPTransport creates an HTTP transport for the given collector.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: baseURL,
		Client:  &http.Client{},
	}
}

// SendBatch posts the batch to /api/v1/devices/{id}/entries.
func (t *HTTPTransport) SendBatch(deviceID string, entries []string) (int, error) {
	var body bytes.Buffer
	contentType := contentTypeJSONL
	if t.UseProto {
		contentType = contentTypeProto
		body.Write(MarshalBatch(deviceID, entries))
	} else {
		for _, e := range entries {
			body.WriteString(e)
			body.WriteByte('\n')
		}
	}

	u := fmt.Sprintf("%s/api/v1/devices/%s/entries", t.BaseURL, url.PathEscape(deviceID))
	resp, err := t.Client.Post(u, contentType, &body)
	if err != nil {
		return 0, fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("collector returned %d: %s", resp.StatusCode, msg)
	}

	var out struct {
		Accepted int `json:"accepted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return out.Accepted, nil
}

// LocalTransport delivers batches to an in-process Collector. Useful
// for tests and single-machine deployments where device and collector
// are co-located.
type LocalTransport struct {
	Collector *Collector
}

// NewLocalTransport creates a transport bound to a local collector.
func NewLocalTransport(c *Collector) *LocalTransport {
	return &LocalTransport{Collector: c}
}

// SendBatch ingests the batch directly.
func (t *LocalTransport) SendBatch(deviceID string, entries []string) (int, error) {
	return t.Collector.Ingest(deviceID, entries)
}

// FolderTransport drops batches into a local folder structure, for
// air-gapped deployments where exports travel by removable media.
// Layout:
//
//	{dir}/devices/{deviceID}.jsonl  — appended entry lines, in order
type FolderTransport struct {
	BaseDir string
	mu      sync.Mutex
}

// NewFolderTransport creates the folder structure.
func NewFolderTransport(dir string) (*FolderTransport, error) {
	if err := os.MkdirAll(filepath.Join(dir, "devices"), 0700); err != nil {
		return nil, err
	}
	return &FolderTransport{BaseDir: dir}, nil
}

// SendBatch appends the entries to the device's drop file.
func (t *FolderTransport) SendBatch(deviceID string, entries []string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	path := filepath.Join(t.BaseDir, "devices", deviceID+".jsonl")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	for _, e := range entries {
		if _, err := f.WriteString(e + "\n"); err != nil {
			return 0, fmt.Errorf("write entry: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("sync drop file: %w", err)
	}
	return len(entries), nil
}

// VerifyDevice replays the device's accumulated drop file.
func (t *FolderTransport) VerifyDevice(deviceID string, strict bool) (VerifyResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	path := filepath.Join(t.BaseDir, "devices", deviceID+".jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		return VerifyResult{}, err
	}
	var entries []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			entries = append(entries, line)
		}
	}
	return InspectChain(entries, strict), nil
}
