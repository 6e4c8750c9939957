package engine

import (
	"bytes"
	"context"
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
)

// RemoteEngine talks to a GPU inference sidecar over HTTP: one multipart
// POST per document, ordered pages back as JSON. One RemoteEngine per
// endpoint; the runner gives each endpoint its own worker because the model
// behind it is not shareable across concurrent calls.
type RemoteEngine struct {
	endpoint  string
	device    string
	pageBatch int
	client    *http.Client
}

// NewRemoteEngine returns an engine bound to one inference endpoint. The
// timeout bounds a single document round-trip; the batch deadline set by the
// runner still applies on top.
func NewRemoteEngine(endpoint, device string, pageBatch int, timeout time.Duration) *RemoteEngine {
	return &RemoteEngine{
		endpoint:  strings.TrimRight(endpoint, "/"),
		device:    device,
		pageBatch: pageBatch,
		client:    &http.Client{Timeout: timeout},
	}
}

func (r *RemoteEngine) Name() string { return "remote:" + r.endpoint }

// Extract posts each document of the batch to the endpoint and streams the
// returned pages into emit.
func (r *RemoteEngine) Extract(ctx context.Context, batch []Source, emit PageSink) ([]Result, error) {
	return runBatch(ctx, batch, emit, r.extractOne)
}

type remotePage struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type remoteResponse struct {
	Pages []remotePage `json:"pages"`
}

func (r *RemoteEngine) extractOne(ctx context.Context, src Source, emit PageSink) (int, error) {
	body, contentType, err := r.encodeRequest(src)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/extract", body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("engine returned %s: %s", resp.Status, bytes.TrimSpace(detail))
	}

	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("failed to decode engine response: %w", err)
	}

	emitted := 0
	for _, pg := range decoded.Pages {
		if pg.Index < 1 {
			return emitted, fmt.Errorf("engine returned page index %d", pg.Index)
		}
		if err := emit(src, Page{Index: pg.Index, Text: pg.Text}); err != nil {
			return emitted, &sinkFault{err: err}
		}
		emitted++
	}
	return emitted, nil
}

func (r *RemoteEngine) encodeRequest(src Source) (*bytes.Buffer, string, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", src.Path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(src.Path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", src.Path, err)
	}
	if err := w.WriteField("device", r.device); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("batchsize", strconv.Itoa(r.pageBatch)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
