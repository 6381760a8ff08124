package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/glyphwheel/internal/engine"
	"github.com/lazypower/glyphwheel/internal/store"
)

const (
	DefaultServerURL = "http://127.0.0.1:37780"
	httpTimeout      = 10 * time.Second
)

// Client talks to a running glyphwheel server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty URL uses GLYPHWHEEL_URL,
// falling back to DefaultServerURL.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("GLYPHWHEEL_URL")
	}
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: strings.TrimRight(serverURL, "/"),
	}
}

// URL returns the server base URL.
func (c *Client) URL() string { return c.serverURL }

// Post sends a POST request with JSON body. Returns response body.
func (c *Client) Post(path string, body []byte) ([]byte, error) {
	resp, err := c.http.Post(c.serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	return readBody("POST", path, resp)
}

// Get sends a GET request. Returns response body.
func (c *Client) Get(path string) ([]byte, error) {
	resp, err := c.http.Get(c.serverURL + path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return readBody("GET", path, resp)
}

func readBody(method, path string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// StatusError is returned for 4xx and 5xx responses.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
}

func errorMessage(data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) postJSON(path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
	}
	data, err := c.Post(path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) getJSON(path string, out any) error {
	data, err := c.Get(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Status fetches the server's graph status.
func (c *Client) Status() (engine.Status, error) {
	var st engine.Status
	err := c.getJSON("/api/status", &st)
	return st, err
}

// Stress runs a stress operation. A refusal is a successful call; check
// Report.Refused.
func (c *Client) Stress(intensity float64, cycles int) (engine.Report, error) {
	var rep engine.Report
	err := c.postJSON("/api/stress", map[string]any{"intensity": intensity, "cycles": cycles}, &rep)
	return rep, err
}

// Recover runs a recovery operation.
func (c *Client) Recover(cycles int) (engine.Report, error) {
	var rep engine.Report
	err := c.postJSON("/api/recovery", map[string]int{"cycles": cycles}, &rep)
	return rep, err
}

// Recalibrate runs a recalibration operation.
func (c *Client) Recalibrate(cycles int) (engine.Report, error) {
	var rep engine.Report
	err := c.postJSON("/api/recalibrate", map[string]int{"cycles": cycles}, &rep)
	return rep, err
}

// AddNodeRequest mirrors the POST /api/nodes body.
type AddNodeRequest struct {
	Name      string   `json:"name"`
	Stability *float64 `json:"stability,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Archetype string   `json:"archetype,omitempty"`
}

// AddNode creates a node and returns it as stored.
func (c *Client) AddNode(req AddNodeRequest) (engine.NodeView, error) {
	var resp struct {
		Node engine.NodeView `json:"node"`
	}
	err := c.postJSON("/api/nodes", req, &resp)
	return resp.Node, err
}

// Signal feeds a percentage change into a signal node.
func (c *Client) Signal(name string, changePct float64) (engine.SignalView, error) {
	var v engine.SignalView
	err := c.postJSON("/api/signals", map[string]any{"name": name, "change_pct": changePct}, &v)
	return v, err
}

// CorrelatePattern creates a pattern node linking two signal nodes.
func (c *Client) CorrelatePattern(name, a, b string, strength float64) (engine.NodeView, error) {
	var resp struct {
		Node engine.NodeView `json:"node"`
	}
	err := c.postJSON("/api/patterns", map[string]any{"name": name, "a": a, "b": b, "strength": strength}, &resp)
	return resp.Node, err
}

// Predict reads a signal's trend and linked patterns as a prediction.
func (c *Client) Predict(signal string) (engine.Prediction, error) {
	var p engine.Prediction
	err := c.getJSON("/api/signals/"+url.PathEscape(signal)+"/prediction", &p)
	return p, err
}

// Ghosts lists ghosts: the live registry, or the recorded history.
func (c *Client) Ghosts(history bool, limit int) ([]engine.Ghost, error) {
	q := url.Values{}
	if history {
		q.Set("history", "1")
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/ghosts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Ghosts []engine.Ghost `json:"ghosts"`
	}
	err := c.getJSON(path, &resp)
	return resp.Ghosts, err
}

// Snapshots lists the most recent saved snapshots.
func (c *Client) Snapshots(limit int) ([]store.Snapshot, error) {
	var resp struct {
		Snapshots []store.Snapshot `json:"snapshots"`
	}
	err := c.getJSON("/api/snapshots?limit="+strconv.Itoa(limit), &resp)
	return resp.Snapshots, err
}

// SaveSnapshot asks the server to persist its current status.
func (c *Client) SaveSnapshot() (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	err := c.postJSON("/api/snapshots", nil, &resp)
	return resp.ID, err
}
