// Package robotapi is the HTTP client for the service robot's onboard
// control API: status, the robot-side speech pipeline, saved poses,
// table navigation, and delivery status updates.
package robotapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/robotwaiter/kiosk/internal/httpc"
)

// DefaultPort is the control API port assumed when an address carries
// no port of its own.
const DefaultPort = "8080"

// ErrNoAddress is returned when no robot address is configured yet.
var ErrNoAddress = errors.New("robotapi: robot address not set")

// APIError is a non-200 response from the robot.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("robotapi: %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("robotapi: %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Status is the robot's self-reported state.
type Status struct {
	MovementStatus   string   `json:"movement_status"`
	NavigationStatus string   `json:"navigation_status"`
	CurrentTable     string   `json:"current_table"`
	TargetDistance   *float64 `json:"target_distance"`
	WaitingAtTable   bool     `json:"waiting_at_table"`
	IsSTTActive      bool     `json:"is_stt_active"`
	RobotID          string   `json:"robot_id"`
}

// Pose is a saved navigation pose.
type Pose struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Yaw         float64 `json:"yaw"`
}

// Table is a serveable table known to the robot.
type Table struct {
	Name string `json:"name"`
}

// DockPoseName is the saved pose the robot returns to between guests.
const DockPoseName = "dock"

// Client talks to one robot. The zero address state is legal: the
// kiosk boots without a robot and acquires the address through the
// setup flow; every call fails with ErrNoAddress until then.
type Client struct {
	client *http.Client
	logger *slog.Logger
	port   string

	mu      sync.RWMutex
	address string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l.With("component", "robotapi") }
}

// WithAddress presets the robot address, used in tests and when the
// address comes from configuration rather than the setup flow.
func WithAddress(addr string) Option {
	return func(c *Client) { c.address = addr }
}

// WithPort sets the API port used when an address names only a host.
func WithPort(port string) Option {
	return func(c *Client) {
		if port != "" {
			c.port = port
		}
	}
}

// NewClient creates a robot API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		client: httpc.NewClient(httpc.DefaultTimeout),
		logger: slog.Default().With("component", "robotapi"),
		port:   DefaultPort,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAddress points the client at a robot. The caller is expected to
// have verified the address with Probe first.
func (c *Client) SetAddress(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = strings.TrimSpace(addr)
}

// ClearAddress forgets the robot, typically after a network failure
// invalidates the stored address.
func (c *Client) ClearAddress() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = ""
}

// Address returns the configured robot address, empty when unset.
func (c *Client) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

// HasAddress reports whether a robot address is configured.
func (c *Client) HasAddress() bool {
	return c.Address() != ""
}

// url builds an endpoint URL for the configured robot.
func (c *Client) url(path string) (string, error) {
	addr := c.Address()
	if addr == "" {
		return "", ErrNoAddress
	}
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%s", addr, c.port)
	}
	return fmt.Sprintf("http://%s/api/robot/%s", addr, path), nil
}

// Probe checks that the given address answers the status endpoint,
// without changing the configured address.
func (c *Client) Probe(ctx context.Context, addr string) (*Status, error) {
	probe := &Client{client: c.client, logger: c.logger, port: c.port, address: strings.TrimSpace(addr)}
	return probe.Status(ctx)
}

// Status fetches the robot's current state.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.get(ctx, "status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// STTStart tells the robot the guest conversation is live, so its own
// speech pipeline stays out of the way.
func (c *Client) STTStart(ctx context.Context) error {
	return c.post(ctx, "stt_start", map[string]bool{"is_speaking": true}, nil)
}

// STTStop tells the robot the conversation is over.
func (c *Client) STTStop(ctx context.Context) error {
	return c.post(ctx, "stt_stop", map[string]bool{"is_speaking": false}, nil)
}

// Poses fetches the robot's saved navigation poses.
func (c *Client) Poses(ctx context.Context) ([]Pose, error) {
	var body struct {
		SetPoses []Pose `json:"set_poses"`
	}
	if err := c.get(ctx, "set_poses", &body); err != nil {
		return nil, err
	}
	if body.SetPoses == nil {
		return nil, fmt.Errorf("robotapi: malformed poses response")
	}
	return body.SetPoses, nil
}

// NavigateToPose sends the robot to an absolute pose.
func (c *Client) NavigateToPose(ctx context.Context, x, y, yaw float64) error {
	return c.post(ctx, "set_pose", map[string]float64{"x": x, "y": y, "yaw": yaw}, nil)
}

// Tables fetches the tables the robot can serve.
func (c *Client) Tables(ctx context.Context) ([]Table, error) {
	var body struct {
		Success bool    `json:"success"`
		Tables  []Table `json:"tables"`
	}
	if err := c.get(ctx, "tables", &body); err != nil {
		return nil, err
	}
	if !body.Success || body.Tables == nil {
		return nil, fmt.Errorf("robotapi: malformed tables response")
	}
	return body.Tables, nil
}

// NavigateToTable sends the robot to a named table.
func (c *Client) NavigateToTable(ctx context.Context, tableName string) error {
	return c.post(ctx, "navigate_table", map[string]string{"table_name": tableName}, nil)
}

// UpdateStatus reports a delivery milestone for the robot's current
// table. Status is "reached" or "completed".
func (c *Client) UpdateStatus(ctx context.Context, currentTable, robotID, status string) error {
	return c.post(ctx, "update-status/", map[string]string{
		"current_table": currentTable,
		"robot_name":    robotID,
		"status":        status,
	}, nil)
}

// Dock sends the robot back to its dock pose, marking the current
// delivery completed first when a table is known. Milestone failures
// are logged, not fatal: the robot going home matters more than the
// bookkeeping.
func (c *Client) Dock(ctx context.Context, status *Status) error {
	if status != nil && status.CurrentTable != "" && status.CurrentTable != DockPoseName {
		if err := c.UpdateStatus(ctx, status.CurrentTable, status.RobotID, "completed"); err != nil {
			c.logger.Warn("delivery completion update failed", "error", err, "table", status.CurrentTable)
		}
	}
	return c.NavigateToTable(ctx, DockPoseName)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	url, err := c.url(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, path, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	url, err := c.url(path)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("robotapi: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Message:    strings.TrimSpace(string(msg)),
		}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("robotapi: decode %s response: %w", path, err)
		}
	}
	return nil
}
