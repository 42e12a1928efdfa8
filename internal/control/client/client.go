package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/negwm/negwm/internal/control"
)

const (
	// defaultTimeout is used when the caller does not provide a context deadline.
	defaultTimeout = 3 * time.Second
)

// Client talks to the running negwm daemon over its control socket.
type Client struct {
	socketPath string
}

type (
	// ModuleInfo mirrors the list payload of a module.
	ModuleInfo = control.ModuleInfo
	// StatusReport mirrors the daemon status payload.
	StatusReport = control.StatusReport
)

// New creates a client that connects to the provided socket path. When path is
// empty, the default runtime path is used.
func New(path string) (*Client, error) {
	if path == "" {
		var err error
		path, err = control.DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Client{socketPath: path}, nil
}

// Send issues an arbitrary verb and decodes the payload into out, if any.
func (c *Client) Send(ctx context.Context, module, verb string, args []string, out any) error {
	if module == "" || verb == "" {
		return errors.New("module and verb are required")
	}
	return c.do(ctx, control.Request{Module: module, Verb: verb, Args: args}, out)
}

// List retrieves the tags and windows tracked by module.
func (c *Client) List(ctx context.Context, module string) (ModuleInfo, error) {
	var info ModuleInfo
	if err := c.Send(ctx, module, "list", nil, &info); err != nil {
		return ModuleInfo{}, err
	}
	return info, nil
}

// Status retrieves verb counters and the recent job history.
func (c *Client) Status(ctx context.Context) (StatusReport, error) {
	var report StatusReport
	if err := c.Send(ctx, control.ModuleDaemon, "status", nil, &report); err != nil {
		return StatusReport{}, err
	}
	return report, nil
}

// Reload asks the daemon to reload its configuration for module, or for every
// module when module is empty.
func (c *Client) Reload(ctx context.Context, module string) error {
	if module == "" {
		module = control.ModuleDaemon
	}
	return c.Send(ctx, module, "reload", nil, nil)
}

func (c *Client) do(ctx context.Context, req control.Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", req.Line()); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	var resp control.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != control.StatusOK {
		if resp.Error == "" {
			resp.Error = "unknown control error"
		}
		return errors.New(resp.Error)
	}
	if out == nil || resp.Data == nil {
		return nil
	}
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
