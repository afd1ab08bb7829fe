package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client is a thin one-shot-per-call wrapper around the socket protocol,
// used by vassistctl: each call dials fresh, writes one line, reads one
// reply line, and closes.
type Client struct {
	Path    string
	Timeout time.Duration
}

func NewClient(path string) *Client {
	if path == "" {
		path = DefaultSocketPath
	}
	return &Client{Path: path, Timeout: 5 * time.Second}
}

// Prompt sends {"prompt": text} and returns the assistant's reply.
func (c *Client) Prompt(text string) (string, error) {
	resp, err := c.roundTrip(request{Prompt: text})
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ipc: %s", resp.Error)
	}
	return resp.Response, nil
}

// Control sends {"control": cmd} (cmd is "interrupt" or "shutdown").
func (c *Client) Control(cmd string) error {
	resp, err := c.roundTrip(request{Control: cmd})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("ipc: %s", resp.Error)
	}
	if !resp.OK {
		return fmt.Errorf("ipc: control %q not acknowledged", cmd)
	}
	return nil
}

func (c *Client) roundTrip(req request) (response, error) {
	conn, err := net.DialTimeout("unix", c.Path, c.Timeout)
	if err != nil {
		return response{}, fmt.Errorf("ipc: dial: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.Timeout))

	line, err := json.Marshal(req)
	if err != nil {
		return response{}, fmt.Errorf("ipc: encode: %w", err)
	}
	line = append(line, '\n')

	if _, err := conn.Write(line); err != nil {
		return response{}, fmt.Errorf("ipc: write: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return response{}, fmt.Errorf("ipc: read: %w", err)
		}
		return response{}, fmt.Errorf("ipc: connection closed without a reply")
	}

	var resp response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return response{}, fmt.Errorf("ipc: decode: %w", err)
	}
	return resp, nil
}
