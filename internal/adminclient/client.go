// Package adminclient is the typed HTTP client for the daemon's admin
// surface, used by bridge-tui.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/contextbridge/bridged/internal/admin"
	"github.com/contextbridge/bridged/internal/instructionlog"
	"github.com/contextbridge/bridged/internal/session"
	"github.com/contextbridge/bridged/internal/wsbridge"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

func (c *Client) Status(ctx context.Context) (admin.Status, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/admin/status", nil)
	if err != nil {
		return admin.Status{}, err
	}
	var out admin.Status
	if err := c.doJSON(req, &out); err != nil {
		return admin.Status{}, err
	}
	return out, nil
}

func (c *Client) ListClients(ctx context.Context) ([]session.ClientInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/admin/clients", nil)
	if err != nil {
		return nil, err
	}
	var out []session.ClientInfo
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]wsbridge.SessionInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/admin/sessions", nil)
	if err != nil {
		return nil, err
	}
	var out []wsbridge.SessionInfo
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RecentInstructions(ctx context.Context, limit int) ([]instructionlog.Record, error) {
	path := "/admin/instructions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out []instructionlog.Record
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DisconnectClient(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/admin/clients/disconnect?id="+url.QueryEscape(id), nil)
	if err != nil {
		return err
	}
	return c.doNoBody(req)
}

func (c *Client) DisconnectSession(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/admin/sessions/disconnect?id="+url.QueryEscape(id), nil)
	if err != nil {
		return err
	}
	return c.doNoBody(req)
}

func (c *Client) GetConfig(ctx context.Context) (admin.ConfigPayload, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/admin/config", nil)
	if err != nil {
		return admin.ConfigPayload{}, err
	}
	var out admin.ConfigPayload
	if err := c.doJSON(req, &out); err != nil {
		return admin.ConfigPayload{}, err
	}
	return out, nil
}

func (c *Client) SetConfig(ctx context.Context, payload admin.ConfigPayload) (admin.ConfigPayload, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return admin.ConfigPayload{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPut, "/admin/config", bytes.NewReader(body))
	if err != nil {
		return admin.ConfigPayload{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out admin.ConfigPayload
	if err := c.doJSON(req, &out); err != nil {
		return admin.ConfigPayload{}, err
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("admin request failed: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) doNoBody(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("admin request failed: %s", resp.Status)
	}
	return nil
}
