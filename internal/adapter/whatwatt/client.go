package whatwatt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/berfenger/whatwatt2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const (
	STATUS_PATH        = "/api/status"
	MQTT_CONFIG_PATH   = "/api/mqtt/config"
	SYSTEM_CONFIG_PATH = "/api/system/config"
)

// Client talks to the REST API of a WhatWatt GO device. Timeouts come from the
// caller's context.
type Client struct {
	baseUrl    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(deviceIp string, logger *zap.Logger) *Client {
	return NewClientWithBaseUrl(fmt.Sprintf("http://%s", deviceIp), http.DefaultClient, logger)
}

func NewClientWithBaseUrl(baseUrl string, httpClient *http.Client, logger *zap.Logger) *Client {
	return &Client{
		baseUrl:    strings.TrimRight(baseUrl, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) BaseUrl() string {
	return c.baseUrl
}

func (c *Client) Status(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseUrl+STATUS_PATH, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) ConfigureMQTT(ctx context.Context, settings port.MQTTSettings) error {
	return c.postJSON(ctx, MQTT_CONFIG_PATH, settings)
}

func (c *Client) ConfigureSystem(ctx context.Context, settings port.SystemSettings) error {
	return c.postJSON(ctx, SYSTEM_CONFIG_PATH, settings)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) error {
	c.logger.Debug("whatwatt request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", port.ErrDeviceUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", port.ErrDeviceUnavailable, req.Method, req.URL.Path,
			resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ensure interface compliance
var _ port.DeviceAPI = (*Client)(nil)
