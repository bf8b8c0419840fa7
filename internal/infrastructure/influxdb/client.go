package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/order-relay/internal/infrastructure/config"
)

const (
	// defaultHealthTimeout bounds the health check probe.
	defaultHealthTimeout = 5 * time.Second
)

// Client wraps the InfluxDB v2 client with relay-specific helpers.
//
// Writes use the non-blocking API: points are buffered client-side and
// flushed in batches, so recording a metric never delays an HTTP response.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	// onError receives asynchronous write failures (optional).
	onError func(err error)
	errMu   sync.RWMutex

	// closed guards against writes after Close.
	closed bool
	mu     sync.RWMutex
}

// Connect creates an InfluxDB client from configuration.
//
// Returns ErrDisabled when telemetry is turned off; the caller should
// continue without a client. The initial connection is verified with a
// health probe so misconfiguration surfaces at startup rather than as
// silently dropped points.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: url, token, org and bucket are required", ErrInvalidConfig)
	}

	options := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval * 1000))

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	probeCtx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
	defer cancel()
	health, err := client.Health(probeCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("%w: server status %s", ErrConnectionFailed, health.Status)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:      cfg,
	}

	// Drain the async error channel so batched write failures are
	// surfaced instead of blocking the writer.
	go c.watchErrors()

	return c, nil
}

// watchErrors forwards asynchronous write errors to the registered callback.
// The goroutine exits when the write API's error channel is closed by Close.
func (c *Client) watchErrors() {
	for err := range c.writeAPI.Errors() {
		c.errMu.RLock()
		callback := c.onError
		c.errMu.RUnlock()
		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError registers a callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.errMu.Lock()
	c.onError = callback
	c.errMu.Unlock()
}

// HealthCheck probes the InfluxDB server.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return fmt.Errorf("influxdb health check: client closed")
	}
	c.mu.RUnlock()

	health, err := c.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if health.Status != "pass" {
		return fmt.Errorf("influxdb health check: status %s", health.Status)
	}
	return nil
}

// Close flushes buffered points and releases the client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
