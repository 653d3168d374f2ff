package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lorrc/repair-desk/internal/core/domain"
	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
	"github.com/lorrc/repair-desk/internal/core/ports"
)

// maxBodyBytes bounds how much of a list response is read.
const maxBodyBytes = 32 << 20

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repairdesk_remote_requests_total",
		Help: "Requests to the remote ticket store by operation and outcome",
	}, []string{"operation", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "repairdesk_remote_request_duration_seconds",
		Help:    "Latency of requests to the remote ticket store",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 8, 15, 30},
	}, []string{"operation"})
)

// Config holds the remote endpoint settings.
type Config struct {
	EndpointURL string
	Timeout     time.Duration
}

// Client talks to the spreadsheet endpoint: GET lists every ticket, POST
// upserts one.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.RemoteStore = (*Client)(nil)

// NewClient creates a client. Redirects are followed, which the hosted
// spreadsheet endpoint relies on.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint:   cfg.EndpointURL,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger.With("component", "remote_store"),
	}
}

// upsertPayload flattens the action tag into the ticket object.
type upsertPayload struct {
	Action ports.UpsertAction `json:"action"`
	domain.Ticket
}

// List fetches and decodes the whole collection.
func (c *Client) List(ctx context.Context) ([]domain.Ticket, error) {
	timer := prometheus.NewTimer(requestDuration.WithLabelValues("list"))
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tickets, err := c.list(ctx)
	requestsTotal.WithLabelValues("list", outcomeOf(err)).Inc()
	if err != nil {
		c.logger.WarnContext(ctx, "list request failed", "error", err)
		return nil, err
	}
	return tickets, nil
}

func (c *Client) list(ctx context.Context) ([]domain.Ticket, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRemoteTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &apperrors.RemoteStatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	return DecodeTickets(body)
}

// Upsert posts {action, ...ticket}. Any failure is reported as false.
func (c *Client) Upsert(ctx context.Context, ticket domain.Ticket, action ports.UpsertAction) bool {
	timer := prometheus.NewTimer(requestDuration.WithLabelValues("upsert"))
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.upsert(ctx, ticket, action)
	requestsTotal.WithLabelValues("upsert", outcomeOf(err)).Inc()
	if err != nil {
		c.logger.WarnContext(ctx, "upsert request failed",
			"ticket_id", ticket.ID,
			"action", action,
			"error", err,
		)
		return false
	}
	return true
}

func (c *Client) upsert(ctx context.Context, ticket domain.Ticket, action ports.UpsertAction) error {
	body, err := json.Marshal(upsertPayload{Action: action, Ticket: ticket})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrRemoteFormat, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrRemoteTransport, err)
	}
	// The hosted endpoint reads the raw body; text/plain also avoids a CORS preflight there.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apperrors.RemoteStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Ping checks that the endpoint answers at all.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &apperrors.RemoteStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.ErrRemoteTimeout, err)
	}
	return fmt.Errorf("%w: %w", apperrors.ErrRemoteTransport, err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrRemoteTimeout):
		return "timeout"
	case errors.Is(err, apperrors.ErrRemoteFormat):
		return "format"
	default:
		return "transport"
	}
}
