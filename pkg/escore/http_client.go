package escore

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// HTTPClient implements Client over net/http against the store's
// POST /api/v1/{verify-api-token,write-events,read-events,observe-events}
// and GET /api/v1/health surface.
//
// observe()'s blocking NDJSON read loop runs entirely inside the call
// goroutine the caller dedicates to it; HTTPClient never spawns a
// background goroutine of its own, so the caller decides the isolation
// (grounded on spec §4.1 "MUST NOT block any thread pool used by other
// client operations" — realized in Go as "the caller picks the goroutine").
type HTTPClient struct {
	baseURI    string
	apiToken   string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewHTTPClient builds an HTTPClient from cfg and immediately verifies the
// configured token against the store, mirroring the teacher's
// constructor-validates-connectivity idiom.
func NewHTTPClient(ctx context.Context, cfg Config, log zerolog.Logger) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURI:  cfg.ServerURI,
		apiToken: cfg.APIToken,
		httpClient: &http.Client{
			Timeout: 0, // observe is long-lived; per-request deadlines come from ctx
		},
		log: log,
	}
	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURI+path, reader)
	if err != nil {
		return nil, newNonTransient("newRequest", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	return req, nil
}

func (c *HTTPClient) Authenticate(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/verify-api-token", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportError("Authenticate", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return newNonTransient("Authenticate", fmt.Errorf("unauthorized: %s", body))
	}
	return mapHTTPStatus("Authenticate", "", resp.StatusCode, body)
}

func (c *HTTPClient) Health(ctx context.Context) (Health, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return Health{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Health{}, mapTransportError("Health", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if err := mapHTTPStatus("Health", "", resp.StatusCode, body); err != nil {
		return Health{}, err
	}
	wh, err := decodeHealth(body)
	if err != nil {
		return Health{}, err
	}
	h := Health{Status: parseHealthStatus(wh.Status), Checks: make([]HealthCheck, len(wh.Checks))}
	for i, c := range wh.Checks {
		h.Checks[i] = HealthCheck{Name: c.Name, Status: parseHealthStatus(c.Status)}
	}
	return h, nil
}

func (c *HTTPClient) Write(ctx context.Context, candidates []EventCandidate, preconditions []Precondition) ([]Event, error) {
	body, err := encodeCandidates(candidates, preconditions)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/write-events", body)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportError("Write", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	subject := ""
	if len(candidates) > 0 {
		subject = candidates[0].Subject
	}
	if err := mapHTTPStatus("Write", subject, resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return decodeWriteResponse(respBody)
}

func (c *HTTPClient) Read(ctx context.Context, subject string, options Options) ([]Event, error) {
	var events []Event
	err := c.ReadStream(ctx, subject, options, func(e Event) error {
		events = append(events, e)
		return nil
	})
	return events, err
}

func (c *HTTPClient) ReadStream(ctx context.Context, subject string, options Options, consume func(Event) error) error {
	if err := options.validateForRead(); err != nil {
		return err
	}
	return c.readOrObserve(ctx, "/api/v1/read-events", "ReadStream", subject, options, consume)
}

func (c *HTTPClient) Observe(ctx context.Context, subject string, options Options, consume func(Event) error) error {
	if err := options.validateForObserve(); err != nil {
		return err
	}
	return c.readOrObserve(ctx, "/api/v1/observe-events", "Observe", subject, options, consume)
}

// readOrObserve drives the shared request/NDJSON-demux logic for read and
// observe; the only difference between the two is which endpoint and
// pre-flight validation apply, per spec §4.1.
func (c *HTTPClient) readOrObserve(ctx context.Context, path, op, subject string, options Options, consume func(Event) error) error {
	body, err := encodeReadRequest(subject, options)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return mapHTTPStatus(op, subject, resp.StatusCode, respBody)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return newInterrupted(op, ctx.Err())
		default:
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		event, ok, err := decodeStreamLine(line)
		if err != nil {
			return err
		}
		if !ok {
			// heartbeat: consumed and discarded without invoking consume.
			c.log.Debug().Str("op", op).Msg("heartbeat")
			continue
		}
		if err := consume(event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return mapTransportError(op, err)
	}
	return nil
}
