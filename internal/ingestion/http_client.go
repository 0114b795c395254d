package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gpt-load-telemetry/channel-sdk/internal/models"
	"github.com/gpt-load-telemetry/channel-sdk/internal/utils"
	"github.com/sirupsen/logrus"
)

// HTTPIngestionClient is the default Ingestion: it POSTs a batch's records
// as a JSON-ish payload to a fixed endpoint and classifies the outcome the
// the same way an upstream proxy classifies failures, via
// utils.CategorizeError for transport errors and an HTTP status split for
// completed responses.
type HTTPIngestionClient struct {
	endpoint string
	client   *http.Client
	marshal  func(batch *models.PendingBatch) ([]byte, error)

	delegates delegateSet

	mu          sync.Mutex
	ready       bool
	pauseEpoch  uint64
	resumeTimer *time.Timer
}

// NewHTTPIngestionClient returns a ready-to-send client posting to endpoint.
// marshal encodes a batch into a request body; pass nil to use a minimal
// default JSON encoding of record payloads.
func NewHTTPIngestionClient(endpoint string, client *http.Client, marshal func(*models.PendingBatch) ([]byte, error)) *HTTPIngestionClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if marshal == nil {
		marshal = defaultMarshal
	}
	return &HTTPIngestionClient{
		endpoint: endpoint,
		client:   client,
		marshal:  marshal,
		ready:    true,
	}
}

func defaultMarshal(batch *models.PendingBatch) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range batch.Records {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(r.Payload)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// AddDelegate implements Ingestion.
func (c *HTTPIngestionClient) AddDelegate(d Delegate) { c.delegates.add(d) }

// RemoveDelegate implements Ingestion.
func (c *HTTPIngestionClient) RemoveDelegate(d Delegate) { c.delegates.remove(d) }

// IsReadyToSend implements Ingestion.
func (c *HTTPIngestionClient) IsReadyToSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Send implements Ingestion. The network call runs on its own goroutine so
// Send itself never blocks its caller.
func (c *HTTPIngestionClient) Send(batch *models.PendingBatch, token *string, handler func(SendResult)) {
	go c.send(batch, token, handler)
}

func (c *HTTPIngestionClient) send(batch *models.PendingBatch, token *string, handler func(SendResult)) {
	body, err := c.marshal(batch)
	if err != nil {
		handler(SendResult{BatchID: batch.BatchID, Err: err})
		return
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		c.fatal(fmt.Errorf("ingestion: malformed endpoint %q: %w", c.endpoint, err))
		handler(SendResult{BatchID: batch.BatchID, Err: err})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if token != nil {
		req.Header.Set("Authorization", "Bearer "+*token)
		logrus.WithFields(logrus.Fields{"batch_id": batch.BatchID, "token": utils.MaskAPIKey(*token)}).Debug("sending batch")
	} else {
		logrus.WithField("batch_id", batch.BatchID).Debug("sending batch")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		cat := utils.CategorizeError(err)
		logrus.WithFields(logrus.Fields{"batch_id": batch.BatchID, "category": cat.Type}).Warn("ingestion transport error")
		if cat.ShouldRetry {
			c.pause()
		} else {
			c.fatal(err)
		}
		handler(SendResult{BatchID: batch.BatchID, Err: err})
		return
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		handler(SendResult{BatchID: batch.BatchID, StatusCode: resp.StatusCode, Err: readErr})
		return
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		handler(SendResult{BatchID: batch.BatchID, StatusCode: resp.StatusCode, Body: respBody})
		return
	}

	statusErr := fmt.Errorf("ingestion: unexpected status %d", resp.StatusCode)
	switch classifyHTTPStatus(resp.StatusCode) {
	case classifyRecoverable:
		c.pause()
	case classifyFatal:
		c.fatal(statusErr)
	default:
		// non-recoverable: no pause, caller deletes the batch and moves on.
	}
	handler(SendResult{BatchID: batch.BatchID, StatusCode: resp.StatusCode, Body: respBody, Err: statusErr})
}

// pause marks the client not-ready and notifies delegates, then schedules
// an auto-resume after a jittered delay. The delay is always the first
// backoff step (backoffBase plus up to backoffMaxJitter); it does not grow
// across consecutive pauses. A fresh pauseEpoch is
// stamped so a resume triggered externally (e.g. token refresh arriving
// first) cancels the stale timer's effect.
func (c *HTTPIngestionClient) pause() {
	c.mu.Lock()
	wasReady := c.ready
	c.ready = false
	c.pauseEpoch++
	epoch := c.pauseEpoch
	if c.resumeTimer != nil {
		c.resumeTimer.Stop()
	}
	delay := jitteredBackoff(0, func(max time.Duration) time.Duration {
		return time.Duration(utils.GetRand().Int63n(int64(max)))
	})
	c.resumeTimer = time.AfterFunc(delay, func() { c.autoResume(epoch) })
	c.mu.Unlock()

	if wasReady {
		c.notifyPause()
	}
}

func (c *HTTPIngestionClient) autoResume(epoch uint64) {
	c.mu.Lock()
	if c.pauseEpoch != epoch || c.ready {
		c.mu.Unlock()
		return
	}
	c.ready = true
	c.mu.Unlock()
	c.notifyResume()
}

// Resume allows an external signal (a successful token refresh) to lift the
// pause immediately instead of waiting for the backoff timer.
func (c *HTTPIngestionClient) Resume() {
	c.mu.Lock()
	wasReady := c.ready
	c.ready = true
	c.pauseEpoch++
	if c.resumeTimer != nil {
		c.resumeTimer.Stop()
	}
	c.mu.Unlock()

	if !wasReady {
		c.notifyResume()
	}
}

func (c *HTTPIngestionClient) fatal(err error) {
	for _, d := range c.delegates.snapshot() {
		d.IngestionDidReceiveFatalError(c, err)
	}
}

func (c *HTTPIngestionClient) notifyPause() {
	for _, d := range c.delegates.snapshot() {
		d.IngestionDidPause(c)
	}
}

func (c *HTTPIngestionClient) notifyResume() {
	for _, d := range c.delegates.snapshot() {
		d.IngestionDidResume(c)
	}
}
