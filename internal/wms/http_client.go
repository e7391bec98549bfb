package wms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wms-platform/scheduler-core/internal/platform/apperr"
	"github.com/wms-platform/scheduler-core/internal/platform/resilience"
)

// HTTPClient implements Adapter over a REST WMS, guarded by a circuit
// breaker so adapter outages degrade a single loop cycle rather than
// the whole control service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// NewHTTPClient builds an adapter client against baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration, breaker *resilience.CircuitBreaker) *HTTPClient {
	return &HTTPClient{baseURL: baseURL, client: &http.Client{Timeout: timeout}, breaker: breaker}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	_, err := c.breaker.Execute(ctx, func() (any, error) {
		u := c.baseURL + path
		if query != nil {
			u += "?" + query.Encode()
		}
		var reader *bytes.Reader
		if body != nil {
			b, err := json.Marshal(body)
			if err != nil {
				return nil, apperr.Internal("marshal wms request").Wrap(err)
			}
			reader = bytes.NewReader(b)
		} else {
			reader = bytes.NewReader(nil)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, apperr.Internal("build wms request").Wrap(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, apperr.ServiceUnavailable("wms").Wrap(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, apperr.ServiceUnavailable("wms").WithDetail("status", fmt.Sprintf("%d", resp.StatusCode))
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, apperr.Internal("decode wms response").Wrap(err)
			}
		}
		return nil, nil
	})
	return err
}

func pageQuery(afterID string, limit int) url.Values {
	q := url.Values{}
	if afterID != "" {
		q.Set("after_id", afterID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

func (c *HTTPClient) PageTasks(ctx context.Context, afterID string, limit int) (Page[TaskRecord], error) {
	var out Page[TaskRecord]
	err := c.do(ctx, http.MethodGet, "/tasks", pageQuery(afterID, limit), nil, &out)
	return out, err
}

func (c *HTTPClient) PageWorkers(ctx context.Context, afterID string, limit int) (Page[WorkerRecord], error) {
	var out Page[WorkerRecord]
	err := c.do(ctx, http.MethodGet, "/workers", pageQuery(afterID, limit), nil, &out)
	return out, err
}

func (c *HTTPClient) PageZones(ctx context.Context, afterID string, limit int) (Page[ZoneRecord], error) {
	var out Page[ZoneRecord]
	err := c.do(ctx, http.MethodGet, "/zones", pageQuery(afterID, limit), nil, &out)
	return out, err
}

func (c *HTTPClient) PageCells(ctx context.Context, afterID string, limit int) (Page[CellRecord], error) {
	var out Page[CellRecord]
	err := c.do(ctx, http.MethodGet, "/cells", pageQuery(afterID, limit), nil, &out)
	return out, err
}

func (c *HTTPClient) PageProducts(ctx context.Context, afterID string, limit int) (Page[ProductRecord], error) {
	var out Page[ProductRecord]
	err := c.do(ctx, http.MethodGet, "/products", pageQuery(afterID, limit), nil, &out)
	return out, err
}

func (c *HTTPClient) CurrentPickers(ctx context.Context) ([]PickerStatus, error) {
	var out []PickerStatus
	err := c.do(ctx, http.MethodGet, "/pickers/current", nil, nil, &out)
	return out, err
}

func (c *HTTPClient) CurrentForklifts(ctx context.Context) ([]ForkliftStatus, error) {
	var out []ForkliftStatus
	err := c.do(ctx, http.MethodGet, "/forklifts/current", nil, nil, &out)
	return out, err
}

func (c *HTTPClient) CurrentBuffer(ctx context.Context) (BufferStatus, error) {
	var out BufferStatus
	err := c.do(ctx, http.MethodGet, "/buffer/current", nil, nil, &out)
	return out, err
}

type createTaskRequest struct {
	FromZone string       `json:"fromZone"`
	FromSlot string       `json:"fromSlot"`
	ToZone   string       `json:"toZone"`
	ToSlot   string       `json:"toSlot"`
	PalletID string       `json:"palletId"`
	Priority TaskPriority `json:"priority"`
}

type createTaskResponse struct {
	ID string `json:"id"`
}

func (c *HTTPClient) CreateTask(ctx context.Context, fromZone, fromSlot, toZone, toSlot, palletID string, priority TaskPriority) (string, error) {
	var out createTaskResponse
	err := c.do(ctx, http.MethodPost, "/tasks", nil, createTaskRequest{fromZone, fromSlot, toZone, toSlot, palletID, priority}, &out)
	return out.ID, err
}

func (c *HTTPClient) UpdateTaskStatus(ctx context.Context, taskID string, status int) error {
	return c.do(ctx, http.MethodPatch, "/tasks/"+taskID+"/status", nil, map[string]int{"status": status}, nil)
}

func (c *HTTPClient) ConfirmPalletDelivery(ctx context.Context, palletID string, at time.Time) error {
	return c.do(ctx, http.MethodPost, "/pallets/"+palletID+"/delivered", nil, map[string]time.Time{"at": at}, nil)
}

func (c *HTTPClient) ConfirmPalletConsumed(ctx context.Context, palletID string, at time.Time) error {
	return c.do(ctx, http.MethodPost, "/pallets/"+palletID+"/consumed", nil, map[string]time.Time{"at": at}, nil)
}

func (c *HTTPClient) UpdateForkliftStatus(ctx context.Context, forkliftID, state string) error {
	return c.do(ctx, http.MethodPatch, "/forklifts/"+forkliftID+"/status", nil, map[string]string{"state": state}, nil)
}
