package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/needha-erp/erpdesk/internal/grid"
	"github.com/needha-erp/erpdesk/internal/loss"
	"github.com/needha-erp/erpdesk/internal/util"
)

// DefaultBaseURL is the hosted backend.
const DefaultBaseURL = "https://needha-erp-server.onrender.com"

const defaultTimeout = 30 * time.Second

var (
	// ErrRejected is returned when the backend answers with success=false.
	ErrRejected = errors.New("request rejected by backend")
	// ErrInvalidBatch is returned for batch IDs that cannot form a path.
	ErrInvalidBatch = errors.New("invalid batch id")
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// Config configures a Client. It is passed explicitly; the client reads no
// environment.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is the REST client for the backend.
type Client struct {
	base   string
	client *http.Client
	log    *zap.Logger
}

// NewClient creates a client. An empty BaseURL means DefaultBaseURL.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{base: base, client: hc, log: log.Named("erp")}, nil
}

// BaseURL returns the backend the client talks to.
func (c *Client) BaseURL() string { return c.base }

// envelope is the response wrapper every endpoint uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func (e envelope) reason() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	return "no reason given"
}

// do sends one request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	reqID := util.NewULID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("request_id", reqID),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("request",
		zap.String("request_id", reqID),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && (env.Message != "" || env.Error != "") {
			msg = env.reason()
		}
		return &StatusError{Code: resp.StatusCode, Body: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if !env.Success {
		return fmt.Errorf("%w: %s", ErrRejected, env.reason())
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("unexpected data in response: %w", err)
	}
	return nil
}

// FetchRows lists a department and maps each record to a row.
func (c *Client) FetchRows(ctx context.Context, dept Department) ([]grid.Row, error) {
	var records []map[string]any
	if err := c.do(ctx, http.MethodGet, dept.Path, nil, &records); err != nil {
		return nil, err
	}
	rows := make([]grid.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, dept.MapRecord(rec))
	}
	return rows, nil
}

// batchPath escapes a batch ID such as "POLISH/01/05/2024/12" segment by
// segment so it can be appended to a URL path.
func batchPath(id string) (string, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(id), "/"), "/")
	for i, p := range parts {
		if p == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidBatch, id)
		}
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/"), nil
}

// Pouches returns the pouches of a batch with the weights recorded for stage.
func (c *Client) Pouches(ctx context.Context, stage loss.Stage, batchID string) ([]loss.Pouch, error) {
	p, err := batchPath(batchID)
	if err != nil {
		return nil, err
	}
	var data struct {
		Pouches []map[string]any `json:"pouches"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/"+string(stage)+"/"+p+"/pouches", nil, &data); err != nil {
		return nil, err
	}

	issuedKey := "Issued_Weight_" + stage.Title() + "__c"
	receivedKey := "Received_Weight_" + stage.Title() + "__c"
	pouches := make([]loss.Pouch, 0, len(data.Pouches))
	for _, rec := range data.Pouches {
		pouches = append(pouches, loss.Pouch{
			ID:       grid.Text(rec["Id"]),
			Name:     util.ToValidUTF8(grid.Text(rec["Name"])),
			Issued:   floatOf(rec[issuedKey]),
			Received: floatOf(rec[receivedKey]),
		})
	}
	return pouches, nil
}

func floatOf(v any) float64 {
	f, _ := v.(float64)
	return f
}

type pouchUpdate struct {
	PouchID  string
	Received float64
	Loss     float64
	lossKey  string
}

func (p pouchUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"pouchId":        p.PouchID,
		"receivedWeight": p.Received,
		p.lossKey:        p.Loss,
	})
}

// Receive records the weight returned from a stage, with per-pouch weights.
func (c *Client) Receive(ctx context.Context, stage loss.Stage, batchID, date string, r loss.Reconciliation) error {
	if stage == loss.Casting {
		return fmt.Errorf("casting batches are received with ReceiveCasting")
	}
	p, err := batchPath(batchID)
	if err != nil {
		return err
	}
	pouches := make([]pouchUpdate, len(r.Pouches))
	for i, pl := range r.Pouches {
		pouches[i] = pouchUpdate{PouchID: pl.PouchID, Received: pl.Received, Loss: pl.Loss, lossKey: stage.LossField()}
	}
	body := map[string]any{
		"receivedDate":    date,
		"receivedWeight":  r.Received,
		stage.LossField(): r.Loss,
		"pouches":         pouches,
	}
	return c.do(ctx, http.MethodPost, "/api/"+string(stage)+"/update/"+p, body, nil)
}

// ReceiveCasting records what came back from a casting batch.
func (c *Client) ReceiveCasting(ctx context.Context, batchID, date string, issued float64, r loss.CastingReceipt) error {
	p, err := batchPath(batchID)
	if err != nil {
		return err
	}
	body := map[string]any{
		"receivedDate":        date,
		"receivedWeight":      r.Ornament,
		"scrapReceivedWeight": r.Scrap,
		"dustReceivedWeight":  r.Dust,
		"castingLoss":         loss.CastingLoss(issued, r),
		"castingScrap":        r.Scrap,
		"castingDust":         r.Dust,
	}
	return c.do(ctx, http.MethodPost, "/api/casting/update/"+p, body, nil)
}

// batchPrefixes are the ID prefixes of stages created by a pouch transfer.
var batchPrefixes = map[loss.Stage]string{
	loss.Setting:   "SETTING",
	loss.Polishing: "POLISH",
	loss.Dull:      "DULL",
}

// IssuedBatchID derives the ID of the batch a transfer creates: the source
// batch's date and number under the stage's prefix, so GRIND/01/05/2024/12
// issued to setting becomes SETTING/01/05/2024/12.
func IssuedBatchID(stage loss.Stage, fromBatch string) (string, error) {
	prefix, ok := batchPrefixes[stage]
	if !ok {
		return "", fmt.Errorf("%w: %s", loss.ErrNoPouchTransfer, stage)
	}
	parts := strings.Split(strings.Trim(strings.TrimSpace(fromBatch), "/"), "/")
	if len(parts) < 5 {
		return "", fmt.Errorf("%w: %q: want <PREFIX>/dd/mm/yyyy/n", ErrInvalidBatch, fromBatch)
	}
	tail := parts[len(parts)-4:]
	for _, p := range tail {
		if strings.TrimSpace(p) == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidBatch, fromBatch)
		}
	}
	return prefix + "/" + strings.Join(tail, "/"), nil
}

type pouchIssue struct {
	PouchID   string
	Weight    float64
	weightKey string
}

func (p pouchIssue) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"pouchId":   p.PouchID,
		p.weightKey: p.Weight,
	})
}

// Issue creates a stage batch from the pouches of fromBatch and returns the
// new batch ID. The batch starts out Pending.
func (c *Client) Issue(ctx context.Context, stage loss.Stage, fromBatch, date string, t loss.Transfer) (string, error) {
	id, err := IssuedBatchID(stage, fromBatch)
	if err != nil {
		return "", err
	}
	if len(t.Pouches) == 0 {
		return "", fmt.Errorf("no pouches to issue from %s", fromBatch)
	}
	pouches := make([]pouchIssue, len(t.Pouches))
	for i, p := range t.Pouches {
		pouches[i] = pouchIssue{PouchID: p.PouchID, Weight: p.Weight, weightKey: stage.WeightField()}
	}
	body := map[string]any{
		string(stage) + "Id": id,
		"issuedDate":         date,
		"pouches":            pouches,
		"totalWeight":        t.Total,
		"status":             "Pending",
	}
	if err := c.do(ctx, http.MethodPost, "/api/"+string(stage)+"/create", body, nil); err != nil {
		return "", err
	}
	return id, nil
}

// Approve marks an order approved.
func (c *Client) Approve(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return fmt.Errorf("order id is required")
	}
	return c.do(ctx, http.MethodPost, "/api/update-order-status", map[string]string{"orderId": orderID}, nil)
}
