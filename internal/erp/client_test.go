package erp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/needha-erp/erpdesk/internal/grid"
	"github.com/needha-erp/erpdesk/internal/loss"
)

// newTestClient starts a server running handler and returns a client for it.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	c, err = NewClient(Config{BaseURL: "http://localhost:8080/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.BaseURL())

	_, err = NewClient(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestFetchRows_MapsRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/dull", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"success": true,
			"data": []map[string]any{
				{
					"Name":               "DULL/01/05/2024/1",
					"Issued_Weight__c":   10.25,
					"Issued_Date__c":     "2024-05-01",
					"Returned_weight__c": 10.1,
					"status__c":          "Finished",
					"Dull_loss__c":       0.15,
				},
				{"Name": "DULL/02/05/2024/2", "status__c": "Pending"},
			},
		})
	})

	dept, err := Lookup("dull")
	require.NoError(t, err)
	rows, err := c.FetchRows(context.Background(), dept)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, grid.Row{
		"id":             "DULL/01/05/2024/1",
		"issuedWeight":   10.25,
		"issuedDate":     "2024-05-01",
		"receivedWeight": 10.1,
		"receivedDate":   "-",
		"status":         "Finished",
		"dullLoss":       0.15,
	}, rows[0])
	assert.Equal(t, 0.0, rows[1]["issuedWeight"])
	assert.Equal(t, "-", rows[1]["issuedDate"])
}

func TestFetchRows_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"success": false, "message": "salesforce session expired"})
	})

	_, err := c.FetchRows(context.Background(), Orders)
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "salesforce session expired")
}

func TestFetchRows_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusInternalServerError, map[string]any{"success": false, "error": "db down"})
	})

	_, err := c.FetchRows(context.Background(), Orders)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.Code)
	assert.Equal(t, "db down", se.Body)
}

func TestFetchRows_DataNotAnArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"oops": 1}})
	})

	_, err := c.FetchRows(context.Background(), Orders)
	assert.Error(t, err)
}

func TestPouches(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/polishing/POLISH/01/05/2024/12/pouches", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"pouches": []map[string]any{
					{"Id": "a01", "Name": "POUCH-1", "Issued_Weight_Polishing__c": 5.5, "Received_Weight_Polishing__c": nil},
					{"Id": "a02", "Name": "POUCH-2", "Issued_Weight_Polishing__c": 4.0, "Received_Weight_Polishing__c": 3.9},
				},
			},
		})
	})

	pouches, err := c.Pouches(context.Background(), loss.Polishing, "POLISH/01/05/2024/12")
	require.NoError(t, err)
	assert.Equal(t, []loss.Pouch{
		{ID: "a01", Name: "POUCH-1", Issued: 5.5},
		{ID: "a02", Name: "POUCH-2", Issued: 4.0, Received: 3.9},
	}, pouches)
}

func TestReceive_PostsReconciliation(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/setting/update/SETTING/01/05/2024/3", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		got = decodeBody(t, r)
		writeJSON(t, w, http.StatusOK, map[string]any{"success": true})
	})

	rec := loss.Reconcile(10, []loss.Pouch{{ID: "a01", Issued: 10, Received: 9.9}})
	err := c.Receive(context.Background(), loss.Setting, "SETTING/01/05/2024/3", "2024-05-02", rec)
	require.NoError(t, err)

	assert.Equal(t, "2024-05-02", got["receivedDate"])
	assert.Equal(t, 9.9, got["receivedWeight"])
	assert.Equal(t, 0.1, got["settingLoss"])
	pouches, ok := got["pouches"].([]any)
	require.True(t, ok)
	require.Len(t, pouches, 1)
	assert.Equal(t, map[string]any{"pouchId": "a01", "receivedWeight": 9.9, "settingLoss": 0.1}, pouches[0])
}

func TestReceive_RejectsCasting(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	err := c.Receive(context.Background(), loss.Casting, "01/05/2024/1", "2024-05-02", loss.Reconciliation{})
	assert.Error(t, err)
}

func TestReceiveCasting(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/casting/update/01/05/2024/7", r.URL.Path)
		got = decodeBody(t, r)
		writeJSON(t, w, http.StatusOK, map[string]any{"success": true})
	})

	receipt := loss.CastingReceipt{Ornament: 80, Scrap: 15.5, Dust: 2}
	require.NoError(t, c.ReceiveCasting(context.Background(), "01/05/2024/7", "2024-05-02", 100, receipt))

	assert.Equal(t, 80.0, got["receivedWeight"])
	assert.Equal(t, 15.5, got["scrapReceivedWeight"])
	assert.Equal(t, 2.0, got["dustReceivedWeight"])
	assert.Equal(t, 4.5, got["castingLoss"])
}

func TestIssuedBatchID(t *testing.T) {
	id, err := IssuedBatchID(loss.Setting, "GRIND/01/05/2024/12")
	require.NoError(t, err)
	assert.Equal(t, "SETTING/01/05/2024/12", id)

	id, err = IssuedBatchID(loss.Polishing, " SETTING/01/05/2024/12/ ")
	require.NoError(t, err)
	assert.Equal(t, "POLISH/01/05/2024/12", id)

	id, err = IssuedBatchID(loss.Dull, "POLISH/01/05/2024/12")
	require.NoError(t, err)
	assert.Equal(t, "DULL/01/05/2024/12", id)

	_, err = IssuedBatchID(loss.Dull, "01/05/2024")
	assert.ErrorIs(t, err, ErrInvalidBatch)
	_, err = IssuedBatchID(loss.Dull, "POLISH/01//2024/12")
	assert.ErrorIs(t, err, ErrInvalidBatch)
	_, err = IssuedBatchID(loss.Filing, "CAST/01/05/2024/12")
	assert.ErrorIs(t, err, loss.ErrNoPouchTransfer)
}

func TestIssue_CreatesPendingBatch(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/dull/create", r.URL.Path)
		got = decodeBody(t, r)
		writeJSON(t, w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"dullId": "DULL/01/05/2024/12"}})
	})

	tr := loss.Transfer{Pouches: []loss.PouchWeight{{PouchID: "a01", Weight: 9.8}}, Total: 9.8}
	id, err := c.Issue(context.Background(), loss.Dull, "POLISH/01/05/2024/12", "2024-05-04", tr)
	require.NoError(t, err)
	assert.Equal(t, "DULL/01/05/2024/12", id)

	assert.Equal(t, "DULL/01/05/2024/12", got["dullId"])
	assert.Equal(t, "2024-05-04", got["issuedDate"])
	assert.Equal(t, 9.8, got["totalWeight"])
	assert.Equal(t, "Pending", got["status"])
	assert.Equal(t, []any{map[string]any{"pouchId": "a01", "dullWeight": 9.8}}, got["pouches"])
}

func TestIssue_NoRequestForBadInput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	tr := loss.Transfer{Pouches: []loss.PouchWeight{{PouchID: "a01", Weight: 1}}, Total: 1}

	_, err := c.Issue(context.Background(), loss.Grinding, "FILING/01/05/2024/1", "2024-05-04", tr)
	assert.ErrorIs(t, err, loss.ErrNoPouchTransfer)

	_, err = c.Issue(context.Background(), loss.Setting, "GRIND/01/05/2024/1", "2024-05-04", loss.Transfer{})
	assert.Error(t, err)
}

func TestIssue_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"success": false, "message": "pouch already issued"})
	})
	tr := loss.Transfer{Pouches: []loss.PouchWeight{{PouchID: "a01", Weight: 1}}, Total: 1}

	_, err := c.Issue(context.Background(), loss.Setting, "GRIND/01/05/2024/1", "2024-05-04", tr)
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorContains(t, err, "pouch already issued")
}

func TestApprove(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/update-order-status", r.URL.Path)
		got = decodeBody(t, r)
		writeJSON(t, w, http.StatusOK, map[string]any{"success": true})
	})

	require.NoError(t, c.Approve(context.Background(), "ORD-0042"))
	assert.Equal(t, map[string]any{"orderId": "ORD-0042"}, got)

	assert.Error(t, c.Approve(context.Background(), " "))
}

func TestBatchPath(t *testing.T) {
	p, err := batchPath("/GRIND/01/05/2024/9/")
	require.NoError(t, err)
	assert.Equal(t, "GRIND/01/05/2024/9", p)

	p, err = batchPath("A B/1")
	require.NoError(t, err)
	assert.Equal(t, "A%20B/1", p)

	_, err = batchPath("GRIND//2024")
	assert.ErrorIs(t, err, ErrInvalidBatch)
	_, err = batchPath("")
	assert.ErrorIs(t, err, ErrInvalidBatch)
}

type failingSource struct{ err error }

func (f failingSource) FetchRows(context.Context, Department) ([]grid.Row, error) {
	return nil, f.err
}

func TestLoadRows_FailureYieldsEmptySet(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	rows := LoadRows(context.Background(), failingSource{err: ErrRejected}, Orders, zap.New(core))
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "orders", logs.All()[0].ContextMap()["department"])
}

func TestFind(t *testing.T) {
	rows := []grid.Row{{"id": "A"}, {"id": "B"}}
	r, ok := Find(rows, "B")
	assert.True(t, ok)
	assert.Equal(t, "B", r["id"])

	_, ok = Find(rows, "C")
	assert.False(t, ok)
}
