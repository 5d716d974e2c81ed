// test/e2e/e2e_test.go
//
// End-to-end flow against a running dispatch-manager instance. Skipped unless
// E2E_BASE_URL points at one, e.g.
//
//	E2E_BASE_URL=http://localhost:8080 go test ./test/e2e/...
//
// Dispatch endpoints need E2E_ADMIN_TOKEN when the instance has an admin
// token configured.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketflow/internal/models"
)

type client struct {
	baseURL    string
	adminToken string
	http       *http.Client
}

func newClient(t *testing.T) *client {
	t.Helper()
	baseURL := os.Getenv("E2E_BASE_URL")
	if baseURL == "" {
		t.Skip("E2E_BASE_URL not set, skipping end-to-end test")
	}
	return &client{
		baseURL:    baseURL,
		adminToken: os.Getenv("E2E_ADMIN_TOKEN"),
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *client) post(t *testing.T, path string, body interface{}, admin bool, dst interface{}) int {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if admin && c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	return c.do(t, req, dst)
}

func (c *client) get(t *testing.T, path string, dst interface{}) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	require.NoError(t, err)
	return c.do(t, req, dst)
}

func (c *client) do(t *testing.T, req *http.Request, dst interface{}) int {
	t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if dst != nil {
		var envelope struct {
			Success bool            `json:"success"`
			Data    json.RawMessage `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		if envelope.Success && len(envelope.Data) > 0 {
			require.NoError(t, json.Unmarshal(envelope.Data, dst))
		}
	}
	return resp.StatusCode
}

func TestE2E_BookingDispatchFlow(t *testing.T) {
	c := newClient(t)

	serviceID := os.Getenv("E2E_SERVICE_ID")
	if serviceID == "" {
		serviceID = "svc-1"
	}
	recipient := fmt.Sprintf("e2e-%d", time.Now().UnixNano())

	// Book a ticket.
	var ticket models.Ticket
	status := c.post(t, "/api/tickets", map[string]string{
		"recipient":  recipient,
		"org_id":     "org-1",
		"branch_id":  "br-1",
		"service_id": serviceID,
	}, false, &ticket)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, ticket.ID)
	assert.Equal(t, models.StatusWaiting, ticket.Status)

	// The ticket has a position in its partition.
	var pos struct {
		Status               models.Status `json:"status"`
		Position             int           `json:"position"`
		EstimatedWaitMinutes int           `json:"estimated_wait_minutes"`
	}
	status = c.get(t, fmt.Sprintf("/api/tickets/%s/position", ticket.ID), &pos)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.StatusWaiting, pos.Status)
	assert.GreaterOrEqual(t, pos.Position, 1)
	assert.GreaterOrEqual(t, pos.EstimatedWaitMinutes, pos.Position)

	// Drain the pool until our ticket is dispatched. Other tests or live
	// traffic may hold earlier positions.
	var called *models.Ticket
	for i := 0; i < 50; i++ {
		var resp struct {
			Waiting bool           `json:"waiting"`
			Ticket  *models.Ticket `json:"ticket"`
		}
		status = c.post(t, "/api/tickets/actions/call-next", map[string]string{
			"org_id": "org-1", "branch_id": "br-1",
		}, true, &resp)
		require.Equal(t, http.StatusOK, status)
		if !resp.Waiting {
			break
		}
		if resp.Ticket.ID == ticket.ID {
			called = resp.Ticket
			break
		}
	}
	require.NotNil(t, called, "booked ticket was never dispatched")
	assert.Equal(t, models.StatusServing, called.Status)

	// Finish serving.
	var completed models.Ticket
	status = c.post(t, fmt.Sprintf("/api/tickets/%s/status", ticket.ID),
		map[string]string{"status": "completed"}, true, &completed)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.StatusCompleted, completed.Status)

	// Position on a finished ticket reports its status with zeroed rank.
	status = c.get(t, fmt.Sprintf("/api/tickets/%s/position", ticket.ID), &pos)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.StatusCompleted, pos.Status)
	assert.Zero(t, pos.Position)
}

func TestE2E_DirectoryBindFlow(t *testing.T) {
	c := newClient(t)

	recipient := fmt.Sprintf("e2e-dir-%d", time.Now().UnixNano())

	var issued struct {
		Code string `json:"code"`
	}
	status := c.post(t, "/api/directory/code", map[string]string{
		"recipient": recipient,
	}, false, &issued)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, issued.Code, 6)

	status = c.post(t, "/api/directory/bind", map[string]interface{}{
		"recipient": recipient,
		"code":      issued.Code,
		"contact":   map[string]string{"chat_id": "e2e-chat"},
	}, false, nil)
	assert.Equal(t, http.StatusOK, status)
}
