// Package events writes a best-effort audit trail of ticket mutations into
// Elasticsearch. Indexing failures are logged and never block or fail the
// operation that produced the event.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"ticketflow/internal/common/logger"
	"ticketflow/internal/models"
)

const indexTimeout = 3 * time.Second

// Event is one audit document.
type Event struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	TicketID  string    `json:"ticket_id"`
	OrgID     string    `json:"org_id"`
	BranchID  string    `json:"branch_id"`
	ServiceID string    `json:"service_id"`
	Status    string    `json:"status"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Level     int       `json:"level,omitempty"`
	At        time.Time `json:"at"`
}

type Recorder struct {
	es     *elasticsearch.Client
	logger logger.Logger
	index  string
}

func NewRecorder(es *elasticsearch.Client, index string, log logger.Logger) *Recorder {
	return &Recorder{
		es:     es,
		logger: log.WithFields(map[string]interface{}{"component": "event-recorder"}),
		index:  index,
	}
}

func (r *Recorder) TicketCreated(ctx context.Context, t *models.Ticket) {
	r.record(ctx, Event{Type: "ticket_created", TicketID: t.ID, OrgID: t.OrgID,
		BranchID: t.BranchID, ServiceID: t.ServiceID, Status: string(t.Status)})
}

func (r *Recorder) TicketCalled(ctx context.Context, t *models.Ticket) {
	r.record(ctx, Event{Type: "ticket_called", TicketID: t.ID, OrgID: t.OrgID,
		BranchID: t.BranchID, ServiceID: t.ServiceID, Status: string(t.Status)})
}

func (r *Recorder) TicketStatusChanged(ctx context.Context, t *models.Ticket, from, to models.Status) {
	r.record(ctx, Event{Type: "ticket_status_changed", TicketID: t.ID, OrgID: t.OrgID,
		BranchID: t.BranchID, ServiceID: t.ServiceID, Status: string(t.Status),
		From: string(from), To: string(to)})
}

func (r *Recorder) TicketTransferred(ctx context.Context, t *models.Ticket, newServiceID string) {
	r.record(ctx, Event{Type: "ticket_transferred", TicketID: t.ID, OrgID: t.OrgID,
		BranchID: t.BranchID, ServiceID: newServiceID, Status: string(t.Status)})
}

func (r *Recorder) TicketReminded(ctx context.Context, t *models.Ticket, level int) {
	r.record(ctx, Event{Type: "ticket_reminded", TicketID: t.ID, OrgID: t.OrgID,
		BranchID: t.BranchID, ServiceID: t.ServiceID, Status: string(t.Status), Level: level})
}

func (r *Recorder) record(ctx context.Context, e Event) {
	e.EventID = uuid.New().String()
	e.At = time.Now().UTC()

	body, err := json.Marshal(e)
	if err != nil {
		r.logger.Warn("event marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}

	ictx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	res, err := r.es.Index(
		r.index,
		bytes.NewReader(body),
		r.es.Index.WithContext(ictx),
		r.es.Index.WithDocumentID(e.EventID),
	)
	if err != nil {
		r.logger.Warn("event indexing failed", map[string]interface{}{
			"type":  e.Type,
			"error": err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		r.logger.Warn("event indexing rejected", map[string]interface{}{
			"type":   e.Type,
			"status": res.Status(),
		})
	}
}
