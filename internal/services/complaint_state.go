package services

import (
	"github.com/homeserve/marketplace-backend/internal/models"
)

var openComplaint = []models.ComplaintStatus{
	models.ComplaintStatusPending,
	models.ComplaintStatusInvestigating,
}

// complaintTransitions maps each admin action to the statuses it applies
// from and the status it leaves. An empty target keeps the current status.
var complaintTransitions = map[models.ComplaintEvent]struct {
	from []models.ComplaintStatus
	to   models.ComplaintStatus
}{
	models.ComplaintEventInvestigate: {from: []models.ComplaintStatus{models.ComplaintStatusPending}, to: models.ComplaintStatusInvestigating},
	models.ComplaintEventRefund:      {from: openComplaint},
	models.ComplaintEventWarn:        {from: openComplaint},
	models.ComplaintEventResolve:     {from: openComplaint, to: models.ComplaintStatusResolved},
}

// ParseComplaintEvent validates an action name coming from the transport layer
func ParseComplaintEvent(s string) (models.ComplaintEvent, error) {
	e := models.ComplaintEvent(s)
	if _, ok := complaintTransitions[e]; !ok {
		return "", validation("event", "unknown complaint action %q", s)
	}
	return e, nil
}

func nextComplaintStatus(c *models.Complaint, event models.ComplaintEvent) ([]models.ComplaintStatus, models.ComplaintStatus, error) {
	edge, ok := complaintTransitions[event]
	legal := ok
	if ok {
		legal = false
		for _, s := range edge.from {
			if s == c.Status {
				legal = true
				break
			}
		}
	}
	if !legal {
		return nil, "", &InvalidTransitionError{
			Entity: "complaint", ID: c.ID, Event: string(event), CurrentStatus: string(c.Status),
		}
	}

	to := edge.to
	if to == "" {
		to = c.Status
	}
	return edge.from, to, nil
}
