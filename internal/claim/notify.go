package claim

import (
	"context"
	"log/slog"
	"net/http"
)

// StatusRejected is the HTTP status used for expected refusals (too far,
// already claimed). Existing clients depend on it.
const StatusRejected = http.StatusMultipleChoices

const (
	MsgClaimed        = "POI claimed successfully"
	MsgTooFar         = "Too far away"
	MsgAlreadyClaimed = "POI already claimed"
	MsgNotFound       = "POI not found"
)

// Message is the HTTP body for a claim outcome.
type Message struct {
	Message        string  `json:"message"`
	TeamID         string  `json:"teamId,omitempty"`
	PointsAwarded  int     `json:"pointsAwarded,omitempty"`
	TeamScore      int     `json:"teamScore,omitempty"`
	DistanceMeters float64 `json:"distanceMeters,omitempty"`
}

// Notifier maps claim outcomes to the HTTP contract and announces
// successful claims to connected clients.
type Notifier struct {
	broadcaster Broadcaster
	logger      *slog.Logger
}

func NewNotifier(logger *slog.Logger, b Broadcaster) *Notifier {
	return &Notifier{broadcaster: b, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, o Outcome) (int, Message) {
	switch o.Status {
	case StatusSuccess:
		n.publish(ctx, Event{Type: EventPOIClaimed, POIID: o.POIID, TeamID: o.TeamID})
		return http.StatusOK, Message{
			Message:       MsgClaimed,
			TeamID:        o.TeamID,
			PointsAwarded: o.PointsAwarded,
			TeamScore:     o.TeamTotal,
		}
	case StatusTooFar:
		return StatusRejected, Message{Message: MsgTooFar, DistanceMeters: o.DistanceMeters}
	case StatusAlreadyClaimed:
		return StatusRejected, Message{Message: MsgAlreadyClaimed}
	case StatusNotFound:
		return http.StatusNotFound, Message{Message: MsgNotFound}
	default:
		n.logger.Error("unknown claim outcome", "status", o.Status.String(), "poi_id", o.POIID)
		return http.StatusInternalServerError, Message{Message: "internal error"}
	}
}

// publish never fails the claim; the POI is already committed.
func (n *Notifier) publish(ctx context.Context, e Event) {
	if n.broadcaster == nil {
		return
	}
	if err := n.broadcaster.Publish(ctx, e); err != nil {
		n.logger.Warn("broadcast failed", "type", e.Type, "poi_id", e.POIID, "error", err)
	}
}
