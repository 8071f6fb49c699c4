package coordination

import (
	"time"

	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

// Live event names. Inbound actions reuse the same names the counterparty
// receives.
const (
	EventNewOrder          = "new-order"
	EventOrderAccepted     = "order-accepted"
	EventOrderRejected     = "order-rejected"
	EventCounterOffer      = "counter-offer"
	EventLocationShared    = "location-shared"
	EventFreelancerReached = "freelancer-reached"
	EventArrivalConfirmed  = "arrival-confirmed"
	EventOrderCompleted    = "order-completed"
	EventOrderCancelled    = "order-cancelled"
	EventReviewSubmitted   = "review-submitted"
	EventJobPosted         = "job-posted"
	EventSaveToDatabase    = "save-to-database"
	EventActionAck         = "action-ack"
	EventActionFailed      = "action-failed"
	EventRehydrate         = "rehydrate"
	EventConnect           = "connect"
	EventDisconnect        = "disconnect"
	EventOnlineCount       = "online-count"
)

// OrderEvent is the payload of every order lifecycle event.
type OrderEvent struct {
	OrderID string            `json:"order_id"`
	Actor   string            `json:"actor"`
	Order   marketplace.Order `json:"order"`
	Reason  string            `json:"reason,omitempty"`
}

// Ack tells the initiator its action took effect.
type Ack struct {
	OrderID   string `json:"order_id,omitempty"`
	Action    string `json:"action"`
	Delivered bool   `json:"delivered"`
}

// Failure tells the initiator its action did not take effect.
type Failure struct {
	OrderID string `json:"order_id,omitempty"`
	Action  string `json:"action"`
	Reason  string `json:"reason"`
}

// PresenceNotice is sent to a counterparty when the other side of a live
// order drops its connection.
type PresenceNotice struct {
	Username string `json:"username"`
	OrderID  string `json:"order_id"`
}

// Rehydration carries the orders a reconnecting user still has in flight.
type Rehydration struct {
	Orders []marketplace.Order `json:"orders"`
}

// JobPost is broadcast to online freelancers in the job's city.
type JobPost struct {
	JobID       string    `json:"job_id"`
	Client      string    `json:"client_username"`
	City        string    `json:"city"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Budget      float64   `json:"budget,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	PostedAt    time.Time `json:"posted_at"`
}
