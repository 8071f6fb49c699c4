package coordination

import (
	"time"

	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

// Actor is the authenticated user behind an inbound event.
type Actor struct {
	Username string
	Role     marketplace.Role
	City     string
}

type SendOrderRequest struct {
	OrderID            string     `json:"order_id"`
	FreelancerUsername string     `json:"freelancer_username"`
	Description        string     `json:"description"`
	City               string     `json:"city"`
	Price              float64    `json:"price"`
	Currency           string     `json:"currency"`
	ExpectedReachTime  *time.Time `json:"expected_reach_time,omitempty"`
}

type AcceptRequest struct {
	OrderID string `json:"order_id"`
	// Price, when set, must equal the current offer or list price.
	Price float64 `json:"price,omitempty"`
}

type RejectRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

// CounterOfferRequest carries enough of the order to rebuild it when the
// transient copy is missing.
type CounterOfferRequest struct {
	OrderID            string  `json:"order_id"`
	OfferedPrice       float64 `json:"offered_price"`
	ClientUsername     string  `json:"client_username"`
	FreelancerUsername string  `json:"freelancer_username"`
	Currency           string  `json:"currency,omitempty"`
	Description        string  `json:"description,omitempty"`
	City               string  `json:"city,omitempty"`
}

type LocationRequest struct {
	OrderID string  `json:"order_id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

type ReachedRequest struct {
	OrderID string `json:"order_id"`
}

type ArrivalRequest struct {
	OrderID   string `json:"order_id"`
	Confirmed bool   `json:"confirmed"`
}

type CompleteRequest struct {
	OrderID string   `json:"order_id"`
	Note    string   `json:"note,omitempty"`
	BlobIDs []string `json:"blob_ids,omitempty"`
}

type ReviewRequest struct {
	OrderID string `json:"order_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

type CancelRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

type PostJobRequest struct {
	JobID       string  `json:"job_id"`
	City        string  `json:"city,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Budget      float64 `json:"budget,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}

// Outcome reports what a handler did.
type Outcome struct {
	Order     marketplace.Order
	Delivered bool
}
