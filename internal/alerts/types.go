package alerts

import "time"

// Task type constants
const (
	TaskOfflineNotice = "notice:offline"
)

// Queue names
const (
	QueueAlerts = "alerts"
)

// OfflineNoticePayload is queued when a live event could not reach its
// target.
type OfflineNoticePayload struct {
	Username string    `json:"username"`
	Event    string    `json:"event"`
	OrderID  string    `json:"order_id,omitempty"`
	Actor    string    `json:"actor,omitempty"`
	QueuedAt time.Time `json:"queued_at"`
}

// Notification is an in-app notice shown the next time the user is online.
type Notification struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	OrderID   string     `json:"order_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at"`
}

// describe turns a missed live event into notification text.
func describe(p OfflineNoticePayload) (title, body string) {
	who := p.Actor
	if who == "" {
		who = "Someone"
	}
	switch p.Event {
	case "new-order":
		return "New order request", who + " sent you order " + p.OrderID
	case "order-accepted":
		return "Order accepted", who + " accepted order " + p.OrderID
	case "order-rejected":
		return "Order declined", who + " declined order " + p.OrderID
	case "counter-offer":
		return "New counter-offer", who + " made a counter-offer on order " + p.OrderID
	case "location-shared":
		return "Location shared", who + " shared the job location for order " + p.OrderID
	case "freelancer-reached":
		return "Freelancer arrived", who + " marked arrival for order " + p.OrderID + ". Please confirm."
	case "arrival-confirmed":
		return "Arrival answered", who + " answered your arrival on order " + p.OrderID
	case "order-completed":
		return "Order completed", who + " completed order " + p.OrderID + ". Leave a review."
	case "order-cancelled":
		return "Order cancelled", who + " cancelled order " + p.OrderID
	default:
		return "Order update", "Order " + p.OrderID + " changed while you were away"
	}
}
