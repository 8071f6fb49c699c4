package marketplace

// UpdateType names the group of order fields a durable write touches.
type UpdateType string

const (
	UpdateCreate      UpdateType = "create"
	UpdateAccept      UpdateType = "accept"
	UpdateReject      UpdateType = "reject"
	UpdateNegotiation UpdateType = "negotiation"
	UpdateLocation    UpdateType = "location"
	UpdateReached     UpdateType = "reached"
	UpdateArrival     UpdateType = "arrival"
	UpdateCompletion  UpdateType = "completion"
	UpdateCancel      UpdateType = "cancel"
	UpdateSnapshot    UpdateType = "snapshot"
)

// OrderUpdate is a write of one group of fields into both participants'
// durable copies of an order. Order carries the post-mutation state; the
// repository copies only the fields that Type covers into an existing row and
// the whole order into a missing one.
type OrderUpdate struct {
	Type  UpdateType
	Order Order
}

// OrderID is a convenience accessor.
func (u OrderUpdate) OrderID() string { return u.Order.ID }
