package modalqueue

import "github.com/sudo-init-do/fieldhub/internal/marketplace"

// TasksFor derives the dialogs viewer still owes a response to on o.
func TasksFor(o marketplace.Order, viewer string) []TaskType {
	var out []TaskType
	isClient := o.ClientUsername == viewer
	isFreelancer := o.FreelancerUsername == viewer

	switch o.Status {
	case marketplace.StatusPending:
		if isFreelancer {
			out = append(out, TaskNewOrder)
		}
	case marketplace.StatusNegotiating:
		if o.Negotiation.CurrentOfferTo == viewer {
			out = append(out, TaskCounterOffer)
		}
	case marketplace.StatusAccepted:
		if isFreelancer && o.ClientLocation != nil && !o.IsReached.Value {
			out = append(out, TaskRemindMarkReached)
		}
		if isClient && o.IsReached.Value && !o.IsReached.Confirmed {
			out = append(out, TaskConfirmArrival)
		}
	case marketplace.StatusCompleted:
		if isClient {
			out = append(out, TaskReviewRequest)
		}
	}
	return out
}

// Rebuild enqueues the dialogs implied by the current order data, typically
// right after a reconnect. It returns how many tasks were added.
func (q *Queue) Rebuild(orders []marketplace.Order, viewer string) int {
	added := 0
	for _, o := range orders {
		for _, t := range TasksFor(o, viewer) {
			if ok, _ := q.Enqueue(t, o); ok {
				added++
			}
		}
	}
	return added
}
