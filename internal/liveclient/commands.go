package liveclient

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sudo-init-do/fieldhub/internal/coordination"
	"github.com/sudo-init-do/fieldhub/internal/marketplace"
	"github.com/sudo-init-do/fieldhub/internal/modalqueue"
)

var ErrBadCommand = errors.New("liveclient: bad command")

// Defaults fill fields a typed command leaves out.
type Defaults struct {
	City     string
	Currency string
}

// Usage lists the commands understood by ParseCommand.
const Usage = `commands:
  order <freelancer> <price> <description...>
  accept <order> [price]
  reject <order> [reason...]
  counter <order> <price>
  location <order> <lat> <lng> [address...]
  reached <order>
  confirm <order> yes|no
  complete <order> [note...]
  cancel <order> [reason...]
  review <order> <rating> [comment...]
  job <budget> <title...>`

// ParseCommand turns one typed line into an outbound event.
func ParseCommand(line string, def Defaults) (string, any, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("%w: empty line", ErrBadCommand)
	}
	verb, args := fields[0], fields[1:]
	rest := func(from int) string {
		if len(args) <= from {
			return ""
		}
		return strings.Join(args[from:], " ")
	}
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%w: %s needs %d arguments", ErrBadCommand, verb, n)
		}
		return nil
	}

	switch verb {
	case "order":
		if err := need(3); err != nil {
			return "", nil, err
		}
		price, err := parseAmount(args[1])
		if err != nil {
			return "", nil, err
		}
		return coordination.EventNewOrder, coordination.SendOrderRequest{
			OrderID:            uuid.NewString(),
			FreelancerUsername: args[0],
			Price:              price,
			Description:        rest(2),
			City:               def.City,
			Currency:           def.Currency,
		}, nil
	case "accept":
		if err := need(1); err != nil {
			return "", nil, err
		}
		req := coordination.AcceptRequest{OrderID: args[0]}
		if len(args) > 1 {
			price, err := parseAmount(args[1])
			if err != nil {
				return "", nil, err
			}
			req.Price = price
		}
		return coordination.EventOrderAccepted, req, nil
	case "reject":
		if err := need(1); err != nil {
			return "", nil, err
		}
		return coordination.EventOrderRejected, coordination.RejectRequest{OrderID: args[0], Reason: rest(1)}, nil
	case "counter":
		if err := need(2); err != nil {
			return "", nil, err
		}
		price, err := parseAmount(args[1])
		if err != nil {
			return "", nil, err
		}
		return coordination.EventCounterOffer, coordination.CounterOfferRequest{OrderID: args[0], OfferedPrice: price}, nil
	case "location":
		if err := need(3); err != nil {
			return "", nil, err
		}
		lat, err1 := strconv.ParseFloat(args[1], 64)
		lng, err2 := strconv.ParseFloat(args[2], 64)
		if err := errors.Join(err1, err2); err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrBadCommand, err)
		}
		return coordination.EventLocationShared, coordination.LocationRequest{
			OrderID: args[0], Lat: lat, Lng: lng, Address: rest(3),
		}, nil
	case "reached":
		if err := need(1); err != nil {
			return "", nil, err
		}
		return coordination.EventFreelancerReached, coordination.ReachedRequest{OrderID: args[0]}, nil
	case "confirm":
		if err := need(2); err != nil {
			return "", nil, err
		}
		return coordination.EventArrivalConfirmed, coordination.ArrivalRequest{OrderID: args[0], Confirmed: yes(args[1])}, nil
	case "complete":
		if err := need(1); err != nil {
			return "", nil, err
		}
		return coordination.EventOrderCompleted, coordination.CompleteRequest{OrderID: args[0], Note: rest(1)}, nil
	case "cancel":
		if err := need(1); err != nil {
			return "", nil, err
		}
		return coordination.EventOrderCancelled, coordination.CancelRequest{OrderID: args[0], Reason: rest(1)}, nil
	case "review":
		if err := need(2); err != nil {
			return "", nil, err
		}
		rating, err := strconv.Atoi(args[1])
		if err != nil {
			return "", nil, fmt.Errorf("%w: rating %q", ErrBadCommand, args[1])
		}
		return coordination.EventReviewSubmitted, coordination.ReviewRequest{OrderID: args[0], Rating: rating, Comment: rest(2)}, nil
	case "job":
		if err := need(2); err != nil {
			return "", nil, err
		}
		budget, err := parseAmount(args[0])
		if err != nil {
			return "", nil, err
		}
		return coordination.EventJobPosted, coordination.PostJobRequest{
			JobID: uuid.NewString(), City: def.City, Title: rest(1), Budget: budget, Currency: def.Currency,
		}, nil
	}
	return "", nil, fmt.Errorf("%w: unknown command %q", ErrBadCommand, verb)
}

// Reply interprets an answer typed while a dialog is open. ok is false when
// the answer only dismisses the dialog.
func Reply(task modalqueue.Task, line string) (event string, payload any, ok bool) {
	o, found := orderOf(task.Data)
	fields := strings.Fields(line)
	if !found || len(fields) == 0 {
		return "", nil, false
	}
	answer, args := strings.ToLower(fields[0]), fields[1:]

	switch task.Type {
	case modalqueue.TaskNewOrder, modalqueue.TaskCounterOffer:
		switch answer {
		case "a":
			req := coordination.AcceptRequest{OrderID: o.ID}
			if len(args) > 0 {
				if p, err := parseAmount(args[0]); err == nil {
					req.Price = p
				}
			}
			return coordination.EventOrderAccepted, req, true
		case "r":
			return coordination.EventOrderRejected, coordination.RejectRequest{OrderID: o.ID, Reason: strings.Join(args, " ")}, true
		case "c":
			if len(args) == 0 {
				return "", nil, false
			}
			p, err := parseAmount(args[0])
			if err != nil {
				return "", nil, false
			}
			return coordination.EventCounterOffer, coordination.CounterOfferRequest{
				OrderID:            o.ID,
				OfferedPrice:       p,
				ClientUsername:     o.ClientUsername,
				FreelancerUsername: o.FreelancerUsername,
				Currency:           o.Currency,
				Description:        o.Description,
				City:               o.City,
			}, true
		}
	case modalqueue.TaskRemindMarkReached:
		if yes(answer) {
			return coordination.EventFreelancerReached, coordination.ReachedRequest{OrderID: o.ID}, true
		}
	case modalqueue.TaskConfirmArrival:
		if yes(answer) || answer == "n" || answer == "no" {
			return coordination.EventArrivalConfirmed, coordination.ArrivalRequest{OrderID: o.ID, Confirmed: yes(answer)}, true
		}
	case modalqueue.TaskReviewRequest:
		rating, err := strconv.Atoi(answer)
		if err != nil {
			return "", nil, false
		}
		return coordination.EventReviewSubmitted, coordination.ReviewRequest{
			OrderID: o.ID, Rating: rating, Comment: strings.Join(args, " "),
		}, true
	}
	return "", nil, false
}

// Describe renders a dialog as a line of text.
func Describe(task modalqueue.Task) string {
	o, ok := orderOf(task.Data)
	if !ok {
		if p, isNotice := task.Data.(coordination.PresenceNotice); isNotice {
			return fmt.Sprintf("[%s] %s went offline (order %s)", task.Type, p.Username, p.OrderID)
		}
		return fmt.Sprintf("[%s]", task.Type)
	}

	price := o.Price
	if o.Negotiation.IsNegotiating {
		price = o.Negotiation.OfferedPrice
	}
	var hint string
	switch task.Type {
	case modalqueue.TaskNewOrder, modalqueue.TaskCounterOffer:
		hint = "a [price] accept, r [reason] reject, c <price> counter"
	case modalqueue.TaskRemindMarkReached:
		hint = "y when you have reached the client"
	case modalqueue.TaskConfirmArrival:
		hint = "y to confirm arrival, n to dispute"
	case modalqueue.TaskReviewRequest:
		hint = "<1-5> [comment] to review"
	default:
		hint = "enter to dismiss"
	}
	return fmt.Sprintf("[%s] order %s %s -> %s %.2f %s status=%s\n  %s",
		task.Type, o.ID, o.ClientUsername, o.FreelancerUsername, price, o.Currency, o.Status, hint)
}

func orderOf(data any) (marketplace.Order, bool) {
	switch v := data.(type) {
	case coordination.OrderEvent:
		return v.Order, v.Order.ID != ""
	case marketplace.Order:
		return v, v.ID != ""
	}
	return marketplace.Order{}, false
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: amount %q", ErrBadCommand, s)
	}
	return v, nil
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "y" || s == "yes"
}
