package durable

import "github.com/sudo-init-do/fieldhub/internal/marketplace"

// updateColumns lists, per update type, the columns copied into an existing
// row. Missing rows are always inserted whole.
var updateColumns = map[marketplace.UpdateType][]string{
	marketplace.UpdateAccept:      {"status", "price", "negotiation"},
	marketplace.UpdateNegotiation: {"status", "negotiation"},
	marketplace.UpdateLocation:    {"client_location"},
	marketplace.UpdateReached:     {"is_reached"},
	marketplace.UpdateArrival:     {"status", "is_reached"},
	marketplace.UpdateCompletion:  {"status", "proof"},
	marketplace.UpdateCancel:      {"status"},
	marketplace.UpdateSnapshot: {
		"status", "price", "currency", "negotiation", "expected_reach_time",
		"is_reached", "client_location", "proof",
	},
}

// merge copies the fields covered by t from src into dst. It mirrors
// updateColumns for the in-memory repository.
func merge(dst *marketplace.Order, src marketplace.Order, t marketplace.UpdateType) {
	src = src.Clone()
	for _, col := range updateColumns[t] {
		switch col {
		case "status":
			dst.Status = src.Status
		case "price":
			dst.Price = src.Price
		case "currency":
			dst.Currency = src.Currency
		case "negotiation":
			dst.Negotiation = src.Negotiation
		case "expected_reach_time":
			dst.ExpectedReachTime = src.ExpectedReachTime
		case "is_reached":
			dst.IsReached = src.IsReached
		case "client_location":
			dst.ClientLocation = src.ClientLocation
		case "proof":
			dst.Proof = src.Proof
		}
	}
	dst.Revision = src.Revision
	dst.LastUpdated = src.LastUpdated
}
