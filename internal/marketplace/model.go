package marketplace

import "time"

// Role is the side of the marketplace a user acts on.
type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleFreelancer
}

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending     Status = "pending"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusNegotiating Status = "negotiating"
	StatusInProgress  Status = "in-progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusDisputed    Status = "disputed"
)

// Negotiation tracks the latest counter-offer on an order.
type Negotiation struct {
	IsNegotiating  bool    `json:"is_negotiating"`
	CurrentOfferTo string  `json:"current_offer_to,omitempty"`
	OfferedPrice   float64 `json:"offered_price,omitempty"`
	LastOfferBy    string  `json:"last_offer_by,omitempty"`
}

// Reach records the freelancer's arrival and the client's confirmation of it.
type Reach struct {
	Value     bool       `json:"value"`
	Time      *time.Time `json:"time,omitempty"`
	Confirmed bool       `json:"confirmed"`
}

// Location is a coordinate shared by the client so the freelancer can travel to it.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// Proof references the artifacts a freelancer attaches when completing an order.
type Proof struct {
	Note    string   `json:"note,omitempty"`
	BlobIDs []string `json:"blob_ids,omitempty"`
}

// Order is the shared shape of an order, used both for the transient copy held
// while parties are connected and for each participant's durable copy.
type Order struct {
	ID                 string      `json:"order_id"`
	ClientUsername     string      `json:"client_username"`
	FreelancerUsername string      `json:"freelancer_username"`
	Description        string      `json:"description,omitempty"`
	City               string      `json:"city,omitempty"`
	Status             Status      `json:"status"`
	Price              float64     `json:"price"`
	Currency           string      `json:"currency,omitempty"`
	Negotiation        Negotiation `json:"negotiation"`
	ExpectedReachTime  *time.Time  `json:"expected_reach_time,omitempty"`
	IsReached          Reach       `json:"is_reached"`
	ClientLocation     *Location   `json:"client_location,omitempty"`
	Proof              *Proof      `json:"proof,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	LastUpdated        time.Time   `json:"last_updated"`
	IsRealtime         bool        `json:"is_realtime"`
	Revision           int64       `json:"revision"`
}

// Clone returns a copy of o that shares no pointers with it.
func (o Order) Clone() Order {
	out := o
	if o.ExpectedReachTime != nil {
		t := *o.ExpectedReachTime
		out.ExpectedReachTime = &t
	}
	if o.IsReached.Time != nil {
		t := *o.IsReached.Time
		out.IsReached.Time = &t
	}
	if o.ClientLocation != nil {
		loc := *o.ClientLocation
		out.ClientLocation = &loc
	}
	if o.Proof != nil {
		p := Proof{Note: o.Proof.Note}
		if o.Proof.BlobIDs != nil {
			p.BlobIDs = append([]string(nil), o.Proof.BlobIDs...)
		}
		out.Proof = &p
	}
	return out
}

// Counterparty returns the other participant of the order, or "" when username
// does not take part in it.
func (o Order) Counterparty(username string) string {
	switch username {
	case o.ClientUsername:
		return o.FreelancerUsername
	case o.FreelancerUsername:
		return o.ClientUsername
	default:
		return ""
	}
}

// HasParticipant reports whether username is the client or the freelancer.
func (o Order) HasParticipant(username string) bool {
	return username != "" && (username == o.ClientUsername || username == o.FreelancerUsername)
}

// Review is a client's rating of a freelancer for a completed order.
type Review struct {
	ID                 string    `json:"id"`
	OrderID            string    `json:"order_id"`
	FreelancerUsername string    `json:"freelancer_username"`
	ClientUsername     string    `json:"client_username"`
	Rating             int       `json:"rating"`
	Comment            string    `json:"comment"`
	CreatedAt          time.Time `json:"created_at"`
}

// RatingSummary aggregates a freelancer's reviews.
type RatingSummary struct {
	FreelancerUsername string      `json:"freelancer_username"`
	TotalReviews       int         `json:"total_reviews"`
	AverageRating      float64     `json:"average_rating"`
	RatingBreakdown    map[int]int `json:"rating_breakdown"`
}

// Summarize folds reviews into a rating summary.
func Summarize(freelancer string, reviews []Review) RatingSummary {
	s := RatingSummary{
		FreelancerUsername: freelancer,
		TotalReviews:       len(reviews),
		RatingBreakdown:    map[int]int{5: 0, 4: 0, 3: 0, 2: 0, 1: 0},
	}
	if len(reviews) == 0 {
		return s
	}
	total := 0
	for _, r := range reviews {
		total += r.Rating
		s.RatingBreakdown[r.Rating]++
	}
	s.AverageRating = float64(total) / float64(len(reviews))
	return s
}
