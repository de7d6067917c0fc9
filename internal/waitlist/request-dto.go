package waitlist

// JoinRequest enters the caller into an event waitlist
type JoinRequest struct {
	EventID  string `json:"event_id" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}
