package uploadee

// State is a step of a single upload.
type State int

const (
	Idle State = iota
	ReservationRequested
	ReservationObtained
	UploadSubmitted
	FinishPageFetched
	LinkResolved
	Failed
)

var stateNames = [...]string{
	Idle:                 "idle",
	ReservationRequested: "reservation_requested",
	ReservationObtained:  "reservation_obtained",
	UploadSubmitted:      "upload_submitted",
	FinishPageFetched:    "finish_page_fetched",
	LinkResolved:         "link_resolved",
	Failed:               "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == LinkResolved || s == Failed
}
