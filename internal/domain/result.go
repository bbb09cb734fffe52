package domain

// DispatchResult is the acknowledgment returned to the send trigger after a
// fanout. Sent + Failed always equals Total, the number of candidates the
// radius query produced.
type DispatchResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}
