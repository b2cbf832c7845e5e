package dto

import "time"

// AdvisorAskRequest is one question sent over the advisor websocket.
type AdvisorAskRequest struct {
	Message string `json:"message" validate:"required,min=1,max=2000"`
}

// AdvisorReplyResponse is the advisor's structured answer.
type AdvisorReplyResponse struct {
	Message       string    `json:"message"`
	Suggestions   []string  `json:"suggestions"`
	RelatedTopics []string  `json:"related_topics"`
	Confidence    float64   `json:"confidence"`
	At            time.Time `json:"at"`
}
