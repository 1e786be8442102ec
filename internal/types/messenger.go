package types

// PostInboundPayload is the webhook body delivered by the message relay
// for an inbound envelope. Raw is the hex-encoded envelope bytes.
type PostInboundPayload struct {
	OriginDomain uint32 `json:"origin_domain"`
	Sender       string `json:"sender"`
	Raw          string `json:"raw"`
}

// InboundResponse reports the id of a processed inbound message.
type InboundResponse struct {
	MessageID string `json:"message_id"`
}

// FailedMessageResponse mirrors one queued outbound message.
type FailedMessageResponse struct {
	ID          int64  `json:"id"`
	MessageType string `json:"message_type"`
	DestDomain  uint32 `json:"dest_domain"`
	Recipient   string `json:"recipient"`
	Attempts    int    `json:"attempts"`
	LastAttempt int64  `json:"last_attempt"`
	Resolved    bool   `json:"resolved"`
}

// PostRetryMessagePayload is the body for retrying a queued message.
type PostRetryMessagePayload struct {
	Force bool `json:"force"`
}
