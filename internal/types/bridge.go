package types

// PostSettlementPayload is the webhook body delivered by the bridge
// attestation layer for an inbound settlement.
type PostSettlementPayload struct {
	SourceDomain uint32 `json:"source_domain"`
	Nonce        uint64 `json:"nonce"`
	Amount       string `json:"amount"`
	Recipient    string `json:"recipient"`
}

// SettlementResponse reports the content hash of a processed settlement.
type SettlementResponse struct {
	MessageHash string `json:"message_hash"`
}

// TransferResponse mirrors one tracked bridge transfer.
type TransferResponse struct {
	TransferID  string `json:"transfer_id"`
	Amount      string `json:"amount"`
	DestDomain  uint32 `json:"dest_domain"`
	Recipient   string `json:"recipient"`
	InitiatedAt int64  `json:"initiated_at"`
	RetryCount  int    `json:"retry_count"`
	Status      string `json:"status"`
}

// PostRetryTransferPayload is the body for retrying a pending transfer.
type PostRetryTransferPayload struct {
	Force bool `json:"force"`
}

// ExpireStaleResponse reports how many transfers were marked failed.
type ExpireStaleResponse struct {
	Expired int `json:"expired"`
}
