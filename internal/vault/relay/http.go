package relay

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const httpRelayTimeout = 30 * time.Second

// HTTPMailbox talks to an external message-relay endpoint over JSON. The
// relay carries the envelope to the destination domain; authenticity is
// its problem, ordering and replay protection are ours.
type HTTPMailbox struct {
	client  *http.Client
	baseURL string
}

// NewHTTPMailbox creates a mailbox client against the given base URL.
func NewHTTPMailbox(baseURL string) *HTTPMailbox {
	return &HTTPMailbox{
		client:  &http.Client{Timeout: httpRelayTimeout},
		baseURL: baseURL,
	}
}

type dispatchRequest struct {
	DestDomain uint32 `json:"dest_domain"`
	Recipient  string `json:"recipient"`
	Payload    string `json:"payload"`
}

type dispatchResponse struct {
	MessageID string `json:"message_id"`
}

func (m *HTTPMailbox) Dispatch(ctx context.Context, destDomain uint32, recipient common.Address, payload []byte) (common.Hash, error) {
	req := dispatchRequest{
		DestDomain: destDomain,
		Recipient:  recipient.Hex(),
		Payload:    hex.EncodeToString(payload),
	}

	var res dispatchResponse
	if err := m.post(ctx, m.baseURL+"/dispatch", req, &res); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to dispatch via relay")
	}

	return common.HexToHash(res.MessageID), nil
}

type payGasRequest struct {
	MessageID  string `json:"message_id"`
	DestDomain uint32 `json:"dest_domain"`
	Payment    string `json:"payment"`
}

func (m *HTTPMailbox) PayGas(ctx context.Context, messageID common.Hash, destDomain uint32, payment *big.Int) error {
	req := payGasRequest{
		MessageID:  messageID.Hex(),
		DestDomain: destDomain,
		Payment:    payment.String(),
	}

	if err := m.post(ctx, m.baseURL+"/pay-gas", req, nil); err != nil {
		return errors.Wrap(err, "failed to pay relay gas")
	}

	return nil
}

func (m *HTTPMailbox) post(ctx context.Context, url string, body, out interface{}) error {
	return postJSON(ctx, m.client, url, body, out)
}

// HTTPTokenMessenger talks to the external burn/mint bridge endpoint.
type HTTPTokenMessenger struct {
	client  *http.Client
	baseURL string
}

// NewHTTPTokenMessenger creates a token messenger client against the
// given base URL.
func NewHTTPTokenMessenger(baseURL string) *HTTPTokenMessenger {
	return &HTTPTokenMessenger{
		client:  &http.Client{Timeout: httpRelayTimeout},
		baseURL: baseURL,
	}
}

type burnRequest struct {
	Amount     string `json:"amount"`
	DestDomain uint32 `json:"dest_domain"`
	Recipient  string `json:"recipient"`
}

type burnResponse struct {
	BurnTx string `json:"burn_tx"`
}

func (t *HTTPTokenMessenger) Burn(ctx context.Context, amount *big.Int, destDomain uint32, recipient common.Address) (common.Hash, error) {
	req := burnRequest{
		Amount:     amount.String(),
		DestDomain: destDomain,
		Recipient:  recipient.Hex(),
	}

	var res burnResponse
	if err := postJSON(ctx, t.client, t.baseURL+"/burn", req, &res); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to burn via bridge")
	}

	return common.HexToHash(res.BurnTx), nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal relay request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "failed to build relay request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "relay request failed")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		log.Warn().Int("status", res.StatusCode).Str("url", url).Msg("Relay returned non-2xx status")

		return errors.Errorf("relay returned status %d: %s", res.StatusCode, string(snippet))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode relay response")
	}

	return nil
}
