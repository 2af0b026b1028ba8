package stream

import "encoding/json"

// EnvelopeKind classifies an inbound JSON-RPC message.
type EnvelopeKind int

const (
	// EnvelopeUnrecognized covers malformed JSON and control messages the
	// loop does not care about; these are dropped silently.
	EnvelopeUnrecognized EnvelopeKind = iota
	// EnvelopeAck is a subscription confirmation carrying only an id.
	EnvelopeAck
	// EnvelopeNotification is a transaction notification.
	EnvelopeNotification
)

// Envelope is a decoded inbound message. Exactly one of the kinds holds.
type Envelope struct {
	Kind EnvelopeKind

	// SubscriptionID is set for EnvelopeAck.
	SubscriptionID int64

	// Notification fields, set for EnvelopeNotification.
	Signature string
	// Failed reports a non-null on-chain error: the transaction must be
	// skipped, there is no event to extract.
	Failed bool
	Logs   []string
}

// Wire model for the Helius transactionNotification shape. Every nested
// level is a pointer so partially present objects degrade to an
// Unrecognized envelope instead of an error.
type wsMessage struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	ID      *int64    `json:"id"`
	Result  *int64    `json:"result"`
	Params  *wsParams `json:"params"`
}

type wsParams struct {
	Subscription int64     `json:"subscription"`
	Result       *wsResult `json:"result"`
}

type wsResult struct {
	Signature   string         `json:"signature"`
	Transaction *wsTransaction `json:"transaction"`
}

type wsTransaction struct {
	Meta *wsMeta `json:"meta"`
}

type wsMeta struct {
	Err         json.RawMessage `json:"err"`
	LogMessages []string        `json:"logMessages"`
}

// DecodeEnvelope parses an inbound text frame. It never fails: anything
// that is not a subscription ack or a transaction notification comes back
// as an Unrecognized envelope.
func DecodeEnvelope(data []byte) Envelope {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Envelope{Kind: EnvelopeUnrecognized}
	}

	if msg.Result != nil && msg.Params == nil {
		return Envelope{Kind: EnvelopeAck, SubscriptionID: *msg.Result}
	}

	if msg.Params == nil || msg.Params.Result == nil {
		return Envelope{Kind: EnvelopeUnrecognized}
	}

	result := msg.Params.Result
	env := Envelope{
		Kind:      EnvelopeNotification,
		Signature: result.Signature,
	}

	if result.Transaction != nil && result.Transaction.Meta != nil {
		meta := result.Transaction.Meta
		env.Failed = !isJSONNull(meta.Err)
		env.Logs = meta.LogMessages
	}
	return env
}

// isJSONNull reports whether a raw field was absent or the JSON null value.
func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
