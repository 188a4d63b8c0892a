// Package verify provides the default HMAC signature verifier for inbound
// webhook deliveries. The engine depends only on the core.Verifier contract;
// deployments with provider-specific schemes can swap this out entirely.
package verify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-webhook-engine/core"
)

var (
	ErrSecretRequired         = errors.New("verify: signature secret is required")
	ErrSignatureRequired      = errors.New("verify: signature is required")
	ErrSignatureMismatch      = errors.New("verify: signature verification failed")
	ErrTimestampRequired      = errors.New("verify: event timestamp is required within the replay window")
	ErrTimestampOutsideWindow = errors.New("verify: event timestamp outside replay window")
)

// HMACVerifier checks an HMAC-SHA256 signature over the raw payload and
// decodes the event envelope. Header names the transport header the signature
// value was read from; it only shows up in error messages since the engine
// hands the value over directly.
//
// A non-zero ReplayWindow makes the envelope timestamp mandatory and rejects
// deliveries dated outside now±window. The timestamp rides inside the signed
// payload, so a forged timestamp fails the signature check first.
type HMACVerifier struct {
	Secret       string
	Header       string
	Prefix       string
	Encoding     string // hex | base64
	ReplayWindow time.Duration
	Now          func() time.Time
}

// FromConfig builds a verifier from the engine's verification config section.
// The secret is passed separately; it belongs in a secret store, not in
// config files.
func FromConfig(cfg core.VerificationConfig, secret string) HMACVerifier {
	return HMACVerifier{
		Secret:       strings.TrimSpace(secret),
		Header:       strings.TrimSpace(cfg.Header),
		Prefix:       strings.TrimSpace(cfg.Prefix),
		Encoding:     strings.TrimSpace(cfg.Encoding),
		ReplayWindow: cfg.ReplayWindow,
	}
}

func (v HMACVerifier) Verify(_ context.Context, payload []byte, signature string) (core.Event, error) {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return core.Event{}, ErrSecretRequired
	}

	signature = strings.TrimSpace(signature)
	signature = strings.TrimPrefix(signature, strings.TrimSpace(v.Prefix))
	signature = strings.TrimSpace(signature)
	if signature == "" {
		if header := strings.TrimSpace(v.Header); header != "" {
			return core.Event{}, fmt.Errorf("verify: %s signature is required: %w", header, ErrSignatureRequired)
		}
		return core.Event{}, ErrSignatureRequired
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	expected := mac.Sum(nil)

	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(signature)
		if err != nil {
			return core.Event{}, fmt.Errorf("verify: decode base64 signature: %w", err)
		}
		if subtle.ConstantTimeCompare(decoded, expected) != 1 {
			return core.Event{}, ErrSignatureMismatch
		}
	default:
		decoded, err := hex.DecodeString(signature)
		if err != nil {
			return core.Event{}, fmt.Errorf("verify: decode hex signature: %w", err)
		}
		if subtle.ConstantTimeCompare(decoded, expected) != 1 {
			return core.Event{}, ErrSignatureMismatch
		}
	}

	event, timestamp, err := decodeEnvelope(payload)
	if err != nil {
		return core.Event{}, err
	}

	if v.ReplayWindow > 0 {
		if timestamp.IsZero() {
			return core.Event{}, ErrTimestampRequired
		}
		now := v.timestamp()
		if timestamp.Before(now.Add(-v.ReplayWindow)) || timestamp.After(now.Add(v.ReplayWindow)) {
			return core.Event{}, ErrTimestampOutsideWindow
		}
	}

	return event, nil
}

func (v HMACVerifier) timestamp() time.Time {
	if v.Now != nil {
		return v.Now().UTC()
	}
	return time.Now().UTC()
}

// decodeEnvelope maps the delivery body onto a core.Event. Senders disagree
// on field names, so both id/event_id and type/event_type spellings are
// accepted.
func decodeEnvelope(payload []byte) (core.Event, time.Time, error) {
	var envelope struct {
		ID        string          `json:"id"`
		EventID   string          `json:"event_id"`
		Type      string          `json:"type"`
		EventType string          `json:"event_type"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return core.Event{}, time.Time{}, fmt.Errorf("verify: decode event envelope: %w", err)
	}

	eventID := strings.TrimSpace(envelope.ID)
	if eventID == "" {
		eventID = strings.TrimSpace(envelope.EventID)
	}
	if eventID == "" {
		return core.Event{}, time.Time{}, fmt.Errorf("verify: event id is required in payload")
	}

	eventType := strings.TrimSpace(envelope.Type)
	if eventType == "" {
		eventType = strings.TrimSpace(envelope.EventType)
	}

	timestamp, err := parseTimestamp(envelope.Timestamp)
	if err != nil {
		return core.Event{}, time.Time{}, err
	}

	return core.Event{
		ID:      eventID,
		Type:    eventType,
		Payload: payload,
	}, timestamp, nil
}

// parseTimestamp accepts unix seconds (number or numeric string) or RFC 3339.
// An absent timestamp parses to the zero time; the caller decides whether
// that is acceptable.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	value := strings.TrimSpace(string(raw))
	if value == "" || value == "null" {
		return time.Time{}, nil
	}

	if unquoted, err := strconv.Unquote(value); err == nil {
		value = strings.TrimSpace(unquoted)
		if value == "" {
			return time.Time{}, nil
		}
		if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Unix(seconds, 0).UTC(), nil
		}
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("verify: parse event timestamp: %w", err)
		}
		return parsed.UTC(), nil
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Unix(int64(seconds), 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("verify: parse event timestamp: unsupported value %s", value)
}

// SignHex computes the hex HMAC-SHA256 signature for a payload. Intended for
// tests and for senders that need to produce compatible deliveries.
func SignHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignBase64 is SignHex with standard base64 output.
func SignBase64(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

var _ core.Verifier = HMACVerifier{}
