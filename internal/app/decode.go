package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/pscheid92/databoard/internal/domain"
)

// maxSafeInteger is the largest integer a client-side timestamp can carry
// without losing precision.
const maxSafeInteger = 1<<53 - 1

// decodeMessage parses an inbound frame envelope.
func decodeMessage(raw []byte) (domain.InboundMessage, error) {
	var msg domain.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.InboundMessage{}, fmt.Errorf("%w: malformed frame: %w", domain.ErrInvalidRequest, err)
	}
	if msg.Event == "" {
		return domain.InboundMessage{}, fmt.Errorf("%w: missing event name", domain.ErrInvalidRequest)
	}
	return msg, nil
}

// decodeSubmission extracts a submit_threshold payload. Numeric fields keep
// their text: strings are taken as-is, numbers are rendered back to text, and
// any other kind becomes empty text, which parses as the non-numeric marker.
func decodeSubmission(data json.RawMessage) (domain.Submission, error) {
	var fields map[string]json.RawMessage
	if len(data) > 0 && !isNull(data) {
		if err := json.Unmarshal(data, &fields); err != nil {
			return domain.Submission{}, fmt.Errorf("%w: submission must be an object", domain.ErrInvalidRequest)
		}
	}

	var sub domain.Submission
	if raw, ok := fields["word"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &sub.Word); err != nil {
			return domain.Submission{}, fmt.Errorf("%w: word must be a string", domain.ErrInvalidRequest)
		}
	}
	sub.Density = numericText(fields["density"])
	sub.Repetition = numericText(fields["repetition"])
	sub.Distortion = numericText(fields["distortion"])
	return sub, nil
}

func numericText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return ""
		}
		return numberText(f)
	default:
		return ""
	}
}

// decodeTimestamp extracts a delete_entry payload: a JSON number with an
// integral value. Strings never match a stored timestamp and are rejected.
func decodeTimestamp(data json.RawMessage) (int64, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == '"' || isNull(data) {
		return 0, fmt.Errorf("%w: timestamp must be an integer", domain.ErrInvalidRequest)
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, fmt.Errorf("%w: timestamp must be an integer", domain.ErrInvalidRequest)
	}
	if ts, err := n.Int64(); err == nil {
		return ts, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > maxSafeInteger {
		return 0, fmt.Errorf("%w: timestamp must be an integer", domain.ErrInvalidRequest)
	}
	return int64(f), nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
