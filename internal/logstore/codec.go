package logstore

import (
	"encoding/json"
	"fmt"

	"github.com/pscheid92/databoard/internal/domain"
)

// Encode renders the log as an indented JSON array, the human-readable form
// every backend stores.
func Encode(log domain.Log) ([]byte, error) {
	if log == nil {
		log = domain.Log{}
	}
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode log: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a stored document. Anything that is not a JSON array of
// entries is reported as domain.ErrCorruptLog.
func Decode(data []byte) (domain.Log, error) {
	var log domain.Log
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorruptLog, err)
	}
	if log == nil {
		log = domain.Log{}
	}
	return log, nil
}
