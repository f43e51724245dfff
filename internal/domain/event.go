package domain

import "encoding/json"

// Inbound event names (client → server).
const (
	EventSubmitThreshold = "submit_threshold"
	EventClearAllData    = "clear_all_data"
	EventDeleteEntry     = "delete_entry"
)

// Outbound event names (server → client).
const (
	EventLoadHistory     = "load_history"
	EventNewDataPoint    = "new_data_point"
	EventDataCleared     = "data_cleared"
	EventEntryDeleted    = "entry_deleted"
	EventOperationFailed = "operation_failed"
)

// Message is an outbound frame: {"event": ..., "data": ...}.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// InboundMessage is a frame received from a client. Data is decoded per event.
type InboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Submission carries the raw text of a submit_threshold payload. Numeric fields
// keep the client's text so parsing follows one set of rules regardless of
// whether the client sent a string or a number.
type Submission struct {
	Word       string
	Density    string
	Repetition string
	Distortion string
}

// OperationFailure is the payload of operation_failed, sent only to the
// connection whose request failed.
type OperationFailure struct {
	Event string `json:"event"`
	Error string `json:"error"`
	Type  string `json:"type"`
}

// LoadHistoryMessage wraps the full log for a newly connected channel.
func LoadHistoryMessage(log Log) Message {
	if log == nil {
		log = Log{}
	}
	return Message{Event: EventLoadHistory, Data: log}
}

func NewDataPointMessage(entry Entry) Message {
	return Message{Event: EventNewDataPoint, Data: entry}
}

func DataClearedMessage() Message {
	return Message{Event: EventDataCleared}
}

func EntryDeletedMessage(timestamp int64) Message {
	return Message{Event: EventEntryDeleted, Data: timestamp}
}

func OperationFailedMessage(failure OperationFailure) Message {
	return Message{Event: EventOperationFailed, Data: failure}
}
