package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   Number
		want string
	}{
		{"finite", Number(0.5), "0.5"},
		{"integer", Number(3), "3"},
		{"nan", NotANumber(), "null"},
		{"infinity", Number(math.Inf(1)), "null"},
		{"negative zero", Number(math.Copysign(0, -1)), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestNumber_UnmarshalNullIsMarker(t *testing.T) {
	var p Params
	require.NoError(t, json.Unmarshal([]byte(`{"density":null,"repetition":4,"distortion":1.25}`), &p))

	assert.False(t, p.Density.Valid())
	assert.True(t, math.IsNaN(float64(p.Density)))
	assert.Equal(t, Number(4), p.Repetition)
	assert.Equal(t, Number(1.25), p.Distortion)
}

func TestNumber_Equal(t *testing.T) {
	assert.True(t, NotANumber().Equal(NotANumber()))
	assert.True(t, Number(1.5).Equal(1.5))
	assert.False(t, NotANumber().Equal(0))
	assert.False(t, Number(1).Equal(2))
}

func TestLog_DiffTreatsMarkersAsEqual(t *testing.T) {
	e := Entry{ID: "c1", Timestamp: 1, Word: "x", Params: Params{Density: NotANumber(), Repetition: 2, Distortion: NotANumber()}}

	data, err := json.Marshal(Log{e})
	require.NoError(t, err)
	var decoded Log
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Empty(t, cmp.Diff(Log{e}, decoded))

	other := e
	other.Params.Repetition = NotANumber()
	assert.NotEmpty(t, cmp.Diff(Log{e}, Log{other}))
}

func TestNumber_UnmarshalRejectsStrings(t *testing.T) {
	var n Number
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &n))
}

func TestEntry_JSONFieldNames(t *testing.T) {
	entry := Entry{
		ID:        "conn-1",
		Timestamp: 1000,
		Word:      "ok",
		Params:    Params{Density: 0.5, Repetition: NotANumber(), Distortion: 2},
		Analysis:  Analysis{Sentiment: 0, WordCount: 1, HasEmotionalWords: false, Category: CategoryNeutral},
	}

	data, err := json.Marshal(entry)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"id": "conn-1",
		"timestamp": 1000,
		"word": "ok",
		"params": {"density": 0.5, "repetition": null, "distortion": 2},
		"analysis": {"sentiment": 0, "wordCount": 1, "hasEmotionalWords": false, "category": "neutral"}
	}`, string(data))
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"empty history is an array", LoadHistoryMessage(nil), `{"event":"load_history","data":[]}`},
		{"cleared has no data", DataClearedMessage(), `{"event":"data_cleared"}`},
		{"deleted carries timestamp", EntryDeletedMessage(1000), `{"event":"entry_deleted","data":1000}`},
		{
			"operation failed",
			OperationFailedMessage(OperationFailure{Event: EventDeleteEntry, Error: "boom", Type: "internal"}),
			`{"event":"operation_failed","data":{"event":"delete_entry","error":"boom","type":"internal"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}
