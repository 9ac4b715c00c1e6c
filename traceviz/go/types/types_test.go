package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Connect_Success(t *testing.T) {
	msg, err := Decode([]byte(`{"action":"connect","clientId":"c1","vizId":"v1"}`))
	require.NoError(t, err)
	assert.Equal(t, Connect{ClientID: "c1", VizID: "v1"}, msg)
}

func TestDecode_ConnectMissingClientID_ReturnsError(t *testing.T) {
	_, err := Decode([]byte(`{"action":"connect","vizId":"v1"}`))
	require.Error(t, err)
}

func TestDecode_Initialize_Success(t *testing.T) {
	msg, err := Decode([]byte(`{"action":"initialize","info":{"x":[0,1,2]},"traces":{"a":{"y":[1,2,3],"outliers":[false,true,false],"slope":1,"intercept":0,"inlier_std":0.5}}}`))
	require.NoError(t, err)
	init, ok := msg.(Initialize)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, 2}, init.Info.Xs)
	require.Len(t, init.Traces, 1)
	assert.Equal(t, Trace{
		Ys:        []float64{1, 2, 3},
		Outliers:  []bool{false, true, false},
		Slope:     1,
		Intercept: 0,
		InlierStd: 0.5,
	}, init.Traces["a"])
}

func TestDecode_InitializeWithoutTraces_YieldsEmptyMap(t *testing.T) {
	msg, err := Decode([]byte(`{"action":"initialize","info":{"x":[]}}`))
	require.NoError(t, err)
	init, ok := msg.(Initialize)
	require.True(t, ok)
	assert.NotNil(t, init.Traces)
	assert.Empty(t, init.Traces)
}

func TestDecode_PutTraceWithoutTrace_ReturnsError(t *testing.T) {
	_, err := Decode([]byte(`{"action":"putTrace","tId":"a"}`))
	require.Error(t, err)
}

func TestDecode_SaveHTML_Success(t *testing.T) {
	msg, err := Decode([]byte(`{"action":"saveHTML"}`))
	require.NoError(t, err)
	assert.Equal(t, SaveHTML{}, msg)
}

func TestDecode_UnknownAction_ReturnsErrUnknownAction(t *testing.T) {
	_, err := Decode([]byte(`{"action":"frobnicate"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownAction))
}

func TestDecode_MalformedJSON_ReturnsError(t *testing.T) {
	_, err := Decode([]byte(`{`))
	require.Error(t, err)
}

func TestEncode_RoundTripsEveryAction(t *testing.T) {
	messages := []Message{
		Connect{ClientID: "c1", VizID: "v1"},
		Disconnect{ClientID: "c1", VizID: "v1"},
		Initialize{Info: Info{Xs: []float64{0, 1}}, Traces: map[string]Trace{"a": {Ys: []float64{5}, Outliers: []bool{true}, Slope: 2, Intercept: 1, InlierStd: 0.1}}},
		PutTrace{TraceID: "a", Trace: Trace{Ys: []float64{1}, Outliers: []bool{false}}},
		RemoveTrace{TraceID: "a"},
		SaveHTML{},
		Save{ClientID: "c1", VizID: "v1", Content: "<html></html>"},
	}
	for _, msg := range messages {
		b, err := Encode(msg)
		require.NoError(t, err, "encoding %q", msg.Action())
		decoded, err := Decode(b)
		require.NoError(t, err, "decoding %q", msg.Action())
		assert.Equal(t, msg, decoded)
	}
}
