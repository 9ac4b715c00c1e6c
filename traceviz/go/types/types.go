// Package types defines the data model and the wire protocol of the live
// trace visualization bridge.
//
// A viz is a single shared view of a running model, identified by a viz id.
// Each connected viewer tab is identified by a client id. The backend streams
// trace snapshots to every viewer of a viz, and any viewer can be asked to
// serialize its rendered state back to the backend.
package types

import (
	"encoding/json"
	"errors"

	"github.com/probviz/probviz/go/skerr"
)

// Info is the static per-viz context shared by every trace. It is set once by
// an Initialize message and is immutable for the lifetime of the viz.
type Info struct {
	// Xs holds the independent-variable values common to every trace.
	Xs []float64 `json:"x"`
}

// Trace is one sampled execution of a probabilistic model: per-observation
// values, per-observation outlier flags, and the fitted scalar parameters
// used to draw a regression line and its uncertainty band.
type Trace struct {
	Ys        []float64 `json:"y"`
	Outliers  []bool    `json:"outliers"`
	Slope     float64   `json:"slope"`
	Intercept float64   `json:"intercept"`
	InlierStd float64   `json:"inlier_std"`
}

// Action names one variant of the wire protocol.
type Action string

const (
	ActionConnect     Action = "connect"
	ActionDisconnect  Action = "disconnect"
	ActionInitialize  Action = "initialize"
	ActionPutTrace    Action = "putTrace"
	ActionRemoveTrace Action = "removeTrace"
	ActionSaveHTML    Action = "saveHTML"
	ActionSave        Action = "save"
)

// ErrUnknownAction is returned by Decode for envelopes whose action is not
// part of the protocol. Callers log and ignore such messages, they are never
// fatal to a session.
var ErrUnknownAction = errors.New("unknown action")

// Message is the closed set of protocol messages. Exactly one concrete type
// exists per action.
type Message interface {
	// Action returns the wire name of the message.
	Action() Action
}

// Connect registers a session. Sent client to server as the first message on
// a new connection.
type Connect struct {
	ClientID string
	VizID    string
}

// Disconnect deregisters a session. Sent client to server during teardown,
// fire-and-forget.
type Disconnect struct {
	ClientID string
	VizID    string
}

// Initialize replaces a viewer's entire store. Sent server to client.
type Initialize struct {
	Info   Info
	Traces map[string]Trace
}

// PutTrace upserts one trace. Sent server to client.
type PutTrace struct {
	TraceID string
	Trace   Trace
}

// RemoveTrace deletes one trace. Removing an unknown id is a no-op. Sent
// server to client.
type RemoveTrace struct {
	TraceID string
}

// SaveHTML asks a viewer to export its current rendered state. Sent server to
// client.
type SaveHTML struct{}

// Save delivers an exported HTML snapshot. Sent client to server in response
// to SaveHTML.
type Save struct {
	ClientID string
	VizID    string
	Content  string
}

func (Connect) Action() Action     { return ActionConnect }
func (Disconnect) Action() Action  { return ActionDisconnect }
func (Initialize) Action() Action  { return ActionInitialize }
func (PutTrace) Action() Action    { return ActionPutTrace }
func (RemoveTrace) Action() Action { return ActionRemoveTrace }
func (SaveHTML) Action() Action    { return ActionSaveHTML }
func (Save) Action() Action        { return ActionSave }

// envelope is the raw JSON form of every protocol message. Fields not used by
// a given action are omitted on the wire.
type envelope struct {
	Action   Action           `json:"action"`
	ClientID string           `json:"clientId,omitempty"`
	VizID    string           `json:"vizId,omitempty"`
	Info     *Info            `json:"info,omitempty"`
	Traces   map[string]Trace `json:"traces,omitempty"`
	TraceID  string           `json:"tId,omitempty"`
	Trace    *Trace           `json:"t,omitempty"`
	Content  string           `json:"content,omitempty"`
}

// Decode parses one wire envelope into its typed Message. Unknown actions
// return an error wrapping ErrUnknownAction; missing required fields return a
// descriptive error. The input is never partially applied.
func Decode(b []byte) (Message, error) {
	var e envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, skerr.Wrapf(err, "decoding envelope")
	}
	switch e.Action {
	case ActionConnect:
		if e.ClientID == "" || e.VizID == "" {
			return nil, skerr.Fmt("connect requires clientId and vizId")
		}
		return Connect{ClientID: e.ClientID, VizID: e.VizID}, nil
	case ActionDisconnect:
		if e.ClientID == "" || e.VizID == "" {
			return nil, skerr.Fmt("disconnect requires clientId and vizId")
		}
		return Disconnect{ClientID: e.ClientID, VizID: e.VizID}, nil
	case ActionInitialize:
		if e.Info == nil {
			return nil, skerr.Fmt("initialize requires info")
		}
		traces := e.Traces
		if traces == nil {
			traces = map[string]Trace{}
		}
		return Initialize{Info: *e.Info, Traces: traces}, nil
	case ActionPutTrace:
		if e.TraceID == "" {
			return nil, skerr.Fmt("putTrace requires tId")
		}
		if e.Trace == nil {
			return nil, skerr.Fmt("putTrace requires t")
		}
		return PutTrace{TraceID: e.TraceID, Trace: *e.Trace}, nil
	case ActionRemoveTrace:
		if e.TraceID == "" {
			return nil, skerr.Fmt("removeTrace requires tId")
		}
		return RemoveTrace{TraceID: e.TraceID}, nil
	case ActionSaveHTML:
		return SaveHTML{}, nil
	case ActionSave:
		if e.ClientID == "" || e.VizID == "" {
			return nil, skerr.Fmt("save requires clientId and vizId")
		}
		return Save{ClientID: e.ClientID, VizID: e.VizID, Content: e.Content}, nil
	default:
		return nil, skerr.Wrapf(ErrUnknownAction, "%q", e.Action)
	}
}

// Encode serializes a Message into its wire envelope.
func Encode(m Message) ([]byte, error) {
	e := envelope{Action: m.Action()}
	switch msg := m.(type) {
	case Connect:
		e.ClientID = msg.ClientID
		e.VizID = msg.VizID
	case Disconnect:
		e.ClientID = msg.ClientID
		e.VizID = msg.VizID
	case Initialize:
		info := msg.Info
		e.Info = &info
		e.Traces = msg.Traces
		if e.Traces == nil {
			e.Traces = map[string]Trace{}
		}
	case PutTrace:
		trace := msg.Trace
		e.TraceID = msg.TraceID
		e.Trace = &trace
	case RemoveTrace:
		e.TraceID = msg.TraceID
	case SaveHTML:
		// Action only.
	case Save:
		e.ClientID = msg.ClientID
		e.VizID = msg.VizID
		e.Content = msg.Content
	default:
		return nil, skerr.Fmt("unencodable message type %T", m)
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return b, nil
}
