// Package session implements the viewer side of the bridge: one websocket
// connection against the server, a trace store fed by inbound protocol
// messages, and snapshot export on request.
//
// A Session is the explicit owner of all connection-scoped state: it is
// created with a dial, and Close tears it down on every exit path, sending
// the disconnect message fire-and-forget before the socket goes away. A
// Session is not reused after Close.
package session

import (
	"context"
	"errors"
	"net/url"
	"path"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/probviz/probviz/go/skerr"
	"github.com/probviz/probviz/go/sklog"
	"github.com/probviz/probviz/traceviz/go/export"
	"github.com/probviz/probviz/traceviz/go/grid"
	"github.com/probviz/probviz/traceviz/go/store"
	"github.com/probviz/probviz/traceviz/go/types"
)

// Session is one live viewer connection.
type Session struct {
	clientID string
	vizID    string
	conn     *websocket.Conn
	store    *store.Store

	// writeMtx serializes writes; the websocket allows only one concurrent
	// writer and Close may race the read loop's save replies.
	writeMtx sync.Mutex

	mtx      sync.Mutex
	viewport grid.Viewport
	sheets   []export.Stylesheet

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// New dials the server's websocket endpoint for vizID, sends the connect
// message, and starts the read loop. serverURL is the server's base URL, e.g.
// "http://localhost:8000". The client id is generated here and is stable for
// the lifetime of the session.
func New(ctx context.Context, serverURL, vizID string, vp grid.Viewport) (*Session, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, skerr.Wrapf(err, "parsing server URL %q", serverURL)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, skerr.Fmt("unsupported scheme %q", u.Scheme)
	}
	u.Path = path.Join(u.Path, "viz", vizID, "ws")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, skerr.Wrapf(err, "dialing %s", u.String())
	}

	s := &Session{
		clientID: uuid.NewString(),
		vizID:    vizID,
		conn:     conn,
		store:    store.New(),
		viewport: vp,
		sheets:   export.DefaultStylesheets(),
		done:     make(chan struct{}),
	}
	if err := s.write(types.Connect{ClientID: s.clientID, VizID: s.vizID}); err != nil {
		_ = conn.Close()
		return nil, skerr.Wrapf(err, "sending connect")
	}
	go s.run()
	return s, nil
}

// ClientID returns the session's generated client id.
func (s *Session) ClientID() string {
	return s.clientID
}

// VizID returns the viz this session is viewing.
func (s *Session) VizID() string {
	return s.vizID
}

// Store returns the session's trace store. Register listeners on it to react
// to incoming mutations.
func (s *Session) Store() *store.Store {
	return s.store
}

// Done is closed when the read loop exits, i.e. when the connection is gone.
// There is no automatic reconnect; a dropped connection ends the session.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Resize updates the viewport and triggers a full re-render notification.
func (s *Session) Resize(vp grid.Viewport) {
	s.mtx.Lock()
	s.viewport = vp
	s.mtx.Unlock()
	s.store.Invalidate()
}

// Viewport returns the current viewport.
func (s *Session) Viewport() grid.Viewport {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.viewport
}

// SetStylesheets replaces the stylesheets inlined into exported snapshots.
func (s *Session) SetStylesheets(sheets []export.Stylesheet) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.sheets = sheets
}

// Snapshot exports the session's current rendered state. A non-nil error
// alongside non-empty content is a partial export (e.g. an unreadable
// stylesheet), not a failure.
func (s *Session) Snapshot() (string, error) {
	s.mtx.Lock()
	vp := s.viewport
	sheets := s.sheets
	s.mtx.Unlock()
	return export.Snapshot(s.store, vp, sheets)
}

func (s *Session) write(m types.Message) error {
	b, err := types.Encode(m)
	if err != nil {
		return skerr.Wrap(err)
	}
	s.writeMtx.Lock()
	defer s.writeMtx.Unlock()
	return skerr.Wrap(s.conn.WriteMessage(websocket.TextMessage, b))
}

// run is the session's event loop. All store mutation happens here, one
// message at a time, which is what lets the store skip any further ordering
// discipline.
func (s *Session) run() {
	defer close(s.done)
	for {
		_, b, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sklog.Infof("session %s/%s: connection closed", s.vizID, s.clientID)
			} else {
				sklog.Warningf("session %s/%s: connection ended: %s", s.vizID, s.clientID, err)
			}
			return
		}
		msg, err := types.Decode(b)
		if err != nil {
			// Unknown or malformed messages are ignored, never fatal.
			sklog.Warningf("session %s/%s: ignoring message: %s", s.vizID, s.clientID, err)
			continue
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg types.Message) {
	switch m := msg.(type) {
	case types.Initialize:
		s.store.Initialize(m.Info, m.Traces)
	case types.PutTrace:
		if !s.store.Initialized() {
			sklog.Warningf("session %s/%s: putTrace before initialize", s.vizID, s.clientID)
		}
		s.store.PutTrace(m.TraceID, m.Trace)
	case types.RemoveTrace:
		s.store.RemoveTrace(m.TraceID)
	case types.SaveHTML:
		s.saveHTML()
	default:
		sklog.Warningf("session %s/%s: ignoring unexpected %q message", s.vizID, s.clientID, msg.Action())
	}
}

func (s *Session) saveHTML() {
	content, err := s.Snapshot()
	if err != nil {
		if content == "" {
			sklog.Errorf("session %s/%s: export failed: %s", s.vizID, s.clientID, err)
			return
		}
		sklog.Warningf("session %s/%s: partial export: %s", s.vizID, s.clientID, err)
	}
	if err := s.write(types.Save{ClientID: s.clientID, VizID: s.vizID, Content: content}); err != nil {
		sklog.Errorf("session %s/%s: sending save: %s", s.vizID, s.clientID, err)
	}
}

// Close sends the disconnect message fire-and-forget and closes the
// connection. Safe to call more than once and from any goroutine.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		// Best effort; the socket may already be gone.
		if err := s.write(types.Disconnect{ClientID: s.clientID, VizID: s.vizID}); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			sklog.Debugf("session %s/%s: disconnect not delivered: %s", s.vizID, s.clientID, err)
		}
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
