// Package server implements the backend half of the bridge: the registry of
// vizs and their connected viewer sessions, the websocket endpoint the
// viewers dial, the viewer page itself, and the producer API a modeling
// process drives a viz through.
//
// The server is the source of truth for session membership: exactly one
// connection exists per (viz id, client id) pair, and a reconnect with the
// same ids replaces the previous connection.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/probviz/probviz/go/skerr"
	"github.com/probviz/probviz/go/sklog"
	"github.com/probviz/probviz/go/util"
	"github.com/probviz/probviz/traceviz/go/types"
)

const (
	// clientSendBufferSize bounds the per-client outbound queue. A client
	// that cannot keep up has messages dropped; delivery guarantees beyond
	// ordering are not this component's job.
	clientSendBufferSize = 100

	// connectTimeout is how long a freshly upgraded connection gets to send
	// its connect message.
	connectTimeout = 10 * time.Second
)

var (
	connectedClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "traceviz_connected_clients",
		Help: "Number of connected viewer sessions per viz.",
	}, []string{"viz"})

	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traceviz_messages_sent",
		Help: "Protocol messages sent to viewers, by action.",
	}, []string{"action"})

	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traceviz_messages_received",
		Help: "Protocol messages received from viewers, by action.",
	}, []string{"action"})
)

// client is one connected viewer session.
type client struct {
	id     string
	conn   *websocket.Conn
	sendCh chan []byte
}

// writeLoop is the only goroutine that writes to the connection. It exits
// when sendCh is closed, which is how the Viz detaches a client.
func (c *client) writeLoop() {
	for b := range c.sendCh {
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			sklog.Debugf("client %s: write failed: %s", c.id, err)
			// Keep draining so the sender never blocks; the read loop will
			// notice the dead connection and deregister us.
		}
	}
	_ = c.conn.Close()
}

// Viz is the server-side state of one shared view: the latest info and
// traces, plus every connected client. Late joiners are brought up to date
// with an initialize snapshot on connect.
type Viz struct {
	id string

	mtx         sync.Mutex
	initialized bool
	info        types.Info
	traces      map[string]types.Trace
	clients     map[string]*client
	saveWaiters []chan string
}

func newViz(id string) *Viz {
	return &Viz{
		id:      id,
		traces:  map[string]types.Trace{},
		clients: map[string]*client{},
	}
}

// ID returns the viz id.
func (v *Viz) ID() string {
	return v.id
}

// Initialize replaces the viz state and pushes the new snapshot to every
// connected client. Last writer wins, there is no merging.
func (v *Viz) Initialize(info types.Info, traces map[string]types.Trace) {
	copied := make(map[string]types.Trace, len(traces))
	for id, t := range traces {
		copied[id] = t
	}
	v.mtx.Lock()
	defer v.mtx.Unlock()
	v.initialized = true
	v.info = info
	v.traces = copied
	v.broadcastLocked(types.Initialize{Info: info, Traces: copied})
}

// PutTrace upserts one trace and pushes it to every connected client.
func (v *Viz) PutTrace(id string, t types.Trace) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	v.traces[id] = t
	v.broadcastLocked(types.PutTrace{TraceID: id, Trace: t})
}

// RemoveTrace deletes one trace and tells every connected client. Unknown ids
// are a no-op server-side but the message is still forwarded, matching the
// store contract that removal of an unknown id is not an error.
func (v *Viz) RemoveTrace(id string) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	delete(v.traces, id)
	v.broadcastLocked(types.RemoveTrace{TraceID: id})
}

// SaveHTML asks the connected viewers for a rendered snapshot and returns the
// first reply, or an error when no client is connected or ctx expires first.
func (v *Viz) SaveHTML(ctx context.Context) (string, error) {
	v.mtx.Lock()
	if len(v.clients) == 0 {
		v.mtx.Unlock()
		return "", skerr.Fmt("viz %q has no connected clients", v.id)
	}
	ch := make(chan string, 1)
	v.saveWaiters = append(v.saveWaiters, ch)
	v.broadcastLocked(types.SaveHTML{})
	v.mtx.Unlock()

	select {
	case content := <-ch:
		return content, nil
	case <-ctx.Done():
		v.removeWaiter(ch)
		return "", skerr.Wrapf(ctx.Err(), "waiting for save reply from viz %q", v.id)
	}
}

func (v *Viz) removeWaiter(ch chan string) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	for i, w := range v.saveWaiters {
		if w == ch {
			v.saveWaiters = append(v.saveWaiters[:i], v.saveWaiters[i+1:]...)
			return
		}
	}
}

// deliverSave hands a save reply to the oldest pending waiter. Replies with
// nobody waiting are dropped; a second client answering the same request is
// expected, not an error.
func (v *Viz) deliverSave(content string) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	if len(v.saveWaiters) == 0 {
		sklog.Debugf("viz %s: dropping unsolicited save reply", v.id)
		return
	}
	ch := v.saveWaiters[0]
	v.saveWaiters = v.saveWaiters[1:]
	ch <- content
}

// ClientCount returns the number of connected clients.
func (v *Viz) ClientCount() int {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return len(v.clients)
}

// Traces returns a copy of the server-side trace state.
func (v *Viz) Traces() map[string]types.Trace {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	ret := make(map[string]types.Trace, len(v.traces))
	for id, t := range v.traces {
		ret[id] = t
	}
	return ret
}

// register attaches a client, replacing any previous connection with the
// same client id, and brings it up to date with an initialize snapshot.
func (v *Viz) register(c *client) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	if old, ok := v.clients[c.id]; ok {
		sklog.Warningf("viz %s: replacing existing connection for client %s", v.id, c.id)
		close(old.sendCh)
	} else {
		connectedClients.WithLabelValues(v.id).Inc()
	}
	v.clients[c.id] = c
	if v.initialized {
		v.sendLocked(c, types.Initialize{Info: v.info, Traces: v.traces})
	}
}

// unregister detaches a client if it is still the current connection for its
// client id.
func (v *Viz) unregister(c *client) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	if current, ok := v.clients[c.id]; !ok || current != c {
		return
	}
	delete(v.clients, c.id)
	close(c.sendCh)
	connectedClients.WithLabelValues(v.id).Dec()
}

// broadcastLocked sends m to every connected client. v.mtx must be held.
func (v *Viz) broadcastLocked(m types.Message) {
	for _, c := range v.clients {
		v.sendLocked(c, m)
	}
}

// sendLocked queues m for one client, dropping on a full queue. v.mtx must be
// held; it is what makes queueing safe against a concurrent close of sendCh.
func (v *Viz) sendLocked(c *client, m types.Message) {
	b, err := types.Encode(m)
	if err != nil {
		sklog.Errorf("viz %s: encoding %q: %s", v.id, m.Action(), err)
		return
	}
	select {
	case c.sendCh <- b:
		messagesSent.WithLabelValues(string(m.Action())).Inc()
	default:
		sklog.Warningf("viz %s: dropping %q for slow client %s", v.id, m.Action(), c.id)
	}
}

// Server owns every viz and serves the HTTP surface.
type Server struct {
	mtx      sync.Mutex
	vizs     map[string]*Viz
	upgrader websocket.Upgrader
}

// New returns an empty Server.
func New() *Server {
	return &Server{
		vizs: map[string]*Viz{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks are an upstream concern, the same as auth.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Viz returns the viz with the given id, creating it if needed.
func (s *Server) Viz(id string) *Viz {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	v, ok := s.vizs[id]
	if !ok {
		v = newViz(id)
		s.vizs[id] = v
	}
	return v
}

// AddHandlers registers all HTTP routes on r. The /viz routes face viewers,
// the /_ routes face the producing modeling process.
func (s *Server) AddHandlers(r chi.Router) {
	r.Get("/viz/{id}", s.viewerHandler)
	r.Get("/viz/{id}/ws", s.connectionHandler)
	r.Post("/_/initialize/{id}", s.initializeHandler)
	r.Post("/_/putTrace/{id}", s.putTraceHandler)
	r.Post("/_/removeTrace/{id}", s.removeTraceHandler)
	r.Post("/_/saveHTML/{id}", s.saveHTMLHandler)
}

// connectionHandler upgrades a viewer connection and runs its read loop. The
// first message must be connect with a vizId matching the request path.
func (s *Server) connectionHandler(w http.ResponseWriter, r *http.Request) {
	vizID := chi.URLParam(r, "id")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		sklog.Warningf("viz %s: upgrade failed: %s", vizID, err)
		return
	}

	util.LogErr(conn.SetReadDeadline(time.Now().Add(connectTimeout)))
	_, b, err := conn.ReadMessage()
	if err != nil {
		sklog.Warningf("viz %s: no connect message: %s", vizID, err)
		util.Close(conn)
		return
	}
	util.LogErr(conn.SetReadDeadline(time.Time{}))
	msg, err := types.Decode(b)
	if err != nil {
		sklog.Warningf("viz %s: bad first message: %s", vizID, err)
		util.Close(conn)
		return
	}
	connect, ok := msg.(types.Connect)
	if !ok || connect.VizID != vizID {
		sklog.Warningf("viz %s: first message was %q, want connect for this viz", vizID, msg.Action())
		util.Close(conn)
		return
	}
	messagesReceived.WithLabelValues(string(types.ActionConnect)).Inc()

	c := &client{
		id:     connect.ClientID,
		conn:   conn,
		sendCh: make(chan []byte, clientSendBufferSize),
	}
	go c.writeLoop()
	v := s.Viz(vizID)
	v.register(c)
	sklog.Infof("viz %s: client %s connected", vizID, c.id)
	s.readLoop(v, c)
	v.unregister(c)
	sklog.Infof("viz %s: client %s gone", vizID, c.id)
}

func (s *Server) readLoop(v *Viz, c *client) {
	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sklog.Debugf("viz %s: client %s read: %s", v.id, c.id, err)
			}
			return
		}
		msg, err := types.Decode(b)
		if err != nil {
			sklog.Warningf("viz %s: client %s: ignoring message: %s", v.id, c.id, err)
			continue
		}
		messagesReceived.WithLabelValues(string(msg.Action())).Inc()
		switch m := msg.(type) {
		case types.Disconnect:
			return
		case types.Save:
			v.deliverSave(m.Content)
		default:
			sklog.Warningf("viz %s: client %s: ignoring unexpected %q message", v.id, c.id, msg.Action())
		}
	}
}
