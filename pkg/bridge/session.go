package bridge

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/movapages/angular-url-form-sync/pkg/codec"
	"github.com/movapages/angular-url-form-sync/pkg/fetch"
	"github.com/movapages/angular-url-form-sync/pkg/filter"
	"github.com/movapages/angular-url-form-sync/pkg/middleware"
	"github.com/movapages/angular-url-form-sync/pkg/urlsync"
	"github.com/movapages/angular-url-form-sync/pkg/wire"
)

// socketSink adapts one WebSocket connection to the wire.Sink
// interface. Writes go out as url-patch frames; navigate frames from
// the client come back in as change events, tag included, so echo
// suppression works across the socket exactly as it does in-process.
type socketSink struct {
	send func(w wire.Write)

	subMu  sync.Mutex
	subs   map[uint64]func(wire.ChangeEvent)
	nextID uint64
}

func newSocketSink(send func(w wire.Write)) *socketSink {
	return &socketSink{send: send, subs: make(map[uint64]func(wire.ChangeEvent))}
}

// Write implements wire.Sink.
func (s *socketSink) Write(w wire.Write) {
	s.send(w)
}

// Subscribe implements wire.Sink.
func (s *socketSink) Subscribe(fn func(wire.ChangeEvent)) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// deliver fans one incoming change event out to subscribers.
func (s *socketSink) deliver(ev wire.ChangeEvent) {
	s.subMu.Lock()
	fns := make([]func(wire.ChangeEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// session is one connected screen: its own state, engine and
// coordinator, torn down together when the socket closes.
type session struct {
	server *Server
	conn   *websocket.Conn
	logger *slog.Logger

	state  *filter.State
	sink   *socketSink
	engine *urlsync.Engine
	coord  *fetch.Coordinator[any]
	unbind func()

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *Server) newSession(conn *websocket.Conn) (*session, error) {
	sess := &session{
		server: s,
		conn:   conn,
		logger: s.logger.With("remote", conn.RemoteAddr().String()),
		state:  filter.NewState(s.registry),
	}
	sess.sink = newSocketSink(sess.sendPatch)

	engineOpts := append([]urlsync.Option{
		urlsync.WithDiagnostics(sess.diagnostics()),
	}, s.engineOpts...)
	eng, err := urlsync.New(sess.state, sess.sink, engineOpts...)
	if err != nil {
		return nil, err
	}
	sess.engine = eng

	sess.coord = fetch.New[any](s.fetcher, sess.applyResult, s.fetchOpts...)
	// Bound here, before the run goroutine exists, so close can read
	// unbind from any goroutine without a race.
	sess.unbind = sess.coord.Bind(sess.state)
	return sess, nil
}

// run starts the sync machinery and blocks in the read loop until the
// connection goes away.
func (sess *session) run() {
	middleware.RecordSessionOpen()
	defer sess.close()

	if err := sess.engine.Start(); err != nil {
		sess.logger.Error("engine start", "error", err)
		return
	}

	sess.readLoop()
}

func (sess *session) readLoop() {
	for {
		_, msg, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				sess.logger.Error("read error", "error", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			sess.logger.Error("frame decode error", "error", err)
			continue
		}

		switch f.Type {
		case frameNavigate:
			sess.handleNavigate(f)
		case frameInput:
			sess.handleInput(f)
		default:
			sess.logger.Warn("unknown frame type", "type", f.Type)
		}
	}
}

// handleNavigate feeds a location change into the engine via the sink.
func (sess *session) handleNavigate(f frame) {
	sess.sink.deliver(wire.ChangeEvent{
		Record: pairsToRecord(f.Pairs),
		Tag:    wire.Tag(f.Tag),
	})
}

// handleInput applies one field edit. The raw value goes through the
// field's codec so a bad edit is rejected here, not smuggled into state.
func (sess *session) handleInput(f frame) {
	spec, ok := sess.server.registry.Lookup(f.Field)
	if !ok {
		sess.sendError("unknown field " + f.Field)
		return
	}
	if f.Value == "" {
		if err := sess.state.Clear(f.Field); err != nil {
			sess.sendError(err.Error())
		}
		return
	}
	v, err := codec.For(spec).Decode(f.Value)
	if err != nil {
		sess.sendError(err.Error())
		return
	}
	if err := sess.state.Set(f.Field, v); err != nil {
		sess.sendError(err.Error())
	}
}

// sendPatch pushes one wire write to the client.
func (sess *session) sendPatch(w wire.Write) {
	sess.writeFrame(frame{
		Type:  frameURLPatch,
		Pairs: recordToPairs(w.Record),
		Mode:  modeString(w.Mode),
		Tag:   uint64(w.Tag),
	})
}

// applyResult forwards a terminal fetch result to the client.
func (sess *session) applyResult(res fetch.Result[any]) {
	f := frame{Type: frameResult, RequestID: res.RequestID}
	if res.Err != nil {
		f.Error = res.Err.Error()
	} else if payload, err := json.Marshal(res.Payload); err == nil {
		f.Payload = payload
	} else {
		f.Error = "payload encoding failed: " + err.Error()
	}
	sess.writeFrame(f)
}

// diagnostics surfaces skipped wire fields to both the log and the
// client.
func (sess *session) diagnostics() urlsync.DiagnosticsSink {
	return urlsync.DiagnosticsFunc(func(d urlsync.Diagnostic) {
		sess.logger.Warn("skipped wire field",
			"key", d.WireKey, "raw", d.Raw, "error", d.Err)
		sess.sendError(d.String())
	})
}

func (sess *session) sendError(msg string) {
	sess.writeFrame(frame{Type: frameError, Error: msg})
}

func (sess *session) writeFrame(f frame) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if err := sess.conn.WriteJSON(f); err != nil {
		sess.logger.Debug("write failed", "error", err)
	}
}

// close tears the session down: engine detached, in-flight fetch
// cancelled, socket closed. Safe to call more than once.
func (sess *session) close() {
	sess.closeOnce.Do(func() {
		if sess.unbind != nil {
			sess.unbind()
		}
		sess.engine.Stop()
		sess.coord.Close()
		sess.conn.Close()
		sess.server.dropSession(sess)
		middleware.RecordSessionClose()
	})
}
