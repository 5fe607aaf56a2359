// Package ctrl wraps a reliable datagram library (KCP, an ARQ protocol over
// UDP) into the event-driven control transport the session-management thread
// consumes: a host bound to a UDP port, outbound connects by hostname, and a
// bounded-wait event poll yielding connect, receive, and disconnect events
// with the associated peer handle.
//
// Reliability and retransmission are the library's job; callers retry
// nothing themselves. Messages to a given peer are delivered reliably and
// in order.
package ctrl

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	kcp "github.com/xtaci/kcp-go/v5"

	"github.com/kramelec/eRPC/internal/logger"
)

// maxFrameSize bounds a single control message. SM packets are small; a
// larger frame means a corrupt or hostile length prefix.
const maxFrameSize = 64 << 10

// eventBacklog is the capacity of the host's event queue. The SM thread
// drains it every poll interval; overflow drops events with a log line
// rather than blocking peer read loops.
const eventBacklog = 1024

// EventType discriminates control-transport events.
type EventType int

const (
	// EventConnect fires when an outbound connect completes or an inbound
	// peer is first seen.
	EventConnect EventType = iota
	// EventReceive carries one reliably-delivered message.
	EventReceive
	// EventDisconnect fires when a peer's link is torn down.
	EventDisconnect
)

func (t EventType) String() string {
	switch t {
	case EventConnect:
		return "connect"
	case EventReceive:
		return "receive"
	case EventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event is one control-transport event. Payload is set for EventReceive.
type Event struct {
	Type    EventType
	Peer    *Peer
	Payload []byte
}

// Peer is a control-transport peer handle.
//
// Data is the per-peer opaque pointer maintained by the SM thread; by
// convention it is nil iff the peer is server-mode (inbound). Only the SM
// thread touches Data.
type Peer struct {
	ID   uuid.UUID
	Data any

	host    *Host
	sess    *kcp.UDPSession
	inbound bool
	closed  atomic.Bool

	wmu sync.Mutex // serializes frame writes
}

// RemoteAddr returns the peer's UDP address.
func (p *Peer) RemoteAddr() string {
	return p.sess.RemoteAddr().String()
}

// Inbound reports whether the peer was accepted rather than dialed.
func (p *Peer) Inbound() bool {
	return p.inbound
}

// Send transmits one message reliably. The length-prefixed frame is written
// in a single call so concurrent senders cannot interleave.
func (p *Peer) Send(msg []byte) error {
	if p.closed.Load() {
		return fmt.Errorf("send on closed peer %s", p.ID)
	}
	if len(msg) > maxFrameSize {
		return fmt.Errorf("message of %d bytes exceeds frame limit", len(msg))
	}

	frame := make([]byte, 4+len(msg))
	binary.LittleEndian.PutUint32(frame, uint32(len(msg)))
	copy(frame[4:], msg)

	p.wmu.Lock()
	defer p.wmu.Unlock()
	if _, err := p.sess.Write(frame); err != nil {
		return fmt.Errorf("send to %s: %w", p.RemoteAddr(), err)
	}
	return nil
}

// Close tears down the peer's link. The read loop observes the closed
// session and emits the disconnect event.
func (p *Peer) Close() {
	if p.closed.CompareAndSwap(false, true) {
		_ = p.sess.Close()
	}
}

// Host is a control-transport endpoint bound to a management UDP port.
type Host struct {
	listener *kcp.Listener
	events   chan Event

	mu     sync.Mutex
	peers  map[*Peer]struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewHost binds the management UDP port and starts accepting inbound peers.
func NewHost(port uint16) (*Host, error) {
	listener, err := kcp.ListenWithOptions(fmt.Sprintf("0.0.0.0:%d", port), nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("bind management UDP port %d: %w", port, err)
	}

	h := &Host{
		listener: listener,
		events:   make(chan Event, eventBacklog),
		peers:    make(map[*Peer]struct{}),
	}
	h.wg.Add(1)
	go h.acceptLoop()
	return h, nil
}

// Connect dials a peer by hostname and management port. The hostname is
// resolved up front so an unresolvable name fails immediately instead of
// stalling the caller's event loop. On success the connect event is
// delivered through the event queue.
func (h *Host) Connect(hostname string, port uint16) (*Peer, error) {
	if h.closed.Load() {
		return nil, fmt.Errorf("connect on closed host")
	}

	target := net.JoinHostPort(hostname, fmt.Sprint(port))
	if _, err := net.ResolveUDPAddr("udp", target); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target, err)
	}

	sess, err := kcp.DialWithOptions(target, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", target, err)
	}

	p := h.track(sess, false)
	h.emit(Event{Type: EventConnect, Peer: p})
	return p, nil
}

// Service waits up to timeout for the next event. The second return is
// false when the wait expired with no event.
func (h *Host) Service(timeout time.Duration) (Event, bool) {
	select {
	case ev := <-h.events:
		return ev, true
	case <-time.After(timeout):
		return Event{}, false
	}
}

// Close tears down the listener and every live peer, then waits for the
// peer read loops to drain.
func (h *Host) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	_ = h.listener.Close()

	h.mu.Lock()
	peers := make([]*Peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		p.Close()
	}

	h.wg.Wait()
}

func (h *Host) track(sess *kcp.UDPSession, inbound bool) *Peer {
	p := &Peer{
		ID:      uuid.New(),
		host:    h,
		sess:    sess,
		inbound: inbound,
	}
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()

	h.wg.Add(1)
	go p.readLoop()
	return p
}

func (h *Host) forget(p *Peer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
}

// emit queues an event without ever blocking a read loop. Overflow only
// happens when the SM thread has stalled for many poll intervals.
func (h *Host) emit(ev Event) {
	select {
	case h.events <- ev:
	default:
		logger.Warn("control event queue full, dropping event",
			logger.KeySmEvent, ev.Type.String())
	}
}

func (h *Host) acceptLoop() {
	defer h.wg.Done()
	for {
		sess, err := h.listener.AcceptKCP()
		if err != nil {
			// Listener closed during host teardown.
			return
		}
		// Inbound peers surface as a connect event; the SM thread leaves
		// their Data nil (server-mode) until a packet arrives.
		p := h.track(sess, true)
		h.emit(Event{Type: EventConnect, Peer: p})
	}
}

// readLoop reads length-prefixed frames and emits receive events until the
// session dies, then emits the disconnect event.
func (p *Peer) readLoop() {
	defer p.host.wg.Done()

	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(p.sess, lenBuf[:]); err != nil {
			break
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		if n == 0 || n > maxFrameSize {
			logger.Warn("bad control frame length, dropping peer",
				logger.KeyPeer, p.RemoteAddr(), "frame_len", n)
			break
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(p.sess, payload); err != nil {
			break
		}
		p.host.emit(Event{Type: EventReceive, Peer: p, Payload: payload})
	}

	p.Close()
	p.host.forget(p)
	p.host.emit(Event{Type: EventDisconnect, Peer: p})
}
