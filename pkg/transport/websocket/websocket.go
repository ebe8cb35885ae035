// Package websocket carries the serial byte stream over a websocket, for
// benches where host and board are not wired together.
package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// ErrNotConnected indicates no peer is attached.
var ErrNotConnected = errors.New("no websocket peer")

// Dial connects to a board served at url, e.g. ws://bench:8080/hil.
func Dial(url string) (*websocket.Conn, error) {
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}

// Link is the board end: an io.ReadWriter over whichever peer is
// attached. A new peer replaces the previous one. Read blocks until a
// peer is attached and returns 0 bytes when the peer goes away.
type Link struct {
	lock     sync.Mutex
	conn     *websocket.Conn
	done     chan struct{}
	attached chan struct{}
}

// NewLink creates a Link.
func NewLink() *Link {
	return &Link{attached: make(chan struct{}, 1)}
}

// Handler serves peers.
func (l *Link) Handler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		done := l.attach(conn)
		glog.Infof("websocket peer %s attached", conn.Request().RemoteAddr)
		<-done
		glog.Infof("websocket peer %s detached", conn.Request().RemoteAddr)
	})
}

// Serve serves peers at path on listener until ctx is done.
func (l *Link) Serve(ctx context.Context, listener net.Listener, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, l.Handler())
	server := &http.Server{Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	select {
	case <-ctx.Done():
		server.Close()
		l.detach(nil)
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ListenAndServe listens on addr and serves peers at path.
func (l *Link) ListenAndServe(ctx context.Context, addr, path string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	glog.Infof("serving websocket on %s%s", listener.Addr(), path)
	return l.Serve(ctx, listener, path)
}

// Read implements io.Reader.
func (l *Link) Read(p []byte) (int, error) {
	conn := l.current()
	for conn == nil {
		<-l.attached
		conn = l.current()
	}
	n, err := conn.Read(p)
	if err != nil {
		l.detach(conn)
	}
	return n, nil
}

// Write implements io.Writer.
func (l *Link) Write(p []byte) (int, error) {
	conn := l.current()
	if conn == nil {
		return 0, ErrNotConnected
	}
	n, err := conn.Write(p)
	if err != nil {
		l.detach(conn)
	}
	return n, err
}

// Connected indicates a peer is attached.
func (l *Link) Connected() bool {
	return l.current() != nil
}

func (l *Link) current() *websocket.Conn {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.conn
}

func (l *Link) attach(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	l.lock.Lock()
	if l.done != nil {
		close(l.done)
	}
	l.conn, l.done = conn, done
	l.lock.Unlock()
	select {
	case l.attached <- struct{}{}:
	default:
	}
	return done
}

// detach drops conn, or whatever is attached when conn is nil.
func (l *Link) detach(conn *websocket.Conn) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.conn == nil || (conn != nil && conn != l.conn) {
		return
	}
	close(l.done)
	l.conn, l.done = nil, nil
}
