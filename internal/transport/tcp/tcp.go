// Package tcp carries WCP over a stream socket, one message per delimiter-terminated frame.
package tcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"wcp-bridge/server/internal/platform/logging"
	"wcp-bridge/server/internal/transport"
)

const (
	// DelimNUL terminates messages the way Surfer does.
	DelimNUL     byte = 0
	DelimNewline byte = '\n'
)

// Delimiter maps a framing name from the config to its byte.
func Delimiter(framing string) (byte, error) {
	switch framing {
	case "", "nul":
		return DelimNUL, nil
	case "newline":
		return DelimNewline, nil
	}
	return 0, fmt.Errorf("unknown framing %q", framing)
}

type peer struct {
	conn  net.Conn
	r     *bufio.Reader
	delim byte
}

// NewPeer frames conn with delim.
func NewPeer(conn net.Conn, delim byte) transport.Peer {
	return &peer{conn: conn, r: bufio.NewReader(conn), delim: delim}
}

// ReadMessage returns the next non-blank frame without its delimiter. A trailing frame
// with no delimiter is returned when the peer closes its side.
func (p *peer) ReadMessage() ([]byte, error) {
	for {
		frame, err := p.r.ReadBytes(p.delim)
		if err == nil {
			frame = frame[:len(frame)-1]
		}
		// a last frame cut off by EOF still counts; ErrClosed follows on the next read
		if frame = bytes.TrimSpace(frame); len(frame) > 0 {
			return frame, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil, transport.ErrClosed
			}
			return nil, err
		}
	}
}

func (p *peer) WriteMessage(msg []byte) error {
	buf := make([]byte, 0, len(msg)+1)
	buf = append(buf, msg...)
	buf = append(buf, p.delim)
	_, err := p.conn.Write(buf)
	return err
}

func (p *peer) Close() error {
	return p.conn.Close()
}

func (p *peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// Server accepts WCP clients on a TCP address.
type Server struct {
	Handler transport.Handler
	Delim   byte
	Opts    transport.Options

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

func NewServer(h transport.Handler, delim byte, opts transport.Options) *Server {
	if opts.Name == "" {
		opts.Name = "tcp"
	}
	return &Server{Handler: h, Delim: delim, Opts: opts}
}

// ListenAndServe listens on addr and serves clients until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled, then waits for open conversations to end.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logger := logging.Component(s.Opts.Name)
	logger.WithField("addr", ln.Addr().String()).Info("listening for WCP clients")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	defer s.wg.Wait()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = transport.Serve(ctx, NewPeer(c, s.Delim), s.Handler, s.Opts)
		}()
	}
}

// Addr returns the bound address once serving has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Initiate connects to a client waiting on addr and serves that one conversation.
func Initiate(ctx context.Context, addr string, h transport.Handler, delim byte, opts transport.Options) error {
	if opts.Name == "" {
		opts.Name = "tcp"
	}
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("initiate %s: %w", addr, err)
	}
	logging.Component(opts.Name).WithField("addr", addr).Info("connected to waiting client")
	return transport.Serve(ctx, NewPeer(c, delim), h, opts)
}
