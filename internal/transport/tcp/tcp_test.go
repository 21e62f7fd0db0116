package tcp

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wcp-bridge/server/internal/app"
	"wcp-bridge/server/internal/session"
	"wcp-bridge/server/internal/transport"
)

func TestDelimiter(t *testing.T) {
	for framing, want := range map[string]byte{"": 0, "nul": 0, "newline": '\n'} {
		got, err := Delimiter(framing)
		if err != nil || got != want {
			t.Fatalf("Delimiter(%q) = %v, %v", framing, got, err)
		}
	}
	if _, err := Delimiter("crlf"); err == nil {
		t.Fatal("crlf accepted")
	}
}

func TestPeerFraming(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	p := NewPeer(server, DelimNewline)
	defer p.Close()

	go func() {
		client.Write([]byte("\r\n  \n{\"type\":\"greeting\"}\r\n{\"a\":1}\n"))
	}()
	for _, want := range []string{`{"type":"greeting"}`, `{"a":1}`} {
		got, err := p.ReadMessage()
		if err != nil || string(got) != want {
			t.Fatalf("ReadMessage = %q, %v; want %q", got, err, want)
		}
	}

	go p.WriteMessage([]byte(`{"x":2}`))
	buf := make([]byte, 16)
	n, _ := client.Read(buf)
	if string(buf[:n]) != "{\"x\":2}\n" {
		t.Fatalf("written frame %q", buf[:n])
	}

	client.Close()
	if _, err := p.ReadMessage(); err != transport.ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

type client struct {
	conn net.Conn
	r    *bufio.Reader
}

func (c *client) send(t *testing.T, msg string) {
	t.Helper()
	if _, err := c.conn.Write(append([]byte(msg), 0)); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func (c *client) recv(t *testing.T) string {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, err := c.r.ReadString(0)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	return strings.TrimSuffix(frame, "\x00")
}

func TestServerConversation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	svc := app.NewService(session.New(nil), nil, func() { close(stopped) })
	srv := NewServer(svc, DelimNUL, transport.Options{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	c := &client{conn: conn, r: bufio.NewReader(conn)}

	if g := c.recv(t); !strings.HasPrefix(g, `{"type":"greeting","version":"1","commands":["get_item_list",`) {
		t.Fatalf("greeting = %s", g)
	}
	c.send(t, `{"type":"greeting","version":"0","commands":["waveforms_loaded"]}`)
	c.send(t, `{"type":"command","command":"add_variables","variables":["top.clk"]}`)
	if got := c.recv(t); got != `{"type":"response","command":"add_variables","ids":[1]}` {
		t.Fatalf("add_variables reply = %s", got)
	}

	c.send(t, `not json`)
	if got := c.recv(t); !strings.HasPrefix(got, `{"type":"error","error":"SyntaxError"`) {
		t.Fatalf("syntax reply = %s", got)
	}

	wave := filepath.Join(t.TempDir(), "dump.vcd")
	if err := os.WriteFile(wave, []byte("$end"), 0o644); err != nil {
		t.Fatal(err)
	}
	c.send(t, `{"type":"command","command":"load","source":"`+wave+`"}`)
	if got := c.recv(t); got != `{"type":"response","command":"ack"}` {
		t.Fatalf("load reply = %s", got)
	}
	if got := c.recv(t); got != `{"type":"event","event":"waveforms_loaded","source":"`+wave+`"}` {
		t.Fatalf("load event = %s", got)
	}

	c.send(t, `{"type":"command","command":"shutdown"}`)
	if got := c.recv(t); got != `{"type":"response","command":"ack"}` {
		t.Fatalf("shutdown reply = %s", got)
	}
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback not run")
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestInitiate(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := app.NewService(session.New(nil), nil, nil)
	done := make(chan error, 1)
	go func() { done <- Initiate(ctx, ln.Addr().String(), svc, DelimNewline, transport.Options{}) }()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatal(err)
	}
	r := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := r.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, `{"type":"greeting"`) {
		t.Fatalf("greeting = %q, %v", line, err)
	}
	conn.Write([]byte(`{"type":"command","command":"get_item_list"}` + "\n"))
	line, err = r.ReadString('\n')
	if err != nil || line != `{"type":"response","command":"get_item_list","ids":[]}`+"\n" {
		t.Fatalf("reply = %q, %v", line, err)
	}

	conn.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("initiate: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("initiate did not return after client hung up")
	}
}

func TestPeerReturnsUnterminatedLastFrame(t *testing.T) {
	client, server := net.Pipe()
	p := NewPeer(server, DelimNUL)
	defer p.Close()

	go func() {
		client.Write([]byte("{\"a\":1}\x00{\"type\":\"command\",\"command\":\"clear\"}"))
		client.Close()
	}()
	for _, want := range []string{`{"a":1}`, `{"type":"command","command":"clear"}`} {
		got, err := p.ReadMessage()
		if err != nil || string(got) != want {
			t.Fatalf("ReadMessage = %q, %v; want %q", got, err, want)
		}
	}
	if _, err := p.ReadMessage(); err != transport.ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
