// Package transport runs WCP conversations over message-oriented connections.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"wcp-bridge/server/internal/app"
	"wcp-bridge/server/internal/metrics"
	"wcp-bridge/server/internal/platform/logging"
)

// Peer is one connected client that exchanges whole messages.
type Peer interface {
	ReadMessage() ([]byte, error)
	WriteMessage(msg []byte) error
	Close() error
	RemoteAddr() string
}

// Handler is the application side of a conversation.
type Handler interface {
	Greeting() []byte
	HandleMessage(ctx context.Context, msg []byte) (reply []byte, after func())
	Attach(sender app.MessageSender) (detach func())
}

type Options struct {
	// RPS limits inbound messages per second; 0 disables the limit.
	RPS   float64
	Burst int
	// Name labels log lines and the connection gauge, e.g. "tcp" or "ws".
	Name    string
	Metrics *metrics.Metrics
}

func (o Options) limiter() *rate.Limiter {
	if o.RPS <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := o.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(o.RPS), burst)
}

// conn serialises writes from the read loop and from event notifiers.
type conn struct {
	peer   Peer
	sendMu sync.Mutex
}

func (c *conn) Send(msg []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.peer.WriteMessage(msg)
}

// ErrClosed is returned by Peer.ReadMessage once the client has gone away cleanly.
var ErrClosed = errors.New("connection closed")

// Serve greets the peer, attaches it for events, and handles its messages in arrival order
// until the peer disconnects or ctx is cancelled. The peer is closed on return.
func Serve(ctx context.Context, peer Peer, h Handler, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := logging.Component(opts.Name).WithFields(log.Fields{
		"conn_id": uuid.NewString(),
		"remote":  peer.RemoteAddr(),
	})
	logger.Info("client connected")
	defer opts.Metrics.ConnOpened(opts.Name)()

	c := &conn{peer: peer}
	go func() {
		<-ctx.Done()
		peer.Close()
	}()

	if err := c.Send(h.Greeting()); err != nil {
		logger.WithError(err).Warn("greeting failed")
		return err
	}
	detach := h.Attach(c)
	defer detach()

	limiter := opts.limiter()
	for {
		msg, err := peer.ReadMessage()
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				logger.Info("client disconnected")
				return nil
			}
			logger.WithError(err).Warn("read failed")
			return err
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		reply, after := h.HandleMessage(ctx, msg)
		if reply != nil {
			if err := c.Send(reply); err != nil {
				logger.WithError(err).Warn("write failed")
				return err
			}
		}
		if after != nil {
			after()
		}
	}
}
