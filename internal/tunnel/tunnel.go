package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyStarted is returned by Start when the tunnel's streams were
// already consumed by an earlier call.
var ErrAlreadyStarted = errors.New("tunnel: already started")

// Stream is a duplex byte stream whose write side can be shut down on its own.
// *net.TCPConn and *tls.Conn both satisfy it.
type Stream interface {
	io.ReadWriteCloser
	CloseWrite() error
}

// Endpoint is one side of a tunnel: a stream and a human-readable label used
// for logging.
type Endpoint struct {
	Name string
	Conn Stream
}

// Stats holds the bytes relayed in each direction of a finished tunnel.
type Stats struct {
	ClientToDest int64
	DestToClient int64
}

type endpoints struct {
	client Endpoint
	dest   Endpoint
}

// Tunnel relays bytes between a client and a destination until both
// directions reach end-of-stream or one of them fails.
type Tunnel struct {
	ends   atomic.Pointer[endpoints]
	logger *zap.Logger
}

// New builds a Tunnel owning both streams. A nil logger disables logging.
func New(client, dest Endpoint, logger *zap.Logger) *Tunnel {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tunnel{logger: logger}
	t.ends.Store(&endpoints{client: client, dest: dest})
	return t
}

// Start runs both relay loops and blocks until they finish.
//
// Each loop half-closes its destination once its source is drained. The first
// error from either loop is returned and both streams are closed so the other
// loop cannot block forever. Both streams are closed before Start returns.
// Cancelling ctx aborts the tunnel the same way.
func (t *Tunnel) Start(ctx context.Context) (Stats, error) {
	ends := t.ends.Swap(nil)
	if ends == nil {
		return Stats{}, ErrAlreadyStarted
	}
	client, dest := ends.client, ends.dest

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = client.Conn.Close()
			_ = dest.Conn.Close()
		})
	}
	defer closeBoth()

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, closeBoth)
	defer stop()

	var stats Stats
	g.Go(func() error {
		name := fmt.Sprintf("%s → %s", client.Name, dest.Name)
		n, err := t.relay(name, client.Conn, dest.Conn)
		stats.ClientToDest = n
		return err
	})
	g.Go(func() error {
		name := fmt.Sprintf("%s → %s", dest.Name, client.Name)
		n, err := t.relay(name, dest.Conn, client.Conn)
		stats.DestToClient = n
		return err
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// relay copies src into dst one chunk at a time. Each chunk is fully written
// before the next read, so at most one chunk per direction is in flight.
// It returns the number of bytes read from src.
func (t *Tunnel) relay(name string, src io.Reader, dst Stream) (int64, error) {
	buf := getChunk()
	defer putChunk(buf)

	var total int64
	for {
		n, rerr := src.Read(*buf)
		if n > 0 {
			total += int64(n)
			if _, err := dst.Write((*buf)[:n]); err != nil {
				return total, fmt.Errorf("%s: write: %w", name, err)
			}
			t.logger.Debug("relayed chunk", zap.String("direction", name), zap.Int("bytes", n))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return total, fmt.Errorf("%s: read: %w", name, rerr)
		}
	}
	if err := dst.CloseWrite(); err != nil {
		return total, fmt.Errorf("%s: half-close: %w", name, err)
	}
	return total, nil
}
