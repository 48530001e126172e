package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ioDeadline bounds reading the request and writing the response. The
// handler itself runs without one; the client's own budget governs it.
var ioDeadline = 5 * time.Second

// Handler answers one owner command.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve answers one request per connection until ctx ends or listener closes.
// In-flight connections finish before Serve returns.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			serveConn(ctx, conn, handler)
		}()
	}
}

func serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioDeadline))

	var req Request
	if err := readLine(conn, &req, "request"); err != nil {
		_ = writeLine(conn, Response{OK: false, Error: err.Error()})
		return
	}
	_ = conn.SetDeadline(time.Time{})

	resp := handler.Handle(ctx, req)
	_ = conn.SetWriteDeadline(time.Now().Add(ioDeadline))
	_ = writeLine(conn, resp)
}
