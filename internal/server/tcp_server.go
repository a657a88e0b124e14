package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/JimLucas95338/farmvision/internal/codec"
	"github.com/JimLucas95338/farmvision/internal/observability"
	"github.com/JimLucas95338/farmvision/internal/utilities"
)

// Sink recibe los fixes decodificados; provider.Feed lo implementa.
type Sink interface {
	Push(device string, fix codec.RawFix)
}

// TcpServer acepta conexiones de dispositivos que envían fixes NDJSON.
type TcpServer struct {
	sink      Sink
	logger    *slog.Logger
	metrics   *observability.Metrics
	rawLogDir string
	now       func() time.Time

	// una entrada por conexión; dos conexiones pueden anunciar el mismo device
	mu     sync.Mutex
	active map[net.Conn]string
}

func New(sink Sink, logger *slog.Logger, metrics *observability.Metrics, rawLogDir string) *TcpServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TcpServer{
		sink:      sink,
		logger:    logger.With("component", "feed"),
		metrics:   metrics,
		rawLogDir: rawLogDir,
		now:       time.Now,
		active:    make(map[net.Conn]string),
	}
}

// Start escucha en addr hasta que ctx se cancele. Devuelve nil si el cierre
// fue por cancelación.
func (srv *TcpServer) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("error starting TCP server: %w", err)
	}
	return srv.Serve(ctx, listener)
}

func (srv *TcpServer) Serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	srv.logger.Info("TCP feed listening", "addr", listener.Addr().String())

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				srv.closeAll()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			srv.closeAll()
			return fmt.Errorf("accept: %w", err)
		}
		if srv.metrics != nil {
			srv.metrics.FeedConnections.Inc()
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			srv.HandleConnection(c)
		}(conn)
	}
}

func (srv *TcpServer) HandleConnection(conn net.Conn) {
	defer conn.Close()

	device := conn.RemoteAddr().String()
	srv.track(conn, device)
	defer func() {
		srv.untrack(conn)
		srv.logger.Info("device disconnected", "device", device)
	}()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(60 * time.Second)
	}

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if srv.metrics != nil {
			srv.metrics.FramesRecv.Inc()
		}
		if err := utilities.CreateLog(srv.rawLogDir, "RAWFIXES", string(line)); err != nil {
			srv.logger.Warn("raw log write failed", "err", err)
		}

		frame, err := codec.DecodeFrame(line, srv.now())
		if err != nil {
			if srv.metrics != nil {
				srv.metrics.FrameErrors.Inc()
			}
			srv.logger.Warn("invalid frame", "device", device, "err", err)
			continue
		}

		switch frame.Kind {
		case codec.FrameHello:
			if frame.Hello.Device != "" {
				device = frame.Hello.Device
				srv.track(conn, device)
				srv.logger.Info("[HANDSHAKE] device identified", "device", device, "remote", conn.RemoteAddr().String())
			}
		case codec.FrameFix:
			srv.sink.Push(device, frame.Fix)
		}
	}
	if err := sc.Err(); err != nil {
		srv.logger.Warn("read error", "device", device, "err", err)
	}
}

// ActiveDevices devuelve los dispositivos conectados, uno por conexión y
// ordenados.
func (srv *TcpServer) ActiveDevices() []string {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	out := make([]string, 0, len(srv.active))
	for _, d := range srv.active {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (srv *TcpServer) track(conn net.Conn, device string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.active[conn] = device
}

func (srv *TcpServer) untrack(conn net.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	delete(srv.active, conn)
}

func (srv *TcpServer) closeAll() {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	for c := range srv.active {
		_ = c.Close()
	}
}
