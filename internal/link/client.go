package link

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/JimLucas95338/farmvision/internal/pipeline"
)

var ErrNotConnected = errors.New("link: not connected")

// Client mantiene una conexión TCP con el proxy del dashboard y le envía
// NDJSON. Si addr == "" el link queda deshabilitado.
type Client struct {
	addr   string
	logger *slog.Logger

	dialBackoff      time.Duration
	reconnectBackoff time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func New(addr string, lg *slog.Logger) *Client {
	if lg == nil {
		lg = slog.Default()
	}
	return &Client{
		addr:             addr,
		logger:           lg.With("component", "link"),
		dialBackoff:      5 * time.Second,
		reconnectBackoff: 2 * time.Second,
	}
}

func (c *Client) Enabled() bool { return c != nil && c.addr != "" }

// Run conecta y reconecta hasta que ctx se cancele.
func (c *Client) Run(ctx context.Context) {
	if !c.Enabled() {
		c.logger.Info("link: disabled (no proxy address configured)")
		return
	}
	c.connectLoop(ctx)
}

// -------------------------------------------------------------------
//                        LOOP DE CONEXIÓN
// -------------------------------------------------------------------

func (c *Client) connectLoop(ctx context.Context) {
	var d net.Dialer
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := d.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			c.logger.Error("link: dial failed", "addr", c.addr, "err", err)
			if !sleepCtx(ctx, c.dialBackoff) {
				return
			}
			continue
		}

		c.setConn(conn)
		c.logger.Info("link: connected", "remote", conn.RemoteAddr().String())

		// cerrar la conexión si se cancela el contexto para destrabar el read
		stop := context.AfterFunc(ctx, func() { c.clearConn(conn) })
		c.readLoop(conn)
		stop()

		c.clearConn(conn)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("link: connection closed, reconnecting...")
		if !sleepCtx(ctx, c.reconnectBackoff) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Client) clearConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) getConn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Connected indica si hay una conexión activa con el proxy.
func (c *Client) Connected() bool { return c.getConn() != nil }

// -------------------------------------------------------------------
//                           LECTURA
// -------------------------------------------------------------------

func (c *Client) readLoop(conn net.Conn) {
	r := bufio.NewScanner(conn)
	for r.Scan() {
		c.handleIncomingLine(r.Bytes())
	}
	if err := r.Err(); err != nil && err != io.EOF {
		c.logger.Warn("link: read error", "err", err)
	}
}

// Por ahora sólo logueamos lo que llega del proxy.
func (c *Client) handleIncomingLine(line []byte) {
	c.logger.Debug("link: incoming line", "line", string(line))
}

// -------------------------------------------------------------------
//                          ENVÍO NDJSON
// -------------------------------------------------------------------

func (c *Client) sendNDJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	_, err = c.conn.Write(append(b, '\n'))
	return err
}

// -------------------------------------------------------------------
//          PAYLOADS DE ALTO NIVEL HACIA EL PROXY (NDJSON)
// -------------------------------------------------------------------

// anchor_register
type anchorRegisterPayload struct {
	AnchorRegister bool    `json:"anchor_register"`
	ID             string  `json:"id"`
	Name           string  `json:"name,omitempty"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
}

// anchor_remove
type anchorRemovePayload struct {
	AnchorRemove bool   `json:"anchor_remove"`
	ID           string `json:"id"`
}

// tracking
type trackingPayload struct {
	Tracking bool `json:"tracking"`
	*pipeline.TrackingObject
}

// -------------------------------------------------------------------
//                 FUNCIONES PÚBLICAS PARA EL RESTO
// -------------------------------------------------------------------

// SendAnchor notifica el alta o baja de un ancla.
func (c *Client) SendAnchor(info AnchorInfo) error {
	if !c.Enabled() {
		return nil
	}
	var pl interface{}
	switch info.Event {
	case AnchorEventRegister:
		pl = anchorRegisterPayload{
			AnchorRegister: true,
			ID:             info.ID,
			Name:           info.Name,
			Lat:            info.Latitude,
			Lon:            info.Longitude,
		}
	case AnchorEventRemove:
		pl = anchorRemovePayload{AnchorRemove: true, ID: info.ID}
	default:
		return fmt.Errorf("link: unknown anchor event %d", info.Event)
	}
	if err := c.sendNDJSON(pl); err != nil {
		c.logger.Warn("link: send anchor event failed", "id", info.ID, "err", err)
		return err
	}
	return nil
}

// SendTracking envía el tracking del tick como NDJSON.
func (c *Client) SendTracking(tr *pipeline.TrackingObject) error {
	if !c.Enabled() || tr == nil {
		return nil
	}
	if err := c.sendNDJSON(trackingPayload{Tracking: true, TrackingObject: tr}); err != nil {
		c.logger.Debug("link: send tracking failed", "session", tr.SessionID, "err", err)
		return err
	}
	return nil
}
