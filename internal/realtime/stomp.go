package realtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"rescue-console/common/config"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait        = 10 * time.Second
	connectTimeout   = 10 * time.Second
	subscriptionSize = 64
)

// StompDialer 通过 WebSocket 建立 STOMP 连接
type StompDialer struct {
	cfg    config.StompConfig
	dialer *websocket.Dialer
	logger *zap.Logger
}

// NewStompDialer 创建 STOMP 连接器
func NewStompDialer(cfg config.StompConfig, logger *zap.Logger) *StompDialer {
	return &StompDialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: connectTimeout,
		},
		logger: logger,
	}
}

// Dial 建立 WebSocket 连接并完成 STOMP CONNECT 握手
func (d *StompDialer) Dial(ctx context.Context) (Session, error) {
	ws, _, err := d.dialer.DialContext(ctx, d.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", d.cfg.URL, err)
	}

	hb := strconv.FormatInt(d.cfg.HeartBeat.Milliseconds(), 10)
	connect := frame.New(frame.CONNECT,
		"accept-version", "1.1,1.2",
		"host", d.cfg.Host,
		"heart-beat", hb+","+hb,
	)
	if d.cfg.Login != "" {
		connect.Header.Add("login", d.cfg.Login)
		connect.Header.Add("passcode", d.cfg.Passcode)
	}
	if err := writeFrame(ws, connect); err != nil {
		ws.Close()
		return nil, fmt.Errorf("failed to send CONNECT: %w", err)
	}

	deadline := time.Now().Add(connectTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = ws.SetReadDeadline(deadline)
	f, err := readFrame(ws)
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("failed to read CONNECTED: %w", err)
	}
	switch f.Command {
	case frame.CONNECTED:
	case frame.ERROR:
		ws.Close()
		return nil, fmt.Errorf("stomp connect rejected: %s", f.Header.Get("message"))
	default:
		ws.Close()
		return nil, fmt.Errorf("unexpected frame %s during connect", f.Command)
	}

	incoming, outgoing := negotiateHeartBeat(d.cfg.HeartBeat, f.Header.Get("heart-beat"))
	c := newConn(ws, incoming, outgoing, d.logger)
	c.session = f.Header.Get("session")
	c.logger.Info("STOMP connected",
		zap.String("url", d.cfg.URL),
		zap.String("session", c.session),
		zap.String("version", f.Header.Get("version")),
		zap.Duration("heartbeat_in", incoming),
		zap.Duration("heartbeat_out", outgoing),
	)
	go c.readLoop()
	go c.heartbeatLoop()
	return c, nil
}

// negotiateHeartBeat 按 CONNECTED 帧的 heart-beat 头协商心跳间隔。
// 客户端两个方向都申报 local；任一方为 0 表示该方向不做心跳，头缺失按 "0,0" 处理。
func negotiateHeartBeat(local time.Duration, header string) (incoming, outgoing time.Duration) {
	if local <= 0 {
		return 0, 0
	}
	sx, sy := parseHeartBeat(header)
	if sx > 0 {
		incoming = maxDuration(local, sx)
	}
	if sy > 0 {
		outgoing = maxDuration(local, sy)
	}
	return incoming, outgoing
}

// parseHeartBeat 解析 "sx,sy"（毫秒），格式错误视为 0
func parseHeartBeat(header string) (sx, sy time.Duration) {
	parts := strings.Split(header, ",")
	if len(parts) != 2 {
		return 0, 0
	}
	ms := func(v string) time.Duration {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n < 0 {
			return 0
		}
		return time.Duration(n) * time.Millisecond
	}
	return ms(parts[0]), ms(parts[1])
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// writeFrame 一个 STOMP 帧对应一条 WebSocket 文本消息
func writeFrame(ws *websocket.Conn, f *frame.Frame) error {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, buf.Bytes())
}

// readFrame 读取下一个非心跳帧
func readFrame(ws *websocket.Conn) (*frame.Frame, error) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		f, err := decodeFrame(data)
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}
}

// decodeFrame 心跳消息返回 nil
func decodeFrame(data []byte) (*frame.Frame, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	f, err := frame.NewReader(bytes.NewReader(data)).Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return f, nil
}

// Conn 一条 STOMP 连接
type Conn struct {
	ws       *websocket.Conn
	incoming time.Duration // 服务端心跳间隔，0 表示不设读超时
	outgoing time.Duration // 本端心跳间隔，0 表示不发送
	session  string
	logger   *zap.Logger

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]*stompSubscription

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, incoming, outgoing time.Duration, logger *zap.Logger) *Conn {
	return &Conn{
		ws:       ws,
		incoming: incoming,
		outgoing: outgoing,
		logger:   logger,
		subs:     make(map[string]*stompSubscription),
		done:     make(chan struct{}),
	}
}

func (c *Conn) send(f *frame.Frame) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(c.ws, f)
}

// Subscribe 订阅 destination
func (c *Conn) Subscribe(destination string) (Subscription, error) {
	sub := &stompSubscription{
		id:          uuid.NewString(),
		destination: destination,
		ch:          make(chan Message, subscriptionSize),
		done:        make(chan struct{}),
		conn:        c,
	}

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return nil, ErrNotConnected
	default:
	}
	c.subs[sub.id] = sub
	c.mu.Unlock()

	f := frame.New(frame.SUBSCRIBE,
		"id", sub.id,
		"destination", destination,
		"ack", "auto",
	)
	if err := c.send(f); err != nil {
		c.remove(sub.id)
		return nil, fmt.Errorf("failed to subscribe %s: %w", destination, err)
	}
	return sub, nil
}

func (c *Conn) remove(id string) *stompSubscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[id]
	if !ok {
		return nil
	}
	delete(c.subs, id)
	sub.closeDone()
	return sub
}

// Done 连接断开时关闭
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close 发送 DISCONNECT 并关闭连接
func (c *Conn) Close() error {
	_ = c.send(frame.New(frame.DISCONNECT))
	c.shutdown(nil)
	return nil
}

func (c *Conn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		if cause != nil {
			c.logger.Warn("STOMP connection lost", zap.String("session", c.session), zap.Error(cause))
		}
		c.mu.Lock()
		close(c.done)
		for id, sub := range c.subs {
			sub.closeDone()
			delete(c.subs, id)
		}
		c.mu.Unlock()
		c.ws.Close()
	})
}

func (c *Conn) readLoop() {
	if c.incoming > 0 {
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(3 * c.incoming))
		})
	}
	for {
		if c.incoming > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(3 * c.incoming))
		} else {
			_ = c.ws.SetReadDeadline(time.Time{})
		}
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		f, err := decodeFrame(data)
		if err != nil {
			c.logger.Warn("Dropping undecodable frame", zap.Error(err))
			continue
		}
		if f == nil {
			continue
		}
		switch f.Command {
		case frame.MESSAGE:
			c.dispatch(f)
		case frame.ERROR:
			c.shutdown(fmt.Errorf("stomp error frame: %s", f.Header.Get("message")))
			return
		case frame.RECEIPT:
		default:
			c.logger.Debug("Ignoring frame", zap.String("command", f.Command))
		}
	}
}

func (c *Conn) dispatch(f *frame.Frame) {
	id := f.Header.Get("subscription")
	c.mu.Lock()
	sub, ok := c.subs[id]
	c.mu.Unlock()
	if !ok {
		return
	}
	msg := Message{Destination: f.Header.Get("destination"), Body: f.Body}
	select {
	case sub.ch <- msg:
	case <-sub.done:
	case <-c.done:
	}
}

func (c *Conn) heartbeatLoop() {
	if c.outgoing <= 0 {
		return
	}
	ticker := time.NewTicker(c.outgoing)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.ws.WriteMessage(websocket.TextMessage, []byte("\n"))
			c.writeMu.Unlock()
			if err != nil {
				c.shutdown(fmt.Errorf("heartbeat failed: %w", err))
				return
			}
		}
	}
}

type stompSubscription struct {
	id          string
	destination string
	ch          chan Message
	done        chan struct{}
	doneOnce    sync.Once
	conn        *Conn
}

func (s *stompSubscription) Destination() string   { return s.destination }
func (s *stompSubscription) C() <-chan Message     { return s.ch }
func (s *stompSubscription) Done() <-chan struct{} { return s.done }

func (s *stompSubscription) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Unsubscribe 取消订阅；连接已断开时只做本地清理
func (s *stompSubscription) Unsubscribe() error {
	if s.conn.remove(s.id) == nil {
		return nil
	}
	if err := s.conn.send(frame.New(frame.UNSUBSCRIBE, "id", s.id)); err != nil && !errors.Is(err, ErrNotConnected) {
		return fmt.Errorf("failed to unsubscribe %s: %w", s.destination, err)
	}
	return nil
}
