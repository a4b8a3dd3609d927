package liveview

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionState 会话状态
type SessionState string

const (
	StateConnecting SessionState = "connecting"
	StateLive       SessionState = "live"
	StateReloading  SessionState = "reloading"
	StateFailed     SessionState = "failed"
)

// PoolOptions 会话池参数
type PoolOptions struct {
	GracePeriod   time.Duration // 最后一个使用者释放后的保留时间
	RetryDelay    time.Duration // 致命错误后重新挂载的延迟
	ReloadDelay   time.Duration // 网络错误后重新加载的延迟
	ProbeInterval time.Duration // 正常播放时的健康检查间隔
}

func (o *PoolOptions) setDefaults() {
	if o.GracePeriod <= 0 {
		o.GracePeriod = 2 * time.Minute
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 5 * time.Second
	}
	if o.ReloadDelay <= 0 {
		o.ReloadDelay = time.Second
	}
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = 10 * time.Second
	}
}

// SessionInfo 会话状态快照
type SessionInfo struct {
	TileKey   string       `json:"tile_key"`
	Source    Source       `json:"source"`
	State     SessionState `json:"state"`
	Refs      int          `json:"refs"`
	Reloads   int          `json:"reloads"`
	Reattachs int          `json:"reattaches"`
	LastError string       `json:"last_error,omitempty"`
}

type session struct {
	key    string
	src    Source
	refs   int
	timer  *time.Timer
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	state     SessionState
	reloads   int
	reattachs int
	lastErr   error
}

func (s *session) setState(state SessionState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.lastErr = err
	switch state {
	case StateReloading:
		s.reloads++
	case StateFailed:
		s.reattachs++
	}
}

// SessionPool 按 tile key 复用的流会话池
type SessionPool struct {
	opener Opener
	opts   PoolOptions
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewSessionPool 创建会话池
func NewSessionPool(opener Opener, opts PoolOptions, logger *zap.Logger) *SessionPool {
	opts.setDefaults()
	return &SessionPool{
		opener:   opener,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Acquire 获取（或复用）tile key 对应的会话，返回释放函数
// 释放函数可以重复调用，只有第一次生效
func (p *SessionPool) Acquire(src Source) (release func(), err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("session pool closed")
	}

	s, ok := p.sessions[src.TileKey]
	if ok && s.src.StreamURL != src.StreamURL {
		// 同一个 key 换了源：立即重建
		p.teardownLocked(s)
		ok = false
	}
	if !ok {
		s = p.startLocked(src)
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.refs++

	var once sync.Once
	return func() {
		once.Do(func() { p.release(s) })
	}, nil
}

func (p *SessionPool) startLocked(src Source) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		key:    src.TileKey,
		src:    src,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateConnecting,
	}
	p.sessions[src.TileKey] = s
	go p.run(ctx, s)
	p.logger.Debug("Stream session started", zap.String("tile_key", src.TileKey))
	return s
}

func (p *SessionPool) release(s *session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions[s.key] != s {
		return
	}
	s.refs--
	if s.refs > 0 {
		return
	}
	s.refs = 0
	s.timer = time.AfterFunc(p.opts.GracePeriod, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.sessions[s.key] == s && s.refs == 0 {
			p.teardownLocked(s)
		}
	})
}

func (p *SessionPool) teardownLocked(s *session) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.cancel()
	delete(p.sessions, s.key)
	p.logger.Debug("Stream session torn down", zap.String("tile_key", s.key))
}

// run 会话生命周期：网络错误重新加载，致命错误延迟后重新挂载
func (p *SessionPool) run(ctx context.Context, s *session) {
	defer close(s.done)
	for {
		err := p.opener.Open(ctx, s.src)
		if ctx.Err() != nil {
			return
		}

		var wait time.Duration
		switch {
		case err == nil:
			s.setState(StateLive, nil)
			wait = p.opts.ProbeInterval
		case errors.Is(err, ErrNetwork):
			s.setState(StateReloading, err)
			wait = p.opts.ReloadDelay
		default:
			s.setState(StateFailed, err)
			wait = p.opts.RetryDelay
			p.logger.Warn("Stream failed, scheduling re-attach",
				zap.String("tile_key", s.key),
				zap.Duration("retry_in", wait),
				zap.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Info 会话状态；不存在时返回 false
func (p *SessionPool) Info(tileKey string) (SessionInfo, bool) {
	p.mu.Lock()
	s, ok := p.sessions[tileKey]
	var refs int
	if ok {
		refs = s.refs
	}
	p.mu.Unlock()
	if !ok {
		return SessionInfo{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	info := SessionInfo{
		TileKey:   s.key,
		Source:    s.src,
		State:     s.state,
		Refs:      refs,
		Reloads:   s.reloads,
		Reattachs: s.reattachs,
	}
	if s.lastErr != nil {
		info.LastError = s.lastErr.Error()
	}
	return info, true
}

// Len 存活的会话数（含宽限期内的）
func (p *SessionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Close 立即释放所有会话
func (p *SessionPool) Close() {
	p.mu.Lock()
	p.closed = true
	sessions := make([]*session, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
		p.teardownLocked(s)
	}
	p.mu.Unlock()

	for _, s := range sessions {
		<-s.done
	}
}
