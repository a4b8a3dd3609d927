// Package realtime 实时更新通道
//
// 一条长连接（STOMP over WebSocket），按 (ID, 主题类型) 维护订阅；
// 连接断开时所有订阅作废，重连后全量重新订阅。消息体解析失败只记日志并丢弃。
package realtime

import (
	"context"
	"errors"
)

// ErrNotConnected 连接已关闭
var ErrNotConnected = errors.New("realtime connection is not connected")

// Message 订阅收到的一条消息
type Message struct {
	Destination string
	Body        []byte
}

// Subscription 一个主题订阅，消息按到达顺序从 C() 读取
type Subscription interface {
	Destination() string
	C() <-chan Message
	// Done 订阅取消或连接断开时关闭
	Done() <-chan struct{}
	Unsubscribe() error
}

// Session 一次成功建立的连接
type Session interface {
	Subscribe(destination string) (Subscription, error)
	// Done 连接断开时关闭
	Done() <-chan struct{}
	Close() error
}

// Dialer 建立连接
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}
