package liveview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrNetwork 可恢复的网络错误：重新加载同一个源
	ErrNetwork = errors.New("stream network error")
	// ErrFatal 不可恢复的错误：延迟后完整重新挂载
	ErrFatal = errors.New("stream fatal error")
)

// Opener 打开/探测一个媒体源
type Opener interface {
	Open(ctx context.Context, src Source) error
}

// PlaylistOpener 通过拉取 HLS 播放列表判断流是否可用
type PlaylistOpener struct {
	httpClient *resty.Client
}

// NewPlaylistOpener 创建播放列表探测器
func NewPlaylistOpener(timeout time.Duration) *PlaylistOpener {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PlaylistOpener{
		httpClient: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/vnd.apple.mpegurl, */*"),
	}
}

// Open 探测播放列表；信号图不需要探测
func (o *PlaylistOpener) Open(ctx context.Context, src Source) error {
	if src.Kind != SourceVideo {
		return nil
	}
	resp, err := o.httpClient.R().
		SetContext(ctx).
		Get(src.StreamURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	switch {
	case resp.StatusCode() >= http.StatusInternalServerError:
		return fmt.Errorf("%w: playlist returned %d", ErrNetwork, resp.StatusCode())
	case resp.IsError():
		return fmt.Errorf("%w: playlist returned %d", ErrFatal, resp.StatusCode())
	}
	if !strings.HasPrefix(strings.TrimSpace(resp.String()), "#EXTM3U") {
		return fmt.Errorf("%w: not an HLS playlist", ErrFatal)
	}
	return nil
}
