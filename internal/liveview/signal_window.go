package liveview

import (
	"rescue-console/internal/models"
	"sync"
	"time"
)

// DefaultSignalWindow 信号图保留的帧数
const DefaultSignalWindow = 150

// SignalWindow 每个传感器最近 N 帧 CSI 振幅
type SignalWindow struct {
	size int
	now  func() time.Time

	mu      sync.RWMutex
	windows map[string][]models.SignalPoint
}

// NewSignalWindow 创建信号窗口
func NewSignalWindow(size int) *SignalWindow {
	if size <= 0 {
		size = DefaultSignalWindow
	}
	return &SignalWindow{
		size:    size,
		now:     time.Now,
		windows: make(map[string][]models.SignalPoint),
	}
}

// Append 追加一帧；没有振幅数据的信号忽略
func (w *SignalWindow) Append(sensorID string, sig models.WifiSignal) {
	if len(sig.CSIAmplitudeSummary) == 0 {
		return
	}
	amps := make([]float64, len(sig.CSIAmplitudeSummary))
	copy(amps, sig.CSIAmplitudeSummary)

	w.mu.Lock()
	defer w.mu.Unlock()
	buf := append(w.windows[sensorID], models.SignalPoint{ReceivedAt: w.now(), Amplitudes: amps})
	if len(buf) > w.size {
		buf = append(buf[:0:0], buf[len(buf)-w.size:]...)
	}
	w.windows[sensorID] = buf
}

// Snapshot 返回传感器当前窗口（副本，按时间先后）
func (w *SignalWindow) Snapshot(sensorID string) []models.SignalPoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	buf := w.windows[sensorID]
	out := make([]models.SignalPoint, len(buf))
	copy(out, buf)
	return out
}

// Reset 清空传感器窗口
func (w *SignalWindow) Reset(sensorID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.windows, sensorID)
}
