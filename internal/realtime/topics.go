package realtime

import "fmt"

// TopicKind 订阅的主题类型
type TopicKind string

const (
	KindScores     TopicKind = "scores"
	KindAttributes TopicKind = "attributes"
	KindDetections TopicKind = "detections"
	KindSignal     TopicKind = "signal" // ID 为 WiFi 传感器 ID
)

// Key 订阅键：(ID, 主题类型)
type Key struct {
	ID   string
	Kind TopicKind
}

// Destination 返回该订阅对应的 STOMP destination
func (k Key) Destination() string {
	switch k.Kind {
	case KindScores:
		return fmt.Sprintf("/topic/survivor/%s/scores", k.ID)
	case KindDetections:
		return fmt.Sprintf("/topic/survivor/%s/detections", k.ID)
	case KindSignal:
		return fmt.Sprintf("/topic/wifi-sensor/%s/signal", k.ID)
	default:
		return fmt.Sprintf("/topic/survivor/%s", k.ID)
	}
}

func (k Key) String() string {
	return string(k.Kind) + ":" + k.ID
}
