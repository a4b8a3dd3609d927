// Package consumer WiFi CSI 信号的 MQTT 来源（旧版通道，WIFI_SIGNAL_SOURCE=mqtt 时启用）
package consumer

import (
	"context"
	"fmt"
	"strings"

	mqttcommon "rescue-console/common/mqtt"
	"rescue-console/internal/models"
	"rescue-console/internal/realtime"

	"go.uber.org/zap"
)

// Subscriber MQTT 订阅接口（common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// SignalTarget 信号写入目标
type SignalTarget interface {
	ApplyWifiSignal(sensorID string, sig models.WifiSignal) int
}

// WifiMQTTConsumer MQTT 信号消费者
type WifiMQTTConsumer struct {
	topic      string
	qos        byte
	subscriber Subscriber
	target     SignalTarget
	sink       realtime.SignalSink
	logger     *zap.Logger
}

// NewWifiMQTTConsumer 创建消费者；sink 可以为 nil
func NewWifiMQTTConsumer(topic string, qos byte, subscriber Subscriber, target SignalTarget, sink realtime.SignalSink, logger *zap.Logger) *WifiMQTTConsumer {
	return &WifiMQTTConsumer{
		topic:      topic,
		qos:        qos,
		subscriber: subscriber,
		target:     target,
		sink:       sink,
		logger:     logger,
	}
}

// Start 订阅信号主题并阻塞到 ctx 取消
func (c *WifiMQTTConsumer) Start(ctx context.Context) error {
	if err := c.subscriber.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to signal topic: %w", err)
	}

	c.logger.Info("WiFi MQTT consumer started", zap.String("topic", c.topic))

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *WifiMQTTConsumer) Stop(ctx context.Context) error {
	if err := c.subscriber.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("WiFi MQTT consumer stopped")
	return nil
}

// handleMessage 主题格式: csi/{sensor_id}/signal
func (c *WifiMQTTConsumer) handleMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[1] == "" {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	sensorID := parts[1]

	sig, err := realtime.DecodeWifiSignal(payload)
	if err != nil {
		return err
	}

	matched := c.target.ApplyWifiSignal(sensorID, sig)
	if c.sink != nil {
		c.sink.Append(sensorID, sig)
	}

	c.logger.Debug("Applied WiFi signal from MQTT",
		zap.String("sensor_id", sensorID),
		zap.Bool("survivor_detected", sig.SurvivorDetected),
		zap.Int("matched_records", matched),
	)
	return nil
}
