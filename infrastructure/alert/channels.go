package alert

import (
	"fmt"
	"os"
	"sync"

	"exchange-terminal-go/infrastructure/logger"
)

// LoggerChannel 把告警写进结构化日志
type LoggerChannel struct {
	log *logger.Logger
}

// NewLoggerChannel 创建日志告警通道
func NewLoggerChannel(log *logger.Logger) *LoggerChannel {
	return &LoggerChannel{log: log}
}

func (c *LoggerChannel) Send(alert Alert) error {
	fields := map[string]interface{}{
		"level":   string(alert.Level),
		"message": alert.Message,
	}
	for k, v := range alert.Fields {
		fields[k] = v
	}
	switch alert.Level {
	case LevelError, LevelCritical:
		c.log.WithFields(fields).Error("alert")
	default:
		c.log.WithFields(fields).Warn("alert")
	}
	return nil
}

func (c *LoggerChannel) Name() string {
	return "logger"
}

// ConsoleChannel 控制台告警通道（带颜色）
type ConsoleChannel struct{}

// NewConsoleChannel 创建控制台告警通道
func NewConsoleChannel() *ConsoleChannel {
	return &ConsoleChannel{}
}

func (c *ConsoleChannel) Send(alert Alert) error {
	color := colorFor(alert.Level)
	reset := "\033[0m"

	fmt.Fprintf(os.Stderr, "%s[%s]%s %s %s",
		color, alert.Level, reset,
		alert.Timestamp.Format("15:04:05"),
		alert.Message)
	for k, v := range alert.Fields {
		fmt.Fprintf(os.Stderr, " %s=%v", k, v)
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

func (c *ConsoleChannel) Name() string {
	return "console"
}

func colorFor(level Level) string {
	switch level {
	case LevelWarning:
		return "\033[33m" // 黄色
	case LevelError:
		return "\033[31m" // 红色
	case LevelCritical:
		return "\033[35m" // 紫色
	default:
		return "\033[32m" // 绿色
	}
}

// MockChannel 测试用告警通道
type MockChannel struct {
	mu        sync.Mutex
	alerts    []Alert
	shouldErr bool
}

// NewMockChannel 创建Mock通道
func NewMockChannel(shouldErr bool) *MockChannel {
	return &MockChannel{shouldErr: shouldErr}
}

func (c *MockChannel) Send(alert Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shouldErr {
		return fmt.Errorf("mock send failed")
	}
	c.alerts = append(c.alerts, alert)
	return nil
}

func (c *MockChannel) Name() string {
	return "mock"
}

// Alerts 返回已记录的告警副本
func (c *MockChannel) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// Count 返回告警数量
func (c *MockChannel) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}
