package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	tracecontext "goim-relation/pkg/context"
)

// MsgPublisher *nats.Conn 的发布能力
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher 把事件发布到 <prefix>.<event> 主题
type NATSPublisher struct {
	conn   MsgPublisher
	prefix string
}

// NewNATSPublisher 创建NATS事件发布者
func NewNATSPublisher(conn MsgPublisher, subjectPrefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: subjectPrefix}
}

// Subject 事件对应的主题
func (p *NATSPublisher) Subject(name Name) string {
	if p.prefix == "" {
		return string(name)
	}
	return p.prefix + "." + string(name)
}

func (p *NATSPublisher) Handle(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := nats.NewMsg(p.Subject(e.Name))
	msg.Data = data
	msg.Header.Set("Event-Id", e.ID)
	if traceID := tracecontext.GetTraceID(ctx); traceID != "" {
		msg.Header.Set("Trace-Id", traceID)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Subject, err)
	}
	return nil
}
