// Package mail is the outbound email capability used by the notification dispatcher.
package mail

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/snowflake"
)

type Message struct {
	To      string
	Subject string
	Body    string
	IsHTML  bool
}

type SendResult struct {
	Success   bool
	Error     error
	MessageID string
}

// Sender delivers a single message. Implementations never panic and report
// transport problems through SendResult.Error.
type Sender interface {
	Send(ctx context.Context, msg Message) SendResult
}

// IDGenerator produces Message-ID values.
type IDGenerator struct {
	node   *snowflake.Node
	domain string
}

func NewIDGenerator(nodeID int64, domain string) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}
	if domain == "" {
		domain = "localhost"
	}
	return &IDGenerator{node: node, domain: domain}, nil
}

func (g *IDGenerator) Next() string {
	return fmt.Sprintf("<%s@%s>", g.node.Generate().Base58(), g.domain)
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	ids *IDGenerator

	mu   sync.Mutex
	sent []Message
}

func NewLogSender(ids *IDGenerator) *LogSender {
	return &LogSender{ids: ids}
}

func (s *LogSender) Send(ctx context.Context, msg Message) SendResult {
	if msg.To == "" {
		return SendResult{Error: fmt.Errorf("recipient is required")}
	}
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	id := s.ids.Next()
	log.Printf("[Mail] (log only) to=%s subject=%q id=%s", msg.To, msg.Subject, id)
	return SendResult{Success: true, MessageID: id}
}

// Sent returns a copy of every message accepted so far.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
