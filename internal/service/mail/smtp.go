package mail

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
	"golang.org/x/net/html"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// SMTPSender delivers over SMTP, upgrading with STARTTLS when the server offers it.
type SMTPSender struct {
	cfg SMTPConfig
	ids *IDGenerator
}

func NewSMTPSender(cfg SMTPConfig, ids *IDGenerator) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{cfg: cfg, ids: ids}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) SendResult {
	if msg.To == "" {
		return SendResult{Error: fmt.Errorf("recipient is required")}
	}
	id := s.ids.Next()
	m, err := s.build(msg, id, time.Now())
	if err != nil {
		return SendResult{Error: err}
	}
	if err := s.deliver(ctx, m); err != nil {
		log.Printf("[Mail] Failed to send %q to %s: %v", msg.Subject, msg.To, err)
		return SendResult{Error: err}
	}
	return SendResult{Success: true, MessageID: id}
}

// deliver dials per message; the client is cheap and this keeps Send safe for
// concurrent callers.
func (s *SMTPSender) deliver(ctx context.Context, m *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// build assembles the message. HTML bodies also get a plain-text alternative.
func (s *SMTPSender) build(msg Message, messageID string, now time.Time) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if s.cfg.FromName != "" {
		if err := m.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender %q: %w", s.cfg.From, err)
		}
	} else if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.cfg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(now)
	m.SetMessageIDWithValue(strings.Trim(messageID, "<>"))

	if msg.IsHTML {
		m.SetBodyString(gomail.TypeTextPlain, plainText(msg.Body))
		m.AddAlternativeString(gomail.TypeTextHTML, msg.Body)
	} else {
		m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	}
	return m, nil
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// plainText flattens an HTML body into readable text.
func plainText(body string) string {
	z := html.NewTokenizer(strings.NewReader(body))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return body
			}
			return tidyLines(b.String())
		case html.TextToken:
			if skip == 0 {
				b.WriteString(strings.ReplaceAll(string(z.Text()), "\n", " "))
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tt := z.Token()
			switch tag := tt.Data; {
			case tt.Type == html.StartTagToken && (tag == "style" || tag == "script"):
				skip++
			case blockTags[tag]:
				b.WriteString("\n")
			case tag == "td" || tag == "th":
				b.WriteString(" ")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch tag := string(name); {
			case (tag == "style" || tag == "script") && skip > 0:
				skip--
			case blockTags[tag]:
				b.WriteString("\n")
			}
		}
	}
}

func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
