package logger

import (
	"bytes"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edgecomet/skeleton/internal/common/configtypes"
)

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// MailCore is a zapcore.Core that mails every ERROR-or-above entry.
type MailCore struct {
	zapcore.LevelEnabler
	encoder zapcore.Encoder
	config  configtypes.MailLogConfig
	auth    smtp.Auth
	send    SendMailFunc
}

// NewMailCore validates config and returns a mail core. send defaults to smtp.SendMail.
func NewMailCore(config configtypes.MailLogConfig, send SendMailFunc) (*MailCore, error) {
	if config.Host == "" || config.From == "" || len(config.To) == 0 {
		return nil, fmt.Errorf("mail logging requires host, from and at least one recipient")
	}
	if send == nil {
		send = smtp.SendMail
	}

	var auth smtp.Auth
	if config.User != "" || config.Password != "" {
		host, _, err := net.SplitHostPort(config.Host)
		if err != nil {
			return nil, fmt.Errorf("mail host must be host:port: %w", err)
		}
		auth = smtp.PlainAuth("", config.User, config.Password, host)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return &MailCore{
		LevelEnabler: zap.ErrorLevel,
		encoder:      zapcore.NewConsoleEncoder(encoderConfig),
		config:       config,
		auth:         auth,
		send:         send,
	}, nil
}

func (c *MailCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.encoder = c.encoder.Clone()
	for _, f := range fields {
		f.AddTo(clone.encoder)
	}
	return &clone
}

func (c *MailCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *MailCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()

	subject := c.config.Subject
	if subject == "" {
		subject = entry.Level.CapitalString() + ": " + entry.Message
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", c.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(c.config.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.Write(buf.Bytes())

	return c.send(c.config.Host, c.auth, c.config.From, c.config.To, msg.Bytes())
}

func (c *MailCore) Sync() error {
	return nil
}
