package mailer

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTPSink_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SMTPConfig
		wantErr string
	}{
		{"missing host", SMTPConfig{Port: 587, FromAddr: "a@b.com"}, "host"},
		{"missing from", SMTPConfig{Host: "smtp.example.com", Port: 587}, "from"},
		{"bad tls mode", SMTPConfig{Host: "smtp.example.com", Port: 587, FromAddr: "a@b.com", TLS: "maybe"}, "tls"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSMTPSink(tc.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewSMTPSink_TLSModes(t *testing.T) {
	for _, mode := range []string{"", TLSNone, TLSStartTLS, TLSImplicit} {
		t.Run(mode, func(t *testing.T) {
			sink, err := NewSMTPSink(SMTPConfig{
				Host:     "smtp.example.com",
				Port:     465,
				Username: "user",
				Password: "secret",
				TLS:      mode,
				FromAddr: "reminders@example.com",
			})
			require.NoError(t, err)
			assert.NotNil(t, sink)
		})
	}
}

func TestSMTPSink_BuildMessage(t *testing.T) {
	sink, err := NewSMTPSink(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		FromAddr: "reminders@example.com",
		FromName: "DSA Revision Tracker",
	})
	require.NoError(t, err)

	msg, err := sink.buildMessage("learner@example.com", "Time to revise", "plain body", "<p>html body</p>")
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	assert.Contains(t, raw, "learner@example.com")
	assert.Contains(t, raw, "reminders@example.com")
	assert.Contains(t, raw, "DSA Revision Tracker")
	assert.Contains(t, raw, "Subject: Time to revise")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "text/html")
}

func TestSMTPSink_BuildMessage_InvalidRecipient(t *testing.T) {
	sink, err := NewSMTPSink(SMTPConfig{Host: "smtp.example.com", Port: 587, FromAddr: "reminders@example.com"})
	require.NoError(t, err)

	_, err = sink.buildMessage("not an address", "s", "t", "h")
	assert.Error(t, err)
}

func TestLogSink_Send(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	err := sink.Send(context.Background(), "learner@example.com", "Time to revise", "- Two Sum", "<li>Two Sum</li>")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "learner@example.com")
	assert.Contains(t, out, "Time to revise")
	assert.Contains(t, out, "Two Sum")
}
