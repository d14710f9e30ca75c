package mail

import (
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	msg := string(BuildMessage("ops@example.com", "team@example.com", "Payment failed", "<p>hi</p>"))

	assert.Contains(t, msg, "From: ops@example.com\r\n")
	assert.Contains(t, msg, "To: team@example.com\r\n")
	assert.Contains(t, msg, "Subject: Payment failed\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>hi</p>")
}

func TestSMTPMailer_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotAuth smtp.Auth

	m := NewSMTPMailer(Config{Host: "smtp.example.com", Port: "2525", Username: "u", Password: "p", Sender: "ops@example.com"})
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo = addr, a, from, to
		return nil
	}

	require.NoError(t, m.Send("team@example.com", "subject", "body"))
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, "ops@example.com", gotFrom)
	assert.Equal(t, []string{"team@example.com"}, gotTo)
	assert.NotNil(t, gotAuth)
}

func TestSMTPMailer_SendWithoutCredentials(t *testing.T) {
	var gotAuth smtp.Auth = smtp.PlainAuth("", "x", "y", "z")
	m := NewSMTPMailer(Config{Host: "localhost", Port: "25", Sender: "ops@example.com"})
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAuth = a
		return errors.New("connection refused")
	}

	err := m.Send("team@example.com", "subject", "body")
	assert.Error(t, err)
	assert.Nil(t, gotAuth)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SMTP_HOST", "")
	t.Setenv("SMTP_SENDER", "")

	cfg := LoadConfig()
	assert.False(t, cfg.Configured())
	assert.Equal(t, "no-reply@localhost", cfg.Sender)
}
