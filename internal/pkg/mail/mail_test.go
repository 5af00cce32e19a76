package mail

import (
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	to, subject, body string
	err               error
}

func (r *recordingSender) Send(to, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	return r.err
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	m := NewSMTPMailer(Config{Host: "mail.local", Port: "2525", From: "bot@example.com"})

	var gotAddr string
	var gotMsg []byte
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Nil(t, a)
		assert.Equal(t, []string{"ops@example.com"}, to)
		return nil
	}

	require.NoError(t, m.Send("ops@example.com", "audit\nfailed", "body text"))
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Contains(t, string(gotMsg), "Subject: audit failed\r\n")
	assert.Contains(t, string(gotMsg), "\r\n\r\nbody text")
}

func TestOpsAlerter(t *testing.T) {
	assert.NoError(t, NewOpsAlerter(Config{}).Alert("x", "y"))

	var nilAlerter *OpsAlerter
	assert.NoError(t, nilAlerter.Alert("x", "y"))

	rec := &recordingSender{}
	a := NewOpsAlerterWithSender(rec, "ops@example.com")
	require.NoError(t, a.Alert("audit write failed", "details"))
	assert.Equal(t, "ops@example.com", rec.to)
	assert.Equal(t, "[assistdesk] audit write failed", rec.subject)

	rec.err = errors.New("smtp down")
	assert.Error(t, a.Alert("again", "details"))
}
