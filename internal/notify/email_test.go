package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/gomail.v2"

	"github.com/mindflow/companion-backend/internal/config"
)

// captureMailer swaps the dial-and-send hook for one that renders the
// message into a buffer.
func captureMailer(t *testing.T) (*Mailer, *bytes.Buffer) {
	t.Helper()
	m := NewMailer(&config.Config{
		SMTPHost:      "smtp.example.com",
		SMTPPort:      587,
		EmailUser:     "noreply@example.com",
		EmailPassword: "pw",
	})
	var buf bytes.Buffer
	m.send = func(msg *gomail.Message) error {
		_, err := msg.WriteTo(&buf)
		return err
	}
	return m, &buf
}

func TestMailerConfigured(t *testing.T) {
	m := NewMailer(&config.Config{EmailUser: "u", EmailPassword: "p"})
	assert.True(t, m.Configured())

	m = NewMailer(&config.Config{EmailUser: "u"})
	assert.False(t, m.Configured())
}

func TestSendPlainText(t *testing.T) {
	m, buf := captureMailer(t)
	require.NoError(t, m.Send("to@example.com", "Checking in", "hello"))

	out := buf.String()
	assert.Contains(t, out, "To: to@example.com")
	assert.Contains(t, out, "Subject: Checking in")
	assert.Contains(t, out, "hello")
}

func TestResetCodeEmailsCarryCodeAndExpiry(t *testing.T) {
	m, buf := captureMailer(t)
	require.NoError(t, m.SendResetCode("to@example.com", "123456"))

	out := buf.String()
	assert.Contains(t, out, "Subject: Password Reset Code")
	assert.Contains(t, out, "123456")
	assert.Contains(t, out, "10 minutes")
}

func TestCaregiverEmailsUseCaregiverSubjects(t *testing.T) {
	m, buf := captureMailer(t)

	require.NoError(t, m.SendCaregiverResetCode("to@example.com", "654321"))
	assert.Contains(t, buf.String(), "Subject: Caregiver Password Reset Code")

	buf.Reset()
	require.NoError(t, m.SendCaregiverVerificationCode("to@example.com", "654321"))
	assert.Contains(t, buf.String(), "Subject: Your Caregiver Email Verification Code")
}

func TestVerificationCodeEmail(t *testing.T) {
	m, buf := captureMailer(t)
	require.NoError(t, m.SendVerificationCode("to@example.com", "111222"))

	out := buf.String()
	assert.Contains(t, out, "Subject: Your Email Verification Code")
	assert.Contains(t, out, "111222")
}
