// Package notify sends outbound email and push notifications. Both
// senders are best-effort from the API's point of view: failures are
// returned to the caller, which decides whether they abort the request.
package notify

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/mindflow/companion-backend/internal/config"
)

// Mailer sends transactional email over authenticated SMTP.
type Mailer struct {
	host     string
	port     int
	user     string
	password string

	// send is swappable for tests; defaults to gomail dial-and-send.
	send func(m *gomail.Message) error
}

// NewMailer builds a Mailer from the loaded configuration. Configured
// returns false when credentials are absent, so callers can answer with
// a "service not configured" error instead of a dial failure.
func NewMailer(cfg *config.Config) *Mailer {
	m := &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.EmailUser,
		password: cfg.EmailPassword,
	}
	m.send = func(msg *gomail.Message) error {
		d := gomail.NewDialer(m.host, m.port, m.user, m.password)
		return d.DialAndSend(msg)
	}
	return m
}

func (m *Mailer) Configured() bool {
	return m.user != "" && m.password != ""
}

// Send delivers a plain-text email. Used by the generic relay endpoint.
func (m *Mailer) Send(to, subject, text string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.user, "MindFlow")
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	return m.send(msg)
}

// SendResetCode emails a password reset code.
func (m *Mailer) SendResetCode(to, code string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.user, "MindFlow App")
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Password Reset Code")
	msg.SetBody("text/plain", fmt.Sprintf("Your password reset code is: %s\n\nThis code will expire in 10 minutes.", code))
	msg.AddAlternative("text/html", fmt.Sprintf(`
          <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
            <h2 style="color: #333366;">Password Reset</h2>
            <p>You requested a password reset for your MindFlow account.</p>
            <p>Your reset code is:</p>
            <div style="background-color: #f0f0f0; padding: 15px; font-size: 24px; letter-spacing: 5px; text-align: center; font-weight: bold;">%s</div>
            <p>This code will expire in 10 minutes.</p>
            <p>If you didn't request this reset, please ignore this email.</p>
          </div>
        `, code))
	return m.send(msg)
}

// SendCaregiverResetCode emails a password reset code for a caregiver
// account. Same flow as SendResetCode with caregiver-facing wording.
func (m *Mailer) SendCaregiverResetCode(to, code string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.user, "MindFlow")
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Caregiver Password Reset Code")
	msg.SetBody("text/html", fmt.Sprintf(`
          <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; border-radius: 5px;">
            <h2 style="color: #D9534F; text-align: center;">Caregiver Password Reset</h2>
            <p>You've requested a password reset for your MindFlow caregiver account.</p>
            <p>Your reset code is: <strong style="font-size: 24px; color: #D9534F;">%s</strong></p>
            <p><em>This code is valid for 10 minutes.</em></p>
            <p>If you didn't request a password reset, please ignore this email or contact support.</p>
          </div>
        `, code))
	return m.send(msg)
}

// SendCaregiverVerificationCode emails an address-ownership verification
// code for a caregiver account.
func (m *Mailer) SendCaregiverVerificationCode(to, code string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.user, "MindFlow")
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your Caregiver Email Verification Code")
	msg.SetBody("text/html", fmt.Sprintf(`
          <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; border-radius: 5px;">
            <h2 style="color: #D9534F; text-align: center;">Caregiver Email Verification</h2>
            <p>Thank you for signing up as a caregiver for MindFlow!</p>
            <p>Your verification code is: <strong style="font-size: 24px; color: #D9534F;">%s</strong></p>
            <p><em>This code is valid for 10 minutes.</em></p>
            <p>If you didn't sign up for a caregiver account, please ignore this email.</p>
          </div>
        `, code))
	return m.send(msg)
}

// SendVerificationCode emails an address-ownership verification code.
func (m *Mailer) SendVerificationCode(to, code string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.user, "MindFlow App")
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your Email Verification Code")
	msg.SetBody("text/html", fmt.Sprintf(`
          <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; border-radius: 5px;">
            <h2 style="color: #005BBB; text-align: center;">Email Verification</h2>
            <p>Thank you for signing up for MindFlow!</p>
            <p>Your verification code is: <strong style="font-size: 24px; color: #005BBB;">%s</strong></p>
            <p><em>This code is valid for 10 minutes.</em></p>
            <p>If you didn't sign up for an account, please ignore this email.</p>
          </div>
        `, code))
	return m.send(msg)
}
