package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Invitation asks a person to set up their credential.
type Invitation struct {
	PersonID  int64
	Name      string
	Email     string
	Token     string
	ExpiresAt time.Time
	// Promoted is set when the invitation follows a child profile promotion.
	Promoted bool
}

// PasswordReset carries a one-time link for choosing a new password.
type PasswordReset struct {
	PersonID  int64
	Name      string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// ItemRemoved tells a claimer that an item they claimed no longer exists.
type ItemRemoved struct {
	Email     string
	Name      string
	ItemTitle string
	OwnerName string
}

// Mailer delivers the application's notifications.
type Mailer interface {
	SendInvitation(ctx context.Context, inv Invitation) error
	SendPasswordReset(ctx context.Context, reset PasswordReset) error
	SendItemRemoved(ctx context.Context, msg ItemRemoved) error
}

// Config holds SMTP settings
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
	AppName  string
	BaseURL  string
}

type smtpMailer struct {
	cfg    Config
	addr   string
	auth   smtp.Auth
	logger *logrus.Logger
}

// NewSMTPMailer creates a mailer that sends through the configured SMTP
// server. Authentication is used only when a username is set.
func NewSMTPMailer(cfg Config, logger *logrus.Logger) Mailer {
	m := &smtpMailer{
		cfg:    cfg,
		addr:   cfg.Host + ":" + cfg.Port,
		logger: logger,
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m
}

func (m *smtpMailer) SendInvitation(ctx context.Context, inv Invitation) error {
	subject, body := invitationMessage(m.cfg, inv)
	return m.send(ctx, inv.Email, subject, body)
}

func (m *smtpMailer) SendPasswordReset(ctx context.Context, reset PasswordReset) error {
	subject, body := passwordResetMessage(m.cfg, reset)
	return m.send(ctx, reset.Email, subject, body)
}

func (m *smtpMailer) SendItemRemoved(ctx context.Context, msg ItemRemoved) error {
	subject, body := itemRemovedMessage(m.cfg, msg)
	return m.send(ctx, msg.Email, subject, body)
}

func (m *smtpMailer) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.cfg.Sender, to, subject, body))

	if err := smtp.SendMail(m.addr, m.auth, m.cfg.Sender, []string{to}, msg); err != nil {
		m.logger.WithFields(logrus.Fields{
			"to":        to,
			"smtp_addr": m.addr,
		}).WithError(err).Warn("Failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.WithFields(logrus.Fields{"to": to, "subject": subject}).Debug("Email sent")
	return nil
}

type logMailer struct {
	cfg    Config
	logger *logrus.Logger
}

// NewLogMailer creates a mailer that only logs what it would send. It is
// used when no SMTP host is configured.
func NewLogMailer(cfg Config, logger *logrus.Logger) Mailer {
	return &logMailer{cfg: cfg, logger: logger}
}

func (m *logMailer) SendInvitation(ctx context.Context, inv Invitation) error {
	subject, _ := invitationMessage(m.cfg, inv)
	m.logger.WithFields(logrus.Fields{
		"person_id": inv.PersonID,
		"to":        inv.Email,
		"subject":   subject,
		"link":      InviteLink(m.cfg.BaseURL, inv.Token),
	}).Info("Invitation email (not sent, SMTP disabled)")
	return nil
}

func (m *logMailer) SendPasswordReset(ctx context.Context, reset PasswordReset) error {
	subject, _ := passwordResetMessage(m.cfg, reset)
	m.logger.WithFields(logrus.Fields{
		"person_id": reset.PersonID,
		"to":        reset.Email,
		"subject":   subject,
		"link":      ResetLink(m.cfg.BaseURL, reset.Token),
	}).Info("Password reset email (not sent, SMTP disabled)")
	return nil
}

func (m *logMailer) SendItemRemoved(ctx context.Context, msg ItemRemoved) error {
	subject, _ := itemRemovedMessage(m.cfg, msg)
	m.logger.WithFields(logrus.Fields{
		"to":      msg.Email,
		"subject": subject,
	}).Info("Item removed email (not sent, SMTP disabled)")
	return nil
}

// InviteLink builds the credential-setup link for a token.
func InviteLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/invite/" + token
}

// ResetLink builds the password reset link for a token.
func ResetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/reset-password/" + token
}

func invitationMessage(cfg Config, inv Invitation) (string, string) {
	subject := fmt.Sprintf("You're invited to %s", cfg.AppName)
	intro := fmt.Sprintf("You have been invited to join %s.", cfg.AppName)
	if inv.Promoted {
		subject = fmt.Sprintf("Your %s account is ready", cfg.AppName)
		intro = fmt.Sprintf("Your wish list on %s now belongs to your own account. Everything on it has been kept.", cfg.AppName)
	}

	body := fmt.Sprintf(`Hi %s,

%s

Set your password here:
%s

This link expires on %s.
`, inv.Name, intro, InviteLink(cfg.BaseURL, inv.Token), inv.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"))

	return subject, body
}

func passwordResetMessage(cfg Config, reset PasswordReset) (string, string) {
	subject := fmt.Sprintf("Reset your %s password", cfg.AppName)
	body := fmt.Sprintf(`Hi %s,

Someone asked to reset the password of your %s account. If that was you,
choose a new password here:
%s

The link works once and expires on %s. If you did not ask for it, you can
ignore this email.
`, reset.Name, cfg.AppName, ResetLink(cfg.BaseURL, reset.Token), reset.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"))

	return subject, body
}

func itemRemovedMessage(cfg Config, msg ItemRemoved) (string, string) {
	subject := fmt.Sprintf("A gift you claimed was removed from %s's list", msg.OwnerName)
	body := fmt.Sprintf(`Hi %s,

%s removed "%s" from their wish list. Your claim on it has been released,
so you may want to pick something else.

%s
`, msg.Name, msg.OwnerName, msg.ItemTitle, cfg.BaseURL)

	return subject, body
}
