// Package notify tells the shop and the customer about placed orders, either
// directly over SMTP or through a RabbitMQ queue drained by a mail consumer.
package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"

	"github.com/judyrop/epicerie-backend/config"
	"github.com/judyrop/epicerie-backend/models"
)

var ErrMailNotConfigured = errors.New("smtp host not configured")

type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

type SMTPMailer struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
}

// Configured reports whether an SMTP host is set.
func (m *SMTPMailer) Configured() bool { return m.Host != "" }

func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if m.Host == "" {
		return ErrMailNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := "From: " + m.From + "\r\n" +
		"To: " + strings.Join(to, ", ") + "\r\n" +
		"Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n" +
		"MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n" +
		body

	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Password, m.Host)
	}
	addr := net.JoinHostPort(m.Host, m.Port)
	if err := smtp.SendMail(addr, auth, m.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Recipients lists the shop address and the customer address, skipping blanks.
func Recipients(shopEmail string, order *models.Order) []string {
	var to []string
	for _, addr := range []string{shopEmail, order.CustomerEmail} {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return to
}

// Compose renders the confirmation mail for order.
func Compose(order *models.Order) (subject, body string) {
	subject = fmt.Sprintf("Commande %s - Épicerie du Quartier", order.OrderNumber)

	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour %s,\n\n", order.CustomerName)
	fmt.Fprintf(&b, "Votre commande %s a bien été enregistrée.\n\n", order.OrderNumber)
	for _, it := range order.Items {
		fmt.Fprintf(&b, "- %d x %s : %s €\n", it.Quantity, it.ProductName, it.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal : %s €\n", order.Total.StringFixed(2))
	if order.PickupDate != "" {
		fmt.Fprintf(&b, "Retrait : %s", order.PickupDate)
		if order.PickupSlot != "" {
			fmt.Fprintf(&b, " (%s)", order.PickupSlot)
		}
		b.WriteString("\n")
	}
	if order.CustomerPhone != "" {
		fmt.Fprintf(&b, "Téléphone : %s\n", order.CustomerPhone)
	}
	if order.Notes != "" {
		fmt.Fprintf(&b, "Notes : %s\n", order.Notes)
	}
	b.WriteString("\nMerci et à bientôt !\n")
	return subject, b.String()
}

// EmailNotifier mails the confirmation straight away.
type EmailNotifier struct {
	mailer    Mailer
	shopEmail string
}

func NewEmailNotifier(mailer Mailer, shopEmail string) *EmailNotifier {
	return &EmailNotifier{mailer: mailer, shopEmail: shopEmail}
}

// OrderPlaced mails the shop and the customer. A mailer without SMTP settings
// is skipped.
func (n *EmailNotifier) OrderPlaced(ctx context.Context, order *models.Order) error {
	if m, ok := n.mailer.(interface{ Configured() bool }); ok && !m.Configured() {
		return nil
	}
	to := Recipients(n.shopEmail, order)
	if len(to) == 0 {
		return nil
	}
	subject, body := Compose(order)
	return n.mailer.Send(ctx, to, subject, body)
}
