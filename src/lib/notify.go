package lib

import (
	"context"
	"fmt"
	"log"
	"meetups/src/models"
	"os"

	"github.com/wneessen/go-mail"
)

// MailNotifier sends the confirmation email. Failures are the
// caller's to log and ignore; the order is already confirmed by the
// time this runs.
type MailNotifier struct {
	from string
}

func NewMailNotifier() *MailNotifier {
	return &MailNotifier{from: os.Getenv("MAIL_FROM")}
}

func (n *MailNotifier) NotifyConfirmed(ctx context.Context, order *models.Order) error {
	client, err := GetSMTPClient()
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return err
	}
	if err := msg.To(order.ParticipantEmail); err != nil {
		return err
	}
	title := ""
	if order.Event != nil {
		title = order.Event.Title
	}
	msg.Subject(fmt.Sprintf("Your seat is confirmed [%s]", order.Code))
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Hi %s,\n\nYour reservation %s for %s is confirmed. Total paid: %s.\n\nSee you there!\n",
		order.ParticipantName, order.Code, title, order.Total.StringFixed(2),
	))

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		log.Printf("[mail] error sending confirmation for %s: %s\n", order.Code, err.Error())
		return err
	}
	return nil
}
