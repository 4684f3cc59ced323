package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"storefront-payment-api/models"
)

type eventTemplate struct {
	subject string
	tmpl    *template.Template
}

var eventTemplates = map[models.PaymentEventType]eventTemplate{
	models.EventOrderPending:         mustTemplate("Order %s: payment pending", orderPendingTemplate),
	models.EventPaymentConfirmed:     mustTemplate("Order %s: payment confirmed", paymentConfirmedTemplate),
	models.EventBankTransferReceived: mustTemplate("Order %s: bank transfer received", bankTransferReceivedTemplate),
}

func mustTemplate(subject, content string) eventTemplate {
	t := template.Must(template.New("layout").Parse(layoutTemplate))
	template.Must(t.Parse(content))
	return eventTemplate{subject: subject, tmpl: t}
}

type templateData struct {
	Subject      string
	Event        models.PaymentEvent
	BankAccounts []string
}

// Render builds the subject and HTML body for a payment event.
func Render(ev models.PaymentEvent) (string, string, error) {
	et, ok := eventTemplates[ev.Event]
	if !ok {
		return "", "", fmt.Errorf("no template for event %q", ev.Event)
	}
	if ev.Variables == nil {
		ev.Variables = map[string]string{}
	}

	data := templateData{
		Subject: fmt.Sprintf(et.subject, ev.OrderReference),
		Event:   ev,
	}
	if accounts := ev.Variables["bank_accounts"]; accounts != "" {
		data.BankAccounts = strings.Split(accounts, "\n")
	}

	var buf bytes.Buffer
	if err := et.tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("error rendering %s email: %w", ev.Event, err)
	}
	return data.Subject, buf.String(), nil
}
