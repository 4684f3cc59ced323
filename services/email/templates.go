package email

// Templates share the layout and fill the "content" block. Values are
// escaped by html/template.
const layoutTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Subject}}</title>
</head>
<body style="margin: 0; padding: 0; background-color: #f9fafb; font-family: Arial, sans-serif;">
    <table role="presentation" cellspacing="0" cellpadding="0" border="0" width="100%" style="background-color: #f9fafb;">
        <tr>
            <td align="center" style="padding: 40px 20px;">
                <table role="presentation" cellspacing="0" cellpadding="0" border="0" width="600" style="max-width: 600px; background-color: #ffffff; border-radius: 12px; overflow: hidden;">
                    <tr>
                        <td style="background-color: #25364D; padding: 24px 20px; text-align: center; color: #ffffff; font-size: 20px; font-weight: 600;">
                            Storefront
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 40px;">
                            <p style="color: #111827; font-size: 16px;">Hello {{.Event.CustomerName}},</p>
                            {{template "content" .}}
                            <table role="presentation" cellspacing="0" cellpadding="0" border="0" width="100%" style="margin-top: 24px; border-top: 1px solid #e5e7eb;">
                                <tr><td style="padding: 8px 0; color: #6b7280;">Order</td><td style="padding: 8px 0; text-align: right;">{{.Event.OrderReference}}</td></tr>
                                {{with index .Event.Variables "invoice_number"}}<tr><td style="padding: 8px 0; color: #6b7280;">Invoice</td><td style="padding: 8px 0; text-align: right;">{{.}}</td></tr>{{end}}
                                <tr><td style="padding: 8px 0; color: #6b7280;">Subtotal</td><td style="padding: 8px 0; text-align: right;">{{index .Event.Variables "subtotal_ht"}} {{.Event.Currency}}</td></tr>
                                <tr><td style="padding: 8px 0; color: #6b7280;">VAT</td><td style="padding: 8px 0; text-align: right;">{{index .Event.Variables "tax_amount"}} {{.Event.Currency}}</td></tr>
                                <tr><td style="padding: 8px 0; font-weight: 600;">Total</td><td style="padding: 8px 0; text-align: right; font-weight: 600;">{{.Event.Amount}} {{.Event.Currency}}</td></tr>
                            </table>
                        </td>
                    </tr>
                    <tr>
                        <td style="background-color: #f3f4f6; padding: 16px; text-align: center; color: #9ca3af; font-size: 12px;">
                            This is an automated message, please do not reply.
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>`

const orderPendingTemplate = `{{define "content"}}
<p style="color: #374151;">We have received your order. Your payment is not confirmed yet: {{index .Event.Variables "message"}}.</p>
{{if eq (index .Event.Variables "payment_method") "bank_transfer"}}
<p style="color: #374151;">Please transfer <strong>{{.Event.Amount}} {{.Event.Currency}}</strong> quoting the reference <strong>{{index .Event.Variables "transfer_reference"}}</strong>.</p>
{{with index .Event.Variables "instructions"}}<p style="color: #374151;">{{.}}</p>{{end}}
{{with .BankAccounts}}<ul style="color: #374151;">{{range .}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{end}}
{{end}}`

const paymentConfirmedTemplate = `{{define "content"}}
<p style="color: #374151;">Thank you, your payment has been confirmed.</p>
{{with index .Event.Variables "transaction_id"}}<p style="color: #6b7280; font-size: 14px;">Transaction: {{.}}</p>{{end}}
{{if ne (index .Event.Variables "tokens_granted") "0"}}<p style="color: #374151;">{{index .Event.Variables "tokens_granted"}} tokens have been added to your account.</p>{{end}}
{{end}}`

const bankTransferReceivedTemplate = `{{define "content"}}
<p style="color: #374151;">We have received your bank transfer and your order is now paid.</p>
{{if ne (index .Event.Variables "tokens_granted") "0"}}<p style="color: #374151;">{{index .Event.Variables "tokens_granted"}} tokens have been added to your account.</p>{{end}}
{{end}}`
