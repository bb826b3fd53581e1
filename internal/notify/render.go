package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/wholesale-orders/internal/domain/order"
)

var emailTemplate = template.Must(template.New("order").Funcs(template.FuncMap{
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}).Parse(`<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6;">
<h2>New order {{.Order.OrderNo}}</h2>
<table style="border-collapse: collapse; max-width: 600px;">
<tr><td><strong>Order no:</strong></td><td>{{.Order.OrderNo}}</td></tr>
<tr><td><strong>Customer:</strong></td><td>{{.Order.Customer.Name}}</td></tr>
<tr><td><strong>Phone:</strong></td><td>{{orDash .Order.Customer.Phone}}</td></tr>
<tr><td><strong>Email:</strong></td><td>{{orDash .Order.Customer.Email}}</td></tr>
<tr><td><strong>Address:</strong></td><td>{{orDash .Order.Customer.Address}}</td></tr>
<tr><td><strong>Total:</strong></td><td style="color: red; font-weight: bold;">{{.Order.TotalAmount.StringFixed 2}}</td></tr>
</table>
<h3>Items</h3>
<table style="border-collapse: collapse; max-width: 800px;">
<thead><tr><th>Product</th><th>Code</th><th>Quantity</th><th>Unit price</th><th>Subtotal</th></tr></thead>
<tbody>
{{- range .Order.Items}}
<tr><td>{{.ProductName}}</td><td>{{.ProductCode}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice.StringFixed 2}}</td><td>{{.Subtotal.StringFixed 2}}</td></tr>
{{- end}}
</tbody>
</table>
<p><strong>Notes:</strong> {{orDash .Order.Notes}}</p>
<hr>
<p style="color: #666; font-size: 12px;">Sent automatically by {{.Company.Name}}. Order created at {{.Order.CreatedAt.Format "2006-01-02 15:04:05"}}.</p>
</body>
</html>
`))

// EmailMessage renders the administrator email for o.
func EmailMessage(s Settings, o *order.Order) (Message, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, struct {
		Order   *order.Order
		Company Company
	}{o, s.Company}); err != nil {
		return Message{}, errors.Wrap(err, "render email")
	}
	return Message{
		Channel:    ChannelEmail,
		Recipients: s.AdminEmails,
		Subject:    "New order " + o.OrderNo,
		Body:       buf.String(),
		HTML:       true,
		OrderID:    o.ID,
		OrderNo:    o.OrderNo,
	}, nil
}

// SMSMessage renders the short administrator text for o.
func SMSMessage(s Settings, o *order.Order) Message {
	phone := o.Customer.Phone
	if phone == "" {
		phone = "-"
	}
	var b strings.Builder
	if s.Company.Name != "" {
		fmt.Fprintf(&b, "[%s] ", s.Company.Name)
	}
	fmt.Fprintf(&b, "New order %s\nCustomer: %s\nPhone: %s\nAmount: %s\nItems: %d",
		o.OrderNo, o.Customer.Name, phone, o.TotalAmount.StringFixed(2), o.TotalQuantity)
	return Message{
		Channel:    ChannelSMS,
		Recipients: s.AdminPhones,
		Subject:    "New order " + o.OrderNo,
		Body:       b.String(),
		OrderID:    o.ID,
		OrderNo:    o.OrderNo,
	}
}
