package service

import (
	"fmt"
	"html"
	"strings"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// OrderConfirmationEmail is sent once an order is paid.
func OrderConfirmationEmail(order *models.Order) *clients.Email {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(order.ShippingAddress.Name))
	fmt.Fprintf(&b, "<p>We have received your payment for order <strong>%s</strong>.</p>", html.EscapeString(order.ID))
	b.WriteString("<table><tr><th>Product</th><th>Qty</th><th>Price</th></tr>")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td>&#8358;%s</td></tr>",
			html.EscapeString(item.ProductID), item.Quantity, item.LineTotal().StringFixed(2))
	}
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<p>Total: <strong>&#8358;%s</strong></p>", order.TotalPrice.StringFixed(2))
	fmt.Fprintf(&b, "<p>We will deliver to:<br>%s<br>%s</p>",
		html.EscapeString(order.ShippingAddress.Address), html.EscapeString(order.ShippingAddress.Phone))

	return &clients.Email{
		To:      []string{order.ShippingAddress.Email},
		Subject: "Order confirmed: " + order.PaystackReference,
		HTML:    b.String(),
	}
}

func PasswordResetEmail(to, link string) *clients.Email {
	return &clients.Email{
		To:      []string{to},
		Subject: "Reset your password",
		HTML: fmt.Sprintf(
			"<p>Someone asked to reset the password for this account.</p>"+
				"<p><a href=\"%s\">Choose a new password</a></p>"+
				"<p>If that was not you, ignore this email.</p>",
			html.EscapeString(link),
		),
	}
}

// ContactEmail forwards a contact form submission to the shop inbox.
func ContactEmail(inbox string, req *models.ContactRequest) *clients.Email {
	phone := req.Phone
	if phone == "" {
		phone = "-"
	}
	return &clients.Email{
		To:      []string{inbox},
		Subject: "Contact form: " + req.Name,
		ReplyTo: req.Email,
		HTML: fmt.Sprintf(
			"<p><strong>Name:</strong> %s</p><p><strong>Email:</strong> %s</p>"+
				"<p><strong>Phone:</strong> %s</p><p>%s</p>",
			html.EscapeString(req.Name),
			html.EscapeString(req.Email),
			html.EscapeString(phone),
			strings.ReplaceAll(html.EscapeString(req.Message), "\n", "<br>"),
		),
	}
}

func OrderShippedEmail(order *models.Order) *clients.Email {
	return &clients.Email{
		To:      []string{order.ShippingAddress.Email},
		Subject: "Your order is on its way: " + order.PaystackReference,
		HTML: fmt.Sprintf(
			"<p>Hi %s,</p><p>Order <strong>%s</strong> has left our warehouse and is on its way to %s.</p>",
			html.EscapeString(order.ShippingAddress.Name),
			html.EscapeString(order.ID),
			html.EscapeString(order.ShippingAddress.Address),
		),
	}
}
