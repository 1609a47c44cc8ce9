package notifications

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
	"github.com/angelmondragon/projectmarket-backend/pkg/sendgrid"
)

const (
	templatePaidBuyer  = "offer_paid_buyer"
	templatePaidSeller = "offer_paid_seller"
	templateAccepted   = "offer_accepted"
	templateRejected   = "offer_rejected"
)

type notification struct {
	template string
	message  sendgrid.Message
}

func paidBuyerNotification(buyer models.User, project models.Project, amountCents int64, currency string) notification {
	amount := formatAmount(amountCents, currency)
	return notification{
		template: templatePaidBuyer,
		message: render(buyer,
			fmt.Sprintf("Your offer on %s is accepted and paid", project.Title),
			fmt.Sprintf("Your payment of %s for %s went through. The seller has been notified.", amount, project.Title),
		),
	}
}

func paidSellerNotification(seller models.User, project models.Project, amountCents int64, currency string) notification {
	amount := formatAmount(amountCents, currency)
	return notification{
		template: templatePaidSeller,
		message: render(seller,
			fmt.Sprintf("New sale: %s", project.Title),
			fmt.Sprintf("%s was sold for %s. The buyer's payment has cleared.", project.Title, amount),
		),
	}
}

func acceptedNotification(buyer models.User, project models.Project, amountCents int64, currency string) notification {
	amount := formatAmount(amountCents, currency)
	return notification{
		template: templateAccepted,
		message: render(buyer,
			fmt.Sprintf("Your offer on %s was accepted", project.Title),
			fmt.Sprintf("The seller accepted your offer of %s for %s. Complete the payment to finish the purchase.", amount, project.Title),
		),
	}
}

func rejectedNotification(buyer models.User, project models.Project, amountCents int64, currency string) notification {
	amount := formatAmount(amountCents, currency)
	return notification{
		template: templateRejected,
		message: render(buyer,
			fmt.Sprintf("Your offer on %s was declined", project.Title),
			fmt.Sprintf("The seller declined your offer of %s for %s.", amount, project.Title),
		),
	}
}

func render(to models.User, subject, body string) sendgrid.Message {
	name := strings.TrimSpace(to.FirstName)
	greeting := "Hi,"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s,", name)
	}
	return sendgrid.Message{
		ToEmail:   to.Email,
		ToName:    strings.TrimSpace(to.FirstName + " " + to.LastName),
		Subject:   subject,
		PlainText: greeting + "\n\n" + body + "\n",
		HTML:      "<p>" + html.EscapeString(greeting) + "</p><p>" + html.EscapeString(body) + "</p>",
	}
}

// formatAmount renders minor units as "33.00 USD".
func formatAmount(amountCents int64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = "USD"
	}
	return decimal.New(amountCents, -2).StringFixed(2) + " " + code
}
