package billing

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// statusEmail is the shared layout of subscription status emails.
func statusEmail(headline, body, dashboardURL string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!doctype html>
<html><body style="font-family:sans-serif">
<p>`+templ.EscapeString(headline)+`</p>
<p>`+templ.EscapeString(body)+`</p>
`)
		if err != nil {
			return err
		}
		if dashboardURL != "" {
			href := string(templ.URL(dashboardURL))
			if _, err := io.WriteString(w, `<p><a href="`+templ.EscapeString(href)+`">Open your dashboard</a></p>
`); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, "</body></html>")
		return err
	})
}

func pastDueEmail(dashboardURL string) templ.Component {
	return statusEmail(
		"We couldn't process your last payment.",
		"Update your payment method to keep your review funnel online.",
		dashboardURL,
	)
}

func canceledEmail(dashboardURL string) templ.Component {
	return statusEmail(
		"Your subscription has been canceled.",
		"Your QR code stops collecting reviews until you subscribe again.",
		dashboardURL,
	)
}
