package services

import (
	"fmt"
	"html"
)

const emailStyle = `
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f9f9f9; }
        .header { background-color: #7b2cbf; color: white; padding: 20px; text-align: center; border-radius: 5px; }
        .content { background-color: white; padding: 20px; margin-top: 20px; border-radius: 5px; }
        .code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; margin: 20px 0; }
        .footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
    </style>`

func otpEmailBody(code string, validFor int) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>%s
</head>
<body>
    <div class="container">
        <div class="header"><h2>Verify your email</h2></div>
        <div class="content">
            <p>Use this code to verify your email address:</p>
            <div class="code">%s</div>
            <p>The code expires in %d minutes. If you did not request it, you can ignore this email.</p>
        </div>
        <div class="footer">This is an automated message, please do not reply.</div>
    </div>
</body>
</html>`, emailStyle, html.EscapeString(code), validFor)
}

func receiptEmailBody(serviceName, amount, bookingRef, receiptURL string) string {
	link := ""
	if receiptURL != "" {
		link = fmt.Sprintf(`<p>You can also <a href="%s">download your receipt</a>.</p>`, html.EscapeString(receiptURL))
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>%s
</head>
<body>
    <div class="container">
        <div class="header"><h2>Booking confirmed</h2></div>
        <div class="content">
            <p>Thank you! Your payment for <strong>%s</strong> was received.</p>
            <p>Amount paid: <strong>%s</strong><br>Booking reference: <strong>%s</strong></p>
            <p>Your receipt is attached to this email.</p>
            %s
        </div>
        <div class="footer">This is an automated message, please do not reply.</div>
    </div>
</body>
</html>`, emailStyle, html.EscapeString(serviceName), html.EscapeString(amount), html.EscapeString(bookingRef), link)
}
