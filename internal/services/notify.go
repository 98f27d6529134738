package services

import (
	"fmt"
	"html"
	"log"
	"strings"
	"sync"

	"bigpartner/internal/config"
	"bigpartner/internal/domain"
	"bigpartner/internal/metrics"
)

// Notifier sends transactional emails in the background. A failed send is
// logged and counted; it never fails the request that triggered it.
type Notifier struct {
	mailer Mailer
	cfg    config.NotifyConfig
	wg     sync.WaitGroup
}

// NewNotifier creates a notifier that delivers through mailer
func NewNotifier(mailer Mailer, cfg config.NotifyConfig) *Notifier {
	return &Notifier{mailer: mailer, cfg: cfg}
}

// Wait blocks until every in-flight notification has finished
func (n *Notifier) Wait() {
	n.wg.Wait()
}

type message struct {
	to      string
	subject string
	title   string
	lines   []string // plain text, one paragraph each
}

func (n *Notifier) dispatch(kind string, msgs ...message) {
	if n == nil {
		return
	}
	for _, m := range msgs {
		if strings.TrimSpace(m.to) == "" {
			metrics.RecordEmail("skipped")
			continue
		}
		n.wg.Add(1)
		go func(m message) {
			defer n.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[NOTIFY] Warning: %s notification to %s panicked: %v", kind, m.to, r)
					metrics.RecordEmail("failure")
				}
			}()

			if err := n.mailer.SendHTMLEmail(m.to, m.subject, n.renderHTML(m), strings.Join(m.lines, "\n\n")); err != nil {
				log.Printf("[NOTIFY] Warning: failed to send %s notification to %s: %v", kind, m.to, err)
				metrics.RecordEmail("failure")
				return
			}
			log.Printf("[NOTIFY] %s notification sent to %s", kind, m.to)
			metrics.RecordEmail("success")
		}(m)
	}
}

func (n *Notifier) renderHTML(m message) string {
	var b strings.Builder
	for _, line := range m.lines {
		fmt.Fprintf(&b, `<p style="white-space: pre-wrap;">%s</p>`, html.EscapeString(line))
	}
	return emailLayout(html.EscapeString(m.title), b.String(), n.cfg.SiteURL)
}

func (n *Notifier) link(path string) string {
	return strings.TrimRight(n.cfg.SiteURL, "/") + path
}

// InquiryReceived alerts the admin and acknowledges the visitor
func (n *Notifier) InquiryReceived(inq *domain.Inquiry) {
	about := "General inquiry"
	if inq.PropertyName != nil && *inq.PropertyName != "" {
		about = "Property: " + *inq.PropertyName
	}
	phone := "Not provided"
	if inq.Phone != nil && *inq.Phone != "" {
		phone = *inq.Phone
	}

	n.dispatch("inquiry",
		message{
			to:      n.cfg.AdminEmail,
			subject: fmt.Sprintf("New %s inquiry from %s", inq.InquiryType, inq.Name),
			title:   "New Inquiry",
			lines: []string{
				fmt.Sprintf("Name: %s\nEmail: %s\nPhone: %s\n%s", inq.Name, inq.Email, phone, about),
				inq.Message,
				fmt.Sprintf("Inquiry ID: #%d", inq.ID),
			},
		},
		message{
			to:      inq.Email,
			subject: "We received your inquiry",
			title:   "Thank you for contacting Big Partner",
			lines: []string{
				fmt.Sprintf("Hello %s,", inq.Name),
				"We have received your message and our team will get back to you soon.",
				"Your message:\n" + inq.Message,
			},
		},
	)
}

// InquiryResponded sends the staff response to the visitor
func (n *Notifier) InquiryResponded(inq *domain.Inquiry) {
	if inq.ResponseMessage == nil {
		return
	}
	n.dispatch("inquiry response", message{
		to:      inq.Email,
		subject: "Response to your inquiry",
		title:   "Response to your inquiry",
		lines: []string{
			fmt.Sprintf("Hello %s,", inq.Name),
			*inq.ResponseMessage,
			"Your original message:\n" + inq.Message,
		},
	})
}

// InvestorRegistered welcomes the investor and alerts the admin
func (n *Notifier) InvestorRegistered(inv *domain.Investor) {
	n.registered("investor", &inv.Actor, inv.ID, "/investors")
}

// PartnerRegistered welcomes the partner and alerts the admin
func (n *Notifier) PartnerRegistered(p *domain.Partner) {
	n.registered("partner", &p.Actor, p.ID, "/partners")
}

func (n *Notifier) registered(kind string, a *domain.Actor, id uint, path string) {
	msgs := []message{
		{
			to:      n.cfg.AdminEmail,
			subject: fmt.Sprintf("New %s registration: %s", kind, a.FullName),
			title:   fmt.Sprintf("New %s registration", kind),
			lines: []string{
				fmt.Sprintf("Name: %s\nEmail: %s\nPhone: %s\nCity: %s", a.FullName, a.Email, a.Phone, a.City),
				fmt.Sprintf("Review: %s", n.link(fmt.Sprintf("/admin%s/%d", path, id))),
			},
		},
	}

	welcome := message{
		to:      a.Email,
		subject: "Welcome to Big Partner",
		title:   "Welcome to Big Partner",
		lines: []string{
			fmt.Sprintf("Hello %s,", a.FullName),
			fmt.Sprintf("Thank you for registering as a %s. Our team will verify your details shortly.", kind),
		},
	}
	if a.EmailVerificationToken != nil {
		welcome.lines = append(welcome.lines,
			"Please confirm your email address: "+n.link("/verify-email?token="+*a.EmailVerificationToken))
	}
	n.dispatch(kind+" registration", append(msgs, welcome)...)
}

// PropertyApproved tells the owner the listing is live
func (n *Notifier) PropertyApproved(p *domain.Property) {
	n.dispatch("property approved", message{
		to:      p.OwnerEmail,
		subject: fmt.Sprintf("Your property \"%s\" is live", p.Title),
		title:   "Your property has been approved",
		lines: []string{
			fmt.Sprintf("\"%s\" in %s has been approved and is now visible to buyers.", p.Title, p.City),
			"View it here: " + n.link("/properties/"+p.Slug),
		},
	})
}

// PropertyRejected tells the owner why the listing was refused
func (n *Notifier) PropertyRejected(p *domain.Property) {
	reason := ""
	if p.RejectionReason != nil {
		reason = *p.RejectionReason
	}
	n.dispatch("property rejected", message{
		to:      p.OwnerEmail,
		subject: fmt.Sprintf("Your property \"%s\" needs changes", p.Title),
		title:   "Your property was not approved",
		lines: []string{
			fmt.Sprintf("\"%s\" in %s was not approved for the following reason:", p.Title, p.City),
			reason,
			"You can edit the listing and it will be reviewed again.",
		},
	})
}

// PasswordReset sends the reset link
func (n *Notifier) PasswordReset(user *domain.User, token string) {
	n.dispatch("password reset", message{
		to:      user.Email,
		subject: "Reset your Big Partner password",
		title:   "Password reset",
		lines: []string{
			fmt.Sprintf("Hello %s,", user.DisplayName()),
			"Use the link below to choose a new password: " + n.link("/reset-password?token="+token),
			"If you did not request this, you can ignore this email.",
		},
	})
}

// EmailVerification sends the account confirmation link
func (n *Notifier) EmailVerification(user *domain.User) {
	if user.EmailVerificationToken == nil {
		return
	}
	n.dispatch("email verification", message{
		to:      user.Email,
		subject: "Confirm your Big Partner account",
		title:   "Confirm your email",
		lines: []string{
			fmt.Sprintf("Hello %s,", user.DisplayName()),
			"Please confirm your email address: " + n.link("/verify-email?token="+*user.EmailVerificationToken),
		},
	})
}
