package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ContactNotice is the data of the message sent to a post owner.
type ContactNotice struct {
	AppURL      string
	PostID      int64
	PostTitle   string
	OwnerName   string
	SenderName  string
	SenderEmail string
	Message     string
}

func (n ContactNotice) PostURL() string {
	return fmt.Sprintf("%s/posts/%d", strings.TrimRight(n.AppURL, "/"), n.PostID)
}

// ResetNotice is the data of the password-reset message.
type ResetNotice struct {
	AppURL   string
	FullName string
	Token    string
	TTL      time.Duration
}

func (n ResetNotice) ResetURL() string {
	return strings.TrimRight(n.AppURL, "/") + "/reset-password?token=" + url.QueryEscape(n.Token)
}

// ValidFor renders TTL for humans: "1 hour", "90 minutes".
func (n ResetNotice) ValidFor() string {
	switch d := n.TTL.Round(time.Minute); {
	case d == time.Hour:
		return "1 hour"
	case d > 0 && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d == time.Minute:
		return "1 minute"
	default:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
}

// RenderContactNotification returns the subject and HTML body notifying the
// owner of a new contact. All user-supplied text is HTML escaped.
func RenderContactNotification(n ContactNotice) (string, string, error) {
	body, err := render("contact_notification.html", n)
	if err != nil {
		return "", "", err
	}
	return "New message about your post: " + headerSafe(n.PostTitle), body, nil
}

// RenderPasswordReset returns the subject and HTML body of a reset link.
func RenderPasswordReset(n ResetNotice) (string, string, error) {
	body, err := render("password_reset.html", n)
	if err != nil {
		return "", "", err
	}
	return "Reset your password", body, nil
}

var headerReplacer = strings.NewReplacer("\r", " ", "\n", " ")

func headerSafe(s string) string {
	return headerReplacer.Replace(s)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
