package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"github.com/samber/lo"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

// Email sends a plain SMTP alert. When the event's annotated detection
// image is readable on the local filesystem it is attached so the
// recipient can verify the detection at a glance.
type Email struct {
	server     string
	port       int
	user       string
	password   string
	recipients []string
}

func NewEmail(server string, port int, user, password string, recipients []string) *Email {
	return &Email{
		server:     server,
		port:       port,
		user:       user,
		password:   password,
		recipients: recipients,
	}
}

func (e *Email) Notify(_ context.Context, ev models.Event) error {
	labels := lo.Uniq(lo.Map(ev.Detections, func(d models.Detection, _ int) string {
		return d.Class
	}))

	subject := fmt.Sprintf("Alert: %s detected on %s", strings.Join(labels, ", "), ev.Feed)
	body := fmt.Sprintf("Detected %s on feed %q at %s (motion area %d px).",
		strings.Join(labels, ", "), ev.Feed, ev.Time.Format("2006-01-02 15:04:05 MST"), ev.MotionArea)

	var attachment []byte
	if ev.DetectionPath != "" {
		// Best effort: the path may be an S3 key rather than a file.
		if data, err := os.ReadFile(ev.DetectionPath); err == nil {
			attachment = data
		}
	}

	msg := buildMessage(e.user, e.recipients, subject, body, attachment)

	addr := fmt.Sprintf("%s:%d", e.server, e.port)
	auth := smtp.PlainAuth("", e.user, e.password, e.server)
	if err := smtp.SendMail(addr, auth, e.user, e.recipients, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func buildMessage(from string, to []string, subject, body string, attachment []byte) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")

	if attachment == nil {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(body)
		buf.WriteString("\r\n")
		return buf.Bytes()
	}

	const boundary = "camera-sentry-alert"
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: image/jpeg\r\n")
	buf.WriteString("Content-Disposition: attachment; filename=\"detection.jpg\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	encoded := base64.StdEncoding.EncodeToString(attachment)
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76])
		buf.WriteString("\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded)
	buf.WriteString("\r\n")
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes()
}
