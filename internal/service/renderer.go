package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// ReminderSubject is the subject line of every daily reminder.
const ReminderSubject = "Time to Revise Your DSA Questions!"

const defaultRecipientName = "User"

// ReminderMessage is a rendered reminder ready for a ReminderSink.
type ReminderMessage struct {
	Subject string
	Text    string
	HTML    string
}

// RenderReminder builds the plain-text and HTML bodies listing the titles
// due for one recipient. signature names the sender in the sign-off.
func RenderReminder(ctx context.Context, name string, titles []string, signature string) (ReminderMessage, error) {
	if name == "" {
		name = defaultRecipientName
	}

	var html bytes.Buffer
	if err := reminderHTML(name, titles, signature).Render(ctx, &html); err != nil {
		return ReminderMessage{}, fmt.Errorf("render reminder html: %w", err)
	}

	return ReminderMessage{
		Subject: ReminderSubject,
		Text:    reminderText(name, titles, signature),
		HTML:    html.String(),
	}, nil
}

func reminderText(name string, titles []string, signature string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "You have %d question(s) due for revision today:\n\n", len(titles))
	for _, title := range titles {
		fmt.Fprintf(&b, "- %s\n", title)
	}
	fmt.Fprintf(&b, "\nKeep up the great work!\n\nBest,\nYour %s", signature)
	return b.String()
}

func reminderHTML(name string, titles []string, signature string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<p>Hi ")
		b.WriteString(templ.EscapeString(name))
		b.WriteString(",</p>\n")
		fmt.Fprintf(&b, "<p>You have <strong>%d</strong> question(s) due for revision today:</p>\n", len(titles))
		b.WriteString("<ul>\n")
		for _, title := range titles {
			b.WriteString("<li>")
			b.WriteString(templ.EscapeString(title))
			b.WriteString("</li>\n")
		}
		b.WriteString("</ul>\n<p>Keep up the great work!</p>\n<p>Best,<br/>Your ")
		b.WriteString(templ.EscapeString(signature))
		b.WriteString("</p>\n")

		_, err := io.WriteString(w, b.String())
		return err
	})
}
