// Package notify delivers interview and review notifications by email (SES),
// SMS (SNS) or the log. Message bodies come from embedded templates; subjects
// are localized by the caller.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltmpl "html/template"
	"log/slog"
	"sync"
	texttmpl "text/template"
	"time"
)

// Kind selects the template of a message.
type Kind string

const (
	InterviewScheduled Kind = "interview_scheduled"
	InterviewResult    Kind = "interview_result"
	AssignmentReviewed Kind = "assignment_reviewed"
)

var kinds = []Kind{InterviewScheduled, InterviewResult, AssignmentReviewed}

// Recipient is who a message goes to. Channels skip recipients they cannot reach.
type Recipient struct {
	UserID int64
	Name   string
	Email  string
	Phone  string
}

// Data is the template payload.
type Data struct {
	InterviewTime *time.Time
	MeetingNumber string
	Result        string
	StageName     string
	Comment       string
}

// Message is one notification.
type Message struct {
	Kind    Kind
	To      Recipient
	Subject string
	Data    Data
}

// Notifier delivers a message.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// Channel is a named Notifier.
type Channel interface {
	Notifier
	Name() string
}

//go:embed templates/*
var templateFS embed.FS

// Renderer turns a message into text and HTML bodies.
type Renderer struct {
	frontendBaseURL string
	text            map[Kind]*texttmpl.Template
	html            map[Kind]*htmltmpl.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer(frontendBaseURL string) (*Renderer, error) {
	r := &Renderer{
		frontendBaseURL: frontendBaseURL,
		text:            make(map[Kind]*texttmpl.Template),
		html:            make(map[Kind]*htmltmpl.Template),
	}
	for _, k := range kinds {
		t, err := texttmpl.New(string(k)+".txt").Option("missingkey=error").ParseFS(templateFS, "templates/"+string(k)+".txt")
		if err != nil {
			return nil, fmt.Errorf("parse %s text template: %w", k, err)
		}
		h, err := htmltmpl.New(string(k)+".gohtml").Option("missingkey=error").ParseFS(templateFS, "templates/"+string(k)+".gohtml")
		if err != nil {
			return nil, fmt.Errorf("parse %s html template: %w", k, err)
		}
		r.text[k] = t
		r.html[k] = h
	}
	return r, nil
}

type templateContext struct {
	Name            string
	When            string
	FrontendBaseURL string
	Data            Data
}

// Render returns the text and HTML bodies of m.
func (r *Renderer) Render(m Message) (string, string, error) {
	t, ok := r.text[m.Kind]
	if !ok {
		return "", "", fmt.Errorf("no template for %q", m.Kind)
	}
	ctx := templateContext{Name: m.To.Name, FrontendBaseURL: r.frontendBaseURL, Data: m.Data}
	if m.Data.InterviewTime != nil {
		ctx.When = m.Data.InterviewTime.Format("2006-01-02 15:04 MST")
	}
	var text, html bytes.Buffer
	if err := t.Execute(&text, ctx); err != nil {
		return "", "", fmt.Errorf("render %s text: %w", m.Kind, err)
	}
	if err := r.html[m.Kind].Execute(&html, ctx); err != nil {
		return "", "", fmt.Errorf("render %s html: %w", m.Kind, err)
	}
	return text.String(), html.String(), nil
}

// LogChannel writes messages to slog instead of delivering them.
type LogChannel struct {
	renderer *Renderer
}

// NewLogChannel returns a channel that logs the rendered text body.
func NewLogChannel(r *Renderer) *LogChannel { return &LogChannel{renderer: r} }

func (l *LogChannel) Name() string { return "log" }

func (l *LogChannel) Notify(_ context.Context, m Message) error {
	text, _, err := l.renderer.Render(m)
	if err != nil {
		return err
	}
	slog.Info("notification", "kind", m.Kind, "user_id", m.To.UserID, "subject", m.Subject, "body", text)
	return nil
}

// Fanout sends each message on every channel. A failing channel does not stop
// the others; OnResult, when set, sees every attempt.
type Fanout struct {
	Channels []Channel
	OnResult func(channel string, err error)
}

func (f *Fanout) Notify(ctx context.Context, m Message) error {
	var errs []error
	for _, c := range f.Channels {
		err := c.Notify(ctx, m)
		if errors.Is(err, ErrUnreachable) {
			continue
		}
		if f.OnResult != nil {
			f.OnResult(c.Name(), err)
		}
		if err != nil {
			slog.Error("notification failed", "channel", c.Name(), "kind", m.Kind, "user_id", m.To.UserID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ErrUnreachable is returned by a channel that has no address for the recipient.
var ErrUnreachable = errors.New("recipient unreachable on this channel")

// Queue delivers messages on a background goroutine so request handlers never
// wait on a mail or SMS provider.
type Queue struct {
	next    Notifier
	timeout time.Duration
	ch      chan Message
	wg      sync.WaitGroup
	once    sync.Once
}

// NewQueue starts the delivery goroutine. Each delivery gets its own timeout.
func NewQueue(next Notifier, size int, timeout time.Duration) *Queue {
	q := &Queue{next: next, timeout: timeout, ch: make(chan Message, size)}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for m := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		_ = q.next.Notify(ctx, m)
		cancel()
	}
}

// Notify enqueues m. When the queue is full the message is dropped and logged.
func (q *Queue) Notify(_ context.Context, m Message) error {
	select {
	case q.ch <- m:
		return nil
	default:
		slog.Warn("notification queue full, dropping message", "kind", m.Kind, "user_id", m.To.UserID)
		return errors.New("notification queue full")
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.ch) })
	q.wg.Wait()
}
