package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("https://traderpath.example")
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func TestRender(t *testing.T) {
	r := newTestRenderer(t)
	when := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		msg       Message
		wantText  []string
		wantHTML  []string
		avoidText []string
	}{
		{
			name: "scheduled",
			msg: Message{Kind: InterviewScheduled, To: Recipient{Name: "Li"},
				Data: Data{InterviewTime: &when, MeetingNumber: "888-111"}},
			wantText: []string{"Hello Li", "2026-03-02 14:30 UTC", "888-111", "https://traderpath.example/interview"},
			wantHTML: []string{"<strong>888-111</strong>"},
		},
		{
			name:     "passed",
			msg:      Message{Kind: InterviewResult, To: Recipient{Name: "Li"}, Data: Data{Result: "pass"}},
			wantText: []string{"Congratulations"},
		},
		{
			name:      "failed",
			msg:       Message{Kind: InterviewResult, To: Recipient{Name: "Li"}, Data: Data{Result: "fail"}},
			wantText:  []string{"did not pass"},
			avoidText: []string{"Congratulations"},
		},
		{
			name: "reviewed with markup in comment",
			msg: Message{Kind: AssignmentReviewed, To: Recipient{Name: "Li"},
				Data: Data{Result: "approved", StageName: "Risk", Comment: "<b>nice</b>"}},
			wantText: []string{`"Risk" was approved`, "<b>nice</b>"},
			wantHTML: []string{"&lt;b&gt;nice&lt;/b&gt;"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, html, err := r.Render(tt.msg)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			for _, s := range tt.wantText {
				if !strings.Contains(text, s) {
					t.Errorf("text missing %q:\n%s", s, text)
				}
			}
			for _, s := range tt.wantHTML {
				if !strings.Contains(html, s) {
					t.Errorf("html missing %q:\n%s", s, html)
				}
			}
			for _, s := range tt.avoidText {
				if strings.Contains(text, s) {
					t.Errorf("text unexpectedly contains %q", s)
				}
			}
		})
	}

	if _, _, err := r.Render(Message{Kind: "unknown"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

type fakeSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	return &ses.SendEmailOutput{}, f.err
}

type fakeSNS struct {
	inputs []*sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sns.PublishOutput{}, nil
}

func TestEmailAndSMSChannels(t *testing.T) {
	r := newTestRenderer(t)
	mail := &fakeSES{}
	sms := &fakeSNS{}
	email := NewEmailChannelWithClient(mail, "noreply@traderpath.example", r)
	text := NewSMSChannelWithClient(sms, "+86", r)

	msg := Message{Kind: InterviewResult, Subject: "Interview result",
		To: Recipient{UserID: 1, Name: "Li", Email: "li@example.com", Phone: "13800000000"}, Data: Data{Result: "pass"}}

	if err := email.Notify(context.Background(), msg); err != nil {
		t.Fatalf("email: %v", err)
	}
	if len(mail.inputs) != 1 || mail.inputs[0].Destination.ToAddresses[0] != "li@example.com" ||
		*mail.inputs[0].Source != "noreply@traderpath.example" || *mail.inputs[0].Message.Subject.Data != "Interview result" {
		t.Errorf("ses input = %+v", mail.inputs)
	}

	if err := text.Notify(context.Background(), msg); err != nil {
		t.Fatalf("sms: %v", err)
	}
	if len(sms.inputs) != 1 || *sms.inputs[0].PhoneNumber != "+8613800000000" {
		t.Errorf("sns input = %+v", sms.inputs)
	}

	msg.To.Phone = "+441234567890"
	_ = text.Notify(context.Background(), msg)
	if *sms.inputs[1].PhoneNumber != "+441234567890" {
		t.Errorf("international phone rewritten: %s", *sms.inputs[1].PhoneNumber)
	}

	noAddr := Message{Kind: InterviewResult, To: Recipient{UserID: 2}}
	if err := email.Notify(context.Background(), noAddr); !errors.Is(err, ErrUnreachable) {
		t.Errorf("email without address: %v", err)
	}
	if err := text.Notify(context.Background(), noAddr); !errors.Is(err, ErrUnreachable) {
		t.Errorf("sms without phone: %v", err)
	}
}

func TestFanout(t *testing.T) {
	r := newTestRenderer(t)
	failing := NewEmailChannelWithClient(&fakeSES{err: errors.New("throttled")}, "x@example.com", r)
	sms := &fakeSNS{}
	ok := NewSMSChannelWithClient(sms, "+86", r)

	var results []string
	f := &Fanout{
		Channels: []Channel{failing, ok, NewLogChannel(r)},
		OnResult: func(ch string, err error) {
			results = append(results, ch+"="+map[bool]string{true: "ok", false: "err"}[err == nil])
		},
	}
	msg := Message{Kind: AssignmentReviewed, To: Recipient{UserID: 1, Name: "Li", Email: "li@example.com", Phone: "13800000000"},
		Data: Data{Result: "rejected", StageName: "Risk"}}
	err := f.Notify(context.Background(), msg)
	if err == nil || !strings.Contains(err.Error(), "email") {
		t.Fatalf("expected joined email error, got %v", err)
	}
	if len(sms.inputs) != 1 {
		t.Error("sms channel skipped after email failure")
	}
	want := "email=err,sms=ok,log=ok"
	if got := strings.Join(results, ","); got != want {
		t.Errorf("results = %s, want %s", got, want)
	}

	// Unreachable recipients are not reported as attempts.
	results = nil
	_ = f.Notify(context.Background(), Message{Kind: AssignmentReviewed, To: Recipient{UserID: 3}})
	if got := strings.Join(results, ","); got != "log=ok" {
		t.Errorf("results for unreachable = %s", got)
	}
}

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) Notify(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func TestQueueDrainsOnClose(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(rec, 10, time.Second)
	for i := 0; i < 5; i++ {
		if err := q.Notify(context.Background(), Message{Kind: InterviewResult, To: Recipient{UserID: int64(i)}}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	q.Close()
	q.Close()
	if len(rec.msgs) != 5 {
		t.Errorf("delivered %d, want 5", len(rec.msgs))
	}
}
