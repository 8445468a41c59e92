package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SESAPI is the subset of the SES client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSAPI is the subset of the SNS client used here.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// LoadAWS loads the default AWS configuration for region.
func LoadAWS(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return cfg, nil
}

// EmailChannel sends messages through SES.
type EmailChannel struct {
	client   SESAPI
	sender   string
	renderer *Renderer
}

// NewEmailChannel builds an SES channel from an AWS config.
func NewEmailChannel(cfg aws.Config, sender string, r *Renderer) *EmailChannel {
	return NewEmailChannelWithClient(ses.NewFromConfig(cfg), sender, r)
}

// NewEmailChannelWithClient wraps an existing SES client.
func NewEmailChannelWithClient(client SESAPI, sender string, r *Renderer) *EmailChannel {
	return &EmailChannel{client: client, sender: sender, renderer: r}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Notify(ctx context.Context, m Message) error {
	if m.To.Email == "" {
		return ErrUnreachable
	}
	text, html, err := e.renderer.Render(m)
	if err != nil {
		return err
	}
	_, err = e.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{m.To.Email}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(m.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(text), Charset: aws.String("UTF-8")},
				Html: &types.Content{Data: aws.String(html), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(e.sender),
	})
	if err != nil {
		return fmt.Errorf("ses send to user %d: %w", m.To.UserID, err)
	}
	return nil
}

// SMSChannel sends the text body through SNS. Phones stored without a leading
// "+" get the configured country code.
type SMSChannel struct {
	client      SNSAPI
	countryCode string
	renderer    *Renderer
}

// NewSMSChannel builds an SNS channel from an AWS config.
func NewSMSChannel(cfg aws.Config, countryCode string, r *Renderer) *SMSChannel {
	return NewSMSChannelWithClient(sns.NewFromConfig(cfg), countryCode, r)
}

// NewSMSChannelWithClient wraps an existing SNS client.
func NewSMSChannelWithClient(client SNSAPI, countryCode string, r *Renderer) *SMSChannel {
	return &SMSChannel{client: client, countryCode: countryCode, renderer: r}
}

func (s *SMSChannel) Name() string { return "sms" }

func (s *SMSChannel) Notify(ctx context.Context, m Message) error {
	if m.To.Phone == "" {
		return ErrUnreachable
	}
	text, _, err := s.renderer.Render(m)
	if err != nil {
		return err
	}
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(s.e164(m.To.Phone)),
		Message:     aws.String(m.Subject + "\n" + strings.TrimSpace(text)),
	})
	if err != nil {
		return fmt.Errorf("sns publish to user %d: %w", m.To.UserID, err)
	}
	return nil
}

func (s *SMSChannel) e164(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return s.countryCode + phone
}
