// Package push sends mobile push notifications through Amazon SNS.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ecosystia_backend/internal/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

var ErrNoEndpoint = errors.New("push: user has no registered device")

// Message is what the mobile app displays.
type Message struct {
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	ActionURL string            `json:"action_url,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

type Provider interface {
	Send(ctx context.Context, endpointARN string, msg Message) error
}

// SNSPublisher is the subset of the SNS client used here.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSProvider struct {
	client SNSPublisher
}

func NewSNSProvider(client SNSPublisher) *SNSProvider {
	return &SNSProvider{client: client}
}

// NewSNSProviderFromRegion loads the default AWS credential chain for region.
func NewSNSProviderFromRegion(ctx context.Context, region string) (*SNSProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("push: load aws config: %w", err)
	}
	return NewSNSProvider(sns.NewFromConfig(cfg)), nil
}

func (p *SNSProvider) Send(ctx context.Context, endpointARN string, msg Message) error {
	if endpointARN == "" {
		return ErrNoEndpoint
	}

	body, err := platformPayload(msg)
	if err != nil {
		return err
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(endpointARN),
		Message:          aws.String(body),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return fmt.Errorf("push: sns publish: %w", err)
	}
	return nil
}

// platformPayload builds the per-platform JSON document SNS expects when
// MessageStructure is "json".
func platformPayload(msg Message) (string, error) {
	fcm, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{"title": msg.Title, "body": msg.Body},
		"data":         withAction(msg),
	})
	if err != nil {
		return "", err
	}
	apns, err := json.Marshal(map[string]interface{}{
		"aps":  map[string]interface{}{"alert": map[string]string{"title": msg.Title, "body": msg.Body}},
		"data": withAction(msg),
	})
	if err != nil {
		return "", err
	}
	doc, err := json.Marshal(map[string]string{
		"default": msg.Body,
		"GCM":     string(fcm),
		"APNS":    string(apns),
	})
	return string(doc), err
}

func withAction(msg Message) map[string]string {
	data := make(map[string]string, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	if msg.ActionURL != "" {
		data["action_url"] = msg.ActionURL
	}
	return data
}

// LogProvider is used when push delivery is disabled.
type LogProvider struct{}

func (LogProvider) Send(ctx context.Context, endpointARN string, msg Message) error {
	if endpointARN == "" {
		return ErrNoEndpoint
	}
	logger.CtxDebug(ctx, "push suppressed", "endpoint", endpointARN, "title", msg.Title)
	return nil
}
