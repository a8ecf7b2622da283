package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
}

func sampleEvent() Event {
	return Event{
		EndpointID: "courses",
		ItemID:     "1",
		Page:       1,
		Item:       json.RawMessage(`{"id":1,"name":"Biology"}`),
	}
}

func TestSQSPublisherSendsEvent(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{id: "queue", queueURL: "https://example.com/queue", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://example.com/queue" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["endpoint_id"]
	if !ok || aws.ToString(attr.StringValue) != "courses" || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("endpoint_id attribute missing or wrong: %#v", attr)
	}

	var body Event
	if err := json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ItemID != "1" || string(body.Item) != `{"id":1,"name":"Biology"}` {
		t.Fatalf("unexpected body %#v", body)
	}
}

func TestSQSPublisherWrapsClientError(t *testing.T) {
	boom := errors.New("boom")
	pub := &sqsPublisher{id: "queue", queueURL: "q", client: &fakeSQSClient{err: boom}, log: noopLogger{}}

	if err := pub.Publish(context.Background(), sampleEvent()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestSQSPublisherOmitsEmptyAttributes(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{id: "queue", queueURL: "q", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), Event{EndpointID: "courses"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, ok := client.input.MessageAttributes["item_id"]; ok {
		t.Fatalf("empty item_id must not be sent as an attribute")
	}
}
