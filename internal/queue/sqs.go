// Package queue carries background jobs between the web server and the
// worker over SQS.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

const (
	// JobThumbnail generates a thumbnail for a single video.
	JobThumbnail = "thumbnail"
	// JobBackfill generates thumbnails for every video missing one.
	JobBackfill = "backfill"
)

type Job struct {
	Kind    string `json:"kind"`
	VideoID string `json:"videoId,omitempty"`
}

// Message is a received job together with its receipt handle.
type Message struct {
	Job           Job
	receiptHandle *string
}

type SQSQueue struct {
	client   *sqs.Client
	queueURL string
}

func NewSQSQueue(queueURL, region string) (*SQSQueue, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return &SQSQueue{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}, nil
}

func (q *SQSQueue) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}
	return nil
}

// Receive long-polls for up to max jobs. Messages with bodies that do not
// parse are deleted immediately to avoid poison loops.
func (q *SQSQueue) Receive(ctx context.Context, max int32) ([]Message, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: max,
		WaitTimeSeconds:     20,
	})
	if err != nil {
		return nil, fmt.Errorf("receive message error: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		var job Job
		if err := json.Unmarshal([]byte(*m.Body), &job); err != nil {
			q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(q.queueURL),
				ReceiptHandle: m.ReceiptHandle,
			})
			continue
		}
		msgs = append(msgs, Message{Job: job, receiptHandle: m.ReceiptHandle})
	}
	return msgs, nil
}

// Delete acknowledges a processed message.
func (q *SQSQueue) Delete(ctx context.Context, m Message) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: m.receiptHandle,
	})
	if err != nil {
		return fmt.Errorf("failed to delete SQS message: %w", err)
	}
	return nil
}
