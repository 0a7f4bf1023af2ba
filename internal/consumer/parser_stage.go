package consumer

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/metrics"
	"github.com/ronaldopdias/behavior-analytics-service/internal/queue"
)

// DeadLetterSink records unprocessable messages for manual inspection.
type DeadLetterSink interface {
	Insert(ctx context.Context, dl *domain.DeadLetter) error
}

// ParserStage handles parsing SQS messages into pipeline envelopes
type ParserStage struct {
	consumer    queue.QueueConsumer
	parser      MessageParser
	deadLetters DeadLetterSink
	log         *zap.Logger
}

// NewParserStage creates a new parser stage
func NewParserStage(consumer queue.QueueConsumer, parser MessageParser, deadLetters DeadLetterSink, log *zap.Logger) *ParserStage {
	return &ParserStage{
		consumer:    consumer,
		parser:      parser,
		deadLetters: deadLetters,
		log:         log,
	}
}

// Start begins parsing messages and outputs envelopes
func (p *ParserStage) Start(ctx context.Context, in <-chan types.Message, out chan<- *Envelope) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Parser stage shutting down")
			return
		case msg, ok := <-in:
			if !ok {
				p.log.Info("Parser stage input channel closed")
				return
			}

			envelope := p.parseMessage(ctx, msg)
			if envelope == nil {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- envelope:
				// Envelope sent to next stage
			}
		}
	}
}

// parseMessage parses a single SQS message into an envelope. A malformed
// message is dead-lettered and deleted: redelivery cannot fix it.
func (p *ParserStage) parseMessage(ctx context.Context, msg types.Message) *Envelope {
	body := aws.ToString(msg.Body)
	inbound, err := p.parser.Parse([]byte(body))

	if err != nil {
		p.log.Warn("Failed to parse message",
			zap.String("message_id", aws.ToString(msg.MessageId)),
			zap.Error(err))

		dl := &domain.DeadLetter{
			Source:     "parser",
			Reference:  aws.ToString(msg.MessageId),
			Payload:    body,
			Reason:     err.Error(),
			OccurredAt: time.Now().UTC(),
		}
		if err := p.deadLetters.Insert(ctx, dl); err != nil {
			p.log.Error("Failed to record dead letter", zap.Error(err))
		}
		metrics.DeadLetters.WithLabelValues("parser").Inc()

		if err := p.deleteMessage(ctx, msg); err != nil {
			p.log.Error("Failed to delete malformed message",
				zap.String("message_id", aws.ToString(msg.MessageId)),
				zap.Error(err))
		}
		return nil
	}

	ack := func(ctx context.Context) error {
		return p.deleteMessage(ctx, msg)
	}

	nack := func(ctx context.Context) error {
		// Leave the message in SQS; visibility timeout returns it.
		return nil
	}

	return NewEnvelope(inbound, ack, nack)
}

// deleteMessage deletes a message from SQS
func (p *ParserStage) deleteMessage(ctx context.Context, msg types.Message) error {
	_, err := p.consumer.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.consumer.QueueURL()),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		p.log.Error("Failed to delete message",
			zap.String("message_id", aws.ToString(msg.MessageId)),
			zap.Error(err))
		return err
	}
	return nil
}
