package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"vendor-bridge/domain"
)

// Message is one delivery of a queued command. Receipt rotates on every
// visibility update; always use the latest value when acknowledging.
type Message struct {
	ID            string
	Receipt       string
	Text          string
	DequeueCount  int64
	InsertionTime time.Time
}

// EnqueueCommand serializes the command and appends it to the command
// queue. Safe to retry with the same correlation id; the gateway's dedup
// claim collapses duplicate submissions.
func (s *Storage) EnqueueCommand(ctx context.Context, cmd domain.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	_, err = s.commandQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// Dequeue retrieves a single command delivery under a visibility lock.
// Returns nil when the queue is empty.
func (s *Storage) Dequeue(ctx context.Context, visibility time.Duration) (*Message, error) {
	vt := int32(visibility / time.Second)
	resp, err := s.commandQueue.DequeueMessage(ctx, &azqueue.DequeueMessageOptions{VisibilityTimeout: &vt})
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	m := resp.Messages[0]
	msg := &Message{}
	if m.MessageID != nil {
		msg.ID = *m.MessageID
	}
	if m.PopReceipt != nil {
		msg.Receipt = *m.PopReceipt
	}
	if m.MessageText != nil {
		msg.Text = *m.MessageText
	}
	if m.DequeueCount != nil {
		msg.DequeueCount = *m.DequeueCount
	}
	if m.InsertionTime != nil {
		msg.InsertionTime = *m.InsertionTime
	}
	return msg, nil
}

// Renew extends the visibility lock on an in-flight delivery and rotates
// the pop receipt.
func (s *Storage) Renew(ctx context.Context, msg *Message, visibility time.Duration) error {
	vt := int32(visibility / time.Second)
	resp, err := s.commandQueue.UpdateMessage(ctx, msg.ID, msg.Receipt, msg.Text, &azqueue.UpdateMessageOptions{VisibilityTimeout: &vt})
	if err != nil {
		return err
	}
	if resp.PopReceipt != nil {
		msg.Receipt = *resp.PopReceipt
	}
	return nil
}

// Release makes the delivery visible again after the given delay so the
// queue redelivers it with an advanced attempt count.
func (s *Storage) Release(ctx context.Context, msg *Message, delay time.Duration) error {
	vt := int32(delay / time.Second)
	resp, err := s.commandQueue.UpdateMessage(ctx, msg.ID, msg.Receipt, msg.Text, &azqueue.UpdateMessageOptions{VisibilityTimeout: &vt})
	if err != nil {
		return err
	}
	if resp.PopReceipt != nil {
		msg.Receipt = *resp.PopReceipt
	}
	return nil
}

// Ack removes a fully processed delivery from the queue.
func (s *Storage) Ack(ctx context.Context, msg *Message) error {
	_, err := s.commandQueue.DeleteMessage(ctx, msg.ID, msg.Receipt, nil)
	return err
}

// MoveToPoison copies the message to the poison queue and removes it from
// the command queue. Storage queues have no native dead-letter destination;
// the poison queue stands in for it and is drained by operators.
func (s *Storage) MoveToPoison(ctx context.Context, msg *Message) error {
	if _, err := s.poisonQueue.EnqueueMessage(ctx, msg.Text, nil); err != nil {
		return err
	}
	_, err := s.commandQueue.DeleteMessage(ctx, msg.ID, msg.Receipt, nil)
	return err
}
