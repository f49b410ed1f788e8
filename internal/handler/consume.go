package handler

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/eshelf/loan-portal/internal/model"
)

type sendAccessCode func(to, bookTitle, code string, expiresAt time.Time) error

// Consumer turns loan-approved events into access-code emails. A failed send
// leaves the message unmarked so the group redelivers it.
type Consumer struct {
	send sendAccessCode
	log  *zap.Logger
}

func NewConsumer(send sendAccessCode, log *zap.Logger) *Consumer {
	return &Consumer{
		send: send,
		log:  log.Named("consumer"),
	}
}

// Setup runs at the start of every session; the group re-joins after each
// rebalance, so it must stay re-entrant.
func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			var event model.LoanApprovedEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				consumer.log.Error("unmarshal event", zap.Error(err))
				session.MarkMessage(message, "")
				continue
			}
			if err := consumer.handleEvent(event); err != nil {
				consumer.log.Error("send access code", zap.Error(err))
				continue
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (consumer *Consumer) handleEvent(event model.LoanApprovedEvent) error {
	if err := consumer.send(event.Email, event.BookTitle, event.Code, event.ExpiresAt); err != nil {
		return err
	}
	consumer.log.Debug("access code mailed",
		zap.Int("loan", event.LoanID), zap.String("email", event.Email))
	return nil
}
