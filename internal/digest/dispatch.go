// Package digest routes e-mail through the queue and runs the weekly digest.
package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"failboard/internal/infra/mail"
	"failboard/internal/infra/mq"
	"failboard/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrSkipped means the message was dropped on purpose: unknown recipient,
// no address, opted out or banned.
var ErrSkipped = errors.New("email skipped")

type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Deliverer resolves recipients and hands the message to the mail sender.
type Deliverer struct {
	db     *gorm.DB
	sender mail.Sender
}

func NewDeliverer(db *gorm.DB, sender mail.Sender) *Deliverer {
	return &Deliverer{db: db, sender: sender}
}

func (d *Deliverer) Deliver(ctx context.Context, msg models.EmailMsg) error {
	to := strings.TrimSpace(msg.To)

	if msg.RecipientID != "" {
		var p models.Profile
		err := d.db.WithContext(ctx).First(&p, "id = ?", msg.RecipientID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: recipient %s not found", ErrSkipped, msg.RecipientID)
		}
		if err != nil {
			return fmt.Errorf("%w: load recipient: %v", models.ErrRemoteUnavailable, err)
		}
		if p.IsBanned {
			return fmt.Errorf("%w: recipient banned", ErrSkipped)
		}
		switch msg.Template {
		case models.TemplateNotification:
			if !p.EmailNotifications {
				return fmt.Errorf("%w: notifications disabled", ErrSkipped)
			}
		case models.TemplateDigest:
			if !p.DigestEmails {
				return fmt.Errorf("%w: digest disabled", ErrSkipped)
			}
		}
		if to == "" {
			to = p.Email
		}
	}

	if to == "" {
		return fmt.Errorf("%w: no address", ErrSkipped)
	}
	return d.sender.Send(ctx, msg.Template, to, msg.Vars)
}

// HandleQueued is the email_queue consumer. Skipped messages are acked.
func (d *Deliverer) HandleQueued(ctx context.Context, body []byte) error {
	var msg models.EmailMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode email message: %w", err)
	}
	err := d.Deliver(ctx, msg)
	if errors.Is(err, ErrSkipped) {
		zap.L().Debug("email skipped", zap.String("template", string(msg.Template)), zap.Error(err))
		return nil
	}
	return err
}

// Dispatcher queues e-mail on RabbitMQ, or sends it in the background when
// no broker is configured.
type Dispatcher struct {
	pub       Publisher
	deliverer *Deliverer
}

func NewDispatcher(pub Publisher, deliverer *Deliverer) *Dispatcher {
	return &Dispatcher{pub: pub, deliverer: deliverer}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg models.EmailMsg) error {
	if d.pub == nil {
		go func() {
			if err := d.deliverer.Deliver(context.WithoutCancel(ctx), msg); err != nil && !errors.Is(err, ErrSkipped) {
				zap.L().Warn("inline email delivery failed", zap.String("template", string(msg.Template)), zap.Error(err))
			}
		}()
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := d.pub.Publish(ctx, mq.EmailQueue, body); err != nil {
		return fmt.Errorf("%w: publish email: %v", models.ErrRemoteUnavailable, err)
	}
	return nil
}
