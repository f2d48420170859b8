package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Processor consumes email tasks and hands them to a Mailer.
type Processor struct {
	mailer Mailer
	log    *zap.Logger
}

func NewProcessor(mailer Mailer, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{mailer: mailer, log: log}
}

// Mux routes every task type this package enqueues.
func (p *Processor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskWelcomeEmail, p.handleWelcomeEmail)
	mux.HandleFunc(TaskPasswordReset, p.handlePasswordReset)
	mux.HandleFunc(TaskOrderEvent, p.handleOrderEvent)
	return mux
}

// NewServer builds the asynq worker server. Run it with srv.Start(p.Mux()).
func NewServer(redis asynq.RedisClientOpt, concurrency int, log *zap.Logger) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 5
	}
	return asynq.NewServer(redis, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueOrders: 10,
			queueEmails: 5,
		},
		Logger: log.Sugar(),
	})
}

func (p *Processor) send(ctx context.Context, kind string, env EmailEnvelope, fields ...zap.Field) error {
	if err := p.mailer.Send(ctx, env); err != nil {
		p.log.Error("email send failed", append(fields, zap.String("task", kind), zap.Error(err))...)
		return err
	}
	p.log.Info("email sent", append(fields, zap.String("task", kind), zap.String("to", env.To))...)
	return nil
}

func (p *Processor) handleWelcomeEmail(ctx context.Context, t *asynq.Task) error {
	var pl WelcomeEmailPayload
	if err := json.Unmarshal(t.Payload(), &pl); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return p.send(ctx, t.Type(), pl.Envelope, zap.String("user_id", pl.UserID))
}

func (p *Processor) handlePasswordReset(ctx context.Context, t *asynq.Task) error {
	var pl PasswordResetPayload
	if err := json.Unmarshal(t.Payload(), &pl); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return p.send(ctx, t.Type(), pl.Envelope, zap.String("user_id", pl.UserID))
}

func (p *Processor) handleOrderEvent(ctx context.Context, t *asynq.Task) error {
	var pl OrderEventPayload
	if err := json.Unmarshal(t.Payload(), &pl); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return p.send(ctx, t.Type(), pl.Envelope,
		zap.String("order_id", pl.OrderID),
		zap.String("event", pl.Kind),
		zap.String("recipient_id", pl.RecipientID),
	)
}
