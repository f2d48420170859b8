package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/logger"
	"github.com/meujardineiro/backend/internal/marketplace"
	"github.com/meujardineiro/backend/internal/user"
	"github.com/meujardineiro/backend/internal/utils"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// UserLookup resolves recipients of order events.
type UserLookup interface {
	Get(ctx context.Context, id string) (*user.User, error)
}

// Dispatcher turns account and order events into email tasks.
type Dispatcher struct {
	q      Enqueuer
	users  UserLookup
	appURL string
	log    *zap.Logger
	now    func() time.Time
}

func NewDispatcher(q Enqueuer, users UserLookup, appURL string, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		q:      q,
		users:  users,
		appURL: strings.TrimRight(appURL, "/"),
		log:    log,
		now:    time.Now,
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, taskType, queue string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	_, err = d.q.EnqueueContext(ctx, asynq.NewTask(taskType, b), asynq.Queue(queue), asynq.MaxRetry(5))
	return err
}

// WelcomeEmail schedules a welcome email to a new user
func (d *Dispatcher) WelcomeEmail(ctx context.Context, userID, email, name string) error {
	env := EmailEnvelope{
		To:      email,
		Subject: fmt.Sprintf("Bem-vindo ao MeuJardineiro, %s!", name),
		Body:    fmt.Sprintf("Olá %s, obrigado por se cadastrar no MeuJardineiro.\n\nAcesse: %s", name, d.appURL),
	}
	payload := WelcomeEmailPayload{UserID: userID, Name: name, Email: email, Envelope: env, SentAt: d.now()}
	return d.enqueue(ctx, TaskWelcomeEmail, queueEmails, payload)
}

// PasswordReset schedules a password reset link
func (d *Dispatcher) PasswordReset(ctx context.Context, userID, email, name, token string, ttl time.Duration) error {
	resetURL := d.appURL + "/reset-password?token=" + token
	env := EmailEnvelope{
		To:      email,
		Subject: "Redefinição de senha",
		Body: fmt.Sprintf("Olá %s,\n\nRecebemos um pedido para redefinir sua senha.\n\n%s\n\nO link expira em %d minutos. Se você não fez o pedido, ignore este e-mail.",
			name, resetURL, int(ttl.Minutes())),
	}
	payload := PasswordResetPayload{UserID: userID, Email: email, ResetURL: resetURL, Envelope: env, Requested: d.now()}
	return d.enqueue(ctx, TaskPasswordReset, queueEmails, payload)
}

// Notify implements marketplace.Notifier. Failures are logged, never returned.
func (d *Dispatcher) Notify(ctx context.Context, ev marketplace.Event) {
	log := logger.FromContext(ctx, d.log).With(zap.String("order_id", ev.Order.ID), zap.String("kind", string(ev.Kind)))
	for _, id := range recipients(ev) {
		u, err := d.users.Get(ctx, id)
		if err != nil {
			log.Warn("order event recipient lookup failed", zap.String("recipient_id", id), zap.Error(err))
			continue
		}
		payload := OrderEventPayload{
			Kind:        string(ev.Kind),
			OrderID:     ev.Order.ID,
			RecipientID: id,
			Email:       u.Email,
			Envelope:    d.orderEnvelope(ev, u),
			SentAt:      d.now(),
		}
		if err := d.enqueue(ctx, TaskOrderEvent, queueOrders, payload); err != nil {
			log.Error("enqueue order event", zap.String("recipient_id", id), zap.Error(err))
		}
	}
}

// recipients are the parties of the order other than the actor.
func recipients(ev marketplace.Event) []string {
	o := ev.Order
	var ids []string
	add := func(id *string) {
		if id != nil && *id != "" && *id != ev.Actor.UserID {
			ids = append(ids, *id)
		}
	}
	customer := o.CustomerID

	switch ev.Kind {
	case marketplace.EventOrderCreated:
		// confirmation to the customer who placed it
		ids = append(ids, customer)
	case marketplace.EventCounterProposal:
		if ev.Actor.UserID == customer {
			add(o.CounterProviderID)
		} else {
			add(&customer)
		}
	case marketplace.EventOrderRated:
		add(o.ProviderID)
	default:
		add(&customer)
		add(o.ProviderID)
	}
	return ids
}

func (d *Dispatcher) orderEnvelope(ev marketplace.Event, to *user.User) EmailEnvelope {
	o := ev.Order
	link := fmt.Sprintf("%s/orders/%s", d.appURL, o.ID)
	service := o.ServiceType.Label()

	var subject, body string
	switch ev.Kind {
	case marketplace.EventOrderCreated:
		subject = "Pedido criado: " + service
		body = "Seu pedido foi criado e está aguardando um prestador."
	case marketplace.EventCounterProposal:
		subject = "Nova proposta para " + service
		body = "Você recebeu uma nova proposta"
		if ev.Value != nil {
			body += " de " + utils.FormatBRL(*ev.Value)
		}
		body += "."
		if ev.Message != "" {
			body += "\n\nMensagem: " + ev.Message
		}
	case marketplace.EventOrderAccepted:
		subject = "Pedido aceito: " + service
		body = "O pedido foi aceito"
		if o.FinalValue != nil {
			body += " pelo valor de " + utils.FormatBRL(*o.FinalValue)
		}
		body += "."
	case marketplace.EventStatusAdvanced:
		subject = "Pedido atualizado: " + o.Status.Label()
		body = "O status do seu pedido mudou para " + o.Status.Label() + "."
	case marketplace.EventOrderCancelled:
		subject = "Pedido cancelado: " + service
		body = "O pedido foi cancelado."
		if ev.Message != "" {
			body += "\n\nMotivo: " + ev.Message
		}
	case marketplace.EventOrderRated:
		subject = "Você recebeu uma avaliação"
		if o.Rating != nil {
			body = fmt.Sprintf("O cliente avaliou o serviço com %d estrela(s).", *o.Rating)
		}
	default:
		subject = "Atualização do pedido"
		body = "Seu pedido foi atualizado."
	}

	return EmailEnvelope{
		To:      to.Email,
		Subject: subject,
		Body:    fmt.Sprintf("Olá %s,\n\n%s\n\nVer pedido: %s", to.Name, body, link),
	}
}
