package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cardfile/cardfile/internal/obs"
)

const (
	defaultQueueSize = 64

	// sendTimeout bounds a single SMTP conversation. Sends run detached
	// from the request, so the request context cannot be used.
	sendTimeout = 30 * time.Second
)

// Dispatcher delivers mail off the request path. Enqueue never blocks: when
// the queue is full the message is dropped and logged, matching the
// fire-and-forget contract of the auth flows. There is no retry; the user can
// always re-request a confirmation or reset.
type Dispatcher struct {
	mailer Mailer
	log    *slog.Logger

	jobs chan job
	wg   sync.WaitGroup
	once sync.Once
}

type job func(ctx context.Context, m Mailer) error

func NewDispatcher(mailer Mailer, log *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		mailer: mailer,
		log:    log,
		jobs:   make(chan job, defaultQueueSize),
	}

	d.wg.Add(1)
	go d.run()
	return d
}

// EnqueueConfirmation queues a confirmation-link email.
func (d *Dispatcher) EnqueueConfirmation(to, name, link string) {
	d.enqueue("confirmation", to, func(ctx context.Context, m Mailer) error {
		return m.SendConfirmation(ctx, to, name, link)
	})
}

// EnqueueResetCode queues a password-reset-code email.
func (d *Dispatcher) EnqueueResetCode(to, name, code string) {
	d.enqueue("reset_code", to, func(ctx context.Context, m Mailer) error {
		return m.SendResetCode(ctx, to, name, code)
	})
}

func (d *Dispatcher) enqueue(kind, to string, j job) {
	select {
	case d.jobs <- j:
		obs.ObserveMailEnqueue("ok")
	default:
		obs.ObserveMailEnqueue("dropped")
		d.log.Warn("mail queue full, dropping message",
			slog.String("kind", kind),
			slog.String("to", to),
		)
	}
}

// Close stops accepting new mail and waits for queued messages to drain.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.jobs)
		d.wg.Wait()
	})
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for j := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := j(ctx, d.mailer); err != nil {
			d.log.Error("mail delivery failed", slog.Any("error", err))
		}
		cancel()
	}
}
