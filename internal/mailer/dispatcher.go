package mailer

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"drawwin/internal/models"
)

// Notifier is what the core services see: enqueue and forget. Delivery
// failures never propagate back into the operation that triggered them.
type Notifier interface {
	Dispatch(n Notice)
}

// Dispatcher delivers notices from a buffered queue on a background
// worker and appends an EmailLog row for every attempt, success or not.
type Dispatcher struct {
	db     *gorm.DB
	sender EmailSender
	queue  chan Notice
	wg     sync.WaitGroup
	once   sync.Once

	mu     sync.Mutex
	closed bool

	// RetryDelay is the initial backoff between send attempts.
	RetryDelay time.Duration
}

func NewDispatcher(db *gorm.DB, sender EmailSender) *Dispatcher {
	return &Dispatcher{
		db:         db,
		sender:     sender,
		queue:      make(chan Notice, 64),
		RetryDelay: 1 * time.Second,
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for n := range d.queue {
			d.deliver(n)
		}
	}()
	log.Info("Notification dispatcher started")
}

// Stop drains the queue and waits for in-flight deliveries. Dispatches
// arriving after Stop are dropped, not panicked on.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

// Dispatch enqueues a notice without blocking. If the queue is full or
// the dispatcher is stopped the notice is dropped and the drop is
// logged; the audit trail notes it too.
func (d *Dispatcher) Dispatch(n Notice) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.WithFields(log.Fields{
			"type":      n.Kind(),
			"recipient": n.Recipient(),
		}).Warn("Dispatcher stopped, dropping notice")
		d.logAttempt(n, false, "dispatcher stopped")
		return
	}
	select {
	case d.queue <- n:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		log.WithFields(log.Fields{
			"type":      n.Kind(),
			"recipient": n.Recipient(),
		}).Warn("Notification queue full, dropping notice")
		d.logAttempt(n, false, "notification queue full")
	}
}

func (d *Dispatcher) deliver(n Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Bounded retry with backoff; transient SMTP failures are common.
	maxAttempts := 3
	delay := d.RetryDelay
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = d.sender.SendEmail(ctx, n.Recipient(), n.Subject(), n.Body())
		if err == nil {
			break
		}
		if attempt < maxAttempts {
			log.WithFields(log.Fields{
				"attempt":   attempt,
				"type":      n.Kind(),
				"recipient": n.Recipient(),
			}).WithError(err).Warn("Failed to send notification, retrying")
			time.Sleep(delay)
			delay *= 2
		}
	}

	if err != nil {
		log.WithFields(log.Fields{
			"type":      n.Kind(),
			"recipient": n.Recipient(),
		}).WithError(err).Error("Failed to send notification")
		d.logAttempt(n, false, err.Error())
		return
	}

	log.WithFields(log.Fields{
		"type":      n.Kind(),
		"recipient": n.Recipient(),
	}).Info("Notification sent")
	d.logAttempt(n, true, "")
}

func (d *Dispatcher) logAttempt(n Notice, success bool, errMsg string) {
	entry := models.EmailLog{
		RecipientEmail: n.Recipient(),
		Subject:        n.Subject(),
		Type:           n.Kind(),
		Success:        success,
		ErrorMessage:   errMsg,
	}
	if err := d.db.Create(&entry).Error; err != nil {
		log.WithError(err).Error("Failed to write email log")
	}
}
