package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"appointment-service/internal/logging"
	"appointment-service/internal/models"
)

// RecipientResult is the outcome of one send.
type RecipientResult struct {
	RecipientID string `json:"recipientId"`
	Name        string `json:"name,omitempty"`
	Channel     string `json:"channel"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// Report summarises one dispatch.
type Report struct {
	Kind          string            `json:"kind"`
	Owner         string            `json:"owner"`
	AppointmentID string            `json:"appointmentId"`
	ReminderID    string            `json:"reminderId,omitempty"`
	Sent          int               `json:"sent"`
	Failed        int               `json:"failed"`
	Results       []RecipientResult `json:"results"`
	DispatchedAt  time.Time         `json:"dispatchedAt"`
}

// Dispatcher fans a message out to every recipient. One recipient failing
// never stops delivery to the others, and nothing is retried here.
type Dispatcher struct {
	gateway     Gateway
	log         DeliveryLog
	notifier    Notifier
	logger      *logging.Logger
	concurrency int
	now         func() time.Time
}

func NewDispatcher(gateway Gateway, log DeliveryLog, notifier Notifier, concurrency int, logger *logging.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Dispatcher{
		gateway:     gateway,
		log:         log,
		notifier:    notifier,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// DispatchReminder sends a claimed reminder to its recipients snapshot.
func (d *Dispatcher) DispatchReminder(ctx context.Context, r models.ScheduledReminder) Report {
	sc := models.SendContext{
		Owner:         r.Owner,
		AppointmentID: r.AppointmentID,
		ReminderID:    r.ID,
		Kind:          models.KindReminder,
	}
	return d.Dispatch(ctx, sc, r.RecipientClass, r.Recipients, r.Message)
}

// Dispatch sends message to every recipient concurrently and waits for all
// of them.
func (d *Dispatcher) Dispatch(ctx context.Context, sc models.SendContext, class models.RecipientClass, recipients []models.Recipient, message string) Report {
	results := make([]RecipientResult, len(recipients))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, rcpt := range recipients {
		i, rcpt := i, rcpt
		g.Go(func() error {
			results[i] = d.sendOne(ctx, sc, class, rcpt, message)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Kind:          sc.Kind,
		Owner:         sc.Owner,
		AppointmentID: sc.AppointmentID,
		ReminderID:    sc.ReminderID,
		Results:       results,
		DispatchedAt:  d.now(),
	}
	for _, res := range results {
		if res.Status == models.DeliverySuccess {
			report.Sent++
		} else {
			report.Failed++
		}
	}

	d.logger.WithFields(logrus.Fields{
		"owner":       sc.Owner,
		"appointment": sc.AppointmentID,
		"reminder":    sc.ReminderID,
	}).Infof("Dispatched %s: %d sent, %d failed", sc.Kind, report.Sent, report.Failed)

	if d.notifier != nil {
		if payload, err := json.Marshal(report); err == nil {
			d.notifier.SendToOwner(sc.Owner, payload)
		}
	}
	return report
}

func (d *Dispatcher) sendOne(ctx context.Context, sc models.SendContext, class models.RecipientClass, rcpt models.Recipient, message string) RecipientResult {
	res := RecipientResult{
		RecipientID: rcpt.ID,
		Name:        rcpt.Name,
		Channel:     d.gateway.ChannelFor(rcpt),
		Status:      models.DeliverySuccess,
	}
	if err := d.gateway.Send(ctx, rcpt, message, sc); err != nil {
		res.Status = models.DeliveryFailed
		res.Error = err.Error()
		d.logger.Errorf("Send %s %s to %s failed: %v", sc.Kind, sc.ReminderID, rcpt.ID, err)
	}

	if class == "" {
		class = rcpt.Class
	}
	entry := models.Notification{
		CreatedAt:     d.now(),
		Owner:         sc.Owner,
		Kind:          sc.Kind,
		ReminderID:    sc.ReminderID,
		AppointmentID: sc.AppointmentID,
		RecipientID:   rcpt.ID,
		RecipientName: rcpt.Name,
		Class:         class,
		Channel:       res.Channel,
		Body:          message,
		Status:        res.Status,
		Error:         res.Error,
	}
	if err := d.log.CreateNotification(ctx, entry); err != nil {
		d.logger.Errorf("CreateNotification failed: %v", err)
	}
	return res
}
