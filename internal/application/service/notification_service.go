package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/garyjia/voucher-desk/internal/application/dispatcher"
	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/internal/domain/event"
)

// NotificationService tells passengers about their vouchers
type NotificationService interface {
	// HandleIssued is subscribed to issuance.issued
	HandleIssued(ctx context.Context, evt *event.Event) error
	ListNotifications(ctx context.Context, issuanceID int64) ([]*entity.Notification, error)
}

type notificationServiceImpl struct {
	issuanceRepo     port.IssuanceRepository
	passengerRepo    port.PassengerRepository
	flightRepo       port.FlightRepository
	notificationRepo port.NotificationRepository
	sender           port.MessageSender
	now              func() time.Time
	logger           Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	issuanceRepo port.IssuanceRepository,
	passengerRepo port.PassengerRepository,
	flightRepo port.FlightRepository,
	notificationRepo port.NotificationRepository,
	sender port.MessageSender,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		issuanceRepo:     issuanceRepo,
		passengerRepo:    passengerRepo,
		flightRepo:       flightRepo,
		notificationRepo: notificationRepo,
		sender:           sender,
		now:              time.Now,
		logger:           logger,
	}
}

// RegisterNotificationHandlers subscribes the service to the dispatcher
func RegisterNotificationHandlers(d dispatcher.Dispatcher, svc NotificationService) {
	d.SubscribeBackground(event.TypeIssuanceIssued, "notify_passenger", svc.HandleIssued)
}

func (s *notificationServiceImpl) HandleIssued(ctx context.Context, evt *event.Event) error {
	id, err := strconv.ParseInt(evt.SubjectID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad issuance id %q: %w", evt.SubjectID, err)
	}

	iss, err := s.issuanceRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get issuance %d: %w", id, err)
	}
	if iss.Status != entity.IssuanceStatusIssued {
		return nil
	}

	pax, err := s.passengerRepo.GetByID(ctx, iss.PassengerID)
	if err != nil {
		return fmt.Errorf("get passenger %d: %w", iss.PassengerID, err)
	}

	channel, recipient := contactFor(pax)
	if channel == "" {
		s.logger.Info("Passenger has no contact details, skipping notification",
			"issuance_id", iss.ID, "passenger_id", pax.ID)
		return nil
	}

	flightNumber := ""
	if f, err := s.flightRepo.GetByID(ctx, iss.FlightID); err == nil {
		flightNumber = f.FlightNumber
	}

	n := &entity.Notification{
		IssuanceID: iss.ID,
		Channel:    channel,
		Recipient:  recipient,
		Body:       messageBody(pax, iss, flightNumber),
		CreatedAt:  s.now().UTC(),
	}

	msgID, sendErr := s.sender.Send(ctx, channel, recipient, n.Body)
	if sendErr != nil {
		n.Status = entity.NotificationStatusFailed
		n.Error = sendErr.Error()
		s.logger.Error("Failed to send notification", "issuance_id", iss.ID, "channel", channel, "error", sendErr)
	} else {
		n.Status = entity.NotificationStatusSent
		n.ProviderMessageID = msgID
	}

	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	s.logger.Info("Notification recorded", "issuance_id", iss.ID, "channel", channel, "status", n.Status)
	return nil
}

// contactFor prefers SMS over e-mail
func contactFor(p *entity.Passenger) (channel, recipient string) {
	switch {
	case p.Phone != "":
		return entity.ChannelSMS, p.Phone
	case p.Email != "":
		return entity.ChannelEmail, p.Email
	default:
		return "", ""
	}
}

func messageBody(p *entity.Passenger, iss *entity.Issuance, flightNumber string) string {
	return fmt.Sprintf("Hi %s, a %s voucher for %s %s has been issued for flight %s. Reference %s.",
		p.FirstName, iss.VoucherType, FormatCents(iss.AmountCents), iss.Currency, flightNumber, iss.Serial)
}

func (s *notificationServiceImpl) ListNotifications(ctx context.Context, issuanceID int64) ([]*entity.Notification, error) {
	if _, err := s.issuanceRepo.GetByID(ctx, issuanceID); err != nil {
		return nil, err
	}
	list, err := s.notificationRepo.ListByIssuance(ctx, issuanceID)
	if err != nil {
		s.logger.Error("Failed to list notifications", "issuance_id", issuanceID, "error", err)
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}
