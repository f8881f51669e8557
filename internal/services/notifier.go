package services

import (
	"context"
	"fmt"

	"photoduel-backend/internal/models"
	"photoduel-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
)

// PushNotifier sends APNs pushes to submission owners when their photos
// receive votes.
type PushNotifier struct {
	client   *apns2.Client
	topic    string
	userRepo *repository.UserRepository
}

// NewPushNotifier creates an APNs notifier from a p12 certificate.
func NewPushNotifier(certPath, certPassword, topic string, production bool, userRepo *repository.UserRepository) (*PushNotifier, error) {
	cert, err := certificate.FromP12File(certPath, certPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs certificate: %w", err)
	}

	client := apns2.NewClient(cert).Development()
	if production {
		client = client.Production()
	}

	return &PushNotifier{
		client:   client,
		topic:    topic,
		userRepo: userRepo,
	}, nil
}

// VoteReceived notifies a submission's owner about a new vote. Owners
// without a registered device token are skipped silently.
func (n *PushNotifier) VoteReceived(ctx context.Context, sub *models.Submission, votes int) {
	owner, err := n.userRepo.GetByID(ctx, sub.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", sub.UserID).Msg("Failed to look up submission owner")
		return
	}
	if owner.PushToken == nil || *owner.PushToken == "" {
		return
	}

	notification := &apns2.Notification{
		DeviceToken: *owner.PushToken,
		Topic:       n.topic,
		Payload: payload.NewPayload().
			AlertTitle("Your photo got a vote!").
			AlertBody(fmt.Sprintf("Your submission now has %d votes", votes)).
			Sound("default"),
	}

	res, err := n.client.PushWithContext(ctx, notification)
	if err != nil {
		log.Error().Err(err).Str("user_id", sub.UserID).Msg("Failed to send push notification")
		return
	}
	if !res.Sent() {
		log.Warn().
			Str("user_id", sub.UserID).
			Int("status", res.StatusCode).
			Str("reason", res.Reason).
			Msg("Push notification rejected")
	}
}
