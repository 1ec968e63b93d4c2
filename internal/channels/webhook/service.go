package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/stockline-hq/stockline-backend/internal/channels"
	"github.com/stockline-hq/stockline-backend/internal/channels/adapters"
	"github.com/stockline-hq/stockline-backend/internal/inventory"
	"github.com/stockline-hq/stockline-backend/pkg/db/models"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
	"github.com/stockline-hq/stockline-backend/pkg/logger"
	"github.com/stockline-hq/stockline-backend/pkg/metrics"
)

// ErrSecretNotConfigured marks a channel that is connected but has never
// completed webhook registration, so deliveries cannot be authenticated.
var ErrSecretNotConfigured = pkgerrors.New(pkgerrors.CodeStateConflict, "channel has no webhook secret configured")

// Delivery is one raw webhook request as received on the wire.
type Delivery struct {
	ChannelType string
	ChannelID   uuid.UUID
	Topic       string
	Signature   string
	RawBody     []byte
}

// Result summarizes what happened to the stock changes carried by one
// delivery. Failed items are logged and counted, never re-raised to the
// sender.
type Result struct {
	Received int
	Applied  int
	Skipped  int
	Failed   int
}

type secretDecrypter interface {
	DecryptField(fields map[string]string, name string) (string, error)
}

type stockApplier interface {
	ApplyChange(ctx context.Context, input inventory.ApplyChangeInput) (*inventory.ChangeResult, error)
}

// Service ingests storefront webhook deliveries and reconciles them into the
// inventory ledger.
type Service interface {
	Process(ctx context.Context, delivery Delivery) (*Result, error)
}

type service struct {
	repo     channels.Repository
	registry *adapters.Registry
	secrets  secretDecrypter
	stock    stockApplier
	log      *logger.Logger
	metrics  *metrics.WebhookMetrics
}

// NewService wires the webhook ingestion gateway. Metrics may be nil when no
// registry is configured.
func NewService(repo channels.Repository, registry *adapters.Registry, secrets secretDecrypter, stock stockApplier, log *logger.Logger, m *metrics.WebhookMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("webhook service requires a channel repository")
	}
	if registry == nil {
		return nil, fmt.Errorf("webhook service requires an adapter registry")
	}
	if secrets == nil {
		return nil, fmt.Errorf("webhook service requires a secret decrypter")
	}
	if stock == nil {
		return nil, fmt.Errorf("webhook service requires a stock applier")
	}
	if log == nil {
		return nil, fmt.Errorf("webhook service requires a logger")
	}
	return &service{
		repo:     repo,
		registry: registry,
		secrets:  secrets,
		stock:    stock,
		log:      log,
		metrics:  m,
	}, nil
}

// Process authenticates and applies one delivery. Failures before the payload
// is parsed are returned to the caller so the sender can retry; once items
// are being applied, per-item failures are absorbed and the delivery is
// acknowledged.
func (s *service) Process(ctx context.Context, delivery Delivery) (*Result, error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveDuration(delivery.ChannelType, time.Since(started))
	}()

	channelType, err := enums.ParseChannelType(delivery.ChannelType)
	if err != nil {
		s.metrics.IncFailure(delivery.ChannelType, "unknown_type")
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "unknown channel type")
	}
	adapter, err := s.registry.Get(channelType)
	if err != nil {
		s.metrics.IncFailure(delivery.ChannelType, "unknown_type")
		return nil, err
	}

	channel, err := s.loadConnectedChannel(ctx, delivery.ChannelID, channelType)
	if err != nil {
		s.metrics.IncFailure(delivery.ChannelType, "channel_unavailable")
		return nil, err
	}

	secret, err := s.secrets.DecryptField(channel.Credentials, channels.CredentialWebhookSecret)
	if err != nil {
		if pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
			s.metrics.IncFailure(delivery.ChannelType, "secret_missing")
			return nil, ErrSecretNotConfigured
		}
		s.metrics.IncFailure(delivery.ChannelType, "secret_decrypt")
		return nil, err
	}

	changes, err := adapter.ProcessWebhook(delivery.RawBody, delivery.Signature, delivery.Topic, secret)
	if err != nil {
		s.metrics.IncFailure(delivery.ChannelType, "rejected")
		return nil, err
	}
	s.metrics.IncDelivered(delivery.ChannelType, delivery.Topic)

	result := &Result{Received: len(changes)}
	var itemErrs error
	for _, change := range changes {
		applied, err := s.applyChange(ctx, channel, change)
		switch {
		case err != nil:
			result.Failed++
			itemErrs = multierr.Append(itemErrs, fmt.Errorf("external product %s: %w", change.ExternalProductID, err))
		case applied:
			result.Applied++
		default:
			result.Skipped++
		}
	}
	if itemErrs != nil {
		logCtx := s.log.WithFields(ctx, map[string]any{
			"channel_id": channel.ID.String(),
			"topic":      delivery.Topic,
			"failed":     result.Failed,
		})
		s.log.Error(logCtx, "webhook items failed to apply", itemErrs)
		s.metrics.IncFailure(delivery.ChannelType, "item_apply")
	}
	s.metrics.AddStockChanges(delivery.ChannelType, result.Applied)
	return result, nil
}

func (s *service) loadConnectedChannel(ctx context.Context, channelID uuid.UUID, channelType enums.ChannelType) (*models.Channel, error) {
	channel, err := s.repo.FindByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "channel not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading channel")
	}
	if channel.Type != channelType || channel.Status != enums.ChannelStatusConnected {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "channel is not accepting webhooks")
	}
	return channel, nil
}

// applyChange resolves the external product to an internal one and posts the
// delta. An unmapped external product is skipped, not failed: merchants map
// products incrementally and unmapped ones are simply not tracked here.
func (s *service) applyChange(ctx context.Context, channel *models.Channel, change adapters.StockChange) (bool, error) {
	mapping, err := s.repo.FindMappingByExternalID(ctx, channel.ID, change.ExternalProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolving product mapping")
	}
	result, err := s.stock.ApplyChange(ctx, inventory.ApplyChangeInput{
		ProductID:     mapping.ProductID,
		QuantityDelta: change.Quantity,
		Type:          change.Type,
		ReferenceType: change.ReferenceType,
		ReferenceID:   change.ReferenceID,
	})
	if err != nil {
		return false, err
	}
	return result.Applied, nil
}
