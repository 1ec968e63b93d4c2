package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockline-hq/stockline-backend/internal/channels/adapters"
	"github.com/stockline-hq/stockline-backend/pkg/db"
	"github.com/stockline-hq/stockline-backend/pkg/db/models"
	dbtypes "github.com/stockline-hq/stockline-backend/pkg/db/types"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
)

// CredentialWebhookSecret is the credential map key holding the encrypted
// webhook signing secret once RegisterWebhooks has run.
const CredentialWebhookSecret = "webhook_secret"

// CreateChannelInput carries everything needed to register a new channel in
// pending state.
type CreateChannelInput struct {
	UserID uuid.UUID
	Type   string
	Name   string
	Config map[string]string
}

// CreateChannelResult pairs the stored channel with the one-time connect URL
// the caller should redirect the merchant to.
type CreateChannelResult struct {
	Channel    *models.Channel
	ConnectURL string
}

// CreateMappingInput links one external product to an internal one.
type CreateMappingInput struct {
	ChannelID         uuid.UUID
	UserID            uuid.UUID
	ProductID         uuid.UUID
	ExternalProductID string
	Label             string
}

// credentialCipher is the subset of the vault the channel service needs.
type credentialCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
	EncryptMap(fields map[string]string) (map[string]string, error)
}

type productFinder interface {
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service owns the channel connection lifecycle and product mapping catalog.
type Service interface {
	Create(ctx context.Context, input CreateChannelInput) (*CreateChannelResult, error)
	Get(ctx context.Context, channelID, userID uuid.UUID) (*models.Channel, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Channel, error)
	HandleCallback(ctx context.Context, channelID uuid.UUID, rawBody []byte) (*models.Channel, error)
	RegisterWebhooks(ctx context.Context, channelID, userID uuid.UUID) ([]string, error)
	Disconnect(ctx context.Context, channelID, userID uuid.UUID) (*models.Channel, error)
	FetchProducts(ctx context.Context, channelID, userID uuid.UUID, search string) ([]adapters.ExternalProduct, error)
	CreateMapping(ctx context.Context, input CreateMappingInput) (*models.ChannelProductMapping, error)
	ListMappings(ctx context.Context, channelID, userID uuid.UUID) ([]models.ChannelProductMapping, error)
	DeleteMapping(ctx context.Context, channelID, mappingID, userID uuid.UUID) error
	PushStock(ctx context.Context, channelID, mappingID, userID uuid.UUID) error
}

type service struct {
	repo            Repository
	registry        *adapters.Registry
	cipher          credentialCipher
	products        productFinder
	appBaseURL      string
	webhookBasePath string
}

// NewService wires the channel lifecycle service.
func NewService(repo Repository, registry *adapters.Registry, cipher credentialCipher, products productFinder, appBaseURL, webhookBasePath string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("channels service requires a repository")
	}
	if registry == nil {
		return nil, fmt.Errorf("channels service requires an adapter registry")
	}
	if cipher == nil {
		return nil, fmt.Errorf("channels service requires a credential cipher")
	}
	if products == nil {
		return nil, fmt.Errorf("channels service requires a product finder")
	}
	if appBaseURL == "" {
		return nil, fmt.Errorf("channels service requires an app base URL")
	}
	return &service{
		repo:            repo,
		registry:        registry,
		cipher:          cipher,
		products:        products,
		appBaseURL:      strings.TrimRight(appBaseURL, "/"),
		webhookBasePath: webhookBasePath,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateChannelInput) (*CreateChannelResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "channel name is required")
	}
	channelType, err := enums.ParseChannelType(input.Type)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid channel type")
	}
	adapter, err := s.registry.Get(channelType)
	if err != nil {
		return nil, err
	}
	if err := adapter.ValidateConfig(input.Config); err != nil {
		return nil, err
	}

	channelID := uuid.New()
	connectURL, err := adapter.BuildConnectURL(channelID, input.Config, s.appBaseURL)
	if err != nil {
		return nil, err
	}
	encrypted, err := s.cipher.EncryptMap(input.Config)
	if err != nil {
		return nil, err
	}

	channel := &models.Channel{
		ID:          channelID,
		UserID:      input.UserID,
		Type:        channelType,
		Name:        strings.TrimSpace(input.Name),
		Status:      enums.ChannelStatusPending,
		StoreURL:    strings.TrimRight(input.Config["store_url"], "/"),
		Credentials: dbtypes.CredentialMap(encrypted),
	}
	if err := s.repo.Create(ctx, channel); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating channel")
	}
	return &CreateChannelResult{Channel: channel, ConnectURL: connectURL}, nil
}

func (s *service) Get(ctx context.Context, channelID, userID uuid.UUID) (*models.Channel, error) {
	return s.findOwned(ctx, channelID, userID)
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Channel, error) {
	channels, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing channels")
	}
	return channels, nil
}

// HandleCallback completes the connect handshake. It is reached from an
// unauthenticated redirect, so a channel that is missing or no longer pending
// is reported as not found rather than leaking its state.
func (s *service) HandleCallback(ctx context.Context, channelID uuid.UUID, rawBody []byte) (*models.Channel, error) {
	channel, err := s.repo.FindByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "channel not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading channel")
	}
	if channel.Status != enums.ChannelStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "channel is not awaiting connection")
	}

	adapter, err := s.registry.Get(channel.Type)
	if err != nil {
		return nil, err
	}
	result, err := adapter.ParseCallback(rawBody)
	if err != nil {
		return nil, err
	}
	if result.ChannelID != uuid.Nil && result.ChannelID != channel.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback does not correspond to this channel")
	}

	encrypted, err := s.cipher.EncryptMap(result.Credentials)
	if err != nil {
		return nil, err
	}
	if channel.Credentials == nil {
		channel.Credentials = dbtypes.CredentialMap{}
	}
	for name, token := range encrypted {
		channel.Credentials[name] = token
	}
	channel.Status = enums.ChannelStatusConnected
	if err := s.repo.Update(ctx, channel); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving connected channel")
	}
	return channel, nil
}

func (s *service) RegisterWebhooks(ctx context.Context, channelID, userID uuid.UUID) ([]string, error) {
	channel, adapter, creds, err := s.connectedChannel(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}

	callbackURL := fmt.Sprintf("%s%s/%s/%s", s.appBaseURL, s.webhookBasePath, channel.Type, channel.ID)
	secret, topics, err := adapter.RegisterWebhooks(ctx, channel.StoreURL, creds, callbackURL)
	if err != nil {
		return nil, err
	}

	token, err := s.cipher.Encrypt(secret)
	if err != nil {
		return nil, err
	}
	channel.Credentials[CredentialWebhookSecret] = token
	channel.WebhookTopics = topics
	if err := s.repo.Update(ctx, channel); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving webhook registration")
	}
	return topics, nil
}

// Disconnect stops webhook processing for the channel. Stored consumer
// credentials are kept so a later reconnect can reuse them, but the signing
// secret is dropped.
func (s *service) Disconnect(ctx context.Context, channelID, userID uuid.UUID) (*models.Channel, error) {
	channel, err := s.findOwned(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if channel.Status == enums.ChannelStatusDisconnected {
		return channel, nil
	}
	channel.Status = enums.ChannelStatusDisconnected
	channel.WebhookTopics = nil
	delete(channel.Credentials, CredentialWebhookSecret)
	if err := s.repo.Update(ctx, channel); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving disconnected channel")
	}
	return channel, nil
}

func (s *service) FetchProducts(ctx context.Context, channelID, userID uuid.UUID, search string) ([]adapters.ExternalProduct, error) {
	channel, adapter, creds, err := s.connectedChannel(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	return adapter.FetchProducts(ctx, channel.StoreURL, creds, search)
}

func (s *service) CreateMapping(ctx context.Context, input CreateMappingInput) (*models.ChannelProductMapping, error) {
	if strings.TrimSpace(input.ExternalProductID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external product id is required")
	}
	channel, err := s.findOwned(ctx, input.ChannelID, input.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.products.FindProductByID(ctx, input.ProductID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}

	label := strings.TrimSpace(input.Label)
	mapping := &models.ChannelProductMapping{
		ID:                uuid.New(),
		ChannelID:         channel.ID,
		ProductID:         input.ProductID,
		ExternalProductID: strings.TrimSpace(input.ExternalProductID),
		Label:             &label,
	}
	if err := s.repo.CreateMapping(ctx, mapping); err != nil {
		if db.IsUniqueViolation(err, "ux_channel_external_product") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "external product is already mapped on this channel")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating product mapping")
	}
	return mapping, nil
}

func (s *service) ListMappings(ctx context.Context, channelID, userID uuid.UUID) ([]models.ChannelProductMapping, error) {
	channel, err := s.findOwned(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	mappings, err := s.repo.ListMappings(ctx, channel.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing product mappings")
	}
	return mappings, nil
}

func (s *service) DeleteMapping(ctx context.Context, channelID, mappingID, userID uuid.UUID) error {
	channel, err := s.findOwned(ctx, channelID, userID)
	if err != nil {
		return err
	}
	rows, err := s.repo.DeleteMapping(ctx, channel.ID, mappingID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting product mapping")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product mapping not found")
	}
	return nil
}

// PushStock publishes the product's current on-hand quantity to the external
// store for one mapping.
func (s *service) PushStock(ctx context.Context, channelID, mappingID, userID uuid.UUID) error {
	channel, adapter, creds, err := s.connectedChannel(ctx, channelID, userID)
	if err != nil {
		return err
	}
	mappings, err := s.repo.ListMappings(ctx, channel.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing product mappings")
	}
	var mapping *models.ChannelProductMapping
	for i := range mappings {
		if mappings[i].ID == mappingID {
			mapping = &mappings[i]
			break
		}
	}
	if mapping == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product mapping not found")
	}
	product, err := s.products.FindProductByID(ctx, mapping.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}
	return adapter.PushStock(ctx, channel.StoreURL, creds, mapping.ExternalProductID, product.OnHandQty)
}

func (s *service) findOwned(ctx context.Context, channelID, userID uuid.UUID) (*models.Channel, error) {
	channel, err := s.repo.FindByIDAndUser(ctx, channelID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "channel not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading channel")
	}
	return channel, nil
}

// connectedChannel loads an owned channel, requires connected status, and
// decrypts its consumer credentials for an adapter call.
func (s *service) connectedChannel(ctx context.Context, channelID, userID uuid.UUID) (*models.Channel, adapters.Adapter, adapters.Credentials, error) {
	channel, err := s.findOwned(ctx, channelID, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	if channel.Status != enums.ChannelStatusConnected {
		return nil, nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "channel is not connected")
	}
	adapter, err := s.registry.Get(channel.Type)
	if err != nil {
		return nil, nil, nil, err
	}
	creds := make(adapters.Credentials, len(channel.Credentials))
	for name, token := range channel.Credentials {
		if name == CredentialWebhookSecret {
			continue
		}
		plaintext, err := s.cipher.Decrypt(token)
		if err != nil {
			return nil, nil, nil, err
		}
		creds[name] = plaintext
	}
	if channel.Credentials == nil {
		channel.Credentials = dbtypes.CredentialMap{}
	}
	return channel, adapter, creds, nil
}
