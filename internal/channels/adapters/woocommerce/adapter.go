// Package woocommerce implements the channel adapter for WooCommerce stores
// using the WC REST API v3 with consumer key/secret authentication.
package woocommerce

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/stockline-hq/stockline-backend/internal/channels/adapters"
	"github.com/stockline-hq/stockline-backend/pkg/config"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
)

const (
	apiBasePath = "/wp-json/wc/v3"

	configFieldStoreURL       = "store_url"
	configFieldConsumerKey    = "consumer_key"
	configFieldConsumerSecret = "consumer_secret"

	appName = "Stockline"
)

// Adapter talks to one WooCommerce store per call; it holds no per-channel
// state beyond the shared HTTP client.
type Adapter struct {
	httpClient *http.Client
	pageSize   int
}

func New(cfg config.ChannelsConfig) *Adapter {
	pageSize := cfg.FetchPageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Adapter{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		pageSize:   pageSize,
	}
}

func (a *Adapter) Type() enums.ChannelType {
	return enums.ChannelTypeWooCommerce
}

// ValidateConfig checks connection fields structurally. Credential fields are
// optional here since the wc-auth flow issues them after the callback.
func (a *Adapter) ValidateConfig(fields map[string]string) error {
	storeURL := strings.TrimSpace(fields[configFieldStoreURL])
	if storeURL == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "store_url is required")
	}

	parsed, err := url.Parse(storeURL)
	if err != nil || parsed.Host == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "store_url must be an absolute URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return pkgerrors.New(pkgerrors.CodeValidation, "store_url must use http or https")
	}

	return nil
}

// BuildConnectURL points the merchant at the store's wc-auth approval screen.
// The channel id travels as user_id and comes back in the callback body.
func (a *Adapter) BuildConnectURL(channelID uuid.UUID, cfg map[string]string, appBaseURL string) (string, error) {
	if channelID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "channel id is required")
	}
	if err := a.ValidateConfig(cfg); err != nil {
		return "", err
	}

	storeURL := strings.TrimRight(strings.TrimSpace(cfg[configFieldStoreURL]), "/")
	appBaseURL = strings.TrimRight(strings.TrimSpace(appBaseURL), "/")
	if appBaseURL == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "app base URL is required")
	}

	query := url.Values{}
	query.Set("app_name", appName)
	query.Set("scope", "read_write")
	query.Set("user_id", channelID.String())
	query.Set("return_url", appBaseURL+"/channels")
	query.Set("callback_url", fmt.Sprintf("%s/api/v1/channels/%s/callback", appBaseURL, channelID))

	return storeURL + "/wc-auth/v1/authorize?" + query.Encode(), nil
}

type callbackBody struct {
	KeyID          json.Number `json:"key_id"`
	UserID         string      `json:"user_id"`
	ConsumerKey    string      `json:"consumer_key"`
	ConsumerSecret string      `json:"consumer_secret"`
	KeyPermissions string      `json:"key_permissions"`
}

// ParseCallback extracts the freshly issued API keys from the wc-auth
// callback. WooCommerce documents a JSON POST, but some store setups deliver
// form encoding, so both are accepted.
func (a *Adapter) ParseCallback(rawBody []byte) (*adapters.CallbackResult, error) {
	body := callbackBody{}

	if values, err := url.ParseQuery(string(rawBody)); err == nil && values.Get("consumer_key") != "" {
		body.UserID = values.Get("user_id")
		body.ConsumerKey = values.Get("consumer_key")
		body.ConsumerSecret = values.Get("consumer_secret")
	} else if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "callback body is neither form encoded nor JSON")
	}

	if body.ConsumerKey == "" || body.ConsumerSecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback is missing consumer credentials")
	}

	channelID, err := uuid.Parse(strings.TrimSpace(body.UserID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "callback user_id is not a channel id")
	}

	return &adapters.CallbackResult{
		ChannelID: channelID,
		Credentials: map[string]string{
			configFieldConsumerKey:    body.ConsumerKey,
			configFieldConsumerSecret: body.ConsumerSecret,
		},
	}, nil
}
