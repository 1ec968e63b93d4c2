package woocommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/stockline-hq/stockline-backend/internal/channels/adapters"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

type wcProduct struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	SKU           string      `json:"sku"`
	Type          string      `json:"type"`
	StockQuantity *int        `json:"stock_quantity"`
	Attributes    []wcAttr    `json:"attributes"`
	ParentID      json.Number `json:"parent_id"`
}

type wcAttr struct {
	Name   string `json:"name"`
	Option string `json:"option"`
}

// FetchProducts lists the store catalog, paginating internally. Variable
// products are followed immediately by their variations so callers get the
// full hierarchy in one pass.
func (a *Adapter) FetchProducts(ctx context.Context, storeURL string, creds adapters.Credentials, search string) ([]adapters.ExternalProduct, error) {
	products := make([]adapters.ExternalProduct, 0, a.pageSize)

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(a.pageSize))
		query.Set("page", strconv.Itoa(page))
		if strings.TrimSpace(search) != "" {
			query.Set("search", strings.TrimSpace(search))
		}

		var batch []wcProduct
		if err := a.apiGet(ctx, storeURL, creds, "/products?"+query.Encode(), &batch); err != nil {
			return nil, err
		}

		for _, p := range batch {
			external := toExternalProduct(p)
			products = append(products, external)

			if external.Type == adapters.ExternalProductVariable {
				variations, err := a.fetchVariations(ctx, storeURL, creds, p)
				if err != nil {
					return nil, err
				}
				products = append(products, variations...)
			}
		}

		if len(batch) < a.pageSize {
			return products, nil
		}
	}
}

func (a *Adapter) fetchVariations(ctx context.Context, storeURL string, creds adapters.Credentials, parent wcProduct) ([]adapters.ExternalProduct, error) {
	variations := make([]adapters.ExternalProduct, 0, a.pageSize)

	for page := 1; ; page++ {
		path := fmt.Sprintf("/products/%d/variations?per_page=%d&page=%d", parent.ID, a.pageSize, page)

		var batch []wcProduct
		if err := a.apiGet(ctx, storeURL, creds, path, &batch); err != nil {
			return nil, err
		}

		for _, v := range batch {
			variations = append(variations, adapters.ExternalProduct{
				ID:            strconv.FormatInt(v.ID, 10),
				Name:          variationName(parent.Name, v.Attributes),
				SKU:           v.SKU,
				StockQuantity: v.StockQuantity,
				Type:          adapters.ExternalProductVariation,
				ParentID:      strconv.FormatInt(parent.ID, 10),
			})
		}

		if len(batch) < a.pageSize {
			return variations, nil
		}
	}
}

// PushStock sets the absolute quantity on an external product. WooCommerce
// ignores stock_quantity unless manage_stock is on, so it is always sent.
func (a *Adapter) PushStock(ctx context.Context, storeURL string, creds adapters.Credentials, externalProductID string, quantity int) error {
	if strings.TrimSpace(externalProductID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "external product id is required")
	}

	payload := map[string]any{
		"manage_stock":   true,
		"stock_quantity": quantity,
	}
	path := "/products/" + url.PathEscape(strings.TrimSpace(externalProductID))
	return a.apiSend(ctx, http.MethodPut, storeURL, creds, path, payload, nil)
}

func toExternalProduct(p wcProduct) adapters.ExternalProduct {
	external := adapters.ExternalProduct{
		ID:            strconv.FormatInt(p.ID, 10),
		Name:          p.Name,
		SKU:           p.SKU,
		StockQuantity: p.StockQuantity,
		Type:          adapters.ExternalProductSimple,
	}
	switch p.Type {
	case "variable":
		external.Type = adapters.ExternalProductVariable
	case "variation":
		external.Type = adapters.ExternalProductVariation
	}
	if parent := p.ParentID.String(); parent != "" && parent != "0" {
		external.ParentID = parent
	}
	return external
}

func variationName(parentName string, attrs []wcAttr) string {
	options := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		if attr.Option != "" {
			options = append(options, attr.Option)
		}
	}
	if len(options) == 0 {
		return parentName
	}
	return parentName + " - " + strings.Join(options, " / ")
}

func (a *Adapter) apiGet(ctx context.Context, storeURL string, creds adapters.Credentials, path string, out any) error {
	return a.apiSend(ctx, http.MethodGet, storeURL, creds, path, nil, out)
}

func (a *Adapter) apiSend(ctx context.Context, method, storeURL string, creds adapters.Credentials, path string, payload, out any) error {
	key := strings.TrimSpace(creds[configFieldConsumerKey])
	secret := strings.TrimSpace(creds[configFieldConsumerSecret])
	if key == "" || secret == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "channel is missing consumer credentials")
	}

	endpoint := strings.TrimRight(strings.TrimSpace(storeURL), "/") + apiBasePath + path

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal woocommerce request")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build woocommerce request")
	}
	req.SetBasicAuth(key, secret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute woocommerce request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "woocommerce rejected the channel credentials")
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "woocommerce resource not found")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "woocommerce request failed")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode woocommerce response")
	}
	return nil
}
