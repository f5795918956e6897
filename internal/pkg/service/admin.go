package service

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/stackops/upctl/internal/pkg/encoding/json"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

const (
	adminVersionPath    = "/admin/about"
	adminMigrationsPath = "/admin/migrations"
)

// HTTPAdminAPI queries the runtime admin endpoint.
type HTTPAdminAPI struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPAdminAPI(client *resty.Client, baseURL string) *HTTPAdminAPI {
	return &HTTPAdminAPI{client: client, baseURL: baseURL}
}

func (a *HTTPAdminAPI) Version(ctx context.Context) (string, error) {
	body := struct {
		Version string `json:"version"`
	}{}
	if err := a.get(ctx, adminVersionPath, &body); err != nil {
		return "", errors.PrefixError(err, "cannot query application version")
	}
	if body.Version == "" {
		return "", errors.New("application version is empty")
	}
	return body.Version, nil
}

func (a *HTTPAdminAPI) PendingMigrations(ctx context.Context) (int, error) {
	body := struct {
		Pending int `json:"pending"`
	}{}
	if err := a.get(ctx, adminMigrationsPath, &body); err != nil {
		return 0, errors.PrefixError(err, "cannot query pending migrations")
	}
	return body.Pending, nil
}

func (a *HTTPAdminAPI) get(ctx context.Context, path string, target any) error {
	response, err := a.client.R().SetContext(ctx).Get(a.baseURL + path)
	if err != nil {
		return err
	}
	if response.StatusCode() != 200 {
		return errors.Errorf(`unexpected status code %d from "%s"`, response.StatusCode(), path)
	}
	if err := json.Decode(response.Body(), target); err != nil {
		return errors.PrefixErrorf(err, `cannot parse response from "%s"`, path)
	}
	return nil
}
