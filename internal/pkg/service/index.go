package service

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/stackops/upctl/internal/pkg/encoding/json"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

const (
	indexCountPath   = "/count"
	indexReindexPath = "/reindex"
	indexStatusPath  = "/reindex/status"
)

// HTTPIndexAPI queries and controls the search/index service.
type HTTPIndexAPI struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPIndexAPI(client *resty.Client, baseURL string) *HTTPIndexAPI {
	return &HTTPIndexAPI{client: client, baseURL: baseURL}
}

func (a *HTTPIndexAPI) Count(ctx context.Context, query string) (int, error) {
	response, err := a.client.R().SetContext(ctx).SetQueryParam("q", query).Get(a.baseURL + indexCountPath)
	if err != nil {
		return 0, errors.PrefixError(err, "cannot query index count")
	}
	if response.StatusCode() != 200 {
		return 0, errors.Errorf("cannot query index count: unexpected status code %d", response.StatusCode())
	}
	body := struct {
		Count int `json:"count"`
	}{}
	if err := json.Decode(response.Body(), &body); err != nil {
		return 0, errors.PrefixError(err, "cannot parse index count response")
	}
	return body.Count, nil
}

func (a *HTTPIndexAPI) TriggerReindex(ctx context.Context) error {
	response, err := a.client.R().SetContext(ctx).Post(a.baseURL + indexReindexPath)
	if err != nil {
		return errors.PrefixError(err, "cannot trigger reindex")
	}
	if response.StatusCode() != 200 {
		return errors.Errorf("cannot trigger reindex: unexpected status code %d", response.StatusCode())
	}
	return nil
}

func (a *HTTPIndexAPI) IndexedCount(ctx context.Context) (int, error) {
	response, err := a.client.R().SetContext(ctx).Get(a.baseURL + indexStatusPath)
	if err != nil {
		return 0, errors.PrefixError(err, "cannot query reindex progress")
	}
	if response.StatusCode() != 200 {
		return 0, errors.Errorf("cannot query reindex progress: unexpected status code %d", response.StatusCode())
	}
	body := struct {
		Indexed int `json:"indexed"`
	}{}
	if err := json.Decode(response.Body(), &body); err != nil {
		return 0, errors.PrefixError(err, "cannot parse reindex progress response")
	}
	return body.Indexed, nil
}
