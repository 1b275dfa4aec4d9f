package extract

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

const (
	exportTimeout   = 30 * time.Second
	downloadTimeout = 60 * time.Second
)

// HTTPClient is the interface of http.Client used by Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client of the Geod'air export API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient HTTPClient
}

// NewClient builds a Client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: http.DefaultClient,
	}
}

// RequestExport asks for the hourly means export of the pollutant code at date
// and returns the ID of the export file.
func (c *Client) RequestExport(ctx context.Context, date, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("date", date)
	q.Set("polluant", code)

	body, err := c.get(ctx, "/MoyH/export", q)
	if err != nil {
		return "", xerrors.Errorf("failed to request export of %s at %s: %w", code, date, err)
	}
	defer body.Close()

	b, err := io.ReadAll(body)
	if err != nil {
		return "", xerrors.Errorf("failed to read export response: %w", err)
	}

	id := strings.ReplaceAll(strings.TrimSpace(string(b)), `"`, "")
	if id == "" {
		return "", xerrors.Errorf("empty export id for %s at %s", code, date)
	}

	return id, nil
}

// Download downloads the export file of id.
func (c *Client) Download(ctx context.Context, id string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("id", id)

	body, err := c.get(ctx, "/download", q)
	if err != nil {
		return nil, xerrors.Errorf("failed to download export %s: %w", id, err)
	}
	defer body.Close()

	b, err := io.ReadAll(body)
	if err != nil {
		return nil, xerrors.Errorf("failed to read export %s: %w", id, err)
	}

	return b, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (io.ReadCloser, error) {
	u := c.BaseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", c.APIKey)

	log.Ctx(ctx).Debug().Str("path", path).Str("query", q.Encode()).Msg("requesting geodair api")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("failed to request %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, xerrors.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	return resp.Body, nil
}
