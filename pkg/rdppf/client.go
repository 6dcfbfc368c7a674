package rdppf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"parcel-constraints-be/pkg/zoning"
)

const clientModule = "rdppf"

var (
	ErrExtractNotFound     = errors.New("rdppf: no extract available for parcel")
	ErrUnknownMunicipality = errors.New("rdppf: unknown municipality")
	ErrUpstream            = errors.New("rdppf: upstream failure")
	ErrMissingParcelNumber = errors.New("rdppf: parcel number is required")
)

type ClientConfig struct {
	BaseURL            string
	Timeout            time.Duration
	RequestsPerSecond  float64
	Burst              int
	MunicipalitiesFile string
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:           "https://rdppfvs.geopol.ch",
		Timeout:           60 * time.Second,
		RequestsPerSecond: 2,
		Burst:             4,
	}
}

type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	identdns map[string]string
	logger   zoning.Logger
}

func NewClient(cfg ClientConfig, logger zoning.Logger) (*Client, error) {
	defaults := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}

	identdns := map[string]string{}
	if cfg.MunicipalitiesFile != "" {
		loaded, err := LoadMunicipalities(cfg.MunicipalitiesFile)
		if err != nil {
			return nil, err
		}
		identdns = loaded
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		identdns: identdns,
		logger:   zoning.OrNop(logger),
	}, nil
}

// LoadMunicipalities reads a YAML mapping of municipality name to IDENTDN.
// Names are matched case-insensitively.
func LoadMunicipalities(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read municipalities file: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse municipalities file: %w", err)
	}

	out := make(map[string]string, len(raw))
	for name, identdn := range raw {
		out[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(identdn)
	}
	return out, nil
}

// ResolveIdentdn maps a municipality to its cadastral IDENTDN. A value that
// already looks like an IDENTDN ("VS" followed by the cadastral code) is
// returned as is.
func (c *Client) ResolveIdentdn(municipality string) (string, error) {
	name := strings.TrimSpace(municipality)
	if name == "" {
		return "", zoning.ErrEmptyMunicipality
	}
	if looksLikeIdentdn(name) {
		return strings.ToUpper(name), nil
	}
	if identdn, ok := c.identdns[strings.ToLower(name)]; ok {
		return identdn, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMunicipality, name)
}

func looksLikeIdentdn(s string) bool {
	if len(s) < 3 || !strings.EqualFold(s[:2], "VS") {
		return false
	}
	for _, r := range s[2:] {
		if r == ' ' {
			return false
		}
	}
	return strings.ContainsAny(s[2:], "0123456789")
}

// Fetch downloads the extract of one parcel.
func (c *Client) Fetch(ctx context.Context, municipality, parcel string) (*Extract, error) {
	parcel = strings.TrimSpace(parcel)
	if parcel == "" {
		return nil, ErrMissingParcelNumber
	}
	identdn, err := c.ResolveIdentdn(municipality)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("IDENTDN", identdn)
	query.Set("NUMBER", parcel)
	endpoint := c.baseURL + "/extract/json/?" + query.Encode()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logFailure(municipality, parcel, start, err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logFailure(municipality, parcel, start, err)
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}

	if resp.StatusCode == http.StatusNoContent || (resp.StatusCode < 300 && len(strings.TrimSpace(string(body))) == 0) {
		return nil, fmt.Errorf("%w: %s parcel %s", ErrExtractNotFound, municipality, parcel)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
		c.logFailure(municipality, parcel, start, err)
		return nil, err
	}

	var extract Extract
	if err := json.Unmarshal(body, &extract); err != nil {
		c.logFailure(municipality, parcel, start, err)
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrUpstream, err)
	}

	c.logger.Info(clientModule, "Extract fetched", map[string]interface{}{
		"municipality": municipality,
		"parcel":       parcel,
		"identdn":      identdn,
		"duration_ms":  time.Since(start).Milliseconds(),
		"restrictions": len(extract.Extract.RealEstate.RestrictionOnLandownership),
	})

	return &extract, nil
}

func (c *Client) logFailure(municipality, parcel string, start time.Time, err error) {
	c.logger.Error(clientModule, "Extract request failed", map[string]interface{}{
		"municipality": municipality,
		"parcel":       parcel,
		"duration_ms":  time.Since(start).Milliseconds(),
		"error":        err.Error(),
	})
}
