package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2"

	"github.com/believeinme/background-check-service/internal/config"
	"github.com/believeinme/background-check-service/internal/logger"
	"github.com/believeinme/background-check-service/internal/metrics"
	"github.com/believeinme/background-check-service/internal/models"
)

const defaultTimeout = 30 * time.Second

// ErrUnsupportedMethod is returned for HTTP methods other than GET, POST and PATCH.
var ErrUnsupportedMethod = errors.New("method should be get, post or patch")

// APIError is returned when the CRM answers with a status of 300 or above,
// including a rejected token request.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error when calling %s: %d %s", e.URL, e.StatusCode, e.Body)
}

// Token is an access token with the instance it is valid for.
type Token struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
}

// TokenCache stores access tokens between calls.
type TokenCache interface {
	Get(ctx context.Context, key string) (*Token, error)
	Set(ctx context.Context, key string, token *Token) error
	Delete(ctx context.Context, key string) error
}

// Client calls the CRM REST API with a password-grant access token.
type Client struct {
	oauth      *oauth2.Config
	username   string
	password   string
	apiVersion string
	timeout    time.Duration
	httpClient *http.Client
	cache      TokenCache
	log        logger.Logger
}

// NewClient creates a CRM client. A nil cache makes every call perform a
// fresh password grant.
func NewClient(cfg config.SalesforceConfig, cache TokenCache, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		username:   cfg.Username,
		password:   cfg.Password,
		apiVersion: cfg.APIVersion,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		log:        log,
	}
}

func (c *Client) cacheKey() string {
	return "salesforce:token:" + c.username
}

// token returns a cached token when available, otherwise performs the
// password grant.
func (c *Client) token(ctx context.Context) (*Token, error) {
	if c.cache != nil {
		cached, err := c.cache.Get(ctx, c.cacheKey())
		if err != nil {
			c.log.Warn("Token cache read failed", map[string]interface{}{"error": err.Error()})
		} else if cached != nil {
			return cached, nil
		}
	}

	timer := prometheus.NewTimer(metrics.ExternalCallDuration.WithLabelValues("salesforce", "token"))
	defer timer.ObserveDuration()

	tokenCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, c.httpClient)

	t, err := c.oauth.PasswordCredentialsToken(tokenCtx, c.username, c.password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, &APIError{
				StatusCode: retrieveErr.Response.StatusCode,
				URL:        c.oauth.Endpoint.TokenURL,
				Body:       string(retrieveErr.Body),
			}
		}
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	instanceURL, _ := t.Extra("instance_url").(string)
	if instanceURL == "" {
		return nil, fmt.Errorf("token response has no instance_url")
	}

	token := &Token{AccessToken: t.AccessToken, InstanceURL: strings.TrimRight(instanceURL, "/")}
	c.log.Debug("Obtained CRM access token", map[string]interface{}{"instance_url": token.InstanceURL})

	if c.cache != nil {
		if err := c.cache.Set(ctx, c.cacheKey(), token); err != nil {
			c.log.Warn("Token cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}

	return token, nil
}

// Do sends one API request. path is relative to the instance URL. The JSON
// response is decoded into out when out is non-nil; PATCH responses carry no
// body and are never decoded.
func (c *Client) Do(ctx context.Context, method, path string, params url.Values, in, out interface{}) error {
	method = strings.ToUpper(method)
	if method != http.MethodGet && method != http.MethodPost && method != http.MethodPatch {
		return ErrUnsupportedMethod
	}

	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	timer := prometheus.NewTimer(metrics.ExternalCallDuration.WithLabelValues("salesforce", strings.ToLower(method)))
	defer timer.ObserveDuration()

	endpoint := token.InstanceURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reqBody io.Reader
	if method != http.MethodGet && in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized && c.cache != nil {
			if err := c.cache.Delete(ctx, c.cacheKey()); err != nil {
				c.log.Warn("Token cache eviction failed", map[string]interface{}{"error": err.Error()})
			}
		}
		return &APIError{StatusCode: resp.StatusCode, URL: endpoint, Body: string(body)}
	}

	if method == http.MethodPatch || out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

type createResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

// CreateBackgroundCheck posts a new Background_Check__c record and returns its id
func (c *Client) CreateBackgroundCheck(ctx context.Context, record *models.BackgroundCheck) (string, error) {
	path := fmt.Sprintf("/services/data/%s/sobjects/Background_Check__c", c.apiVersion)

	var created createResponse
	if err := c.Do(ctx, http.MethodPost, path, nil, record, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}
