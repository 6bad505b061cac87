package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/motortwin/motortwin/agent/internal/config"
	"github.com/motortwin/motortwin/pkg/discovery"
	"github.com/motortwin/motortwin/pkg/types"
)

const (
	readingsPath     = "/api/v1/readings"
	discoveryTimeout = 3 * time.Second
)

// httpSender posts readings to the server's REST API.
type httpSender struct {
	endpoint string
	client   *http.Client
	auth     config.AuthConfig
}

// dialHTTP resolves the server (over mDNS when no endpoint is configured)
// and checks that it answers before any reading is taken off the buffer.
func dialHTTP(ctx context.Context, cfg config.AgentConfig) (Sender, error) {
	endpoint := cfg.ServerEndpoint
	if endpoint == "" && cfg.Discovery {
		url, err := discovery.Find(ctx, discoveryTimeout, cfg.Source.MotorID)
		if err != nil {
			return nil, err
		}
		endpoint = url
	}
	if endpoint == "" {
		return nil, fmt.Errorf("shipper: no server endpoint")
	}

	tlsCfg, err := cfg.ServerAuth.ClientTLS(config.TLSConfig{})
	if err != nil {
		return nil, fmt.Errorf("shipper: build tls config: %w", err)
	}
	s := &httpSender{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
			Timeout:   sendTimeout,
		},
		auth: cfg.ServerAuth,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reach %s: %w", s.endpoint, err)
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reach %s: unexpected status %d", s.endpoint, resp.StatusCode)
	}
	return s, nil
}

func (s *httpSender) Send(ctx context.Context, r types.Reading) error {
	body, err := json.Marshal(r)
	if err != nil {
		return &permanentError{err: fmt.Errorf("encode reading: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+readingsPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.auth.Mode == "apikey" {
		req.Header.Set(s.auth.EffectiveHeader(), s.auth.Key())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
	err = fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return &permanentError{err: err}
	}
	return err
}

func (s *httpSender) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
