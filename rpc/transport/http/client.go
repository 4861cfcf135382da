package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/andreagilardoni/ArduinoStorage/rpc/common"
	"github.com/andreagilardoni/ArduinoStorage/rpc/transport"
)

// NewHttpClientTransport creates a client that posts each request to
// <endpoint>/devices/<id>
func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    atomic.Uint32
	attempts   uint
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	parsedURLs := make([]*url.URL, len(config.Transport.Endpoints))
	for i, server := range config.Transport.Endpoints {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(server)
		if err != nil {
			return err
		}
		parsedURLs[i] = parsedURL
	}

	t.client = &http.Client{
		Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: max(2, config.Transport.ConnectionsPerEndpoint),
			IdleConnTimeout:     90 * time.Second,
		},
	}
	t.serverURLs = parsedURLs
	t.counter.Store(0)
	t.attempts = uint(max(1, config.Transport.RetryCount))
	return nil
}

func (t *httpClientTransport) Send(deviceId uint64, req []byte) ([]byte, error) {
	if t.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	// Select the next server via round-robin
	idx := t.counter.Add(1) % uint32(len(t.serverURLs))
	requestURL := t.serverURLs[idx].JoinPath("devices", fmt.Sprint(deviceId)).String()

	var body []byte
	err := retry.Do(func() error {
		httpResponse, err := t.client.Post(requestURL, "application/octet-stream", bytes.NewReader(req))
		if err != nil {
			return err
		}
		defer httpResponse.Body.Close()

		if httpResponse.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 512))
			err := fmt.Errorf("http error: %s: %s", httpResponse.Status, bytes.TrimSpace(msg))
			if httpResponse.StatusCode < 500 {
				return retry.Unrecoverable(err)
			}
			return err
		}

		body, err = io.ReadAll(httpResponse.Body)
		return err
	},
		retry.Attempts(t.attempts),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			Logger.Debugf("POST %s attempt %d failed: %v", requestURL, n+1, err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (t *httpClientTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	t.client = nil
	t.serverURLs = nil
	return nil
}
