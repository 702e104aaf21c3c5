package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/logging"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/resilience"
)

// Manifest is the firmware server's published index of prebuilt firmware.
type Manifest struct {
	Format   string     `json:"format-version"`
	Firmware []Firmware `json:"firmware"`
}

// Firmware is one downloadable firmware image.
type Firmware struct {
	Platform   string `json:"platform"`
	Vehicle    string `json:"mav-type"`
	Type       string `json:"vehicletype"`
	URL        string `json:"url"`
	GitSha     string `json:"git-sha"`
	MavFirmVer string `json:"mav-firmware-version"`
	Format     string `json:"format"`
}

// ManifestClient fetches the firmware manifest from the firmware server.
// Transient failures are retried by the transport; sustained failures trip a
// circuit breaker so workflow requests fail fast instead of stacking up.
type ManifestClient struct {
	http    *resty.Client
	breaker *resilience.Breaker
	log     *logging.Logger
}

// NewManifestClient creates a client for the firmware server at baseURL.
func NewManifestClient(baseURL string, log *logging.Logger) *ManifestClient {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 3
	retry.RetryWaitMin = 500 * time.Millisecond
	retry.RetryWaitMax = 5 * time.Second
	retry.Logger = nil

	client := resty.NewWithClient(retry.StandardClient()).
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")

	breaker := resilience.New("firmware-server", resilience.Settings{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn(fmt.Sprintf("breaker %s: %s -> %s", name, from, to))
		},
	})

	return &ManifestClient{http: client, breaker: breaker, log: log}
}

// Fetch downloads and parses the firmware manifest.
func (c *ManifestClient) Fetch(ctx context.Context) (*Manifest, error) {
	var manifest Manifest
	err := c.breaker.Do(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&manifest).
			Get("/manifest.json")
		if err != nil {
			return fmt.Errorf("fetch manifest: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("fetch manifest: server returned %s", resp.Status())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &manifest, nil
}

// Boards returns the sorted, deduplicated set of platforms that have
// prebuilt firmware for the given vehicle type. An empty vehicle matches
// everything.
func (m *Manifest) Boards(vehicle string) []string {
	seen := make(map[string]struct{})
	for _, fw := range m.Firmware {
		if vehicle != "" && fw.Type != vehicle {
			continue
		}
		if fw.Platform == "" {
			continue
		}
		seen[fw.Platform] = struct{}{}
	}
	boards := make([]string, 0, len(seen))
	for b := range seen {
		boards = append(boards, b)
	}
	sort.Strings(boards)
	return boards
}
