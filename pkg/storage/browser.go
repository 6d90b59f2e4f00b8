package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kernel/kernel-go-sdk"
	"github.com/kernel/kernel-go-sdk/option"
	"github.com/kernel/reviewkit/internal/scripts"
	"github.com/pterm/pterm"
)

// DefaultScriptTimeoutSec bounds each script run inside the browser.
const DefaultScriptTimeoutSec = 30

// PlaywrightService defines the subset of the Kernel SDK Playwright client that we use.
type PlaywrightService interface {
	Execute(ctx context.Context, id string, body kernel.BrowserPlaywrightExecuteParams, opts ...option.RequestOption) (res *kernel.BrowserPlaywrightExecuteResponse, err error)
}

// Browser reads and writes the localStorage of the page open in a Kernel
// browser session. It also reports that page's URL, so it can serve as both
// the store and the URL provider of a page state helper.
type Browser struct {
	playwright PlaywrightService
	sessionID  string
	timeoutSec int64
}

// NewBrowser returns a store for the first page of the given browser session.
func NewBrowser(svc PlaywrightService, sessionID string) *Browser {
	return &Browser{
		playwright: svc,
		sessionID:  sessionID,
		timeoutSec: DefaultScriptTimeoutSec,
	}
}

// SessionID returns the browser session the store talks to.
func (b *Browser) SessionID() string {
	return b.sessionID
}

type getItemResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

func (b *Browser) GetItem(ctx context.Context, key string) (string, bool, error) {
	var res getItemResult
	if err := b.run(ctx, scripts.GetItemScript, map[string]string{scripts.EnvKey: key}, &res); err != nil {
		return "", false, err
	}
	return res.Value, res.Found, nil
}

func (b *Browser) SetItem(ctx context.Context, key, value string) error {
	return b.run(ctx, scripts.SetItemScript, map[string]string{
		scripts.EnvKey:   key,
		scripts.EnvValue: value,
	}, nil)
}

// CurrentURL returns the URL of the page under review.
func (b *Browser) CurrentURL(ctx context.Context) (string, error) {
	var res struct {
		URL string `json:"url"`
	}
	if err := b.run(ctx, scripts.CurrentURLScript, nil, &res); err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", fmt.Errorf("browser reported an empty page url")
	}
	return res.URL, nil
}

// Snapshot is the rendered HTML of the page under review.
type Snapshot struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

// Snapshot captures the page's current HTML.
func (b *Browser) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := b.run(ctx, scripts.SnapshotScript, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (b *Browser) run(ctx context.Context, script string, env map[string]string, out any) error {
	pterm.Debug.Printf("Running script in browser %s\n", b.sessionID)

	result, err := b.playwright.Execute(ctx, b.sessionID, kernel.BrowserPlaywrightExecuteParams{
		Code:       scripts.Build(script, env),
		TimeoutSec: kernel.Opt(b.timeoutSec),
	})
	if err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}

	if !result.Success {
		if result.Error != "" {
			return fmt.Errorf("script failed: %s", result.Error)
		}
		return fmt.Errorf("script failed")
	}

	if out == nil || result.Result == nil {
		return nil
	}
	resultBytes, err := json.Marshal(result.Result)
	if err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	if err := json.Unmarshal(resultBytes, out); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}
