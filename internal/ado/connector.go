package ado

import (
	"context"
	"net/http"
	"time"

	"github.com/zulandar/storyforge/internal/settings"
	"github.com/zulandar/storyforge/internal/workitem"
)

// Connector builds a Client from the stored settings on every call, so a
// settings change takes effect without a restart.
type Connector struct {
	Settings *settings.Store
	Auth     string
	Timeout  time.Duration

	// HTTPClient is passed through to NewClient; tests point it at httptest.
	HTTPClient *http.Client
}

// Client returns a Client for the configured project, or
// settings.ErrNotConfigured.
func (c *Connector) Client() (*Client, error) {
	row, err := c.Settings.Connection()
	if err != nil {
		return nil, err
	}
	types, err := c.Settings.AvailableWorkItemTypes()
	if err != nil {
		return nil, err
	}
	opts := Options{
		OrgURL:        row.AdoOrgURL,
		Project:       row.AdoProject,
		PAT:           row.AdoPAT,
		Auth:          c.Auth,
		Timeout:       c.Timeout,
		WorkItemTypes: types,
		HTTPClient:    c.HTTPClient,
	}
	if row.AreaPath != nil {
		opts.AreaPath = *row.AreaPath
	}
	return NewClient(opts)
}

// RecentWorkItems lets a Connector feed the cache refresher.
func (c *Connector) RecentWorkItems(ctx context.Context) ([]workitem.WorkItem, error) {
	client, err := c.Client()
	if err != nil {
		return nil, err
	}
	return client.RecentWorkItems(ctx)
}
