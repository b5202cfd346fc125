// Package reference keeps the normalized employee and location lists in memory
// and reloads them on a schedule.
package reference

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"buildflow/project-portal/project-portal-backend/internal/projects"
)

// Source loads the raw reference tables
type Source interface {
	ListEmployees(ctx context.Context) ([]projects.Employee, error)
	ListLocations(ctx context.Context) ([]projects.Location, error)
}

// Cache holds the last successful load
type Cache struct {
	source Source
	locale string
	logger *zap.Logger

	mu     sync.RWMutex
	data   projects.ReferenceData
	loaded bool

	cron    *cron.Cron
	running bool
}

// NewCache creates an empty cache; the first Reference call loads it
func NewCache(source Source, locale string, logger *zap.Logger) *Cache {
	if locale == "" {
		locale = projects.DefaultLocale
	}
	return &Cache{
		source: source,
		locale: locale,
		logger: logger,
		cron:   cron.New(),
	}
}

// Reference returns the cached data, loading it on first use
func (c *Cache) Reference(ctx context.Context) (projects.ReferenceData, error) {
	c.mu.RLock()
	if c.loaded {
		data := c.data
		c.mu.RUnlock()
		return data, nil
	}
	c.mu.RUnlock()
	return c.Refresh(ctx)
}

// Refresh loads employees and locations concurrently and normalizes them.
// On failure the previous data stays in place.
func (c *Cache) Refresh(ctx context.Context) (projects.ReferenceData, error) {
	var (
		employees []projects.Employee
		locations []projects.Location
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := c.source.ListEmployees(gctx)
		if err != nil {
			return err
		}
		employees = projects.NormalizeEmployees(items, c.locale)
		return nil
	})
	g.Go(func() error {
		items, err := c.source.ListLocations(gctx)
		if err != nil {
			return err
		}
		locations = projects.NormalizeLocations(items, c.locale)
		return nil
	})
	if err := g.Wait(); err != nil {
		c.logger.Error("Failed to load reference data", zap.Error(err))
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.data, err
	}

	data := projects.ReferenceData{
		Employees: employees,
		Locations: locations,
		LoadedAt:  time.Now(),
	}

	c.mu.Lock()
	c.data = data
	c.loaded = true
	c.mu.Unlock()

	c.logger.Debug("Reference data loaded",
		zap.Int("employees", len(employees)),
		zap.Int("locations", len(locations)))
	return data, nil
}

// Start schedules periodic refreshes using a cron expression such as "@every 10m"
func (c *Cache) Start(ctx context.Context, schedule string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("reference refresh already running")
	}

	_, err := c.cron.AddFunc(schedule, func() {
		if _, err := c.Refresh(ctx); err != nil {
			c.logger.Warn("Scheduled reference refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}

	c.logger.Info("Starting reference refresh", zap.String("schedule", schedule))
	c.cron.Start()
	c.running = true
	return nil
}

// Stop halts the scheduler and waits for a running refresh to finish
func (c *Cache) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.logger.Info("Stopping reference refresh")
	<-c.cron.Stop().Done()
}
