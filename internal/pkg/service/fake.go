package service

import (
	"context"
	"slices"
	"sync"
)

// FakeController is an in-memory Controller used by the dry-run mode and tests.
type FakeController struct {
	ServiceName string
	Running     bool
	StartErr    error
	StopErr     error
	StatusErr   error

	lock  sync.Mutex
	calls []string
}

func (c *FakeController) Name() string {
	return c.ServiceName
}

func (c *FakeController) Start(ctx context.Context) error {
	c.record("start")
	if c.StartErr != nil {
		return c.StartErr
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.Running = true
	return nil
}

func (c *FakeController) Stop(ctx context.Context) error {
	c.record("stop")
	if c.StopErr != nil {
		return c.StopErr
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.Running = false
	return nil
}

func (c *FakeController) Restart(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}
	return c.Start(ctx)
}

func (c *FakeController) IsRunning(ctx context.Context) (bool, error) {
	c.record("status")
	if c.StatusErr != nil {
		return false, c.StatusErr
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.Running, nil
}

func (c *FakeController) Calls() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return slices.Clone(c.calls)
}

func (c *FakeController) record(call string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.calls = append(c.calls, call)
}

// FakeDeployer is an in-memory Deployer used by the dry-run mode and tests.
type FakeDeployer struct {
	Deployed    []string
	DeployErr   error
	UndeployErr error

	lock sync.Mutex
}

func (d *FakeDeployer) ListDeployed(ctx context.Context) ([]string, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return slices.Clone(d.Deployed), nil
}

func (d *FakeDeployer) Deploy(ctx context.Context, path string) error {
	if d.DeployErr != nil {
		return d.DeployErr
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if !slices.Contains(d.Deployed, path) {
		d.Deployed = append(d.Deployed, path)
	}
	return nil
}

func (d *FakeDeployer) Undeploy(ctx context.Context, name string) error {
	if d.UndeployErr != nil {
		return d.UndeployErr
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	d.Deployed = slices.DeleteFunc(d.Deployed, func(v string) bool { return v == name })
	return nil
}

// FakeAdminAPI is an in-memory AdminAPI used by the dry-run mode and tests.
type FakeAdminAPI struct {
	AppVersion string
	Pending    int
	Err        error
}

func (a *FakeAdminAPI) Version(ctx context.Context) (string, error) {
	return a.AppVersion, a.Err
}

func (a *FakeAdminAPI) PendingMigrations(ctx context.Context) (int, error) {
	return a.Pending, a.Err
}

// FakeIndexAPI is an in-memory IndexAPI used by the dry-run mode and tests.
type FakeIndexAPI struct {
	Documents int
	Indexed   int
	// Stalled freezes the Indexed counter, a triggered reindex then never progresses.
	Stalled bool
	Err     error

	lock      sync.Mutex
	triggered int
}

func (a *FakeIndexAPI) Count(ctx context.Context, query string) (int, error) {
	return a.Documents, a.Err
}

func (a *FakeIndexAPI) TriggerReindex(ctx context.Context) error {
	if a.Err != nil {
		return a.Err
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	a.triggered++
	if !a.Stalled {
		a.Indexed = a.Documents
	}
	return nil
}

func (a *FakeIndexAPI) IndexedCount(ctx context.Context) (int, error) {
	return a.Indexed, a.Err
}

func (a *FakeIndexAPI) ReindexCount() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.triggered
}
