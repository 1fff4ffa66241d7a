package gdr

import (
	"context"
	"fmt"
	"sync"
)

// =====================================
// Session Providers
// =====================================

// SessionFactory opens a SQL session from a configuration.
type SessionFactory func(config Config) (Session, error)

// PlanSessionFactory opens a plan-executing session from a
// configuration.
type PlanSessionFactory func(config Config) (PlanSession, error)

// SessionProvider is one registered SQL driver: its metadata and the
// factory that opens sessions for it.
type SessionProvider struct {
	Info ProviderInfo
	Open SessionFactory
}

// PlanSessionProvider is one registered plan-executing driver.
type PlanSessionProvider struct {
	Info ProviderInfo
	Open PlanSessionFactory
}

// ProviderRegistry maps driver names to session factories. Adapter
// packages register themselves here; applications open sessions by
// configuration without importing driver specifics at the call site.
type ProviderRegistry struct {
	mutex    sync.RWMutex
	sessions map[string]SessionProvider
	plans    map[string]PlanSessionProvider
}

var (
	providersOnce     sync.Once
	providersInstance *ProviderRegistry
)

// Providers returns the singleton provider registry.
func Providers() *ProviderRegistry {
	providersOnce.Do(func() {
		providersInstance = &ProviderRegistry{
			sessions: make(map[string]SessionProvider),
			plans:    make(map[string]PlanSessionProvider),
		}
	})
	return providersInstance
}

// RegisterSession adds a SQL session provider under a driver name.
// Registering the same driver again replaces the previous provider.
func (r *ProviderRegistry) RegisterSession(driver string, info ProviderInfo, factory SessionFactory) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sessions[driver] = SessionProvider{Info: info, Open: factory}
}

// RegisterPlanSession adds a plan-executing session provider under a
// driver name.
func (r *ProviderRegistry) RegisterPlanSession(driver string, info ProviderInfo, factory PlanSessionFactory) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.plans[driver] = PlanSessionProvider{Info: info, Open: factory}
}

// OpenSession opens a SQL session for the configured driver.
func (r *ProviderRegistry) OpenSession(config Config) (Session, error) {
	r.mutex.RLock()
	provider, ok := r.sessions[config.Driver]
	r.mutex.RUnlock()

	if !ok {
		return nil, NewErrorf(ErrorKindConfiguration,
			"no session provider registered for driver %q", config.Driver)
	}
	return provider.Open(config)
}

// OpenPlanSession opens a plan-executing session for the configured
// driver.
func (r *ProviderRegistry) OpenPlanSession(config Config) (PlanSession, error) {
	r.mutex.RLock()
	provider, ok := r.plans[config.Driver]
	r.mutex.RUnlock()

	if !ok {
		return nil, NewErrorf(ErrorKindConfiguration,
			"no plan session provider registered for driver %q", config.Driver)
	}
	return provider.Open(config)
}

// Describe returns the metadata of a registered driver.
func (r *ProviderRegistry) Describe(driver string) (ProviderInfo, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if p, ok := r.sessions[driver]; ok {
		return p.Info, true
	}
	if p, ok := r.plans[driver]; ok {
		return p.Info, true
	}
	return ProviderInfo{}, false
}

// Drivers returns all registered driver names.
func (r *ProviderRegistry) Drivers() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.sessions)+len(r.plans))
	for name := range r.sessions {
		names = append(names, name)
	}
	for name := range r.plans {
		if _, dup := r.sessions[name]; !dup {
			names = append(names, name)
		}
	}
	return names
}

// RegisterSessionProvider registers a SQL session provider with the
// singleton registry. Adapter packages call this from init.
func RegisterSessionProvider(driver string, info ProviderInfo, factory SessionFactory) {
	Providers().RegisterSession(driver, info, factory)
}

// RegisterPlanSessionProvider registers a plan-executing session
// provider with the singleton registry.
func RegisterPlanSessionProvider(driver string, info ProviderInfo, factory PlanSessionFactory) {
	Providers().RegisterPlanSession(driver, info, factory)
}

// OpenSession opens a SQL session through the singleton registry.
func OpenSession(config Config) (Session, error) {
	return Providers().OpenSession(config)
}

// OpenPlanSession opens a plan-executing session through the
// singleton registry.
func OpenPlanSession(config Config) (PlanSession, error) {
	return Providers().OpenPlanSession(config)
}

// Describe returns the metadata of a driver registered with the
// singleton registry.
func Describe(driver string) (ProviderInfo, bool) {
	return Providers().Describe(driver)
}

// Drivers returns the driver names registered with the singleton
// registry.
func Drivers() []string {
	return Providers().Drivers()
}

// =====================================
// Datasource Manager
// =====================================

// Datasource is one named, open connection: the session plus the
// configuration and provider metadata it was opened with. Exactly one
// of Session and Plans is set for most drivers; adapters that speak
// both fill both with the same underlying connection.
type Datasource struct {
	Name    string
	Config  Config
	Info    ProviderInfo
	Session Session
	Plans   PlanSession
}

// Health checks connectivity of the underlying connection.
func (d *Datasource) Health(ctx context.Context) error {
	if d.Session != nil {
		return d.Session.Health(ctx)
	}
	if d.Plans != nil {
		return d.Plans.Health(ctx)
	}
	return NewError(ErrorKindConfiguration, "datasource has no open session")
}

// Close releases the underlying connection.
func (d *Datasource) Close() error {
	if d.Session != nil {
		return d.Session.Close()
	}
	if d.Plans != nil {
		return d.Plans.Close()
	}
	return nil
}

// Supports reports whether the datasource's provider declares a
// feature.
func (d *Datasource) Supports(feature Feature) bool {
	for _, f := range d.Info.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// DatasourceManager holds the open datasources of an application,
// keyed by name with a "default" convention.
type DatasourceManager struct {
	mutex   sync.RWMutex
	sources map[string]*Datasource
}

var (
	dmOnce     sync.Once
	dmInstance *DatasourceManager
)

// DM returns the singleton instance of DatasourceManager.
func DM() *DatasourceManager {
	dmOnce.Do(func() {
		dmInstance = &DatasourceManager{
			sources: make(map[string]*Datasource),
		}
	})
	return dmInstance
}

// Open opens a datasource through the provider registry and adds it
// under the given name. SQL providers are preferred when a driver
// registers both kinds.
func (m *DatasourceManager) Open(name string, config Config) (*Datasource, error) {
	registry := Providers()
	info, _ := registry.Describe(config.Driver)
	ds := &Datasource{Name: name, Config: config, Info: info}

	session, err := registry.OpenSession(config)
	if err == nil {
		ds.Session = session
		if plans, ok := session.(PlanSession); ok {
			ds.Plans = plans
		}
	} else {
		plans, planErr := registry.OpenPlanSession(config)
		if planErr != nil {
			return nil, err
		}
		ds.Plans = plans
	}

	m.Add(name, ds)
	return ds, nil
}

// SetDefault sets the given datasource as default.
func (m *DatasourceManager) SetDefault(ds *Datasource) {
	m.Add("default", ds)
}

// Add adds a datasource to the manager, replacing any previous one
// under the same name.
func (m *DatasourceManager) Add(name string, ds *Datasource) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sources[name] = ds
}

// Get retrieves a datasource from the manager. If no name is
// provided, it defaults to "default".
func (m *DatasourceManager) Get(name ...string) (*Datasource, bool) {
	key := "default"
	if len(name) > 0 {
		key = name[0]
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	ds, found := m.sources[key]
	return ds, found
}

// Remove closes and removes a datasource from the manager.
func (m *DatasourceManager) Remove(name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	ds, found := m.sources[name]
	if !found {
		return NewErrorf(ErrorKindNotFound, "datasource %q not found", name)
	}
	if err := ds.Close(); err != nil {
		return err
	}
	delete(m.sources, name)
	return nil
}

// All returns a snapshot of the registered datasources.
func (m *DatasourceManager) All() map[string]*Datasource {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make(map[string]*Datasource, len(m.sources))
	for name, ds := range m.sources {
		out[name] = ds
	}
	return out
}

// RemoveAll closes and removes all registered datasources.
func (m *DatasourceManager) RemoveAll() error {
	for name := range m.All() {
		if err := m.Remove(name); err != nil {
			return err
		}
	}
	return nil
}

// HealthCheck checks every registered datasource and reports the
// result per name.
func (m *DatasourceManager) HealthCheck(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for name, ds := range m.All() {
		results[name] = ds.Health(ctx)
	}
	return results
}

// Use retrieves a datasource from the singleton manager, panicking if
// it is absent. If no name is provided, it defaults to "default".
func Use(name ...string) *Datasource {
	ds, found := DM().Get(name...)
	if !found {
		key := "default"
		if len(name) > 0 {
			key = name[0]
		}
		panic(fmt.Sprintf("datasource %q not found", key))
	}
	return ds
}
