package forceupdate

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by CheckForUpdate once the controller is closed.
var ErrClosed = errors.New("force update controller closed")

const checkKey = "check"

// Snapshot is the state learned by the most recent completed check.
// Versions are nil when they could not be determined.
type Snapshot struct {
	InstalledVersion       *Version             `json:"installedVersion" yaml:"installed_version"`
	MarketplaceVersion     *Version             `json:"marketplaceVersion" yaml:"marketplace_version"`
	MinimumRequiredVersion *Version             `json:"minimumRequiredVersion" yaml:"minimum_required_version"`
	UpdateAvailable        bool                 `json:"updateAvailable" yaml:"update_available"`
	ForceUpdateRequired    bool                 `json:"forceUpdateRequired" yaml:"force_update_required"`
	LastCheck              time.Time            `json:"lastCheck" yaml:"last_check"`
	Listing                *MarketplaceListing  `json:"listing,omitempty" yaml:"listing,omitempty"`
	Manifest               *PlatformRequirement `json:"manifest,omitempty" yaml:"manifest,omitempty"`
}

// String renders the snapshot for terminal output.
func (s Snapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Installed version:        %s\n", displayVersion(s.InstalledVersion))
	fmt.Fprintf(&b, "Marketplace version:      %s\n", displayVersion(s.MarketplaceVersion))
	fmt.Fprintf(&b, "Minimum required version: %s\n", displayVersion(s.MinimumRequiredVersion))
	fmt.Fprintf(&b, "Update available:         %t\n", s.UpdateAvailable)
	fmt.Fprintf(&b, "Force update required:    %t\n", s.ForceUpdateRequired)
	if s.LastCheck.IsZero() {
		b.WriteString("Last check:               never")
	} else {
		fmt.Fprintf(&b, "Last check:               %s", s.LastCheck.Format(time.RFC3339))
	}
	if s.Listing != nil && s.Listing.TrackViewURL != "" {
		fmt.Fprintf(&b, "\nProduct page:             %s", s.Listing.TrackViewURL)
	}
	return b.String()
}

func displayVersion(v *Version) string {
	if v == nil {
		return "unknown"
	}
	return v.String()
}

func (s Snapshot) clone() Snapshot {
	s.InstalledVersion = s.InstalledVersion.clone()
	s.MarketplaceVersion = s.MarketplaceVersion.clone()
	s.MinimumRequiredVersion = s.MinimumRequiredVersion.clone()
	if s.Listing != nil {
		listing := *s.Listing
		s.Listing = &listing
	}
	if s.Manifest != nil {
		manifest := *s.Manifest
		s.Manifest = &manifest
	}
	return s
}

// Option customizes a Controller.
type Option func(*Controller)

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Controller) {
		c.fetcher = f
	}
}

// WithInstalledVersion sets the function consulted for the running version
// at the start of every check.
func WithInstalledVersion(fn func() string) Option {
	return func(c *Controller) {
		c.installed = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLogger sets the log entry used by the controller.
func WithLogger(entry *log.Entry) Option {
	return func(c *Controller) {
		c.log = entry
	}
}

// Controller decides whether the running application must be upgraded.
// It is safe for concurrent use.
type Controller struct {
	cfg       Config
	lookupURL string
	manifest  *ManifestDecoder
	fetcher   Fetcher
	installed func() string
	now       func() time.Time
	log       *log.Entry

	mu    sync.RWMutex
	state Snapshot

	group    singleflight.Group
	inFlight atomic.Bool
	events   *Broadcaster

	ctx    context.Context
	cancel context.CancelFunc
}

// New validates cfg and returns an idle controller. No request is made
// until CheckForUpdate is called.
func New(cfg Config, opts ...Option) (*Controller, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	manifest, err := NewManifestDecoder(cfg.Platform, cfg.ManifestDates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:       cfg,
		lookupURL: cfg.lookupURL(),
		manifest:  manifest,
		fetcher:   NewHTTPFetcher(),
		installed: installedVersionFunc(cfg.InstalledVersion),
		now:       time.Now,
		log:       log.WithField("component", "forceupdate"),
		events:    NewBroadcaster(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func installedVersionFunc(configured string) func() string {
	if configured != "" {
		return func() string { return configured }
	}
	return func() string {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return ""
		}
		return strings.TrimPrefix(info.Main.Version, "v")
	}
}

// LookupURL returns the marketplace lookup URL in use.
func (c *Controller) LookupURL() string {
	return c.lookupURL
}

// CheckForUpdate fetches the marketplace listing and the manifest and
// updates the controller state. A call made while a check is running waits
// for that check instead of starting another one, and every waiting caller
// receives the same snapshot.
//
// Fetch failures are not errors: the affected versions become unknown. The
// only errors are ctx's own and ErrClosed.
func (c *Controller) CheckForUpdate(ctx context.Context) (Snapshot, error) {
	if c.ctx.Err() != nil {
		return Snapshot{}, ErrClosed
	}

	ch := c.group.DoChan(checkKey, func() (interface{}, error) {
		c.inFlight.Store(true)
		defer c.inFlight.Store(false)
		return c.check(c.ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot).clone(), nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// check runs one round: both fetches in parallel, then a single state swap.
func (c *Controller) check(ctx context.Context) (Snapshot, error) {
	c.log.Info("checking for app update...")

	var (
		listing     *MarketplaceListing
		requirement *PlatformRequirement
		g           errgroup.Group
	)
	g.Go(func() error {
		listing = c.fetchMarketplace(ctx)
		return nil
	})
	g.Go(func() error {
		requirement = c.fetchManifest(ctx)
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		c.log.Debug("controller closed during check, discarding results")
		return Snapshot{}, ErrClosed
	}

	installed := c.parse("installed", c.installed())
	var marketplace, minimum *Version
	if listing != nil {
		marketplace = c.parse("marketplace", listing.Version)
	}
	if requirement != nil {
		minimum = c.parse("minimum required", requirement.MinSupportedVersion)
	}

	snap := Snapshot{
		InstalledVersion:       installed,
		MarketplaceVersion:     marketplace,
		MinimumRequiredVersion: minimum,
		UpdateAvailable:        Less(installed, marketplace),
		ForceUpdateRequired:    Less(installed, minimum),
		LastCheck:              c.now(),
		Listing:                listing,
		Manifest:               requirement,
	}

	c.mu.Lock()
	c.state = snap
	c.mu.Unlock()

	c.log.WithFields(log.Fields{
		"installed":       displayVersion(installed),
		"marketplace":     displayVersion(marketplace),
		"minimum":         displayVersion(minimum),
		"updateAvailable": snap.UpdateAvailable,
		"forceUpdate":     snap.ForceUpdateRequired,
	}).Info("app update check finished")

	if snap.ForceUpdateRequired {
		c.publish(snap)
	}

	return snap, nil
}

func (c *Controller) publish(snap Snapshot) {
	event := Event{
		ID:                     uuid.New().String(),
		StorefrontURL:          c.cfg.StorefrontURL,
		InstalledVersion:       snap.InstalledVersion.clone(),
		MinimumRequiredVersion: snap.MinimumRequiredVersion.clone(),
		CheckedAt:              snap.LastCheck,
	}
	if snap.Listing != nil {
		event.ProductPageURL = snap.Listing.TrackViewURL
	}

	n := c.events.Publish(event)
	c.log.Debugf("force update event %s delivered to %d subscribers", event.ID, n)
}

func (c *Controller) parse(what, raw string) *Version {
	v, err := ParseVersion(raw)
	if err != nil {
		c.log.Warnf("unusable %s version: %v", what, err)
		return nil
	}
	return v
}

// fetchMarketplace returns the first lookup result, or nil on any failure.
func (c *Controller) fetchMarketplace(ctx context.Context) *MarketplaceListing {
	data, err := c.fetcher.Fetch(ctx, c.lookupURL, c.cfg.LookupTimeout)
	if err != nil {
		c.log.Warnf("failed to fetch marketplace info: %v", err)
		return nil
	}

	listing, err := DecodeLookup(data, c.cfg.LookupDates)
	if err != nil {
		c.log.Warnf("failed to decode marketplace info: %v", err)
		return nil
	}
	return listing
}

// fetchManifest returns the manifest entry for the platform, or nil on any failure.
func (c *Controller) fetchManifest(ctx context.Context) *PlatformRequirement {
	data, err := c.fetcher.Fetch(ctx, c.cfg.ManifestURL, c.cfg.ManifestTimeout)
	if err != nil {
		c.log.Warnf("failed to fetch manifest: %v", err)
		return nil
	}

	requirement, err := c.manifest.Decode(data)
	if err != nil {
		c.log.Warnf("failed to decode manifest: %v", err)
		return nil
	}
	return requirement
}

// Snapshot returns the state of the last completed check.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// InstalledVersion returns the running version seen by the last check.
func (c *Controller) InstalledVersion() *Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.InstalledVersion.clone()
}

// MarketplaceVersion returns the marketplace version seen by the last check.
func (c *Controller) MarketplaceVersion() *Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.MarketplaceVersion.clone()
}

// MinimumRequiredVersion returns the manifest minimum seen by the last check.
func (c *Controller) MinimumRequiredVersion() *Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.MinimumRequiredVersion.clone()
}

// IsUpdateAvailable reports whether the marketplace has a newer version.
// This does not mean an update is required.
func (c *Controller) IsUpdateAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.UpdateAvailable
}

// IsForceUpdateRequired reports whether the installed version is below the
// manifest minimum.
func (c *Controller) IsForceUpdateRequired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.ForceUpdateRequired
}

// LastCheck returns when the last check completed, or the zero time.
func (c *Controller) LastCheck() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.LastCheck
}

// Listing returns a copy of the last marketplace lookup result, if any.
func (c *Controller) Listing() *MarketplaceListing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.Listing == nil {
		return nil
	}
	listing := *c.state.Listing
	return &listing
}

// InFlight reports whether a check is running.
func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}

// Subscribe returns a subscription to force update events published by
// later checks. Events are dropped for a subscriber whose buffer is full.
func (c *Controller) Subscribe() *Subscription {
	return c.events.Subscribe()
}

// Unsubscribe stops delivery to sub and closes its channel.
func (c *Controller) Unsubscribe(sub *Subscription) {
	c.events.Unsubscribe(sub)
}

// Close abandons any running check and closes all subscriptions.
func (c *Controller) Close() {
	c.cancel()
	c.events.Close()
}
