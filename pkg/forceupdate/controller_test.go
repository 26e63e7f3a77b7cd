package forceupdate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLookupURL   = "https://lookup.example/lookup?bundleId=com.example.app"
	testManifestURL = "https://config.example/version.json"
	testProductPage = "https://apps.apple.com/at/app/example/id123"
)

func lookupBody(version string) string {
	return fmt.Sprintf(`{"resultCount":1,"results":[{"version":%q,"trackViewUrl":%q,"currentVersionReleaseDate":"2024-01-01T00:00:00Z"}]}`,
		version, testProductPage)
}

func manifestBody(minimum string) string {
	return fmt.Sprintf(`{"iOS":{"minSupportedVersion":%q,"updatedAt":"2024-01-01"}}`, minimum)
}

type fakeResponse struct {
	body string
	err  error
}

// fakeFetcher serves canned responses by URL. When gate is set every fetch
// blocks until the gate is closed or the context ends.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     map[string]int
	gate      chan struct{}
	started   chan string
}

func newFakeFetcher(lookup, manifest fakeResponse) *fakeFetcher {
	return &fakeFetcher{
		responses: map[string]fakeResponse{testLookupURL: lookup, testManifestURL: manifest},
		calls:     make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, _ time.Duration) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	resp, ok := f.responses[url]
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		started <- url
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if !ok {
		return nil, errors.New("not found")
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return []byte(resp.body), nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) set(url string, resp fakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = resp
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestController(t *testing.T, installed string, f Fetcher, opts ...Option) *Controller {
	t.Helper()

	logger := log.New()
	logger.SetLevel(log.PanicLevel)

	all := append([]Option{
		WithFetcher(f),
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(log.NewEntry(logger)),
	}, opts...)

	c, err := New(Config{
		ManifestURL:      testManifestURL,
		LookupURL:        testLookupURL,
		Platform:         PlatformIOS,
		InstalledVersion: installed,
	}, all...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func expectNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func receiveEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing manifest url", cfg: Config{BundleID: "com.example.app"}},
		{name: "relative manifest url", cfg: Config{ManifestURL: "/version.json", BundleID: "com.example.app"}},
		{name: "ftp manifest url", cfg: Config{ManifestURL: "ftp://example.com/v.json", BundleID: "com.example.app"}},
		{name: "no lookup source", cfg: Config{ManifestURL: testManifestURL}},
		{name: "bad platform", cfg: Config{ManifestURL: testManifestURL, BundleID: "com.example.app", Platform: "symbian"}},
		{name: "negative timeout", cfg: Config{ManifestURL: testManifestURL, BundleID: "com.example.app", LookupTimeout: -time.Second}},
		{name: "blank date layout", cfg: Config{ManifestURL: testManifestURL, BundleID: "com.example.app", ManifestDates: DateDecoder{Layouts: []string{""}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, c)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	c, err := New(Config{ManifestURL: testManifestURL, BundleID: "com.example.app", Platform: PlatformIOS})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "https://itunes.apple.com/lookup?bundleId=com.example.app&country=at", c.LookupURL())
	assert.Equal(t, DefaultTimeout, c.cfg.LookupTimeout)
	assert.Equal(t, DefaultTimeout, c.cfg.ManifestTimeout)
	assert.Equal(t, DefaultStorefrontURL, c.cfg.StorefrontURL)

	snap := c.Snapshot()
	assert.Nil(t, snap.InstalledVersion)
	assert.Nil(t, snap.MarketplaceVersion)
	assert.Nil(t, snap.MinimumRequiredVersion)
	assert.False(t, snap.UpdateAvailable)
	assert.False(t, snap.ForceUpdateRequired)
	assert.True(t, snap.LastCheck.IsZero())
	assert.False(t, c.InFlight())
}

// Installed 1.0.0, marketplace 1.2.0, minimum 1.0.0.
func TestCheckUpdateAvailableWithoutForce(t *testing.T) {
	f := newFakeFetcher(fakeResponse{body: lookupBody("1.2.0")}, fakeResponse{body: manifestBody("1.0.0")})
	c := newTestController(t, "1.0.0", f)
	sub := c.Subscribe()

	snap, err := c.CheckForUpdate(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.UpdateAvailable)
	assert.False(t, snap.ForceUpdateRequired)
	assert.Equal(t, "1.2.0", snap.MarketplaceVersion.String())
	assert.Equal(t, "1.0.0", snap.MinimumRequiredVersion.String())
	assert.True(t, c.IsUpdateAvailable())
	assert.False(t, c.IsForceUpdateRequired())
	assert.Equal(t, fixedNow, c.LastCheck())
	require.NotNil(t, c.Listing())
	assert.Equal(t, testProductPage, c.Listing().TrackViewURL)
	expectNoEvent(t, sub)
}

// Installed 1.0.0, minimum 2.0.0.
func TestCheckForceUpdatePublishesProductPage(t *testing.T) {
	f := newFakeFetcher(fakeResponse{body: lookupBody("2.1.0")}, fakeResponse{body: manifestBody("2.0.0")})
	c := newTestController(t, "1.0.0", f)
	sub := c.Subscribe()

	snap, err := c.CheckForUpdate(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.ForceUpdateRequired)
	assert.True(t, c.IsForceUpdateRequired())

	ev := receiveEvent(t, sub)
	assert.Equal(t, testProductPage, ev.ProductPageURL)
	assert.Equal(t, testProductPage, ev.Destination())
	assert.Equal(t, "1.0.0", ev.InstalledVersion.String())
	assert.Equal(t, "2.0.0", ev.MinimumRequiredVersion.String())
	assert.Equal(t, fixedNow, ev.CheckedAt)
	assert.NotEmpty(t, ev.ID)
	expectNoEvent(t, sub)
}

func TestCheckForceUpdateWithoutListingFallsBackToStorefront(t *testing.T) {
	f := newFakeFetcher(fakeResponse{err: errors.New("dns failure")}, fakeResponse{body: manifestBody("2.0.0")})
	c := newTestController(t, "1.0.0", f)
	sub := c.Subscribe()

	snap, err := c.CheckForUpdate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.MarketplaceVersion)
	assert.Nil(t, snap.Listing)
	assert.False(t, snap.UpdateAvailable)
	assert.True(t, snap.ForceUpdateRequired)

	ev := receiveEvent(t, sub)
	assert.Empty(t, ev.ProductPageURL)
	assert.Equal(t, DefaultStorefrontURL, ev.Destination())
}

func TestCheckLookupWithoutVersionDropsListing(t *testing.T) {
	body := fmt.Sprintf(`{"resultCount":1,"results":[{"trackViewUrl":%q}]}`, testProductPage)
	f := newFakeFetcher(fakeResponse{body: body}, fakeResponse{body: manifestBody("2.0.0")})
	c := newTestController(t, "1.0.0", f)

	snap, err := c.CheckForUpdate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.Listing)
	assert.Nil(t, snap.MarketplaceVersion)
	assert.False(t, snap.UpdateAvailable)
	assert.True(t, snap.ForceUpdateRequired)
}

// Manifest times out: minimum unknown, no force update, timestamp still set.
func TestCheckManifestFailure(t *testing.T) {
	f := newFakeFetcher(fakeResponse{body: lookupBody("1.0.0")}, fakeResponse{err: context.DeadlineExceeded})
	c := newTestController(t, "1.0.0", f)
	sub := c.Subscribe()

	snap, err := c.CheckForUpdate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.MinimumRequiredVersion)
	assert.Nil(t, snap.Manifest)
	assert.False(t, snap.ForceUpdateRequired)
	assert.Equal(t, fixedNow, snap.LastCheck)
	expectNoEvent(t, sub)
}

func TestCheckBothFetchesFail(t *testing.T) {
	f := newFakeFetcher(fakeResponse{err: errors.New("boom")}, fakeResponse{body: "not json"})
	c := newTestController(t, "1.0.0", f)

	snap, err := c.CheckForUpdate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", snap.InstalledVersion.String())
	assert.Nil(t, snap.MarketplaceVersion)
	assert.Nil(t, snap.MinimumRequiredVersion)
	assert.False(t, snap.UpdateAvailable)
	assert.False(t, snap.ForceUpdateRequired)
	assert.False(t, c.InFlight())
}

func TestCheckUnknownVersions(t *testing.T) {
	tests := []struct {
		name      string
		installed string
		minimum   string
		wantForce bool
	}{
		{name: "both unknown", installed: "", minimum: "soon", wantForce: false},
		{name: "minimum unknown", installed: "1.0.0", minimum: "x.y", wantForce: false},
		{name: "installed unknown", installed: "dev", minimum: "1.0.0", wantForce: true},
		{name: "equal after padding", installed: "2.0", minimum: "2.0.0", wantForce: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher(fakeResponse{body: lookupBody("1.0.0")}, fakeResponse{body: manifestBody(tt.minimum)})
			c := newTestController(t, "", f, WithInstalledVersion(func() string { return tt.installed }))

			snap, err := c.CheckForUpdate(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantForce, snap.ForceUpdateRequired)
		})
	}
}

func TestCheckOverwritesStaleState(t *testing.T) {
	f := newFakeFetcher(fakeResponse{body: lookupBody("1.5.0")}, fakeResponse{body: manifestBody("2.0.0")})
	c := newTestController(t, "1.0.0", f)

	_, err := c.CheckForUpdate(context.Background())
	require.NoError(t, err)
	require.True(t, c.IsForceUpdateRequired())

	f.set(testManifestURL, fakeResponse{err: errors.New("gone")})
	f.set(testLookupURL, fakeResponse{body: `{"resultCount":0,"results":[]}`})

	_, err = c.CheckForUpdate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, c.MinimumRequiredVersion())
	assert.Nil(t, c.MarketplaceVersion())
	assert.Nil(t, c.Listing())
	assert.False(t, c.IsForceUpdateRequired())
	assert.False(t, c.IsUpdateAvailable())
}

func TestCheckRepeatedRepublishes(t *testing.T) {
	f := newFakeFetcher(fakeResponse{body: lookupBody("2.0.0")}, fakeResponse{body: manifestBody("2.0.0")})
	c := newTestController(t, "1.0.0", f)
	sub := c.Subscribe()

	first, err := c.CheckForUpdate(context.Background())
	require.NoError(t, err)
	second, err := c.CheckForUpdate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, f.callCount(testLookupURL))
	assert.Equal(t, 2, f.callCount(testManifestURL))

	one := receiveEvent(t, sub)
	two := receiveEvent(t, sub)
	assert.NotEqual(t, one.ID, two.ID)
	assert.Equal(t, one.Destination(), two.Destination())
}

func TestCheckFetchesInParallel(t *testing.T) {
	f := newFakeFetcher(fakeResponse{body: lookupBody("1.0.0")}, fakeResponse{body: manifestBody("1.0.0")})
	f.gate = make(chan struct{})
	f.started = make(chan string, 2)
	c := newTestController(t, "1.0.0", f)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.CheckForUpdate(context.Background())
	}()

	// Both fetches must be running while neither has been allowed to finish.
	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case url := <-f.started:
			seen[url] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("fetches did not run concurrently, started: %v", seen)
		}
	}
	assert.True(t, c.InFlight())

	close(f.gate)
	<-done
	assert.False(t, c.InFlight())
}

func TestCheckSingleFlight(t *testing.T) {
	const callers = 10

	f := newFakeFetcher(fakeResponse{body: lookupBody("2.0.0")}, fakeResponse{body: manifestBody("2.0.0")})
	f.gate = make(chan struct{})
	f.started = make(chan string, 2*callers)
	c := newTestController(t, "1.0.0", f)
	sub := c.Subscribe()

	var (
		wg       sync.WaitGroup
		entered  atomic.Int32
		finished atomic.Int32
		results  = make([]Snapshot, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entered.Add(1)
			snap, err := c.CheckForUpdate(context.Background())
			assert.NoError(t, err)
			results[i] = snap
			finished.Add(1)
		}(i)
	}

	<-f.started
	<-f.started
	require.Eventually(t, func() bool { return entered.Load() == callers }, 2*time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, finished.Load(), "no caller may finish before the fetches resolve")

	close(f.gate)
	wg.Wait()

	assert.Equal(t, 1, f.callCount(testLookupURL))
	assert.Equal(t, 1, f.callCount(testManifestURL))
	for _, snap := range results {
		assert.Equal(t, results[0], snap)
		assert.True(t, snap.ForceUpdateRequired)
	}

	receiveEvent(t, sub)
	expectNoEvent(t, sub)
}

func TestCheckCallerContext(t *testing.T) {
	f := newFakeFetcher(fakeResponse{body: lookupBody("1.0.0")}, fakeResponse{body: manifestBody("1.0.0")})
	f.gate = make(chan struct{})
	c := newTestController(t, "1.0.0", f)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.CheckForUpdate(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The check keeps running for others after the first caller gave up.
	assert.True(t, c.InFlight())
	close(f.gate)

	require.Eventually(t, func() bool { return !c.LastCheck().IsZero() }, 2*time.Second, time.Millisecond)
	assert.Equal(t, "1.0.0", c.MinimumRequiredVersion().String())
	assert.Equal(t, 1, f.callCount(testManifestURL))
}

func TestCloseAbandonsCheck(t *testing.T) {
	f := newFakeFetcher(fakeResponse{body: lookupBody("1.0.0")}, fakeResponse{body: manifestBody("2.0.0")})
	f.gate = make(chan struct{})
	f.started = make(chan string, 2)
	c := newTestController(t, "1.0.0", f)
	sub := c.Subscribe()

	errCh := make(chan error, 1)
	go func() {
		_, err := c.CheckForUpdate(context.Background())
		errCh <- err
	}()
	<-f.started
	<-f.started

	c.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("check did not stop after Close")
	}

	assert.True(t, c.LastCheck().IsZero(), "abandoned check must not update state")
	_, ok := <-sub.Events()
	assert.False(t, ok)

	_, err := c.CheckForUpdate(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSnapshotIsACopy(t *testing.T) {
	f := newFakeFetcher(fakeResponse{body: lookupBody("1.2.0")}, fakeResponse{body: manifestBody("1.0.0")})
	c := newTestController(t, "1.0.0", f)

	snap, err := c.CheckForUpdate(context.Background())
	require.NoError(t, err)
	snap.Listing.TrackViewURL = "mutated"
	snap.Manifest.MinSupportedVersion = "mutated"

	assert.Equal(t, testProductPage, c.Snapshot().Listing.TrackViewURL)
	assert.Equal(t, "1.0.0", c.Snapshot().Manifest.MinSupportedVersion)
}

func TestReturnedVersionsAreCopies(t *testing.T) {
	f := newFakeFetcher(fakeResponse{body: lookupBody("2.3.0")}, fakeResponse{body: manifestBody("2.0.0")})
	c := newTestController(t, "1.0.0", f)
	sub := c.Subscribe()

	snap, err := c.CheckForUpdate(context.Background())
	require.NoError(t, err)
	require.True(t, snap.ForceUpdateRequired)

	require.NoError(t, snap.MinimumRequiredVersion.UnmarshalText([]byte("0.1")))
	require.NoError(t, snap.InstalledVersion.UnmarshalText([]byte("9.9")))
	require.NoError(t, c.MinimumRequiredVersion().UnmarshalText([]byte("0.1")))
	require.NoError(t, c.MarketplaceVersion().UnmarshalText([]byte("0.1")))
	require.NoError(t, c.InstalledVersion().UnmarshalText([]byte("9.9")))

	event := <-sub.Events()
	require.NoError(t, event.MinimumRequiredVersion.UnmarshalText([]byte("0.1")))

	current := c.Snapshot()
	assert.Equal(t, "2.0.0", current.MinimumRequiredVersion.String())
	assert.Equal(t, "2.3.0", current.MarketplaceVersion.String())
	assert.Equal(t, "1.0.0", current.InstalledVersion.String())
	assert.Equal(t, Less(current.InstalledVersion, current.MinimumRequiredVersion), current.ForceUpdateRequired)
}

func TestVersionCloneIsIndependent(t *testing.T) {
	var unknown *Version
	assert.Nil(t, unknown.clone())

	v := MustParseVersion("1.2.3")
	c := v.clone()
	require.NoError(t, c.UnmarshalText([]byte("4.5")))
	assert.Equal(t, "1.2.3", v.String())
	assert.Equal(t, "4.5", c.String())
}

func TestSnapshotConsistentUnderConcurrentReads(t *testing.T) {
	f := newFakeFetcher(fakeResponse{body: lookupBody("1.2.0")}, fakeResponse{body: manifestBody("1.1.0")})
	c := newTestController(t, "1.0.0", f)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := c.Snapshot()
				if snap.MarketplaceVersion != nil {
					assert.Equal(t, Less(snap.InstalledVersion, snap.MarketplaceVersion), snap.UpdateAvailable)
					assert.Equal(t, Less(snap.InstalledVersion, snap.MinimumRequiredVersion), snap.ForceUpdateRequired)
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		_, err := c.CheckForUpdate(context.Background())
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestCheckOverHTTP(t *testing.T) {
	var lookupHits, manifestHits atomic.Int32
	lookup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lookupHits.Add(1)
		assert.Equal(t, "com.example.app", r.URL.Query().Get("bundleId"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(lookupBody("1.2.0")))
	}))
	defer lookup.Close()

	release := make(chan struct{})
	manifest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		manifestHits.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer manifest.Close()
	defer close(release)

	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	c, err := New(Config{
		ManifestURL:      manifest.URL + "/version.json",
		LookupURL:        lookup.URL + "/lookup?bundleId=com.example.app&country=at",
		Platform:         PlatformIOS,
		InstalledVersion: "1.0.0",
		ManifestTimeout:  50 * time.Millisecond,
		LookupTimeout:    time.Second,
	}, WithLogger(log.NewEntry(logger)))
	require.NoError(t, err)
	defer c.Close()

	snap, err := c.CheckForUpdate(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.UpdateAvailable)
	assert.Equal(t, "1.2.0", snap.MarketplaceVersion.String())
	assert.Nil(t, snap.MinimumRequiredVersion)
	assert.False(t, snap.ForceUpdateRequired)
	assert.False(t, snap.LastCheck.IsZero())
	assert.Equal(t, int32(1), lookupHits.Load())
	assert.Equal(t, int32(1), manifestHits.Load())
}
