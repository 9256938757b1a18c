package remoteconfig

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// fakeFetcher scripts fetch results and counts calls.
type fakeFetcher struct {
	snapshot Snapshot
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(context.Context) (Snapshot, error) {
	f.calls++
	if f.err != nil {
		return Snapshot{}, f.err
	}
	return f.snapshot, nil
}

type ManagerSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	fetcher *fakeFetcher
	manager *Manager
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC)
	s.fetcher = &fakeFetcher{snapshot: Default()}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager, err := NewManager(s.fetcher, logger, WithManagerClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
	s.manager = manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

// TestLaunchAlwaysFetches verifies the first Update after construction hits
// the endpoint even though the built-in default carries a TTL.
func (s *ManagerSuite) TestLaunchAlwaysFetches() {
	s.fetcher.snapshot.RecommendedVersion = "4.7.0"

	snapshot, err := s.manager.Update(s.ctx)
	s.Require().NoError(err)
	s.Equal("4.7.0", snapshot.RecommendedVersion)
	s.Equal(1, s.fetcher.calls)
}

// TestTTLGating verifies a second Update inside the TTL serves the cache and
// one past the TTL fetches again.
func (s *ManagerSuite) TestTTLGating() {
	_, err := s.manager.Update(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(1, s.fetcher.calls)

	s.Run("within the TTL the cache is served", func() {
		s.now = s.now.Add(30 * time.Minute)
		_, err := s.manager.Update(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, s.fetcher.calls)
	})

	s.Run("past the TTL the endpoint is hit again", func() {
		s.now = s.now.Add(31 * time.Minute)
		_, err := s.manager.Update(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, s.fetcher.calls)
	})
}

// TestObserverStreams verifies Updates fires only on content change while
// Reloads fires on every completed cycle.
func (s *ManagerSuite) TestObserverStreams() {
	var updates, reloads int
	updateToken := s.manager.Updates().Append(func(Snapshot) { updates++ })
	defer s.manager.Updates().Remove(updateToken)
	reloadToken := s.manager.Reloads().Append(func(Snapshot) { reloads++ })
	defer s.manager.Reloads().Remove(reloadToken)

	// Launch fetch returns the default verbatim: a reload, not an update.
	_, err := s.manager.Update(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, updates)
	s.Equal(1, reloads)

	// Cached cycle still counts as a reload.
	s.now = s.now.Add(time.Minute)
	_, err = s.manager.Update(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, updates)
	s.Equal(2, reloads)

	// Changed content past the TTL fires both.
	s.now = s.now.Add(2 * time.Hour)
	s.fetcher.snapshot.CredentialRenewalDays = 7
	_, err = s.manager.Update(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, updates)
	s.Equal(3, reloads)
	s.Equal(7, s.manager.Snapshot().CredentialRenewalDays)
}

// TestFetchFailureKeepsCache verifies a failed refresh surfaces the error but
// leaves the cached snapshot in place.
func (s *ManagerSuite) TestFetchFailureKeepsCache() {
	s.fetcher.err = errors.New("gateway timeout")

	snapshot, err := s.manager.Update(s.ctx)
	s.Require().Error(err)
	s.Equal(Default().ConfigTTLSeconds, snapshot.ConfigTTLSeconds)

	// The failure did not mark the launch fetch as done.
	s.fetcher.err = nil
	_, err = s.manager.Update(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, s.fetcher.calls)
}

// TestIsAlmostOutOfDate verifies the staleness warning window.
func (s *ManagerSuite) TestIsAlmostOutOfDate() {
	s.False(s.manager.IsAlmostOutOfDate(), "never fetched means no warning")

	_, err := s.manager.Update(s.ctx)
	s.Require().NoError(err)
	s.False(s.manager.IsAlmostOutOfDate())

	// TTL 3600s, warning window 300s: warn from 3300s onwards.
	s.now = s.now.Add(3299 * time.Second)
	s.False(s.manager.IsAlmostOutOfDate())

	s.now = s.now.Add(time.Second)
	s.True(s.manager.IsAlmostOutOfDate())
}

// TestRenewalWindow verifies the credential renewal window falls back to the
// default when the snapshot carries no usable day count.
func (s *ManagerSuite) TestRenewalWindow() {
	s.Equal(5*24*time.Hour, Snapshot{}.RenewalWindow())
	s.Equal(7*24*time.Hour, Snapshot{CredentialRenewalDays: 7}.RenewalWindow())
}

func TestHTTPFetcher(t *testing.T) {
	t.Run("decodes a snapshot", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"configTTL":1800,"disclosurePolicies":["1G","3G"],"credentialRenewalDays":4}`)
		}))
		defer srv.Close()

		fetcher, err := NewHTTPFetcher(srv.URL)
		if err != nil {
			t.Fatalf("NewHTTPFetcher: %v", err)
		}
		snapshot, err := fetcher.Fetch(context.Background())
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if snapshot.ConfigTTLSeconds != 1800 || snapshot.CredentialRenewalDays != 4 {
			t.Fatalf("unexpected snapshot: %+v", snapshot)
		}
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		fetcher, err := NewHTTPFetcher(srv.URL)
		if err != nil {
			t.Fatalf("NewHTTPFetcher: %v", err)
		}
		if _, err := fetcher.Fetch(context.Background()); err == nil {
			t.Fatal("expected an error for a 503 response")
		}
	})

	t.Run("empty url is rejected", func(t *testing.T) {
		if _, err := NewHTTPFetcher(""); err == nil {
			t.Fatal("expected an error for an empty url")
		}
	})
}
