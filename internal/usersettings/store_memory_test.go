package usersettings

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

// TestDismissalFlags verifies each dismissal flag persists independently.
func (s *InMemoryStoreSuite) TestDismissalFlags() {
	s.Require().NoError(s.store.SetDismissedStrippenError(s.ctx, true))
	s.Require().NoError(s.store.SetDismissedPolicyChangeBanner(s.ctx, true))

	settings, err := s.store.Get(s.ctx)
	s.Require().NoError(err)
	s.True(settings.HasDismissedStrippenError)
	s.True(settings.HasDismissedPolicyChangeBanner)
	s.False(settings.HasDismissedBlockedEventsBanner)

	s.Require().NoError(s.store.SetDismissedStrippenError(s.ctx, false))
	settings, err = s.store.Get(s.ctx)
	s.Require().NoError(err)
	s.False(settings.HasDismissedStrippenError)
	s.True(settings.HasDismissedPolicyChangeBanner, "clearing one flag must not touch the others")
}

// TestErrorCounter verifies increment returns the running count and reset
// clears only the counter.
func (s *InMemoryStoreSuite) TestErrorCounter() {
	count, err := s.store.IncrementStrippenErrorCount(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)

	count, err = s.store.IncrementStrippenErrorCount(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, count)

	s.Require().NoError(s.store.SetDismissedStrippenError(s.ctx, true))
	s.Require().NoError(s.store.ResetStrippenErrorCount(s.ctx))

	settings, err := s.store.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, settings.StrippenErrorOccurrenceCount)
	s.True(settings.HasDismissedStrippenError, "counter reset must not clear the dismissal flag")
}

// TestReset verifies the full wipe returns the zero snapshot.
func (s *InMemoryStoreSuite) TestReset() {
	s.Require().NoError(s.store.SetDismissedBlockedEventsBanner(s.ctx, true))
	_, err := s.store.IncrementStrippenErrorCount(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Reset(s.ctx))

	settings, err := s.store.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal(Settings{}, settings)
}

// TestConcurrentIncrements verifies the counter under parallel bumps.
func (s *InMemoryStoreSuite) TestConcurrentIncrements() {
	const goroutines = 50
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.store.IncrementStrippenErrorCount(s.ctx)
		}()
	}
	wg.Wait()

	settings, err := s.store.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal(goroutines, settings.StrippenErrorOccurrenceCount)
}
