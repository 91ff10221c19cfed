package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-verifier/internal/model"
	"github.com/sells-group/lead-verifier/internal/orchestrator"
	"github.com/sells-group/lead-verifier/internal/scraper"
)

func echo(t *testing.T) scraper.Scraper {
	t.Helper()
	s, err := scraper.DefaultRegistry().Build(scraper.EchoKey, scraper.Spec{})
	require.NoError(t, err)
	return s
}

func waitDone(t *testing.T, m *Manager, id string) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		s, err := m.Get(id)
		if err != nil {
			return false
		}
		snap = s
		return s.State.Done()
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestManager_Completes(t *testing.T) {
	m := NewManager([]scraper.Scraper{echo(t)}, orchestrator.Options{}, 0)
	leads := []model.LeadInput{{Name: "a", Phone: "1"}, {Name: "b", Email: "b@x.com"}}

	started := m.Start(leads)
	assert.NotEmpty(t, started.ID)
	assert.Equal(t, 2, started.Total)

	snap := waitDone(t, m, started.ID)
	assert.Equal(t, Completed, snap.State)
	assert.Equal(t, 2, snap.Processed)
	require.Len(t, snap.Results, 2)
	assert.Equal(t, "b", snap.Results[1].Lead.Name)
	assert.NotNil(t, snap.FinishedAt)
}

func TestManager_CancelKeepsPrefix(t *testing.T) {
	release := make(chan struct{})
	slow := scraper.NewFunc("slow", func(_ context.Context, lead model.LeadInput) (*model.LeadVerification, error) {
		if lead.Name == "b" {
			<-release
		}
		return &model.LeadVerification{Source: "slow"}, nil
	})
	m := NewManager([]scraper.Scraper{slow}, orchestrator.Options{}, 0)

	started := m.Start([]model.LeadInput{{Name: "a"}, {Name: "b"}, {Name: "c"}})
	require.Eventually(t, func() bool {
		s, _ := m.Get(started.ID)
		return s.Processed == 1
	}, time.Second, 5*time.Millisecond)

	_, err := m.Cancel(started.ID)
	require.NoError(t, err)
	close(release)

	snap := waitDone(t, m, started.ID)
	assert.Equal(t, Cancelled, snap.State)
	require.Len(t, snap.Results, 1, "the interrupted lead is dropped")
	assert.Equal(t, "a", snap.Results[0].Lead.Name)
	assert.Equal(t, 1, snap.Processed)
}

func TestManager_Failed(t *testing.T) {
	broken := scraper.NewFunc("broken", func(context.Context, model.LeadInput) (*model.LeadVerification, error) {
		return nil, errors.New("boom")
	})
	m := NewManager([]scraper.Scraper{broken}, orchestrator.Options{RaiseOnError: true}, 0)

	snap := waitDone(t, m, m.Start([]model.LeadInput{{Name: "a"}}).ID)
	assert.Equal(t, Failed, snap.State)
	assert.Contains(t, snap.Error, "boom")
	assert.Empty(t, snap.Results)
}

func TestManager_NotFound(t *testing.T) {
	m := NewManager(nil, orchestrator.Options{}, 0)
	_, err := m.Get("missing")
	assert.True(t, eris.Is(err, ErrNotFound))
	_, err = m.Cancel("missing")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestManager_ListOrder(t *testing.T) {
	m := NewManager([]scraper.Scraper{echo(t)}, orchestrator.Options{}, 0)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first := m.Start([]model.LeadInput{{Name: "a"}})
	m.Wait()
	second := m.Start(nil)
	m.Wait()

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Nil(t, list[0].Results)
	assert.Equal(t, Completed, list[1].State)
}

func TestManager_EvictsOldestFinished(t *testing.T) {
	release := make(chan struct{})
	gate := scraper.NewFunc("gate", func(ctx context.Context, lead model.LeadInput) (*model.LeadVerification, error) {
		if lead.Name == "hold" {
			<-release
		}
		return &model.LeadVerification{Source: "gate"}, nil
	})
	m := NewManager([]scraper.Scraper{gate}, orchestrator.Options{}, 2)

	running := m.Start([]model.LeadInput{{Name: "hold"}})
	var finished []string
	for i := 0; i < 3; i++ {
		id := m.Start([]model.LeadInput{{Name: "a"}}).ID
		waitDone(t, m, id)
		finished = append(finished, id)
	}

	_, err := m.Get(finished[0])
	assert.True(t, eris.Is(err, ErrNotFound))
	for _, id := range finished[1:] {
		_, err := m.Get(id)
		assert.NoError(t, err)
	}
	snap, err := m.Get(running.ID)
	require.NoError(t, err)
	assert.Equal(t, Running, snap.State)
	assert.Len(t, m.List(), 3)

	close(release)
	m.Wait()
	_, err = m.Get(finished[1])
	assert.True(t, eris.Is(err, ErrNotFound))
	_, err = m.Get(running.ID)
	assert.NoError(t, err)
}

func TestManager_Shutdown(t *testing.T) {
	blocker := scraper.NewFunc("block", func(ctx context.Context, _ model.LeadInput) (*model.LeadVerification, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	m := NewManager([]scraper.Scraper{blocker}, orchestrator.Options{}, 0)
	id := m.Start([]model.LeadInput{{Name: "a"}}).ID

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	snap, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, snap.State)
	assert.Empty(t, snap.Results)
}

func TestState_Done(t *testing.T) {
	assert.False(t, Running.Done())
	for _, s := range []State{Completed, Cancelled, Failed} {
		assert.True(t, s.Done())
	}
}
