package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"intake-agent/internal/domain"
)

func TestMemory_CreateAndGet(t *testing.T) {
	m := NewMemory()
	m.now = func() time.Time { return writeTime }

	ts, err := m.CreateCase(context.Background(), sampleCase())
	require.NoError(t, err)
	require.Equal(t, writeTime, ts)

	got, err := m.GetCase(context.Background(), "SA-20240101-ABC123")
	require.NoError(t, err)
	want := sampleCase()
	want.Timestamp = writeTime
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("case mismatch (-want +got):\n%s", diff)
	}
}

func TestMemory_CreateNeverOverwrites(t *testing.T) {
	m := NewMemory()
	_, err := m.CreateCase(context.Background(), sampleCase())
	require.NoError(t, err)

	dup := sampleCase()
	dup.Report.ProjectName = "Other"
	_, err = m.CreateCase(context.Background(), dup)
	require.ErrorIs(t, err, domain.ErrCaseExists)

	got, err := m.GetCase(context.Background(), dup.CaseNumber)
	require.NoError(t, err)
	require.Equal(t, "Fleet Tracker", got.Report.ProjectName)
}

func TestMemory_GetMissing(t *testing.T) {
	_, err := NewMemory().GetCase(context.Background(), "SA-20240101-NOPE00")
	require.ErrorIs(t, err, domain.ErrCaseNotFound)
}

func TestMemory_StoredRecordIsIsolated(t *testing.T) {
	m := NewMemory()
	rec := sampleCase()
	_, err := m.CreateCase(context.Background(), rec)
	require.NoError(t, err)

	rec.FullTranscript[0].Content = "mutated"
	rec.Report.KeyFeatures[0] = "mutated"

	got, err := m.GetCase(context.Background(), rec.CaseNumber)
	require.NoError(t, err)
	require.Equal(t, "I need a tracking app", got.FullTranscript[0].Content)
	require.Equal(t, "Live map", got.Report.KeyFeatures[0])
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().CreateCase(ctx, sampleCase())
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemory_ConcurrentCreates(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := sampleCase()
			rec.CaseNumber = fmt.Sprintf("SA-20240101-%06d", i%10)
			_, err := m.CreateCase(context.Background(), rec)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var created, exists int
	for err := range errs {
		switch {
		case err == nil:
			created++
		default:
			require.ErrorIs(t, err, domain.ErrCaseExists)
			exists++
		}
	}
	require.Equal(t, 10, created)
	require.Equal(t, 10, exists)
}
