package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"intake-agent/internal/domain"
)

// Memory is an in-process case store for local development and tests.
// Records do not survive a restart.
type Memory struct {
	mu    sync.RWMutex
	cases map[string]domain.CaseRecord
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{cases: make(map[string]domain.CaseRecord), now: time.Now}
}

func (m *Memory) CreateCase(ctx context.Context, rec domain.CaseRecord) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cases[rec.CaseNumber]; ok {
		return time.Time{}, fmt.Errorf("repository: CreateCase %s: %w", rec.CaseNumber, domain.ErrCaseExists)
	}
	rec.Timestamp = m.now().UTC()
	rec.FullTranscript = rec.FullTranscript.Clone()
	rec.Report.KeyFeatures = append([]string(nil), rec.Report.KeyFeatures...)
	m.cases[rec.CaseNumber] = rec
	return rec.Timestamp, nil
}

func (m *Memory) GetCase(ctx context.Context, caseNumber string) (domain.CaseRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.CaseRecord{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.cases[caseNumber]
	if !ok {
		return domain.CaseRecord{}, fmt.Errorf("repository: GetCase %s: %w", caseNumber, domain.ErrCaseNotFound)
	}
	rec.FullTranscript = rec.FullTranscript.Clone()
	rec.Report.KeyFeatures = append([]string(nil), rec.Report.KeyFeatures...)
	return rec, nil
}
