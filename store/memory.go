package store

import (
	"context"
	"sync"
)

// Memory is the in-process store used by tests and default runs.
type Memory struct {
	mu     sync.Mutex
	runs   map[string]Run
	trades map[string][]TradeRow
	equity map[string][]EquityRow
}

func NewMemory() *Memory {
	return &Memory{
		runs:   make(map[string]Run),
		trades: make(map[string][]TradeRow),
		equity: make(map[string][]EquityRow),
	}
}

func (m *Memory) CreateRun(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) InsertTrade(_ context.Context, runID string, t TradeRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return ErrRunNotFound
	}
	m.trades[runID] = append(m.trades[runID], t)
	return nil
}

func (m *Memory) InsertEquityPoint(_ context.Context, runID string, p EquityRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return ErrRunNotFound
	}
	m.equity[runID] = append(m.equity[runID], p)
	return nil
}

func (m *Memory) ListTrades(_ context.Context, runID string) ([]TradeRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, ErrRunNotFound
	}
	return append([]TradeRow(nil), m.trades[runID]...), nil
}

func (m *Memory) ListEquity(_ context.Context, runID string) ([]EquityRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, ErrRunNotFound
	}
	return append([]EquityRow(nil), m.equity[runID]...), nil
}
