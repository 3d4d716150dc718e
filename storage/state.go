// File: storage/state.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AndreyZakrevsky/btt/utilities"
)

// TradeState is the persisted position record. A zero AverageAcquisitionPrice
// means no open position.
type TradeState struct {
	AverageAcquisitionPrice decimal.Decimal `json:"average_acquisition_price"`
	HeldAmount              decimal.Decimal `json:"held_amount"`
	CumulativeFee           decimal.Decimal `json:"cumulative_fee"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// HasPosition reports whether a position is currently open.
func (s TradeState) HasPosition() bool {
	return s.AverageAcquisitionPrice.IsPositive()
}

// StateStore reads and writes the TradeState record wholesale as a JSON file.
// Writes land in a temp file first and are renamed into place, so a crash
// cannot leave a half-written record behind.
type StateStore struct {
	mu     sync.Mutex
	path   string
	logger *utilities.Logger
}

func NewStateStore(cfg utilities.StateConfig, logger *utilities.Logger) (*StateStore, error) {
	if cfg.FilePath == "" {
		return nil, errors.New("state store: file path not configured")
	}
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}
	if dir := filepath.Dir(cfg.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("state store: create directory %s: %w", dir, err)
		}
	}
	return &StateStore{path: cfg.FilePath, logger: logger}, nil
}

// Read returns the persisted record, or the zero record when none exists yet.
func (s *StateStore) Read() (TradeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// WriteNew records a confirmed sell fill. With no open position it creates
// the record; with one it folds the fill in at the volume-weighted average
// price.
func (s *StateStore) WriteNew(amount, price, fee decimal.Decimal) (TradeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return TradeState{}, err
	}

	if state.HasPosition() && state.HeldAmount.IsPositive() {
		totalVolume := state.HeldAmount.Add(amount)
		weighted := state.AverageAcquisitionPrice.Mul(state.HeldAmount).Add(price.Mul(amount))
		state.AverageAcquisitionPrice = weighted.Div(totalVolume)
		state.HeldAmount = totalVolume
	} else {
		state.AverageAcquisitionPrice = price
		state.HeldAmount = amount
	}
	state.CumulativeFee = state.CumulativeFee.Add(fee)
	state.UpdatedAt = time.Now().UTC()

	if err := s.write(state); err != nil {
		return TradeState{}, err
	}
	return state, nil
}

// WriteUpdate re-anchors the average acquisition price without touching the
// held amount or accumulated fees.
func (s *StateStore) WriteUpdate(price decimal.Decimal) (TradeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return TradeState{}, err
	}
	state.AverageAcquisitionPrice = price
	state.UpdatedAt = time.Now().UTC()

	if err := s.write(state); err != nil {
		return TradeState{}, err
	}
	return state, nil
}

// Clear resets the record to "no open position".
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(TradeState{UpdatedAt: time.Now().UTC()})
}

func (s *StateStore) read() (TradeState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return TradeState{}, nil
	}
	if err != nil {
		return TradeState{}, fmt.Errorf("state store: read %s: %w", s.path, err)
	}

	var state TradeState
	if err := json.Unmarshal(data, &state); err != nil {
		return TradeState{}, fmt.Errorf("state store: decode %s: %w", s.path, err)
	}
	return state, nil
}

func (s *StateStore) write(state TradeState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("state store: encode record: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("state store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("state store: rename %s into place: %w", tmp, err)
	}

	s.logger.LogDebug("State written: avg=%s held=%s fee=%s",
		state.AverageAcquisitionPrice, state.HeldAmount, state.CumulativeFee)
	return nil
}
