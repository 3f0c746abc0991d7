package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/port/bountysource"
	"github.com/outlive-sh/outlive/internal/port/database"
)

// ScanResult summarizes one discovery pass.
type ScanResult struct {
	Fetched int               `json:"fetched"`
	Stored  int               `json:"stored"`
	Errors  map[string]string `json:"errors,omitempty"` // source name -> error
}

// ScraperService discovers bounties from the configured sources and stores
// them. Storing is a re-scan overwrite: a listing that reappears as open may
// revert a claimed record, but completed records are never touched.
type ScraperService struct {
	store   database.Store
	sources []bountysource.Source
}

// NewScraperService creates a ScraperService.
func NewScraperService(store database.Store, sources []bountysource.Source) *ScraperService {
	return &ScraperService{store: store, sources: sources}
}

// ScanAll fetches every source and stores the valid listings. Source failures
// are isolated; a pass only fails as a whole when storage does.
func (s *ScraperService) ScanAll(ctx context.Context) (*ScanResult, error) {
	result := &ScanResult{Errors: make(map[string]string)}

	var discovered []bounty.Bounty
	for _, src := range s.sources {
		listings, err := src.Fetch(ctx)
		if err != nil {
			slog.Warn("source fetch failed", "source", src.Name(), "error", err)
			result.Errors[string(src.Name())] = err.Error()
			continue
		}
		for i := range listings {
			if err := listings[i].Validate(); err != nil {
				slog.Warn("dropping malformed listing", "source", src.Name(), "error", err)
				continue
			}
			discovered = append(discovered, listings[i])
		}
		slog.Info("source scanned", "source", src.Name(), "listings", len(listings))
	}
	result.Fetched = len(discovered)

	if len(discovered) == 0 {
		return result, nil
	}

	if err := s.store.StoreBounties(ctx, discovered); err != nil {
		return result, fmt.Errorf("store scanned bounties: %w", err)
	}
	result.Stored = len(discovered)

	if err := s.store.StoreMetric(ctx, "bounties_scanned", float64(result.Stored)); err != nil {
		slog.Warn("scan metric store failed", "error", err)
	}
	return result, nil
}
