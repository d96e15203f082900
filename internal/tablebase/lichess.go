package tablebase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultLichessURL is the public Lichess tablebase endpoint.
const DefaultLichessURL = "https://tablebase.lichess.ovh"

// LichessProber uses the Lichess tablebase API for online lookups.
// It requires network access and is rate limited; wrap it in a CachedProber.
type LichessProber struct {
	// BaseURL is the server root, without the /standard path.
	BaseURL string

	client    *http.Client
	maxPieces int
}

// NewLichessProber creates a new Lichess-based tablebase prober.
func NewLichessProber() *LichessProber {
	return &LichessProber{
		BaseURL: DefaultLichessURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		maxPieces: 7, // Lichess supports up to 7-piece tablebases
	}
}

// Lichess API response structure
type lichessResponse struct {
	Category string `json:"category"`
	DTZ      int    `json:"dtz"`
}

func (lp *LichessProber) Probe(ctx context.Context, fen string) (ProbeResult, error) {
	if CountPieces(fen) > lp.maxPieces {
		return ProbeResult{}, nil
	}

	// Lichess accepts underscores in place of spaces
	url := fmt.Sprintf("%s/standard?fen=%s", strings.TrimRight(lp.BaseURL, "/"),
		strings.ReplaceAll(strings.TrimSpace(fen), " ", "_"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ProbeResult{}, err
	}
	resp, err := lp.client.Do(req)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("tablebase request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ProbeResult{}, fmt.Errorf("tablebase request: %s", resp.Status)
	}

	var result lichessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ProbeResult{}, fmt.Errorf("failed to decode tablebase response: %w", err)
	}

	wdl, ok := categoryToWDL(result.Category)
	if !ok {
		return ProbeResult{}, nil
	}
	return ProbeResult{
		Found: true,
		WDL:   wdl,
		DTZ:   result.DTZ,
	}, nil
}

func (lp *LichessProber) MaxPieces() int {
	return lp.maxPieces
}

func categoryToWDL(category string) (WDL, bool) {
	switch category {
	case "win":
		return WDLWin, true
	case "maybe-win", "cursed-win":
		return WDLCursedWin, true
	case "draw":
		return WDLDraw, true
	case "maybe-loss", "blessed-loss":
		return WDLBlessedLoss, true
	case "loss":
		return WDLLoss, true
	default:
		return WDLDraw, false
	}
}
