package connsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/moonlitgames/werewolf-backend/internal/game"
)

// HTTPFetcher reads the durable row through the server's recovery endpoint
// (GET /rooms/{id}/state). The endpoint is an unconditional select, so
// calling it redundantly is always safe.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

func (f *HTTPFetcher) FetchState(ctx context.Context, roomID string) (game.State, int64, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/rooms/%s/state", f.BaseURL, roomID), nil)
	if err != nil {
		return game.State{}, 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return game.State{}, 0, fmt.Errorf("recovery read: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return game.State{}, 0, fmt.Errorf("recovery read: status %d", resp.StatusCode)
	}

	var out struct {
		State    game.State `json:"state"`
		Revision int64      `json:"revision"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return game.State{}, 0, fmt.Errorf("recovery read: decode: %w", err)
	}
	return out.State, out.Revision, nil
}
