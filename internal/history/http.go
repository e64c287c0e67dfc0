package history

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"match-predictor/internal/common"
	"match-predictor/internal/sports"

	"github.com/go-resty/resty/v2"
)

type matchupsResponse struct {
	Games []sports.HistoricalGame `json:"games"`
}

// HTTPProvider fetches matchups from a remote stats service.
type HTTPProvider struct {
	rest  *resty.Client
	limit int
}

func NewHTTPProvider(baseURL string, timeout time.Duration, limit int) *HTTPProvider {
	r := resty.New().SetBaseURL(baseURL)
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	if limit <= 0 {
		limit = common.DefaultHistoryLimit
	}
	return &HTTPProvider{rest: r, limit: limit}
}

func (h *HTTPProvider) FetchHistoricalMatchups(ctx context.Context, m sports.Match) ([]sports.HistoricalGame, error) {
	var out matchupsResponse
	resp, err := h.rest.R().
		SetContext(ctx).
		SetQueryParam("before", m.StartTime.UTC().Format(time.RFC3339Nano)).
		SetQueryParam("limit", strconv.Itoa(h.limit)).
		SetResult(&out).
		Get(fmt.Sprintf("/teams/%s/matchups/%s", url.PathEscape(m.HomeTeam.ID), url.PathEscape(m.AwayTeam.ID)))
	if err != nil {
		return nil, fmt.Errorf("fetch matchups: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch matchups: status %d", resp.StatusCode())
	}

	// the remote side is trusted for order but not for the cutoff or the cap
	games := make([]sports.HistoricalGame, 0, len(out.Games))
	for _, g := range out.Games {
		if !g.StartTime.Before(m.StartTime) {
			continue
		}
		games = append(games, g)
		if len(games) == h.limit {
			break
		}
	}
	return games, nil
}
