package callhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dialops/callhub-client/pkg/remote"
)

const agentLeaderboardPath = "/v1/analytics/agent-leaderboard"

// AgentLeaderboard returns the agent leaderboard plot data for the given
// date range.
func (c *Client) AgentLeaderboard(ctx context.Context, start, end time.Time) (json.RawMessage, error) {
	resp, err := c.call(ctx, remote.Descriptor{
		Class:  ClassGeneral,
		Method: http.MethodGet,
		Path:   agentLeaderboardPath,
		Query: url.Values{
			"start_date": []string{start.Format("2006-01-02")},
			"end_date":   []string{end.Format("2006-01-02")},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("agent leaderboard: %w", err)
	}

	var reply struct {
		PlotData json.RawMessage `json:"plot_data"`
	}
	if err := resp.JSON(&reply); err != nil {
		return nil, fmt.Errorf("agent leaderboard: %w", err)
	}
	return reply.PlotData, nil
}
