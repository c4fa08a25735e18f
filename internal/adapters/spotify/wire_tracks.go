package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const audioFeaturesBatch = 100

// audioFeatures fetches analysis snapshots for ids in batches. Ids Spotify
// has no analysis for are absent from the result. Apps without access to
// the endpoint get an empty result and a warning rather than an error.
func (c *Client) audioFeatures(ctx context.Context, ids []string) (map[string]*spotifyAudioFeatures, error) {
	out := make(map[string]*spotifyAudioFeatures, len(ids))
	for start := 0; start < len(ids); start += audioFeaturesBatch {
		end := min(start+audioFeaturesBatch, len(ids))
		u := fmt.Sprintf("%s/audio-features?ids=%s", c.baseURL, strings.Join(ids[start:end], ","))

		var resp audioFeaturesResponse
		if err := c.getJSON(ctx, u, &resp); err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Code == http.StatusForbidden {
				c.logger.Warn("audio features unavailable for this app; tracks keep no features")
				return map[string]*spotifyAudioFeatures{}, nil
			}
			return nil, err
		}
		for _, f := range resp.AudioFeatures {
			if f != nil && f.ID != "" {
				out[f.ID] = f
			}
		}
	}
	return out, nil
}
