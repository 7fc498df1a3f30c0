package fetcher

import (
	"context"
	"net/http"
	"strings"

	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/normalize"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

// FetchStatus reads a statuspage.io status.json under base.
func FetchStatus(ctx context.Context, hc *http.Client, id provider.ID, base string) (model.StatusBadge, error) {
	base = strings.TrimRight(base, "/")
	var sp normalize.StatusPage
	if _, err := newClient(hc).getJSON(ctx, request{id: id, url: base + "/api/v2/status.json"}, &sp); err != nil {
		return model.StatusBadge{}, err
	}
	return normalize.Status(sp, base), nil
}
