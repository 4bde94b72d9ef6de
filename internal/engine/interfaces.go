package engine

import (
	"context"

	"github.com/ledgerock/drawmatch/internal/model"
)

// Selector chooses one candidate from a bounded set or declines. It never
// returns an error: every failure mode degrades to a review flag inside the
// response.
type Selector interface {
	Select(ctx context.Context, inv model.ExtractedInvoiceData, candidates []model.MatchCandidate) model.AISelectionResponse
}

// Notifier delivers best-effort review notifications. Implementations must
// swallow their own failures; the matching pipeline never depends on them.
type Notifier interface {
	NotifyReview(ctx context.Context, invoiceID, reason string)
}
