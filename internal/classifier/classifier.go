package classifier

import (
	"context"
	"time"

	"github.com/tariffmatch/backend/internal/model"
)

// Classifier wraps one external AI classification backend, configured for a
// single country's tariff schedule. Implementations make exactly one
// external call per Classify invocation; retry policy belongs to the
// caller, which can distinguish "retry this item" from "abandon this slot".
type Classifier interface {
	Classify(ctx context.Context, description string) ([]model.MatchCandidate, error)
	Ping(ctx context.Context) (time.Duration, error)
}
