package classifier

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/tariffmatch/backend/internal/model"
	"github.com/tariffmatch/backend/pkg/logger"
)

const defaultMaxCountries = 10

// Registry lazily creates one classifier per country and keeps them in a
// bounded LRU so many country configurations cannot grow the set without
// limit.
type Registry struct {
	mu      sync.Mutex
	clients *lru.Cache[string, Classifier]
	factory func(country string) Classifier
}

func NewRegistry(maxCountries int, factory func(country string) Classifier) (*Registry, error) {
	if maxCountries <= 0 {
		maxCountries = defaultMaxCountries
	}

	clients, err := lru.NewWithEvict[string, Classifier](maxCountries, func(country string, _ Classifier) {
		logger.Info("Evicted classifier for country", zap.String("country", country))
	})
	if err != nil {
		return nil, err
	}

	return &Registry{
		clients: clients,
		factory: factory,
	}, nil
}

// For returns the classifier for a country, creating and caching it on
// first use. An empty country maps to the default schedule.
func (r *Registry) For(country string) Classifier {
	country = strings.ToLower(strings.TrimSpace(country))
	if country == "" {
		country = model.DefaultCountry
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients.Get(country); ok {
		return client
	}

	client := r.factory(country)
	r.clients.Add(country, client)
	return client
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients.Len()
}
