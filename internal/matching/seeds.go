package matching

import "github.com/tariffmatch/backend/internal/model"

// commonDescriptions are frequently-submitted product descriptions used to
// pre-populate the cache.
var commonDescriptions = []string{
	"Cotton t-shirt",
	"Leather handbag",
	"Stainless steel kitchen knife",
	"Laptop computer",
	"Smartphone",
	"Wireless headphones",
	"Ceramic coffee mug",
	"Wooden dining table",
	"Polyester jacket",
	"Running shoes",
	"Olive oil, extra virgin",
	"Ground roasted coffee",
	"Lithium-ion battery pack",
	"LED light bulb",
	"Plastic toy car",
}

func CommonQueries() []model.ClassificationQuery {
	queries := make([]model.ClassificationQuery, len(commonDescriptions))
	for i, description := range commonDescriptions {
		queries[i] = model.ClassificationQuery{
			Description: description,
			Country:     model.DefaultCountry,
		}
	}
	return queries
}
