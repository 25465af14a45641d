package validator

import (
	"github.com/omniql-engine/chatdb/engine/pipeline"
	"github.com/omniql-engine/chatdb/engine/translator"
)

// MongoDB validates db.<collection>.aggregate([...]) calls
type MongoDB struct{}

func (MongoDB) Validate(query string) error { return ValidateMongoDB(query) }

func (MongoDB) ValidateWithDetails(query string) (*ValidationResult, error) {
	return ValidateMongoDBWithDetails(query)
}

// ValidateMongoDB checks that query parses as an aggregate call
func ValidateMongoDB(query string) error {
	_, _, err := pipeline.Extract(query)
	return err
}

// ValidateMongoDBWithDetails returns detailed validation result
func ValidateMongoDBWithDetails(query string) (*ValidationResult, error) {
	collection, stages, err := pipeline.Extract(query)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Error: err.Error(),
		}, nil
	}

	res := &ValidationResult{Valid: true}
	if normalized, err := translator.Render(collection, stages); err == nil {
		res.Normalized = normalized
	}
	return res, nil
}
