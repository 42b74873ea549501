package store

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/sanitize"
)

var (
	validateOnce sync.Once
	nodeValidate *validator.Validate
)

func nodeValidator() *validator.Validate {
	validateOnce.Do(func() {
		nodeValidate = validator.New(validator.WithRequiredStructEnabled())
		// Report document field names rather than Go field names.
		nodeValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, key := range []string{"yaml", "json"} {
				name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return ""
		})
	})
	return nodeValidate
}

// ValidateNode checks that a node carries every required field (id, type,
// created_at) with values in range, and that its id is usable as a file name.
// The first problem found is returned as a *ValidationError.
func ValidateNode(node *models.Node) error {
	if err := nodeValidator().Struct(node); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{
				NodeID: node.ID,
				Field:  fieldPath(fe.Namespace()),
				Reason: describeTag(fe),
			}
		}
		return &ValidationError{NodeID: node.ID, Field: "node", Reason: err.Error()}
	}
	if !sanitize.ValidID(node.ID) {
		return &ValidationError{NodeID: node.ID, Field: "id", Reason: "must match [A-Za-z0-9._-]+"}
	}
	return nil
}

// ValidateEnrichment checks enrichment metadata before it is ingested.
func ValidateEnrichment(m *models.EnrichmentMetadata) error {
	if err := nodeValidator().Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{
				NodeID: m.EnrichmentID,
				Field:  fieldPath(fe.Namespace()),
				Reason: describeTag(fe),
			}
		}
		return &ValidationError{NodeID: m.EnrichmentID, Field: "enrichment", Reason: err.Error()}
	}
	return nil
}

// normalizeNode sanitizes the free-text fields of a node in place.
func normalizeNode(node *models.Node) {
	node.Title = sanitize.Title(node.Title)
	node.Summary = sanitize.Summary(node.Summary)
	node.Tags = sanitize.Tags(node.Tags)
}

// fieldPath strips the root struct name from a validator namespace
// ("Node.decay_metadata.decay_score" -> "decay_metadata.decay_score").
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
