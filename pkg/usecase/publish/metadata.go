package publish

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

const (
	textOnlySchema = "https://json-schemas.lens.dev/posts/text-only/3.0.0.json"
	textOnlyFocus  = "TEXT_ONLY"
	defaultLocale  = "en"
)

type textOnlyMetadata struct {
	Schema string       `json:"$schema"`
	Lens   textOnlyBody `json:"lens"`
}

type textOnlyBody struct {
	ID               string `json:"id"`
	Content          string `json:"content"`
	Locale           string `json:"locale"`
	MainContentFocus string `json:"mainContentFocus"`
}

// textOnly wraps content as Lens text-only post metadata
func textOnly(content string) ([]byte, error) {
	doc := textOnlyMetadata{
		Schema: textOnlySchema,
		Lens: textOnlyBody{
			ID:               uuid.New().String(),
			Content:          content,
			Locale:           defaultLocale,
			MainContentFocus: textOnlyFocus,
		},
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal post metadata")
	}
	return raw, nil
}
