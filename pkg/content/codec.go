package content

import (
	"encoding/json"
	"fmt"

	"github.com/psantana5/agencysite/pkg/models"
	"github.com/psantana5/agencysite/pkg/store"
)

// entryPtr is satisfied by *E when E is a content struct
type entryPtr[E any] interface {
	*E
	models.Entry
}

// EncodeEntry converts an entry into its stored document form
func EncodeEntry(e models.Entry) (*store.Document, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.Kind(), err)
	}
	m := e.EntryMeta()
	return &store.Document{
		Kind:      e.Kind(),
		ID:        m.ID,
		Slug:      m.Slug,
		Published: m.Published,
		SortOrder: m.SortOrder,
		Data:      data,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

// DecodeEntry converts a stored document back into a typed entry.
// Indexed columns win over the copies inside the JSON payload.
func DecodeEntry(doc *store.Document) (models.Entry, error) {
	e, err := models.NewEntry(doc.Kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(doc.Data, e); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", doc.Kind, doc.ID, err)
	}
	applyColumns(e.EntryMeta(), doc)
	return e, nil
}

func decodeDocument[E any, P entryPtr[E]](doc *store.Document) (*E, error) {
	e := new(E)
	if err := json.Unmarshal(doc.Data, e); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", doc.Kind, doc.ID, err)
	}
	applyColumns(P(e).EntryMeta(), doc)
	return e, nil
}

func applyColumns(m *models.Meta, doc *store.Document) {
	m.ID = doc.ID
	m.Slug = doc.Slug
	m.Published = doc.Published
	m.SortOrder = doc.SortOrder
	m.CreatedAt = doc.CreatedAt
	m.UpdatedAt = doc.UpdatedAt
}
