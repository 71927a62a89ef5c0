package domain

import "time"

type Document struct {
	ID         string
	Collection string
	Data       map[string]any
	// UniqueKey carries the lower-cased login email of auth collections;
	// storage enforces (collection, unique_key) uniqueness.
	UniqueKey string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Flatten returns the API shape: data fields plus id and timestamps.
func (d Document) Flatten() map[string]any {
	out := make(map[string]any, len(d.Data)+3)
	for k, v := range d.Data {
		out[k] = v
	}
	out["id"] = d.ID
	out["createdAt"] = d.CreatedAt
	out["updatedAt"] = d.UpdatedAt
	return out
}

func (d Document) String(field string) string {
	v, _ := d.Data[field].(string)
	return v
}

type Query struct {
	Limit  int
	Offset int
	// Where matches top-level data fields by string equality.
	Where map[string]string
}
