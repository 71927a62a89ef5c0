package domain

import "sort"

type FieldType string

const (
	FieldText         FieldType = "text"
	FieldTextarea     FieldType = "textarea"
	FieldEmail        FieldType = "email"
	FieldNumber       FieldType = "number"
	FieldCheckbox     FieldType = "checkbox"
	FieldRichText     FieldType = "richText"
	FieldUpload       FieldType = "upload"
	FieldRelationship FieldType = "relationship"
	FieldGroup        FieldType = "group"
)

type AccessRule string

const (
	AccessPublic        AccessRule = "public"
	AccessAuthenticated AccessRule = "authenticated"
	AccessNone          AccessRule = "none"
)

type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

type Field struct {
	Name       string    `yaml:"name" validate:"required,fieldname"`
	Type       FieldType `yaml:"type" validate:"required,oneof=text textarea email number checkbox richText upload relationship group"`
	Required   bool      `yaml:"required"`
	Unique     bool      `yaml:"unique"`
	RelationTo string    `yaml:"relationTo" validate:"required_if=Type upload,required_if=Type relationship"`
	// HTMLFrom marks a read-only field derived from a richText sibling.
	HTMLFrom string  `yaml:"htmlFrom"`
	Fields   []Field `yaml:"fields" validate:"dive"`
}

func (f Field) Derived() bool {
	return f.HTMLFrom != ""
}

type Access struct {
	Read   AccessRule `yaml:"read" validate:"omitempty,oneof=public authenticated none"`
	Create AccessRule `yaml:"create" validate:"omitempty,oneof=public authenticated none"`
	Update AccessRule `yaml:"update" validate:"omitempty,oneof=public authenticated none"`
	Delete AccessRule `yaml:"delete" validate:"omitempty,oneof=public authenticated none"`
}

// Rule falls back to authenticated, which is what an unset rule means.
func (a Access) Rule(op Operation) AccessRule {
	var rule AccessRule
	switch op {
	case OpRead:
		rule = a.Read
	case OpCreate:
		rule = a.Create
	case OpUpdate:
		rule = a.Update
	case OpDelete:
		rule = a.Delete
	}
	if rule == "" {
		return AccessAuthenticated
	}
	return rule
}

type Collection struct {
	Slug       string  `yaml:"slug" validate:"required,slug"`
	Auth       bool    `yaml:"auth"`
	Upload     bool    `yaml:"upload"`
	UseAsTitle string  `yaml:"useAsTitle"`
	Access     Access  `yaml:"access"`
	Fields     []Field `yaml:"fields" validate:"dive"`
}

func (c Collection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

type Registry struct {
	collections map[string]Collection
	order       []string
}

func NewRegistry(collections ...Collection) *Registry {
	r := &Registry{collections: make(map[string]Collection, len(collections))}
	for _, c := range collections {
		r.Register(c)
	}
	return r
}

func (r *Registry) Register(c Collection) {
	if _, exists := r.collections[c.Slug]; !exists {
		r.order = append(r.order, c.Slug)
	}
	r.collections[c.Slug] = c
}

func (r *Registry) Get(slug string) (Collection, bool) {
	c, ok := r.collections[slug]
	return c, ok
}

func (r *Registry) Slugs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) All() []Collection {
	out := make([]Collection, 0, len(r.order))
	for _, slug := range r.order {
		out = append(out, r.collections[slug])
	}
	return out
}

// AuthCollections returns auth-enabled slugs in sorted order.
func (r *Registry) AuthCollections() []string {
	var out []string
	for slug, c := range r.collections {
		if c.Auth {
			out = append(out, slug)
		}
	}
	sort.Strings(out)
	return out
}
