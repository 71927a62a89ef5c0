package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/repository"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
	"github.com/AlibekovAA/lingo-cms/backend/internal/richtext"
)

const (
	fieldEmail    = "email"
	fieldPassword = "password"
	fieldHash     = "hash"
)

func invalidField(path, reason string) error {
	return commonerrors.ErrValidation.WithDetails(map[string]any{
		"field":  path,
		"reason": reason,
	})
}

// sanitizeInput keeps only declared, writable fields. Derived fields,
// credentials and upload metadata are set by the service itself.
func sanitizeInput(c domain.Collection, data map[string]any) map[string]any {
	return sanitizeFields(c.Fields, data)
}

func sanitizeFields(fields []domain.Field, data map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if f.Derived() {
			continue
		}
		v, ok := data[f.Name]
		if !ok {
			continue
		}
		if f.Type == domain.FieldGroup {
			if nested, isMap := v.(map[string]any); isMap {
				v = sanitizeFields(f.Fields, nested)
			}
		}
		out[f.Name] = v
	}
	return out
}

// validateData checks types and references. Required fields are only
// enforced on create since updates are partial.
func (s *CollectionService) validateData(ctx context.Context, c domain.Collection, fields []domain.Field, data map[string]any, create bool) error {
	return s.validateFields(ctx, "", fields, data, create)
}

func (s *CollectionService) validateFields(ctx context.Context, prefix string, fields []domain.Field, data map[string]any, create bool) error {
	for _, f := range fields {
		if f.Derived() {
			continue
		}
		path := prefix + f.Name

		v, present := data[f.Name]
		if !present || v == nil || v == "" {
			if create && f.Required {
				return invalidField(path, "required")
			}
			continue
		}

		if err := s.validateValue(ctx, path, f, v, create); err != nil {
			return err
		}
	}
	return nil
}

func (s *CollectionService) validateValue(ctx context.Context, path string, f domain.Field, v any, create bool) error {
	switch f.Type {
	case domain.FieldText, domain.FieldTextarea:
		if _, ok := v.(string); !ok {
			return invalidField(path, "must be a string")
		}
	case domain.FieldEmail:
		str, ok := v.(string)
		if !ok || s.validate.Var(str, "email") != nil {
			return invalidField(path, "must be a valid email")
		}
	case domain.FieldNumber:
		if !isNumber(v) {
			return invalidField(path, "must be a number")
		}
	case domain.FieldCheckbox:
		if _, ok := v.(bool); !ok {
			return invalidField(path, "must be a boolean")
		}
	case domain.FieldRichText:
		if _, err := richtext.Parse(v); err != nil {
			return invalidField(path, "must be a rich text document")
		}
	case domain.FieldUpload, domain.FieldRelationship:
		id, ok := v.(string)
		if !ok {
			return invalidField(path, "must be a document id")
		}
		if _, err := s.repo.FindByID(ctx, f.RelationTo, id); err != nil {
			if errors.Is(err, repository.ErrDocumentNotFound) {
				return invalidField(path, fmt.Sprintf("no %s document with id %s", f.RelationTo, id))
			}
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
	case domain.FieldGroup:
		nested, ok := v.(map[string]any)
		if !ok {
			return invalidField(path, "must be an object")
		}
		return s.validateFields(ctx, path+".", f.Fields, nested, create)
	}
	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return true
	}
	return false
}

// applyAuthFields normalises the login email and replaces a plain password
// with its hash. raw is the caller's unsanitised input.
func (s *CollectionService) applyAuthFields(doc *domain.Document, raw map[string]any, create bool) error {
	if v, ok := raw[fieldEmail]; ok {
		str, _ := v.(string)
		email := normalizeEmail(str)
		if s.validate.Var(email, "required,email") != nil {
			return invalidField(fieldEmail, "must be a valid email")
		}
		doc.Data[fieldEmail] = email
		doc.UniqueKey = email
	} else if create {
		return invalidField(fieldEmail, "required")
	}

	password, _ := raw[fieldPassword].(string)
	if password == "" {
		if create {
			return invalidField(fieldPassword, "required")
		}
		return nil
	}
	if len(password) > constants.PasswordMaxLength {
		return invalidField(fieldPassword, fmt.Sprintf("must be at most %d bytes", constants.PasswordMaxLength))
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	doc.Data[fieldHash] = hash
	return nil
}

func (s *CollectionService) checkUnique(ctx context.Context, c domain.Collection, doc domain.Document) error {
	for _, f := range c.Fields {
		if !f.Unique {
			continue
		}
		value, ok := doc.Data[f.Name].(string)
		if !ok || value == "" {
			continue
		}
		docs, err := s.repo.Find(ctx, c.Slug, domain.Query{Limit: 2, Where: map[string]string{f.Name: value}})
		if err != nil {
			return fmt.Errorf("failed to check %s uniqueness: %w", f.Name, err)
		}
		for _, other := range docs {
			if other.ID != doc.ID {
				return commonerrors.ErrDuplicateKey.WithDetails(map[string]any{"field": f.Name})
			}
		}
	}
	return nil
}

func validateWhere(c domain.Collection, where map[string]string) error {
	for key := range where {
		if c.Auth && key == fieldEmail {
			continue
		}
		if c.Upload && (key == "filename" || key == "mimeType") {
			continue
		}
		f, ok := c.Field(key)
		if !ok || f.Type == domain.FieldGroup || f.Type == domain.FieldRichText {
			return commonerrors.ErrValidation.WithDetails(map[string]any{"where": key})
		}
	}
	return nil
}

// beforeChange derives HTML fields and lets the SEO plugin fill meta.
func (s *CollectionService) beforeChange(ctx context.Context, c domain.Collection, data map[string]any) {
	if s.converter.Enabled() {
		for _, f := range c.Fields {
			if !f.Derived() {
				continue
			}
			source, ok := data[f.HTMLFrom]
			if !ok || source == nil {
				delete(data, f.Name)
				continue
			}
			doc, err := richtext.Parse(source)
			if err != nil {
				continue
			}
			data[f.Name] = s.converter.ToHTML(ctx, doc)
		}
	}

	if s.seo != nil {
		s.seo.BeforeChange(c.Slug, data)
	}
}

func stripHidden(doc domain.Document) domain.Document {
	if _, ok := doc.Data[fieldHash]; !ok {
		return doc
	}
	data := make(map[string]any, len(doc.Data))
	for k, v := range doc.Data {
		if k != fieldHash {
			data[k] = v
		}
	}
	doc.Data = data
	return doc
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
