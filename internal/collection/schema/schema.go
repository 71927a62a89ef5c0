package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
)

//go:embed collections.yaml
var defaultCollections []byte

var (
	ErrInvalidSchema = errors.New("invalid collection schema")

	slugPattern      = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	fieldNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

	reservedFields = map[string]bool{
		"id": true, "createdAt": true, "updatedAt": true,
		"hash": true, "password": true, "email": true,
	}
)

type file struct {
	Collections []domain.Collection `yaml:"collections" validate:"required,min=1,dive"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("fieldname", func(fl validator.FieldLevel) bool {
		return fieldNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Default returns the registry compiled into the binary.
func Default() (*domain.Registry, error) {
	return Parse(defaultCollections)
}

func LoadFile(path string) (*domain.Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open collections file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*domain.Registry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read collections: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*domain.Registry, error) {
	var parsed file
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	if err := newValidator().Struct(parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	registry := domain.NewRegistry()
	for _, c := range parsed.Collections {
		if _, dup := registry.Get(c.Slug); dup {
			return nil, fmt.Errorf("%w: duplicate collection %q", ErrInvalidSchema, c.Slug)
		}
		registry.Register(c)
	}

	if err := Validate(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// Validate checks cross-collection references. It is also run after plugins
// have added their fields.
func Validate(registry *domain.Registry) error {
	for _, c := range registry.All() {
		if c.UseAsTitle != "" {
			if _, ok := c.Field(c.UseAsTitle); !ok {
				return fmt.Errorf("%w: %s.useAsTitle names unknown field %q", ErrInvalidSchema, c.Slug, c.UseAsTitle)
			}
		}
		if err := validateFields(registry, c, c.Fields, true); err != nil {
			return err
		}
	}
	return nil
}

func validateFields(registry *domain.Registry, c domain.Collection, fields []domain.Field, topLevel bool) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return fmt.Errorf("%w: %s has duplicate field %q", ErrInvalidSchema, c.Slug, f.Name)
		}
		seen[f.Name] = true

		if topLevel && reservedFields[f.Name] {
			return fmt.Errorf("%w: %s.%s is a reserved field name", ErrInvalidSchema, c.Slug, f.Name)
		}

		if f.RelationTo != "" {
			if _, ok := registry.Get(f.RelationTo); !ok {
				return fmt.Errorf("%w: %s.%s relates to unknown collection %q", ErrInvalidSchema, c.Slug, f.Name, f.RelationTo)
			}
		}

		if f.Derived() {
			src, ok := c.Field(f.HTMLFrom)
			if !ok || src.Type != domain.FieldRichText {
				return fmt.Errorf("%w: %s.%s must derive from a richText field", ErrInvalidSchema, c.Slug, f.Name)
			}
		}

		if f.Type == domain.FieldGroup {
			if len(f.Fields) == 0 {
				return fmt.Errorf("%w: %s.%s group has no fields", ErrInvalidSchema, c.Slug, f.Name)
			}
			if err := validateFields(registry, c, f.Fields, false); err != nil {
				return err
			}
		}
	}
	return nil
}
