package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/repository"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/clock"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/lingo-cms/backend/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
	"github.com/AlibekovAA/lingo-cms/backend/internal/observability/metrics"
	"github.com/AlibekovAA/lingo-cms/backend/internal/richtext"
	"github.com/AlibekovAA/lingo-cms/backend/internal/seo"
)

// User is the authenticated principal a request runs as.
type User struct {
	ID         string
	Email      string
	Collection string
}

type FindArgs struct {
	Collection     string
	Limit          int
	Page           int
	Where          map[string]string
	User           *User
	OverrideAccess bool
}

type FindResult struct {
	Docs        []domain.Document
	TotalDocs   int
	Limit       int
	Page        int
	TotalPages  int
	HasNextPage bool
	HasPrevPage bool
}

type FindByIDArgs struct {
	Collection     string
	ID             string
	User           *User
	OverrideAccess bool
}

type CreateArgs struct {
	Collection     string
	Data           map[string]any
	File           *File
	User           *User
	OverrideAccess bool
}

type UpdateArgs struct {
	Collection     string
	ID             string
	Data           map[string]any
	User           *User
	OverrideAccess bool
}

type DeleteArgs struct {
	Collection     string
	ID             string
	User           *User
	OverrideAccess bool
}

// CollectionService is the local API over every registered collection.
type CollectionService struct {
	registry    *domain.Registry
	repo        repository.Repository
	hasher      commoncrypto.PasswordHasher
	idGenerator commoncrypto.IDGenerator
	converter   *richtext.Converter
	seo         *seo.Plugin
	files       FileStore
	validate    *validator.Validate
	clock       clock.Clock
	log         *logger.Logger
}

// NewCollectionService wires the local API. seoPlugin and files may be nil
// when the registry has no SEO targets or upload collections.
func NewCollectionService(
	registry *domain.Registry,
	repo repository.Repository,
	hasher commoncrypto.PasswordHasher,
	idGenerator commoncrypto.IDGenerator,
	features richtext.FeatureSet,
	seoPlugin *seo.Plugin,
	files FileStore,
	clk clock.Clock,
	log *logger.Logger,
) *CollectionService {
	s := &CollectionService{
		registry:    registry,
		repo:        repo,
		hasher:      hasher,
		idGenerator: idGenerator,
		seo:         seoPlugin,
		files:       files,
		validate:    validator.New(),
		clock:       clk,
		log:         log,
	}
	s.converter = richtext.NewConverter(features, s)
	return s
}

func (s *CollectionService) Registry() *domain.Registry {
	return s.registry
}

func (s *CollectionService) Find(ctx context.Context, args FindArgs) (FindResult, error) {
	c, err := s.collection(args.Collection)
	if err != nil {
		return FindResult{}, err
	}
	if err := authorize(c, domain.OpRead, args.User, args.OverrideAccess); err != nil {
		return FindResult{}, s.fail(c.Slug, domain.OpRead, err)
	}
	if err := validateWhere(c, args.Where); err != nil {
		return FindResult{}, s.fail(c.Slug, domain.OpRead, err)
	}

	limit := args.Limit
	if limit <= 0 {
		limit = constants.DefaultFindLimit
	}
	if limit > constants.MaxFindLimit {
		limit = constants.MaxFindLimit
	}
	page := args.Page
	if page <= 0 {
		page = 1
	}
	if page > math.MaxInt/limit {
		return FindResult{}, s.fail(c.Slug, domain.OpRead, commonerrors.ErrValidation.WithDetails(map[string]any{"field": "page", "reason": "out of range"}))
	}

	total, err := s.repo.Count(ctx, c.Slug, args.Where)
	if err != nil {
		return FindResult{}, s.fail(c.Slug, domain.OpRead, fmt.Errorf("failed to count %s: %w", c.Slug, err))
	}

	docs, err := s.repo.Find(ctx, c.Slug, domain.Query{
		Limit:  limit,
		Offset: (page - 1) * limit,
		Where:  args.Where,
	})
	if err != nil {
		return FindResult{}, s.fail(c.Slug, domain.OpRead, fmt.Errorf("failed to find %s: %w", c.Slug, err))
	}

	for i := range docs {
		docs[i] = stripHidden(docs[i])
	}

	totalPages := (total + limit - 1) / limit
	metrics.DocumentOperationsTotal.WithLabelValues(c.Slug, string(domain.OpRead), "success").Inc()
	return FindResult{
		Docs:        docs,
		TotalDocs:   total,
		Limit:       limit,
		Page:        page,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}, nil
}

func (s *CollectionService) FindByID(ctx context.Context, args FindByIDArgs) (domain.Document, error) {
	c, err := s.collection(args.Collection)
	if err != nil {
		return domain.Document{}, err
	}
	if err := authorize(c, domain.OpRead, args.User, args.OverrideAccess); err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpRead, err)
	}

	doc, err := s.repo.FindByID(ctx, c.Slug, args.ID)
	if err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpRead, err)
	}

	metrics.DocumentOperationsTotal.WithLabelValues(c.Slug, string(domain.OpRead), "success").Inc()
	return stripHidden(doc), nil
}

func (s *CollectionService) Create(ctx context.Context, args CreateArgs) (domain.Document, error) {
	c, err := s.collection(args.Collection)
	if err != nil {
		return domain.Document{}, err
	}
	if err := authorize(c, domain.OpCreate, args.User, args.OverrideAccess); err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpCreate, err)
	}

	data := sanitizeInput(c, args.Data)
	if err := s.validateData(ctx, c, c.Fields, data, true); err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpCreate, err)
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpCreate, fmt.Errorf("failed to generate id: %w", err))
	}

	now := s.clock.Now()
	doc := domain.Document{
		ID:         id,
		Collection: c.Slug,
		Data:       data,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if c.Auth {
		if err := s.applyAuthFields(&doc, args.Data, true); err != nil {
			return domain.Document{}, s.fail(c.Slug, domain.OpCreate, err)
		}
	}
	if err := s.checkUnique(ctx, c, doc); err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpCreate, err)
	}

	if c.Upload {
		if args.File == nil {
			return domain.Document{}, s.fail(c.Slug, domain.OpCreate, commonerrors.ErrValidation.WithDetails(map[string]any{"field": "file"}))
		}
		if err := s.storeFile(ctx, doc.Data, *args.File); err != nil {
			return domain.Document{}, s.fail(c.Slug, domain.OpCreate, err)
		}
	}

	s.beforeChange(ctx, c, doc.Data)

	if err := s.repo.Insert(ctx, doc); err != nil {
		if c.Upload {
			s.removeFile(ctx, doc)
		}
		return domain.Document{}, s.fail(c.Slug, domain.OpCreate, fmt.Errorf("failed to create %s: %w", c.Slug, err))
	}

	s.log.WithFields(ctx, logger.Fields{
		"collection": c.Slug,
		"id":         doc.ID,
		"action":     "document_created",
	}).Info("document created")
	metrics.DocumentOperationsTotal.WithLabelValues(c.Slug, string(domain.OpCreate), "success").Inc()
	return stripHidden(doc), nil
}

// Update merges data into the stored document; fields not present are kept.
func (s *CollectionService) Update(ctx context.Context, args UpdateArgs) (domain.Document, error) {
	c, err := s.collection(args.Collection)
	if err != nil {
		return domain.Document{}, err
	}
	if err := authorize(c, domain.OpUpdate, args.User, args.OverrideAccess); err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpUpdate, err)
	}

	existing, err := s.repo.FindByID(ctx, c.Slug, args.ID)
	if err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpUpdate, err)
	}

	patch := sanitizeInput(c, args.Data)
	if err := s.validateData(ctx, c, c.Fields, patch, false); err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpUpdate, err)
	}

	merged := make(map[string]any, len(existing.Data)+len(patch))
	for k, v := range existing.Data {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	existing.Data = merged
	existing.UpdatedAt = s.clock.Now()

	if c.Auth {
		if err := s.applyAuthFields(&existing, args.Data, false); err != nil {
			return domain.Document{}, s.fail(c.Slug, domain.OpUpdate, err)
		}
	}
	if err := s.checkUnique(ctx, c, existing); err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpUpdate, err)
	}

	s.beforeChange(ctx, c, existing.Data)

	if err := s.repo.Update(ctx, existing); err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpUpdate, fmt.Errorf("failed to update %s: %w", c.Slug, err))
	}

	metrics.DocumentOperationsTotal.WithLabelValues(c.Slug, string(domain.OpUpdate), "success").Inc()
	return stripHidden(existing), nil
}

func (s *CollectionService) Delete(ctx context.Context, args DeleteArgs) (domain.Document, error) {
	c, err := s.collection(args.Collection)
	if err != nil {
		return domain.Document{}, err
	}
	if err := authorize(c, domain.OpDelete, args.User, args.OverrideAccess); err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpDelete, err)
	}

	doc, err := s.repo.FindByID(ctx, c.Slug, args.ID)
	if err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpDelete, err)
	}
	if err := s.repo.Delete(ctx, c.Slug, args.ID); err != nil {
		return domain.Document{}, s.fail(c.Slug, domain.OpDelete, fmt.Errorf("failed to delete %s: %w", c.Slug, err))
	}
	if c.Upload {
		s.removeFile(ctx, doc)
	}

	s.log.WithFields(ctx, logger.Fields{
		"collection": c.Slug,
		"id":         doc.ID,
		"action":     "document_deleted",
	}).Info("document deleted")
	metrics.DocumentOperationsTotal.WithLabelValues(c.Slug, string(domain.OpDelete), "success").Inc()
	return stripHidden(doc), nil
}

// FindAuthByEmail returns the stored auth document including its hash. It
// is meant for the auth service only and never crosses the API boundary.
func (s *CollectionService) FindAuthByEmail(ctx context.Context, collection, email string) (domain.Document, error) {
	c, err := s.collection(collection)
	if err != nil {
		return domain.Document{}, err
	}
	if !c.Auth {
		return domain.Document{}, commonerrors.ErrCollectionNotFound.WithDetails(map[string]any{"collection": collection})
	}
	return s.repo.FindByUniqueKey(ctx, c.Slug, normalizeEmail(email))
}

// ResolveUpload lets the rich text converter render upload nodes.
func (s *CollectionService) ResolveUpload(ctx context.Context, collection, id string) (richtext.Upload, bool) {
	doc, err := s.repo.FindByID(ctx, collection, id)
	if err != nil {
		return richtext.Upload{}, false
	}
	url := doc.String("url")
	if url == "" {
		return richtext.Upload{}, false
	}
	return richtext.Upload{
		URL:      url,
		Filename: doc.String("filename"),
		MimeType: doc.String("mimeType"),
		Alt:      doc.String("text"),
	}, true
}

func (s *CollectionService) collection(slug string) (domain.Collection, error) {
	c, ok := s.registry.Get(slug)
	if !ok {
		return domain.Collection{}, commonerrors.ErrCollectionNotFound.WithDetails(map[string]any{"collection": slug})
	}
	return c, nil
}

func (s *CollectionService) fail(collection string, op domain.Operation, err error) error {
	result := "error"
	var de commonerrors.DomainError
	if errors.As(err, &de) {
		result = strings.ToLower(de.Code())
	}
	metrics.DocumentOperationsTotal.WithLabelValues(collection, string(op), result).Inc()
	return err
}

func authorize(c domain.Collection, op domain.Operation, user *User, override bool) error {
	if override {
		return nil
	}
	switch c.Access.Rule(op) {
	case domain.AccessPublic:
		return nil
	case domain.AccessAuthenticated:
		if user == nil {
			return commonerrors.ErrUnauthorized
		}
		return nil
	default:
		return commonerrors.ErrForbidden
	}
}
