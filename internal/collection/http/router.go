package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/service"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
	commonhttp "github.com/AlibekovAA/lingo-cms/backend/internal/common/http"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/jwtverify"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
	"github.com/AlibekovAA/lingo-cms/backend/internal/seo"
)

var whereParam = regexp.MustCompile(`^where\[([a-zA-Z][a-zA-Z0-9_]*)\]\[equals\]$`)

type listResponse struct {
	Docs        []map[string]any `json:"docs"`
	TotalDocs   int              `json:"totalDocs"`
	Limit       int              `json:"limit"`
	Page        int              `json:"page"`
	TotalPages  int              `json:"totalPages"`
	HasNextPage bool             `json:"hasNextPage"`
	HasPrevPage bool             `json:"hasPrevPage"`
	NextPage    *int             `json:"nextPage"`
	PrevPage    *int             `json:"prevPage"`
}

type docResponse struct {
	Message string         `json:"message"`
	Doc     map[string]any `json:"doc"`
}

type Handler struct {
	svc       *service.CollectionService
	seo       *seo.Plugin
	uploadDir string
	secret    string
	timeout   time.Duration
	errors    *commonhttp.ErrorHandler
	log       *logger.Logger
}

func NewHandler(
	svc *service.CollectionService,
	seoPlugin *seo.Plugin,
	uploadDir string,
	secret string,
	timeout time.Duration,
	log *logger.Logger,
) *Handler {
	return &Handler{
		svc:       svc,
		seo:       seoPlugin,
		uploadDir: uploadDir,
		secret:    secret,
		timeout:   timeout,
		errors:    commonhttp.NewErrorHandler(log),
		log:       log,
	}
}

// UploadPaths lists the endpoints that accept multipart bodies.
func (h *Handler) UploadPaths() []string {
	var paths []string
	for _, c := range h.svc.Registry().All() {
		if c.Upload {
			paths = append(paths, "/api/"+c.Slug)
		}
	}
	return paths
}

func (h *Handler) Register(mux *http.ServeMux) {
	withTimeout := commonhttp.WithTimeout(h.timeout)
	optional := jwtverify.Optional(h.secret, h.log)
	required := jwtverify.Middleware(h.secret, h.log)

	mux.Handle("GET /api/{collection}", optional(withTimeout(h.find)))
	mux.Handle("POST /api/{collection}", optional(withTimeout(h.create)))
	mux.Handle("GET /api/{collection}/{id}", optional(withTimeout(h.findByID)))
	mux.Handle("PATCH /api/{collection}/{id}", optional(withTimeout(h.update)))
	mux.Handle("DELETE /api/{collection}/{id}", optional(withTimeout(h.delete)))

	for _, c := range h.svc.Registry().All() {
		if c.Upload {
			mux.Handle("GET /api/"+c.Slug+"/file/{filename}", optional(withTimeout(h.serveFile(c.Slug))))
		}
	}

	if h.seo != nil {
		mux.Handle("POST /api/plugin-seo/generate-title", required(withTimeout(h.generate(h.seo.GenerateTitle))))
		mux.Handle("POST /api/plugin-seo/generate-description", required(withTimeout(h.generate(h.seo.GenerateDescription))))
	}
}

func (h *Handler) find(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	page, err := intParam(q.Get("page"), "page")
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	where := map[string]string{}
	for key, values := range q {
		if m := whereParam.FindStringSubmatch(key); m != nil && len(values) > 0 {
			where[m[1]] = values[0]
		}
	}

	res, err := h.svc.Find(r.Context(), service.FindArgs{
		Collection: r.PathValue("collection"),
		Limit:      limit,
		Page:       page,
		Where:      where,
		User:       currentUser(r),
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	docs := make([]map[string]any, len(res.Docs))
	for i, d := range res.Docs {
		docs[i] = d.Flatten()
	}

	out := listResponse{
		Docs:        docs,
		TotalDocs:   res.TotalDocs,
		Limit:       res.Limit,
		Page:        res.Page,
		TotalPages:  res.TotalPages,
		HasNextPage: res.HasNextPage,
		HasPrevPage: res.HasPrevPage,
	}
	if res.HasNextPage {
		next := res.Page + 1
		out.NextPage = &next
	}
	if res.HasPrevPage {
		prev := res.Page - 1
		out.PrevPage = &prev
	}
	commonhttp.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) findByID(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.FindByID(r.Context(), service.FindByIDArgs{
		Collection: r.PathValue("collection"),
		ID:         r.PathValue("id"),
		User:       currentUser(r),
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, doc.Flatten())
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("collection")
	args := service.CreateArgs{Collection: slug, User: currentUser(r)}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		data, file, cleanup, err := readMultipart(r)
		if err != nil {
			h.errors.HandleError(w, r, err)
			return
		}
		defer cleanup()
		args.Data = data
		args.File = file
	} else {
		if err := commonhttp.DecodeJSON(r, &args.Data); err != nil {
			h.errors.HandleError(w, r, commonerrors.ErrInvalidPayload.WithCause(err))
			return
		}
	}

	doc, err := h.svc.Create(r.Context(), args)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusCreated, docResponse{
		Message: fmt.Sprintf("%s successfully created.", singular(slug)),
		Doc:     doc.Flatten(),
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := commonhttp.DecodeJSON(r, &data); err != nil {
		h.errors.HandleError(w, r, commonerrors.ErrInvalidPayload.WithCause(err))
		return
	}

	doc, err := h.svc.Update(r.Context(), service.UpdateArgs{
		Collection: r.PathValue("collection"),
		ID:         r.PathValue("id"),
		Data:       data,
		User:       currentUser(r),
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, docResponse{Message: "Updated successfully.", Doc: doc.Flatten()})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Delete(r.Context(), service.DeleteArgs{
		Collection: r.PathValue("collection"),
		ID:         r.PathValue("id"),
		User:       currentUser(r),
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, docResponse{Message: "Deleted successfully.", Doc: doc.Flatten()})
}

// serveFile streams a stored upload after checking read access on the
// document that owns it.
func (h *Handler) serveFile(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("filename")
		if name != service.SafeFilename(name) {
			h.errors.HandleError(w, r, commonerrors.ErrDocumentNotFound)
			return
		}

		res, err := h.svc.Find(r.Context(), service.FindArgs{
			Collection: collection,
			Limit:      1,
			Where:      map[string]string{"filename": name},
			User:       currentUser(r),
		})
		if err != nil {
			h.errors.HandleError(w, r, err)
			return
		}
		if len(res.Docs) == 0 {
			h.errors.HandleError(w, r, commonerrors.ErrDocumentNotFound)
			return
		}

		if mimeType := res.Docs[0].String("mimeType"); mimeType != "" {
			w.Header().Set("Content-Type", mimeType)
		}
		http.ServeFile(w, r, filepath.Join(h.uploadDir, name))
	}
}

func (h *Handler) generate(fn seo.GenerateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc map[string]any
		if err := commonhttp.DecodeJSON(r, &doc); err != nil {
			h.errors.HandleError(w, r, commonerrors.ErrInvalidPayload.WithCause(err))
			return
		}
		commonhttp.WriteJSON(w, http.StatusOK, map[string]string{"result": fn(doc)})
	}
}

// readMultipart extracts document fields and the file part. Fields come
// either as a JSON "_payload" part or as plain form values.
func readMultipart(r *http.Request) (map[string]any, *service.File, func(), error) {
	noop := func() {}
	if err := r.ParseMultipartForm(constants.DefaultMaxRequestSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, noop, commonerrors.ErrFileSizeExceeded
		}
		return nil, nil, noop, commonerrors.ErrInvalidPayload.WithCause(err)
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	data := map[string]any{}
	if raw := r.FormValue("_payload"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			cleanup()
			return nil, nil, noop, commonerrors.ErrInvalidPayload.WithCause(err)
		}
	} else {
		for key, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				data[key] = values[0]
			}
		}
	}

	f, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return data, nil, cleanup, nil
	}
	if err != nil {
		cleanup()
		return nil, nil, noop, commonerrors.ErrInvalidPayload.WithCause(err)
	}

	closeAll := func() {
		_ = f.Close()
		cleanup()
	}
	return data, &service.File{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Content:  f,
	}, closeAll, nil
}

func currentUser(r *http.Request) *service.User {
	claims, ok := jwtverify.FromContext(r.Context())
	if !ok {
		return nil
	}
	return &service.User{ID: claims.UserID, Email: claims.Email, Collection: claims.Collection}
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, commonerrors.ErrValidation.WithDetails(map[string]any{"field": name, "reason": "must be a non-negative integer"})
	}
	return v, nil
}

// singular turns a slug into the label used in API messages.
func singular(slug string) string {
	label := strings.TrimSuffix(slug, "s")
	if label == "" {
		return slug
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
