package files

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/2beens/portfolio/internal/telemetry/tracing"
	"github.com/2beens/portfolio/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	uploadFormField     = "file"
	multipartMemorySize = 8 << 20
)

type fileStore interface {
	Save(ctx context.Context, params SaveFileParams) (*File, error)
	Open(ctx context.Context, kind Kind, name string) (*File, *os.File, error)
	List(ctx context.Context, kind Kind) ([]*File, error)
	Latest(ctx context.Context, kind Kind) (*File, error)
	Delete(ctx context.Context, kind Kind, name string) error
}

type Handler struct {
	store          fileStore
	maxUploadBytes int64
}

func NewHandler(store fileStore, maxUploadBytes int64) *Handler {
	return &Handler{
		store:          store,
		maxUploadBytes: maxUploadBytes,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/files/cv", handler.handleLatestCV).Methods("GET").Name("cv")
	router.HandleFunc("/files/images/{name}", handler.handleImage).Methods("GET").Name("image")
	router.HandleFunc("/files/list/{kind}", handler.handleList).Methods("GET").Name("list-files")
	router.HandleFunc("/files/cv", handler.uploadHandler(KindCV)).Methods("POST", "OPTIONS").Name("upload-cv")
	router.HandleFunc("/files/images", handler.uploadHandler(KindImages)).Methods("POST", "OPTIONS").Name("upload-image")
	router.HandleFunc("/files/{kind}/{name}", handler.handleDelete).Methods("DELETE").Name("delete-file")
}

func (handler *Handler) handleLatestCV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	latest, err := handler.store.Latest(ctx, KindCV)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Errorf("get latest cv: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", latest.OriginalName))
	handler.serve(w, r, KindCV, latest.Name)
}

func (handler *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	handler.serve(w, r, KindImages, mux.Vars(r)["name"])
}

func (handler *Handler) serve(w http.ResponseWriter, r *http.Request, kind Kind, name string) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "fileHandler.serve")
	defer span.End()
	span.SetAttributes(attribute.String("file.name", name))

	info, file, err := handler.store.Open(ctx, kind, name)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Errorf("open file %s/%s: %s", kind, name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", info.ContentType)
	http.ServeContent(w, r, info.Name, info.CreatedAt, file)
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		http.Error(w, "unknown file kind", http.StatusBadRequest)
		return
	}

	list, err := handler.store.List(r.Context(), kind)
	if err != nil {
		log.Errorf("list %s files: %s", kind, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, http.StatusOK, list)
}

func (handler *Handler) uploadHandler(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.GlobalTracer.Start(r.Context(), "fileHandler.upload")
		defer span.End()

		if r.Method == http.MethodOptions {
			w.Header().Add("Allow", "POST, OPTIONS")
			w.WriteHeader(http.StatusOK)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, handler.maxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemorySize); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				http.Error(w, fmt.Sprintf("file too big, limit is %d bytes", handler.maxUploadBytes), http.StatusRequestEntityTooLarge)
				return
			}
			log.Debugf("upload %s, parse multipart form: %s", kind, err)
			http.Error(w, "invalid multipart form", http.StatusBadRequest)
			return
		}
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				log.Warnf("remove multipart temp files: %s", err)
			}
		}()

		file, header, err := r.FormFile(uploadFormField)
		if err != nil {
			http.Error(w, "error, file missing", http.StatusBadRequest)
			return
		}
		defer file.Close()

		saved, err := handler.store.Save(ctx, SaveFileParams{
			Kind:     kind,
			Filename: header.Filename,
			File:     file,
		})
		if err != nil {
			if errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrEmptyFile) {
				http.Error(w, fmt.Sprintf("error, %s", err), http.StatusUnsupportedMediaType)
				return
			}
			log.Errorf("upload %s file: %s", kind, err)
			http.Error(w, "failed to upload file", http.StatusInternalServerError)
			return
		}

		log.Tracef("new %s file added: %s [%s]", kind, saved.Name, saved.OriginalName)
		pkg.WriteJSON(w, http.StatusCreated, saved)
	}
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, err := ParseKind(vars["kind"])
	if err != nil {
		http.Error(w, "unknown file kind", http.StatusBadRequest)
		return
	}

	name := vars["name"]
	if err := handler.store.Delete(r.Context(), kind, name); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete file %s/%s: %s", kind, name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%s", name))
}
