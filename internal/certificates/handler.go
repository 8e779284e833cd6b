package certificates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/2beens/portfolio/internal/cache"
	"github.com/2beens/portfolio/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const allCertificatesCacheKey = "certificates::all"

type certificatesRepo interface {
	Add(ctx context.Context, cert *Certificate) error
	Update(ctx context.Context, cert *Certificate) error
	Delete(ctx context.Context, id int) error
	All(ctx context.Context) ([]*Certificate, error)
}

type Handler struct {
	repo  certificatesRepo
	cache cache.Cache
}

func NewHandler(repo certificatesRepo, contentCache cache.Cache) *Handler {
	return &Handler{
		repo:  repo,
		cache: contentCache,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/certificates", handler.handleAll).Methods("GET").Name("certificates")
	router.HandleFunc("/certificates", handler.handleAdd).Methods("POST").Name("new-certificate")
	router.HandleFunc("/certificates/{id:[0-9]+}", handler.handleUpdate).Methods("PUT").Name("update-certificate")
	router.HandleFunc("/certificates/{id:[0-9]+}", handler.handleDelete).Methods("DELETE").Name("delete-certificate")
}

func (handler *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	if cached, found := handler.cache.Get(allCertificatesCacheKey); found {
		pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, cached)
		return
	}

	certs, err := handler.repo.All(r.Context())
	if err != nil {
		log.Errorf("get all certificates: %s", err)
		http.Error(w, "get certificates failed", http.StatusInternalServerError)
		return
	}

	certsBytes, err := json.Marshal(certs)
	if err != nil {
		log.Errorf("marshal certificates: %s", err)
		http.Error(w, "get certificates failed", http.StatusInternalServerError)
		return
	}

	handler.cache.Set(allCertificatesCacheKey, certsBytes)
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, certsBytes)
}

func (handler *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var cert Certificate
	if err := pkg.DecodeJSONBody(w, r, &cert); err != nil {
		http.Error(w, "invalid certificate payload", http.StatusBadRequest)
		return
	}
	if err := cert.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	cert.ID = 0
	if err := handler.repo.Add(r.Context(), &cert); err != nil {
		log.Errorf("add new certificate failed: %s", err)
		http.Error(w, "add new certificate failed", http.StatusInternalServerError)
		return
	}

	handler.cache.Invalidate(allCertificatesCacheKey)
	pkg.WriteJSON(w, http.StatusCreated, cert)
}

func (handler *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pkg.PathInt(r, "id")
	if err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	var cert Certificate
	if err := pkg.DecodeJSONBody(w, r, &cert); err != nil {
		http.Error(w, "invalid certificate payload", http.StatusBadRequest)
		return
	}
	if err := cert.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	cert.ID = id
	if err := handler.repo.Update(r.Context(), &cert); err != nil {
		if errors.Is(err, ErrCertificateNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Errorf("update certificate %d failed: %s", id, err)
		http.Error(w, "update certificate failed", http.StatusInternalServerError)
		return
	}

	handler.cache.Invalidate(allCertificatesCacheKey)
	pkg.WriteTextResponseOK(w, fmt.Sprintf("updated:%d", id))
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pkg.PathInt(r, "id")
	if err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrCertificateNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete certificate %d failed: %s", id, err)
		http.Error(w, "delete certificate failed", http.StatusInternalServerError)
		return
	}

	handler.cache.Invalidate(allCertificatesCacheKey)
	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%d", id))
}
