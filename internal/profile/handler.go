package profile

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

const profileCacheKey = "profile"

type profileRepo interface {
	Get(ctx context.Context) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
}

type Handler struct {
	repo  profileRepo
	cache cache.Cache
}

func NewHandler(repo profileRepo, contentCache cache.Cache) *Handler {
	return &Handler{
		repo:  repo,
		cache: contentCache,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/profile", handler.handleGet).Methods("GET").Name("profile")
	router.HandleFunc("/profile", handler.handleSave).Methods("PUT").Name("update-profile")
}

func (handler *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if cached, found := handler.cache.Get(profileCacheKey); found {
		pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, cached)
		return
	}

	p, err := handler.repo.Get(r.Context())
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Errorf("get profile: %s", err)
		http.Error(w, "get profile failed", http.StatusInternalServerError)
		return
	}

	profileBytes, err := json.Marshal(p)
	if err != nil {
		log.Errorf("marshal profile: %s", err)
		http.Error(w, "get profile failed", http.StatusInternalServerError)
		return
	}

	handler.cache.Set(profileCacheKey, profileBytes)
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, profileBytes)
}

func (handler *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var p Profile
	if err := pkg.DecodeJSONBody(w, r, &p); err != nil {
		http.Error(w, "invalid profile payload", http.StatusBadRequest)
		return
	}
	if err := p.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Save(r.Context(), &p); err != nil {
		log.Errorf("save profile failed: %s", err)
		http.Error(w, "save profile failed", http.StatusInternalServerError)
		return
	}

	handler.cache.Invalidate(profileCacheKey)
	pkg.WriteJSON(w, http.StatusOK, p)
}
