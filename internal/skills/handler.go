package skills

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

const allSkillsCacheKey = "skills::all"

type skillsRepo interface {
	Add(ctx context.Context, skill *Skill) error
	Update(ctx context.Context, skill *Skill) error
	Delete(ctx context.Context, id int) error
	All(ctx context.Context) ([]*Skill, error)
}

type Handler struct {
	repo  skillsRepo
	cache cache.Cache
}

func NewHandler(repo skillsRepo, contentCache cache.Cache) *Handler {
	return &Handler{
		repo:  repo,
		cache: contentCache,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/skills", handler.handleAll).Methods("GET").Name("skills")
	router.HandleFunc("/skills", handler.handleAdd).Methods("POST").Name("new-skill")
	router.HandleFunc("/skills/{id:[0-9]+}", handler.handleUpdate).Methods("PUT").Name("update-skill")
	router.HandleFunc("/skills/{id:[0-9]+}", handler.handleDelete).Methods("DELETE").Name("delete-skill")
}

func (handler *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	if cached, found := handler.cache.Get(allSkillsCacheKey); found {
		pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, cached)
		return
	}

	skills, err := handler.repo.All(r.Context())
	if err != nil {
		log.Errorf("get all skills: %s", err)
		http.Error(w, "get skills failed", http.StatusInternalServerError)
		return
	}

	skillsBytes, err := json.Marshal(skills)
	if err != nil {
		log.Errorf("marshal skills: %s", err)
		http.Error(w, "get skills failed", http.StatusInternalServerError)
		return
	}

	handler.cache.Set(allSkillsCacheKey, skillsBytes)
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, skillsBytes)
}

func (handler *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var skill Skill
	if err := pkg.DecodeJSONBody(w, r, &skill); err != nil {
		http.Error(w, "invalid skill payload", http.StatusBadRequest)
		return
	}
	if err := skill.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	skill.ID = 0
	if err := handler.repo.Add(r.Context(), &skill); err != nil {
		if errors.Is(err, ErrSkillExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		log.Errorf("add new skill failed: %s", err)
		http.Error(w, "add new skill failed", http.StatusInternalServerError)
		return
	}

	handler.cache.Invalidate(allSkillsCacheKey)
	pkg.WriteJSON(w, http.StatusCreated, skill)
}

func (handler *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pkg.PathInt(r, "id")
	if err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	var skill Skill
	if err := pkg.DecodeJSONBody(w, r, &skill); err != nil {
		http.Error(w, "invalid skill payload", http.StatusBadRequest)
		return
	}
	if err := skill.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	skill.ID = id
	if err := handler.repo.Update(r.Context(), &skill); err != nil {
		switch {
		case errors.Is(err, ErrSkillNotFound):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, ErrSkillExists):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			log.Errorf("update skill %d failed: %s", id, err)
			http.Error(w, "update skill failed", http.StatusInternalServerError)
		}
		return
	}

	handler.cache.Invalidate(allSkillsCacheKey)
	pkg.WriteTextResponseOK(w, fmt.Sprintf("updated:%d", id))
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pkg.PathInt(r, "id")
	if err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrSkillNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete skill %d failed: %s", id, err)
		http.Error(w, "delete skill failed", http.StatusInternalServerError)
		return
	}

	handler.cache.Invalidate(allSkillsCacheKey)
	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%d", id))
}
