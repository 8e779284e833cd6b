package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/2beens/portfolio/internal/cache"
	"github.com/2beens/portfolio/internal/telemetry/tracing"
	"github.com/2beens/portfolio/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const allProjectsCacheKey = "projects::all"

type projectsRepo interface {
	Add(ctx context.Context, project *Project) error
	Update(ctx context.Context, project *Project) error
	Delete(ctx context.Context, id int) error
	Get(ctx context.Context, id int) (*Project, error)
	All(ctx context.Context) ([]*Project, error)
}

type Handler struct {
	repo  projectsRepo
	cache cache.Cache
}

func NewHandler(repo projectsRepo, contentCache cache.Cache) *Handler {
	return &Handler{
		repo:  repo,
		cache: contentCache,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/projects", handler.handleAll).Methods("GET").Name("projects")
	router.HandleFunc("/projects/{id:[0-9]+}", handler.handleGet).Methods("GET").Name("project")
	router.HandleFunc("/projects", handler.handleAdd).Methods("POST").Name("new-project")
	router.HandleFunc("/projects/{id:[0-9]+}", handler.handleUpdate).Methods("PUT").Name("update-project")
	router.HandleFunc("/projects/{id:[0-9]+}", handler.handleDelete).Methods("DELETE").Name("delete-project")
}

func (handler *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "projectsHandler.all")
	defer span.End()

	if cached, found := handler.cache.Get(allProjectsCacheKey); found {
		pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, cached)
		return
	}

	projects, err := handler.repo.All(ctx)
	if err != nil {
		log.Errorf("get all projects: %s", err)
		http.Error(w, "get projects failed", http.StatusInternalServerError)
		return
	}

	projectsBytes, err := json.Marshal(projects)
	if err != nil {
		log.Errorf("marshal projects: %s", err)
		http.Error(w, "get projects failed", http.StatusInternalServerError)
		return
	}

	handler.cache.Set(allProjectsCacheKey, projectsBytes)
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, projectsBytes)
}

func (handler *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pkg.PathInt(r, "id")
	if err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	project, err := handler.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Errorf("get project %d: %s", id, err)
		http.Error(w, "get project failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, http.StatusOK, project)
}

func (handler *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var project Project
	if err := pkg.DecodeJSONBody(w, r, &project); err != nil {
		log.Debugf("new project, decode body: %s", err)
		http.Error(w, "invalid project payload", http.StatusBadRequest)
		return
	}
	if err := project.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	project.ID = 0
	if err := handler.repo.Add(r.Context(), &project); err != nil {
		log.Errorf("add new project failed: %s", err)
		http.Error(w, "add new project failed", http.StatusInternalServerError)
		return
	}

	handler.cache.Invalidate(allProjectsCacheKey)
	log.Tracef("new project %d: [%s] added", project.ID, project.Title)

	pkg.WriteJSON(w, http.StatusCreated, project)
}

func (handler *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pkg.PathInt(r, "id")
	if err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	var project Project
	if err := pkg.DecodeJSONBody(w, r, &project); err != nil {
		log.Debugf("update project, decode body: %s", err)
		http.Error(w, "invalid project payload", http.StatusBadRequest)
		return
	}
	if err := project.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	project.ID = id
	if err := handler.repo.Update(r.Context(), &project); err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Errorf("update project %d failed: %s", id, err)
		http.Error(w, "update project failed", http.StatusInternalServerError)
		return
	}

	handler.cache.Invalidate(allProjectsCacheKey)
	pkg.WriteTextResponseOK(w, fmt.Sprintf("updated:%d", id))
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pkg.PathInt(r, "id")
	if err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete project %d failed: %s", id, err)
		http.Error(w, "delete project failed", http.StatusInternalServerError)
		return
	}

	handler.cache.Invalidate(allProjectsCacheKey)
	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%d", id))
}
