package projects

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var _ projectsRepo = (*repoMock)(nil)

type repoMock struct {
	Projects map[int]*Project
	mutex    sync.Mutex
	nextID   int
	allCalls int
	failAll  bool
}

func newRepoMock() *repoMock {
	return &repoMock{
		Projects: make(map[int]*Project),
		nextID:   1,
	}
}

func (r *repoMock) Add(_ context.Context, project *Project) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	project.ID = r.nextID
	r.nextID++
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now()
	}
	stored := *project
	r.Projects[project.ID] = &stored
	return nil
}

func (r *repoMock) Update(_ context.Context, project *Project) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	existing, ok := r.Projects[project.ID]
	if !ok {
		return ErrProjectNotFound
	}
	updated := *project
	updated.CreatedAt = existing.CreatedAt
	r.Projects[project.ID] = &updated
	return nil
}

func (r *repoMock) Delete(_ context.Context, id int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Projects[id]; !ok {
		return ErrProjectNotFound
	}
	delete(r.Projects, id)
	return nil
}

func (r *repoMock) Get(_ context.Context, id int) (*Project, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, ok := r.Projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

func (r *repoMock) All(_ context.Context) ([]*Project, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.allCalls++
	if r.failAll {
		return nil, errors.New("db down")
	}

	projects := []*Project{}
	for _, p := range r.Projects {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].ID < projects[j].ID
	})
	return projects, nil
}
