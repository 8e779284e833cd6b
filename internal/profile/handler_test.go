package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2beens/portfolio/internal/cache"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repoMock struct {
	profile  *Profile
	getCalls int
	saveErr  error
}

func (r *repoMock) Get(_ context.Context) (*Profile, error) {
	r.getCalls++
	if r.profile == nil {
		return nil, ErrProfileNotFound
	}
	p := *r.profile
	return &p, nil
}

func (r *repoMock) Save(_ context.Context, p *Profile) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	stored := *p
	r.profile = &stored
	return nil
}

func fakeProfile() Profile {
	return Profile{
		FullName: gofakeit.Name(),
		Headline: gofakeit.JobTitle(),
		Bio:      gofakeit.Paragraph(1, 3, 10, " "),
		Location: gofakeit.City(),
		Email:    gofakeit.Email(),
		Links: map[string]string{
			"github": "https://github.com/" + gofakeit.Username(),
		},
	}
}

func newTestRouter(repo *repoMock) *mux.Router {
	r := mux.NewRouter()
	NewHandler(repo, cache.NewContentCache(1, time.Minute)).SetupRoutes(r)
	return r
}

func TestProfileHandler_GetMissing(t *testing.T) {
	r := newTestRouter(&repoMock{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/profile", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProfileHandler_SaveAndGet(t *testing.T) {
	repo := &repoMock{}
	r := newTestRouter(repo)

	want := fakeProfile()
	body, err := json.Marshal(want)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("PUT", "/profile", strings.NewReader(string(body))))
	require.Equal(t, http.StatusOK, rr.Code)

	for i := 0; i < 3; i++ {
		rr = httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/profile", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var got Profile
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 1, repo.getCalls)

	// saving again drops the cached copy
	want.Headline = "Staff Engineer"
	body, err = json.Marshal(want)
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("PUT", "/profile", strings.NewReader(string(body))))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/profile", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Staff Engineer")
	assert.Equal(t, 2, repo.getCalls)
}

func TestProfileHandler_SaveInvalid(t *testing.T) {
	r := newTestRouter(&repoMock{})

	p := fakeProfile()
	p.Links["blog"] = "not a url"
	body, err := json.Marshal(p)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("PUT", "/profile", strings.NewReader(string(body))))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("PUT", "/profile", strings.NewReader(`{"full_name":"x","unknown":1}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProfileHandler_SaveFails(t *testing.T) {
	r := newTestRouter(&repoMock{saveErr: errors.New("db down")})

	body, err := json.Marshal(fakeProfile())
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("PUT", "/profile", strings.NewReader(string(body))))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
