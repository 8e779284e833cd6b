package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2beens/portfolio/internal/auth"
	"github.com/2beens/portfolio/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthMiddlewareHandler_AuthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockTokens := NewMocktokenChecker(ctrl)
	authMiddleware := middleware.NewAuthMiddlewareHandler(mockTokens)

	claimsFor := func(role auth.Role) *auth.Claims {
		return &auth.Claims{Username: "user-" + string(role), Role: role}
	}
	mockTokens.EXPECT().Check("admin-token").Return(claimsFor(auth.RoleAdmin), nil).AnyTimes()
	mockTokens.EXPECT().Check("editor-token").Return(claimsFor(auth.RoleEditor), nil).AnyTimes()
	mockTokens.EXPECT().Check("viewer-token").Return(claimsFor(auth.RoleViewer), nil).AnyTimes()
	mockTokens.EXPECT().Check("expired-token").Return(nil, auth.ErrExpired).AnyTimes()

	testCases := []struct {
		name               string
		path               string
		method             string
		token              string
		expectedStatusCode int
	}{
		{
			name:               "PublicContentWithoutToken",
			path:               "/projects",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "PublicProjectWithoutToken",
			path:               "/projects/12",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "PublicImageWithoutToken",
			path:               "/files/images/7c1b.png",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "ContactMessageWithoutToken",
			path:               "/messages",
			method:             "POST",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "LoginWithoutToken",
			path:               "/a/login",
			method:             "POST",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "Preflight",
			path:               "/projects/3",
			method:             "OPTIONS",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "CreateProjectWithoutToken",
			path:               "/projects",
			method:             "POST",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "ExpiredToken",
			path:               "/projects",
			method:             "POST",
			token:              "expired-token",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "EditorCreatesProject",
			path:               "/projects",
			method:             "POST",
			token:              "editor-token",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "ViewerCreatesProject",
			path:               "/projects",
			method:             "POST",
			token:              "viewer-token",
			expectedStatusCode: http.StatusForbidden,
		},
		{
			name:               "ViewerListsMessages",
			path:               "/messages/page/1/size/10",
			method:             "GET",
			token:              "viewer-token",
			expectedStatusCode: http.StatusForbidden,
		},
		{
			name:               "EditorListsMessages",
			path:               "/messages/page/1/size/10",
			method:             "GET",
			token:              "editor-token",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "EditorDeletesMessage",
			path:               "/messages/4",
			method:             "DELETE",
			token:              "editor-token",
			expectedStatusCode: http.StatusForbidden,
		},
		{
			name:               "AdminDeletesMessage",
			path:               "/messages/4",
			method:             "DELETE",
			token:              "admin-token",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "ViewerListsCVFiles",
			path:               "/files/list/cv",
			method:             "GET",
			token:              "viewer-token",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "ViewerUploadsImage",
			path:               "/files/images",
			method:             "POST",
			token:              "viewer-token",
			expectedStatusCode: http.StatusForbidden,
		},
		{
			name:               "EditorDeletesCV",
			path:               "/files/cv/0d6c.pdf",
			method:             "DELETE",
			token:              "editor-token",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "UnknownResource",
			path:               "/admin/panel",
			method:             "GET",
			token:              "admin-token",
			expectedStatusCode: http.StatusForbidden,
		},
		{
			name:               "SessionNeedsToken",
			path:               "/a/session",
			method:             "GET",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "SessionWithViewerToken",
			path:               "/a/session",
			method:             "GET",
			token:              "viewer-token",
			expectedStatusCode: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, tc.path, nil)
			require.NoError(t, err)
			if tc.token != "" {
				req.Header.Add("Authorization", "Bearer "+tc.token)
			}

			rr := httptest.NewRecorder()
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
			authMiddleware.AuthCheck()(handler).ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatusCode, rr.Code)
		})
	}
}

func TestAuthMiddlewareHandler_ClaimsInContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockTokens := NewMocktokenChecker(ctrl)
	authMiddleware := middleware.NewAuthMiddlewareHandler(mockTokens)

	claims := &auth.Claims{Username: "ana", Role: auth.RoleEditor, SessionID: "sid-1"}
	mockTokens.EXPECT().Check("tok").Return(claims, nil).Times(1)

	var got *auth.Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.ClaimsFromContext(r.Context())
	})

	req := httptest.NewRequest("PUT", "/profile", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	authMiddleware.AuthCheck()(handler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, claims, got)
}

func TestResourceForPath(t *testing.T) {
	for path, want := range map[string]auth.Resource{
		"/projects/3":            auth.ResourceProjects,
		"/skills":                auth.ResourceSkills,
		"/certificates/1":        auth.ResourceCertificates,
		"/messages/unread/count": auth.ResourceMessages,
		"/profile":               auth.ResourceProfile,
		"/files/cv":              auth.ResourceCV,
		"/files/list/images":     auth.ResourceImages,
		"/files/images/a.png":    auth.ResourceImages,
	} {
		got, ok := middleware.ResourceForPath(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	for _, path := range []string{"/", "/files", "/files/list", "/files/videos/a.mp4", "/blog"} {
		_, ok := middleware.ResourceForPath(path)
		assert.False(t, ok, path)
	}
}
