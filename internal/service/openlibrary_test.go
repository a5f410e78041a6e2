package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLibraryResolver_WorkIDForISBN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/isbn/111.json":
			w.Write([]byte(`{"works":[{"key":"/works/OL111W"}]}`))
		case "/isbn/222.json":
			w.Write([]byte(`{"works":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	resolver := NewOpenLibraryResolver(srv.URL)
	ctx := context.Background()

	workID, err := resolver.WorkIDForISBN(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, "OL111W", workID)

	workID, err = resolver.WorkIDForISBN(ctx, "222")
	require.NoError(t, err)
	assert.Empty(t, workID)

	workID, err = resolver.WorkIDForISBN(ctx, "999")
	require.NoError(t, err)
	assert.Empty(t, workID)
}
