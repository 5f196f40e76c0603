package bundle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetcher_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.txt":
			w.Write([]byte("  [{\"name\":\"a\"}]\n\n"))
		default:
			http.Error(w, "gone", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewFetcher([]Service{
		{Name: "a", BundleURL: srv.URL + "/a.txt"},
		{Name: "b", BundleURL: srv.URL + "/b.txt"},
	}, srv.Client())

	got, err := f.Load(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, `[{"name":"a"}]`, got)

	_, err = f.Load(context.Background(), "b")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")

	_, err = f.Load(context.Background(), "c")
	require.True(t, errors.Is(err, ErrUnknownService))

	require.Equal(t, []string{"a", "b"}, f.Names())
}

func TestFetcher_LoadCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	f := NewFetcher([]Service{{Name: "a", BundleURL: srv.URL}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Load(ctx, "a")
	require.ErrorIs(t, err, context.Canceled)
}
