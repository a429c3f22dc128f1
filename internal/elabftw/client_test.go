package elabftw

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/eln-import/internal/record"
)

func TestClient_CreateEntity(t *testing.T) {
	t.Run("parses the id from the Location header", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotBody map[string]interface{}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Header().Set("Location", "https://elab.example.org/api/v2/experiments/42")
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		client := NewClient(server.URL, "3-secret", false)
		id, err := client.CreateEntity(context.Background(), record.KindExperiment, "Sample A", []string{"chemistry"})
		require.NoError(t, err)

		assert.Equal(t, 42, id)
		assert.Equal(t, "/experiments", gotPath)
		assert.Equal(t, "3-secret", gotAuth)
		assert.Equal(t, "Sample A", gotBody["title"])
		assert.Equal(t, []interface{}{"chemistry"}, gotBody["tags"])
	})

	t.Run("templates go to the template endpoint", func(t *testing.T) {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.Header().Set("Location", "/api/v2/experiments_templates/7")
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		client := NewClient(server.URL, "3-secret", false)
		id, err := client.CreateEntity(context.Background(), record.KindTemplate, "Template", nil)
		require.NoError(t, err)

		assert.Equal(t, 7, id)
		assert.Equal(t, "/experiments_templates", gotPath)
	})

	t.Run("non-201 status is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := NewClient(server.URL, "3-secret", false)
		_, err := client.CreateEntity(context.Background(), record.KindExperiment, "Sample A", nil)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	})

	t.Run("missing Location header is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		client := NewClient(server.URL, "3-secret", false)
		_, err := client.CreateEntity(context.Background(), record.KindExperiment, "Sample A", nil)
		assert.ErrorIs(t, err, ErrMissingLocation)
	})
}

func TestClient_UploadFile(t *testing.T) {
	t.Run("uploads and reads back the storage name", func(t *testing.T) {
		uploadPath := filepath.Join(t.TempDir(), "image.png")
		require.NoError(t, os.WriteFile(uploadPath, []byte("png-bytes"), 0o644))

		var gotComment, gotFilename, gotContent string

		mux := http.NewServeMux()
		mux.HandleFunc("POST /experiments/42/uploads", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			gotComment = r.FormValue("comment")

			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			gotFilename = header.Filename
			content, err := io.ReadAll(file)
			require.NoError(t, err)
			gotContent = string(content)

			w.Header().Set("Location", "/api/v2/experiments/42/uploads/99")
			w.WriteHeader(http.StatusCreated)
		})
		mux.HandleFunc("GET /experiments/42/uploads/99", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id": 99, "real_name": "image.png", "long_name": "abc123-long.png"}`)
		})

		server := httptest.NewServer(mux)
		defer server.Close()

		client := NewClient(server.URL, "3-secret", false)
		longName, err := client.UploadFile(context.Background(), record.KindExperiment, 42, uploadPath, "a microscope shot")
		require.NoError(t, err)

		assert.Equal(t, "abc123-long.png", longName)
		assert.Equal(t, "a microscope shot", gotComment)
		assert.Equal(t, "image.png", gotFilename)
		assert.Equal(t, "png-bytes", gotContent)
	})

	t.Run("non-201 upload status is an error", func(t *testing.T) {
		uploadPath := filepath.Join(t.TempDir(), "image.png")
		require.NoError(t, os.WriteFile(uploadPath, []byte("png-bytes"), 0o644))

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		client := NewClient(server.URL, "3-secret", false)
		_, err := client.UploadFile(context.Background(), record.KindExperiment, 42, uploadPath, "")

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	})

	t.Run("missing local file is an error", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:0", "3-secret", false)
		_, err := client.UploadFile(context.Background(), record.KindExperiment, 42, filepath.Join(t.TempDir(), "absent.png"), "")
		require.Error(t, err)
	})
}

func TestClient_UpdateBody(t *testing.T) {
	t.Run("patches the entity body", func(t *testing.T) {
		var gotMethod, gotPath string
		var gotBody map[string]string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewClient(server.URL, "3-secret", false)
		err := client.UpdateBody(context.Background(), record.KindTemplate, 7, "<p>final body</p>")
		require.NoError(t, err)

		assert.Equal(t, http.MethodPatch, gotMethod)
		assert.Equal(t, "/experiments_templates/7", gotPath)
		assert.Equal(t, "<p>final body</p>", gotBody["body"])
	})

	t.Run("non-2xx patch status is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := NewClient(server.URL, "3-secret", false)
		err := client.UpdateBody(context.Background(), record.KindExperiment, 42, "body")

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
	})
}
