package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrodistri/agrodistri/internal/shared"
)

type memoryRepo struct {
	items map[string]Setting
}

func (m *memoryRepo) Get(ctx context.Context, key string) (Setting, error) {
	st, ok := m.items[key]
	if !ok {
		return Setting{}, fmt.Errorf("setting %q: %w", key, shared.ErrNotFound)
	}
	return st, nil
}

func (m *memoryRepo) Upsert(ctx context.Context, s Setting) error {
	m.items[s.Key] = s
	return nil
}

func (m *memoryRepo) All(ctx context.Context) ([]Setting, error) {
	var out []Setting
	for _, st := range m.items {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func TestValidateKey(t *testing.T) {
	for _, ok := range []string{"theme", "sidebar_width", "business.name", "a"} {
		assert.NoError(t, ValidateKey(ok), ok)
	}
	for _, bad := range []string{"", "Theme", "1theme", "theme-dark", "a" + strings.Repeat("b", 64)} {
		assert.ErrorIs(t, ValidateKey(bad), shared.ErrValidation, bad)
	}
}

func TestSetAndGet(t *testing.T) {
	svc := NewService(&memoryRepo{items: map[string]Setting{}})
	ctx := shared.ContextWithActor(context.Background(), "admin-1")

	st, err := svc.Set(ctx, "theme", " dark ")
	require.NoError(t, err)
	assert.Equal(t, "dark", st.Value)
	assert.Equal(t, "admin-1", st.UpdatedBy)

	_, err = svc.Set(ctx, "theme", "light")
	require.NoError(t, err)
	got, err := svc.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light", got.Value)

	_, err = svc.Get(ctx, "sidebar_width")
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Set(ctx, "logo", strings.Repeat("x", MaxValueLen+1))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestHandlerRoundTrip(t *testing.T) {
	h := NewHandler(slog.Default(), NewService(&memoryRepo{items: map[string]Setting{}}))
	r := chi.NewRouter()
	h.MountRoutes(r)

	req := httptest.NewRequest(http.MethodPut, "/business_name", strings.NewReader(`{"value":"CV Tani Jaya"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []Setting `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "CV Tani Jaya", body.Items[0].Value)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/Bad-Key", strings.NewReader(`{"value":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
