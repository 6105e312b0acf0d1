package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tip-gate-backend/internal/middleware"
	"tip-gate-backend/internal/models"
	"tip-gate-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	result *services.ValidationResult
	err    error
	got    services.ValidationRequest
}

func (f *fakeChecker) Validate(_ context.Context, req services.ValidationRequest) (*services.ValidationResult, error) {
	f.got = req
	return f.result, f.err
}

type fakeGate struct {
	decision *services.RevealDecision
	err      error
	got      services.RevealRequest
}

func (f *fakeGate) Reveal(_ context.Context, req services.RevealRequest) (*services.RevealDecision, error) {
	f.got = req
	return f.decision, f.err
}

type fakeImages struct {
	images    map[string]*models.Image
	created   *services.CreateImageRequest
	finishErr error
	finished  []string
}

func (f *fakeImages) CreateImage(_ context.Context, _ models.FID, req services.CreateImageRequest) (*services.CreateImageResponse, error) {
	f.created = &req
	return &services.CreateImageResponse{ImageID: "new", OriginalUploadURL: "put-original", ObfuscatedUploadURL: "put-edited", ExpiresIn: 300}, nil
}

func (f *fakeImages) GetImage(_ context.Context, id string) (*models.Image, error) {
	img, ok := f.images[id]
	if !ok {
		return nil, services.ErrImageNotFound
	}
	return img, nil
}

func (f *fakeImages) ObfuscatedURL(_ context.Context, image *models.Image) (string, error) {
	return "https://cdn/" + image.ID + "/edited", nil
}

func (f *fakeImages) OriginalURL(_ context.Context, image *models.Image) (string, error) {
	return "https://cdn/" + image.ID + "/original", nil
}

func (f *fakeImages) FinishContest(_ context.Context, imageID string, _ models.FID) error {
	if f.finishErr != nil {
		return f.finishErr
	}
	f.finished = append(f.finished, imageID)
	return nil
}

type fakeTokens struct{}

func (fakeTokens) IssueToken(fid models.FID) (string, error) { return "tok-" + fid.String(), nil }

func (fakeTokens) ValidateToken(token string) (models.FID, error) {
	if token != "tok-42" {
		return 0, errors.New("bad token")
	}
	return 42, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const validBody = `{"imageId":"img-1","requester":"42","minFee":100,"parentCast":{"fid":7,"hash":"0xabc"}}`

func TestValidateTip(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		result   *services.ValidationResult
		err      error
		wantCode int
		want     map[string]any
	}{
		{
			name:     "valid",
			body:     validBody,
			result:   &services.ValidationResult{Status: models.StatusValid, TipsGiven: 250},
			wantCode: http.StatusOK,
			want:     map[string]any{"message": services.MessageTipValid, "degenTipsGiven": 250.0, "tipIsValid": true},
		},
		{
			name:     "over allowance",
			body:     validBody,
			result:   &services.ValidationResult{Status: models.StatusInvalid, TipsGiven: 900},
			wantCode: http.StatusOK,
			want:     map[string]any{"message": services.MessageTipValid, "degenTipsGiven": 900.0, "tipIsValid": false},
		},
		{
			name:     "not found",
			body:     validBody,
			result:   &services.ValidationResult{Status: models.StatusNotFound},
			wantCode: http.StatusNotFound,
			want:     map[string]any{"message": services.MessageTipNotFound},
		},
		{
			name:     "upstream failure",
			body:     validBody,
			result:   &services.ValidationResult{Status: models.StatusError},
			err:      errors.New("hub down"),
			wantCode: http.StatusInternalServerError,
			want:     map[string]any{"message": services.MessageInternal},
		},
		{
			name:     "missing min fee",
			body:     `{"imageId":"img-1","requester":42,"parentCast":{"fid":7,"hash":"0xabc"}}`,
			wantCode: http.StatusBadRequest,
			want:     map[string]any{"message": messageMissingFields},
		},
		{
			name:     "missing parent hash",
			body:     `{"imageId":"img-1","requester":42,"minFee":0,"parentCast":{"fid":7}}`,
			wantCode: http.StatusBadRequest,
			want:     map[string]any{"message": messageMissingFields},
		},
		{
			name:     "malformed",
			body:     `{`,
			wantCode: http.StatusBadRequest,
			want:     map[string]any{"message": messageMissingFields},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &fakeChecker{result: tt.result, err: tt.err}
			h := http.HandlerFunc(NewTipValidatorHandler(checker).ValidateTip)

			rec := do(t, h, http.MethodPost, "/validate-tip", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.want, decode(t, rec))
		})
	}
}

func TestValidateTip_PassesRequest(t *testing.T) {
	checker := &fakeChecker{result: &services.ValidationResult{Status: models.StatusValid}}
	rec := do(t, http.HandlerFunc(NewTipValidatorHandler(checker).ValidateTip), http.MethodPost, "/validate-tip", validBody)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, services.ValidationRequest{
		ImageID:    "img-1",
		Requester:  42,
		MinFee:     100,
		ParentCast: models.CastID{FID: 7, Hash: "0xabc"},
	}, checker.got)
}

func frameRouter(gate RevealGate, images *fakeImages) http.Handler {
	h := NewFrameHandler(gate, images, fakeTokens{}, "https://app.example/")
	r := chi.NewRouter()
	r.Post("/frames/{image_id}/reveal", h.Reveal)
	r.Post("/frames/create", h.Create)
	return r
}

func TestFrameReveal(t *testing.T) {
	image := &models.Image{ID: "img-1"}
	body := `{"fid":42,"cast_id":{"fid":7,"hash":"0xabc"}}`

	tests := []struct {
		name     string
		decision *services.RevealDecision
		err      error
		wantCode int
		wantURL  string
	}{
		{"reveal", &services.RevealDecision{Outcome: services.OutcomeReveal, Image: image}, nil, http.StatusOK, "https://cdn/img-1/original"},
		{"retry", &services.RevealDecision{Outcome: services.OutcomeRetryLater, Message: services.MessageStillValidating}, nil, http.StatusAccepted, ""},
		{"reject", &services.RevealDecision{Outcome: services.OutcomeReject, Message: services.MessageContestOpen}, nil, http.StatusForbidden, ""},
		{"unknown image", nil, services.ErrImageNotFound, http.StatusNotFound, ""},
		{"store failure", nil, errors.New("db down"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &fakeGate{decision: tt.decision, err: tt.err}
			rec := do(t, frameRouter(gate, &fakeImages{}), http.MethodPost, "/frames/img-1/reveal", body)
			assert.Equal(t, tt.wantCode, rec.Code)

			assert.Equal(t, "img-1", gate.got.ImageID)
			assert.Equal(t, models.FID(42), gate.got.RequesterFID)
			assert.Equal(t, models.CastID{FID: 7, Hash: "0xabc"}, gate.got.Cast)

			out := decode(t, rec)
			if tt.wantURL != "" {
				assert.Equal(t, tt.wantURL, out["original_url"])
			} else {
				assert.NotContains(t, out, "original_url")
			}
			if tt.decision != nil {
				assert.Equal(t, string(tt.decision.Outcome), out["outcome"])
			}
		})
	}
}

func TestFrameReveal_BadRequest(t *testing.T) {
	gate := &fakeGate{}
	for _, body := range []string{`{`, `{"cast_id":{"fid":7,"hash":"0xabc"}}`, `{"fid":42}`} {
		rec := do(t, frameRouter(gate, &fakeImages{}), http.MethodPost, "/frames/img-1/reveal", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, gate.got.ImageID)
}

func TestFrameCreate(t *testing.T) {
	rec := do(t, frameRouter(&fakeGate{}, &fakeImages{}), http.MethodPost, "/frames/create", `{"fid":"42"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	link, err := url.Parse(decode(t, rec)["url"].(string))
	require.NoError(t, err)
	assert.Equal(t, "app.example", link.Host)
	assert.Equal(t, "/edit-page", link.Path)
	assert.Equal(t, "42", link.Query().Get("fid"))
	assert.Equal(t, "tok-42", link.Query().Get("token"))

	rec = do(t, frameRouter(&fakeGate{}, &fakeImages{}), http.MethodPost, "/frames/create", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func imageRouter(images *fakeImages) http.Handler {
	h := NewImageHandler(images)
	r := chi.NewRouter()
	r.Get("/images/{image_id}", h.GetImage)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(fakeTokens{}))
		r.Post("/images", h.CreateImage)
		r.Post("/images/{image_id}/finish", h.FinishContest)
	})
	return r
}

func doAuthed(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestImageCreate(t *testing.T) {
	images := &fakeImages{}
	router := imageRouter(images)

	rec := do(t, router, http.MethodPost, "/images", `{"frame_type":"paywall","unlock_fee":100}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doAuthed(t, router, http.MethodPost, "/images", `{"frame_type":"paywall","unlock_fee":100}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "new", decode(t, rec)["image_id"])
	require.NotNil(t, images.created)
	assert.Equal(t, 100.0, images.created.UnlockFee)

	for _, body := range []string{
		`{"frame_type":"billboard"}`,
		`{"frame_type":"paywall"}`,
		`{"frame_type":"contest","note":"` + strings.Repeat("x", 281) + `"}`,
	} {
		rec = doAuthed(t, router, http.MethodPost, "/images", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestImageGet(t *testing.T) {
	images := &fakeImages{images: map[string]*models.Image{
		"img-1": {ID: "img-1", CreatorFID: "7", OriginalKey: "secret", IsPaywalled: true, UnlockFee: 50},
	}}
	router := imageRouter(images)

	rec := do(t, router, http.MethodGet, "/images/img-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "img-1", out["id"])
	assert.Equal(t, "https://cdn/img-1/edited", out["obfuscated_url"])
	assert.Equal(t, 50.0, out["unlock_fee"])
	assert.NotContains(t, rec.Body.String(), "secret")

	rec = do(t, router, http.MethodGet, "/images/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImageFinishContest(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{services.ErrImageNotFound, http.StatusNotFound},
		{services.ErrNotCreator, http.StatusForbidden},
		{services.ErrNotContest, http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		images := &fakeImages{finishErr: tt.err}
		rec := doAuthed(t, imageRouter(images), http.MethodPost, "/images/img-1/finish", "")
		assert.Equal(t, tt.want, rec.Code)
	}
}

func TestWebSocket(t *testing.T) {
	hub := services.NewWSHub()
	srv := httptest.NewServer(http.HandlerFunc(NewWebSocketHandler(hub, fakeTokens{}).HandleWebSocket))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=bad", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=tok-42", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(services.WSMessage{Type: "ping"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var msg services.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Type)
	assert.True(t, hub.IsOnline("42"))

	hub.ViewerStatusChanged(context.Background(), services.StatusChange{
		ImageID: "img-1", ViewerFID: "42", Status: models.StatusValid,
	})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "viewer_status", msg.Type)
	assert.Equal(t, "img-1", msg.ImageID)
}
