package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/config"
	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
)

func avatarGLB(t *testing.T) []byte {
	doc := scene.NewDocument()
	sc := doc.CreateScene("Scene")
	doc.Root().SetDefaultScene(sc)
	hips := doc.CreateNode("J_Bip_C_Hips")
	hips.Translation = mgl32.Vec3{0, 1, 0}
	sc.AddChild(hips)
	// nothing references it, prune drops it
	stray := doc.CreateAccessor("stray", scene.TypeScalar, scene.ComponentFloat)
	stray.Array = []float64{1, 2, 3}

	var buf bytes.Buffer
	require.NoError(t, gltfutils.WriteBinary(&buf, doc, gltfutils.WriteOptions{}))
	return buf.Bytes()
}

func upload(t *testing.T, h http.Handler, data []byte, steps string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("data", "avatar.vrm")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	if steps != "" {
		require.NoError(t, mw.WriteField("steps", steps))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newHandler() http.Handler {
	return NewServer(config.Default(), zap.NewNop()).Handler()
}

func TestProcess(t *testing.T) {
	rec := upload(t, newHandler(), avatarGLB(t), "prune")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "avatar_with_constraints.vrm")

	doc, err := gltfutils.ReadBytes(rec.Body.Bytes(), nil)
	require.NoError(t, err)
	assert.NotNil(t, doc.Root().FindNode("J_Bip_C_Hips"))
	assert.Empty(t, doc.Root().ListAccessors())
}

func TestProcessDefaultSteps(t *testing.T) {
	rec := upload(t, newHandler(), avatarGLB(t), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, err := gltfutils.ReadBytes(rec.Body.Bytes(), nil)
	require.NoError(t, err)
}

func TestProcessErrors(t *testing.T) {
	h := newHandler()

	rec := upload(t, h, avatarGLB(t), "prune,explode")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "explode")

	rec = upload(t, h, []byte("definitely not a model"), "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var jerr map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jerr))
	assert.NotEmpty(t, jerr["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/process", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/process", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSteps(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/steps", nil)
	rec := httptest.NewRecorder()
	newHandler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp stepsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Available, "ktx2")
	assert.Equal(t, config.Default().Pipeline.Steps, resp.Default)
}
