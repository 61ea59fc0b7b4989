package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studio-b12/gowebdav"

	"github.com/davshare/davshare/pkg/user"
)

const (
	testUser = "alice"
	testPass = "s3cret"
)

func newTestServer(t *testing.T, mode string) (*httptest.Server, string) {
	t.Helper()

	dataDir := t.TempDir()

	store, err := user.NewStore(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	require.NoError(t, store.Add(testUser, testPass))

	log := logrus.New()
	log.SetOutput(io.Discard)

	srv, err := New(Config{
		Addr:       ":0",
		DataDir:    dataDir,
		Prefix:     "/api",
		Mode:       mode,
		CORSOrigin: "*",
	}, store, log)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, dataDir
}

func request(t *testing.T, method, url string, withAuth bool) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	if withAuth {
		req.SetBasicAuth(testUser, testPass)
	}
	if method == "PROPFIND" {
		req.Header.Set("Depth", "1")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRewritePath(t *testing.T) {
	assert.Equal(t, "/foo", rewritePath("/api/foo", "/api"))
	assert.Equal(t, "/", rewritePath("/api", "/api"))
	assert.Equal(t, "/foo/bar", rewritePath("/api/foo/bar", "/api"))
	assert.Equal(t, "/foo", rewritePath("/foo", ""))
}

func TestUnauthorizedRequests(t *testing.T) {
	ts, _ := newTestServer(t, ModeDevelopment)

	for _, method := range []string{"GET", "PROPFIND", "PUT", "DELETE", "MKCOL"} {
		resp := request(t, method, ts.URL+"/api/", false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, method)
		assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic", method)
	}
}

func TestInvalidCredentials(t *testing.T) {
	ts, _ := newTestServer(t, ModeDevelopment)

	req, err := http.NewRequest("PROPFIND", ts.URL+"/api/", nil)
	require.NoError(t, err)
	req.SetBasicAuth(testUser, "wrong")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))
}

func TestOptionsAlwaysSucceeds(t *testing.T) {
	ts, _ := newTestServer(t, ModeDevelopment)

	for _, path := range []string{"/api", "/api/", "/api/some/file.txt", "/status", "/"} {
		resp := request(t, http.MethodOptions, ts.URL+path, false)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestCORSHeadersOnEveryResponse(t *testing.T) {
	ts, _ := newTestServer(t, ModeDevelopment)

	resp := request(t, "PROPFIND", ts.URL+"/api/", true)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PROPFIND")
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")

	resp = request(t, "PROPFIND", ts.URL+"/api/", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestEmptyOriginDisablesCORS(t *testing.T) {
	dataDir := t.TempDir()

	store, err := user.NewStore(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	require.NoError(t, store.Add(testUser, testPass))

	log := logrus.New()
	log.SetOutput(io.Discard)

	srv, err := New(Config{
		Addr:    ":0",
		DataDir: dataDir,
		Prefix:  "/api",
		Mode:    ModeDevelopment,
	}, store, log)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := request(t, "PROPFIND", ts.URL+"/api/", true)
	_, present := resp.Header["Access-Control-Allow-Origin"]
	assert.False(t, present, "no CORS headers without a configured origin")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))

	// OPTIONS still short-circuits regardless of the CORS policy
	resp = request(t, http.MethodOptions, ts.URL+"/api", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	ts, _ := newTestServer(t, ModeDevelopment)

	resp := request(t, "PROPFIND", ts.URL+"/api/", true)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "fixed-id")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, "fixed-id", resp2.Header.Get("X-Request-Id"))
}

func TestPropfindEnumeratesRoot(t *testing.T) {
	ts, dataDir := newTestServer(t, ModeDevelopment)

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dataDir, "sub"), 0755))

	c := gowebdav.NewClient(ts.URL+"/api", testUser, testPass)
	infos, err := c.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	names := map[string]os.FileInfo{}
	for _, fi := range infos {
		names[fi.Name()] = fi
	}
	require.Contains(t, names, "a.txt")
	require.Contains(t, names, "sub")
	assert.Equal(t, int64(5), names["a.txt"].Size())
	assert.True(t, names["sub"].IsDir())
}

func TestPutThenListThenDelete(t *testing.T) {
	ts, _ := newTestServer(t, ModeDevelopment)

	c := gowebdav.NewClient(ts.URL+"/api", testUser, testPass)
	content := []byte("some uploaded bytes")
	require.NoError(t, c.Write("/upload.bin", content, 0644))

	infos, err := c.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "upload.bin", infos[0].Name())
	assert.Equal(t, int64(len(content)), infos[0].Size())

	require.NoError(t, c.Remove("/upload.bin"))

	infos, err = c.ReadDir("/")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestPrefixIsStrippedBeforeEngine(t *testing.T) {
	ts, dataDir := newTestServer(t, ModeDevelopment)

	c := gowebdav.NewClient(ts.URL+"/api", testUser, testPass)
	require.NoError(t, c.Write("/foo.txt", []byte("x"), 0644))

	// The engine must see /foo.txt, so the file lands at the data root,
	// not under an api/ subdirectory.
	_, err := os.Stat(filepath.Join(dataDir, "foo.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dataDir, "api"))
	assert.True(t, os.IsNotExist(err))
}

func TestDestinationHeaderIsRewritten(t *testing.T) {
	ts, dataDir := newTestServer(t, ModeDevelopment)

	c := gowebdav.NewClient(ts.URL+"/api", testUser, testPass)
	require.NoError(t, c.Write("/a.txt", []byte("payload"), 0644))

	// COPY and MOVE carry the target as an absolute URL including the
	// mount prefix; the engine must see it stripped, or the copy would
	// materialize an api/ subtree.
	require.NoError(t, c.Copy("/a.txt", "/b.txt", false))
	require.NoError(t, c.Rename("/a.txt", "/c.txt", false))

	for _, name := range []string{"b.txt", "c.txt"} {
		_, err := os.Stat(filepath.Join(dataDir, name))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(dataDir, "a.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dataDir, "api"))
	assert.True(t, os.IsNotExist(err))
}

func TestStatusEndpoint(t *testing.T) {
	ts, dataDir := newTestServer(t, ModeDevelopment)

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dataDir, "sub"), 0755))

	resp := request(t, http.MethodGet, ts.URL+"/status", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 2, st.Items)
	assert.Equal(t, uint64(5), st.UsedBytes)

	resp = request(t, http.MethodGet, ts.URL+"/status", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEmbeddedUIOnlyInProduction(t *testing.T) {
	prod, _ := newTestServer(t, ModeProduction)
	resp := request(t, http.MethodGet, prod.URL+"/", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "davshare")

	dev, _ := newTestServer(t, ModeDevelopment)
	resp = request(t, http.MethodGet, dev.URL+"/", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthCacheStaysCorrect(t *testing.T) {
	ts, _ := newTestServer(t, ModeDevelopment)

	// same pair twice: second hit is served from the cache
	for i := 0; i < 2; i++ {
		resp := request(t, "PROPFIND", ts.URL+"/api/", true)
		assert.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	}

	// a cached success for one pair must not admit another
	req, err := http.NewRequest("PROPFIND", ts.URL+"/api/", nil)
	require.NoError(t, err)
	req.Header.Set("Depth", "1")
	req.SetBasicAuth(testUser, "still-wrong")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
