package web_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/arhipvp/hw05-final/internal/adapters/primary/web"
	"github.com/arhipvp/hw05-final/internal/adapters/secondary/eventbroker"
	"github.com/arhipvp/hw05-final/internal/adapters/secondary/media"
	"github.com/arhipvp/hw05-final/internal/adapters/secondary/repository"
	"github.com/arhipvp/hw05-final/internal/adapters/secondary/security"
	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/services"
)

const testIssuer = "test-identity"

// manualCache est un ResponseCache dont l'expiration est pilotée par le test.
type manualCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newManualCache() *manualCache {
	return &manualCache{entries: make(map[string][]byte)}
}

func (c *manualCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *manualCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *manualCache) expireAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
}

// captureRenderer délègue aux vrais templates et garde le dernier contexte rendu.
type captureRenderer struct {
	inner web.Renderer
	mu    sync.Mutex
	name  string
	data  *web.ViewData
}

func (c *captureRenderer) Render(w io.Writer, name string, data *web.ViewData) error {
	c.mu.Lock()
	c.name, c.data = name, data
	c.mu.Unlock()
	return c.inner.Render(w, name, data)
}

func (c *captureRenderer) last() (string, *web.ViewData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name, c.data
}

type testEnv struct {
	t         *testing.T
	handler   http.Handler
	store     *repository.SQLiteStore
	cache     *manualCache
	renderer  *captureRenderer
	mediaRoot string
	key       *rsa.PrivateKey
}

type envOption func(*web.Options)

func withCacheTTL(ttl time.Duration) envOption {
	return func(o *web.Options) { o.IndexCacheTTL = ttl }
}

func withRateLimit(rps float64, burst int) envOption {
	return func(o *web.Options) { o.RateLimitRPS, o.RateLimitBurst = rps, burst }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := repository.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := repository.NewSQLiteStore(db)

	mediaRoot := t.TempDir()
	storage, err := media.NewLocalStorage(mediaRoot)
	require.NoError(t, err)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	verifier, err := security.NewJWTVerifier(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), testIssuer)
	require.NoError(t, err)

	pub := eventbroker.NoopPublisher{}
	postSvc := services.NewPostService(store.Posts, store.Groups, store.Users, store.Follows, store.Comments, storage, pub, 10)
	commentSvc := services.NewCommentService(store.Posts, store.Comments, pub)
	followSvc := services.NewFollowService(store.Follows, store.Users, store.Posts, pub, 10)
	authSvc := services.NewAuthService(verifier, store.Users)

	tpl, err := web.NewTemplateRenderer()
	require.NoError(t, err)
	renderer := &captureRenderer{inner: tpl}
	cache := newManualCache()

	options := web.Options{
		ServiceName:   "yatube_test",
		LoginURL:      "/auth/login/",
		IndexCacheTTL: 0,
		MediaRoot:     mediaRoot,
	}
	for _, o := range opts {
		o(&options)
	}

	srv := web.NewServer(web.Deps{
		Posts:    postSvc,
		Comments: commentSvc,
		Follows:  followSvc,
		Auth:     authSvc,
		Cache:    cache,
		Renderer: renderer,
	}, options)

	return &testEnv{
		t:         t,
		handler:   srv.Handler(),
		store:     store,
		cache:     cache,
		renderer:  renderer,
		mediaRoot: mediaRoot,
		key:       key,
	}
}

func (e *testEnv) user(username string) *domain.User {
	e.t.Helper()
	u := &domain.User{Username: username}
	require.NoError(e.t, e.store.Users.Save(context.Background(), u))
	return u
}

func (e *testEnv) group(title, slug string) *domain.Group {
	e.t.Helper()
	g := &domain.Group{Title: title, Slug: slug, Description: title + " description"}
	require.NoError(e.t, e.store.Groups.Save(context.Background(), g))
	return g
}

func (e *testEnv) post(author *domain.User, text string, group *domain.Group) *domain.Post {
	e.t.Helper()
	var gid *int64
	if group != nil {
		gid = &group.ID
	}
	p := domain.NewPost(author, text, gid, "")
	require.NoError(e.t, e.store.Posts.Save(context.Background(), p))
	return p
}

func (e *testEnv) token(u *domain.User) string {
	e.t.Helper()
	claims := security.UserClaims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(e.key)
	require.NoError(e.t, err)
	return s
}

func (e *testEnv) do(req *http.Request, as *domain.User) *httptest.ResponseRecorder {
	e.t.Helper()
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(as))
	}
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string, as *domain.User) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil), as)
}

func (e *testEnv) postForm(path string, values url.Values, as *domain.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req, as)
}

func (e *testEnv) postMultipart(path string, fields map[string]string, filename string, file []byte, as *domain.User) *httptest.ResponseRecorder {
	e.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(e.t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(e.t, err)
		_, err = fw.Write(file)
		require.NoError(e.t, err)
	}
	require.NoError(e.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req, as)
}

func (e *testEnv) lastView() *web.ViewData {
	_, data := e.renderer.last()
	return data
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func detailPath(p *domain.Post) string {
	return "/posts/" + strconv.FormatInt(p.ID, 10) + "/"
}
