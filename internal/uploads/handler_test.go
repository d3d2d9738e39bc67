package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
)

func TestPresignSignedHeadersExcludeContentLength(t *testing.T) {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
	}
	client := s3.NewFromConfig(cfg)
	presigner := s3.NewPresignClient(client)

	input := presignInput("bucket", "uploads/user/deal/deck.pdf")
	out, err := presigner.PresignPutObject(context.Background(), input)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}

	parsed, err := url.Parse(out.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}

	signed := parsed.Query().Get("X-Amz-SignedHeaders")
	if signed == "" {
		t.Fatalf("expected X-Amz-SignedHeaders")
	}
	if strings.Contains(signed, "content-length") {
		t.Fatalf("unexpected content-length in signed headers: %s", signed)
	}
	if !strings.Contains(signed, "host") {
		t.Fatalf("expected host in signed headers: %s", signed)
	}
}

type fakePresigner struct {
	key string
}

func (f *fakePresigner) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	f.key = key
	return "https://bucket.example/" + key + "?sig=1", nil
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "u1")
		c.Next()
	})
	h.RegisterRoutes(r.Group(""))
	return r
}

func multipartBody(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write([]byte(content))
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUploadHandlerStoresAndTriggers(t *testing.T) {
	f := newFixture(t)
	router := newRouter(NewHandler(f.svc, nil))

	body, ctype := multipartBody(t, "deck.pdf", "%PDF-1.4")
	req := httptest.NewRequest(http.MethodPost, "/deals/d1/documents", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		StoragePath string `json:"storagePath"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StoragePath != "uploads/u1/d1/deck.pdf" {
		t.Fatalf("unexpected storage path %q", resp.StoragePath)
	}
	if len(f.runner.started) != 1 {
		t.Fatalf("expected an async run, got %d", len(f.runner.started))
	}
}

func TestUploadHandlerRejectsUnsupportedType(t *testing.T) {
	f := newFixture(t)
	router := newRouter(NewHandler(f.svc, nil))

	body, ctype := multipartBody(t, "run.exe", "MZ")
	req := httptest.NewRequest(http.MethodPost, "/deals/d1/documents", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPresignHandler(t *testing.T) {
	f := newFixture(t)
	p := &fakePresigner{}
	router := newRouter(NewHandler(f.svc, p))

	do := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/uploads/presign", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(`{"fileName":"deck.pdf","sizeBytes":10}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without dealId, got %d", rec.Code)
	}
	if rec := do(`{"dealId":"d2","fileName":"deck.pdf","sizeBytes":10}`); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's deal, got %d", rec.Code)
	}

	rec := do(`{"dealId":"d1","fileName":"deck.pdf","contentType":"application/pdf","sizeBytes":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if p.key != "uploads/u1/d1/deck.pdf" {
		t.Fatalf("unexpected presigned key %q", p.key)
	}
}
