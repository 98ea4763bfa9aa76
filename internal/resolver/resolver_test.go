package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/later/internal/model"
	"github.com/hitoshi/later/internal/security"
)

// recordingRecorder はRecorderのテスト用実装。
type recordingRecorder struct {
	mu       sync.Mutex
	outcomes []string
	statuses []int
}

func (r *recordingRecorder) RecordResolve(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingRecorder) RecordHTTPStatus(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, code)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestResolver はhttptestサーバー（127.0.0.1）へ接続できるResolverを生成する。
func newTestResolver(t *testing.T, rec Recorder) *Resolver {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	r := New(cfg, security.NewPermissiveGuard(), rec)
	r.now = func() time.Time { return fixedNow }
	return r
}

func assertCode(t *testing.T, err error, want string) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %v", want, err)
	}
	if apiErr.Code != want {
		t.Fatalf("error code = %s, want %s (%v)", apiErr.Code, want, err)
	}
	return apiErr
}

const articleHTML = `<!DOCTYPE html>
<html><head><title>  Go &amp; Concurrency  </title></head>
<body><p>intro</p><img src="/a.png"></body></html>`

// TestResolve_TextWithRedirect はリダイレクト追跡後の最終URLでテキスト抽出することをテストする。
func TestResolve_TextWithRedirect(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page" {
			http.Redirect(w, r, "/page/", http.StatusMovedPermanently)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.Method == http.MethodGet {
			fmt.Fprint(w, articleHTML)
		}
	}))
	defer ts.Close()

	rec := &recordingRecorder{}
	meta, err := newTestResolver(t, rec).Resolve(context.Background(), ts.URL+"/page")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if meta.NormalURL != ts.URL+"/page" {
		t.Errorf("NormalURL = %q, want %q", meta.NormalURL, ts.URL+"/page")
	}
	if meta.ResolvedURL != ts.URL+"/page/" {
		t.Errorf("ResolvedURL = %q, want %q", meta.ResolvedURL, ts.URL+"/page/")
	}
	if meta.MimeType != model.ContentClassText {
		t.Errorf("MimeType = %q, want text", meta.MimeType)
	}
	if meta.Title != "Go & Concurrency" {
		t.Errorf("Title = %q, want %q", meta.Title, "Go & Concurrency")
	}
	if !meta.HasImage {
		t.Error("HasImage should be true")
	}
	if meta.HasVideo {
		t.Error("HasVideo should be false")
	}
	if !meta.DateResolved.Equal(fixedNow) {
		t.Errorf("DateResolved = %v, want %v", meta.DateResolved, fixedNow)
	}

	if len(rec.outcomes) != 1 || rec.outcomes[0] != "ok" {
		t.Errorf("outcomes = %v, want [ok]", rec.outcomes)
	}
	if len(rec.statuses) != 1 || rec.statuses[0] != http.StatusOK {
		t.Errorf("statuses = %v, want [200]", rec.statuses)
	}
}

// TestResolve_MissingContentTypeIsText はContent-Typeがない場合にtextとして扱うことをテストする。
func TestResolve_MissingContentTypeIsText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Untyped</title></head><body><video src="v.mp4"></video></body></html>`)
	}))
	defer ts.Close()

	meta, err := newTestResolver(t, nil).Resolve(context.Background(), ts.URL+"/untyped")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if meta.MimeType != model.ContentClassText {
		t.Errorf("MimeType = %q, want text", meta.MimeType)
	}
	if meta.Title != "Untyped" {
		t.Errorf("Title = %q, want Untyped", meta.Title)
	}
	if meta.HasImage || !meta.HasVideo {
		t.Errorf("HasImage = %v, HasVideo = %v, want false/true", meta.HasImage, meta.HasVideo)
	}
}

// TestResolve_Image は画像URLのタイトルがパス末尾になることをテストする。
func TestResolve_Image(t *testing.T) {
	var gets int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets++
		}
		w.Header().Set("Content-Type", "image/png")
	}))
	defer ts.Close()

	meta, err := newTestResolver(t, nil).Resolve(context.Background(), ts.URL+"/photos/cat%20pic.png")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if meta.MimeType != model.ContentClassImage {
		t.Errorf("MimeType = %q, want image", meta.MimeType)
	}
	if meta.Title != "cat pic.png" {
		t.Errorf("Title = %q, want %q", meta.Title, "cat pic.png")
	}
	if !meta.HasImage || meta.HasVideo {
		t.Errorf("HasImage = %v, HasVideo = %v, want true/false", meta.HasImage, meta.HasVideo)
	}
	if gets != 0 {
		t.Errorf("画像の抽出でGETは発行されないはず: %d回", gets)
	}
}

// TestResolve_VideoAtRoot はパスが空の動画URLでホスト名がタイトルになることをテストする。
func TestResolve_VideoAtRoot(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
	}))
	defer ts.Close()

	meta, err := newTestResolver(t, nil).Resolve(context.Background(), ts.URL+"/")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if meta.MimeType != model.ContentClassVideo {
		t.Errorf("MimeType = %q, want video", meta.MimeType)
	}
	if meta.Title != "127.0.0.1" {
		t.Errorf("Title = %q, want 127.0.0.1", meta.Title)
	}
	if meta.HasImage || !meta.HasVideo {
		t.Errorf("HasImage = %v, HasVideo = %v, want false/true", meta.HasImage, meta.HasVideo)
	}
}

// TestResolve_StatusErrors はリモートのステータスコードによるエラー分類をテストする。
func TestResolve_StatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode string
	}{
		{"401はACCESS_DENIED", http.StatusUnauthorized, model.ErrCodeAccessDenied},
		{"400はUPSTREAM_ERROR", http.StatusBadRequest, model.ErrCodeUpstreamError},
		{"404はUPSTREAM_ERROR", http.StatusNotFound, model.ErrCodeUpstreamError},
		{"503はUPSTREAM_ERROR", http.StatusServiceUnavailable, model.ErrCodeUpstreamError},
		{"未定義コード", 599, model.ErrCodeUnknownStatusCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			rec := &recordingRecorder{}
			_, err := newTestResolver(t, rec).Resolve(context.Background(), ts.URL+"/x")
			apiErr := assertCode(t, err, tt.wantCode)

			if tt.wantCode == model.ErrCodeUpstreamError && apiErr.UpstreamStatus != tt.status {
				t.Errorf("UpstreamStatus = %d, want %d", apiErr.UpstreamStatus, tt.status)
			}
			want := strings.ToLower(tt.wantCode)
			if len(rec.outcomes) != 1 || rec.outcomes[0] != want {
				t.Errorf("outcomes = %v, want [%s]", rec.outcomes, want)
			}
		})
	}
}

// TestResolve_UnsupportedContentType はtext/image/video以外のContent-Typeを拒否することをテストする。
func TestResolve_UnsupportedContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
	}))
	defer ts.Close()

	_, err := newTestResolver(t, nil).Resolve(context.Background(), ts.URL+"/api")
	apiErr := assertCode(t, err, model.ErrCodeUnsupportedContentType)
	if apiErr.ContentType != "application/json" {
		t.Errorf("ContentType = %q, want application/json", apiErr.ContentType)
	}
}

// TestResolve_ConnectionFailure は接続できないサーバーでCONNECTION_FAILUREになることをテストする。
func TestResolve_ConnectionFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := ts.URL
	ts.Close()

	_, err := newTestResolver(t, nil).Resolve(context.Background(), addr+"/gone")
	assertCode(t, err, model.ErrCodeConnectionFailure)
}

// TestResolve_Canceled は呼び出し元のキャンセルでINTERRUPTED_OPERATIONになることをテストする。
func TestResolve_Canceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestResolver(t, nil).Resolve(ctx, ts.URL+"/slow")
	assertCode(t, err, model.ErrCodeInterruptedOperation)
}

// TestResolve_MalformedURL はネットワークアクセス前に構文エラーを検出することをテストする。
func TestResolve_MalformedURL(t *testing.T) {
	r := newTestResolver(t, nil)

	for _, raw := range []string{
		"",
		"   ",
		"not a url",
		"example.com/path",
		"ftp://example.com/file",
		"http://",
		"http://[::1",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), raw)
			assertCode(t, err, model.ErrCodeMalformedURL)
		})
	}
}

// TestResolve_SSRFBlocked はSSRFGuard使用時にループバックやプライベートIPが拒否されることをテストする。
func TestResolve_SSRFBlocked(t *testing.T) {
	r := New(DefaultConfig(), security.NewSSRFGuard(), nil)

	for _, raw := range []string{
		"http://127.0.0.1/admin",
		"http://localhost:8080/",
		"http://169.254.169.254/latest/meta-data/",
		"http://10.1.2.3/",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), raw)
			assertCode(t, err, model.ErrCodeSSRFBlocked)
		})
	}
}

// TestResolve_TooManyRedirects はリダイレクト上限超過がCONNECTION_FAILUREになることをテストする。
func TestResolve_TooManyRedirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	}))
	defer ts.Close()

	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.MaxRedirects = 3
	r := New(cfg, security.NewPermissiveGuard(), nil)

	_, err := r.Resolve(context.Background(), ts.URL+"/a")
	assertCode(t, err, model.ErrCodeConnectionFailure)
}

// TestClassify はContent-Typeの分類をテストする。
func TestClassify(t *testing.T) {
	tests := []struct {
		in      string
		want    model.ContentClass
		wantErr bool
	}{
		{"", model.ContentClassText, false},
		{"*/*", model.ContentClassText, false},
		{"*", model.ContentClassText, false},
		{"text/html; charset=utf-8", model.ContentClassText, false},
		{"TEXT/PLAIN", model.ContentClassText, false},
		{"image/jpeg", model.ContentClassImage, false},
		{"image/svg+xml", model.ContentClassImage, false},
		{"video/webm", model.ContentClassVideo, false},
		{"application/pdf", "", true},
		{"audio/mpeg", "", true},
		{"garbage;;", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := classify(tt.in)
			if tt.wantErr {
				if !model.IsCode(err, model.ErrCodeUnsupportedContentType) {
					t.Fatalf("classify(%q) error = %v, want UNSUPPORTED_CONTENT_TYPE", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("classify(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("classify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestCheckStatus は2xx/3xxが通過することをテストする。
func TestCheckStatus(t *testing.T) {
	for _, code := range []int{200, 204, 301, 304} {
		if err := checkStatus(code); err != nil {
			t.Errorf("checkStatus(%d) = %v, want nil", code, err)
		}
	}
}
