// Package resolver はURLを解決し、コンテンツ種別を判定してメタデータを抽出する。
//
// 解決は常に1回のHEADリクエストから始まり、リダイレクトはHTTPクライアントが透過的に追跡する。
// 最終レスポンスのContent-Typeでtext/image/videoに分類し、種別ごとのExtractorに処理を委譲する。
// 呼び出し間で状態は保持しない。
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/later/internal/model"
	"github.com/hitoshi/later/internal/security"
)

// Config はResolverの設定。構築時に1回渡され、以後変更されない。
type Config struct {
	Timeout      time.Duration // 1リクエストあたりのタイムアウト（リダイレクト追跡を含む）
	MaxRedirects int           // リダイレクト追跡の上限回数
	MaxBodySize  int64         // テキスト抽出時に読み込むボディの上限バイト数
	UserAgent    string
}

// DefaultConfig はデフォルト設定を返す。
func DefaultConfig() Config {
	return Config{
		Timeout:      120 * time.Second,
		MaxRedirects: 10,
		MaxBodySize:  5 * 1024 * 1024,
		UserAgent:    "later/1.0 (+reading-list resolver)",
	}
}

// Recorder は解決結果のメトリクスを記録するインターフェース。
type Recorder interface {
	RecordResolve(outcome string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

type nopRecorder struct{}

func (nopRecorder) RecordResolve(string, time.Duration) {}
func (nopRecorder) RecordHTTPStatus(int)                {}

// Resolver はURLのプローブ・分類・メタデータ抽出を行う。複数goroutineから安全に利用できる。
type Resolver struct {
	cfg        Config
	guard      security.URLGuard
	client     *http.Client
	extractors map[model.ContentClass]Extractor
	recorder   Recorder
	now        func() time.Time
}

// New はResolverを生成する。recorderがnilの場合はメトリクスを記録しない。
func New(cfg Config, guard security.URLGuard, recorder Recorder) *Resolver {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	client := guard.NewClient(security.ClientOptions{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
	})
	return &Resolver{
		cfg:        cfg,
		guard:      guard,
		client:     client,
		extractors: newExtractors(client, cfg, security.NewTextSanitizer()),
		recorder:   recorder,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Resolve はURLを解決してメタデータを返す。
// 失敗時は*model.APIErrorを返し、そのCodeで失敗の種類を区別できる。
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*model.URLMetadata, error) {
	start := time.Now()
	meta, err := r.resolve(ctx, rawURL)

	outcome := "ok"
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		outcome = strings.ToLower(apiErr.Code)
	} else if err != nil {
		outcome = "error"
	}
	r.recorder.RecordResolve(outcome, time.Since(start))

	if err != nil {
		slog.Warn("URLの解決に失敗しました",
			slog.String("url", rawURL),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return meta, nil
}

func (r *Resolver) resolve(ctx context.Context, rawURL string) (*model.URLMetadata, error) {
	target, err := parseTarget(rawURL)
	if err != nil {
		return nil, err
	}

	if err := r.guard.ValidateURL(target.String()); err != nil {
		if errors.Is(err, security.ErrBlockedAddress) {
			return nil, model.NewSSRFBlockedError()
		}
		return nil, model.NewMalformedURLError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return nil, model.NewMalformedURLError(err.Error())
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	resp.Body.Close()

	r.recorder.RecordHTTPStatus(resp.StatusCode)
	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	class, err := classify(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	resolved := resp.Request.URL
	extractor, ok := r.extractors[class]
	if !ok {
		return nil, fmt.Errorf("no extractor for content class %q", class)
	}

	x, err := extractor.Extract(ctx, resolved)
	if err != nil {
		return nil, err
	}

	return &model.URLMetadata{
		NormalURL:    rawURL,
		ResolvedURL:  resolved.String(),
		MimeType:     class,
		Title:        x.Title,
		HasImage:     x.HasImage,
		HasVideo:     x.HasVideo,
		DateResolved: r.now(),
	}, nil
}

// parseTarget は入力を絶対http(s) URLとして解析する。ネットワークアクセスは行わない。
func parseTarget(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, model.NewMalformedURLError("URLが入力されていません")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, model.NewMalformedURLError(err.Error())
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return nil, model.NewMalformedURLError("スキームがありません: " + trimmed)
	default:
		return nil, model.NewMalformedURLError("サポートされていないスキームです: " + u.Scheme)
	}

	if u.Host == "" {
		return nil, model.NewMalformedURLError("ホストがありません: " + trimmed)
	}
	return u, nil
}

// checkStatus はリモートのステータスコードをエラー分類に変換する。2xx/3xxはnilを返す。
func checkStatus(code int) error {
	switch {
	case http.StatusText(code) == "":
		return model.NewUnknownStatusCodeError(code)
	case code == http.StatusUnauthorized:
		return model.NewAccessDeniedError()
	case code >= 400:
		return model.NewUpstreamError(code)
	}
	return nil
}

// classify はContent-Typeをコンテンツ分類に変換する。
// ヘッダーがない場合や "*"、"*/*" はワイルドカードとみなし、text/* と互換のためtextに分類する。
// 判定順は text, image, video。
func classify(rawContentType string) (model.ContentClass, error) {
	if strings.TrimSpace(rawContentType) == "" {
		return model.ContentClassText, nil
	}

	mediaType, _, err := mime.ParseMediaType(rawContentType)
	if err != nil {
		return "", model.NewUnsupportedContentTypeError(rawContentType)
	}

	major, _, _ := strings.Cut(mediaType, "/")
	switch major {
	case "text", "*":
		return model.ContentClassText, nil
	case "image":
		return model.ContentClassImage, nil
	case "video":
		return model.ContentClassVideo, nil
	}
	return "", model.NewUnsupportedContentTypeError(rawContentType)
}

// transportError は通信エラーを分類する。
// 呼び出し元のキャンセルは中断、それ以外（タイムアウトを含む）は接続失敗として扱う。
func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return model.NewInterruptedOperationError()
	}
	return model.NewConnectionFailureError(err.Error())
}
