package resolver

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/hitoshi/later/internal/model"
	"github.com/hitoshi/later/internal/security"
)

// Extraction はExtractorが返す部分的なメタデータ。
type Extraction struct {
	Title    string
	HasImage bool
	HasVideo bool
}

// Extractor はコンテンツ分類ごとのメタデータ抽出戦略。
type Extractor interface {
	Extract(ctx context.Context, resolved *url.URL) (Extraction, error)
}

// newExtractors は分類ごとのExtractorを構築する。
func newExtractors(client *http.Client, cfg Config, sanitizer *security.TextSanitizer) map[model.ContentClass]Extractor {
	return map[model.ContentClass]Extractor{
		model.ContentClassText:  &textExtractor{client: client, cfg: cfg, sanitizer: sanitizer},
		model.ContentClassImage: imageExtractor{},
		model.ContentClassVideo: videoExtractor{},
	}
}

// textExtractor はHTMLを取得してtitle要素とimg/video要素の有無を抽出する。
type textExtractor struct {
	client    *http.Client
	cfg       Config
	sanitizer *security.TextSanitizer
}

// Extract は解決済みURLをGETし、宣言された文字コードでUTF-8に変換してから解析する。
// ボディはMaxBodySizeまでしか読み込まない。
func (e *textExtractor) Extract(ctx context.Context, resolved *url.URL) (Extraction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved.String(), nil)
	if err != nil {
		return Extraction{}, model.NewMalformedURLError(err.Error())
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	req.Header.Set("Accept", "text/html, application/xhtml+xml, */*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return Extraction{}, transportError(ctx, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return Extraction{}, err
	}

	var body io.Reader = resp.Body
	if e.cfg.MaxBodySize > 0 {
		body = io.LimitReader(resp.Body, e.cfg.MaxBodySize)
	}

	utf8Body, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return Extraction{}, model.NewConnectionFailureError("文字コードの変換に失敗: " + err.Error())
	}

	doc, err := goquery.NewDocumentFromReader(utf8Body)
	if err != nil {
		if ctx.Err() != nil {
			return Extraction{}, transportError(ctx, ctx.Err())
		}
		return Extraction{}, model.NewConnectionFailureError("レスポンスの読み取りに失敗: " + err.Error())
	}

	return Extraction{
		Title:    e.sanitizer.SanitizeText(doc.Find("title").First().Text()),
		HasImage: doc.Find("img").Length() > 0,
		HasVideo: doc.Find("video").Length() > 0,
	}, nil
}

// imageExtractor は画像URLのパス末尾をタイトルとする。ネットワークアクセスは行わない。
type imageExtractor struct{}

func (imageExtractor) Extract(_ context.Context, resolved *url.URL) (Extraction, error) {
	return Extraction{Title: lastPathSegment(resolved), HasImage: true}, nil
}

// videoExtractor は動画URLのパス末尾をタイトルとする。ネットワークアクセスは行わない。
type videoExtractor struct{}

func (videoExtractor) Extract(_ context.Context, resolved *url.URL) (Extraction, error) {
	return Extraction{Title: lastPathSegment(resolved), HasVideo: true}, nil
}

// lastPathSegment はURLパスの最後のセグメントを返す。パスが空の場合はホスト名を返す。
func lastPathSegment(u *url.URL) string {
	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		return u.Hostname()
	}
	return path.Base(p)
}
