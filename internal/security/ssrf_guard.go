// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrBlockedAddress はSSRF防止ポリシーによりブロックされたURLを表す。
var ErrBlockedAddress = errors.New("blocked address")

// ClientOptions はURL解決用HTTPクライアントの設定。
type ClientOptions struct {
	Timeout      time.Duration
	MaxRedirects int
}

// URLGuard はURLの事前検証とHTTPクライアント生成のインターフェース。
// Resolverはこのインターフェース越しにネットワークへアクセスする。
type URLGuard interface {
	// ValidateURL はURLの安全性を事前に検証する。
	// ポリシー違反の場合はErrBlockedAddressをラップしたエラーを返す。
	ValidateURL(rawURL string) error

	// NewClient はタイムアウトとリダイレクト上限を設定したHTTPクライアントを生成する。
	NewClient(opts ClientOptions) *http.Client
}

// allowedSchemes はSSRF防止で許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はSSRF防止でブロックされるネットワーク範囲。
// safeurlはnet.DialerレベルでDNS解決後のIPアドレスも検証するため、
// DNS再バインディング攻撃にも対応している。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// SSRFGuard はsafeurlを用いてプライベートネットワークへのアクセスを遮断するURLGuard実装。
type SSRFGuard struct{}

// NewSSRFGuard はSSRFGuardを生成する。
func NewSSRFGuard() *SSRFGuard {
	return &SSRFGuard{}
}

// NewClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスを検証するため、
// リダイレクト先がプライベートIPの場合も接続時点で拒否される。
func (g *SSRFGuard) NewClient(opts ClientOptions) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(opts.Timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	client := safeurl.Client(config).Client
	limitRedirects(client, opts.MaxRedirects)
	return client
}

// ValidateURL はURLの安全性を事前に検証する。DNS解決を伴わない静的な検証を行う。
func (g *SSRFGuard) ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("%w: disallowed scheme %q", ErrBlockedAddress, scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("%w: %s", ErrBlockedAddress, ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}

	return nil
}

// PermissiveGuard はアドレス制限を行わないURLGuard実装。
// ローカル開発環境やテストでプライベートネットワーク上のURLを解決する場合に使用する。
type PermissiveGuard struct{}

// NewPermissiveGuard はPermissiveGuardを生成する。
func NewPermissiveGuard() *PermissiveGuard {
	return &PermissiveGuard{}
}

// NewClient はタイムアウトとリダイレクト上限のみを設定したHTTPクライアントを生成する。
func (g *PermissiveGuard) NewClient(opts ClientOptions) *http.Client {
	client := &http.Client{Timeout: opts.Timeout}
	limitRedirects(client, opts.MaxRedirects)
	return client
}

// ValidateURL は常にnilを返す。
func (g *PermissiveGuard) ValidateURL(string) error {
	return nil
}

// limitRedirects はクライアントのリダイレクト追跡回数を制限する。
// 既存のCheckRedirectがあれば上限チェック後に呼び出す。
func limitRedirects(client *http.Client, max int) {
	if max <= 0 {
		return
	}
	prev := client.CheckRedirect
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		if prev != nil {
			return prev(req, via)
		}
		return nil
	}
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// blockedHostnames はブロック対象のホスト名。
var blockedHostnames = []string{
	"localhost",
}

// isBlockedHostname はホスト名がブロック対象かを検証する。
func isBlockedHostname(host string) bool {
	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	for _, blocked := range blockedHostnames {
		if lower == blocked || strings.HasSuffix(lower, "."+blocked) {
			return true
		}
	}
	return false
}

var (
	_ URLGuard = (*SSRFGuard)(nil)
	_ URLGuard = (*PermissiveGuard)(nil)
)
