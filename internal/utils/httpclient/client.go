// Package httpclient 出站 webhook 用的 HTTP 客户端：代理、超时、统一 User-Agent、gzip 响应解压
package httpclient

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "FactoryTrust"
)

// Options 出站客户端参数
type Options struct {
	Timeout   int    // 秒，<=0 时 10 秒
	Proxy     string // 可为空
	UserAgent string // 为空时用 defaultUserAgent
}

// NewHTTPClient 构建出站客户端；代理地址非法时直连并告警
func NewHTTPClient(opts Options, logger *logrus.Logger) *http.Client {
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if opts.Proxy != "" {
		if proxyURL, err := url.Parse(opts.Proxy); err != nil || proxyURL.Host == "" {
			logger.WithField("proxy", opts.Proxy).Warn("代理地址非法，webhook 直连")
		} else {
			base.Proxy = http.ProxyURL(proxyURL)
			logger.WithField("proxy", proxyURL.Host).Info("webhook 经代理发送")
		}
	}

	timeout := defaultTimeout
	if opts.Timeout > 0 {
		timeout = time.Duration(opts.Timeout) * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &webhookTransport{next: base, userAgent: ua},
	}
}

// webhookTransport 补齐公共请求头；声明了 gzip 就自行解压响应
type webhookTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *webhookTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.Header.Get("Content-Encoding") != "gzip" {
		return resp, err
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("webhook 响应 gzip 解压失败: %w", err)
	}
	resp.Body = &gzipBody{Reader: zr, raw: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

type gzipBody struct {
	*gzip.Reader
	raw io.ReadCloser
}

func (b *gzipBody) Close() error {
	zerr := b.Reader.Close()
	if err := b.raw.Close(); err != nil {
		return err
	}
	return zerr
}
