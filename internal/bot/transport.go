package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/net/proxy"
)

// requestSlack is added to the poll timeout for the HTTP client timeout so
// long polls are not cut off.
const requestSlack = 30 * time.Second

// NewAPI connects to the Telegram Bot API with token. proxyURL may be empty
// or a socks5://, socks5h://, http:// or https:// URL. The client's own log
// output goes to logger at debug level.
func NewAPI(token, proxyURL string, pollTimeout time.Duration, debug bool, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	client, err := NewHTTPClient(proxyURL, pollTimeout+requestSlack)
	if err != nil {
		return nil, err
	}

	if logger != nil {
		if err := tgbotapi.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)); err != nil {
			return nil, fmt.Errorf("failed to set Bot API logger: %w", err)
		}
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the Bot API: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// NewHTTPClient creates the HTTP client used for Bot API calls, routed
// through proxyURL when set.
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		switch u.Scheme {
		case "socks5", "socks5h":
			dialer, err := socksDialer(u)
			if err != nil {
				return nil, err
			}
			transport.Proxy = nil
			transport.DialContext = dialer
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

// socksDialer returns a DialContext function that connects through the
// SOCKS5 proxy at u, with credentials from its userinfo.
func socksDialer(u *url.URL) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: password}
	}

	dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	cd, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 dialer for %s does not support contexts", u.Host)
	}
	return cd.DialContext, nil
}
