// Package portal logs into the campus unified-authentication portal and
// retrieves academic records from the educational administration system.
package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/neuassist/neuassist/internal/log"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:94.0) Gecko/20100101 Firefox/94.0"

	// ssoPageTitle is the title of the unified-authentication login page.
	// Landing back on it after submitting credentials means the login failed.
	ssoPageTitle = "智慧东大--统一身份认证"

	requestTimeout = 30 * time.Second
)

// ErrBadCredentials indicates the portal rejected the username or password.
var ErrBadCredentials = errors.New("用户名或密码错误")

// Client is a cookie-carrying HTTP client for the campus portal. It is not
// safe for concurrent use; the portal service serializes access.
type Client struct {
	ssoURL     string
	eamsURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     log.Logger
}

// Config configures a portal Client.
type Config struct {
	// SSOURL is the unified-authentication origin, e.g. https://pass.neu.edu.cn.
	SSOURL string
	// EamsURL is the educational administration origin, e.g. http://219.216.96.4/eams.
	EamsURL  string
	Username string
	Password string
	// HTTPClient overrides the default cookie-jar client, mainly for tests.
	HTTPClient *http.Client
	Logger     log.Logger
}

// NewClient creates a Client with a fresh cookie jar.
func NewClient(cfg Config) (*Client, error) {
	if cfg.SSOURL == "" || cfg.EamsURL == "" {
		return nil, errors.New("portal URLs are required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("portal credentials are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar, Timeout: requestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Client{
		ssoURL:     strings.TrimSuffix(cfg.SSOURL, "/"),
		eamsURL:    strings.TrimSuffix(cfg.EamsURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *Client) get(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil, headers)
}

func (c *Client) do(ctx context.Context, method, rawURL string, form url.Values, headers map[string]string) (string, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("请求失败，状态码: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(data), nil
}

// loginForm holds the hidden fields scraped from the SSO login page.
type loginForm struct {
	lt        string
	execution string
	action    string
}

func (c *Client) fetchLoginForm(ctx context.Context) (*loginForm, error) {
	page, err := c.get(ctx, c.ssoURL+"/tpass/login", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching login page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing login page: %w", err)
	}

	form := doc.Find("form#loginForm")
	if form.Length() == 0 {
		return nil, errors.New("登录页面中未找到登录表单")
	}

	f := &loginForm{
		lt:        form.Find("input#lt").AttrOr("value", ""),
		execution: form.Find(`input[name="execution"]`).AttrOr("value", ""),
		action:    form.AttrOr("action", ""),
	}
	if f.lt == "" || f.execution == "" || f.action == "" {
		return nil, errors.New("登录表单缺少必要字段")
	}
	return f, nil
}

// Login authenticates against the SSO portal. The portal signals a rejected
// credential by serving the login page again, so success is judged by the
// resulting page title.
func (c *Client) Login(ctx context.Context) error {
	form, err := c.fetchLoginForm(ctx)
	if err != nil {
		return err
	}

	payload := url.Values{
		"rsa":       {c.username + c.password + form.lt},
		"ul":        {strconv.Itoa(len(c.username))},
		"pl":        {strconv.Itoa(len(c.password))},
		"lt":        {form.lt},
		"execution": {form.execution},
		"_eventId":  {"submit"},
	}

	page, err := c.do(ctx, http.MethodPost, c.ssoURL+form.action, payload, nil)
	if err != nil {
		return fmt.Errorf("submitting login form: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("parsing login result: %w", err)
	}
	title := doc.Find("title").First()
	if title.Length() == 0 {
		return errors.New("后端服务异常")
	}
	if strings.TrimSpace(title.Text()) == ssoPageTitle {
		return ErrBadCredentials
	}

	c.logger.Info("portal login succeeded")
	return nil
}
