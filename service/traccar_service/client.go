package traccar_service

import (
	"context"
	"encoding/json"
	"errors"
	"fleet-push-service/models"
	"fleet-push-service/service/push_service"
	"fleet-push-service/tool"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultTimeout = 10 * time.Second

// Config Traccar 服务器配置
type Config struct {
	APIURL   string        `yaml:"api_url" json:"api_url"`
	Email    string        `yaml:"email" json:"email"`
	Password string        `yaml:"password" json:"password"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// User Traccar 用户（只取需要的字段）
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Client Traccar REST 客户端，使用 Basic 认证
type Client struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client
	log        *zap.Logger
}

var _ push_service.IdentityResolver = (*Client)(nil)

// NewClient 创建 Traccar 客户端
func NewClient(config *Config, log *zap.Logger) (*Client, error) {
	if config == nil || config.APIURL == "" {
		return nil, errors.New("traccar api url is required")
	}
	if config.Email == "" || config.Password == "" {
		return nil, errors.New("traccar credentials are required")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(config.APIURL, "/"),
		email:      config.Email,
		password:   config.Password,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.Named("traccar"),
	}, nil
}

// BaseURL 返回服务器地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

type statusError struct {
	path   string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("traccar %s returned status %d: %s", e.path, e.status, e.body)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.email, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{path: path, status: resp.StatusCode, body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// DeviceUsers 查询有权访问设备的用户，第一个通常是直接拥有者
func (c *Client) DeviceUsers(ctx context.Context, deviceID int64) ([]User, error) {
	var users []User
	query := url.Values{"deviceId": []string{strconv.FormatInt(deviceID, 10)}}
	if err := c.getJSON(ctx, "/api/users", query, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ResolveIdentity 返回设备第一个用户的邮箱
func (c *Client) ResolveIdentity(ctx context.Context, deviceID int64) (string, error) {
	users, err := c.DeviceUsers(ctx, deviceID)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status == http.StatusNotFound {
			return "", push_service.ErrIdentityNotFound
		}
		return "", err
	}
	if len(users) == 0 || strings.TrimSpace(users[0].Email) == "" {
		c.log.Info("no user with email for device", zap.Int64("deviceId", deviceID))
		return "", push_service.ErrIdentityNotFound
	}
	identity := push_service.NormalizeIdentity(users[0].Email)
	c.log.Debug("identity resolved", zap.Int64("deviceId", deviceID), zap.String("identity", tool.MaskIdentity(identity)))
	return identity, nil
}

// Device 查询单个设备
func (c *Client) Device(ctx context.Context, deviceID int64) (*models.TraccarDevice, error) {
	var devices []models.TraccarDevice
	query := url.Values{"id": []string{strconv.FormatInt(deviceID, 10)}}
	if err := c.getJSON(ctx, "/api/devices", query, &devices); err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("device %d not found", deviceID)
	}
	return &devices[0], nil
}

// CreateSession 登录并返回会话 Cookie，供 WebSocket 订阅使用
func (c *Client) CreateSession(ctx context.Context) ([]*http.Cookie, error) {
	form := url.Values{"email": []string{c.email}, "password": []string{c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/session", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{path: "/api/session", status: resp.StatusCode}
	}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil, errors.New("traccar session returned no cookie")
	}
	return cookies, nil
}
