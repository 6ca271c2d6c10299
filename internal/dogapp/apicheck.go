package dogapp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIResult 直接请求后端接口的结果
type APIResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// APIChecker 绕过页面直接校验后端接口
type APIChecker struct {
	BaseURL string
	Client  *http.Client
}

// NewAPIChecker 创建接口校验器
func NewAPIChecker(baseURL string) *APIChecker {
	return &APIChecker{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Get 发送 GET 请求并读取完整响应
func (c *APIChecker) Get(ctx context.Context, path string, query url.Values) (*APIResult, error) {
	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", target, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	return &APIResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Duration:    time.Since(start),
	}, nil
}

// RandomDog 请求随机图片，breed 为空时不带查询参数
func (c *APIChecker) RandomDog(ctx context.Context, breed string) (DogResponse, *APIResult, error) {
	var q url.Values
	if breed != "" {
		q = url.Values{BreedParam: {breed}}
	}
	res, err := c.Get(ctx, DogsPath, q)
	if err != nil {
		return DogResponse{}, nil, err
	}
	if res.StatusCode != http.StatusOK {
		return DogResponse{}, res, fmt.Errorf("GET %s: unexpected status %d", DogsPath, res.StatusCode)
	}
	dog, err := ParseDogResponse(res.Body)
	return dog, res, err
}

// Breeds 请求品种列表
func (c *APIChecker) Breeds(ctx context.Context) (BreedsResponse, *APIResult, error) {
	res, err := c.Get(ctx, BreedsPath, nil)
	if err != nil {
		return BreedsResponse{}, nil, err
	}
	if res.StatusCode != http.StatusOK {
		return BreedsResponse{}, res, fmt.Errorf("GET %s: unexpected status %d", BreedsPath, res.StatusCode)
	}
	breeds, err := ParseBreedsResponse(res.Body)
	return breeds, res, err
}

// IsJSON 判断 Content-Type 是否为 JSON
func (r *APIResult) IsJSON() bool {
	return strings.HasPrefix(strings.ToLower(r.ContentType), "application/json")
}
