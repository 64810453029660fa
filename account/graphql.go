package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"exchange-terminal-go/infrastructure/logger"
)

// GraphQLClient 对单个 GraphQL 端点的薄封装：POST {query, variables}，
// 业务错误取 errors[0].message。登录后通过 SetToken 注入 Bearer 凭证。
type GraphQLClient struct {
	Endpoint   string
	HTTPClient *http.Client
	Log        *logger.Logger

	mu    sync.RWMutex
	token string
}

func NewGraphQLClient(endpoint string, log *logger.Logger) *GraphQLClient {
	return &GraphQLClient{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Log:        log,
	}
}

// SetToken 设置后续请求携带的 Bearer 凭证；空串清除。
func (c *GraphQLClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token 返回当前凭证。
func (c *GraphQLClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *GraphQLClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// Do 执行一次 GraphQL 请求并把 data 解到 out（out 为 nil 时丢弃）。
// errors 非空时返回首条 message 作为错误，data 不再解析。
func (c *GraphQLClient) Do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("graphql: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("graphql: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("graphql: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("graphql: unexpected status %s", resp.Status)
	}

	var parsed gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("graphql: decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return fmt.Errorf("graphql: %s", parsed.Errors[0].Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(parsed.Data, out); err != nil {
		return fmt.Errorf("graphql: decode data: %w", err)
	}
	return nil
}
