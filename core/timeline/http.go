package timeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"LyricStage/logger"
	"LyricStage/model"
)

// HTTPSource 分析服务客户端，GET {baseURL}/timelines/{songID}
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource 创建分析服务客户端
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

// SetTimeout 设置请求超时时间
func (c *HTTPSource) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Load 请求分析服务
func (c *HTTPSource) Load(ctx context.Context, songID string) (*model.Timeline, error) {
	u := fmt.Sprintf("%s/timelines/%s", c.baseURL, url.PathEscape(songID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request analysis service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("analysis service returned %d for song %s", resp.StatusCode, songID)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read analysis response: %w", err)
	}
	tl, err := model.ParseTimeline(data)
	if err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}
	logger.Debug("从分析服务获取时间轴",
		logger.String("songId", songID),
		logger.Int("phrases", len(tl.Phrases)),
		logger.Int("beats", len(tl.Beats)))
	return tl, nil
}
