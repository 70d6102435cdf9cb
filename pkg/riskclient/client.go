// Package riskclient はリスクイベントサービスのHTTP APIを呼び出す型付きクライアントを提供する。
package riskclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nao1215/riskevent/pkg/event"
	"github.com/nao1215/riskevent/pkg/httpclient"
)

// eventsPath はリスクイベントAPIのパス。
const eventsPath = "/api/v1/events"

// Client はリスクイベントサービスのクライアント。
type Client struct {
	http *httpclient.Client
}

// New はbaseURLのリスクイベントサービスに接続するクライアントを生成する。
func New(baseURL string, opts ...httpclient.Option) *Client {
	return &Client{http: httpclient.New(baseURL, opts...)}
}

// ListOptions は一覧取得の条件。
type ListOptions struct {
	// Limit は最大件数。0の場合はサーバーの既定値を使う。
	Limit int
	// RiskLevel は絞り込むリスクレベル。空の場合は絞り込まない。
	RiskLevel event.RiskLevel
}

// List は発生日時の降順でリスクイベントを取得する。
func (c *Client) List(ctx context.Context, opts ListOptions) ([]event.RiskEvent, error) {
	q := url.Values{}
	if opts.Limit != 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.RiskLevel != "" {
		q.Set("riskLevel", string(opts.RiskLevel))
	}
	path := eventsPath
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var events []event.RiskEvent
	if err := c.http.GetJSON(ctx, path, &events); err != nil {
		return nil, fmt.Errorf("リスクイベント一覧の取得に失敗: %w", err)
	}
	if events == nil {
		events = []event.RiskEvent{}
	}
	return events, nil
}

// Get はIDに一致するリスクイベントを取得する。存在しない場合はfalseを返す。
func (c *Client) Get(ctx context.Context, id int64) (event.RiskEvent, bool, error) {
	var ev event.RiskEvent
	err := c.http.GetJSON(ctx, eventsPath+"/"+strconv.FormatInt(id, 10), &ev)
	if httpclient.IsNotFound(err) {
		return event.RiskEvent{}, false, nil
	}
	if err != nil {
		return event.RiskEvent{}, false, fmt.Errorf("リスクイベント(id=%d)の取得に失敗: %w", id, err)
	}
	return ev, true, nil
}

// Create はリスクイベントを登録し、IDが採番されたイベントを返す。
// evのIDは送信しない。
func (c *Client) Create(ctx context.Context, ev event.RiskEvent) (event.RiskEvent, error) {
	ev.ID = 0
	var created event.RiskEvent
	if err := c.http.PostJSON(ctx, eventsPath, ev, &created); err != nil {
		return event.RiskEvent{}, fmt.Errorf("リスクイベントの登録に失敗: %w", err)
	}
	return created, nil
}
