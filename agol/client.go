package agol

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GrainArc/MopedMap/methods"
	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// QueryRequest 单次 FeatureServer 范围查询
type QueryRequest struct {
	ServiceName string
	LayerID     int
	Bounds      orb.Bound
}

// Querier 要素查询接口，Fetcher 通过它访问要素服务
type Querier interface {
	Query(ctx context.Context, req QueryRequest) (*geojson.FeatureCollection, error)
}

// Client ArcGIS FeatureServer 查询客户端
type Client struct {
	endpoint   string
	httpClient *http.Client
	cache      *QueryCache
}

// NewClient 创建客户端，cache 可以为 nil
func NewClient(endpoint string, timeout time.Duration, cache *QueryCache) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cache: cache,
	}
}

// QueryParams 固定查询参数加上范围
func QueryParams(bounds orb.Bound) url.Values {
	v := url.Values{}
	v.Set("where", "1=1")
	v.Set("outFields", "*")
	v.Set("geometryPrecision", "6")
	v.Set("f", "pgeojson")
	v.Set("returnGeometry", "true")
	v.Set("inSR", "4326")
	v.Set("geometryType", "esriGeometryEnvelope")
	v.Set("spatialRel", "esriSpatialRelEnvelopeIntersects")
	v.Set("geometry", methods.FormatBounds(bounds))
	return v
}

// BuildQueryURL {endpoint}/{service}/FeatureServer/{layer}/query?{params}
func (c *Client) BuildQueryURL(req QueryRequest) string {
	return fmt.Sprintf("%s/%s/FeatureServer/%s/query?%s",
		c.endpoint,
		url.PathEscape(req.ServiceName),
		strconv.Itoa(req.LayerID),
		QueryParams(req.Bounds).Encode(),
	)
}

type serviceError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Query 查询与范围相交的要素
func (c *Client) Query(ctx context.Context, req QueryRequest) (*geojson.FeatureCollection, error) {
	u := c.BuildQueryURL(req)

	body, ok := c.cache.Get(u)
	if !ok {
		var err error
		body, err = c.fetch(ctx, u)
		if err != nil {
			return nil, err
		}
	}

	fc, err := decodeFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("query %s layer %d: %w", req.ServiceName, req.LayerID, err)
	}
	if !ok {
		c.cache.Set(u, body)
	}
	return fc, nil
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch features failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feature service returned status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}
	return data, nil
}

func decodeFeatureCollection(body []byte) (*geojson.FeatureCollection, error) {
	// 服务端错误以 200 + {"error": {...}} 返回
	var se serviceError
	if err := json.Unmarshal(body, &se); err == nil && se.Error != nil {
		return nil, fmt.Errorf("feature service error %d: %s", se.Error.Code, se.Error.Message)
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	return fc, nil
}
