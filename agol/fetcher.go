package agol

import (
	"context"
	"errors"
	"sync"

	"github.com/GrainArc/MopedMap/logging"
	"github.com/GrainArc/MopedMap/methods"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FetcherOptions 单个图层的抓取配置
type FetcherOptions struct {
	Name          string // 逻辑图层名，如 ctn-lines
	ServiceName   string
	LayerID       int
	FeatureIDProp string
	// EvictionMargin > 0 时只保留与当前范围外扩 margin 度后相交的要素，0 表示只增不减
	EvictionMargin float64
	// SetIsFetching 加载状态回调
	SetIsFetching func(bool)
	// OnUpdate 合并完成后的回调，参数为新的只读集合
	OnUpdate func(*geojson.FeatureCollection)
}

// Fetcher 按地图范围抓取并累积某个图层的要素。
// 同一时间最多一个请求在途，新的 Update 会取消旧请求，只有最后发起的请求能写入结果
type Fetcher struct {
	opts   FetcherOptions
	client Querier

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	collection *geojson.FeatureCollection
	wg         sync.WaitGroup
}

// NewFetcher 创建图层抓取器
func NewFetcher(client Querier, opts FetcherOptions) *Fetcher {
	return &Fetcher{
		opts:       opts,
		client:     client,
		collection: geojson.NewFeatureCollection(),
	}
}

// Name 逻辑图层名
func (f *Fetcher) Name() string {
	return f.opts.Name
}

// FeatureIDProp 要素唯一标识字段
func (f *Fetcher) FeatureIDProp() string {
	return f.opts.FeatureIDProp
}

// Collection 当前累积的要素集合。返回值只读，每次合并都会替换为新集合
func (f *Fetcher) Collection() *geojson.FeatureCollection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collection
}

// Lookup 按唯一标识查找已加载的要素
func (f *Fetcher) Lookup(id string) (*geojson.Feature, bool) {
	return methods.FindFeature(f.Collection(), f.opts.FeatureIDProp, id)
}

// Update 范围变化时调用。不可见时不抓取；否则取消在途请求并发起新请求
func (f *Fetcher) Update(ctx context.Context, bounds orb.Bound, isVisible bool) {
	if !isVisible {
		return
	}

	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.generation++
	gen := f.generation
	reqCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.wg.Add(1)
	f.mu.Unlock()

	f.setFetching(true)
	go f.run(reqCtx, cancel, gen, bounds)
}

func (f *Fetcher) run(ctx context.Context, cancel context.CancelFunc, gen uint64, bounds orb.Bound) {
	defer f.wg.Done()
	defer cancel()

	fc, err := f.client.Query(ctx, QueryRequest{
		ServiceName: f.opts.ServiceName,
		LayerID:     f.opts.LayerID,
		Bounds:      bounds,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			logging.Warn("feature fetch aborted", "layer", f.opts.Name, "bounds", methods.FormatBounds(bounds))
		} else {
			logging.Error("feature fetch failed", "layer", f.opts.Name, "error", err)
		}
		f.finish(gen)
		return
	}

	f.mu.Lock()
	if gen != f.generation {
		// 取消与响应到达之间的竞态：旧请求的结果直接丢弃
		f.mu.Unlock()
		logging.Warn("stale feature response discarded", "layer", f.opts.Name)
		return
	}
	merged := methods.MergeFeatureCollections(f.collection, fc, f.opts.FeatureIDProp)
	if f.opts.EvictionMargin > 0 {
		merged = evictOutside(merged, bounds.Pad(f.opts.EvictionMargin))
	}
	f.collection = merged
	f.mu.Unlock()

	logging.Debug("features merged", "layer", f.opts.Name, "received", len(fc.Features), "total", len(merged.Features))
	f.setFetching(false)
	if f.opts.OnUpdate != nil {
		f.opts.OnUpdate(merged)
	}
}

// finish 请求失败时，只有最新请求负责清除加载状态
func (f *Fetcher) finish(gen uint64) {
	f.mu.Lock()
	latest := gen == f.generation
	f.mu.Unlock()
	if latest {
		f.setFetching(false)
	}
}

func (f *Fetcher) setFetching(v bool) {
	if f.opts.SetIsFetching != nil {
		f.opts.SetIsFetching(v)
	}
}

// Wait 等待在途请求结束
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

// Close 取消在途请求并等待结束
func (f *Fetcher) Close() {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func evictOutside(fc *geojson.FeatureCollection, keep orb.Bound) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, feat := range fc.Features {
		if feat.Geometry != nil && feat.Geometry.Bound().Intersects(keep) {
			out.Append(feat)
		}
	}
	return out
}
