package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GrainArc/MopedMap/agol"
	"github.com/GrainArc/MopedMap/config"
	"github.com/GrainArc/MopedMap/logging"
	"github.com/GrainArc/MopedMap/methods"
	"github.com/GrainArc/MopedMap/models"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

var (
	ErrFeatureNotLoaded   = errors.New("feature not loaded")
	ErrNoDraft            = errors.New("no draft component")
	ErrUnknownComponent   = errors.New("unknown component")
	ErrEmptySelection     = errors.New("no features selected")
	ErrGeometryMismatch   = errors.New("geometry does not match link mode")
	ErrUnknownSourceLayer = errors.New("unknown source layer")
)

// LayerDrawn 手工绘制要素的 _layerId
const LayerDrawn = "drawn"

// FeatureSource 编辑器使用的路网要素来源，*agol.Fetcher 实现该接口
type FeatureSource interface {
	Name() string
	FeatureIDProp() string
	Collection() *geojson.FeatureCollection
	Lookup(id string) (*geojson.Feature, bool)
	Update(ctx context.Context, bounds orb.Bound, isVisible bool)
	Wait()
	Close()
}

// EditorOptions 编辑器配置
type EditorOptions struct {
	ProjectID      uint
	Querier        agol.Querier
	Lines          config.LayerConfig
	Points         config.LayerConfig
	MinZoom        float64
	EvictionMargin float64
	StreetNameProp string
	Catalog        *ComponentCatalog
	Store          ComponentStore
	View           MapView
	// OnChange 状态变化通知，可能在抓取协程中调用
	OnChange func()
	NewID    func() string
}

// EditorOptionsFromConfig 从全局配置填充图层和地图参数
func EditorOptionsFromConfig(cfg config.Config) EditorOptions {
	return EditorOptions{
		Lines:          cfg.Agol.Lines,
		Points:         cfg.Agol.Points,
		MinZoom:        cfg.Map.MinZoom,
		EvictionMargin: cfg.Map.EvictionMargin,
		StreetNameProp: cfg.Map.StreetNameProp,
	}
}

// ClickHit 点击位置命中的渲染要素
type ClickHit struct {
	Layer      string             `json:"layer"`
	Properties geojson.Properties `json:"properties"`
}

// ClickEvent 地图点击
type ClickEvent struct {
	Point orb.Point  `json:"lnglat"`
	Hits  []ClickHit `json:"hits"`
}

type ClickAction string

const (
	ClickIgnored  ClickAction = "ignored"
	ClickAdded    ClickAction = "added"
	ClickRemoved  ClickAction = "removed"
	ClickSelected ClickAction = "selected"
	ClickCleared  ClickAction = "cleared"
)

// ClickResult 点击处理结果
type ClickResult struct {
	Action    ClickAction `json:"action"`
	FeatureID string      `json:"feature_id,omitempty"`
	Layer     string      `json:"layer,omitempty"`
}

// ComponentInput 组件对话框提交内容
type ComponentInput struct {
	TypeID      uint   `json:"component_type_id"`
	Description string `json:"description"`
}

// ComponentEditor 单个项目的组件编辑会话
type ComponentEditor struct {
	opts    EditorOptions
	lines   FeatureSource
	points  FeatureSource
	sources map[string]FeatureSource

	mu             sync.Mutex
	state          MapState
	draft          *models.Component
	components     []*models.Component
	selected       []*geojson.Feature
	links          methods.ComponentFeatureLinks
	clicked        *geojson.Feature
	hoverFeature   string
	hoverComponent string
	sidebar        *Sidebar
	memo           methods.FeatureTypeMemo

	fetchMu  sync.Mutex
	fetching map[string]bool
}

// NewComponentEditor 创建编辑器，components 为项目已保存的组件
func NewComponentEditor(opts EditorOptions, components []*models.Component) *ComponentEditor {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.View == nil {
		opts.View = NewViewport(0, 0)
	}
	if opts.Catalog == nil {
		opts.Catalog = NewComponentCatalog(nil)
	}
	e := &ComponentEditor{
		opts:     opts,
		state:    Viewing{},
		sidebar:  NewSidebar(),
		fetching: map[string]bool{},
	}
	e.lines = e.newFetcher(methods.LayerLines, opts.Lines)
	e.points = e.newFetcher(methods.LayerPoints, opts.Points)
	e.sources = map[string]FeatureSource{
		methods.LayerLines:  e.lines,
		methods.LayerPoints: e.points,
	}
	for _, c := range components {
		e.components = append(e.components, c)
		e.links.Merge(featureIDs(c.Features), []string{c.ID})
	}
	return e
}

func (e *ComponentEditor) newFetcher(name string, layer config.LayerConfig) FeatureSource {
	return agol.NewFetcher(e.opts.Querier, agol.FetcherOptions{
		Name:           name,
		ServiceName:    layer.Service,
		LayerID:        layer.Layer,
		FeatureIDProp:  layer.IDProp,
		EvictionMargin: e.opts.EvictionMargin,
		SetIsFetching:  func(v bool) { e.setFetching(name, v) },
		OnUpdate:       func(*geojson.FeatureCollection) { e.changed() },
	})
}

func (e *ComponentEditor) setFetching(name string, v bool) {
	e.fetchMu.Lock()
	e.fetching[name] = v
	e.fetchMu.Unlock()
	e.changed()
}

func (e *ComponentEditor) changed() {
	if e.opts.OnChange != nil {
		e.opts.OnChange()
	}
}

// ProjectID 所属项目
func (e *ComponentEditor) ProjectID() uint {
	return e.opts.ProjectID
}

// State 当前状态
func (e *ComponentEditor) State() MapState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Source 按图层取要素来源
func (e *ComponentEditor) Source(layer string) (FeatureSource, bool) {
	s, ok := e.sources[layer]
	return s, ok
}

// OnViewportChange 视图变化后刷新路网要素。
// 缩放级别不足或当前模式用不到的图层不抓取；点模式仍抓取线图层用于路口标注
func (e *ComponentEditor) OnViewportChange(ctx context.Context) {
	e.mu.Lock()
	mode := ActiveLinkMode(e.state)
	e.mu.Unlock()

	bounds := e.opts.View.Bounds()
	zoomOK := e.opts.View.Zoom() >= e.opts.MinZoom
	e.lines.Update(ctx, bounds, zoomOK && mode != LinkNone)
	e.points.Update(ctx, bounds, zoomOK && mode == LinkPoints)
}

// RefreshFeatures 同 OnViewportChange，两个图层并发抓取并等待完成
func (e *ComponentEditor) RefreshFeatures(ctx context.Context) error {
	e.mu.Lock()
	mode := ActiveLinkMode(e.state)
	e.mu.Unlock()

	bounds := e.opts.View.Bounds()
	zoomOK := e.opts.View.Zoom() >= e.opts.MinZoom
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range []struct {
		src     FeatureSource
		visible bool
	}{
		{e.lines, zoomOK && mode != LinkNone},
		{e.points, zoomOK && mode == LinkPoints},
	} {
		g.Go(func() error {
			item.src.Update(gctx, bounds, item.visible)
			item.src.Wait()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// WaitForFeatures 等待在途抓取结束
func (e *ComponentEditor) WaitForFeatures() {
	e.lines.Wait()
	e.points.Wait()
}

// Close 取消在途抓取
func (e *ComponentEditor) Close() {
	e.lines.Close()
	e.points.Close()
}

// NeedsLinkMode 项目要素几何类型不一致（或没有要素）时需要用户选择关联模式
func (e *ComponentEditor) NeedsLinkMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.uniformFamilyLocked()
	return !ok
}

func (e *ComponentEditor) uniformFamilyLocked() (string, bool) {
	var all []*geojson.Feature
	for _, c := range e.components {
		all = append(all, c.Features...)
	}
	return methods.IsUniformGeometry(all)
}

// NewComponent 开始新建组件，几何类型一致时直接进入对应模式
func (e *ComponentEditor) NewComponent() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	mode := LinkNone
	if family, ok := e.uniformFamilyLocked(); ok {
		mode = LinkModeForFamily(family)
	}
	next, err := StartCreate(e.state, mode)
	if err != nil {
		return err
	}
	e.state = next
	e.draft = &models.Component{ProjectID: e.opts.ProjectID}
	e.clicked = nil
	logging.Debug("component draft started", "project", e.opts.ProjectID, "state", next.Mode())
	return nil
}

// ChooseLinkMode 关联模式对话框的选择结果
func (e *ComponentEditor) ChooseLinkMode(mode LinkMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := ChooseLinkMode(e.state, mode)
	if err != nil {
		return err
	}
	e.state = next
	if e.draft != nil {
		e.draft.LineRepresentation = mode == LinkLines
	}
	return nil
}

// EditComponent 编辑已有组件，草稿为组件副本
func (e *ComponentEditor) EditComponent(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.componentLocked(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, id)
	}
	mode := LinkModeFor(c.LineRepresentation)
	if len(c.Features) > 0 {
		if family, ok := methods.IsUniformGeometry(c.Features); ok {
			mode = LinkModeForFamily(family)
		}
	}
	next, err := StartEdit(e.state, id, mode)
	if err != nil {
		return err
	}
	e.state = next
	e.draft = c.Clone()
	e.clicked = nil
	if b, ok := featuresBound(c.Features); ok {
		e.opts.View.FitBounds(b)
	}
	return nil
}

func (e *ComponentEditor) componentLocked(id string) (*models.Component, bool) {
	for _, c := range e.components {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// HandleClick 地图点击。只处理当前可交互图层上的命中：
// 编辑时点击草稿要素移除，点击路网要素在草稿中切换；浏览时选中项目要素
func (e *ComponentEditor) HandleClick(ev ClickEvent) (ClickResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	interactive := InteractiveLayers(e.state)
	hits := make([]ClickHit, 0, len(ev.Hits))
	for _, h := range ev.Hits {
		if interactive[h.Layer] {
			hits = append(hits, h)
		}
	}

	switch e.state.(type) {
	case Viewing:
		return e.clickProjectLocked(hits), nil
	case CreatingComponent, EditingComponent:
		return e.clickDraftLocked(hits)
	}
	return ClickResult{Action: ClickIgnored}, nil
}

func (e *ComponentEditor) clickDraftLocked(hits []ClickHit) (ClickResult, error) {
	for _, h := range hits {
		if h.Layer != LayerDraftLines && h.Layer != LayerDraftPoints {
			continue
		}
		id, _ := methods.PropertyString(h.Properties[methods.PropID])
		layer, _ := h.Properties[methods.PropLayerID].(string)
		if e.removeDraftLocked(id, layer) {
			return ClickResult{Action: ClickRemoved, FeatureID: id, Layer: layer}, nil
		}
	}

	for _, h := range hits {
		src, ok := e.sources[h.Layer]
		if !ok {
			continue
		}
		id, ok := methods.PropertyString(h.Properties[src.FeatureIDProp()])
		if !ok {
			continue
		}
		if e.removeDraftLocked(id, h.Layer) {
			return ClickResult{Action: ClickRemoved, FeatureID: id, Layer: h.Layer}, nil
		}
		f, ok := src.Lookup(id)
		if !ok {
			return ClickResult{Action: ClickIgnored}, fmt.Errorf("%w: %s %s", ErrFeatureNotLoaded, h.Layer, id)
		}
		label := methods.FeatureLabel(f, e.lineNetworkLocked(), e.opts.StreetNameProp)
		e.draft.Features = append(e.draft.Features, methods.NormalizeFeature(f, src.FeatureIDProp(), h.Layer, label))
		return ClickResult{Action: ClickAdded, FeatureID: id, Layer: h.Layer}, nil
	}
	return ClickResult{Action: ClickIgnored}, nil
}

// lineNetworkLocked 已加载的线要素，用于路口标注
func (e *ComponentEditor) lineNetworkLocked() *geojson.FeatureCollection {
	return e.memo.Get(e.lines.Collection(), methods.GeomLine)
}

func (e *ComponentEditor) removeDraftLocked(id, layer string) bool {
	if e.draft == nil || id == "" {
		return false
	}
	for i, f := range e.draft.Features {
		fid, _ := methods.FeatureID(f, methods.PropID)
		if fid == id && methods.LayerOf(f) == layer {
			e.draft.Features = append(e.draft.Features[:i:i], e.draft.Features[i+1:]...)
			return true
		}
	}
	return false
}

func (e *ComponentEditor) clickProjectLocked(hits []ClickHit) ClickResult {
	for _, h := range hits {
		if h.Layer != LayerProjectLines && h.Layer != LayerProjectPoints {
			continue
		}
		componentID, _ := h.Properties[methods.PropComponentID].(string)
		id, _ := methods.PropertyString(h.Properties[methods.PropID])
		layer, _ := h.Properties[methods.PropLayerID].(string)
		f, ok := e.projectFeatureLocked(componentID, id, layer)
		if !ok {
			continue
		}
		e.clicked = f
		e.toggleSelectedLocked(f)
		return ClickResult{Action: ClickSelected, FeatureID: id, Layer: layer}
	}
	e.clicked = nil
	return ClickResult{Action: ClickCleared}
}

func (e *ComponentEditor) projectFeatureLocked(componentID, id, layer string) (*geojson.Feature, bool) {
	for _, c := range e.components {
		if componentID != "" && c.ID != componentID {
			continue
		}
		for _, f := range c.Features {
			fid, _ := methods.FeatureID(f, methods.PropID)
			if fid == id && methods.LayerOf(f) == layer {
				return f, true
			}
		}
	}
	return nil, false
}

// Select 浏览状态下按图层和 id 切换选中要素，先查项目要素再查已加载路网
func (e *ComponentEditor) Select(layer, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.state.(Viewing); !ok {
		return invalid(e.state, "select")
	}
	if f, ok := e.projectFeatureLocked("", id, layer); ok {
		e.toggleSelectedLocked(f)
		return nil
	}
	src, ok := e.sources[layer]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSourceLayer, layer)
	}
	f, ok := src.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrFeatureNotLoaded, layer, id)
	}
	label := methods.FeatureLabel(f, e.lineNetworkLocked(), e.opts.StreetNameProp)
	e.toggleSelectedLocked(methods.NormalizeFeature(f, src.FeatureIDProp(), layer, label))
	return nil
}

func (e *ComponentEditor) toggleSelectedLocked(f *geojson.Feature) {
	key := FeatureKey(f)
	for i, s := range e.selected {
		if FeatureKey(s) == key {
			e.selected = append(e.selected[:i:i], e.selected[i+1:]...)
			return
		}
	}
	e.selected = append(e.selected, f)
}

func (e *ComponentEditor) setSelectedLocked(f *geojson.Feature, on bool) {
	key := FeatureKey(f)
	for i, s := range e.selected {
		if FeatureKey(s) == key {
			if !on {
				e.selected = append(e.selected[:i:i], e.selected[i+1:]...)
			}
			return
		}
	}
	if on {
		e.selected = append(e.selected, f)
	}
}

// Selected 当前选中要素
func (e *ComponentEditor) Selected() []*geojson.Feature {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*geojson.Feature(nil), e.selected...)
}

// Draft 草稿副本
func (e *ComponentEditor) Draft() *models.Component {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft.Clone()
}

// Components 已提交组件
func (e *ComponentEditor) Components() []*models.Component {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*models.Component(nil), e.components...)
}

// Links 要素与组件关联表副本
func (e *ComponentEditor) Links() methods.ComponentFeatureLinks {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyLinks(e.links)
}

// StartDrawing 进入绘制子状态
func (e *ComponentEditor) StartDrawing() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := StartDrawing(e.state)
	if err != nil {
		return err
	}
	e.state = next
	return nil
}

// FinishDrawing 结束绘制，f 非空时作为手绘要素加入草稿
func (e *ComponentEditor) FinishDrawing(f *geojson.Feature) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	mode := ActiveLinkMode(e.state)
	next, err := StopDrawing(e.state)
	if err != nil {
		return err
	}
	if f != nil && f.Geometry != nil {
		if LinkModeForFamily(methods.GeometryFamily(f.Geometry)) != mode {
			return fmt.Errorf("%w: %s in %s mode", ErrGeometryMismatch, f.Geometry.GeoJSONType(), mode)
		}
		src := geojson.NewFeature(f.Geometry)
		src.Properties = f.Properties.Clone()
		if src.Properties == nil {
			src.Properties = geojson.Properties{}
		}
		src.Properties[methods.PropID] = e.opts.NewID()
		label := methods.FeatureLabel(src, e.lineNetworkLocked(), e.opts.StreetNameProp)
		e.draft.Features = append(e.draft.Features, methods.NormalizeFeature(src, methods.PropID, LayerDrawn, label))
	}
	e.state = next
	return nil
}

// SaveDraft 保存草稿：类型必填，新建时分配 UUID，关联表合并草稿要素
func (e *ComponentEditor) SaveDraft(ctx context.Context, input ComponentInput) (*models.Component, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.draft == nil {
		return nil, ErrNoDraft
	}
	next, err := Commit(e.state)
	if err != nil {
		return nil, err
	}
	t, err := e.opts.Catalog.Resolve(input.TypeID)
	if err != nil {
		return nil, err
	}

	c := e.draft.Clone()
	applyType(c, t, input.Description)
	_, creating := e.state.(CreatingComponent)
	if creating {
		c.ID = e.opts.NewID()
	}
	if err := e.storeLocked(ctx, c); err != nil {
		return nil, err
	}

	e.links.RemoveComponent(c.ID)
	e.links.Merge(featureIDs(c.Features), []string{c.ID})
	e.upsertComponentLocked(c)
	e.state = next
	e.draft = nil
	e.selected = nil
	e.clicked = nil
	logging.Info("component saved", "project", e.opts.ProjectID, "component", c.ID, "type", TypeLabel(t), "features", len(c.Features))
	return c, nil
}

func applyType(c *models.Component, t models.ComponentType, description string) {
	c.ComponentTypeID = t.ID
	c.ComponentName = t.ComponentName
	c.ComponentSubtype = t.ComponentSubtype
	c.LineRepresentation = t.LineRepresentation
	c.Description = description
}

func (e *ComponentEditor) storeLocked(ctx context.Context, c *models.Component) error {
	if e.opts.Store == nil {
		return nil
	}
	if err := e.opts.Store.SaveComponent(ctx, c); err != nil {
		return fmt.Errorf("save component: %w", err)
	}
	return nil
}

func (e *ComponentEditor) upsertComponentLocked(c *models.Component) {
	for i, existing := range e.components {
		if existing.ID == c.ID {
			e.components[i] = c
			return
		}
	}
	e.components = append(e.components, c)
}

// Cancel 放弃新建或编辑，草稿和选中要素一并丢弃
func (e *ComponentEditor) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := Cancel(e.state)
	if err != nil {
		return err
	}
	e.state = next
	e.draft = nil
	e.selected = nil
	e.clicked = nil
	return nil
}

// CreateComponentFromSelection 用选中要素直接创建组件
func (e *ComponentEditor) CreateComponentFromSelection(ctx context.Context, input ComponentInput) (*models.Component, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.state.(Viewing); !ok {
		return nil, invalid(e.state, "create from selection")
	}
	if len(e.selected) == 0 {
		return nil, ErrEmptySelection
	}
	t, err := e.opts.Catalog.Resolve(input.TypeID)
	if err != nil {
		return nil, err
	}
	c := (&models.Component{
		ID:        e.opts.NewID(),
		ProjectID: e.opts.ProjectID,
		Features:  methods.DedupeLayerFeatures(e.selected, methods.PropID),
	}).Clone()
	applyType(c, t, input.Description)
	if err := e.storeLocked(ctx, c); err != nil {
		return nil, err
	}
	e.links.Merge(featureIDs(c.Features), []string{c.ID})
	e.upsertComponentLocked(c)
	e.resetSelectionLocked()
	return c, nil
}

// LinkSelectedToComponents 将选中要素加入勾选的每个组件并保存，然后清空选择
func (e *ComponentEditor) LinkSelectedToComponents(ctx context.Context, componentIDs []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.state.(Viewing); !ok {
		return invalid(e.state, "link components")
	}
	if len(e.selected) == 0 {
		return ErrEmptySelection
	}
	targets := make([]*models.Component, 0, len(componentIDs))
	for _, id := range componentIDs {
		c, ok := e.componentLocked(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownComponent, id)
		}
		targets = append(targets, c)
	}

	for _, target := range targets {
		c, added := withFeatures(target, e.selected)
		if added == 0 {
			continue
		}
		if err := e.storeLocked(ctx, c); err != nil {
			return err
		}
		e.upsertComponentLocked(c)
		e.links.Merge(featureIDs(c.Features), []string{c.ID})
	}
	e.links.Merge(featureIDs(e.selected), componentIDs)
	e.resetSelectionLocked()
	return nil
}

// withFeatures 组件副本追加尚未包含的要素，返回新增数量
func withFeatures(c *models.Component, features []*geojson.Feature) (*models.Component, int) {
	out := c.Clone()
	have := make(map[string]struct{}, len(out.Features))
	for _, f := range out.Features {
		have[FeatureKey(f)] = struct{}{}
	}
	added := 0
	for _, f := range features {
		key := FeatureKey(f)
		if _, dup := have[key]; dup {
			continue
		}
		have[key] = struct{}{}
		nf := *f
		nf.Properties = f.Properties.Clone()
		delete(nf.Properties, methods.PropComponentID)
		out.Features = append(out.Features, &nf)
		added++
	}
	return out, added
}

func (e *ComponentEditor) resetSelectionLocked() {
	e.selected = nil
	e.clicked = nil
	e.sidebar.ClearChecked()
}

// DeleteComponent 删除组件及其关联
func (e *ComponentEditor) DeleteComponent(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.state.(Viewing); !ok {
		return invalid(e.state, "delete component")
	}
	if _, ok := e.componentLocked(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, id)
	}
	if e.opts.Store != nil {
		if err := e.opts.Store.DeleteComponent(ctx, e.opts.ProjectID, id); err != nil {
			return fmt.Errorf("delete component: %w", err)
		}
	}
	e.forgetLocked(id)
	return nil
}

// ForgetComponent 组件已在别处删除，只清理内存状态。正在编辑该组件时回到浏览
func (e *ComponentEditor) ForgetComponent(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.componentLocked(id); !ok {
		return false
	}
	target, ok := editingTarget(e.state)
	if sel, selecting := e.state.(SelectingLinkMode); selecting {
		target, ok = sel.EditID, sel.EditID != ""
	}
	if ok && target == id {
		e.state = Viewing{}
		e.draft = nil
	}
	e.forgetLocked(id)
	return true
}

func (e *ComponentEditor) forgetLocked(id string) {
	for i, c := range e.components {
		if c.ID == id {
			e.components = append(e.components[:i:i], e.components[i+1:]...)
			break
		}
	}
	e.links.RemoveComponent(id)
	e.sidebar.Forget(id)
}

// HoverFeature 地图悬停要素，key 为空表示离开
func (e *ComponentEditor) HoverFeature(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hoverFeature = key
	e.hoverComponent = ""
}

// HoverComponent 侧栏悬停组件，id 为空表示离开
func (e *ComponentEditor) HoverComponent(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hoverComponent = id
	e.hoverFeature = ""
}

// CheckListItem 侧栏勾选组件，组件要素随之加入或移出选择
func (e *ComponentEditor) CheckListItem(id string, checked bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.componentLocked(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, id)
	}
	e.sidebar.SetChecked(id, checked)
	for _, f := range c.Features {
		e.setSelectedLocked(f, checked)
	}
	return nil
}

// ExpandListItem 侧栏展开组件
func (e *ComponentEditor) ExpandListItem(id string, expanded bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.componentLocked(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, id)
	}
	e.sidebar.SetExpanded(id, expanded)
	return nil
}

// FeatureKey 要素在项目内的唯一键：_layerId:id
func FeatureKey(f *geojson.Feature) string {
	id, _ := methods.FeatureID(f, methods.PropID)
	return methods.LayerOf(f) + ":" + id
}

func featureIDs(features []*geojson.Feature) []string {
	ids := make([]string, 0, len(features))
	for _, f := range features {
		if id, ok := methods.FeatureID(f, methods.PropID); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func featuresBound(features []*geojson.Feature) (orb.Bound, bool) {
	var b orb.Bound
	found := false
	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if !found {
			b = f.Geometry.Bound()
			found = true
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b, found
}

func copyLinks(l methods.ComponentFeatureLinks) methods.ComponentFeatureLinks {
	out := methods.ComponentFeatureLinks{Features: make([]methods.FeatureLink, 0, len(l.Features))}
	for _, link := range l.Features {
		out.Features = append(out.Features, methods.FeatureLink{
			ID:         link.ID,
			Components: append([]string(nil), link.Components...),
		})
	}
	return out
}
