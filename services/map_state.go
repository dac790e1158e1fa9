package services

import (
	"errors"
	"fmt"

	"github.com/GrainArc/MopedMap/methods"
)

// ErrInvalidTransition 当前状态不允许该操作
var ErrInvalidTransition = errors.New("invalid map state transition")

// LinkMode 关联要素的几何类型
type LinkMode string

const (
	LinkNone   LinkMode = ""
	LinkLines  LinkMode = "lines"
	LinkPoints LinkMode = "points"
)

// ParseLinkMode 解析 lines / points
func ParseLinkMode(s string) (LinkMode, error) {
	switch LinkMode(s) {
	case LinkLines, LinkPoints:
		return LinkMode(s), nil
	}
	return LinkNone, fmt.Errorf("unknown link mode %q", s)
}

// LinkModeForFamily 几何大类到关联模式
func LinkModeForFamily(family string) LinkMode {
	switch family {
	case methods.GeomLine:
		return LinkLines
	case methods.GeomPoint:
		return LinkPoints
	}
	return LinkNone
}

// LinkModeFor 组件是线还是点
func LinkModeFor(lineRepresentation bool) LinkMode {
	if lineRepresentation {
		return LinkLines
	}
	return LinkPoints
}

// Layer 关联模式对应的路网图层
func (m LinkMode) Layer() string {
	if m == LinkPoints {
		return methods.LayerPoints
	}
	return methods.LayerLines
}

// Mode 状态名称
type Mode string

const (
	ModeViewing           Mode = "viewing"
	ModeSelectingLinkMode Mode = "selecting_link_mode"
	ModeCreatingComponent Mode = "creating_component"
	ModeEditingComponent  Mode = "editing_component"
	ModeDrawing           Mode = "drawing"
)

// MapState 地图交互状态，只能是下列具体类型之一
type MapState interface {
	Mode() Mode
	mapState()
}

// Viewing 默认浏览状态
type Viewing struct{}

// SelectingLinkMode 等待用户选择 lines / points，EditID 非空表示之后进入编辑
type SelectingLinkMode struct {
	EditID string
}

// CreatingComponent 新建组件
type CreatingComponent struct {
	LinkMode LinkMode
}

// EditingComponent 编辑已有组件
type EditingComponent struct {
	ComponentID string
	LinkMode    LinkMode
}

// Drawing 绘制子状态，点击切换要素暂停，结束后回到 Parent
type Drawing struct {
	Parent MapState
}

func (Viewing) Mode() Mode           { return ModeViewing }
func (SelectingLinkMode) Mode() Mode { return ModeSelectingLinkMode }
func (CreatingComponent) Mode() Mode { return ModeCreatingComponent }
func (EditingComponent) Mode() Mode  { return ModeEditingComponent }
func (Drawing) Mode() Mode           { return ModeDrawing }

func (Viewing) mapState()           {}
func (SelectingLinkMode) mapState() {}
func (CreatingComponent) mapState() {}
func (EditingComponent) mapState()  {}
func (Drawing) mapState()           {}

// ActiveLinkMode 当前生效的关联模式，绘制状态沿用父状态
func ActiveLinkMode(s MapState) LinkMode {
	switch t := s.(type) {
	case CreatingComponent:
		return t.LinkMode
	case EditingComponent:
		return t.LinkMode
	case Drawing:
		return ActiveLinkMode(t.Parent)
	}
	return LinkNone
}

// IsEditing 是否处于新建或编辑（含绘制）
func IsEditing(s MapState) bool {
	return ActiveLinkMode(s) != LinkNone
}

func invalid(s MapState, action string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, action, s.Mode())
}

// StartCreate 浏览 -> 新建；mode 为空时先进入选择关联模式
func StartCreate(s MapState, mode LinkMode) (MapState, error) {
	if _, ok := s.(Viewing); !ok {
		return s, invalid(s, "start create")
	}
	if mode == LinkNone {
		return SelectingLinkMode{}, nil
	}
	return CreatingComponent{LinkMode: mode}, nil
}

// StartEdit 浏览 -> 编辑
func StartEdit(s MapState, componentID string, mode LinkMode) (MapState, error) {
	if _, ok := s.(Viewing); !ok {
		return s, invalid(s, "start edit")
	}
	if mode == LinkNone {
		return SelectingLinkMode{EditID: componentID}, nil
	}
	return EditingComponent{ComponentID: componentID, LinkMode: mode}, nil
}

// ChooseLinkMode 选择关联模式 -> 新建或编辑
func ChooseLinkMode(s MapState, mode LinkMode) (MapState, error) {
	sel, ok := s.(SelectingLinkMode)
	if !ok || mode == LinkNone {
		return s, invalid(s, "choose link mode")
	}
	if sel.EditID != "" {
		return EditingComponent{ComponentID: sel.EditID, LinkMode: mode}, nil
	}
	return CreatingComponent{LinkMode: mode}, nil
}

// StartDrawing 新建/编辑 -> 绘制
func StartDrawing(s MapState) (MapState, error) {
	switch s.(type) {
	case CreatingComponent, EditingComponent:
		return Drawing{Parent: s}, nil
	}
	return s, invalid(s, "start drawing")
}

// StopDrawing 绘制 -> 父状态
func StopDrawing(s MapState) (MapState, error) {
	d, ok := s.(Drawing)
	if !ok {
		return s, invalid(s, "stop drawing")
	}
	return d.Parent, nil
}

// Commit 保存草稿，只能在新建或编辑时进行
func Commit(s MapState) (MapState, error) {
	switch s.(type) {
	case CreatingComponent, EditingComponent:
		return Viewing{}, nil
	}
	return s, invalid(s, "save")
}

// Cancel 放弃当前流程，回到浏览
func Cancel(s MapState) (MapState, error) {
	if _, ok := s.(Viewing); ok {
		return s, invalid(s, "cancel")
	}
	return Viewing{}, nil
}

// StateView 状态的 JSON 表示
type StateView struct {
	Mode        Mode     `json:"mode"`
	LinkMode    LinkMode `json:"link_mode,omitempty"`
	ComponentID string   `json:"component_id,omitempty"`
	ParentMode  Mode     `json:"parent_mode,omitempty"`
}

// Describe 状态转为 StateView
func Describe(s MapState) StateView {
	v := StateView{Mode: s.Mode(), LinkMode: ActiveLinkMode(s)}
	switch t := s.(type) {
	case EditingComponent:
		v.ComponentID = t.ComponentID
	case SelectingLinkMode:
		v.ComponentID = t.EditID
	case Drawing:
		v.ParentMode = t.Parent.Mode()
		if e, ok := t.Parent.(EditingComponent); ok {
			v.ComponentID = e.ComponentID
		}
	}
	return v
}
