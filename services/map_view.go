package services

import (
	"math"
	"sync"

	"github.com/paulmach/orb"
)

const (
	// TileSize 前端底图瓦片像素大小
	TileSize = 512
	// MaxLat Web 墨卡托纬度上限
	MaxLat = 85.05112878
)

// MapView 编辑器对地图视图的最小依赖
type MapView interface {
	Bounds() orb.Bound
	Zoom() float64
	PanTo(center orb.Point)
	FitBounds(b orb.Bound)
}

// CameraCommand 需要推送给前端执行的视图指令
type CameraCommand struct {
	Type   string     `json:"type"`
	Center *orb.Point `json:"center,omitempty"`
	Bounds []float64  `json:"bounds,omitempty"`
}

// Viewport 服务端持有的视图状态，由前端上报范围和尺寸
type Viewport struct {
	mu       sync.Mutex
	bound    orb.Bound
	zoom     float64
	width    int
	height   int
	commands []CameraCommand
}

// NewViewport 创建视图
func NewViewport(width, height int) *Viewport {
	return &Viewport{width: width, height: height}
}

// Report 前端上报当前视图，zoom 未提供时按像素尺寸推算
func (v *Viewport) Report(b orb.Bound, zoom float64, width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if width > 0 && height > 0 {
		v.width, v.height = width, height
	}
	v.bound = b
	if zoom > 0 {
		v.zoom = zoom
	} else {
		v.zoom = ZoomForBounds(b, v.width, v.height)
	}
}

func (v *Viewport) Bounds() orb.Bound {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bound
}

func (v *Viewport) Zoom() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

// PanTo 保持缩放级别移动中心点
func (v *Viewport) PanTo(center orb.Point) {
	v.mu.Lock()
	defer v.mu.Unlock()
	halfW := (v.bound.Max[0] - v.bound.Min[0]) / 2
	halfH := (v.bound.Max[1] - v.bound.Min[1]) / 2
	v.bound = orb.Bound{
		Min: orb.Point{center[0] - halfW, center[1] - halfH},
		Max: orb.Point{center[0] + halfW, center[1] + halfH},
	}
	c := center
	v.commands = append(v.commands, CameraCommand{Type: "pan_to", Center: &c})
}

// FitBounds 缩放到指定范围
func (v *Viewport) FitBounds(b orb.Bound) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bound = b
	v.zoom = ZoomForBounds(b, v.width, v.height)
	v.commands = append(v.commands, CameraCommand{
		Type:   "fit_bounds",
		Bounds: []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]},
	})
}

// DrainCommands 取出并清空待执行指令
func (v *Viewport) DrainCommands() []CameraCommand {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := v.commands
	v.commands = nil
	return out
}

// lonLatToPixel 经纬度转 0 级全局像素坐标
func lonLatToPixel(lon, lat float64) (float64, float64) {
	lat = math.Max(-MaxLat, math.Min(MaxLat, lat))
	x := (lon + 180.0) / 360.0 * TileSize
	latRad := lat * math.Pi / 180.0
	y := (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * TileSize
	return x, y
}

// ZoomForBounds 范围恰好铺满 width x height 像素时的缩放级别
func ZoomForBounds(b orb.Bound, width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	minX, maxY := lonLatToPixel(b.Min[0], b.Min[1])
	maxX, minY := lonLatToPixel(b.Max[0], b.Max[1])
	spanX := maxX - minX
	spanY := maxY - minY
	if spanX <= 0 || spanY <= 0 {
		return 0
	}
	z := math.Min(math.Log2(float64(width)/spanX), math.Log2(float64(height)/spanY))
	return math.Max(0, z)
}
