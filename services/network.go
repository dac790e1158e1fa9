package services

import (
	"context"

	"github.com/GrainArc/MopedMap/agol"
	"github.com/GrainArc/MopedMap/config"
	"github.com/GrainArc/MopedMap/methods"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

// NetworkService 直接查询路网图层，不经过编辑会话
type NetworkService struct {
	client agol.Querier
	layers map[string]config.LayerConfig
}

func NewNetworkService(client agol.Querier, cfg config.AgolConfig) *NetworkService {
	return &NetworkService{
		client: client,
		layers: map[string]config.LayerConfig{
			methods.LayerLines:  cfg.Lines,
			methods.LayerPoints: cfg.Points,
		},
	}
}

// Query 查询单个图层
func (s *NetworkService) Query(ctx context.Context, layer string, bounds orb.Bound) (*geojson.FeatureCollection, error) {
	lc, ok := s.layers[layer]
	if !ok {
		return nil, ErrUnknownSourceLayer
	}
	return s.client.Query(ctx, agol.QueryRequest{
		ServiceName: lc.Service,
		LayerID:     lc.Layer,
		Bounds:      bounds,
	})
}

// QueryAll 并发查询线、点两个图层，任一失败即返回错误
func (s *NetworkService) QueryAll(ctx context.Context, bounds orb.Bound) (map[string]*geojson.FeatureCollection, error) {
	lines := methods.LayerLines
	points := methods.LayerPoints
	results := make([]*geojson.FeatureCollection, 2)

	g, gctx := errgroup.WithContext(ctx)
	for i, layer := range []string{lines, points} {
		g.Go(func() error {
			fc, err := s.Query(gctx, layer, bounds)
			if err != nil {
				return err
			}
			results[i] = fc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return map[string]*geojson.FeatureCollection{
		lines:  results[0],
		points: results[1],
	}, nil
}
