package services

import (
	"context"
	"errors"
	"testing"

	"github.com/GrainArc/MopedMap/config"
	"github.com/GrainArc/MopedMap/methods"
	"github.com/paulmach/orb"
)

func TestNetworkQueryAll(t *testing.T) {
	q := newNetwork()
	svc := NewNetworkService(q, config.AgolConfig{
		Lines:  config.LayerConfig{Service: linesService},
		Points: config.LayerConfig{Service: pointsService},
	})
	bounds := orb.Bound{Max: orb.Point{1, 1}}

	all, err := svc.QueryAll(context.Background(), bounds)
	if err != nil {
		t.Fatal(err)
	}
	if len(all[methods.LayerLines].Features) != 3 || len(all[methods.LayerPoints].Features) != 1 {
		t.Errorf("Unexpected results %v", all)
	}

	if _, err := svc.Query(context.Background(), "ctn-polygons", bounds); !errors.Is(err, ErrUnknownSourceLayer) {
		t.Errorf("Expected ErrUnknownSourceLayer, got %v", err)
	}

	q.err = errors.New("boom")
	if _, err := svc.QueryAll(context.Background(), bounds); err == nil {
		t.Error("Expected error when a layer fails")
	}
}
