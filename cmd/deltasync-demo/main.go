// Command deltasync-demo runs a small cluster of replicas over the in-memory
// network, hammers them with concurrent OR-set mutations, and waits for
// anti-entropy to converge.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shinyes/deltasync/internal/testutil/memnet"
	"github.com/shinyes/deltasync/pkg/lattice"
	"github.com/shinyes/deltasync/pkg/observability/logging"
	"github.com/shinyes/deltasync/pkg/replica"
)

const (
	clusterSize   = 3
	opsPerReplica = 50
)

func main() {
	logging.Init()

	cfg := replica.DefaultConfig()
	if len(os.Args) > 1 {
		loaded, err := replica.LoadConfig(os.Args[1])
		if err != nil {
			zap.L().Fatal("load config", zap.Error(err))
		}
		cfg = loaded
	}
	cfg.ShipInterval = 20 * time.Millisecond
	cfg.ShipDebounce = 5 * time.Millisecond

	ctx := context.Background()
	net := memnet.New()
	defer net.Close()

	replicas := make([]*replica.Replica, 0, clusterSize)
	for i := 0; i < clusterSize; i++ {
		cfg.Name = fmt.Sprintf("replica-%d-%s", i, uuid.NewString()[:8])
		r, err := replica.New(lattice.ORSetLattice{}, replica.WithConfig(cfg))
		if err != nil {
			zap.L().Fatal("create replica", zap.Error(err))
		}
		if err := net.Join(r); err != nil {
			zap.L().Fatal("join network", zap.Error(err))
		}
		r.Start(ctx)
		replicas = append(replicas, r)
	}
	defer func() {
		for _, r := range replicas {
			r.Stop()
		}
	}()

	for _, r := range replicas {
		for _, other := range replicas {
			if other.Name() != r.Name() {
				if err := r.AddNeighbour(net.Endpoint(other.Name())); err != nil {
					zap.L().Fatal("add neighbour", zap.Error(err))
				}
			}
		}
	}

	var g errgroup.Group
	for i, r := range replicas {
		g.Go(func() error {
			for n := 0; n < opsPerReplica; n++ {
				if err := r.Apply(ctx, "add", fmt.Sprintf("item-%d-%d", i, n)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		zap.L().Fatal("apply ops", zap.Error(err))
	}

	want := clusterSize * opsPerReplica
	deadline := time.Now().Add(10 * time.Second)
	for {
		if converged(ctx, replicas, want) {
			break
		}
		if time.Now().After(deadline) {
			zap.L().Fatal("cluster did not converge", zap.Int("want", want))
		}
		time.Sleep(50 * time.Millisecond)
	}

	for _, r := range replicas {
		info, err := r.Info(ctx)
		if err != nil {
			zap.L().Fatal("info", zap.Error(err))
		}
		stats := r.Stats()
		fmt.Printf("%s: seq=%d shipped=%d buffered=%d intervalShips=%d stateShips=%d\n",
			info.Name, info.Seq, info.Shipped, info.BufferLen,
			stats.IntervalShips, stats.StateShips)
	}
	fmt.Printf("converged on %d elements across %d replicas\n", want, clusterSize)
}

func converged(ctx context.Context, replicas []*replica.Replica, want int) bool {
	for _, r := range replicas {
		v, err := r.Read(ctx)
		if err != nil {
			return false
		}
		if len(v.([]string)) != want {
			return false
		}
	}
	return true
}
