// Package main is a small standalone entrypoint that wires one Channel
// Group from the environment, enqueues a handful of demo records, and
// prints what happened to each one. It exists to exercise
// internal/container's wiring end to end outside of unit tests.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gpt-load-telemetry/channel-sdk/internal/channel"
	"github.com/gpt-load-telemetry/channel-sdk/internal/container"
	"github.com/gpt-load-telemetry/channel-sdk/internal/errors"
	"github.com/gpt-load-telemetry/channel-sdk/internal/models"
	"github.com/gpt-load-telemetry/channel-sdk/internal/utils"
)

const exitFailure = 1

// demoDelegate prints send outcomes and pause/resume callbacks so a human
// running this binary can see the Channel Unit's state machine react in
// real time. The other callbacks fall through to BaseDelegate's no-ops.
type demoDelegate struct {
	channel.BaseDelegate
}

func (demoDelegate) DidSucceedSendingLog(r *models.Record) {
	fmt.Printf("sent: %s\n", r.ID)
}

func (demoDelegate) DidFailSendingLog(r *models.Record, err *errors.ChannelError) {
	fmt.Printf("failed: %s (%s)\n", r.ID, err)
}

func (demoDelegate) DidPause(id any) {
	fmt.Printf("paused by %v\n", id)
}

func (demoDelegate) DidResume(id any) {
	fmt.Printf("resumed by %v\n", id)
}

func main() {
	defer utils.CloseLogger()

	c, err := container.BuildContainer(os.Getenv("ENV_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sdkdemo: building container: %v\n", err)
		os.Exit(exitFailure)
	}

	err = c.Invoke(func(g *channel.ChannelGroup) error {
		unit, err := g.AddUnit(models.GroupConfig{
			GroupID:             "demo",
			FlushInterval:       2 * time.Second,
			BatchSizeLimit:      10,
			PendingBatchesLimit: 3,
		})
		if err != nil {
			return fmt.Errorf("adding demo unit: %w", err)
		}
		unit.AddDelegate(demoDelegate{})

		for i := 0; i < 5; i++ {
			unit.Enqueue(&models.Record{
				Payload:   []byte(fmt.Sprintf(`{"event":"demo","seq":%d}`, i)),
				Timestamp: time.Now(),
			}, models.FlagsNormal)
		}

		g.Drain()
		time.Sleep(3 * time.Second)
		g.Drain()
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sdkdemo: %v\n", err)
		os.Exit(exitFailure)
	}
}
