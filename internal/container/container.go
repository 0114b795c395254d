// Package container wires the SDK's collaborators together with dig so an
// embedding application gets one fully-constructed ChannelGroup instead of
// hand-assembling the store, ingestion client, and auth-token timeline
// itself.
package container

import (
	"fmt"

	"github.com/gpt-load-telemetry/channel-sdk/internal/authcontext"
	"github.com/gpt-load-telemetry/channel-sdk/internal/channel"
	"github.com/gpt-load-telemetry/channel-sdk/internal/config"
	"github.com/gpt-load-telemetry/channel-sdk/internal/db"
	"github.com/gpt-load-telemetry/channel-sdk/internal/ingestion"
	"github.com/gpt-load-telemetry/channel-sdk/internal/store"
	"github.com/gpt-load-telemetry/channel-sdk/internal/utils"
	"go.uber.org/dig"
)

// BuildContainer constructs a dig.Container with every collaborator an
// embedding app needs: a *config.Manager, the dialect-sniffed *gorm.DB
// wrapped in a store.Store, a default ingestion.Ingestion pointed at the
// configured endpoint, an in-memory authcontext.Timeline, and the
// *channel.ChannelGroup built from all of the above. envFile is passed
// through to config.NewManager unchanged (pass "" to skip .env loading).
func BuildContainer(envFile string) (*dig.Container, error) {
	c := dig.New()

	providers := []any{
		func() (*config.Manager, error) {
			return config.NewManager(envFile)
		},
		func(cm *config.Manager) (store.Store, error) {
			gdb, err := db.Open(cm.GetDatabaseConfig().DSN)
			if err != nil {
				return nil, fmt.Errorf("container: connecting database: %w", err)
			}
			return store.NewGormStore(gdb)
		},
		func(cm *config.Manager) ingestion.Ingestion {
			return ingestion.NewHTTPIngestionClient(cm.GetDefaults().IngestionEndpoint, nil, nil)
		},
		func() authcontext.Timeline {
			return authcontext.NewInMemoryTimeline()
		},
		func(cm *config.Manager, st store.Store, ing ingestion.Ingestion, timeline authcontext.Timeline) *channel.ChannelGroup {
			utils.SetupLogger(cm.GetLogConfig().Level, cm.GetLogConfig().Format, cm.GetLogConfig().EnableFile, cm.GetLogConfig().FilePath)
			d := cm.GetDefaults()
			defaults := channel.GroupDefaults{
				FlushInterval:       d.FlushInterval,
				BatchSizeLimit:      d.BatchSizeLimit,
				PendingBatchesLimit: d.PendingBatchesLimit,
				ExcludedTargetKeys:  d.ExcludedTargetKeys,
			}
			return channel.NewChannelGroup(st, ing, timeline, channel.NopAmbient{}, defaults)
		},
	}

	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return nil, fmt.Errorf("container: providing %T: %w", p, err)
		}
	}

	return c, nil
}
