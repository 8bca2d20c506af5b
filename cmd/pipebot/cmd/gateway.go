package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marhthing/pipebot/internal/archive"
	"github.com/marhthing/pipebot/internal/builtin"
	"github.com/marhthing/pipebot/internal/bus"
	"github.com/marhthing/pipebot/internal/channels"
	"github.com/marhthing/pipebot/internal/command"
	"github.com/marhthing/pipebot/internal/config"
	"github.com/marhthing/pipebot/internal/media"
	"github.com/marhthing/pipebot/internal/pipeline"
	"github.com/marhthing/pipebot/internal/scheduler"
	"github.com/marhthing/pipebot/internal/state"
	"github.com/marhthing/pipebot/internal/ttlstore"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the message gateway",
	Long:  "Start the gateway that connects to configured channels and runs every inbound message through the processing pipeline.",
	RunE:  runGateway,
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig("")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Host.Owner == "" {
		fmt.Println("No owner configured.")
		fmt.Println("Run 'pipebot setup' to configure the host.")
		return nil
	}
	if !cfg.Channels.Telegram.Enabled {
		fmt.Println("No channels configured.")
		fmt.Println("Run 'pipebot setup' to configure a channel.")
		return nil
	}

	msgBus := bus.NewMessageBus(100)
	defer msgBus.Close()

	// Permission state persists across restarts next to the config.
	st := state.New()
	st.SetPersistPath(cfg.StatePath())
	if err := st.Load(); err != nil {
		return fmt.Errorf("failed to load permission state: %w", err)
	}
	if st.Owner() == "" {
		if err := st.SetOwner(cfg.Host.Owner); err != nil {
			return fmt.Errorf("invalid owner %q: %w", cfg.Host.Owner, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweep := time.Duration(cfg.Host.CooldownSweepSecs) * time.Second
	if sweep <= 0 {
		sweep = ttlstore.DefaultSweepInterval
	}
	cooldowns := ttlstore.NewWithInterval(sweep)
	go cooldowns.Run(ctx)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(msgBus, cfg.SchedulerPath())
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	registry := command.NewRegistry()
	dispatcher := command.NewDispatcher(registry, st, cooldowns)
	if err := builtin.Register(builtin.Deps{
		Registry:   registry,
		Dispatcher: dispatcher,
		State:      st,
		Cooldowns:  cooldowns,
		Scheduler:  sched,
		StartedAt:  time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to register builtin commands: %w", err)
	}

	var archiveStore *archive.Store
	if cfg.Archive.Enabled {
		archiveStore, err = archive.Open(cfg.ArchivePath())
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer archiveStore.Close()
	}

	var fetcher *media.Fetcher
	if cfg.Media.Enabled {
		fetcher = media.NewFetcher(cfg.MediaDir())
	}

	pipe := pipeline.New(dispatcher)
	for _, stage := range pipeline.DefaultStages(archiverOrNil(archiveStore), st, fetcherOrNil(fetcher), cfg.Host.Prefix) {
		pipe.Append(stage)
	}

	manager := channels.NewManager(cfg, msgBus)
	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize channels: %w", err)
	}
	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}
	defer manager.StopAll()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start outbound message dispatcher
	go msgBus.DispatchOutbound(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runEventLoop(ctx, msgBus, pipe)
	}()

	fmt.Printf("Owner: %s\n", st.Owner())
	fmt.Printf("Channels: %v\n", manager.RunningChannels())
	fmt.Println()
	fmt.Println("Gateway is running. Press Ctrl+C to stop.")

	<-sigChan
	fmt.Println("\nShutting down gateway...")

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		fmt.Println("Gateway stopped gracefully.")
	case <-time.After(10 * time.Second):
		fmt.Println("Gateway shutdown timed out.")
	}

	return nil
}

// runEventLoop consumes inbound events and runs each through the
// pipeline. Events are handled one at a time; the pipeline run for
// event N finishes before event N+1 starts, preserving conversation
// order.
func runEventLoop(ctx context.Context, msgBus *bus.MessageBus, pipe *pipeline.Pipeline) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		evt, err := msgBus.ConsumeInboundWithTimeout(ctx, 1*time.Second)
		if err != nil {
			if errors.Is(err, bus.ErrTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}

		rsp := bus.NewResponder(msgBus, evt.Channel, evt.Chat, evt.ID)
		if err := pipe.Handle(ctx, &evt, rsp); err != nil {
			// Only recovery failures reach here; the process stays up.
			log.Printf("[gateway] pipeline run aborted: %v", err)
		}
	}
}

// archiverOrNil avoids handing the pipeline a typed nil pointer inside
// a non-nil interface value.
func archiverOrNil(store *archive.Store) pipeline.Archiver {
	if store == nil {
		return nil
	}
	return store
}

func fetcherOrNil(f *media.Fetcher) pipeline.MediaFetcher {
	if f == nil {
		return nil
	}
	return f
}
