package p2plink

import (
	"context"

	"go.uber.org/zap"

	"github.com/wfdtools/wfdlink/internal/config"
	"github.com/wfdtools/wfdlink/internal/logging"
	"github.com/wfdtools/wfdlink/internal/retry"
)

// GroupWatcher polls for group formation and locates the connected client
// matching a requested peer. Group formation lags the connect handshake, so
// the first polls routinely come back empty.
type GroupWatcher struct {
	api       PeerConnectionAPI
	scheduler *retry.Scheduler
	settings  config.Settings
}

// NewGroupWatcher creates a watcher over the given platform API.
func NewGroupWatcher(api PeerConnectionAPI, scheduler *retry.Scheduler, settings config.Settings) *GroupWatcher {
	return &GroupWatcher{
		api:       api,
		scheduler: scheduler,
		settings:  settings,
	}
}

// AwaitClient polls for group info until it is available, then locates the
// client whose device address matches peerAddress and hands it to done.
// done is called exactly once: with the client, or with an error when the
// poll budget runs out (GroupInfoUnavailable), the peer is not in the
// group (ClientNotFound, immediate, never retried), or ctx is cancelled
// between polls.
func (w *GroupWatcher) AwaitClient(ctx context.Context, peerAddress string, done func(*ConnectedClient, error)) {
	w.poll(ctx, peerAddress, 1, done)
}

func (w *GroupWatcher) poll(ctx context.Context, peerAddress string, attempt int, done func(*ConnectedClient, error)) {
	info, err := w.api.RequestGroupInfo(ctx)
	if err != nil || info == nil {
		// Not formed yet. An error from the fetch is treated the same as a
		// pending group: transient, retried on the same budget.
		if attempt >= w.settings.MaxGroupInfoAttempts {
			logging.Error("Group never became available",
				zap.String("peer", peerAddress),
				zap.Int("attempts", attempt),
			)
			done(nil, NewGroupInfoUnavailableError(peerAddress, attempt))
			return
		}
		logging.Debug("Group info not yet available, retrying",
			zap.String("peer", peerAddress),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", w.settings.MaxGroupInfoAttempts),
		)
		w.scheduler.Schedule(ctx, w.settings.GroupInfoRetryDelay, func(serr error) {
			if serr != nil {
				done(nil, serr)
				return
			}
			w.poll(ctx, peerAddress, attempt+1, done)
		})
		return
	}

	logging.Info("Group formed",
		zap.String("peer", peerAddress),
		zap.Bool("is_owner", info.IsOwner),
		zap.Int("clients", len(info.Clients)),
	)

	client := info.FindClient(peerAddress)
	if client == nil {
		done(nil, NewClientNotFoundError(peerAddress))
		return
	}
	done(client, nil)
}
