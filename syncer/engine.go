// Package syncer accumulates readings into day buckets held in an object store that only
// supports full-object writes.
//
// Every episode fetches the bucket (or starts from a header-only copy when it does not exist
// yet), appends the new rows to a local working copy and publishes the whole copy back under the
// same key. The remote object is therefore replaced only with a strictly larger valid copy, or
// left untouched when anything fails.
//
// Episodes on the same key are serialized within a process. Nothing prevents two processes from
// racing on the same key, in which case the later publish wins and the earlier rows are lost:
// callers must schedule invocations so that they do not overlap.
package syncer

import (
	"bytes"
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/robertof/go-thermo-sync/bucket"
	"github.com/robertof/go-thermo-sync/device"
	"github.com/robertof/go-thermo-sync/metrics"
	"github.com/robertof/go-thermo-sync/store"
	"github.com/robertof/go-thermo-sync/utils"
)

type Engine struct {
	store  store.Store
	layout bucket.Layout
	locks  keyedMutex
}

// Result describes one completed episode.
type Result struct {
	Key       bucket.Key
	RemoteKey string
	// The bucket did not exist remotely and was started from the header.
	Initialized  bool
	RowsBefore   int
	RowsAppended int
	Bytes        int
}

func New(s store.Store, layout bucket.Layout) *Engine {
	return &Engine{store: s, layout: layout}
}

// Sync appends readings to the bucket identified by key and republishes it. Readings are
// written in ascending address order.
//
// A fetch failure other than not-found aborts before anything is written. A publish failure
// leaves the remote object as it was before the call; the appended rows are dropped and not
// retried.
func (e *Engine) Sync(ctx context.Context, key bucket.Key, readings []device.Reading) (res Result, err error) {
	remoteKey := e.layout.RemoteKey(key)
	wc := workingCopy{path: e.layout.LocalPath(key)}

	res.Key = key
	res.RemoteKey = remoteKey

	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	defer func() {
		if discardErr := wc.discard(); discardErr != nil {
			log.Warn().Err(discardErr).Stringer("Key", key).Msg("syncer: failed to remove working copy")
		}

		metrics.SyncEpisodes.WithLabelValues(outcome(err)).Inc()
	}()

	log.Debug().
		Stringer("Key", key).
		Str("RemoteKey", remoteKey).
		Int("Readings", len(readings)).
		Msg("syncer: starting sync episode")

	content, initialized, err := e.fetch(ctx, key, remoteKey)
	if err != nil {
		return res, err
	}

	res.Initialized = initialized
	res.RowsBefore = countRows(content)

	if err := wc.reset(content); err != nil {
		return res, err
	}

	if err := wc.append(sortedByAddress(readings)); err != nil {
		return res, err
	}

	published, err := wc.read()
	if err != nil {
		return res, err
	}

	if err := e.store.Put(ctx, remoteKey, published); err != nil {
		log.Error().
			Err(err).
			Stringer("Key", key).
			Int("RowsLost", len(readings)).
			Msg("syncer: failed to publish bucket, remote object left untouched")

		return res, errors.Wrapf(err, "syncer: publish %q", remoteKey)
	}

	res.RowsAppended = len(readings)
	res.Bytes = len(published)

	if initialized {
		metrics.BucketsInitialized.Inc()
	}

	metrics.RowsAppended.Add(float64(len(readings)))

	log.Info().
		Stringer("Key", key).
		Str("RemoteKey", remoteKey).
		Bool("Initialized", initialized).
		Int("RowsBefore", res.RowsBefore).
		Int("RowsAppended", res.RowsAppended).
		Int("Bytes", res.Bytes).
		Msg("syncer: bucket published")

	return res, nil
}

// fetch returns the current content of the bucket, normalized so that rows can be appended
// directly, or a header-only content when the bucket does not exist.
func (e *Engine) fetch(ctx context.Context, key bucket.Key, remoteKey string) (content []byte, initialized bool, err error) {
	content, err = e.store.Get(ctx, remoteKey)

	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Info().Stringer("Key", key).Str("RemoteKey", remoteKey).Msg("syncer: bucket does not exist yet, initializing")
		return []byte(bucket.HeaderLine), true, nil
	case err != nil:
		log.Error().Err(err).Stringer("Key", key).Msg("syncer: failed to fetch bucket, aborting")
		return nil, false, errors.Wrapf(err, "syncer: fetch %q", remoteKey)
	}

	if len(content) == 0 {
		log.Warn().Stringer("Key", key).Msg("syncer: remote bucket is empty, writing header")
		return []byte(bucket.HeaderLine), false, nil
	}

	if !bytes.HasPrefix(content, []byte(bucket.HeaderLine)) {
		log.Warn().
			Stringer("Key", key).
			Msg("syncer: remote bucket does not start with the expected header, keeping content as is")
	}

	if content[len(content)-1] != '\n' {
		content = append(content, '\n')
	}

	return content, false, nil
}

func sortedByAddress(readings []device.Reading) []device.Reading {
	out := make([]device.Reading, len(readings))
	copy(out, readings)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Address < out[j].Address
	})

	return out
}

var outcomes = map[error]string{
	ErrLocalIO:          "local_io",
	store.ErrPermission: "permission",
	store.ErrTransient:  "transient",
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}

	if class := utils.FirstMatching(err, ErrLocalIO, store.ErrPermission, store.ErrTransient); class != nil {
		return outcomes[class]
	}

	return "error"
}
