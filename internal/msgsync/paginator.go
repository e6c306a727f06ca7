package msgsync

import (
	"context"
	"time"

	logx "jobpulse/pkg/logx"
)

const (
	BatchSize  = 100
	MaxBatches = 10
)

// StopReason says why a history walk ended.
type StopReason string

const (
	StopNone    StopReason = ""
	StopEmpty   StopReason = "empty"   // history exhausted
	StopCutoff  StopReason = "cutoff"  // first message older than the cutoff
	StopCap     StopReason = "cap"     // MaxBatches fetched
	StopVisitor StopReason = "visitor" // visit returned false
)

type walkState int

const (
	stateFetching walkState = iota
	stateEvaluating
	stateDone
)

type WalkStats struct {
	Batches int
	Visited int
	Stop    StopReason
}

// Paginator walks a channel's history backward from now, one batch at a time,
// using the oldest id of the previous batch as the exclusive cursor.
type Paginator struct {
	api        HistoryAPI
	batchSize  int
	maxBatches int
	log        logx.Logger
}

func NewPaginator(api HistoryAPI, log logx.Logger) *Paginator {
	return &Paginator{api: api, batchSize: BatchSize, maxBatches: MaxBatches, log: log}
}

// withinCutoff is the only boundary predicate. The cutoff is inclusive and a
// zero cutoff disables it.
func withinCutoff(ts, cutoff time.Time) bool {
	return cutoff.IsZero() || !ts.Before(cutoff)
}

// exitReason decides, after a batch was evaluated, whether the walk ends.
func (p *Paginator) exitReason(batchLen, batches int, crossed bool) StopReason {
	switch {
	case batchLen == 0:
		return StopEmpty
	case crossed:
		return StopCutoff
	case batches >= p.maxBatches:
		return StopCap
	}
	return StopNone
}

// Walk calls visit for every message at or after cutoff, newest first. Any
// fetch failure aborts the walk and is returned as a TransportError (or the
// NotFoundError the transport reported). No retries happen here.
func (p *Paginator) Walk(ctx context.Context, channelID string, cutoff time.Time, visit func(Message) bool) (WalkStats, error) {
	var (
		stats  WalkStats
		batch  []Message
		cursor string
		state  = stateFetching
	)

	for state != stateDone {
		switch state {
		case stateFetching:
			if err := ctx.Err(); err != nil {
				return stats, asTransport("fetch history", err)
			}
			msgs, err := p.api.ChannelMessages(ctx, channelID, p.batchSize, cursor)
			if err != nil {
				return stats, asTransport("fetch history", err)
			}
			stats.Batches++
			batch = msgs
			state = stateEvaluating

		case stateEvaluating:
			crossed := false
			for _, m := range batch {
				if !withinCutoff(m.Timestamp, cutoff) {
					crossed = true
					break
				}
				stats.Visited++
				if !visit(m) {
					stats.Stop = StopVisitor
					state = stateDone
					break
				}
			}
			if state == stateDone {
				continue
			}
			if reason := p.exitReason(len(batch), stats.Batches, crossed); reason != StopNone {
				stats.Stop = reason
				state = stateDone
				continue
			}
			cursor = batch[len(batch)-1].ID
			state = stateFetching
		}
	}

	p.log.Debug("history walk done",
		logx.String("channel_id", channelID),
		logx.Int("batches", stats.Batches),
		logx.Int("visited", stats.Visited),
		logx.String("stop", string(stats.Stop)),
	)
	return stats, nil
}
