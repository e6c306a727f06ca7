package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "jobpulse/pkg/logx"
)

// Config controls the scheduler.
type Config struct {
	Enabled        bool
	Timezone       string // IANA TZ, e.g. "Europe/Berlin"
	DefaultTimeout time.Duration
}

const DefaultTimeout = 5 * time.Minute

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

type scheduleDef struct {
	name    string
	spec    string // cron expression or @every
	timeout time.Duration
	job     Job
	entryID cron.EntryID

	running atomic.Bool
	runs    atomic.Uint64
	skipped atomic.Uint64
	fails   atomic.Uint64
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	defs   map[string]*scheduleDef
}

type ScheduleInfo struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Next    time.Time
	Prev    time.Time
	Running bool
	Runs    uint64
	Skipped uint64
	Failed  uint64
}

type Snapshot struct {
	Enabled   bool
	Running   bool
	Timezone  string
	Schedules []ScheduleInfo
}
