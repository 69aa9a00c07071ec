package directory

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	DefaultPageSize    = 50
	DefaultSearchLimit = 1000
)

// Source is the remote dataset the controller reads from. *Client implements it.
type Source interface {
	FetchPage(ctx context.Context, offset, limit int) ([]City, error)
	FetchMatching(ctx context.Context, term string, maxResults int) ([]City, error)
}

// ControllerConfig sizes browse pages and bounds search breadth.
type ControllerConfig struct {
	PageSize    int
	SearchLimit int
}

// view is the mode-specific part of the state. The browse list is shared by both
// variants: it grows while browsing and is left alone while searching.
type view interface {
	mode() Mode
}

type browsing struct{}

func (browsing) mode() Mode { return ModeBrowsing }

type searching struct {
	term    string
	results []City
}

func (searching) mode() Mode { return ModeSearching }

// request is one outstanding fetch. epoch is the controller epoch it was issued under.
type request struct {
	epoch  uint64
	cancel context.CancelFunc
}

// Controller reconciles infinite-scroll paging with search overrides for one screen.
// Fetches run without holding the lock; results are applied only if no mode switch
// happened in the meantime.
type Controller struct {
	source      Source
	pageSize    int
	searchLimit int
	logger      *zap.Logger

	mu          sync.Mutex
	state       view
	accumulated []City
	exhausted   bool
	epoch       uint64
	inflight    *request
	lastErr     error
}

func NewController(source Source, cfg ControllerConfig, logger *zap.Logger) *Controller {
	if cfg.PageSize < 1 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.SearchLimit < 1 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	return &Controller{
		source:      source,
		pageSize:    cfg.PageSize,
		searchLimit: cfg.SearchLimit,
		logger:      logger,
		state:       browsing{},
	}
}

// Init performs the initial page load. It does nothing unless the controller is
// browsing with nothing accumulated yet.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if len(c.accumulated) > 0 {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.LoadMore(ctx)
}

// LoadMore handles a scroll-proximity signal. The signal is dropped while searching,
// while another fetch is in flight, or once the dataset is exhausted.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.state.mode() != ModeBrowsing || c.inflight != nil || c.exhausted {
		c.logger.Debug("load-more trigger dropped",
			zap.String("mode", string(c.state.mode())),
			zap.Bool("loading", c.inflight != nil),
			zap.Bool("exhausted", c.exhausted))
		c.mu.Unlock()
		return nil
	}
	offset := len(c.accumulated)
	req, reqCtx := c.beginLocked(ctx)
	c.mu.Unlock()

	page, err := c.source.FetchPage(reqCtx, offset, c.pageSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	apply, err := c.finishLocked(req, err)
	if !apply {
		return err
	}

	c.accumulated = append(c.accumulated, page...)
	if len(page) < c.pageSize {
		c.exhausted = true
	}
	c.logger.Debug("page appended",
		zap.Int("offset", offset),
		zap.Int("records", len(page)),
		zap.Int("accumulated", len(c.accumulated)))
	return nil
}

// Search switches to search mode and replaces the displayed list with the matches
// for term. An empty (or blank) term clears the search instead.
func (c *Controller) Search(ctx context.Context, term string) error {
	term = normalizeTerm(term)
	if term == "" {
		return c.ClearSearch(ctx)
	}

	c.mu.Lock()
	// Keep showing what was on screen until the matches arrive.
	c.switchLocked(searching{term: term, results: c.displayedLocked()})
	req, reqCtx := c.beginLocked(ctx)
	c.mu.Unlock()

	results, err := c.source.FetchMatching(reqCtx, term, c.searchLimit)

	c.mu.Lock()
	defer c.mu.Unlock()
	apply, err := c.finishLocked(req, err)
	if !apply {
		return err
	}

	c.state = searching{term: term, results: results}
	c.logger.Debug("search applied", zap.String("term", term), zap.Int("records", len(results)))
	return nil
}

// ClearSearch returns to browse mode and shows the accumulated list again without
// fetching. If nothing was ever accumulated the initial load runs.
func (c *Controller) ClearSearch(ctx context.Context) error {
	c.mu.Lock()
	if c.state.mode() == ModeBrowsing {
		c.mu.Unlock()
		return nil
	}
	c.switchLocked(browsing{})
	empty := len(c.accumulated) == 0
	c.mu.Unlock()

	if empty {
		return c.Init(ctx)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Mode:        c.state.mode(),
		Cities:      append([]City(nil), c.displayedLocked()...),
		Accumulated: len(c.accumulated),
		PageSize:    c.pageSize,
		Loading:     c.inflight != nil,
		Exhausted:   c.exhausted,
		Err:         c.lastErr,
	}
	if s, ok := c.state.(searching); ok {
		snap.Term = s.term
	}
	return snap
}

// Displayed returns a copy of the list currently shown.
func (c *Controller) Displayed() []City {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]City(nil), c.displayedLocked()...)
}

// Accumulated returns a copy of the browse list.
func (c *Controller) Accumulated() []City {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]City(nil), c.accumulated...)
}

// LastError returns the most recent fetch failure, nil after a successful fetch.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) displayedLocked() []City {
	if s, ok := c.state.(searching); ok {
		return s.results
	}
	return c.accumulated
}

// switchLocked moves to v under a new epoch and abandons the outstanding fetch.
func (c *Controller) switchLocked(v view) {
	c.epoch++
	if c.inflight != nil {
		c.inflight.cancel()
		c.inflight = nil
	}
	c.state = v
}

func (c *Controller) beginLocked(ctx context.Context) (*request, context.Context) {
	reqCtx, cancel := context.WithCancel(ctx)
	req := &request{epoch: c.epoch, cancel: cancel}
	c.inflight = req
	return req, reqCtx
}

// finishLocked settles req and reports whether its result may be applied. A result
// superseded by a mode switch is dropped silently: the error is nil.
func (c *Controller) finishLocked(req *request, err error) (bool, error) {
	req.cancel()
	if c.inflight == req {
		c.inflight = nil
	}
	if req.epoch != c.epoch {
		c.logger.Debug("discarding stale directory result",
			zap.Uint64("requestEpoch", req.epoch),
			zap.Uint64("epoch", c.epoch),
			zap.Error(err))
		return false, nil
	}
	if err != nil {
		c.lastErr = err
		c.logger.Warn("directory fetch failed", zap.Error(err))
		return false, err
	}
	c.lastErr = nil
	return true, nil
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
