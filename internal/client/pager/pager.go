// Package pager drives paged, searchable and filterable list views on top of
// the REST client. Every parameter change starts a new fetch; a superseded
// fetch is cancelled and its result discarded.
package pager

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/SAP-F-2025/quiz-portal/internal/client"
)

const (
	// DefaultDebounce is how long a search term must stay unchanged before it is fetched.
	DefaultDebounce = 500 * time.Millisecond
	// FetchFailed is the message shown for any failed fetch.
	FetchFailed = "Failed to fetch data"
)

// FetchFunc loads one page of a collection, usually a list method of client.Client.
type FetchFunc[T any] func(ctx context.Context, params client.ListParams) (*client.ListResponse[T], error)

// Pagination is 0-based.
type Pagination struct {
	Page    int
	PerPage int
}

// SearchCriteria picks the column a search term is matched against and how.
type SearchCriteria struct {
	Type   client.SearchType
	Column string
}

// State is what a list view renders. Error holds a user-facing message, not the raw error.
type State[T any] struct {
	Items      []client.Record[T]
	Total      int64
	Pagination Pagination
	Criteria   SearchCriteria
	Term       string
	Filters    map[string]string
	Loading    bool
	Error      string
}

// Option configures a Pager at construction.
type Option func(*settings)

type settings struct {
	debounce time.Duration
	criteria SearchCriteria
	term     string
	filters  map[string]string
	include  []string
	logger   *slog.Logger
}

// WithDebounce overrides DefaultDebounce. Zero fetches on every keystroke.
func WithDebounce(d time.Duration) Option {
	return func(s *settings) { s.debounce = d }
}

// WithSearchColumn sets the column searched before the user picks one.
func WithSearchColumn(column string) Option {
	return func(s *settings) { s.criteria.Column = column }
}

// WithSearchType sets how the initial search term is matched.
func WithSearchType(t client.SearchType) Option {
	return func(s *settings) { s.criteria.Type = t }
}

// WithTerm starts the pager with a search term already applied.
func WithTerm(term string) Option {
	return func(s *settings) { s.term = term }
}

// WithFilters starts the pager with field filters applied. The map is copied.
func WithFilters(filters map[string]string) Option {
	return func(s *settings) { s.filters = maps.Clone(filters) }
}

// WithInclude asks the server to embed the named relations in every page.
func WithInclude(rel ...string) Option {
	return func(s *settings) { s.include = rel }
}

// WithLogger replaces slog.Default for failed fetch logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// Pager holds the list parameters of one view and the latest page fetched with them.
// It is safe for concurrent use.
type Pager[T any] struct {
	fetch    FetchFunc[T]
	base     context.Context
	debounce time.Duration
	include  []string
	logger   *slog.Logger

	mu          sync.Mutex
	state       State[T]
	gen         uint64
	cancel      context.CancelFunc
	timer       *time.Timer
	subscribers map[int]func(State[T])
	nextSub     int
}

// New creates a pager. ctx bounds every fetch the pager starts on its own,
// including debounced searches; cancel it (or call Close) to stop the pager.
// No fetch happens until FetchData or a setter is called.
func New[T any](ctx context.Context, fetch FetchFunc[T], initial Pagination, opts ...Option) *Pager[T] {
	s := settings{
		debounce: DefaultDebounce,
		criteria: SearchCriteria{Type: client.SearchContains},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.filters == nil {
		s.filters = map[string]string{}
	}
	if initial.Page < 0 {
		initial.Page = 0
	}
	return &Pager[T]{
		fetch:    fetch,
		base:     ctx,
		debounce: s.debounce,
		include:  s.include,
		logger:   s.logger,
		state: State[T]{
			Pagination: initial,
			Criteria:   s.criteria,
			Term:       s.term,
			Filters:    s.filters,
		},
		subscribers: map[int]func(State[T]){},
	}
}

// Snapshot returns a copy of the current state.
func (p *Pager[T]) Snapshot() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyState()
}

func (p *Pager[T]) copyState() State[T] {
	s := p.state
	s.Items = append([]client.Record[T](nil), p.state.Items...)
	s.Filters = maps.Clone(p.state.Filters)
	return s
}

// Subscribe registers fn for every state change and returns a func that removes it.
func (p *Pager[T]) Subscribe(fn func(State[T])) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, id)
	}
}

// FetchData refetches with the current parameters, e.g. after a mutation.
func (p *Pager[T]) FetchData(ctx context.Context) error {
	p.mu.Lock()
	p.stopTimer()
	return p.startLocked(ctx)
}

// SetPage moves to a 0-based page; negative pages clamp to the first.
func (p *Pager[T]) SetPage(ctx context.Context, page int) error {
	if page < 0 {
		page = 0
	}
	p.mu.Lock()
	p.state.Pagination.Page = page
	p.stopTimer()
	return p.startLocked(ctx)
}

// SetPerPage changes the page size and refetches the current page.
func (p *Pager[T]) SetPerPage(ctx context.Context, perPage int) error {
	p.mu.Lock()
	p.state.Pagination.PerPage = perPage
	p.stopTimer()
	return p.startLocked(ctx)
}

// SetCriteria changes the search column and match type and goes back to the first page.
func (p *Pager[T]) SetCriteria(ctx context.Context, criteria SearchCriteria) error {
	p.mu.Lock()
	p.state.Criteria = criteria
	p.state.Pagination.Page = 0
	p.stopTimer()
	return p.startLocked(ctx)
}

// SetFilters replaces all field filters with a copy of filters.
func (p *Pager[T]) SetFilters(ctx context.Context, filters map[string]string) error {
	p.mu.Lock()
	p.state.Filters = maps.Clone(filters)
	if p.state.Filters == nil {
		p.state.Filters = map[string]string{}
	}
	p.stopTimer()
	return p.startLocked(ctx)
}

// SetTerm updates the search term and schedules a fetch once the term has
// been quiet for the debounce period. The page goes back to the first one.
func (p *Pager[T]) SetTerm(term string) {
	p.mu.Lock()
	p.state.Term = term
	p.state.Pagination.Page = 0
	p.stopTimer()
	p.timer = time.AfterFunc(p.debounce, func() {
		p.mu.Lock()
		p.timer = nil
		_ = p.startLocked(p.base)
	})
	snapshot := p.copyState()
	subs := p.subscriberList()
	p.mu.Unlock()
	notify(subs, snapshot)
}

// Close cancels any pending search and in-flight fetch.
func (p *Pager[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimer()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
}

func (p *Pager[T]) stopTimer() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// startLocked runs a fetch for the current parameters. It must be called
// with p.mu held and releases it.
func (p *Pager[T]) startLocked(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	gen := p.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.state.Loading = true
	p.state.Error = ""
	params := p.paramsLocked()
	loading := p.copyState()
	subs := p.subscriberList()
	p.mu.Unlock()
	notify(subs, loading)

	resp, err := p.fetch(fetchCtx, params)

	p.mu.Lock()
	if gen != p.gen {
		// Superseded by a newer fetch.
		p.mu.Unlock()
		cancel()
		return context.Canceled
	}
	cancel()
	p.cancel = nil
	p.state.Loading = false
	switch {
	case err != nil:
		if !errors.Is(err, context.Canceled) {
			p.logger.Warn("List fetch failed", "error", err, "page", params.Page)
		}
		p.state.Error = FetchFailed
	case resp != nil:
		p.state.Items = resp.Items
		if total, ok := resp.Total(); ok {
			p.state.Total = total
		}
	}
	done := p.copyState()
	subs = p.subscriberList()
	p.mu.Unlock()
	notify(subs, done)
	return err
}

func (p *Pager[T]) paramsLocked() client.ListParams {
	s := p.state
	params := client.ListParams{
		Page:    s.Pagination.Page,
		PerPage: s.Pagination.PerPage,
		Filters: maps.Clone(s.Filters),
		Include: p.include,
	}
	if s.Term != "" {
		params.SearchType = s.Criteria.Type
		params.SearchColumn = s.Criteria.Column
		params.SearchKeyword = s.Term
	}
	return params
}

func (p *Pager[T]) subscriberList() []func(State[T]) {
	subs := make([]func(State[T]), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func notify[T any](subs []func(State[T]), s State[T]) {
	for _, fn := range subs {
		fn(s)
	}
}
