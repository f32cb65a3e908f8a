package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"labbroker/internal/agent"
	"labbroker/internal/availability"
	"labbroker/pkg/logger"
	"labbroker/pkg/model"
)

// Candidate is one resource that can answer an availability query.
type Candidate interface {
	Resource() *model.Resource
	Check(ctx context.Context, interval model.Interval, studentCount int) (availability.Result, *model.Resource, error)
}

// Source lists the current candidates.
type Source func(ctx context.Context) ([]Candidate, error)

// RegistrySource adapts the agent registry.
func RegistrySource(registry *agent.Registry) Source {
	return func(ctx context.Context) ([]Candidate, error) {
		agents, err := registry.Agents(ctx)
		if err != nil {
			return nil, err
		}
		candidates := make([]Candidate, len(agents))
		for i, a := range agents {
			candidates[i] = a
		}
		return candidates, nil
	}
}

type Query struct {
	Interval     model.Interval
	StudentCount int
	LabName      string
	Equipment    []string
}

type Dispatcher struct {
	source  Source
	limiter chan struct{}
	timeout time.Duration
	log     *logger.Logger
}

func NewDispatcher(source Source, maxConcurrency int, timeout time.Duration, log *logger.Logger) *Dispatcher {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Dispatcher{
		source:  source,
		limiter: make(chan struct{}, maxConcurrency),
		timeout: timeout,
		log:     log,
	}
}

// Query fans the question out to every candidate that passes the filter
// and waits for all of them. Results keep candidate order; a candidate that
// fails or times out yields an ERROR element instead of failing the query.
func (d *Dispatcher) Query(ctx context.Context, q Query) ([]model.AvailabilityResult, error) {
	all, err := d.source(ctx)
	if err != nil {
		return nil, err
	}

	candidates := selectCandidates(all, q)
	results := make([]model.AvailabilityResult, len(candidates))

	var wg sync.WaitGroup
	wg.Add(len(candidates))
	for i, c := range candidates {
		go func(i int, c Candidate) {
			defer wg.Done()
			results[i] = d.ask(ctx, c, q)
		}(i, c)
	}
	wg.Wait()

	d.log.Debug("Availability query completed",
		"interval", q.Interval.String(),
		"student_count", q.StudentCount,
		"candidates", len(candidates),
		"catalog_size", len(all),
	)
	return results, nil
}

func selectCandidates(all []Candidate, q Query) []Candidate {
	resources := make([]*model.Resource, len(all))
	byResource := make(map[*model.Resource]Candidate, len(all))
	for i, c := range all {
		resources[i] = c.Resource()
		byResource[resources[i]] = c
	}
	kept := Filter(resources, q.LabName, q.Equipment)
	out := make([]Candidate, len(kept))
	for i, r := range kept {
		out[i] = byResource[r]
	}
	return out
}

type answer struct {
	result availability.Result
	fresh  *model.Resource
	err    error
}

func (d *Dispatcher) ask(ctx context.Context, c Candidate, q Query) model.AvailabilityResult {
	resource := c.Resource()
	fail := func(err error) model.AvailabilityResult {
		d.log.Warn("Resource failed to answer availability query", "resource", resource.Name, "error", err)
		return model.AvailabilityResult{
			ResourceName: resource.Name,
			Status:       model.StatusError,
			Interval:     q.Interval,
			StudentCount: q.StudentCount,
			Error:        err.Error(),
		}
	}

	select {
	case d.limiter <- struct{}{}:
	case <-ctx.Done():
		return fail(ctx.Err())
	}
	defer func() { <-d.limiter }()

	checkCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	done := make(chan answer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- answer{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		result, fresh, err := c.Check(checkCtx, q.Interval, q.StudentCount)
		done <- answer{result: result, fresh: fresh, err: err}
	}()

	select {
	case a := <-done:
		if a.err != nil {
			return fail(a.err)
		}
		return a.result.ToModel(a.fresh, q.Interval, q.StudentCount)
	case <-checkCtx.Done():
		return fail(checkCtx.Err())
	}
}
