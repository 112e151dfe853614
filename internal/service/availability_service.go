package service

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"consultbooking/internal/entities"
	"consultbooking/internal/fsm"
	"consultbooking/internal/registry"
)

const (
	slotDuration     = 30 * time.Minute
	slotLeadTime     = time.Hour
	availabilityDays = 14

	// per-worker shift/appointment fetches run in parallel, bounded so a
	// long roster does not hammer the backend.
	maxWorkerFetches = 4
)

type AvailabilityService struct {
	backend  AvailabilityBackend
	registry *registry.Registry
	loc      *time.Location
	cache    *availabilityCache
	now      func() time.Time
}

func NewAvailabilityService(backend AvailabilityBackend, reg *registry.Registry, loc *time.Location, cacheTTL time.Duration) *AvailabilityService {
	return &AvailabilityService{
		backend:  backend,
		registry: reg,
		loc:      loc,
		cache:    newAvailabilityCache(cacheTTL),
		now:      time.Now,
	}
}

// ComputeAvailability returns the bookable 30-minute slots for the next 14
// days across every worker eligible for the service type. A failure fetching
// one worker's calendar skips that worker and keeps the rest.
func (s *AvailabilityService) ComputeAvailability(ctx context.Context, serviceTypeID string) ([]entities.DateEntry, error) {
	workers, err := s.registry.EligibleWorkers(serviceTypeID)
	if err != nil {
		return nil, err
	}
	if len(workers) == 0 {
		return []entities.DateEntry{}, nil
	}

	now := s.now()
	if cached, ok := s.cache.get(serviceTypeID, now); ok {
		return cached, nil
	}

	horizon := now.Add(availabilityDays * 24 * time.Hour)
	shiftsFrom := startOfDay(now, s.loc)

	acc := newSlotAccumulator(s.loc)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkerFetches)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			shifts, err := s.backend.ListShifts(gctx, w.ID, shiftsFrom, horizon)
			if err != nil {
				log.Printf("availability: skipping worker %d (%s), shift fetch failed: %v", w.ID, w.Name, err)
				return nil
			}
			appts, err := s.backend.ListAppointments(gctx, w.ID, now, horizon)
			if err != nil {
				log.Printf("availability: skipping worker %d (%s), appointment fetch failed: %v", w.ID, w.Name, err)
				return nil
			}
			starts := workerSlotStarts(shifts, appts, now, horizon)
			mu.Lock()
			for _, t := range starts {
				acc.add(t, w)
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	entries := acc.entries()
	s.cache.put(serviceTypeID, entries, now)
	return entries, nil
}

// workerSlotStarts walks each shift in fixed 30-minute steps from shift
// start. A step is bookable when it lies entirely within the shift, starts
// more than an hour from now, sits inside the 14-day horizon and its full
// interval is clear of the worker's appointments.
func workerSlotStarts(shifts []fsm.Shift, appts []fsm.Appointment, now, horizon time.Time) []time.Time {
	minStart := now.Add(slotLeadTime)
	var out []time.Time
	for _, sh := range shifts {
		for t := sh.Start; !t.Add(slotDuration).After(sh.End); t = t.Add(slotDuration) {
			if t.After(horizon) {
				break
			}
			if !t.After(minStart) {
				continue
			}
			if overlapsAppointment(t, t.Add(slotDuration), appts) {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

// overlapsAppointment checks the slot's full interval, not just its start
// instant, so an appointment beginning partway through a slot blocks it.
func overlapsAppointment(start, end time.Time, appts []fsm.Appointment) bool {
	for _, a := range appts {
		if a.Status == "Canceled" {
			continue
		}
		if a.Start.Before(end) && a.End.After(start) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// slotAccumulator buckets slot starts by business-timezone date, then by
// instant, collecting the free workers per instant.
type slotAccumulator struct {
	loc   *time.Location
	dates map[string]map[int64][]entities.SlotWorker
}

func newSlotAccumulator(loc *time.Location) *slotAccumulator {
	return &slotAccumulator{loc: loc, dates: make(map[string]map[int64][]entities.SlotWorker)}
}

func (a *slotAccumulator) add(t time.Time, w registry.Worker) {
	dateKey := t.In(a.loc).Format("2006-01-02")
	bucket, ok := a.dates[dateKey]
	if !ok {
		bucket = make(map[int64][]entities.SlotWorker)
		a.dates[dateKey] = bucket
	}
	key := t.Unix()
	bucket[key] = append(bucket[key], entities.SlotWorker{ID: w.ID, Name: w.Name})
}

func (a *slotAccumulator) entries() []entities.DateEntry {
	dateKeys := make([]string, 0, len(a.dates))
	for k := range a.dates {
		dateKeys = append(dateKeys, k)
	}
	sort.Strings(dateKeys)

	entries := make([]entities.DateEntry, 0, len(dateKeys))
	for _, dk := range dateKeys {
		bucket := a.dates[dk]
		times := make([]int64, 0, len(bucket))
		for t := range bucket {
			times = append(times, t)
		}
		sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

		slots := make([]entities.Slot, 0, len(times))
		for _, ts := range times {
			slots = append(slots, entities.Slot{
				Time:    time.Unix(ts, 0).In(a.loc),
				Workers: bucket[ts],
			})
		}
		entries = append(entries, entities.DateEntry{Date: dk, Slots: slots})
	}
	return entries
}

// availabilityCache is a tiny TTL cache keyed by service type. The TTL
// absorbs bursts of identical requests; entries are never read past it.
type availabilityCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]availabilityCacheEntry
}

type availabilityCacheEntry struct {
	computedAt time.Time
	result     []entities.DateEntry
}

func newAvailabilityCache(ttl time.Duration) *availabilityCache {
	return &availabilityCache{ttl: ttl, entries: make(map[string]availabilityCacheEntry)}
}

func (c *availabilityCache) get(key string, now time.Time) ([]entities.DateEntry, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || now.Sub(e.computedAt) > c.ttl {
		return nil, false
	}
	return e.result, true
}

func (c *availabilityCache) put(key string, result []entities.DateEntry, now time.Time) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = availabilityCacheEntry{computedAt: now, result: result}
	c.mu.Unlock()
}
