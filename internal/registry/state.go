package registry

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/danmuck/connrelay/internal/fault"
	"github.com/rs/zerolog/log"
)

type op uint8

const (
	opInsert op = iota + 1
	opGet
	opReturn
	opRemove
	opStats
	opReclaim
	opShutdown
)

func (o op) String() string {
	switch o {
	case opInsert:
		return "insert"
	case opGet:
		return "get"
	case opReturn:
		return "return"
	case opRemove:
		return "remove"
	case opStats:
		return "stats"
	case opReclaim:
		return "reclaim"
	case opShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

type command[K comparable, V any] struct {
	op     op
	id     K
	value  V
	ticket Ticket[K, V]
	reply  chan result[K, V]
}

type result[K comparable, V any] struct {
	ticket  Ticket[K, V]
	stats   Stats
	count   int
	drained map[K]V
	err     error
}

type lease[V any] struct {
	value V
	token uint64
	since time.Time
}

// state is owned by the actor goroutine and never touched elsewhere.
type state[K comparable, V any] struct {
	label        string
	clock        clock.Clock
	leaseTimeout time.Duration
	available    map[K]V
	leased       map[K]lease[V]
	seq          uint64
}

// apply runs one command. The second result stops the actor.
func (s *state[K, V]) apply(cmd command[K, V]) (result[K, V], bool) {
	switch cmd.op {
	case opInsert:
		s.insert(cmd.id, cmd.value)
		return result[K, V]{}, false
	case opGet:
		t, err := s.get(cmd.id)
		return result[K, V]{ticket: t, err: err}, false
	case opReturn:
		return result[K, V]{err: s.giveBack(cmd.ticket)}, false
	case opRemove:
		return result[K, V]{err: s.remove(cmd.id)}, false
	case opStats:
		return result[K, V]{stats: Stats{Available: len(s.available), Leased: len(s.leased)}}, false
	case opReclaim:
		return result[K, V]{count: s.reclaim()}, false
	case opShutdown:
		return result[K, V]{drained: s.drain()}, true
	default:
		return result[K, V]{err: fault.New(fault.KindInternal, s.label, "unknown command %s", cmd.op)}, false
	}
}

func (s *state[K, V]) insert(id K, value V) {
	if _, ok := s.leased[id]; ok {
		delete(s.leased, id)
		log.Warn().Str("label", s.label).Interface("id", id).Msg("registry.insert revoked live checkout")
	} else if _, ok := s.available[id]; ok {
		log.Warn().Str("label", s.label).Interface("id", id).Msg("registry.insert replaced entry")
	}
	s.available[id] = value
}

func (s *state[K, V]) get(id K) (Ticket[K, V], error) {
	value, ok := s.available[id]
	if !ok {
		if _, out := s.leased[id]; out {
			return Ticket[K, V]{}, fault.New(fault.KindNotFound, s.label, "id=%v is checked out", id)
		}
		return Ticket[K, V]{}, fault.New(fault.KindNotFound, s.label, "id=%v", id)
	}
	delete(s.available, id)
	s.seq++
	l := lease[V]{value: value, token: s.seq, since: s.clock.Now()}
	s.leased[id] = l
	return Ticket[K, V]{ID: id, Value: value, Since: l.since, token: l.token}, nil
}

func (s *state[K, V]) giveBack(t Ticket[K, V]) error {
	l, ok := s.leased[t.ID]
	if !ok || t.token == 0 || l.token != t.token {
		return fault.New(fault.KindUnknownTicket, s.label, "id=%v", t.ID)
	}
	delete(s.leased, t.ID)
	s.available[t.ID] = l.value
	return nil
}

func (s *state[K, V]) remove(id K) error {
	if _, ok := s.available[id]; ok {
		delete(s.available, id)
		return nil
	}
	if _, ok := s.leased[id]; ok {
		delete(s.leased, id)
		return nil
	}
	return fault.New(fault.KindNotFound, s.label, "id=%v", id)
}

func (s *state[K, V]) reclaim() int {
	if s.leaseTimeout <= 0 {
		return 0
	}
	now := s.clock.Now()
	n := 0
	for id, l := range s.leased {
		if now.Sub(l.since) < s.leaseTimeout {
			continue
		}
		delete(s.leased, id)
		s.available[id] = l.value
		n++
		log.Warn().
			Str("label", s.label).
			Interface("id", id).
			Dur("held", now.Sub(l.since)).
			Msg("registry.reclaim expired checkout")
	}
	return n
}

func (s *state[K, V]) drain() map[K]V {
	out := make(map[K]V, len(s.available)+len(s.leased))
	for id, v := range s.available {
		out[id] = v
	}
	for id, l := range s.leased {
		out[id] = l.value
	}
	s.available = make(map[K]V)
	s.leased = make(map[K]lease[V])
	return out
}
