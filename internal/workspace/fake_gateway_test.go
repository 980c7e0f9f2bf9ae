package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/swms-manager/internal/swms"
)

var errGatewayDown = errors.New("gateway unavailable")

// fakeGateway keeps documents and sign-offs in maps and counts calls.
type fakeGateway struct {
	mu       sync.Mutex
	docs     map[string]swms.Record
	order    []string
	signOffs map[string][]swms.SignOff
	nextID   int
	calls    map[string]int

	failInsertSignOffs bool
	failListSignOffs   bool
	failDeleteSignOff  bool
	failList           bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		docs:     map[string]swms.Record{},
		signOffs: map[string][]swms.SignOff{},
		calls:    map[string]int{},
	}
}

func (g *fakeGateway) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *fakeGateway) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func (g *fakeGateway) id(prefix string) string {
	g.nextID++
	return fmt.Sprintf("%s-%04d-uuid", prefix, g.nextID)
}

func (g *fakeGateway) ListDocuments(_ context.Context, companyID string) ([]swms.Document, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["ListDocuments"]++
	if g.failList {
		return nil, errGatewayDown
	}
	var out []swms.Document
	for _, id := range g.order {
		rec, ok := g.docs[id]
		if !ok || rec.CompanyID != companyID {
			continue
		}
		out = append(out, rec.Expand(id, swms.CompanyDetails{}))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (g *fakeGateway) InsertDocument(_ context.Context, rec swms.Record) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["InsertDocument"]++
	id := g.id("doc")
	g.docs[id] = rec
	g.order = append(g.order, id)
	return id, nil
}

func (g *fakeGateway) UpdateDocument(_ context.Context, id string, rec swms.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["UpdateDocument"]++
	if _, ok := g.docs[id]; !ok {
		return errors.New("not found")
	}
	g.docs[id] = rec
	return nil
}

func (g *fakeGateway) DeleteDocument(_ context.Context, _ string, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["DeleteDocument"]++
	delete(g.docs, id)
	return nil
}

func (g *fakeGateway) ListSignOffs(_ context.Context, swmsID string) ([]swms.SignOff, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["ListSignOffs"]++
	if g.failListSignOffs {
		return nil, errGatewayDown
	}
	out := append([]swms.SignOff(nil), g.signOffs[swmsID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SignedAt.After(out[j].SignedAt) })
	return out, nil
}

func (g *fakeGateway) InsertSignOffs(_ context.Context, swmsID string, entries []swms.SignOff) ([]swms.SignOff, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["InsertSignOffs"]++
	if g.failInsertSignOffs {
		return nil, errGatewayDown
	}
	out := make([]swms.SignOff, 0, len(entries))
	for _, e := range entries {
		e.Ref = swms.PersistedRef(g.id("so"))
		g.signOffs[swmsID] = append(g.signOffs[swmsID], e)
		out = append(out, e)
	}
	return out, nil
}

func (g *fakeGateway) DeleteSignOff(_ context.Context, swmsID, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["DeleteSignOff"]++
	if g.failDeleteSignOff {
		return errGatewayDown
	}
	kept := g.signOffs[swmsID][:0:0]
	for _, so := range g.signOffs[swmsID] {
		if so.Ref.ID != id {
			kept = append(kept, so)
		}
	}
	g.signOffs[swmsID] = kept
	return nil
}

func (g *fakeGateway) signOffRows(swmsID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.signOffs[swmsID])
}
