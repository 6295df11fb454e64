package bridge

import (
	"errors"
	"sync"
	"testing"

	"github.com/vango-dev/objbridge/pkg/protocol"
)

type simple struct {
	Object
	Foo    string
	Bar    int
	Secret string `bridge:"-"`
	Hidden string `bridge:"_hidden"`
	Child  *simple
	Items  []any
}

type methodAPI struct {
	Object `events:"changed"`
	Flag   bool
	Name   string
	Friend *methodAPI
}

func (m *methodAPI) BridgeType() string { return "MethodApi" }

func (m *methodAPI) Double(x int) int { return x * 2 }

func (m *methodAPI) Sum(xs ...int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

func (m *methodAPI) Fail() error { return errors.New("boom") }

func (m *methodAPI) Panic() { panic("kaboom") }

func (m *methodAPI) Toggle() bool {
	m.Flag = !m.Flag
	m.Update()
	return m.Flag
}

func (m *methodAPI) Spawn(name string) *methodAPI { return &methodAPI{Name: name} }

func (m *methodAPI) Greet(p struct {
	Name string `json:"name"`
}) (string, error) {
	if p.Name == "" {
		return "", errors.New("no name")
	}
	return "hello " + p.Name, nil
}

// recorder captures messages passing between two piped bridges.
type recorder struct {
	mu   sync.Mutex
	msgs []*protocol.Message
}

func (r *recorder) clone(m *protocol.Message) (*protocol.Message, error) {
	out, err := protocol.Clone(m)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, out)
	r.mu.Unlock()
	return out, nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func (r *recorder) last() *protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return nil
	}
	return r.msgs[len(r.msgs)-1]
}

func newPair(t *testing.T, opts ...Option) (server, client *Bridge, rec *recorder) {
	t.Helper()
	rec = &recorder{}
	server, client, err := Pipe(rec.clone, opts...)
	if err != nil {
		t.Fatalf("Pipe() error: %v", err)
	}
	t.Cleanup(func() {
		server.Close(nil)
		client.Close(nil)
	})
	return server, client, rec
}

func mustResult(t *testing.T, f *Future) any {
	t.Helper()
	v, err := f.Result()
	if err != nil {
		t.Fatalf("Result() error: %v", err)
	}
	return v
}

func mustFail(t *testing.T, f *Future) error {
	t.Helper()
	_, err := f.Result()
	if err == nil {
		t.Fatal("Result() error = nil, want error")
	}
	if errors.Is(err, ErrPending) {
		t.Fatal("Result() still pending")
	}
	return err
}

func bridgeRoot(t *testing.T, root any, opts ...Option) (*Bridge, *Bridge, *Proxy) {
	t.Helper()
	server, client, _ := newPair(t, opts...)
	if err := server.SendRoot(root); err != nil {
		t.Fatalf("SendRoot() error: %v", err)
	}
	p, ok := mustResult(t, client.Root()).(*Proxy)
	if !ok {
		t.Fatalf("root is not a *Proxy")
	}
	return server, client, p
}
