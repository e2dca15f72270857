package core

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
)

// orderModule records lifecycle calls into a shared log.
type orderModule struct {
	id        ModuleID
	log       *callLog
	startErr  error
	reloadErr error
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

func (m *orderModule) ModuleInfo() ModuleInfo { return ModuleInfo{ID: m.id} }

func (m *orderModule) Start() error {
	m.log.add("start " + string(m.id))
	return m.startErr
}

func (m *orderModule) Stop(context.Context) error {
	m.log.add("stop " + string(m.id))
	return nil
}

func (m *orderModule) Reload(ctx *AppContext) error {
	m.log.add("reload " + string(m.id))
	return m.reloadErr
}

func newTestApp(log *callLog, mods ...*orderModule) *App {
	app := NewApp(NewAppContext(nil))
	for _, m := range mods {
		m.log = log
		app.AppendModule(m.id, m)
	}
	return app
}

func TestApp_StartStopOrder(t *testing.T) {
	log := &callLog{}
	app := newTestApp(log, &orderModule{id: "a"}, &orderModule{id: "b"}, &orderModule{id: "c"})

	if err := app.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	app.Stop()

	want := []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}
	if got := log.get(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestApp_StartRollback(t *testing.T) {
	log := &callLog{}
	app := newTestApp(log,
		&orderModule{id: "a"},
		&orderModule{id: "b"},
		&orderModule{id: "c", startErr: errors.New("boom")},
	)

	if err := app.Start(); err == nil {
		t.Fatal("expected start error")
	}
	want := []string{"start a", "start b", "start c", "stop b", "stop a"}
	if got := log.get(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestApp_ModuleLookup(t *testing.T) {
	app := newTestApp(&callLog{}, &orderModule{id: "monitor"}, &orderModule{id: "gateway.http"})

	if _, ok := app.Module("gateway.http"); !ok {
		t.Error("Module(gateway.http) not found")
	}
	if _, ok := app.Module("notify.slack"); ok {
		t.Error("Module(notify.slack) found")
	}
	if got := app.Modules(); !slices.Equal(got, []ModuleID{"monitor", "gateway.http"}) {
		t.Errorf("Modules = %v", got)
	}
}

func TestApp_ReloadModules(t *testing.T) {
	log := &callLog{}
	app := newTestApp(log,
		&orderModule{id: "a"},
		&orderModule{id: "b", reloadErr: errors.New("bad config")},
	)

	err := app.ReloadModules(app.Context())
	if err == nil {
		t.Fatal("expected reload error")
	}
	want := []string{"reload a", "reload b"}
	if got := log.get(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestApp_LoadModulesCleanup(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&trackingModule{id: "test.ok"})
	RegisterModule(&trackingModule{id: "test.bad", validateErr: errors.New("invalid")})

	app := NewApp(NewAppContext(nil))
	if err := app.LoadModules([]string{"test.ok", "test.bad"}); err == nil {
		t.Fatal("expected load error")
	}
	if len(app.Modules()) != 0 {
		t.Errorf("modules left after failed load: %v", app.Modules())
	}
}
