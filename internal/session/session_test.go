package session

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"wcp-bridge/server/internal/convert"
	"wcp-bridge/server/internal/model"
	"wcp-bridge/server/internal/repo"
)

type fakeConverter struct {
	dir       string
	converted []string
	discarded []string
	err       error
}

func (f *fakeConverter) Info() convert.Info { return convert.Info{Name: "fake"} }

func (f *fakeConverter) Convert(_ context.Context, in string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	out := filepath.Join(f.dir, filepath.Base(in)+".fst")
	f.converted = append(f.converted, out)
	return out, nil
}

func (f *fakeConverter) Discard(path string) error {
	f.discarded = append(f.discarded, path)
	return nil
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestItemsGetIncreasingIDs(t *testing.T) {
	s := New(nil)
	vars, _ := s.AddVariables([]string{"top.clk", "top.rst"})
	scope, _ := s.AddScope("top.cpu", true)
	items, _ := s.AddItems([]string{"a", "b"}, false)
	markers, _ := s.AddMarkers([]model.Marker{{Time: 10, Name: "m"}})

	if !reflect.DeepEqual(vars, []model.ItemRef{1, 2}) || !reflect.DeepEqual(scope, []model.ItemRef{3}) ||
		!reflect.DeepEqual(items, []model.ItemRef{4, 5}) || !reflect.DeepEqual(markers, []model.ItemRef{6}) {
		t.Fatalf("unexpected ids %v %v %v %v", vars, scope, items, markers)
	}
	if got := s.ItemList(); !reflect.DeepEqual(got, []model.ItemRef{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("item list = %v", got)
	}

	info, err := s.ItemInfo([]model.ItemRef{3, 1, 6, 1})
	if err != nil {
		t.Fatalf("item info: %v", err)
	}
	want := []model.ItemInfo{
		{Name: "top.cpu", Type: model.KindScope, ID: 3},
		{Name: "top.clk", Type: model.KindVariable, ID: 1},
		{Name: "m", Type: model.KindMarker, ID: 6},
		{Name: "top.clk", Type: model.KindVariable, ID: 1},
	}
	if !reflect.DeepEqual(info, want) {
		t.Fatalf("item info = %+v", info)
	}
}

func TestAddItemsRecursiveAddsScopes(t *testing.T) {
	s := New(nil)
	ids, _ := s.AddItems([]string{"top"}, true)
	info, _ := s.ItemInfo(ids)
	if info[0].Type != model.KindScope {
		t.Fatalf("expected scope, got %+v", info[0])
	}
}

func TestUnknownIDs(t *testing.T) {
	s := New(nil)
	s.AddVariables([]string{"a"})

	if _, err := s.ItemInfo([]model.ItemRef{1, 99}); err == nil || !strings.Contains(err.Error(), "99") {
		t.Fatalf("expected unknown id error, got %v", err)
	}
	if err := s.SetItemColor(42, "red"); err == nil {
		t.Fatal("color on unknown id accepted")
	}
	if err := s.FocusItem(42); err == nil {
		t.Fatal("focus on unknown id accepted")
	}
	if err := s.RemoveItems([]model.ItemRef{42, 43}); err != nil {
		t.Fatalf("remove of unknown ids should be ignored: %v", err)
	}
	if got := s.ItemList(); !reflect.DeepEqual(got, []model.ItemRef{1}) {
		t.Fatalf("item list = %v", got)
	}
}

func TestRemoveClearsFocus(t *testing.T) {
	s := New(nil)
	ids, _ := s.AddVariables([]string{"a", "b", "c"})
	if err := s.FocusItem(ids[1]); err != nil {
		t.Fatal(err)
	}
	if err := s.SetItemColor(ids[2], "#00ff00"); err != nil {
		t.Fatal(err)
	}
	s.RemoveItems([]model.ItemRef{ids[1]})

	snap := s.Snapshot()
	if snap.Focus != 0 {
		t.Fatalf("focus kept on removed item: %d", snap.Focus)
	}
	if len(snap.Items) != 2 || snap.Items[1].Color != "#00ff00" {
		t.Fatalf("unexpected items %+v", snap.Items)
	}

	// ids are never reused
	next, _ := s.AddVariables([]string{"d"})
	if next[0] != 4 {
		t.Fatalf("expected id 4, got %d", next[0])
	}
}

func TestMarkerMoveFocusAndZoom(t *testing.T) {
	s := New(nil)
	ids, _ := s.AddMarkers([]model.Marker{{Time: 500}, {Time: 100, Name: "start", MoveFocus: true}, {Time: 900}})
	snap := s.Snapshot()
	if snap.Focus != ids[1] {
		t.Fatalf("focus = %d, want %d", snap.Focus, ids[1])
	}
	if err := s.ZoomToFit(0); err != nil {
		t.Fatal(err)
	}
	snap = s.Snapshot()
	if snap.Viewport != (model.Viewport{Start: 100, End: 900}) || !snap.ZoomedToFit {
		t.Fatalf("viewport = %+v", snap.Viewport)
	}
	if err := s.ZoomToFit(1); err == nil {
		t.Fatal("second viewport accepted")
	}
}

func TestViewport(t *testing.T) {
	s := New(nil)
	if err := s.SetViewportRange(10, 60); err != nil {
		t.Fatal(err)
	}
	if err := s.SetViewportTo(1000); err != nil {
		t.Fatal(err)
	}
	if got := s.Snapshot().Viewport; got != (model.Viewport{Start: 1000, End: 1050}) {
		t.Fatalf("viewport = %+v", got)
	}
	if err := s.SetViewportRange(5, 4); err == nil {
		t.Fatal("inverted range accepted")
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	s := New(nil)
	s.AddMarkers([]model.Marker{{Time: 1, Name: "a"}})
	snap := s.Snapshot()
	snap.Items[0].Name = "changed"
	snap.Items[0].Marker.Time = 99

	again := s.Snapshot()
	if again.Items[0].Name != "a" || again.Items[0].Marker.Time != 1 {
		t.Fatalf("snapshot shares state: %+v", again.Items[0])
	}
}

func TestLoadAndReload(t *testing.T) {
	dir := t.TempDir()
	s := New(nil)

	if _, err := s.Reload(context.Background()); !errors.Is(err, ErrNothingLoaded) {
		t.Fatalf("reload before load: %v", err)
	}
	if _, err := s.Load(context.Background(), ""); err == nil {
		t.Fatal("empty source accepted")
	}
	if _, err := s.Load(context.Background(), filepath.Join(dir, "missing.vcd")); err == nil {
		t.Fatal("missing file accepted")
	}

	vcd := touch(t, dir, "dump.vcd")
	s.AddVariables([]string{"a"})
	got, err := s.Load(context.Background(), vcd)
	if err != nil || got != vcd {
		t.Fatalf("load = %q, %v", got, err)
	}
	if len(s.ItemList()) != 0 {
		t.Fatal("load kept old items")
	}
	s.AddVariables([]string{"b"})
	if got, err := s.Reload(context.Background()); err != nil || got != vcd {
		t.Fatalf("reload = %q, %v", got, err)
	}
	if snap := s.Snapshot(); snap.Source != vcd || snap.Opened != vcd || len(snap.Items) != 0 {
		t.Fatalf("unexpected state %+v", snap)
	}
}

func TestLoadFSDB(t *testing.T) {
	dir := t.TempDir()
	fsdb := touch(t, dir, "dump.fsdb")

	if _, err := New(nil).Load(context.Background(), fsdb); !errors.Is(err, ErrNoConverter) {
		t.Fatalf("expected ErrNoConverter, got %v", err)
	}

	conv := &fakeConverter{dir: dir}
	s := New(conv)
	got, err := s.Load(context.Background(), fsdb)
	if err != nil || got != fsdb {
		t.Fatalf("load = %q, %v", got, err)
	}
	if snap := s.Snapshot(); snap.Opened != conv.converted[0] {
		t.Fatalf("opened = %q", snap.Opened)
	}

	// loading something else releases the converted file
	vcd := touch(t, dir, "other.vcd")
	if _, err := s.Load(context.Background(), vcd); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(conv.discarded, conv.converted) {
		t.Fatalf("discarded %v, converted %v", conv.discarded, conv.converted)
	}

	if _, err := s.Load(context.Background(), fsdb); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if len(conv.discarded) != 2 {
		t.Fatalf("close did not discard: %v", conv.discarded)
	}
}

func TestLoadConversionFailureKeepsState(t *testing.T) {
	dir := t.TempDir()
	conv := &fakeConverter{dir: dir, err: errors.New("Command failed: fsdb2vcd")}
	s := New(conv)
	s.AddVariables([]string{"keep"})
	if _, err := s.Load(context.Background(), touch(t, dir, "dump.fsdb")); err == nil {
		t.Fatal("expected conversion failure")
	}
	if len(s.ItemList()) != 1 {
		t.Fatal("failed load cleared items")
	}
}

func TestLoadRelativeToBaseDir(t *testing.T) {
	base := t.TempDir()
	wave := touch(t, base, "run.vcd")
	s := New(nil, WithBaseDir(base))

	got, err := s.Load(context.Background(), "run.vcd")
	if err != nil || got != wave {
		t.Fatalf("load = %q, %v; want %q", got, err, wave)
	}
	if _, err := s.Load(context.Background(), base); err == nil {
		t.Fatal("directory accepted as a waveform")
	}
}

func TestSetViewportToClampsEnd(t *testing.T) {
	s := New(nil)
	if err := s.SetViewportRange(0, 1000); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		to   int64
		want model.Viewport
	}{
		{math.MaxInt64 - 10, model.Viewport{Start: math.MaxInt64 - 10, End: math.MaxInt64}},
		{math.MaxInt64, model.Viewport{Start: math.MaxInt64, End: math.MaxInt64}},
		{-500, model.Viewport{Start: -500, End: 500}},
	}
	for _, tc := range tests {
		if err := s.SetViewportRange(0, 1000); err != nil {
			t.Fatal(err)
		}
		if err := s.SetViewportTo(tc.to); err != nil {
			t.Fatal(err)
		}
		if got := s.Snapshot().Viewport; got != tc.want {
			t.Fatalf("SetViewportTo(%d) = %+v, want %+v", tc.to, got, tc.want)
		}
	}

	// the widest possible window keeps End >= Start wherever it moves
	if err := s.SetViewportRange(math.MinInt64, math.MaxInt64); err != nil {
		t.Fatal(err)
	}
	if err := s.SetViewportTo(0); err != nil {
		t.Fatal(err)
	}
	if got := s.Snapshot().Viewport; got != (model.Viewport{Start: 0, End: math.MaxInt64}) {
		t.Fatalf("wide window = %+v", got)
	}
}

// copyBackend writes the input bytes to the output path.
type copyBackend struct{}

func (copyBackend) Info() convert.Info { return convert.Info{Name: "copy"} }

func (copyBackend) ConvertToFST(_ context.Context, in, out string) error {
	b, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0o644)
}

func TestClosePurgesCachedOutputs(t *testing.T) {
	dir := t.TempDir()
	r, err := repo.NewSQLiteRepo(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	conv := convert.NewCached(convert.NewFST(copyBackend{}, dir), r)
	s := New(conv)
	if _, err := s.Load(context.Background(), touch(t, dir, "a.fsdb")); err != nil {
		t.Fatal(err)
	}
	first := s.Snapshot().Opened
	if _, err := s.Load(context.Background(), touch(t, dir, "b.fsdb")); err != nil {
		t.Fatal(err)
	}
	second := s.Snapshot().Opened
	if first == "" || first == second {
		t.Fatalf("unexpected outputs %q and %q", first, second)
	}
	// the first output stays cached while the daemon runs
	if _, err := os.Stat(first); err != nil {
		t.Fatalf("cached output removed early: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{first, second} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s survived Close: %v", p, err)
		}
	}
	left, err := r.ListConversions()
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Fatalf("cache not purged: %+v", left)
	}
}
