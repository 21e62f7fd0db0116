// Package session is a headless viewer: it keeps the displayed items, markers, focus and
// viewport of one waveform in memory and answers the dispatcher's calls against them.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/mohae/deepcopy"
	log "github.com/sirupsen/logrus"

	"wcp-bridge/server/internal/convert"
	"wcp-bridge/server/internal/infra/fs"
	"wcp-bridge/server/internal/model"
	"wcp-bridge/server/internal/platform/logging"
)

var (
	ErrNothingLoaded = errors.New("no waveform loaded")
	ErrNoConverter   = errors.New("FSDB support not configured")
)

type Item struct {
	model.ItemInfo
	Color  string        `json:"color,omitempty"`
	Marker *model.Marker `json:"marker,omitempty"`
}

// State is everything the session displays. Snapshot hands out deep copies of it.
type State struct {
	// Source is the path the client asked for; Opened is what was actually read, which
	// differs when the source had to be converted.
	Source      string         `json:"source"`
	Opened      string         `json:"opened"`
	Items       []Item         `json:"items"`
	Focus       model.ItemRef  `json:"focus"`
	Viewport    model.Viewport `json:"viewport"`
	ZoomedToFit bool           `json:"zoomed_to_fit"`
}

type Session struct {
	mu        sync.Mutex
	state     State
	nextID    model.ItemRef
	converter convert.Converter
	files     *fs.FileReader
}

type Option func(*Session)

// WithBaseDir resolves relative load paths against dir instead of the working directory.
func WithBaseDir(dir string) Option {
	return func(s *Session) { s.files = fs.NewFileReader(dir) }
}

// New returns an empty session. conv may be nil, in which case FSDB sources are refused.
func New(conv convert.Converter, opts ...Option) *Session {
	s := &Session{
		nextID:    1,
		converter: conv,
		files:     fs.NewFileReader(""),
		state:     State{Items: []Item{}},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deepcopy.Copy(s.state).(State)
}

func (s *Session) ItemList() []model.ItemRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]model.ItemRef, 0, len(s.state.Items))
	for _, it := range s.state.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

func (s *Session) ItemInfo(ids []model.ItemRef) ([]model.ItemInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ItemInfo, 0, len(ids))
	for _, id := range ids {
		it := s.find(id)
		if it == nil {
			return nil, unknownItem(id)
		}
		out = append(out, it.ItemInfo)
	}
	return out, nil
}

func (s *Session) SetItemColor(id model.ItemRef, color string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.find(id)
	if it == nil {
		return unknownItem(id)
	}
	it.Color = color
	return nil
}

func (s *Session) AddVariables(names []string) ([]model.ItemRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]model.ItemRef, 0, len(names))
	for _, n := range names {
		ids = append(ids, s.add(n, model.KindVariable, nil))
	}
	return ids, nil
}

func (s *Session) AddScope(scope string, recursive bool) ([]model.ItemRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []model.ItemRef{s.add(scope, model.KindScope, nil)}, nil
}

// AddItems adds each name as a variable, or as a scope when recursive is set.
func (s *Session) AddItems(items []string, recursive bool) ([]model.ItemRef, error) {
	kind := model.KindVariable
	if recursive {
		kind = model.KindScope
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]model.ItemRef, 0, len(items))
	for _, n := range items {
		ids = append(ids, s.add(n, kind, nil))
	}
	return ids, nil
}

func (s *Session) AddMarkers(markers []model.Marker) ([]model.ItemRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]model.ItemRef, 0, len(markers))
	for _, m := range markers {
		id := s.add(m.Name, model.KindMarker, &m)
		if m.MoveFocus {
			s.state.Focus = id
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// RemoveItems drops the given ids; unknown ids are ignored.
func (s *Session) RemoveItems(ids []model.ItemRef) error {
	drop := make(map[model.ItemRef]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.Items[:0]
	for _, it := range s.state.Items {
		if _, ok := drop[it.ID]; ok {
			continue
		}
		kept = append(kept, it)
	}
	clear(s.state.Items[len(kept):])
	s.state.Items = kept
	if _, ok := drop[s.state.Focus]; ok {
		s.state.Focus = 0
	}
	return nil
}

func (s *Session) FocusItem(id model.ItemRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(id) == nil {
		return unknownItem(id)
	}
	s.state.Focus = id
	return nil
}

func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearItems()
	return nil
}

// SetViewportTo moves the window to start at timestamp, keeping its width. The end is
// clamped to math.MaxInt64.
func (s *Session) SetViewportTo(timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// End >= Start always holds, so the unsigned difference is the exact width.
	width := uint64(s.state.Viewport.End) - uint64(s.state.Viewport.Start)
	end := int64(math.MaxInt64)
	if room := uint64(math.MaxInt64) - uint64(timestamp); width <= room {
		end = timestamp + int64(width)
	}
	s.state.Viewport = model.Viewport{Start: timestamp, End: end}
	s.state.ZoomedToFit = false
	return nil
}

func (s *Session) SetViewportRange(start, end int64) error {
	if end < start {
		return fmt.Errorf("invalid viewport range: end %d is before start %d", end, start)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Viewport = model.Viewport{Start: start, End: end}
	s.state.ZoomedToFit = false
	return nil
}

// ZoomToFit fits the window to the markers placed so far. Only viewport 0 exists.
func (s *Session) ZoomToFit(viewportIdx int) error {
	if viewportIdx != 0 {
		return fmt.Errorf("viewport index out of range: %d", viewportIdx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var vp model.Viewport
	first := true
	for _, it := range s.state.Items {
		if it.Marker == nil {
			continue
		}
		t := it.Marker.Time
		if first || t < vp.Start {
			vp.Start = t
		}
		if first || t > vp.End {
			vp.End = t
		}
		first = false
	}
	s.state.Viewport = vp
	s.state.ZoomedToFit = true
	return nil
}

// Load opens source, converting FSDB dumps first, and resets the displayed items.
// It returns the resolved absolute source to announce in the waveforms_loaded event.
func (s *Session) Load(ctx context.Context, source string) (string, error) {
	if source == "" {
		return "", errors.New("no source given")
	}
	source, err := s.files.Resolve(source)
	if err != nil {
		return "", err
	}

	opened := source
	if convert.IsFSDB(source) {
		if s.converter == nil {
			return "", ErrNoConverter
		}
		out, err := s.converter.Convert(ctx, source)
		if err != nil {
			return "", err
		}
		opened = out
	}

	s.mu.Lock()
	prev := s.state.Opened
	prevConverted := prev != "" && prev != s.state.Source
	s.clearItems()
	s.state.Source = source
	s.state.Opened = opened
	s.state.Viewport = model.Viewport{}
	s.state.ZoomedToFit = false
	s.mu.Unlock()

	if prevConverted && prev != opened {
		s.discard(prev)
	}
	logging.Component("session").WithFields(log.Fields{"source": source, "opened": opened}).Info("waveform loaded")
	return source, nil
}

// Reload repeats the last load.
func (s *Session) Reload(ctx context.Context) (string, error) {
	s.mu.Lock()
	source := s.state.Source
	s.mu.Unlock()
	if source == "" {
		return "", ErrNothingLoaded
	}
	return s.Load(ctx, source)
}

// purger is implemented by converters that keep outputs past Discard.
type purger interface {
	Purge() error
}

// Close releases any converted file still on display and purges converter caches.
func (s *Session) Close() error {
	s.mu.Lock()
	opened, source := s.state.Opened, s.state.Source
	s.state.Opened = ""
	s.mu.Unlock()
	if s.converter == nil {
		return nil
	}
	var errs []error
	if opened != "" && opened != source {
		errs = append(errs, s.converter.Discard(opened))
	}
	if p, ok := s.converter.(purger); ok {
		errs = append(errs, p.Purge())
	}
	return errors.Join(errs...)
}

func (s *Session) discard(path string) {
	if s.converter == nil {
		return
	}
	if err := s.converter.Discard(path); err != nil {
		logging.Component("session").WithError(err).Warn("failed to remove converted file")
	}
}

func (s *Session) add(name string, kind model.ItemKind, m *model.Marker) model.ItemRef {
	id := s.nextID
	s.nextID++
	s.state.Items = append(s.state.Items, Item{
		ItemInfo: model.ItemInfo{Name: name, Type: kind, ID: id},
		Marker:   m,
	})
	return id
}

func (s *Session) find(id model.ItemRef) *Item {
	for i := range s.state.Items {
		if s.state.Items[i].ID == id {
			return &s.state.Items[i]
		}
	}
	return nil
}

func (s *Session) clearItems() {
	clear(s.state.Items)
	s.state.Items = s.state.Items[:0]
	s.state.Focus = 0
}

func unknownItem(id model.ItemRef) error {
	return fmt.Errorf("unknown item id: %d", id)
}
