package survey

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// Channel is one named measured quantity recorded at every station of the
// survey (for example one receiver time-gate). Values are indexed by station,
// parallel to the survey's coordinate arrays.
type Channel struct {
	UID    uuid.UUID
	Name   string
	Values []float64
}

// PropertyGroup is a named set of channels interpreted jointly as one
// physical measurement. The channel order is significant: it is the order
// used for cross-channel clustering.
type PropertyGroup struct {
	UID      uuid.UUID
	Name     string
	Color    string
	Channels []uuid.UUID
}

// Survey holds the station-indexed arrays of one survey object: coordinates,
// line ids and channel values. All arrays are parallel and share one station
// index space.
type Survey struct {
	X    []float64
	Y    []float64
	Line []int

	channels []*Channel
	byUID    map[uuid.UUID]*Channel
	byName   map[string]*Channel

	PropertyGroups []*PropertyGroup
}

// NewSurvey creates a survey from parallel coordinate and line-id arrays.
func NewSurvey(x, y []float64, line []int) (*Survey, error) {
	if len(x) != len(y) || len(x) != len(line) {
		return nil, fmt.Errorf("survey arrays must be parallel: x=%d y=%d line=%d", len(x), len(y), len(line))
	}
	return &Survey{
		X:      x,
		Y:      y,
		Line:   line,
		byUID:  make(map[uuid.UUID]*Channel),
		byName: make(map[string]*Channel),
	}, nil
}

// NumStations returns the number of stations in the survey.
func (s *Survey) NumStations() int { return len(s.X) }

// AddChannel registers a channel. The values array must match the station
// count. Returns the channel with a freshly assigned UID.
func (s *Survey) AddChannel(name string, values []float64) (*Channel, error) {
	if len(values) != len(s.X) {
		return nil, fmt.Errorf("channel %q has %d values, survey has %d stations", name, len(values), len(s.X))
	}
	if _, ok := s.byName[name]; ok {
		return nil, fmt.Errorf("duplicate channel name %q", name)
	}
	ch := &Channel{
		UID:    uuid.New(),
		Name:   name,
		Values: values,
	}
	s.channels = append(s.channels, ch)
	s.byUID[ch.UID] = ch
	s.byName[ch.Name] = ch
	return ch, nil
}

// Channels returns all channels in registration order.
func (s *Survey) Channels() []*Channel { return s.channels }

// Channel looks up a channel by UID.
func (s *Survey) Channel(uid uuid.UUID) (*Channel, bool) {
	ch, ok := s.byUID[uid]
	return ch, ok
}

// ChannelByName looks up a channel by display name.
func (s *Survey) ChannelByName(name string) (*Channel, bool) {
	ch, ok := s.byName[name]
	return ch, ok
}

// AddPropertyGroup registers a named channel set. Every referenced channel
// name must already be registered.
func (s *Survey) AddPropertyGroup(name, color string, channelNames []string) (*PropertyGroup, error) {
	if len(channelNames) == 0 {
		return nil, fmt.Errorf("property group %q has no channels", name)
	}
	uids := make([]uuid.UUID, 0, len(channelNames))
	for _, cn := range channelNames {
		ch, ok := s.byName[cn]
		if !ok {
			return nil, fmt.Errorf("property group %q references unknown channel %q", name, cn)
		}
		uids = append(uids, ch.UID)
	}
	pg := &PropertyGroup{
		UID:      uuid.New(),
		Name:     name,
		Color:    color,
		Channels: uids,
	}
	s.PropertyGroups = append(s.PropertyGroups, pg)
	return pg, nil
}

// PropertyGroup looks up a property group by name.
func (s *Survey) PropertyGroup(name string) (*PropertyGroup, bool) {
	for _, pg := range s.PropertyGroups {
		if pg.Name == name {
			return pg, true
		}
	}
	return nil, false
}

// ActiveChannels returns the UIDs of every channel referenced by at least one
// property group, in channel registration order.
func (s *Survey) ActiveChannels() []uuid.UUID {
	active := make(map[uuid.UUID]bool)
	for _, pg := range s.PropertyGroups {
		for _, uid := range pg.Channels {
			active[uid] = true
		}
	}
	out := make([]uuid.UUID, 0, len(active))
	for _, ch := range s.channels {
		if active[ch.UID] {
			out = append(out, ch.UID)
		}
	}
	return out
}

// LineIDs returns the distinct line ids present in the survey, ascending.
func (s *Survey) LineIDs() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, id := range s.Line {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// LineIndices returns the station indices belonging to one line id, in
// station order.
func (s *Survey) LineIndices(lineID int) []int {
	var idx []int
	for i, id := range s.Line {
		if id == lineID {
			idx = append(idx, i)
		}
	}
	return idx
}

// Parts splits a line's station indices into physically contiguous segments.
// A new part starts wherever the distance between consecutive stations
// exceeds maxGap (for example separate flight passes sharing a line id).
// maxGap <= 0 disables splitting and returns a single part.
func (s *Survey) Parts(indices []int, maxGap float64) [][]int {
	if len(indices) == 0 {
		return nil
	}
	if maxGap <= 0 {
		return [][]int{indices}
	}
	parts := [][]int{}
	current := []int{indices[0]}
	for k := 1; k < len(indices); k++ {
		i, j := indices[k-1], indices[k]
		d := math.Hypot(s.X[j]-s.X[i], s.Y[j]-s.Y[i])
		if d > maxGap {
			parts = append(parts, current)
			current = nil
		}
		current = append(current, indices[k])
	}
	parts = append(parts, current)
	return parts
}
