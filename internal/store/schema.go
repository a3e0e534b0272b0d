package store

import (
	"fmt"
	"regexp"
)

// Store names used by the application schema.
const (
	StoreGuidelines     = "guidelines"
	StoreAnnouncements  = "announcements"
	StoreProfiles       = "profiles"
	StorePrayerProgress = "prayerProgress"
	StoreJournalEntries = "journalEntries"
	StorePrayerHistory  = "prayerHistory"
	StoreSyncQueue      = "syncQueue"
)

// Index names used by the application schema.
const (
	IndexSynced    = "synced"
	IndexCached    = "cached"
	IndexCreatedAt = "created_at"
	IndexDate      = "date"
	IndexTimestamp = "timestamp"
	IndexType      = "type"
)

// DatabaseName is the name of the application database.
const DatabaseName = "SpiritConnectDB"

// Schema declares the named stores of one database at a given version.
type Schema struct {
	Name    string
	Version int
	Stores  []StoreSpec
}

// StoreSpec declares one store.
//
// Since is the schema version that introduced the store (0 counts as 1).
// RecreatedIn, when set, is the version at which the store's key structure
// changed incompatibly: upgrading across it drops the store with its data and
// creates it again.
type StoreSpec struct {
	Name          string
	KeyPath       string
	AutoIncrement bool
	Indexes       []IndexSpec
	Since         int
	RecreatedIn   int
}

// IndexSpec declares a secondary index over a key path of the stored value.
type IndexSpec struct {
	Name    string
	KeyPath string
	Unique  bool
	Since   int
}

var (
	namePattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	keyPathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// DefaultSchema returns the schema of the application database.
//
//	v1: guidelines, journalEntries, prayerHistory (auto-increment), syncQueue
//	v2: announcements, profiles, prayerProgress, journalEntries.cached
//	v3: prayerHistory keyed by the local id string instead of a generated int
func DefaultSchema() Schema {
	return Schema{
		Name:    DatabaseName,
		Version: 3,
		Stores: []StoreSpec{
			{Name: StoreGuidelines, KeyPath: "id", Since: 1},
			{
				Name:    StoreJournalEntries,
				KeyPath: "id",
				Since:   1,
				Indexes: []IndexSpec{
					{Name: IndexCreatedAt, KeyPath: "data.created_at", Since: 1},
					{Name: IndexSynced, KeyPath: "synced", Since: 1},
					{Name: IndexCached, KeyPath: "cached", Since: 2},
				},
			},
			{
				Name:        StorePrayerHistory,
				KeyPath:     "id",
				Since:       1,
				RecreatedIn: 3,
				Indexes: []IndexSpec{
					{Name: IndexDate, KeyPath: "data.completed_at", Since: 1},
					{Name: IndexSynced, KeyPath: "synced", Since: 1},
				},
			},
			{
				Name:          StoreSyncQueue,
				KeyPath:       "id",
				AutoIncrement: true,
				Since:         1,
				Indexes: []IndexSpec{
					{Name: IndexTimestamp, KeyPath: "timestamp", Since: 1},
					{Name: IndexType, KeyPath: "type", Since: 1},
				},
			},
			{Name: StoreAnnouncements, KeyPath: "id", Since: 2},
			{Name: StoreProfiles, KeyPath: "id", Since: 2},
			{Name: StorePrayerProgress, KeyPath: "id", Since: 2},
		},
	}
}

// Store returns the declaration of the named store.
func (s Schema) Store(name string) (StoreSpec, bool) {
	for _, st := range s.Stores {
		if st.Name == name {
			return st, true
		}
	}
	return StoreSpec{}, false
}

// StoreNames lists the declared stores in declaration order.
func (s Schema) StoreNames() []string {
	names := make([]string, 0, len(s.Stores))
	for _, st := range s.Stores {
		names = append(names, st.Name)
	}
	return names
}

// Validate checks the declaration for duplicate names, malformed key paths
// and versions outside 1..Version.
func (s Schema) Validate() error {
	if s.Name == "" || s.Version < 1 {
		return fmt.Errorf("%w: name and a positive version are required", ErrInvalidSchema)
	}

	seen := make(map[string]struct{}, len(s.Stores))
	for _, st := range s.Stores {
		if _, dup := seen[st.Name]; dup || !namePattern.MatchString(st.Name) {
			return fmt.Errorf("%w: duplicate or malformed store name %q", ErrInvalidSchema, st.Name)
		}
		seen[st.Name] = struct{}{}

		if !keyPathPattern.MatchString(st.KeyPath) {
			return fmt.Errorf("%w: store %q has invalid key path %q", ErrInvalidSchema, st.Name, st.KeyPath)
		}
		if st.since() > s.Version || st.RecreatedIn > s.Version || (st.RecreatedIn != 0 && st.RecreatedIn <= st.since()) {
			return fmt.Errorf("%w: store %q has versions outside 1..%d", ErrInvalidSchema, st.Name, s.Version)
		}

		indexes := make(map[string]struct{}, len(st.Indexes))
		for _, idx := range st.Indexes {
			if _, dup := indexes[idx.Name]; dup || !namePattern.MatchString(idx.Name) {
				return fmt.Errorf("%w: store %q has duplicate or malformed index %q", ErrInvalidSchema, st.Name, idx.Name)
			}
			indexes[idx.Name] = struct{}{}

			if !keyPathPattern.MatchString(idx.KeyPath) {
				return fmt.Errorf("%w: index %s.%s has invalid key path %q", ErrInvalidSchema, st.Name, idx.Name, idx.KeyPath)
			}
			if idx.since() > s.Version {
				return fmt.Errorf("%w: index %s.%s introduced after version %d", ErrInvalidSchema, st.Name, idx.Name, s.Version)
			}
		}
	}

	return nil
}

func (st StoreSpec) since() int {
	if st.Since < 1 {
		return 1
	}
	return st.Since
}

func (idx IndexSpec) since() int {
	if idx.Since < 1 {
		return 1
	}
	return idx.Since
}

// Index returns the declaration of the named index.
func (st StoreSpec) Index(name string) (IndexSpec, bool) {
	for _, idx := range st.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexSpec{}, false
}

// indexesAt returns the indexes that exist on the store at version v.
func (st StoreSpec) indexesAt(v int) []IndexSpec {
	out := make([]IndexSpec, 0, len(st.Indexes))
	for _, idx := range st.Indexes {
		if idx.since() <= v {
			out = append(out, idx)
		}
	}
	return out
}

// upgradeStep describes what one version bump does to the catalog.
type upgradeStep struct {
	version    int
	create     []StoreSpec
	recreate   []StoreSpec
	addIndexes map[string][]IndexSpec
}

// stepTo returns the changes that bring a database from version v-1 to v.
func (s Schema) stepTo(v int) upgradeStep {
	step := upgradeStep{version: v, addIndexes: map[string][]IndexSpec{}}
	for _, st := range s.Stores {
		switch {
		case st.since() == v:
			step.create = append(step.create, st)
		case st.RecreatedIn == v:
			step.recreate = append(step.recreate, st)
		case st.since() < v:
			for _, idx := range st.Indexes {
				if idx.since() == v {
					step.addIndexes[st.Name] = append(step.addIndexes[st.Name], idx)
				}
			}
		}
	}
	return step
}

// plan returns one step per version in (from, to], in order.
func (s Schema) plan(from int) []upgradeStep {
	steps := make([]upgradeStep, 0, s.Version-from)
	for v := from + 1; v <= s.Version; v++ {
		steps = append(steps, s.stepTo(v))
	}
	return steps
}
