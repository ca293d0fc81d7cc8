package grouping

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/clinlink/clinlink/pkg/errors"
)

// Snapshot is the persisted form of a Grouping.  It carries the computed
// collections and the parameters that produced them; the raw dataset is
// deliberately excluded and must be reattached after loading before anything
// uncached can be recomputed.
type Snapshot struct {
	Name      string  `json:"name"`
	Metric    Metric  `json:"metric"`
	Threshold float64 `json:"threshold"`

	Groups         []Group `json:"groups,omitempty"`
	GroupsComputed bool    `json:"groups_computed"`

	Supergroups         []Group `json:"supergroups,omitempty"`
	SupergroupsComputed bool    `json:"supergroups_computed"`

	CreatedAt time.Time `json:"created_at"`
}

// Key returns the storage key identifying this snapshot.
func (s *Snapshot) Key() string {
	return Key(s.Name, s.Metric, s.Threshold)
}

// Key derives the storage key for a grouping from its parameters:
// "{name}_{metric}_{threshold}" with the decimal point stripped from the
// threshold, so distinct parameterizations of the same dataset never
// collide (e.g. "trials_cosine_04" for threshold 0.4).
func Key(name string, metric Metric, threshold float64) string {
	t := strings.ReplaceAll(strconv.FormatFloat(threshold, 'f', -1, 64), ".", "")
	return name + "_" + metric.String() + "_" + t
}

// ValidateKeyPart rejects names that would corrupt the derived storage key.
func ValidateKeyPart(name string) error {
	if name == "" {
		return errors.New(errors.ErrCodeSnapshotKeyInvalid, "grouping name must not be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return errors.New(errors.ErrCodeSnapshotKeyInvalid,
			"grouping name must not contain path separators").WithDetail("name: " + name)
	}
	return nil
}

// Snapshot exports the grouping's persistable state.  Only collections that
// were actually computed are carried; loading a snapshot never forces
// computation that had not happened before saving.
func (g *Grouping) Snapshot() *Snapshot {
	s := &Snapshot{
		Name:      g.name,
		Metric:    g.metric,
		Threshold: g.threshold,
		CreatedAt: time.Now().UTC(),
	}
	if g.groupsSet {
		s.Groups = g.groups
		s.GroupsComputed = true
	}
	if g.supergroupsSet {
		s.Supergroups = g.supergroups
		s.SupergroupsComputed = true
	}
	return s
}

// RestoreSnapshot rebuilds a Grouping from its persisted state.  The result
// is detached: it serves the cached collections and needs AttachData before
// anything uncached can be computed.
func RestoreSnapshot(s *Snapshot, opts ...Option) (*Grouping, error) {
	g, err := New(s.Name, nil, s.Metric, s.Threshold, opts...)
	if err != nil {
		return nil, err
	}
	if s.GroupsComputed {
		g.groups = s.Groups
		g.groupsSet = true
	}
	if s.SupergroupsComputed {
		g.supergroups = s.Supergroups
		g.supergroupsSet = true
	}
	return g, nil
}

// Store persists grouping snapshots keyed by Key.  Implementations live in
// the infrastructure layer (local filesystem, object storage).
type Store interface {
	// Save writes the snapshot under its derived key, replacing any
	// previous version.
	Save(ctx context.Context, s *Snapshot) error

	// Load reads the snapshot stored under the key; a missing snapshot is
	// reported with a distinct not-found error code.
	Load(ctx context.Context, key string) (*Snapshot, error)

	// List returns the keys of all stored snapshots, sorted.
	List(ctx context.Context) ([]string, error)
}
