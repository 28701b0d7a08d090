package retention

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/reapertools/clonereaper/pkg/logger"
)

// Strategy names the rule used to choose which member of a duplicate set
// survives a cleanup.
type Strategy string

const (
	First    Strategy = "first"
	Oldest   Strategy = "oldest"
	Newest   Strategy = "newest"
	Shortest Strategy = "shortest"
	Longest  Strategy = "longest"
)

// Strategies returns the recognized strategy names.
func Strategies() []string {
	return []string{string(First), string(Oldest), string(Newest), string(Shortest), string(Longest)}
}

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case First, Oldest, Newest, Shortest, Longest:
		return Strategy(name), nil
	}
	return "", errors.Errorf("unknown retention strategy: %q", name)
}

// Plan partitions one duplicate set into a single kept path and the
// complementary removal list. Remove preserves the set's discovery order
// minus the kept element.
type Plan struct {
	Keep   string
	Remove []string
}

type Planner struct {
	strategy  Strategy
	statFn    func(string) (os.FileInfo, error)
	fallbacks uint64
	log       *logrus.Entry
}

func NewPlanner(strategy Strategy) *Planner {
	return &Planner{
		strategy: strategy,
		statFn:   os.Stat,
		log:      logger.GetLogger("retention"),
	}
}

// Fallbacks reports how many sets fell back to the first strategy because a
// comparison key could not be computed.
func (p *Planner) Fallbacks() uint64 {
	return p.fallbacks
}

// Plan selects the member to keep per the planner's strategy. A failure to
// compute a comparison key falls back to first for that set only, with a
// warning; other sets are unaffected.
func (p *Planner) Plan(set []string) Plan {
	if len(set) == 0 {
		return Plan{}
	}

	keep := p.selectKeep(set)

	remove := make([]string, 0, len(set)-1)
	for _, path := range set {
		if path != keep {
			remove = append(remove, path)
		}
	}

	return Plan{Keep: keep, Remove: remove}
}

func (p *Planner) selectKeep(set []string) string {
	switch p.strategy {
	case Shortest:
		return selectBy(set, func(path string) int { return len(path) }, func(a, b int) bool { return a < b })
	case Longest:
		return selectBy(set, func(path string) int { return len(path) }, func(a, b int) bool { return a > b })
	case Oldest, Newest:
		keep, err := p.selectByModTime(set)
		if err != nil {
			p.fallbacks++
			p.log.WithError(err).Warnf("Could not apply %q strategy, keeping first of set", p.strategy)
			return set[0]
		}
		return keep
	}
	return set[0]
}

func (p *Planner) selectByModTime(set []string) (string, error) {
	keep := set[0]
	keepInfo, err := p.statFn(keep)
	if err != nil {
		return "", errors.Wrapf(err, "stat: %s", keep)
	}
	keepTime := keepInfo.ModTime()

	for _, path := range set[1:] {
		info, err := p.statFn(path)
		if err != nil {
			return "", errors.Wrapf(err, "stat: %s", path)
		}

		// strict comparison keeps the earlier-discovered member on ties
		mt := info.ModTime()
		if (p.strategy == Oldest && mt.Before(keepTime)) ||
			(p.strategy == Newest && mt.After(keepTime)) {
			keep = path
			keepTime = mt
		}
	}

	return keep, nil
}

func selectBy[K any](set []string, key func(string) K, better func(a, b K) bool) string {
	keep := set[0]
	keepKey := key(keep)

	for _, path := range set[1:] {
		if k := key(path); better(k, keepKey) {
			keep = path
			keepKey = k
		}
	}

	return keep
}
