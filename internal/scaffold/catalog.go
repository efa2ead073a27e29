package scaffold

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const manifestName = "agent.yaml"

var (
	// ErrUnknownAgent is returned when a name or number matches no agent
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrNoAgents is returned when the catalog (or a filtered view of it) is empty
	ErrNoAgents = errors.New("no agents available")
)

// Agent describes one agent template
type Agent struct {
	Number            int      `yaml:"-"`
	Name              string   `yaml:"name"`
	Description       string   `yaml:"description"`
	DeploymentTargets []string `yaml:"deployment_targets"`
	DataIngestion     bool     `yaml:"data_ingestion"`
	Dependencies      []string `yaml:"dependencies"`
}

// Supports reports whether the agent can be deployed to target
func (a Agent) Supports(target string) bool {
	return slices.Contains(a.DeploymentTargets, target)
}

// DefaultTarget is the first deployment target the agent lists
func (a Agent) DefaultTarget() string {
	if len(a.DeploymentTargets) == 0 {
		return TargetAgentEngine
	}
	return a.DeploymentTargets[0]
}

// Catalog is the numbered list of available agents, sorted by name
type Catalog struct {
	agents []Agent
}

// LoadCatalog reads every agents/<name>/agent.yaml manifest in fsys
func LoadCatalog(fsys fs.FS) (*Catalog, error) {
	manifests, err := fs.Glob(fsys, path.Join(agentsDir, "*", manifestName))
	if err != nil {
		return nil, fmt.Errorf("listing agent manifests: %w", err)
	}

	agents := make([]Agent, 0, len(manifests))
	for _, m := range manifests {
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", m, err)
		}

		var a Agent
		if err := yaml.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", m, err)
		}
		// The directory name is authoritative for template lookup
		a.Name = path.Base(path.Dir(m))
		agents = append(agents, a)
	}

	return newCatalog(agents), nil
}

func newCatalog(agents []Agent) *Catalog {
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	for i := range agents {
		agents[i].Number = i + 1
	}
	return &Catalog{agents: agents}
}

// Agents returns a copy of the catalog entries
func (c *Catalog) Agents() []Agent {
	return slices.Clone(c.agents)
}

// Resolve finds an agent by exact name or by its catalog number
func (c *Catalog) Resolve(nameOrNumber string) (Agent, error) {
	key := strings.TrimSpace(nameOrNumber)
	for _, a := range c.agents {
		if a.Name == key {
			return a, nil
		}
	}

	if n, err := strconv.Atoi(key); err == nil {
		for _, a := range c.agents {
			if a.Number == n {
				return a, nil
			}
		}
		return Agent{}, fmt.Errorf("%w: number %d", ErrUnknownAgent, n)
	}

	return Agent{}, fmt.Errorf("%w: %q", ErrUnknownAgent, key)
}

// ForTarget returns a renumbered catalog of the agents deployable to target.
// An empty target returns the catalog unchanged.
func (c *Catalog) ForTarget(target string) (*Catalog, error) {
	if target == "" {
		if len(c.agents) == 0 {
			return nil, ErrNoAgents
		}
		return c, nil
	}

	var filtered []Agent
	for _, a := range c.agents {
		if a.Supports(target) {
			filtered = append(filtered, a)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w for deployment target %q", ErrNoAgents, target)
	}
	return newCatalog(filtered), nil
}
