// Package descriptor parses and validates the composition descriptor, a
// declarative YAML document naming the composed services, their network
// identities and startup dependencies, plus the path routes bound to
// them. A descriptor either loads completely or not at all.
package descriptor

import (
	"fmt"
	"io/ioutil"

	mapset "github.com/deckarep/golang-set"
	"gopkg.in/yaml.v2"
)

const (
	minPort = 1
	maxPort = 65535
)

// Instance is one concrete network address of a service. Services with a
// single instance may declare address/port inline instead.
type Instance struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

type Service struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	// multi-instance form, takes precedence over Address/Port
	Instances  []Instance        `yaml:"instances"`
	DependsOn  []string          `yaml:"depends_on"`
	Env        map[string]string `yaml:"env"`
	HealthPath string            `yaml:"health_path"`
	Policy     string            `yaml:"policy"`
}

// Endpoints normalizes the two declaration forms into one instance list.
func (s *Service) Endpoints() []Instance {
	if len(s.Instances) > 0 {
		return s.Instances
	}
	return []Instance{{Address: s.Address, Port: s.Port}}
}

type RouteRule struct {
	Pattern     string `yaml:"pattern"`
	Upstream    string `yaml:"upstream"`
	StripPrefix bool   `yaml:"strip_prefix"`
}

type Composition struct {
	Version  string      `yaml:"version"`
	Services []Service   `yaml:"services"`
	Routes   []RouteRule `yaml:"routes"`
}

// DescriptorError reports why a descriptor failed validation and which
// service (or route pattern) it failed on.
type DescriptorError struct {
	Service string
	Reason  string
}

func (e *DescriptorError) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("descriptor invalid: %s", e.Reason)
	}
	return fmt.Sprintf("descriptor invalid at [%s]: %s", e.Service, e.Reason)
}

// Parse unmarshals and validates a descriptor document.
func Parse(doc []byte) (*Composition, error) {
	var comp Composition
	if err := yaml.Unmarshal(doc, &comp); err != nil {
		return nil, &DescriptorError{Reason: fmt.Sprintf("not a well-formed document: %v", err)}
	}
	if err := comp.Validate(); err != nil {
		return nil, err
	}
	return &comp, nil
}

// Load reads and parses a descriptor file.
func Load(path string) (*Composition, error) {
	doc, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, &DescriptorError{Reason: fmt.Sprintf("can not read %s: %v", path, err)}
	}
	return Parse(doc)
}

// Validate checks the whole topology: unique names, resolvable and
// acyclic dependency links, legal ports, resolvable route bindings.
func (c *Composition) Validate() error {
	if len(c.Services) == 0 {
		return &DescriptorError{Reason: "no services declared"}
	}

	declared := mapset.NewSet()
	for _, svc := range c.Services {
		if svc.Name == "" {
			return &DescriptorError{Reason: "service without a name"}
		}
		if !declared.Add(svc.Name) {
			return &DescriptorError{Service: svc.Name, Reason: "duplicate service name"}
		}
		instances := mapset.NewSet()
		for _, inst := range svc.Endpoints() {
			if inst.Address == "" {
				return &DescriptorError{Service: svc.Name, Reason: "instance without an address"}
			}
			if inst.Port < minPort || inst.Port > maxPort {
				return &DescriptorError{Service: svc.Name, Reason: fmt.Sprintf("port %d outside [%d,%d]", inst.Port, minPort, maxPort)}
			}
			if !instances.Add(fmt.Sprintf("%s:%d", inst.Address, inst.Port)) {
				return &DescriptorError{Service: svc.Name, Reason: fmt.Sprintf("duplicate instance %s:%d", inst.Address, inst.Port)}
			}
		}
		switch svc.Policy {
		case "", "least_conn", "round_robin":
		default:
			return &DescriptorError{Service: svc.Name, Reason: fmt.Sprintf("unknown balance policy %q", svc.Policy)}
		}
		deps := mapset.NewSet()
		for _, dep := range svc.DependsOn {
			if !declared.Contains(dep) && !c.declares(dep) {
				return &DescriptorError{Service: svc.Name, Reason: fmt.Sprintf("depends on undeclared service %q", dep)}
			}
			if dep == svc.Name {
				return &DescriptorError{Service: svc.Name, Reason: "depends on itself"}
			}
			if !deps.Add(dep) {
				return &DescriptorError{Service: svc.Name, Reason: fmt.Sprintf("duplicate dependency %q", dep)}
			}
		}
	}

	if _, err := c.StartOrder(); err != nil {
		return err
	}

	seenPatterns := mapset.NewSet()
	for _, rule := range c.Routes {
		if len(rule.Pattern) == 0 || rule.Pattern[0] != '/' {
			return &DescriptorError{Service: rule.Upstream, Reason: fmt.Sprintf("route pattern %q must start with /", rule.Pattern)}
		}
		if !seenPatterns.Add(rule.Pattern) {
			return &DescriptorError{Service: rule.Upstream, Reason: fmt.Sprintf("duplicate route pattern %q", rule.Pattern)}
		}
		if !declared.Contains(rule.Upstream) {
			return &DescriptorError{Service: rule.Upstream, Reason: fmt.Sprintf("route %q binds an undeclared service", rule.Pattern)}
		}
	}
	return nil
}

func (c *Composition) declares(name string) bool {
	for _, svc := range c.Services {
		if svc.Name == name {
			return true
		}
	}
	return false
}

// Service returns the declared service by name, nil when absent.
func (c *Composition) Service(name string) *Service {
	for i := range c.Services {
		if c.Services[i].Name == name {
			return &c.Services[i]
		}
	}
	return nil
}

// StartOrder returns the services in a dependency-respecting start
// order, dependencies before dependents. A cycle among the declared
// links is a DescriptorError.
func (c *Composition) StartOrder() ([]string, error) {
	indegree := make(map[string]int, len(c.Services))
	dependents := make(map[string][]string, len(c.Services))
	for _, svc := range c.Services {
		indegree[svc.Name] = len(svc.DependsOn)
		for _, dep := range svc.DependsOn {
			dependents[dep] = append(dependents[dep], svc.Name)
		}
	}

	var queue []string
	for _, svc := range c.Services {
		if indegree[svc.Name] == 0 {
			queue = append(queue, svc.Name)
		}
	}

	order := make([]string, 0, len(c.Services))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		for _, next := range dependents[name] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(c.Services) {
		for _, svc := range c.Services {
			if indegree[svc.Name] > 0 {
				return nil, &DescriptorError{Service: svc.Name, Reason: "dependency cycle"}
			}
		}
		return nil, &DescriptorError{Reason: "dependency cycle"}
	}
	return order, nil
}
