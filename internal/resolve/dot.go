package resolve

import (
	"errors"
	"fmt"
	"io"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"

	"github.com/no2fpga/no2build/internal/registry"
)

// WriteDOT renders the resolved dependency graph in Graphviz DOT format.
//
// The project is drawn as a box, cores as ellipses; an edge A -> B means
// A depends on B. Only resolved cores appear, so the drawing reflects the
// exact closure a build would use.
func WriteDOT(w io.Writer, project *Project, reg *registry.Registry, build *ResolvedBuild) error {
	g := graph.New(graph.StringHash, graph.Directed())

	projectName := project.Name
	if projectName == "" {
		projectName = "project"
	}
	if err := g.AddVertex(projectName, graph.VertexAttribute("shape", "box")); err != nil {
		return fmt.Errorf("adding project vertex: %w", err)
	}

	for _, name := range build.Cores {
		if err := g.AddVertex(name); err != nil {
			return fmt.Errorf("adding core vertex %q: %w", name, err)
		}
	}

	for _, dep := range project.Deps {
		if err := addEdgeOnce(g, projectName, dep); err != nil {
			return err
		}
	}
	for _, name := range build.Cores {
		core, ok := reg.Core(name)
		if !ok {
			return fmt.Errorf("resolved core %q missing from registry", name)
		}
		for _, dep := range core.Deps {
			if err := addEdgeOnce(g, name, dep); err != nil {
				return err
			}
		}
	}

	return draw.DOT(g, w)
}

// addEdgeOnce tolerates duplicated dependency declarations. Resolution
// treats them as a single edge, so the drawing does too.
func addEdgeOnce(g graph.Graph[string, string], from, to string) error {
	err := g.AddEdge(from, to)
	if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return fmt.Errorf("adding edge %s -> %s: %w", from, to, err)
	}
	return nil
}
