package cluster

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// manifestDoc is the subset of a workload manifest needed to locate
// the deployment target.
type manifestDoc struct {
	Kind     string `yaml:"kind"`
	Metadata struct {
		Name      string `yaml:"name"`
		Namespace string `yaml:"namespace"`
	} `yaml:"metadata"`
	Spec struct {
		Template struct {
			Spec struct {
				Containers []struct {
					Name string `yaml:"name"`
				} `yaml:"containers"`
			} `yaml:"spec"`
		} `yaml:"template"`
	} `yaml:"spec"`
}

// ResolveTarget reads the manifest and derives the deployment target
// from its first Deployment document. Used when the target is not
// spelled out in configuration, so the manifest stays the single
// source of truth.
func ResolveTarget(manifestPath string) (Target, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return Target{}, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	for {
		var doc manifestDoc
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Target{}, fmt.Errorf("failed to parse manifest %s: %w", manifestPath, err)
		}

		if doc.Kind != "Deployment" {
			continue
		}
		if doc.Metadata.Name == "" {
			return Target{}, fmt.Errorf("manifest %s: Deployment has no metadata.name", manifestPath)
		}

		target := Target{
			Namespace: doc.Metadata.Namespace,
			Workload:  doc.Metadata.Name,
		}
		if containers := doc.Spec.Template.Spec.Containers; len(containers) > 0 {
			target.Container = containers[0].Name
		}
		if target.Container == "" {
			// A single-container workload conventionally names the
			// container after the workload.
			target.Container = target.Workload
		}
		return target, nil
	}

	return Target{}, fmt.Errorf("manifest %s contains no Deployment", manifestPath)
}
