package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/meigma/embedurl"
	"github.com/meigma/embedurl/gen"
)

const defaultManifest = "embedurl.yaml"

// Manifest lists the resources generated by the sync command.
type Manifest struct {
	Namespace string     `yaml:"namespace"`
	Package   string     `yaml:"package"`
	Resources []Resource `yaml:"resources"`
}

// Resource is one generated file.
type Resource struct {
	URL      string   `yaml:"url"`
	Name     string   `yaml:"name"`
	Package  string   `yaml:"package"`
	Kind     string   `yaml:"kind"`
	Encoding string   `yaml:"encoding"`
	Type     string   `yaml:"type"`
	Schema   string   `yaml:"schema"`
	Format   string   `yaml:"format"`
	Imports  []string `yaml:"imports"`
	Output   string   `yaml:"output"`
}

// LoadManifest reads a YAML manifest. Unknown keys are rejected.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks required fields and output collisions.
func (m *Manifest) Validate() error {
	if len(m.Resources) == 0 {
		return errors.New("no resources")
	}
	outputs := make(map[string]int, len(m.Resources))
	for i, r := range m.Resources {
		switch {
		case r.URL == "":
			return fmt.Errorf("resource %d: url is required", i)
		case r.Name == "":
			return fmt.Errorf("resource %d: name is required", i)
		case r.Output == "":
			return fmt.Errorf("resource %d: output is required", i)
		}
		if prev, dup := outputs[r.Output]; dup {
			return fmt.Errorf("resource %d: output %s already used by resource %d", i, r.Output, prev)
		}
		outputs[r.Output] = i
	}
	return nil
}

// options resolves a resource against the manifest defaults. Relative
// paths are interpreted against baseDir.
func (m *Manifest) options(r Resource, baseDir string) (gen.Options, error) {
	kind, err := gen.ParseKind(r.Kind)
	if err != nil {
		return gen.Options{}, err
	}
	enc, err := embedurl.ParseEncoding(r.Encoding)
	if err != nil {
		return gen.Options{}, err
	}
	format, err := embedurl.ParseFormat(r.Format)
	if err != nil {
		return gen.Options{}, err
	}
	pkg := r.Package
	if pkg == "" {
		pkg = m.Package
	}
	if pkg == "" {
		pkg = os.Getenv(envPackage)
	}
	opts := gen.Options{
		Package:  pkg,
		Name:     r.Name,
		URL:      r.URL,
		Encoding: enc,
		Kind:     kind,
		Type:     r.Type,
		Format:   format,
		Imports:  r.Imports,
	}
	if r.Schema != "" {
		schema, err := os.ReadFile(resolve(baseDir, r.Schema))
		if err != nil {
			return gen.Options{}, fmt.Errorf("read schema for %s: %w", r.Name, err)
		}
		opts.Schema = schema
	}
	return opts, nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func syncCmd(g *globalFlags) *cobra.Command {
	var (
		manifestPath string
		jobs         int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Generate every resource listed in a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			store, err := g.store(cmd)
			if err != nil {
				return err
			}
			return runSync(cmd.Context(), store, m, g.resolveNamespace(m.Namespace), filepath.Dir(manifestPath), jobs)
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "file", "f", defaultManifest, "Manifest file")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "Maximum concurrent fetches")
	return cmd
}

func runSync(ctx context.Context, store *embedurl.Store, m *Manifest, namespace, baseDir string, jobs int) error {
	group, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		group.SetLimit(jobs)
	}
	for _, r := range m.Resources {
		group.Go(func() error {
			opts, err := m.options(r, baseDir)
			if err != nil {
				return fmt.Errorf("%s: %w", r.Name, err)
			}
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("%s: %w", r.Name, err)
			}
			content, err := store.ReadFile(ctx, namespace, opts.URL, opts.Encoding)
			if err != nil {
				return fmt.Errorf("%s: %w", r.Name, err)
			}
			if err := gen.WriteFile(resolve(baseDir, r.Output), content, opts); err != nil {
				return fmt.Errorf("%s: %w", r.Name, err)
			}
			return nil
		})
	}
	return group.Wait()
}
