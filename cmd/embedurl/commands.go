package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/meigma/embedurl"
	"github.com/meigma/embedurl/gen"
)

func fetchCmd(g *globalFlags) *cobra.Command {
	var encoding string

	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Cache a URL and print the path of its entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := embedurl.ParseEncoding(encoding)
			if err != nil {
				return err
			}
			store, err := g.store(cmd)
			if err != nil {
				return err
			}
			path, err := store.FetchOrCache(cmd.Context(), g.resolveNamespace(""), args[0], enc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&encoding, "encoding", "e", "none", "Encoding (none, brotli, zstd, gzip, lz4)")
	return cmd
}

// genFlags mirror gen.Options on the command line.
type genFlags struct {
	url      string
	name     string
	pkg      string
	kind     string
	encoding string
	typ      string
	schema   string
	format   string
	imports  []string
	output   string
}

func (f *genFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.url, "url", "", "Resource URL (required)")
	fs.StringVar(&f.name, "name", "", "Identifier to declare (required)")
	fs.StringVar(&f.pkg, "pkg", "", "Package name (default $"+envPackage+")")
	fs.StringVar(&f.kind, "kind", "string", "Emitted construct (string, bytes, json)")
	fs.StringVarP(&f.encoding, "encoding", "e", "none", "Encoding for bytes (none, brotli, zstd, gzip, lz4)")
	fs.StringVar(&f.typ, "type", "", "Go type to decode JSON into")
	fs.StringVar(&f.schema, "schema", "", "JSON Schema file the payload must satisfy")
	fs.StringVar(&f.format, "format", "json", "Syntax of a json resource (json, jsonc, yaml)")
	fs.StringSliceVar(&f.imports, "import", nil, "Extra import path for --type (repeatable)")
	fs.StringVarP(&f.output, "output", "o", "", "Output file (default stdout)")
}

func (f *genFlags) options() (gen.Options, error) {
	kind, err := gen.ParseKind(f.kind)
	if err != nil {
		return gen.Options{}, err
	}
	enc, err := embedurl.ParseEncoding(f.encoding)
	if err != nil {
		return gen.Options{}, err
	}
	format, err := embedurl.ParseFormat(f.format)
	if err != nil {
		return gen.Options{}, err
	}
	pkg := f.pkg
	if pkg == "" {
		pkg = os.Getenv(envPackage)
	}
	opts := gen.Options{
		Package:  pkg,
		Name:     f.name,
		URL:      f.url,
		Encoding: enc,
		Kind:     kind,
		Type:     f.typ,
		Format:   format,
		Imports:  f.imports,
	}
	if f.schema != "" {
		schema, err := os.ReadFile(f.schema)
		if err != nil {
			return gen.Options{}, fmt.Errorf("read schema: %w", err)
		}
		opts.Schema = schema
	}
	return opts, nil
}

func genCmd(g *globalFlags) *cobra.Command {
	f := &genFlags{}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Write a Go source file embedding a URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options()
			if err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			store, err := g.store(cmd)
			if err != nil {
				return err
			}
			content, err := store.ReadFile(cmd.Context(), g.resolveNamespace(""), opts.URL, opts.Encoding)
			if err != nil {
				return err
			}
			if f.output == "" {
				return gen.Generate(cmd.OutOrStdout(), content, opts)
			}
			return gen.WriteFile(f.output, content, opts)
		},
	}
	f.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func infoCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the cache root and its usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.store(cmd)
			if err != nil {
				return err
			}
			usage, err := store.Usage()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cache dir: %s\n", store.Dir())
			fmt.Fprintf(out, "entries:   %d\n", usage.Entries)
			fmt.Fprintf(out, "bytes:     %d\n", usage.Bytes)
			return nil
		},
	}
}
